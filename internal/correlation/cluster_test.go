package correlation

import (
	"testing"
	"time"

	"github.com/jinxlover/material-news/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

func cand(typ model.IncidentType, loc, src, url string, when time.Time, killed *int) model.CandidateEvent {
	return model.CandidateEvent{
		IncidentType: typ,
		Headline:     typ.Title() + ".",
		Metrics:      model.Metrics{Killed: killed},
		LocationName: loc,
		WhenUTC:      when,
		Source:       model.NewSourceRef(src, url, when),
	}
}

func TestGroupMergesSameEvent(t *testing.T) {
	clusters := Group([]model.CandidateEvent{
		cand(model.Explosion, "Lagos", "Reuters", "https://r.example/1", t0, model.Int(3)),
		cand(model.Explosion, "Lagos, Nigeria", "AP", "https://ap.example/1", t0.Add(2*time.Hour), model.Int(5)),
		cand(model.Explosion, "lagos", "AP", "https://ap.example/1", t0.Add(3*time.Hour), nil),
	}, DefaultConfig())

	require.Len(t, clusters, 1)
	e := clusters[0].Event
	require.Len(t, e.Sources, 2, "duplicate (name,url) must not be added twice")
	assert.Equal(t, "Reuters", e.Sources[0].Name)
	assert.Equal(t, "AP", e.Sources[1].Name)
	assert.Len(t, clusters[0].Observations, 2)
	assert.Equal(t, 3, clusters[0].Merged)
	assert.Equal(t, 3, *e.Metrics.Killed, "metrics are left for the verifier")
}

func TestGroupSplitsOnPredicate(t *testing.T) {
	tests := []struct {
		name string
		b    model.CandidateEvent
	}{
		{"different type", cand(model.Fire, "Lagos", "AP", "https://ap.example/2", t0, nil)},
		{"outside window", cand(model.Explosion, "Lagos", "AP", "https://ap.example/2", t0.Add(25*time.Hour), nil)},
		{"different place", cand(model.Explosion, "Abuja", "AP", "https://ap.example/2", t0, nil)},
		{"unknown place", cand(model.Explosion, model.UnknownLocation, "AP", "https://ap.example/2", t0, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := cand(model.Explosion, "Lagos", "Reuters", "https://r.example/1", t0, nil)
			assert.Len(t, Group([]model.CandidateEvent{a, tt.b}, DefaultConfig()), 2)
		})
	}
}

func TestUnknownLocationsNeverMerge(t *testing.T) {
	clusters := Group([]model.CandidateEvent{
		cand(model.Incident, model.UnknownLocation, "A", "https://a.example/1", t0, nil),
		cand(model.Incident, model.UnknownLocation, "B", "https://b.example/1", t0, nil),
	}, DefaultConfig())
	assert.Len(t, clusters, 2)
}

func TestSameSourceRejoinsCluster(t *testing.T) {
	d := New(DefaultConfig())
	first, merged := d.Add(cand(model.Explosion, model.UnknownLocation, "Reuters", "https://r.example/1", t0, model.Int(4)))
	require.False(t, merged)

	again, merged := d.Add(cand(model.Explosion, model.UnknownLocation, "Reuters", "https://r.example/1", t0, model.Int(4)))
	assert.True(t, merged)
	assert.Same(t, first, again)
	require.Len(t, d.Clusters(), 1)
	assert.Len(t, first.Event.Sources, 1)
	assert.Len(t, first.Observations, 1)

	_, merged = d.Add(cand(model.Fire, model.UnknownLocation, "Reuters", "https://r.example/1", t0, nil))
	assert.False(t, merged, "a different type never rejoins by source")
	assert.Len(t, d.Clusters(), 2)
}

func TestSeededUnknownLocationRejoinsBySource(t *testing.T) {
	c := cand(model.Explosion, model.UnknownLocation, "Reuters", "https://r.example/1", t0, model.Int(4))
	seed := model.NewCanonicalEvent(c)
	seed.ID = "evt_seed"

	d := New(DefaultConfig())
	d.Seed([]model.LedgerEntry{{Event: seed}})
	cl, merged := d.Add(c)
	assert.True(t, merged)
	assert.Equal(t, "evt_seed", cl.Event.ID)
	assert.Len(t, d.Clusters(), 1)
}

func TestEarlierCandidateBecomesRepresentative(t *testing.T) {
	d := New(Config{Window: 6 * time.Hour})
	d.Add(cand(model.Flood, "Dhaka", "A", "https://a.example/1", t0, nil))
	_, merged := d.Add(cand(model.Flood, "Dhaka City", "B", "https://b.example/1", t0.Add(-5*time.Hour), nil))
	require.True(t, merged)

	e := d.Clusters()[0].Event
	assert.Equal(t, t0.Add(-5*time.Hour), e.WhenUTC)
	assert.Equal(t, "Dhaka City", e.Location.Name)

	// Window is now measured from the earlier representative.
	_, merged = d.Add(cand(model.Flood, "Dhaka", "C", "https://c.example/1", t0.Add(2*time.Hour), nil))
	assert.False(t, merged)
}

func TestGreedyFirstClusterWins(t *testing.T) {
	d := New(DefaultConfig())
	d.Add(cand(model.Attack, "Kabul", "A", "https://a.example/1", t0, nil))
	d.Add(cand(model.Attack, "Kabul Province", "B", "https://b.example/1", t0.Add(30*time.Hour), nil))
	cl, merged := d.Add(cand(model.Attack, "Kabul", "C", "https://c.example/1", t0.Add(20*time.Hour), nil))

	require.True(t, merged)
	assert.Same(t, d.Clusters()[0], cl)
}

func TestSeedKeepsIDAndReplacesObservationBySource(t *testing.T) {
	prior := model.NewCanonicalEvent(cand(model.Shooting, "Denver", "A", "https://a.example/1", t0, model.Int(2)))
	prior.ID = "evt_prior"
	prior.Version = 3

	d := New(DefaultConfig())
	d.Seed([]model.LedgerEntry{{
		Event:        prior,
		Observations: []model.Observation{{Source: prior.Sources[0], Metrics: model.Metrics{Killed: model.Int(2)}}},
		Hash:         "h1",
	}})

	cl, merged := d.Add(cand(model.Shooting, "Denver", "A", "https://a.example/1", t0.Add(time.Hour), model.Int(4)))
	require.True(t, merged)
	assert.True(t, cl.Seeded)
	assert.True(t, cl.Touched())
	assert.Equal(t, "evt_prior", cl.Event.ID)
	assert.Equal(t, "h1", cl.PriorHash)
	require.Len(t, cl.Observations, 1)
	assert.Equal(t, 4, *cl.Observations[0].Metrics.Killed)
	assert.Equal(t, t0, cl.Observations[0].Source.Seen(), "earliest first_seen is kept")
	assert.Equal(t, 2, *prior.Metrics.Killed, "seed is copied")
}

func TestSeedWithoutObservations(t *testing.T) {
	prior := model.NewCanonicalEvent(cand(model.Fire, "Athens", "A", "https://a.example/1", t0, nil))
	prior.AddSource(model.NewSourceRef("B", "https://b.example/1", t0.Add(time.Hour)))
	prior.Metrics.AreaBurnedKm2 = model.Float(12)

	d := New(DefaultConfig())
	d.Seed([]model.LedgerEntry{{Event: prior}})

	cl := d.Clusters()[0]
	assert.False(t, cl.Touched())
	require.Len(t, cl.Observations, 1)
	assert.Equal(t, "B", cl.Observations[0].Source.Name)
	assert.Equal(t, 12.0, *cl.Observations[0].Metrics.AreaBurnedKm2)
}

func TestLocationMatch(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"Lagos", "LAGOS.", true},
		{"Lagos", "Lagos, Nigeria", true},
		{"Port Harcourt", "Harcourt", true},
		{"New York City", "New York State", true}, // 2/4 tokens
		{"New York", "York", true},
		{"Tel Aviv", "Jaffa", false},
		{"", "Lagos", false},
		{"Unknown", "unknown", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LocationMatch(tt.a, tt.b, 0.5), "%q vs %q", tt.a, tt.b)
	}
}
