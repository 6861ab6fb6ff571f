package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinxlover/material-news/internal/assemble"
	"github.com/jinxlover/material-news/internal/correlation"
	"github.com/jinxlover/material-news/internal/extract"
	"github.com/jinxlover/material-news/internal/geocode"
	"github.com/jinxlover/material-news/internal/model"
	"github.com/jinxlover/material-news/internal/otel"
	"github.com/jinxlover/material-news/internal/schema"
	"github.com/jinxlover/material-news/internal/store"
	"github.com/jinxlover/material-news/internal/verify"
)

var base = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func raw(source, url, text string, published time.Time) model.RawItem {
	return model.RawItem{
		SourceName:  source,
		URL:         url,
		Text:        text,
		RetrievedAt: base.Add(2 * time.Hour),
		Published:   published,
	}
}

func batch() []model.RawItem {
	return []model.RawItem{
		raw("Reuters", "https://reuters.example/1", "Explosion at factory in Springfield kills 3 workers.", base),
		raw("AP", "https://ap.example/7", "Explosion in Springfield: 5 people killed, 2 injured.", base.Add(time.Hour)),
		raw("BBC", "https://bbc.example/3", "Explosion in Horrific Valley.", base),
		raw("USGS", "https://usgs.example/q", "M 6.1 earthquake in Lima, Peru.", base.Add(-time.Hour)),
	}
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newRunner(t *testing.T, output string) *Runner {
	t.Helper()
	v, err := schema.New()
	require.NoError(t, err)
	cache := geocode.NewCache(geocode.NewStatic(nil), time.Second)
	return &Runner{
		Extractor: extract.New(),
		Dedup:     correlation.DefaultConfig(),
		Verifier:  verify.New(nil),
		Assembler: assemble.New(cache, v, assemble.WithClock(func() time.Time { return base.Add(72 * time.Hour) })),
		Policy:    PolicySkip,
		Output:    output,
		Workers:   2,
		Now:       func() time.Time { return base.Add(3 * time.Hour) },
	}
}

func TestRunBuildsFeed(t *testing.T) {
	out := filepath.Join(t.TempDir(), "data", "events.json")
	r := newRunner(t, out)
	ring := otel.NewRingBuffer(64)
	r.Log = otel.NewNullLogger()
	r.Log.SetRingBuffer(ring)

	rep, err := r.Run(context.Background(), batch())
	require.NoError(t, err)
	require.NoError(t, r.Log.Close())

	assert.Equal(t, 4, rep.Items)
	assert.Equal(t, 3, rep.Candidates)
	assert.Equal(t, 1, rep.Merged)
	require.Len(t, rep.Rejected, 1)
	assert.Equal(t, "BBC", rep.Rejected[0].Source)
	assert.Equal(t, []string{"horrific"}, rep.Rejected[0].Tokens)
	assert.False(t, rep.Rejected[0].Held)

	events, err := assemble.ReadFeed(out)
	require.NoError(t, err)
	require.Len(t, events, 2)

	quake, blast := events[0], events[1]
	assert.Equal(t, model.Earthquake, quake.EventType)
	assert.Equal(t, 6.1, *quake.Metrics.Magnitude)
	assert.Equal(t, "Earthquake; M6.1.", quake.Headline)
	assert.Equal(t, "PE", *quake.Location.ISO2)

	assert.Equal(t, model.Explosion, blast.EventType)
	assert.Equal(t, "Explosion; 5 killed; 2 injured.", blast.Headline)
	assert.Equal(t, 5, *blast.Metrics.Killed)
	assert.Equal(t, 0.6, blast.Confidence)
	require.NotNil(t, blast.Notes)
	assert.Equal(t, "Reported killed: 3, 5.", *blast.Notes)
	assert.Equal(t, []string{"factory"}, blast.Targets)
	require.Len(t, blast.Sources, 2)
	assert.Equal(t, "Reuters", blast.Sources[0].Name)
	assert.Equal(t, base, blast.WhenUTC)

	counts := ring.Counts()
	assert.Equal(t, 1, counts[otel.KindExtractReject])
	assert.Equal(t, 1, counts[otel.KindFeedWrite])
	assert.Equal(t, 1, counts[otel.KindRunComplete])
}

func TestRunHoldPolicy(t *testing.T) {
	st := openStore(t)
	r := newRunner(t, "")
	r.Policy = PolicyHold
	r.Review = st

	rep, err := r.Run(context.Background(), batch())
	require.NoError(t, err)
	require.Len(t, rep.Rejected, 1)
	assert.True(t, rep.Rejected[0].Held)

	held, err := st.Held()
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, "BBC", held[0].Item.SourceName)
	assert.Equal(t, []string{"horrific"}, held[0].Tokens)
}

func TestRunIsIdempotentWithLedger(t *testing.T) {
	st := openStore(t)
	out := filepath.Join(t.TempDir(), "events.json")
	r := newRunner(t, out)
	r.Ledger = st
	r.Archive = st

	first, err := r.Run(context.Background(), batch())
	require.NoError(t, err)
	assert.Equal(t, 2, first.Feed.New)
	assert.Equal(t, 2, first.Saved)
	assert.Equal(t, 4, first.Archived)
	before, err := os.ReadFile(out)
	require.NoError(t, err)

	second, err := r.Run(context.Background(), batch())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Seeded)
	assert.Zero(t, second.Feed.New)
	assert.Zero(t, second.Feed.Bumped)
	assert.Zero(t, second.Saved)
	assert.Zero(t, second.Archived)
	after, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestRunCorroborationBumpsVersion(t *testing.T) {
	st := openStore(t)
	r := newRunner(t, "")
	r.Ledger = st

	first, err := r.Run(context.Background(), batch()[:1])
	require.NoError(t, err)
	require.Len(t, first.Feed.Events, 1)
	original := first.Feed.Events[0]
	assert.Equal(t, 0.4, original.Confidence)

	second, err := r.Run(context.Background(), batch()[1:2])
	require.NoError(t, err)
	require.Len(t, second.Feed.Events, 1)
	updated := second.Feed.Events[0]

	assert.Equal(t, original.ID, updated.ID)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, 0.6, updated.Confidence)
	assert.Equal(t, 5, *updated.Metrics.Killed)
	assert.Equal(t, base.Add(72*time.Hour), updated.UpdatedAt)
	assert.Equal(t, 1, second.Feed.Bumped)
}

func TestRunUntouchedSeedsPassThrough(t *testing.T) {
	st := openStore(t)
	r := newRunner(t, "")
	r.Ledger = st

	_, err := r.Run(context.Background(), batch()[:1])
	require.NoError(t, err)

	rep, err := r.Run(context.Background(), batch()[3:])
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Seeded)
	assert.Equal(t, 1, rep.Verified, "only the new earthquake is verified")
	require.Len(t, rep.Feed.Events, 2)
	assert.Zero(t, rep.Feed.Bumped)
}

func TestRunRetentionDropsOldSeeds(t *testing.T) {
	st := openStore(t)
	r := newRunner(t, "")
	r.Ledger = st

	_, err := r.Run(context.Background(), batch()[:1])
	require.NoError(t, err)

	r.Retention = 24 * time.Hour
	r.Now = func() time.Time { return base.Add(30 * 24 * time.Hour) }
	rep, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, rep.Seeded)
	assert.Empty(t, rep.Feed.Events)
	assert.Equal(t, 1, rep.Pruned)

	entries, err := st.LoadEvents()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunWithFileLedger(t *testing.T) {
	out := filepath.Join(t.TempDir(), "events.json")
	r := newRunner(t, out)
	r.Ledger = assemble.FileLedger{Path: out}

	_, err := r.Run(context.Background(), batch())
	require.NoError(t, err)
	before, err := os.ReadFile(out)
	require.NoError(t, err)

	rep, err := r.Run(context.Background(), batch())
	require.NoError(t, err)
	assert.Zero(t, rep.Feed.Bumped)
	after, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestRerunKeepsUnknownLocationEvent(t *testing.T) {
	item := raw("Reuters", "https://reuters.example/9",
		"Explosion in factory kills 4 workers and injures 7 others", base)

	ledgers := map[string]func(t *testing.T, out string) Ledger{
		"sqlite": func(t *testing.T, _ string) Ledger { return openStore(t) },
		"file":   func(_ *testing.T, out string) Ledger { return assemble.FileLedger{Path: out} },
	}
	for name, newLedger := range ledgers {
		t.Run(name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "events.json")
			r := newRunner(t, out)
			r.Ledger = newLedger(t, out)

			var ids []string
			for i := 0; i < 3; i++ {
				rep, err := r.Run(context.Background(), []model.RawItem{item})
				require.NoError(t, err)
				require.Len(t, rep.Feed.Events, 1, "run %d", i+1)
				e := rep.Feed.Events[0]
				assert.Equal(t, model.UnknownLocation, e.Location.Name)
				assert.Equal(t, 1, e.Version)
				ids = append(ids, e.ID)
			}
			assert.Equal(t, ids[0], ids[1])
			assert.Equal(t, ids[0], ids[2])
			assert.NotContains(t, ids[0], "_2")
		})
	}
}

func TestRunWriteFailureIsSystemic(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	r := newRunner(t, filepath.Join(blocker, "events.json"))
	_, err := r.Run(context.Background(), batch())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write feed")
}
