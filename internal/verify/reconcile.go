package verify

import (
	"sort"
	"strconv"
	"strings"

	"github.com/jinxlover/material-news/internal/extract"
	"github.com/jinxlover/material-news/internal/model"
)

// Verifier reconciles clustered events.
type Verifier struct {
	scorer Scorer
}

// New returns a verifier using scorer, or the baseline when nil.
func New(scorer Scorer) *Verifier {
	if scorer == nil {
		scorer = BaselineScorer{}
	}
	return &Verifier{scorer: scorer}
}

// Reconcile rewrites e from its observations:
//   - killed and injured take the maximum reported value;
//   - magnitude and area burned take the value from the source seen most
//     recently (magnitude only for earthquakes);
//   - the headline is regenerated from the reconciled metrics;
//   - notes list the values reported when sources disagree;
//   - confidence is recomputed from the source set.
//
// It mutates and returns e.
func (v *Verifier) Reconcile(e *model.CanonicalEvent, obs []model.Observation) *model.CanonicalEvent {
	if len(obs) > 0 {
		e.Metrics = Metrics(e.EventType, obs)
	} else if e.EventType != model.Earthquake {
		e.Metrics.Magnitude = nil
	}
	e.Headline = extract.Headline(e.EventType, e.Metrics)
	e.Notes = Notes(obs)
	e.Confidence = v.scorer.Score(e.Sources)
	return e
}

// Confidence scores a source set.
func (v *Verifier) Confidence(sources []model.SourceRef) float64 {
	return v.scorer.Score(sources)
}

// Metrics reconciles observations of one event.
func Metrics(t model.IncidentType, obs []model.Observation) model.Metrics {
	var m model.Metrics
	for _, o := range obs {
		m.Killed = maxInt(m.Killed, o.Metrics.Killed)
		m.Injured = maxInt(m.Injured, o.Metrics.Injured)
	}
	m.AreaBurnedKm2 = latest(obs, func(m model.Metrics) *float64 { return m.AreaBurnedKm2 })
	if t == model.Earthquake {
		m.Magnitude = latest(obs, func(m model.Metrics) *float64 { return m.Magnitude })
	}
	return m
}

func maxInt(cur, v *int) *int {
	if v == nil {
		return cur
	}
	if cur == nil || *v > *cur {
		n := *v
		return &n
	}
	return cur
}

// latest picks the value reported by the most recently first-seen source.
// Ties keep the earlier observation.
func latest(obs []model.Observation, field func(model.Metrics) *float64) *float64 {
	var best *float64
	at := -1
	for i, o := range obs {
		v := field(o.Metrics)
		if v == nil {
			continue
		}
		if at < 0 || o.Source.Seen().After(obs[at].Source.Seen()) {
			val := *v
			best, at = &val, i
		}
	}
	return best
}

// Notes describes metric disagreements, e.g. "Reported killed: 3, 5."
// It returns nil when all sources agree.
func Notes(obs []model.Observation) *string {
	var lines []string
	if vals := intValues(obs, func(m model.Metrics) *int { return m.Killed }); len(vals) > 1 {
		lines = append(lines, "Reported killed: "+strings.Join(vals, ", ")+".")
	}
	if vals := intValues(obs, func(m model.Metrics) *int { return m.Injured }); len(vals) > 1 {
		lines = append(lines, "Reported injured: "+strings.Join(vals, ", ")+".")
	}
	if vals := floatValues(obs, func(m model.Metrics) *float64 { return m.Magnitude }); len(vals) > 1 {
		lines = append(lines, "Reported magnitude: "+strings.Join(vals, ", ")+".")
	}
	if vals := floatValues(obs, func(m model.Metrics) *float64 { return m.AreaBurnedKm2 }); len(vals) > 1 {
		lines = append(lines, "Reported area burned (km2): "+strings.Join(vals, ", ")+".")
	}
	if len(lines) == 0 {
		return nil
	}
	s := strings.Join(lines, " ")
	return &s
}

func intValues(obs []model.Observation, field func(model.Metrics) *int) []string {
	set := make(map[int]bool)
	for _, o := range obs {
		if v := field(o.Metrics); v != nil {
			set[*v] = true
		}
	}
	nums := make([]int, 0, len(set))
	for n := range set {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	out := make([]string, len(nums))
	for i, n := range nums {
		out[i] = strconv.Itoa(n)
	}
	return out
}

func floatValues(obs []model.Observation, field func(model.Metrics) *float64) []string {
	set := make(map[float64]bool)
	for _, o := range obs {
		if v := field(o.Metrics); v != nil {
			set[*v] = true
		}
	}
	nums := make([]float64, 0, len(set))
	for n := range set {
		nums = append(nums, n)
	}
	sort.Float64s(nums)
	out := make([]string, len(nums))
	for i, n := range nums {
		out[i] = strconv.FormatFloat(n, 'f', -1, 64)
	}
	return out
}
