// Package correlation groups candidate events that describe the same
// real-world incident.
//
// Clustering is a greedy single pass: candidates are taken in arrival order.
// A candidate from a source already attached to a cluster rejoins it;
// otherwise it joins the first existing cluster whose representative (its
// earliest member) has the same incident type, a when_utc within the
// window, and a matching location name. Otherwise it opens a new cluster.
// The pass is linear and deterministic, but it can under-merge: reports of
// one event that arrive out of order across a gap wider than the window
// each compare against a different representative and may stay apart.
package correlation

import (
	"time"

	"github.com/jinxlover/material-news/internal/model"
)

// Config controls the same-event predicate.
type Config struct {
	Window  time.Duration // max |Δwhen_utc| against the representative
	Overlap float64       // min token Jaccard for location names
}

// DefaultConfig returns a 24h window and 0.5 overlap.
func DefaultConfig() Config {
	return Config{Window: 24 * time.Hour, Overlap: 0.5}
}

// Cluster is one canonical event under construction together with the
// unreconciled metric observations of its members.
type Cluster struct {
	Event        *model.CanonicalEvent
	Observations []model.Observation

	// Seeded is set for clusters opened from a previously assembled event.
	Seeded bool
	// Merged counts candidates added during this run.
	Merged int
	// PriorHash is the content hash recorded for a seeded event.
	PriorHash string
}

// Touched reports whether the cluster changed during this run.
func (c *Cluster) Touched() bool {
	return !c.Seeded || c.Merged > 0
}

// observe records o, replacing any earlier observation from the same source.
func (c *Cluster) observe(o model.Observation) {
	for i := range c.Observations {
		if c.Observations[i].Source.Same(o.Source) {
			first := c.Observations[i].Source.FirstSeen
			c.Observations[i] = o
			if first != nil && (o.Source.FirstSeen == nil || first.Before(*o.Source.FirstSeen)) {
				c.Observations[i].Source.FirstSeen = first
			}
			return
		}
	}
	c.Observations = append(c.Observations, o)
}

// Deduplicator assigns candidates to clusters. It is not safe for
// concurrent use; clustering is order-sensitive and runs on one goroutine.
type Deduplicator struct {
	cfg      Config
	clusters []*Cluster
}

// New creates an empty deduplicator. Zero config fields take defaults.
func New(cfg Config) *Deduplicator {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Overlap <= 0 || cfg.Overlap > 1 {
		cfg.Overlap = def.Overlap
	}
	return &Deduplicator{cfg: cfg}
}

// Seed opens clusters for previously assembled events so later candidates
// merge into them and keep their ids. Seeds are matched before any cluster
// opened in this run.
func (d *Deduplicator) Seed(entries []model.LedgerEntry) {
	for _, e := range entries {
		if e.Event == nil {
			continue
		}
		c := &Cluster{
			Event:     e.Event.Clone(),
			Seeded:    true,
			PriorHash: e.Hash,
		}
		obs := e.Observations
		if len(obs) == 0 {
			obs = fallbackObservations(e.Event)
		}
		for _, o := range obs {
			c.observe(o)
		}
		d.clusters = append(d.clusters, c)
	}
}

// fallbackObservations attributes an event's stored metrics to its most
// recently seen source when no per-source observations were kept.
func fallbackObservations(e *model.CanonicalEvent) []model.Observation {
	if len(e.Sources) == 0 {
		return nil
	}
	src := e.Sources[0]
	for _, s := range e.Sources[1:] {
		if s.Seen().After(src.Seen()) {
			src = s
		}
	}
	return []model.Observation{{Source: src, Metrics: e.Metrics.Clone()}}
}

// Add places c into the first matching cluster or opens a new one. It
// reports whether c merged into an existing cluster.
//
// A candidate whose source (name and url) is already attached to a cluster
// of the same type rejoins that cluster before the similarity predicate is
// tried. Re-ingesting an article therefore never opens a second event, even
// when its location is unknown.
func (d *Deduplicator) Add(c model.CandidateEvent) (*Cluster, bool) {
	if cl := d.bySource(c); cl != nil {
		merge(cl, c)
		return cl, true
	}
	for _, cl := range d.clusters {
		if !d.Matches(cl.Event, c) {
			continue
		}
		merge(cl, c)
		return cl, true
	}
	cl := &Cluster{Event: model.NewCanonicalEvent(c), Merged: 1}
	cl.observe(model.ObservationOf(c))
	d.clusters = append(d.clusters, cl)
	return cl, false
}

func (d *Deduplicator) bySource(c model.CandidateEvent) *Cluster {
	for _, cl := range d.clusters {
		if cl.Event.EventType != c.IncidentType {
			continue
		}
		for _, src := range cl.Event.Sources {
			if src.Same(c.Source) {
				return cl
			}
		}
	}
	return nil
}

// Matches reports whether candidate c belongs with the cluster whose
// representative is rep.
func (d *Deduplicator) Matches(rep *model.CanonicalEvent, c model.CandidateEvent) bool {
	if rep.EventType != c.IncidentType {
		return false
	}
	dt := rep.WhenUTC.Sub(c.WhenUTC)
	if dt < 0 {
		dt = -dt
	}
	if dt > d.cfg.Window {
		return false
	}
	return LocationMatch(rep.Location.Name, c.LocationName, d.cfg.Overlap)
}

// merge folds candidate c into cl. An earlier candidate becomes the new
// representative, carrying its time and place name.
func merge(cl *Cluster, c model.CandidateEvent) {
	e := cl.Event
	e.AddSource(c.Source)
	e.AddTargets(c.Targets...)
	cl.observe(model.ObservationOf(c))
	cl.Merged++

	when := model.Timestamp(c.WhenUTC)
	if when.Before(e.WhenUTC) {
		e.WhenUTC = when
		if model.NormalizeName(c.LocationName) != model.NormalizeName(e.Location.Name) {
			e.Location = model.Location{Name: c.LocationName}
		}
	}
}

// Clusters returns clusters in creation order, seeds first.
func (d *Deduplicator) Clusters() []*Cluster {
	return d.clusters
}

// Group clusters candidates in order and returns the resulting clusters.
func Group(cands []model.CandidateEvent, cfg Config) []*Cluster {
	d := New(cfg)
	for _, c := range cands {
		d.Add(c)
	}
	return d.Clusters()
}

// Events returns the canonical events of clusters.
func Events(clusters []*Cluster) []*model.CanonicalEvent {
	out := make([]*model.CanonicalEvent, len(clusters))
	for i, c := range clusters {
		out[i] = c.Event
	}
	return out
}
