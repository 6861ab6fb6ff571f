// Package model defines the records that flow through the material news
// pipeline: raw feed text, per-source candidate events, and the merged,
// versioned canonical events published in the output feed.
package model

import (
	"strings"
	"time"
)

// Method values describe how an event was produced.
const (
	MethodRule = "rule" // pattern-based extraction
)

// UnknownActor is the default actor when none is extracted.
const UnknownActor = "Unknown"

// UnknownLocation is used when no place name could be extracted.
const UnknownLocation = "Unknown"

// RawItem is one unit of feed text produced by the Fetcher.
type RawItem struct {
	SourceName  string    `json:"source_name"`
	URL         string    `json:"url"`
	Text        string    `json:"text"`
	RetrievedAt time.Time `json:"retrieved_at"`

	// Published is the feed's own timestamp, when it carries one.
	Published time.Time `json:"published,omitempty"`
	// Location is an optional place hint supplied by structured hazard feeds.
	Location string `json:"location,omitempty"`
}

// Metrics holds the numeric facts of an event. Nil means "not reported".
type Metrics struct {
	Killed        *int     `json:"killed"`
	Injured       *int     `json:"injured"`
	Magnitude     *float64 `json:"magnitude"`
	AreaBurnedKm2 *float64 `json:"area_burned_km2"`
}

// Empty reports whether no metric is present.
func (m Metrics) Empty() bool {
	return m.Killed == nil && m.Injured == nil && m.Magnitude == nil && m.AreaBurnedKm2 == nil
}

// CandidateEvent is an unmerged extraction from a single RawItem.
type CandidateEvent struct {
	IncidentType IncidentType
	Headline     string
	Metrics      Metrics
	LocationName string
	Targets      []string
	WhenUTC      time.Time
	Source       SourceRef
}

// Observation is one source's report of an event's metrics, kept
// unreconciled until the Verifier runs.
type Observation struct {
	Source  SourceRef `json:"source"`
	Metrics Metrics   `json:"metrics"`
}

// ObservationOf returns the metric observation carried by a candidate.
func ObservationOf(c CandidateEvent) Observation {
	return Observation{Source: c.Source, Metrics: c.Metrics}
}

// LedgerEntry is an assembled event as remembered between runs, with the
// per-source observations its metrics were reconciled from.
type LedgerEntry struct {
	Event        *CanonicalEvent
	Observations []Observation
	Hash         string
}

// Location is the place an event happened. Coordinates and codes are filled
// in by the Geocoder and stay nil when it cannot resolve the name.
type Location struct {
	Name   string   `json:"name"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	ISO2   *string  `json:"iso2"`
	Admin1 *string  `json:"admin1"`
}

// HasCoordinates reports whether lat and lon are both set.
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lon != nil
}

// Merge copies the resolved fields of info into l, leaving fields that info
// could not resolve untouched.
func (l *Location) Merge(info LocationInfo) {
	if info.Lat != nil && info.Lon != nil {
		l.Lat, l.Lon = info.Lat, info.Lon
	}
	if info.ISO2 != nil {
		iso := strings.ToUpper(*info.ISO2)
		l.ISO2 = &iso
	}
	if info.Admin1 != nil {
		l.Admin1 = info.Admin1
	}
}

// LocationInfo is the Geocoder's best-effort answer for a place name.
type LocationInfo struct {
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
	ISO2   *string  `json:"iso2"`
	Admin1 *string  `json:"admin1"`
}

// Resolved reports whether any field was resolved.
func (i LocationInfo) Resolved() bool {
	return i.Lat != nil || i.Lon != nil || i.ISO2 != nil || i.Admin1 != nil
}

// CanonicalEvent is the deduplicated, reconciled record published in the
// feed. Field order matches the serialized schema.
type CanonicalEvent struct {
	ID         string       `json:"id"`
	EventType  IncidentType `json:"event_type"`
	Headline   string       `json:"headline"`
	Actors     []string     `json:"actors"`
	Targets    []string     `json:"targets"`
	Location   Location     `json:"location"`
	WhenUTC    time.Time    `json:"when_utc"`
	Metrics    Metrics      `json:"metrics"`
	Sources    []SourceRef  `json:"sources"`
	Confidence float64      `json:"confidence"`
	Notes      *string      `json:"notes"`
	UpdatedAt  time.Time    `json:"updated_at"`
	Method     string       `json:"method"`
	Version    int          `json:"version"`
}

// NewCanonicalEvent opens a canonical event from its first candidate.
func NewCanonicalEvent(c CandidateEvent) *CanonicalEvent {
	e := &CanonicalEvent{
		EventType: c.IncidentType,
		Headline:  c.Headline,
		Actors:    []string{UnknownActor},
		Targets:   []string{},
		Location:  Location{Name: c.LocationName},
		WhenUTC:   Timestamp(c.WhenUTC),
		Metrics:   c.Metrics,
		Method:    MethodRule,
		Version:   1,
	}
	e.AddTargets(c.Targets...)
	e.AddSource(c.Source)
	return e
}

// AddTargets appends targets not already present, keeping first-seen order.
func (e *CanonicalEvent) AddTargets(targets ...string) {
	e.Targets = appendUnique(e.Targets, targets...)
}

// AddActors appends actors not already present. The "Unknown" placeholder
// is dropped once a real actor is known.
func (e *CanonicalEvent) AddActors(actors ...string) {
	for _, a := range actors {
		if a == "" || a == UnknownActor {
			continue
		}
		if len(e.Actors) == 1 && e.Actors[0] == UnknownActor {
			e.Actors = e.Actors[:0]
		}
		e.Actors = appendUnique(e.Actors, a)
	}
	if len(e.Actors) == 0 {
		e.Actors = []string{UnknownActor}
	}
}

// Clone returns a deep copy of e.
func (e *CanonicalEvent) Clone() *CanonicalEvent {
	cp := *e
	cp.Actors = append([]string(nil), e.Actors...)
	cp.Targets = append([]string(nil), e.Targets...)
	cp.Sources = append([]SourceRef(nil), e.Sources...)
	cp.Metrics = e.Metrics.Clone()
	cp.Location = Location{
		Name:   e.Location.Name,
		Lat:    cloneFloat(e.Location.Lat),
		Lon:    cloneFloat(e.Location.Lon),
		ISO2:   cloneString(e.Location.ISO2),
		Admin1: cloneString(e.Location.Admin1),
	}
	cp.Notes = cloneString(e.Notes)
	return &cp
}

// Clone returns a copy of m that shares no pointers with it.
func (m Metrics) Clone() Metrics {
	return Metrics{
		Killed:        cloneInt(m.Killed),
		Injured:       cloneInt(m.Injured),
		Magnitude:     cloneFloat(m.Magnitude),
		AreaBurnedKm2: cloneFloat(m.AreaBurnedKm2),
	}
}

// Timestamp normalizes t to UTC with second precision, the resolution used
// in the serialized feed.
func Timestamp(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Second)
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		found := false
		for _, existing := range dst {
			if strings.EqualFold(existing, v) {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
