package assemble

import (
	"fmt"
	"math"

	"github.com/jinxlover/material-news/internal/extract"
	"github.com/jinxlover/material-news/internal/model"
)

var defaultNeutral = extract.New().Filter()

// validate returns every violation of e, checking the Go-level invariants
// first and the CUE schema second.
func (a *Assembler) validate(e *model.CanonicalEvent) []*SchemaViolation {
	viols := CheckInvariants(e, a.neutral)
	if a.validator != nil {
		for _, v := range a.validator.ValidateEvent(e) {
			viols = append(viols, &SchemaViolation{EventID: e.ID, Field: v.Field, Reason: v.Reason})
		}
	}
	return dedupe(viols)
}

// CheckInvariants checks the properties of a canonical event that the
// schema cannot express or that must hold before it is serialized. Headline
// and location name are checked against neutral; nil uses the default
// denylist.
func CheckInvariants(e *model.CanonicalEvent, neutral *extract.Filter) []*SchemaViolation {
	var out []*SchemaViolation
	add := func(field, format string, args ...any) {
		out = append(out, &SchemaViolation{EventID: e.ID, Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	if e.ID == "" {
		add("id", "missing")
	}
	if !e.EventType.Valid() {
		add("event_type", "unknown incident type %q", e.EventType)
	}
	if neutral == nil {
		neutral = defaultNeutral
	}
	if e.Headline == "" {
		add("headline", "missing")
	} else if bad := neutral.Offending(e.Headline); len(bad) > 0 {
		add("headline", "subjective language: %v", bad)
	}
	if bad := neutral.Offending(e.Location.Name); len(bad) > 0 {
		add("location.name", "subjective language: %v", bad)
	}
	if math.IsNaN(e.Confidence) || e.Confidence < 0 || e.Confidence > 1 {
		add("confidence", "%v out of [0,1]", e.Confidence)
	}
	if len(e.Sources) == 0 {
		add("sources", "at least one source required")
	}
	for i, s := range e.Sources {
		if s.Name == "" || s.URL == "" {
			add(fmt.Sprintf("sources.%d", i), "name and url required")
		}
		for j := 0; j < i; j++ {
			if e.Sources[j].Same(s) {
				add(fmt.Sprintf("sources.%d", i), "duplicate of sources.%d", j)
				break
			}
		}
	}
	if k := e.Metrics.Killed; k != nil && *k < 0 {
		add("metrics.killed", "negative")
	}
	if n := e.Metrics.Injured; n != nil && *n < 0 {
		add("metrics.injured", "negative")
	}
	if e.Metrics.Magnitude != nil && e.EventType != model.Earthquake {
		add("metrics.magnitude", "only allowed for earthquakes")
	}
	if e.WhenUTC.IsZero() {
		add("when_utc", "missing")
	}
	return out
}

func dedupe(viols []*SchemaViolation) []*SchemaViolation {
	seen := make(map[string]bool, len(viols))
	out := viols[:0]
	for _, v := range viols {
		key := v.Field + "\x00" + v.Reason
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}
