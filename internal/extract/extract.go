// Package extract turns raw feed text into candidate incident records using
// ordered rule tables, and keeps generated text free of subjective words.
package extract

import (
	"strconv"
	"strings"

	"github.com/jinxlover/material-news/internal/model"
	"github.com/jinxlover/material-news/internal/places"
)

// Extractor applies rule tables to RawItems. The zero value is not usable;
// construct with New.
type Extractor struct {
	Incidents []IncidentRule
	Killed    []MetricRule
	Injured   []MetricRule
	Magnitude []MetricRule
	Targets   []TargetRule

	filter *Filter
}

// New returns an extractor with the default rule tables.
func New() *Extractor {
	return &Extractor{
		Incidents: DefaultIncidentRules,
		Killed:    DefaultKilledRules,
		Injured:   DefaultInjuredRules,
		Magnitude: DefaultMagnitudeRules,
		Targets:   DefaultTargetRules,
		filter:    defaultFilter,
	}
}

// WithDenylist replaces the neutrality denylist.
func (x *Extractor) WithDenylist(words []string) *Extractor {
	x.filter = NewFilter(words)
	return x
}

// Filter returns the neutrality filter in use.
func (x *Extractor) Filter() *Filter {
	return x.filter
}

var defaultExtractor = New()

// Extract runs the default extractor.
func Extract(item model.RawItem) (model.CandidateEvent, error) {
	return defaultExtractor.Extract(item)
}

// Extract builds a candidate event from item. It fails only when the
// generated headline or an extracted field contains subjective language,
// in which case the error is a *SubjectiveLanguageError.
func (x *Extractor) Extract(item model.RawItem) (model.CandidateEvent, error) {
	lower := strings.ToLower(item.Text)
	typ := x.IncidentType(lower)

	var m model.Metrics
	if n, ok := firstInt(x.Killed, item.Text); ok {
		m.Killed = &n
	}
	if n, ok := firstInt(x.Injured, item.Text); ok {
		m.Injured = &n
	}
	if typ == model.Earthquake {
		if v, ok := firstFloat(x.Magnitude, item.Text); ok {
			m.Magnitude = &v
		}
	}

	headline, err := x.filter.Check(Headline(typ, m))
	if err != nil {
		return model.CandidateEvent{}, err
	}
	loc := Location(item.Text, item.Location)
	if bad := x.filter.Offending(loc); len(bad) > 0 {
		return model.CandidateEvent{}, &SubjectiveLanguageError{Tokens: bad}
	}

	when := item.Published
	if when.IsZero() {
		when = item.RetrievedAt
	}
	return model.CandidateEvent{
		IncidentType: typ,
		Headline:     headline,
		Metrics:      m,
		LocationName: loc,
		Targets:      x.targets(lower),
		WhenUTC:      model.Timestamp(when),
		Source:       model.NewSourceRef(item.SourceName, item.URL, item.RetrievedAt),
	}, nil
}

// IncidentType returns the first rule type whose keyword occurs in the
// lower-cased text, or model.Incident.
func (x *Extractor) IncidentType(lower string) model.IncidentType {
	for _, r := range x.Incidents {
		for _, k := range r.Keywords {
			if strings.Contains(lower, k) {
				return r.Type
			}
		}
	}
	return model.Incident
}

func (x *Extractor) targets(lower string) []string {
	var out []string
	for _, r := range x.Targets {
		for _, k := range r.Keywords {
			if places.ContainsWord(lower, k) {
				out = append(out, r.Target)
				break
			}
		}
	}
	return out
}

// firstMatch returns the captured text of the rule matching earliest in s.
func firstMatch(rules []MetricRule, s string) (string, bool) {
	best, bestAt := "", -1
	for _, r := range rules {
		loc := r.Pattern.FindStringSubmatchIndex(s)
		if loc == nil || len(loc) <= 2*r.Group+1 || loc[2*r.Group] < 0 {
			continue
		}
		if bestAt < 0 || loc[0] < bestAt {
			best, bestAt = s[loc[2*r.Group]:loc[2*r.Group+1]], loc[0]
		}
	}
	return best, bestAt >= 0
}

func firstInt(rules []MetricRule, s string) (int, bool) {
	raw, ok := firstMatch(rules, s)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func firstFloat(rules []MetricRule, s string) (float64, bool) {
	raw, ok := firstMatch(rules, s)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
