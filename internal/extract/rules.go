package extract

import (
	"regexp"

	"github.com/jinxlover/material-news/internal/model"
)

// IncidentRule maps keywords to an incident type. A rule matches when any
// keyword occurs in the lower-cased text as a substring.
type IncidentRule struct {
	Type     model.IncidentType
	Keywords []string
}

// MetricRule captures one number from text. Group is the submatch index
// holding the number.
type MetricRule struct {
	Name    string
	Pattern *regexp.Regexp
	Group   int
}

// TargetRule tags an event with a target when any keyword appears as a
// whole word.
type TargetRule struct {
	Target   string
	Keywords []string
}

// DefaultIncidentRules is checked in order; the first match wins.
var DefaultIncidentRules = []IncidentRule{
	{model.Airstrike, []string{"airstrike"}},
	{model.Explosion, []string{"explosion"}},
	{model.Earthquake, []string{"earthquake"}},
	{model.Fire, []string{"fire"}},
	{model.Flood, []string{"flood"}},
	{model.Shooting, []string{"shooting"}},
	{model.Attack, []string{"attack"}},
	{model.Derailment, []string{"derailment"}},
}

const qualifier = `(?:people|civilians|workers|soldiers)`

// Within one metric the earliest match in the text wins; rules starting at
// the same offset resolve in table order.
var (
	DefaultKilledRules = []MetricRule{
		{"n-killed", regexp.MustCompile(`(?i)\b(\d+)\s+` + qualifier + `?\s*killed\b`), 1},
		{"kills-n", regexp.MustCompile(`(?i)\bkills\s*(\d+)\s*` + qualifier + `?`), 1},
	}
	DefaultInjuredRules = []MetricRule{
		{"n-injured", regexp.MustCompile(`(?i)\b(\d+)\s+injur(?:ed|ies)\b`), 1},
		{"injures-n", regexp.MustCompile(`(?i)\binjures\s*(\d+)\s*(?:people|civilians|workers|soldiers|others)?`), 1},
	}
	DefaultMagnitudeRules = []MetricRule{
		{"m-n", regexp.MustCompile(`(?i)\bm(?:agnitude)?\s*(\d+(?:\.\d+)?)`), 1},
		{"n-magnitude", regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)[\s-]*magnitude\b`), 1},
	}
)

// DefaultTargetRules is applied in order; each target is reported once.
var DefaultTargetRules = []TargetRule{
	{"factory", []string{"factory", "factories"}},
	{"plant", []string{"plant", "power plant"}},
	{"refinery", []string{"refinery"}},
	{"warehouse", []string{"warehouse"}},
	{"mine", []string{"mine", "coal mine"}},
	{"school", []string{"school", "schools"}},
	{"hospital", []string{"hospital", "hospitals", "clinic"}},
	{"market", []string{"market", "marketplace", "bazaar"}},
	{"place of worship", []string{"mosque", "church", "temple", "synagogue"}},
	{"residential building", []string{"apartment", "apartment block", "residential building", "homes", "houses"}},
	{"train", []string{"train", "railway", "rail line"}},
	{"bus", []string{"bus"}},
	{"airport", []string{"airport"}},
	{"port", []string{"port", "harbour", "harbor"}},
	{"bridge", []string{"bridge"}},
	{"pipeline", []string{"pipeline"}},
}

// DefaultDenylist is the set of subjective words a generated headline or
// extracted field may not contain.
var DefaultDenylist = []string{
	"massive",
	"brutal",
	"tragic",
	"shocking",
	"controversial",
	"heinous",
	"horrific",
	"devastating",
}
