package extract

import (
	"strconv"
	"strings"

	"github.com/jinxlover/material-news/internal/model"
)

// Headline composes the fixed-template headline for an incident, e.g.
// "Explosion; 4 killed; 7 injured." Clauses for absent metrics are omitted.
func Headline(t model.IncidentType, m model.Metrics) string {
	parts := []string{t.Title()}
	if m.Killed != nil {
		parts = append(parts, strconv.Itoa(*m.Killed)+" killed")
	}
	if m.Injured != nil {
		parts = append(parts, strconv.Itoa(*m.Injured)+" injured")
	}
	if m.Magnitude != nil {
		parts = append(parts, "M"+FormatMagnitude(*m.Magnitude))
	}
	return strings.Join(parts, "; ") + "."
}

// FormatMagnitude prints a magnitude with at least one decimal place.
func FormatMagnitude(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
