// Package verify scores canonical events by corroboration and reconciles
// metrics that sources report differently.
package verify

import (
	"strings"

	"github.com/jinxlover/material-news/internal/model"
)

// Scorer computes confidence from an event's final source set. Scores must
// lie in [0,1] and never decrease when a distinct source is added.
type Scorer interface {
	Score(sources []model.SourceRef) float64
}

// Baseline confidence levels.
const (
	SingleSource  = 0.4
	Corroborated  = 0.6
	DefaultWeight = 0.4
)

// BaselineScorer scores 0.6 when at least two distinct sources (name and
// url) report the event, 0.4 otherwise. A second article from the same
// outlet corroborates.
type BaselineScorer struct{}

func (BaselineScorer) Score(sources []model.SourceRef) float64 {
	if model.DistinctSources(sources) >= 2 {
		return Corroborated
	}
	return SingleSource
}

// WeightedScorer combines per-outlet credibility weights as a noisy-OR,
// 1 - Π(1 - w), over distinct outlets, since credibility belongs to the
// outlet. The result never falls below the baseline score for the same
// sources.
type WeightedScorer struct {
	Weights map[string]float64 // keyed by lower-case source name
	Default float64            // weight of unlisted sources
}

// NewWeightedScorer normalizes weights into [0,1].
func NewWeightedScorer(weights map[string]float64, def float64) *WeightedScorer {
	w := make(map[string]float64, len(weights))
	for name, v := range weights {
		w[strings.ToLower(name)] = clamp01(v)
	}
	if def <= 0 {
		def = DefaultWeight
	}
	return &WeightedScorer{Weights: w, Default: clamp01(def)}
}

func (s *WeightedScorer) Score(sources []model.SourceRef) float64 {
	seen := make(map[string]bool)
	miss := 1.0
	for _, src := range sources {
		name := strings.ToLower(src.Name)
		if seen[name] {
			continue
		}
		seen[name] = true
		w, ok := s.Weights[name]
		if !ok {
			w = s.Default
		}
		miss *= 1 - w
	}
	return max(clamp01(1-miss), BaselineScorer{}.Score(sources))
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
