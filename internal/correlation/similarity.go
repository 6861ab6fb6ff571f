package correlation

import "github.com/jinxlover/material-news/internal/model"

// LocationMatch reports whether two free-text place names plausibly name the
// same place. Names are compared as lower-case token sets: a match is either
// containment of the smaller set in the larger ("Lagos" and "Lagos,
// Nigeria") or a Jaccard overlap of at least threshold. Unknown or empty
// names never match.
func LocationMatch(a, b string, threshold float64) bool {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return false
	}
	if contains(ta, tb) || contains(tb, ta) {
		return true
	}
	return Jaccard(ta, tb) >= threshold
}

// Jaccard returns |a∩b| / |a∪b|.
func Jaccard(a, b map[string]bool) float64 {
	intersection := 0
	for t := range a {
		if b[t] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func contains(big, small map[string]bool) bool {
	if len(small) > len(big) {
		return false
	}
	for t := range small {
		if !big[t] {
			return false
		}
	}
	return true
}

func tokenSet(name string) map[string]bool {
	norm := model.NormalizeName(name)
	if norm == "" || norm == model.NormalizeName(model.UnknownLocation) {
		return nil
	}
	set := make(map[string]bool)
	for _, t := range model.NameTokens(norm) {
		set[t] = true
	}
	return set
}
