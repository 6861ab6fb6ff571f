package extract

import (
	"regexp"
	"strings"

	"github.com/jinxlover/material-news/internal/model"
	"github.com/jinxlover/material-news/internal/places"
)

// placeRe matches a capitalized phrase after a locative preposition, e.g.
// "in Lagos, Nigeria" or "near Port Harcourt".
var placeRe = regexp.MustCompile(`\b(?:[Ii]n|[Nn]ear|[Aa]t|[Oo]utside|[Oo]ff)\s+(?:the\s+)?(\p{Lu}[\p{L}'.-]*(?:,?\s+\p{Lu}[\p{L}'.-]*)*)`)

// notPlaces are capitalized words that follow a preposition without naming
// a place.
var notPlaces = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
	"least": true, "the": true, "a": true, "an": true, "dawn": true, "night": true,
	"noon": true, "midnight": true,
}

// Location picks the place name for an item: an explicit phrase in the
// text, then a gazetteer mention, then the feed's hint.
func Location(text, hint string) string {
	for _, m := range placeRe.FindAllStringSubmatch(text, -1) {
		if name := trimPlace(m[1]); name != "" {
			return name
		}
	}
	if m, ok := places.FindIn(text); ok {
		return m.Country.Name
	}
	if hint = strings.TrimSpace(hint); hint != "" {
		return hint
	}
	return model.UnknownLocation
}

// trimPlace cuts the phrase at the first word that is not part of a name.
func trimPlace(phrase string) string {
	words := strings.Fields(phrase)
	var kept []string
	for _, w := range words {
		bare := strings.Trim(w, ",.'-")
		if bare == "" || notPlaces[strings.ToLower(bare)] {
			break
		}
		kept = append(kept, w)
		if strings.HasSuffix(w, ".") {
			break
		}
	}
	return strings.Trim(strings.Join(kept, " "), ",.'- ")
}
