// Package places is a small built-in gazetteer of countries and their
// common aliases. The extractor uses it to find a place when no explicit
// location phrase is present, and the static geocoder uses it to resolve
// country codes.
package places

import (
	"sort"
	"strings"
)

// Country is one gazetteer entry.
type Country struct {
	Name    string
	ISO2    string
	Lat     float64
	Lon     float64
	Aliases []string // lower-case, matched as whole words
}

// Countries lists the known countries (capital or centroid coordinates).
var Countries = []Country{
	{"United States", "US", 38.90, -77.04, []string{"united states", "usa", "u.s.", "america"}},
	{"China", "CN", 39.90, 116.41, []string{"china", "beijing"}},
	{"Russia", "RU", 55.76, 37.62, []string{"russia", "moscow"}},
	{"United Kingdom", "GB", 51.51, -0.13, []string{"united kingdom", "uk", "britain", "england", "london"}},
	{"Germany", "DE", 52.52, 13.40, []string{"germany", "berlin"}},
	{"France", "FR", 48.86, 2.35, []string{"france", "paris"}},
	{"Japan", "JP", 35.68, 139.69, []string{"japan", "tokyo"}},
	{"India", "IN", 28.61, 77.21, []string{"india", "new delhi"}},
	{"Ukraine", "UA", 50.45, 30.52, []string{"ukraine", "kyiv", "kiev"}},
	{"Israel", "IL", 31.77, 35.21, []string{"israel", "tel aviv", "jerusalem"}},
	{"Palestine", "PS", 31.50, 34.47, []string{"palestine", "gaza", "west bank"}},
	{"Iran", "IR", 35.69, 51.39, []string{"iran", "tehran"}},
	{"North Korea", "KP", 39.04, 125.76, []string{"north korea", "pyongyang"}},
	{"South Korea", "KR", 37.57, 126.98, []string{"south korea", "seoul"}},
	{"Taiwan", "TW", 25.03, 121.57, []string{"taiwan", "taipei"}},
	{"Syria", "SY", 33.51, 36.29, []string{"syria", "damascus"}},
	{"Afghanistan", "AF", 34.56, 69.21, []string{"afghanistan", "kabul"}},
	{"Iraq", "IQ", 33.31, 44.36, []string{"iraq", "baghdad"}},
	{"Lebanon", "LB", 33.89, 35.50, []string{"lebanon", "beirut"}},
	{"Yemen", "YE", 15.37, 44.19, []string{"yemen", "sanaa"}},
	{"Sudan", "SD", 15.50, 32.56, []string{"sudan", "khartoum"}},
	{"Canada", "CA", 45.42, -75.70, []string{"canada", "ottawa"}},
	{"Australia", "AU", -35.28, 149.13, []string{"australia", "sydney", "canberra"}},
	{"Brazil", "BR", -15.79, -47.88, []string{"brazil", "brasilia"}},
	{"Mexico", "MX", 19.43, -99.13, []string{"mexico", "mexico city"}},
	{"Italy", "IT", 41.90, 12.50, []string{"italy", "rome"}},
	{"Spain", "ES", 40.42, -3.70, []string{"spain", "madrid"}},
	{"Turkey", "TR", 39.93, 32.86, []string{"turkey", "turkiye", "ankara", "istanbul"}},
	{"Saudi Arabia", "SA", 24.71, 46.68, []string{"saudi arabia", "riyadh"}},
	{"Egypt", "EG", 30.04, 31.24, []string{"egypt", "cairo"}},
	{"South Africa", "ZA", -25.75, 28.19, []string{"south africa", "johannesburg"}},
	{"Nigeria", "NG", 9.08, 7.40, []string{"nigeria", "abuja", "lagos"}},
	{"Kenya", "KE", -1.29, 36.82, []string{"kenya", "nairobi"}},
	{"Ethiopia", "ET", 9.03, 38.74, []string{"ethiopia", "addis ababa"}},
	{"Pakistan", "PK", 33.68, 73.05, []string{"pakistan", "islamabad", "karachi"}},
	{"Bangladesh", "BD", 23.81, 90.41, []string{"bangladesh", "dhaka"}},
	{"Indonesia", "ID", -6.21, 106.85, []string{"indonesia", "jakarta"}},
	{"Philippines", "PH", 14.60, 120.98, []string{"philippines", "manila"}},
	{"Vietnam", "VN", 21.03, 105.85, []string{"vietnam", "hanoi"}},
	{"Thailand", "TH", 13.76, 100.50, []string{"thailand", "bangkok"}},
	{"Myanmar", "MM", 19.76, 96.08, []string{"myanmar", "burma"}},
	{"Nepal", "NP", 27.72, 85.32, []string{"nepal", "kathmandu"}},
	{"Chile", "CL", -33.45, -70.67, []string{"chile", "santiago"}},
	{"Peru", "PE", -12.05, -77.04, []string{"peru", "lima"}},
	{"Colombia", "CO", 4.71, -74.07, []string{"colombia", "bogota"}},
	{"Argentina", "AR", -34.60, -58.38, []string{"argentina", "buenos aires"}},
	{"Venezuela", "VE", 10.48, -66.90, []string{"venezuela", "caracas"}},
	{"Haiti", "HT", 18.59, -72.31, []string{"haiti", "port-au-prince"}},
	{"Greece", "GR", 37.98, 23.73, []string{"greece", "athens"}},
	{"Poland", "PL", 52.23, 21.01, []string{"poland", "warsaw"}},
	{"New Zealand", "NZ", -41.29, 174.78, []string{"new zealand", "wellington"}},
}

var byAlias = func() map[string]*Country {
	m := make(map[string]*Country)
	for i := range Countries {
		c := &Countries[i]
		m[strings.ToLower(c.Name)] = c
		for _, a := range c.Aliases {
			m[a] = c
		}
	}
	return m
}()

// Lookup resolves a name or alias (case-insensitive) to a country.
func Lookup(name string) (Country, bool) {
	c, ok := byAlias[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Country{}, false
	}
	return *c, true
}

// LookupISO2 resolves a two-letter country code.
func LookupISO2(code string) (Country, bool) {
	code = strings.ToUpper(code)
	for _, c := range Countries {
		if c.ISO2 == code {
			return c, true
		}
	}
	return Country{}, false
}

// Mention is a place alias found in text.
type Mention struct {
	Country Country
	Alias   string
	Offset  int
}

// FindIn returns the earliest country mention in text. When two aliases
// start at the same offset the longer one wins, so "south africa" beats
// "south".
func FindIn(text string) (Mention, bool) {
	lower := strings.ToLower(text)
	var found []Mention
	for alias, c := range byAlias {
		if idx := indexWord(lower, alias); idx >= 0 {
			found = append(found, Mention{Country: *c, Alias: alias, Offset: idx})
		}
	}
	if len(found) == 0 {
		return Mention{}, false
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].Offset != found[j].Offset {
			return found[i].Offset < found[j].Offset
		}
		if len(found[i].Alias) != len(found[j].Alias) {
			return len(found[i].Alias) > len(found[j].Alias)
		}
		return found[i].Alias < found[j].Alias
	})
	return found[0], true
}

// ContainsWord reports whether text contains word as a whole word.
func ContainsWord(text, word string) bool {
	return indexWord(text, word) >= 0
}

// indexWord returns the offset of the first whole-word occurrence of word
// in text, or -1.
func indexWord(text, word string) int {
	from := 0
	for from <= len(text) {
		idx := strings.Index(text[from:], word)
		if idx < 0 {
			return -1
		}
		start := from + idx
		end := start + len(word)
		leftOK := start == 0 || !isAlphaNum(text[start-1])
		rightOK := end == len(text) || !isAlphaNum(text[end])
		if leftOK && rightOK {
			return start
		}
		from = start + 1
	}
	return -1
}

func isAlphaNum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
