package extract

import (
	"regexp"
	"sort"
	"strings"
)

// SubjectiveLanguageError reports denylisted tokens found in generated text.
type SubjectiveLanguageError struct {
	Tokens []string // sorted, unique
}

func (e *SubjectiveLanguageError) Error() string {
	return "subjective language: " + strings.Join(e.Tokens, ", ")
}

var wordRe = regexp.MustCompile(`[a-z']+`)

// Tokens splits s into lower-case runs of letters and apostrophes.
func Tokens(s string) []string {
	return wordRe.FindAllString(strings.ToLower(s), -1)
}

// Filter checks text against a denylist.
type Filter struct {
	deny map[string]struct{}
}

// NewFilter builds a filter from a word list.
func NewFilter(words []string) *Filter {
	f := &Filter{deny: make(map[string]struct{}, len(words))}
	for _, w := range words {
		f.deny[strings.ToLower(w)] = struct{}{}
	}
	return f
}

var defaultFilter = NewFilter(DefaultDenylist)

// Offending returns the sorted, unique denylisted tokens across texts.
func (f *Filter) Offending(texts ...string) []string {
	hits := make(map[string]struct{})
	for _, s := range texts {
		for _, tok := range Tokens(s) {
			if _, bad := f.deny[tok]; bad {
				hits[tok] = struct{}{}
			}
		}
	}
	if len(hits) == 0 {
		return nil
	}
	out := make([]string, 0, len(hits))
	for tok := range hits {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

// Check returns s unchanged when it is neutral, or a
// *SubjectiveLanguageError naming the offending tokens.
func (f *Filter) Check(s string) (string, error) {
	if bad := f.Offending(s); len(bad) > 0 {
		return "", &SubjectiveLanguageError{Tokens: bad}
	}
	return s, nil
}

// CheckNeutral checks s against the default denylist.
func CheckNeutral(s string) (string, error) {
	return defaultFilter.Check(s)
}

// ForbidSubjective returns an error when s contains a denylisted token.
func ForbidSubjective(s string) error {
	_, err := CheckNeutral(s)
	return err
}
