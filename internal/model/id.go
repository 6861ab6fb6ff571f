package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// eventNamespace scopes name-based fingerprints to this feed.
var eventNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://material-news/events"))

// EventID derives the stable identifier of an event from its time, type and
// normalized location. Sources are not part of the fingerprint, so adding a
// corroborating report keeps the id.
func EventID(e *CanonicalEvent) string {
	fp := uuid.NewSHA1(eventNamespace, []byte(string(e.EventType)+"|"+NormalizeName(e.Location.Name)))
	return "evt_" + e.WhenUTC.UTC().Format("20060102T150405Z") + "_" + string(e.EventType) + "_" + fp.String()[:8]
}

// NormalizeName lower-cases s, replaces punctuation with spaces and
// collapses whitespace.
func NormalizeName(s string) string {
	return strings.Join(NameTokens(s), " ")
}

// NameTokens splits a place name into lower-case alphanumeric tokens.
func NameTokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// ContentHash fingerprints the published content of an event. Version and
// updated_at are excluded so that re-assembling unchanged input hashes the
// same.
func ContentHash(e *CanonicalEvent) string {
	cp := e.Clone()
	cp.Version = 0
	cp.UpdatedAt = time.Time{}
	data, err := json.Marshal(cp)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
