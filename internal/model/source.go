package model

import "time"

// SourceRef identifies one report of an event. Two refs are the same source
// when both name and url match.
type SourceRef struct {
	Name      string     `json:"name"`
	URL       string     `json:"url"`
	FirstSeen *time.Time `json:"first_seen"`
}

// NewSourceRef builds a ref first seen at the given time.
func NewSourceRef(name, url string, seen time.Time) SourceRef {
	ref := SourceRef{Name: name, URL: url}
	if !seen.IsZero() {
		ts := Timestamp(seen)
		ref.FirstSeen = &ts
	}
	return ref
}

// Seen returns the first_seen time, or the zero time when unknown.
func (s SourceRef) Seen() time.Time {
	if s.FirstSeen == nil {
		return time.Time{}
	}
	return *s.FirstSeen
}

// Same reports whether s and o identify the same source.
func (s SourceRef) Same(o SourceRef) bool {
	return s.Name == o.Name && s.URL == o.URL
}

// AddSource attaches ref to the event unless a ref with the same name and
// url is already present. Insertion order is preserved. When the duplicate
// carries an earlier first_seen, the stored ref adopts it.
func (e *CanonicalEvent) AddSource(ref SourceRef) bool {
	for i := range e.Sources {
		if !e.Sources[i].Same(ref) {
			continue
		}
		if ref.FirstSeen != nil && (e.Sources[i].FirstSeen == nil || ref.FirstSeen.Before(*e.Sources[i].FirstSeen)) {
			ts := *ref.FirstSeen
			e.Sources[i].FirstSeen = &ts
		}
		return false
	}
	if ref.FirstSeen != nil {
		ts := Timestamp(*ref.FirstSeen)
		ref.FirstSeen = &ts
	}
	e.Sources = append(e.Sources, ref)
	return true
}

// DistinctSources counts refs by (name, url). Two articles from one outlet
// are two sources.
func DistinctSources(refs []SourceRef) int {
	type key struct{ name, url string }
	seen := make(map[key]struct{}, len(refs))
	for _, r := range refs {
		seen[key{r.Name, r.URL}] = struct{}{}
	}
	return len(seen)
}

// LatestSeen returns the most recent first_seen among refs.
func LatestSeen(refs []SourceRef) time.Time {
	var latest time.Time
	for _, r := range refs {
		if t := r.Seen(); t.After(latest) {
			latest = t
		}
	}
	return latest
}
