// Package otel records a machine-readable log of each pipeline run.
//
// Events are typed structs serialized as JSONL lines. The Logger writes
// events asynchronously via a buffered channel and background drain
// goroutine, so a slow disk never stalls the pipeline. An optional
// RingBuffer keeps recent events in memory for the end-of-run summary.
package otel

import (
	"encoding/json"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an event.
// Dot-delimited: "<stage>.<action>".
type EventKind string

const (
	KindRunStart    EventKind = "run.start"
	KindRunComplete EventKind = "run.complete"

	KindFetchStart    EventKind = "fetch.start"
	KindFetchComplete EventKind = "fetch.complete"
	KindFetchError    EventKind = "fetch.error"

	KindExtractReject EventKind = "extract.reject"
	KindExtractHold   EventKind = "extract.hold"

	KindClusterMerge EventKind = "cluster.merge"

	KindGeocodeMiss    EventKind = "geocode.miss"
	KindGeocodeTimeout EventKind = "geocode.timeout"

	KindAssembleReject EventKind = "assemble.reject"
	KindAssembleBump   EventKind = "assemble.bump"

	KindFeedWrite  EventKind = "feed.write"
	KindStoreError EventKind = "store.error"
)

// Event is the universal run record. Every field except Kind and Time is
// optional. Serialized as a single JSONL line.
type Event struct {
	Time    time.Time      `json:"t"`
	Level   Level          `json:"level,omitempty"`
	Kind    EventKind      `json:"kind"`
	Comp    string         `json:"comp,omitempty"`   // "pipeline", "fetch", "assemble"
	RunID   string         `json:"run_id,omitempty"` // same for every event of one run
	EventID string         `json:"event_id,omitempty"`
	Source  string         `json:"source,omitempty"`
	URL     string         `json:"url,omitempty"`
	Dur     time.Duration  `json:"-"`
	DurMs   float64        `json:"dur_ms,omitempty"` // computed from Dur at marshal time
	Count   int            `json:"count,omitempty"`
	Err     string         `json:"err,omitempty"`
	Msg     string         `json:"msg,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

// MarshalJSON implements json.Marshaler, converting Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	a := struct {
		Alias
	}{Alias: Alias(e)}
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}
