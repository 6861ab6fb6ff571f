// Package schema validates feed events against the published event schema.
// Validation is done with an embedded CUE definition; the equivalent JSON
// Schema document is exported for consumers of the feed.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/jinxlover/material-news/internal/model"
)

//go:embed event.cue
var eventCUE string

//go:embed event.schema.json
var jsonSchema []byte

// JSONSchema returns the draft-07 JSON Schema describing one feed event.
func JSONSchema() []byte {
	out := make([]byte, len(jsonSchema))
	copy(out, jsonSchema)
	return out
}

// Violation is one schema failure.
type Violation struct {
	Field  string // dotted path, empty for the whole document
	Reason string
}

func (v Violation) String() string {
	if v.Field == "" {
		return v.Reason
	}
	return v.Field + ": " + v.Reason
}

// Validator checks JSON documents against #Event. A cue.Context is not safe
// for concurrent use, so calls are serialized.
type Validator struct {
	mu  sync.Mutex
	ctx *cue.Context
	def cue.Value
}

// New compiles the embedded schema. An error here is systemic.
func New() (*Validator, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(eventCUE, cue.Filename("event.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("schema: compile: %w", err)
	}
	// A definition is incomplete until unified with a document, so only
	// its presence is checked here.
	def := v.LookupPath(cue.ParsePath("#Event"))
	if !def.Exists() {
		return nil, fmt.Errorf("schema: #Event not defined")
	}
	return &Validator{ctx: ctx, def: def}, nil
}

// Validate checks one JSON-encoded event.
func (v *Validator) Validate(data []byte) []Violation {
	v.mu.Lock()
	defer v.mu.Unlock()

	doc := v.ctx.CompileBytes(data, cue.Filename("event.json"))
	if err := doc.Err(); err != nil {
		return []Violation{{Reason: "invalid JSON: " + err.Error()}}
	}
	var out []Violation
	if err := v.def.Unify(doc).Validate(cue.Concrete(true), cue.All()); err != nil {
		out = violations(err)
	}
	if viol, ok := magnitudeRule(data); ok {
		out = append(out, viol)
		sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	}
	return out
}

// magnitudeRule reports a magnitude on a non-earthquake event. Documents
// whose shape is wrong are left to the CUE errors.
func magnitudeRule(data []byte) (Violation, bool) {
	var doc struct {
		EventType string `json:"event_type"`
		Metrics   struct {
			Magnitude *float64 `json:"magnitude"`
		} `json:"metrics"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return Violation{}, false
	}
	if doc.EventType == string(model.Earthquake) || doc.Metrics.Magnitude == nil {
		return Violation{}, false
	}
	return Violation{
		Field:  "metrics.magnitude",
		Reason: fmt.Sprintf("only allowed for earthquake events, got %q", doc.EventType),
	}, true
}

// ValidateEvent encodes e and validates it.
func (v *Validator) ValidateEvent(e *model.CanonicalEvent) []Violation {
	data, err := json.Marshal(e)
	if err != nil {
		return []Violation{{Reason: "encode: " + err.Error()}}
	}
	return v.Validate(data)
}

func violations(err error) []Violation {
	seen := make(map[string]bool)
	var out []Violation
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		path := e.Path()
		for len(path) > 0 && strings.HasPrefix(path[0], "#") {
			path = path[1:]
		}
		viol := Violation{
			Field:  strings.Join(path, "."),
			Reason: fmt.Sprintf(format, args...),
		}
		if key := viol.String(); !seen[key] {
			seen[key] = true
			out = append(out, viol)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

// Result is the validation outcome for one element of a feed.
type Result struct {
	Index      int
	ID         string
	Violations []Violation
}

// ValidateFeed validates every element of a JSON array of events and
// returns results for the failing ones. It errors only when data is not a
// JSON array.
func (v *Validator) ValidateFeed(data []byte) ([]Result, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("schema: feed is not a JSON array: %w", err)
	}
	var failed []Result
	for i, raw := range items {
		viols := v.Validate(raw)
		if len(viols) == 0 {
			continue
		}
		var head struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(raw, &head)
		failed = append(failed, Result{Index: i, ID: head.ID, Violations: viols})
	}
	return failed, nil
}
