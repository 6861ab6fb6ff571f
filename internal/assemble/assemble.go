// Package assemble turns verified events into the published feed.
//
// Assembly geocodes events that lack coordinates, validates each event
// against the Go-level invariants and the CUE event schema, assigns
// deterministic ids, versions events against the previously published
// content, and orders the feed by when_utc then id. Invalid events are
// excluded and reported; they never abort the run.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jinxlover/material-news/internal/extract"
	"github.com/jinxlover/material-news/internal/geocode"
	"github.com/jinxlover/material-news/internal/logging"
	"github.com/jinxlover/material-news/internal/model"
	"github.com/jinxlover/material-news/internal/otel"
	"github.com/jinxlover/material-news/internal/schema"
	"github.com/jinxlover/material-news/internal/work"
)

// Geocoder resolves place names. *geocode.Cache satisfies it. Errors are
// informational; the returned info is used either way.
type Geocoder interface {
	Lookup(ctx context.Context, name string) (model.LocationInfo, error)
}

// SchemaViolation excludes one event from the feed.
type SchemaViolation struct {
	EventID string
	Field   string
	Reason  string
}

func (v *SchemaViolation) Error() string {
	if v.Field == "" {
		return fmt.Sprintf("event %s: %s", v.EventID, v.Reason)
	}
	return fmt.Sprintf("event %s: %s: %s", v.EventID, v.Field, v.Reason)
}

// Feed is the result of one assembly.
type Feed struct {
	Events   []*model.CanonicalEvent
	Rejected []*SchemaViolation

	New        int // events published for the first time
	Bumped     int // events whose content changed since the prior run
	Unresolved int // geocoding attempts that left the location unresolved
}

// Assembler builds feeds. It is safe to reuse across runs.
type Assembler struct {
	geocoder  Geocoder
	validator *schema.Validator
	neutral   *extract.Filter
	workers   int
	now       func() time.Time
	log       *otel.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithWorkers bounds concurrent geocoding. Zero means NumCPU.
func WithWorkers(n int) Option { return func(a *Assembler) { a.workers = n } }

// WithClock sets the clock used for updated_at on changed events.
func WithClock(now func() time.Time) Option { return func(a *Assembler) { a.now = now } }

// WithNeutralFilter sets the denylist enforced on headlines and location
// names. It should match the extractor's.
func WithNeutralFilter(f *extract.Filter) Option { return func(a *Assembler) { a.neutral = f } }

// WithEventLog records geocoding and rejection events.
func WithEventLog(l *otel.Logger) Option { return func(a *Assembler) { a.log = l } }

// New creates an Assembler. A nil geocoder disables geocoding.
func New(g Geocoder, v *schema.Validator, opts ...Option) *Assembler {
	a := &Assembler{geocoder: g, validator: v, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds the feed from events. prior maps the id of each
// previously published event to its content hash. The input events are not
// modified.
func (a *Assembler) Assemble(ctx context.Context, events []*model.CanonicalEvent, prior map[string]string) *Feed {
	feed := &Feed{}
	batch := make([]*model.CanonicalEvent, 0, len(events))
	for _, e := range events {
		if e == nil {
			continue
		}
		cp := e.Clone()
		normalize(cp)
		batch = append(batch, cp)
	}

	feed.Unresolved = a.geocode(ctx, batch)
	AssignIDs(batch)

	for _, e := range batch {
		stamped := a.stamp(e, prior)
		if viols := a.validate(e); len(viols) > 0 {
			for _, v := range viols {
				logging.Warn("Event rejected", "id", v.EventID, "field", v.Field, "reason", v.Reason)
				a.log.Emit(otel.Event{
					Level:   otel.LevelWarn,
					Kind:    otel.KindAssembleReject,
					Comp:    "assemble",
					EventID: v.EventID,
					Err:     v.Reason,
					Extra:   map[string]any{"field": v.Field},
				})
			}
			feed.Rejected = append(feed.Rejected, viols...)
			continue
		}
		switch stamped {
		case stampNew:
			feed.New++
		case stampBumped:
			feed.Bumped++
			a.log.Emit(otel.Event{
				Level:   otel.LevelInfo,
				Kind:    otel.KindAssembleBump,
				Comp:    "assemble",
				EventID: e.ID,
				Extra:   map[string]any{"version": e.Version},
			})
		}
		feed.Events = append(feed.Events, e)
	}

	Sort(feed.Events)
	return feed
}

// normalize fills defaults that the schema requires to be non-null.
func normalize(e *model.CanonicalEvent) {
	if len(e.Actors) == 0 {
		e.Actors = []string{model.UnknownActor}
	}
	if e.Targets == nil {
		e.Targets = []string{}
	}
	if e.Sources == nil {
		e.Sources = []model.SourceRef{}
	}
	if e.Location.Name == "" {
		e.Location.Name = model.UnknownLocation
	}
	if e.Method == "" {
		e.Method = model.MethodRule
	}
	e.WhenUTC = model.Timestamp(e.WhenUTC)
	e.UpdatedAt = model.Timestamp(e.UpdatedAt)
}

// geocode fills coordinates for events that lack them and returns the
// number of lookups that stayed unresolved.
func (a *Assembler) geocode(ctx context.Context, events []*model.CanonicalEvent) int {
	if a.geocoder == nil {
		return 0
	}
	var pending []*model.CanonicalEvent
	for _, e := range events {
		if !e.Location.HasCoordinates() && e.Location.Name != model.UnknownLocation {
			pending = append(pending, e)
		}
	}
	if len(pending) == 0 {
		return 0
	}

	results, _ := work.Map(ctx, a.workers, work.TypeGeocode, pending,
		func(ctx context.Context, e *model.CanonicalEvent) (model.LocationInfo, error) {
			return a.geocoder.Lookup(ctx, e.Location.Name)
		})

	unresolved := 0
	for i, r := range results {
		e := pending[i]
		e.Location.Merge(r.Value)
		if r.Err == nil {
			continue
		}
		unresolved++
		kind, level := otel.KindGeocodeMiss, otel.LevelDebug
		if errors.Is(r.Err, context.DeadlineExceeded) {
			kind, level = otel.KindGeocodeTimeout, otel.LevelWarn
			logging.Warn("Geocoder timed out", "location", e.Location.Name)
		} else if !errors.Is(r.Err, geocode.ErrNotFound) {
			level = otel.LevelWarn
			logging.Warn("Geocoder failed", "location", e.Location.Name, "error", r.Err)
		}
		a.log.Emit(otel.Event{
			Level: level,
			Kind:  kind,
			Comp:  "assemble",
			Err:   r.Err.Error(),
			Extra: map[string]any{"location": e.Location.Name},
		})
	}
	return unresolved
}

// AssignIDs gives events without an id their deterministic one. Ids already
// in use are kept. New events that derive the same id are suffixed _2, _3,
// ... in order of their first source (name, then url), so the assignment
// does not depend on arrival order.
func AssignIDs(events []*model.CanonicalEvent) {
	used := make(map[string]bool, len(events))
	var pending []*model.CanonicalEvent
	for _, e := range events {
		if e.ID != "" {
			used[e.ID] = true
			continue
		}
		pending = append(pending, e)
	}

	derived := make(map[*model.CanonicalEvent]string, len(pending))
	for _, e := range pending {
		derived[e] = model.EventID(e)
	}
	sort.SliceStable(pending, func(i, j int) bool {
		a, b := pending[i], pending[j]
		if derived[a] != derived[b] {
			return derived[a] < derived[b]
		}
		return sourceKey(a) < sourceKey(b)
	})

	for _, e := range pending {
		id := derived[e]
		for n := 2; used[id]; n++ {
			id = fmt.Sprintf("%s_%d", derived[e], n)
		}
		used[id] = true
		e.ID = id
	}
}

func sourceKey(e *model.CanonicalEvent) string {
	if len(e.Sources) == 0 {
		return ""
	}
	return e.Sources[0].Name + "\x00" + e.Sources[0].URL
}

type stampResult int

const (
	stampKept stampResult = iota
	stampNew
	stampBumped
)

// stamp sets version and updated_at. Unchanged content keeps both; changed
// content bumps the version; new events start at version 1.
func (a *Assembler) stamp(e *model.CanonicalEvent, prior map[string]string) stampResult {
	seen := model.Timestamp(model.LatestSeen(e.Sources))
	if seen.IsZero() {
		seen = e.WhenUTC
	}

	prevHash, ok := prior[e.ID]
	if !ok {
		if e.Version < 1 {
			e.Version = 1
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = seen
		}
		if e.Version == 1 {
			return stampNew
		}
		return stampKept
	}
	if model.ContentHash(e) == prevHash {
		return stampKept
	}
	e.Version++
	if e.Version < 2 {
		e.Version = 2
	}
	updated := model.Timestamp(a.now())
	if seen.After(updated) {
		updated = seen
	}
	e.UpdatedAt = updated
	return stampBumped
}

// Sort orders events by when_utc, then id.
func Sort(events []*model.CanonicalEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].WhenUTC.Equal(events[j].WhenUTC) {
			return events[i].WhenUTC.Before(events[j].WhenUTC)
		}
		return events[i].ID < events[j].ID
	})
}
