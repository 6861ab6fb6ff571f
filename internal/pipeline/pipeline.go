// Package pipeline runs one batch of raw items through extraction,
// deduplication, verification and assembly, and records the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jinxlover/material-news/internal/assemble"
	"github.com/jinxlover/material-news/internal/correlation"
	"github.com/jinxlover/material-news/internal/extract"
	"github.com/jinxlover/material-news/internal/logging"
	"github.com/jinxlover/material-news/internal/model"
	"github.com/jinxlover/material-news/internal/otel"
	"github.com/jinxlover/material-news/internal/verify"
	"github.com/jinxlover/material-news/internal/work"
)

// Neutrality policies for items whose extraction uses subjective language.
const (
	PolicySkip = "skip" // report and drop
	PolicyHold = "hold" // keep in the review queue
)

// Ledger remembers assembled events between runs.
type Ledger interface {
	LoadEvents() ([]model.LedgerEntry, error)
	SaveEvents(entries []model.LedgerEntry) (int, error)
}

// Pruner drops ledger events older than a cutoff.
type Pruner interface {
	PruneEvents(cutoff time.Time) (int, error)
}

// Reviewer holds rejected items for manual review.
type Reviewer interface {
	Hold(item model.RawItem, tokens []string) (bool, error)
}

// Archiver keeps every ingested raw item.
type Archiver interface {
	ArchiveRaw(items []model.RawItem) (int, error)
}

// Runner wires the pipeline stages. Only Extractor, Verifier and Assembler
// are required.
type Runner struct {
	Extractor *extract.Extractor
	Dedup     correlation.Config
	Verifier  *verify.Verifier
	Assembler *assemble.Assembler

	Ledger  Ledger   // seeds deduplication; nil starts fresh
	Review  Reviewer // required for PolicyHold
	Archive Archiver

	Policy    string
	Retention time.Duration // seeded events older than this are dropped; 0 keeps all
	Output    string        // feed path; empty skips the write
	Workers   int

	Now func() time.Time
	Log *otel.Logger
}

// Rejection is one raw item refused for subjective language.
type Rejection struct {
	Source string
	URL    string
	Tokens []string
	Held   bool
}

// Report summarizes a run.
type Report struct {
	Items      int
	Archived   int
	Candidates int
	Rejected   []Rejection
	Failed     int // extraction errors other than neutrality
	Seeded     int
	Clusters   int
	Merged     int
	Verified   int

	Feed     *assemble.Feed
	Saved    int
	Pruned   int
	Duration time.Duration
}

// Run processes items to completion. Per-item problems are reported and
// logged; only systemic failures (ledger unreadable, feed not writable)
// return an error.
func (r *Runner) Run(ctx context.Context, items []model.RawItem) (*Report, error) {
	start := time.Now()
	now := r.now()
	rep := &Report{Items: len(items)}
	r.Log.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindRunStart, Comp: "pipeline", Count: len(items)})

	if r.Archive != nil && len(items) > 0 {
		n, err := r.Archive.ArchiveRaw(items)
		if err != nil {
			r.storeError("archive raw items", err)
		}
		rep.Archived = n
	}

	cands := r.extract(ctx, items, rep)

	entries, err := r.seedEntries(now)
	if err != nil {
		return nil, err
	}
	rep.Seeded = len(entries)

	dedup := correlation.New(r.Dedup)
	dedup.Seed(entries)
	for _, c := range cands {
		cl, merged := dedup.Add(c)
		if merged {
			rep.Merged++
			r.Log.Emit(otel.Event{
				Level:   otel.LevelDebug,
				Kind:    otel.KindClusterMerge,
				Comp:    "pipeline",
				EventID: cl.Event.ID,
				Source:  c.Source.Name,
				URL:     c.Source.URL,
			})
		}
	}
	clusters := dedup.Clusters()
	rep.Clusters = len(clusters)

	for _, cl := range clusters {
		if !cl.Touched() {
			continue
		}
		r.Verifier.Reconcile(cl.Event, cl.Observations)
		rep.Verified++
	}

	events := correlation.Events(clusters)
	assemble.AssignIDs(events)
	feed := r.Assembler.Assemble(ctx, events, assemble.Prior(entries))
	rep.Feed = feed

	if r.Output != "" {
		if err := assemble.WriteFeed(r.Output, feed.Events); err != nil {
			r.Log.Error(otel.KindFeedWrite, "pipeline", err)
			return nil, fmt.Errorf("write feed: %w", err)
		}
		r.Log.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindFeedWrite, Comp: "pipeline", URL: r.Output, Count: len(feed.Events)})
	}

	if r.Ledger != nil {
		rep.Saved, rep.Pruned = r.record(clusters, feed, now)
	}

	rep.Duration = time.Since(start)
	r.Log.Emit(otel.Event{
		Level: otel.LevelInfo,
		Kind:  otel.KindRunComplete,
		Comp:  "pipeline",
		Dur:   rep.Duration,
		Count: len(feed.Events),
		Extra: map[string]any{
			"candidates": rep.Candidates,
			"rejected":   len(rep.Rejected),
			"merged":     rep.Merged,
			"new":        feed.New,
			"bumped":     feed.Bumped,
			"invalid":    len(feed.Rejected),
		},
	})
	logging.Info("Run complete",
		"items", rep.Items,
		"candidates", rep.Candidates,
		"rejected", len(rep.Rejected),
		"clusters", rep.Clusters,
		"events", len(feed.Events),
		"new", feed.New,
		"bumped", feed.Bumped,
		"invalid", len(feed.Rejected),
		"duration", rep.Duration.Round(time.Millisecond))
	return rep, nil
}

// extract runs the extractor over items in parallel and applies the
// neutrality policy. Candidates keep item order.
func (r *Runner) extract(ctx context.Context, items []model.RawItem, rep *Report) []model.CandidateEvent {
	results, _ := work.Map(ctx, r.Workers, work.TypeExtract, items,
		func(_ context.Context, item model.RawItem) (model.CandidateEvent, error) {
			return r.Extractor.Extract(item)
		})

	cands := make([]model.CandidateEvent, 0, len(items))
	for i, res := range results {
		if res.Err == nil {
			cands = append(cands, res.Value)
			continue
		}
		item := items[i]
		var sle *extract.SubjectiveLanguageError
		if !errors.As(res.Err, &sle) {
			rep.Failed++
			logging.Warn("Extraction failed", "source", item.SourceName, "url", item.URL, "error", res.Err)
			continue
		}
		rep.Rejected = append(rep.Rejected, r.reject(item, sle.Tokens))
	}
	rep.Candidates = len(cands)
	return cands
}

func (r *Runner) reject(item model.RawItem, tokens []string) Rejection {
	rej := Rejection{Source: item.SourceName, URL: item.URL, Tokens: tokens}
	kind := otel.KindExtractReject

	if r.Policy == PolicyHold {
		if r.Review == nil {
			logging.Warn("Hold policy without a review queue, skipping item", "source", item.SourceName)
		} else if _, err := r.Review.Hold(item, tokens); err != nil {
			r.storeError("hold item", err)
		} else {
			rej.Held = true
			kind = otel.KindExtractHold
		}
	}

	logging.Info("Item rejected for subjective language",
		"source", item.SourceName, "url", item.URL, "tokens", tokens, "held", rej.Held)
	r.Log.Emit(otel.Event{
		Level:  otel.LevelWarn,
		Kind:   kind,
		Comp:   "extract",
		Source: item.SourceName,
		URL:    item.URL,
		Extra:  map[string]any{"tokens": tokens},
	})
	return rej
}

// seedEntries loads the ledger and drops entries outside the retention
// horizon.
func (r *Runner) seedEntries(now time.Time) ([]model.LedgerEntry, error) {
	if r.Ledger == nil {
		return nil, nil
	}
	entries, err := r.Ledger.LoadEvents()
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if r.Retention <= 0 {
		return entries, nil
	}
	cutoff := now.Add(-r.Retention)
	kept := entries[:0]
	for _, e := range entries {
		if e.Event != nil && e.Event.WhenUTC.Before(cutoff) {
			continue
		}
		kept = append(kept, e)
	}
	return kept, nil
}

// record saves the published events with their observations and prunes
// the ledger. Failures are logged; the feed is already written.
func (r *Runner) record(clusters []*correlation.Cluster, feed *assemble.Feed, now time.Time) (saved, pruned int) {
	obs := make(map[string][]model.Observation, len(clusters))
	for _, cl := range clusters {
		obs[cl.Event.ID] = cl.Observations
	}
	entries := make([]model.LedgerEntry, 0, len(feed.Events))
	for _, e := range feed.Events {
		entries = append(entries, model.LedgerEntry{
			Event:        e,
			Observations: obs[e.ID],
			Hash:         model.ContentHash(e),
		})
	}

	saved, err := r.Ledger.SaveEvents(entries)
	if err != nil {
		r.storeError("save ledger", err)
	}
	if p, ok := r.Ledger.(Pruner); ok && r.Retention > 0 {
		pruned, err = p.PruneEvents(now.Add(-r.Retention))
		if err != nil {
			r.storeError("prune ledger", err)
		}
	}
	return saved, pruned
}

func (r *Runner) storeError(op string, err error) {
	logging.Error("Ledger operation failed", "op", op, "error", err)
	r.Log.Emit(otel.Event{Level: otel.LevelError, Kind: otel.KindStoreError, Comp: "pipeline", Err: err.Error(), Msg: op})
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
