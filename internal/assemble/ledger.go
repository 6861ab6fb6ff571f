package assemble

import (
	"time"

	"github.com/jinxlover/material-news/internal/model"
)

// FileLedger remembers previous runs through the published feed itself. It
// is used when no SQLite ledger is configured. Per-source observations are
// not kept, so seeded metrics are attributed to the latest source.
type FileLedger struct {
	Path string
}

// LoadEvents reads the previously published feed.
func (l FileLedger) LoadEvents() ([]model.LedgerEntry, error) {
	events, err := ReadFeed(l.Path)
	if err != nil {
		return nil, err
	}
	entries := make([]model.LedgerEntry, 0, len(events))
	for _, e := range events {
		if e == nil || e.ID == "" {
			continue
		}
		entries = append(entries, model.LedgerEntry{Event: e, Hash: model.ContentHash(e)})
	}
	return entries, nil
}

// SaveEvents is a no-op; the feed write records the state.
func (FileLedger) SaveEvents(entries []model.LedgerEntry) (int, error) {
	return 0, nil
}

// PruneEvents is a no-op; retention is applied when seeding.
func (FileLedger) PruneEvents(time.Time) (int, error) {
	return 0, nil
}

// Prior maps entry ids to content hashes.
func Prior(entries []model.LedgerEntry) map[string]string {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.Event == nil || e.Event.ID == "" {
			continue
		}
		h := e.Hash
		if h == "" {
			h = model.ContentHash(e.Event)
		}
		out[e.Event.ID] = h
	}
	return out
}
