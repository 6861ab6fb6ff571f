package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinxlover/material-news/internal/model"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func openMemory(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func entry(loc string, when time.Time, killed int) model.LedgerEntry {
	e := model.NewCanonicalEvent(model.CandidateEvent{
		IncidentType: model.Explosion,
		Headline:     "Explosion.",
		Metrics:      model.Metrics{Killed: model.Int(killed)},
		LocationName: loc,
		WhenUTC:      when,
		Source:       model.NewSourceRef("wire", "https://wire.example/"+loc, when),
	})
	e.ID = model.EventID(e)
	e.UpdatedAt = when
	return model.LedgerEntry{
		Event:        e,
		Observations: []model.Observation{{Source: e.Sources[0], Metrics: e.Metrics.Clone()}},
	}
}

func TestOpenCreatesTables(t *testing.T) {
	st := openMemory(t)
	for _, table := range []string{"events", "raw_items", "review_queue"} {
		var name string
		err := st.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestOpenFileUsesWAL(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer st.Close()

	var mode string
	require.NoError(t, st.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestSaveAndLoadEvents(t *testing.T) {
	st := openMemory(t)

	later := entry("Abuja", t0.Add(time.Hour), 2)
	earlier := entry("Lagos", t0, 4)
	n, err := st.SaveEvents([]model.LedgerEntry{later, earlier})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	loaded, err := st.LoadEvents()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, earlier.Event.ID, loaded[0].Event.ID, "ordered by when_utc")
	assert.Equal(t, 4, *loaded[0].Event.Metrics.Killed)
	assert.Equal(t, model.ContentHash(earlier.Event), loaded[0].Hash)
	require.Len(t, loaded[0].Observations, 1)
	assert.Equal(t, "wire", loaded[0].Observations[0].Source.Name)
	assert.True(t, t0.Equal(loaded[0].Event.WhenUTC))
}

func TestSaveEventsUnchangedIsNoop(t *testing.T) {
	st := openMemory(t)
	e := entry("Lagos", t0, 4)

	_, err := st.SaveEvents([]model.LedgerEntry{e})
	require.NoError(t, err)
	n, err := st.SaveEvents([]model.LedgerEntry{e})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	e.Event.Version = 2
	e.Event.Metrics.Killed = model.Int(6)
	e.Hash = ""
	n, err = st.SaveEvents([]model.LedgerEntry{e})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	loaded, err := st.LoadEvents()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 2, loaded[0].Event.Version)
	assert.Equal(t, 6, *loaded[0].Event.Metrics.Killed)
}

func TestPruneEvents(t *testing.T) {
	st := openMemory(t)
	_, err := st.SaveEvents([]model.LedgerEntry{
		entry("Lagos", t0, 1),
		entry("Abuja", t0.Add(48*time.Hour), 1),
	})
	require.NoError(t, err)

	n, err := st.PruneEvents(t0.Add(24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	loaded, err := st.LoadEvents()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "Abuja", loaded[0].Event.Location.Name)
}

func TestArchiveRaw(t *testing.T) {
	st := openMemory(t)
	items := []model.RawItem{
		{SourceName: "wire", URL: "https://wire.example/1", Text: "Explosion in Lagos", RetrievedAt: t0},
		{SourceName: "wire", URL: "https://wire.example/2", Text: "Flood in Dhaka", RetrievedAt: t0.Add(time.Hour), Location: "Dhaka"},
	}

	n, err := st.ArchiveRaw(items)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = st.ArchiveRaw(items)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "duplicates are ignored")

	got, err := st.RawItemsSince(t0.Add(30 * time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Flood in Dhaka", got[0].Text)
	assert.Equal(t, "Dhaka", got[0].Location)
	assert.True(t, got[0].RetrievedAt.Equal(t0.Add(time.Hour)))
}

func TestReviewQueue(t *testing.T) {
	st := openMemory(t)
	item := model.RawItem{SourceName: "wire", URL: "https://wire.example/1", Text: "Explosion in Horrific Valley", RetrievedAt: t0}

	queued, err := st.Hold(item, []string{"horrific"})
	require.NoError(t, err)
	assert.True(t, queued)

	queued, err = st.Hold(item, []string{"horrific"})
	require.NoError(t, err)
	assert.False(t, queued)

	held, err := st.Held()
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, []string{"horrific"}, held[0].Tokens)
	assert.Equal(t, RawHash(item), held[0].Hash)

	require.NoError(t, st.Resolve(held[0].Hash))
	held, err = st.Held()
	require.NoError(t, err)
	assert.Empty(t, held)

	err = st.Resolve("missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}
