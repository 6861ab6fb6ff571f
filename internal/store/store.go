// Package store provides the SQLite ledger behind the event feed: the
// assembled events of earlier runs with their per-source observations, an
// archive of ingested raw items, and a review queue for held items.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jinxlover/material-news/internal/model"
)

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates a Store at dbPath, creating tables if needed. ":memory:"
// opens a private in-process database.
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// Shared cache so every pooled connection sees the same database.
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
		if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		hash TEXT NOT NULL,
		event_type TEXT NOT NULL,
		when_utc DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		body TEXT NOT NULL,
		observations TEXT NOT NULL DEFAULT '[]'
	);

	CREATE INDEX IF NOT EXISTS idx_events_when ON events(when_utc);

	CREATE TABLE IF NOT EXISTS raw_items (
		hash TEXT PRIMARY KEY,
		source_name TEXT NOT NULL,
		url TEXT,
		text TEXT NOT NULL,
		location TEXT,
		retrieved_at DATETIME NOT NULL,
		published_at DATETIME,
		archived_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_raw_items_retrieved ON raw_items(retrieved_at);

	CREATE TABLE IF NOT EXISTS review_queue (
		item_hash TEXT PRIMARY KEY,
		source_name TEXT NOT NULL,
		url TEXT,
		text TEXT NOT NULL,
		tokens TEXT NOT NULL,
		held_at DATETIME NOT NULL,
		resolved INTEGER DEFAULT 0
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// LoadEvents returns every ledger entry ordered by when_utc, then id.
func (s *Store) LoadEvents() ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, hash, body, observations FROM events ORDER BY when_utc, id`)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var id, hash, body, obs string
		if err := rows.Scan(&id, &hash, &body, &obs); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var e model.CanonicalEvent
		if err := json.Unmarshal([]byte(body), &e); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", id, err)
		}
		entry := model.LedgerEntry{Event: &e, Hash: hash}
		if err := json.Unmarshal([]byte(obs), &entry.Observations); err != nil {
			return nil, fmt.Errorf("decode observations %s: %w", id, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// SaveEvents upserts entries in one transaction, returning how many rows
// were inserted or changed.
func (s *Store) SaveEvents(entries []model.LedgerEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO events (id, version, hash, event_type, when_utc, updated_at, body, observations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			version = excluded.version,
			hash = excluded.hash,
			event_type = excluded.event_type,
			when_utc = excluded.when_utc,
			updated_at = excluded.updated_at,
			body = excluded.body,
			observations = excluded.observations
		WHERE events.hash != excluded.hash OR events.version != excluded.version
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	changed := 0
	for _, entry := range entries {
		e := entry.Event
		if e == nil || e.ID == "" {
			continue
		}
		body, err := json.Marshal(e)
		if err != nil {
			return changed, fmt.Errorf("encode event %s: %w", e.ID, err)
		}
		obs := entry.Observations
		if obs == nil {
			obs = []model.Observation{}
		}
		obsJSON, err := json.Marshal(obs)
		if err != nil {
			return changed, fmt.Errorf("encode observations %s: %w", e.ID, err)
		}
		hash := entry.Hash
		if hash == "" {
			hash = model.ContentHash(e)
		}
		result, err := stmt.Exec(e.ID, e.Version, hash, string(e.EventType), e.WhenUTC, e.UpdatedAt, string(body), string(obsJSON))
		if err != nil {
			return changed, fmt.Errorf("save event %s: %w", e.ID, err)
		}
		if n, err := result.RowsAffected(); err == nil && n > 0 {
			changed++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return changed, nil
}

// PruneEvents deletes events whose when_utc is before cutoff.
func (s *Store) PruneEvents(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`DELETE FROM events WHERE when_utc < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	n, err := result.RowsAffected()
	return int(n), err
}

// RawHash identifies a raw item by source, url and text.
func RawHash(item model.RawItem) string {
	h := sha256.New()
	h.Write([]byte(item.SourceName))
	h.Write([]byte{0})
	h.Write([]byte(item.URL))
	h.Write([]byte{0})
	h.Write([]byte(item.Text))
	return hex.EncodeToString(h.Sum(nil))
}

// ArchiveRaw stores items, returning how many were new. Items already
// archived are ignored.
func (s *Store) ArchiveRaw(items []model.RawItem) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(items) == 0 {
		return 0, nil
	}
	stmt, err := s.db.Prepare(`
		INSERT OR IGNORE INTO raw_items (
			hash, source_name, url, text, location, retrieved_at, published_at, archived_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	newCount := 0
	for _, item := range items {
		result, err := stmt.Exec(
			RawHash(item),
			item.SourceName,
			item.URL,
			item.Text,
			item.Location,
			item.RetrievedAt.UTC(),
			item.Published.UTC(),
			now,
		)
		if err != nil {
			return newCount, err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return newCount, err
		}
		if affected > 0 {
			newCount++
		}
	}
	return newCount, nil
}

// RawItemsSince returns archived items retrieved at or after since, oldest
// first.
func (s *Store) RawItemsSince(since time.Time) ([]model.RawItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT source_name, url, text, location, retrieved_at, published_at
		FROM raw_items
		WHERE retrieved_at >= ?
		ORDER BY retrieved_at, hash
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query raw items: %w", err)
	}
	defer rows.Close()

	var items []model.RawItem
	for rows.Next() {
		var item model.RawItem
		var url, location sql.NullString
		if err := rows.Scan(&item.SourceName, &url, &item.Text, &location, &item.RetrievedAt, &item.Published); err != nil {
			return nil, err
		}
		item.URL = url.String
		item.Location = location.String
		items = append(items, item)
	}
	return items, rows.Err()
}

// HeldItem is a raw item waiting for editorial review.
type HeldItem struct {
	Hash   string
	Item   model.RawItem
	Tokens []string
	HeldAt time.Time
}

// Hold queues item for review with the tokens that blocked it. It reports
// whether the item was newly queued.
func (s *Store) Hold(item model.RawItem, tokens []string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`
		INSERT OR IGNORE INTO review_queue (item_hash, source_name, url, text, tokens, held_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, RawHash(item), item.SourceName, item.URL, item.Text, strings.Join(tokens, ","), time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("hold item: %w", err)
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// Held returns unresolved review items, oldest first.
func (s *Store) Held() ([]HeldItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT item_hash, source_name, url, text, tokens, held_at
		FROM review_queue
		WHERE resolved = 0
		ORDER BY held_at, item_hash
	`)
	if err != nil {
		return nil, fmt.Errorf("query review queue: %w", err)
	}
	defer rows.Close()

	var held []HeldItem
	for rows.Next() {
		var h HeldItem
		var url sql.NullString
		var tokens string
		if err := rows.Scan(&h.Hash, &h.Item.SourceName, &url, &h.Item.Text, &tokens, &h.HeldAt); err != nil {
			return nil, err
		}
		h.Item.URL = url.String
		if tokens != "" {
			h.Tokens = strings.Split(tokens, ",")
		}
		held = append(held, h)
	}
	return held, rows.Err()
}

// Resolve marks a held item as reviewed.
func (s *Store) Resolve(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`UPDATE review_queue SET resolved = 1 WHERE item_hash = ?`, hash)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", hash, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("resolve %s: %w", hash, sql.ErrNoRows)
	}
	return nil
}
