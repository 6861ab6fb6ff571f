package assemble

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/jinxlover/material-news/internal/model"
)

// Encode writes events as a pretty-printed JSON array with non-ASCII
// characters emitted literally.
func Encode(w io.Writer, events []*model.CanonicalEvent) error {
	if events == nil {
		events = []*model.CanonicalEvent{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(events)
}

// WriteFeed atomically replaces path with the encoded feed, creating parent
// directories as needed. Concurrent readers see either the old or the new
// file, never a partial one.
func WriteFeed(path string, events []*model.CanonicalEvent) error {
	var buf bytes.Buffer
	if err := Encode(&buf, events); err != nil {
		return fmt.Errorf("encode feed: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create feed directory: %w", err)
	}

	t, err := renameio.TempFile(filepath.Dir(path), path)
	if err != nil {
		return fmt.Errorf("create temp feed: %w", err)
	}
	defer t.Cleanup()

	if err := t.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod temp feed: %w", err)
	}
	if _, err := t.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write temp feed: %w", err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace feed: %w", err)
	}
	return nil
}

// ReadFeed reads a feed file. A missing file is an empty feed.
func ReadFeed(path string) ([]*model.CanonicalEvent, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	return DecodeFeed(data)
}

// DecodeFeed parses a JSON array of events.
func DecodeFeed(data []byte) ([]*model.CanonicalEvent, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var events []*model.CanonicalEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	return events, nil
}
