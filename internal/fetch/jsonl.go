package fetch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jinxlover/material-news/internal/model"
)

const maxLine = 1 << 20

// ReadJSONL reads one RawItem per line. Blank lines are skipped. Missing
// source names and retrieval times take the given defaults.
func ReadJSONL(r io.Reader, source string, retrieved time.Time) ([]model.RawItem, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)

	var items []model.RawItem
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var item model.RawItem
		if err := json.Unmarshal([]byte(text), &item); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if item.SourceName == "" {
			item.SourceName = source
		}
		if item.RetrievedAt.IsZero() {
			item.RetrievedAt = retrieved
		}
		item.RetrievedAt = item.RetrievedAt.UTC()
		if !item.Published.IsZero() {
			item.Published = item.Published.UTC()
		}
		items = append(items, item)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read jsonl: %w", err)
	}
	return items, nil
}
