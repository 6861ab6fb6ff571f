// Package fetch retrieves raw feed text for the pipeline.
//
// RSS and Atom sources are parsed with gofeed; each entry becomes one
// RawItem whose text is the title followed by the sanitized description.
// USGS GeoJSON summaries become one RawItem per earthquake. Sources with a
// file:// URL are read from disk: .jsonl files hold one RawItem per line,
// anything else is parsed as a feed document.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/jinxlover/material-news/internal/config"
	"github.com/jinxlover/material-news/internal/model"
)

// DefaultTimeout bounds one source fetch.
const DefaultTimeout = 20 * time.Second

// FetchError reports a failed source. The batch continues without it.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves items from feed sources.
type Fetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	now       func() time.Time
}

// NewFetcher creates a Fetcher with the given per-source timeout.
func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if userAgent == "" {
		userAgent = "material-news/1.0"
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		timeout:   timeout,
		now:       time.Now,
	}
}

// Fetch retrieves the items of one source. It does not store them.
func (f *Fetcher) Fetch(ctx context.Context, src config.Source) ([]model.RawItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Source: src.Name, Err: err}
	}
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	items, err := f.fetch(ctx, src)
	if err != nil {
		return nil, &FetchError{Source: src.Name, Err: err}
	}
	return items, nil
}

func (f *Fetcher) fetch(ctx context.Context, src config.Source) ([]model.RawItem, error) {
	u, err := url.Parse(src.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	retrieved := f.now().UTC()

	if u.Scheme == "file" {
		file, err := os.Open(u.Path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		switch {
		case strings.HasSuffix(u.Path, ".jsonl"):
			return ReadJSONL(file, src.Name, retrieved)
		case isGeoJSON(u.Path, ""):
			return parseGeoJSON(file, src, retrieved)
		}
		return parseFeed(ctx, file, src, retrieved)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if isGeoJSON(src.URL, resp.Header.Get("Content-Type")) {
		return parseGeoJSON(resp.Body, src, retrieved)
	}
	return parseFeed(ctx, resp.Body, src, retrieved)
}

func parseFeed(ctx context.Context, r io.Reader, src config.Source, retrieved time.Time) ([]model.RawItem, error) {
	feed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	items := make([]model.RawItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		item := convertFeedItem(entry, src, retrieved)
		if item.Text == "" {
			continue
		}
		if item.URL == "" {
			item.URL = src.URL
		}
		items = append(items, item)
	}
	return items, nil
}

// convertFeedItem turns a feed entry into a RawItem.
func convertFeedItem(entry *gofeed.Item, src config.Source, retrieved time.Time) model.RawItem {
	item := model.RawItem{
		SourceName:  src.Name,
		URL:         entry.Link,
		RetrievedAt: retrieved,
	}
	if entry.PublishedParsed != nil {
		item.Published = entry.PublishedParsed.UTC()
	} else if entry.UpdatedParsed != nil {
		item.Published = entry.UpdatedParsed.UTC()
	}

	title := Sanitize(entry.Title)
	desc := entry.Description
	if desc == "" {
		desc = entry.Content
	}
	desc = Sanitize(desc)
	item.Text = joinText(title, desc)

	if src.Kind == config.KindHazard {
		item.Location = hazardPlace(title)
	}
	return item
}

// joinText joins a title and description as one sentence run.
func joinText(title, desc string) string {
	switch {
	case desc == "" || desc == title:
		return title
	case title == "":
		return desc
	case strings.HasSuffix(title, ".") || strings.HasSuffix(title, "!") || strings.HasSuffix(title, "?"):
		return title + " " + desc
	default:
		return title + ". " + desc
	}
}

// Sanitize strips markup and collapses whitespace.
func Sanitize(s string) string {
	if strings.ContainsAny(s, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
		if err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

// hazardPlace pulls the place out of hazard titles shaped like
// "M 5.4 - 10 km SW of Lima, Peru".
func hazardPlace(title string) string {
	_, rest, ok := strings.Cut(title, " - ")
	if !ok {
		return ""
	}
	if i := strings.LastIndex(rest, " of "); i >= 0 {
		rest = rest[i+len(" of "):]
	}
	return strings.TrimSpace(rest)
}

// IsTimeout reports whether err is a fetch timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}
