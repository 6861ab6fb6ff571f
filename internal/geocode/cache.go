package geocode

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jinxlover/material-news/internal/model"
)

// DefaultTimeout bounds a single backend lookup.
const DefaultTimeout = 5 * time.Second

// Cache memoizes lookups for its lifetime and shares in-flight requests for
// the same name. Build one per pipeline run.
type Cache struct {
	backend Geocoder
	timeout time.Duration

	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]model.LocationInfo
	stats   CacheStats
}

// CacheStats counts cache activity.
type CacheStats struct {
	Hits     int
	Lookups  int // backend calls
	Misses   int // names the backend could not resolve
	Timeouts int
	Errors   int
}

// NewCache wraps backend. A zero timeout uses DefaultTimeout.
func NewCache(backend Geocoder, timeout time.Duration) *Cache {
	if backend == nil {
		backend = None{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Cache{
		backend: backend,
		timeout: timeout,
		entries: make(map[string]model.LocationInfo),
	}
}

// Lookup resolves name. The returned info is empty whenever err is non-nil;
// err explains why (ErrNotFound, context.DeadlineExceeded, or a backend
// error) and is informational only. Transient failures are not cached.
func (c *Cache) Lookup(ctx context.Context, name string) (model.LocationInfo, error) {
	key := model.NormalizeName(name)
	if key == "" || key == model.NormalizeName(model.UnknownLocation) {
		return model.LocationInfo{}, ErrNotFound
	}

	c.mu.RLock()
	info, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.mu.Lock()
		c.stats.Hits++
		c.mu.Unlock()
		if !info.Resolved() {
			return info, ErrNotFound
		}
		return info, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.fetch(ctx, key, name)
	})
	if err != nil {
		return model.LocationInfo{}, err
	}
	return v.(model.LocationInfo), nil
}

func (c *Cache) fetch(ctx context.Context, key, name string) (model.LocationInfo, error) {
	// The shared lookup must not be cut short by whichever caller started it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	type result struct {
		info model.LocationInfo
		err  error
	}
	done := make(chan result, 1)
	go func() {
		info, err := c.backend.Geocode(ctx, name)
		done <- result{info, err}
	}()

	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		r.err = ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Lookups++
	switch {
	case r.err == nil:
		c.entries[key] = r.info
		if !r.info.Resolved() {
			c.stats.Misses++
			return model.LocationInfo{}, ErrNotFound
		}
		return r.info, nil
	case errors.Is(r.err, ErrNotFound):
		c.entries[key] = model.LocationInfo{}
		c.stats.Misses++
		return model.LocationInfo{}, ErrNotFound
	case errors.Is(r.err, context.DeadlineExceeded):
		c.stats.Timeouts++
		return model.LocationInfo{}, context.DeadlineExceeded
	default:
		c.stats.Errors++
		return model.LocationInfo{}, r.err
	}
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}
