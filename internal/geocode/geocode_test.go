package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/jinxlover/material-news/internal/model"
)

// countingGeocoder records calls and optionally blocks until released.
type countingGeocoder struct {
	calls   atomic.Int32
	release chan struct{}
	info    model.LocationInfo
	err     error
}

func (g *countingGeocoder) Geocode(ctx context.Context, name string) (model.LocationInfo, error) {
	g.calls.Add(1)
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return model.LocationInfo{}, ctx.Err()
		}
	}
	return g.info, g.err
}

func TestCacheCoalescesConcurrentLookups(t *testing.T) {
	g := &countingGeocoder{
		release: make(chan struct{}),
		info:    model.LocationInfo{Lat: model.Float(1), Lon: model.Float(2)},
	}
	c := NewCache(g, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			info, err := c.Lookup(context.Background(), "Lagos")
			assert.NoError(t, err)
			assert.True(t, info.Resolved())
		}()
	}
	// Give the goroutines time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(g.release)
	wg.Wait()

	assert.Equal(t, int32(1), g.calls.Load())

	_, err := c.Lookup(context.Background(), " lagos. ")
	require.NoError(t, err)
	assert.Equal(t, int32(1), g.calls.Load(), "normalized name is served from cache")
	assert.GreaterOrEqual(t, c.Stats().Hits, 1)
}

func TestCacheTimeoutIsNotCached(t *testing.T) {
	g := &countingGeocoder{
		release: make(chan struct{}),
		info:    model.LocationInfo{ISO2: model.String("XX")},
	}
	c := NewCache(g, 20*time.Millisecond)

	info, err := c.Lookup(context.Background(), "Slowville")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, info.Resolved())

	close(g.release)
	info, err = c.Lookup(context.Background(), "Slowville")
	require.NoError(t, err)
	assert.Equal(t, "XX", *info.ISO2)
	assert.Equal(t, int32(2), g.calls.Load())
	assert.Equal(t, 1, c.Stats().Timeouts)
}

func TestCacheNotFoundIsCached(t *testing.T) {
	g := &countingGeocoder{err: ErrNotFound}
	c := NewCache(g, time.Second)

	for i := 0; i < 3; i++ {
		_, err := c.Lookup(context.Background(), "Atlantis")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, int32(1), g.calls.Load())
	assert.Equal(t, 1, c.Stats().Misses)
}

func TestCacheTransientErrorRetried(t *testing.T) {
	g := &countingGeocoder{err: ErrUnavailable}
	c := NewCache(g, time.Second)
	_, err := c.Lookup(context.Background(), "Lagos")
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = c.Lookup(context.Background(), "Lagos")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), g.calls.Load())
}

func TestCacheSkipsUnknown(t *testing.T) {
	g := &countingGeocoder{}
	c := NewCache(g, time.Second)
	_, err := c.Lookup(context.Background(), model.UnknownLocation)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(0), g.calls.Load())
}

func TestStatic(t *testing.T) {
	s := NewStatic([]Place{{Name: "Port Harcourt", Lat: 4.8, Lon: 7.0, ISO2: "ng", Admin1: "Rivers"}})
	ctx := context.Background()

	info, err := s.Geocode(ctx, "port harcourt")
	require.NoError(t, err)
	assert.Equal(t, 4.8, *info.Lat)
	assert.Equal(t, "NG", *info.ISO2)
	assert.Equal(t, "Rivers", *info.Admin1)

	info, err = s.Geocode(ctx, "Port Harcourt, Nigeria")
	require.NoError(t, err)
	assert.Equal(t, "Rivers", *info.Admin1)

	info, err = s.Geocode(ctx, "Nepal")
	require.NoError(t, err)
	assert.NotNil(t, info.Lat)
	assert.Equal(t, "NP", *info.ISO2)

	info, err = s.Geocode(ctx, "Lagos")
	require.NoError(t, err)
	assert.Nil(t, info.Lat, "city aliases resolve the country code only")
	assert.Equal(t, "NG", *info.ISO2)

	info, err = s.Geocode(ctx, "Pokhara, Nepal")
	require.NoError(t, err)
	assert.Nil(t, info.Lat)
	assert.Equal(t, "NP", *info.ISO2)

	_, err = s.Geocode(ctx, "Atlantis")
	assert.ErrorIs(t, err, ErrNotFound)
}

func newTestNominatim(url string) *Nominatim {
	n := NewNominatim(url, "material-news-test", 1)
	n.limiter = rate.NewLimiter(rate.Inf, 1)
	n.backoffs = []time.Duration{time.Millisecond, time.Millisecond}
	return n
}

func TestNominatimGeocode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Lagos", r.URL.Query().Get("q"))
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "material-news-test", r.Header.Get("User-Agent"))
		fmt.Fprint(w, `[{"lat":"6.4550","lon":"3.3941","address":{"country_code":"ng","state":"Lagos State"}}]`)
	}))
	defer server.Close()

	info, err := newTestNominatim(server.URL).Geocode(context.Background(), "Lagos")
	require.NoError(t, err)
	assert.InDelta(t, 6.455, *info.Lat, 1e-9)
	assert.InDelta(t, 3.3941, *info.Lon, 1e-9)
	assert.Equal(t, "NG", *info.ISO2)
	assert.Equal(t, "Lagos State", *info.Admin1)
}

func TestNominatimEmptyIsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	_, err := newTestNominatim(server.URL).Geocode(context.Background(), "Nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNominatimRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `[{"lat":"1","lon":"2","address":{}}]`)
	}))
	defer server.Close()

	info, err := newTestNominatim(server.URL).Geocode(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, 1.0, *info.Lat)
	assert.Nil(t, info.ISO2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNominatimClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newTestNominatim(server.URL).Geocode(context.Background(), "X")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNominatimRateWaitPastDeadlineIsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"lat":"1","lon":"2","address":{}}]`)
	}))
	defer server.Close()

	n := newTestNominatim(server.URL)
	n.limiter = rate.NewLimiter(rate.Every(time.Minute), 1)
	cache := NewCache(n, 200*time.Millisecond)

	_, err := cache.Lookup(context.Background(), "First")
	require.NoError(t, err)

	start := time.Now()
	_, err = cache.Lookup(context.Background(), "Second")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Timeouts)
	assert.Zero(t, stats.Errors)
}

func TestRateWorkers(t *testing.T) {
	tests := []struct {
		n       int
		rate    float64
		timeout time.Duration
		want    int
	}{
		{0, 1, 5 * time.Second, 2},
		{8, 1, 5 * time.Second, 2},
		{1, 1, 5 * time.Second, 1},
		{8, 10, 5 * time.Second, 8},
		{0, 0.1, time.Second, 1},
		{0, 0, 0, 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RateWorkers(tt.n, tt.rate, tt.timeout), "n=%d rate=%v timeout=%v", tt.n, tt.rate, tt.timeout)
	}
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	hit := &countingGeocoder{info: model.LocationInfo{ISO2: model.String("FR")}}

	info, err := Chain{None{}, hit}.Geocode(ctx, "Paris")
	require.NoError(t, err)
	assert.Equal(t, "FR", *info.ISO2)

	broken := &countingGeocoder{err: ErrUnavailable}
	_, err = Chain{broken, None{}}.Geocode(ctx, "Paris")
	assert.True(t, errors.Is(err, ErrUnavailable))

	_, err = Chain{None{}, None{}}.Geocode(ctx, "Paris")
	assert.ErrorIs(t, err, ErrNotFound)
}
