package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jinxlover/material-news/internal/model"
)

// DefaultNominatimEndpoint is the public OpenStreetMap search service.
const DefaultNominatimEndpoint = "https://nominatim.openstreetmap.org"

// Nominatim queries an OSM Nominatim search endpoint. The public service
// allows one request per second and requires an identifying User-Agent.
type Nominatim struct {
	endpoint  string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	backoffs  []time.Duration
}

// nominatimResult is one element of the jsonv2 search response.
type nominatimResult struct {
	Lat     string `json:"lat"`
	Lon     string `json:"lon"`
	Address struct {
		CountryCode string `json:"country_code"`
		State       string `json:"state"`
		Region      string `json:"region"`
		Province    string `json:"province"`
	} `json:"address"`
}

// NewNominatim creates a client limited to perSecond requests (1 when <= 0).
func NewNominatim(endpoint, userAgent string, perSecond float64) *Nominatim {
	if endpoint == "" {
		endpoint = DefaultNominatimEndpoint
	}
	if userAgent == "" {
		userAgent = "material-news/1.0"
	}
	if perSecond <= 0 {
		perSecond = 1
	}
	return &Nominatim{
		endpoint:  strings.TrimRight(endpoint, "/"),
		userAgent: userAgent,
		client:    &http.Client{Timeout: 30 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(perSecond), 1),
		backoffs:  []time.Duration{time.Second, 2 * time.Second},
	}
}

// Geocode searches for name and returns the top hit.
func (n *Nominatim) Geocode(ctx context.Context, name string) (model.LocationInfo, error) {
	q := url.Values{}
	q.Set("q", name)
	q.Set("format", "jsonv2")
	q.Set("addressdetails", "1")
	q.Set("limit", "1")
	u := n.endpoint + "/search?" + q.Encode()

	body, err := n.doWithRetry(ctx, u)
	if err != nil {
		return model.LocationInfo{}, err
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return model.LocationInfo{}, fmt.Errorf("geocode: failed to parse response: %w", err)
	}
	if len(results) == 0 {
		return model.LocationInfo{}, ErrNotFound
	}
	return results[0].info(), nil
}

func (r nominatimResult) info() model.LocationInfo {
	var info model.LocationInfo
	lat, errLat := strconv.ParseFloat(r.Lat, 64)
	lon, errLon := strconv.ParseFloat(r.Lon, 64)
	if errLat == nil && errLon == nil {
		info.Lat, info.Lon = &lat, &lon
	}
	if cc := r.Address.CountryCode; len(cc) == 2 {
		info.ISO2 = model.String(strings.ToUpper(cc))
	}
	for _, admin := range []string{r.Address.State, r.Address.Region, r.Address.Province} {
		if admin != "" {
			info.Admin1 = model.String(admin)
			break
		}
	}
	return info
}

// doWithRetry GETs u, retrying 429 and 5xx responses with backoff.
func (n *Nominatim) doWithRetry(ctx context.Context, u string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= len(n.backoffs); attempt++ {
		if err := n.limiter.Wait(ctx); err != nil {
			return nil, waitError(ctx, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("geocode: failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", n.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("geocode: failed to read response: %w", err)
		}
		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		lastErr = fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		if !retryable || attempt == len(n.backoffs) {
			return nil, lastErr
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(n.backoffs[attempt]):
		}
	}
	return nil, lastErr
}

// waitError classifies a limiter failure. Wait refuses up front when the
// queued wait would pass the deadline; that is a timeout too.
func waitError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("geocode: rate limit wait exceeds deadline: %w", context.DeadlineExceeded)
	}
	return fmt.Errorf("geocode: rate limiter wait failed: %w", err)
}

// RateWorkers caps n concurrent lookups against a limiter of perSecond so
// that the last queued lookup still has half of timeout left for its
// request. n <= 0 asks for the cap itself.
func RateWorkers(n int, perSecond float64, timeout time.Duration) int {
	if perSecond <= 0 {
		perSecond = 1
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := int(perSecond * timeout.Seconds() / 2)
	if limit < 1 {
		limit = 1
	}
	if n <= 0 || n > limit {
		return limit
	}
	return n
}
