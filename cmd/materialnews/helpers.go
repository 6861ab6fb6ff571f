package main

import (
	"fmt"

	"github.com/jinxlover/material-news/internal/assemble"
	"github.com/jinxlover/material-news/internal/config"
	"github.com/jinxlover/material-news/internal/correlation"
	"github.com/jinxlover/material-news/internal/extract"
	"github.com/jinxlover/material-news/internal/geocode"
	"github.com/jinxlover/material-news/internal/otel"
	"github.com/jinxlover/material-news/internal/pipeline"
	"github.com/jinxlover/material-news/internal/schema"
	"github.com/jinxlover/material-news/internal/store"
	"github.com/jinxlover/material-news/internal/verify"
)

// newGeocoder builds the configured geocoder backend.
func newGeocoder(cfg config.GeocoderConfig) geocode.Geocoder {
	static := geocode.NewStatic(cfg.Places)
	switch cfg.Provider {
	case config.ProviderNone:
		return geocode.None{}
	case config.ProviderNominatim:
		return geocode.NewNominatim(cfg.Endpoint, cfg.UserAgent, cfg.Rate)
	case config.ProviderChain:
		return geocode.Chain{static, geocode.NewNominatim(cfg.Endpoint, cfg.UserAgent, cfg.Rate)}
	default:
		return static
	}
}

// newScorer builds the configured confidence scheme.
func newScorer(cfg config.VerifyConfig) verify.Scorer {
	if cfg.Scheme == config.SchemeWeighted {
		return verify.NewWeightedScorer(cfg.Weights, cfg.DefaultWeight)
	}
	return verify.BaselineScorer{}
}

func newExtractor(cfg *config.Config) *extract.Extractor {
	x := extract.New()
	if len(cfg.Neutrality.Denylist) > 0 {
		x = x.WithDenylist(append(append([]string{}, extract.DefaultDenylist...), cfg.Neutrality.Denylist...))
	}
	return x
}

// openStore opens the SQLite ledger, or returns nil when it is disabled.
func openStore(cfg *config.Config) (*store.Store, error) {
	if cfg.Ledger == "" {
		return nil, nil
	}
	st, err := store.Open(cfg.Ledger)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return st, nil
}

// newRunner wires the pipeline. st may be nil, in which case the previous
// feed file serves as the ledger.
func newRunner(cfg *config.Config, st *store.Store, olog *otel.Logger) (*pipeline.Runner, *geocode.Cache, error) {
	validator, err := schema.New()
	if err != nil {
		return nil, nil, err
	}
	cache := geocode.NewCache(newGeocoder(cfg.Geocoder), cfg.Geocoder.Timeout)
	geoWorkers := cfg.Workers
	switch cfg.Geocoder.Provider {
	case config.ProviderNominatim, config.ProviderChain:
		// Lookups queue on the Nominatim rate limiter inside their timeout.
		geoWorkers = geocode.RateWorkers(cfg.Workers, cfg.Geocoder.Rate, cfg.Geocoder.Timeout)
	}

	x := newExtractor(cfg)
	r := &pipeline.Runner{
		Extractor: x,
		Dedup:     correlation.Config{Window: cfg.Dedup.Window, Overlap: cfg.Dedup.Overlap},
		Verifier:  verify.New(newScorer(cfg.Verify)),
		Assembler: assemble.New(cache, validator,
			assemble.WithWorkers(geoWorkers),
			assemble.WithNeutralFilter(x.Filter()),
			assemble.WithEventLog(olog)),
		Policy:    cfg.Neutrality.Policy,
		Retention: cfg.Feed.Retention,
		Output:    cfg.Output,
		Workers:   cfg.Workers,
		Log:       olog,
	}
	if st != nil {
		r.Ledger = st
		r.Review = st
		r.Archive = st
	} else {
		r.Ledger = assemble.FileLedger{Path: cfg.Output}
	}
	return r, cache, nil
}
