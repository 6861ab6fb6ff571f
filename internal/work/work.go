// Package work fans batch stages out over a bounded set of goroutines.
// Results keep input order so downstream stages stay deterministic.
package work

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jinxlover/material-news/internal/logging"
)

// Type names a stage for logging.
type Type string

const (
	TypeFetch   Type = "fetch"
	TypeExtract Type = "extract"
	TypeGeocode Type = "geocode"
)

// Result is the outcome for one input.
type Result[T any] struct {
	Value T
	Err   error
}

// Stats summarizes a Map call.
type Stats struct {
	Type     Type
	Total    int
	Failed   int
	Workers  int
	Duration time.Duration
}

// String returns a summary string for stats.
func (s Stats) String() string {
	return fmt.Sprintf("%s: %d done, %d failed, %d workers, %s",
		s.Type, s.Total-s.Failed, s.Failed, s.Workers, s.Duration.Round(time.Millisecond))
}

// Workers returns n, or the number of CPUs when n <= 0.
func Workers(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// Map applies fn to every input using at most workers goroutines and
// returns one result per input, in input order. A failing or panicking
// input only affects its own result. When ctx is cancelled, inputs not yet
// started get ctx.Err().
func Map[In, Out any](ctx context.Context, workers int, typ Type, inputs []In, fn func(context.Context, In) (Out, error)) ([]Result[Out], Stats) {
	start := time.Now()
	workers = Workers(workers)
	results := make([]Result[Out], len(inputs))

	var g errgroup.Group
	g.SetLimit(workers)
	var failed atomic.Int64

	for i, in := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				failed.Add(1)
				return nil
			}
			out, err := run(ctx, typ, in, fn)
			results[i] = Result[Out]{Value: out, Err: err}
			if err != nil {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats := Stats{
		Type:     typ,
		Total:    len(inputs),
		Failed:   int(failed.Load()),
		Workers:  workers,
		Duration: time.Since(start),
	}
	logging.Debug("Work completed",
		"type", typ,
		"total", stats.Total,
		"failed", stats.Failed,
		"workers", workers,
		"duration", stats.Duration)
	return results, stats
}

// run calls fn, converting a panic into an error.
func run[In, Out any](ctx context.Context, typ Type, in In, fn func(context.Context, In) (Out, error)) (out Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Work panicked", "type", typ, "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, in)
}
