package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/jinxlover/material-news/internal/config"
	"github.com/jinxlover/material-news/internal/logging"
	"github.com/jinxlover/material-news/internal/model"
	"github.com/jinxlover/material-news/internal/otel"
	"github.com/jinxlover/material-news/internal/work"
)

// Batch is the outcome of FetchAll.
type Batch struct {
	Items  []model.RawItem
	Errors []*FetchError
}

// FetchAll fetches every source on at most concurrency goroutines. Items
// keep source order. A failed source is logged and left out.
func (f *Fetcher) FetchAll(ctx context.Context, sources []config.Source, concurrency int, olog *otel.Logger) Batch {
	results, _ := work.Map(ctx, concurrency, work.TypeFetch, sources,
		func(ctx context.Context, src config.Source) ([]model.RawItem, error) {
			olog.Emit(otel.Event{Kind: otel.KindFetchStart, Comp: "fetch", Source: src.Name, URL: src.URL})
			start := time.Now()
			items, err := f.Fetch(ctx, src)
			if err != nil {
				return nil, err
			}
			olog.Emit(otel.Event{
				Kind:   otel.KindFetchComplete,
				Comp:   "fetch",
				Source: src.Name,
				Dur:    time.Since(start),
				Count:  len(items),
			})
			return items, nil
		})

	var b Batch
	for i, r := range results {
		src := sources[i]
		if r.Err != nil {
			var fe *FetchError
			if !errors.As(r.Err, &fe) {
				fe = &FetchError{Source: src.Name, Err: r.Err}
			}
			b.Errors = append(b.Errors, fe)
			logging.Warn("Fetch failed", "source", src.Name, "url", src.URL, "error", fe.Err)
			olog.Emit(otel.Event{
				Level:  otel.LevelWarn,
				Kind:   otel.KindFetchError,
				Comp:   "fetch",
				Source: src.Name,
				URL:    src.URL,
				Err:    fe.Err.Error(),
				Extra:  map[string]any{"timeout": IsTimeout(fe.Err)},
			})
			continue
		}
		b.Items = append(b.Items, r.Value...)
	}
	logging.Info("Fetch complete", "sources", len(sources), "failed", len(b.Errors), "items", len(b.Items))
	return b
}
