package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jinxlover/material-news/internal/config"
	"github.com/jinxlover/material-news/internal/fetch"
	"github.com/jinxlover/material-news/internal/logging"
	"github.com/jinxlover/material-news/internal/model"
	"github.com/jinxlover/material-news/internal/otel"
	"github.com/jinxlover/material-news/internal/pipeline"
)

func newRunCmd(g *globals) *cobra.Command {
	var inputs []string
	var output string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch sources, build the feed and write it",
		Long: `Fetch every configured feed and hazard source, extract incidents,
merge them with previously published events and atomically write the feed.

With --input, raw items are read from JSONL files instead of fetched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg
			if output != "" {
				cfg.Output = output
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runPipeline(ctx, cfg, inputs)
		},
	}
	cmd.Flags().StringArrayVarP(&inputs, "input", "i", nil, "JSONL raw item file (repeatable, - for stdin)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "feed path (overrides config)")
	return cmd
}

func runPipeline(ctx context.Context, cfg *config.Config, inputs []string) error {
	olog, err := otel.OpenFile(cfg.EventLog)
	if err != nil {
		return err
	}
	ring := otel.NewRingBuffer(512)
	olog.SetRingBuffer(ring)
	defer olog.Close()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	var items []model.RawItem
	if len(inputs) > 0 {
		items, err = readInputs(inputs)
		if err != nil {
			return err
		}
	} else {
		items, err = fetchSources(ctx, cfg, olog)
		if err != nil {
			return err
		}
	}

	runner, cache, err := newRunner(cfg, st, olog)
	if err != nil {
		return err
	}
	rep, err := runner.Run(ctx, items)
	if err != nil {
		return err
	}
	stats := cache.Stats()
	logging.Debug("Geocoder cache", "hits", stats.Hits, "lookups", stats.Lookups,
		"misses", stats.Misses, "timeouts", stats.Timeouts, "errors", stats.Errors)

	if err := olog.Close(); err != nil {
		logging.Warn("Closing event log failed", "error", err)
	}
	printReport(rep, ring, cfg.Output)
	return nil
}

func fetchSources(ctx context.Context, cfg *config.Config, olog *otel.Logger) ([]model.RawItem, error) {
	var sources []config.Source
	for _, path := range []string{cfg.Sources, cfg.Hazards} {
		if path == "" {
			continue
		}
		srcs, err := config.LoadSources(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, srcs...)
	}
	if len(sources) == 0 {
		logging.Warn("No sources configured", "sources", cfg.Sources, "hazards", cfg.Hazards)
		return nil, nil
	}
	f := fetch.NewFetcher(cfg.Fetch.Timeout, cfg.Fetch.UserAgent)
	batch := f.FetchAll(ctx, sources, cfg.Fetch.Concurrency, olog)
	return batch.Items, nil
}

func readInputs(paths []string) ([]model.RawItem, error) {
	now := time.Now().UTC()
	var items []model.RawItem
	for _, path := range paths {
		r := os.Stdin
		name := "stdin"
		if path != "-" {
			f, err := os.Open(path)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			r, name = f, path
		}
		got, err := fetch.ReadJSONL(r, name, now)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		items = append(items, got...)
	}
	return items, nil
}

func printReport(rep *pipeline.Report, ring *otel.RingBuffer, output string) {
	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	feed := rep.Feed
	fmt.Printf("%s %d events (%s new, %s updated) from %d items in %s\n",
		bold("feed:"), len(feed.Events),
		green(feed.New), green(feed.Bumped),
		rep.Items, rep.Duration.Round(time.Millisecond))
	if output != "" {
		fmt.Printf("%s %s\n", bold("wrote:"), output)
	}
	fmt.Printf("%s %d candidates, %d clusters, %d merged, %d seeded\n",
		bold("dedup:"), rep.Candidates, rep.Clusters, rep.Merged, rep.Seeded)

	for _, rej := range rep.Rejected {
		verb := "skipped"
		if rej.Held {
			verb = "held"
		}
		fmt.Printf("%s %s %s %v\n", yellow(verb), rej.Source, rej.URL, rej.Tokens)
	}
	for _, v := range feed.Rejected {
		fmt.Printf("%s %s\n", red("invalid"), v.Error())
	}
	if feed.Unresolved > 0 {
		fmt.Printf("%s %d locations unresolved\n", yellow("geocode:"), feed.Unresolved)
	}
	for _, ev := range ring.Problems() {
		if ev.Kind == otel.KindFetchError {
			fmt.Printf("%s %s: %s\n", red("fetch failed"), ev.Source, ev.Err)
		}
	}
}
