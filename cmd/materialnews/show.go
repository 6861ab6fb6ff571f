package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jinxlover/material-news/internal/assemble"
	"github.com/jinxlover/material-news/internal/model"
)

func newShowCmd(g *globals) *cobra.Command {
	var eventType string
	cmd := &cobra.Command{
		Use:   "show [file]",
		Short: "Print one line per feed event",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := g.cfg.Output
			if len(args) == 1 {
				path = args[0]
			}
			events, err := assemble.ReadFeed(path)
			if err != nil {
				return err
			}
			if eventType != "" {
				events = filterType(events, model.IncidentType(eventType))
			}
			showFeed(cmd.OutOrStdout(), events)
			return nil
		},
	}
	cmd.Flags().StringVarP(&eventType, "type", "t", "", "only events of this type")
	return cmd
}

func filterType(events []*model.CanonicalEvent, t model.IncidentType) []*model.CanonicalEvent {
	var out []*model.CanonicalEvent
	for _, e := range events {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

func showFeed(w io.Writer, events []*model.CanonicalEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events available.")
		return
	}
	var lastUpdated time.Time
	for _, e := range events {
		fmt.Fprintln(w, formatEvent(e))
		if e.UpdatedAt.After(lastUpdated) {
			lastUpdated = e.UpdatedAt
		}
	}
	fmt.Fprintf(w, "%s %s\n", color.New(color.Faint).Sprint("last updated"), lastUpdated.UTC().Format(time.RFC3339))
}

// formatEvent renders "when — place — headline Sources: a, b ■■■□□".
func formatEvent(e *model.CanonicalEvent) string {
	when := "n/a"
	if !e.WhenUTC.IsZero() {
		when = e.WhenUTC.UTC().Format(time.RFC3339)
	}
	place := e.Location.Name
	if place == "" {
		place = "Unknown location"
	}
	names := make([]string, len(e.Sources))
	for i, s := range e.Sources {
		names[i] = s.Name
	}
	return fmt.Sprintf("%s — %s — %s Sources: %s %s",
		when, place, e.Headline, strings.Join(names, ", "), model.ConfidenceBlocks(e.Confidence))
}
