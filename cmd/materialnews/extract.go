package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jinxlover/material-news/internal/extract"
	"github.com/jinxlover/material-news/internal/model"
)

// candidateJSON is the printed form of a candidate event.
type candidateJSON struct {
	IncidentType model.IncidentType `json:"incident_type"`
	Headline     string             `json:"headline"`
	Metrics      model.Metrics      `json:"metrics"`
	LocationName string             `json:"location_name"`
	Targets      []string           `json:"targets"`
	WhenUTC      time.Time          `json:"when_utc"`
	Source       model.SourceRef    `json:"source"`
}

func newExtractCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "extract [file]",
		Short: "Extract candidate events from JSONL raw items",
		Long: `Read raw items (one JSON object per line, stdin when no file is given)
and print one candidate event per line. Items rejected for subjective
language are reported on stderr.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			items, err := readInputs([]string{path})
			if err != nil {
				return err
			}

			x := newExtractor(g.cfg)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			rejected := 0
			for _, item := range items {
				c, err := x.Extract(item)
				var sle *extract.SubjectiveLanguageError
				switch {
				case errors.As(err, &sle):
					rejected++
					fmt.Fprintf(os.Stderr, "%s %s %s: %v\n", color.YellowString("rejected"), item.SourceName, item.URL, sle)
					continue
				case err != nil:
					return err
				}
				if err := enc.Encode(candidateJSON{
					IncidentType: c.IncidentType,
					Headline:     c.Headline,
					Metrics:      c.Metrics,
					LocationName: c.LocationName,
					Targets:      c.Targets,
					WhenUTC:      c.WhenUTC,
					Source:       c.Source,
				}); err != nil {
					return err
				}
			}
			if rejected > 0 {
				fmt.Fprintf(os.Stderr, "%d of %d items rejected\n", rejected, len(items))
			}
			return nil
		},
	}
}
