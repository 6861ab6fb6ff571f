package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jinxlover/material-news/internal/schema"
)

func newValidateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a feed against the event schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := g.cfg.Output
			if len(args) == 1 {
				path = args[0]
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			v, err := schema.New()
			if err != nil {
				return err
			}
			results, err := v.ValidateFeed(data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintf(out, "%s %s\n", color.GreenString("valid:"), path)
				return nil
			}
			for _, r := range results {
				id := r.ID
				if id == "" {
					id = fmt.Sprintf("#%d", r.Index)
				}
				for _, viol := range r.Violations {
					fmt.Fprintf(out, "%s %s %s\n", color.RedString("invalid"), id, viol)
				}
			}
			return fmt.Errorf("%d invalid events in %s", len(results), path)
		},
	}
}
