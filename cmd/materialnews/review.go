package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jinxlover/material-news/internal/store"
)

func newReviewCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "List raw items held for subjective language",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := requireStore(g)
			if err != nil {
				return err
			}
			defer st.Close()

			held, err := st.Held()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(held) == 0 {
				fmt.Fprintln(out, "Review queue is empty.")
				return nil
			}
			for _, h := range held {
				fmt.Fprintf(out, "%s %s %s %s\n",
					color.New(color.Faint).Sprint(h.Hash[:12]),
					h.HeldAt.UTC().Format("2006-01-02 15:04Z"),
					color.CyanString(h.Item.SourceName),
					color.YellowString("[%s]", strings.Join(h.Tokens, ", ")))
				fmt.Fprintf(out, "    %s\n", h.Item.Text)
				if h.Item.URL != "" {
					fmt.Fprintf(out, "    %s\n", h.Item.URL)
				}
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "resolve <hash-prefix>",
		Short: "Mark a held item as reviewed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := requireStore(g)
			if err != nil {
				return err
			}
			defer st.Close()

			hash, err := expandHash(st, args[0])
			if err != nil {
				return err
			}
			if err := st.Resolve(hash); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", color.GreenString("resolved"), hash)
			return nil
		},
	})
	return cmd
}

func requireStore(g *globals) (*store.Store, error) {
	st, err := openStore(g.cfg)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, errors.New("the review queue needs a ledger; set ledger in the config")
	}
	return st, nil
}

// expandHash resolves a unique prefix of a held item's hash.
func expandHash(st *store.Store, prefix string) (string, error) {
	held, err := st.Held()
	if err != nil {
		return "", err
	}
	var match string
	for _, h := range held {
		if !strings.HasPrefix(h.Hash, prefix) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("prefix %q is ambiguous", prefix)
		}
		match = h.Hash
	}
	if match == "" {
		return "", fmt.Errorf("no held item matches %q", prefix)
	}
	return match, nil
}
