// Command materialnews builds the material-news incident feed.
//
// Usage:
//
//	materialnews run                 Fetch sources and write the feed
//	materialnews run --input x.jsonl Build the feed from raw items on disk
//	materialnews extract [file]      Extract candidate events from JSONL raw items
//	materialnews validate [file]     Validate a feed against the event schema
//	materialnews show [file]         Print one line per feed event
//	materialnews schema              Print the event JSON Schema
//	materialnews review              List items held for subjective language
//	materialnews events              View the JSONL run log
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jinxlover/material-news/internal/config"
	"github.com/jinxlover/material-news/internal/logging"
)

// globals bound to persistent flags.
type globals struct {
	configPath string
	envPath    string
	logLevel   string

	cfg *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "materialnews",
		Short:         "Material news incident feed builder",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Close()
		},
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "config/material-news.yaml", "pipeline config file")
	root.PersistentFlags().StringVar(&g.envPath, "env", ".env", "optional .env file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	root.AddCommand(
		newRunCmd(g),
		newExtractCmd(g),
		newValidateCmd(g),
		newShowCmd(g),
		newSchemaCmd(),
		newReviewCmd(g),
		newEventsCmd(g),
	)
	return root
}

// load reads .env, the config file and environment overrides, then
// starts logging.
func (g *globals) load() error {
	if err := config.LoadEnv(g.envPath); err != nil {
		return err
	}
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if cfg.Log.Dir != "" {
		err = logging.InitFile(os.Stderr, cfg.Log.Dir, cfg.Log.Level)
	} else {
		err = logging.Init(os.Stderr, cfg.Log.Level)
	}
	if err != nil {
		return err
	}
	g.cfg = cfg
	return nil
}
