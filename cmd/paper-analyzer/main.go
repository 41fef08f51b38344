// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-analyzer CLI.
//
// run fetches recent papers and analyzes them in a batch; analyze processes
// individual papers by identifier; show, top, stats, and export read the
// result store.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-analyzer/internal/config"
	"github.com/pdiddy/paper-analyzer/internal/observability"
	"github.com/pdiddy/paper-analyzer/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Populated by PersistentPreRunE for every subcommand.
var (
	cfg    *types.Config
	logger zerolog.Logger
)

// rootCmd is the base command for the paper-analyzer CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-analyzer",
	Short: "Summarize, classify, and score recent research papers",
	Long: `paper-analyzer fetches recent papers from arXiv (or a directory of paper
records), runs each through four analysis stages backed by a text-generation
API (summary, research-area classification, novelty assessment, and overall
score), and stores the results in a local SQLite database.

Configuration comes from paper-analyzer.yaml, PAPER_ANALYZER_* environment
variables, a .env file, and API key files in .secrets/.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfgFile, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(viper.GetViper(), config.Options{
			ConfigFile: cfgFile,
			Logger:     observability.NewLogger(observability.DefaultLoggingConfig()),
		})
		if err != nil {
			return err
		}
		cfg = loaded
		logger = observability.NewLogger(cfg.Logging)
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ./paper-analyzer.yaml or ~/.config/paper-analyzer/paper-analyzer.yaml)")
	flags.String("store", "", "result database path (default data/papers.db)")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error")
	flags.String("log-format", "", "log format: console or json")

	viper.BindPFlag("store.path", flags.Lookup("store"))
	viper.BindPFlag("logging.level", flags.Lookup("log-level"))
	viper.BindPFlag("logging.format", flags.Lookup("log-format"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
