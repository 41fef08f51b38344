// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-analyzer/internal/observability"
	"github.com/pdiddy/paper-analyzer/internal/pipeline"
	"github.com/pdiddy/paper-analyzer/internal/stage"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch recent papers and analyze them",
	Long: `Run fetches papers submitted within the lookback window from the configured
source and runs each through summarization, classification, novelty
assessment, and scoring, storing every completed analysis. Papers that fail a
stage are reported and skipped without failing the run; a source or database
failure stops the batch and exits non-zero.`,
	RunE: runBatch,
}

func init() {
	runCmd.Flags().Int("days", 0, "lookback window in days (default 7)")
	runCmd.Flags().Int("max-papers", 0, "maximum papers to fetch (default 10)")
	runCmd.Flags().Int("concurrency", 0, "papers analyzed in parallel (default 4)")
	runCmd.Flags().Bool("skip-existing", false, "skip papers that already have a stored analysis")
	runCmd.Flags().Bool("full-text", false, "download and convert paper PDFs for full-text analysis")
	runCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address during the run (e.g. :9091)")
	runCmd.Flags().Bool("json", false, "print the batch result as JSON")

	viper.BindPFlag("pipeline.lookback_days", runCmd.Flags().Lookup("days"))
	viper.BindPFlag("pipeline.max_papers", runCmd.Flags().Lookup("max-papers"))
	viper.BindPFlag("pipeline.concurrency", runCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("pipeline.skip_existing", runCmd.Flags().Lookup("skip-existing"))
	viper.BindPFlag("full_text.enabled", runCmd.Flags().Lookup("full-text"))
	viper.BindPFlag("metrics.addr", runCmd.Flags().Lookup("metrics-addr"))

	rootCmd.AddCommand(runCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(cfg.Metrics.Namespace)
	metrics.RegisterRuntimeCollectors()
	_, stopMetrics, err := serveMetrics(cfg.Metrics.Addr, metrics)
	if err != nil {
		return fmt.Errorf("starting metrics server: %w", err)
	}
	defer stopMetrics()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	orch, err := newOrchestrator(ctx, st, metrics)
	if err != nil {
		return err
	}

	res, runErr := orch.Run(ctx, cfg.Pipeline.LookbackDays, cfg.Pipeline.MaxPapers)
	out := cmd.OutOrStdout()
	if asJSON {
		if err := writeStructured(out, "json", batchReport(res)); err != nil {
			return err
		}
	} else {
		printBatch(out, res)
	}
	// Per-paper failures are reported above and do not fail the run.
	return runErr
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [paper-ids...]",
	Short: "Analyze specific papers by identifier",
	Long: `Analyze fetches each paper by identifier (e.g. 2301.07041 or
arXiv:2301.07041v2) from the configured source, runs all four stages, and
stores the result, replacing any earlier analysis of the same paper.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	orch, err := newOrchestrator(ctx, st, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	failed := 0
	for _, id := range args {
		rec, err := orch.AnalyzeByID(ctx, id)
		switch {
		case err == nil:
			printRecord(out, *rec)
		case errors.Is(err, pipeline.ErrPaperNotFound):
			fmt.Fprintf(out, "not found: %s\n", id)
			failed++
		default:
			var se *stage.Error
			if errors.As(err, &se) {
				fmt.Fprintf(out, "failed: %s at %s: %v\n", id, se.Stage, se.Err)
				failed++
				continue
			}
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d paper(s) not analyzed", failed)
	}
	return nil
}
