// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// --- show subcommand ---

var showCmd = &cobra.Command{
	Use:   "show [paper-id]",
	Short: "Show a stored analysis, or the papers processed on a day",
	Long: `Show prints the full stored analysis of one paper when given an identifier.
Without one it lists the papers processed on --date (default today, UTC),
highest score first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().String("date", "", "processing date (YYYY-MM-DD, default today)")
	showCmd.Flags().String("format", "table", "output format: table, json, or yaml")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	out := cmd.OutOrStdout()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	ctx := context.Background()

	if len(args) == 1 {
		rec, ok, err := st.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no stored analysis for %s", args[0])
		}
		if format == "table" {
			printRecord(out, *rec)
			return nil
		}
		return writeStructured(out, format, rec)
	}

	date := time.Now().UTC()
	if s, _ := cmd.Flags().GetString("date"); s != "" {
		if date, err = time.Parse("2006-01-02", s); err != nil {
			return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", s)
		}
	}
	records, err := st.ByProcessedDate(ctx, date)
	if err != nil {
		return err
	}
	if format == "table" {
		if len(records) == 0 {
			fmt.Fprintf(out, "no papers processed on %s\n", date.Format("2006-01-02"))
			return nil
		}
		printTable(out, records)
		return nil
	}
	return writeStructured(out, format, records)
}

// --- top subcommand ---

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "List the highest-scoring stored papers",
	Long: `Top lists the stored papers with the highest overall scores, ties in the
order they were first analyzed. --days restricts the list to papers processed
within that many days.`,
	Args: cobra.NoArgs,
	RunE: runTop,
}

func init() {
	topCmd.Flags().IntP("limit", "n", 10, "number of papers to list")
	topCmd.Flags().Int("days", 0, "only papers processed within this many days (0 = all)")
	topCmd.Flags().String("format", "table", "output format: table, json, or yaml")
	rootCmd.AddCommand(topCmd)
}

func runTop(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	days, _ := cmd.Flags().GetInt("days")
	format, _ := cmd.Flags().GetString("format")

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.TopN(context.Background(), limit, time.Duration(days)*24*time.Hour)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if format == "table" {
		if len(records) == 0 {
			fmt.Fprintln(out, "no stored papers")
			return nil
		}
		printTable(out, records)
		return nil
	}
	return writeStructured(out, format, records)
}

// --- stats subcommand ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the result store",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().String("format", "table", "output format: table, json, or yaml")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Statistics(context.Background())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if format == "table" {
		printStats(out, stats)
		return nil
	}
	return writeStructured(out, format, stats)
}

// --- export subcommand ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every stored analysis as YAML or JSON",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	exportCmd.Flags().StringP("output", "o", "-", "output file (- for stdout)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	w := cmd.OutOrStdout()
	if output != "-" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	ctx := context.Background()
	switch format {
	case "yaml":
		err = st.ExportYAML(ctx, w)
	case "json":
		err = st.ExportJSON(ctx, w)
	default:
		return fmt.Errorf("unknown export format %q (want yaml or json)", format)
	}
	if err != nil {
		return err
	}
	if output != "-" {
		n, _ := st.Count(ctx)
		fmt.Fprintf(cmd.ErrOrStderr(), "exported %d paper(s) to %s\n", n, output)
	}
	return nil
}
