// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-analyzer/internal/pipeline"
	"github.com/pdiddy/paper-analyzer/internal/store"
	"github.com/pdiddy/paper-analyzer/pkg/types"
)

// writeStructured encodes v as json or yaml.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want table, json, or yaml)", format)
	}
}

// failureReport is the printable form of a pipeline.Failure.
type failureReport struct {
	PaperID string          `json:"paper_id"`
	Stage   types.StageName `json:"stage"`
	Error   string          `json:"error"`
}

type runReport struct {
	BatchID   string                 `json:"batch_id"`
	Elapsed   string                 `json:"elapsed"`
	Fetched   int                    `json:"fetched"`
	Processed int                    `json:"processed"`
	Failed    int                    `json:"failed"`
	Skipped   int                    `json:"skipped"`
	Failures  []failureReport        `json:"failures"`
	Records   []types.AnalysisRecord `json:"records"`
}

func batchReport(res pipeline.Result) runReport {
	r := runReport{
		BatchID:   res.BatchID,
		Elapsed:   res.Elapsed.Round(time.Millisecond).String(),
		Fetched:   res.Summary.Fetched,
		Processed: res.Summary.Processed,
		Failed:    res.Summary.Failed,
		Skipped:   res.Summary.Skipped,
		Failures:  []failureReport{},
		Records:   res.Records,
	}
	for _, f := range res.Summary.Failures {
		r.Failures = append(r.Failures, failureReport{PaperID: f.PaperID, Stage: f.Stage, Error: f.Err.Error()})
	}
	return r
}

func printBatch(w io.Writer, res pipeline.Result) {
	s := res.Summary
	fmt.Fprintf(w, "batch %s: fetched %d, processed %d, failed %d, skipped %d (%s)\n",
		res.BatchID, s.Fetched, s.Processed, s.Failed, s.Skipped, res.Elapsed.Round(time.Millisecond))
	for _, f := range s.Failures {
		fmt.Fprintf(w, "  failed: %s at %s: %v\n", f.PaperID, f.Stage, f.Err)
	}
	if len(res.Records) == 0 {
		return
	}

	ranked := append([]types.AnalysisRecord(nil), res.Records...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score.Score > ranked[j].Score.Score })
	fmt.Fprintln(w)
	printTable(w, ranked)
}

// printTable lists records one per line.
func printTable(w io.Writer, records []types.AnalysisRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSCORE\tNOVELTY\tCATEGORY\tID\tTITLE")
	for i, r := range records {
		fmt.Fprintf(tw, "%d\t%.1f\t%s\t%s\t%s\t%s\n",
			i+1, r.Score.Score, r.Novelty.Level, r.Classification.Category, r.PaperID, truncate(r.Title, 70))
	}
	tw.Flush()
}

// printRecord prints one analysis in full.
func printRecord(w io.Writer, r types.AnalysisRecord) {
	fmt.Fprintf(w, "%s\n%s\n", r.Title, strings.Repeat("=", min(len(r.Title), 78)))
	fmt.Fprintf(w, "ID:         %s\n", r.PaperID)
	if len(r.Authors) > 0 {
		fmt.Fprintf(w, "Authors:    %s\n", strings.Join(r.Authors, ", "))
	}
	if !r.Published.IsZero() {
		fmt.Fprintf(w, "Published:  %s\n", r.Published.Format("2006-01-02"))
	}
	fmt.Fprintf(w, "Processed:  %s\n", r.ProcessedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Score:      %.1f/10%s\n", r.Score.Score, fallbackMark(r.Score.Fallback))
	fmt.Fprintf(w, "Category:   %s (confidence %.2f)%s\n", r.Classification.Category, r.Classification.Confidence, fallbackMark(r.Classification.Fallback))
	fmt.Fprintf(w, "Novelty:    %s, %.1f/10%s\n", r.Novelty.Level, r.Novelty.Score, fallbackMark(r.Novelty.Fallback))

	fmt.Fprintf(w, "\nSummary\n%s\n", indent(r.Summary.String()))
	if r.Novelty.Description != "" {
		fmt.Fprintf(w, "\nNovelty\n%s\n", indent(r.Novelty.Description))
	}
	for _, s := range r.Novelty.Strengths {
		fmt.Fprintf(w, "  + %s\n", s)
	}
	for _, l := range r.Novelty.Limitations {
		fmt.Fprintf(w, "  - %s\n", l)
	}
	if len(r.Score.Breakdown) > 0 {
		fmt.Fprintln(w, "\nBreakdown")
		for _, c := range types.Criteria {
			if v, ok := r.Score.Breakdown[c]; ok {
				fmt.Fprintf(w, "  %-22s %.1f\n", c, v)
			}
		}
	}
	fmt.Fprintf(w, "\nRationale\n%s\n\n", indent(r.Score.Rationale))
}

func printStats(w io.Writer, s store.Stats) {
	fmt.Fprintf(w, "papers:     %d\n", s.Total)
	if s.Total == 0 {
		return
	}
	fmt.Fprintf(w, "score:      avg %.2f, min %.1f, max %.1f\n", s.AvgScore, s.MinScore, s.MaxScore)
	fmt.Fprintf(w, "processed:  %s to %s\n", s.FirstProcessed.Format("2006-01-02"), s.LastProcessed.Format("2006-01-02"))
	if len(s.TopCategories) > 0 {
		fmt.Fprintln(w, "\ntop categories:")
		for _, c := range s.TopCategories {
			fmt.Fprintf(w, "  %-28s %d\n", c.Category, c.Count)
		}
	}
	if len(s.DateCounts) > 0 {
		fmt.Fprintln(w, "\nby day:")
		for _, d := range s.DateCounts {
			fmt.Fprintf(w, "  %s  %d\n", d.Date, d.Count)
		}
	}
}

func fallbackMark(fallback bool) string {
	if fallback {
		return " [recovered]"
	}
	return ""
}

func indent(s string) string {
	if s == "" {
		return "  (none)"
	}
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
