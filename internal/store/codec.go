// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pdiddy/paper-analyzer/internal/parse"
	"github.com/pdiddy/paper-analyzer/pkg/types"
)

const authorSep = ", "

// row holds the column values of one papers row.
type row struct {
	id             string
	title          string
	authors        string
	abstract       string
	categories     string
	publishedDate  string
	publishedAt    string
	processedDate  string
	processedAt    string
	summary        string
	classification string
	novelty        string
	score          float64
	rationale      string
	breakdown      string
	fallback       bool
}

func encode(rec types.AnalysisRecord) (row, error) {
	r := row{
		id:            rec.PaperID,
		title:         rec.Title,
		authors:       strings.Join(rec.Authors, authorSep),
		abstract:      rec.Abstract,
		processedDate: rec.ProcessedAt.UTC().Format(dateLayout),
		processedAt:   rec.ProcessedAt.UTC().Format(timeLayout),
		score:         rec.Score.Score,
		rationale:     rec.Score.Rationale,
		fallback:      rec.Score.Fallback,
	}
	if !rec.Published.IsZero() {
		r.publishedDate = rec.Published.UTC().Format(dateLayout)
		r.publishedAt = rec.Published.UTC().Format(timeLayout)
	}

	var err error
	for _, f := range []struct {
		dst  *string
		name string
		v    any
	}{
		{&r.categories, "categories", rec.Categories},
		{&r.summary, "summary", rec.Summary},
		{&r.classification, "classification", rec.Classification},
		{&r.novelty, "novelty_assessment", rec.Novelty},
		{&r.breakdown, "score_breakdown", rec.Score.Breakdown},
	} {
		if *f.dst, err = marshal(f.v); err != nil {
			return row{}, fmt.Errorf("%w: encoding %s of %s: %w", ErrPersistence, f.name, rec.PaperID, err)
		}
	}
	return r, nil
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// selectColumns lists the columns scanned by scanRecord, in order.
const selectColumns = `id, title, authors, abstract, categories,
	published_date, published_at, processed_date, processed_at,
	summary, classification, novelty_assessment,
	score, scoring_rationale, score_breakdown, score_fallback`

type scanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one row selected with selectColumns. Columns absent from
// rows written by older versions are NULL and decode to zero values.
func scanRecord(sc scanner) (types.AnalysisRecord, error) {
	var (
		id                                          string
		title, authors, abstract, categories        sql.NullString
		publishedDate, publishedAt                  sql.NullString
		processedDate, processedAt                  sql.NullString
		summary, classification, novelty, rationale sql.NullString
		breakdown                                   sql.NullString
		score                                       sql.NullFloat64
		fallback                                    sql.NullBool
	)
	if err := sc.Scan(&id, &title, &authors, &abstract, &categories,
		&publishedDate, &publishedAt, &processedDate, &processedAt,
		&summary, &classification, &novelty,
		&score, &rationale, &breakdown, &fallback); err != nil {
		return types.AnalysisRecord{}, err
	}

	rec := types.AnalysisRecord{
		PaperID:     id,
		Title:       title.String,
		Authors:     splitAuthors(authors.String),
		Abstract:    abstract.String,
		Published:   parseTime(publishedAt.String, publishedDate.String),
		ProcessedAt: parseTime(processedAt.String, processedDate.String),
		Score: types.ScoreRecord{
			Score:     score.Float64,
			Rationale: rationale.String,
			Fallback:  fallback.Bool,
		},
	}

	if err := unmarshal(categories, &rec.Categories); err != nil {
		return rec, fmt.Errorf("decoding categories of %s: %w", id, err)
	}
	if err := unmarshal(classification, &rec.Classification); err != nil {
		return rec, fmt.Errorf("decoding classification of %s: %w", id, err)
	}
	if err := unmarshal(novelty, &rec.Novelty); err != nil {
		return rec, fmt.Errorf("decoding novelty_assessment of %s: %w", id, err)
	}
	if err := unmarshal(breakdown, &rec.Score.Breakdown); err != nil {
		return rec, fmt.Errorf("decoding score_breakdown of %s: %w", id, err)
	}
	rec.Summary = decodeSummary(summary.String)
	return rec, nil
}

func unmarshal(v sql.NullString, dst any) error {
	if !v.Valid || v.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(v.String), dst)
}

// decodeSummary reads the summary column. Rows from the original database
// hold the summary as labelled plain text rather than JSON.
func decodeSummary(s string) types.SummaryRecord {
	var rec types.SummaryRecord
	if s == "" {
		return rec
	}
	if strings.HasPrefix(strings.TrimSpace(s), "{") && json.Unmarshal([]byte(s), &rec) == nil {
		return rec
	}
	rec, err := parse.ParseSummary(s)
	if err != nil || rec.IsEmpty() {
		return types.SummaryRecord{ResearchProblem: strings.TrimSpace(s)}
	}
	return rec
}

func splitAuthors(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, authorSep)
}

// parseTime reads a stored timestamp, falling back to the date column.
func parseTime(ts, date string) time.Time {
	if ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			return t
		}
	}
	if date != "" {
		if t, err := time.Parse(dateLayout, date); err == nil {
			return t
		}
	}
	return time.Time{}
}
