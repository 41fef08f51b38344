// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/paper-analyzer/pkg/types"
)

// Get returns the record stored for id. The boolean is false when no record
// exists.
func (s *Store) Get(ctx context.Context, id string) (*types.AnalysisRecord, bool, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM papers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: getting %s: %w", ErrPersistence, id, err)
	}
	return &rec, true, nil
}

// Exists reports whether a record is stored for id.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM papers WHERE id = ?`, id).Scan(&n); err != nil {
		return false, fmt.Errorf("%w: checking %s: %w", ErrPersistence, id, err)
	}
	return n > 0, nil
}

// ByProcessedDate returns the records processed on the UTC calendar day of
// date, highest score first and then in insertion order.
func (s *Store) ByProcessedDate(ctx context.Context, date time.Time) ([]types.AnalysisRecord, error) {
	return s.query(ctx, "listing by processed date",
		`SELECT `+selectColumns+` FROM papers WHERE processed_date = ? ORDER BY score DESC, rowid ASC`,
		date.UTC().Format(dateLayout))
}

// TopN returns up to n records with the highest scores, ties in insertion
// order. A positive window restricts the result to records processed within
// that duration of now.
func (s *Store) TopN(ctx context.Context, n int, window time.Duration) ([]types.AnalysisRecord, error) {
	if n <= 0 {
		return []types.AnalysisRecord{}, nil
	}
	if window > 0 {
		cutoff := s.now().Add(-window).UTC()
		// Legacy rows carry only a processed date; they match from the
		// cutoff's calendar day onward.
		return s.query(ctx, "listing top papers",
			`SELECT `+selectColumns+` FROM papers
			WHERE processed_at >= ? OR (processed_at IS NULL AND processed_date >= ?)
			ORDER BY score DESC, rowid ASC LIMIT ?`,
			cutoff.Format(timeLayout), cutoff.Format(dateLayout), n)
	}
	return s.query(ctx, "listing top papers",
		`SELECT `+selectColumns+` FROM papers ORDER BY score DESC, rowid ASC LIMIT ?`, n)
}

// All returns every record in insertion order.
func (s *Store) All(ctx context.Context) ([]types.AnalysisRecord, error) {
	return s.query(ctx, "listing papers",
		`SELECT `+selectColumns+` FROM papers ORDER BY rowid ASC`)
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM papers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: counting papers: %w", ErrPersistence, err)
	}
	return n, nil
}

func (s *Store) query(ctx context.Context, what, q string, args ...any) ([]types.AnalysisRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPersistence, what, err)
	}
	defer rows.Close()

	records := []types.AnalysisRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrPersistence, what, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPersistence, what, err)
	}
	return records, nil
}

// CategoryCount is the number of records in one classification category.
type CategoryCount struct {
	Category string `json:"category" yaml:"category"`
	Count    int    `json:"count" yaml:"count"`
}

// DateCount is the number of records processed on one day.
type DateCount struct {
	Date  string `json:"date" yaml:"date"`
	Count int    `json:"count" yaml:"count"`
}

// Stats summarizes the store.
type Stats struct {
	Total          int             `json:"total" yaml:"total"`
	AvgScore       float64         `json:"avg_score" yaml:"avg_score"`
	MaxScore       float64         `json:"max_score" yaml:"max_score"`
	MinScore       float64         `json:"min_score" yaml:"min_score"`
	FirstProcessed time.Time       `json:"first_processed" yaml:"first_processed"`
	LastProcessed  time.Time       `json:"last_processed" yaml:"last_processed"`
	TopCategories  []CategoryCount `json:"top_categories" yaml:"top_categories"`
	DateCounts     []DateCount     `json:"date_counts" yaml:"date_counts"`
}

// topCategoryLimit bounds Stats.TopCategories.
const topCategoryLimit = 5

// Statistics aggregates the store. An empty store yields zero values and
// empty, non-nil slices.
func (s *Store) Statistics(ctx context.Context) (Stats, error) {
	stats := Stats{
		TopCategories: []CategoryCount{},
		DateCounts:    []DateCount{},
	}

	var first, last sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT
		COUNT(*),
		COALESCE(AVG(score), 0),
		COALESCE(MAX(score), 0),
		COALESCE(MIN(score), 0),
		MIN(COALESCE(processed_at, processed_date)),
		MAX(COALESCE(processed_at, processed_date))
		FROM papers`).Scan(&stats.Total, &stats.AvgScore, &stats.MaxScore, &stats.MinScore, &first, &last); err != nil {
		return Stats{}, fmt.Errorf("%w: aggregating scores: %w", ErrPersistence, err)
	}
	stats.FirstProcessed = parseTime(first.String, first.String)
	stats.LastProcessed = parseTime(last.String, last.String)

	rows, err := s.db.QueryContext(ctx, `SELECT json_extract(classification, '$.category') AS category, COUNT(*) AS n
		FROM papers
		WHERE json_valid(classification) AND json_extract(classification, '$.category') IS NOT NULL
		GROUP BY category
		ORDER BY n DESC, category ASC
		LIMIT ?`, topCategoryLimit)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: counting categories: %w", ErrPersistence, err)
	}
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			rows.Close()
			return Stats{}, fmt.Errorf("%w: counting categories: %w", ErrPersistence, err)
		}
		stats.TopCategories = append(stats.TopCategories, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("%w: counting categories: %w", ErrPersistence, err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT processed_date, COUNT(*) FROM papers
		WHERE processed_date IS NOT NULL
		GROUP BY processed_date
		ORDER BY processed_date ASC`)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: counting dates: %w", ErrPersistence, err)
	}
	defer rows.Close()
	for rows.Next() {
		var d DateCount
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return Stats{}, fmt.Errorf("%w: counting dates: %w", ErrPersistence, err)
		}
		stats.DateCounts = append(stats.DateCounts, d)
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("%w: counting dates: %w", ErrPersistence, err)
	}
	return stats, nil
}
