// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-analyzer/pkg/types"
)

// --- test helpers ---

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "papers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var baseTime = time.Date(2026, 3, 10, 9, 30, 0, 123456789, time.UTC)

func sampleRecord(id string, score float64, processedAt time.Time) types.AnalysisRecord {
	return types.AnalysisRecord{
		PaperID:    id,
		Title:      "Paper " + id,
		Authors:    []string{"Jane Smith", "Wei Zhang"},
		Abstract:   "Abstract of " + id,
		Published:  time.Date(2026, 3, 1, 17, 4, 5, 0, time.UTC),
		Categories: []string{"cs.AI", "cs.CL"},
		Summary: types.SummaryRecord{
			ResearchProblem: "Problem",
			Methodology:     "Method",
			Innovations:     "Innovation",
			Findings:        "Findings",
			Impact:          "Impact",
		},
		Classification: types.ClassificationRecord{Category: "Large Language Models", Confidence: 0.9, Rationale: "LLMs"},
		Novelty: types.NoveltyRecord{
			Score:       7,
			Level:       types.NoveltySignificant,
			Description: "New",
			Strengths:   []string{"a", "b"},
			Limitations: []string{},
		},
		Score: types.ScoreRecord{
			Score:     score,
			Rationale: "Because",
			Breakdown: map[types.Criterion]float64{types.CriterionInnovation: 8, types.CriterionPracticalValue: 6.5},
		},
		ProcessedAt: processedAt,
	}
}

func ids(records []types.AnalysisRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.PaperID
	}
	return out
}

// --- tests ---

func TestUpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := sampleRecord("2301.00001", 7.5, baseTime)

	require.NoError(t, s.Upsert(ctx, rec))

	got, ok, err := s.Get(ctx, rec.PaperID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec, *got)
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)

	got, ok, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestUpsertFallbackRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := sampleRecord("fb", 6, baseTime)
	rec.Score = types.ScoreRecord{Score: 6, Rationale: "6/10 prose", Breakdown: map[types.Criterion]float64{}, Fallback: true}
	rec.Classification.Fallback = true
	rec.Categories = nil
	rec.Published = time.Time{}

	require.NoError(t, s.Upsert(ctx, rec))
	got, ok, err := s.Get(ctx, "fb")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec, *got)
}

func TestUpsertReplacesWithoutDuplicating(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, sampleRecord("a", 5, baseTime)))
	require.NoError(t, s.Upsert(ctx, sampleRecord("b", 5, baseTime)))

	replacement := sampleRecord("a", 5, baseTime.Add(time.Minute))
	replacement.Title = "Revised"
	require.NoError(t, s.Upsert(ctx, replacement))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, _, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Revised", got.Title)

	// "a" keeps its original insertion position for tie-breaking.
	top, err := s.TopN(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(top))
}

func TestUpsertIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := sampleRecord("x", 8, baseTime)

	require.NoError(t, s.Upsert(ctx, rec))
	require.NoError(t, s.Upsert(ctx, rec))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _, err := s.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, rec, *got)
}

func TestUpsertValidation(t *testing.T) {
	s := newTestStore(t)
	rec := sampleRecord("v", 5, time.Time{})
	rec.Title = " "
	rec.Novelty.Level = ""

	err := s.Upsert(context.Background(), rec)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.False(t, errors.Is(err, ErrPersistence))

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"title", "processed_at", "novelty_assessment.level"}, ve.Missing)

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, sampleRecord("e", 5, baseTime)))

	ok, err := s.Exists(ctx, "e")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "f")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestByProcessedDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Upsert(ctx, sampleRecord("low", 4, day.Add(1*time.Hour))))
	require.NoError(t, s.Upsert(ctx, sampleRecord("tie1", 8, day.Add(2*time.Hour))))
	require.NoError(t, s.Upsert(ctx, sampleRecord("other-day", 9, day.Add(25*time.Hour))))
	require.NoError(t, s.Upsert(ctx, sampleRecord("tie2", 8, day.Add(23*time.Hour))))

	got, err := s.ByProcessedDate(ctx, day.Add(12*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"tie1", "tie2", "low"}, ids(got))

	none, err := s.ByProcessedDate(ctx, day.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestTopN(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Upsert(ctx, sampleRecord("old-high", 9.5, now.AddDate(0, 0, -30))))
	require.NoError(t, s.Upsert(ctx, sampleRecord("recent-mid", 6, now.Add(-time.Hour))))
	require.NoError(t, s.Upsert(ctx, sampleRecord("recent-high", 8, now.AddDate(0, 0, -2))))
	require.NoError(t, s.Upsert(ctx, sampleRecord("recent-low", 2, now.AddDate(0, 0, -3))))

	all, err := s.TopN(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"old-high", "recent-high"}, ids(all))

	week, err := s.TopN(ctx, 10, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"recent-high", "recent-mid", "recent-low"}, ids(week))

	none, err := s.TopN(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTopNWindowIncludesLegacyRowsOnCutoffDay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE papers (
		id TEXT PRIMARY KEY, title TEXT, authors TEXT, published_date TEXT, processed_date TEXT,
		summary TEXT, classification TEXT, novelty_assessment TEXT, score REAL, scoring_rationale TEXT)`)
	require.NoError(t, err)
	for _, row := range []struct {
		id, processed string
		score         float64
	}{
		{"cutoff-day", "2023-01-20", 7},
		{"day-before", "2023-01-19", 9},
		{"recent", "2023-01-26", 5},
	} {
		_, err = db.Exec(`INSERT INTO papers VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			row.id, "Legacy "+row.id, "A. Author", "2023-01-10", row.processed,
			"Research Problem: p.",
			`{"category": "AI Safety", "confidence": 0.8, "rationale": "r"}`,
			`{"score": 5, "level": "Moderate", "description": "d", "strengths": [], "limitations": []}`,
			row.score, "ok")
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	now := time.Date(2023, 1, 27, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	require.NoError(t, s.Upsert(ctx, sampleRecord("fresh", 6, now.Add(-time.Hour))))
	require.NoError(t, s.Upsert(ctx, sampleRecord("stale", 8, now.AddDate(0, 0, -7).Add(-time.Minute))))

	week, err := s.TopN(ctx, 10, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"cutoff-day", "fresh", "recent"}, ids(week))
}

func TestStatisticsEmpty(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
	assert.Equal(t, 0.0, stats.AvgScore)
	assert.Equal(t, 0.0, stats.MaxScore)
	assert.Equal(t, 0.0, stats.MinScore)
	assert.True(t, stats.FirstProcessed.IsZero())
	assert.NotNil(t, stats.TopCategories)
	assert.Empty(t, stats.TopCategories)

	b, err := json.Marshal(stats.TopCategories)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(b))
}

func TestStatistics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	categories := []string{"Computer Vision", "AI Safety", "Computer Vision", "Reinforcement Learning", "AI Safety", "Computer Vision", "Neural Architecture", "Large Language Models", "Other"}
	for i, c := range categories {
		rec := sampleRecord(fmt.Sprintf("p%d", i), float64(i+1), baseTime.Add(time.Duration(i)*24*time.Hour))
		rec.Classification.Category = c
		require.NoError(t, s.Upsert(ctx, rec))
	}

	stats, err := s.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, stats.Total)
	assert.InDelta(t, 5.0, stats.AvgScore, 1e-9)
	assert.Equal(t, 9.0, stats.MaxScore)
	assert.Equal(t, 1.0, stats.MinScore)
	assert.Equal(t, baseTime, stats.FirstProcessed)
	assert.Equal(t, baseTime.Add(8*24*time.Hour), stats.LastProcessed)

	require.Len(t, stats.TopCategories, topCategoryLimit)
	assert.Equal(t, CategoryCount{"Computer Vision", 3}, stats.TopCategories[0])
	assert.Equal(t, CategoryCount{"AI Safety", 2}, stats.TopCategories[1])
	// Single-count categories are ordered by name.
	assert.Equal(t, "Large Language Models", stats.TopCategories[2].Category)
	assert.Equal(t, "Neural Architecture", stats.TopCategories[3].Category)
	assert.Equal(t, "Other", stats.TopCategories[4].Category)

	assert.Len(t, stats.DateCounts, 9)
	assert.Equal(t, DateCount{"2026-03-10", 1}, stats.DateCounts[0])
}

func TestConcurrentUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Upsert(ctx, sampleRecord(fmt.Sprintf("c%d", i%10), float64(i%10), baseTime)))
		}(i)
	}
	wg.Wait()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestOpenMigratesLegacySchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE papers (
		id TEXT PRIMARY KEY, title TEXT, authors TEXT, published_date TEXT, processed_date TEXT,
		summary TEXT, classification TEXT, novelty_assessment TEXT, score REAL, scoring_rationale TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO papers VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		"2301.07041", "Legacy Paper", "A. Author, B. Author", "2023-01-17", "2023-01-20",
		"Research Problem: Old problem.\nMethodology: Old method.",
		`{"category": "Large Language Models", "confidence": 0.8, "rationale": "r"}`,
		`{"score": 6.5, "level": "Moderate", "description": "d", "strengths": ["s"], "limitations": []}`,
		7.0, "Solid.")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, ok, err := s.Get(context.Background(), "2301.07041")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"A. Author", "B. Author"}, got.Authors)
	assert.Equal(t, "Old problem.", got.Summary.ResearchProblem)
	assert.Equal(t, "Old method.", got.Summary.Methodology)
	assert.Equal(t, types.NoveltyModerate, got.Novelty.Level)
	assert.Equal(t, 7.0, got.Score.Score)
	assert.Equal(t, "Solid.", got.Score.Rationale)
	assert.Equal(t, time.Date(2023, 1, 20, 0, 0, 0, 0, time.UTC), got.ProcessedAt)
	assert.Equal(t, time.Date(2023, 1, 17, 0, 0, 0, 0, time.UTC), got.Published)

	stats, err := s.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []CategoryCount{{"Large Language Models", 1}}, stats.TopCategories)

	// Reopening an up-to-date database is a no-op.
	require.NoError(t, s.Close())
	s2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestExport(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, sampleRecord("first", 3, baseTime)))
	require.NoError(t, s.Upsert(ctx, sampleRecord("second", 9, baseTime)))

	var jbuf bytes.Buffer
	require.NoError(t, s.ExportJSON(ctx, &jbuf))
	var fromJSON []types.AnalysisRecord
	require.NoError(t, json.Unmarshal(jbuf.Bytes(), &fromJSON))
	assert.Equal(t, []string{"first", "second"}, ids(fromJSON))
	assert.Contains(t, jbuf.String(), `"novelty_assessment"`)

	var ybuf bytes.Buffer
	require.NoError(t, s.ExportYAML(ctx, &ybuf))
	var fromYAML []map[string]any
	require.NoError(t, yaml.Unmarshal(ybuf.Bytes(), &fromYAML))
	require.Len(t, fromYAML, 2)
	assert.Equal(t, "first", fromYAML[0]["paper_id"])
}

// --- persistence failures ---

func TestUpsertPersistenceFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO papers").WillReturnError(errors.New("disk I/O error"))

	s := FromDB(db)
	err = s.Upsert(context.Background(), sampleRecord("p", 5, baseTime))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Contains(t, err.Error(), "disk I/O error")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertValidationSkipsDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	err = FromDB(db).Upsert(context.Background(), types.AnalysisRecord{})
	assert.ErrorIs(t, err, ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryPersistenceFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	s := FromDB(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT .* FROM papers WHERE id = ?").WillReturnError(errors.New("locked"))
	_, _, err = s.Get(ctx, "p")
	assert.ErrorIs(t, err, ErrPersistence)

	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("locked"))
	_, err = s.Count(ctx)
	assert.ErrorIs(t, err, ErrPersistence)

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("locked"))
	_, err = s.Statistics(ctx)
	assert.ErrorIs(t, err, ErrPersistence)

	mock.ExpectQuery("SELECT .* ORDER BY score DESC").WillReturnError(errors.New("locked"))
	_, err = s.TopN(ctx, 5, 0)
	assert.ErrorIs(t, err, ErrPersistence)

	assert.NoError(t, mock.ExpectationsWereMet())
}
