// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists AnalysisRecords in SQLite, one row per paper
// identifier, and answers the lookup and aggregate queries the CLI needs.
//
// The papers table keeps the column names of the original result database
// (id, title, authors, published_date, processed_date, summary,
// classification, novelty_assessment, score, scoring_rationale) so older
// files stay readable; columns added since are created with ALTER TABLE when
// missing. Writes are serialized by a store-wide mutex over a single
// connection, and each upsert is one statement.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-analyzer/pkg/types"
)

// ErrPersistence is wrapped by every database failure. It is fatal to a batch.
var ErrPersistence = errors.New("persistence failure")

// ErrValidation is wrapped by ValidationError.
var ErrValidation = errors.New("invalid analysis record")

// ValidationError lists the required fields a record lacks.
type ValidationError struct {
	PaperID string
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v %q: missing %s", ErrValidation, e.PaperID, strings.Join(e.Missing, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// DefaultPath is the database file used when none is configured.
const DefaultPath = "data/papers.db"

const (
	dateLayout = "2006-01-02"

	// timeLayout has a fixed width so stored timestamps compare as strings.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// Store manages the result database.
type Store struct {
	db *sql.DB

	// mu serializes writes.
	mu sync.Mutex

	// now is replaced in tests.
	now func() time.Time
}

// Open opens or creates the database at path and brings its schema up to
// date. The parent directory is created when missing.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", ErrPersistence, err)
	}
	// One connection keeps an in-memory database alive and lets the mutex
	// fully serialize writers.
	db.SetMaxOpenConns(1)

	s := FromDB(db)
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating schema: %w", ErrPersistence, err)
	}
	return s, nil
}

// FromDB wraps an open database whose schema is already in place.
func FromDB(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// addedColumns are columns created after the original schema, in order.
var addedColumns = []struct{ name, decl string }{
	{"abstract", "TEXT"},
	{"categories", "TEXT"},
	{"published_at", "TEXT"},
	{"processed_at", "TEXT"},
	{"score_breakdown", "TEXT"},
	{"score_fallback", "INTEGER NOT NULL DEFAULT 0"},
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS papers (
		id TEXT PRIMARY KEY,
		title TEXT,
		authors TEXT,
		published_date TEXT,
		processed_date TEXT,
		summary TEXT,
		classification TEXT,
		novelty_assessment TEXT,
		score REAL,
		scoring_rationale TEXT
	)`); err != nil {
		return fmt.Errorf("creating papers table: %w", err)
	}

	existing, err := s.columns(ctx)
	if err != nil {
		return err
	}
	for _, c := range addedColumns {
		if existing[c.name] {
			continue
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE papers ADD COLUMN %s %s", c.name, c.decl)); err != nil {
			return fmt.Errorf("adding column %s: %w", c.name, err)
		}
	}

	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_papers_processed_date ON papers(processed_date)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_score ON papers(score DESC)`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	return nil
}

func (s *Store) columns(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(papers)`)
	if err != nil {
		return nil, fmt.Errorf("reading table info: %w", err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scanning table info: %w", err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// Validate reports the required fields rec lacks, or nil.
func Validate(rec types.AnalysisRecord) error {
	var missing []string
	if strings.TrimSpace(rec.PaperID) == "" {
		missing = append(missing, "paper_id")
	}
	if strings.TrimSpace(rec.Title) == "" {
		missing = append(missing, "title")
	}
	if rec.ProcessedAt.IsZero() {
		missing = append(missing, "processed_at")
	}
	if strings.TrimSpace(rec.Classification.Category) == "" {
		missing = append(missing, "classification.category")
	}
	if strings.TrimSpace(string(rec.Novelty.Level)) == "" {
		missing = append(missing, "novelty_assessment.level")
	}
	if len(missing) > 0 {
		return &ValidationError{PaperID: rec.PaperID, Missing: missing}
	}
	return nil
}

const upsertSQL = `INSERT INTO papers (
	id, title, authors, abstract, categories,
	published_date, published_at, processed_date, processed_at,
	summary, classification, novelty_assessment,
	score, scoring_rationale, score_breakdown, score_fallback
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	title = excluded.title,
	authors = excluded.authors,
	abstract = excluded.abstract,
	categories = excluded.categories,
	published_date = excluded.published_date,
	published_at = excluded.published_at,
	processed_date = excluded.processed_date,
	processed_at = excluded.processed_at,
	summary = excluded.summary,
	classification = excluded.classification,
	novelty_assessment = excluded.novelty_assessment,
	score = excluded.score,
	scoring_rationale = excluded.scoring_rationale,
	score_breakdown = excluded.score_breakdown,
	score_fallback = excluded.score_fallback`

// Upsert stores rec, replacing any record with the same PaperID. A replaced
// record keeps its original insertion position.
func (s *Store) Upsert(ctx context.Context, rec types.AnalysisRecord) error {
	if err := Validate(rec); err != nil {
		return err
	}
	r, err := encode(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, upsertSQL,
		r.id, r.title, r.authors, r.abstract, r.categories,
		r.publishedDate, r.publishedAt, r.processedDate, r.processedAt,
		r.summary, r.classification, r.novelty,
		r.score, r.rationale, r.breakdown, r.fallback,
	); err != nil {
		return fmt.Errorf("%w: upserting %s: %w", ErrPersistence, rec.PaperID, err)
	}
	return nil
}
