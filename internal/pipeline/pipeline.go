// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives papers through the analysis stages and persists
// the results.
//
// A paper moves fetched, summarized, classified, novelty_assessed, scored,
// persisted; any error moves it to failed. Stages for one paper run strictly
// in order. Papers in a batch run concurrently up to a configured bound.
// A stage failure skips only that paper; a persistence failure aborts the
// batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/paper-analyzer/internal/observability"
	"github.com/pdiddy/paper-analyzer/internal/source"
	"github.com/pdiddy/paper-analyzer/internal/stage"
	"github.com/pdiddy/paper-analyzer/internal/store"
	"github.com/pdiddy/paper-analyzer/pkg/types"
)

// ErrPaperNotFound is returned by AnalyzeByID when the source has no paper
// with the requested identifier.
var ErrPaperNotFound = errors.New("paper not found")

// Store is the subset of the result store the orchestrator writes to.
type Store interface {
	Upsert(ctx context.Context, rec types.AnalysisRecord) error
	Exists(ctx context.Context, id string) (bool, error)
}

// FullTextFetcher recovers the body of a paper that arrived without one.
type FullTextFetcher interface {
	Attach(ctx context.Context, p *types.Paper) error
}

// DefaultConcurrency bounds parallel papers when Options.Concurrency is not
// positive.
const DefaultConcurrency = 4

// Options configure an Orchestrator.
type Options struct {
	// Categories are passed to the source on every fetch.
	Categories []string

	// Concurrency bounds how many papers are analyzed at once.
	Concurrency int

	// SkipExisting skips fetched papers that already have a stored record.
	SkipExisting bool

	// FullText, when set, is asked for the body of papers without one. A
	// paper whose text cannot be recovered is analyzed from its abstract.
	FullText FullTextFetcher

	Logger zerolog.Logger

	// Metrics may be nil.
	Metrics *observability.Metrics
}

// Orchestrator runs batches of papers through the stage agents.
type Orchestrator struct {
	source source.Source
	agents stage.Agents
	store  Store

	categories   []string
	concurrency  int
	skipExisting bool
	fullText     FullTextFetcher
	logger       zerolog.Logger
	metrics      *observability.Metrics

	now   func() time.Time
	newID func() string
}

// New returns an Orchestrator over the given source, agents, and store.
func New(src source.Source, agents stage.Agents, st Store, opts Options) *Orchestrator {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Orchestrator{
		source:       src,
		agents:       agents,
		store:        st,
		categories:   append([]string(nil), opts.Categories...),
		concurrency:  concurrency,
		skipExisting: opts.SkipExisting,
		fullText:     opts.FullText,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Failure describes one paper that did not reach the persisted state.
type Failure struct {
	PaperID string          `json:"paper_id" yaml:"paper_id"`
	Stage   types.StageName `json:"stage" yaml:"stage"`
	Err     error           `json:"-" yaml:"-"`
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s failed at %s: %v", f.PaperID, f.Stage, f.Err)
}

// BatchSummary counts the outcomes of a batch.
type BatchSummary struct {
	Fetched   int       `json:"fetched" yaml:"fetched"`
	Processed int       `json:"processed" yaml:"processed"`
	Failed    int       `json:"failed" yaml:"failed"`
	Skipped   int       `json:"skipped" yaml:"skipped"`
	Failures  []Failure `json:"failures" yaml:"failures"`
}

// Result is the outcome of Run.
type Result struct {
	BatchID string
	Started time.Time
	Elapsed time.Duration

	// Records are the persisted records in source order.
	Records []types.AnalysisRecord

	Summary BatchSummary
}

// ProcessPaper runs every stage over p in order and persists the record.
// Any error leaves the paper failed and is returned unchanged: a
// *stage.Error for gateway and parse failures, a *store.ValidationError or
// an error wrapping store.ErrPersistence from the store.
func (o *Orchestrator) ProcessPaper(ctx context.Context, p types.Paper) (*types.AnalysisRecord, error) {
	logger := observability.WithPaperContext(o.logger, p.ID, p.Title)
	tr := transitions{logger: logger, state: types.StateFetched}
	tr.log()

	if o.fullText != nil && p.FullText == "" {
		if err := o.fullText.Attach(ctx, &p); err != nil {
			if ctx.Err() != nil {
				return nil, tr.fail(ctx.Err())
			}
			logger.Warn().Err(err).Msg("full text unavailable, analyzing abstract")
		}
	}

	sum, err := o.agents.Summarizer.Summarize(ctx, p)
	if err != nil {
		return nil, tr.fail(err)
	}
	tr.to(types.StateSummarized)

	cls, err := o.agents.Classifier.Classify(ctx, p, sum)
	if err != nil {
		return nil, tr.fail(err)
	}
	tr.to(types.StateClassified)

	nov, err := o.agents.NoveltyAssessor.Assess(ctx, p, sum)
	if err != nil {
		return nil, tr.fail(err)
	}
	tr.to(types.StateNoveltyAssessed)

	sc, err := o.agents.Scorer.Score(ctx, p, sum, cls, nov)
	if err != nil {
		return nil, tr.fail(err)
	}
	tr.to(types.StateScored)

	rec := types.NewAnalysisRecord(p, sum, cls, nov, sc, o.now().UTC())
	if err := o.store.Upsert(ctx, rec); err != nil {
		return nil, tr.fail(err)
	}
	tr.to(types.StatePersisted)
	o.metrics.RecordPaperProcessed(sc.Score)

	logger.Info().
		Str("category", cls.Category).
		Str("novelty", string(nov.Level)).
		Float64("score", sc.Score).
		Msg("paper analyzed")
	return &rec, nil
}

// transitions logs a paper's state changes.
type transitions struct {
	logger zerolog.Logger
	state  types.State
}

func (t *transitions) log() {
	t.logger.Debug().Str("state", string(t.state)).Msg("state transition")
}

func (t *transitions) to(s types.State) {
	t.state = s
	t.log()
}

func (t *transitions) fail(err error) error {
	from := t.state
	t.state = types.StateFailed
	t.logger.Warn().Err(err).
		Str("state", string(types.StateFailed)).
		Str("from", string(from)).
		Str("stage", string(stageOf(err))).
		Msg("paper failed")
	return err
}

// stageOf names the stage an error from ProcessPaper came from.
func stageOf(err error) types.StageName {
	var se *stage.Error
	if errors.As(err, &se) {
		return se.Stage
	}
	return types.StagePersist
}

// Run fetches up to maxPapers papers submitted within lookbackDays and
// analyzes them concurrently.
//
// A source error aborts the batch before any stage runs. Stage and record
// validation failures are collected in the summary and the batch continues.
// A persistence failure cancels the remaining papers and is returned along
// with the partial result; records already persisted remain in the store.
func (o *Orchestrator) Run(ctx context.Context, lookbackDays, maxPapers int) (res Result, err error) {
	start := time.Now()
	res = Result{BatchID: o.newID(), Started: o.now()}
	logger := observability.WithBatchContext(o.logger, res.BatchID)
	defer func() { res.Elapsed = time.Since(start) }()

	q := source.Query{
		Categories: o.categories,
		Lookback:   time.Duration(lookbackDays) * 24 * time.Hour,
		MaxResults: maxPapers,
	}
	logger.Info().
		Str("source", o.source.Name()).
		Strs("categories", q.Categories).
		Int("lookback_days", lookbackDays).
		Int("max_papers", maxPapers).
		Msg("batch started")

	papers, err := o.source.Fetch(ctx, q)
	if err != nil {
		o.metrics.RecordBatch("aborted")
		logger.Error().Err(err).Msg("fetching papers failed")
		return res, fmt.Errorf("fetching papers: %w", err)
	}
	res.Summary.Fetched = len(papers)
	o.metrics.RecordPapersFetched(len(papers))

	papers, err = o.pending(ctx, papers, logger)
	if err != nil {
		o.metrics.RecordBatch("aborted")
		return res, err
	}
	res.Summary.Skipped = res.Summary.Fetched - len(papers)

	if len(papers) == 0 {
		logger.Info().Msg("no papers to analyze")
		res.Records = []types.AnalysisRecord{}
		res.Summary.Failures = []Failure{}
		o.metrics.RecordBatch("completed")
		return res, nil
	}

	records := make([]*types.AnalysisRecord, len(papers))
	failures := make([]*Failure, len(papers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, p := range papers {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			rec, err := o.ProcessPaper(gctx, p)
			if err == nil {
				records[i] = rec
				return nil
			}
			if errors.Is(err, store.ErrPersistence) {
				return fmt.Errorf("persisting %s: %w", p.ID, err)
			}
			if gctx.Err() != nil {
				// Interrupted, not failed.
				return nil
			}
			failures[i] = &Failure{PaperID: p.ID, Stage: stageOf(err), Err: err}
			return nil
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}

	res.Records = []types.AnalysisRecord{}
	res.Summary.Failures = []Failure{}
	for i := range papers {
		switch {
		case records[i] != nil:
			res.Records = append(res.Records, *records[i])
		case failures[i] != nil:
			res.Summary.Failures = append(res.Summary.Failures, *failures[i])
			o.metrics.RecordPaperFailed(string(failures[i].Stage))
		}
	}
	res.Summary.Processed = len(res.Records)
	res.Summary.Failed = len(res.Summary.Failures)

	if runErr != nil {
		o.metrics.RecordBatch("aborted")
		logger.Error().Err(runErr).
			Int("processed", res.Summary.Processed).
			Int("failed", res.Summary.Failed).
			Msg("batch aborted")
		return res, fmt.Errorf("batch %s aborted: %w", res.BatchID, runErr)
	}

	o.metrics.RecordBatch("completed")
	logger.Info().
		Int("fetched", res.Summary.Fetched).
		Int("processed", res.Summary.Processed).
		Int("failed", res.Summary.Failed).
		Int("skipped", res.Summary.Skipped).
		Msg("batch completed")
	return res, nil
}

// pending drops papers that already have a stored record when SkipExisting
// is set.
func (o *Orchestrator) pending(ctx context.Context, papers []types.Paper, logger zerolog.Logger) ([]types.Paper, error) {
	if !o.skipExisting {
		return papers, nil
	}
	out := make([]types.Paper, 0, len(papers))
	for _, p := range papers {
		ok, err := o.store.Exists(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("checking stored analysis: %w", err)
		}
		if ok {
			logger.Info().Str("paper_id", p.ID).Msg("skipping already analyzed paper")
			o.metrics.RecordPaperSkipped()
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// AnalyzeByID fetches one paper by identifier and processes it.
func (o *Orchestrator) AnalyzeByID(ctx context.Context, id string) (*types.AnalysisRecord, error) {
	p, err := o.source.FetchByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", id, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPaperNotFound, id)
	}
	o.metrics.RecordPapersFetched(1)

	rec, err := o.ProcessPaper(ctx, *p)
	if err != nil {
		o.metrics.RecordPaperFailed(string(stageOf(err)))
		return nil, err
	}
	return rec, nil
}
