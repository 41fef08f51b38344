// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stage implements the four analysis agents: Summarizer, Classifier,
// NoveltyAssessor, and Scorer.
//
// Each agent renders a deterministic prompt from the paper and the records
// produced by earlier stages, makes exactly one Gateway call, and hands the
// reply to the parse package. Failures are returned as *Error values that
// wrap either a gateway error or a parse error; agents never retry.
package stage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-analyzer/internal/gateway"
	"github.com/pdiddy/paper-analyzer/internal/observability"
	"github.com/pdiddy/paper-analyzer/internal/parse"
	"github.com/pdiddy/paper-analyzer/pkg/types"
)

// ErrInvalidPaper means the paper lacks a field every prompt depends on.
var ErrInvalidPaper = errors.New("invalid paper")

// Error reports a stage failure for one paper.
type Error struct {
	Stage   types.StageName
	PaperID string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.PaperID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Options configure every agent.
type Options struct {
	// Params are sent with every request.
	Params gateway.Params

	Logger zerolog.Logger

	// Metrics may be nil.
	Metrics *observability.Metrics
}

// agent holds what every stage shares.
type agent struct {
	stage   types.StageName
	gateway gateway.Gateway
	parser  *parse.Parser
	params  gateway.Params
	logger  zerolog.Logger
	metrics *observability.Metrics
}

func newAgent(stage types.StageName, gw gateway.Gateway, opts Options) agent {
	logger := observability.WithStageContext(opts.Logger, string(stage))
	return agent{
		stage:   stage,
		gateway: gw,
		parser:  parse.New(logger),
		params:  opts.Params,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// fail wraps err as a stage error for p.
func (a agent) fail(p types.Paper, err error) error {
	return &Error{Stage: a.stage, PaperID: p.ID, Err: err}
}

// validate checks the fields every prompt embeds.
func (a agent) validate(p types.Paper) error {
	if missing := p.Validate(); len(missing) > 0 {
		return a.fail(p, fmt.Errorf("%w: missing %s", ErrInvalidPaper, strings.Join(missing, ", ")))
	}
	return nil
}

// complete makes the stage's single Gateway call.
func (a agent) complete(ctx context.Context, p types.Paper, system, prompt string) (string, error) {
	start := time.Now()
	reply, err := a.gateway.Complete(ctx, gateway.Request{
		System: system,
		Prompt: prompt,
		Params: a.params,
	})
	a.metrics.RecordStage(string(a.stage), time.Since(start).Seconds())
	if err != nil {
		return "", a.fail(p, err)
	}
	return reply, nil
}

// recovered records a record produced by a fallback heuristic.
func (a agent) recovered(p types.Paper) {
	a.metrics.RecordFallback(string(a.stage))
	a.logger.Info().Str("paper_id", p.ID).Msg("reply recovered by fallback")
}

// Agents bundles the four stages in execution order.
type Agents struct {
	Summarizer      *Summarizer
	Classifier      *Classifier
	NoveltyAssessor *NoveltyAssessor
	Scorer          *Scorer
}

// NewAgents builds all four stages over one Gateway. interestedFields are the
// research areas offered to the Classifier.
func NewAgents(gw gateway.Gateway, interestedFields []string, opts Options) Agents {
	return Agents{
		Summarizer:      NewSummarizer(gw, opts),
		Classifier:      NewClassifier(gw, interestedFields, opts),
		NoveltyAssessor: NewNoveltyAssessor(gw, opts),
		Scorer:          NewScorer(gw, opts),
	}
}
