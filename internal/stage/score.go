// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pdiddy/paper-analyzer/internal/gateway"
	"github.com/pdiddy/paper-analyzer/pkg/types"
)

// Scorer produces the overall score from every earlier record.
type Scorer struct {
	agent
}

// NewScorer returns a Scorer that calls gw.
func NewScorer(gw gateway.Gateway, opts Options) *Scorer {
	return &Scorer{agent: newAgent(types.StageScore, gw, opts)}
}

// Prompt renders the scoring prompt.
func (s *Scorer) Prompt(p types.Paper, sum types.SummaryRecord, cls types.ClassificationRecord, nov types.NoveltyRecord) (string, error) {
	return render(scoreTmpl, struct {
		Title                   string
		Abstract                string
		Summary                 string
		Category                string
		ClassificationRationale string
		NoveltyScore            string
		NoveltyLevel            string
		NoveltyDescription      string
		Strengths               []string
		Limitations             []string
	}{
		Title:                   p.Title,
		Abstract:                p.Abstract,
		Summary:                 sum.String(),
		Category:                cls.Category,
		ClassificationRationale: cls.Rationale,
		NoveltyScore:            strconv.FormatFloat(nov.Score, 'f', -1, 64),
		NoveltyLevel:            string(nov.Level),
		NoveltyDescription:      nov.Description,
		Strengths:               nov.Strengths,
		Limitations:             nov.Limitations,
	})
}

// Score scores p with one Gateway call.
func (s *Scorer) Score(ctx context.Context, p types.Paper, sum types.SummaryRecord, cls types.ClassificationRecord, nov types.NoveltyRecord) (types.ScoreRecord, error) {
	if err := s.validate(p); err != nil {
		return types.ScoreRecord{}, err
	}
	prompt, err := s.Prompt(p, sum, cls, nov)
	if err != nil {
		return types.ScoreRecord{}, s.fail(p, fmt.Errorf("rendering prompt: %w", err))
	}

	reply, err := s.complete(ctx, p, scoreSystem, prompt)
	if err != nil {
		return types.ScoreRecord{}, err
	}

	rec, err := s.parser.Score(reply)
	if err != nil {
		return types.ScoreRecord{}, s.fail(p, err)
	}
	if rec.Fallback {
		s.recovered(p)
	}
	return rec, nil
}
