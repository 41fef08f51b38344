// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"context"
	"fmt"

	"github.com/pdiddy/paper-analyzer/internal/gateway"
	"github.com/pdiddy/paper-analyzer/pkg/types"
)

// Summarizer extracts the five-section summary of a paper.
type Summarizer struct {
	agent
}

// NewSummarizer returns a Summarizer that calls gw.
func NewSummarizer(gw gateway.Gateway, opts Options) *Summarizer {
	return &Summarizer{agent: newAgent(types.StageSummarize, gw, opts)}
}

// Prompt renders the summarization prompt for p.
func (s *Summarizer) Prompt(p types.Paper) (string, error) {
	return render(summarizeTmpl, struct {
		Title    string
		Authors  []string
		Abstract string
		FullText string
	}{p.Title, p.Authors, p.Abstract, TruncateFullText(p.FullText)})
}

// Summarize summarizes p with one Gateway call.
func (s *Summarizer) Summarize(ctx context.Context, p types.Paper) (types.SummaryRecord, error) {
	if err := s.validate(p); err != nil {
		return types.SummaryRecord{}, err
	}
	prompt, err := s.Prompt(p)
	if err != nil {
		return types.SummaryRecord{}, s.fail(p, fmt.Errorf("rendering prompt: %w", err))
	}

	reply, err := s.complete(ctx, p, summarizeSystem, prompt)
	if err != nil {
		return types.SummaryRecord{}, err
	}

	rec, err := s.parser.Summary(reply)
	if err != nil {
		return types.SummaryRecord{}, s.fail(p, err)
	}
	return rec, nil
}
