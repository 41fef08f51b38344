// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"context"
	"fmt"

	"github.com/pdiddy/paper-analyzer/internal/gateway"
	"github.com/pdiddy/paper-analyzer/pkg/types"
)

// NoveltyAssessor grades how new a paper's contribution is.
type NoveltyAssessor struct {
	agent
}

// NewNoveltyAssessor returns a NoveltyAssessor that calls gw.
func NewNoveltyAssessor(gw gateway.Gateway, opts Options) *NoveltyAssessor {
	return &NoveltyAssessor{agent: newAgent(types.StageNovelty, gw, opts)}
}

// Prompt renders the novelty prompt, embedding introduction and related-work
// excerpts from the full text when present.
func (n *NoveltyAssessor) Prompt(p types.Paper, sum types.SummaryRecord) (string, error) {
	return render(noveltyTmpl, struct {
		Title        string
		Abstract     string
		Summary      string
		Introduction string
		RelatedWork  string
	}{p.Title, p.Abstract, sum.String(), ExtractIntroduction(p.FullText), ExtractRelatedWork(p.FullText)})
}

// Assess grades p with one Gateway call.
func (n *NoveltyAssessor) Assess(ctx context.Context, p types.Paper, sum types.SummaryRecord) (types.NoveltyRecord, error) {
	if err := n.validate(p); err != nil {
		return types.NoveltyRecord{}, err
	}
	prompt, err := n.Prompt(p, sum)
	if err != nil {
		return types.NoveltyRecord{}, n.fail(p, fmt.Errorf("rendering prompt: %w", err))
	}

	reply, err := n.complete(ctx, p, noveltySystem, prompt)
	if err != nil {
		return types.NoveltyRecord{}, err
	}

	rec, err := n.parser.Novelty(reply)
	if err != nil {
		return types.NoveltyRecord{}, n.fail(p, err)
	}
	if rec.Fallback {
		n.recovered(p)
	}
	return rec, nil
}
