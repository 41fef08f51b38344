// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/paper-analyzer/internal/gateway"
	"github.com/pdiddy/paper-analyzer/pkg/types"
)

// DefaultInterestedFields are the research areas used when none are configured.
var DefaultInterestedFields = []string{
	"Large Language Models",
	"Computer Vision",
	"Reinforcement Learning",
	"Neural Architecture",
	"AI Safety",
}

// Classifier assigns a paper to one of the configured research areas.
type Classifier struct {
	agent
	fields []string
	system string
}

// NewClassifier returns a Classifier offering fields. An empty list selects
// DefaultInterestedFields.
func NewClassifier(gw gateway.Gateway, fields []string, opts Options) *Classifier {
	if len(fields) == 0 {
		fields = DefaultInterestedFields
	}
	fields = append([]string(nil), fields...)
	return &Classifier{
		agent:  newAgent(types.StageClassify, gw, opts),
		fields: fields,
		system: classifySystemHead + strings.Join(fields, ", ") + classifySystemTail,
	}
}

// Fields returns the research areas offered to the model.
func (c *Classifier) Fields() []string {
	return append([]string(nil), c.fields...)
}

// Prompt renders the classification prompt.
func (c *Classifier) Prompt(p types.Paper, sum types.SummaryRecord) (string, error) {
	return render(classifyTmpl, struct {
		Fields   []string
		Title    string
		Abstract string
		Summary  string
	}{c.fields, p.Title, p.Abstract, sum.String()})
}

// Classify classifies p with one Gateway call.
func (c *Classifier) Classify(ctx context.Context, p types.Paper, sum types.SummaryRecord) (types.ClassificationRecord, error) {
	if err := c.validate(p); err != nil {
		return types.ClassificationRecord{}, err
	}
	prompt, err := c.Prompt(p, sum)
	if err != nil {
		return types.ClassificationRecord{}, c.fail(p, fmt.Errorf("rendering prompt: %w", err))
	}

	reply, err := c.complete(ctx, p, c.system, prompt)
	if err != nil {
		return types.ClassificationRecord{}, err
	}

	rec, err := c.parser.Classification(reply, c.fields)
	if err != nil {
		return types.ClassificationRecord{}, c.fail(p, err)
	}
	if rec.Fallback {
		c.recovered(p)
	}
	return rec, nil
}
