// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"regexp"
	"strings"

	"github.com/pdiddy/paper-analyzer/pkg/types"
)

type summaryField int

const (
	fieldNone summaryField = iota
	fieldProblem
	fieldMethodology
	fieldInnovations
	fieldFindings
	fieldImpact
)

// summaryLabels maps normalized heading text to the section it starts.
var summaryLabels = map[string]summaryField{
	"research problem":     fieldProblem,
	"problem":              fieldProblem,
	"problem statement":    fieldProblem,
	"methodology":          fieldMethodology,
	"methods":              fieldMethodology,
	"main methods":         fieldMethodology,
	"method":               fieldMethodology,
	"approach":             fieldMethodology,
	"key innovations":      fieldInnovations,
	"core innovations":     fieldInnovations,
	"innovations":          fieldInnovations,
	"key contributions":    fieldInnovations,
	"contributions":        fieldInnovations,
	"findings/results":     fieldFindings,
	"findings / results":   fieldFindings,
	"findings and results": fieldFindings,
	"key findings":         fieldFindings,
	"findings":             fieldFindings,
	"results":              fieldFindings,
	"potential impact":     fieldImpact,
	"impact":               fieldImpact,
}

// headingDecoration matches list markers, Markdown heading marks, and
// enumerators ("1.", "2)", "iv.") in front of a section label.
var headingDecoration = regexp.MustCompile(`(?i)^(?:#{1,6}\s*)?(?:[-*+•]\s+)?(?:\(?(?:\d{1,2}|[ivx]{1,4})[.)]\s*)?`)

// ParseSummary splits a summary reply into its five sections. A line whose
// leading text is a known label starts that section; text after the label's
// colon and every following non-empty line are appended to it, joined by
// single spaces. Sections that never appear stay empty. A blank reply is
// ErrMalformed.
func ParseSummary(reply string) (types.SummaryRecord, error) {
	if strings.TrimSpace(reply) == "" {
		return types.SummaryRecord{}, &Error{Stage: types.StageSummarize, Kind: ErrMalformed, Value: "empty reply"}
	}

	sections := make(map[summaryField][]string)
	current := fieldNone

	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if field, rest, ok := splitHeading(line); ok {
			current = field
			if rest != "" {
				sections[current] = append(sections[current], rest)
			}
			continue
		}
		if current != fieldNone {
			sections[current] = append(sections[current], line)
		}
	}

	join := func(f summaryField) string {
		return strings.TrimSpace(strings.Join(sections[f], " "))
	}
	return types.SummaryRecord{
		ResearchProblem: join(fieldProblem),
		Methodology:     join(fieldMethodology),
		Innovations:     join(fieldInnovations),
		Findings:        join(fieldFindings),
		Impact:          join(fieldImpact),
	}, nil
}

// splitHeading reports whether line starts a section and returns any text
// that follows the label on the same line.
func splitHeading(line string) (summaryField, string, bool) {
	s := headingDecoration.ReplaceAllString(line, "")
	s = strings.TrimLeft(s, "*_ ")

	label, rest, hasColon := strings.Cut(s, ":")
	if !hasColon {
		// Bare headings such as "## Methodology" carry no inline text.
		label = s
	}
	key := strings.ToLower(strings.Trim(label, "*_# \t"))
	field, ok := summaryLabels[key]
	if !ok {
		return fieldNone, "", false
	}
	rest = strings.TrimSpace(strings.TrimLeft(rest, "*_ "))
	return field, rest, true
}
