// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stage

import (
	"bytes"
	"strings"
	"text/template"
)

var funcs = template.FuncMap{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
}

const summarizeSystem = `You are an expert AI paper summarization specialist, skilled at extracting key research contributions and innovations from papers. Your task is to read the paper content and extract the main contributions, innovative methods, and key findings.

Focus on phrases like "we propose...", "contributions include...", "our innovations are...". Keep the summary concise, accurate, and comprehensive, highlighting the core innovations and academic value.`

var summarizeTmpl = template.Must(template.New("summarize").Funcs(funcs).Parse(`Please analyze the following AI research paper and extract its main contributions, innovative methods, and key findings.

Title: {{.Title}}
Authors: {{join .Authors ", "}}
Abstract: {{.Abstract}}

Paper Content:
{{.FullText}}

Please provide a concise but comprehensive summary with the following structure:

1. Research Problem: [Describe the main problem addressed]
2. Methodology: [Outline the proposed methods or techniques]
3. Key Innovations: [List the main innovations and contributions]
4. Findings/Results: [Summarize key findings and experimental results]
5. Potential Impact: [Analyze potential impact on the AI field]

Focus on unique contributions rather than general descriptions. Pay special attention to key phrases indicating innovation like "our main contributions...", "we propose...", "compared to existing methods..."
`))

const classifySystemHead = `You are an expert AI paper classification specialist, skilled at categorizing papers into specific research areas.

You need to classify papers into one of the following areas:
`

const classifySystemTail = `

If a paper spans multiple areas, choose the most prominent one.
If a paper doesn't fit any of these areas, classify it as "Other".

Provide a detailed rationale for each classification decision.`

var classifyTmpl = template.Must(template.New("classify").Funcs(funcs).Parse(`Please classify the following AI research paper into one of our areas of interest.

Available Research Areas:
{{range $i, $f := .Fields}}{{inc $i}}. {{$f}}
{{end}}
If the paper doesn't fit any of these areas, classify it as "Other".

Paper Information:
Title: {{.Title}}
Abstract: {{.Abstract}}

Main Contributions:
{{.Summary}}

Provide your classification in the following JSON format:
` + "```json" + `
{
    "category": "chosen_area_name",
    "confidence": 0.85,
    "rationale": "Detailed explanation of classification reasoning..."
}
` + "```" + `

"confidence" is a number between 0 and 1. Return only the JSON result without additional explanation.
`))

const noveltySystem = `You are an expert AI research reviewer, skilled at assessing the novelty and incremental contribution of papers. Analyze the paper content, especially the introduction, related work, and method, and judge how innovative it is.

Consider the following:
1. Does the paper propose an entirely new method or improve an existing one?
2. How large is the improvement over existing work?
3. Is the technical idea distinctive?
4. How difficult and important is the problem it solves?

Look for statements such as "first to propose", "breakthrough", or "significantly outperforms", and check whether the paper describes its own limitations objectively.

Give every paper a novelty score from 1 to 10 with a detailed justification.`

var noveltyTmpl = template.Must(template.New("novelty").Funcs(funcs).Parse(`Please assess the novelty and incremental contribution of the following AI paper.

Paper Information:
Title: {{.Title}}
Abstract: {{.Abstract}}

Main Contributions:
{{.Summary}}

Introduction:
{{.Introduction}}

Related Work:
{{.RelatedWork}}

Assess the novelty and incremental contribution of the paper relative to existing work. Pay particular attention to:
1. Does the paper propose an entirely new method, or improve an existing one?
2. How large is the improvement? Is it a revolutionary breakthrough or an incremental improvement?
3. Is the innovation in the algorithm, the model, the application setting, or the theory?
4. Does the paper solve an important challenge in the field or open a new research direction?

Provide your assessment in the following JSON format:
` + "```json" + `
{
    "score": 7.5,
    "level": "Significant",
    "description": "Detailed assessment...",
    "strengths": ["Innovation 1", "Innovation 2"],
    "limitations": ["Limitation 1", "Limitation 2"]
}
` + "```" + `

"score" is a number from 1 to 10. "level" is one of: Low, Moderate, Significant, Breakthrough. Return only the JSON result without additional explanation.
`))

const scoreSystem = `You are an expert AI research evaluation specialist, skilled at assessing papers' academic value and potential impact.

Your task is to score papers (0-10) based on their innovation, technical depth, practical value, and research significance.

Consider the following factors in your evaluation:
- Innovation: Novelty and uniqueness of the method
- Technical Depth: Technical complexity and theoretical foundation
- Experimental Quality: Rigor of experiments and convincing results
- Potential Impact: Potential contribution to field development
- Practical Value: Potential for real-world applications`

var scoreTmpl = template.Must(template.New("score").Funcs(funcs).Parse(`Please evaluate and score the following AI research paper (0-10).

Paper Information:
Title: {{.Title}}
Abstract: {{.Abstract}}

Analysis:
1. Main Contributions: {{.Summary}}

2. Research Area: {{.Category}}
   Classification Rationale: {{.ClassificationRationale}}

3. Novelty Assessment:
   Score: {{.NoveltyScore}}/10
   Level: {{.NoveltyLevel}}
   Description: {{.NoveltyDescription}}
   Strengths: {{join .Strengths ", "}}
   Limitations: {{join .Limitations ", "}}

Please consider the above information and your expert judgment to score the paper (0-10), providing detailed rationale.

Consider these factors in your evaluation:
- Innovation: Novelty and uniqueness of the method
- Technical Depth: Technical complexity and theoretical foundation
- Experimental Quality: Rigor of experiments and convincing results
- Potential Impact: Potential contribution to field development
- Practical Value: Potential for real-world applications

Provide your evaluation in the following JSON format:
` + "```json" + `
{
    "score": 7.5,
    "rationale": "Detailed scoring rationale...",
    "breakdown": {
        "innovation": 8.0,
        "technical_depth": 7.0,
        "experimental_quality": 7.5,
        "potential_impact": 8.0,
        "practical_value": 7.0
    }
}
` + "```" + `

Return only the JSON result without additional explanation.
`))

// render executes tmpl with data.
func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
