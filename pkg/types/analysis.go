// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
	"time"
)

// CategoryOther is the classification assigned when a paper fits none of the
// configured research areas.
const CategoryOther = "Other"

// SummaryRecord holds the five narrative sections produced by the summarizer.
// A section the parser could not locate is left empty.
type SummaryRecord struct {
	ResearchProblem string `json:"research_problem" yaml:"research_problem"`
	Methodology     string `json:"methodology" yaml:"methodology"`
	Innovations     string `json:"innovations" yaml:"innovations"`
	Findings        string `json:"findings" yaml:"findings"`
	Impact          string `json:"impact" yaml:"impact"`
}

// IsEmpty reports whether no section was recovered.
func (s SummaryRecord) IsEmpty() bool {
	return s.ResearchProblem == "" && s.Methodology == "" && s.Innovations == "" &&
		s.Findings == "" && s.Impact == ""
}

// String renders the summary as labelled sections. Later stages embed this
// text in their prompts.
func (s SummaryRecord) String() string {
	var b strings.Builder
	write := func(label, body string) {
		if body == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s", label, body)
	}
	write("Research Problem", s.ResearchProblem)
	write("Methodology", s.Methodology)
	write("Key Innovations", s.Innovations)
	write("Findings/Results", s.Findings)
	write("Potential Impact", s.Impact)
	return b.String()
}

// ClassificationRecord assigns a paper to one research area.
type ClassificationRecord struct {
	// Category is one of the configured research areas or CategoryOther.
	Category string `json:"category" yaml:"category"`

	// Confidence is in [0, 1].
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// Rationale explains the decision.
	Rationale string `json:"rationale" yaml:"rationale"`

	// Fallback is set when the record was recovered heuristically from a
	// reply that did not match the requested schema.
	Fallback bool `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// NoveltyLevel is the qualitative novelty grade, ordered Low < Moderate <
// Significant < Breakthrough.
type NoveltyLevel string

const (
	NoveltyLow          NoveltyLevel = "Low"
	NoveltyModerate     NoveltyLevel = "Moderate"
	NoveltySignificant  NoveltyLevel = "Significant"
	NoveltyBreakthrough NoveltyLevel = "Breakthrough"
)

// NoveltyLevels lists the levels in ascending order.
var NoveltyLevels = []NoveltyLevel{NoveltyLow, NoveltyModerate, NoveltySignificant, NoveltyBreakthrough}

// Rank returns the zero-based position of the level in NoveltyLevels, or -1
// for a value outside the enumeration.
func (l NoveltyLevel) Rank() int {
	for i, v := range NoveltyLevels {
		if v == l {
			return i
		}
	}
	return -1
}

// Known reports whether the level is part of the enumeration.
func (l NoveltyLevel) Known() bool { return l.Rank() >= 0 }

// NoveltyRecord grades how new a paper's contribution is.
type NoveltyRecord struct {
	// Score is in [1, 10].
	Score       float64      `json:"score" yaml:"score"`
	Level       NoveltyLevel `json:"level" yaml:"level"`
	Description string       `json:"description" yaml:"description"`
	Strengths   []string     `json:"strengths" yaml:"strengths"`
	Limitations []string     `json:"limitations" yaml:"limitations"`
	Fallback    bool         `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// Criterion names one dimension of the score breakdown.
type Criterion string

const (
	CriterionInnovation          Criterion = "innovation"
	CriterionTechnicalDepth      Criterion = "technical_depth"
	CriterionExperimentalQuality Criterion = "experimental_quality"
	CriterionPotentialImpact     Criterion = "potential_impact"
	CriterionPracticalValue      Criterion = "practical_value"
)

// Criteria lists the breakdown dimensions in prompt order.
var Criteria = []Criterion{
	CriterionInnovation,
	CriterionTechnicalDepth,
	CriterionExperimentalQuality,
	CriterionPotentialImpact,
	CriterionPracticalValue,
}

// Known reports whether c is one of Criteria.
func (c Criterion) Known() bool {
	for _, v := range Criteria {
		if v == c {
			return true
		}
	}
	return false
}

// ScoreRecord is the overall assessment of a paper.
type ScoreRecord struct {
	// Score is in [0, 10].
	Score     float64               `json:"score" yaml:"score"`
	Rationale string                `json:"rationale" yaml:"rationale"`
	Breakdown map[Criterion]float64 `json:"breakdown" yaml:"breakdown"`
	Fallback  bool                  `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// AnalysisRecord is the complete result of running every stage over one
// paper. It is the unit of persistence, keyed by PaperID.
type AnalysisRecord struct {
	PaperID    string    `json:"paper_id" yaml:"paper_id"`
	Title      string    `json:"title" yaml:"title"`
	Authors    []string  `json:"authors" yaml:"authors"`
	Abstract   string    `json:"abstract" yaml:"abstract"`
	Published  time.Time `json:"published" yaml:"published"`
	Categories []string  `json:"categories,omitempty" yaml:"categories,omitempty"`

	Summary        SummaryRecord        `json:"summary" yaml:"summary"`
	Classification ClassificationRecord `json:"classification" yaml:"classification"`
	Novelty        NoveltyRecord        `json:"novelty_assessment" yaml:"novelty_assessment"`
	Score          ScoreRecord          `json:"score" yaml:"score"`

	ProcessedAt time.Time `json:"processed_at" yaml:"processed_at"`
}

// NewAnalysisRecord copies the paper fields into a record and attaches the
// stage outputs.
func NewAnalysisRecord(p Paper, sum SummaryRecord, cls ClassificationRecord, nov NoveltyRecord, sc ScoreRecord, processedAt time.Time) AnalysisRecord {
	return AnalysisRecord{
		PaperID:        p.ID,
		Title:          p.Title,
		Authors:        append([]string(nil), p.Authors...),
		Abstract:       p.Abstract,
		Published:      p.Published,
		Categories:     append([]string(nil), p.Categories...),
		Summary:        sum,
		Classification: cls,
		Novelty:        nov,
		Score:          sc,
		ProcessedAt:    processedAt,
	}
}

// State tracks a paper through the pipeline.
type State string

const (
	StateFetched         State = "fetched"
	StateSummarized      State = "summarized"
	StateClassified      State = "classified"
	StateNoveltyAssessed State = "novelty_assessed"
	StateScored          State = "scored"
	StatePersisted       State = "persisted"
	StateFailed          State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StatePersisted || s == StateFailed
}

// StageName identifies one analysis stage in errors, logs, and metrics.
type StageName string

const (
	StageSummarize StageName = "summarize"
	StageClassify  StageName = "classify"
	StageNovelty   StageName = "novelty"
	StageScore     StageName = "score"
	StagePersist   StageName = "persist"
)

// Stages lists the analysis stages in execution order.
var Stages = []StageName{StageSummarize, StageClassify, StageNovelty, StageScore}
