// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package parse turns free-form text-generation replies into validated stage
// records.
//
// Classification, novelty, and score replies are expected to carry a JSON
// object, either bare or in the first fenced code block. The object is
// decoded and validated: required keys, numeric ranges, and field shapes.
// When the reply lacks a required key (ErrMissingField) the record is
// rebuilt from the fields that did decode and only the missing ones are
// filled in: an inferred novelty level, a fixed rationale, or a score
// scanned from the text. When the reply holds no usable object
// (ErrMalformed) a stage-specific fallback scans the raw text instead.
// Either way the record is marked Fallback. Out-of-range and wrong-shape
// values are never recovered or clamped.
//
// Summaries are plain text with labelled sections and have no fallback.
//
// Every function here is a pure function of its input apart from logging:
// the same reply always yields the same record or error.
package parse

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-analyzer/pkg/types"
)

// Parser parses replies for every stage. The zero value discards warnings.
type Parser struct {
	logger zerolog.Logger
}

// New returns a Parser that reports unexpected values and fallbacks to logger.
func New(logger zerolog.Logger) *Parser {
	return &Parser{logger: logger}
}

// Classification parses a classification reply. allowed lists the
// configured research areas; values outside it (and not "Other") are kept
// and logged.
func (p *Parser) Classification(reply string, allowed []string) (types.ClassificationRecord, error) {
	rec, err := DecodeClassification(reply)
	if err == nil {
		if canon, ok := matchCategory(rec.Category, allowed); ok {
			rec.Category = canon
		} else {
			p.logger.Warn().Str("category", rec.Category).Msg("unexpected category")
		}
		return rec, nil
	}
	if !recoverable(err) {
		return types.ClassificationRecord{}, err
	}

	rec, rerr := RecoverClassification(reply, allowed)
	if rerr != nil {
		return types.ClassificationRecord{}, rerr
	}
	if canon, ok := matchCategory(rec.Category, allowed); ok {
		rec.Category = canon
	}
	p.logger.Warn().Err(err).Str("category", rec.Category).Msg("classification recovered by fallback")
	return rec, nil
}

// Novelty parses a novelty reply, recovering missing fields as described in
// RecoverNovelty.
func (p *Parser) Novelty(reply string) (types.NoveltyRecord, error) {
	rec, err := DecodeNovelty(reply)
	if err == nil {
		if !rec.Level.Known() {
			p.logger.Warn().Str("level", string(rec.Level)).Msg("unexpected novelty level")
		}
		return rec, nil
	}
	if !recoverable(err) {
		return types.NoveltyRecord{}, err
	}

	rec, rerr := RecoverNovelty(reply)
	if rerr != nil {
		return types.NoveltyRecord{}, rerr
	}
	p.logger.Warn().Err(err).Float64("score", rec.Score).Str("level", string(rec.Level)).Msg("novelty recovered by fallback")
	return rec, nil
}

// Score parses a scoring reply, recovering missing fields as described in
// RecoverScore.
func (p *Parser) Score(reply string) (types.ScoreRecord, error) {
	rec, err := DecodeScore(reply)
	if err == nil {
		for c := range rec.Breakdown {
			if !c.Known() {
				p.logger.Warn().Str("criterion", string(c)).Msg("unexpected score criterion")
			}
		}
		return rec, nil
	}
	if !recoverable(err) {
		return types.ScoreRecord{}, err
	}

	rec, rerr := RecoverScore(reply)
	if rerr != nil {
		return types.ScoreRecord{}, rerr
	}
	p.logger.Warn().Err(err).Float64("score", rec.Score).Msg("score recovered by fallback")
	return rec, nil
}

// Summary parses a summary reply.
func (p *Parser) Summary(reply string) (types.SummaryRecord, error) {
	rec, err := ParseSummary(reply)
	if err != nil {
		return rec, err
	}
	if rec.IsEmpty() {
		p.logger.Warn().Msg("summary reply has no recognizable sections")
	}
	return rec, nil
}

// matchCategory finds category in allowed ignoring case and surrounding
// space, returning the configured spelling.
func matchCategory(category string, allowed []string) (string, bool) {
	if strings.EqualFold(category, types.CategoryOther) {
		return types.CategoryOther, true
	}
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), category) {
			return a, true
		}
	}
	return category, false
}
