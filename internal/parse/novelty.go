// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/paper-analyzer/pkg/types"
)

// Novelty scores lie in [MinNoveltyScore, MaxNoveltyScore].
const (
	MinNoveltyScore = 1
	MaxNoveltyScore = 10
)

// outOfTenPattern matches the first "<number>/10" in free text.
var outOfTenPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*/\s*10\b`)

// Level keywords, checked in descending order.
var (
	breakthroughWords = regexp.MustCompile(`(?i)\b(?:breakthrough|revolutionary)`)
	significantWords  = regexp.MustCompile(`(?i)\b(?:significant|substantial|major)`)
	moderateWords     = regexp.MustCompile(`(?i)\b(?:moderate|incremental)`)
)

// DecodeNovelty decodes and validates a novelty object. score and level are
// required; description, strengths, and limitations default to empty.
func DecodeNovelty(reply string) (types.NoveltyRecord, error) {
	const stage = types.StageNovelty

	obj, err := decodeObject(stage, reply)
	if err != nil {
		return types.NoveltyRecord{}, err
	}
	if err := obj.requireKeys("score", "level"); err != nil {
		return types.NoveltyRecord{}, err
	}

	score, err := obj.number("score", MinNoveltyScore, MaxNoveltyScore)
	if err != nil {
		return types.NoveltyRecord{}, err
	}
	level, err := obj.requiredStr("level")
	if err != nil {
		return types.NoveltyRecord{}, err
	}
	description, err := obj.str("description")
	if err != nil {
		return types.NoveltyRecord{}, err
	}
	strengths, err := obj.stringList("strengths")
	if err != nil {
		return types.NoveltyRecord{}, err
	}
	limitations, err := obj.stringList("limitations")
	if err != nil {
		return types.NoveltyRecord{}, err
	}

	return types.NoveltyRecord{
		Score:       score,
		Level:       normalizeLevel(level),
		Description: description,
		Strengths:   strengths,
		Limitations: limitations,
	}, nil
}

// RecoverNovelty recovers a novelty record from a reply that DecodeNovelty
// rejected as malformed or incomplete. When the reply holds an object its
// decoded fields are kept: a missing level is inferred from the description
// and a missing score is taken from the first "<number>/10" in the reply.
// Otherwise the raw text goes through FallbackNovelty. Values that are
// present but out of range or of the wrong shape are still rejected.
func RecoverNovelty(reply string) (types.NoveltyRecord, error) {
	const stage = types.StageNovelty

	obj, err := decodeObject(stage, reply)
	if err != nil {
		rec, ok := FallbackNovelty(reply)
		if !ok {
			return types.NoveltyRecord{}, err
		}
		return rec, nil
	}
	missing := obj.requireKeys("score", "level")

	description, err := obj.str("description")
	if err != nil {
		return types.NoveltyRecord{}, err
	}
	strengths, err := obj.stringList("strengths")
	if err != nil {
		return types.NoveltyRecord{}, err
	}
	limitations, err := obj.stringList("limitations")
	if err != nil {
		return types.NoveltyRecord{}, err
	}

	var score float64
	if obj.has("score") {
		if score, err = obj.number("score", MinNoveltyScore, MaxNoveltyScore); err != nil {
			return types.NoveltyRecord{}, err
		}
	} else {
		var ok bool
		score, ok = firstOutOfTen(reply)
		if !ok || score < MinNoveltyScore || score > MaxNoveltyScore {
			return types.NoveltyRecord{}, missing
		}
	}

	level, err := obj.str("level")
	if err != nil {
		return types.NoveltyRecord{}, err
	}
	if level == "" {
		level = string(InferLevel(description))
	}

	return types.NoveltyRecord{
		Score:       score,
		Level:       normalizeLevel(level),
		Description: description,
		Strengths:   strengths,
		Limitations: limitations,
		Fallback:    true,
	}, nil
}

// FallbackNovelty recovers a novelty record from prose. The first
// "<number>/10" gives the score and must lie in [1, 10]; keywords give the
// level. It reports false when no usable score is present.
func FallbackNovelty(reply string) (types.NoveltyRecord, bool) {
	score, ok := firstOutOfTen(reply)
	if !ok || score < MinNoveltyScore || score > MaxNoveltyScore {
		return types.NoveltyRecord{}, false
	}
	return types.NoveltyRecord{
		Score:       score,
		Level:       InferLevel(reply),
		Description: strings.TrimSpace(reply),
		Strengths:   []string{},
		Limitations: []string{},
		Fallback:    true,
	}, true
}

// InferLevel grades free text by its strongest novelty keyword.
func InferLevel(text string) types.NoveltyLevel {
	switch {
	case breakthroughWords.MatchString(text):
		return types.NoveltyBreakthrough
	case significantWords.MatchString(text):
		return types.NoveltySignificant
	case moderateWords.MatchString(text):
		return types.NoveltyModerate
	default:
		return types.NoveltyLow
	}
}

// normalizeLevel maps a level to its canonical spelling when it matches one
// ignoring case; other values are returned unchanged.
func normalizeLevel(level string) types.NoveltyLevel {
	for _, l := range types.NoveltyLevels {
		if strings.EqualFold(level, string(l)) {
			return l
		}
	}
	return types.NoveltyLevel(level)
}

// firstOutOfTen returns the number of the first "<number>/10" in text.
func firstOutOfTen(text string) (float64, bool) {
	m := outOfTenPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
