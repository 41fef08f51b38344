// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pdiddy/paper-analyzer/pkg/types"
)

// Overall and per-criterion scores lie in [MinScore, MaxScore].
const (
	MinScore = 0
	MaxScore = 10
)

// DecodeScore decodes and validates a scoring object. score and rationale
// are required; breakdown is optional but every entry must be a number in
// [0, 10].
func DecodeScore(reply string) (types.ScoreRecord, error) {
	const stage = types.StageScore

	obj, err := decodeObject(stage, reply)
	if err != nil {
		return types.ScoreRecord{}, err
	}
	if err := obj.requireKeys("score", "rationale"); err != nil {
		return types.ScoreRecord{}, err
	}

	score, err := obj.number("score", MinScore, MaxScore)
	if err != nil {
		return types.ScoreRecord{}, err
	}
	rationale, err := obj.str("rationale")
	if err != nil {
		return types.ScoreRecord{}, err
	}
	breakdown, err := decodeBreakdown(obj)
	if err != nil {
		return types.ScoreRecord{}, err
	}

	return types.ScoreRecord{
		Score:     score,
		Rationale: rationale,
		Breakdown: breakdown,
	}, nil
}

func decodeBreakdown(obj object) (map[types.Criterion]float64, error) {
	out := make(map[types.Criterion]float64)
	v, ok := obj.fields["breakdown"]
	if !ok || v == nil {
		return out, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &Error{Stage: obj.stage, Kind: ErrShape, Field: "breakdown", Value: describe(v)}
	}

	// Sorted keys keep the reported error stable when several entries are bad.
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sub := object{stage: obj.stage, fields: m}
	for _, k := range keys {
		f, err := sub.number(k, MinScore, MaxScore)
		if err != nil {
			var pe *Error
			if errors.As(err, &pe) {
				pe.Field = fmt.Sprintf("breakdown.%s", k)
			}
			return nil, err
		}
		out[types.Criterion(strings.TrimSpace(k))] = f
	}
	return out, nil
}

// missingRationale stands in for a rationale the reply left out.
const missingRationale = "Score reported without a rationale."

// RecoverScore recovers a score record from a reply that DecodeScore
// rejected as malformed or incomplete. When the reply holds an object its
// decoded score and breakdown are kept: a missing rationale is replaced by
// a fixed note and a missing score is taken from the first "<number>/10" in
// the reply. Otherwise the raw text goes through FallbackScore. Values that
// are present but out of range or of the wrong shape are still rejected.
func RecoverScore(reply string) (types.ScoreRecord, error) {
	const stage = types.StageScore

	obj, err := decodeObject(stage, reply)
	if err != nil {
		rec, ok := FallbackScore(reply)
		if !ok {
			return types.ScoreRecord{}, err
		}
		return rec, nil
	}
	missing := obj.requireKeys("score", "rationale")

	breakdown, err := decodeBreakdown(obj)
	if err != nil {
		return types.ScoreRecord{}, err
	}
	rationale, err := obj.str("rationale")
	if err != nil {
		return types.ScoreRecord{}, err
	}
	if !obj.has("rationale") {
		rationale = missingRationale
	}

	var score float64
	if obj.has("score") {
		if score, err = obj.number("score", MinScore, MaxScore); err != nil {
			return types.ScoreRecord{}, err
		}
	} else {
		var ok bool
		score, ok = firstOutOfTen(reply)
		if !ok || score < MinScore || score > MaxScore {
			return types.ScoreRecord{}, missing
		}
	}

	return types.ScoreRecord{
		Score:     score,
		Rationale: rationale,
		Breakdown: breakdown,
		Fallback:  true,
	}, nil
}

// FallbackScore recovers a score from prose using the first "<number>/10",
// which must lie in [0, 10]. The rationale is the trimmed reply and the
// breakdown is empty. It reports false when no usable score is present.
func FallbackScore(reply string) (types.ScoreRecord, bool) {
	score, ok := firstOutOfTen(reply)
	if !ok || score < MinScore || score > MaxScore {
		return types.ScoreRecord{}, false
	}
	return types.ScoreRecord{
		Score:     score,
		Rationale: strings.TrimSpace(reply),
		Breakdown: map[types.Criterion]float64{},
		Fallback:  true,
	}, true
}
