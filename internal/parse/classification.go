// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"strings"

	"github.com/pdiddy/paper-analyzer/pkg/types"
)

// FallbackConfidence is assigned to a category recovered from free text.
const FallbackConfidence = 0.5

const (
	classificationFallbackRationale = "Recovered by keyword fallback: the reply did not contain a valid classification object."
	classificationMissingRationale  = "Category and confidence reported without a rationale."
)

// DecodeClassification decodes and validates a classification object.
// It performs no fallback.
func DecodeClassification(reply string) (types.ClassificationRecord, error) {
	const stage = types.StageClassify

	obj, err := decodeObject(stage, reply)
	if err != nil {
		return types.ClassificationRecord{}, err
	}
	if err := obj.requireKeys("category", "confidence", "rationale"); err != nil {
		return types.ClassificationRecord{}, err
	}

	category, err := obj.str("category")
	if err != nil {
		return types.ClassificationRecord{}, err
	}
	if category == "" {
		return FallbackClassification(reply, allowed), nil
	}
	confidence, err := obj.number("confidence", 0, 1)
	if err != nil {
		return types.ClassificationRecord{}, err
	}
	rationale, err := obj.str("rationale")
	if err != nil {
		return types.ClassificationRecord{}, err
	}

	return types.ClassificationRecord{
		Category:   category,
		Confidence: confidence,
		Rationale:  rationale,
	}, nil
}

// RecoverClassification recovers a classification from a reply that
// DecodeClassification rejected as malformed or incomplete. An object that
// carries a valid category and confidence but no rationale keeps both, with
// a fixed rationale. Any other reply goes through FallbackClassification.
// Values that are present but out of range or of the wrong shape are still
// rejected.
func RecoverClassification(reply string, allowed []string) (types.ClassificationRecord, error) {
	const stage = types.StageClassify

	obj, err := decodeObject(stage, reply)
	if err != nil || !obj.has("category") || !obj.has("confidence") {
		return FallbackClassification(reply, allowed), nil
	}

	category, err := obj.str("category")
	if err != nil {
		return types.ClassificationRecord{}, err
	}
	if category == "" {
		return FallbackClassification(reply, allowed), nil
	}
	confidence, err := obj.number("confidence", 0, 1)
	if err != nil {
		return types.ClassificationRecord{}, err
	}
	rationale, err := obj.str("rationale")
	if err != nil {
		return types.ClassificationRecord{}, err
	}
	if !obj.has("rationale") {
		rationale = classificationMissingRationale
	}

	return types.ClassificationRecord{
		Category:   category,
		Confidence: confidence,
		Rationale:  rationale,
		Fallback:   true,
	}, nil
}

// FallbackClassification scans the raw reply for the allowed category names.
// Exactly one match yields that category with FallbackConfidence; none or
// several yield CategoryOther with confidence 0.
func FallbackClassification(reply string, allowed []string) types.ClassificationRecord {
	lower := strings.ToLower(reply)

	var found []string
	seen := make(map[string]bool)
	for _, a := range allowed {
		name := strings.TrimSpace(a)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		if strings.Contains(lower, key) {
			found = append(found, name)
		}
	}

	if len(found) == 1 {
		return types.ClassificationRecord{
			Category:   found[0],
			Confidence: FallbackConfidence,
			Rationale:  classificationFallbackRationale,
			Fallback:   true,
		}
	}

	rationale := "Unclassified: the reply did not contain a valid classification object and named no single research area."
	if len(found) > 1 {
		rationale = "Unclassified: the reply did not contain a valid classification object and named several research areas (" +
			strings.Join(found, ", ") + ")."
	}
	return types.ClassificationRecord{
		Category:   types.CategoryOther,
		Confidence: 0,
		Rationale:  rationale,
		Fallback:   true,
	}
}
