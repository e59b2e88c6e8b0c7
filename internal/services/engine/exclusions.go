// Package engine implements the eligibility rule evaluation engine.
package engine

import (
	"strings"

	"health-eligibility-engine/internal/models"
)

// ScanExclusions checks whether any exclusion entry's symptom keywords
// appear anywhere in the patient's answers. Table order is priority order
// and the first matching entry wins. The scan deliberately favors recall:
// a false positive costs a clarifying question, a false negative is unsafe.
func ScanExclusions(responses models.Responses, exclusions []models.ExclusionSpec) (*models.ExclusionSpec, string, bool) {
	if len(exclusions) == 0 {
		return nil, "", false
	}
	haystack := responses.Haystack()
	for i := range exclusions {
		if kw, ok := matchKeyword(haystack, exclusions[i].Symptoms); ok {
			return &exclusions[i], kw, true
		}
	}
	return nil, "", false
}

// matchKeyword returns the first keyword found as a substring of the
// haystack. Empty keywords never match.
func matchKeyword(haystack string, keywords []string) (string, bool) {
	if haystack == "" {
		return "", false
	}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(haystack, kw) {
			return kw, true
		}
	}
	return "", false
}
