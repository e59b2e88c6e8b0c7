// Package engine implements the eligibility rule evaluation engine.
package engine

import (
	"health-eligibility-engine/internal/models"
)

// Default action texts, used when a symptom category omits its own.
const (
	criticalActionDefault = "Call 911 or go to the nearest emergency room immediately."
	urgentActionDefault   = "Seek medical care within the next few hours (urgent care or a same-day appointment)."
)

// ScreenTables runs the prioritized two-tier symptom screen. The critical
// table is checked in full before the urgent table, so a critical keyword
// always outranks an urgent one even when both match. This ordering is a
// safety invariant.
func ScreenTables(responses models.Responses, critical, urgent []models.SymptomCategory) models.TriageResult {
	haystack := responses.Haystack()

	for i := range critical {
		if kw, ok := matchKeyword(haystack, critical[i].Symptoms); ok {
			return models.TriageResult{
				Tier:     models.TierCritical,
				Category: critical[i].Name,
				Keyword:  kw,
				Action:   actionText(critical[i].Action, criticalActionDefault),
				Message:  critical[i].Message,
			}
		}
	}

	for i := range urgent {
		if kw, ok := matchKeyword(haystack, urgent[i].Symptoms); ok {
			return models.TriageResult{
				Tier:     models.TierUrgent,
				Category: urgent[i].Name,
				Keyword:  kw,
				Action:   actionText(urgent[i].Action, urgentActionDefault),
				Message:  urgent[i].Message,
			}
		}
	}

	return models.TriageResult{Tier: models.TierNone}
}

// ScreenText screens a single free-text symptom description.
func ScreenText(text string, critical, urgent []models.SymptomCategory) models.TriageResult {
	return ScreenTables(models.Responses{"symptoms": models.StringValue(text)}, critical, urgent)
}

// conservativeEscalation is returned when the screen itself cannot run,
// e.g. the emergency rule document failed to load. Triage must prefer a
// false positive over silently reporting tier none.
func conservativeEscalation() models.TriageResult {
	return models.TriageResult{
		Tier:     models.TierUrgent,
		Category: "screening_unavailable",
		Action:   "Symptom screening is unavailable. If you have any concerning symptoms, contact a medical provider now; for a life-threatening emergency call 911.",
		Message:  "Emergency screening rules could not be evaluated.",
	}
}

func actionText(action, fallback string) string {
	if action != "" {
		return action
	}
	return fallback
}
