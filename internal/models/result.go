// Package models defines the data structures for the health eligibility engine.
package models

// TrailEntry is one audited requirement check. The decision trail is the
// engine's only side effect and is what makes a qualification decision
// explainable after the fact.
type TrailEntry struct {
	Requirement  string          `json:"requirement"`
	ExpectedType RequirementType `json:"expected_type"`
	Observed     string          `json:"observed,omitempty"`
	Met          bool            `json:"met"`
}

// EligibilityResult is the outcome of evaluating one patient against one
// service's rule document. Every evaluation returns a well-formed result;
// failures are phrased inside Reasoning, never raised.
type EligibilityResult struct {
	Service         string       `json:"service"`
	ServiceKey      string       `json:"service_key"`
	Qualified       bool         `json:"qualified"`
	Confidence      float64      `json:"confidence"`
	Reasoning       string       `json:"reasoning"`
	NextQuestions   []string     `json:"next_questions"`
	FallbackOptions []string     `json:"fallback_options"`
	MissingCriteria []string     `json:"missing_criteria"`
	DecisionTrail   []TrailEntry `json:"decision_trail"`
}

// TriageTier is the emergency screening severity classification.
type TriageTier string

const (
	TierCritical TriageTier = "critical"
	TierUrgent   TriageTier = "urgent"
	TierNone     TriageTier = "none"
)

// TriageResult is the outcome of an emergency symptom screen. A critical
// tier requires the caller to suspend all other processing and surface the
// action text immediately.
type TriageResult struct {
	Tier     TriageTier `json:"tier"`
	Category string     `json:"matched_category,omitempty"`
	Keyword  string     `json:"matched_keyword,omitempty"`
	Action   string     `json:"action_text,omitempty"`
	Message  string     `json:"message,omitempty"`
}

// RequiresEscalation reports whether the screen found symptoms that must
// interrupt the normal conversation flow.
func (t TriageResult) RequiresEscalation() bool {
	return t.Tier == TierCritical || t.Tier == TierUrgent
}
