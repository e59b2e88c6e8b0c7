// Package models defines the data structures for the health eligibility engine.
package models

// RequirementType selects the matcher behavior for a requirement.
type RequirementType string

const (
	RequirementBoolean     RequirementType = "boolean"
	RequirementNumber      RequirementType = "number"
	RequirementContainsAny RequirementType = "contains_any"
	RequirementExists      RequirementType = "exists"
)

// NormalizeRequirementType maps unknown type tags to the existence check,
// which is the defined fallback for rule documents written against a newer
// schema than this binary understands.
func NormalizeRequirementType(t RequirementType) RequirementType {
	switch t {
	case RequirementBoolean, RequirementNumber, RequirementContainsAny, RequirementExists:
		return t
	default:
		return RequirementExists
	}
}

// RequirementSpec is one named, typed condition a patient must satisfy.
type RequirementSpec struct {
	Name     string          `json:"name"`
	Required bool            `json:"required"`
	Type     RequirementType `json:"type"`
	Values   []string        `json:"values,omitempty"`
	MinValue *float64        `json:"min_value,omitempty"`
	MaxValue *float64        `json:"max_value,omitempty"`
	Question string          `json:"question,omitempty"`
	Options  []string        `json:"options,omitempty"`
}

// ExclusionSpec is a disqualifying condition detected by symptom keyword
// presence. Table order is priority order: the scanner stops at the first
// entry whose keyword list matches.
type ExclusionSpec struct {
	Name     string   `json:"name"`
	Symptoms []string `json:"symptoms"`
	Action   string   `json:"action,omitempty"`
	Message  string   `json:"message,omitempty"`
}

// SymptomCategory is one severity-tier entry in the emergency screening
// tables.
type SymptomCategory struct {
	Name      string   `json:"name"`
	Symptoms  []string `json:"symptoms"`
	Action    string   `json:"action,omitempty"`
	Message   string   `json:"message,omitempty"`
	Timeframe string   `json:"timeframe,omitempty"`
}

// EnrollmentWindows holds the insurance enrollment eligibility rules: a
// qualifying life event opens a special enrollment period of WindowDays.
type EnrollmentWindows struct {
	QualifyingEvents []string `json:"qualifying_events"`
	WindowDays       int      `json:"window_days,omitempty"`
}

// RuleDocument is the declarative rule set for one healthcare service.
// Requirements keep their file order; that order is the question priority
// when several required fields are missing.
type RuleDocument struct {
	ServiceKey        string             `json:"service_key"`
	DisplayName       string             `json:"display_name"`
	Version           string             `json:"version,omitempty"`
	Requirements      []RequirementSpec  `json:"requirements,omitempty"`
	Exclusions        []ExclusionSpec    `json:"exclusion_criteria,omitempty"`
	EnrollmentWindows *EnrollmentWindows `json:"enrollment_windows,omitempty"`
	CriticalSymptoms  []SymptomCategory  `json:"critical_emergency_symptoms,omitempty"`
	UrgentSymptoms    []SymptomCategory  `json:"urgent_but_not_emergency,omitempty"`
	FallbackOptions   []string           `json:"fallback_options,omitempty"`
}

// RequiredCount returns the number of requirements that count toward the
// confidence denominator.
func (d *RuleDocument) RequiredCount() int {
	n := 0
	for _, req := range d.Requirements {
		if req.Required {
			n++
		}
	}
	return n
}

// Requirement looks up a requirement spec by name.
func (d *RuleDocument) Requirement(name string) (*RequirementSpec, bool) {
	for i := range d.Requirements {
		if d.Requirements[i].Name == name {
			return &d.Requirements[i], true
		}
	}
	return nil, false
}

// Label returns the human label for the service, falling back to the key.
func (d *RuleDocument) Label() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.ServiceKey
}
