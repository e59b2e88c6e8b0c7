// Package engine implements the eligibility rule evaluation engine.
package engine

import (
	"strings"

	"health-eligibility-engine/internal/models"
)

// maxRenderedOptions caps the enumeration appended to a question so a
// long acceptable-values list does not overwhelm the patient.
const maxRenderedOptions = 7

// AskedLedger tracks which requirements have already been presented to the
// patient in the current conversation. It is owned by the session layer
// and passed into every selection; the selector never repeats an entry.
type AskedLedger map[string]bool

// NewAskedLedger creates an empty ledger.
func NewAskedLedger() AskedLedger {
	return make(AskedLedger)
}

// Has reports whether the requirement was already asked.
func (l AskedLedger) Has(name string) bool {
	return l != nil && l[name]
}

// Mark records a requirement as asked.
func (l AskedLedger) Mark(name string) {
	if l != nil {
		l[name] = true
	}
}

// SelectNextQuestion picks the next question: the first missing requirement,
// in the rule document's declaration order, that is not in the asked ledger.
// The chosen requirement is marked asked as a side effect. A false return
// means there is nothing left to ask.
func SelectNextQuestion(doc *models.RuleDocument, missing []string, asked AskedLedger) (string, bool) {
	if doc == nil || len(missing) == 0 {
		return "", false
	}

	missingSet := make(map[string]bool, len(missing))
	for _, name := range missing {
		missingSet[name] = true
	}

	for i := range doc.Requirements {
		spec := &doc.Requirements[i]
		if !missingSet[spec.Name] || asked.Has(spec.Name) || spec.Question == "" {
			continue
		}
		asked.Mark(spec.Name)
		return formatQuestion(spec), true
	}

	return "", false
}

// formatQuestion renders the prompt text. When a requirement has more than
// two discrete acceptable values, they MUST be enumerated under the
// question; a free-text prompt without its choices leaves patients guessing
// at wording the contains-any matcher will accept. Two or fewer options
// read as a plain yes/no style question.
func formatQuestion(spec *models.RequirementSpec) string {
	options := spec.Options
	if len(options) == 0 {
		options = spec.Values
	}
	if len(options) <= 2 {
		return spec.Question
	}
	if len(options) > maxRenderedOptions {
		options = options[:maxRenderedOptions]
	}

	var b strings.Builder
	b.WriteString(spec.Question)
	for _, opt := range options {
		b.WriteString("\n• ")
		b.WriteString(opt)
	}
	return b.String()
}
