// Package models defines the data structures for the health eligibility engine.
package models

import (
	"errors"
	"strings"
)

// Common errors
var (
	ErrRuleNotFound      = errors.New("no rule document for service")
	ErrEmptyServiceKey   = errors.New("service_key cannot be empty")
	ErrNoRuleDocuments   = errors.New("rule source contains no documents")
	ErrMalformedDocument = errors.New("malformed rule document")
)

// serviceAliases maps free-text keywords to canonical service keys. Order
// matters: earlier entries win when a phrase mentions several services.
var serviceAliases = []struct {
	keyword string
	key     string
}{
	{"remote patient monitoring", "rpm"},
	{"remote monitoring", "rpm"},
	{"rpm", "rpm"},
	{"telehealth", "telehealth"},
	{"virtual", "telehealth"},
	{"video visit", "telehealth"},
	{"insurance", "insurance"},
	{"enrollment", "insurance"},
	{"coverage", "insurance"},
	{"emergency", "emergency"},
	{"pharmacy", "pharmacy"},
	{"prescription", "pharmacy"},
	{"medication", "pharmacy"},
	{"wellness", "wellness"},
	{"prevention", "wellness"},
	{"preventive", "wellness"},
}

// NormalizeServiceKey converts a free-text service name to its canonical
// key using keyword matching. Unrecognized names are returned lowercased
// and trimmed so an exact-key lookup still works.
func NormalizeServiceKey(service string) string {
	normalized := strings.ToLower(strings.TrimSpace(service))
	for _, alias := range serviceAliases {
		if strings.Contains(normalized, alias.keyword) {
			return alias.key
		}
	}
	return normalized
}

// ValidateRuleDocument checks the minimum shape a loaded document must
// have. Absent requirements or exclusions are fine; they read as empty.
func ValidateRuleDocument(d *RuleDocument) error {
	if d == nil {
		return ErrMalformedDocument
	}
	if strings.TrimSpace(d.ServiceKey) == "" {
		return ErrEmptyServiceKey
	}
	for _, req := range d.Requirements {
		if strings.TrimSpace(req.Name) == "" {
			return ErrMalformedDocument
		}
	}
	return nil
}
