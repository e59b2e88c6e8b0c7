package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeServiceKey(t *testing.T) {
	cases := map[string]string{
		"Remote Patient Monitoring (RPM)":    "rpm",
		"rpm":                                "rpm",
		"I need help with remote monitoring": "rpm",
		"Telehealth / Virtual Primary Care":  "telehealth",
		"video visit":                        "telehealth",
		"Insurance Enrollment":               "insurance",
		"help with coverage":                 "insurance",
		"Emergency Screening":                "emergency",
		"prescription costs":                 "pharmacy",
		"wellness programs":                  "wellness",
		"  Unknown Service  ":                "unknown service",
	}
	for input, want := range cases {
		assert.Equal(t, want, NormalizeServiceKey(input), "input %q", input)
	}
}

func TestNormalizeRequirementType_UnknownFallsBackToExists(t *testing.T) {
	assert.Equal(t, RequirementBoolean, NormalizeRequirementType(RequirementBoolean))
	assert.Equal(t, RequirementNumber, NormalizeRequirementType(RequirementNumber))
	assert.Equal(t, RequirementContainsAny, NormalizeRequirementType(RequirementContainsAny))
	assert.Equal(t, RequirementExists, NormalizeRequirementType("regex_match"))
	assert.Equal(t, RequirementExists, NormalizeRequirementType(""))
}

func TestValidateRuleDocument(t *testing.T) {
	assert.ErrorIs(t, ValidateRuleDocument(nil), ErrMalformedDocument)
	assert.ErrorIs(t, ValidateRuleDocument(&RuleDocument{ServiceKey: "  "}), ErrEmptyServiceKey)

	doc := &RuleDocument{
		ServiceKey:   "rpm",
		Requirements: []RequirementSpec{{Name: ""}},
	}
	assert.ErrorIs(t, ValidateRuleDocument(doc), ErrMalformedDocument)

	doc.Requirements[0].Name = "chronic_conditions"
	assert.NoError(t, ValidateRuleDocument(doc))
}

func TestRuleDocument_RequiredCountAndLabel(t *testing.T) {
	doc := &RuleDocument{
		ServiceKey: "rpm",
		Requirements: []RequirementSpec{
			{Name: "a", Required: true},
			{Name: "b", Required: false},
			{Name: "c", Required: true},
		},
	}

	assert.Equal(t, 2, doc.RequiredCount())
	assert.Equal(t, "rpm", doc.Label(), "Label should fall back to the key")

	doc.DisplayName = "Remote Patient Monitoring (RPM)"
	assert.Equal(t, "Remote Patient Monitoring (RPM)", doc.Label())

	spec, ok := doc.Requirement("c")
	assert.True(t, ok)
	assert.Equal(t, "c", spec.Name)
	_, ok = doc.Requirement("missing")
	assert.False(t, ok)
}
