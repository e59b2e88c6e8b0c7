// Package engine implements the eligibility rule evaluation engine.
package engine

import (
	"strings"

	"health-eligibility-engine/internal/models"
)

// MatchRequirement evaluates one requirement against the patient response
// state and appends the outcome to the caller's decision trail. All
// coercion is total: a value of the wrong type reads as "not met", never
// as an error.
func MatchRequirement(responses models.Responses, spec models.RequirementSpec, trail *[]models.TrailEntry) bool {
	value, present := responses[spec.Name]
	reqType := models.NormalizeRequirementType(spec.Type)

	var met bool
	switch reqType {
	case models.RequirementBoolean:
		met = present && value.Truthy()

	case models.RequirementNumber:
		if present {
			if n, ok := value.Number(); ok {
				met = true
				if spec.MinValue != nil && n < *spec.MinValue {
					met = false
				}
				if spec.MaxValue != nil && n > *spec.MaxValue {
					met = false
				}
			}
		}

	case models.RequirementContainsAny:
		if present && !value.IsEmpty() {
			text := strings.ToLower(value.Text())
			for _, want := range spec.Values {
				if want != "" && strings.Contains(text, strings.ToLower(want)) {
					met = true
					break
				}
			}
		}

	default:
		met = present && !value.IsEmpty()
	}

	observed := ""
	if present {
		observed = value.Text()
	}
	*trail = append(*trail, models.TrailEntry{
		Requirement:  spec.Name,
		ExpectedType: reqType,
		Observed:     observed,
		Met:          met,
	})

	return met
}
