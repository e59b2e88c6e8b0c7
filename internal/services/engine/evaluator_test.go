package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"health-eligibility-engine/internal/models"
	"health-eligibility-engine/internal/services/rules"
)

const rpmRuleJSON = `{
	"service_key": "rpm",
	"display_name": "Remote Patient Monitoring (RPM)",
	"requirements": [
		{"name": "chronic_conditions", "required": true, "type": "contains_any",
		 "values": ["diabetes", "hypertension"],
		 "question": "Do you have any chronic health conditions?"},
		{"name": "insurance_coverage", "required": true, "type": "boolean",
		 "question": "Do you have health insurance?"},
		{"name": "device_access", "required": true, "type": "boolean",
		 "question": "Do you have a smartphone or tablet?"},
		{"name": "consent_monitoring", "required": true, "type": "boolean",
		 "question": "Are you comfortable sharing health data?"}
	],
	"exclusion_criteria": [
		{"name": "active_emergency", "symptoms": ["chest pain", "difficulty breathing"],
		 "message": "Remote monitoring is not appropriate during a medical emergency"}
	],
	"fallback_options": ["Wellness education", "Preventive care"]
}`

const insuranceRuleJSON = `{
	"service_key": "insurance",
	"display_name": "Insurance Enrollment",
	"requirements": [
		{"name": "coverage_status", "required": true, "type": "exists",
		 "question": "Do you currently have health insurance coverage?"},
		{"name": "household_income", "required": true, "type": "exists",
		 "question": "What is your approximate annual household income?"}
	],
	"enrollment_windows": {
		"qualifying_events": ["lost job", "lost my job", "divorce"],
		"window_days": 60
	},
	"fallback_options": ["Marketplace navigator referral"]
}`

const emergencyRuleJSON = `{
	"service_key": "emergency",
	"display_name": "Emergency Screening",
	"critical_emergency_symptoms": [
		{"name": "cardiac", "symptoms": ["chest pain"], "action": "Call 911 immediately"}
	],
	"urgent_but_not_emergency": [
		{"name": "high_fever", "symptoms": ["high fever"], "action": "Seek care within 24 hours"}
	]
}`

const zeroRequirementRuleJSON = `{
	"service_key": "wellness",
	"display_name": "Wellness & Prevention Programs",
	"fallback_options": ["Self-guided wellness resources"]
}`

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	store := rules.NewStore()
	_, err := store.Load(context.Background(), rules.MapSource{
		"rpm.json":       []byte(rpmRuleJSON),
		"insurance.json": []byte(insuranceRuleJSON),
		"emergency.json": []byte(emergencyRuleJSON),
		"wellness.json":  []byte(zeroRequirementRuleJSON),
	})
	assert.NoError(t, err)
	return NewEvaluator(store)
}

func TestEvaluate_AllRequirementsMet(t *testing.T) {
	e := newTestEvaluator(t)
	responses := models.Responses{
		"chronic_conditions": models.StringValue("type 2 diabetes"),
		"insurance_coverage": models.BoolValue(true),
		"device_access":      models.BoolValue(true),
		"consent_monitoring": models.BoolValue(true),
	}

	result := e.Evaluate(responses, "Remote Patient Monitoring (RPM)", nil)

	assert.True(t, result.Qualified)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Empty(t, result.MissingCriteria)
	assert.Empty(t, result.NextQuestions)
	assert.Equal(t, "Meets all 4 requirements for Remote Patient Monitoring (RPM)", result.Reasoning)
	assert.Len(t, result.DecisionTrail, 4, "Every required check should be audited")
}

func TestEvaluate_PartialResponses(t *testing.T) {
	e := newTestEvaluator(t)
	responses := models.Responses{
		"chronic_conditions": models.StringValue("diabetes"),
		"insurance_coverage": models.BoolValue(true),
	}

	result := e.Evaluate(responses, "rpm", nil)

	assert.False(t, result.Qualified)
	assert.Equal(t, 0.5, result.Confidence)
	assert.Equal(t, []string{"device_access", "consent_monitoring"}, result.MissingCriteria)
	assert.Equal(t, []string{"Do you have a smartphone or tablet?"}, result.NextQuestions,
		"Exactly one question, for the first missing requirement in document order")
}

func TestEvaluate_Idempotent(t *testing.T) {
	e := newTestEvaluator(t)
	responses := models.Responses{
		"chronic_conditions": models.StringValue("diabetes"),
	}

	first := e.Evaluate(responses, "rpm", nil)
	second := e.Evaluate(responses, "rpm", nil)

	assert.Equal(t, first.Qualified, second.Qualified)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.MissingCriteria, second.MissingCriteria)
}

func TestEvaluate_AskedLedgerAdvancesQuestions(t *testing.T) {
	e := newTestEvaluator(t)
	asked := NewAskedLedger()
	responses := models.Responses{
		"chronic_conditions": models.StringValue("hypertension"),
	}

	first := e.Evaluate(responses, "rpm", asked)
	assert.Equal(t, []string{"Do you have health insurance?"}, first.NextQuestions)

	second := e.Evaluate(responses, "rpm", asked)
	assert.Equal(t, []string{"Do you have a smartphone or tablet?"}, second.NextQuestions,
		"A question already asked this conversation is never repeated")
}

func TestEvaluate_ExclusionOverridesRequirements(t *testing.T) {
	e := newTestEvaluator(t)
	responses := models.Responses{
		"chronic_conditions": models.StringValue("diabetes"),
		"insurance_coverage": models.BoolValue(true),
		"device_access":      models.BoolValue(true),
		"consent_monitoring": models.BoolValue(true),
		"free_text":          models.StringValue("I also have chest pain right now"),
	}

	result := e.Evaluate(responses, "rpm", nil)

	assert.False(t, result.Qualified, "An exclusion match disqualifies even with every requirement met")
	assert.Equal(t, 1.0, result.Confidence, "Confidence still reflects requirement satisfaction")
	assert.Equal(t, "Remote monitoring is not appropriate during a medical emergency", result.Reasoning)

	last := result.DecisionTrail[len(result.DecisionTrail)-1]
	assert.Equal(t, "active_emergency", last.Requirement)
	assert.Equal(t, "chest pain", last.Observed)
}

func TestEvaluate_UnknownService(t *testing.T) {
	e := newTestEvaluator(t)

	result := e.Evaluate(models.Responses{}, "acupuncture", nil)

	assert.False(t, result.Qualified)
	assert.Equal(t, 0.0, result.Confidence)
	assert.Equal(t, "No rules found for service: acupuncture", result.Reasoning)
	assert.Equal(t, []string{"service_definition"}, result.MissingCriteria)
	assert.NotNil(t, result.NextQuestions)
	assert.NotNil(t, result.FallbackOptions)
}

func TestEvaluate_ZeroRequirementsQualifies(t *testing.T) {
	e := newTestEvaluator(t)

	result := e.Evaluate(models.Responses{}, "wellness", nil)

	assert.True(t, result.Qualified)
	assert.Equal(t, 1.0, result.Confidence, "No requirements means nothing can be unmet")
	assert.Empty(t, result.MissingCriteria)
}

func TestEvaluate_InsuranceBlendWithQualifyingEvent(t *testing.T) {
	e := newTestEvaluator(t)
	responses := models.Responses{
		"coverage_status":  models.StringValue("I lost my job last month and had coverage through my employer"),
		"household_income": models.StringValue("35000"),
	}

	result := e.Evaluate(responses, "Insurance Enrollment", nil)

	assert.True(t, result.Qualified)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9, "0.7 requirement ratio plus 0.3 enrollment signal")

	var windowEntry *models.TrailEntry
	for i := range result.DecisionTrail {
		if result.DecisionTrail[i].Requirement == "enrollment_window" {
			windowEntry = &result.DecisionTrail[i]
		}
	}
	assert.NotNil(t, windowEntry)
	assert.Equal(t, "lost my job", windowEntry.Observed, "The matched qualifying event is audited")
}

func TestEvaluate_InsuranceBlendPartialRequirements(t *testing.T) {
	e := newTestEvaluator(t)
	responses := models.Responses{
		"coverage_status": models.StringValue("uninsured since my divorce"),
	}

	result := e.Evaluate(responses, "insurance", nil)

	assert.False(t, result.Qualified)
	assert.InDelta(t, 0.7*0.5+0.3, result.Confidence, 1e-9,
		"Half the requirements met, enrollment window eligible")
	assert.Equal(t, []string{"household_income"}, result.MissingCriteria)
}

func TestEvaluate_InsuranceAssumedEligibleWithoutEvent(t *testing.T) {
	e := newTestEvaluator(t)
	responses := models.Responses{
		"coverage_status":  models.StringValue("currently uninsured"),
		"household_income": models.StringValue("42000"),
	}

	result := e.Evaluate(responses, "insurance", nil)

	assert.True(t, result.Qualified, "Absent a qualifying event, enrollment eligibility is assumed")
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)

	var windowEntry *models.TrailEntry
	for i := range result.DecisionTrail {
		if result.DecisionTrail[i].Requirement == "enrollment_window" {
			windowEntry = &result.DecisionTrail[i]
		}
	}
	assert.NotNil(t, windowEntry)
	assert.Equal(t, "assumed eligible", windowEntry.Observed)
}

func TestEvaluate_EmergencyServiceCritical(t *testing.T) {
	e := newTestEvaluator(t)
	responses := models.Responses{
		"symptoms": models.StringValue("severe chest pain"),
	}

	result := e.Evaluate(responses, "emergency", nil)

	assert.True(t, result.Qualified)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Contains(t, result.Reasoning, "immediate medical attention")

	assert.Len(t, result.DecisionTrail, 1)
	assert.Equal(t, "cardiac", result.DecisionTrail[0].Requirement)
	assert.Equal(t, "chest pain", result.DecisionTrail[0].Observed,
		"The trail entry records the keyword that triggered the screen")
}

func TestEvaluate_EmergencyServiceNoSymptoms(t *testing.T) {
	e := newTestEvaluator(t)
	responses := models.Responses{
		"symptoms": models.StringValue("just looking for wellness advice"),
	}

	result := e.Evaluate(responses, "emergency", nil)

	assert.False(t, result.Qualified)
	assert.Equal(t, 0.9, result.Confidence)
	assert.Equal(t, []string{"What specific health concerns would you like help with?"}, result.NextQuestions)
	assert.Contains(t, result.FallbackOptions, "Telehealth")
}

func TestScreen_CriticalBeforeUrgent(t *testing.T) {
	e := newTestEvaluator(t)
	responses := models.Responses{
		"symptoms": models.StringValue("high fever and chest pain"),
	}

	screen := e.Screen(responses)

	assert.Equal(t, models.TierCritical, screen.Tier)
	assert.Equal(t, "cardiac", screen.Category)
}

func TestScreen_EscalatesConservativelyWithoutTables(t *testing.T) {
	e := NewEvaluator(rules.NewStore())

	screen := e.Screen(models.Responses{
		"symptoms": models.StringValue("mild headache"),
	})

	assert.Equal(t, models.TierUrgent, screen.Tier,
		"A screen that cannot run must not report tier none")
	assert.Equal(t, "screening_unavailable", screen.Category)
}

func TestScanExclusions_TableOrderIsPriority(t *testing.T) {
	exclusions := []models.ExclusionSpec{
		{Name: "first", Symptoms: []string{"dizzy"}},
		{Name: "second", Symptoms: []string{"dizzy", "nauseous"}},
	}
	responses := models.Responses{
		"symptoms": models.StringValue("dizzy and nauseous"),
	}

	match, keyword, ok := ScanExclusions(responses, exclusions)

	assert.True(t, ok)
	assert.Equal(t, "first", match.Name, "The earlier table entry wins")
	assert.Equal(t, "dizzy", keyword)
}

func TestScanExclusions_NoMatch(t *testing.T) {
	exclusions := []models.ExclusionSpec{
		{Name: "first", Symptoms: []string{"dizzy"}},
	}

	match, _, ok := ScanExclusions(models.Responses{"symptoms": models.StringValue("fine")}, exclusions)
	assert.False(t, ok)
	assert.Nil(t, match)

	match, _, ok = ScanExclusions(models.Responses{}, nil)
	assert.False(t, ok)
	assert.Nil(t, match)
}
