// Package engine implements the eligibility rule evaluation engine.
package engine

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"health-eligibility-engine/internal/models"
	"health-eligibility-engine/internal/services/rules"
	"health-eligibility-engine/internal/utils"
)

// emergencyServiceKey names the rule document holding the two-tier symptom
// screening tables.
const emergencyServiceKey = "emergency"

// Insurance blends requirement satisfaction with enrollment-window
// eligibility: meeting every questionnaire requirement is worth 70% of the
// confidence, being inside an enrollment window the remaining 30%.
const (
	insuranceRequirementWeight = 0.7
	insuranceEnrollmentWeight  = 0.3
)

// Evaluator orchestrates the requirement matcher, exclusion scanner, and
// question selector across a service's rule document. It is stateless
// beyond the injected rule store and safe for concurrent use.
type Evaluator struct {
	store *rules.Store
}

// NewEvaluator creates an evaluator backed by the given rule store.
func NewEvaluator(store *rules.Store) *Evaluator {
	return &Evaluator{store: store}
}

// Evaluate computes the eligibility decision for one service. It always
// returns a well-formed result: an unknown service, a type mismatch, or a
// malformed answer degrades the decision, never the call.
func (e *Evaluator) Evaluate(responses models.Responses, service string, asked AskedLedger) models.EligibilityResult {
	doc, err := e.store.Lookup(service)
	if err != nil {
		return noRulesResult(service)
	}
	if asked == nil {
		asked = NewAskedLedger()
	}

	var result models.EligibilityResult
	if doc.ServiceKey == emergencyServiceKey {
		result = e.evaluateEmergency(responses, doc)
	} else {
		result = e.evaluateService(responses, doc, asked)
	}

	utils.GetLogger().Debug("Evaluated eligibility",
		zap.String("service", result.ServiceKey),
		zap.Bool("qualified", result.Qualified),
		zap.Float64("confidence", result.Confidence),
		zap.Int("missing", len(result.MissingCriteria)),
	)

	return result
}

// Screen runs the emergency symptom screen. It must be called before any
// eligibility evaluation whenever the input could carry symptom text; a
// critical result obliges the caller to suspend all other processing. If
// the screen itself cannot run, the result escalates conservatively rather
// than reporting tier none.
func (e *Evaluator) Screen(responses models.Responses) models.TriageResult {
	doc, err := e.store.Lookup(emergencyServiceKey)
	if err != nil || (len(doc.CriticalSymptoms) == 0 && len(doc.UrgentSymptoms) == 0) {
		utils.GetLogger().Warn("Emergency screening tables unavailable, escalating conservatively",
			zap.Error(err),
		)
		return conservativeEscalation()
	}
	return ScreenTables(responses, doc.CriticalSymptoms, doc.UrgentSymptoms)
}

// evaluateService is the generic requirement-counting evaluation, shared by
// every service except the emergency screen.
func (e *Evaluator) evaluateService(responses models.Responses, doc *models.RuleDocument, asked AskedLedger) models.EligibilityResult {
	trail := make([]models.TrailEntry, 0, len(doc.Requirements))
	missing := make([]string, 0)
	metCount := 0

	for _, spec := range doc.Requirements {
		if !spec.Required {
			continue
		}
		if MatchRequirement(responses, spec, &trail) {
			metCount++
		} else {
			missing = append(missing, spec.Name)
		}
	}

	exclusion, keyword, excluded := ScanExclusions(responses, doc.Exclusions)
	if excluded {
		trail = append(trail, models.TrailEntry{
			Requirement:  exclusion.Name,
			ExpectedType: models.RequirementContainsAny,
			Observed:     keyword,
			Met:          true,
		})
	}

	total := doc.RequiredCount()
	ratio := 1.0
	if total > 0 {
		ratio = float64(metCount) / float64(total)
	}

	confidence := ratio
	qualified := metCount == total && !excluded

	enrollmentEligible := true
	if doc.EnrollmentWindows != nil {
		enrollmentEligible = checkEnrollmentWindow(responses, doc.EnrollmentWindows, &trail)
		confidence = insuranceRequirementWeight*ratio + insuranceEnrollmentWeight*boolWeight(enrollmentEligible)
		qualified = qualified && enrollmentEligible
	}

	result := models.EligibilityResult{
		Service:         doc.Label(),
		ServiceKey:      doc.ServiceKey,
		Qualified:       qualified,
		Confidence:      confidence,
		Reasoning:       buildReasoning(doc, exclusion, missing, excluded, enrollmentEligible, total),
		NextQuestions:   make([]string, 0, 1),
		FallbackOptions: append([]string{}, doc.FallbackOptions...),
		MissingCriteria: missing,
		DecisionTrail:   trail,
	}

	if question, ok := SelectNextQuestion(doc, missing, asked); ok {
		result.NextQuestions = append(result.NextQuestions, question)
	}

	return result
}

// evaluateEmergency maps the two-tier symptom screen onto the eligibility
// result shape, so callers that evaluate every service uniformly still get
// the screening outcome.
func (e *Evaluator) evaluateEmergency(responses models.Responses, doc *models.RuleDocument) models.EligibilityResult {
	screen := ScreenTables(responses, doc.CriticalSymptoms, doc.UrgentSymptoms)

	trail := make([]models.TrailEntry, 0, 1)
	if screen.Category != "" {
		trail = append(trail, models.TrailEntry{
			Requirement:  screen.Category,
			ExpectedType: models.RequirementContainsAny,
			Observed:     screen.Keyword,
			Met:          true,
		})
	}

	result := models.EligibilityResult{
		Service:         doc.Label(),
		ServiceKey:      doc.ServiceKey,
		NextQuestions:   make([]string, 0, 1),
		FallbackOptions: make([]string, 0),
		MissingCriteria: make([]string, 0),
		DecisionTrail:   trail,
	}

	switch screen.Tier {
	case models.TierCritical:
		result.Qualified = true
		result.Confidence = 1.0
		result.Reasoning = "Emergency symptoms detected - immediate medical attention required"
	case models.TierUrgent:
		result.Qualified = true
		result.Confidence = 0.8
		result.Reasoning = "Urgent symptoms detected - seek medical care within hours"
		result.FallbackOptions = append(result.FallbackOptions, "Urgent care", "Telehealth consultation")
	default:
		result.Qualified = false
		result.Confidence = 0.9
		result.Reasoning = "No emergency symptoms detected - routine care appropriate"
		result.NextQuestions = append(result.NextQuestions, "What specific health concerns would you like help with?")
		result.FallbackOptions = append(result.FallbackOptions, "Telehealth", "Primary care appointment", "Wellness programs")
	}

	return result
}

// checkEnrollmentWindow looks for a qualifying life event in the patient's
// answers using the same keyword scan as the exclusion tables. Absent any
// event it assumes eligibility; real open-enrollment calendar checking is
// still pending business rules for the date windows.
func checkEnrollmentWindow(responses models.Responses, windows *models.EnrollmentWindows, trail *[]models.TrailEntry) bool {
	haystack := responses.Haystack()
	for _, event := range windows.QualifyingEvents {
		ev := strings.ToLower(strings.TrimSpace(event))
		if ev != "" && strings.Contains(haystack, ev) {
			*trail = append(*trail, models.TrailEntry{
				Requirement:  "enrollment_window",
				ExpectedType: models.RequirementContainsAny,
				Observed:     ev,
				Met:          true,
			})
			return true
		}
	}

	*trail = append(*trail, models.TrailEntry{
		Requirement:  "enrollment_window",
		ExpectedType: models.RequirementContainsAny,
		Observed:     "assumed eligible",
		Met:          true,
	})
	return true
}

// buildReasoning phrases the decision for the patient-facing layer.
// Priority: exclusion > missing criteria > enrollment window > success.
func buildReasoning(doc *models.RuleDocument, exclusion *models.ExclusionSpec, missing []string, excluded, enrollmentEligible bool, total int) string {
	switch {
	case excluded:
		if exclusion != nil && exclusion.Message != "" {
			return exclusion.Message
		}
		return fmt.Sprintf("Excluded from %s due to safety or clinical criteria", doc.Label())
	case len(missing) > 0:
		return fmt.Sprintf("Missing %d required criteria: %s", len(missing), strings.Join(missing, ", "))
	case !enrollmentEligible:
		return "Not currently in an enrollment window and no qualifying life events detected"
	default:
		return fmt.Sprintf("Meets all %d requirements for %s", total, doc.Label())
	}
}

// noRulesResult is the defined degradation for an unknown service: not
// qualified, zero confidence, and the explanation inside the reasoning
// string rather than an error.
func noRulesResult(service string) models.EligibilityResult {
	return models.EligibilityResult{
		Service:         service,
		ServiceKey:      models.NormalizeServiceKey(service),
		Qualified:       false,
		Confidence:      0,
		Reasoning:       fmt.Sprintf("No rules found for service: %s", service),
		NextQuestions:   make([]string, 0),
		FallbackOptions: make([]string, 0),
		MissingCriteria: []string{"service_definition"},
		DecisionTrail:   make([]models.TrailEntry, 0),
	}
}

func boolWeight(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
