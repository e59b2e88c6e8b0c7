// Package handlers provides Lambda handlers for the health eligibility engine.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	appConfig "health-eligibility-engine/internal/config"
	"health-eligibility-engine/internal/models"
	"health-eligibility-engine/internal/services/database"
	"health-eligibility-engine/internal/services/engine"
	"health-eligibility-engine/internal/services/rules"
	s3service "health-eligibility-engine/internal/services/s3"
	sesservice "health-eligibility-engine/internal/services/ses"
	"health-eligibility-engine/internal/utils"
)

// ScreenHandler runs the emergency symptom screen as a standalone webhook,
// so upstream intake flows can triage before any conversation starts.
type ScreenHandler struct {
	evaluator  *engine.Evaluator
	notifier   *sesservice.Service
	screenRepo *database.ScreeningRepository
}

// ScreenRequest is the webhook request body. Either a free-text symptom
// description or a structured response mapping may be supplied.
type ScreenRequest struct {
	SessionID string                     `json:"session_id,omitempty"`
	Symptoms  string                     `json:"symptoms,omitempty"`
	Responses map[string]json.RawMessage `json:"responses,omitempty"`
}

// ScreenResponse is the webhook response body.
type ScreenResponse struct {
	Result    models.TriageResult `json:"result"`
	Escalated bool                `json:"escalated"`
}

// NewScreenHandler creates the handler, loading the rule set from S3 when
// a rules bucket is configured and from the local rules directory
// otherwise. SES and the database are optional.
func NewScreenHandler(ctx context.Context) (*ScreenHandler, error) {
	cfg, err := appConfig.Load()
	if err != nil {
		return nil, err
	}

	store := rules.NewStore()
	var src rules.Source
	if cfg.RulesS3Bucket != "" {
		s3src, err := s3service.NewService(ctx, cfg)
		if err != nil {
			return nil, err
		}
		src = s3src
	} else {
		src = rules.DirSource{Dir: cfg.RulesDir}
	}
	if _, err := store.Load(ctx, src); err != nil {
		// An empty store still screens: the evaluator escalates
		// conservatively instead of reporting tier none.
		utils.GetLogger().Error("Failed to load rules for screening", zap.Error(err))
	}

	h := &ScreenHandler{evaluator: engine.NewEvaluator(store)}

	if cfg.SESSenderEmail != "" && cfg.EscalationEmail != "" {
		notifier, err := sesservice.NewService(ctx, cfg)
		if err != nil {
			utils.GetLogger().Warn("Escalation notifier unavailable", zap.Error(err))
		} else {
			h.notifier = notifier
		}
	}

	if db, err := database.New(cfg); err == nil {
		h.screenRepo = database.NewScreeningRepository(db)
	}

	return h, nil
}

// Handle processes API Gateway screening requests.
func (h *ScreenHandler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger := utils.GetLogger()

	if request.HTTPMethod == http.MethodOptions {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Headers: corsHeaders}, nil
	}
	if request.HTTPMethod != http.MethodPost {
		return errorResponse(http.StatusMethodNotAllowed, "method not allowed"), nil
	}

	var req ScreenRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return errorResponse(http.StatusBadRequest, "invalid request body"), nil
	}

	responses := make(models.Responses)
	if req.Symptoms != "" {
		responses["symptoms"] = models.StringValue(req.Symptoms)
	}
	for k, raw := range req.Responses {
		var v models.Value
		if err := json.Unmarshal(raw, &v); err == nil {
			responses[k] = v
		}
	}

	result := h.evaluator.Screen(responses)

	escalated := false
	if result.Tier == models.TierCritical && h.notifier != nil {
		if _, err := h.notifier.SendEscalationAlert(ctx, req.SessionID, result); err != nil {
			logger.Error("Failed to send escalation alert", zap.Error(err))
		} else {
			escalated = true
		}
	}

	if h.screenRepo != nil {
		if _, err := h.screenRepo.Record(ctx, req.SessionID, result, escalated); err != nil {
			logger.Warn("Failed to record screening", zap.Error(err))
		}
	}

	logger.Info("Screening complete",
		zap.String("tier", string(result.Tier)),
		zap.String("category", result.Category),
		zap.Bool("escalated", escalated),
	)

	body, _ := json.Marshal(ScreenResponse{Result: result, Escalated: escalated})
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    corsHeaders,
		Body:       string(body),
	}, nil
}

func errorResponse(status int, message string) events.APIGatewayProxyResponse {
	body, _ := json.Marshal(map[string]string{"error": message})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    corsHeaders,
		Body:       string(body),
	}
}
