// Package handlers provides Lambda handlers for the health eligibility engine.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"

	appConfig "health-eligibility-engine/internal/config"
	"health-eligibility-engine/internal/services/database"
)

// corsHeaders are attached to every Lambda response.
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "Content-Type,Authorization",
	"Access-Control-Allow-Methods": "POST,GET,OPTIONS",
	"Content-Type":                 "application/json",
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	db *database.DB
}

// NewHealthHandler creates a new health handler. The database is optional;
// a failed connection is reported in the health body, not as a startup
// failure.
func NewHealthHandler() (*HealthHandler, error) {
	cfg, err := appConfig.Load()
	if err != nil {
		return nil, err
	}

	db, _ := database.New(cfg)
	return &HealthHandler{db: db}, nil
}

// Handle processes API Gateway health check requests.
func (h *HealthHandler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if request.HTTPMethod == http.MethodOptions {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Headers: corsHeaders}, nil
	}

	dbStatus := "disconnected"
	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err == nil {
			dbStatus = "connected"
		}
	}

	body, _ := json.Marshal(map[string]interface{}{
		"status":    "healthy",
		"database":  dbStatus,
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   "1.0.0",
	})

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    corsHeaders,
		Body:       string(body),
	}, nil
}
