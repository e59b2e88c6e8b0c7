// Package main provides the HTTP server for the health eligibility engine.
// It owns everything the engine itself does not: sessions, persistence,
// escalation email, and the safety ordering that runs the emergency screen
// before any eligibility evaluation.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"health-eligibility-engine/internal/config"
	"health-eligibility-engine/internal/models"
	"health-eligibility-engine/internal/services/database"
	"health-eligibility-engine/internal/services/engine"
	"health-eligibility-engine/internal/services/rules"
	s3service "health-eligibility-engine/internal/services/s3"
	sesservice "health-eligibility-engine/internal/services/ses"
	"health-eligibility-engine/internal/session"
	"health-eligibility-engine/internal/utils"
)

// Server holds all dependencies
type Server struct {
	store      *rules.Store
	ruleSource rules.Source
	s3Source   *s3service.Service
	evaluator  *engine.Evaluator
	sessions   *session.Manager
	db         *database.DB
	evalRepo   *database.EvaluationRepository
	screenRepo *database.ScreeningRepository
	notifier   *sesservice.Service
	config     *config.Config
}

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// EvaluateRequest asks for an eligibility decision. Responses may come
// from a session, be supplied inline, or both; inline values are merged
// into the session first.
type EvaluateRequest struct {
	SessionID string                  `json:"session_id,omitempty"`
	Service   string                  `json:"service"`
	Responses map[string]models.Value `json:"responses,omitempty"`
}

// EvaluateResponse carries the screening outcome alongside the decision.
// When the screen hits the critical tier the evaluation is suspended and
// Result is absent.
type EvaluateResponse struct {
	Screening models.TriageResult       `json:"screening"`
	Halted    bool                      `json:"halted"`
	Result    *models.EligibilityResult `json:"result,omitempty"`
}

// ScreenRequest asks for a standalone symptom screen.
type ScreenRequest struct {
	SessionID string                  `json:"session_id,omitempty"`
	Symptoms  string                  `json:"symptoms,omitempty"`
	Responses map[string]models.Value `json:"responses,omitempty"`
}

func main() {
	// Initialize logger first
	if err := utils.InitLogger(os.Getenv("LOG_LEVEL")); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer utils.Sync()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Warning: Could not load config from environment: %v", err)
		cfg = &config.Config{RulesDir: "rules"}
	}

	ctx := context.Background()

	server := &Server{
		store:  rules.NewStore(),
		config: cfg,
	}
	server.evaluator = engine.NewEvaluator(server.store)

	// Pick the rule source: S3 when a bucket is configured, local
	// directory otherwise.
	if cfg.RulesS3Bucket != "" {
		src, err := s3service.NewService(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to create S3 rule source: %v", err)
		}
		server.ruleSource = src
		server.s3Source = src
	} else {
		server.ruleSource = rules.DirSource{Dir: cfg.RulesDir}
	}

	if _, err := server.store.Load(ctx, server.ruleSource); err != nil {
		// Run anyway: lookups degrade to "no rules" results and the
		// screen escalates conservatively.
		log.Printf("Warning: Could not load rules: %v", err)
	}

	// Sessions
	server.sessions = session.NewManager(
		time.Duration(cfg.SessionTimeoutMinutes)*time.Minute,
		time.Duration(cfg.SessionCleanupMinutes)*time.Minute,
	)
	server.sessions.Start()
	defer server.sessions.Stop()

	// Initialize database (optional; audit trail only)
	db, err := database.New(cfg)
	if err != nil {
		log.Printf("Warning: Could not connect to database: %v", err)
		log.Println("Server will run without the evaluation audit trail")
	} else {
		server.db = db
		server.evalRepo = database.NewEvaluationRepository(db)
		server.screenRepo = database.NewScreeningRepository(db)
		defer db.Close()
	}

	// Escalation notifier (optional)
	if cfg.SESSenderEmail != "" && cfg.EscalationEmail != "" {
		notifier, err := sesservice.NewService(ctx, cfg)
		if err != nil {
			log.Printf("Warning: Could not initialize escalation notifier: %v", err)
		} else {
			server.notifier = notifier
		}
	}

	// Setup routes
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", server.healthHandler)
	mux.HandleFunc("GET /api/health", server.healthHandler)

	// Loaded services
	mux.HandleFunc("GET /api/services", server.servicesHandler)

	// Sessions
	mux.HandleFunc("POST /api/sessions", server.createSessionHandler)
	mux.HandleFunc("GET /api/sessions/{id}", server.getSessionHandler)
	mux.HandleFunc("POST /api/sessions/{id}/responses", server.updateSessionHandler)
	mux.HandleFunc("DELETE /api/sessions/{id}", server.endSessionHandler)
	mux.HandleFunc("GET /api/sessions/{id}/evaluations", server.sessionEvaluationsHandler)

	// Monitoring
	mux.HandleFunc("GET /api/stats", server.statsHandler)

	// Engine
	mux.HandleFunc("POST /api/evaluate", server.evaluateHandler)
	mux.HandleFunc("POST /api/screen", server.screenHandler)

	// Rules reload (atomic snapshot swap) and S3 rule push
	mux.HandleFunc("POST /api/rules/reload", server.reloadHandler)
	mux.HandleFunc("PUT /api/rules/{name}", server.putRuleHandler)

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := c.Handler(mux)

	port := getEnvOrDefault("PORT", "8080")
	addr := fmt.Sprintf("0.0.0.0:%s", port)

	log.Printf("Health Eligibility Engine API Server")
	log.Printf("Listening on http://localhost:%s", port)
	log.Printf("Health: http://localhost:%s/health", port)
	log.Printf("Loaded services: %v", server.store.Services())
	log.Println("")

	// Start server (this blocks until error)
	log.Printf("Starting HTTP server on %s...", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	dbStatus := "disconnected"
	if s.db != nil {
		if err := s.db.HealthCheck(r.Context()); err == nil {
			dbStatus = "connected"
		}
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Health Eligibility Engine API is running",
		Data: map[string]interface{}{
			"status":    "healthy",
			"database":  dbStatus,
			"services":  s.store.Len(),
			"sessions":  s.sessions.Stats(),
			"timestamp": time.Now().Format(time.RFC3339),
			"version":   "1.0.0",
		},
	})
}

func (s *Server) servicesHandler(w http.ResponseWriter, r *http.Request) {
	keys := s.store.Services()
	services := make([]map[string]string, 0, len(keys))
	for _, key := range keys {
		doc, err := s.store.Lookup(key)
		if err != nil {
			continue
		}
		services = append(services, map[string]string{
			"service_key":  doc.ServiceKey,
			"display_name": doc.Label(),
		})
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: services})
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()

	utils.GetLogger().Info("Created session", zap.String("session_id", sess.ID))

	writeJSON(w, http.StatusCreated, Response{
		Success: true,
		Data: map[string]interface{}{
			"session_id": sess.ID,
			"created_at": sess.CreatedAt.Format(time.RFC3339),
		},
	})
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	view, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, Response{Success: false, Error: "Session not found or expired"})
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: view})
}

func (s *Server) updateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var updates map[string]models.Value
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	merged := make(models.Responses, len(updates))
	for k, v := range updates {
		merged[k] = v
	}

	view, ok := s.sessions.Update(r.PathValue("id"), merged)
	if !ok {
		writeJSON(w, http.StatusNotFound, Response{Success: false, Error: "Session not found or expired"})
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: view})
}

func (s *Server) sessionEvaluationsHandler(w http.ResponseWriter, r *http.Request) {
	if s.evalRepo == nil {
		writeJSON(w, http.StatusServiceUnavailable, Response{Success: false, Error: "Evaluation audit trail is not enabled"})
		return
	}

	records, err := s.evalRepo.GetBySession(r.Context(), r.PathValue("id"), 50)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Failed to load evaluation history"})
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: records})
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"sessions": s.sessions.Stats(),
		"services": s.store.Services(),
	}

	if s.evalRepo != nil {
		if counts, err := s.evalRepo.CountByService(r.Context()); err == nil {
			data["qualified_by_service"] = counts
		}
	}
	if s.screenRepo != nil {
		if escalations, err := s.screenRepo.GetEscalations(r.Context(), 20); err == nil {
			data["recent_escalations"] = escalations
		}
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func (s *Server) endSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.End(r.PathValue("id")) {
		writeJSON(w, http.StatusNotFound, Response{Success: false, Error: "Session not found"})
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Session ended"})
}

// evaluateHandler runs the full turn: merge responses, screen for
// emergency symptoms, and only then evaluate eligibility. A critical
// screen suspends the evaluation entirely.
func (s *Server) evaluateHandler(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}
	if req.Service == "" {
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "service is required"})
		return
	}

	responses := make(models.Responses, len(req.Responses))
	for k, v := range req.Responses {
		responses[k] = v
	}

	var screen models.TriageResult
	var result models.EligibilityResult
	halted := false

	evaluate := func(state models.Responses, asked engine.AskedLedger) {
		screen = s.evaluator.Screen(state)
		if screen.Tier == models.TierCritical {
			halted = true
			return
		}
		result = s.evaluator.Evaluate(state, req.Service, asked)
	}

	if req.SessionID != "" {
		// The session lock covers the merge, the screen, and the
		// evaluation, so a concurrent update can never race the
		// engine's iteration over the response state.
		ok := s.sessions.With(req.SessionID, func(sess *session.Session) {
			sess.Responses.Merge(responses)
			evaluate(sess.Responses, sess.Asked)
		})
		if !ok {
			writeJSON(w, http.StatusNotFound, Response{Success: false, Error: "Session not found or expired"})
			return
		}
	} else {
		evaluate(responses, nil)
	}

	s.recordScreen(r.Context(), req.SessionID, screen)

	if halted {
		s.escalate(r.Context(), req.SessionID, screen)
		writeJSON(w, http.StatusOK, Response{
			Success: true,
			Data:    EvaluateResponse{Screening: screen, Halted: true},
		})
		return
	}

	if s.evalRepo != nil {
		if _, err := s.evalRepo.Record(r.Context(), req.SessionID, result); err != nil {
			utils.GetLogger().Warn("Failed to record evaluation", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    EvaluateResponse{Screening: screen, Result: &result},
	})
}

func (s *Server) screenHandler(w http.ResponseWriter, r *http.Request) {
	var req ScreenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}

	responses := make(models.Responses, len(req.Responses)+1)
	if req.Symptoms != "" {
		responses["symptoms"] = models.StringValue(req.Symptoms)
	}
	for k, v := range req.Responses {
		responses[k] = v
	}

	screen := s.evaluator.Screen(responses)
	s.recordScreen(r.Context(), req.SessionID, screen)
	if screen.Tier == models.TierCritical {
		s.escalate(r.Context(), req.SessionID, screen)
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: screen})
}

func (s *Server) reloadHandler(w http.ResponseWriter, r *http.Request) {
	outcomes, err := s.store.Load(r.Context(), s.ruleSource)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Error:   "Reload failed, previous rule set kept: " + err.Error(),
		})
		return
	}

	loaded := make([]string, 0, len(outcomes))
	skipped := make([]string, 0)
	for _, o := range outcomes {
		if o.Err != nil {
			skipped = append(skipped, o.Name)
		} else {
			loaded = append(loaded, o.ServiceKey)
		}
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Rules reloaded",
		Data: map[string]interface{}{
			"loaded":  loaded,
			"skipped": skipped,
		},
	})
}

// putRuleHandler pushes one rule document to the S3 rule source and
// reloads the store. Only available when rules come from S3; local rule
// files are edited on disk.
func (s *Server) putRuleHandler(w http.ResponseWriter, r *http.Request) {
	if s.s3Source == nil {
		writeJSON(w, http.StatusServiceUnavailable, Response{Success: false, Error: "Rule upload requires an S3 rule source"})
		return
	}

	name := r.PathValue("name")
	if !strings.HasSuffix(name, ".json") {
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Rule documents must be .json files"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Failed to read request body"})
		return
	}

	// Validate before uploading so a bad document never lands in the bucket.
	doc, err := rules.ParseDocument(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid rule document: " + err.Error()})
		return
	}

	key := path.Join(s.config.RulesS3Prefix, name)
	if err := s.s3Source.UploadObject(r.Context(), key, body); err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Upload failed: " + err.Error()})
		return
	}

	if _, err := s.store.Load(r.Context(), s.ruleSource); err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{Success: false, Error: "Uploaded but reload failed: " + err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Rule document uploaded and loaded",
		Data:    map[string]string{"service_key": doc.ServiceKey, "key": key},
	})
}

// recordScreen persists the triage outcome when the audit trail is on.
func (s *Server) recordScreen(ctx context.Context, sessionID string, screen models.TriageResult) {
	if s.screenRepo == nil {
		return
	}
	if _, err := s.screenRepo.Record(ctx, sessionID, screen, screen.Tier == models.TierCritical); err != nil {
		utils.GetLogger().Warn("Failed to record screening", zap.Error(err))
	}
}

// escalate notifies the care team of a critical screen.
func (s *Server) escalate(ctx context.Context, sessionID string, screen models.TriageResult) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.SendEscalationAlert(ctx, sessionID, screen); err != nil {
		utils.GetLogger().Error("Failed to send escalation alert",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
