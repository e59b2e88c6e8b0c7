// Package database provides database operations for the health eligibility engine.
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"health-eligibility-engine/internal/models"
)

// EvaluationRecord is the persisted audit form of one eligibility decision.
// The decision trail is stored as JSONB so a reviewer can reconstruct
// exactly which requirement checks produced the outcome.
type EvaluationRecord struct {
	ID              int64               `json:"id"`
	SessionID       string              `json:"session_id"`
	ServiceKey      string              `json:"service_key"`
	Qualified       bool                `json:"qualified"`
	Confidence      float64             `json:"confidence"`
	Reasoning       string              `json:"reasoning"`
	MissingCriteria []string            `json:"missing_criteria"`
	DecisionTrail   []models.TrailEntry `json:"decision_trail"`
	CreatedAt       time.Time           `json:"created_at"`
}

// EvaluationRepository handles evaluation audit records.
type EvaluationRepository struct {
	db *DB
}

// NewEvaluationRepository creates a new evaluation repository.
func NewEvaluationRepository(db *DB) *EvaluationRepository {
	return &EvaluationRepository{db: db}
}

// Record inserts the audit row for one evaluation call.
func (r *EvaluationRepository) Record(ctx context.Context, sessionID string, result models.EligibilityResult) (int64, error) {
	missing, err := json.Marshal(result.MissingCriteria)
	if err != nil {
		return 0, fmt.Errorf("failed to encode missing criteria: %w", err)
	}
	trail, err := json.Marshal(result.DecisionTrail)
	if err != nil {
		return 0, fmt.Errorf("failed to encode decision trail: %w", err)
	}

	query := `
		INSERT INTO evaluations (
			session_id, service_key, qualified, confidence, reasoning,
			missing_criteria, decision_trail, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	var id int64
	err = r.db.QueryRowContext(ctx, query,
		sessionID,
		result.ServiceKey,
		result.Qualified,
		result.Confidence,
		result.Reasoning,
		missing,
		trail,
		time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to record evaluation: %w", err)
	}

	return id, nil
}

// GetBySession returns the evaluation history of one conversation, newest
// first.
func (r *EvaluationRepository) GetBySession(ctx context.Context, sessionID string, limit int) ([]*EvaluationRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, session_id, service_key, qualified, confidence, reasoning,
		       missing_criteria, decision_trail, created_at
		FROM evaluations
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	var records []*EvaluationRecord
	for rows.Next() {
		var rec EvaluationRecord
		var missing, trail []byte
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.ServiceKey, &rec.Qualified,
			&rec.Confidence, &rec.Reasoning, &missing, &trail, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		if err := json.Unmarshal(missing, &rec.MissingCriteria); err != nil {
			return nil, fmt.Errorf("failed to decode missing criteria: %w", err)
		}
		if err := json.Unmarshal(trail, &rec.DecisionTrail); err != nil {
			return nil, fmt.Errorf("failed to decode decision trail: %w", err)
		}
		records = append(records, &rec)
	}

	return records, rows.Err()
}

// CountByService returns qualification counts per service, for monitoring.
func (r *EvaluationRepository) CountByService(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT service_key, COUNT(*)
		FROM evaluations
		WHERE qualified = true
		GROUP BY service_key`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count evaluations: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[key] = n
	}

	return counts, rows.Err()
}
