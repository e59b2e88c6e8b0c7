// Package database provides database operations for the health eligibility engine.
package database

import (
	"context"
	"fmt"
	"time"

	"health-eligibility-engine/internal/models"
)

// ScreeningRecord documents one emergency triage screen. Every screen is
// recorded, including tier none, so escalation behavior is reviewable.
type ScreeningRecord struct {
	ID        int64             `json:"id"`
	SessionID string            `json:"session_id"`
	Tier      models.TriageTier `json:"tier"`
	Category  string            `json:"category,omitempty"`
	Action    string            `json:"action,omitempty"`
	Escalated bool              `json:"escalated"`
	CreatedAt time.Time         `json:"created_at"`
}

// ScreeningRepository handles triage screening records.
type ScreeningRepository struct {
	db *DB
}

// NewScreeningRepository creates a new screening repository.
func NewScreeningRepository(db *DB) *ScreeningRepository {
	return &ScreeningRepository{db: db}
}

// Record inserts the audit row for one triage screen.
func (r *ScreeningRepository) Record(ctx context.Context, sessionID string, result models.TriageResult, escalated bool) (int64, error) {
	query := `
		INSERT INTO screenings (
			session_id, tier, category, action, escalated, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		sessionID,
		string(result.Tier),
		result.Category,
		result.Action,
		escalated,
		time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to record screening: %w", err)
	}

	return id, nil
}

// GetEscalations returns the most recent critical-tier screens.
func (r *ScreeningRepository) GetEscalations(ctx context.Context, limit int) ([]*ScreeningRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, session_id, tier, category, action, escalated, created_at
		FROM screenings
		WHERE tier = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, string(models.TierCritical), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query screenings: %w", err)
	}
	defer rows.Close()

	var records []*ScreeningRecord
	for rows.Next() {
		var rec ScreeningRecord
		var tier string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &tier, &rec.Category,
			&rec.Action, &rec.Escalated, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan screening: %w", err)
		}
		rec.Tier = models.TriageTier(tier)
		records = append(records, &rec)
	}

	return records, rows.Err()
}
