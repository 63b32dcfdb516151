package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/veridian/comply/internal/models"
)

func (s *Store) CreateAlert(ctx context.Context, alert *models.ComplianceAlert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if alert.TriggeredAt.IsZero() {
		alert.TriggeredAt = time.Now()
	}
	alert.Active = true

	query := `
		INSERT INTO compliance_alerts (
			id, entity_id, rule_id, rule_code, type, severity, message,
			active, acknowledged, triggered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		alert.ID,
		alert.EntityID,
		alert.RuleID,
		alert.RuleCode,
		alert.Type,
		alert.Severity,
		alert.Message,
		alert.Active,
		alert.Acknowledged,
		alert.TriggeredAt,
	)
	return err
}

// FindActiveAlert looks up an unacknowledged active alert for the
// (entity, rule, type) tuple, used for deduplication.
func (s *Store) FindActiveAlert(ctx context.Context, entityID uuid.UUID, ruleCode string, alertType models.AlertType) (*models.ComplianceAlert, error) {
	var alert models.ComplianceAlert
	query := `
		SELECT * FROM compliance_alerts
		WHERE entity_id = $1 AND rule_code = $2 AND type = $3
		  AND active = true AND acknowledged = false
		ORDER BY triggered_at DESC
		LIMIT 1
	`
	err := s.db.GetContext(ctx, &alert, query, entityID, ruleCode, alertType)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &alert, err
}

func (s *Store) ListAlerts(ctx context.Context, entityID uuid.UUID, activeOnly bool) ([]models.ComplianceAlert, error) {
	var alerts []models.ComplianceAlert
	query := `SELECT * FROM compliance_alerts WHERE entity_id = $1`
	if activeOnly {
		query += ` AND active = true`
	}
	query += ` ORDER BY triggered_at DESC`
	err := s.db.SelectContext(ctx, &alerts, query, entityID)
	return alerts, err
}

func (s *Store) AcknowledgeAlert(ctx context.Context, id uuid.UUID, by string) error {
	query := `
		UPDATE compliance_alerts
		SET acknowledged = true, acknowledged_by = $1, acknowledged_at = $2
		WHERE id = $3 AND acknowledged = false
	`
	_, err := s.db.ExecContext(ctx, query, by, time.Now(), id)
	return err
}

// ExpireAlerts deactivates active alerts for a rule once the requirement
// is resolved.
func (s *Store) ExpireAlerts(ctx context.Context, entityID uuid.UUID, ruleCode string) error {
	query := `
		UPDATE compliance_alerts
		SET active = false, expired_at = $1
		WHERE entity_id = $2 AND rule_code = $3 AND active = true
	`
	_, err := s.db.ExecContext(ctx, query, time.Now(), entityID, ruleCode)
	return err
}

// ExpireStaleAlerts deactivates unacknowledged alerts older than maxAge.
// The scheduler runs this as a periodic sweep.
func (s *Store) ExpireStaleAlerts(ctx context.Context, maxAge time.Duration) (int64, error) {
	query := `
		UPDATE compliance_alerts
		SET active = false, expired_at = $1
		WHERE active = true AND acknowledged = false AND triggered_at < $2
	`
	result, err := s.db.ExecContext(ctx, query, time.Now(), time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
