package rules

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/veridian/comply/internal/models"
)

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]models.ComplianceRule, error) {
	var rules []models.ComplianceRule
	query := `SELECT * FROM compliance_rules WHERE active = true ORDER BY code, effective_from`
	err := s.db.SelectContext(ctx, &rules, query)
	return rules, err
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*models.ComplianceRule, error) {
	var rule models.ComplianceRule
	query := `SELECT * FROM compliance_rules WHERE id = $1`
	err := s.db.GetContext(ctx, &rule, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &rule, err
}

// GetByCode resolves the rule version effective at asOf.
func (s *PostgresStore) GetByCode(ctx context.Context, code string, asOf time.Time) (*models.ComplianceRule, error) {
	var rule models.ComplianceRule
	query := `
		SELECT * FROM compliance_rules
		WHERE code = $1 AND active = true
		  AND effective_from <= $2
		  AND (effective_until IS NULL OR effective_until > $2)
		ORDER BY effective_from DESC
		LIMIT 1
	`
	err := s.db.GetContext(ctx, &rule, query, code, asOf)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &rule, err
}

// ListVersions returns the full version chain for a rule code, oldest first.
func (s *PostgresStore) ListVersions(ctx context.Context, code string) ([]models.ComplianceRule, error) {
	var rules []models.ComplianceRule
	query := `SELECT * FROM compliance_rules WHERE code = $1 ORDER BY effective_from ASC`
	err := s.db.SelectContext(ctx, &rules, query, code)
	return rules, err
}

// Publish inserts a new rule version. When the rule replaces an earlier
// version, the replaced row is closed at the new version's effective date in
// the same transaction; it is never mutated beyond that.
func (s *PostgresStore) Publish(ctx context.Context, rule *models.ComplianceRule) error {
	if err := Validate(rule); err != nil {
		return err
	}

	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	rule.Active = true

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning rule publish: %w", err)
	}
	defer tx.Rollback()

	if rule.ReplacesRuleID != nil {
		closeQuery := `
			UPDATE compliance_rules
			SET effective_until = $1, updated_at = $2
			WHERE id = $3 AND (effective_until IS NULL OR effective_until > $1)
		`
		if _, err := tx.ExecContext(ctx, closeQuery, rule.EffectiveFrom, now, *rule.ReplacesRuleID); err != nil {
			return fmt.Errorf("closing replaced rule version: %w", err)
		}
	}

	insertQuery := `
		INSERT INTO compliance_rules (
			id, code, name, description, domain, frequency, applicability, due_date,
			grace_days, penalty, criticality, amber_threshold_days, red_threshold_days,
			depends_on_rules, active, effective_from, effective_until, replaces_rule_id,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)
	`
	_, err = tx.ExecContext(ctx, insertQuery,
		rule.ID, rule.Code, rule.Name, rule.Description, rule.Domain, rule.Frequency,
		rule.Applicability, rule.DueDate, rule.GraceDays, rule.Penalty, rule.Criticality,
		rule.AmberThresholdDays, rule.RedThresholdDays, rule.DependsOnRules, rule.Active,
		rule.EffectiveFrom, rule.EffectiveUntil, rule.ReplacesRuleID, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting rule version: %w", err)
	}

	return tx.Commit()
}
