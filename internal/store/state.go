package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/veridian/comply/internal/models"
)

// ErrConflict means the entity's state row was replaced by a newer
// calculation between read and write. The stale result must be discarded.
var ErrConflict = errors.New("compliance state was updated concurrently")

func (s *Store) GetState(ctx context.Context, entityID uuid.UUID) (*models.ComplianceState, error) {
	var state models.ComplianceState
	query := `SELECT * FROM compliance_states WHERE entity_id = $1`
	err := s.db.GetContext(ctx, &state, query, entityID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &state, err
}

// SaveState replaces the entity's current-state row. expectedVersion is the
// calc_version read at the start of the calculation; a mismatch aborts with
// ErrConflict and writes nothing. A history snapshot is appended in the same
// transaction when the overall state changed or the risk score moved by more
// than noiseThreshold points.
func (s *Store) SaveState(ctx context.Context, state *models.ComplianceState, expectedVersion int64, noiseThreshold float64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning state save: %w", err)
	}
	defer tx.Rollback()

	var prev models.ComplianceState
	havePrev := true
	err = tx.GetContext(ctx, &prev,
		`SELECT * FROM compliance_states WHERE entity_id = $1 FOR UPDATE`, state.EntityID)
	if err == sql.ErrNoRows {
		havePrev = false
	} else if err != nil {
		return fmt.Errorf("locking state row: %w", err)
	}

	if havePrev && prev.CalcVersion != expectedVersion {
		return ErrConflict
	}
	state.CalcVersion = expectedVersion + 1

	upsert := `
		INSERT INTO compliance_states (
			entity_id, overall_state, risk_score, total_penalty_exposure,
			overdue_count, upcoming_count, next_deadline, next_action,
			domain_states, requirements, data_completeness, degraded,
			calc_version, calculated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (entity_id) DO UPDATE SET
			overall_state = EXCLUDED.overall_state,
			risk_score = EXCLUDED.risk_score,
			total_penalty_exposure = EXCLUDED.total_penalty_exposure,
			overdue_count = EXCLUDED.overdue_count,
			upcoming_count = EXCLUDED.upcoming_count,
			next_deadline = EXCLUDED.next_deadline,
			next_action = EXCLUDED.next_action,
			domain_states = EXCLUDED.domain_states,
			requirements = EXCLUDED.requirements,
			data_completeness = EXCLUDED.data_completeness,
			degraded = EXCLUDED.degraded,
			calc_version = EXCLUDED.calc_version,
			calculated_at = EXCLUDED.calculated_at
	`
	_, err = tx.ExecContext(ctx, upsert,
		state.EntityID,
		state.OverallState,
		state.RiskScore,
		state.TotalPenaltyExposure,
		state.OverdueCount,
		state.UpcomingCount,
		state.NextDeadline,
		state.NextAction,
		state.DomainStates,
		state.Requirements,
		state.DataCompleteness,
		state.Degraded,
		state.CalcVersion,
		state.CalculatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting compliance state: %w", err)
	}

	if reason := changeReason(havePrev, &prev, state, noiseThreshold); reason != "" {
		history := `
			INSERT INTO compliance_state_history (
				id, entity_id, overall_state, risk_score, total_penalty_exposure,
				overdue_count, domain_states, change_reason, calc_version, recorded_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		_, err = tx.ExecContext(ctx, history,
			uuid.New(),
			state.EntityID,
			state.OverallState,
			state.RiskScore,
			state.TotalPenaltyExposure,
			state.OverdueCount,
			state.DomainStates,
			reason,
			state.CalcVersion,
			time.Now(),
		)
		if err != nil {
			return fmt.Errorf("appending state history: %w", err)
		}
	}

	return tx.Commit()
}

// changeReason decides whether the new state warrants a history snapshot,
// and why. Empty means no snapshot: score jitter inside the noise threshold
// does not pollute the history.
func changeReason(havePrev bool, prev, next *models.ComplianceState, noiseThreshold float64) string {
	if !havePrev {
		return "initial calculation"
	}
	if prev.OverallState != next.OverallState {
		return fmt.Sprintf("state changed %s -> %s", prev.OverallState, next.OverallState)
	}
	if delta := math.Abs(next.RiskScore - prev.RiskScore); delta > noiseThreshold {
		return fmt.Sprintf("risk score moved %.2f -> %.2f", prev.RiskScore, next.RiskScore)
	}
	return ""
}

// ListStateHistory returns an entity's history snapshots, newest first.
func (s *Store) ListStateHistory(ctx context.Context, entityID uuid.UUID, limit int) ([]models.ComplianceStateHistory, error) {
	if limit <= 0 {
		limit = 50
	}
	var history []models.ComplianceStateHistory
	query := `
		SELECT * FROM compliance_state_history
		WHERE entity_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`
	err := s.db.SelectContext(ctx, &history, query, entityID, limit)
	return history, err
}

// AppendCalculationLog records one calculation attempt. It runs outside the
// state transaction so the audit row survives a conflicting or failed save.
func (s *Store) AppendCalculationLog(ctx context.Context, log *models.CalculationLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	query := `
		INSERT INTO calculation_logs (
			id, entity_id, trigger, status, rules_evaluated, rules_applicable,
			error_count, warning_count, errors, previous_state, new_state,
			risk_score, data_completeness, started_at, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := s.db.ExecContext(ctx, query,
		log.ID,
		log.EntityID,
		log.Trigger,
		log.Status,
		log.RulesEvaluated,
		log.RulesApplicable,
		log.ErrorCount,
		log.WarningCount,
		log.Errors,
		log.PreviousState,
		log.NewState,
		log.RiskScore,
		log.DataCompleteness,
		log.StartedAt,
		log.DurationMS,
	)
	return err
}

// ListCalculationLogs returns an entity's calculation audit rows, newest
// first.
func (s *Store) ListCalculationLogs(ctx context.Context, entityID uuid.UUID, limit int) ([]models.CalculationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []models.CalculationLog
	query := `
		SELECT * FROM calculation_logs
		WHERE entity_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`
	err := s.db.SelectContext(ctx, &logs, query, entityID, limit)
	return logs, err
}
