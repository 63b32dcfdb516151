package alerts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/veridian/comply/internal/models"
)

// Store is the alert persistence the emitter needs.
type Store interface {
	CreateAlert(ctx context.Context, alert *models.ComplianceAlert) error
	FindActiveAlert(ctx context.Context, entityID uuid.UUID, ruleCode string, alertType models.AlertType) (*models.ComplianceAlert, error)
	ExpireAlerts(ctx context.Context, entityID uuid.UUID, ruleCode string) error
}

// Emitter diffs consecutive compliance states and raises alerts on the
// transitions. Emission is deduplicated: an active unacknowledged alert for
// the same (entity, rule, type) suppresses a repeat.
type Emitter struct {
	store Store
	log   *slog.Logger

	// A penalty increase is material when it exceeds both the ratio of the
	// previous exposure and the absolute floor.
	materialityRatio decimal.Decimal
	materialityFloor decimal.Decimal
}

func NewEmitter(store Store, ratio, floor decimal.Decimal, log *slog.Logger) *Emitter {
	if log == nil {
		log = slog.Default()
	}
	return &Emitter{
		store:            store,
		log:              log,
		materialityRatio: ratio,
		materialityFloor: floor,
	}
}

// Emit compares the previous state against the freshly saved one and raises
// the transition alerts. prev is nil on an entity's first calculation.
// Persistence errors are logged and swallowed: a failed alert write must not
// fail the calculation that produced the state.
func (e *Emitter) Emit(ctx context.Context, prev, next *models.ComplianceState) {
	prevReqs := make(map[string]*models.RequirementState)
	if prev != nil {
		for i := range prev.Requirements {
			prevReqs[prev.Requirements[i].RuleCode] = &prev.Requirements[i]
		}
	}

	for i := range next.Requirements {
		req := &next.Requirements[i]
		before := prevReqs[req.RuleCode]

		if req.Status == models.RequirementCompliant || req.Status == models.RequirementWaived {
			if err := e.store.ExpireAlerts(ctx, next.EntityID, req.RuleCode); err != nil {
				e.log.Error("expiring alerts", "entity_id", next.EntityID, "rule", req.RuleCode, "error", err)
			}
			continue
		}

		if enteredAmberWindow(before, req) {
			e.raise(ctx, next.EntityID, req, models.AlertUpcoming, models.AlertSeverityWarning,
				fmt.Sprintf("%s (%s) is due on %s", req.RuleName, req.RuleCode, req.DueDate.Format("2006-01-02")))
		}

		if crossedBreach(before, req) {
			e.raise(ctx, next.EntityID, req, models.AlertOverdue, models.SeverityForStatus(req.Status),
				fmt.Sprintf("%s (%s) is %d days overdue", req.RuleName, req.RuleCode, req.OverdueDays))
		}

		if e.penaltyMaterial(before, req) {
			e.raise(ctx, next.EntityID, req, models.AlertPenaltyRisk, models.AlertSeverityWarning,
				fmt.Sprintf("penalty exposure for %s (%s) reached %s", req.RuleName, req.RuleCode, req.Penalty.Total))
		}
	}

	if prev != nil && prev.OverallState != next.OverallState {
		severity := models.AlertSeverityInfo
		switch next.OverallState {
		case models.StateRed:
			severity = models.AlertSeverityCritical
		case models.StateAmber:
			severity = models.AlertSeverityWarning
		}
		e.raise(ctx, next.EntityID, nil, models.AlertStateChange, severity,
			fmt.Sprintf("compliance state changed from %s to %s", prev.OverallState, next.OverallState))
	}
}

func (e *Emitter) raise(ctx context.Context, entityID uuid.UUID, req *models.RequirementState, alertType models.AlertType, severity models.AlertSeverity, message string) {
	ruleCode := ""
	var ruleID *uuid.UUID
	if req != nil {
		ruleCode = req.RuleCode
		id := req.RuleID
		ruleID = &id
	}

	existing, err := e.store.FindActiveAlert(ctx, entityID, ruleCode, alertType)
	if err != nil {
		e.log.Error("checking alert dedupe", "entity_id", entityID, "rule", ruleCode, "type", alertType, "error", err)
		return
	}
	if existing != nil {
		return
	}

	alert := &models.ComplianceAlert{
		EntityID: entityID,
		RuleID:   ruleID,
		RuleCode: ruleCode,
		Type:     alertType,
		Severity: severity,
		Message:  message,
	}
	if err := e.store.CreateAlert(ctx, alert); err != nil {
		e.log.Error("creating alert", "entity_id", entityID, "rule", ruleCode, "type", alertType, "error", err)
		return
	}
	e.log.Info("alert raised", "entity_id", entityID, "rule", ruleCode, "type", alertType, "severity", severity)
}

// enteredAmberWindow reports the UPCOMING transition: the requirement is in
// the pre-breach amber window and was not there before.
func enteredAmberWindow(before, now *models.RequirementState) bool {
	if now.Status != models.RequirementAmber || now.OverdueDays > 0 {
		return false
	}
	if before == nil {
		return true
	}
	return before.Status == models.RequirementUpcoming || before.Status == models.RequirementCompliant
}

// crossedBreach reports the OVERDUE transition: the breach date passed since
// the previous calculation.
func crossedBreach(before, now *models.RequirementState) bool {
	if now.OverdueDays <= 0 {
		return false
	}
	return before == nil || before.OverdueDays <= 0
}

// penaltyMaterial reports whether the exposure grew enough to warrant a
// PENALTY_RISK alert, filtering daily per-day accrual noise.
func (e *Emitter) penaltyMaterial(before, now *models.RequirementState) bool {
	if now.Penalty.Total.IsZero() {
		return false
	}

	prevTotal := decimal.Zero
	if before != nil {
		prevTotal = before.Penalty.Total
	}
	delta := now.Penalty.Total.Sub(prevTotal)
	if delta.LessThan(e.materialityFloor) {
		return false
	}
	if prevTotal.IsZero() {
		return true
	}
	return delta.Div(prevTotal).GreaterThanOrEqual(e.materialityRatio)
}
