package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/veridian/comply/internal/alerts"
	"github.com/veridian/comply/internal/duedate"
	"github.com/veridian/comply/internal/models"
	"github.com/veridian/comply/internal/penalty"
	"github.com/veridian/comply/internal/risk"
	"github.com/veridian/comply/internal/rules"
)

// Store is the persistence surface one recalculation needs.
type Store interface {
	GetEntity(ctx context.Context, id uuid.UUID) (*models.EntityProfile, error)
	GetState(ctx context.Context, entityID uuid.UUID) (*models.ComplianceState, error)
	SaveState(ctx context.Context, state *models.ComplianceState, expectedVersion int64, noiseThreshold float64) error
	AppendCalculationLog(ctx context.Context, log *models.CalculationLog) error
	GetFiling(ctx context.Context, entityID uuid.UUID, ruleCode, periodKey string) (*models.FilingRecord, error)
}

// Options bound one recalculation run.
type Options struct {
	AmberScoreThreshold float64
	NoiseThreshold      float64
	CalcTimeout         time.Duration
}

func (o *Options) applyDefaults() {
	if o.AmberScoreThreshold == 0 {
		o.AmberScoreThreshold = 30
	}
	if o.NoiseThreshold == 0 {
		o.NoiseThreshold = 5.0
	}
	if o.CalcTimeout == 0 {
		o.CalcTimeout = 30 * time.Second
	}
}

// Engine recomputes an entity's full compliance state from scratch on every
// run. It holds no mutable state of its own, so concurrent runs for
// different entities are safe; concurrent runs for the same entity are
// serialized by the state store's version check.
type Engine struct {
	store      Store
	catalog    *rules.Catalog
	calculator *duedate.Calculator
	aggregator *risk.Aggregator
	emitter    *alerts.Emitter
	opts       Options
	log        *slog.Logger
}

func New(store Store, catalog *rules.Catalog, calculator *duedate.Calculator, emitter *alerts.Emitter, opts Options, log *slog.Logger) *Engine {
	opts.applyDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store:      store,
		catalog:    catalog,
		calculator: calculator,
		aggregator: risk.NewAggregator(opts.AmberScoreThreshold),
		emitter:    emitter,
		opts:       opts,
		log:        log,
	}
}

// evaluation carries the per-rule intermediate results between passes.
type evaluation struct {
	rule   *models.ComplianceRule
	dates  *duedate.Result
	filing *models.FilingRecord
}

// Recalculate derives the entity's compliance state as of asOf and saves it.
// The rule catalog is pinned once at the start; individual rule failures are
// isolated (the rule is dropped and the run marked degraded) rather than
// failing the whole run. A calculation log row is appended whether or not
// the state save succeeds.
func (e *Engine) Recalculate(ctx context.Context, entityID uuid.UUID, asOf time.Time, trigger models.CalculationTrigger) (*models.ComplianceState, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.CalcTimeout)
	defer cancel()

	started := time.Now()
	calcLog := &models.CalculationLog{
		EntityID:  entityID,
		Trigger:   trigger,
		StartedAt: started,
	}

	state, err := e.recalculate(ctx, entityID, asOf, calcLog)

	calcLog.DurationMS = time.Since(started).Milliseconds()
	if err != nil {
		calcLog.Status = models.CalculationFailed
		calcLog.ErrorCount++
		calcLog.Errors = append(calcLog.Errors, err.Error())
	} else {
		calcLog.Status = models.CalculationSucceeded
	}

	// The audit row outlives the state transaction: append on a fresh
	// context so a timed-out run still leaves its trace.
	logCtx, logCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer logCancel()
	if logErr := e.store.AppendCalculationLog(logCtx, calcLog); logErr != nil {
		e.log.Error("appending calculation log", "entity_id", entityID, "error", logErr)
	}

	return state, err
}

func (e *Engine) recalculate(ctx context.Context, entityID uuid.UUID, asOf time.Time, calcLog *models.CalculationLog) (*models.ComplianceState, error) {
	profile, err := e.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("loading entity profile: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("entity %s not found", entityID)
	}

	prev, err := e.store.GetState(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("loading previous state: %w", err)
	}
	var expectedVersion int64
	if prev != nil {
		expectedVersion = prev.CalcVersion
		calcLog.PreviousState = prev.OverallState
	}

	snap, err := e.catalog.Load(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("pinning rule catalog: %w", err)
	}
	calcLog.RulesEvaluated = len(snap.Rules)

	// First pass computes due dates and filings for every catalog rule so
	// dependency satisfaction is known before matching.
	evals := make(map[string]*evaluation, len(snap.Rules))
	depSatisfied := make(map[string]bool, len(snap.Rules))
	dateErrors := make(map[string]error)
	for i := range snap.Rules {
		rule := &snap.Rules[i]

		dates, derr := e.calculator.Calculate(rule, profile, asOf)
		if derr != nil {
			dateErrors[rule.Code] = derr
			continue
		}

		filing, ferr := e.store.GetFiling(ctx, entityID, rule.Code, dates.Period.Key)
		if ferr != nil {
			return nil, fmt.Errorf("loading filing for %s: %w", rule.Code, ferr)
		}

		evals[rule.Code] = &evaluation{rule: rule, dates: dates, filing: filing}
		depSatisfied[rule.Code] = filing != nil
	}

	match := rules.Match(profile, snap, depSatisfied)
	calcLog.RulesApplicable = len(match.Applicable)

	degraded := false
	var reqs []models.RequirementState
	skipped := len(match.Skipped)

	for i := range match.Applicable {
		rule := &match.Applicable[i]

		ev := evals[rule.Code]
		if ev == nil {
			derr := dateErrors[rule.Code]
			if errors.Is(derr, duedate.ErrMissingIncorporationDate) || errors.Is(derr, duedate.ErrMissingTriggerDate) {
				calcLog.WarningCount++
				skipped++
			} else {
				degraded = true
				calcLog.ErrorCount++
				calcLog.Errors = append(calcLog.Errors, fmt.Sprintf("%s: %v", rule.Code, derr))
			}
			continue
		}

		status, daysUntilDue, overdueDays := risk.DeriveStatus(rule, ev.filing, ev.dates.DueDate, ev.dates.BreachDate, asOf)

		var breakdown models.PenaltyBreakdown
		if overdueDays > 0 {
			breakdown, err = penalty.Calculate(&rule.Penalty, overdueDays)
			if err != nil {
				degraded = true
				calcLog.ErrorCount++
				calcLog.Errors = append(calcLog.Errors, fmt.Sprintf("%s: %v", rule.Code, err))
				continue
			}
		}

		reqs = append(reqs, models.RequirementState{
			RuleID:       rule.ID,
			RuleCode:     rule.Code,
			RuleName:     rule.Name,
			Domain:       rule.Domain,
			PeriodKey:    ev.dates.Period.Key,
			DueDate:      ev.dates.DueDate,
			BreachDate:   ev.dates.BreachDate,
			Status:       status,
			DaysUntilDue: daysUntilDue,
			OverdueDays:  overdueDays,
			Criticality:  rule.Criticality,
			Penalty:      breakdown,
		})
	}

	for _, sk := range match.Skipped {
		calcLog.WarningCount++
		calcLog.Errors = append(calcLog.Errors, fmt.Sprintf("%s: missing %s", sk.RuleCode, sk.MissingField))
	}

	summary := e.aggregator.Aggregate(reqs)

	state := &models.ComplianceState{
		EntityID:             entityID,
		OverallState:         summary.OverallState,
		RiskScore:            summary.RiskScore,
		TotalPenaltyExposure: summary.TotalPenaltyExposure,
		OverdueCount:         summary.OverdueCount,
		UpcomingCount:        summary.UpcomingCount,
		NextDeadline:         summary.NextDeadline,
		NextAction:           summary.NextAction,
		DomainStates:         summary.DomainStates,
		Requirements:         reqs,
		DataCompleteness:     completeness(len(reqs), skipped),
		Degraded:             degraded,
		CalculatedAt:         time.Now(),
	}
	calcLog.NewState = state.OverallState
	calcLog.RiskScore = state.RiskScore
	calcLog.DataCompleteness = state.DataCompleteness

	if err := e.store.SaveState(ctx, state, expectedVersion, e.opts.NoiseThreshold); err != nil {
		return nil, fmt.Errorf("saving compliance state: %w", err)
	}

	if e.emitter != nil {
		e.emitter.Emit(ctx, prev, state)
	}

	e.log.Info("compliance state recalculated",
		"entity_id", entityID,
		"overall_state", state.OverallState,
		"risk_score", state.RiskScore,
		"overdue", state.OverdueCount,
		"degraded", state.Degraded,
		"trigger", calcLog.Trigger,
	)

	return state, nil
}

// completeness is the fraction of evaluable requirements out of those the
// entity should have been assessed against.
func completeness(evaluated, skipped int) float64 {
	total := evaluated + skipped
	if total == 0 {
		return 1.0
	}
	return float64(evaluated) / float64(total)
}
