package rules

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/veridian/comply/internal/models"
	"github.com/veridian/comply/internal/penalty"
)

// ValidationError marks a malformed rule definition. Malformed rules are
// rejected at catalog load time and never reach evaluation.
type ValidationError struct {
	RuleCode string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rule %s: invalid %s: %s", e.RuleCode, e.Field, e.Reason)
}

// Store defines the interface for rule persistence.
type Store interface {
	ListActive(ctx context.Context) ([]models.ComplianceRule, error)
	GetByID(ctx context.Context, id string) (*models.ComplianceRule, error)
	GetByCode(ctx context.Context, code string, asOf time.Time) (*models.ComplianceRule, error)
	ListVersions(ctx context.Context, code string) ([]models.ComplianceRule, error)
	Publish(ctx context.Context, rule *models.ComplianceRule) error
}

// Snapshot is an immutable, effective-dated view of the rule catalog, pinned
// at the start of a calculation so a concurrent rule publish never produces a
// half-old/half-new evaluation. Rules are ordered by code.
type Snapshot struct {
	AsOf   time.Time
	Rules  []models.ComplianceRule
	byCode map[string]*models.ComplianceRule
}

// Catalog loads and validates compliance rules.
type Catalog struct {
	store Store
}

func NewCatalog(store Store) *Catalog {
	return &Catalog{store: store}
}

// Load resolves the rule versions effective at asOf and validates them.
// A rule code with more than one effective version is a ValidationError.
func (c *Catalog) Load(ctx context.Context, asOf time.Time) (*Snapshot, error) {
	all, err := c.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading rule catalog: %w", err)
	}

	snap := &Snapshot{
		AsOf:   asOf,
		byCode: make(map[string]*models.ComplianceRule),
	}

	for i := range all {
		rule := all[i]
		if !rule.EffectiveAt(asOf) {
			continue
		}
		if err := Validate(&rule); err != nil {
			return nil, err
		}
		if _, dup := snap.byCode[rule.Code]; dup {
			return nil, &ValidationError{
				RuleCode: rule.Code,
				Field:    "effective_from",
				Reason:   fmt.Sprintf("more than one version effective at %s", asOf.Format("2006-01-02")),
			}
		}
		snap.Rules = append(snap.Rules, rule)
	}

	sort.Slice(snap.Rules, func(i, j int) bool {
		return snap.Rules[i].Code < snap.Rules[j].Code
	})
	for i := range snap.Rules {
		snap.byCode[snap.Rules[i].Code] = &snap.Rules[i]
	}

	return snap, nil
}

// ByCode returns the effective rule version for a code, or nil.
func (s *Snapshot) ByCode(code string) *models.ComplianceRule {
	return s.byCode[code]
}

// Validate checks a rule definition for structural problems.
func Validate(rule *models.ComplianceRule) error {
	if rule.Code == "" {
		return &ValidationError{RuleCode: rule.ID.String(), Field: "code", Reason: "empty"}
	}
	if rule.Criticality < 1 || rule.Criticality > 10 {
		return &ValidationError{RuleCode: rule.Code, Field: "criticality", Reason: "must be between 1 and 10"}
	}
	if rule.AmberThresholdDays < 0 || rule.RedThresholdDays < 0 {
		return &ValidationError{RuleCode: rule.Code, Field: "threshold_days", Reason: "must not be negative"}
	}
	if rule.GraceDays < 0 {
		return &ValidationError{RuleCode: rule.Code, Field: "grace_days", Reason: "must not be negative"}
	}

	switch rule.Frequency {
	case models.FrequencyOneTime, models.FrequencyMonthly, models.FrequencyQuarterly,
		models.FrequencyAnnual, models.FrequencyEventBased:
	default:
		return &ValidationError{RuleCode: rule.Code, Field: "frequency", Reason: fmt.Sprintf("unknown frequency %q", rule.Frequency)}
	}

	switch rule.DueDate.BaseDate {
	case models.BaseDatePeriodEnd, models.BaseDatePeriodStart,
		models.BaseDateIncorporation, models.BaseDateEvent:
	default:
		return &ValidationError{RuleCode: rule.Code, Field: "due_date.base_date", Reason: fmt.Sprintf("unknown base date %q", rule.DueDate.BaseDate)}
	}

	if rule.EffectiveUntil != nil && !rule.EffectiveUntil.After(rule.EffectiveFrom) {
		return &ValidationError{RuleCode: rule.Code, Field: "effective_until", Reason: "must be after effective_from"}
	}

	if tmin, tmax := rule.Applicability.TurnoverMin, rule.Applicability.TurnoverMax; tmin != nil && tmax != nil && tmin.GreaterThan(*tmax) {
		return &ValidationError{RuleCode: rule.Code, Field: "applicability.turnover", Reason: "min exceeds max"}
	}
	if rule.Applicability.StateSpecific && len(rule.Applicability.States) == 0 {
		return &ValidationError{RuleCode: rule.Code, Field: "applicability.states", Reason: "state_specific rule has no states"}
	}

	if err := validatePenalty(rule); err != nil {
		return err
	}
	return nil
}

func validatePenalty(rule *models.ComplianceRule) error {
	spec := rule.Penalty
	switch spec.Type {
	case models.PenaltyPerDay:
		if spec.DailyAmount.IsNegative() {
			return &ValidationError{RuleCode: rule.Code, Field: "penalty.daily_amount", Reason: "must not be negative"}
		}
	case models.PenaltyPercentagePerMonth:
		if spec.InterestRate.IsNegative() {
			return &ValidationError{RuleCode: rule.Code, Field: "penalty.interest_rate", Reason: "must not be negative"}
		}
	case models.PenaltyFixedAmount:
		if spec.FlatAmount.IsNegative() {
			return &ValidationError{RuleCode: rule.Code, Field: "penalty.flat_amount", Reason: "must not be negative"}
		}
	case models.PenaltySlabBased:
		if len(spec.Slabs) == 0 {
			return &ValidationError{RuleCode: rule.Code, Field: "penalty.slabs", Reason: "slab_based penalty has no slabs"}
		}
		prev := -1
		for i, slab := range spec.Slabs {
			if slab.DaysFrom <= prev {
				return &ValidationError{RuleCode: rule.Code, Field: "penalty.slabs", Reason: fmt.Sprintf("slab %d out of order", i)}
			}
			if slab.DaysTo != 0 && slab.DaysTo < slab.DaysFrom {
				return &ValidationError{RuleCode: rule.Code, Field: "penalty.slabs", Reason: fmt.Sprintf("slab %d ends before it starts", i)}
			}
			if i > 0 && slab.Amount.LessThan(spec.Slabs[i-1].Amount) {
				return &ValidationError{RuleCode: rule.Code, Field: "penalty.slabs", Reason: fmt.Sprintf("slab %d amount decreases", i)}
			}
			prev = slab.DaysFrom
		}
	case models.PenaltyFormula:
		if _, err := penalty.ParseFormula(spec.Formula); err != nil {
			return &ValidationError{RuleCode: rule.Code, Field: "penalty.formula", Reason: err.Error()}
		}
	default:
		return &ValidationError{RuleCode: rule.Code, Field: "penalty.type", Reason: fmt.Sprintf("unknown penalty type %q", spec.Type)}
	}

	if spec.MinPenalty != nil && spec.MaxPenalty != nil && spec.MinPenalty.GreaterThan(*spec.MaxPenalty) {
		return &ValidationError{RuleCode: rule.Code, Field: "penalty", Reason: "min_penalty exceeds max_penalty"}
	}
	return nil
}
