package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// StringArray is an alias for pq.StringArray to handle PostgreSQL arrays
type StringArray = pq.StringArray

type Domain string

const (
	DomainCorporate Domain = "CORPORATE"
	DomainTaxGST    Domain = "TAX_GST"
	DomainTaxIncome Domain = "TAX_INCOME"
	DomainLabour    Domain = "LABOUR"
	DomainFEMA      Domain = "FEMA"
	DomainLicenses  Domain = "LICENSES"
	DomainStatutory Domain = "STATUTORY"
)

type Frequency string

const (
	FrequencyOneTime    Frequency = "ONE_TIME"
	FrequencyMonthly    Frequency = "MONTHLY"
	FrequencyQuarterly  Frequency = "QUARTERLY"
	FrequencyAnnual     Frequency = "ANNUAL"
	FrequencyEventBased Frequency = "EVENT_BASED"
)

type BaseDateType string

const (
	BaseDatePeriodEnd     BaseDateType = "PERIOD_END"
	BaseDatePeriodStart   BaseDateType = "PERIOD_START"
	BaseDateIncorporation BaseDateType = "INCORPORATION_DATE"
	BaseDateEvent         BaseDateType = "EVENT_DATE"
)

type DateAdjustment string

const (
	AdjustNone           DateAdjustment = "NONE"
	AdjustNextWorkingDay DateAdjustment = "NEXT_WORKING_DAY"
)

type PenaltyType string

const (
	PenaltyPerDay             PenaltyType = "per_day"
	PenaltyPercentagePerMonth PenaltyType = "percentage_per_month"
	PenaltyFixedAmount        PenaltyType = "fixed_amount"
	PenaltySlabBased          PenaltyType = "slab_based"
	PenaltyFormula            PenaltyType = "formula"
)

type OverallState string

const (
	StateGreen OverallState = "GREEN"
	StateAmber OverallState = "AMBER"
	StateRed   OverallState = "RED"
)

type RequirementStatus string

const (
	RequirementCompliant RequirementStatus = "COMPLIANT"
	RequirementWaived    RequirementStatus = "WAIVED"
	RequirementUpcoming  RequirementStatus = "UPCOMING"
	RequirementAmber     RequirementStatus = "AMBER"
	RequirementRed       RequirementStatus = "RED"
)

type AlertType string

const (
	AlertUpcoming    AlertType = "UPCOMING"
	AlertOverdue     AlertType = "OVERDUE"
	AlertPenaltyRisk AlertType = "PENALTY_RISK"
	AlertStateChange AlertType = "STATE_CHANGE"
)

type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "INFO"
	AlertSeverityWarning  AlertSeverity = "WARNING"
	AlertSeverityCritical AlertSeverity = "CRITICAL"
)

// CalculationTrigger records what caused a recalculation.
type CalculationTrigger string

const (
	TriggerScheduled     CalculationTrigger = "scheduled"
	TriggerProfileChange CalculationTrigger = "profile_change"
	TriggerRulePublish   CalculationTrigger = "rule_publish"
	TriggerFiling        CalculationTrigger = "filing"
	TriggerManual        CalculationTrigger = "manual"
)

type CalculationStatus string

const (
	CalculationSucceeded CalculationStatus = "succeeded"
	CalculationFailed    CalculationStatus = "failed"
)

type FilingStatus string

const (
	FilingFiled  FilingStatus = "filed"
	FilingWaived FilingStatus = "waived"
)

// JSONB is a generic json column. The criteria/spec columns below get their
// own typed Value/Scan so they are validated once at catalog load rather than
// interpreted as opaque blobs at evaluation time.
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	return scanJSON(value, j)
}

func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, dest)
}

// ApplicabilityCriteria selects which entities a rule applies to. Unset
// bounds are unbounded; an empty EntityTypes list matches every type.
type ApplicabilityCriteria struct {
	EntityTypes   []string         `json:"entity_types,omitempty"`
	TurnoverMin   *decimal.Decimal `json:"turnover_min,omitempty"`
	TurnoverMax   *decimal.Decimal `json:"turnover_max,omitempty"`
	MinEmployees  *int             `json:"min_employees,omitempty"`
	RequiresGST   bool             `json:"requires_gst,omitempty"`
	RequiresPF    bool             `json:"requires_pf,omitempty"`
	RequiresESI   bool             `json:"requires_esi,omitempty"`
	StateSpecific bool             `json:"state_specific,omitempty"`
	States        []string         `json:"states,omitempty"`
}

func (c ApplicabilityCriteria) Value() (driver.Value, error)  { return json.Marshal(c) }
func (c *ApplicabilityCriteria) Scan(value interface{}) error { return scanJSON(value, c) }

// DueDateSpec is the due-date formula: a base date plus month/day offsets,
// then an optional working-day adjustment.
type DueDateSpec struct {
	BaseDate     BaseDateType   `json:"base_date"`
	OffsetMonths int            `json:"offset_months,omitempty"`
	OffsetDays   int            `json:"offset_days,omitempty"`
	Adjustment   DateAdjustment `json:"adjustment,omitempty"`
}

func (d DueDateSpec) Value() (driver.Value, error)  { return json.Marshal(d) }
func (d *DueDateSpec) Scan(value interface{}) error { return scanJSON(value, d) }

type PenaltySlab struct {
	DaysFrom int             `json:"days_from"`
	DaysTo   int             `json:"days_to"` // 0 = open-ended
	Amount   decimal.Decimal `json:"amount"`
}

// PenaltySpec describes how penalty and interest accrue once a requirement
// is breached.
type PenaltySpec struct {
	Type         PenaltyType      `json:"type"`
	DailyAmount  decimal.Decimal  `json:"daily_amount,omitempty"`
	FlatAmount   decimal.Decimal  `json:"flat_amount,omitempty"`
	BaseAmount   decimal.Decimal  `json:"base_amount,omitempty"`
	InterestRate decimal.Decimal  `json:"interest_rate,omitempty"` // percent per month
	Compounding  bool             `json:"compounding,omitempty"`
	Slabs        []PenaltySlab    `json:"slabs,omitempty"`
	Formula      string           `json:"formula,omitempty"`
	MinPenalty   *decimal.Decimal `json:"min_penalty,omitempty"`
	MaxPenalty   *decimal.Decimal `json:"max_penalty,omitempty"`
}

func (p PenaltySpec) Value() (driver.Value, error)  { return json.Marshal(p) }
func (p *PenaltySpec) Scan(value interface{}) error { return scanJSON(value, p) }

// ComplianceRule is one effective-dated version of a regulatory obligation.
// Edits never mutate a row: publishing a change inserts a new row whose
// ReplacesRuleID points at the superseded version, so past evaluations keep
// resolving against the version effective at their evaluation date.
type ComplianceRule struct {
	ID                 uuid.UUID             `json:"id" db:"id"`
	Code               string                `json:"code" db:"code"`
	Name               string                `json:"name" db:"name"`
	Description        string                `json:"description,omitempty" db:"description"`
	Domain             Domain                `json:"domain" db:"domain"`
	Frequency          Frequency             `json:"frequency" db:"frequency"`
	Applicability      ApplicabilityCriteria `json:"applicability" db:"applicability"`
	DueDate            DueDateSpec           `json:"due_date" db:"due_date"`
	GraceDays          int                   `json:"grace_days" db:"grace_days"`
	Penalty            PenaltySpec           `json:"penalty" db:"penalty"`
	Criticality        int                   `json:"criticality" db:"criticality"`
	AmberThresholdDays int                   `json:"amber_threshold_days" db:"amber_threshold_days"`
	RedThresholdDays   int                   `json:"red_threshold_days" db:"red_threshold_days"`
	DependsOnRules     StringArray           `json:"depends_on_rules,omitempty" db:"depends_on_rules"`
	Active             bool                  `json:"active" db:"active"`
	EffectiveFrom      time.Time             `json:"effective_from" db:"effective_from"`
	EffectiveUntil     *time.Time            `json:"effective_until,omitempty" db:"effective_until"`
	ReplacesRuleID     *uuid.UUID            `json:"replaces_rule_id,omitempty" db:"replaces_rule_id"`
	CreatedAt          time.Time             `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at" db:"updated_at"`
}

// EffectiveAt reports whether this rule version governs evaluations at t.
func (r *ComplianceRule) EffectiveAt(t time.Time) bool {
	if t.Before(r.EffectiveFrom) {
		return false
	}
	if r.EffectiveUntil != nil && !t.Before(*r.EffectiveUntil) {
		return false
	}
	return true
}

// TriggerDates maps rule code to the entity-specific event date consumed by
// EVENT_BASED rules.
type TriggerDates map[string]time.Time

func (t TriggerDates) Value() (driver.Value, error) {
	if t == nil {
		return nil, nil
	}
	return json.Marshal(t)
}

func (t *TriggerDates) Scan(value interface{}) error { return scanJSON(value, t) }

// EntityProfile is the engine's view of a registered business, supplied by
// the entity profile provider. Optional fields are pointers: nil means the
// data is missing, which skips rules that need it and lowers the
// data-completeness score instead of failing the calculation.
type EntityProfile struct {
	ID                uuid.UUID        `json:"id" db:"id"`
	Name              string           `json:"name" db:"name"`
	EntityType        string           `json:"entity_type" db:"entity_type"`
	State             string           `json:"state,omitempty" db:"state"`
	AnnualTurnover    *decimal.Decimal `json:"annual_turnover,omitempty" db:"annual_turnover"`
	EmployeeCount     *int             `json:"employee_count,omitempty" db:"employee_count"`
	GSTRegistered     bool             `json:"gst_registered" db:"gst_registered"`
	PFRegistered      bool             `json:"pf_registered" db:"pf_registered"`
	ESIRegistered     bool             `json:"esi_registered" db:"esi_registered"`
	IncorporationDate *time.Time       `json:"incorporation_date,omitempty" db:"incorporation_date"`
	TriggerDates      TriggerDates     `json:"trigger_dates,omitempty" db:"trigger_dates"`
	Active            bool             `json:"active" db:"active"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at" db:"updated_at"`
}

// FilingRecord is the external completion signal: one (rule, period)
// obligation fulfilled or waived for an entity.
type FilingRecord struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	EntityID  uuid.UUID    `json:"entity_id" db:"entity_id"`
	RuleCode  string       `json:"rule_code" db:"rule_code"`
	PeriodKey string       `json:"period_key" db:"period_key"`
	Status    FilingStatus `json:"status" db:"status"`
	Reference string       `json:"reference,omitempty" db:"reference"`
	FiledAt   time.Time    `json:"filed_at" db:"filed_at"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// PenaltyBreakdown splits a computed exposure for audit display.
type PenaltyBreakdown struct {
	Total     decimal.Decimal `json:"total"`
	Principal decimal.Decimal `json:"principal"`
	Penalty   decimal.Decimal `json:"penalty"`
	Interest  decimal.Decimal `json:"interest"`
}

// RequirementState is the evaluated state of one (rule, period) obligation.
type RequirementState struct {
	RuleID       uuid.UUID         `json:"rule_id"`
	RuleCode     string            `json:"rule_code"`
	RuleName     string            `json:"rule_name"`
	Domain       Domain            `json:"domain"`
	PeriodKey    string            `json:"period_key"`
	DueDate      time.Time         `json:"due_date"`
	BreachDate   time.Time         `json:"breach_date"`
	Status       RequirementStatus `json:"status"`
	DaysUntilDue int               `json:"days_until_due"`
	OverdueDays  int               `json:"overdue_days"`
	Criticality  int               `json:"criticality"`
	Penalty      PenaltyBreakdown  `json:"penalty"`
}

type RequirementStates []RequirementState

func (r RequirementStates) Value() (driver.Value, error)  { return json.Marshal(r) }
func (r *RequirementStates) Scan(value interface{}) error { return scanJSON(value, r) }

type DomainStates map[Domain]OverallState

func (d DomainStates) Value() (driver.Value, error)  { return json.Marshal(d) }
func (d *DomainStates) Scan(value interface{}) error { return scanJSON(value, d) }

// ComplianceState is the single current-state row per entity. It is replaced
// whole by the state store, never partially updated.
type ComplianceState struct {
	EntityID             uuid.UUID         `json:"entity_id" db:"entity_id"`
	OverallState         OverallState      `json:"overall_state" db:"overall_state"`
	RiskScore            float64           `json:"risk_score" db:"risk_score"`
	TotalPenaltyExposure decimal.Decimal   `json:"total_penalty_exposure" db:"total_penalty_exposure"`
	OverdueCount         int               `json:"overdue_count" db:"overdue_count"`
	UpcomingCount        int               `json:"upcoming_count" db:"upcoming_count"`
	NextDeadline         *time.Time        `json:"next_deadline,omitempty" db:"next_deadline"`
	NextAction           string            `json:"next_action,omitempty" db:"next_action"`
	DomainStates         DomainStates      `json:"domain_states" db:"domain_states"`
	Requirements         RequirementStates `json:"requirements" db:"requirements"`
	DataCompleteness     float64           `json:"data_completeness" db:"data_completeness"`
	Degraded             bool              `json:"degraded" db:"degraded"`
	CalcVersion          int64             `json:"calc_version" db:"calc_version"`
	CalculatedAt         time.Time         `json:"calculated_at" db:"calculated_at"`
}

// ComplianceStateHistory is an append-only snapshot written only when the
// state changed materially. Immutable once written.
type ComplianceStateHistory struct {
	ID                   uuid.UUID       `json:"id" db:"id"`
	EntityID             uuid.UUID       `json:"entity_id" db:"entity_id"`
	OverallState         OverallState    `json:"overall_state" db:"overall_state"`
	RiskScore            float64         `json:"risk_score" db:"risk_score"`
	TotalPenaltyExposure decimal.Decimal `json:"total_penalty_exposure" db:"total_penalty_exposure"`
	OverdueCount         int             `json:"overdue_count" db:"overdue_count"`
	DomainStates         DomainStates    `json:"domain_states" db:"domain_states"`
	ChangeReason         string          `json:"change_reason" db:"change_reason"`
	CalcVersion          int64           `json:"calc_version" db:"calc_version"`
	RecordedAt           time.Time       `json:"recorded_at" db:"recorded_at"`
}

type ComplianceAlert struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	EntityID       uuid.UUID     `json:"entity_id" db:"entity_id"`
	RuleID         *uuid.UUID    `json:"rule_id,omitempty" db:"rule_id"`
	RuleCode       string        `json:"rule_code,omitempty" db:"rule_code"`
	Type           AlertType     `json:"type" db:"type"`
	Severity       AlertSeverity `json:"severity" db:"severity"`
	Message        string        `json:"message" db:"message"`
	Active         bool          `json:"active" db:"active"`
	Acknowledged   bool          `json:"acknowledged" db:"acknowledged"`
	AcknowledgedBy string        `json:"acknowledged_by,omitempty" db:"acknowledged_by"`
	AcknowledgedAt *time.Time    `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	TriggeredAt    time.Time     `json:"triggered_at" db:"triggered_at"`
	ExpiredAt      *time.Time    `json:"expired_at,omitempty" db:"expired_at"`
}

// CalculationLog is the append-only audit row, one per calculation attempt,
// written whether or not the state upsert succeeded.
type CalculationLog struct {
	ID               uuid.UUID          `json:"id" db:"id"`
	EntityID         uuid.UUID          `json:"entity_id" db:"entity_id"`
	Trigger          CalculationTrigger `json:"trigger" db:"trigger"`
	Status           CalculationStatus  `json:"status" db:"status"`
	RulesEvaluated   int                `json:"rules_evaluated" db:"rules_evaluated"`
	RulesApplicable  int                `json:"rules_applicable" db:"rules_applicable"`
	ErrorCount       int                `json:"error_count" db:"error_count"`
	WarningCount     int                `json:"warning_count" db:"warning_count"`
	Errors           StringArray        `json:"errors,omitempty" db:"errors"`
	PreviousState    OverallState       `json:"previous_state,omitempty" db:"previous_state"`
	NewState         OverallState       `json:"new_state,omitempty" db:"new_state"`
	RiskScore        float64            `json:"risk_score" db:"risk_score"`
	DataCompleteness float64            `json:"data_completeness" db:"data_completeness"`
	StartedAt        time.Time          `json:"started_at" db:"started_at"`
	DurationMS       int64              `json:"duration_ms" db:"duration_ms"`
}

// SeverityForStatus maps a requirement status to the severity used when
// alerting on it.
func SeverityForStatus(status RequirementStatus) AlertSeverity {
	switch status {
	case RequirementRed:
		return AlertSeverityCritical
	case RequirementAmber:
		return AlertSeverityWarning
	default:
		return AlertSeverityInfo
	}
}
