package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian/comply/internal/alerts"
	"github.com/veridian/comply/internal/duedate"
	"github.com/veridian/comply/internal/models"
	"github.com/veridian/comply/internal/rules"
	"github.com/veridian/comply/internal/store"
)

type fakeRuleStore struct {
	rules []models.ComplianceRule
}

func (f *fakeRuleStore) ListActive(_ context.Context) ([]models.ComplianceRule, error) {
	return f.rules, nil
}
func (f *fakeRuleStore) GetByID(_ context.Context, _ string) (*models.ComplianceRule, error) {
	return nil, nil
}
func (f *fakeRuleStore) GetByCode(_ context.Context, _ string, _ time.Time) (*models.ComplianceRule, error) {
	return nil, nil
}
func (f *fakeRuleStore) ListVersions(_ context.Context, _ string) ([]models.ComplianceRule, error) {
	return nil, nil
}
func (f *fakeRuleStore) Publish(_ context.Context, _ *models.ComplianceRule) error { return nil }

type fakeStore struct {
	entity     *models.EntityProfile
	state      *models.ComplianceState
	filings    map[string]*models.FilingRecord // ruleCode + "/" + periodKey
	saved      []models.ComplianceState
	logs       []models.CalculationLog
	saveErr    error
	currentVer int64
}

func newFakeStore(entity *models.EntityProfile) *fakeStore {
	return &fakeStore{entity: entity, filings: make(map[string]*models.FilingRecord)}
}

func (f *fakeStore) GetEntity(_ context.Context, id uuid.UUID) (*models.EntityProfile, error) {
	if f.entity != nil && f.entity.ID == id {
		return f.entity, nil
	}
	return nil, nil
}

func (f *fakeStore) GetState(_ context.Context, _ uuid.UUID) (*models.ComplianceState, error) {
	return f.state, nil
}

func (f *fakeStore) SaveState(_ context.Context, s *models.ComplianceState, expectedVersion int64, _ float64) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.currentVer != expectedVersion {
		return store.ErrConflict
	}
	s.CalcVersion = expectedVersion + 1
	f.currentVer = s.CalcVersion
	copied := *s
	f.saved = append(f.saved, copied)
	f.state = &copied
	return nil
}

func (f *fakeStore) AppendCalculationLog(_ context.Context, log *models.CalculationLog) error {
	f.logs = append(f.logs, *log)
	return nil
}

func (f *fakeStore) GetFiling(_ context.Context, _ uuid.UUID, ruleCode, periodKey string) (*models.FilingRecord, error) {
	return f.filings[ruleCode+"/"+periodKey], nil
}

type fakeAlertStore struct {
	created []models.ComplianceAlert
	expired []string
}

func (f *fakeAlertStore) CreateAlert(_ context.Context, alert *models.ComplianceAlert) error {
	f.created = append(f.created, *alert)
	return nil
}
func (f *fakeAlertStore) FindActiveAlert(_ context.Context, _ uuid.UUID, _ string, _ models.AlertType) (*models.ComplianceAlert, error) {
	return nil, nil
}
func (f *fakeAlertStore) ExpireAlerts(_ context.Context, _ uuid.UUID, ruleCode string) error {
	f.expired = append(f.expired, ruleCode)
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func gstReturnRule() models.ComplianceRule {
	return models.ComplianceRule{
		ID:        uuid.New(),
		Code:      "GSTR-3B",
		Name:      "GSTR-3B monthly return",
		Domain:    models.DomainTaxGST,
		Frequency: models.FrequencyMonthly,
		Applicability: models.ApplicabilityCriteria{
			RequiresGST: true,
		},
		DueDate: models.DueDateSpec{
			BaseDate:   models.BaseDatePeriodEnd,
			OffsetDays: 20,
		},
		Penalty: models.PenaltySpec{
			Type:        models.PenaltyPerDay,
			DailyAmount: dec("50"),
			MaxPenalty:  func() *decimal.Decimal { d := dec("5000"); return &d }(),
		},
		Criticality:        8,
		AmberThresholdDays: 7,
		RedThresholdDays:   0,
		Active:             true,
		EffectiveFrom:      time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func gstEntity() *models.EntityProfile {
	turnover := dec("50000000")
	return &models.EntityProfile{
		ID:             uuid.New(),
		Name:           "Acme Traders Pvt Ltd",
		EntityType:     "PRIVATE_LIMITED",
		State:          "KA",
		AnnualTurnover: &turnover,
		GSTRegistered:  true,
		Active:         true,
	}
}

func newTestEngine(st *fakeStore, alertStore *fakeAlertStore, ruleList ...models.ComplianceRule) *Engine {
	catalog := rules.NewCatalog(&fakeRuleStore{rules: ruleList})
	calculator := duedate.NewCalculator(duedate.NewStaticCalendar())
	var emitter *alerts.Emitter
	if alertStore != nil {
		emitter = alerts.NewEmitter(alertStore, dec("0.10"), dec("100"), nil)
	}
	return New(st, catalog, calculator, emitter, Options{}, nil)
}

func TestRecalculateOverdueReturn(t *testing.T) {
	entity := gstEntity()
	st := newFakeStore(entity)
	alertStore := &fakeAlertStore{}
	eng := newTestEngine(st, alertStore, gstReturnRule())

	// July return was due August 20; it is now August 30 and nothing filed.
	asOf := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	state, err := eng.Recalculate(context.Background(), entity.ID, asOf, models.TriggerScheduled)
	require.NoError(t, err)

	require.Len(t, state.Requirements, 1)
	req := state.Requirements[0]
	assert.Equal(t, "2026-07", req.PeriodKey)
	assert.Equal(t, time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), req.DueDate)
	assert.Equal(t, models.RequirementRed, req.Status)
	assert.Equal(t, 10, req.OverdueDays)
	assert.True(t, req.Penalty.Total.Equal(dec("500")), "penalty = %s", req.Penalty.Total)

	assert.Equal(t, models.StateRed, state.OverallState)
	assert.Equal(t, float64(100), state.RiskScore)
	assert.Equal(t, 1, state.OverdueCount)
	assert.Equal(t, int64(1), state.CalcVersion)
	assert.False(t, state.Degraded)

	require.Len(t, st.logs, 1)
	assert.Equal(t, models.CalculationSucceeded, st.logs[0].Status)
	assert.Equal(t, 1, st.logs[0].RulesApplicable)

	// First breach raises an OVERDUE alert.
	require.Len(t, alertStore.created, 1)
	assert.Equal(t, models.AlertOverdue, alertStore.created[0].Type)
	assert.Equal(t, models.AlertSeverityCritical, alertStore.created[0].Severity)
}

func TestRecalculateFiledReturn(t *testing.T) {
	entity := gstEntity()
	st := newFakeStore(entity)
	st.filings["GSTR-3B/2026-07"] = &models.FilingRecord{
		EntityID:  entity.ID,
		RuleCode:  "GSTR-3B",
		PeriodKey: "2026-07",
		Status:    models.FilingFiled,
	}
	alertStore := &fakeAlertStore{}
	eng := newTestEngine(st, alertStore, gstReturnRule())

	asOf := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	state, err := eng.Recalculate(context.Background(), entity.ID, asOf, models.TriggerFiling)
	require.NoError(t, err)

	require.Len(t, state.Requirements, 1)
	assert.Equal(t, models.RequirementCompliant, state.Requirements[0].Status)
	assert.True(t, state.Requirements[0].Penalty.Total.IsZero())
	assert.Equal(t, models.StateGreen, state.OverallState)
	assert.Equal(t, float64(0), state.RiskScore)

	// Resolution expires any open alerts for the rule.
	assert.Equal(t, []string{"GSTR-3B"}, alertStore.expired)
	assert.Empty(t, alertStore.created)
}

func TestRecalculateInapplicableRule(t *testing.T) {
	entity := gstEntity()
	entity.GSTRegistered = false
	st := newFakeStore(entity)
	eng := newTestEngine(st, nil, gstReturnRule())

	asOf := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	state, err := eng.Recalculate(context.Background(), entity.ID, asOf, models.TriggerManual)
	require.NoError(t, err)

	assert.Empty(t, state.Requirements)
	assert.Equal(t, models.StateGreen, state.OverallState)
	assert.Equal(t, float64(1), state.DataCompleteness)
}

func TestRecalculateMissingProfileFieldSkips(t *testing.T) {
	rule := gstReturnRule()
	turnoverFloor := dec("10000000")
	rule.Applicability.TurnoverMin = &turnoverFloor

	entity := gstEntity()
	entity.AnnualTurnover = nil
	st := newFakeStore(entity)
	eng := newTestEngine(st, nil, rule)

	asOf := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	state, err := eng.Recalculate(context.Background(), entity.ID, asOf, models.TriggerScheduled)
	require.NoError(t, err)

	assert.Empty(t, state.Requirements)
	assert.Less(t, state.DataCompleteness, 1.0)

	require.Len(t, st.logs, 1)
	assert.Equal(t, 1, st.logs[0].WarningCount)
}

func TestRecalculateConflictDiscardsResult(t *testing.T) {
	entity := gstEntity()
	st := newFakeStore(entity)
	st.saveErr = store.ErrConflict
	eng := newTestEngine(st, nil, gstReturnRule())

	asOf := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	_, err := eng.Recalculate(context.Background(), entity.ID, asOf, models.TriggerScheduled)
	require.ErrorIs(t, err, store.ErrConflict)

	// The audit row is written even though the state transaction aborted.
	require.Len(t, st.logs, 1)
	assert.Equal(t, models.CalculationFailed, st.logs[0].Status)
	assert.Empty(t, st.saved)
}

func TestRecalculateBrokenFormulaDegrades(t *testing.T) {
	broken := gstReturnRule()
	broken.Code = "PT-RETURN"
	broken.Name = "Professional tax return"
	broken.Domain = models.DomainLabour
	broken.Penalty = models.PenaltySpec{
		Type:    models.PenaltyFormula,
		Formula: "turnover * 0.01",
	}

	entity := gstEntity()
	st := newFakeStore(entity)
	eng := newTestEngine(st, nil, gstReturnRule(), broken)

	asOf := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	state, err := eng.Recalculate(context.Background(), entity.ID, asOf, models.TriggerScheduled)
	require.NoError(t, err)

	// The healthy rule still evaluates; the broken one is dropped.
	require.Len(t, state.Requirements, 1)
	assert.Equal(t, "GSTR-3B", state.Requirements[0].RuleCode)
	assert.True(t, state.Degraded)

	require.Len(t, st.logs, 1)
	assert.Equal(t, 1, st.logs[0].ErrorCount)
}

func TestRecalculateDependencyExclusion(t *testing.T) {
	parent := gstReturnRule()

	child := gstReturnRule()
	child.ID = uuid.New()
	child.Code = "GSTR-9"
	child.Name = "GSTR-9 annual return"
	child.Frequency = models.FrequencyAnnual
	child.DueDate = models.DueDateSpec{BaseDate: models.BaseDatePeriodEnd, OffsetMonths: 9}
	child.DependsOnRules = models.StringArray{"GSTR-3B"}

	entity := gstEntity()
	st := newFakeStore(entity)
	eng := newTestEngine(st, nil, parent, child)

	// GSTR-3B for July is unfiled, so the dependent annual return is
	// excluded from this run.
	asOf := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	state, err := eng.Recalculate(context.Background(), entity.ID, asOf, models.TriggerScheduled)
	require.NoError(t, err)

	require.Len(t, state.Requirements, 1)
	assert.Equal(t, "GSTR-3B", state.Requirements[0].RuleCode)
}

func TestRecalculateUnknownEntity(t *testing.T) {
	st := newFakeStore(nil)
	eng := newTestEngine(st, nil, gstReturnRule())

	_, err := eng.Recalculate(context.Background(), uuid.New(), time.Now(), models.TriggerManual)
	require.Error(t, err)
}
