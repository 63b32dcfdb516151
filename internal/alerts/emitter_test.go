package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/veridian/comply/internal/models"
)

type fakeAlertStore struct {
	created []models.ComplianceAlert
	expired []string
	active  map[string]bool // ruleCode + "/" + type
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{active: make(map[string]bool)}
}

func (f *fakeAlertStore) CreateAlert(_ context.Context, alert *models.ComplianceAlert) error {
	f.created = append(f.created, *alert)
	f.active[alert.RuleCode+"/"+string(alert.Type)] = true
	return nil
}

func (f *fakeAlertStore) FindActiveAlert(_ context.Context, _ uuid.UUID, ruleCode string, alertType models.AlertType) (*models.ComplianceAlert, error) {
	if f.active[ruleCode+"/"+string(alertType)] {
		return &models.ComplianceAlert{RuleCode: ruleCode, Type: alertType}, nil
	}
	return nil, nil
}

func (f *fakeAlertStore) ExpireAlerts(_ context.Context, _ uuid.UUID, ruleCode string) error {
	f.expired = append(f.expired, ruleCode)
	for key := range f.active {
		if len(key) > len(ruleCode) && key[:len(ruleCode)] == ruleCode && key[len(ruleCode)] == '/' {
			delete(f.active, key)
		}
	}
	return nil
}

func newTestEmitter(store Store) *Emitter {
	return NewEmitter(store, decimal.NewFromFloat(0.10), decimal.NewFromInt(100), nil)
}

func dec(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func stateWith(entityID uuid.UUID, overall models.OverallState, reqs ...models.RequirementState) *models.ComplianceState {
	return &models.ComplianceState{
		EntityID:     entityID,
		OverallState: overall,
		Requirements: reqs,
	}
}

func requirement(code string, status models.RequirementStatus, overdue int, penalty decimal.Decimal) models.RequirementState {
	return models.RequirementState{
		RuleID:      uuid.New(),
		RuleCode:    code,
		RuleName:    code,
		Status:      status,
		OverdueDays: overdue,
		DueDate:     time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		Penalty:     models.PenaltyBreakdown{Total: penalty},
	}
}

func countByType(alerts []models.ComplianceAlert, t models.AlertType) int {
	n := 0
	for _, a := range alerts {
		if a.Type == t {
			n++
		}
	}
	return n
}

func TestEmitUpcomingOnEnteringAmberWindow(t *testing.T) {
	store := newFakeAlertStore()
	emitter := newTestEmitter(store)
	entityID := uuid.New()

	prev := stateWith(entityID, models.StateGreen, requirement("GSTR-3B", models.RequirementUpcoming, 0, dec(0)))
	next := stateWith(entityID, models.StateAmber, requirement("GSTR-3B", models.RequirementAmber, 0, dec(0)))

	emitter.Emit(context.Background(), prev, next)

	if got := countByType(store.created, models.AlertUpcoming); got != 1 {
		t.Fatalf("UPCOMING alerts = %d, want 1", got)
	}
	// STATE_CHANGE fires too: GREEN -> AMBER.
	if got := countByType(store.created, models.AlertStateChange); got != 1 {
		t.Fatalf("STATE_CHANGE alerts = %d, want 1", got)
	}
}

func TestEmitNoUpcomingWhileStillUpcoming(t *testing.T) {
	store := newFakeAlertStore()
	emitter := newTestEmitter(store)
	entityID := uuid.New()

	prev := stateWith(entityID, models.StateGreen, requirement("GSTR-3B", models.RequirementUpcoming, 0, dec(0)))
	next := stateWith(entityID, models.StateGreen, requirement("GSTR-3B", models.RequirementUpcoming, 0, dec(0)))

	emitter.Emit(context.Background(), prev, next)

	if len(store.created) != 0 {
		t.Fatalf("alerts = %d, want 0", len(store.created))
	}
}

func TestEmitOverdueOnCrossingBreach(t *testing.T) {
	store := newFakeAlertStore()
	emitter := newTestEmitter(store)
	entityID := uuid.New()

	prev := stateWith(entityID, models.StateAmber, requirement("GSTR-3B", models.RequirementAmber, 0, dec(0)))
	next := stateWith(entityID, models.StateRed, requirement("GSTR-3B", models.RequirementRed, 3, dec(150)))

	emitter.Emit(context.Background(), prev, next)

	if got := countByType(store.created, models.AlertOverdue); got != 1 {
		t.Fatalf("OVERDUE alerts = %d, want 1", got)
	}
	overdue := store.created[0]
	if overdue.Severity != models.AlertSeverityCritical {
		t.Errorf("severity = %s, want CRITICAL", overdue.Severity)
	}
}

func TestEmitOverdueDeduplicated(t *testing.T) {
	store := newFakeAlertStore()
	emitter := newTestEmitter(store)
	entityID := uuid.New()

	next := stateWith(entityID, models.StateRed, requirement("GSTR-3B", models.RequirementRed, 3, dec(0)))
	emitter.Emit(context.Background(), nil, next)

	// Simulate the next run before the previous alert is acknowledged, with
	// stale prev showing no overdue so the transition fires again.
	prev := stateWith(entityID, models.StateAmber, requirement("GSTR-3B", models.RequirementAmber, 0, dec(0)))
	next2 := stateWith(entityID, models.StateRed, requirement("GSTR-3B", models.RequirementRed, 4, dec(0)))
	emitter.Emit(context.Background(), prev, next2)

	if got := countByType(store.created, models.AlertOverdue); got != 1 {
		t.Fatalf("OVERDUE alerts = %d, want 1 after dedupe", got)
	}
}

func TestEmitPenaltyRiskMateriality(t *testing.T) {
	store := newFakeAlertStore()
	emitter := newTestEmitter(store)
	entityID := uuid.New()

	// Growth below the absolute floor stays quiet.
	prev := stateWith(entityID, models.StateRed, requirement("GSTR-3B", models.RequirementRed, 10, dec(5000)))
	next := stateWith(entityID, models.StateRed, requirement("GSTR-3B", models.RequirementRed, 11, dec(5050)))
	emitter.Emit(context.Background(), prev, next)

	if got := countByType(store.created, models.AlertPenaltyRisk); got != 0 {
		t.Fatalf("PENALTY_RISK alerts = %d, want 0 below materiality", got)
	}

	// A jump clearing both the floor and the ratio fires.
	next2 := stateWith(entityID, models.StateRed, requirement("GSTR-3B", models.RequirementRed, 40, dec(6000)))
	emitter.Emit(context.Background(), prev, next2)

	if got := countByType(store.created, models.AlertPenaltyRisk); got != 1 {
		t.Fatalf("PENALTY_RISK alerts = %d, want 1 above materiality", got)
	}
}

func TestEmitExpiresOnCompliant(t *testing.T) {
	store := newFakeAlertStore()
	emitter := newTestEmitter(store)
	entityID := uuid.New()

	next := stateWith(entityID, models.StateRed, requirement("GSTR-3B", models.RequirementRed, 3, dec(150)))
	emitter.Emit(context.Background(), nil, next)

	filed := stateWith(entityID, models.StateGreen, requirement("GSTR-3B", models.RequirementCompliant, 0, dec(0)))
	emitter.Emit(context.Background(), next, filed)

	if len(store.expired) != 1 || store.expired[0] != "GSTR-3B" {
		t.Fatalf("expired = %v, want [GSTR-3B]", store.expired)
	}
}

func TestEmitFirstCalculationNoStateChange(t *testing.T) {
	store := newFakeAlertStore()
	emitter := newTestEmitter(store)
	entityID := uuid.New()

	next := stateWith(entityID, models.StateAmber, requirement("GSTR-3B", models.RequirementAmber, 0, dec(0)))
	emitter.Emit(context.Background(), nil, next)

	if got := countByType(store.created, models.AlertStateChange); got != 0 {
		t.Fatalf("STATE_CHANGE alerts = %d, want 0 on first calculation", got)
	}
	if got := countByType(store.created, models.AlertUpcoming); got != 1 {
		t.Fatalf("UPCOMING alerts = %d, want 1", got)
	}
}
