package risk

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian/comply/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDeriveStatus(t *testing.T) {
	due := day(2026, 3, 20)
	rule := &models.ComplianceRule{
		AmberThresholdDays: 7,
		RedThresholdDays:   15,
	}

	tests := []struct {
		name       string
		breach     time.Time
		asOf       time.Time
		filing     *models.FilingRecord
		wantStatus models.RequirementStatus
		wantDue    int
		wantOver   int
	}{
		{
			name:       "well before due",
			breach:     due,
			asOf:       day(2026, 3, 1),
			wantStatus: models.RequirementUpcoming,
			wantDue:    19,
		},
		{
			name:       "inside amber window",
			breach:     due,
			asOf:       day(2026, 3, 15),
			wantStatus: models.RequirementAmber,
			wantDue:    5,
		},
		{
			name:       "on due date",
			breach:     due,
			asOf:       due,
			wantStatus: models.RequirementAmber,
			wantDue:    0,
		},
		{
			name:       "breached within red threshold",
			breach:     due,
			asOf:       day(2026, 3, 30),
			wantStatus: models.RequirementAmber,
			wantDue:    -10,
			wantOver:   10,
		},
		{
			name:       "breached beyond red threshold",
			breach:     due,
			asOf:       day(2026, 4, 10),
			wantStatus: models.RequirementRed,
			wantDue:    -21,
			wantOver:   21,
		},
		{
			name:       "grace delays breach",
			breach:     due.AddDate(0, 0, 5),
			asOf:       day(2026, 3, 23),
			wantStatus: models.RequirementAmber,
			wantDue:    -3,
		},
		{
			name:       "filed",
			breach:     due,
			asOf:       day(2026, 4, 10),
			filing:     &models.FilingRecord{Status: models.FilingFiled},
			wantStatus: models.RequirementCompliant,
			wantDue:    -21,
		},
		{
			name:       "waived",
			breach:     due,
			asOf:       day(2026, 4, 10),
			filing:     &models.FilingRecord{Status: models.FilingWaived},
			wantStatus: models.RequirementWaived,
			wantDue:    -21,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, daysUntilDue, overdueDays := DeriveStatus(rule, tt.filing, due, tt.breach, tt.asOf)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantDue, daysUntilDue)
			assert.Equal(t, tt.wantOver, overdueDays)
		})
	}
}

func TestDeriveStatusZeroRedThreshold(t *testing.T) {
	due := day(2026, 8, 20)
	rule := &models.ComplianceRule{AmberThresholdDays: 7, RedThresholdDays: 0}

	status, _, overdueDays := DeriveStatus(rule, nil, due, due, day(2026, 8, 30))
	assert.Equal(t, models.RequirementRed, status)
	assert.Equal(t, 10, overdueDays)
}

func req(code string, domain models.Domain, status models.RequirementStatus, crit int, due time.Time, overdue int, penalty string) models.RequirementState {
	p, _ := decimal.NewFromString(penalty)
	return models.RequirementState{
		RuleCode:    code,
		RuleName:    code,
		Domain:      domain,
		Status:      status,
		Criticality: crit,
		DueDate:     due,
		OverdueDays: overdue,
		Penalty:     models.PenaltyBreakdown{Total: p},
	}
}

func TestAggregateSingleRedRequirement(t *testing.T) {
	agg := NewAggregator(30)

	summary := agg.Aggregate([]models.RequirementState{
		req("GSTR-3B", models.DomainTaxGST, models.RequirementRed, 8, day(2026, 8, 20), 10, "500"),
	})

	assert.Equal(t, models.StateRed, summary.OverallState)
	assert.Equal(t, float64(100), summary.RiskScore)
	assert.Equal(t, 1, summary.OverdueCount)
	assert.Equal(t, 0, summary.UpcomingCount)
	assert.True(t, summary.TotalPenaltyExposure.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, models.StateRed, summary.DomainStates[models.DomainTaxGST])

	// An overdue requirement is still the most urgent action.
	require.NotNil(t, summary.NextDeadline)
	assert.Equal(t, day(2026, 8, 20), *summary.NextDeadline)
	assert.Equal(t, "GSTR-3B", summary.NextAction)
}

func TestAggregateWorstCaseWins(t *testing.T) {
	agg := NewAggregator(30)

	summary := agg.Aggregate([]models.RequirementState{
		req("A", models.DomainCorporate, models.RequirementCompliant, 5, day(2026, 7, 10), 0, "0"),
		req("B", models.DomainCorporate, models.RequirementCompliant, 5, day(2026, 7, 15), 0, "0"),
		req("C", models.DomainLabour, models.RequirementRed, 2, day(2026, 7, 1), 20, "2000"),
	})

	// Low score, but one red requirement forces RED overall.
	assert.Equal(t, models.StateRed, summary.OverallState)
	assert.Equal(t, models.StateGreen, summary.DomainStates[models.DomainCorporate])
	assert.Equal(t, models.StateRed, summary.DomainStates[models.DomainLabour])
	assert.InDelta(t, 16.67, summary.RiskScore, 0.01)
}

func TestAggregateScorePromotesToAmber(t *testing.T) {
	agg := NewAggregator(30)

	// Three upcoming plus two amber, no breach anywhere.
	summary := agg.Aggregate([]models.RequirementState{
		req("A", models.DomainTaxGST, models.RequirementUpcoming, 5, day(2026, 9, 20), 0, "0"),
		req("B", models.DomainTaxGST, models.RequirementUpcoming, 5, day(2026, 9, 20), 0, "0"),
		req("C", models.DomainCorporate, models.RequirementUpcoming, 5, day(2026, 10, 30), 0, "0"),
		req("D", models.DomainLabour, models.RequirementAmber, 5, day(2026, 8, 5), 0, "0"),
		req("E", models.DomainLabour, models.RequirementAmber, 5, day(2026, 8, 7), 0, "0"),
	})

	// (0.2*3 + 0.6*2) / 5 * 100 = 36
	assert.InDelta(t, 36.0, summary.RiskScore, 0.01)
	assert.Equal(t, models.StateAmber, summary.OverallState)
	assert.Equal(t, 5, summary.UpcomingCount)
	assert.Equal(t, 0, summary.OverdueCount)
}

func TestAggregateWaivedExcludedFromScore(t *testing.T) {
	agg := NewAggregator(30)

	summary := agg.Aggregate([]models.RequirementState{
		req("A", models.DomainTaxGST, models.RequirementWaived, 10, day(2026, 7, 1), 0, "0"),
		req("B", models.DomainTaxGST, models.RequirementCompliant, 5, day(2026, 7, 20), 0, "0"),
	})

	assert.Equal(t, float64(0), summary.RiskScore)
	assert.Equal(t, models.StateGreen, summary.OverallState)
}

func TestAggregateNextDeadline(t *testing.T) {
	agg := NewAggregator(30)

	summary := agg.Aggregate([]models.RequirementState{
		req("LOW", models.DomainTaxGST, models.RequirementUpcoming, 3, day(2026, 8, 20), 0, "0"),
		req("HIGH", models.DomainTaxGST, models.RequirementUpcoming, 9, day(2026, 8, 20), 0, "0"),
		req("LATER", models.DomainCorporate, models.RequirementUpcoming, 10, day(2026, 9, 30), 0, "0"),
		req("DONE", models.DomainCorporate, models.RequirementCompliant, 10, day(2026, 8, 5), 0, "0"),
	})

	require.NotNil(t, summary.NextDeadline)
	assert.Equal(t, day(2026, 8, 20), *summary.NextDeadline)
	// Equal deadlines break ties on criticality.
	assert.Equal(t, "HIGH", summary.NextAction)
}

func TestAggregateNextDeadlineIncludesOverdue(t *testing.T) {
	agg := NewAggregator(30)

	// The overdue return is due before the upcoming one and must win even
	// though its date is in the past.
	summary := agg.Aggregate([]models.RequirementState{
		req("GSTR-3B", models.DomainTaxGST, models.RequirementRed, 8, day(2026, 8, 20), 10, "500"),
		req("PF-ECR", models.DomainLabour, models.RequirementUpcoming, 7, day(2026, 9, 15), 0, "0"),
	})

	require.NotNil(t, summary.NextDeadline)
	assert.Equal(t, day(2026, 8, 20), *summary.NextDeadline)
	assert.Equal(t, "GSTR-3B", summary.NextAction)
}

func TestAggregateEmpty(t *testing.T) {
	agg := NewAggregator(30)
	summary := agg.Aggregate(nil)

	assert.Equal(t, models.StateGreen, summary.OverallState)
	assert.Equal(t, float64(0), summary.RiskScore)
	assert.Nil(t, summary.NextDeadline)
	assert.True(t, summary.TotalPenaltyExposure.IsZero())
}
