package risk

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/veridian/comply/internal/duedate"
	"github.com/veridian/comply/internal/models"
)

// Status weights for the criticality-weighted risk score. Waived
// requirements are excluded from the score entirely.
const (
	weightUpcoming = 0.2
	weightAmber    = 0.6
	weightRed      = 1.0
)

// DeriveStatus classifies one requirement at asOf. A filing for the period
// short-circuits to COMPLIANT or WAIVED. Otherwise the status follows the
// timeline: UPCOMING before the amber window opens, AMBER from the window
// through the rule's red threshold past breach, RED beyond it.
func DeriveStatus(rule *models.ComplianceRule, filing *models.FilingRecord, dueDate, breachDate, asOf time.Time) (models.RequirementStatus, int, int) {
	daysUntilDue := duedate.DaysBetween(asOf, dueDate)
	overdueDays := duedate.DaysBetween(breachDate, asOf)
	if overdueDays < 0 {
		overdueDays = 0
	}

	if filing != nil {
		if filing.Status == models.FilingWaived {
			return models.RequirementWaived, daysUntilDue, 0
		}
		return models.RequirementCompliant, daysUntilDue, 0
	}

	if overdueDays > 0 {
		if overdueDays > rule.RedThresholdDays {
			return models.RequirementRed, daysUntilDue, overdueDays
		}
		return models.RequirementAmber, daysUntilDue, overdueDays
	}

	if daysUntilDue > rule.AmberThresholdDays {
		return models.RequirementUpcoming, daysUntilDue, 0
	}
	return models.RequirementAmber, daysUntilDue, 0
}

// Summary is the aggregated view over one entity's requirement states.
type Summary struct {
	OverallState         models.OverallState
	RiskScore            float64
	TotalPenaltyExposure decimal.Decimal
	OverdueCount         int
	UpcomingCount        int
	NextDeadline         *time.Time
	NextAction           string
	DomainStates         models.DomainStates
}

// Aggregator rolls requirement states up to entity and domain level.
type Aggregator struct {
	// AmberScoreThreshold promotes an otherwise green entity to AMBER when
	// the weighted risk score reaches it.
	AmberScoreThreshold float64
}

func NewAggregator(amberScoreThreshold float64) *Aggregator {
	return &Aggregator{AmberScoreThreshold: amberScoreThreshold}
}

// Aggregate computes the overall state, risk score, penalty exposure,
// counters, and per-domain rollups. Worst case wins at every level: a single
// RED requirement makes its domain and the entity RED regardless of score.
// The next deadline is the earliest due date over every non-compliant
// requirement, overdue ones included, so a fully breached book still names
// its most urgent action.
func (a *Aggregator) Aggregate(reqs []models.RequirementState) *Summary {
	s := &Summary{
		OverallState:         models.StateGreen,
		TotalPenaltyExposure: decimal.Zero,
		DomainStates:         make(models.DomainStates),
	}

	var weighted, totalCrit float64
	var nextDeadline *models.RequirementState

	for i := range reqs {
		req := &reqs[i]

		s.TotalPenaltyExposure = s.TotalPenaltyExposure.Add(req.Penalty.Total)

		if req.Status != models.RequirementWaived {
			crit := float64(req.Criticality)
			totalCrit += crit
			weighted += crit * statusWeight(req.Status)
		}

		switch {
		case req.OverdueDays > 0:
			s.OverdueCount++
		case req.Status == models.RequirementUpcoming || req.Status == models.RequirementAmber:
			s.UpcomingCount++
		}

		if pending(req.Status) {
			if nextDeadline == nil || earlier(req, nextDeadline) {
				nextDeadline = req
			}
		}

		domain := s.DomainStates[req.Domain]
		if domain == "" {
			domain = models.StateGreen
		}
		s.DomainStates[req.Domain] = worse(domain, stateFor(req.Status))
	}

	if totalCrit > 0 {
		s.RiskScore = math.Round(100*weighted/totalCrit*100) / 100
	}

	for _, state := range s.DomainStates {
		s.OverallState = worse(s.OverallState, state)
	}
	if s.OverallState == models.StateGreen && s.RiskScore >= a.AmberScoreThreshold && a.AmberScoreThreshold > 0 {
		s.OverallState = models.StateAmber
	}

	if nextDeadline != nil {
		d := nextDeadline.DueDate
		s.NextDeadline = &d
		s.NextAction = nextDeadline.RuleName
	}

	return s
}

func statusWeight(status models.RequirementStatus) float64 {
	switch status {
	case models.RequirementRed:
		return weightRed
	case models.RequirementAmber:
		return weightAmber
	case models.RequirementUpcoming:
		return weightUpcoming
	}
	return 0
}

// stateFor maps a requirement status to the state it forces on its domain.
func stateFor(status models.RequirementStatus) models.OverallState {
	switch status {
	case models.RequirementRed:
		return models.StateRed
	case models.RequirementAmber:
		return models.StateAmber
	}
	return models.StateGreen
}

func worse(a, b models.OverallState) models.OverallState {
	if a == models.StateRed || b == models.StateRed {
		return models.StateRed
	}
	if a == models.StateAmber || b == models.StateAmber {
		return models.StateAmber
	}
	return models.StateGreen
}

func pending(status models.RequirementStatus) bool {
	return status != models.RequirementCompliant && status != models.RequirementWaived
}

// earlier orders candidate next deadlines: sooner due date first, higher
// criticality breaking ties.
func earlier(a, b *models.RequirementState) bool {
	if !a.DueDate.Equal(b.DueDate) {
		return a.DueDate.Before(b.DueDate)
	}
	return a.Criticality > b.Criticality
}
