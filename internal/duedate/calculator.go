package duedate

import (
	"errors"
	"fmt"
	"time"

	"github.com/veridian/comply/internal/models"
)

// Data a rule needs but the entity profile does not carry. The caller skips
// the rule and records a warning instead of failing the calculation.
var (
	ErrMissingIncorporationDate = errors.New("entity has no incorporation date")
	ErrMissingTriggerDate       = errors.New("entity has no trigger date for event-based rule")
)

// Period is the obligation period a due date is computed for.
type Period struct {
	Key   string
	Start time.Time
	End   time.Time
}

// Result carries the computed dates for one (rule, period) requirement.
type Result struct {
	Period     Period
	RawDueDate time.Time
	DueDate    time.Time
	BreachDate time.Time
}

// Calculator computes due dates. It is pure: identical (rule version, entity,
// evaluation date) inputs always yield the identical result, independent of
// call order or prior state.
type Calculator struct {
	calendar Calendar
}

func NewCalculator(calendar Calendar) *Calculator {
	return &Calculator{calendar: calendar}
}

// Calculate derives the current period for the rule's frequency at asOf and
// computes the adjusted due date and breach date.
func (c *Calculator) Calculate(rule *models.ComplianceRule, profile *models.EntityProfile, asOf time.Time) (*Result, error) {
	asOf = midnight(asOf)

	period, err := c.periodFor(rule, profile, asOf)
	if err != nil {
		return nil, err
	}

	var base time.Time
	switch rule.DueDate.BaseDate {
	case models.BaseDatePeriodStart:
		base = period.Start
	case models.BaseDatePeriodEnd:
		base = period.End
	case models.BaseDateIncorporation:
		if profile.IncorporationDate == nil {
			return nil, ErrMissingIncorporationDate
		}
		base = midnight(*profile.IncorporationDate)
	case models.BaseDateEvent:
		base = period.Start
	default:
		return nil, fmt.Errorf("unknown base date type %q", rule.DueDate.BaseDate)
	}

	raw := base.AddDate(0, rule.DueDate.OffsetMonths, rule.DueDate.OffsetDays)
	due := raw
	if rule.DueDate.Adjustment == models.AdjustNextWorkingDay {
		for !c.calendar.IsWorkingDay(profile.State, due) {
			due = due.AddDate(0, 0, 1)
		}
	}
	breach := due.AddDate(0, 0, rule.GraceDays)

	return &Result{
		Period:     *period,
		RawDueDate: raw,
		DueDate:    due,
		BreachDate: breach,
	}, nil
}

// periodFor derives the most recent completed period for periodic rules, the
// incorporation "period" for one-time rules, and the entity trigger date for
// event-based rules.
func (c *Calculator) periodFor(rule *models.ComplianceRule, profile *models.EntityProfile, asOf time.Time) (*Period, error) {
	switch rule.Frequency {
	case models.FrequencyMonthly:
		first := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
		start := first.AddDate(0, -1, 0)
		end := first.AddDate(0, 0, -1)
		return &Period{Key: start.Format("2006-01"), Start: start, End: end}, nil

	case models.FrequencyQuarterly:
		q := (int(asOf.Month()) - 1) / 3 // current quarter, 0-based
		start := time.Date(asOf.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -3, 0)
		end := start.AddDate(0, 3, -1)
		return &Period{
			Key:   fmt.Sprintf("%d-Q%d", start.Year(), (int(start.Month())-1)/3+1),
			Start: start,
			End:   end,
		}, nil

	case models.FrequencyAnnual:
		// Indian financial year, April through March.
		fyEndYear := asOf.Year()
		if asOf.Month() < time.April {
			fyEndYear--
		}
		start := time.Date(fyEndYear-1, time.April, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(fyEndYear, time.March, 31, 0, 0, 0, 0, time.UTC)
		return &Period{
			Key:   fmt.Sprintf("FY%d-%02d", start.Year(), end.Year()%100),
			Start: start,
			End:   end,
		}, nil

	case models.FrequencyOneTime:
		if profile.IncorporationDate == nil {
			return nil, ErrMissingIncorporationDate
		}
		d := midnight(*profile.IncorporationDate)
		return &Period{Key: "ONE_TIME", Start: d, End: d}, nil

	case models.FrequencyEventBased:
		trigger, ok := profile.TriggerDates[rule.Code]
		if !ok {
			return nil, ErrMissingTriggerDate
		}
		d := midnight(trigger)
		return &Period{Key: "EVT-" + d.Format("2006-01-02"), Start: d, End: d}, nil

	default:
		return nil, fmt.Errorf("unknown frequency %q", rule.Frequency)
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns whole days from a to b, negative when b precedes a.
func DaysBetween(a, b time.Time) int {
	return int(midnight(b).Sub(midnight(a)).Hours() / 24)
}
