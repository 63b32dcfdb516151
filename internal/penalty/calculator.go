package penalty

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/veridian/comply/internal/models"
)

// Calculate computes the penalty exposure for a breached requirement.
// overdueDays counts from the breach date; zero or negative days yield a
// zero breakdown. The total is clamped into [MinPenalty, MaxPenalty] and
// rounded to two decimal places.
func Calculate(spec *models.PenaltySpec, overdueDays int) (models.PenaltyBreakdown, error) {
	if overdueDays <= 0 {
		return models.PenaltyBreakdown{}, nil
	}

	var breakdown models.PenaltyBreakdown
	days := decimal.NewFromInt(int64(overdueDays))

	switch spec.Type {
	case models.PenaltyPerDay:
		breakdown.Penalty = spec.DailyAmount.Mul(days)

	case models.PenaltyPercentagePerMonth:
		breakdown.Principal = spec.BaseAmount
		breakdown.Interest = monthlyInterest(spec, overdueDays)

	case models.PenaltyFixedAmount:
		breakdown.Penalty = spec.FlatAmount

	case models.PenaltySlabBased:
		breakdown.Penalty = slabAmount(spec.Slabs, overdueDays)

	case models.PenaltyFormula:
		f, err := ParseFormula(spec.Formula)
		if err != nil {
			return models.PenaltyBreakdown{}, &CalculationError{Reason: fmt.Sprintf("parsing formula: %v", err)}
		}
		result, err := f.Eval(map[string]decimal.Decimal{
			"overdueDays": days,
			"baseAmount":  spec.BaseAmount,
			"rate":        spec.InterestRate,
		})
		if err != nil {
			return models.PenaltyBreakdown{}, err
		}
		if result.IsNegative() {
			result = decimal.Zero
		}
		breakdown.Penalty = result

	default:
		return models.PenaltyBreakdown{}, &CalculationError{Reason: fmt.Sprintf("unknown penalty type %q", spec.Type)}
	}

	total := breakdown.Penalty.Add(breakdown.Interest)
	total = clamp(total, spec.MinPenalty, spec.MaxPenalty)
	breakdown.Total = total.Round(2)
	breakdown.Penalty = breakdown.Penalty.Round(2)
	breakdown.Interest = breakdown.Interest.Round(2)
	return breakdown, nil
}

// monthlyInterest accrues InterestRate percent of BaseAmount per month
// overdue. A started month counts in full.
func monthlyInterest(spec *models.PenaltySpec, overdueDays int) decimal.Decimal {
	months := (overdueDays + 29) / 30
	rate := spec.InterestRate.Div(decimal.NewFromInt(100))

	if !spec.Compounding {
		return spec.BaseAmount.Mul(rate).Mul(decimal.NewFromInt(int64(months)))
	}

	accrued := spec.BaseAmount
	for i := 0; i < months; i++ {
		accrued = accrued.Add(accrued.Mul(rate))
	}
	return accrued.Sub(spec.BaseAmount)
}

// slabAmount picks the slab covering overdueDays. Days beyond the last
// slab's range fall back to the last slab.
func slabAmount(slabs []models.PenaltySlab, overdueDays int) decimal.Decimal {
	if len(slabs) == 0 {
		return decimal.Zero
	}
	for _, slab := range slabs {
		if overdueDays >= slab.DaysFrom && (slab.DaysTo == 0 || overdueDays <= slab.DaysTo) {
			return slab.Amount
		}
	}
	return slabs[len(slabs)-1].Amount
}

func clamp(v decimal.Decimal, min, max *decimal.Decimal) decimal.Decimal {
	if max != nil && v.GreaterThan(*max) {
		v = *max
	}
	if min != nil && v.LessThan(*min) {
		v = *min
	}
	return v
}
