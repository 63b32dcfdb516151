package penalty

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/veridian/comply/internal/models"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestCalculatePerDay(t *testing.T) {
	tests := []struct {
		name        string
		spec        models.PenaltySpec
		overdueDays int
		wantTotal   string
	}{
		{
			name:        "not overdue",
			spec:        models.PenaltySpec{Type: models.PenaltyPerDay, DailyAmount: dec("50")},
			overdueDays: 0,
			wantTotal:   "0",
		},
		{
			name:        "ten days at fifty",
			spec:        models.PenaltySpec{Type: models.PenaltyPerDay, DailyAmount: dec("50")},
			overdueDays: 10,
			wantTotal:   "500",
		},
		{
			name: "capped at max",
			spec: models.PenaltySpec{
				Type:        models.PenaltyPerDay,
				DailyAmount: dec("50"),
				MaxPenalty:  decPtr("5000"),
			},
			overdueDays: 365,
			wantTotal:   "5000",
		},
		{
			name: "floored at min",
			spec: models.PenaltySpec{
				Type:        models.PenaltyPerDay,
				DailyAmount: dec("10"),
				MinPenalty:  decPtr("1000"),
			},
			overdueDays: 3,
			wantTotal:   "1000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Calculate(&tt.spec, tt.overdueDays)
			if err != nil {
				t.Fatalf("Calculate() error = %v", err)
			}
			if !got.Total.Equal(dec(tt.wantTotal)) {
				t.Errorf("Total = %s, want %s", got.Total, tt.wantTotal)
			}
		})
	}
}

func TestCalculatePercentagePerMonth(t *testing.T) {
	spec := models.PenaltySpec{
		Type:         models.PenaltyPercentagePerMonth,
		BaseAmount:   dec("100000"),
		InterestRate: dec("1.5"),
	}

	// 45 days overdue = 2 started months, simple interest.
	got, err := Calculate(&spec, 45)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if want := dec("3000"); !got.Interest.Equal(want) {
		t.Errorf("Interest = %s, want %s", got.Interest, want)
	}
	if !got.Principal.Equal(spec.BaseAmount) {
		t.Errorf("Principal = %s, want %s", got.Principal, spec.BaseAmount)
	}
	if !got.Total.Equal(got.Interest) {
		t.Errorf("Total = %s, want interest only %s", got.Total, got.Interest)
	}

	// Compounding over the same two months.
	spec.Compounding = true
	got, err = Calculate(&spec, 45)
	if err != nil {
		t.Fatalf("Calculate() compound error = %v", err)
	}
	// 100000 * 1.015^2 - 100000 = 3022.50
	if want := dec("3022.5"); !got.Interest.Equal(want) {
		t.Errorf("compound Interest = %s, want %s", got.Interest, want)
	}
}

func TestCalculateFixedAmount(t *testing.T) {
	spec := models.PenaltySpec{Type: models.PenaltyFixedAmount, FlatAmount: dec("10000")}

	got, err := Calculate(&spec, 1)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if want := dec("10000"); !got.Total.Equal(want) {
		t.Errorf("Total = %s, want %s", got.Total, want)
	}
}

func TestCalculateSlabBased(t *testing.T) {
	spec := models.PenaltySpec{
		Type: models.PenaltySlabBased,
		Slabs: []models.PenaltySlab{
			{DaysFrom: 1, DaysTo: 15, Amount: dec("1000")},
			{DaysFrom: 16, DaysTo: 30, Amount: dec("5000")},
			{DaysFrom: 31, DaysTo: 90, Amount: dec("10000")},
		},
	}

	tests := []struct {
		days int
		want string
	}{
		{1, "1000"},
		{15, "1000"},
		{16, "5000"},
		{31, "10000"},
		{400, "10000"}, // beyond the last slab, falls back to it
	}

	for _, tt := range tests {
		got, err := Calculate(&spec, tt.days)
		if err != nil {
			t.Fatalf("Calculate(%d) error = %v", tt.days, err)
		}
		if !got.Total.Equal(dec(tt.want)) {
			t.Errorf("Calculate(%d) = %s, want %s", tt.days, got.Total, tt.want)
		}
	}
}

func TestCalculateFormula(t *testing.T) {
	spec := models.PenaltySpec{
		Type:         models.PenaltyFormula,
		BaseAmount:   dec("200000"),
		InterestRate: dec("18"),
		Formula:      "baseAmount * rate / 100 / 365 * overdueDays",
	}

	got, err := Calculate(&spec, 30)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	// 200000 * 0.18 / 365 * 30 = 2958.904...
	if want := dec("2958.90"); !got.Total.Equal(want) {
		t.Errorf("Total = %s, want %s", got.Total, want)
	}
}

func TestCalculateFormulaUnknownIdentifier(t *testing.T) {
	spec := models.PenaltySpec{
		Type:    models.PenaltyFormula,
		Formula: "turnover * 0.01",
	}

	_, err := Calculate(&spec, 10)
	var calcErr *CalculationError
	if !errors.As(err, &calcErr) {
		t.Fatalf("Calculate() error = %v, want CalculationError", err)
	}
}

func TestCalculateFormulaDivisionByZero(t *testing.T) {
	spec := models.PenaltySpec{
		Type:    models.PenaltyFormula,
		Formula: "baseAmount / (rate - rate)",
	}

	_, err := Calculate(&spec, 10)
	var calcErr *CalculationError
	if !errors.As(err, &calcErr) {
		t.Fatalf("Calculate() error = %v, want CalculationError", err)
	}
}

func TestCalculateUnknownType(t *testing.T) {
	spec := models.PenaltySpec{Type: "escalating"}

	_, err := Calculate(&spec, 5)
	var calcErr *CalculationError
	if !errors.As(err, &calcErr) {
		t.Fatalf("Calculate() error = %v, want CalculationError", err)
	}
}
