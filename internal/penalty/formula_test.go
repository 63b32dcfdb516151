package penalty

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseFormulaErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"dangling operator", "overdueDays *"},
		{"unbalanced parens", "(overdueDays + 1"},
		{"trailing garbage", "overdueDays + 1 )"},
		{"bad number", "1.2.3 + overdueDays"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFormula(tt.src); err == nil {
				t.Errorf("ParseFormula(%q) expected error", tt.src)
			}
		})
	}
}

func TestFormulaEval(t *testing.T) {
	vars := map[string]decimal.Decimal{
		"overdueDays": decimal.NewFromInt(40),
		"baseAmount":  decimal.NewFromInt(10000),
		"rate":        decimal.NewFromInt(12),
	}

	tests := []struct {
		src  string
		want string
	}{
		{"overdueDays * 100", "4000"},
		{"baseAmount * rate / 100", "1200"},
		{"(overdueDays - 10) * 50 + 500", "2000"},
		{"-overdueDays + 50", "10"},
		{"overdueDays > 30", "1"},
		{"overdueDays <= 30", "0"},
		{"(overdueDays > 30) * 5000 + (overdueDays <= 30) * 1000", "5000"},
		{"rate == 12", "1"},
		{"rate != 12", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			f, err := ParseFormula(tt.src)
			if err != nil {
				t.Fatalf("ParseFormula(%q) error = %v", tt.src, err)
			}
			got, err := f.Eval(vars)
			if err != nil {
				t.Fatalf("Eval(%q) error = %v", tt.src, err)
			}
			if !got.Equal(mustDec(tt.want)) {
				t.Errorf("Eval(%q) = %s, want %s", tt.src, got, tt.want)
			}
		})
	}
}

func TestFormulaEvalOperatorPrecedence(t *testing.T) {
	f, err := ParseFormula("2 + 3 * 4")
	if err != nil {
		t.Fatalf("ParseFormula() error = %v", err)
	}
	got, err := f.Eval(nil)
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}
	if !got.Equal(decimal.NewFromInt(14)) {
		t.Errorf("Eval() = %s, want 14", got)
	}
}

func mustDec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}
