package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/veridian/comply/internal/auth"
	"github.com/veridian/comply/internal/config"
	"github.com/veridian/comply/internal/models"
	"github.com/veridian/comply/internal/rules"
	"github.com/veridian/comply/internal/store"
)

// Seeds a starter rule catalog, a demo entity and an admin login so a fresh
// install has something to calculate against.
func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.New(store.Config{
		DSN:          cfg.Database.DSN(),
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	ruleStore := rules.NewPostgresStore(st.DB())

	for _, rule := range starterRules() {
		if err := ruleStore.Publish(ctx, rule); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to publish %s: %v\n", rule.Code, err)
			os.Exit(1)
		}
		fmt.Printf("Published rule %s (%s)\n", rule.Code, rule.Name)
	}

	turnover := decimal.NewFromInt(80_000_000)
	employees := 42
	incorporated := time.Date(2019, time.June, 12, 0, 0, 0, 0, time.UTC)
	entity := &models.EntityProfile{
		ID:                uuid.New(),
		Name:              "Meridian Fabrics Pvt Ltd",
		EntityType:        "private_limited",
		State:             "MH",
		AnnualTurnover:    &turnover,
		EmployeeCount:     &employees,
		GSTRegistered:     true,
		PFRegistered:      true,
		IncorporationDate: &incorporated,
		Active:            true,
	}
	if err := st.CreateEntity(ctx, entity); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create entity: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created entity %s (%s)\n", entity.Name, entity.ID)

	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
		fmt.Println("SEED_ADMIN_PASSWORD not set, using default password admin123")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash password: %v\n", err)
		os.Exit(1)
	}

	userStore := auth.NewPostgresUserStore(st.DB())
	admin := &auth.User{
		ID:       uuid.New().String(),
		Email:    "admin@example.com",
		Name:     "Administrator",
		Password: hash,
		Role:     auth.RoleAdmin,
	}
	if err := userStore.CreateUser(ctx, admin); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create admin user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created admin user %s\n", admin.Email)
}

func starterRules() []*models.ComplianceRule {
	effectiveFrom := time.Date(2020, time.April, 1, 0, 0, 0, 0, time.UTC)
	fiveThousand := decimal.NewFromInt(5000)
	tenThousand := decimal.NewFromInt(10000)

	return []*models.ComplianceRule{
		{
			Code:        "GSTR-3B",
			Name:        "GSTR-3B Monthly Summary Return",
			Description: "Monthly summary return of outward and inward supplies under GST",
			Domain:      models.DomainTaxGST,
			Frequency:   models.FrequencyMonthly,
			Applicability: models.ApplicabilityCriteria{
				RequiresGST: true,
			},
			DueDate: models.DueDateSpec{
				BaseDate:   models.BaseDatePeriodEnd,
				OffsetDays: 20,
				Adjustment: models.AdjustNextWorkingDay,
			},
			Penalty: models.PenaltySpec{
				Type:        models.PenaltyPerDay,
				DailyAmount: decimal.NewFromInt(50),
				MaxPenalty:  &fiveThousand,
			},
			Criticality:        8,
			AmberThresholdDays: 7,
			RedThresholdDays:   0,
			EffectiveFrom:      effectiveFrom,
		},
		{
			Code:        "GSTR-1",
			Name:        "GSTR-1 Outward Supplies Return",
			Description: "Monthly statement of outward supplies under GST",
			Domain:      models.DomainTaxGST,
			Frequency:   models.FrequencyMonthly,
			Applicability: models.ApplicabilityCriteria{
				RequiresGST: true,
			},
			DueDate: models.DueDateSpec{
				BaseDate:   models.BaseDatePeriodEnd,
				OffsetDays: 11,
				Adjustment: models.AdjustNextWorkingDay,
			},
			Penalty: models.PenaltySpec{
				Type:        models.PenaltyPerDay,
				DailyAmount: decimal.NewFromInt(50),
				MaxPenalty:  &tenThousand,
			},
			Criticality:        7,
			AmberThresholdDays: 7,
			RedThresholdDays:   0,
			EffectiveFrom:      effectiveFrom,
		},
		{
			Code:        "GSTR-9",
			Name:        "GSTR-9 Annual Return",
			Description: "Annual consolidated GST return",
			Domain:      models.DomainTaxGST,
			Frequency:   models.FrequencyAnnual,
			Applicability: models.ApplicabilityCriteria{
				RequiresGST: true,
			},
			DueDate: models.DueDateSpec{
				BaseDate:     models.BaseDatePeriodEnd,
				OffsetMonths: 9,
			},
			Penalty: models.PenaltySpec{
				Type:        models.PenaltyPerDay,
				DailyAmount: decimal.NewFromInt(200),
			},
			Criticality:        6,
			AmberThresholdDays: 30,
			RedThresholdDays:   15,
			DependsOnRules:     models.StringArray{"GSTR-3B"},
			EffectiveFrom:      effectiveFrom,
		},
		{
			Code:        "PF-ECR",
			Name:        "EPF Electronic Challan cum Return",
			Description: "Monthly provident fund contribution and return",
			Domain:      models.DomainLabour,
			Frequency:   models.FrequencyMonthly,
			Applicability: models.ApplicabilityCriteria{
				RequiresPF: true,
			},
			DueDate: models.DueDateSpec{
				BaseDate:   models.BaseDatePeriodEnd,
				OffsetDays: 15,
				Adjustment: models.AdjustNextWorkingDay,
			},
			Penalty: models.PenaltySpec{
				Type:         models.PenaltyPercentagePerMonth,
				BaseAmount:   decimal.NewFromInt(100000),
				InterestRate: decimal.NewFromInt(1),
			},
			Criticality:        7,
			AmberThresholdDays: 5,
			RedThresholdDays:   10,
			EffectiveFrom:      effectiveFrom,
		},
		{
			Code:        "AOC-4",
			Name:        "AOC-4 Financial Statement Filing",
			Description: "Annual filing of financial statements with the registrar",
			Domain:      models.DomainCorporate,
			Frequency:   models.FrequencyAnnual,
			Applicability: models.ApplicabilityCriteria{
				EntityTypes: []string{"private_limited", "public_limited", "opc"},
			},
			DueDate: models.DueDateSpec{
				BaseDate:     models.BaseDatePeriodEnd,
				OffsetMonths: 7,
			},
			Penalty: models.PenaltySpec{
				Type:        models.PenaltyPerDay,
				DailyAmount: decimal.NewFromInt(100),
			},
			Criticality:        8,
			AmberThresholdDays: 30,
			RedThresholdDays:   30,
			EffectiveFrom:      effectiveFrom,
		},
		{
			Code:        "INC-20A",
			Name:        "Declaration of Commencement of Business",
			Description: "One-time declaration within 180 days of incorporation",
			Domain:      models.DomainCorporate,
			Frequency:   models.FrequencyOneTime,
			Applicability: models.ApplicabilityCriteria{
				EntityTypes: []string{"private_limited", "public_limited", "opc"},
			},
			DueDate: models.DueDateSpec{
				BaseDate:   models.BaseDateIncorporation,
				OffsetDays: 180,
			},
			Penalty: models.PenaltySpec{
				Type: models.PenaltySlabBased,
				Slabs: []models.PenaltySlab{
					{DaysFrom: 1, DaysTo: 30, Amount: decimal.NewFromInt(50000)},
					{DaysFrom: 31, DaysTo: 90, Amount: decimal.NewFromInt(75000)},
					{DaysFrom: 91, DaysTo: 0, Amount: decimal.NewFromInt(100000)},
				},
			},
			Criticality:        9,
			AmberThresholdDays: 30,
			RedThresholdDays:   0,
			EffectiveFrom:      effectiveFrom,
		},
		{
			Code:        "PT-MH",
			Name:        "Maharashtra Professional Tax Return",
			Description: "Monthly professional tax return for Maharashtra establishments",
			Domain:      models.DomainStatutory,
			Frequency:   models.FrequencyMonthly,
			Applicability: models.ApplicabilityCriteria{
				StateSpecific: true,
				States:        []string{"MH"},
			},
			DueDate: models.DueDateSpec{
				BaseDate:   models.BaseDatePeriodEnd,
				OffsetDays: 31, // last day of the following month
			},
			GraceDays: 10,
			Penalty: models.PenaltySpec{
				Type:         models.PenaltyFormula,
				BaseAmount:   decimal.NewFromInt(25000),
				InterestRate: decimal.NewFromInt(18),
				Formula:      "baseAmount * rate / 100 / 12 * (overdueDays / 30 + 1)",
			},
			Criticality:        4,
			AmberThresholdDays: 7,
			RedThresholdDays:   30,
			EffectiveFrom:      effectiveFrom,
		},
	}
}
