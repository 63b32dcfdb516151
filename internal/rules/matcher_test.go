package rules

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian/comply/internal/models"
)

func matchProfile() *models.EntityProfile {
	turnover := decimal.NewFromInt(50_000_000)
	employees := 35
	return &models.EntityProfile{
		ID:             uuid.New(),
		Name:           "Veridian Textiles Pvt Ltd",
		EntityType:     "private_limited",
		State:          "MH",
		AnnualTurnover: &turnover,
		EmployeeCount:  &employees,
		GSTRegistered:  true,
		PFRegistered:   true,
		Active:         true,
	}
}

func TestMatchCriteria(t *testing.T) {
	asOf := time.Date(2026, time.August, 25, 0, 0, 0, 0, time.UTC)
	turnoverFloor := decimal.NewFromInt(100_000_000)
	minEmployees := 20

	gst := validRule("GSTR-3B")
	gst.Applicability.RequiresGST = true

	esi := validRule("ESI-CONTRIB")
	esi.Applicability.RequiresESI = true

	bigCo := validRule("COST-AUDIT")
	bigCo.Applicability.TurnoverMin = &turnoverFloor

	pf := validRule("PF-ECR")
	pf.Applicability.RequiresPF = true
	pf.Applicability.MinEmployees = &minEmployees

	llpOnly := validRule("LLP-FORM-11")
	llpOnly.Applicability.EntityTypes = []string{"llp"}

	ptMH := validRule("PT-MH")
	ptMH.Applicability.StateSpecific = true
	ptMH.Applicability.States = []string{"MH"}

	ptKA := validRule("PT-KA")
	ptKA.Applicability.StateSpecific = true
	ptKA.Applicability.States = []string{"KA"}

	snap := loadSnapshot(t, asOf, gst, esi, bigCo, pf, llpOnly, ptMH, ptKA)
	result := Match(matchProfile(), snap, nil)

	codes := make([]string, 0, len(result.Applicable))
	for _, r := range result.Applicable {
		codes = append(codes, r.Code)
	}

	// GST and PF registrations hold, headcount clears the PF floor, and the
	// entity sits in MH; turnover is below the cost audit floor, ESI is not
	// registered, and the LLP and KA rules miss on type and state.
	assert.Equal(t, []string{"GSTR-3B", "PF-ECR", "PT-MH"}, codes)
	assert.Empty(t, result.Skipped)
	assert.Empty(t, result.DependencyExcluded)
}

func TestMatchMissingProfileDataSkips(t *testing.T) {
	asOf := time.Date(2026, time.August, 25, 0, 0, 0, 0, time.UTC)
	turnoverFloor := decimal.NewFromInt(10_000_000)
	minEmployees := 10

	turnoverRule := validRule("GSTR-9C")
	turnoverRule.Applicability.TurnoverMin = &turnoverFloor

	headcountRule := validRule("PF-ECR")
	headcountRule.Applicability.MinEmployees = &minEmployees

	stateRule := validRule("PT-MH")
	stateRule.Applicability.StateSpecific = true
	stateRule.Applicability.States = []string{"MH"}

	profile := matchProfile()
	profile.AnnualTurnover = nil
	profile.EmployeeCount = nil
	profile.State = ""

	snap := loadSnapshot(t, asOf, turnoverRule, headcountRule, stateRule)
	result := Match(profile, snap, nil)

	assert.Empty(t, result.Applicable)
	require.Len(t, result.Skipped, 3)
	assert.Equal(t, SkippedRule{RuleCode: "GSTR-9C", MissingField: "annual_turnover"}, result.Skipped[0])
	assert.Equal(t, SkippedRule{RuleCode: "PF-ECR", MissingField: "employee_count"}, result.Skipped[1])
	assert.Equal(t, SkippedRule{RuleCode: "PT-MH", MissingField: "state"}, result.Skipped[2])
}

func TestMatchDependencyExclusion(t *testing.T) {
	asOf := time.Date(2026, time.August, 25, 0, 0, 0, 0, time.UTC)

	monthly := validRule("GSTR-3B")
	monthly.Applicability.RequiresGST = true

	annual := validRule("GSTR-9")
	annual.Frequency = models.FrequencyAnnual
	annual.Applicability.RequiresGST = true
	annual.DependsOnRules = models.StringArray{"GSTR-3B"}

	snap := loadSnapshot(t, asOf, monthly, annual)
	profile := matchProfile()

	// Unsatisfied dependency keeps the annual return out.
	result := Match(profile, snap, map[string]bool{"GSTR-3B": false})
	require.Len(t, result.Applicable, 1)
	assert.Equal(t, "GSTR-3B", result.Applicable[0].Code)
	assert.Equal(t, []string{"GSTR-9"}, result.DependencyExcluded)

	// Satisfied dependency admits it.
	result = Match(profile, snap, map[string]bool{"GSTR-3B": true})
	require.Len(t, result.Applicable, 2)
	assert.Empty(t, result.DependencyExcluded)
}

func TestMatchDependencyOnInapplicableRuleIgnored(t *testing.T) {
	asOf := time.Date(2026, time.August, 25, 0, 0, 0, 0, time.UTC)

	monthly := validRule("GSTR-3B")
	monthly.Applicability.RequiresGST = true

	annual := validRule("GSTR-9")
	annual.Frequency = models.FrequencyAnnual
	annual.DependsOnRules = models.StringArray{"GSTR-3B"}

	profile := matchProfile()
	profile.GSTRegistered = false

	snap := loadSnapshot(t, asOf, monthly, annual)
	result := Match(profile, snap, map[string]bool{})

	// GSTR-3B does not apply to this entity, so it cannot block GSTR-9.
	require.Len(t, result.Applicable, 1)
	assert.Equal(t, "GSTR-9", result.Applicable[0].Code)
	assert.Empty(t, result.DependencyExcluded)
}

func TestMatchTurnoverBounds(t *testing.T) {
	asOf := time.Date(2026, time.August, 25, 0, 0, 0, 0, time.UTC)
	lo := decimal.NewFromInt(10_000_000)
	hi := decimal.NewFromInt(100_000_000)

	banded := validRule("QRMP-OPT")
	banded.Applicability.TurnoverMin = &lo
	banded.Applicability.TurnoverMax = &hi

	snap := loadSnapshot(t, asOf, banded)

	inBand := matchProfile()
	result := Match(inBand, snap, nil)
	assert.Len(t, result.Applicable, 1)

	above := matchProfile()
	big := decimal.NewFromInt(500_000_000)
	above.AnnualTurnover = &big
	result = Match(above, snap, nil)
	assert.Empty(t, result.Applicable)

	below := matchProfile()
	small := decimal.NewFromInt(5_000_000)
	below.AnnualTurnover = &small
	result = Match(below, snap, nil)
	assert.Empty(t, result.Applicable)
}
