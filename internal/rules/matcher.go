package rules

import (
	"sort"

	"github.com/veridian/comply/internal/models"
)

// SkippedRule records a rule that could not be evaluated because the entity
// profile is missing a field the rule's criteria need. Skips are warnings,
// not failures: they lower the data-completeness score.
type SkippedRule struct {
	RuleCode     string
	MissingField string
}

// MatchResult is the deterministic output of applicability matching.
// Applicable is sorted by rule code so repeated runs with unchanged inputs
// aggregate in identical order.
type MatchResult struct {
	Applicable         []models.ComplianceRule
	Skipped            []SkippedRule
	DependencyExcluded []string
}

// Match selects the rules from a catalog snapshot that apply to one entity.
// depSatisfied reports whether a rule code is already fulfilled (filed or
// waived) for its current period; rules listing dependencies are excluded
// unless every dependency is itself inapplicable or satisfied, which keeps
// composite obligations from being double-counted.
func Match(profile *models.EntityProfile, snap *Snapshot, depSatisfied map[string]bool) *MatchResult {
	result := &MatchResult{}
	applicable := make(map[string]models.ComplianceRule)

	for _, rule := range snap.Rules {
		ok, missing := criteriaMatch(&rule.Applicability, profile)
		if missing != "" {
			result.Skipped = append(result.Skipped, SkippedRule{RuleCode: rule.Code, MissingField: missing})
			continue
		}
		if ok {
			applicable[rule.Code] = rule
		}
	}

	for code, rule := range applicable {
		if !dependenciesMet(&rule, applicable, depSatisfied) {
			result.DependencyExcluded = append(result.DependencyExcluded, code)
			continue
		}
		result.Applicable = append(result.Applicable, rule)
	}

	sort.Slice(result.Applicable, func(i, j int) bool {
		return result.Applicable[i].Code < result.Applicable[j].Code
	})
	sort.Strings(result.DependencyExcluded)
	sort.Slice(result.Skipped, func(i, j int) bool {
		return result.Skipped[i].RuleCode < result.Skipped[j].RuleCode
	})

	return result
}

// criteriaMatch reports whether the entity satisfies the rule's criteria,
// or which profile field was missing when a bound needed it.
func criteriaMatch(c *models.ApplicabilityCriteria, p *models.EntityProfile) (bool, string) {
	if len(c.EntityTypes) > 0 && !contains(c.EntityTypes, p.EntityType) {
		return false, ""
	}

	if c.TurnoverMin != nil || c.TurnoverMax != nil {
		if p.AnnualTurnover == nil {
			return false, "annual_turnover"
		}
		if c.TurnoverMin != nil && p.AnnualTurnover.LessThan(*c.TurnoverMin) {
			return false, ""
		}
		if c.TurnoverMax != nil && p.AnnualTurnover.GreaterThan(*c.TurnoverMax) {
			return false, ""
		}
	}

	if c.MinEmployees != nil {
		if p.EmployeeCount == nil {
			return false, "employee_count"
		}
		if *p.EmployeeCount < *c.MinEmployees {
			return false, ""
		}
	}

	if c.RequiresGST && !p.GSTRegistered {
		return false, ""
	}
	if c.RequiresPF && !p.PFRegistered {
		return false, ""
	}
	if c.RequiresESI && !p.ESIRegistered {
		return false, ""
	}

	if c.StateSpecific {
		if p.State == "" {
			return false, "state"
		}
		if !contains(c.States, p.State) {
			return false, ""
		}
	}

	return true, ""
}

func dependenciesMet(rule *models.ComplianceRule, applicable map[string]models.ComplianceRule, depSatisfied map[string]bool) bool {
	for _, dep := range rule.DependsOnRules {
		if _, isApplicable := applicable[dep]; !isApplicable {
			continue
		}
		if !depSatisfied[dep] {
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
