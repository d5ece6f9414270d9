// Package taxrules evaluates a fixed table of tax-saving rules against a user's profile.
//
// Rules are plain data: a name, a predicate, a suggestion builder and a display limit.
// Evaluate is the single interpreter that runs them, in table order.
package taxrules

import (
	"fmt"

	"github.com/BTreeMap/TaxPro/internal/models"
)

// Statutory thresholds used by the default rules, in rupees.
const (
	// Section80CCap is the maximum 80C deduction.
	Section80CCap = 150000
	// Section87AIncomeLimit is the highest taxable income that still gets the 87A rebate.
	Section87AIncomeLimit = 1200000
)

// NoSuggestionsMessage is shown when no rule applies.
const NoSuggestionsMessage = "Great job! You're maximizing basic tax-saving options."

// Rule is one named check. Condition decides whether it applies; Suggest builds
// the text, which may interpolate profile values.
type Rule struct {
	Name      string
	Condition func(p models.TaxProfile) bool
	Suggest   func(p models.TaxProfile) string
	Limit     string
}

// Applies reports whether the rule's condition holds for p.
func (r Rule) Applies(p models.TaxProfile) bool {
	return r.Condition != nil && r.Condition(p)
}

// Apply builds the suggestion row for p without checking the condition.
func (r Rule) Apply(p models.TaxProfile) models.Suggestion {
	text := ""
	if r.Suggest != nil {
		text = r.Suggest(p)
	}
	return models.Suggestion{Rule: r.Name, Text: text, Limit: r.Limit}
}

var defaultRules = []Rule{
	{
		Name:      "HRA",
		Condition: func(p models.TaxProfile) bool { return p.RentPaid > 0 && !p.HRAClaimed },
		Suggest:   func(models.TaxProfile) string { return "Claim HRA exemption using rent receipts" },
		Limit:     "Actual HRA received, rent paid minus 10% of salary, or 50%/40%/30% of salary (metro/non-metro)",
	},
	{
		Name:      "80C",
		Condition: func(p models.TaxProfile) bool { return p.Investment80C < Section80CCap },
		Suggest: func(p models.TaxProfile) string {
			return fmt.Sprintf("Invest %s more in LIC/PPF/ELSS for full 80C benefit", Rupees(Section80CCap-p.Investment80C))
		},
		Limit: "₹1.5 lakh",
	},
	{
		Name:      "80D",
		Condition: func(p models.TaxProfile) bool { return p.HealthInsurance == 0 },
		Suggest:   func(models.TaxProfile) string { return "Buy health insurance to claim up to ₹25,000 deduction" },
		Limit:     "₹25,000 (₹50,000 for seniors)",
	},
	{
		Name:      "87A",
		Condition: func(p models.TaxProfile) bool { return p.TaxableIncome <= Section87AIncomeLimit },
		Suggest:   func(models.TaxProfile) string { return "You qualify for Section 87A rebate - ₹12,500 tax relief!" },
		Limit:     "Taxable income ≤ ₹12L",
	},
}

// DefaultRules returns the built-in ruleset in evaluation order.
// The returned slice is a copy; the table itself is never mutated.
func DefaultRules() []Rule {
	rules := make([]Rule, len(defaultRules))
	copy(rules, defaultRules)
	return rules
}

// Result is the ordered list of applicable suggestions.
type Result struct {
	Suggestions []models.Suggestion
}

// Empty reports that no rule applied.
func (r Result) Empty() bool {
	return len(r.Suggestions) == 0
}

// Names returns the rule names in result order.
func (r Result) Names() []string {
	names := make([]string, 0, len(r.Suggestions))
	for _, s := range r.Suggestions {
		names = append(names, s.Rule)
	}
	return names
}

// Evaluate runs every rule against p in table order and collects the ones that apply.
func Evaluate(p models.TaxProfile, rules []Rule) Result {
	var res Result
	for _, rule := range rules {
		if rule.Applies(p) {
			res.Suggestions = append(res.Suggestions, rule.Apply(p))
		}
	}
	return res
}

// Optimize validates p, evaluates the default rules and attaches the breakdown.
func Optimize(p models.TaxProfile) (models.OptimizationResult, error) {
	if err := p.Validate(); err != nil {
		return models.OptimizationResult{}, err
	}
	res := Evaluate(p, defaultRules)
	out := models.OptimizationResult{
		Suggestions: res.Suggestions,
		Breakdown:   Breakdown(p),
	}
	if res.Empty() {
		out.Suggestions = []models.Suggestion{}
		out.Message = NoSuggestionsMessage
	}
	return out, nil
}

// Rupees formats an amount as whole rupees, e.g. ₹100000.
func Rupees(amount float64) string {
	return fmt.Sprintf("₹%.0f", amount)
}
