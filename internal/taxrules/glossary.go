package taxrules

import (
	"sort"
	"strings"

	"github.com/BTreeMap/TaxPro/internal/models"
)

// glossary is static reference data; it plays no part in rule evaluation.
var glossary = map[string]models.GlossaryEntry{
	"80C": {
		Description: "Invest in savings plans & pay less tax!",
		Example:     "Invest ₹1.5L in LIC, PPF, or ELSS to reduce taxable income",
		Limit:       "₹1.5 lakh deduction",
	},
	"HRA": {
		Description: "Tax benefit for paying rent!",
		Example:     "Claim deduction by submitting rent receipts to your employer",
		Limit:       "Minimum of: Actual HRA, Rent paid - 10% salary, or 50%/40% salary (metro/non-metro)",
	},
	"TDS": {
		Description: "Tax Deducted at Source - prepaid tax by employer",
		Example:     "₹5K deducted from ₹60K salary as advance tax payment",
		Limit:       "As per income tax slabs",
	},
	"Section 87A": {
		Description: "Rebate for income under ₹12L",
		Example:     "If taxable income is ₹10L, pay ₹0 tax!",
		Limit:       "Available for incomes ≤ ₹12L",
	},
}

// Glossary returns every entry sorted by term.
func Glossary() []models.GlossaryEntry {
	entries := make([]models.GlossaryEntry, 0, len(glossary))
	for term, e := range glossary {
		e.Term = term
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Term < entries[j].Term })
	return entries
}

// LookupTerm finds an entry case-insensitively. "87A" also matches "Section 87A".
func LookupTerm(term string) (models.GlossaryEntry, bool) {
	want := normalizeTerm(term)
	if want == "" {
		return models.GlossaryEntry{}, false
	}
	for key, e := range glossary {
		if normalizeTerm(key) == want {
			e.Term = key
			return e, true
		}
	}
	return models.GlossaryEntry{}, false
}

func normalizeTerm(term string) string {
	t := strings.ToLower(strings.TrimSpace(term))
	t = strings.TrimPrefix(t, "section")
	return strings.TrimSpace(t)
}
