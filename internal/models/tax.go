// Package models defines tax optimization structures.
package models

import "math"

// TaxProfile is the numeric profile a user submits to the optimizer.
// Amounts are in rupees and must be non-negative.
type TaxProfile struct {
	TaxableIncome   float64 `json:"taxable_income"`
	RentPaid        float64 `json:"rent_paid"`
	Investment80C   float64 `json:"investment_80c"`
	HealthInsurance float64 `json:"health_insurance"`
	HRAClaimed      bool    `json:"hra_claimed"`
}

// Validate rejects negative and non-finite amounts.
func (p TaxProfile) Validate() error {
	var fields []FieldError
	check := func(name string, v float64) {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			fields = append(fields, FieldError{Field: name, Message: "must be a finite amount"})
		case v < 0:
			fields = append(fields, FieldError{Field: name, Message: "must not be negative"})
		}
	}
	check("taxable_income", p.TaxableIncome)
	check("rent_paid", p.RentPaid)
	check("investment_80c", p.Investment80C)
	check("health_insurance", p.HealthInsurance)
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Suggestion is one applicable tax-saving rule.
type Suggestion struct {
	Rule  string `json:"rule"`
	Text  string `json:"text"`
	Limit string `json:"limit"`
}

// GlossaryEntry explains a tax term. It is reference data only.
type GlossaryEntry struct {
	Term        string `json:"term"`
	Description string `json:"description"`
	Example     string `json:"example"`
	Limit       string `json:"limit"`
}

// BreakdownSlice is one segment of the current tax breakdown chart.
type BreakdownSlice struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// TaxSlab is one displayed income tax slab.
type TaxSlab struct {
	Range string `json:"range"`
	Rate  string `json:"rate"`
}

// OptimizationResult is what the optimizer returns for one profile.
type OptimizationResult struct {
	Suggestions []Suggestion     `json:"suggestions"`
	Message     string           `json:"message,omitempty"` // set when no rule applies
	Breakdown   []BreakdownSlice `json:"breakdown"`
}
