package taxrules

import "github.com/BTreeMap/TaxPro/internal/models"

// Breakdown splits income into the segments of the "Current Tax Breakdown" chart.
// Remaining taxable income is floored at zero.
func Breakdown(p models.TaxProfile) []models.BreakdownSlice {
	remaining := p.TaxableIncome - (p.Investment80C + p.HealthInsurance + p.RentPaid)
	if remaining < 0 {
		remaining = 0
	}
	return []models.BreakdownSlice{
		{Category: "80C Investments", Amount: p.Investment80C},
		{Category: "Health Insurance", Amount: p.HealthInsurance},
		{Category: "HRA", Amount: p.RentPaid},
		{Category: "Remaining Taxable", Amount: remaining},
	}
}

// Slabs returns the FY 2023-24 slab table shown next to the optimizer. Display only.
func Slabs() []models.TaxSlab {
	return []models.TaxSlab{
		{Range: "₹0-3L", Rate: "0%"},
		{Range: "₹3-6L", Rate: "5%"},
		{Range: "₹6-9L", Rate: "10%"},
		{Range: "₹9-12L", Rate: "15%"},
		{Range: "Above ₹12L", Rate: "30%"},
	}
}
