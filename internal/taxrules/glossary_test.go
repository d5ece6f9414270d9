package taxrules

import (
	"testing"

	"github.com/BTreeMap/TaxPro/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlossary_Sorted(t *testing.T) {
	entries := Glossary()
	require.Len(t, entries, 4)
	terms := []string{}
	for _, e := range entries {
		terms = append(terms, e.Term)
	}
	assert.Equal(t, []string{"80C", "HRA", "Section 87A", "TDS"}, terms)
}

func TestLookupTerm(t *testing.T) {
	for _, term := range []string{"hra", " HRA ", "87a", "section 87A"} {
		_, ok := LookupTerm(term)
		assert.True(t, ok, "lookup %q", term)
	}
	e, ok := LookupTerm("tds")
	require.True(t, ok)
	assert.Equal(t, "TDS", e.Term)
	assert.Equal(t, "As per income tax slabs", e.Limit)

	_, ok = LookupTerm("80E")
	assert.False(t, ok)
	_, ok = LookupTerm("")
	assert.False(t, ok)
}

func TestBreakdown(t *testing.T) {
	p := models.TaxProfile{TaxableIncome: 1000000, RentPaid: 120000, Investment80C: 150000, HealthInsurance: 25000}
	slices := Breakdown(p)
	require.Len(t, slices, 4)
	assert.Equal(t, "Remaining Taxable", slices[3].Category)
	assert.InDelta(t, 705000, slices[3].Amount, 0.001)

	slices = Breakdown(models.TaxProfile{TaxableIncome: 100, RentPaid: 500})
	assert.Zero(t, slices[3].Amount)
}

func TestSlabs(t *testing.T) {
	slabs := Slabs()
	require.Len(t, slabs, 5)
	assert.Equal(t, "30%", slabs[4].Rate)
}
