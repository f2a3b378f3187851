// Package amortization holds the pure calculation layer: EMI formula, schedule
// generation, recomputation, savings projection and yearly aggregation.
// Nothing in here formats values for display.
package amortization

import (
	"math"

	"github.com/mcclellann/emiTracker/pkg/models"
)

// MonthlyTotals supplies the ledger total recorded against a month.
type MonthlyTotals interface {
	TotalForMonth(month int) float64
}

func totalFor(t MonthlyTotals, month int) float64 {
	if t == nil {
		return 0
	}
	return t.TotalForMonth(month)
}

// MonthlyRate converts an annual percentage to the per-month fraction.
func MonthlyRate(annualRate float64) float64 {
	return (annualRate / 100) / 12
}

// EMI returns the equated monthly installment rounded to the nearest whole unit.
// It returns 0 when any input is missing or not positive.
func EMI(principal, annualRate float64, tenureMonths int) int64 {
	if !(principal > 0) || !(annualRate > 0) || tenureMonths <= 0 {
		return 0
	}
	r := MonthlyRate(annualRate)
	growth := math.Pow(1+r, float64(tenureMonths))
	emi := principal * r * growth / (growth - 1)
	if math.IsNaN(emi) || math.IsInf(emi, 0) {
		return 0
	}
	return int64(math.Round(emi))
}

// rowRate picks the per-row override, falling back to the global rate.
func rowRate(row *models.ScheduleRow, globalRate float64) float64 {
	if row.InterestRate > 0 {
		return row.InterestRate
	}
	return globalRate
}

// rowEMI picks the installment a row is scheduled to pay.
func rowEMI(row *models.ScheduleRow, nominal float64) float64 {
	if row.ScheduledEMI > 0 {
		return row.ScheduledEMI
	}
	return nominal
}
