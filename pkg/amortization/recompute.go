package amortization

import (
	"errors"
	"math"

	"github.com/mcclellann/emiTracker/pkg/models"
)

var (
	ErrEmptySchedule = errors.New("schedule has no rows")
	ErrNewRate       = errors.New("new interest rate must be a positive number")
	ErrNewEMI        = errors.New("new emi must be a positive number")
)

// Recompute re-derives every row from month 1 in place, chaining each opening
// balance to the previous closing balance. Closing balances floor at zero and
// the walk continues past a zero balance.
func Recompute(rows []models.ScheduleRow, params models.LoanParameters, prepayments, charges MonthlyTotals) {
	opening := params.Principal
	for i := range rows {
		opening = projectRow(&rows[i], opening, rowRate(&rows[i], params.AnnualRate), rowEMI(&rows[i], params.EMI), prepayments, charges)
	}
}

// projectRow fills one row from its opening balance and returns its closing balance.
func projectRow(row *models.ScheduleRow, opening, annualRate, emi float64, prepayments, charges MonthlyTotals) float64 {
	interest := opening * MonthlyRate(annualRate)
	principal := math.Max(0, emi-interest)
	prepayment := totalFor(prepayments, row.Month)
	charge := totalFor(charges, row.Month)
	closing := math.Max(0, opening-principal-prepayment+charge)

	row.OpeningBalance = opening
	row.InterestAmount = interest
	row.PrincipalAmount = principal
	row.EMIAmount = interest + principal
	row.Prepayment = prepayment
	row.Charges = charge
	row.ClosingBalance = closing
	return closing
}

// LastPaidIndex returns the index of the last row flagged paid, or -1.
func LastPaidIndex(rows []models.ScheduleRow) int {
	last := -1
	for i := range rows {
		if rows[i].Paid {
			last = i
		}
	}
	return last
}

// ChangeRateFrom re-projects every row after the last paid installment with
// newRate and newEMI. Paid rows and everything before them are left untouched.
// Each re-projected row keeps newRate as its override and newEMI as its
// scheduled installment, so a later Recompute reproduces the same figures.
// It returns the first re-projected month, or 0 when every row is paid.
func ChangeRateFrom(rows []models.ScheduleRow, params models.LoanParameters, newRate, newEMI float64, prepayments, charges MonthlyTotals) (int, error) {
	if len(rows) == 0 {
		return 0, ErrEmptySchedule
	}
	if !(newRate > 0) || math.IsInf(newRate, 0) {
		return 0, ErrNewRate
	}
	if !(newEMI > 0) || math.IsInf(newEMI, 0) {
		return 0, ErrNewEMI
	}

	last := LastPaidIndex(rows)
	opening := params.Principal
	if last >= 0 {
		opening = rows[last].ClosingBalance
	}
	start := last + 1
	if start >= len(rows) {
		return 0, nil
	}

	for i := start; i < len(rows); i++ {
		rows[i].InterestRate = newRate
		rows[i].ScheduledEMI = newEMI
		opening = projectRow(&rows[i], opening, newRate, newEMI, prepayments, charges)
	}
	return rows[start].Month, nil
}
