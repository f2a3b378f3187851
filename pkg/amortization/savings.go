package amortization

import (
	"math"

	"github.com/mcclellann/emiTracker/pkg/models"
)

// settledBalance is the threshold under which a simulated loan counts as closed.
const settledBalance = 0.01

// ProjectSavings summarizes the loan as of the last contiguous paid month and
// projects the remaining tenure and interest with the ledger entries recorded
// so far. Entries not yet recorded are invisible to the projection.
func ProjectSavings(rows []models.ScheduleRow, params models.LoanParameters, prepayments, charges MonthlyTotals) models.SavingsSummary {
	var s models.SavingsSummary
	balance := params.Principal

	for i := range rows {
		row := &rows[i]
		if !row.Paid {
			break
		}
		s.PaidMonths++

		emi := rowEMI(row, params.EMI)
		interest := balance * MonthlyRate(rowRate(row, params.AnnualRate))
		principal := math.Max(0, emi-interest)
		prepayment := totalFor(prepayments, row.Month)
		charge := totalFor(charges, row.Month)

		s.TotalInterestPaid += interest
		s.TotalPrincipalPaid += principal
		s.TotalEMIPaid += emi
		s.TotalPrepayment += prepayment
		s.TotalCharges += charge
		if prepayment > 0 {
			s.PrepaymentMonths++
		}
		if charge > 0 {
			s.ChargesMonths++
		}

		balance = math.Max(0, balance-principal-prepayment+charge)
	}
	s.CurrentBalance = balance

	if balance > 0 && s.PaidMonths < len(rows) {
		next := &rows[s.PaidMonths]
		s.RemainingTenure, s.RemainingUnbounded = RemainingMonths(balance,
			rowRate(next, params.AnnualRate), rowEMI(next, params.EMI), params.TenureMonths-s.PaidMonths)
		s.ProjectedInterest = projectInterest(rows[s.PaidMonths:min(s.PaidMonths+s.RemainingTenure, len(rows))],
			balance, params, prepayments, charges)
	}

	s.OriginalRemainingInterest = RemainingInterest(params.Principal, params.AnnualRate, params.TenureMonths, params.EMI, s.PaidMonths)
	s.InterestSaved = math.Max(0, s.OriginalRemainingInterest-s.ProjectedInterest)
	s.TimeSaved = max(0, (params.TenureMonths-s.PaidMonths)-s.RemainingTenure)

	baseline := Simulate(params.Principal, params.AnnualRate, params.TenureMonths, params.EMI, nil, nil)
	s.OriginalTotalInterest = baseline.TotalInterest
	s.OriginalTenure = baseline.ActualTenure
	return s
}

// RemainingMonths is the closed-form number of installments of emi needed to
// clear balance at annualRate. When emi does not cover the first month's
// interest it returns fallback and reports the tenure as unbounded.
func RemainingMonths(balance, annualRate, emi float64, fallback int) (int, bool) {
	if balance <= 0 {
		return 0, false
	}
	if !(emi > 0) {
		return max(0, fallback), true
	}
	r := MonthlyRate(annualRate)
	if r <= 0 {
		return int(math.Ceil(balance / emi)), false
	}
	if emi <= balance*r {
		return max(0, fallback), true
	}
	n := math.Ceil(-math.Log(1-balance*r/emi) / math.Log(1+r))
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return max(0, fallback), true
	}
	return int(n), false
}

func projectInterest(window []models.ScheduleRow, balance float64, params models.LoanParameters, prepayments, charges MonthlyTotals) float64 {
	total := 0.0
	for i := range window {
		row := &window[i]
		interest := balance * MonthlyRate(rowRate(row, params.AnnualRate))
		total += interest
		principal := math.Max(0, rowEMI(row, params.EMI)-interest)
		balance = balance - principal - totalFor(prepayments, row.Month) + totalFor(charges, row.Month)
		if balance <= 0 {
			break
		}
	}
	return total
}

// RemainingInterest is the interest still due after paidMonths on the plain
// schedule of the loan, with no prepayments or charges at any point.
func RemainingInterest(principal, annualRate float64, tenure int, emi float64, paidMonths int) float64 {
	r := MonthlyRate(annualRate)
	balance := principal
	for i := 0; i < paidMonths; i++ {
		balance = math.Max(0, balance-(emi-balance*r))
	}

	remaining := 0.0
	for i := paidMonths; i < tenure; i++ {
		if balance <= settledBalance {
			break
		}
		interest := balance * r
		remaining += interest
		balance = math.Max(0, balance-(emi-interest))
	}
	return remaining
}

// SimulationResult is the outcome of a full-loan simulation.
type SimulationResult struct {
	TotalInterest float64 `json:"total_interest"`
	ActualTenure  int     `json:"actual_tenure"`
	FinalBalance  float64 `json:"final_balance"`
}

// Simulate runs the loan from its original principal for up to tenure months.
// prepayments and charges are indexed by month offset (0 is month 1); missing
// entries count as zero. The run stops once the balance is settled.
func Simulate(principal, annualRate float64, tenure int, emi float64, prepayments, charges []float64) SimulationResult {
	r := MonthlyRate(annualRate)
	balance := principal
	var res SimulationResult

	for i := 0; i < tenure; i++ {
		if balance <= settledBalance {
			break
		}
		interest := balance * r
		res.TotalInterest += interest

		paid := math.Max(0, emi-interest) + at(prepayments, i)
		balance = math.Max(0, balance-paid+at(charges, i))
		res.ActualTenure++
	}
	res.FinalBalance = balance
	return res
}

func at(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return 0
}
