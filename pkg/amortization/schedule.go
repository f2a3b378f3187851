package amortization

import (
	"fmt"

	"github.com/mcclellann/emiTracker/pkg/models"
)

// Schedule is the output of a fresh generation pass.
type Schedule struct {
	Rows          []models.ScheduleRow `json:"rows"`
	TotalInterest float64              `json:"total_interest"`
	TotalPayable  float64              `json:"total_payable"`
	Years         int                  `json:"years"`
}

// Generate builds the baseline table for params. Ledger totals are copied onto
// the rows for display only; they do not move the balances here, and the
// closing balance is deliberately left unclamped (see Recompute for the
// clamped walk).
func Generate(params models.LoanParameters, prepayments, charges MonthlyTotals) (*Schedule, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid loan parameters: %w", err)
	}

	rows := make([]models.ScheduleRow, 0, params.TenureMonths)
	opening := params.Principal
	totalInterest := 0.0
	rate := MonthlyRate(params.AnnualRate)

	for month := 1; month <= params.TenureMonths; month++ {
		interest := opening * rate
		principal := params.EMI - interest
		closing := opening - principal
		totalInterest += interest

		rows = append(rows, models.ScheduleRow{
			Month:           month,
			OpeningBalance:  opening,
			InterestRate:    params.AnnualRate,
			InterestAmount:  interest,
			PrincipalAmount: principal,
			EMIAmount:       params.EMI,
			Prepayment:      totalFor(prepayments, month),
			Charges:         totalFor(charges, month),
			ClosingBalance:  closing,
		})
		opening = closing
	}

	return &Schedule{
		Rows:          rows,
		TotalInterest: totalInterest,
		TotalPayable:  params.Principal + totalInterest,
		Years:         YearCount(params.TenureMonths),
	}, nil
}
