package report

import (
	"github.com/mcclellann/emiTracker/pkg/ledger"
	"github.com/mcclellann/emiTracker/pkg/models"
)

// PaymentLine pairs the i-th prepayment and i-th charge of a month. Either
// side may be missing.
type PaymentLine struct {
	Month      int                 `json:"month"`
	Prepayment *models.LedgerEntry `json:"prepayment,omitempty"`
	Charge     *models.LedgerEntry `json:"charge,omitempty"`
}

// PaymentDetails is the combined prepayment and charge history.
type PaymentDetails struct {
	Lines            []PaymentLine `json:"lines"`
	PrepaymentTotal  float64       `json:"prepayment_total"`
	PrepaymentMonths int           `json:"prepayment_months"`
	ChargesTotal     float64       `json:"charges_total"`
	ChargesMonths    int           `json:"charges_months"`
}

// EntryLine is one numbered ledger entry.
type EntryLine struct {
	Month  int `json:"month"`
	Number int `json:"number"`
	models.LedgerEntry
}

// EntryDetails is the history of a single ledger.
type EntryDetails struct {
	Lines  []EntryLine `json:"lines"`
	Total  float64     `json:"total"`
	Months int         `json:"months"`
}

// PaymentPage lists every month of the schedule that has a prepayment or a
// charge. Entries recorded beyond the schedule are left out.
func PaymentPage(months int, prepayments, charges *ledger.Ledger) PaymentDetails {
	var d PaymentDetails
	for month := 1; month <= months; month++ {
		prep, chg := prepayments.Entries(month), charges.Entries(month)
		if len(prep) > 0 {
			d.PrepaymentMonths++
		}
		if len(chg) > 0 {
			d.ChargesMonths++
		}
		for i := 0; i < max(len(prep), len(chg)); i++ {
			line := PaymentLine{Month: month}
			if i < len(prep) {
				line.Prepayment = &prep[i]
				d.PrepaymentTotal += prep[i].Amount
			}
			if i < len(chg) {
				line.Charge = &chg[i]
				d.ChargesTotal += chg[i].Amount
			}
			d.Lines = append(d.Lines, line)
		}
	}
	return d
}

// EntryPage lists every entry of l within the schedule, numbered per month.
func EntryPage(months int, l *ledger.Ledger) EntryDetails {
	var d EntryDetails
	for month := 1; month <= months; month++ {
		entries := l.Entries(month)
		if len(entries) == 0 {
			continue
		}
		d.Months++
		for i, e := range entries {
			d.Lines = append(d.Lines, EntryLine{Month: month, Number: i + 1, LedgerEntry: e})
			d.Total += e.Amount
		}
	}
	return d
}
