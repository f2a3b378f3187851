package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/mcclellann/emiTracker/pkg/ledger"
	"github.com/mcclellann/emiTracker/pkg/report"
)

// ExportPaymentDetails writes prepayments and charges side by side, one line
// per entry index within each month of the schedule.
func ExportPaymentDetails(w io.Writer, months int, prepayments, charges *ledger.Ledger) error {
	page := report.PaymentPage(months, prepayments, charges)
	records := make([][]string, 0, len(page.Lines))
	for _, line := range page.Lines {
		rec := make([]string, 7)
		rec[0] = strconv.Itoa(line.Month)
		if p := line.Prepayment; p != nil {
			rec[1], rec[2], rec[3] = Amount(p.Amount), p.Date, p.Description
		}
		if c := line.Charge; c != nil {
			rec[4], rec[5], rec[6] = Amount(c.Amount), c.Date, c.Description
		}
		records = append(records, rec)
	}
	header := []string{"Month", "Pre-payment Amount", "Pre-payment Date", "Pre-payment Description", "Other Charges", "Other Charges Date", "Other Charges Description"}
	return writeFlat(w, header, records)
}

// ExportPrepaymentDetails writes one numbered line per prepayment.
func ExportPrepaymentDetails(w io.Writer, months int, prepayments *ledger.Ledger) error {
	header := []string{"Month", "Pre-payment Number", "Pre-payment Amount", "Pre-payment Date", "Pre-payment Description"}
	return writeFlat(w, header, numbered(months, prepayments))
}

// ExportChargeDetails writes one numbered line per charge.
func ExportChargeDetails(w io.Writer, months int, charges *ledger.Ledger) error {
	header := []string{"Month", "Other Charges Number", "Other Charges Amount", "Other Charges Date", "Other Charges Description"}
	return writeFlat(w, header, numbered(months, charges))
}

func numbered(months int, l *ledger.Ledger) [][]string {
	page := report.EntryPage(months, l)
	records := make([][]string, 0, len(page.Lines))
	for _, line := range page.Lines {
		records = append(records, []string{strconv.Itoa(line.Month), strconv.Itoa(line.Number), Amount(line.Amount), line.Date, line.Description})
	}
	return records
}

func writeFlat(w io.Writer, header []string, records [][]string) error {
	if len(records) == 0 {
		return ErrNothingToExport
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}
	return nil
}
