// Package csvio reads and writes the CSV exchange formats of a loan.
package csvio

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mcclellann/emiTracker/pkg/ledger"
	"github.com/mcclellann/emiTracker/pkg/models"
	"github.com/mcclellann/emiTracker/pkg/session"
)

// Section markers of the complete export.
const (
	MarkerIdentity = "### LOAN IDENTITY ###"
	MarkerDetails  = "### LOAN DETAILS ###"
	MarkerSchedule = "### MONTHLY SCHEDULE ###"
	MarkerRowState = "### ROW STATE ###"
	MarkerEntries  = "### LEDGER ENTRIES ###"
)

// listSeparator joins several ledger entries of one month within a cell.
const listSeparator = "; "

var (
	identityHeader = []string{"Loan Name", "Loan Type", "Custom Loan Type"}
	detailsHeader  = []string{"Loan Amount", "Interest Rate (%)", "Total Tenure (months)", "Monthly EMI", "Is EMI Auto Calculated"}
	scheduleHeader = []string{
		"EMI Paid", "Month", "Opening Balance", "Interest Rate (%)", "Interest", "Principal", "EMI",
		"Pre-payment", "Pre-payment Date", "Pre-payment Description",
		"Other Charges", "Other Charges Date", "Other Charges Description", "Closing Balance",
	}
	rowStateHeader = []string{"Month", "Scheduled EMI"}
	entriesHeader  = []string{"Kind", "Month", "Amount", "Date", "Description"}
)

var ErrNothingToExport = errors.New("nothing to export")

// Amount renders a value with two decimals.
func Amount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// sectionWriter writes CSV records with a blank line between sections.
type sectionWriter struct {
	buf      bytes.Buffer
	csv      *csv.Writer
	sections int
}

func newSectionWriter() *sectionWriter {
	sw := &sectionWriter{}
	sw.csv = csv.NewWriter(&sw.buf)
	return sw
}

func (sw *sectionWriter) section(marker string, header []string, rows ...[]string) error {
	sw.csv.Flush()
	if sw.sections > 0 {
		sw.buf.WriteString("\n")
	}
	sw.sections++
	sw.buf.WriteString(marker + "\n")
	if err := sw.csv.Write(header); err != nil {
		return err
	}
	return sw.csv.WriteAll(rows)
}

func (sw *sectionWriter) writeTo(w io.Writer) error {
	sw.csv.Flush()
	if err := sw.csv.Error(); err != nil {
		return err
	}
	_, err := w.Write(sw.buf.Bytes())
	return err
}

// Export writes the complete loan: identity, parameters, schedule, the
// installments set by a rate change and every ledger entry.
func Export(w io.Writer, profile *models.LoanProfile, s *session.Session) error {
	if !s.HasSchedule() {
		return session.ErrNoSchedule
	}

	name, loanType, customType := "My Loan", string(models.LoanTypePersonal), ""
	if profile != nil {
		name, loanType, customType = profile.Name, string(profile.Type), profile.CustomType
	}
	p := s.Params()
	prep, chg := s.Prepayments(), s.Charges()

	sw := newSectionWriter()
	if err := sw.section(MarkerIdentity, identityHeader, []string{name, loanType, customType}); err != nil {
		return fmt.Errorf("failed to write identity: %w", err)
	}
	details := []string{number(p.Principal), number(p.AnnualRate), strconv.Itoa(p.TenureMonths), number(p.EMI), yesNo(s.EMIAuto())}
	if err := sw.section(MarkerDetails, detailsHeader, details); err != nil {
		return fmt.Errorf("failed to write details: %w", err)
	}

	rows := s.Rows()
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		pAmt, pDates, pDescs := joinEntries(prep, row.Month)
		cAmt, cDates, cDescs := joinEntries(chg, row.Month)
		records = append(records, []string{
			yesNo(row.Paid),
			strconv.Itoa(row.Month),
			Amount(row.OpeningBalance),
			number(row.InterestRate),
			Amount(row.InterestAmount),
			Amount(row.PrincipalAmount),
			Amount(row.EMIAmount),
			pAmt, pDates, pDescs,
			cAmt, cDates, cDescs,
			Amount(row.ClosingBalance),
		})
	}
	if err := sw.section(MarkerSchedule, scheduleHeader, records...); err != nil {
		return fmt.Errorf("failed to write schedule: %w", err)
	}

	var scheduled [][]string
	for _, row := range rows {
		if row.ScheduledEMI > 0 {
			scheduled = append(scheduled, []string{strconv.Itoa(row.Month), number(row.ScheduledEMI)})
		}
	}
	if len(scheduled) > 0 {
		if err := sw.section(MarkerRowState, rowStateHeader, scheduled...); err != nil {
			return fmt.Errorf("failed to write row state: %w", err)
		}
	}

	entries := entryRecords(models.LedgerKindPrepayment, prep)
	entries = append(entries, entryRecords(models.LedgerKindCharge, chg)...)
	if len(entries) > 0 {
		if err := sw.section(MarkerEntries, entriesHeader, entries...); err != nil {
			return fmt.Errorf("failed to write ledger entries: %w", err)
		}
	}

	return sw.writeTo(w)
}

// joinEntries sums the entries of month and joins their dates and
// descriptions, keeping both lists aligned with the entries.
func joinEntries(l *ledger.Ledger, month int) (string, string, string) {
	entries := l.Entries(month)
	if len(entries) == 0 {
		return Amount(0), "", ""
	}
	dates := make([]string, len(entries))
	descs := make([]string, len(entries))
	for i, e := range entries {
		dates[i] = e.Date
		descs[i] = e.Description
	}
	return Amount(l.TotalForMonth(month)), strings.Join(dates, listSeparator), strings.Join(descs, listSeparator)
}

func entryRecords(kind models.LedgerKind, l *ledger.Ledger) [][]string {
	var out [][]string
	for _, m := range l.Months() {
		for _, e := range l.Entries(m) {
			out = append(out, []string{string(kind), strconv.Itoa(m), number(e.Amount), e.Date, e.Description})
		}
	}
	return out
}
