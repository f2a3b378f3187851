package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mcclellann/emiTracker/pkg/ledger"
	"github.com/mcclellann/emiTracker/pkg/models"
)

var (
	ErrMissingSection = errors.New("invalid CSV format: loan export sections are missing or out of order")
	ErrInvalidDetails = errors.New("invalid loan details format")
	ErrInvalidNumber  = errors.New("invalid loan parameters in CSV file")
	ErrNoMonthlyData  = errors.New("no valid monthly data found in CSV file")
	ErrInvalidEntry   = errors.New("invalid ledger entry in CSV file")
	ErrInvalidRow     = errors.New("invalid row state in CSV file")
)

// minScheduleColumns is the width of a schedule row; shorter rows are skipped.
const minScheduleColumns = 14

// Identity is the loan name and type carried by a complete export.
type Identity struct {
	Name       string
	Type       models.LoanType
	CustomType string
}

// Document is a fully parsed complete export, ready to be applied in one step.
type Document struct {
	Identity    *Identity
	Params      models.LoanParameters
	EMIAuto     bool
	States      []models.RowState
	Prepayments *ledger.Ledger
	Charges     *ledger.Ledger
}

// Import parses a complete export. Nothing is returned unless the whole file
// validates.
func Import(r io.Reader) (*Document, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	idx := map[string]int{MarkerIdentity: -1, MarkerDetails: -1, MarkerSchedule: -1, MarkerRowState: -1, MarkerEntries: -1}
	for i, rec := range records {
		if len(rec) == 0 {
			continue
		}
		marker := strings.TrimSpace(rec[0])
		if at, ok := idx[marker]; ok && at == -1 {
			idx[marker] = i
		}
	}
	identityAt, detailsAt, scheduleAt := idx[MarkerIdentity], idx[MarkerDetails], idx[MarkerSchedule]
	rowStateAt, entriesAt := idx[MarkerRowState], idx[MarkerEntries]
	if identityAt < 0 || detailsAt <= identityAt || scheduleAt <= detailsAt {
		return nil, ErrMissingSection
	}
	if (entriesAt >= 0 && entriesAt <= scheduleAt) || (rowStateAt >= 0 && rowStateAt <= scheduleAt) {
		return nil, ErrMissingSection
	}
	end := func(at int) int { return sectionEnd(idx, at, len(records)) }

	doc := &Document{}
	if identityAt+2 < detailsAt {
		doc.Identity = parseIdentity(records[identityAt+2])
	}

	if detailsAt+2 >= scheduleAt {
		return nil, ErrInvalidDetails
	}
	if err := parseDetails(records[detailsAt+2], doc); err != nil {
		return nil, err
	}

	scheduleEnd := end(scheduleAt)
	legacyPrep, legacyChg := ledger.New(), ledger.New()
	for _, rec := range records[min(scheduleAt+2, scheduleEnd):scheduleEnd] {
		if len(rec) < minScheduleColumns {
			continue
		}
		month, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil || month < 1 {
			continue
		}
		doc.States = append(doc.States, models.RowState{
			Month:   month,
			Rate:    parseRate(rec[3]),
			EMIPaid: strings.EqualFold(strings.TrimSpace(rec[0]), "yes"),
		})
		splitEntries(legacyPrep, month, rec[7], rec[8], rec[9])
		splitEntries(legacyChg, month, rec[10], rec[11], rec[12])
	}
	if len(doc.States) == 0 {
		return nil, ErrNoMonthlyData
	}

	if rowStateAt >= 0 {
		scheduled, err := parseRowState(records[min(rowStateAt+2, end(rowStateAt)):end(rowStateAt)])
		if err != nil {
			return nil, err
		}
		for i := range doc.States {
			if emi, ok := scheduled[doc.States[i].Month]; ok {
				doc.States[i].EMI = emi
			}
		}
	}

	doc.Prepayments, doc.Charges = legacyPrep, legacyChg
	if entriesAt >= 0 {
		prep, chg, err := parseEntries(records[min(entriesAt+2, end(entriesAt)):end(entriesAt)])
		if err != nil {
			return nil, err
		}
		doc.Prepayments, doc.Charges = prep, chg
	}
	return doc, nil
}

// sectionEnd returns the index of the first marker after start, or total.
func sectionEnd(idx map[string]int, start, total int) int {
	end := total
	for _, at := range idx {
		if at > start && at < end {
			end = at
		}
	}
	return end
}

func parseIdentity(rec []string) *Identity {
	if len(rec) < 2 || strings.TrimSpace(rec[0]) == "" {
		return nil
	}
	id := &Identity{Name: strings.TrimSpace(rec[0]), Type: models.LoanType(strings.TrimSpace(rec[1]))}
	if len(rec) > 2 {
		id.CustomType = strings.TrimSpace(rec[2])
	}
	if !id.Type.Valid() {
		id.Type = models.LoanTypePersonal
	}
	if id.Type != models.LoanTypeOther {
		id.CustomType = ""
	} else if id.CustomType == "" {
		id.Type = models.LoanTypePersonal
	}
	return id
}

func parseDetails(rec []string, doc *Document) error {
	nonEmpty := 0
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			nonEmpty++
		}
	}
	if nonEmpty < 4 || len(rec) < 4 {
		return ErrInvalidDetails
	}

	values := make([]decimal.Decimal, 4)
	for i := range values {
		d, err := decimal.NewFromString(strings.TrimSpace(rec[i]))
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidNumber, rec[i])
		}
		values[i] = d
	}
	if !values[2].IsInteger() {
		return fmt.Errorf("%w: tenure %q is not a whole number of months", ErrInvalidDetails, rec[2])
	}
	doc.Params = models.LoanParameters{
		Principal:    values[0].InexactFloat64(),
		AnnualRate:   values[1].InexactFloat64(),
		TenureMonths: int(values[2].IntPart()),
		EMI:          values[3].InexactFloat64(),
	}
	if err := doc.Params.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidNumber, err)
	}
	if len(rec) > 4 {
		doc.EMIAuto = strings.EqualFold(strings.TrimSpace(rec[4]), "yes")
	}
	return nil
}

// parseRate returns 0, meaning the global rate, for blank or unusable cells.
func parseRate(cell string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || !(v > 0) {
		return 0
	}
	return v
}

func cleanDate(date string) string {
	date = strings.TrimSpace(date)
	if _, err := time.Parse(ledger.DateLayout, date); err != nil {
		return ""
	}
	return date
}

// splitEntries rebuilds the entries of a schedule cell. Several dates in one
// cell share the total evenly; per-entry amounts are not recoverable from the
// schedule alone.
func splitEntries(l *ledger.Ledger, month int, amountCell, dateCell, descCell string) {
	total, err := strconv.ParseFloat(strings.TrimSpace(amountCell), 64)
	if err != nil || !(total > 0) {
		return
	}
	dates := strings.Split(dateCell, ";")
	descs := strings.Split(descCell, ";")
	if len(dates) <= 1 {
		_ = l.Add(month, total, cleanDate(dateCell), strings.TrimSpace(descCell))
		return
	}
	share := total / float64(len(dates))
	for i, d := range dates {
		desc := ""
		if i < len(descs) {
			desc = descs[i]
		}
		_ = l.Add(month, share, cleanDate(d), desc)
	}
}

// parseRowState reads the installments a rate change scheduled, by month.
func parseRowState(records [][]string) (map[int]float64, error) {
	scheduled := make(map[int]float64, len(records))
	for _, rec := range records {
		if len(rec) < 2 {
			continue
		}
		month, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil || month < 1 {
			return nil, fmt.Errorf("%w: month %q", ErrInvalidRow, rec[0])
		}
		emi, err := decimal.NewFromString(strings.TrimSpace(rec[1]))
		if err != nil || !emi.IsPositive() {
			return nil, fmt.Errorf("%w: scheduled emi %q", ErrInvalidRow, rec[1])
		}
		scheduled[month] = emi.InexactFloat64()
	}
	return scheduled, nil
}

func parseEntries(records [][]string) (*ledger.Ledger, *ledger.Ledger, error) {
	prep, chg := ledger.New(), ledger.New()
	for _, rec := range records {
		if len(rec) < 3 {
			continue
		}
		var target *ledger.Ledger
		switch models.LedgerKind(strings.TrimSpace(rec[0])) {
		case models.LedgerKindPrepayment:
			target = prep
		case models.LedgerKindCharge:
			target = chg
		default:
			return nil, nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidEntry, rec[0])
		}
		month, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: month %q", ErrInvalidEntry, rec[1])
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(rec[2]))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: amount %q", ErrInvalidEntry, rec[2])
		}
		var date, desc string
		if len(rec) > 3 {
			date = strings.TrimSpace(rec[3])
		}
		if len(rec) > 4 {
			desc = rec[4]
		}
		if err := target.Add(month, amount.InexactFloat64(), date, desc); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidEntry, err)
		}
	}
	return prep, chg, nil
}
