// Package session holds the in-memory working state of one loan: its
// parameters, the generated schedule and both ledgers. Every mutation goes
// through a Session method so the amortization engine stays the only writer
// of schedule rows.
package session

import (
	"errors"
	"fmt"

	"github.com/mcclellann/emiTracker/pkg/amortization"
	"github.com/mcclellann/emiTracker/pkg/ledger"
	"github.com/mcclellann/emiTracker/pkg/models"
)

var (
	ErrNoSchedule             = errors.New("no schedule has been generated")
	ErrMonthOutOfRange        = errors.New("month is outside the schedule")
	ErrRateChangeRequiresPaid = errors.New("mark at least the first month as paid before changing the rate")
	ErrUnknownLedger          = errors.New("unknown ledger kind")
)

// Session is the working state of the current loan.
type Session struct {
	params        models.LoanParameters
	emiAuto       bool
	rows          []models.ScheduleRow
	prepayments   *ledger.Ledger
	charges       *ledger.Ledger
	totalInterest float64
	totalPayable  float64
	dirty         bool
}

// New returns an empty session.
func New() *Session {
	return &Session{
		prepayments: ledger.New(),
		charges:     ledger.New(),
	}
}

// Params returns the loan parameters.
func (s *Session) Params() models.LoanParameters { return s.params }

// EMIAuto reports whether the EMI was derived from the other parameters.
func (s *Session) EMIAuto() bool { return s.emiAuto }

// Dirty reports whether there are changes since the last save.
func (s *Session) Dirty() bool { return s.dirty }

// MarkSaved clears the dirty flag after a successful save.
func (s *Session) MarkSaved() { s.dirty = false }

// HasSchedule reports whether rows have been generated.
func (s *Session) HasSchedule() bool { return len(s.rows) > 0 }

// Rows returns a copy of the schedule.
func (s *Session) Rows() []models.ScheduleRow {
	return append([]models.ScheduleRow(nil), s.rows...)
}

// Totals returns the generation-time total interest and total payable.
func (s *Session) Totals() (float64, float64) {
	return s.totalInterest, s.totalPayable
}

// Ledger returns the ledger of the given kind.
func (s *Session) Ledger(kind models.LedgerKind) (*ledger.Ledger, error) {
	switch kind {
	case models.LedgerKindPrepayment:
		return s.prepayments, nil
	case models.LedgerKindCharge:
		return s.charges, nil
	}
	return nil, fmt.Errorf("%q: %w", kind, ErrUnknownLedger)
}

func (s *Session) Prepayments() *ledger.Ledger { return s.prepayments }
func (s *Session) Charges() *ledger.Ledger     { return s.charges }

// SetPrincipal, SetRate and SetTenure update a tracked input and re-derive the
// EMI whenever all three are positive.
func (s *Session) SetPrincipal(v float64) {
	s.params.Principal = v
	s.tracked()
}

func (s *Session) SetRate(v float64) {
	s.params.AnnualRate = v
	s.tracked()
}

func (s *Session) SetTenure(v int) {
	s.params.TenureMonths = v
	s.tracked()
}

func (s *Session) tracked() {
	s.dirty = true
	s.AutoCalculateEMI()
}

// SetEMI records a user supplied EMI and leaves auto mode.
func (s *Session) SetEMI(v float64) {
	s.params.EMI = v
	s.emiAuto = false
	s.dirty = true
}

// AutoCalculateEMI derives the EMI from the other parameters and enters auto
// mode. It reports false, leaving the EMI as is, when an input is missing.
func (s *Session) AutoCalculateEMI() bool {
	emi := amortization.EMI(s.params.Principal, s.params.AnnualRate, s.params.TenureMonths)
	if emi <= 0 {
		return false
	}
	s.params.EMI = float64(emi)
	s.emiAuto = true
	return true
}

// SetParams replaces all parameters at once. A positive emi switches to manual
// mode; zero derives it.
func (s *Session) SetParams(p models.LoanParameters) {
	s.params = p
	s.dirty = true
	if p.EMI > 0 {
		s.emiAuto = false
		return
	}
	s.AutoCalculateEMI()
}

// Generate rebuilds the schedule from the current parameters. Rate overrides
// and paid flags are reset.
func (s *Session) Generate() error {
	sched, err := amortization.Generate(s.params, s.prepayments, s.charges)
	if err != nil {
		return err
	}
	s.rows = sched.Rows
	s.totalInterest = sched.TotalInterest
	s.totalPayable = sched.TotalPayable
	s.dirty = true
	return nil
}

// Recompute re-derives every row from the current parameters and ledgers.
func (s *Session) Recompute() {
	amortization.Recompute(s.rows, s.params, s.prepayments, s.charges)
}

func (s *Session) row(month int) (*models.ScheduleRow, error) {
	if len(s.rows) == 0 {
		return nil, ErrNoSchedule
	}
	if month < 1 || month > len(s.rows) {
		return nil, fmt.Errorf("month %d: %w", month, ErrMonthOutOfRange)
	}
	return &s.rows[month-1], nil
}

// SetRowRate overrides the rate of a single month and recomputes.
func (s *Session) SetRowRate(month int, rate float64) error {
	row, err := s.row(month)
	if err != nil {
		return err
	}
	if !(rate > 0) {
		return models.ErrRateInvalid
	}
	row.InterestRate = rate
	s.Recompute()
	s.dirty = true
	return nil
}

// SetPaid flags a month as settled. Balances are not touched.
func (s *Session) SetPaid(month int, paid bool) error {
	row, err := s.row(month)
	if err != nil {
		return err
	}
	row.Paid = paid
	s.dirty = true
	return nil
}

// ChangeRate re-projects the unpaid part of the schedule at newRate and newEMI.
// The first month must already be paid.
func (s *Session) ChangeRate(newRate, newEMI float64) (int, error) {
	if len(s.rows) == 0 {
		return 0, ErrNoSchedule
	}
	if !s.rows[0].Paid {
		return 0, ErrRateChangeRequiresPaid
	}
	start, err := amortization.ChangeRateFrom(s.rows, s.params, newRate, newEMI, s.prepayments, s.charges)
	if err != nil {
		return 0, err
	}
	s.dirty = true
	return start, nil
}

// AddEntry records a prepayment or charge and recomputes the schedule.
func (s *Session) AddEntry(kind models.LedgerKind, month int, amount float64, date, description string) error {
	return s.mutateLedger(kind, func(l *ledger.Ledger) error {
		return l.Add(month, amount, date, description)
	})
}

// EditEntry replaces the entry at index of month and recomputes the schedule.
func (s *Session) EditEntry(kind models.LedgerKind, month, index int, amount float64, date, description string) error {
	return s.mutateLedger(kind, func(l *ledger.Ledger) error {
		return l.Edit(month, index, amount, date, description)
	})
}

// DeleteEntry removes the entry at index of month and recomputes the schedule.
func (s *Session) DeleteEntry(kind models.LedgerKind, month, index int) error {
	return s.mutateLedger(kind, func(l *ledger.Ledger) error {
		return l.Delete(month, index)
	})
}

// ClearEntries removes every entry of kind recorded against month.
func (s *Session) ClearEntries(kind models.LedgerKind, month int) error {
	return s.mutateLedger(kind, func(l *ledger.Ledger) error {
		l.ClearMonth(month)
		return nil
	})
}

func (s *Session) mutateLedger(kind models.LedgerKind, fn func(*ledger.Ledger) error) error {
	l, err := s.Ledger(kind)
	if err != nil {
		return err
	}
	if err := fn(l); err != nil {
		return err
	}
	if len(s.rows) > 0 {
		s.Recompute()
	}
	s.dirty = true
	return nil
}

// Savings projects the loan as of the last contiguous paid month.
func (s *Session) Savings() (models.SavingsSummary, error) {
	if len(s.rows) == 0 {
		return models.SavingsSummary{}, ErrNoSchedule
	}
	return amortization.ProjectSavings(s.rows, s.params, s.prepayments, s.charges), nil
}

// YearSummary aggregates one year of the schedule.
func (s *Session) YearSummary(year int) (models.YearSummary, error) {
	if len(s.rows) == 0 {
		return models.YearSummary{}, ErrNoSchedule
	}
	return amortization.YearTotals(s.rows, year, s.prepayments, s.charges)
}

// Years aggregates every year of the schedule.
func (s *Session) Years() ([]models.YearSummary, error) {
	if len(s.rows) == 0 {
		return nil, ErrNoSchedule
	}
	return amortization.AllYears(s.rows, s.prepayments, s.charges), nil
}

// RowStates returns the persisted per-row state of the schedule.
func (s *Session) RowStates() []models.RowState {
	if len(s.rows) == 0 {
		return nil
	}
	states := make([]models.RowState, len(s.rows))
	for i, row := range s.rows {
		states[i] = models.RowState{
			Month:   row.Month,
			Rate:    row.InterestRate,
			EMIPaid: row.Paid,
			EMI:     row.ScheduledEMI,
		}
	}
	return states
}

// Replace swaps in a fully validated state in one step. When states is non
// empty the schedule is regenerated, the states applied by position and the
// rows recomputed.
func (s *Session) Replace(params models.LoanParameters, emiAuto bool, states []models.RowState, prepayments, charges *ledger.Ledger) error {
	next := New()
	next.params = params
	next.emiAuto = emiAuto
	if prepayments != nil {
		next.prepayments = prepayments
	}
	if charges != nil {
		next.charges = charges
	}
	if len(states) > 0 {
		if err := next.Generate(); err != nil {
			return err
		}
		next.applyStates(states)
		next.Recompute()
	}
	next.dirty = true
	*s = *next
	return nil
}

func (s *Session) applyStates(states []models.RowState) {
	for i := range s.rows {
		if i >= len(states) {
			break
		}
		st := states[i]
		if st.Rate > 0 {
			s.rows[i].InterestRate = st.Rate
		}
		if st.EMI > 0 {
			s.rows[i].ScheduledEMI = st.EMI
		}
		s.rows[i].Paid = st.EMIPaid
	}
}

// Clear resets the session to the "no loan selected" state.
func (s *Session) Clear() {
	*s = *New()
}
