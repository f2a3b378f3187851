package session

import (
	"testing"

	"github.com/mcclellann/emiTracker/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoan(t *testing.T) *Session {
	t.Helper()
	s := New()
	s.SetPrincipal(100000)
	s.SetRate(10)
	s.SetTenure(12)
	require.NoError(t, s.Generate())
	return s
}

func TestAutoEMI(t *testing.T) {
	s := New()
	s.SetPrincipal(100000)
	assert.False(t, s.EMIAuto())
	assert.Equal(t, 0.0, s.Params().EMI)

	s.SetRate(10)
	s.SetTenure(12)
	assert.True(t, s.EMIAuto())
	assert.Equal(t, 8792.0, s.Params().EMI)

	s.SetEMI(9000)
	assert.False(t, s.EMIAuto())
	assert.Equal(t, 9000.0, s.Params().EMI)

	// editing a tracked input re-derives the EMI
	s.SetTenure(24)
	assert.True(t, s.EMIAuto())
	assert.Equal(t, float64(4614), s.Params().EMI)

	s.SetEMI(5000)
	assert.True(t, s.AutoCalculateEMI())
	assert.Equal(t, float64(4614), s.Params().EMI)
}

func TestSetParams(t *testing.T) {
	s := New()
	s.SetParams(models.LoanParameters{Principal: 100000, AnnualRate: 10, TenureMonths: 12})
	assert.True(t, s.EMIAuto())
	assert.Equal(t, 8792.0, s.Params().EMI)

	s.SetParams(models.LoanParameters{Principal: 100000, AnnualRate: 10, TenureMonths: 12, EMI: 9500})
	assert.False(t, s.EMIAuto())
	assert.Equal(t, 9500.0, s.Params().EMI)
}

func TestGenerateRequiresParameters(t *testing.T) {
	s := New()
	s.SetPrincipal(1000)
	err := s.Generate()
	assert.ErrorIs(t, err, models.ErrRateInvalid)
	assert.False(t, s.HasSchedule())
}

func TestGenerateRejectsLongTenure(t *testing.T) {
	s := newLoan(t)
	want := s.Rows()

	s.SetTenure(models.MaxTenureMonths + 1)
	assert.ErrorIs(t, s.Generate(), models.ErrTenureTooLong)
	assert.Equal(t, want, s.Rows())

	err := New().Replace(models.LoanParameters{Principal: 1000, AnnualRate: 10, TenureMonths: 1 << 40, EMI: 100}, false,
		[]models.RowState{{Month: 1}}, nil, nil)
	assert.ErrorIs(t, err, models.ErrTenureTooLong)
}

func TestRowOperationsNeedSchedule(t *testing.T) {
	s := New()
	assert.ErrorIs(t, s.SetPaid(1, true), ErrNoSchedule)
	assert.ErrorIs(t, s.SetRowRate(1, 9), ErrNoSchedule)
	_, err := s.ChangeRate(9, 9000)
	assert.ErrorIs(t, err, ErrNoSchedule)
	_, err = s.Savings()
	assert.ErrorIs(t, err, ErrNoSchedule)
	_, err = s.Years()
	assert.ErrorIs(t, err, ErrNoSchedule)
}

func TestSetRowRateRecomputes(t *testing.T) {
	s := newLoan(t)
	require.NoError(t, s.SetRowRate(1, 12))

	row := s.Rows()[0]
	assert.InDelta(t, 1000, row.InterestAmount, 1e-9)
	assert.InDelta(t, 7792, row.PrincipalAmount, 1e-9)
	assert.InDelta(t, 92208, row.ClosingBalance, 1e-9)

	assert.ErrorIs(t, s.SetRowRate(13, 9), ErrMonthOutOfRange)
	assert.ErrorIs(t, s.SetRowRate(2, 0), models.ErrRateInvalid)
}

func TestSetPaidLeavesBalances(t *testing.T) {
	s := newLoan(t)
	before := s.Rows()
	require.NoError(t, s.SetPaid(2, true))
	after := s.Rows()

	assert.True(t, after[1].Paid)
	after[1].Paid = false
	assert.Equal(t, before, after)
}

func TestLedgerEntriesRecompute(t *testing.T) {
	s := newLoan(t)
	require.NoError(t, s.AddEntry(models.LedgerKindPrepayment, 3, 5000, "2024-03-10", "bonus"))
	require.NoError(t, s.AddEntry(models.LedgerKindCharge, 3, 200, "", "fee"))

	row := s.Rows()[2]
	assert.InDelta(t, row.OpeningBalance-row.PrincipalAmount-5000+200, row.ClosingBalance, 1e-9)

	require.NoError(t, s.DeleteEntry(models.LedgerKindPrepayment, 3, 0))
	assert.False(t, s.Prepayments().HasMonth(3))
	row = s.Rows()[2]
	assert.InDelta(t, row.OpeningBalance-row.PrincipalAmount+200, row.ClosingBalance, 1e-9)

	require.NoError(t, s.EditEntry(models.LedgerKindCharge, 3, 0, 300, "", "fee"))
	assert.Equal(t, 300.0, s.Rows()[2].Charges)

	require.NoError(t, s.ClearEntries(models.LedgerKindCharge, 3))
	assert.Equal(t, 0.0, s.Rows()[2].Charges)

	assert.ErrorIs(t, s.AddEntry("bogus", 1, 10, "", ""), ErrUnknownLedger)
}

func TestLedgerEntriesWithoutSchedule(t *testing.T) {
	s := New()
	require.NoError(t, s.AddEntry(models.LedgerKindPrepayment, 5, 1000, "", ""))
	assert.Equal(t, 1000.0, s.Prepayments().TotalForMonth(5))
	assert.True(t, s.Dirty())
}

func TestChangeRateRequiresFirstMonthPaid(t *testing.T) {
	s := newLoan(t)
	_, err := s.ChangeRate(9, 9000)
	assert.ErrorIs(t, err, ErrRateChangeRequiresPaid)

	for m := 1; m <= 3; m++ {
		require.NoError(t, s.SetPaid(m, true))
	}
	b3 := s.Rows()[2].ClosingBalance

	start, err := s.ChangeRate(9, 9000)
	require.NoError(t, err)
	assert.Equal(t, 4, start)

	rows := s.Rows()
	assert.Equal(t, b3, rows[3].OpeningBalance)
	assert.InDelta(t, b3*9/100/12, rows[3].InterestAmount, 1e-9)
	for _, row := range rows[3:] {
		assert.Equal(t, 9.0, row.InterestRate)
	}
	assert.Equal(t, 10.0, s.Params().AnnualRate)
}

func TestSavingsAndYears(t *testing.T) {
	s := newLoan(t)
	require.NoError(t, s.SetPaid(1, true))

	sum, err := s.Savings()
	require.NoError(t, err)
	assert.Equal(t, 1, sum.PaidMonths)

	years, err := s.Years()
	require.NoError(t, err)
	assert.Len(t, years, 1)

	_, err = s.YearSummary(2)
	assert.Error(t, err)
}

func TestSnapshotRestore(t *testing.T) {
	s := newLoan(t)
	require.NoError(t, s.AddEntry(models.LedgerKindPrepayment, 4, 10000, "2024-04-01", "bonus"))
	require.NoError(t, s.AddEntry(models.LedgerKindCharge, 6, 150, "", ""))
	require.NoError(t, s.SetRowRate(8, 11.5))
	require.NoError(t, s.SetPaid(1, true))
	require.NoError(t, s.SetPaid(2, true))
	_, err := s.ChangeRate(9, 9000)
	require.NoError(t, err)

	snap, err := s.Snapshot()
	require.NoError(t, err)

	restored := New()
	assert.Empty(t, restored.Restore(snap))

	assert.Equal(t, s.Params(), restored.Params())
	assert.Equal(t, s.EMIAuto(), restored.EMIAuto())
	assert.Equal(t, s.RowStates(), restored.RowStates())
	assert.Equal(t, s.Rows(), restored.Rows())
	assert.Equal(t, 10000.0, restored.Prepayments().TotalForMonth(4))
	assert.Equal(t, 150.0, restored.Charges().TotalForMonth(6))
	assert.False(t, restored.Dirty())
}

func TestRestoreLegacyStringParameters(t *testing.T) {
	snap := Snapshot{
		KeyParameters: []byte(`{"loan":"100000","rate":"10","tenure":"12","emi":"9000","isEMIManual":false}`),
		KeyTable:      []byte(`[{"month":1,"rate":12,"emiPaid":true},{"month":2,"rate":null,"emiPaid":false}]`),
	}
	s := New()
	assert.Empty(t, s.Restore(snap))

	// not manual, so the EMI is re-derived
	assert.Equal(t, 8792.0, s.Params().EMI)
	assert.True(t, s.EMIAuto())

	rows := s.Rows()
	require.Len(t, rows, 12)
	assert.True(t, rows[0].Paid)
	assert.Equal(t, 12.0, rows[0].InterestRate)
	assert.Equal(t, 10.0, rows[1].InterestRate)
	assert.InDelta(t, 92208, rows[0].ClosingBalance, 1e-9)
}

func TestRestoreFailsClosed(t *testing.T) {
	snap := Snapshot{
		KeyParameters:  []byte(`{"loan":100000,"rate":10,"tenure":12,"emi":8792,"isEMIManual":true}`),
		KeyTable:       []byte(`{broken`),
		KeyPrepayments: []byte(`{"1":[{"amount":"x"}]}`),
		KeyCharges:     []byte(`{"2":[{"amount":50,"date":"","description":""}]}`),
	}
	s := newLoan(t)
	problems := s.Restore(snap)
	assert.Len(t, problems, 2)

	assert.Equal(t, 100000.0, s.Params().Principal)
	assert.False(t, s.EMIAuto())
	assert.False(t, s.HasSchedule())
	assert.Equal(t, 0, s.Prepayments().Len())
	assert.Equal(t, 50.0, s.Charges().TotalForMonth(2))
}

func TestReplaceAndClear(t *testing.T) {
	s := newLoan(t)
	params := models.LoanParameters{Principal: 50000, AnnualRate: 8, TenureMonths: 6, EMI: 8500}
	states := []models.RowState{{Month: 1, Rate: 8, EMIPaid: true}}

	require.NoError(t, s.Replace(params, false, states, nil, nil))
	assert.Equal(t, params, s.Params())
	assert.Len(t, s.Rows(), 6)
	assert.True(t, s.Rows()[0].Paid)

	bad := models.LoanParameters{Principal: 50000, AnnualRate: 8, TenureMonths: 0, EMI: 8500}
	assert.Error(t, s.Replace(bad, false, states, nil, nil))
	assert.Equal(t, params, s.Params())

	s.Clear()
	assert.False(t, s.HasSchedule())
	assert.Equal(t, models.LoanParameters{}, s.Params())
}
