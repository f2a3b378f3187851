package csvio

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/mcclellann/emiTracker/pkg/ledger"
	"github.com/mcclellann/emiTracker/pkg/models"
	"github.com/mcclellann/emiTracker/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession(t *testing.T) *session.Session {
	t.Helper()
	s := session.New()
	s.SetPrincipal(100000)
	s.SetRate(10)
	s.SetTenure(12)
	require.NoError(t, s.Generate())
	require.NoError(t, s.AddEntry(models.LedgerKindPrepayment, 3, 5000, "2024-03-10", "bonus"))
	require.NoError(t, s.AddEntry(models.LedgerKindPrepayment, 3, 1000, "", "gift, cash"))
	require.NoError(t, s.AddEntry(models.LedgerKindCharge, 5, 250, "2024-05-02", "late fee"))
	require.NoError(t, s.SetRowRate(6, 11.25))
	require.NoError(t, s.SetPaid(1, true))
	require.NoError(t, s.SetPaid(2, true))
	return s
}

func sampleProfile() *models.LoanProfile {
	return &models.LoanProfile{ID: "p1", Name: `My "Dream" House`, Type: models.LoanTypeOther, CustomType: "Family, Loan"}
}

func TestExportLayout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, sampleProfile(), sampleSession(t)))
	out := buf.String()

	lines := strings.Split(out, "\n")
	assert.Equal(t, MarkerIdentity, lines[0])
	assert.Equal(t, "Loan Name,Loan Type,Custom Loan Type", lines[1])
	assert.Equal(t, `"My ""Dream"" House",other,"Family, Loan"`, lines[2])
	assert.Equal(t, "", lines[3])
	assert.Equal(t, MarkerDetails, lines[4])
	assert.Equal(t, "100000,10,12,8792,Yes", lines[6])
	assert.Equal(t, MarkerSchedule, lines[8])
	assert.True(t, strings.HasPrefix(lines[9], "EMI Paid,Month,Opening Balance,Interest Rate (%)"))
	assert.True(t, strings.HasPrefix(lines[10], "Yes,1,100000.00,10,833.33,7958.67,8792.00,0.00,,,0.00,,,"))
	assert.Contains(t, out, `6000.00,2024-03-10; ,"bonus; gift, cash"`)
	assert.Contains(t, out, MarkerEntries)
	assert.Contains(t, out, "prepayment,3,1000,,\"gift, cash\"")
}

func TestExportRequiresSchedule(t *testing.T) {
	var buf bytes.Buffer
	err := Export(&buf, nil, session.New())
	assert.ErrorIs(t, err, session.ErrNoSchedule)
	assert.Zero(t, buf.Len())
}

func TestRoundTrip(t *testing.T) {
	s := sampleSession(t)
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, sampleProfile(), s))

	doc, err := Import(&buf)
	require.NoError(t, err)

	require.NotNil(t, doc.Identity)
	assert.Equal(t, `My "Dream" House`, doc.Identity.Name)
	assert.Equal(t, models.LoanTypeOther, doc.Identity.Type)
	assert.Equal(t, "Family, Loan", doc.Identity.CustomType)

	assert.Equal(t, s.Params(), doc.Params)
	assert.True(t, doc.EMIAuto)

	want := s.RowStates()
	require.Len(t, doc.States, len(want))
	for i := range want {
		assert.Equal(t, want[i].Month, doc.States[i].Month)
		assert.Equal(t, want[i].Rate, doc.States[i].Rate)
		assert.Equal(t, want[i].EMIPaid, doc.States[i].EMIPaid)
	}

	assert.Equal(t, s.Prepayments().Entries(3), doc.Prepayments.Entries(3))
	assert.Equal(t, s.Charges().Entries(5), doc.Charges.Entries(5))

	restored := session.New()
	require.NoError(t, restored.Replace(doc.Params, doc.EMIAuto, doc.States, doc.Prepayments, doc.Charges))
	assert.Equal(t, s.Rows(), restored.Rows())
}

func TestRoundTripAfterRateChange(t *testing.T) {
	s := session.New()
	s.SetPrincipal(100000)
	s.SetRate(10)
	s.SetTenure(12)
	require.NoError(t, s.Generate())
	for m := 1; m <= 3; m++ {
		require.NoError(t, s.SetPaid(m, true))
	}
	start, err := s.ChangeRate(9, 9000)
	require.NoError(t, err)
	require.Equal(t, 4, start)

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, sampleProfile(), s))
	assert.Contains(t, buf.String(), MarkerRowState+"\nMonth,Scheduled EMI\n4,9000\n")

	doc, err := Import(&buf)
	require.NoError(t, err)
	for _, st := range doc.States {
		if st.Month < start {
			assert.Zero(t, st.EMI, "month %d", st.Month)
		} else {
			assert.Equal(t, 9000.0, st.EMI, "month %d", st.Month)
		}
	}

	restored := session.New()
	require.NoError(t, restored.Replace(doc.Params, doc.EMIAuto, doc.States, doc.Prepayments, doc.Charges))
	want, got := s.Rows(), restored.Rows()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ScheduledEMI, got[i].ScheduledEMI, "month %d", want[i].Month)
		assert.Equal(t, want[i].InterestRate, got[i].InterestRate, "month %d", want[i].Month)
		assert.InDelta(t, want[i].EMIAmount, got[i].EMIAmount, 1e-6, "month %d", want[i].Month)
		assert.InDelta(t, want[i].ClosingBalance, got[i].ClosingBalance, 1e-6, "month %d", want[i].Month)
	}
}

func TestImportLegacySplit(t *testing.T) {
	input := strings.Join([]string{
		MarkerIdentity,
		"Loan Name,Loan Type,Custom Loan Type",
		`"Car",car,`,
		"",
		MarkerDetails,
		"Loan Amount,Interest Rate (%),Total Tenure (months),Monthly EMI,Is EMI Auto Calculated",
		"100000,10,12,8792,No",
		"",
		MarkerSchedule,
		strings.Join(scheduleHeader, ","),
		`Yes,1,100000.00,12,1000.00,7792.00,8792.00,0.00,,"",0.00,,"",92208.00`,
		`No,2,92208.00,,768.40,8023.60,8792.00,3000.00,2024-02-01; 2024-02-15,"a; b",50.00,not-a-date,"fee",84184.40`,
		`short,row`,
	}, "\n")

	doc, err := Import(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, models.LoanTypeCar, doc.Identity.Type)
	assert.False(t, doc.EMIAuto)
	require.Len(t, doc.States, 2)
	assert.Equal(t, 12.0, doc.States[0].Rate)
	assert.True(t, doc.States[0].EMIPaid)
	assert.Equal(t, 0.0, doc.States[1].Rate)

	prep := doc.Prepayments.Entries(2)
	require.Len(t, prep, 2)
	assert.Equal(t, 1500.0, prep[0].Amount)
	assert.Equal(t, 1500.0, prep[1].Amount)
	assert.Equal(t, "2024-02-15", prep[1].Date)
	assert.Equal(t, "b", prep[1].Description)

	chg := doc.Charges.Entries(2)
	require.Len(t, chg, 1)
	assert.Equal(t, 50.0, chg[0].Amount)
	assert.Equal(t, "", chg[0].Date)
}

func TestImportRejections(t *testing.T) {
	valid := func(details string) string {
		return strings.Join([]string{
			MarkerIdentity, "Loan Name,Loan Type,Custom Loan Type", "x,home,", "",
			MarkerDetails, "h", details, "",
			MarkerSchedule, "h",
			"No,1,1,1,1,1,1,0,,,0,,,1",
		}, "\n")
	}

	cases := map[string]struct {
		input string
		want  error
	}{
		"missing schedule":  {strings.Join([]string{MarkerIdentity, "h", "x,home", MarkerDetails, "h", "1,1,1,1"}, "\n"), ErrMissingSection},
		"out of order":      {strings.Join([]string{MarkerDetails, "h", "1,1,1,1", MarkerIdentity, "h", "x,home", MarkerSchedule, "h"}, "\n"), ErrMissingSection},
		"too few details":   {valid("100000,10,,8792"), ErrInvalidDetails},
		"non numeric":       {valid("abc,10,12,8792"), ErrInvalidNumber},
		"non positive":      {valid("100000,0,12,8792"), ErrInvalidNumber},
		"fractional tenure": {valid("100000,10,12.5,8792"), ErrInvalidDetails},
		"tenure too long":   {valid("100000,10,100000000,8792"), ErrInvalidNumber},
		"bad row state":     {valid("100000,10,12,8792") + "\n" + MarkerRowState + "\nh\n1,-5", ErrInvalidRow},
		"no monthly data":   {strings.Replace(valid("100000,10,12,8792"), "No,1,1,1,1,1,1,0,,,0,,,1", "", 1), ErrNoMonthlyData},
		"bad ledger entry":  {valid("100000,10,12,8792") + "\n" + MarkerEntries + "\nh\nrefund,1,10,,", ErrInvalidEntry},
		"bad entry amount":  {valid("100000,10,12,8792") + "\n" + MarkerEntries + "\nh\ncharge,1,-10,,", ErrInvalidEntry},
		"entries misplaced": {MarkerEntries + "\n" + valid("100000,10,12,8792"), ErrMissingSection},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			doc, err := Import(strings.NewReader(tc.input))
			assert.ErrorIs(t, err, tc.want)
			assert.Nil(t, doc)
		})
	}
}

func TestFlatExports(t *testing.T) {
	prep, chg := ledger.New(), ledger.New()
	require.NoError(t, prep.Add(2, 1000, "2024-02-01", "a"))
	require.NoError(t, prep.Add(2, 500, "", ""))
	require.NoError(t, chg.Add(2, 75, "", "fee"))
	require.NoError(t, prep.Add(40, 10, "", "outside schedule"))

	var buf bytes.Buffer
	require.NoError(t, ExportPaymentDetails(&buf, 12, prep, chg))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"2", "1000.00", "2024-02-01", "a", "75.00", "", "fee"}, records[1])
	assert.Equal(t, []string{"2", "500.00", "", "", "", "", ""}, records[2])

	buf.Reset()
	require.NoError(t, ExportPrepaymentDetails(&buf, 12, prep))
	records, err = csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"2", "2", "500.00", "", ""}, records[2])

	buf.Reset()
	assert.ErrorIs(t, ExportChargeDetails(&buf, 1, chg), ErrNothingToExport)
	assert.ErrorIs(t, ExportChargeDetails(&buf, 12, ledger.New()), ErrNothingToExport)
}
