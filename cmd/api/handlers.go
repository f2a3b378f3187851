package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mcclellann/emiTracker/pkg/amortization"
	"github.com/mcclellann/emiTracker/pkg/csvio"
	"github.com/mcclellann/emiTracker/pkg/ledger"
	"github.com/mcclellann/emiTracker/pkg/models"
	"github.com/mcclellann/emiTracker/pkg/registry"
	"github.com/mcclellann/emiTracker/pkg/report"
	"github.com/mcclellann/emiTracker/pkg/session"
	"github.com/mcclellann/emiTracker/pkg/store"
)

var ledgerKinds = map[string]models.LedgerKind{
	"prepayments": models.LedgerKindPrepayment,
	"charges":     models.LedgerKindCharge,
}

// maxImportSize bounds an uploaded CSV.
const maxImportSize = 10 << 20

var errBadRequest = errors.New("bad request")

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, ledger.ErrEntryNotFound),
		errors.Is(err, csvio.ErrNothingToExport):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoSchedule),
		errors.Is(err, session.ErrRateChangeRequiresPaid),
		errors.Is(err, registry.ErrNoCurrentLoan):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, models.ErrPrincipalInvalid),
		errors.Is(err, models.ErrRateInvalid),
		errors.Is(err, models.ErrTenureInvalid),
		errors.Is(err, models.ErrTenureTooLong),
		errors.Is(err, models.ErrEMIInvalid),
		errors.Is(err, models.ErrLoanNameEmpty),
		errors.Is(err, models.ErrLoanTypeInvalid),
		errors.Is(err, models.ErrCustomTypeEmpty),
		errors.Is(err, ledger.ErrInvalidMonth),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidDate),
		errors.Is(err, session.ErrMonthOutOfRange),
		errors.Is(err, session.ErrUnknownLedger),
		errors.Is(err, amortization.ErrNewRate),
		errors.Is(err, amortization.ErrNewEMI),
		errors.Is(err, amortization.ErrYearOutOfRange),
		errors.Is(err, csvio.ErrMissingSection),
		errors.Is(err, csvio.ErrInvalidDetails),
		errors.Is(err, csvio.ErrInvalidNumber),
		errors.Is(err, csvio.ErrNoMonthlyData),
		errors.Is(err, csvio.ErrInvalidEntry),
		errors.Is(err, csvio.ErrInvalidRow):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", r.URL.Path).Error("Request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// intVar reads a numeric route variable. The router patterns only admit digits.
func intVar(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s", errBadRequest, name)
	}
	return v, nil
}

// entryIndex converts the 1-based entry number of a route to a ledger index.
func entryIndex(r *http.Request) (int, error) {
	n, err := intVar(r, "index")
	if err != nil {
		return 0, err
	}
	return n - 1, nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loanRequest struct {
	Name       string          `json:"name"`
	Type       models.LoanType `json:"type"`
	CustomType string          `json:"custom_type"`
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loans, err := s.registry.List()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loan, err := s.registry.Create(req.Name, req.Type, req.CustomType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loan, err := s.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) updateLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loan, err := s.registry.Update(mux.Vars(r)["id"], req.Name, req.Type, req.CustomType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) deleteLoanHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registry.Delete(mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) activateLoanHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registry.SwitchTo(mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

type stateResponse struct {
	Loan          *models.LoanProfile   `json:"loan"`
	Parameters    models.LoanParameters `json:"parameters"`
	EMIAuto       bool                  `json:"emi_auto"`
	Unsaved       bool                  `json:"unsaved"`
	Rows          []models.ScheduleRow  `json:"rows"`
	TotalInterest float64               `json:"total_interest"`
	TotalPayable  float64               `json:"total_payable"`
	Prepayments   *ledger.Ledger        `json:"prepayments"`
	Charges       *ledger.Ledger        `json:"charges"`
}

func (s *Server) state() stateResponse {
	sess := s.registry.Session()
	interest, payable := sess.Totals()
	return stateResponse{
		Loan:          s.registry.Current(),
		Parameters:    sess.Params(),
		EMIAuto:       sess.EMIAuto(),
		Unsaved:       sess.Dirty(),
		Rows:          sess.Rows(),
		TotalInterest: interest,
		TotalPayable:  payable,
		Prepayments:   sess.Prepayments(),
		Charges:       sess.Charges(),
	}
}

func (s *Server) currentHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) parametersHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoanParameters
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.registry.Session()
	sess.SetParams(req)
	writeJSON(w, http.StatusOK, map[string]any{
		"parameters": sess.Params(),
		"emi_auto":   sess.EMIAuto(),
	})
}

func (s *Server) scheduleHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.registry.Session()
	if !sess.HasSchedule() {
		s.writeError(w, r, session.ErrNoSchedule)
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) generateHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registry.Session().Generate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.state())
}

func (s *Server) rowRateHandler(w http.ResponseWriter, r *http.Request) {
	month, err := intVar(r, "month")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Rate float64 `json:"rate"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registry.Session().SetRowRate(month, req.Rate); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) rowPaidHandler(w http.ResponseWriter, r *http.Request) {
	month, err := intVar(r, "month")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req struct {
		Paid bool `json:"paid"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registry.Session().SetPaid(month, req.Paid); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) rateChangeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rate float64 `json:"rate"`
		EMI  float64 `json:"emi"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	from, err := s.registry.Session().ChangeRate(req.Rate, req.EMI)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from_month": from,
		"state":      s.state(),
	})
}

func (s *Server) ledgerHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.registry.Session().Ledger(ledgerKinds[mux.Vars(r)["kind"]])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

type entryRequest struct {
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
}

func (s *Server) addEntryHandler(w http.ResponseWriter, r *http.Request) {
	month, err := intVar(r, "month")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req entryRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kind := ledgerKinds[mux.Vars(r)["kind"]]
	if err := s.registry.Session().AddEntry(kind, month, req.Amount, req.Date, req.Description); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.state())
}

func (s *Server) editEntryHandler(w http.ResponseWriter, r *http.Request) {
	month, err := intVar(r, "month")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	index, err := entryIndex(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req entryRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kind := ledgerKinds[mux.Vars(r)["kind"]]
	if err := s.registry.Session().EditEntry(kind, month, index, req.Amount, req.Date, req.Description); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) deleteEntryHandler(w http.ResponseWriter, r *http.Request) {
	month, err := intVar(r, "month")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	index, err := entryIndex(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kind := ledgerKinds[mux.Vars(r)["kind"]]
	if err := s.registry.Session().DeleteEntry(kind, month, index); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) clearEntriesHandler(w http.ResponseWriter, r *http.Request) {
	month, err := intVar(r, "month")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kind := ledgerKinds[mux.Vars(r)["kind"]]
	if err := s.registry.Session().ClearEntries(kind, month); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

type savingsResponse struct {
	models.SavingsSummary
	RemainingTenureText string `json:"remaining_tenure_text"`
	TimeSavedText       string `json:"time_saved_text"`
	CurrentBalanceText  string `json:"current_balance_text"`
	InterestSavedText   string `json:"interest_saved_text"`
}

func (s *Server) savingsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summary, err := s.registry.Session().Savings()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, savingsResponse{
		SavingsSummary:      summary,
		RemainingTenureText: report.FormatRemaining(summary.RemainingTenure, summary.RemainingUnbounded),
		TimeSavedText:       report.FormatTenure(summary.TimeSaved),
		CurrentBalanceText:  report.Money(summary.CurrentBalance),
		InterestSavedText:   report.Money(summary.InterestSaved),
	})
}

func (s *Server) yearsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	years, err := s.registry.Session().Years()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, years)
}

func (s *Server) yearHandler(w http.ResponseWriter, r *http.Request) {
	year, err := intVar(r, "year")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	summary, err := s.registry.Session().YearSummary(year)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) detailsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.registry.Session()
	if !sess.HasSchedule() {
		s.writeError(w, r, session.ErrNoSchedule)
		return
	}
	months := len(sess.Rows())

	switch mux.Vars(r)["page"] {
	case "payments":
		writeJSON(w, http.StatusOK, report.PaymentPage(months, sess.Prepayments(), sess.Charges()))
	case "prepayments":
		writeJSON(w, http.StatusOK, report.EntryPage(months, sess.Prepayments()))
	default:
		writeJSON(w, http.StatusOK, report.EntryPage(months, sess.Charges()))
	}
}

func (s *Server) saveHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registry.Save(); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeCSV renders into a buffer first so a failed export still gets a JSON error.
func (s *Server) writeCSV(w http.ResponseWriter, r *http.Request, filename string, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(buf.Bytes())
}

func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeCSV(w, r, "loan_export.csv", s.registry.ExportCSV)
}

func (s *Server) exportDetailsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch page := mux.Vars(r)["page"]; page {
	case "payments":
		s.writeCSV(w, r, "payment_details.csv", s.registry.ExportPayments)
	case "prepayments":
		s.writeCSV(w, r, "prepayment_details.csv", s.registry.ExportPrepayments)
	default:
		s.writeCSV(w, r, "other_charges_details.csv", s.registry.ExportCharges)
	}
}

func (s *Server) importHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registry.ImportCSV(http.MaxBytesReader(w, r.Body, maxImportSize)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}
