package models

import (
	"errors"
	"math"
	"time"
)

var (
	ErrPrincipalInvalid = errors.New("loan amount must be a positive number")
	ErrRateInvalid      = errors.New("interest rate must be a positive number")
	ErrTenureInvalid    = errors.New("tenure must be a positive number of months")
	ErrTenureTooLong    = errors.New("tenure must not exceed 1200 months")
	ErrEMIInvalid       = errors.New("emi must be a positive number")
	ErrLoanNameEmpty    = errors.New("loan name is required")
	ErrLoanTypeInvalid  = errors.New("loan type is invalid")
	ErrCustomTypeEmpty  = errors.New("custom loan type is required for type other")
)

// MaxTenureMonths caps the tenure at 100 years.
const MaxTenureMonths = 1200

// LoanParameters are the user supplied inputs of a loan.
type LoanParameters struct {
	Principal    float64 `json:"loan"`
	AnnualRate   float64 `json:"rate"` // percent per annum
	TenureMonths int     `json:"tenure"`
	EMI          float64 `json:"emi"`
}

// Validate checks that every parameter is set to a usable value.
func (p LoanParameters) Validate() error {
	if !positive(p.Principal) {
		return ErrPrincipalInvalid
	}
	if !positive(p.AnnualRate) {
		return ErrRateInvalid
	}
	if p.TenureMonths <= 0 {
		return ErrTenureInvalid
	}
	if p.TenureMonths > MaxTenureMonths {
		return ErrTenureTooLong
	}
	if !positive(p.EMI) {
		return ErrEMIInvalid
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// ScheduleRow is one month of the amortization table.
type ScheduleRow struct {
	Month           int     `json:"month"`
	OpeningBalance  float64 `json:"opening_balance"`
	InterestRate    float64 `json:"interest_rate"` // <= 0 falls back to the global rate
	InterestAmount  float64 `json:"interest"`
	PrincipalAmount float64 `json:"principal"`
	EMIAmount       float64 `json:"emi"`
	Prepayment      float64 `json:"prepayment"`
	Charges         float64 `json:"charges"`
	ClosingBalance  float64 `json:"closing_balance"`
	Paid            bool    `json:"paid"`
	ScheduledEMI    float64 `json:"scheduled_emi,omitempty"` // set by a rate change; <= 0 means nominal EMI
}

// RowState is the persisted, user editable part of a schedule row.
type RowState struct {
	Month   int     `json:"month"`
	Rate    float64 `json:"rate"`
	EMIPaid bool    `json:"emiPaid"`
	EMI     float64 `json:"emi,omitempty"`
}

type LedgerKind string

const (
	LedgerKindPrepayment LedgerKind = "prepayment"
	LedgerKindCharge     LedgerKind = "charge"
)

// LedgerEntry is a single dated cash event recorded against a month.
type LedgerEntry struct {
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"` // YYYY-MM-DD, optional
	Description string  `json:"description"`
}

type LoanType string

const (
	LoanTypeHome      LoanType = "home"
	LoanTypePlot      LoanType = "payday"
	LoanTypeGold      LoanType = "gold"
	LoanTypePersonal  LoanType = "personal"
	LoanTypeEducation LoanType = "education"
	LoanTypeMortgage  LoanType = "mortgage"
	LoanTypeCar       LoanType = "car"
	LoanTypeBusiness  LoanType = "business"
	LoanTypeOther     LoanType = "other"
)

var loanTypeLabels = map[LoanType]string{
	LoanTypeHome:      "Home Loan",
	LoanTypePlot:      "Plot Loan",
	LoanTypeGold:      "Gold Loan",
	LoanTypePersonal:  "Personal Loan",
	LoanTypeEducation: "Education Loan",
	LoanTypeMortgage:  "Mortgage Loan",
	LoanTypeCar:       "Car Loan",
	LoanTypeBusiness:  "Business Loan",
	LoanTypeOther:     "Other",
}

// Valid reports whether t is one of the known loan categories.
func (t LoanType) Valid() bool {
	_, ok := loanTypeLabels[t]
	return ok
}

// LoanProfile names a loan and owns its persisted state.
type LoanProfile struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       LoanType  `json:"type"`
	CustomType string    `json:"custom_type,omitempty"` // only for LoanTypeOther
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Label returns the display label of the profile's loan type.
func (p *LoanProfile) Label() string {
	if p.Type == LoanTypeOther && p.CustomType != "" {
		return p.CustomType
	}
	if label, ok := loanTypeLabels[p.Type]; ok {
		return label
	}
	return string(p.Type)
}

// ValidateIdentity checks the name and type of a profile.
func ValidateIdentity(name string, t LoanType, customType string) error {
	if name == "" {
		return ErrLoanNameEmpty
	}
	if !t.Valid() {
		return ErrLoanTypeInvalid
	}
	if t == LoanTypeOther && customType == "" {
		return ErrCustomTypeEmpty
	}
	return nil
}

// YearSummary aggregates a contiguous range of schedule months.
type YearSummary struct {
	Year           int     `json:"year"`
	StartMonth     int     `json:"start_month"`
	EndMonth       int     `json:"end_month"`
	Principal      float64 `json:"principal"`
	Interest       float64 `json:"interest"`
	Prepayments    float64 `json:"prepayments"`
	Charges        float64 `json:"charges"`
	ClosingBalance float64 `json:"closing_balance"`
}

// SavingsSummary is the derived "as of now" view of a loan.
type SavingsSummary struct {
	PaidMonths                int     `json:"paid_months"`
	TotalInterestPaid         float64 `json:"total_interest_paid"`
	TotalPrincipalPaid        float64 `json:"total_principal_paid"`
	TotalEMIPaid              float64 `json:"total_emi_paid"`
	TotalPrepayment           float64 `json:"total_prepayment"`
	TotalCharges              float64 `json:"total_charges"`
	PrepaymentMonths          int     `json:"prepayment_months"`
	ChargesMonths             int     `json:"charges_months"`
	CurrentBalance            float64 `json:"current_balance"`
	RemainingTenure           int     `json:"remaining_tenure"`
	RemainingUnbounded        bool    `json:"remaining_unbounded"` // emi does not cover interest
	ProjectedInterest         float64 `json:"projected_interest"`
	OriginalRemainingInterest float64 `json:"original_remaining_interest"`
	InterestSaved             float64 `json:"interest_saved"`
	TimeSaved                 int     `json:"time_saved"`
	OriginalTotalInterest     float64 `json:"original_total_interest"`
	OriginalTenure            int     `json:"original_tenure"`
}
