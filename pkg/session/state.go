package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mcclellann/emiTracker/pkg/ledger"
	"github.com/mcclellann/emiTracker/pkg/models"
)

// Persisted state keys of a loan.
const (
	KeyParameters  = "parameters"
	KeyTable       = "table"
	KeyPrepayments = "prepayments"
	KeyCharges     = "charges"
)

// Keys lists every state key in a stable order.
var Keys = []string{KeyParameters, KeyTable, KeyPrepayments, KeyCharges}

// Snapshot is the serialized state of a session, one JSON blob per key.
// A nil blob means there is nothing to persist for that key.
type Snapshot map[string][]byte

// number accepts both JSON numbers and numeric strings; older saves wrote
// input field values verbatim.
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*n = number(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = number(v)
	return nil
}

type storedParameters struct {
	Loan        number `json:"loan"`
	Rate        number `json:"rate"`
	Tenure      number `json:"tenure"`
	EMI         number `json:"emi"`
	IsEMIManual *bool  `json:"isEMIManual,omitempty"`
}

type storedRow struct {
	Month   int     `json:"month"`
	Rate    *number `json:"rate"`
	EMIPaid bool    `json:"emiPaid"`
	EMI     number  `json:"emi,omitempty"`
}

// Snapshot serializes the session for persistence.
func (s *Session) Snapshot() (Snapshot, error) {
	snap := Snapshot{}

	manual := !s.emiAuto
	params, err := json.Marshal(struct {
		Loan        float64 `json:"loan"`
		Rate        float64 `json:"rate"`
		Tenure      int     `json:"tenure"`
		EMI         float64 `json:"emi"`
		IsEMIManual bool    `json:"isEMIManual"`
	}{s.params.Principal, s.params.AnnualRate, s.params.TenureMonths, s.params.EMI, manual})
	if err != nil {
		return nil, fmt.Errorf("failed to encode parameters: %w", err)
	}
	snap[KeyParameters] = params

	if states := s.RowStates(); len(states) > 0 {
		table, err := json.Marshal(states)
		if err != nil {
			return nil, fmt.Errorf("failed to encode table: %w", err)
		}
		snap[KeyTable] = table
	}

	if snap[KeyPrepayments], err = json.Marshal(s.prepayments); err != nil {
		return nil, fmt.Errorf("failed to encode prepayments: %w", err)
	}
	if snap[KeyCharges], err = json.Marshal(s.charges); err != nil {
		return nil, fmt.Errorf("failed to encode charges: %w", err)
	}
	return snap, nil
}

// Restore replaces the session with persisted state. Each blob fails closed:
// a malformed blob is treated as absent and reported in the returned slice,
// the rest is still loaded.
func (s *Session) Restore(snap Snapshot) []error {
	var problems []error
	next := New()

	if data := snap[KeyParameters]; len(data) > 0 {
		var p storedParameters
		if err := json.Unmarshal(data, &p); err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", KeyParameters, err))
		} else {
			next.params = models.LoanParameters{
				Principal:    float64(p.Loan),
				AnnualRate:   float64(p.Rate),
				TenureMonths: int(p.Tenure),
				EMI:          float64(p.EMI),
			}
			if p.IsEMIManual != nil && !*p.IsEMIManual {
				next.AutoCalculateEMI()
			}
		}
	}

	if data := snap[KeyPrepayments]; len(data) > 0 {
		l, err := ledger.Decode(data)
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", KeyPrepayments, err))
		}
		next.prepayments = l
	}
	if data := snap[KeyCharges]; len(data) > 0 {
		l, err := ledger.Decode(data)
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", KeyCharges, err))
		}
		next.charges = l
	}

	if data := snap[KeyTable]; len(data) > 0 {
		states, err := decodeStates(data)
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", KeyTable, err))
		} else if len(states) > 0 {
			if err := next.Generate(); err != nil {
				problems = append(problems, fmt.Errorf("%s: %w", KeyTable, err))
			} else {
				next.applyStates(states)
				next.Recompute()
			}
		}
	}

	next.dirty = false
	*s = *next
	return problems
}

func decodeStates(data []byte) ([]models.RowState, error) {
	var raw []storedRow
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	states := make([]models.RowState, len(raw))
	for i, r := range raw {
		states[i] = models.RowState{Month: r.Month, EMIPaid: r.EMIPaid, EMI: float64(r.EMI)}
		if r.Rate != nil {
			states[i].Rate = float64(*r.Rate)
		}
	}
	return states, nil
}
