package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mcclellann/emiTracker/pkg/models"
)

// DateLayout is the calendar date format accepted for entry dates.
const DateLayout = "2006-01-02"

var (
	ErrInvalidMonth  = errors.New("month must be 1 or greater")
	ErrInvalidAmount = errors.New("amount must be a positive number")
	ErrInvalidDate   = errors.New("date must be in YYYY-MM-DD format")
	ErrEntryNotFound = errors.New("ledger entry not found")
)

// Ledger holds the dated cash events of one kind, keyed by schedule month.
// A month with no entries has no key.
type Ledger struct {
	entries map[int][]models.LedgerEntry
}

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[int][]models.LedgerEntry)}
}

func validate(month int, amount float64, date string) error {
	if month < 1 {
		return ErrInvalidMonth
	}
	if !(amount > 0) || math.IsInf(amount, 0) {
		return ErrInvalidAmount
	}
	if date != "" {
		if _, err := time.Parse(DateLayout, date); err != nil {
			return ErrInvalidDate
		}
	}
	return nil
}

// Add appends an entry to month.
func (l *Ledger) Add(month int, amount float64, date, description string) error {
	if err := validate(month, amount, date); err != nil {
		return err
	}
	if l.entries == nil {
		l.entries = make(map[int][]models.LedgerEntry)
	}
	l.entries[month] = append(l.entries[month], models.LedgerEntry{
		Amount:      amount,
		Date:        date,
		Description: strings.TrimSpace(description),
	})
	return nil
}

// Edit replaces the entry at index within month.
func (l *Ledger) Edit(month, index int, amount float64, date, description string) error {
	if err := validate(month, amount, date); err != nil {
		return err
	}
	list := l.entries[month]
	if index < 0 || index >= len(list) {
		return fmt.Errorf("month %d index %d: %w", month, index, ErrEntryNotFound)
	}
	list[index] = models.LedgerEntry{Amount: amount, Date: date, Description: strings.TrimSpace(description)}
	return nil
}

// Delete removes the entry at index within month. Removing the last entry of
// a month drops the month key.
func (l *Ledger) Delete(month, index int) error {
	list := l.entries[month]
	if index < 0 || index >= len(list) {
		return fmt.Errorf("month %d index %d: %w", month, index, ErrEntryNotFound)
	}
	list = append(list[:index], list[index+1:]...)
	if len(list) == 0 {
		delete(l.entries, month)
		return nil
	}
	l.entries[month] = list
	return nil
}

// ClearMonth removes every entry recorded against month.
func (l *Ledger) ClearMonth(month int) {
	delete(l.entries, month)
}

// TotalForMonth sums the amounts recorded against month. Safe on a nil Ledger.
func (l *Ledger) TotalForMonth(month int) float64 {
	if l == nil {
		return 0
	}
	total := 0.0
	for _, e := range l.entries[month] {
		total += e.Amount
	}
	return total
}

// CountForMonth returns the number of entries recorded against month.
func (l *Ledger) CountForMonth(month int) int {
	if l == nil {
		return 0
	}
	return len(l.entries[month])
}

// Entries returns a copy of the entries of month.
func (l *Ledger) Entries(month int) []models.LedgerEntry {
	if l == nil {
		return nil
	}
	list := l.entries[month]
	if len(list) == 0 {
		return nil
	}
	out := make([]models.LedgerEntry, len(list))
	copy(out, list)
	return out
}

// Months returns the months holding entries in ascending order.
func (l *Ledger) Months() []int {
	if l == nil {
		return nil
	}
	months := make([]int, 0, len(l.entries))
	for m := range l.entries {
		months = append(months, m)
	}
	sort.Ints(months)
	return months
}

// HasMonth reports whether month has a key.
func (l *Ledger) HasMonth(month int) bool {
	if l == nil {
		return false
	}
	_, ok := l.entries[month]
	return ok
}

// Total sums every entry across all months.
func (l *Ledger) Total() float64 {
	total := 0.0
	for _, m := range l.Months() {
		total += l.TotalForMonth(m)
	}
	return total
}

// Len is the number of entries across all months.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	n := 0
	for _, list := range l.entries {
		n += len(list)
	}
	return n
}

// Clone returns a deep copy.
func (l *Ledger) Clone() *Ledger {
	c := New()
	if l == nil {
		return c
	}
	for m, list := range l.entries {
		c.entries[m] = append([]models.LedgerEntry(nil), list...)
	}
	return c
}

// MarshalJSON encodes the ledger as {"<month>": [entries...]}.
func (l *Ledger) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("{}"), nil
	}
	out := make(map[string][]models.LedgerEntry, len(l.entries))
	for m, list := range l.entries {
		out[strconv.Itoa(m)] = list
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the persisted shape, rejecting invalid entries.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	var raw map[string][]models.LedgerEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	entries := make(map[int][]models.LedgerEntry, len(raw))
	for key, list := range raw {
		month, err := strconv.Atoi(key)
		if err != nil {
			return fmt.Errorf("invalid month key %q: %w", key, err)
		}
		for _, e := range list {
			if err := validate(month, e.Amount, e.Date); err != nil {
				return fmt.Errorf("month %d: %w", month, err)
			}
		}
		if len(list) > 0 {
			entries[month] = list
		}
	}
	l.entries = entries
	return nil
}

// Decode restores a ledger from persisted JSON. Missing or malformed data
// yields an empty ledger along with the decode error.
func Decode(data []byte) (*Ledger, error) {
	l := New()
	if len(data) == 0 {
		return l, nil
	}
	if err := json.Unmarshal(data, l); err != nil {
		return New(), err
	}
	return l, nil
}
