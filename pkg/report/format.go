// Package report renders calculation results for display. Values are
// formatted here and nowhere upstream.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mcclellann/emiTracker/pkg/ledger"
)

const (
	Currency = "₹"
	Infinity = "∞"
)

// FormatIndian renders v with two decimals and Indian digit grouping,
// e.g. 1234567.8 as "12,34,567.80".
func FormatIndian(v float64) string {
	s := decimal.NewFromFloat(v).StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")

	if len(intPart) <= 3 {
		return sign + intPart + "." + frac
	}
	head, tail := intPart[:len(intPart)-3], intPart[len(intPart)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	return sign + strings.Join(groups, ",") + "," + tail + "." + frac
}

// Money is FormatIndian with the currency symbol.
func Money(v float64) string {
	return Currency + FormatIndian(v)
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatTenure renders a month count as years and months, e.g.
// "1 Yr 2 mths (14 mths)".
func FormatTenure(months int) string {
	if months == 0 {
		return "0"
	}
	years, rest := months/12, months%12
	switch {
	case years == 0:
		return plural(months, "mth")
	case rest == 0:
		return fmt.Sprintf("%s (%s)", plural(years, "Yr"), plural(months, "mth"))
	default:
		return fmt.Sprintf("%s %s (%s)", plural(years, "Yr"), plural(rest, "mth"), plural(months, "mth"))
	}
}

// FormatRemaining renders a projected tenure, or ∞ when it is unbounded.
func FormatRemaining(months int, unbounded bool) string {
	if unbounded {
		return Infinity
	}
	return FormatTenure(months)
}

// FormatDate converts YYYY-MM-DD to DD-MM-YYYY. Other input is returned as is.
func FormatDate(date string) string {
	t, err := time.Parse(ledger.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("02-01-2006")
}
