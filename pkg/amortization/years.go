package amortization

import (
	"errors"

	"github.com/mcclellann/emiTracker/pkg/models"
)

const monthsPerYear = 12

var ErrYearOutOfRange = errors.New("year is outside the schedule")

// YearCount is the number of 12-month blocks needed to cover tenure months.
func YearCount(tenureMonths int) int {
	if tenureMonths <= 0 {
		return 0
	}
	return (tenureMonths + monthsPerYear - 1) / monthsPerYear
}

// YearRange returns the first and last month of year (1-based). The last year
// is cut short at totalMonths.
func YearRange(year, totalMonths int) (int, int, error) {
	if year < 1 || year > YearCount(totalMonths) {
		return 0, 0, ErrYearOutOfRange
	}
	start := (year-1)*monthsPerYear + 1
	end := min(year*monthsPerYear, totalMonths)
	return start, end, nil
}

// Summarize aggregates rows whose month falls in [start, end].
func Summarize(rows []models.ScheduleRow, start, end int, prepayments, charges MonthlyTotals) models.YearSummary {
	sum := models.YearSummary{StartMonth: start, EndMonth: end}
	for i := range rows {
		row := &rows[i]
		if row.Month < start || row.Month > end {
			continue
		}
		sum.Principal += row.PrincipalAmount
		sum.Interest += row.InterestAmount
		sum.Prepayments += totalFor(prepayments, row.Month)
		sum.Charges += totalFor(charges, row.Month)
		if row.Month == end {
			sum.ClosingBalance = row.ClosingBalance
		}
	}
	return sum
}

// YearTotals aggregates a single year of the schedule.
func YearTotals(rows []models.ScheduleRow, year int, prepayments, charges MonthlyTotals) (models.YearSummary, error) {
	start, end, err := YearRange(year, len(rows))
	if err != nil {
		return models.YearSummary{}, err
	}
	sum := Summarize(rows, start, end, prepayments, charges)
	sum.Year = year
	return sum, nil
}

// AllYears aggregates every year of the schedule in order.
func AllYears(rows []models.ScheduleRow, prepayments, charges MonthlyTotals) []models.YearSummary {
	years := make([]models.YearSummary, 0, YearCount(len(rows)))
	for year := 1; year <= YearCount(len(rows)); year++ {
		sum, _ := YearTotals(rows, year, prepayments, charges)
		years = append(years, sum)
	}
	return years
}
