package normalizer

import (
	"time"

	"aquere/libros-iva/internal/ledgererror"
	"aquere/libros-iva/internal/models"
)

// DetectPeriod picks the month holding the most dated rows, the lowest month number on
// a tie. The year is the most frequent year among the rows of that month, the smallest
// year on a tie.
func DetectPeriod(rows []models.LedgerRow) (models.Period, error) {
	var monthCounts [13]int
	dated := 0
	for _, r := range rows {
		if r.Date.IsZero() {
			continue
		}
		monthCounts[r.Date.Month()]++
		dated++
	}
	if dated == 0 {
		return models.Period{}, &ledgererror.NoValidDatesError{RowsInspected: len(rows)}
	}

	month := time.January
	for m := time.January; m <= time.December; m++ {
		if monthCounts[m] > monthCounts[month] {
			month = m
		}
	}

	yearCounts := make(map[int]int)
	for _, r := range rows {
		if !r.Date.IsZero() && r.Date.Month() == month {
			yearCounts[r.Date.Year()]++
		}
	}
	year, best := 0, 0
	for y, c := range yearCounts {
		if c > best || (c == best && y < year) {
			year, best = y, c
		}
	}
	return models.Period{Month: month, Year: year}, nil
}
