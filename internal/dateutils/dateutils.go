// Package dateutils parses the date cells found in ledger exports and names months the
// way the yearly workbooks do.
package dateutils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// Date layouts seen in ledger exports.
const (
	DateLayoutLedger    = "02/01/2006"
	DateLayoutISO       = "2006-01-02"
	DateLayoutEuropean  = "02.01.2006"
	DateLayoutDashed    = "02-01-2006"
	DateLayoutFull      = "2006-01-02 15:04:05"
	DateLayoutShortYear = "02/01/06"
	DateLayoutSlashISO  = "2006/01/02"
)

// CommonFormats is the order in which layouts are tried. Day-first comes first: the
// exports never use month-first dates.
var CommonFormats = []string{
	DateLayoutLedger,
	"2/1/2006",
	DateLayoutISO,
	DateLayoutFull,
	"2006-01-02T15:04:05",
	DateLayoutEuropean,
	DateLayoutDashed,
	DateLayoutSlashISO,
	DateLayoutShortYear,
}

// Excel serial dates accepted as dates: 1900-01-01 to 9999-12-31.
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	serialDate = regexp.MustCompile(`^\d{1,7}(\.\d+)?$`)
)

var monthNames = [...]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// ParseDate attempts to parse a date string using CommonFormats and returns the
// layout that matched.
func ParseDate(dateStr string) (time.Time, string, error) {
	dateStr = CleanDateString(dateStr)
	for _, format := range CommonFormats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, format, nil
		}
	}
	return time.Time{}, "", fmt.Errorf("unable to parse date: %s", dateStr)
}

// ParseLedgerDate parses a ledger date cell. Textual layouts are tried first, then
// spreadsheet serial numbers (raw cell values of date-formatted cells).
func ParseLedgerDate(dateStr string) (time.Time, error) {
	cleaned := CleanDateString(dateStr)
	if cleaned == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, _, err := ParseDate(cleaned); err == nil {
		return t, nil
	}
	if serialDate.MatchString(cleaned) {
		return ParseExcelSerial(cleaned)
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", cleaned)
}

// ParseExcelSerial converts a spreadsheet serial day number into a date.
func ParseExcelSerial(s string) (time.Time, error) {
	serial, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid serial date '%s': %w", s, err)
	}
	if serial < minExcelSerial || serial > maxExcelSerial {
		return time.Time{}, fmt.Errorf("serial date %s out of range", s)
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid serial date '%s': %w", s, err)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// ToLedgerDate formats date as DD/MM/YYYY.
func ToLedgerDate(date time.Time) string {
	return date.Format(DateLayoutLedger)
}

// CleanDateString trims and collapses whitespace.
func CleanDateString(dateStr string) string {
	return whitespace.ReplaceAllString(strings.TrimSpace(dateStr), " ")
}

// MonthName returns the Spanish name used for month sheets ("Enero".."Diciembre").
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthNames[m-1]
}

// MonthFromName is the inverse of MonthName. Matching is case-insensitive.
func MonthFromName(name string) (time.Month, bool) {
	name = strings.TrimSpace(name)
	for i, n := range monthNames {
		if strings.EqualFold(n, name) {
			return time.Month(i + 1), true
		}
	}
	return 0, false
}
