// Package models defines the values that flow between the normalizer, the cleaner and
// the merger.
package models

import (
	"fmt"
	"strings"
	"time"

	"aquere/libros-iva/internal/dateutils"

	"github.com/shopspring/decimal"
)

// Direction tells whether an export lists issued (sales) or received (purchases)
// documents.
type Direction string

const (
	DirectionSales     Direction = "sales"
	DirectionPurchases Direction = "purchases"
)

// LedgerType returns the workbook category that stores ledgers of this direction.
func (d Direction) LedgerType() LedgerType {
	if d == DirectionPurchases {
		return LedgerPurchases
	}
	return LedgerSales
}

// LedgerType is the category a yearly workbook belongs to.
type LedgerType string

const (
	LedgerSales     LedgerType = "ventas"
	LedgerPurchases LedgerType = "compras"
)

// ParseLedgerType accepts the Spanish and English spellings of both categories.
func ParseLedgerType(s string) (LedgerType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ventas", "venta", "sales", "emitidos":
		return LedgerSales, nil
	case "compras", "compra", "purchases", "recibidos":
		return LedgerPurchases, nil
	}
	return "", fmt.Errorf("unknown ledger type '%s' (expected ventas or compras)", s)
}

// Title returns the capitalized form used in file and folder names ("Ventas").
func (t LedgerType) Title() string {
	s := string(t)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// DocumentHeader is the metadata carried by the banner on the first row of an export.
type DocumentHeader struct {
	Banner     string
	TaxpayerID string
	Direction  Direction
}

// Cell is one cell after the marker column.
type Cell struct {
	Raw     string
	Value   decimal.Decimal
	Numeric bool
	Empty   bool
}

// LedgerRow is one document line of an export.
type LedgerRow struct {
	// Line is the 1-based physical row in the source file.
	Line     int
	Date     time.Time
	DateText string
	Type     string

	PointOfSale        string
	NumberFrom         string
	NumberTo           string
	AuthCode           string
	CounterpartDocType string
	CounterpartID      string
	CounterpartName    string

	ExchangeRate decimal.Decimal
	Currency     string

	// Base holds the raw cells of every column up to and including the marker.
	Base []string
	// Extensions holds the cells after the marker, in column order.
	Extensions []Cell
}

// IsForeignCurrency reports whether the row is expressed in a currency other than pesos.
func (r LedgerRow) IsForeignCurrency() bool {
	return r.Currency != "" && !strings.EqualFold(r.Currency, LocalCurrencyCode) && !strings.EqualFold(r.Currency, "ARS")
}

// NormalizedLedger is a parsed export: schema, header and dated rows.
type NormalizedLedger struct {
	Header      DocumentHeader
	Columns     []string
	MarkerIndex int

	// DateIndex and ExchangeRateIndex locate those base columns; -1 when absent.
	DateIndex         int
	ExchangeRateIndex int

	Rows []LedgerRow
	// Skipped counts data rows dropped because their date did not parse.
	Skipped int
	// SkippedDates keeps the first few unparseable date cells for diagnostics.
	SkippedDates []string
}

// BaseColumns returns the columns up to and including the marker.
func (l *NormalizedLedger) BaseColumns() []string {
	return l.Columns[:l.MarkerIndex+1]
}

// ExtensionColumns returns the columns after the marker.
func (l *NormalizedLedger) ExtensionColumns() []string {
	return l.Columns[l.MarkerIndex+1:]
}

// Period is the calendar month a ledger belongs to.
type Period struct {
	Month time.Month
	Year  int
}

// SheetName returns the Spanish month name used as the sheet title.
func (p Period) SheetName() string {
	return MonthName(p.Month)
}

func (p Period) String() string {
	return fmt.Sprintf("%s %d", p.SheetName(), p.Year)
}

// Valid reports whether the period names a real month.
func (p Period) Valid() bool {
	return p.Month >= time.January && p.Month <= time.December && p.Year > 0
}

// MonthName returns the Spanish name of m, or "" when m is out of range.
func MonthName(m time.Month) string {
	return dateutils.MonthName(m)
}
