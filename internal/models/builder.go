package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LedgerRowBuilder provides a fluent API for constructing ledger rows. Base cells are
// kept in step with the typed fields for the standard column layout.
type LedgerRowBuilder struct {
	row LedgerRow
	err error
}

// NewLedgerRowBuilder creates a builder for a peso-denominated row.
func NewLedgerRowBuilder() *LedgerRowBuilder {
	return &LedgerRowBuilder{
		row: LedgerRow{
			ExchangeRate: decimal.NewFromInt(1),
			Currency:     LocalCurrencyCode,
		},
	}
}

// WithDate sets the row date.
func (b *LedgerRowBuilder) WithDate(date time.Time) *LedgerRowBuilder {
	if b.err != nil {
		return b
	}
	if date.IsZero() {
		b.err = errors.New("date cannot be zero")
		return b
	}
	b.row.Date = date
	b.row.DateText = date.Format("02/01/2006")
	return b
}

// WithType sets the document type ("1 - Factura A", "3 - Nota de Crédito A").
func (b *LedgerRowBuilder) WithType(docType string) *LedgerRowBuilder {
	if b.err != nil {
		return b
	}
	b.row.Type = docType
	return b
}

// WithCounterpart sets the counterpart id and name.
func (b *LedgerRowBuilder) WithCounterpart(id, name string) *LedgerRowBuilder {
	if b.err != nil {
		return b
	}
	b.row.CounterpartID = id
	b.row.CounterpartName = name
	return b
}

// WithCurrency sets the currency code and the exchange rate. A zero rate keeps the
// default of 1.
func (b *LedgerRowBuilder) WithCurrency(code string, rate string) *LedgerRowBuilder {
	if b.err != nil {
		return b
	}
	r, err := decimal.NewFromString(rate)
	if err != nil {
		b.err = fmt.Errorf("invalid exchange rate '%s': %w", rate, err)
		return b
	}
	if r.IsNegative() {
		b.err = fmt.Errorf("exchange rate must not be negative, got %s", rate)
		return b
	}
	b.row.Currency = code
	if !r.IsZero() {
		b.row.ExchangeRate = r
	}
	return b
}

// WithAmounts appends extension cells. Empty strings become empty cells.
func (b *LedgerRowBuilder) WithAmounts(amounts ...string) *LedgerRowBuilder {
	if b.err != nil {
		return b
	}
	for _, a := range amounts {
		if a == "" {
			b.row.Extensions = append(b.row.Extensions, Cell{Empty: true})
			continue
		}
		v, err := decimal.NewFromString(a)
		if err != nil {
			b.row.Extensions = append(b.row.Extensions, Cell{Raw: a})
			continue
		}
		b.row.Extensions = append(b.row.Extensions, Cell{Raw: a, Value: v, Numeric: true})
	}
	return b
}

// Build returns the row, with Base cells laid out as StandardColumns up to the marker.
func (b *LedgerRowBuilder) Build() (LedgerRow, error) {
	if b.err != nil {
		return LedgerRow{}, b.err
	}
	if b.row.Date.IsZero() {
		return LedgerRow{}, errors.New("date is required")
	}
	r := b.row
	r.Base = []string{
		r.DateText, r.Type, r.PointOfSale, r.NumberFrom,
		r.CounterpartID, r.CounterpartName, r.ExchangeRate.String(), r.Currency,
	}
	return r, nil
}

// StandardColumns is the base layout produced by Build.
var StandardColumns = []string{
	ColumnDate, ColumnType, ColumnPointOfSale, ColumnNumberFrom,
	ColumnCounterpartID, ColumnCounterpartName, ColumnExchangeRate, ColumnCurrency,
}
