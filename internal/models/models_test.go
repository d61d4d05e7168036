package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLedgerType(t *testing.T) {
	tests := []struct {
		input    string
		expected LedgerType
		hasError bool
	}{
		{"ventas", LedgerSales, false},
		{"Ventas", LedgerSales, false},
		{"sales", LedgerSales, false},
		{" compras ", LedgerPurchases, false},
		{"purchases", LedgerPurchases, false},
		{"gastos", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLedgerType(tt.input)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDirection_LedgerType(t *testing.T) {
	assert.Equal(t, LedgerSales, DirectionSales.LedgerType())
	assert.Equal(t, LedgerPurchases, DirectionPurchases.LedgerType())
	assert.Equal(t, "Ventas", LedgerSales.Title())
	assert.Equal(t, "Compras", LedgerPurchases.Title())
}

func TestPeriod(t *testing.T) {
	p := Period{Month: time.March, Year: 2024}
	assert.Equal(t, "Marzo", p.SheetName())
	assert.Equal(t, "Marzo 2024", p.String())
	assert.True(t, p.Valid())
	assert.False(t, Period{Month: 13, Year: 2024}.Valid())
	assert.False(t, Period{}.Valid())
}

func TestNormalizedLedger_ColumnSplit(t *testing.T) {
	l := &NormalizedLedger{Columns: []string{"Fecha", "Tipo", "Moneda", "Neto", "IVA"}, MarkerIndex: 2}
	assert.Equal(t, []string{"Fecha", "Tipo", "Moneda"}, l.BaseColumns())
	assert.Equal(t, []string{"Neto", "IVA"}, l.ExtensionColumns())
}

func TestLedgerRow_IsForeignCurrency(t *testing.T) {
	assert.False(t, LedgerRow{Currency: "PES"}.IsForeignCurrency())
	assert.False(t, LedgerRow{}.IsForeignCurrency())
	assert.True(t, LedgerRow{Currency: "DOL"}.IsForeignCurrency())
}

func TestLedgerRowBuilder(t *testing.T) {
	date := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	row, err := NewLedgerRowBuilder().
		WithDate(date).
		WithType("1 - Factura A").
		WithCounterpart("30716820080", "ACME SA").
		WithCurrency("DOL", "350.5").
		WithAmounts("100", "", "abc").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "05/03/2024", row.DateText)
	assert.True(t, decimal.RequireFromString("350.5").Equal(row.ExchangeRate))
	require.Len(t, row.Extensions, 3)
	assert.True(t, row.Extensions[0].Numeric)
	assert.True(t, row.Extensions[1].Empty)
	assert.False(t, row.Extensions[2].Numeric)
	assert.Len(t, row.Base, len(StandardColumns))
	assert.Equal(t, "DOL", row.Base[len(row.Base)-1])

	_, err = NewLedgerRowBuilder().WithDate(date).WithCurrency("DOL", "-1").Build()
	assert.Error(t, err)

	_, err = NewLedgerRowBuilder().Build()
	assert.Error(t, err)
}

func TestCleanedLedger(t *testing.T) {
	c := &CleanedLedger{
		Columns: []string{"Fecha", "Neto"},
		Numeric: []bool{false, true},
		Rows: [][]CellValue{
			{TextCell("01/03/2024"), NumberCell(decimal.NewFromInt(10))},
			{TextCell("02/03/2024"), NumberCell(decimal.NewFromInt(20))},
		},
	}
	assert.Equal(t, 2, c.RowsProcessed())
	assert.Len(t, c.AllRows(), 2)

	c.Totals = []CellValue{TextCell(""), NumberCell(decimal.NewFromInt(30))}
	assert.Len(t, c.AllRows(), 3)
	assert.Len(t, c.DataRows(), 2)

	p := c.Preview(1)
	assert.Equal(t, 1, p.RowsProcessed())
	assert.Equal(t, c.Totals, p.Totals)
	assert.Equal(t, "30", p.AllRows()[1][1].String())
}
