package models

import "github.com/shopspring/decimal"

// CellValue is one cell of a cleaned table. Numeric cells are written to workbooks as
// numbers; the rest as text.
type CellValue struct {
	Text     string
	Number   decimal.Decimal
	IsNumber bool
}

// TextCell builds a text CellValue.
func TextCell(s string) CellValue {
	return CellValue{Text: s}
}

// NumberCell builds a numeric CellValue.
func NumberCell(d decimal.Decimal) CellValue {
	return CellValue{Text: d.String(), Number: d, IsNumber: true}
}

// String returns the display form of the cell.
func (c CellValue) String() string {
	if c.IsNumber {
		return c.Number.String()
	}
	return c.Text
}

// CleanedLedger is the final table for one month: data rows followed by one totals row.
type CleanedLedger struct {
	Columns []string
	// Numeric marks the columns that are scaled and summed.
	Numeric []bool
	Rows    [][]CellValue
	// Totals is nil until totals are appended.
	Totals []CellValue
}

// DataRows returns the rows without the totals row.
func (c *CleanedLedger) DataRows() [][]CellValue {
	return c.Rows
}

// AllRows returns the data rows followed by the totals row when present.
func (c *CleanedLedger) AllRows() [][]CellValue {
	if c.Totals == nil {
		return c.Rows
	}
	all := make([][]CellValue, 0, len(c.Rows)+1)
	all = append(all, c.Rows...)
	return append(all, c.Totals)
}

// RowsProcessed is the number of data rows.
func (c *CleanedLedger) RowsProcessed() int {
	return len(c.DataRows())
}

// Preview returns a copy limited to the first n data rows, keeping the totals row.
func (c *CleanedLedger) Preview(n int) *CleanedLedger {
	rows := c.DataRows()
	if n >= 0 && len(rows) > n {
		rows = rows[:n]
	}
	return &CleanedLedger{Columns: c.Columns, Numeric: c.Numeric, Rows: rows, Totals: c.Totals}
}
