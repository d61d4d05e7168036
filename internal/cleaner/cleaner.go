// Package cleaner applies the bookkeeping rules that turn a normalized ledger into the
// table written to a month sheet: empty amount columns are pruned, amounts are
// converted to pesos, credit notes are signed negative and a totals row is appended.
package cleaner

import (
	"fmt"
	"regexp"

	"aquere/libros-iva/internal/dateutils"
	"aquere/libros-iva/internal/ledgererror"
	"aquere/libros-iva/internal/logging"
	"aquere/libros-iva/internal/models"

	"github.com/shopspring/decimal"
)

// Cleaner holds the compiled rules.
type Cleaner struct {
	creditNote *regexp.Regexp
	logger     logging.Logger
}

// New compiles the credit-note pattern. An empty pattern selects the default.
func New(creditNotePattern string, logger logging.Logger) (*Cleaner, error) {
	if creditNotePattern == "" {
		creditNotePattern = models.DefaultCreditNotePattern
	}
	re, err := regexp.Compile(creditNotePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid credit note pattern '%s': %w", creditNotePattern, err)
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Cleaner{creditNote: re, logger: logger}, nil
}

// IsCreditNote reports whether docType names a credit note.
func (c *Cleaner) IsCreditNote(docType string) bool {
	return c.creditNote.MatchString(docType)
}

// Table is the working form of a ledger between the cleaning steps. Amounts holds one
// slice per row aligned with ExtColumns.
type Table struct {
	ledger     *models.NormalizedLedger
	ExtColumns []string
	Numeric    []bool
	Amounts    [][]models.Cell
}

// NewTable validates the ledger schema and wraps it for cleaning.
func NewTable(ledger *models.NormalizedLedger) (*Table, error) {
	if ledger == nil || ledger.MarkerIndex < 0 || ledger.MarkerIndex >= len(ledger.Columns) {
		var cols []string
		if ledger != nil {
			cols = ledger.Columns
		}
		return nil, &ledgererror.MissingMarkerColumnError{Marker: models.DefaultMarkerColumn, Columns: cols}
	}
	ext := ledger.ExtensionColumns()
	t := &Table{
		ledger:     ledger,
		ExtColumns: append([]string(nil), ext...),
		Amounts:    make([][]models.Cell, len(ledger.Rows)),
	}
	for r, row := range ledger.Rows {
		cells := make([]models.Cell, len(ext))
		for i := range ext {
			if i < len(row.Extensions) {
				cells[i] = row.Extensions[i]
			} else {
				cells[i] = models.Cell{Empty: true}
			}
		}
		t.Amounts[r] = cells
	}
	t.Numeric = numericColumns(t.Amounts, len(ext))
	return t, nil
}

// numericColumns marks a column numeric when it has at least one non-empty cell and
// every non-empty cell parsed as a number.
func numericColumns(rows [][]models.Cell, width int) []bool {
	numeric := make([]bool, width)
	for col := 0; col < width; col++ {
		seen, ok := false, true
		for _, row := range rows {
			c := row[col]
			if c.Empty {
				continue
			}
			seen = true
			if !c.Numeric {
				ok = false
				break
			}
		}
		numeric[col] = seen && ok
	}
	return numeric
}

// ScrubColumns drops extension columns that are entirely empty or entirely zero.
// Columns up to and including the marker are never touched.
func (c *Cleaner) ScrubColumns(t *Table) *Table {
	keep := make([]int, 0, len(t.ExtColumns))
	var dropped []string
	for col := range t.ExtColumns {
		if isEmptyOrZero(t.Amounts, col) {
			dropped = append(dropped, t.ExtColumns[col])
			continue
		}
		keep = append(keep, col)
	}
	if len(dropped) > 0 {
		c.logger.Debug("Dropped empty columns", logging.F(logging.FieldColumns, dropped))
	}

	out := &Table{
		ledger:     t.ledger,
		ExtColumns: make([]string, len(keep)),
		Numeric:    make([]bool, len(keep)),
		Amounts:    make([][]models.Cell, len(t.Amounts)),
	}
	for i, col := range keep {
		out.ExtColumns[i] = t.ExtColumns[col]
		out.Numeric[i] = t.Numeric[col]
	}
	for r, row := range t.Amounts {
		cells := make([]models.Cell, len(keep))
		for i, col := range keep {
			cells[i] = row[col]
		}
		out.Amounts[r] = cells
	}
	return out
}

func isEmptyOrZero(rows [][]models.Cell, col int) bool {
	for _, row := range rows {
		cell := row[col]
		if cell.Empty {
			continue
		}
		if !cell.Numeric || !cell.Value.IsZero() {
			return false
		}
	}
	return true
}

// ScaleAndSign multiplies every numeric extension cell by its row's exchange rate, then
// negates the positive amounts of credit-note rows. The sign check runs on the scaled
// value.
func (c *Cleaner) ScaleAndSign(t *Table) *Table {
	out := &Table{
		ledger:     t.ledger,
		ExtColumns: t.ExtColumns,
		Numeric:    t.Numeric,
		Amounts:    make([][]models.Cell, len(t.Amounts)),
	}
	credits, converted, unconverted := 0, 0, 0
	for r, row := range t.Amounts {
		src := t.ledger.Rows[r]
		rate := src.ExchangeRate
		if rate.IsZero() {
			rate = decimal.NewFromInt(1)
		}
		if src.IsForeignCurrency() {
			if rate.Equal(decimal.NewFromInt(1)) {
				unconverted++
			} else {
				converted++
			}
		}
		credit := c.IsCreditNote(src.Type)
		if credit {
			credits++
		}

		cells := make([]models.Cell, len(row))
		for col, cell := range row {
			if !t.Numeric[col] || cell.Empty {
				cells[col] = cell
				continue
			}
			v := cell.Value.Mul(rate)
			if credit && v.IsPositive() {
				v = v.Neg()
			}
			cells[col] = models.Cell{Raw: cell.Raw, Value: v, Numeric: true}
		}
		out.Amounts[r] = cells
	}
	if credits > 0 {
		c.logger.Debug("Credit notes signed negative", logging.F(logging.FieldCount, credits))
	}
	if converted > 0 {
		c.logger.Debug("Foreign currency rows converted to pesos", logging.F(logging.FieldCount, converted))
	}
	if unconverted > 0 {
		c.logger.Warn("Foreign currency rows without exchange rate kept as is", logging.F(logging.FieldCount, unconverted))
	}
	return out
}

// AppendTotals renders the table and appends the totals row: numeric columns summed,
// every other cell blank.
func (c *Cleaner) AppendTotals(t *Table) *models.CleanedLedger {
	out := c.render(t)
	totals := make([]models.CellValue, len(out.Columns))
	for col := range out.Columns {
		if !out.Numeric[col] {
			totals[col] = models.TextCell("")
			continue
		}
		sum := decimal.Zero
		for _, row := range out.DataRows() {
			if row[col].IsNumber {
				sum = sum.Add(row[col].Number)
			}
		}
		totals[col] = models.NumberCell(sum)
	}
	out.Totals = totals
	return out
}

// render lays out the base cells followed by the kept extension cells. The date is
// rewritten as DD/MM/YYYY and the exchange rate as a number.
func (c *Cleaner) render(t *Table) *models.CleanedLedger {
	base := t.ledger.BaseColumns()
	columns := make([]string, 0, len(base)+len(t.ExtColumns))
	columns = append(columns, base...)
	columns = append(columns, t.ExtColumns...)

	numeric := make([]bool, len(columns))
	copy(numeric[len(base):], t.Numeric)

	dateCol := t.ledger.DateIndex
	rateCol := t.ledger.ExchangeRateIndex

	rows := make([][]models.CellValue, len(t.Amounts))
	for r, amounts := range t.Amounts {
		src := t.ledger.Rows[r]
		row := make([]models.CellValue, 0, len(columns))
		for i := range base {
			var raw string
			if i < len(src.Base) {
				raw = src.Base[i]
			}
			switch i {
			case dateCol:
				row = append(row, models.TextCell(dateutils.ToLedgerDate(src.Date)))
			case rateCol:
				row = append(row, models.NumberCell(src.ExchangeRate))
			default:
				row = append(row, models.TextCell(raw))
			}
		}
		for col, cell := range amounts {
			switch {
			case cell.Empty:
				row = append(row, models.TextCell(""))
			case t.Numeric[col]:
				row = append(row, models.NumberCell(cell.Value))
			default:
				row = append(row, models.TextCell(cell.Raw))
			}
		}
		rows[r] = row
	}
	return &models.CleanedLedger{Columns: columns, Numeric: numeric, Rows: rows}
}

// Clean runs ScrubColumns, ScaleAndSign and AppendTotals in that order.
func (c *Cleaner) Clean(ledger *models.NormalizedLedger) (*models.CleanedLedger, error) {
	t, err := NewTable(ledger)
	if err != nil {
		return nil, err
	}
	cleaned := c.AppendTotals(c.ScaleAndSign(c.ScrubColumns(t)))
	c.logger.Info("Ledger cleaned",
		logging.F(logging.FieldCount, cleaned.RowsProcessed()),
		logging.F(logging.FieldColumns, len(cleaned.Columns)))
	return cleaned, nil
}
