// Package workbook encodes and decodes the yearly xlsx workbooks and reads the first
// worksheet of uploaded ledger exports.
package workbook

import (
	"bytes"
	"fmt"
	"strings"

	"aquere/libros-iva/internal/ledgererror"
	"aquere/libros-iva/internal/models"
	"aquere/libros-iva/internal/xmlutils"

	"github.com/xuri/excelize/v2"
)

// PlaceholderText is written into the placeholder sheet of a fresh workbook.
const PlaceholderText = "Hoja temporal - se eliminará al agregar el primer mes"

const (
	workbookPart   = "xl/workbook.xml"
	sheetNamesPath = "/workbook/sheets/sheet/@name"
	defaultSheet   = "Sheet1"
	maxColumnWidth = 50
)

// Workbook is an in-memory xlsx document.
type Workbook struct {
	f    *excelize.File
	name string
}

// NewShell returns a workbook holding only the placeholder sheet. A workbook cannot
// exist without at least one sheet.
func NewShell(placeholder string) (*Workbook, error) {
	if placeholder == "" {
		placeholder = models.DefaultPlaceholderSheet
	}
	f := excelize.NewFile()
	if err := f.SetSheetName(defaultSheet, placeholder); err != nil {
		return nil, fmt.Errorf("failed to name placeholder sheet: %w", err)
	}
	if err := f.SetCellValue(placeholder, "A1", PlaceholderText); err != nil {
		return nil, fmt.Errorf("failed to write placeholder sheet: %w", err)
	}
	return &Workbook{f: f}, nil
}

// Open decodes an xlsx document. name is only used in error messages.
func Open(name string, data []byte) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ledgererror.InvalidFormatError{FileName: name, Msg: "not a readable xlsx workbook", Err: err}
	}
	return &Workbook{f: f, name: name}, nil
}

// Close releases the resources held by the document.
func (w *Workbook) Close() error {
	return w.f.Close()
}

// SheetNames lists the sheets in workbook order.
func (w *Workbook) SheetNames() []string {
	return w.f.GetSheetList()
}

// HasSheet reports whether a sheet named name exists. Sheet names compare
// case-insensitively, as spreadsheet applications do.
func (w *Workbook) HasSheet(name string) bool {
	return containsFold(w.SheetNames(), name)
}

// Rows returns the cell values of a sheet as text.
func (w *Workbook) Rows(sheet string) ([][]string, error) {
	rows, err := w.f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet '%s': %w", sheet, err)
	}
	return rows, nil
}

// AddMonthSheet writes ledger as a new sheet. The header row is bold and centered and
// the totals row bold. An existing sheet of the same name is never touched: the call
// fails with DuplicateMonthError. When the placeholder sheet is present it is removed
// once the new sheet exists.
func (w *Workbook) AddMonthSheet(sheet string, ledger *models.CleanedLedger, placeholder string) error {
	if w.HasSheet(sheet) {
		return &ledgererror.DuplicateMonthError{Sheet: sheet, Workbook: w.name}
	}
	idx, err := w.f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet '%s': %w", sheet, err)
	}
	if err := w.writeTable(sheet, ledger); err != nil {
		return err
	}
	w.f.SetActiveSheet(idx)

	if placeholder != "" && placeholder != sheet && w.HasSheet(placeholder) {
		if err := w.f.DeleteSheet(placeholder); err != nil {
			return fmt.Errorf("failed to remove placeholder sheet: %w", err)
		}
		// indices shift after a delete
		if i, err := w.f.GetSheetIndex(sheet); err == nil && i >= 0 {
			w.f.SetActiveSheet(i)
		}
	}
	return nil
}

func (w *Workbook) writeTable(sheet string, ledger *models.CleanedLedger) error {
	header := make([]interface{}, len(ledger.Columns))
	for i, c := range ledger.Columns {
		header[i] = c
	}
	if err := w.f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	rows := ledger.AllRows()
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, c := range row {
			if c.IsNumber {
				cells[j] = c.Number.InexactFloat64()
			} else {
				cells[j] = c.Text
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := w.f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	headerStyle, err := w.f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := w.f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	if ledger.Totals != nil {
		totalsStyle, err := w.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("failed to create totals style: %w", err)
		}
		last := len(rows) + 1
		if err := w.f.SetRowStyle(sheet, last, last, totalsStyle); err != nil {
			return fmt.Errorf("failed to style totals: %w", err)
		}
	}

	return w.fitColumns(sheet, ledger)
}

func (w *Workbook) fitColumns(sheet string, ledger *models.CleanedLedger) error {
	for i, col := range ledger.Columns {
		width := len([]rune(col))
		for _, row := range ledger.AllRows() {
			if i < len(row) {
				if n := len([]rune(row[i].String())); n > width {
					width = n
				}
			}
		}
		width += 2
		if width > maxColumnWidth {
			width = maxColumnWidth
		}
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := w.f.SetColWidth(sheet, name, name, float64(width)); err != nil {
			return fmt.Errorf("failed to size column %s: %w", name, err)
		}
	}
	return nil
}

// Bytes encodes the workbook as xlsx.
func (w *Workbook) Bytes() ([]byte, error) {
	buf, err := w.f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadGrid returns the raw cell values of the first worksheet of an xlsx export.
// Date cells come back as serial numbers and numbers without display formatting.
func ReadGrid(name string, data []byte) ([][]string, error) {
	w, err := Open(name, data)
	if err != nil {
		return nil, err
	}
	defer func() { _ = w.Close() }()

	sheets := w.SheetNames()
	if len(sheets) == 0 {
		return nil, &ledgererror.InvalidFormatError{FileName: name, Msg: "workbook has no sheets"}
	}
	rows, err := w.f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &ledgererror.InvalidFormatError{FileName: name, Msg: "failed to read first sheet", Err: err}
	}
	return rows, nil
}

// ProbeSheetNames lists the sheet names of an encoded workbook by reading the package
// manifest only, without decoding any worksheet.
func ProbeSheetNames(data []byte) ([]string, error) {
	names, err := xmlutils.ExtractFromPackage(data, workbookPart, sheetNamesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to probe sheet names: %w", err)
	}
	return names, nil
}

// ContainsSheet reports whether the encoded workbook in data has a sheet named sheet.
func ContainsSheet(data []byte, sheet string) (bool, error) {
	names, err := ProbeSheetNames(data)
	if err != nil {
		return false, err
	}
	return containsFold(names, sheet), nil
}

func containsFold(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}
