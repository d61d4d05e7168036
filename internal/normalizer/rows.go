package normalizer

import (
	"strings"

	"aquere/libros-iva/internal/currencyutils"
	"aquere/libros-iva/internal/dateutils"
	"aquere/libros-iva/internal/ledgererror"
	"aquere/libros-iva/internal/logging"
	"aquere/libros-iva/internal/models"

	"github.com/shopspring/decimal"
)

const (
	headerRow      = 1
	firstDataRow   = 2
	maxSkipSamples = 5
)

var accentFolder = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n", "º", "", "°", "")

// Column aliases; the first entry is the name used by current exports.
var (
	dateAliases          = []string{"fecha", "fecha de emision"}
	typeAliases          = []string{"tipo", "tipo de comprobante"}
	pointOfSaleAliases   = []string{"punto de venta"}
	numberFromAliases    = []string{"numero desde", "numero de comprobante"}
	numberToAliases      = []string{"numero hasta"}
	authCodeAliases      = []string{"cod. autorizacion", "cod autorizacion"}
	docTypeAliases       = []string{"tipo doc. receptor", "tipo doc. emisor"}
	counterpartIDAliases = []string{"nro. doc. receptor", "nro. doc. emisor"}
	counterpartAliases   = []string{"denominacion receptor", "denominacion emisor"}
	exchangeRateAliases  = []string{"tipo cambio", "tipo de cambio"}
)

func foldName(s string) string {
	return strings.Join(strings.Fields(accentFolder.Replace(strings.ToLower(s))), " ")
}

type columnMap map[string]int

func newColumnMap(columns []string) columnMap {
	m := make(columnMap, len(columns))
	for i, c := range columns {
		key := foldName(c)
		if _, seen := m[key]; !seen {
			m[key] = i
		}
	}
	return m
}

// index returns the position of the first alias present, or -1. Only columns before
// limit are considered.
func (m columnMap) index(limit int, aliases ...string) int {
	for _, a := range aliases {
		if i, ok := m[a]; ok && i < limit {
			return i
		}
	}
	return -1
}

// ParseRows reads the tabular header on the second physical row and turns every
// non-blank row after it into a LedgerRow. Rows whose date does not parse are counted
// in Skipped and left out.
func (n *Normalizer) ParseRows(doc *Document) (*models.NormalizedLedger, error) {
	if len(doc.Rows) <= headerRow {
		return nil, &ledgererror.MissingMarkerColumnError{Marker: n.opts.MarkerColumn}
	}
	columns := make([]string, len(doc.Rows[headerRow]))
	for i, c := range doc.Rows[headerRow] {
		columns[i] = strings.TrimSpace(c)
	}

	cols := newColumnMap(columns)
	marker := cols.index(len(columns), foldName(n.opts.MarkerColumn))
	if marker < 0 {
		return nil, &ledgererror.MissingMarkerColumnError{Marker: n.opts.MarkerColumn, Columns: columns}
	}
	limit := marker + 1

	dateIdx := cols.index(limit, dateAliases...)
	if dateIdx < 0 {
		dateIdx = 0
		n.logger.Warn("No date column found, using the first column",
			logging.F(logging.FieldFile, doc.Name), logging.F(logging.FieldColumns, columns))
	}
	idx := fieldIndexes{
		date:          dateIdx,
		docType:       cols.index(limit, typeAliases...),
		pointOfSale:   cols.index(limit, pointOfSaleAliases...),
		numberFrom:    cols.index(limit, numberFromAliases...),
		numberTo:      cols.index(limit, numberToAliases...),
		authCode:      cols.index(limit, authCodeAliases...),
		docKind:       cols.index(limit, docTypeAliases...),
		counterpartID: cols.index(limit, counterpartIDAliases...),
		counterpart:   cols.index(limit, counterpartAliases...),
		exchangeRate:  cols.index(limit, exchangeRateAliases...),
		currency:      marker,
	}

	ledger := &models.NormalizedLedger{
		Columns:           columns,
		MarkerIndex:       marker,
		DateIndex:         idx.date,
		ExchangeRateIndex: idx.exchangeRate,
	}
	for i := firstDataRow; i < len(doc.Rows); i++ {
		raw := doc.Rows[i]
		if isBlank(raw) {
			continue
		}
		cells := pad(raw, len(columns))

		row, ok, err := n.buildRow(i+1, cells, idx, marker, doc.Separators)
		if err != nil {
			return nil, err
		}
		if !ok {
			ledger.Skipped++
			if len(ledger.SkippedDates) < maxSkipSamples {
				ledger.SkippedDates = append(ledger.SkippedDates, cells[idx.date])
			}
			continue
		}
		ledger.Rows = append(ledger.Rows, row)
	}

	if ledger.Skipped > 0 {
		n.logger.Warn("Dropped rows with unparseable dates",
			logging.F(logging.FieldFile, doc.Name), logging.F(logging.FieldCount, ledger.Skipped))
	}
	return ledger, nil
}

type fieldIndexes struct {
	date, docType, pointOfSale, numberFrom, numberTo, authCode  int
	docKind, counterpartID, counterpart, exchangeRate, currency int
}

func (n *Normalizer) buildRow(line int, cells []string, idx fieldIndexes, marker int, sep currencyutils.Separators) (models.LedgerRow, bool, error) {
	dateText := strings.TrimSpace(cells[idx.date])
	date, err := dateutils.ParseLedgerDate(dateText)
	if err != nil {
		return models.LedgerRow{}, false, nil
	}

	row := models.LedgerRow{
		Line:               line,
		Date:               date,
		DateText:           dateText,
		Type:               cell(cells, idx.docType),
		PointOfSale:        cell(cells, idx.pointOfSale),
		NumberFrom:         cell(cells, idx.numberFrom),
		NumberTo:           cell(cells, idx.numberTo),
		AuthCode:           cell(cells, idx.authCode),
		CounterpartDocType: cell(cells, idx.docKind),
		CounterpartID:      cell(cells, idx.counterpartID),
		CounterpartName:    cell(cells, idx.counterpart),
		Currency:           cell(cells, idx.currency),
		ExchangeRate:       decimal.NewFromInt(1),
		Base:               append([]string(nil), cells[:marker+1]...),
	}

	if rate := cell(cells, idx.exchangeRate); rate != "" {
		r, err := currencyutils.ParseAmountWith(rate, sep)
		if err != nil {
			return models.LedgerRow{}, false, &ledgererror.ParseError{Row: line, Column: models.ColumnExchangeRate, Value: rate, Err: err}
		}
		if r.IsNegative() {
			return models.LedgerRow{}, false, &ledgererror.ParseError{Row: line, Column: models.ColumnExchangeRate, Value: rate, Err: errNegativeRate}
		}
		// a zero rate means the document carries no conversion
		if !r.IsZero() {
			row.ExchangeRate = r
		}
	}

	for _, raw := range cells[marker+1:] {
		row.Extensions = append(row.Extensions, parseCell(raw, sep))
	}
	return row, true, nil
}

func parseCell(raw string, sep currencyutils.Separators) models.Cell {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return models.Cell{Raw: raw, Empty: true}
	}
	v, err := currencyutils.ParseAmountWith(trimmed, sep)
	if err != nil {
		return models.Cell{Raw: raw}
	}
	return models.Cell{Raw: raw, Value: v, Numeric: true}
}

func cell(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func pad(row []string, n int) []string {
	if len(row) >= n {
		return row[:n]
	}
	out := make([]string, n)
	copy(out, row)
	return out
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
