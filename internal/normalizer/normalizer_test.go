package normalizer

import (
	"strings"
	"testing"
	"time"

	"aquere/libros-iva/internal/currencyutils"
	"aquere/libros-iva/internal/ledgererror"
	"aquere/libros-iva/internal/logging"
	"aquere/libros-iva/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const salesCSV = `Mis Comprobantes Emitidos - CUIT 30716820080;;;
Fecha;Tipo;Punto de Venta;Número Desde;Nro. Doc. Receptor;Denominación Receptor;Tipo Cambio;Moneda;Imp. Neto Gravado;IVA;Imp. Total;Otros Tributos
01/03/2024;1 - Factura A;3;101;30500000007;ACME SA;1,000000;PES;1.000,00;210,00;1.210,00;0
15/03/2024;3 - Nota de Crédito A;3;5;30500000007;ACME SA;1,000000;PES;100,00;21,00;121,00;0
;;;;;;;;;;;
02/04/2024;1 - Factura A;3;102;20111111112;Juan Perez;350,500000;DOL;10,00;2,10;12,10;0
`

func newTestNormalizer() *Normalizer {
	return New(DefaultOptions(), logging.NewMockLogger())
}

func loadCSV(t *testing.T, content string) *Document {
	t.Helper()
	doc, err := newTestNormalizer().Load("export.csv", []byte(content))
	require.NoError(t, err)
	return doc
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name      string
		firstRow  []string
		taxID     string
		direction models.Direction
		hasError  bool
	}{
		{"spanish sales", []string{"Mis Comprobantes Emitidos - CUIT 30716820080"}, "30716820080", models.DirectionSales, false},
		{"spanish purchases", []string{"Mis Comprobantes Recibidos - CUIT: 20123456786"}, "20123456786", models.DirectionPurchases, false},
		{"english issued", []string{"My Issued Documents - Tax ID 30716820080"}, "30716820080", models.DirectionSales, false},
		{"hyphenated id", []string{"Mis Comprobantes Emitidos - CUIT 30-71682008-0"}, "30716820080", models.DirectionSales, false},
		{"bare id", []string{"Comprobantes recibidos 27000000006"}, "27000000006", models.DirectionPurchases, false},
		{"labelled id preferred", []string{"Comprobantes emitidos 11111111111 CUIT 30716820080"}, "30716820080", models.DirectionSales, false},
		{"banner outside A1", []string{"", "Listado", "Mis Comprobantes Emitidos - CUIT 30716820080"}, "30716820080", models.DirectionSales, false},
		{"missing direction", []string{"Mis Comprobantes - CUIT 30716820080"}, "30716820080", "", true},
		{"missing id", []string{"Mis Comprobantes Emitidos"}, "", models.DirectionSales, true},
		{"ten digits is not an id", []string{"Comprobantes Emitidos 3071682008"}, "", models.DirectionSales, true},
		{"labelled twelve digits is not truncated", []string{"Mis Comprobantes Emitidos - CUIT 307168200801"}, "", models.DirectionSales, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header, err := ParseHeader(&Document{Rows: [][]string{tt.firstRow}})
			assert.Equal(t, tt.taxID, header.TaxpayerID)
			assert.Equal(t, tt.direction, header.Direction)
			if tt.hasError {
				var hdErr *ledgererror.HeaderDetectionError
				require.ErrorAs(t, err, &hdErr)
				assert.Contains(t, err.Error(), header.Banner)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestParseHeader_EmptyDocument(t *testing.T) {
	_, err := ParseHeader(&Document{})
	var hdErr *ledgererror.HeaderDetectionError
	assert.ErrorAs(t, err, &hdErr)
}

func rowOn(day, month, year int) models.LedgerRow {
	return models.LedgerRow{Date: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func TestDetectPeriod(t *testing.T) {
	tests := []struct {
		name     string
		rows     []models.LedgerRow
		expected models.Period
	}{
		{"majority month", []models.LedgerRow{rowOn(1, 3, 2024), rowOn(15, 3, 2024), rowOn(2, 4, 2024)}, models.Period{Month: time.March, Year: 2024}},
		{"tie picks lowest month", []models.LedgerRow{rowOn(2, 4, 2024), rowOn(1, 3, 2024)}, models.Period{Month: time.March, Year: 2024}},
		{"year is mode within month", []models.LedgerRow{rowOn(1, 1, 2024), rowOn(2, 1, 2024), rowOn(3, 1, 2023), rowOn(1, 12, 2023)}, models.Period{Month: time.January, Year: 2024}},
		{"year tie picks smallest", []models.LedgerRow{rowOn(1, 1, 2025), rowOn(2, 1, 2024)}, models.Period{Month: time.January, Year: 2024}},
		{"undated rows ignored", []models.LedgerRow{{}, {}, rowOn(9, 7, 2024)}, models.Period{Month: time.July, Year: 2024}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectPeriod(tt.rows)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDetectPeriod_NoDates(t *testing.T) {
	_, err := DetectPeriod([]models.LedgerRow{{}, {}})
	var noDates *ledgererror.NoValidDatesError
	require.ErrorAs(t, err, &noDates)
	assert.Equal(t, 2, noDates.RowsInspected)
}

func TestParseRows_CSV(t *testing.T) {
	n := newTestNormalizer()
	doc := loadCSV(t, salesCSV)
	assert.Equal(t, FormatCSV, doc.Format)

	ledger, err := n.ParseRows(doc)
	require.NoError(t, err)

	assert.Equal(t, 7, ledger.MarkerIndex)
	assert.Equal(t, []string{"Imp. Neto Gravado", "IVA", "Imp. Total", "Otros Tributos"}, ledger.ExtensionColumns())
	require.Len(t, ledger.Rows, 3, "blank row ignored")
	assert.Equal(t, 0, ledger.Skipped)

	first := ledger.Rows[0]
	assert.Equal(t, 3, first.Line)
	assert.Equal(t, "1 - Factura A", first.Type)
	assert.Equal(t, "30500000007", first.CounterpartID)
	assert.Equal(t, "ACME SA", first.CounterpartName)
	assert.Equal(t, "PES", first.Currency)
	assert.True(t, first.ExchangeRate.Equal(decimal.NewFromInt(1)))
	require.Len(t, first.Extensions, 4)
	assert.True(t, first.Extensions[0].Value.Equal(decimal.NewFromInt(1000)))
	assert.True(t, first.Extensions[3].Numeric)
	assert.Len(t, first.Base, 8)

	foreign := ledger.Rows[2]
	assert.True(t, foreign.ExchangeRate.Equal(decimal.RequireFromString("350.5")))
	assert.True(t, foreign.IsForeignCurrency())
}

func TestParseRows_DropsUndatedRows(t *testing.T) {
	content := "Mis Comprobantes Emitidos - CUIT 30716820080\n" +
		"Fecha,Tipo,Moneda,Total\n" +
		"01/03/2024,1 - Factura A,PES,10\n" +
		"Total general,,PES,10\n"
	n := newTestNormalizer()
	ledger, err := n.ParseRows(loadCSV(t, content))
	require.NoError(t, err)
	assert.Len(t, ledger.Rows, 1)
	assert.Equal(t, 1, ledger.Skipped)
	assert.Equal(t, []string{"Total general"}, ledger.SkippedDates)
}

func TestParseRows_MissingMarker(t *testing.T) {
	content := "Mis Comprobantes Emitidos - CUIT 30716820080\nFecha,Tipo,Total\n01/03/2024,FA,10\n"
	_, err := newTestNormalizer().ParseRows(loadCSV(t, content))
	var missing *ledgererror.MissingMarkerColumnError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "Moneda", missing.Marker)
	assert.Equal(t, []string{"Fecha", "Tipo", "Total"}, missing.Columns)
}

func TestParseRows_ExchangeRate(t *testing.T) {
	tests := []struct {
		name    string
		rate    string
		want    int64
		wantErr bool
	}{
		{name: "explicit rate", rate: "3", want: 3},
		{name: "blank defaults to one", rate: "", want: 1},
		{name: "zero defaults to one", rate: "0", want: 1},
		{name: "negative rejected", rate: "-2", wantErr: true},
		{name: "text rejected", rate: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := "Mis Comprobantes Emitidos - CUIT 30716820080\nFecha;Tipo Cambio;Moneda;Total\n01/03/2024;" + tt.rate + ";DOL;10\n"
			ledger, err := newTestNormalizer().ParseRows(loadCSV(t, content))
			if tt.wantErr {
				var parseErr *ledgererror.ParseError
				require.ErrorAs(t, err, &parseErr)
				assert.Equal(t, 3, parseErr.Row)
				assert.True(t, ledgererror.IsInputError(err))
				return
			}
			require.NoError(t, err)
			require.Len(t, ledger.Rows, 1)
			assert.True(t, ledger.Rows[0].ExchangeRate.Equal(decimal.NewFromInt(tt.want)))
		})
	}
}

func TestNormalize(t *testing.T) {
	n := newTestNormalizer()
	result, err := n.Normalize(loadCSV(t, salesCSV))
	require.NoError(t, err)

	assert.Equal(t, "30716820080", result.Ledger.Header.TaxpayerID)
	assert.Equal(t, models.DirectionSales, result.Ledger.Header.Direction)
	assert.Equal(t, models.Period{Month: time.March, Year: 2024}, result.Period)
}

func TestNormalize_NoValidDates(t *testing.T) {
	content := "Mis Comprobantes Emitidos - CUIT 30716820080\nFecha,Moneda,Total\nfoo,PES,1\n32/13/2024,PES,2\n"
	_, err := newTestNormalizer().NormalizeFile("export.csv", []byte(content))
	var noDates *ledgererror.NoValidDatesError
	require.ErrorAs(t, err, &noDates)
	assert.Equal(t, 2, noDates.RowsInspected)
	assert.Equal(t, []string{"foo", "32/13/2024"}, noDates.Samples)
}

func TestNormalizeFile_XLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Mis Comprobantes Recibidos - CUIT 20123456786"))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"Fecha", "Tipo", "Tipo Cambio", "Moneda", "Imp. Total"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{"05/02/2024", "11 - Factura C", 1, "PES", 1500.25}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A4", &[]interface{}{45337, "11 - Factura C", 1, "PES", 99.75}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	result, err := newTestNormalizer().NormalizeFile("comprobantes.xlsx", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, models.DirectionPurchases, result.Ledger.Header.Direction)
	assert.Equal(t, models.Period{Month: time.February, Year: 2024}, result.Period)
	require.Len(t, result.Ledger.Rows, 2)
	assert.True(t, result.Ledger.Rows[0].Extensions[0].Value.Equal(decimal.RequireFromString("1500.25")))
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected Format
		hasError bool
	}{
		{"ledger.xlsx", []byte("PK\x03\x04rest"), FormatXLSX, false},
		{"upload", []byte("PK\x03\x04rest"), FormatXLSX, false},
		{"ledger.csv", []byte("a;b"), FormatCSV, false},
		{"ledger.xls", []byte{0xD0, 0xCF, 0x11, 0xE0, 0x00}, "", true},
		{"broken.xlsx", []byte("garbage"), "", true},
		{"ledger.pdf", []byte("%PDF"), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.name, tt.data)
			if tt.hasError {
				var invalid *ledgererror.InvalidFormatError
				assert.ErrorAs(t, err, &invalid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestLoad_CSVOptions(t *testing.T) {
	content := "\xEF\xBB\xBFMis Comprobantes Emitidos - CUIT 30716820080\nFecha,Moneda,Total\n01/03/2024,PES,1234.50\n"
	n := New(Options{CSVDelimiter: ',', CSVSeparators: currencyutils.DotDecimal}, nil)
	doc, err := n.Load("export.csv", []byte(content))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(doc.Rows[0][0], "Mis"))

	ledger, err := n.ParseRows(doc)
	require.NoError(t, err)
	assert.True(t, ledger.Rows[0].Extensions[0].Value.Equal(decimal.RequireFromString("1234.5")))

	_, err = n.Load("empty.csv", nil)
	assert.Error(t, err)
}

func TestSniffDelimiter(t *testing.T) {
	assert.Equal(t, ';', sniffDelimiter([]byte("banner, with comma\nFecha;Tipo;Moneda\n")))
	assert.Equal(t, ',', sniffDelimiter([]byte("banner\nFecha,Tipo,Moneda\n")))
	assert.Equal(t, ',', sniffDelimiter([]byte("single line")))
}
