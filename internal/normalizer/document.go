package normalizer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"

	"aquere/libros-iva/internal/currencyutils"
	"aquere/libros-iva/internal/ledgererror"
	"aquere/libros-iva/internal/workbook"

	"github.com/gocarina/gocsv"
)

// Format is the container of an uploaded export.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0}
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
)

// Document is the raw cell grid of an export, one slice per physical row.
type Document struct {
	Name   string
	Format Format
	Rows   [][]string
	// Separators tells how numeric cells of this document are written.
	Separators currencyutils.Separators
}

// DetectFormat identifies the container by content first and file extension second.
func DetectFormat(name string, data []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return FormatXLSX, nil
	case bytes.HasPrefix(data, oleMagic):
		return "", &ledgererror.InvalidFormatError{FileName: name, Msg: "legacy .xls workbooks are not supported; save the export as .xlsx"}
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt", "":
		return FormatCSV, nil
	case ".xlsx":
		return "", &ledgererror.InvalidFormatError{FileName: name, Msg: "file has an .xlsx extension but is not a zip package"}
	}
	return "", &ledgererror.InvalidFormatError{FileName: name, Msg: "unsupported file type (expected .xlsx or .csv)"}
}

// Load decodes an export into a Document.
func (n *Normalizer) Load(name string, data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, &ledgererror.InvalidFormatError{FileName: name, Msg: "file is empty"}
	}
	format, err := DetectFormat(name, data)
	if err != nil {
		return nil, err
	}

	doc := &Document{Name: name, Format: format}
	switch format {
	case FormatXLSX:
		rows, err := workbook.ReadGrid(name, data)
		if err != nil {
			return nil, err
		}
		doc.Rows = rows
		doc.Separators = currencyutils.DotDecimal
	case FormatCSV:
		rows, err := readDelimited(name, data, n.opts.CSVDelimiter)
		if err != nil {
			return nil, err
		}
		doc.Rows = rows
		doc.Separators = n.opts.CSVSeparators
	}
	return doc, nil
}

func readDelimited(name string, data []byte, delimiter rune) ([][]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if delimiter == 0 {
		delimiter = sniffDelimiter(data)
	}
	reader, ok := gocsv.LazyCSVReader(bytes.NewReader(data)).(*csv.Reader)
	if !ok {
		return nil, fmt.Errorf("unexpected CSV reader type")
	}
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &ledgererror.InvalidFormatError{FileName: name, Msg: "malformed delimited file", Err: err}
	}
	return rows, nil
}

// sniffDelimiter looks at the tabular header (second line) and picks ';' when it
// occurs more often than ','.
func sniffDelimiter(data []byte) rune {
	lines := bytes.SplitN(data, []byte("\n"), 3)
	line := lines[0]
	if len(lines) > 1 {
		line = lines[1]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}
