// Package common contains shared functionality for command handlers
package common

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"aquere/libros-iva/internal/fileutils"
	"aquere/libros-iva/internal/models"

	"github.com/gocarina/gocsv"
)

// ReadInput loads the export named by path and returns its base name with the data.
func ReadInput(path string) (string, []byte, error) {
	if path == "" {
		return "", nil, fmt.Errorf("an input file is required (--input)")
	}
	data, err := fileutils.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	return filepath.Base(path), data, nil
}

// OpenOutput returns the file named by path, or fallback when path is empty. The
// returned close function is always safe to call.
func OpenOutput(path string, fallback io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return fallback, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating output file %s: %w", path, err)
	}
	return f, f.Close, nil
}

// WriteLedgerCSV writes the cleaned table, totals row included, as delimited text.
// Numbers are written with a dot decimal mark and no grouping.
func WriteLedgerCSV(w io.Writer, ledger *models.CleanedLedger, delimiter rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delimiter
	out := gocsv.NewSafeCSVWriter(cw)

	if err := out.Write(ledger.Columns); err != nil {
		return fmt.Errorf("error writing CSV header: %w", err)
	}
	for _, row := range ledger.AllRows() {
		record := make([]string, len(ledger.Columns))
		for i := range record {
			if i < len(row) {
				record[i] = row[i].String()
			}
		}
		if err := out.Write(record); err != nil {
			return fmt.Errorf("error writing CSV row: %w", err)
		}
	}
	out.Flush()
	return out.Error()
}
