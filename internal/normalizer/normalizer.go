// Package normalizer turns an uploaded "Mis Comprobantes" export into a validated,
// typed row set and detects the taxpayer, direction and period it covers.
package normalizer

import (
	"errors"

	"aquere/libros-iva/internal/currencyutils"
	"aquere/libros-iva/internal/ledgererror"
	"aquere/libros-iva/internal/logging"
	"aquere/libros-iva/internal/models"
)

var errNegativeRate = errors.New("exchange rate must not be negative")

// Options configures how exports are read.
type Options struct {
	// MarkerColumn separates base columns from extension columns.
	MarkerColumn string
	// CSVDelimiter is the field separator of delimited exports; 0 sniffs it.
	CSVDelimiter rune
	// CSVSeparators describes numbers in delimited exports.
	CSVSeparators currencyutils.Separators
}

// DefaultOptions matches the exports as downloaded.
func DefaultOptions() Options {
	return Options{
		MarkerColumn:  models.DefaultMarkerColumn,
		CSVSeparators: currencyutils.CommaDecimal,
	}
}

// Normalizer parses exports.
type Normalizer struct {
	opts   Options
	logger logging.Logger
}

// New creates a Normalizer.
func New(opts Options, logger logging.Logger) *Normalizer {
	if opts.MarkerColumn == "" {
		opts.MarkerColumn = models.DefaultMarkerColumn
	}
	if opts.CSVSeparators.Decimal == 0 {
		opts.CSVSeparators = currencyutils.CommaDecimal
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Normalizer{opts: opts, logger: logger}
}

// Result bundles everything extracted from one export.
type Result struct {
	Ledger *models.NormalizedLedger
	Period models.Period
}

// Normalize runs header parsing, row parsing and period detection on doc.
func (n *Normalizer) Normalize(doc *Document) (*Result, error) {
	header, err := ParseHeader(doc)
	if err != nil {
		return nil, err
	}
	ledger, err := n.ParseRows(doc)
	if err != nil {
		return nil, err
	}
	ledger.Header = header

	period, err := n.detect(ledger)
	if err != nil {
		return nil, err
	}

	n.logger.Info("Ledger normalized",
		logging.F(logging.FieldFile, doc.Name),
		logging.F(logging.FieldTaxpayerID, header.TaxpayerID),
		logging.F(logging.FieldLedgerType, header.Direction.LedgerType()),
		logging.F(logging.FieldMonth, period.SheetName()),
		logging.F(logging.FieldYear, period.Year),
		logging.F(logging.FieldCount, len(ledger.Rows)))
	return &Result{Ledger: ledger, Period: period}, nil
}

// NormalizeFile loads and normalizes an uploaded file in one call.
func (n *Normalizer) NormalizeFile(name string, data []byte) (*Result, error) {
	doc, err := n.Load(name, data)
	if err != nil {
		return nil, err
	}
	return n.Normalize(doc)
}

// DetectPeriodOnly parses rows and detects the period without requiring a valid banner.
func (n *Normalizer) DetectPeriodOnly(doc *Document) (models.Period, error) {
	ledger, err := n.ParseRows(doc)
	if err != nil {
		return models.Period{}, err
	}
	return n.detect(ledger)
}

func (n *Normalizer) detect(ledger *models.NormalizedLedger) (models.Period, error) {
	period, err := DetectPeriod(ledger.Rows)
	var noDates *ledgererror.NoValidDatesError
	if errors.As(err, &noDates) {
		return models.Period{}, &ledgererror.NoValidDatesError{
			RowsInspected: len(ledger.Rows) + ledger.Skipped,
			Samples:       ledger.SkippedDates,
		}
	}
	return period, err
}
