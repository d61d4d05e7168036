// Package ledgererror defines the typed failures raised while normalizing, cleaning and
// merging IVA books. Errors fall in three families so the request layer can tell
// "your file is wrong" from "the month is already there" from "Drive is unavailable".
package ledgererror

import (
	"errors"
	"fmt"
)

// ErrConfirmationRequired signals that the yearly workbook does not exist yet and the
// caller has to confirm its creation. It is a control signal, not a failure.
var ErrConfirmationRequired = errors.New("yearly workbook does not exist; confirmation required to create it")

// ParseError represents a cell that could not be interpreted.
type ParseError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d: failed to parse %s='%s': %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// InvalidFormatError represents an upload that is neither a readable spreadsheet nor a
// delimited export.
type InvalidFormatError struct {
	FileName string
	Msg      string
	Err      error
}

func (e *InvalidFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid ledger file '%s': %s: %v", e.FileName, e.Msg, e.Err)
	}
	return fmt.Sprintf("invalid ledger file '%s': %s", e.FileName, e.Msg)
}

func (e *InvalidFormatError) Unwrap() error {
	return e.Err
}

// HeaderDetectionError is returned when the banner on the first physical row does not
// carry a taxpayer id or a direction marker. Banner holds the raw text that was inspected.
type HeaderDetectionError struct {
	Banner     string
	TaxpayerID string
	Direction  string
}

func (e *HeaderDetectionError) Error() string {
	var missing []string
	if e.TaxpayerID == "" {
		missing = append(missing, "CUIT")
	}
	if e.Direction == "" {
		missing = append(missing, "tipo (Emitidos/Recibidos)")
	}
	return fmt.Sprintf("could not detect %v in header banner '%s'; expected something like 'Mis Comprobantes Emitidos - CUIT 30716820080'",
		missing, e.Banner)
}

// NoValidDatesError is returned when no data row carries a parseable date.
type NoValidDatesError struct {
	RowsInspected int
	Samples       []string
}

func (e *NoValidDatesError) Error() string {
	if len(e.Samples) > 0 {
		return fmt.Sprintf("no valid dates found in %d rows (samples: %q)", e.RowsInspected, e.Samples)
	}
	return fmt.Sprintf("no valid dates found in %d rows", e.RowsInspected)
}

// MissingMarkerColumnError is returned when the currency marker column is absent from
// the tabular header. Column partitioning is undefined without it.
type MissingMarkerColumnError struct {
	Marker  string
	Columns []string
}

func (e *MissingMarkerColumnError) Error() string {
	return fmt.Sprintf("marker column '%s' not found in header %q", e.Marker, e.Columns)
}

// DuplicateMonthError is returned when the target month sheet already exists in the
// yearly workbook. The remote workbook is left untouched.
type DuplicateMonthError struct {
	Sheet    string
	Workbook string
}

func (e *DuplicateMonthError) Error() string {
	return fmt.Sprintf("sheet '%s' already exists in '%s'", e.Sheet, e.Workbook)
}

// RemoteStoreError wraps a failure of the remote document store. Transient marks
// failures that are safe to retry for read operations.
type RemoteStoreError struct {
	Op        string
	Target    string
	Transient bool
	Err       error
}

func (e *RemoteStoreError) Error() string {
	kind := "persistent"
	if e.Transient {
		kind = "transient"
	}
	if e.Target != "" {
		return fmt.Sprintf("remote store %s '%s' failed (%s): %v", e.Op, e.Target, kind, e.Err)
	}
	return fmt.Sprintf("remote store %s failed (%s): %v", e.Op, kind, e.Err)
}

func (e *RemoteStoreError) Unwrap() error {
	return e.Err
}

// AuthenticationError is returned when no usable remote session can be obtained.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// AmbiguousCommitError is returned when the final replace failed in a way that may
// still have reached the store and the follow-up check could not settle it.
type AmbiguousCommitError struct {
	Workbook string
	Sheet    string
	Err      error
}

func (e *AmbiguousCommitError) Error() string {
	return fmt.Sprintf("upload of '%s' (sheet '%s') may or may not have been applied; re-check before retrying: %v",
		e.Workbook, e.Sheet, e.Err)
}

func (e *AmbiguousCommitError) Unwrap() error {
	return e.Err
}

// IsInputError reports whether err is caused by the uploaded file itself.
func IsInputError(err error) bool {
	var (
		header  *HeaderDetectionError
		dates   *NoValidDatesError
		marker  *MissingMarkerColumnError
		parse   *ParseError
		invalid *InvalidFormatError
	)
	return errors.As(err, &header) || errors.As(err, &dates) || errors.As(err, &marker) ||
		errors.As(err, &parse) || errors.As(err, &invalid)
}

// IsConflict reports whether err is an expected conflict rather than a failure.
func IsConflict(err error) bool {
	var dup *DuplicateMonthError
	return errors.As(err, &dup) || errors.Is(err, ErrConfirmationRequired)
}

// IsRemote reports whether err originates in the remote store or the session.
func IsRemote(err error) bool {
	var (
		remote    *RemoteStoreError
		auth      *AuthenticationError
		ambiguous *AmbiguousCommitError
	)
	return errors.As(err, &remote) || errors.As(err, &auth) || errors.As(err, &ambiguous)
}

// IsTransient reports whether err is a remote failure worth retrying for reads.
func IsTransient(err error) bool {
	var remote *RemoteStoreError
	return errors.As(err, &remote) && remote.Transient
}
