package ledgererror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseError(t *testing.T) {
	err := &ParseError{Row: 4, Column: "Tipo Cambio", Value: "abc", Err: errors.New("invalid decimal")}
	assert.Equal(t, "row 4: failed to parse Tipo Cambio='abc': invalid decimal", err.Error())
	assert.True(t, errors.Is(err, err.Err))
}

func TestHeaderDetectionError_EchoesBanner(t *testing.T) {
	tests := []struct {
		name     string
		err      *HeaderDetectionError
		contains []string
	}{
		{
			name:     "missing both",
			err:      &HeaderDetectionError{Banner: "Listado general"},
			contains: []string{"Listado general", "CUIT", "Emitidos"},
		},
		{
			name:     "missing direction only",
			err:      &HeaderDetectionError{Banner: "CUIT 30716820080", TaxpayerID: "30716820080"},
			contains: []string{"CUIT 30716820080", "tipo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, s := range tt.contains {
				assert.Contains(t, tt.err.Error(), s)
			}
		})
	}
}

func TestRemoteStoreError(t *testing.T) {
	inner := errors.New("503 backend error")
	err := &RemoteStoreError{Op: "fetch", Target: "abc123", Transient: true, Err: inner}

	assert.Equal(t, "remote store fetch 'abc123' failed (transient): 503 backend error", err.Error())
	assert.True(t, errors.Is(err, inner))
	assert.True(t, IsTransient(err))
	assert.True(t, IsRemote(err))

	persistent := &RemoteStoreError{Op: "replace", Err: inner}
	assert.Equal(t, "remote store replace failed (persistent): 503 backend error", persistent.Error())
	assert.False(t, IsTransient(persistent))
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		input    bool
		conflict bool
		remote   bool
	}{
		{"header", &HeaderDetectionError{Banner: "x"}, true, false, false},
		{"dates", &NoValidDatesError{RowsInspected: 3}, true, false, false},
		{"marker", &MissingMarkerColumnError{Marker: "Moneda"}, true, false, false},
		{"wrapped marker", fmt.Errorf("cleaning: %w", &MissingMarkerColumnError{Marker: "Moneda"}), true, false, false},
		{"invalid format", &InvalidFormatError{FileName: "a.pdf", Msg: "unsupported"}, true, false, false},
		{"duplicate", &DuplicateMonthError{Sheet: "Marzo", Workbook: "Libro"}, false, true, false},
		{"confirmation", fmt.Errorf("merge: %w", ErrConfirmationRequired), false, true, false},
		{"auth", &AuthenticationError{Reason: "token revoked"}, false, false, true},
		{"ambiguous", &AmbiguousCommitError{Workbook: "Libro", Sheet: "Marzo", Err: errors.New("timeout")}, false, false, true},
		{"plain", errors.New("boom"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.input, IsInputError(tt.err))
			assert.Equal(t, tt.conflict, IsConflict(tt.err))
			assert.Equal(t, tt.remote, IsRemote(tt.err))
		})
	}
}

func TestNoValidDatesError(t *testing.T) {
	assert.Equal(t, "no valid dates found in 0 rows", (&NoValidDatesError{}).Error())
	err := &NoValidDatesError{RowsInspected: 2, Samples: []string{"foo", "32/13/2024"}}
	assert.Contains(t, err.Error(), `"32/13/2024"`)
}
