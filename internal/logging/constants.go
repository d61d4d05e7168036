package logging

// Field names shared by every component so that log lines can be filtered by
// client, workbook or merge step regardless of which package emitted them.
const (
	FieldFile       = "file_name"
	FieldClient     = "client"
	FieldTaxpayerID = "cuit"
	FieldLedgerType = "tipo"
	FieldYear       = "year"
	FieldMonth      = "month"
	FieldSheet      = "sheet"
	FieldWorkbook   = "workbook"
	FieldFileID     = "file_id"
	FieldFolder     = "folder"
	FieldOperation  = "operation"
	FieldMergeID    = "merge_id"
	FieldState      = "state"
	FieldStatus     = "status"
	FieldError      = "error"
	FieldDuration   = "duration_ms"
	FieldCount      = "count"
	FieldColumns    = "columns"
	FieldAttempt    = "attempt"
	FieldDelay      = "delay"
	FieldTempFile   = "temp_file"
)
