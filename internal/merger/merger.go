// Package merger inserts a cleaned month into the remote yearly workbook.
//
// A merge walks CHECKING → (NEEDS_CONFIRMATION | FETCHING) → MERGING →
// (REJECTED | COMMITTED). The remote workbook is written at most once per merge and
// never when the month is already present or the workbook is missing and creation
// was not confirmed.
package merger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aquere/libros-iva/internal/fileutils"
	"aquere/libros-iva/internal/ledgererror"
	"aquere/libros-iva/internal/logging"
	"aquere/libros-iva/internal/models"
	"aquere/libros-iva/internal/remotestore"
	"aquere/libros-iva/internal/workbook"

	"github.com/google/uuid"
)

// State is a step of the merge protocol.
type State string

const (
	StateChecking          State = "CHECKING"
	StateNeedsConfirmation State = "NEEDS_CONFIRMATION"
	StateFetching          State = "FETCHING"
	StateMerging           State = "MERGING"
	StateRejected          State = "REJECTED"
	StateCommitted         State = "COMMITTED"
)

// Status is the outcome reported to callers.
type Status string

const (
	StatusCommitted         Status = "committed"
	StatusNeedsConfirmation Status = "needs_confirmation"
	StatusRejected          Status = "rejected"
	StatusFailed            Status = "failed"
)

// Request describes one month to merge.
type Request struct {
	Key           remotestore.Key
	Period        models.Period
	Ledger        *models.CleanedLedger
	ConfirmCreate bool
}

// Result describes what happened to the remote workbook.
type Result struct {
	ID            string
	Status        Status
	Message       string
	FileName      string
	SheetName     string
	Year          int
	RowsProcessed int
	Created       bool
	Handle        remotestore.Handle
}

// Observer receives the outcome of every merge.
type Observer interface {
	ObserveMerge(status Status, rows int, d time.Duration)
}

// Options tunes a Merger.
type Options struct {
	Placeholder string
	// ProbeTimeout bounds the check run after a failed replace.
	ProbeTimeout time.Duration
	Observer     Observer
}

// Merger runs the merge protocol against a Store.
type Merger struct {
	store  remotestore.Store
	temp   *fileutils.TempDir
	opts   Options
	logger logging.Logger
}

// New creates a Merger keeping its working copies in temp.
func New(store remotestore.Store, temp *fileutils.TempDir, opts Options, logger logging.Logger) *Merger {
	if opts.Placeholder == "" {
		opts.Placeholder = models.DefaultPlaceholderSheet
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	if temp == nil {
		temp = fileutils.NewTempDir("", fileutils.DefaultReleasePolicy, logger)
	}
	return &Merger{store: store, temp: temp, opts: opts, logger: logger}
}

func validate(req Request) error {
	if err := req.Key.Validate(); err != nil {
		return err
	}
	if !req.Period.Valid() {
		return fmt.Errorf("invalid period %s", req.Period)
	}
	if req.Period.Year != req.Key.Year {
		return fmt.Errorf("period %s does not belong to workbook year %d", req.Period, req.Key.Year)
	}
	if req.Ledger == nil || len(req.Ledger.Columns) == 0 {
		return errors.New("ledger has no columns")
	}
	return nil
}

// Merge runs the protocol. A missing workbook without ConfirmCreate returns a
// needs-confirmation result together with ErrConfirmationRequired.
func (m *Merger) Merge(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	res := Result{
		ID:        uuid.NewString(),
		FileName:  req.Key.FileName(),
		SheetName: req.Period.SheetName(),
		Year:      req.Key.Year,
	}
	if req.Ledger != nil {
		res.RowsProcessed = req.Ledger.RowsProcessed()
	}
	log := m.logger.WithFields(
		logging.F(logging.FieldMergeID, res.ID),
		logging.F(logging.FieldWorkbook, res.FileName),
		logging.F(logging.FieldSheet, res.SheetName),
	)

	res, err := m.run(ctx, req, res, log)
	if err != nil && res.Status == "" {
		res.Status = StatusFailed
		res.Message = err.Error()
	}
	if res.Status != StatusCommitted {
		res.RowsProcessed = 0
	}
	if m.opts.Observer != nil {
		m.opts.Observer.ObserveMerge(res.Status, res.RowsProcessed, time.Since(start))
	}
	log.Info("Merge finished",
		logging.F(logging.FieldStatus, string(res.Status)),
		logging.F(logging.FieldDuration, time.Since(start).Milliseconds()))
	return res, err
}

func (m *Merger) run(ctx context.Context, req Request, res Result, log logging.Logger) (Result, error) {
	if err := validate(req); err != nil {
		return res, err
	}

	enter(log, StateChecking)
	h, found, err := m.store.Locate(ctx, req.Key)
	if err != nil {
		return res, fmt.Errorf("failed to locate workbook: %w", err)
	}
	if !found {
		if !req.ConfirmCreate {
			enter(log, StateNeedsConfirmation)
			res.Status = StatusNeedsConfirmation
			res.Message = fmt.Sprintf("El archivo '%s' no existe. ¿Desea crearlo?", res.FileName)
			return res, ledgererror.ErrConfirmationRequired
		}
		if h, err = m.store.Create(ctx, req.Key); err != nil {
			return res, fmt.Errorf("failed to create workbook: %w", err)
		}
		res.Created = true
		log.Info("Workbook created", logging.F(logging.FieldFileID, h.ID))
	}
	res.Handle = h

	enter(log, StateFetching)
	data, err := m.store.Fetch(ctx, h)
	if err != nil {
		return res, fmt.Errorf("failed to fetch workbook: %w", err)
	}
	working, err := m.temp.Write(data, models.WorkbookExtension)
	if err != nil {
		return res, err
	}
	defer working.Release(context.WithoutCancel(ctx))

	enter(log, StateMerging)
	merged, err := m.mergeLocal(working, req, res.FileName)
	if err != nil {
		var dup *ledgererror.DuplicateMonthError
		if errors.As(err, &dup) {
			enter(log, StateRejected)
			res.Status = StatusRejected
			res.Message = fmt.Sprintf("La pestaña '%s' ya existe en el archivo '%s'", res.SheetName, res.FileName)
		}
		return res, err
	}

	next, err := m.store.Replace(ctx, h, merged)
	if err != nil {
		return m.settle(ctx, req, res, err, log)
	}
	if next.ID != h.ID {
		log.Info("Workbook was recreated with a new id",
			logging.F(logging.FieldFileID, next.ID))
	}
	enter(log, StateCommitted)
	res.Handle = next
	res.Status = StatusCommitted
	res.Message = fmt.Sprintf("Pestaña '%s' agregada exitosamente al archivo '%s'", res.SheetName, res.FileName)
	return res, nil
}

// mergeLocal adds the month sheet to the working copy and returns the new content.
func (m *Merger) mergeLocal(working *fileutils.TempFile, req Request, name string) ([]byte, error) {
	data, err := working.Read()
	if err != nil {
		return nil, err
	}
	wb, err := workbook.Open(name, data)
	if err != nil {
		return nil, err
	}
	defer func() { _ = wb.Close() }()

	if err := wb.AddMonthSheet(req.Period.SheetName(), req.Ledger, m.opts.Placeholder); err != nil {
		return nil, err
	}
	out, err := wb.Bytes()
	if err != nil {
		return nil, err
	}
	if err := working.Overwrite(out); err != nil {
		return nil, err
	}
	return out, nil
}

// settle decides the outcome of a failed replace by looking at the remote workbook
// again. The sheet being there means the write landed.
func (m *Merger) settle(ctx context.Context, req Request, res Result, replaceErr error, log logging.Logger) (Result, error) {
	log.WithError(replaceErr).Warn("Replace failed, checking whether it was applied")

	probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.ProbeTimeout)
	defer cancel()

	ambiguous := func(err error) (Result, error) {
		return res, &ledgererror.AmbiguousCommitError{Workbook: res.FileName, Sheet: res.SheetName,
			Err: errors.Join(replaceErr, err)}
	}

	h, found, err := m.store.Locate(probeCtx, req.Key)
	if err != nil {
		return ambiguous(err)
	}
	if !found {
		return ambiguous(errors.New("workbook no longer found"))
	}
	data, err := m.store.Fetch(probeCtx, h)
	if err != nil {
		return ambiguous(err)
	}
	present, err := workbook.ContainsSheet(data, res.SheetName)
	if err != nil {
		return ambiguous(err)
	}
	if !present {
		return res, fmt.Errorf("failed to upload workbook: %w", replaceErr)
	}

	log.Warn("Replace reported an error but the sheet is present")
	enter(log, StateCommitted)
	res.Handle = h
	res.Status = StatusCommitted
	res.Message = fmt.Sprintf("Pestaña '%s' agregada exitosamente al archivo '%s'", res.SheetName, res.FileName)
	return res, nil
}

func enter(log logging.Logger, s State) {
	log.Debug("Merge state", logging.F(logging.FieldState, string(s)))
}
