// Package processor is the entry point shared by the HTTP and CLI front-ends. It
// chains the normalizer, the cleaner and the merger and keeps the client registry in
// step with the remote folder layout.
package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"aquere/libros-iva/internal/cleaner"
	"aquere/libros-iva/internal/logging"
	"aquere/libros-iva/internal/merger"
	"aquere/libros-iva/internal/models"
	"aquere/libros-iva/internal/normalizer"
	"aquere/libros-iva/internal/registry"
	"aquere/libros-iva/internal/remotestore"
	"aquere/libros-iva/internal/session"
)

// Detection is what an export says about itself.
type Detection struct {
	TaxpayerID  string
	Client      string
	ClientFound bool
	Type        models.LedgerType
	Period      models.Period
}

// Preview is the cleaned table of an export, limited to the first rows.
type Preview struct {
	Ledger      *models.CleanedLedger
	Period      models.Period
	TotalRows   int
	ColumnsKept int
}

// ProcessRequest asks for one export to be merged. A zero Month or Year is taken
// from the export itself.
type ProcessRequest struct {
	FileName      string
	Data          []byte
	Client        string
	Type          models.LedgerType
	Year          int
	Month         time.Month
	ConfirmCreate bool
}

// Health summarizes the state of the dependencies.
type Health struct {
	Status        string
	SessionValid  bool
	ClientsLoaded int
}

// Processor wires the components together.
type Processor struct {
	normalizer *normalizer.Normalizer
	cleaner    *cleaner.Cleaner
	merger     *merger.Merger
	registry   *registry.Registry
	folders    remotestore.FolderManager
	session    session.Provider
	logger     logging.Logger
}

// New creates a Processor. folders and provider may be nil when no remote store is
// configured.
func New(n *normalizer.Normalizer, c *cleaner.Cleaner, m *merger.Merger, reg *registry.Registry,
	folders remotestore.FolderManager, provider session.Provider, logger logging.Logger) *Processor {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Processor{normalizer: n, cleaner: c, merger: m, registry: reg, folders: folders, session: provider, logger: logger}
}

// DetectMonth returns the period an export covers. The banner is not required.
func (p *Processor) DetectMonth(name string, data []byte) (models.Period, error) {
	doc, err := p.normalizer.Load(name, data)
	if err != nil {
		return models.Period{}, err
	}
	return p.normalizer.DetectPeriodOnly(doc)
}

// AutoDetect reads the banner and the rows and looks the taxpayer up in the registry.
// An unregistered taxpayer is reported through ClientFound, not as an error.
func (p *Processor) AutoDetect(name string, data []byte) (Detection, error) {
	res, err := p.normalizer.NormalizeFile(name, data)
	if err != nil {
		return Detection{}, err
	}
	header := res.Ledger.Header
	d := Detection{
		TaxpayerID: header.TaxpayerID,
		Type:       header.Direction.LedgerType(),
		Period:     res.Period,
	}
	d.Client, d.ClientFound = p.registry.ClientByTaxpayerID(header.TaxpayerID)
	if !d.ClientFound {
		p.logger.Warn("Taxpayer not registered", logging.F(logging.FieldTaxpayerID, header.TaxpayerID))
	}
	return d, nil
}

// Preview cleans an export without touching the remote store.
func (p *Processor) Preview(name string, data []byte, limit int) (*Preview, error) {
	cleaned, period, err := p.clean(name, data)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = models.PreviewRowLimit
	}
	return &Preview{
		Ledger:      cleaned.Preview(limit),
		Period:      period,
		TotalRows:   cleaned.RowsProcessed(),
		ColumnsKept: len(cleaned.Columns),
	}, nil
}

func (p *Processor) clean(name string, data []byte) (*models.CleanedLedger, models.Period, error) {
	doc, err := p.normalizer.Load(name, data)
	if err != nil {
		return nil, models.Period{}, err
	}
	ledger, err := p.normalizer.ParseRows(doc)
	if err != nil {
		return nil, models.Period{}, err
	}
	period, err := normalizer.DetectPeriod(ledger.Rows)
	if err != nil {
		return nil, models.Period{}, err
	}
	if header, err := normalizer.ParseHeader(doc); err == nil {
		ledger.Header = header
	}
	cleaned, err := p.cleaner.Clean(ledger)
	if err != nil {
		return nil, models.Period{}, err
	}
	return cleaned, period, nil
}

// Process cleans an export and merges it into the client's yearly workbook.
func (p *Processor) Process(ctx context.Context, req ProcessRequest) (merger.Result, error) {
	if strings.TrimSpace(req.Client) == "" {
		return merger.Result{}, errors.New("client is required")
	}
	if p.merger == nil {
		return merger.Result{}, errors.New("no remote store configured")
	}
	cleaned, detected, err := p.clean(req.FileName, req.Data)
	if err != nil {
		return merger.Result{}, err
	}

	period := detected
	if req.Month != 0 {
		period.Month = req.Month
	}
	if req.Year != 0 {
		period.Year = req.Year
	}
	if period != detected {
		p.logger.Warn("Requested period differs from the export",
			logging.F(logging.FieldMonth, period.SheetName()),
			logging.F(logging.FieldYear, period.Year),
			logging.F("detected", detected.String()))
	}

	return p.merger.Merge(ctx, merger.Request{
		Key:           remotestore.Key{Client: req.Client, Type: req.Type, Year: period.Year},
		Period:        period,
		Ledger:        cleaned,
		ConfirmCreate: req.ConfirmCreate,
	})
}

// Clients lists the registry sorted by name.
func (p *Processor) Clients() []registry.Client {
	return p.registry.All()
}

// CreateClient prepares the folder layout and registers the client. The taxpayer id
// is checked first so a duplicate never creates folders.
func (p *Processor) CreateClient(ctx context.Context, taxpayerID, name string) (registry.Client, error) {
	id, err := registry.NormalizeTaxpayerID(taxpayerID)
	if err != nil {
		return registry.Client{}, err
	}
	if existing, ok := p.registry.ClientByTaxpayerID(id); ok {
		return registry.Client{}, fmt.Errorf("%w: %s belongs to '%s'", registry.ErrDuplicate, id, existing)
	}
	name = strings.TrimSpace(name)
	if p.folders != nil && name != "" {
		if err := p.folders.EnsureClient(ctx, name); err != nil {
			return registry.Client{}, fmt.Errorf("failed to create client folders: %w", err)
		}
	}
	return p.registry.Add(id, name)
}

// UpdateClient renames a client and optionally changes its taxpayer id. A new name
// renames the remote folder and workbooks before the registry changes.
func (p *Processor) UpdateClient(ctx context.Context, oldID, newName, newID string) (registry.Client, error) {
	current, ok := p.registry.ClientByTaxpayerID(oldID)
	if !ok {
		return registry.Client{}, fmt.Errorf("%w: %s", registry.ErrNotFound, oldID)
	}
	if strings.TrimSpace(newID) != "" {
		clean, err := registry.NormalizeTaxpayerID(newID)
		if err != nil {
			return registry.Client{}, err
		}
		old, _ := registry.NormalizeTaxpayerID(oldID)
		if existing, taken := p.registry.ClientByTaxpayerID(clean); taken && clean != old {
			return registry.Client{}, fmt.Errorf("%w: %s belongs to '%s'", registry.ErrDuplicate, clean, existing)
		}
	}
	newName = strings.TrimSpace(newName)
	if p.folders != nil && newName != "" && newName != current {
		if err := p.folders.RenameClient(ctx, current, newName); err != nil {
			return registry.Client{}, fmt.Errorf("failed to rename client folder: %w", err)
		}
	}
	return p.registry.Update(oldID, newName, newID)
}

// Health reports "healthy" when a remote session is usable, "degraded" otherwise.
func (p *Processor) Health() Health {
	h := Health{Status: "degraded", ClientsLoaded: p.registry.Len()}
	if p.session != nil && p.session.IsValid() {
		h.SessionValid = true
		h.Status = "healthy"
	}
	return h
}
