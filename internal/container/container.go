// Package container provides dependency injection for the libros-iva application.
// It centralizes the creation and wiring of all application dependencies,
// making them explicit and testable.
package container

import (
	"fmt"
	"net/http"
	"time"

	"aquere/libros-iva/internal/api"
	"aquere/libros-iva/internal/cleaner"
	"aquere/libros-iva/internal/config"
	"aquere/libros-iva/internal/currencyutils"
	"aquere/libros-iva/internal/fileutils"
	"aquere/libros-iva/internal/logging"
	"aquere/libros-iva/internal/merger"
	"aquere/libros-iva/internal/metrics"
	"aquere/libros-iva/internal/normalizer"
	"aquere/libros-iva/internal/processor"
	"aquere/libros-iva/internal/registry"
	"aquere/libros-iva/internal/remotestore"
	"aquere/libros-iva/internal/session"

	"github.com/prometheus/client_golang/prometheus"
)

// Container holds all application dependencies and provides methods to access them.
//
// Container is immutable after creation - all fields are private and can only
// be accessed through getter methods.
type Container struct {
	logger   logging.Logger
	config   *config.Config
	registry *registry.Registry
	session  session.Provider
	store    remotestore.Store
	folders  remotestore.FolderManager

	promRegistry *prometheus.Registry
	metrics      *metrics.Metrics

	normalizer *normalizer.Normalizer
	cleaner    *cleaner.Cleaner
	merger     *merger.Merger
	processor  *processor.Processor
}

// NewContainer creates and wires all application dependencies.
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	return NewContainerWithLogger(cfg, logging.NewLogrusAdapterFromLogger(config.ConfigureLoggingFromConfig(cfg)))
}

// NewContainerWithLogger is NewContainer with an explicit logger.
func NewContainerWithLogger(cfg *config.Config, logger logging.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}

	reg, err := registry.Open(cfg.Registry.File, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open client registry: %w", err)
	}

	norm := normalizer.New(normalizerOptions(cfg), logger)
	clean, err := cleaner.New(cfg.Ledger.CreditNotePattern, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create cleaner: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	m := metrics.New(promRegistry)

	provider := newSessionProvider(cfg, logger)
	store, folders := newRemoteStore(cfg, provider, m, logger)

	temp := fileutils.NewTempDir(cfg.Temp.Dir, fileutils.ReleasePolicy{
		Attempts: cfg.Temp.ReleaseAttempts,
		Backoff:  time.Duration(cfg.Temp.ReleaseBackoffMs) * time.Millisecond,
	}, logger)
	merge := merger.New(store, temp, merger.Options{
		Placeholder:  cfg.Ledger.PlaceholderSheet,
		ProbeTimeout: time.Duration(cfg.Ledger.ProbeTimeoutSeconds) * time.Second,
		Observer:     m,
	}, logger)

	proc := processor.New(norm, clean, merge, reg, folders, provider, logger)

	logger.Info("Container initialized successfully",
		logging.F("drive_auth", cfg.Drive.Auth),
		logging.F("clients_count", reg.Len()),
		logging.F("session_valid", provider.IsValid()))

	return &Container{
		logger:       logger,
		config:       cfg,
		registry:     reg,
		session:      provider,
		store:        store,
		folders:      folders,
		promRegistry: promRegistry,
		metrics:      m,
		normalizer:   norm,
		cleaner:      clean,
		merger:       merge,
		processor:    proc,
	}, nil
}

func normalizerOptions(cfg *config.Config) normalizer.Options {
	opts := normalizer.DefaultOptions()
	opts.MarkerColumn = cfg.Ledger.MarkerColumn
	opts.CSVSeparators = currencyutils.SeparatorsFor(cfg.CSV.DecimalSeparator)
	if cfg.CSV.Delimiter != "" {
		opts.CSVDelimiter = []rune(cfg.CSV.Delimiter)[0]
	}
	return opts
}

// newSessionProvider never fails: a provider that cannot be built is replaced by one
// that reports an AuthenticationError on use, so local commands keep working.
func newSessionProvider(cfg *config.Config, logger logging.Logger) session.Provider {
	switch cfg.Drive.Auth {
	case config.AuthNone:
		return &session.StaticProvider{Client: http.DefaultClient}
	case config.AuthServiceAccount:
		p, err := session.NewServiceAccountProvider(cfg.Drive.ServiceAccountFile)
		if err != nil {
			logger.WithError(err).Warn("Service account unavailable, remote operations disabled")
			return &session.StaticProvider{}
		}
		return p
	default:
		p, err := session.NewOAuthProvider(cfg.Drive.CredentialsFile, cfg.Drive.TokenFile, logger)
		if err != nil {
			logger.WithError(err).Warn("OAuth client unavailable, remote operations disabled")
			return &session.StaticProvider{}
		}
		return p
	}
}

// newRemoteStore returns the in-memory store when auth is "none", the Drive store
// wrapped with read retries and metrics otherwise.
func newRemoteStore(cfg *config.Config, provider session.Provider, m *metrics.Metrics,
	logger logging.Logger) (remotestore.Store, remotestore.FolderManager) {
	if cfg.Drive.Auth == config.AuthNone {
		mem := remotestore.NewMemoryStore(cfg.Ledger.PlaceholderSheet)
		logger.Warn("Using in-memory workbook store; nothing is persisted")
		return remotestore.Instrument(mem, m), mem
	}

	drive := remotestore.NewDriveStore(provider, remotestore.DriveOptions{
		RootFolder:  cfg.Drive.RootFolder,
		Placeholder: cfg.Ledger.PlaceholderSheet,
		Endpoint:    cfg.Drive.Endpoint,
	}, logger)

	retry := remotestore.DefaultRetryOptions()
	retry.MaxAttempts = cfg.Drive.Retry.MaxAttempts
	retry.InitialDelay, retry.MaxDelay = cfg.RetryDelays()
	return remotestore.Instrument(remotestore.NewRetryingStore(drive, retry, logger), m), drive
}

// APIServer builds the HTTP server with metrics exposed on /metrics.
func (c *Container) APIServer() *api.Server {
	return api.NewServer(c.processor, api.Options{
		MaxUploadBytes: int64(c.config.Server.MaxUploadMB) << 20,
		RequestTimeout: time.Duration(c.config.Server.RequestTimeoutSeconds) * time.Second,
		Metrics:        c.metrics,
		Gatherer:       c.promRegistry,
	}, c.logger)
}

// GetLogger returns the container's logger instance.
func (c *Container) GetLogger() logging.Logger {
	return c.logger
}

// GetConfig returns the container's configuration instance.
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetRegistry returns the client registry.
func (c *Container) GetRegistry() *registry.Registry {
	return c.registry
}

// GetSession returns the remote session provider.
func (c *Container) GetSession() session.Provider {
	return c.session
}

// GetStore returns the workbook store as seen by the merger.
func (c *Container) GetStore() remotestore.Store {
	return c.store
}

// GetNormalizer returns the export normalizer.
func (c *Container) GetNormalizer() *normalizer.Normalizer {
	return c.normalizer
}

// GetCleaner returns the ledger cleaner.
func (c *Container) GetCleaner() *cleaner.Cleaner {
	return c.cleaner
}

// GetProcessor returns the use-case layer shared by the CLI and the HTTP API.
func (c *Container) GetProcessor() *processor.Processor {
	return c.processor
}

// GetMetrics returns the Prometheus collectors.
func (c *Container) GetMetrics() *metrics.Metrics {
	return c.metrics
}

// Close performs cleanup of container resources.
func (c *Container) Close() error {
	c.logger.Info("Container closed")
	return nil
}
