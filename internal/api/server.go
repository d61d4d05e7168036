// Package api serves the HTTP front-end: uploads are normalized, previewed or merged
// and the client registry is managed.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"aquere/libros-iva/internal/logging"
	"aquere/libros-iva/internal/metrics"
	"aquere/libros-iva/internal/processor"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures the server.
type Options struct {
	// MaxUploadBytes bounds the size of an uploaded export.
	MaxUploadBytes int64
	// RequestTimeout bounds every request, merges included.
	RequestTimeout time.Duration
	// Metrics and Gatherer enable upload counters and the /metrics endpoint.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// Server is the HTTP API server.
type Server struct {
	proc   *processor.Processor
	opts   Options
	logger logging.Logger
}

// NewServer creates a server around proc.
func NewServer(proc *processor.Processor, opts Options, logger logging.Logger) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Server{proc: proc, opts: opts, logger: logger}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/clients", s.handleListClients)
		r.Post("/clients", s.handleCreateClient)
		r.Put("/clients/{cuit}", s.handleUpdateClient)
		r.Post("/create-client", s.handleCreateClient)
		r.Post("/edit-client", s.handleUpdateClient)

		r.Post("/detect-month", s.handleDetectMonth)
		r.Post("/auto-detect", s.handleAutoDetect)
		r.Post("/auto-detect-all", s.handleAutoDetect)
		r.Post("/preview", s.handlePreview)
		r.Post("/process", s.handleProcess)
	})

	if s.opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("HTTP request",
			logging.F("method", r.Method),
			logging.F("path", r.URL.Path),
			logging.F(logging.FieldStatus, ww.Status()),
			logging.F("request_id", middleware.GetReqID(r.Context())),
			logging.F(logging.FieldDuration, time.Since(start).Milliseconds()))
	})
}

func (s *Server) observeUpload(endpoint string, err error) {
	if s.opts.Metrics != nil {
		s.opts.Metrics.ObserveUpload(endpoint, err)
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"detail":  msg,
	})
}
