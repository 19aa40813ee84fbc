// Package http provides the operations HTTP server: health checks, metrics
// and read-only CRS information.
package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jobrunner/geotrans/internal/config"
	"github.com/jobrunner/geotrans/internal/domain"
	"github.com/jobrunner/geotrans/internal/ports/input"
)

// BatchTrigger starts a batch run on demand.
type BatchTrigger interface {
	TriggerRun(ctx context.Context) (domain.BatchSummary, error)
}

// Options holds the optional parts of the server.
type Options struct {
	Batch          BatchTrigger                    // Enables POST /api/v1/batch/run
	MetricsPath    string                          // Path of the metrics handler
	MetricsHandler http.Handler                    // Nil disables metrics
	Middleware     func(http.Handler) http.Handler // Request instrumentation
}

// Server wraps the HTTP server with application handlers.
type Server struct {
	server *http.Server
	router *mux.Router
	crs    input.TransformService
	health input.HealthChecker
	opts   Options
	logger *slog.Logger
	config config.ServerConfig
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg config.ServerConfig,
	crs input.TransformService,
	health input.HealthChecker,
	opts Options,
	logger *slog.Logger,
) *Server {
	s := &Server{
		crs:    crs,
		health: health,
		opts:   opts,
		logger: logger,
		config: cfg,
	}

	s.router = s.setupRoutes()

	s.server = &http.Server{
		Addr:              cfg.Address(),
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter().UseEncodedPath()

	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	if s.opts.Middleware != nil {
		r.Use(mux.MiddlewareFunc(s.opts.Middleware))
	}

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/live", s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleReadiness).Methods(http.MethodGet)

	if s.opts.MetricsHandler != nil {
		path := s.opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, s.opts.MetricsHandler).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/crs", s.handleListCRS).Methods(http.MethodGet)
	api.HandleFunc("/crs/{code}", s.handleGetCRS).Methods(http.MethodGet)
	api.HandleFunc("/crs/{code}/domain", s.handleValidDomain).Methods(http.MethodGet)

	if s.opts.Batch != nil {
		api.HandleFunc("/batch/run", s.handleBatchRun).Methods(http.MethodPost)
	}

	r.HandleFunc("/openapi.json", s.handleOpenAPI).Methods(http.MethodGet)

	return r
}

// Router returns the mux router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.config.Address())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs incoming requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// recoveryMiddleware recovers from panics.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered", "error", err, "path", r.URL.Path)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
