// Package app provides application initialization and wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	httpAdapter "github.com/jobrunner/geotrans/internal/adapters/http"
	"github.com/jobrunner/geotrans/internal/adapters/metrics"
	"github.com/jobrunner/geotrans/internal/adapters/registry"
	"github.com/jobrunner/geotrans/internal/adapters/sink"
	"github.com/jobrunner/geotrans/internal/adapters/storage"
	"github.com/jobrunner/geotrans/internal/adapters/watcher"
	"github.com/jobrunner/geotrans/internal/application"
	"github.com/jobrunner/geotrans/internal/config"
	"github.com/jobrunner/geotrans/internal/ports/output"
)

// Storage is a batch file backend that can also store result files.
type Storage interface {
	output.ObjectStorage
	output.ObjectWriter
}

// App holds all application components.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Metrics       *metrics.Collector
	Registry      *registry.Registry
	Engine        *application.Engine
	Storage       Storage
	Sink          output.ResultSink
	BatchService  *application.BatchService
	HealthService *application.HealthService
	HTTPServer    *httpAdapter.Server
	Watcher       *watcher.Watcher
}

// Core holds the components needed to transform coordinates.
type Core struct {
	Metrics  *metrics.Collector
	Registry *registry.Registry
	Engine   *application.Engine
}

// NewCore creates the registry and the engine. Metrics are collected only
// if enabled in cfg.
func NewCore(cfg *config.Config, logger *slog.Logger) (*Core, error) {
	core := &Core{}

	var collector output.MetricsCollector = &output.NoOpMetrics{}
	if cfg.Metrics.Enabled {
		core.Metrics = metrics.NewCollector("geotrans")
		collector = core.Metrics
	}

	reg, err := registry.New(registry.Options{ChainCacheSize: cfg.Engine.ChainCacheSize}, collector, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing crs registry: %w", err)
	}
	core.Registry = reg
	core.Engine = application.NewEngine(reg, collector, logger)

	return core, nil
}

// MetricsCollector returns the collector as port, a no-op if disabled.
func (c *Core) MetricsCollector() output.MetricsCollector {
	if c.Metrics == nil {
		return &output.NoOpMetrics{}
	}
	return c.Metrics
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	core, err := NewCore(cfg, logger)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  core.Metrics,
		Registry: core.Registry,
		Engine:   core.Engine,
	}
	metricsCollector := core.MetricsCollector()

	// Initialize storage adapter
	store, err := initStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	app.Storage = store

	// Initialize result sink
	resultSink, err := initSink(ctx, cfg.Output, store)
	if err != nil {
		return nil, fmt.Errorf("initializing result sink: %w", err)
	}
	app.Sink = resultSink

	app.BatchService = application.NewBatchService(
		app.Engine,
		app.Storage,
		app.Sink,
		metricsCollector,
		logger,
		application.BatchConfig{
			Source:   cfg.Batch.Source,
			Target:   cfg.Batch.Target,
			Interval: cfg.Batch.Interval,
			Cooldown: cfg.Batch.Cooldown,
		},
	)

	app.HealthService = application.NewHealthService(app.Registry, app.Storage)

	if cfg.Server.Enabled {
		opts := httpAdapter.Options{Batch: app.BatchService}
		if app.Metrics != nil {
			opts.MetricsPath = cfg.Metrics.Path
			opts.MetricsHandler = metrics.Handler()
			opts.Middleware = app.Metrics.Middleware
		}
		app.HTTPServer = httpAdapter.NewServer(cfg.Server, app.Engine, app.HealthService, opts, logger)
	}

	// Initialize hot folder watcher
	if local, ok := store.(*storage.LocalStorage); ok && cfg.Watch.Enabled {
		w, err := watcher.New(
			watcher.Config{
				Paths:    []string{cfg.Storage.LocalPath},
				Debounce: cfg.Watch.Debounce,
				Filter:   local.Filter().Match,
			},
			app.handleFileEvent,
			logger,
		)
		if err != nil {
			logger.Warn("failed to initialize file watcher", "error", err)
		} else {
			app.Watcher = w
		}
	}

	return app, nil
}

// Start starts all background components and blocks until ctx is done or
// the HTTP server fails.
func (a *App) Start(ctx context.Context) error {
	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			a.Logger.Warn("failed to start file watcher", "error", err)
		}
	}

	a.BatchService.Start(ctx)

	if a.HTTPServer == nil {
		<-ctx.Done()
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.HTTPServer.Start()
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}

	a.BatchService.Stop()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error("HTTP server shutdown error", "error", err)
		}
	}

	if err := a.Sink.Close(); err != nil {
		a.Logger.Error("result sink close error", "error", err)
		return err
	}

	return nil
}

// handleFileEvent transforms batch files dropped into the hot folder.
func (a *App) handleFileEvent(ctx context.Context, event watcher.Event) error {
	a.Logger.Info("file event", "path", event.Path, "operation", event.Operation.String())

	local, ok := a.Storage.(*storage.LocalStorage)
	if !ok {
		return nil
	}
	key, err := local.Key(event.Path)
	if err != nil {
		return err
	}

	switch event.Operation {
	case watcher.OpCreate, watcher.OpModify:
		_, err := a.BatchService.ProcessFile(ctx, key)
		return err

	case watcher.OpDelete:
		a.Logger.Info("batch file removed, keeping its results", "key", key)
	}

	return nil
}

// initStorage initializes the appropriate storage adapter.
func initStorage(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "local":
		return storage.NewLocalStorage(cfg.LocalPath, cfg.Extensions...), nil

	case "s3":
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Extensions:      cfg.Extensions,
		})

	case "azure":
		return storage.NewAzureStorage(storage.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
			Extensions:       cfg.Extensions,
		})

	case "http":
		return storage.NewHTTPStorage(storage.HTTPConfig{
			BaseURL:    cfg.HTTP.BaseURL,
			IndexFile:  cfg.HTTP.IndexFile,
			Timeout:    cfg.HTTP.Timeout,
			Username:   cfg.HTTP.Username,
			Password:   cfg.HTTP.Password,
			Extensions: cfg.Extensions,
		}), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// initSink initializes the result sink. CSV results are written next to
// the batch files through the storage backend.
func initSink(ctx context.Context, cfg config.OutputConfig, store output.ObjectWriter) (output.ResultSink, error) {
	switch output.SinkType(cfg.Sink) {
	case output.SinkTypeCSV:
		return sink.NewCSVSink(store, cfg.Prefix), nil

	case output.SinkTypeSQLite:
		return sink.NewSQLiteSink(ctx, cfg.Path)

	default:
		return nil, fmt.Errorf("unknown output sink: %s", cfg.Sink)
	}
}
