package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jobrunner/geotrans/internal/domain"
	"github.com/jobrunner/geotrans/internal/ports/output"
)

// ErrRateLimited is returned when batch runs are triggered too often.
var ErrRateLimited = errors.New("rate limit exceeded")

// DefaultCooldown is the minimum time between triggered batch runs.
const DefaultCooldown = 30 * time.Second

// BatchConfig holds configuration for the batch service.
type BatchConfig struct {
	Source   string        // Source CRS for files without a source directive
	Target   string        // Target CRS for files without a target directive
	Interval time.Duration // Periodic run interval, 0 disables the scheduler
	Cooldown time.Duration // Minimum time between triggered runs
}

// BatchService transforms coordinate batch files from storage and writes
// the results to a sink.
type BatchService struct {
	engine  *Engine
	storage output.ObjectStorage
	sink    output.ResultSink
	metrics output.MetricsCollector
	logger  *slog.Logger
	cfg     BatchConfig

	// Lifecycle management
	stopCh chan struct{}
	wg     sync.WaitGroup

	// Rate limiting for triggered runs
	lastTrigger time.Time
	triggerMu   sync.Mutex

	// Prevents concurrent runs
	runMu sync.Mutex

	nextRun   time.Time
	nextRunMu sync.RWMutex
}

// NewBatchService creates a new batch service.
func NewBatchService(
	engine *Engine,
	storage output.ObjectStorage,
	sink output.ResultSink,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	cfg BatchConfig,
) *BatchService {
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &BatchService{
		engine:  engine,
		storage: storage,
		sink:    sink,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		stopCh:  make(chan struct{}),
		// allow an immediate first trigger
		lastTrigger: time.Now().Add(-cfg.Cooldown - time.Second),
	}
}

// ProcessAll transforms every batch file of the storage. A failing file is
// logged and counted, the remaining files are still processed.
func (s *BatchService) ProcessAll(ctx context.Context) (domain.BatchSummary, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := time.Now()
	objects, err := s.storage.List(ctx)
	s.metrics.ObserveStorageDuration("list", time.Since(start))
	s.metrics.IncStorageOperations("list", err == nil)
	if err != nil {
		return domain.BatchSummary{}, err
	}

	summary := domain.BatchSummary{}
	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Files++

		result, err := s.processFile(ctx, obj.Key)
		if err != nil {
			summary.FilesFailed++
			s.logger.Error("failed to process batch file", "key", obj.Key, "error", err)
			continue
		}
		summary.Points += len(result.Results)
		summary.PointsFailed += result.Failed
	}
	summary.CompletedAt = time.Now()

	s.logger.Info("batch run completed",
		"files", summary.Files,
		"files_failed", summary.FilesFailed,
		"points", summary.Points,
		"points_failed", summary.PointsFailed,
	)
	return summary, nil
}

// ProcessFile transforms a single batch file.
func (s *BatchService) ProcessFile(ctx context.Context, key string) (*domain.BatchResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.processFile(ctx, key)
}

func (s *BatchService) processFile(ctx context.Context, key string) (*domain.BatchResult, error) {
	result, err := s.transformFile(ctx, key)
	s.metrics.IncBatchFiles(err == nil)
	return result, err
}

func (s *BatchService) transformFile(ctx context.Context, key string) (*domain.BatchResult, error) {
	start := time.Now()

	reader, err := s.storage.GetReader(ctx, key)
	s.metrics.IncStorageOperations("read", err == nil)
	if err != nil {
		return nil, &domain.StorageError{Operation: "read", Key: key, Err: err}
	}
	file, err := ParseBatch(reader)
	_ = reader.Close()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", key, err)
	}

	sourceCode := firstNonEmpty(file.Source, s.cfg.Source)
	targetCode := firstNonEmpty(file.Target, s.cfg.Target)
	if sourceCode == "" || targetCode == "" {
		return nil, fmt.Errorf("%s: source and target crs are required: %w", key, domain.ErrInvalidInput)
	}

	resp, err := s.engine.Transform(ctx, domain.TransformRequest{
		Source: sourceCode,
		Target: targetCode,
		Points: file.Points,
	})
	if err != nil {
		return nil, fmt.Errorf("transforming %s: %w", key, err)
	}

	result := domain.NewBatchResult(key, resp.Source, resp.Target, file.Points, resp.Points, resp.Failed)
	result.Duration = time.Since(start)

	if s.sink != nil {
		if err := s.sink.Write(ctx, result); err != nil {
			return nil, fmt.Errorf("writing result of %s: %w", key, err)
		}
	}

	s.logger.Info("batch file processed",
		"key", key,
		"source", result.Source,
		"target", result.Target,
		"points", len(result.Results),
		"failed", result.Failed,
		"duration", result.Duration,
	)
	return result, nil
}

// Start begins the periodic batch scheduler.
func (s *BatchService) Start(ctx context.Context) {
	if s.cfg.Interval <= 0 {
		return
	}
	s.logger.Info("starting batch scheduler", "interval", s.cfg.Interval)

	s.wg.Add(1)
	go s.run(ctx)
}

// run is the main scheduler loop.
func (s *BatchService) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.setNextRun(time.Now().Add(s.cfg.Interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("batch scheduler stopped: context canceled")
			return
		case <-s.stopCh:
			s.logger.Info("batch scheduler stopped")
			return
		case <-ticker.C:
			s.logger.Debug("scheduled batch run triggered")
			if _, err := s.ProcessAll(ctx); err != nil {
				s.logger.Error("batch run failed", "error", err)
			}
			s.setNextRun(time.Now().Add(s.cfg.Interval))
		}
	}
}

// Stop gracefully stops the scheduler.
func (s *BatchService) Stop() {
	s.logger.Info("stopping batch scheduler")
	close(s.stopCh)
	s.wg.Wait()
}

// TriggerRun runs all batch files now. Returns ErrRateLimited if the last
// trigger was less than the cooldown ago.
func (s *BatchService) TriggerRun(ctx context.Context) (domain.BatchSummary, error) {
	s.triggerMu.Lock()
	defer s.triggerMu.Unlock()

	if time.Since(s.lastTrigger) < s.cfg.Cooldown {
		return domain.BatchSummary{}, ErrRateLimited
	}
	s.lastTrigger = time.Now()

	return s.ProcessAll(ctx)
}

func (s *BatchService) setNextRun(t time.Time) {
	s.nextRunMu.Lock()
	defer s.nextRunMu.Unlock()
	s.nextRun = t
}

// NextRun returns the time of the next scheduled run.
func (s *BatchService) NextRun() time.Time {
	s.nextRunMu.RLock()
	defer s.nextRunMu.RUnlock()
	return s.nextRun
}

// Interval returns the scheduler interval.
func (s *BatchService) Interval() time.Duration {
	return s.cfg.Interval
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
