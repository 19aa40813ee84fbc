package output

import (
	"context"

	"github.com/jobrunner/geotrans/internal/domain"
)

// ResultSink defines the secondary port for persisting batch results.
type ResultSink interface {
	// Write stores the result of one batch.
	Write(ctx context.Context, result *domain.BatchResult) error

	// Close releases the sink.
	Close() error
}

// SinkType represents the type of result sink.
type SinkType string

const (
	SinkTypeCSV    SinkType = "csv"
	SinkTypeSQLite SinkType = "sqlite"
)
