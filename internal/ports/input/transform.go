// Package input defines the primary/driving ports of the application.
package input

import (
	"context"

	"github.com/jobrunner/geotrans/internal/domain"
)

// TransformService defines the primary port for coordinate transformation.
type TransformService interface {
	// Transform transforms the request points into the target CRS. Partial
	// failures are reported in the response, not as an error.
	Transform(ctx context.Context, req domain.TransformRequest) (*domain.TransformResponse, error)

	// ValidDomain returns the domain of validity of a CRS in its own
	// coordinates.
	ValidDomain(ctx context.Context, code string) (domain.BBox, error)

	// DescribeCRS returns the description of a CRS.
	DescribeCRS(ctx context.Context, code string) (*domain.CRSInfo, error)

	// ListCRS lists the known CRS, optionally restricted to those whose
	// area of use intersects bbox.
	ListCRS(ctx context.Context, bbox *domain.BBox) ([]domain.CRSInfo, error)

	// CRSAt lists the known CRS whose area of use contains a WGS84
	// position.
	CRSAt(ctx context.Context, lon, lat float64) ([]domain.CRSInfo, error)
}

// BatchService defines the primary port for batch file processing.
type BatchService interface {
	// ProcessAll transforms every batch file of the storage.
	ProcessAll(ctx context.Context) (domain.BatchSummary, error)

	// ProcessFile transforms a single batch file.
	ProcessFile(ctx context.Context, key string) (*domain.BatchResult, error)
}

// HealthChecker defines the primary port for health checks.
type HealthChecker interface {
	// IsHealthy returns true if the service is healthy.
	IsHealthy(ctx context.Context) bool

	// IsReady returns true if the service is ready to accept requests.
	IsReady(ctx context.Context) bool

	// GetHealthDetails returns detailed health information.
	GetHealthDetails(ctx context.Context) HealthDetails
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Healthy       bool              // Overall health status
	Ready         bool              // Ready to accept requests
	CRSRegistered int               // Number of registered CRS
	Components    map[string]string // Component statuses
}
