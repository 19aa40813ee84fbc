package application

import (
	"context"

	"github.com/jobrunner/geotrans/internal/ports/input"
	"github.com/jobrunner/geotrans/internal/ports/output"
)

// HealthService provides health check functionality.
type HealthService struct {
	registry output.CRSCatalog
	storage  output.ObjectStorage
}

// NewHealthService creates a new health service. storage may be nil.
func NewHealthService(registry output.CRSCatalog, storage output.ObjectStorage) *HealthService {
	return &HealthService{
		registry: registry,
		storage:  storage,
	}
}

// IsHealthy returns true if the service is healthy.
func (s *HealthService) IsHealthy(_ context.Context) bool {
	return s.registry != nil
}

// IsReady returns true if WGS84 is registered and the round trip through
// the registry works.
func (s *HealthService) IsReady(_ context.Context) bool {
	if s.registry == nil || s.registry.WGS84() == nil {
		return false
	}
	wgs84 := s.registry.WGS84()
	_, err := s.registry.ResolveTransformation(wgs84, wgs84, nil)
	return err == nil
}

// GetHealthDetails returns detailed health information.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	components := map[string]string{
		"registry": "ok",
	}
	registered := 0
	if s.registry == nil {
		components["registry"] = "missing"
	} else {
		registered = len(s.registry.List())
		if s.registry.WGS84() == nil {
			components["registry"] = "wgs84 missing"
		}
	}

	if s.storage == nil {
		components["storage"] = "disabled"
	} else if _, err := s.storage.List(ctx); err != nil {
		components["storage"] = "error: " + err.Error()
	} else {
		components["storage"] = "ok"
	}

	return input.HealthDetails{
		Healthy:       s.IsHealthy(ctx),
		Ready:         s.IsReady(ctx),
		CRSRegistered: registered,
		Components:    components,
	}
}
