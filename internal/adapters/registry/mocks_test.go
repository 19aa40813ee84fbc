package registry

import (
	"sync"
	"testing"

	"github.com/jobrunner/geotrans/internal/domain"
	"github.com/jobrunner/geotrans/internal/ports/output"
)

// fixedTransformation is a named no-op transformation between two CRS.
type fixedTransformation struct {
	source, target domain.CRS
	name           string
	inverse        bool
}

func (f *fixedTransformation) ID() *domain.Identifiable {
	return domain.MustIdentifiable(domain.NewCodeType("TEST:"+f.name), f.name, "")
}

func (f *fixedTransformation) SourceCRS() domain.CRS {
	if f.inverse {
		return f.target
	}
	return f.source
}

func (f *fixedTransformation) TargetCRS() domain.CRS {
	if f.inverse {
		return f.source
	}
	return f.target
}

func (f *fixedTransformation) ImplementationName() string { return f.name }
func (f *fixedTransformation) IsInverse() bool            { return f.inverse }
func (f *fixedTransformation) IsIdentity() bool           { return false }

func (f *fixedTransformation) Inverse() domain.Transformation {
	c := *f
	c.inverse = !c.inverse
	return &c
}

func (f *fixedTransformation) Transform(points []domain.Point3) ([]domain.Point3, error) {
	return points, nil
}

// countingMetrics counts chain builds and cache lookups.
type countingMetrics struct {
	output.NoOpMetrics

	mu         sync.Mutex
	builds     map[string]int
	hits       int
	misses     int
	registered int
}

func (m *countingMetrics) IncChainBuilds(source, target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.builds == nil {
		m.builds = make(map[string]int)
	}
	m.builds[source+">"+target]++
}

func (m *countingMetrics) IncChainCache(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func (m *countingMetrics) SetCRSRegistered(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registered = count
}

func newTestRegistry(t *testing.T, metrics output.MetricsCollector) *Registry {
	t.Helper()
	r, err := New(Options{ChainCacheSize: 16}, metrics, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}
