package application

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/jobrunner/geotrans/internal/adapters/registry"
	"github.com/jobrunner/geotrans/internal/domain"
	"github.com/jobrunner/geotrans/internal/ports/output"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// countingRegistry counts chain resolutions per "source>target" pair.
type countingRegistry struct {
	output.CRSCatalog

	mu     sync.Mutex
	builds map[string]int
}

func newCountingRegistry(t *testing.T) *countingRegistry {
	t.Helper()
	r, err := registry.New(registry.Options{ChainCacheSize: 16}, nil, quietLogger())
	if err != nil {
		t.Fatalf("creating registry: %v", err)
	}
	return &countingRegistry{CRSCatalog: r, builds: make(map[string]int)}
}

func (r *countingRegistry) ResolveTransformation(source, target domain.CRS, preferred []domain.Transformation) (domain.Transformation, error) {
	r.mu.Lock()
	r.builds[source.Code().String()+">"+target.Code().String()]++
	r.mu.Unlock()
	return r.CRSCatalog.ResolveTransformation(source, target, preferred)
}

func (r *countingRegistry) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.builds[key]
}

func (r *countingRegistry) mustLookup(t *testing.T, code string) domain.CRS {
	t.Helper()
	c, err := r.Lookup(code)
	if err != nil {
		t.Fatalf("lookup %s: %v", code, err)
	}
	return c
}

// stubRegistry resolves every pair to the same transformation.
type stubRegistry struct {
	output.CRSRegistry
	transformation domain.Transformation
}

func (r *stubRegistry) ResolveTransformation(_, _ domain.CRS, _ []domain.Transformation) (domain.Transformation, error) {
	return r.transformation, nil
}

// shiftTransformation adds 1000 to x and fails the points in fail.
type shiftTransformation struct {
	source, target domain.CRS
	fail           map[int]bool
	whole          error
}

func (s *shiftTransformation) ID() *domain.Identifiable {
	return domain.MustIdentifiable(domain.NewCodeType("TEST:shift"), "shift", "")
}
func (s *shiftTransformation) SourceCRS() domain.CRS          { return s.source }
func (s *shiftTransformation) TargetCRS() domain.CRS          { return s.target }
func (s *shiftTransformation) ImplementationName() string     { return "shift" }
func (s *shiftTransformation) IsInverse() bool                { return false }
func (s *shiftTransformation) IsIdentity() bool               { return false }
func (s *shiftTransformation) Inverse() domain.Transformation { return s }

func (s *shiftTransformation) Transform(points []domain.Point3) ([]domain.Point3, error) {
	te := domain.NewTransformationError("TEST:a", "TEST:b")
	if s.whole != nil {
		te.Err = s.whole
		te.Points = points
		return points, te
	}
	for i := range points {
		if s.fail[i] {
			te.SetPointError(i, "outside test domain")
			continue
		}
		points[i].X += 1000
		points[i].Z += 1
	}
	if te.HasErrors() {
		te.Points = points
		return points, te
	}
	return points, nil
}

// mockStorage serves batch files from memory.
type mockStorage struct {
	files   map[string]string
	listErr error
}

func (m *mockStorage) List(_ context.Context) ([]output.StorageObject, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	objects := make([]output.StorageObject, 0, len(m.files))
	for key, content := range m.files {
		objects = append(objects, output.StorageObject{Key: key, Size: int64(len(content))})
	}
	return objects, nil
}

func (m *mockStorage) Download(_ context.Context, key, dest string) error {
	return os.WriteFile(dest, []byte(m.files[key]), 0o600)
}

func (m *mockStorage) GetReader(_ context.Context, key string) (io.ReadCloser, error) {
	content, ok := m.files[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (m *mockStorage) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.files[key]
	return ok, nil
}

// memorySink collects written results.
type memorySink struct {
	mu       sync.Mutex
	results  []*domain.BatchResult
	writeErr error
}

func (m *memorySink) Write(_ context.Context, result *domain.BatchResult) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
	return nil
}

func (m *memorySink) Close() error { return nil }
