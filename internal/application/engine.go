package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jobrunner/geotrans/internal/domain"
	"github.com/jobrunner/geotrans/internal/ports/output"
)

// Engine serves transformation requests between registered CRS. It keeps
// one CoordinateTransformer per target CRS and samples domains of validity.
type Engine struct {
	registry output.CRSCatalog
	metrics  output.MetricsCollector
	logger   *slog.Logger

	mu           sync.Mutex
	transformers map[domain.CRS]*CoordinateTransformer
}

// NewEngine creates a new engine.
func NewEngine(registry output.CRSCatalog, metrics output.MetricsCollector, logger *slog.Logger) *Engine {
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry:     registry,
		metrics:      metrics,
		logger:       logger,
		transformers: make(map[domain.CRS]*CoordinateTransformer),
	}
}

// Transformer returns the transformer bound to target.
func (e *Engine) Transformer(target domain.CRS) (*CoordinateTransformer, error) {
	if target == nil {
		return nil, fmt.Errorf("target crs: %w", domain.ErrNilArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if t, ok := e.transformers[target]; ok {
		return t, nil
	}
	t, err := NewCoordinateTransformer(target, e.registry, e.metrics, e.logger)
	if err != nil {
		return nil, err
	}
	e.transformers[target] = t
	return t, nil
}

// WGS84 implements domain.DomainSampler.
func (e *Engine) WGS84() domain.CRS {
	return e.registry.WGS84()
}

// Reproject implements domain.DomainSampler.
func (e *Engine) Reproject(source, target domain.CRS, points []domain.Point3) ([]domain.Point3, error) {
	t, err := e.Transformer(target)
	if err != nil {
		return nil, err
	}
	return t.Transform(source, points)
}

// Transform resolves both CRS codes and transforms the request points.
// Per-point failures are reported in the response.
func (e *Engine) Transform(ctx context.Context, req domain.TransformRequest) (*domain.TransformResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	source, err := e.registry.Lookup(req.Source)
	if err != nil {
		return nil, err
	}
	target, err := e.registry.Lookup(req.Target)
	if err != nil {
		return nil, err
	}
	t, err := e.Transformer(target)
	if err != nil {
		return nil, err
	}
	chain, err := t.Transformation(source)
	if err != nil {
		return nil, err
	}

	points, err := t.Transform(source, req.Points)
	resp := &domain.TransformResponse{
		Source: source.Code().String(),
		Target: target.Code().String(),
		Points: points,
		Chain:  chain.ImplementationName(),
	}
	if err != nil {
		var te *domain.TransformationError
		if !errors.As(err, &te) || points == nil {
			return nil, err
		}
		resp.Failed = te.Errors
	}
	resp.ProcessingTime = time.Since(start)
	return resp, nil
}

// ValidDomain returns the domain of validity of a CRS in its own
// coordinates.
func (e *Engine) ValidDomain(ctx context.Context, code string) (domain.BBox, error) {
	if err := ctx.Err(); err != nil {
		return domain.BBox{}, err
	}
	c, err := e.registry.Lookup(code)
	if err != nil {
		return domain.BBox{}, err
	}
	box, err := c.ValidDomain(e)
	if err != nil {
		e.logger.Warn("could not estimate domain of validity", "crs", c.Code().String(), "error", err)
		return domain.BBox{}, err
	}
	return box, nil
}

// DescribeCRS returns the description of a CRS.
func (e *Engine) DescribeCRS(ctx context.Context, code string) (*domain.CRSInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := e.registry.Lookup(code)
	if err != nil {
		return nil, err
	}
	info := domain.DescribeCRS(c)
	return &info, nil
}

// ListCRS lists the registered CRS, restricted to bbox if given.
func (e *Engine) ListCRS(ctx context.Context, bbox *domain.BBox) ([]domain.CRSInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var list []domain.CRS
	if bbox != nil {
		if !bbox.IsValid() {
			return nil, fmt.Errorf("bbox %v: %w", *bbox, domain.ErrInvalidInput)
		}
		list = e.registry.FindByArea(*bbox)
	} else {
		list = e.registry.List()
	}

	return describeAll(list), nil
}

// CRSAt lists the registered CRS whose area of use contains the WGS84
// position lon/lat.
func (e *Engine) CRSAt(ctx context.Context, lon, lat float64) ([]domain.CRSInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if math.IsNaN(lon) || math.IsNaN(lat) || math.Abs(lon) > 180 || math.Abs(lat) > 90 {
		return nil, fmt.Errorf("position (%f, %f): %w", lon, lat, domain.ErrInvalidInput)
	}
	return describeAll(e.registry.FindAt(lon, lat)), nil
}

func describeAll(list []domain.CRS) []domain.CRSInfo {
	infos := make([]domain.CRSInfo, len(list))
	for i, c := range list {
		infos[i] = domain.DescribeCRS(c)
	}
	return infos
}
