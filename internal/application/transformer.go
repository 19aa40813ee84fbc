// Package application contains the application services.
package application

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jobrunner/geotrans/internal/domain"
	"github.com/jobrunner/geotrans/internal/ports/output"
)

// CoordinateTransformer transforms points from arbitrary source CRS into a
// fixed target CRS. The chain of the most recent source is kept until a
// different source is requested.
type CoordinateTransformer struct {
	target   domain.CRS
	registry output.CRSRegistry
	metrics  output.MetricsCollector
	logger   *slog.Logger

	mu     sync.Mutex
	source domain.CRS
	chain  domain.Transformation
}

// NewCoordinateTransformer creates a transformer bound to target.
func NewCoordinateTransformer(
	target domain.CRS,
	registry output.CRSRegistry,
	metrics output.MetricsCollector,
	logger *slog.Logger,
) (*CoordinateTransformer, error) {
	if target == nil {
		return nil, fmt.Errorf("target crs: %w", domain.ErrNilArgument)
	}
	if registry == nil {
		return nil, fmt.Errorf("crs registry: %w", domain.ErrNilArgument)
	}
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CoordinateTransformer{
		target:   target,
		registry: registry,
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Target returns the target CRS.
func (t *CoordinateTransformer) Target() domain.CRS {
	return t.target
}

// Transformation returns the chain from source into the target CRS, building
// it through the registry if the cached chain belongs to another source.
func (t *CoordinateTransformer) Transformation(source domain.CRS) (domain.Transformation, error) {
	if source == nil {
		return nil, fmt.Errorf("source crs: %w", domain.ErrNilArgument)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.chain != nil && t.matches(source) {
		return t.chain, nil
	}

	chain, err := t.registry.ResolveTransformation(source, t.target, nil)
	if err != nil {
		return nil, err
	}
	t.source = source
	t.chain = chain
	t.logger.Debug("transformation chain changed",
		"source", source.Code().String(),
		"target", t.target.Code().String(),
		"chain", chain.ImplementationName(),
	)
	return chain, nil
}

func (t *CoordinateTransformer) matches(source domain.CRS) bool {
	if t.source != source && !t.source.Equal(source) {
		return false
	}
	return t.chain.TargetCRS() == t.target || t.chain.TargetCRS().Equal(t.target)
}

// Transform returns the points transformed from source into the target CRS.
// The input slice is not modified. If some points fail, the partially
// transformed points are returned together with a *domain.TransformationError;
// failed points keep their input values.
func (t *CoordinateTransformer) Transform(source domain.CRS, points []domain.Point3) ([]domain.Point3, error) {
	start := time.Now()
	chain, err := t.Transformation(source)
	if err != nil {
		return nil, err
	}
	src, dst := source.Code().String(), t.target.Code().String()

	out := domain.ClonePoints(points)
	if len(out) == 0 || chain.IsIdentity() {
		t.record(src, dst, start, len(out), 0, true)
		return out, nil
	}

	var heights []float64
	if source.Dimension() < 3 && t.target.Dimension() < 3 {
		heights = make([]float64, len(out))
		for i := range out {
			heights[i] = out[i].Z
		}
	}

	result, err := chain.Transform(out)
	if err != nil {
		var te *domain.TransformationError
		if !errors.As(err, &te) || len(te.Errors) == 0 || te.Points == nil {
			t.record(src, dst, start, 0, len(out), false)
			t.logger.Warn("transformation failed",
				"source", src,
				"target", dst,
				"points", len(out),
				"error", err,
			)
			return nil, fmt.Errorf("transforming %s to %s: %w", src, dst, err)
		}
		result = te.Points
		restoreHeights(result, heights)
		for i := range te.Errors {
			if i >= 0 && i < len(result) && i < len(points) {
				result[i] = points[i]
			}
		}
		failed := len(te.Errors)
		t.record(src, dst, start, len(result)-failed, failed, false)
		t.logger.Warn("some points could not be transformed",
			"source", src,
			"target", dst,
			"failed", failed,
			"points", len(result),
		)
		return result, te
	}

	restoreHeights(result, heights)
	t.record(src, dst, start, len(result), 0, true)
	return result, nil
}

// TransformPoint transforms a single point.
func (t *CoordinateTransformer) TransformPoint(source domain.CRS, p domain.Point3) (domain.Point3, error) {
	out, err := t.Transform(source, []domain.Point3{p})
	if len(out) == 0 {
		return p, err
	}
	return out[0], err
}

// TransformRaw transforms a flat buffer of source-dimension tuples and
// writes target-dimension tuples into out, which is allocated if it is too
// small. A missing target height is written as NaN.
func (t *CoordinateTransformer) TransformRaw(source domain.CRS, in, out []float64) ([]float64, error) {
	if source == nil {
		return nil, fmt.Errorf("source crs: %w", domain.ErrNilArgument)
	}
	inDim, outDim := source.Dimension(), t.target.Dimension()
	if inDim < 2 || inDim > 3 || outDim < 2 || outDim > 3 {
		return nil, fmt.Errorf("raw buffers need 2 or 3 ordinates, got %d -> %d: %w",
			inDim, outDim, domain.ErrInvalidAxisCount)
	}
	if len(in)%inDim != 0 {
		return nil, fmt.Errorf("buffer of %d values is not a multiple of %d: %w",
			len(in), inDim, domain.ErrInvalidInput)
	}

	n := len(in) / inDim
	points := make([]domain.Point3, n)
	for i := range points {
		v := in[i*inDim:]
		if inDim == 3 {
			points[i] = domain.NewPoint3(v[0], v[1], v[2])
		} else {
			points[i] = domain.NewPoint2(v[0], v[1])
		}
	}

	result, err := t.Transform(source, points)
	if result == nil {
		return nil, err
	}
	if len(out) < n*outDim {
		out = make([]float64, n*outDim)
	}
	for i, p := range result {
		v := out[i*outDim:]
		v[0], v[1] = p.X, p.Y
		if outDim == 3 {
			v[2] = p.Z
		}
	}
	return out[:n*outDim], err
}

func (t *CoordinateTransformer) record(source, target string, start time.Time, transformed, failed int, success bool) {
	t.metrics.IncTransformCount(source, target, success)
	t.metrics.ObserveTransformDuration(source, target, time.Since(start))
	t.metrics.AddPoints(transformed, failed)
}

func restoreHeights(points []domain.Point3, heights []float64) {
	if heights == nil {
		return
	}
	for i := range points {
		points[i].Z = heights[i]
	}
}
