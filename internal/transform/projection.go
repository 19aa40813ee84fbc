package transform

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/jobrunner/geotrans/internal/domain"
)

// Projection applies the map projection of a projected CRS. Geographic
// values are radians in the axis order of the underlying geographic CRS.
type Projection struct {
	base
	projected *domain.ProjectedCRS
	swapped   bool
	lonIdx    int
	latIdx    int
}

// NewProjection creates the forward projection of a projected CRS. If the
// second projected axis points East or West, the output is northing/easting.
func NewProjection(projected *domain.ProjectedCRS, logger *slog.Logger) (*Projection, error) {
	if projected == nil {
		return nil, fmt.Errorf("projection transformation: %w", domain.ErrNilArgument)
	}
	if logger == nil {
		logger = slog.Default()
	}
	b, err := newBase("projection", projected.Geographic(), projected, nil)
	if err != nil {
		return nil, err
	}
	t := &Projection{
		base:      b,
		projected: projected,
		lonIdx:    projected.Geographic().Easting(),
		latIdx:    projected.Geographic().Northing(),
	}
	axes := projected.Axes()
	if axes[1].Orientation.IsEastWest() {
		t.swapped = true
		if !axes[0].Orientation.IsNorthSouth() {
			logger.Warn("projected crs has an east/west second axis but a first axis not pointing north/south",
				"crs", projected.Code().String(),
				"axis0", axes[0].String(),
				"axis1", axes[1].String(),
			)
		}
	}
	return t, nil
}

// ImplementationName returns "Projection".
func (t *Projection) ImplementationName() string { return "Projection" }

// IsIdentity is always false.
func (t *Projection) IsIdentity() bool { return false }

// Swapped reports a northing/easting axis order of the projected CRS.
func (t *Projection) Swapped() bool { return t.swapped }

// Inverse returns the inverse projection.
func (t *Projection) Inverse() domain.Transformation {
	c := *t
	c.inverse = !c.inverse
	return &c
}

// Transform projects the points in place. Points that fail keep their input
// values and are reported by index.
func (t *Projection) Transform(points []domain.Point3) ([]domain.Point3, error) {
	src, dst := t.codes()
	te := domain.NewTransformationError(src, dst)
	for i := range points {
		var err error
		if t.inverse {
			err = t.unproject(&points[i])
		} else {
			err = t.project(&points[i])
		}
		if err != nil {
			te.SetPointError(i, err.Error())
		}
	}
	if te.HasErrors() {
		te.Points = points
		return points, te
	}
	return points, nil
}

func (t *Projection) project(p *domain.Point3) error {
	lambda, phi := p.Get(t.lonIdx), p.Get(t.latIdx)
	x, y, err := t.projected.DoProjection(lambda, phi)
	if err != nil {
		return err
	}
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return fmt.Errorf("projection of (%f, %f) rad is not finite: %w", lambda, phi, domain.ErrOutOfDomain)
	}
	if t.swapped {
		x, y = y, x
	}
	p.X, p.Y = x, y
	return nil
}

func (t *Projection) unproject(p *domain.Point3) error {
	x, y := p.X, p.Y
	if t.swapped {
		x, y = y, x
	}
	lambda, phi, err := t.projected.DoInverseProjection(x, y)
	if err != nil {
		return err
	}
	if math.IsNaN(lambda) || math.IsNaN(phi) {
		return fmt.Errorf("inverse projection of (%f, %f) is not finite: %w", x, y, domain.ErrOutOfDomain)
	}
	p.Set(t.lonIdx, lambda)
	p.Set(t.latIdx, phi)
	return nil
}
