package domain

import (
	"fmt"
)

// ProjectedCRS is a planar CRS derived from a geographic CRS by a map projection.
type ProjectedCRS struct {
	baseCRS
	geographic *GeographicCRS
	projection Projection
}

// NewProjectedCRS creates a projected CRS.
func NewProjectedCRS(id *Identifiable, geographic *GeographicCRS, projection Projection, axes []Axis) (*ProjectedCRS, error) {
	if geographic == nil || projection == nil {
		return nil, fmt.Errorf("projected crs geographic and projection: %w", ErrNilArgument)
	}
	if len(axes) < 2 {
		return nil, fmt.Errorf("projected crs needs at least 2 axes, got %d: %w", len(axes), ErrInvalidAxisCount)
	}
	base, err := newBaseCRS(id, geographic.Datum(), axes)
	if err != nil {
		return nil, err
	}
	return &ProjectedCRS{baseCRS: base, geographic: geographic, projection: projection}, nil
}

// Type returns CRSProjected.
func (c *ProjectedCRS) Type() CRSType { return CRSProjected }

// Geographic returns the underlying geographic CRS.
func (c *ProjectedCRS) Geographic() *GeographicCRS { return c.geographic }

// Projection returns the projection strategy.
func (c *ProjectedCRS) Projection() Projection { return c.projection }

// DoProjection projects lon/lat radians into easting/northing.
func (c *ProjectedCRS) DoProjection(lambda, phi float64) (float64, float64, error) {
	return c.projection.Project(lambda, phi)
}

// DoInverseProjection converts easting/northing into lon/lat radians.
func (c *ProjectedCRS) DoInverseProjection(x, y float64) (float64, float64, error) {
	return c.projection.Unproject(x, y)
}

// Equal additionally compares projection and geographic CRS.
func (c *ProjectedCRS) Equal(other CRS) bool {
	o, ok := other.(*ProjectedCRS)
	if !ok || !equalBase(c, other) {
		return false
	}
	return c.projection.Equal(o.projection) && c.geographic.Equal(o.geographic)
}

// EqualWithFlippedAxis holds for a northing/easting variant of an
// easting/northing CRS.
func (c *ProjectedCRS) EqualWithFlippedAxis(other CRS) bool {
	o, ok := other.(*ProjectedCRS)
	if !ok || !equalFlipped(c, other) {
		return false
	}
	return c.projection.Equal(o.projection) && c.geographic.Equal(o.geographic)
}

// ValidDomain returns the cached domain of validity.
func (c *ProjectedCRS) ValidDomain(s DomainSampler) (BBox, error) { return c.validDomainOf(c, s) }
