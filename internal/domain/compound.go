package domain

import (
	"fmt"
)

// CompoundCRS is a 2-D CRS plus a height axis.
type CompoundCRS struct {
	baseCRS
	underlying    CRS
	heightAxis    Axis
	defaultHeight float64
}

// NewCompoundCRS wraps a geographic, projected or geocentric CRS. The
// default height replaces unset height ordinates.
func NewCompoundCRS(id *Identifiable, underlying CRS, heightAxis Axis, defaultHeight float64) (*CompoundCRS, error) {
	if underlying == nil {
		return nil, fmt.Errorf("compound crs underlying: %w", ErrNilArgument)
	}
	switch underlying.Type() {
	case CRSGeographic, CRSProjected, CRSGeocentric:
	default:
		return nil, fmt.Errorf("compound crs over %s crs %s: %w",
			underlying.Type(), underlying.Code(), ErrUnsupportedUnderlying)
	}
	ua := underlying.Axes()
	if len(ua) < 2 {
		return nil, fmt.Errorf("compound crs underlying has %d axes: %w", len(ua), ErrInvalidAxisCount)
	}
	axes := []Axis{ua[0], ua[1], heightAxis}
	base, err := newBaseCRS(id, underlying.Datum(), axes)
	if err != nil {
		return nil, err
	}
	return &CompoundCRS{
		baseCRS:       base,
		underlying:    underlying,
		heightAxis:    heightAxis,
		defaultHeight: defaultHeight,
	}, nil
}

// Type returns CRSCompound.
func (c *CompoundCRS) Type() CRSType { return CRSCompound }

// Dimension is always 3.
func (c *CompoundCRS) Dimension() int { return 3 }

// Underlying returns the wrapped CRS.
func (c *CompoundCRS) Underlying() CRS { return c.underlying }

// HeightAxis returns the appended height axis.
func (c *CompoundCRS) HeightAxis() Axis { return c.heightAxis }

// HeightUnit returns the unit of the height axis.
func (c *CompoundCRS) HeightUnit() Unit { return c.heightAxis.Unit }

// DefaultHeight returns the value substituted for unset heights.
func (c *CompoundCRS) DefaultHeight() float64 { return c.defaultHeight }

// Equal additionally compares the underlying CRS.
func (c *CompoundCRS) Equal(other CRS) bool {
	o, ok := other.(*CompoundCRS)
	if !ok || !equalBase(c, other) {
		return false
	}
	return c.underlying.Equal(o.underlying)
}

// EqualWithFlippedAxis recurses into the underlying CRS and compares the
// height axis and unit.
func (c *CompoundCRS) EqualWithFlippedAxis(other CRS) bool {
	o, ok := other.(*CompoundCRS)
	if !ok {
		return false
	}
	return c.underlying.EqualWithFlippedAxis(o.underlying) &&
		c.heightAxis.Equal(o.heightAxis) &&
		c.HeightUnit().Equal(o.HeightUnit()) &&
		c.id.Equal(o.id)
}

// ValidDomain returns the cached domain of validity.
func (c *CompoundCRS) ValidDomain(s DomainSampler) (BBox, error) { return c.validDomainOf(c, s) }
