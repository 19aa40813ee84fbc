package domain

import (
	"fmt"
	"sync"
)

// CRSType discriminates the CRS kinds.
type CRSType int

// CRS kinds.
const (
	CRSGeocentric CRSType = iota
	CRSGeographic
	CRSProjected
	CRSCompound
	CRSVertical
)

// String returns the kind name.
func (t CRSType) String() string {
	switch t {
	case CRSGeocentric:
		return "geocentric"
	case CRSGeographic:
		return "geographic"
	case CRSProjected:
		return "projected"
	case CRSCompound:
		return "compound"
	case CRSVertical:
		return "vertical"
	default:
		return "unknown"
	}
}

// CRS is a coordinate reference system.
type CRS interface {
	// ID returns the identifiable of the CRS.
	ID() *Identifiable

	// Code returns the default code.
	Code() CodeType

	// Name returns the default name.
	Name() string

	// Type returns the CRS kind.
	Type() CRSType

	// Dimension returns the number of ordinates.
	Dimension() int

	// Axes returns a copy of the axes in declared order.
	Axes() []Axis

	// Units returns the unit of each axis.
	Units() []Unit

	// Datum returns the datum.
	Datum() Datum

	// GeodeticDatum returns the datum if it is geodetic, nil otherwise.
	GeodeticDatum() *GeodeticDatum

	// Easting returns the index of the East/West axis, 0 if there is none.
	Easting() int

	// Northing returns the index of the North/South/Up/Down axis, 1 if there is none.
	Northing() int

	// ConvertToAxis converts p from the given per-ordinate units into the
	// axis units, or back if invert is set.
	ConvertToAxis(p Point3, units []Unit, invert bool) Point3

	// HasDirectTransformation returns true if a shortcut to target exists.
	HasDirectTransformation(target CRS) bool

	// DirectTransformation returns the shortcut to target, nil if there is none.
	DirectTransformation(target CRS) Transformation

	// AreaOfUseBBox returns the declared area of use in WGS84 lon/lat order.
	AreaOfUseBBox() BBox

	// ValidDomain returns the area of use reprojected into this CRS. The
	// result is computed once and cached.
	ValidDomain(sampler DomainSampler) (BBox, error)

	// Equal compares kind, dimension, axes, datum and identity.
	Equal(other CRS) bool

	// EqualWithFlippedAxis holds if axes 0 and 1 are swapped but all else matches.
	EqualWithFlippedAxis(other CRS) bool
}

type baseCRS struct {
	id     *Identifiable
	datum  Datum
	axes   []Axis
	direct []Transformation

	domainMu    sync.Mutex
	validDomain *BBox
}

func newBaseCRS(id *Identifiable, datum Datum, axes []Axis) (baseCRS, error) {
	if id == nil {
		return baseCRS{}, fmt.Errorf("crs identifiable: %w", ErrNilArgument)
	}
	if datum == nil {
		return baseCRS{}, fmt.Errorf("crs %s datum: %w", id.Code(), ErrNilArgument)
	}
	return baseCRS{id: id, datum: datum, axes: cloneAxes(axes)}, nil
}

func (b *baseCRS) ID() *Identifiable { return b.id }

func (b *baseCRS) Code() CodeType { return b.id.Code() }

func (b *baseCRS) Name() string { return b.id.Name() }

func (b *baseCRS) Dimension() int { return len(b.axes) }

func (b *baseCRS) Axes() []Axis { return cloneAxes(b.axes) }

func (b *baseCRS) Units() []Unit {
	units := make([]Unit, len(b.axes))
	for i, a := range b.axes {
		units[i] = a.Unit
	}
	return units
}

func (b *baseCRS) Datum() Datum { return b.datum }

func (b *baseCRS) GeodeticDatum() *GeodeticDatum {
	gd, _ := b.datum.(*GeodeticDatum)
	return gd
}

func (b *baseCRS) Easting() int {
	for i, a := range b.axes {
		if a.Orientation.IsEastWest() {
			return i
		}
	}
	return 0
}

func (b *baseCRS) Northing() int {
	for i, a := range b.axes {
		if a.Orientation.IsNorthSouth() || a.Orientation.IsUpDown() {
			return i
		}
	}
	return 1
}

func (b *baseCRS) ConvertToAxis(p Point3, units []Unit, invert bool) Point3 {
	n := min(len(b.axes), len(units), 3)
	for i := 0; i < n; i++ {
		axisUnit := b.axes[i].Unit
		if invert {
			p.Set(i, units[i].Convert(p.Get(i), axisUnit))
		} else {
			p.Set(i, axisUnit.Convert(p.Get(i), units[i]))
		}
	}
	return p
}

func (b *baseCRS) HasDirectTransformation(target CRS) bool {
	return b.DirectTransformation(target) != nil
}

func (b *baseCRS) DirectTransformation(target CRS) Transformation {
	if target == nil {
		return nil
	}
	for _, t := range b.direct {
		if t.TargetCRS() != nil && t.TargetCRS().Equal(target) {
			return t
		}
	}
	return nil
}

// AddDirectTransformation registers a shortcut. Meant for construction time.
func (b *baseCRS) AddDirectTransformation(t Transformation) {
	if t != nil {
		b.direct = append(b.direct, t)
	}
}

func (b *baseCRS) AreaOfUseBBox() BBox { return b.id.AreaOfUseBBox() }

func (b *baseCRS) String() string { return b.id.String() }

// equalBase compares kind, dimension, pairwise axes, datum and identity.
func equalBase(a, b CRS) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Type() != b.Type() || a.Dimension() != b.Dimension() {
		return false
	}
	axesA, axesB := a.Axes(), b.Axes()
	if len(axesA) != len(axesB) {
		return false
	}
	for i := range axesA {
		if !axesA[i].Equal(axesB[i]) {
			return false
		}
	}
	return a.Datum().Equal(b.Datum()) && a.ID().Equal(b.ID())
}

// equalFlipped is equalBase with axes 0 and 1 swapped.
func equalFlipped(a, b CRS) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Type() != b.Type() || a.Dimension() != b.Dimension() || a.Dimension() < 2 {
		return false
	}
	axesA, axesB := a.Axes(), b.Axes()
	if len(axesA) != len(axesB) || !axesA[0].Equal(axesB[1]) || !axesA[1].Equal(axesB[0]) {
		return false
	}
	for i := 2; i < len(axesA); i++ {
		if !axesA[i].Equal(axesB[i]) {
			return false
		}
	}
	return a.Datum().Equal(b.Datum()) && a.ID().Equal(b.ID())
}

// GeographicCRS is an angular lon/lat[/height] CRS on an ellipsoid.
type GeographicCRS struct {
	baseCRS
}

// NewGeographicCRS creates a geographic CRS.
func NewGeographicCRS(id *Identifiable, datum *GeodeticDatum, axes []Axis) (*GeographicCRS, error) {
	if datum == nil {
		return nil, fmt.Errorf("geographic crs datum: %w", ErrNilArgument)
	}
	if len(axes) < 2 {
		return nil, fmt.Errorf("geographic crs needs at least 2 axes, got %d: %w", len(axes), ErrInvalidAxisCount)
	}
	base, err := newBaseCRS(id, datum, axes)
	if err != nil {
		return nil, err
	}
	return &GeographicCRS{baseCRS: base}, nil
}

// Type returns CRSGeographic.
func (c *GeographicCRS) Type() CRSType { return CRSGeographic }

// Equal compares kind, dimension, axes, datum and identity.
func (c *GeographicCRS) Equal(other CRS) bool { return equalBase(c, other) }

// EqualWithFlippedAxis holds for a lat/lon variant of a lon/lat CRS.
func (c *GeographicCRS) EqualWithFlippedAxis(other CRS) bool { return equalFlipped(c, other) }

// ValidDomain returns the cached domain of validity.
func (c *GeographicCRS) ValidDomain(s DomainSampler) (BBox, error) { return c.validDomainOf(c, s) }

// GeocentricCRS is an earth-centered cartesian CRS.
type GeocentricCRS struct {
	baseCRS
}

// NewGeocentricCRS creates a geocentric CRS.
func NewGeocentricCRS(id *Identifiable, datum *GeodeticDatum, axes []Axis) (*GeocentricCRS, error) {
	if datum == nil {
		return nil, fmt.Errorf("geocentric crs datum: %w", ErrNilArgument)
	}
	if len(axes) < 2 {
		return nil, fmt.Errorf("geocentric crs needs at least 2 axes, got %d: %w", len(axes), ErrInvalidAxisCount)
	}
	base, err := newBaseCRS(id, datum, axes)
	if err != nil {
		return nil, err
	}
	return &GeocentricCRS{baseCRS: base}, nil
}

// Type returns CRSGeocentric.
func (c *GeocentricCRS) Type() CRSType { return CRSGeocentric }

// Equal compares kind, dimension, axes, datum and identity.
func (c *GeocentricCRS) Equal(other CRS) bool { return equalBase(c, other) }

// EqualWithFlippedAxis holds if axes 0 and 1 are swapped.
func (c *GeocentricCRS) EqualWithFlippedAxis(other CRS) bool { return equalFlipped(c, other) }

// ValidDomain returns the cached domain of validity.
func (c *GeocentricCRS) ValidDomain(s DomainSampler) (BBox, error) { return c.validDomainOf(c, s) }

// VerticalCRS is a one-dimensional height CRS.
type VerticalCRS struct {
	baseCRS
}

// NewVerticalCRS creates a vertical CRS with exactly one axis.
func NewVerticalCRS(id *Identifiable, datum *VerticalDatum, axes []Axis) (*VerticalCRS, error) {
	if datum == nil {
		return nil, fmt.Errorf("vertical crs datum: %w", ErrNilArgument)
	}
	if len(axes) != 1 {
		return nil, fmt.Errorf("vertical crs needs exactly 1 axis, got %d: %w", len(axes), ErrInvalidAxisCount)
	}
	base, err := newBaseCRS(id, datum, axes)
	if err != nil {
		return nil, err
	}
	return &VerticalCRS{baseCRS: base}, nil
}

// Type returns CRSVertical.
func (c *VerticalCRS) Type() CRSType { return CRSVertical }

// Dimension is always 1.
func (c *VerticalCRS) Dimension() int { return 1 }

// VerticalDatum returns the vertical datum.
func (c *VerticalCRS) VerticalDatum() *VerticalDatum {
	vd, _ := c.datum.(*VerticalDatum)
	return vd
}

// Equal compares kind, axis, datum and identity.
func (c *VerticalCRS) Equal(other CRS) bool { return equalBase(c, other) }

// EqualWithFlippedAxis is never true for a single axis.
func (c *VerticalCRS) EqualWithFlippedAxis(CRS) bool { return false }

// ValidDomain returns the cached domain of validity.
func (c *VerticalCRS) ValidDomain(s DomainSampler) (BBox, error) { return c.validDomainOf(c, s) }
