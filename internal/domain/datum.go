package domain

import (
	"fmt"
	"math"
)

// Ellipsoid is a reference ellipsoid.
type Ellipsoid struct {
	id         *Identifiable
	semiMajor  float64
	semiMinor  float64
	invFlatten float64
	unit       Unit
}

// NewEllipsoid creates an ellipsoid from semi-major axis and inverse
// flattening. An inverse flattening of 0 describes a sphere.
func NewEllipsoid(id *Identifiable, semiMajor, inverseFlattening float64, unit Unit) (*Ellipsoid, error) {
	if id == nil {
		return nil, fmt.Errorf("ellipsoid identifiable: %w", ErrNilArgument)
	}
	if semiMajor <= 0 || inverseFlattening < 0 {
		return nil, fmt.Errorf("ellipsoid %s: semi-major %f, inverse flattening %f: %w",
			id.Code(), semiMajor, inverseFlattening, ErrInvalidInput)
	}
	if unit.Kind != UnitLinear {
		unit = Metre
	}
	semiMinor := semiMajor
	if inverseFlattening > 0 {
		semiMinor = semiMajor - semiMajor/inverseFlattening
	}
	return &Ellipsoid{id: id, semiMajor: semiMajor, semiMinor: semiMinor, invFlatten: inverseFlattening, unit: unit}, nil
}

// MustEllipsoid is NewEllipsoid that panics on error.
func MustEllipsoid(id *Identifiable, semiMajor, inverseFlattening float64) *Ellipsoid {
	e, err := NewEllipsoid(id, semiMajor, inverseFlattening, Metre)
	if err != nil {
		panic(err)
	}
	return e
}

// ID returns the identifiable.
func (e *Ellipsoid) ID() *Identifiable { return e.id }

// SemiMajorAxis returns a in the ellipsoid unit.
func (e *Ellipsoid) SemiMajorAxis() float64 { return e.semiMajor }

// SemiMinorAxis returns b in the ellipsoid unit.
func (e *Ellipsoid) SemiMinorAxis() float64 { return e.semiMinor }

// InverseFlattening returns 1/f, 0 for a sphere.
func (e *Ellipsoid) InverseFlattening() float64 { return e.invFlatten }

// Unit returns the axis unit.
func (e *Ellipsoid) Unit() Unit { return e.unit }

// SemiMajorMetres returns a in metres.
func (e *Ellipsoid) SemiMajorMetres() float64 { return Metre.Convert(e.semiMajor, e.unit) }

// SemiMinorMetres returns b in metres.
func (e *Ellipsoid) SemiMinorMetres() float64 { return Metre.Convert(e.semiMinor, e.unit) }

// SquaredEccentricity returns e² = (a²-b²)/a².
func (e *Ellipsoid) SquaredEccentricity() float64 {
	a2 := e.semiMajor * e.semiMajor
	return (a2 - e.semiMinor*e.semiMinor) / a2
}

// Eccentricity returns e.
func (e *Ellipsoid) Eccentricity() float64 {
	return math.Sqrt(e.SquaredEccentricity())
}

// Equal compares the axes in metres.
func (e *Ellipsoid) Equal(other *Ellipsoid) bool {
	if e == nil || other == nil {
		return e == other
	}
	return math.Abs(e.SemiMajorMetres()-other.SemiMajorMetres()) < 1e-6 &&
		math.Abs(e.SemiMinorMetres()-other.SemiMinorMetres()) < 1e-6
}

// BursaWolf holds 7-parameter Helmert shift parameters to WGS84
// (position vector convention). Rotations are in arc seconds.
type BursaWolf struct {
	Dx, Dy, Dz float64 // metres
	Ex, Ey, Ez float64 // arc seconds
	PPM        float64 // scale difference in parts per million
}

// IsIdentity returns true if all parameters are zero.
func (h *BursaWolf) IsIdentity() bool {
	return h == nil || (h.Dx == 0 && h.Dy == 0 && h.Dz == 0 &&
		h.Ex == 0 && h.Ey == 0 && h.Ez == 0 && h.PPM == 0)
}

// Equal compares parameters. A nil value equals the zero shift.
func (h *BursaWolf) Equal(other *BursaWolf) bool {
	if h.IsIdentity() || other.IsIdentity() {
		return h.IsIdentity() && other.IsIdentity()
	}
	return *h == *other
}

// Datum is the physical reference a CRS is measured against.
type Datum interface {
	ID() *Identifiable
	Equal(other Datum) bool
}

// GeodeticDatum is a horizontal datum with ellipsoid, prime meridian and an
// optional shift to WGS84.
type GeodeticDatum struct {
	id            *Identifiable
	ellipsoid     *Ellipsoid
	primeMeridian float64 // degrees east of Greenwich
	toWGS84       *BursaWolf
}

// NewGeodeticDatum creates a geodetic datum.
func NewGeodeticDatum(id *Identifiable, ellipsoid *Ellipsoid, primeMeridian float64, toWGS84 *BursaWolf) (*GeodeticDatum, error) {
	if id == nil || ellipsoid == nil {
		return nil, fmt.Errorf("geodetic datum: %w", ErrNilArgument)
	}
	return &GeodeticDatum{id: id, ellipsoid: ellipsoid, primeMeridian: primeMeridian, toWGS84: toWGS84}, nil
}

// MustGeodeticDatum is NewGeodeticDatum that panics on error.
func MustGeodeticDatum(id *Identifiable, ellipsoid *Ellipsoid, toWGS84 *BursaWolf) *GeodeticDatum {
	d, err := NewGeodeticDatum(id, ellipsoid, 0, toWGS84)
	if err != nil {
		panic(err)
	}
	return d
}

// ID returns the identifiable.
func (d *GeodeticDatum) ID() *Identifiable { return d.id }

// Ellipsoid returns the reference ellipsoid.
func (d *GeodeticDatum) Ellipsoid() *Ellipsoid { return d.ellipsoid }

// PrimeMeridian returns the prime meridian in degrees east of Greenwich.
func (d *GeodeticDatum) PrimeMeridian() float64 { return d.primeMeridian }

// ToWGS84 returns the shift parameters, nil if none are known.
func (d *GeodeticDatum) ToWGS84() *BursaWolf { return d.toWGS84 }

// Equal compares ellipsoid, prime meridian and WGS84 shift.
func (d *GeodeticDatum) Equal(other Datum) bool {
	o, ok := other.(*GeodeticDatum)
	if !ok || d == nil || o == nil {
		return ok && d == o
	}
	return d.ellipsoid.Equal(o.ellipsoid) &&
		math.Abs(d.primeMeridian-o.primeMeridian) < 1e-11 &&
		d.toWGS84.Equal(o.toWGS84)
}

// NeedsShift reports whether converting between the two datums requires a
// geocentric shift (different ellipsoid or different WGS84 parameters).
func (d *GeodeticDatum) NeedsShift(other *GeodeticDatum) bool {
	return !d.ellipsoid.Equal(other.ellipsoid) || !d.toWGS84.Equal(other.toWGS84)
}

// VerticalDatum is a height reference surface.
type VerticalDatum struct {
	id *Identifiable
}

// NewVerticalDatum creates a vertical datum.
func NewVerticalDatum(id *Identifiable) (*VerticalDatum, error) {
	if id == nil {
		return nil, fmt.Errorf("vertical datum: %w", ErrNilArgument)
	}
	return &VerticalDatum{id: id}, nil
}

// ID returns the identifiable.
func (d *VerticalDatum) ID() *Identifiable { return d.id }

// Equal compares identities.
func (d *VerticalDatum) Equal(other Datum) bool {
	o, ok := other.(*VerticalDatum)
	if !ok || d == nil || o == nil {
		return ok && d == o
	}
	return d.id.Equal(o.id)
}
