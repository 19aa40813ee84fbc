package domain

import (
	"fmt"
	"math"
	"strings"
)

// Orientation is the direction an axis points to.
type Orientation int

// Axis orientations.
const (
	OrientationOther Orientation = iota
	OrientationNorth
	OrientationSouth
	OrientationEast
	OrientationWest
	OrientationUp
	OrientationDown
	OrientationFront
	OrientationBack
)

var orientationNames = map[Orientation]string{
	OrientationOther: "other",
	OrientationNorth: "north",
	OrientationSouth: "south",
	OrientationEast:  "east",
	OrientationWest:  "west",
	OrientationUp:    "up",
	OrientationDown:  "down",
	OrientationFront: "front",
	OrientationBack:  "back",
}

// String returns the orientation name.
func (o Orientation) String() string {
	if n, ok := orientationNames[o]; ok {
		return n
	}
	return "unknown"
}

// ParseOrientation parses an orientation name.
func ParseOrientation(s string) (Orientation, error) {
	for o, n := range orientationNames {
		if strings.EqualFold(n, s) {
			return o, nil
		}
	}
	return OrientationOther, fmt.Errorf("orientation %q: %w", s, ErrInvalidInput)
}

// Opposite returns the opposite orientation on the same axis.
func (o Orientation) Opposite() Orientation {
	switch o {
	case OrientationNorth:
		return OrientationSouth
	case OrientationSouth:
		return OrientationNorth
	case OrientationEast:
		return OrientationWest
	case OrientationWest:
		return OrientationEast
	case OrientationUp:
		return OrientationDown
	case OrientationDown:
		return OrientationUp
	case OrientationFront:
		return OrientationBack
	case OrientationBack:
		return OrientationFront
	}
	return o
}

// IsEastWest reports an East or West orientation.
func (o Orientation) IsEastWest() bool {
	return o == OrientationEast || o == OrientationWest
}

// IsNorthSouth reports a North or South orientation.
func (o Orientation) IsNorthSouth() bool {
	return o == OrientationNorth || o == OrientationSouth
}

// IsUpDown reports an Up or Down orientation.
func (o Orientation) IsUpDown() bool {
	return o == OrientationUp || o == OrientationDown
}

// UnitKind separates angular from linear units.
type UnitKind int

// Unit kinds.
const (
	UnitScale UnitKind = iota
	UnitAngular
	UnitLinear
)

// Unit is a measurement unit with its factor to the base unit of its kind
// (radian for angular units, metre for linear units).
type Unit struct {
	Symbol string
	Kind   UnitKind
	ToBase float64
}

// Common units.
var (
	Radian = Unit{Symbol: "rad", Kind: UnitAngular, ToBase: 1}
	Degree = Unit{Symbol: "°", Kind: UnitAngular, ToBase: math.Pi / 180}
	Metre  = Unit{Symbol: "m", Kind: UnitLinear, ToBase: 1}
	Foot   = Unit{Symbol: "ft", Kind: UnitLinear, ToBase: 0.3048}
	USFoot = Unit{Symbol: "ftUS", Kind: UnitLinear, ToBase: 1200.0 / 3937.0}
	Unity  = Unit{Symbol: "", Kind: UnitScale, ToBase: 1}
)

// Equal compares kind and conversion factor.
func (u Unit) Equal(other Unit) bool {
	return u.Kind == other.Kind && math.Abs(u.ToBase-other.ToBase) < 1e-15
}

// IsBase returns true if the unit is the base unit of its kind.
func (u Unit) IsBase() bool {
	return math.Abs(u.ToBase-1) < 1e-15
}

// Convert converts value, given in from, into this unit. Values of a unit
// of another kind are returned unchanged.
func (u Unit) Convert(value float64, from Unit) float64 {
	if u.Kind != from.Kind || u.Equal(from) || u.ToBase == 0 {
		return value
	}
	return value * from.ToBase / u.ToBase
}

// String returns the unit symbol.
func (u Unit) String() string {
	return u.Symbol
}

// Axis is a named, oriented coordinate axis.
type Axis struct {
	Name        string
	Orientation Orientation
	Unit        Unit
}

// NewAxis creates an axis.
func NewAxis(name string, orientation Orientation, unit Unit) Axis {
	return Axis{Name: name, Orientation: orientation, Unit: unit}
}

// Equal compares orientation and unit. Names are informative only.
func (a Axis) Equal(other Axis) bool {
	return a.Orientation == other.Orientation && a.Unit.Equal(other.Unit)
}

// String returns the axis description.
func (a Axis) String() string {
	return fmt.Sprintf("%s (%s, %s)", a.Name, a.Orientation, a.Unit)
}

// Predefined axis sets.
var (
	AxesLonLat = []Axis{
		NewAxis("longitude", OrientationEast, Degree),
		NewAxis("latitude", OrientationNorth, Degree),
	}
	AxesLatLon = []Axis{
		NewAxis("latitude", OrientationNorth, Degree),
		NewAxis("longitude", OrientationEast, Degree),
	}
	AxesLonLatHeight = []Axis{
		NewAxis("longitude", OrientationEast, Degree),
		NewAxis("latitude", OrientationNorth, Degree),
		NewAxis("ellipsoidal height", OrientationUp, Metre),
	}
	AxesEastNorth = []Axis{
		NewAxis("easting", OrientationEast, Metre),
		NewAxis("northing", OrientationNorth, Metre),
	}
	AxesNorthEast = []Axis{
		NewAxis("northing", OrientationNorth, Metre),
		NewAxis("easting", OrientationEast, Metre),
	}
	AxesGeocentric = []Axis{
		NewAxis("X", OrientationFront, Metre),
		NewAxis("Y", OrientationEast, Metre),
		NewAxis("Z", OrientationNorth, Metre),
	}
	AxisHeight = NewAxis("height", OrientationUp, Metre)
)

func cloneAxes(axes []Axis) []Axis {
	return append([]Axis(nil), axes...)
}
