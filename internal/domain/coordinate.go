// Package domain contains the coordinate reference system model and the
// contracts shared by transformations, projections and registries.
package domain

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Point3 is a coordinate tuple. Z is NaN when the point has no third ordinate.
type Point3 struct {
	X float64
	Y float64
	Z float64
}

// NewPoint2 creates a two-dimensional point (Z is NaN).
func NewPoint2(x, y float64) Point3 {
	return Point3{X: x, Y: y, Z: math.NaN()}
}

// NewPoint3 creates a three-dimensional point.
func NewPoint3(x, y, z float64) Point3 {
	return Point3{X: x, Y: y, Z: z}
}

// Get returns the ordinate at index i (0=X, 1=Y, 2=Z).
func (p Point3) Get(i int) float64 {
	switch i {
	case 0:
		return p.X
	case 1:
		return p.Y
	case 2:
		return p.Z
	default:
		return math.NaN()
	}
}

// Set sets the ordinate at index i. Indexes beyond Z are ignored.
func (p *Point3) Set(i int, v float64) {
	switch i {
	case 0:
		p.X = v
	case 1:
		p.Y = v
	case 2:
		p.Z = v
	}
}

// HasZ returns true if the point carries a finite third ordinate.
func (p Point3) HasZ() bool {
	return !math.IsNaN(p.Z) && !math.IsInf(p.Z, 0)
}

// IsValid returns false if X or Y are NaN or infinite.
func (p Point3) IsValid() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

// String returns a string representation of the point.
func (p Point3) String() string {
	if p.HasZ() {
		return fmt.Sprintf("POINT Z(%f %f %f)", p.X, p.Y, p.Z)
	}
	return fmt.Sprintf("POINT(%f %f)", p.X, p.Y)
}

// MarshalJSON encodes the point as [x, y] or [x, y, z], or null if X or Y
// are not finite.
func (p Point3) MarshalJSON() ([]byte, error) {
	switch {
	case !p.IsValid():
		return []byte("null"), nil
	case p.HasZ():
		return json.Marshal([3]float64{p.X, p.Y, p.Z})
	default:
		return json.Marshal([2]float64{p.X, p.Y})
	}
}

// UnmarshalJSON decodes [x, y] or [x, y, z].
func (p *Point3) UnmarshalJSON(data []byte) error {
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("point: %w", err)
	}
	switch len(v) {
	case 0:
		*p = Point3{X: math.NaN(), Y: math.NaN(), Z: math.NaN()}
	case 2:
		*p = NewPoint2(v[0], v[1])
	case 3:
		*p = NewPoint3(v[0], v[1], v[2])
	default:
		return fmt.Errorf("point needs 2 or 3 ordinates, got %d: %w", len(v), ErrInvalidCoordinate)
	}
	return nil
}

// ClonePoints returns a copy of the given points.
func ClonePoints(points []Point3) []Point3 {
	if points == nil {
		return nil
	}
	out := make([]Point3, len(points))
	copy(out, points)
	return out
}

// BBox is a bounding box ordered minX, minY, maxX, maxY.
type BBox [4]float64

// WorldBBox is the whole world in WGS84 lon/lat order.
var WorldBBox = BBox{-180, -90, 180, 90}

// BBoxFromBound converts an orb bound.
func BBoxFromBound(b orb.Bound) BBox {
	return BBox{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}

// Bound converts the box into an orb bound.
func (b BBox) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b[0], b[1]}, Max: orb.Point{b[2], b[3]}}
}

// Width returns the width of the box.
func (b BBox) Width() float64 {
	return math.Abs(b[2] - b[0])
}

// Height returns the height of the box.
func (b BBox) Height() float64 {
	return math.Abs(b[3] - b[1])
}

// Contains checks if x,y lies within the box.
func (b BBox) Contains(x, y float64) bool {
	return b.Bound().Contains(orb.Point{x, y})
}

// IsValid checks if the box has valid dimensions.
func (b BBox) IsValid() bool {
	for _, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b[0] <= b[2] && b[1] <= b[3]
}
