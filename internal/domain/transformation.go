package domain

// Transformation converts coordinates from a source to a target CRS.
// Implementations mutate the points handed to Transform in place and return
// the same slice. A failed batch returns *TransformationError carrying the
// partially transformed points.
type Transformation interface {
	// ID returns the identifiable of the transformation.
	ID() *Identifiable

	// SourceCRS returns the CRS the points are expected in, honoring the
	// inverse flag.
	SourceCRS() CRS

	// TargetCRS returns the CRS of the resulting points, honoring the
	// inverse flag.
	TargetCRS() CRS

	// ImplementationName returns a short name of the algorithm.
	ImplementationName() string

	// IsInverse returns true if the inverse formula is applied.
	IsInverse() bool

	// IsIdentity returns true if Transform is a no-op.
	IsIdentity() bool

	// Inverse returns the same transformation with the direction toggled.
	Inverse() Transformation

	// Transform applies the transformation to the points in place.
	Transform(points []Point3) ([]Point3, error)
}

// Projection is a map projection strategy. Geographic values are radians,
// projected values are metres including false easting and northing.
type Projection interface {
	// Name returns the projection method name.
	Name() string

	// Project converts lon/lat radians into easting/northing.
	Project(lambda, phi float64) (x, y float64, err error)

	// Unproject converts easting/northing into lon/lat radians.
	Unproject(x, y float64) (lambda, phi float64, err error)

	// Equal compares method and parameters.
	Equal(other Projection) bool
}

// DomainSampler reprojects WGS84 boundary samples for domain-of-validity
// estimation.
type DomainSampler interface {
	// WGS84 returns the reference WGS84 geographic CRS.
	WGS84() CRS

	// Reproject transforms points from source into target.
	Reproject(source, target CRS, points []Point3) ([]Point3, error)
}

// IsIdentity returns true for a nil or identity transformation.
func IsIdentity(t Transformation) bool {
	return t == nil || t.IsIdentity()
}
