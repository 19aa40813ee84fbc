package transform

import (
	"fmt"
	"math"

	"github.com/jobrunner/geotrans/internal/domain"
)

const (
	// adC is Toms' region 1 constant, good up to 2000 km altitude.
	adC = 1.0026000
	// cos67p5 is cos(67.5°).
	cos67p5 = 0.38268343236508977
	halfPi  = math.Pi / 2
)

// Geocentric converts geographic lon/lat[/height] radians into geocentric
// X/Y/Z metres on the ellipsoid of the target datum. The inverse uses Toms'
// 1996 non-iterative method.
type Geocentric struct {
	base
	a, b          float64
	a2, b2        float64
	e2, ep2       float64
	hasHeight     bool
	defaultHeight float64
}

// NewGeocentric creates the conversion from a geographic (or compound over
// geographic) CRS into a geocentric CRS.
func NewGeocentric(source domain.CRS, target *domain.GeocentricCRS) (*Geocentric, error) {
	if source == nil || target == nil {
		return nil, fmt.Errorf("geocentric transformation: %w", domain.ErrNilArgument)
	}
	geo := source
	defaultHeight := 0.0
	if c, ok := source.(*domain.CompoundCRS); ok {
		geo = c.Underlying()
		defaultHeight = c.DefaultHeight()
	}
	if geo.Type() != domain.CRSGeographic {
		return nil, fmt.Errorf("geocentric transformation from %s crs %s: %w",
			geo.Type(), source.Code(), domain.ErrUnsupportedCRSType)
	}
	b, err := newBase("geocentric", source, target, nil)
	if err != nil {
		return nil, err
	}
	ellipsoid := target.GeodeticDatum().Ellipsoid()
	t := &Geocentric{
		base:          b,
		a:             ellipsoid.SemiMajorMetres(),
		b:             ellipsoid.SemiMinorMetres(),
		hasHeight:     source.Dimension() >= 3,
		defaultHeight: defaultHeight,
	}
	t.a2 = t.a * t.a
	t.b2 = t.b * t.b
	t.e2 = (t.a2 - t.b2) / t.a2
	t.ep2 = (t.a2 - t.b2) / t.b2
	return t, nil
}

// ImplementationName returns "Geocentric".
func (t *Geocentric) ImplementationName() string { return "Geocentric" }

// IsIdentity is always false.
func (t *Geocentric) IsIdentity() bool { return false }

// Inverse returns the geocentric to geographic conversion.
func (t *Geocentric) Inverse() domain.Transformation {
	c := *t
	c.inverse = !c.inverse
	return &c
}

// Transform converts the points in place.
func (t *Geocentric) Transform(points []domain.Point3) ([]domain.Point3, error) {
	src, dst := t.codes()
	te := domain.NewTransformationError(src, dst)
	for i := range points {
		var err error
		if t.inverse {
			err = t.toGeographic(&points[i])
		} else {
			err = t.toGeocentric(&points[i])
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

func (t *Geocentric) toGeocentric(p *domain.Point3) error {
	lambda, phi := p.X, p.Y
	switch {
	case phi < -halfPi && phi > -1.001*halfPi:
		phi = -halfPi
	case phi > halfPi && phi < 1.001*halfPi:
		phi = halfPi
	case phi < -halfPi || phi > halfPi || math.IsNaN(phi):
		return fmt.Errorf("latitude %f rad out of range: %w", phi, domain.ErrInvalidCoordinate)
	}
	if lambda > math.Pi {
		lambda -= 2 * math.Pi
	}

	h := t.defaultHeight
	if t.hasHeight {
		h = p.Z
	}
	// Unset and near-zero heights are both replaced by the default height.
	if math.IsNaN(h) || math.Abs(h) < EPS11 {
		h = t.defaultHeight
	}

	sinPhi, cosPhi := math.Sincos(phi)
	rn := t.a / math.Sqrt(1-t.e2*sinPhi*sinPhi)
	p.X = (rn + h) * cosPhi * math.Cos(lambda)
	p.Y = (rn + h) * cosPhi * math.Sin(lambda)
	p.Z = (rn*(1-t.e2) + h) * sinPhi
	return nil
}

func (t *Geocentric) toGeographic(p *domain.Point3) error {
	x, y, z := p.X, p.Y, p.Z
	if math.IsNaN(z) {
		z = 0
	}
	if math.IsNaN(x) || math.IsNaN(y) {
		return fmt.Errorf("geocentric point (%f, %f, %f) is not finite: %w", x, y, z, domain.ErrInvalidCoordinate)
	}

	var lon, lat float64
	atPole := false
	switch {
	case x != 0:
		lon = math.Atan2(y, x)
	case y > 0:
		lon = halfPi
	case y < 0:
		lon = -halfPi
	default:
		atPole = true
		lon = 0
		switch {
		case z > 0:
			lat = halfPi
		case z < 0:
			lat = -halfPi
		default:
			p.X, p.Y = lon, halfPi
			p.Z = t.height(-t.b)
			return nil
		}
	}

	w2 := x*x + y*y
	w := math.Sqrt(w2)
	t0 := z * adC
	s0 := math.Sqrt(t0*t0 + w2)
	sinB0 := t0 / s0
	cosB0 := w / s0
	sin3B0 := sinB0 * sinB0 * sinB0
	t1 := z + t.b*t.ep2*sin3B0
	sum := w - t.a*t.e2*cosB0*cosB0*cosB0
	s1 := math.Sqrt(t1*t1 + sum*sum)
	sinP1 := t1 / s1
	cosP1 := sum / s1
	rn := t.a / math.Sqrt(1-t.e2*sinP1*sinP1)

	var h float64
	switch {
	case cosP1 >= cos67p5:
		h = w/cosP1 - rn
	case cosP1 <= -cos67p5:
		h = w/-cosP1 - rn
	default:
		h = z/sinP1 + rn*(t.e2-1)
	}
	if !atPole {
		lat = math.Atan(sinP1 / cosP1)
	}

	p.X, p.Y = lon, lat
	p.Z = t.height(h)
	return nil
}

// height returns h if the geographic side carries heights, NaN otherwise.
func (t *Geocentric) height(h float64) float64 {
	if !t.hasHeight {
		return math.NaN()
	}
	return h
}
