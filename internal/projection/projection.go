// Package projection provides the map projection strategies used by
// projected CRS. Computations are delegated to github.com/wroge/wgs84; this
// package converts between radians and degrees and rejects points outside
// the validity of a projection.
package projection

import (
	"fmt"
	"math"

	"github.com/wroge/wgs84"

	"github.com/jobrunner/geotrans/internal/domain"
)

const (
	toDeg = 180 / math.Pi
	toRad = math.Pi / 180

	// eps is the tolerance when comparing projection parameters.
	eps = 1e-9
)

type spheroid struct {
	a, fi float64
}

func (s spheroid) A() float64 {
	return s.a
}

func (s spheroid) Fi() float64 {
	return s.fi
}

type transformFunc = func(a, b, c float64) (a2, b2, c2 float64)

// datum builds a wgs84 datum on the ellipsoid. The area is checked here
// before calling into wgs84, so the datum itself accepts every point.
func datum(e *domain.Ellipsoid) wgs84.Datum {
	fi := e.InverseFlattening()
	if fi == 0 || math.IsInf(fi, 0) {
		// wgs84 expects a finite inverse flattening
		fi = 1e12
	}
	return wgs84.Datum{
		Spheroid: spheroid{a: e.SemiMajorMetres(), fi: fi},
		Area: wgs84.AreaFunc(func(lon, lat float64) bool {
			return true
		}),
	}
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= eps*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func checkGeographic(name string, lambda, phi float64) error {
	if !finite(lambda, phi) || math.Abs(phi) > math.Pi/2+eps {
		return fmt.Errorf("%s: (%f, %f) rad is not a geographic position: %w", name, lambda, phi, domain.ErrInvalidCoordinate)
	}
	return nil
}

// normalizeLon maps degrees into [-180, 180]. Longitudes already in range,
// including the antimeridian at +180, keep their sign.
func normalizeLon(lon float64) float64 {
	if lon >= -180-eps && lon <= 180+eps {
		return math.Max(-180, math.Min(180, lon))
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
