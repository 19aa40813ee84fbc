package projection

import (
	"fmt"
	"math"

	"github.com/wroge/wgs84"

	"github.com/jobrunner/geotrans/internal/domain"
)

// MaxMercatorLatitude is the latitude limit of the Web Mercator square.
const MaxMercatorLatitude = 85.05112878

// WebMercator is the spherical Pseudo-Mercator projection used by web maps.
type WebMercator struct {
	forward transformFunc
	inverse transformFunc
}

// NewWebMercator creates the Web Mercator projection.
func NewWebMercator() *WebMercator {
	return &WebMercator{
		forward: wgs84.LonLat().To(wgs84.WebMercator()),
		inverse: wgs84.Transform(wgs84.WebMercator(), wgs84.WGS84().LonLat()),
	}
}

// Name returns "Popular Visualisation Pseudo Mercator".
func (p *WebMercator) Name() string { return "Popular Visualisation Pseudo Mercator" }

// Project converts lon/lat radians into easting/northing metres.
func (p *WebMercator) Project(lambda, phi float64) (float64, float64, error) {
	if err := checkGeographic(p.Name(), lambda, phi); err != nil {
		return 0, 0, err
	}
	lon, lat := normalizeLon(lambda*toDeg), phi*toDeg
	// The limit itself survives the degree/radian round trip.
	if math.Abs(lat) > MaxMercatorLatitude+eps {
		return 0, 0, fmt.Errorf("web mercator: latitude %f beyond %f: %w", lat, MaxMercatorLatitude, domain.ErrOutOfDomain)
	}
	x, y, _ := p.forward(lon, lat, 0)
	if !finite(x, y) {
		return 0, 0, fmt.Errorf("web mercator: projection of (%f, %f) failed: %w", lon, lat, domain.ErrOutOfDomain)
	}
	return x, y, nil
}

// Unproject converts easting/northing metres into lon/lat radians.
func (p *WebMercator) Unproject(x, y float64) (float64, float64, error) {
	if !finite(x, y) {
		return 0, 0, fmt.Errorf("web mercator: (%f, %f) is not finite: %w", x, y, domain.ErrInvalidCoordinate)
	}
	lon, lat, _ := p.inverse(x, y, 0)
	if !finite(lon, lat) {
		return 0, 0, fmt.Errorf("web mercator: inverse projection of (%f, %f) failed: %w", x, y, domain.ErrOutOfDomain)
	}
	return lon * toRad, lat * toRad, nil
}

// Equal is true for any other Web Mercator.
func (p *WebMercator) Equal(other domain.Projection) bool {
	_, ok := other.(*WebMercator)
	return ok
}
