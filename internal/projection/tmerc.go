package projection

import (
	"fmt"
	"math"

	"github.com/wroge/wgs84"

	"github.com/jobrunner/geotrans/internal/domain"
)

// MaxMeridianDistance is the largest longitude difference in degrees from
// the central meridian accepted by the Transverse Mercator projection.
const MaxMeridianDistance = 30.0

// TransverseMercator is the ellipsoidal Transverse Mercator projection.
type TransverseMercator struct {
	name      string
	ellipsoid *domain.Ellipsoid
	lon0      float64
	lat0      float64
	scale     float64
	falseE    float64
	falseN    float64

	forward transformFunc
	inverse transformFunc
}

// NewTransverseMercator creates a Transverse Mercator projection. Angles are
// in degrees, false easting and northing in metres.
func NewTransverseMercator(ellipsoid *domain.Ellipsoid, lon0, lat0, scale, falseEasting, falseNorthing float64) (*TransverseMercator, error) {
	if ellipsoid == nil {
		return nil, fmt.Errorf("transverse mercator ellipsoid: %w", domain.ErrNilArgument)
	}
	if scale <= 0 || !finite(lon0, lat0, scale, falseEasting, falseNorthing) {
		return nil, fmt.Errorf("transverse mercator parameters (lon0 %f, lat0 %f, k %f): %w",
			lon0, lat0, scale, domain.ErrInvalidInput)
	}
	d := datum(ellipsoid)
	tm := d.TransverseMercator(lon0, lat0, scale, falseEasting, falseNorthing)
	return &TransverseMercator{
		name:      "Transverse Mercator",
		ellipsoid: ellipsoid,
		lon0:      lon0,
		lat0:      lat0,
		scale:     scale,
		falseE:    falseEasting,
		falseN:    falseNorthing,
		forward:   wgs84.Transform(d.LonLat(), tm),
		inverse:   wgs84.Transform(tm, d.LonLat()),
	}, nil
}

// NewUTM creates the Universal Transverse Mercator projection of a zone.
func NewUTM(ellipsoid *domain.Ellipsoid, zone int, north bool) (*TransverseMercator, error) {
	if zone < 1 || zone > 60 {
		return nil, fmt.Errorf("utm zone %d: %w", zone, domain.ErrInvalidInput)
	}
	falseNorthing := 0.0
	if !north {
		falseNorthing = 10000000
	}
	tm, err := NewTransverseMercator(ellipsoid, float64(zone*6-183), 0, 0.9996, 500000, falseNorthing)
	if err != nil {
		return nil, err
	}
	hemisphere := "N"
	if !north {
		hemisphere = "S"
	}
	tm.name = fmt.Sprintf("UTM zone %d%s", zone, hemisphere)
	return tm, nil
}

// Name returns the projection name.
func (p *TransverseMercator) Name() string { return p.name }

// Parameters returns central meridian, latitude of origin, scale factor,
// false easting and false northing.
func (p *TransverseMercator) Parameters() []float64 {
	return []float64{p.lon0, p.lat0, p.scale, p.falseE, p.falseN}
}

// CentralMeridian returns the longitude of origin in degrees.
func (p *TransverseMercator) CentralMeridian() float64 { return p.lon0 }

// Project converts lon/lat radians into easting/northing metres.
func (p *TransverseMercator) Project(lambda, phi float64) (float64, float64, error) {
	if err := checkGeographic(p.name, lambda, phi); err != nil {
		return 0, 0, err
	}
	lon, lat := lambda*toDeg, phi*toDeg
	if math.Abs(normalizeLon(lon-p.lon0)) > MaxMeridianDistance {
		return 0, 0, fmt.Errorf("%s: longitude %f is more than %.0f degrees from central meridian %f: %w",
			p.name, lon, MaxMeridianDistance, p.lon0, domain.ErrOutOfDomain)
	}
	x, y, _ := p.forward(lon, lat, 0)
	if !finite(x, y) {
		return 0, 0, fmt.Errorf("%s: projection of (%f, %f) failed: %w", p.name, lon, lat, domain.ErrOutOfDomain)
	}
	return x, y, nil
}

// Unproject converts easting/northing metres into lon/lat radians.
func (p *TransverseMercator) Unproject(x, y float64) (float64, float64, error) {
	if !finite(x, y) {
		return 0, 0, fmt.Errorf("%s: (%f, %f) is not finite: %w", p.name, x, y, domain.ErrInvalidCoordinate)
	}
	lon, lat, _ := p.inverse(x, y, 0)
	if !finite(lon, lat) || math.Abs(lat) > 90 {
		return 0, 0, fmt.Errorf("%s: inverse projection of (%f, %f) failed: %w", p.name, x, y, domain.ErrOutOfDomain)
	}
	return lon * toRad, lat * toRad, nil
}

// Equal compares the projection parameters and the ellipsoid.
func (p *TransverseMercator) Equal(other domain.Projection) bool {
	o, ok := other.(*TransverseMercator)
	if !ok {
		return false
	}
	return near(p.lon0, o.lon0) && near(p.lat0, o.lat0) && near(p.scale, o.scale) &&
		near(p.falseE, o.falseE) && near(p.falseN, o.falseN) && p.ellipsoid.Equal(o.ellipsoid)
}
