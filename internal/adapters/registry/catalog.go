package registry

import (
	"errors"
	"fmt"

	"github.com/jobrunner/geotrans/internal/domain"
	"github.com/jobrunner/geotrans/internal/projection"
)

// Areas of use in WGS84 lon/lat order.
const (
	areaWorld       = "-180,-90,180,90"
	areaMercator    = "-180,-85.05112878,180,85.05112878"
	areaEurope      = "-16.1,32.88,40.18,84.73"
	areaGermany     = "5.87,47.27,13.84,55.09"
	areaGK2         = "5.87,49.1,7.5,53.75"
	areaGK3         = "7.5,47.27,10.5,55.09"
	areaGK4         = "10.5,47.27,13.5,55.09"
	areaUTM32Europe = "6,38.76,12,84.33"
	areaUTM33Europe = "12,34.79,18,84.42"
	areaUTM32North  = "6,0,12,84"
	areaUTM33North  = "12,0,18,84"
)

// DHDN is the position vector shift of the Deutsches Hauptdreiecksnetz.
var DHDN = domain.BursaWolf{Dx: 598.1, Dy: 73.7, Dz: 418.2, Ex: 0.202, Ey: 0.045, Ez: -2.455, PPM: 6.7}

type catalogBuilder struct {
	crs  []domain.CRS
	errs []error
}

func (b *catalogBuilder) id(codes []string, name, area string) *domain.Identifiable {
	cts := make([]domain.CodeType, len(codes))
	for i, c := range codes {
		cts[i] = domain.NewCodeType(c)
	}
	var areas []string
	if area != "" {
		areas = []string{area}
	}
	id, err := domain.NewIdentifiable(cts, []string{name}, nil, nil, areas)
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("%s: %w", name, err))
	}
	return id
}

func (b *catalogBuilder) add(c domain.CRS, err error) domain.CRS {
	if err != nil {
		b.errs = append(b.errs, err)
		return nil
	}
	b.crs = append(b.crs, c)
	return c
}

func (b *catalogBuilder) ellipsoid(code int, name string, a, invF float64) *domain.Ellipsoid {
	e, err := domain.NewEllipsoid(b.id([]string{fmt.Sprintf("EPSG:%d", code)}, name, ""), a, invF, domain.Metre)
	if err != nil {
		b.errs = append(b.errs, err)
	}
	return e
}

func (b *catalogBuilder) datum(code int, name string, e *domain.Ellipsoid, shift *domain.BursaWolf) *domain.GeodeticDatum {
	d, err := domain.NewGeodeticDatum(b.id([]string{fmt.Sprintf("EPSG:%d", code)}, name, ""), e, 0, shift)
	if err != nil {
		b.errs = append(b.errs, err)
	}
	return d
}

func (b *catalogBuilder) geographic(codes []string, name, area string, d *domain.GeodeticDatum, axes []domain.Axis) *domain.GeographicCRS {
	c, err := domain.NewGeographicCRS(b.id(codes, name, area), d, axes)
	if b.add(c, err) == nil {
		return nil
	}
	return c
}

func (b *catalogBuilder) projected(codes []string, name, area string, geo *domain.GeographicCRS,
	p domain.Projection, err error) *domain.ProjectedCRS {
	if err != nil {
		b.errs = append(b.errs, fmt.Errorf("%s: %w", name, err))
		return nil
	}
	c, err := domain.NewProjectedCRS(b.id(codes, name, area), geo, p, domain.AxesEastNorth)
	if b.add(c, err) == nil {
		return nil
	}
	return c
}

func (b *catalogBuilder) compound(code, name string, underlying domain.CRS) {
	c, err := domain.NewCompoundCRS(b.id([]string{code}, name, underlying.ID().AreaOfUse()),
		underlying, domain.NewAxis("ellipsoidal height", domain.OrientationUp, domain.Metre), 0)
	b.add(c, err)
}

// Catalog returns the built-in CRS definitions in registration order. The
// first entry is WGS84 in longitude/latitude order.
func Catalog() ([]domain.CRS, error) {
	b := &catalogBuilder{}

	wgs84E := b.ellipsoid(7030, "WGS 84", 6378137, 298.257223563)
	grs80 := b.ellipsoid(7019, "GRS 1980", 6378137, 298.257222101)
	bessel := b.ellipsoid(7004, "Bessel 1841", 6377397.155, 299.1528128)

	wgs84D := b.datum(6326, "World Geodetic System 1984", wgs84E, nil)
	etrs89 := b.datum(6258, "European Terrestrial Reference System 1989", grs80, &domain.BursaWolf{})
	dhdnShift := DHDN
	dhdn := b.datum(6314, "Deutsches Hauptdreiecksnetz", bessel, &dhdnShift)
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	wgs84 := b.geographic([]string{"EPSG:4326"}, "WGS 84", areaWorld, wgs84D, domain.AxesLonLat)
	b.geographic([]string{"urn:ogc:def:crs:EPSG::4326", "http://www.opengis.net/def/crs/EPSG/0/4326"},
		"WGS 84 (latitude, longitude)", areaWorld, wgs84D, domain.AxesLatLon)
	b.geographic([]string{"CRS:84", "urn:ogc:def:crs:OGC:1.3:CRS84"}, "WGS 84 longitude-latitude", areaWorld, wgs84D, domain.AxesLonLat)
	b.geographic([]string{"EPSG:4979"}, "WGS 84 (3D)", areaWorld, wgs84D, domain.AxesLonLatHeight)
	gc, err := domain.NewGeocentricCRS(b.id([]string{"EPSG:4978"}, "WGS 84 (geocentric)", areaWorld), wgs84D, domain.AxesGeocentric)
	b.add(gc, err)
	etrs := b.geographic([]string{"EPSG:4258"}, "ETRS89", areaEurope, etrs89, domain.AxesLonLat)
	dhdnGeo := b.geographic([]string{"EPSG:4314"}, "DHDN", areaGermany, dhdn, domain.AxesLonLat)
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	for _, gk := range []struct {
		code int
		zone int
		area string
	}{
		{31466, 2, areaGK2},
		{31467, 3, areaGK3},
		{31468, 4, areaGK4},
	} {
		tm, err := projection.NewTransverseMercator(bessel, float64(gk.zone*3), 0, 1, float64(gk.zone)*1e6+500000, 0)
		b.projected([]string{fmt.Sprintf("EPSG:%d", gk.code)},
			fmt.Sprintf("DHDN / 3-degree Gauss-Kruger zone %d", gk.zone), gk.area, dhdnGeo, tm, err)
	}

	for _, utm := range []struct {
		code  int
		zone  int
		geo   *domain.GeographicCRS
		e     *domain.Ellipsoid
		datum string
		area  string
	}{
		{25832, 32, etrs, grs80, "ETRS89", areaUTM32Europe},
		{25833, 33, etrs, grs80, "ETRS89", areaUTM33Europe},
		{32632, 32, wgs84, wgs84E, "WGS 84", areaUTM32North},
		{32633, 33, wgs84, wgs84E, "WGS 84", areaUTM33North},
	} {
		p, err := projection.NewUTM(utm.e, utm.zone, true)
		b.projected([]string{fmt.Sprintf("EPSG:%d", utm.code)},
			fmt.Sprintf("%s / UTM zone %dN", utm.datum, utm.zone), utm.area, utm.geo, p, err)
	}

	b.projected([]string{"EPSG:3857", "EPSG:900913"}, "WGS 84 / Pseudo-Mercator", areaMercator,
		wgs84, projection.NewWebMercator(), nil)
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	b.compound("EPSG:4326+h", "WGS 84 + ellipsoidal height", wgs84)
	for _, c := range b.crs {
		if c.Code().String() == "EPSG:31467" {
			b.compound("EPSG:31467+h", "DHDN / 3-degree Gauss-Kruger zone 3 + ellipsoidal height", c)
		}
	}
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	return b.crs, nil
}
