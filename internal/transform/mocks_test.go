package transform

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jobrunner/geotrans/internal/domain"
)

var errOutside = errors.New("outside test domain")

// mockProjection scales radians into metres and fails for lambda > limit.
type mockProjection struct {
	scale float64
	limit float64
}

func (m *mockProjection) Name() string { return "mock" }

func (m *mockProjection) Project(lambda, phi float64) (float64, float64, error) {
	if m.limit != 0 && lambda > m.limit {
		return 0, 0, fmt.Errorf("lambda %f: %w", lambda, errOutside)
	}
	return lambda * m.scale, phi * m.scale, nil
}

func (m *mockProjection) Unproject(x, y float64) (float64, float64, error) {
	return x / m.scale, y / m.scale, nil
}

func (m *mockProjection) Equal(other domain.Projection) bool {
	o, ok := other.(*mockProjection)
	return ok && *o == *m
}

// mockFit adds an offset to x and y.
type mockFit struct {
	offset float64
}

func (m *mockFit) Name() string { return "mock" }

func (m *mockFit) Apply(points []domain.Point3) ([]domain.Point3, error) {
	for i := range points {
		points[i].X += m.offset
		points[i].Y += m.offset
	}
	return points, nil
}

func wgs84Datum(t *testing.T) *domain.GeodeticDatum {
	t.Helper()
	e := domain.MustEllipsoid(domain.MustIdentifiable(domain.NewEPSGCode(7030), "WGS 84", ""), 6378137, 298.257223563)
	return domain.MustGeodeticDatum(domain.MustIdentifiable(domain.NewEPSGCode(6326), "WGS 84", ""), e, nil)
}

func geographic(t *testing.T, code string, axes []domain.Axis) *domain.GeographicCRS {
	t.Helper()
	crs, err := domain.NewGeographicCRS(domain.MustIdentifiable(domain.NewCodeType(code), code, ""), wgs84Datum(t), axes)
	if err != nil {
		t.Fatal(err)
	}
	return crs
}

func radianAxes() []domain.Axis {
	return []domain.Axis{
		domain.NewAxis("longitude", domain.OrientationEast, domain.Radian),
		domain.NewAxis("latitude", domain.OrientationNorth, domain.Radian),
	}
}

func geocentric(t *testing.T) *domain.GeocentricCRS {
	t.Helper()
	crs, err := domain.NewGeocentricCRS(domain.MustIdentifiable(domain.NewEPSGCode(4978), "WGS 84", ""), wgs84Datum(t), domain.AxesGeocentric)
	if err != nil {
		t.Fatal(err)
	}
	return crs
}

func compound(t *testing.T, underlying domain.CRS, defaultHeight float64) *domain.CompoundCRS {
	t.Helper()
	c, err := domain.NewCompoundCRS(domain.MustIdentifiable(domain.NewCodeType(underlying.Code().String()+"+h"), "", ""),
		underlying, domain.AxisHeight, defaultHeight)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func projected(t *testing.T, p domain.Projection, axes []domain.Axis) *domain.ProjectedCRS {
	t.Helper()
	crs, err := domain.NewProjectedCRS(domain.MustIdentifiable(domain.NewCodeType("TEST:proj"), "", ""),
		geographic(t, "EPSG:4326", radianAxes()), p, axes)
	if err != nil {
		t.Fatal(err)
	}
	return crs
}
