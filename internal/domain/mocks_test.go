package domain

import (
	"errors"
	"sync"
	"testing"
)

// mockProjection is a scaled plate carrée.
type mockProjection struct {
	scale float64
}

func (m *mockProjection) Name() string { return "mock" }

func (m *mockProjection) Project(lambda, phi float64) (float64, float64, error) {
	return lambda * m.scale, phi * m.scale, nil
}

func (m *mockProjection) Unproject(x, y float64) (float64, float64, error) {
	return x / m.scale, y / m.scale, nil
}

func (m *mockProjection) Equal(other Projection) bool {
	o, ok := other.(*mockProjection)
	return ok && o.scale == m.scale
}

// mockSampler reprojects by copying and counts calls.
type mockSampler struct {
	mu    sync.Mutex
	wgs84 CRS
	calls int
	err   error
	scale float64
}

func (m *mockSampler) WGS84() CRS { return m.wgs84 }

func (m *mockSampler) Reproject(_, _ CRS, points []Point3) ([]Point3, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := ClonePoints(points)
	if m.scale != 0 {
		for i := range out {
			out[i].X *= m.scale
			out[i].Y *= m.scale
		}
	}
	return out, nil
}

func (m *mockSampler) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var errSampling = errors.New("sampling failed")

func testDatum(t *testing.T) *GeodeticDatum {
	t.Helper()
	ellipsoid := MustEllipsoid(MustIdentifiable(NewEPSGCode(7030), "WGS 84", ""), 6378137, 298.257223563)
	d, err := NewGeodeticDatum(MustIdentifiable(NewEPSGCode(6326), "WGS 84", ""), ellipsoid, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func testGeographic(t *testing.T, axes []Axis, area string) *GeographicCRS {
	t.Helper()
	crs, err := NewGeographicCRS(MustIdentifiable(NewEPSGCode(4326), "WGS 84", area), testDatum(t), axes)
	if err != nil {
		t.Fatal(err)
	}
	return crs
}
