package registry

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobrunner/geotrans/internal/domain"
	"github.com/jobrunner/geotrans/internal/ports/output"
	"github.com/jobrunner/geotrans/internal/projection"
)

func TestCatalog(t *testing.T) {
	catalog, err := Catalog()
	require.NoError(t, err)
	require.NotEmpty(t, catalog)
	assert.Equal(t, "EPSG:4326", catalog[0].Code().String())

	seen := make(map[string]bool)
	for _, c := range catalog {
		key := c.Code().Original()
		assert.False(t, seen[key], "duplicate code %s", key)
		seen[key] = true
	}
	for _, code := range []string{"EPSG:4979", "EPSG:4978", "EPSG:4258", "EPSG:4314", "EPSG:31466",
		"EPSG:31467", "EPSG:31468", "EPSG:25832", "EPSG:25833", "EPSG:32632", "EPSG:32633",
		"EPSG:3857", "CRS:84", "EPSG:4326+h", "EPSG:31467+h"} {
		assert.True(t, seen[code], "missing %s", code)
	}
}

func TestLookup(t *testing.T) {
	r := newTestRegistry(t, nil)

	tests := []struct {
		code      string
		wantName  string
		wantFirst domain.Orientation
	}{
		{"EPSG:4326", "WGS 84", domain.OrientationEast},
		{"epsg:4326", "WGS 84", domain.OrientationEast},
		{" EPSG:4326 ", "WGS 84", domain.OrientationEast},
		{"urn:ogc:def:crs:EPSG::4326", "WGS 84 (latitude, longitude)", domain.OrientationNorth},
		{"urn:ogc:def:crs:EPSG:6.18:4326", "WGS 84 (latitude, longitude)", domain.OrientationNorth},
		{"http://www.opengis.net/def/crs/EPSG/0/4326", "WGS 84 (latitude, longitude)", domain.OrientationNorth},
		{"http://www.opengis.net/gml/srs/epsg.xml#4326", "WGS 84", domain.OrientationEast},
		{"CRS:84", "WGS 84 longitude-latitude", domain.OrientationEast},
		{"urn:ogc:def:crs:EPSG::31467", "DHDN / 3-degree Gauss-Kruger zone 3", domain.OrientationEast},
		{"EPSG:900913", "WGS 84 / Pseudo-Mercator", domain.OrientationEast},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			c, err := r.Lookup(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, c.Name())
			assert.Equal(t, tt.wantFirst, c.Axes()[0].Orientation)
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	r := newTestRegistry(t, nil)

	for _, code := range []string{"EPSG:99999", "", "nonsense"} {
		_, err := r.Lookup(code)
		var unknown *domain.UnknownCRSError
		require.True(t, errors.As(err, &unknown), "code %q", code)
		assert.Equal(t, code, unknown.Code)
		assert.ErrorIs(t, err, domain.ErrUnknownCRS)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	}
}

func TestWGS84Variants(t *testing.T) {
	r := newTestRegistry(t, nil)
	latLon, err := r.Lookup("urn:ogc:def:crs:EPSG::4326")
	require.NoError(t, err)

	wgs84 := r.WGS84()
	assert.Equal(t, 0, wgs84.Easting())
	assert.False(t, wgs84.Equal(latLon))
	assert.True(t, wgs84.EqualWithFlippedAxis(latLon))
}

func transformPoints(t *testing.T, r *Registry, from, to string, points ...domain.Point3) []domain.Point3 {
	t.Helper()
	source, err := r.Lookup(from)
	require.NoError(t, err)
	target, err := r.Lookup(to)
	require.NoError(t, err)
	tr, err := r.ResolveTransformation(source, target, nil)
	require.NoError(t, err)
	out, err := tr.Transform(domain.ClonePoints(points))
	require.NoError(t, err, transformDescription(tr))
	return out
}

func transformDescription(tr domain.Transformation) string {
	return tr.ImplementationName()
}

func TestResolveTransformationAccuracy(t *testing.T) {
	r := newTestRegistry(t, nil)

	tests := []struct {
		name     string
		from, to string
		in       domain.Point3
		want     domain.Point3
		tol      float64
	}{
		{"utm 32 central meridian", "EPSG:4326", "EPSG:32632",
			domain.NewPoint2(9, 50), domain.NewPoint2(500000, 5538630.70), 0.5},
		{"etrs89 utm 32", "EPSG:4326", "EPSG:25832",
			domain.NewPoint2(9, 50), domain.NewPoint2(500000, 5538630.70), 0.5},
		{"web mercator", "EPSG:4326", "EPSG:3857",
			domain.NewPoint2(8.3, 50.1), domain.NewPoint2(923951.77, 6463612.12), 0.05},
		{"geocentric", "EPSG:4326", "EPSG:4978",
			domain.NewPoint2(8.3, 50.1), domain.NewPoint3(4056399.82, 591764.74, 4869931.33), 0.05},
		{"dhdn gauss-kruger with height", "EPSG:4326+h", "EPSG:31467+h",
			domain.NewPoint3(9.432778, 47.851111, 870.6), domain.NewPoint3(3532465.56, 5301523.48, 817.20), 1},
		{"dhdn gauss-kruger", "EPSG:4326", "EPSG:31467",
			domain.NewPoint2(9.432778, 47.851111), domain.NewPoint2(3532465.56, 5301523.48), 1},
		{"axis flip", "EPSG:4326", "urn:ogc:def:crs:EPSG::4326",
			domain.NewPoint2(8.3, 50.1), domain.NewPoint2(50.1, 8.3), 1e-12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := transformPoints(t, r, tt.from, tt.to, tt.in)
			require.Len(t, out, 1)
			assert.InDelta(t, tt.want.X, out[0].X, tt.tol)
			assert.InDelta(t, tt.want.Y, out[0].Y, tt.tol)
			if tt.want.HasZ() {
				assert.InDelta(t, tt.want.Z, out[0].Z, tt.tol)
			} else {
				assert.False(t, out[0].HasZ(), "2-D target has no height")
			}
		})
	}
}

func TestResolveTransformationRoundTrip(t *testing.T) {
	r := newTestRegistry(t, nil)
	pairs := [][2]string{
		{"EPSG:4326", "EPSG:31467"},
		{"EPSG:4258", "EPSG:31468"},
		{"EPSG:31466", "EPSG:25832"},
		{"urn:ogc:def:crs:EPSG::4326", "EPSG:4314"},
		{"EPSG:4979", "EPSG:4978"},
	}
	in := domain.NewPoint3(7.2, 51.3, 100)

	for _, pair := range pairs {
		t.Run(pair[0]+" "+pair[1], func(t *testing.T) {
			source, err := r.Lookup(pair[0])
			require.NoError(t, err)
			start := in
			if source.Axes()[0].Orientation == domain.OrientationNorth {
				start = domain.NewPoint3(in.Y, in.X, in.Z)
			}
			if source.Type() == domain.CRSProjected {
				start = transformPoints(t, r, "EPSG:4326", pair[0], in)[0]
			}
			there := transformPoints(t, r, pair[0], pair[1], start)
			back := transformPoints(t, r, pair[1], pair[0], there...)
			tol := 2e-7
			if source.Type() == domain.CRSProjected {
				tol = 0.05
			}
			assert.InDelta(t, start.X, back[0].X, tol)
			assert.InDelta(t, start.Y, back[0].Y, tol)
		})
	}
}

func TestResolveTransformationHeightHandling(t *testing.T) {
	r := newTestRegistry(t, nil)

	dropped := transformPoints(t, r, "EPSG:31467+h", "EPSG:31467", domain.NewPoint3(3532465.56, 5301523.48, 817))
	assert.InDelta(t, 3532465.56, dropped[0].X, 1e-3)
	assert.True(t, math.IsNaN(dropped[0].Z))

	added := transformPoints(t, r, "EPSG:4326", "EPSG:4326+h", domain.NewPoint2(9, 50))
	assert.InDelta(t, 9, added[0].X, 1e-12)
	assert.Equal(t, 0.0, added[0].Z, "default height")
}

func TestResolveTransformationCache(t *testing.T) {
	metrics := &countingMetrics{}
	r := newTestRegistry(t, metrics)
	source, _ := r.Lookup("EPSG:4326")
	target, _ := r.Lookup("EPSG:25832")

	first, err := r.ResolveTransformation(source, target, nil)
	require.NoError(t, err)
	second, err := r.ResolveTransformation(source, target, nil)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, metrics.builds["EPSG:4326>EPSG:25832"])
	assert.Equal(t, 1, metrics.hits)
	assert.Equal(t, 1, metrics.misses)

	inverse, err := r.ResolveTransformation(target, source, nil)
	require.NoError(t, err)
	assert.NotSame(t, first, inverse)
	assert.Equal(t, 1, metrics.builds["EPSG:25832>EPSG:4326"])
}

func TestResolveTransformationCacheKey(t *testing.T) {
	metrics := &countingMetrics{}
	r := newTestRegistry(t, metrics)
	wgs84 := r.WGS84()
	utm, _ := r.Lookup("EPSG:25832")
	gk3, _ := r.Lookup("EPSG:31467")
	dhdnGeo, _ := r.Lookup("EPSG:4314")
	dhdn, ok := dhdnGeo.Datum().(*domain.GeodeticDatum)
	require.True(t, ok)

	// Same code and axes as EPSG:4326, different datum.
	reused, err := domain.NewGeographicCRS(
		domain.MustIdentifiable(domain.NewEPSGCode(4326), "WGS 84 on DHDN", ""), dhdn, domain.AxesLonLat)
	require.NoError(t, err)

	// Same code as EPSG:31467, parameters of zone 4.
	zone4, err := projection.NewTransverseMercator(dhdn.Ellipsoid(), 12, 0, 1, 4500000, 0)
	require.NoError(t, err)
	shifted, err := domain.NewProjectedCRS(
		domain.MustIdentifiable(domain.NewEPSGCode(31467), "DHDN / 3-degree Gauss-Kruger zone 3", ""),
		dhdnGeo.(*domain.GeographicCRS), zone4, domain.AxesEastNorth)
	require.NoError(t, err)

	assert.NotEqual(t, chainKey(wgs84, utm), chainKey(reused, utm), "datum is part of the key")
	assert.NotEqual(t, chainKey(gk3, utm), chainKey(shifted, utm), "projection parameters are part of the key")
	assert.Equal(t, chainKey(wgs84, utm), chainKey(wgs84, utm))

	registered, err := r.ResolveTransformation(wgs84, utm, nil)
	require.NoError(t, err)
	other, err := r.ResolveTransformation(reused, utm, nil)
	require.NoError(t, err)
	assert.NotSame(t, registered, other)
	assert.Equal(t, 2, metrics.builds["EPSG:4326>EPSG:25832"])

	a, err := registered.Transform([]domain.Point3{domain.NewPoint2(9, 50)})
	require.NoError(t, err)
	b, err := other.Transform([]domain.Point3{domain.NewPoint2(9, 50)})
	require.NoError(t, err)
	assert.Greater(t, math.Abs(a[0].X-b[0].X), 10.0, "datum shift is applied")
}

func TestResolveTransformationPreferred(t *testing.T) {
	r := newTestRegistry(t, nil)
	source, _ := r.Lookup("EPSG:4326")
	target, _ := r.Lookup("EPSG:4258")
	preferred := &fixedTransformation{source: source, target: target, name: "preferred"}

	tr, err := r.ResolveTransformation(source, target, []domain.Transformation{nil, preferred})
	require.NoError(t, err)
	assert.Same(t, preferred, tr)

	tr, err = r.ResolveTransformation(target, source, []domain.Transformation{preferred})
	require.NoError(t, err)
	assert.True(t, tr.IsInverse())
	assert.Equal(t, "preferred", tr.ImplementationName())
}

func TestResolveTransformationIdentity(t *testing.T) {
	r := newTestRegistry(t, nil)
	wgs84 := r.WGS84()

	tr, err := r.ResolveTransformation(wgs84, wgs84, nil)
	require.NoError(t, err)
	assert.True(t, tr.IsIdentity())

	crs84, _ := r.Lookup("CRS:84")
	tr, err = r.ResolveTransformation(wgs84, crs84, nil)
	require.NoError(t, err)
	assert.True(t, tr.IsIdentity(), "same datum and axes collapse to identity")
}

func TestResolveTransformationUnsupported(t *testing.T) {
	r := newTestRegistry(t, nil)
	vd, err := domain.NewVerticalDatum(domain.MustIdentifiable(domain.NewEPSGCode(5215), "EVRS 2007", ""))
	require.NoError(t, err)
	vertical, err := domain.NewVerticalCRS(domain.MustIdentifiable(domain.NewEPSGCode(5621), "EVRF2007 height", ""),
		vd, []domain.Axis{domain.AxisHeight})
	require.NoError(t, err)

	_, err = r.ResolveTransformation(r.WGS84(), vertical, nil)
	assert.ErrorIs(t, err, domain.ErrNoTransformation)

	_, err = r.ResolveTransformation(nil, vertical, nil)
	assert.ErrorIs(t, err, domain.ErrNilArgument)
}

func TestFindByArea(t *testing.T) {
	r := newTestRegistry(t, nil)

	codes := func(list []domain.CRS) []string {
		out := make([]string, len(list))
		for i, c := range list {
			out[i] = c.Code().String()
		}
		return out
	}

	at := codes(r.FindAt(9.5, 50))
	assert.Contains(t, at, "EPSG:4326")
	assert.Contains(t, at, "EPSG:31467")
	assert.Contains(t, at, "EPSG:25832")
	assert.Contains(t, at, "EPSG:32632")
	assert.NotContains(t, at, "EPSG:31466")
	assert.NotContains(t, at, "EPSG:25833")

	south := codes(r.FindAt(9.5, -30))
	assert.NotContains(t, south, "EPSG:32632")
	assert.Contains(t, south, "EPSG:4326")

	area := codes(r.FindByArea(domain.BBox{6, 48, 8, 49}))
	assert.Contains(t, area, "EPSG:31466")
	assert.Contains(t, area, "EPSG:31467")
	assert.Equal(t, "EPSG:4326", area[0], "registration order")
}

func TestRegister(t *testing.T) {
	metrics := &countingMetrics{}
	r := newTestRegistry(t, metrics)
	before := r.Count()
	assert.Equal(t, before, metrics.registered)

	assert.ErrorIs(t, r.Register(nil), domain.ErrNilArgument)
	require.NoError(t, r.Register(r.WGS84()))
	assert.Equal(t, before, r.Count(), "registering the same crs is a no-op")

	wgs84 := r.WGS84()
	replacement, err := domain.NewGeographicCRS(
		domain.MustIdentifiable(domain.NewCodeType("EPSG:4314"), "DHDN replaced", "5,47,15,55"),
		wgs84.GeodeticDatum(), domain.AxesLonLat)
	require.NoError(t, err)
	require.NoError(t, r.Register(replacement))
	assert.Equal(t, before, r.Count())

	got, err := r.Lookup("EPSG:4314")
	require.NoError(t, err)
	assert.Equal(t, "DHDN replaced", got.Name())
	assert.Contains(t, r.FindAt(14.5, 50), domain.CRS(replacement))

	custom, err := domain.NewGeographicCRS(
		domain.MustIdentifiable(domain.NewCodeType("LOCAL:1"), "local", ""), wgs84.GeodeticDatum(), domain.AxesLonLat)
	require.NoError(t, err)
	require.NoError(t, r.Register(custom))
	assert.Equal(t, before+1, r.Count())
	assert.Equal(t, before+1, metrics.registered)
	got, err = r.Lookup("local:1")
	require.NoError(t, err)
	assert.Same(t, custom, got)
}

var _ output.CRSCatalog = (*Registry)(nil)
