package transform

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobrunner/geotrans/internal/domain"
)

func rad(deg float64) float64 { return deg * math.Pi / 180 }

func TestGeocentricKnownPoint(t *testing.T) {
	g, err := NewGeocentric(geographic(t, "EPSG:4326", radianAxes()), geocentric(t))
	require.NoError(t, err)

	points := []domain.Point3{domain.NewPoint2(rad(8.3), rad(50.1))}
	_, err = g.Transform(points)
	require.NoError(t, err)

	assert.InDelta(t, 4056399.82, points[0].X, 1e-2)
	assert.InDelta(t, 591764.74, points[0].Y, 1e-2)
	assert.InDelta(t, 4869931.33, points[0].Z, 1e-2)

	_, err = g.Inverse().Transform(points)
	require.NoError(t, err)
	assert.InDelta(t, rad(8.3), points[0].X, 1e-9)
	assert.InDelta(t, rad(50.1), points[0].Y, 1e-9)
	assert.True(t, math.IsNaN(points[0].Z), "2-D geographic target has no height")
}

func TestGeocentricRoundTrip(t *testing.T) {
	source := compound(t, geographic(t, "EPSG:4326", radianAxes()), 0)
	g, err := NewGeocentric(source, geocentric(t))
	require.NoError(t, err)

	var in []domain.Point3
	for lat := -80.0; lat <= 80; lat++ {
		for lon := -180.0; lon < 180; lon += 45 {
			for _, h := range []float64{0, 1000} {
				in = append(in, domain.NewPoint3(rad(lon), rad(lat), h))
			}
		}
	}
	points := domain.ClonePoints(in)
	_, err = g.Transform(points)
	require.NoError(t, err)
	_, err = g.Inverse().Transform(points)
	require.NoError(t, err)

	// One correction step of Toms' method leaves up to about 5.5 mm of height
	// error at mid latitudes.
	tol := rad(1e-6)
	for i := range in {
		assert.InDelta(t, in[i].X, points[i].X, tol, "lon at %d", i)
		assert.InDelta(t, in[i].Y, points[i].Y, tol, "lat at %d", i)
		assert.InDelta(t, in[i].Z, points[i].Z, 6e-3, "height at %d", i)
	}
}

func TestGeocentricDefaultHeight(t *testing.T) {
	source := compound(t, geographic(t, "EPSG:4326", radianAxes()), 250)
	g, err := NewGeocentric(source, geocentric(t))
	require.NoError(t, err)

	points := []domain.Point3{
		domain.NewPoint2(rad(8), rad(50)),
		domain.NewPoint3(rad(8), rad(50), 1e-12),
		domain.NewPoint3(rad(8), rad(50), 250),
		domain.NewPoint3(rad(8), rad(50), 10),
	}
	_, err = g.Transform(points)
	require.NoError(t, err)

	assert.Equal(t, points[2], points[0], "unset height uses the default")
	assert.Equal(t, points[2], points[1], "near-zero height uses the default")
	assert.NotEqual(t, points[2], points[3])

	_, err = g.Inverse().Transform(points[:1])
	require.NoError(t, err)
	assert.InDelta(t, 250, points[0].Z, 1e-2)
}

func TestGeocentricPoles(t *testing.T) {
	source := compound(t, geographic(t, "EPSG:4326", radianAxes()), 0)
	g, err := NewGeocentric(source, geocentric(t))
	require.NoError(t, err)

	points := []domain.Point3{
		domain.NewPoint3(0, 0, 6356752.314245),
		domain.NewPoint3(0, 0, -6356852.314245),
	}
	_, err = g.Inverse().Transform(points)
	require.NoError(t, err)

	assert.Equal(t, halfPi, points[0].Y)
	assert.InDelta(t, 0, points[0].Z, 1e-3)
	assert.Equal(t, -halfPi, points[1].Y)
	assert.InDelta(t, 100, points[1].Z, 1e-3)
}

func TestGeocentricInvalidLatitude(t *testing.T) {
	g, err := NewGeocentric(geographic(t, "EPSG:4326", radianAxes()), geocentric(t))
	require.NoError(t, err)

	points := []domain.Point3{
		domain.NewPoint2(0, rad(45)),
		domain.NewPoint2(0, 2),
		domain.NewPoint2(0, halfPi*1.0005),
	}
	_, err = g.Transform(points)

	var te *domain.TransformationError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, []int{1}, te.FailedIndexes())
	assert.Equal(t, 2.0, points[1].Y, "failed point keeps its input")
	assert.InDelta(t, 6356752.314, points[2].Z, 1e-3, "latitude slightly past the pole is clamped")
}

func TestNewGeocentricRejectsProjected(t *testing.T) {
	p := projected(t, &mockProjection{scale: 1}, domain.AxesEastNorth)
	_, err := NewGeocentric(p, geocentric(t))
	assert.ErrorIs(t, err, domain.ErrUnsupportedCRSType)

	_, err = NewGeocentric(nil, geocentric(t))
	assert.ErrorIs(t, err, domain.ErrNilArgument)
}
