package application

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobrunner/geotrans/internal/domain"
)

func newTransformer(t *testing.T, r *countingRegistry, target string) *CoordinateTransformer {
	t.Helper()
	tr, err := NewCoordinateTransformer(r.mustLookup(t, target), r, nil, quietLogger())
	require.NoError(t, err)
	return tr
}

func TestNewCoordinateTransformer(t *testing.T) {
	r := newCountingRegistry(t)

	_, err := NewCoordinateTransformer(nil, r, nil, nil)
	assert.ErrorIs(t, err, domain.ErrNilArgument)

	_, err = NewCoordinateTransformer(r.WGS84(), nil, nil, nil)
	assert.ErrorIs(t, err, domain.ErrNilArgument)

	tr, err := NewCoordinateTransformer(r.WGS84(), r, nil, nil)
	require.NoError(t, err)
	assert.Same(t, r.WGS84(), tr.Target())
}

func TestCoordinateTransformerCacheCoherence(t *testing.T) {
	tests := []struct {
		name    string
		sources []string
		builds  map[string]int
	}{
		{
			name:    "alternating sources rebuild",
			sources: []string{"EPSG:4326", "EPSG:31467", "EPSG:4326"},
			builds:  map[string]int{"EPSG:4326>EPSG:25832": 2, "EPSG:31467>EPSG:25832": 1},
		},
		{
			name:    "repeated source hits cache",
			sources: []string{"EPSG:4326", "EPSG:4326", "EPSG:31467", "EPSG:4326"},
			builds:  map[string]int{"EPSG:4326>EPSG:25832": 2, "EPSG:31467>EPSG:25832": 1},
		},
		{
			name:    "single source",
			sources: []string{"EPSG:4258", "EPSG:4258", "EPSG:4258"},
			builds:  map[string]int{"EPSG:4258>EPSG:25832": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newCountingRegistry(t)
			tr := newTransformer(t, r, "EPSG:25832")
			points := map[string]domain.Point3{
				"EPSG:4326":  domain.NewPoint2(9, 50),
				"EPSG:4258":  domain.NewPoint2(9, 50),
				"EPSG:31467": domain.NewPoint2(3500000, 5540000),
			}

			for _, code := range tt.sources {
				out, err := tr.Transform(r.mustLookup(t, code), []domain.Point3{points[code]})
				require.NoError(t, err)
				require.Len(t, out, 1)
				assert.InDelta(t, 500000, out[0].X, 2000, code)
			}
			for key, want := range tt.builds {
				assert.Equal(t, want, r.count(key), key)
			}
		})
	}
}

func TestCoordinateTransformerDoesNotMutateInput(t *testing.T) {
	r := newCountingRegistry(t)
	tr := newTransformer(t, r, "EPSG:32632")

	in := []domain.Point3{domain.NewPoint2(9, 50), domain.NewPoint2(10, 51)}
	out, err := tr.Transform(r.WGS84(), in)
	require.NoError(t, err)

	assert.Equal(t, 9.0, in[0].X)
	assert.Equal(t, 50.0, in[0].Y)
	assert.InDelta(t, 500000, out[0].X, 0.01)
	assert.InDelta(t, 5538630.70, out[0].Y, 0.5)
}

func TestCoordinateTransformerIdentity(t *testing.T) {
	r := newCountingRegistry(t)
	tr := newTransformer(t, r, "EPSG:4326")

	for _, code := range []string{"EPSG:4326", "CRS:84"} {
		t.Run(code, func(t *testing.T) {
			in := []domain.Point3{domain.NewPoint3(8.3, 50.1, 12), domain.NewPoint2(-70, -33)}
			out, err := tr.Transform(r.mustLookup(t, code), in)
			require.NoError(t, err)
			require.Len(t, out, 2)
			assert.Equal(t, in[0], out[0])
			assert.Equal(t, in[1].X, out[1].X)
			assert.Equal(t, in[1].Y, out[1].Y)

			out[0].X = 0
			assert.Equal(t, 8.3, in[0].X, "identity result is a copy")
		})
	}
}

func TestCoordinateTransformerEmpty(t *testing.T) {
	r := newCountingRegistry(t)
	tr := newTransformer(t, r, "EPSG:25832")

	out, err := tr.Transform(r.WGS84(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = tr.Transform(nil, []domain.Point3{domain.NewPoint2(1, 2)})
	assert.ErrorIs(t, err, domain.ErrNilArgument)
}

func TestCoordinateTransformerPartialFailure(t *testing.T) {
	r := newCountingRegistry(t)
	var logs bytes.Buffer
	tr, err := NewCoordinateTransformer(r.mustLookup(t, "EPSG:32632"), r, nil, bufferLogger(&logs))
	require.NoError(t, err)

	in := []domain.Point3{
		domain.NewPoint2(9, 50),
		domain.NewPoint2(10, 51),
		domain.NewPoint2(100, 50),
		domain.NewPoint2(8, 49),
	}
	out, err := tr.Transform(r.WGS84(), in)

	var te *domain.TransformationError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Equal(t, []int{2}, te.FailedIndexes())
	assert.ErrorIs(t, err, domain.ErrInvalidCoordinate)

	require.Len(t, out, len(in))
	assert.Equal(t, in[2], out[2], "failed point keeps its input")
	assert.InDelta(t, 500000, out[0].X, 0.01)
	assert.Greater(t, out[1].X, 500000.0)
	assert.Less(t, out[3].X, 500000.0)

	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "failed=1")
}

func TestCoordinateTransformerStubbedFailures(t *testing.T) {
	r := newCountingRegistry(t)
	source, target := r.WGS84(), r.mustLookup(t, "EPSG:4258")

	t.Run("per point", func(t *testing.T) {
		stub := &stubRegistry{CRSRegistry: r, transformation: &shiftTransformation{
			source: source, target: target, fail: map[int]bool{1: true, 3: true},
		}}
		tr, err := NewCoordinateTransformer(target, stub, nil, quietLogger())
		require.NoError(t, err)

		in := make([]domain.Point3, 5)
		for i := range in {
			in[i] = domain.NewPoint3(float64(i), float64(i), 0)
		}
		out, err := tr.Transform(source, in)

		var te *domain.TransformationError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, []int{1, 3}, te.FailedIndexes())
		require.Len(t, out, 5)
		assert.Equal(t, 1000.0, out[0].X)
		assert.Equal(t, 1.0, out[1].X)
		assert.Equal(t, 1004.0, out[4].X)
		assert.Equal(t, 0.0, out[4].Z, "2-D ends pass heights through")
	})

	t.Run("whole chain", func(t *testing.T) {
		boom := errors.New("boom")
		stub := &stubRegistry{CRSRegistry: r, transformation: &shiftTransformation{
			source: source, target: target, whole: boom,
		}}
		tr, err := NewCoordinateTransformer(target, stub, nil, quietLogger())
		require.NoError(t, err)

		out, err := tr.Transform(source, []domain.Point3{domain.NewPoint2(1, 2)})
		assert.Nil(t, out)
		assert.ErrorIs(t, err, boom)
	})
}

func TestCoordinateTransformerHeights(t *testing.T) {
	r := newCountingRegistry(t)
	in := []domain.Point3{domain.NewPoint3(9.432778, 47.851111, 870.6)}

	t.Run("2-D ends pass z through", func(t *testing.T) {
		tr := newTransformer(t, r, "EPSG:31467")
		out, err := tr.Transform(r.WGS84(), in)
		require.NoError(t, err)
		assert.InDelta(t, 3532465.56, out[0].X, 1)
		assert.InDelta(t, 5301523.48, out[0].Y, 1)
		assert.Equal(t, 870.6, out[0].Z)
	})

	t.Run("3-D ends transform heights", func(t *testing.T) {
		tr := newTransformer(t, r, "EPSG:31467+h")
		out, err := tr.Transform(r.mustLookup(t, "EPSG:4326+h"), in)
		require.NoError(t, err)
		assert.InDelta(t, 817.20, out[0].Z, 1)
	})
}

func TestCoordinateTransformerGeocentricPoint(t *testing.T) {
	r := newCountingRegistry(t)
	tr := newTransformer(t, r, "EPSG:4978")
	source := r.mustLookup(t, "EPSG:4979")

	p, err := tr.TransformPoint(source, domain.NewPoint3(8.3, 50.1, 0))
	require.NoError(t, err)
	assert.InDelta(t, 4056399.82, p.X, 0.05)
	assert.InDelta(t, 591764.74, p.Y, 0.05)
	assert.InDelta(t, 4869931.33, p.Z, 0.05)

	back, err := NewCoordinateTransformer(source, r, nil, quietLogger())
	require.NoError(t, err)
	q, err := back.TransformPoint(tr.Target(), p)
	require.NoError(t, err)
	assert.InDelta(t, 8.3, q.X, 1e-6)
	assert.InDelta(t, 50.1, q.Y, 1e-6)
	assert.InDelta(t, 0, q.Z, 6e-3)
}

func TestCoordinateTransformerRaw(t *testing.T) {
	r := newCountingRegistry(t)

	t.Run("2-D to 2-D", func(t *testing.T) {
		tr := newTransformer(t, r, "EPSG:32632")
		out, err := tr.TransformRaw(r.WGS84(), []float64{9, 50, 10, 51}, nil)
		require.NoError(t, err)
		require.Len(t, out, 4)
		assert.InDelta(t, 500000, out[0], 0.01)
		assert.InDelta(t, 5538630.70, out[1], 0.5)
	})

	t.Run("2-D to 3-D reuses buffer", func(t *testing.T) {
		tr := newTransformer(t, r, "EPSG:4978")
		buf := make([]float64, 3)
		out, err := tr.TransformRaw(r.WGS84(), []float64{8.3, 50.1}, buf)
		require.NoError(t, err)
		assert.Same(t, &buf[0], &out[0])
		assert.InDelta(t, 4869931.33, out[2], 0.05)
	})

	t.Run("partial failure", func(t *testing.T) {
		tr := newTransformer(t, r, "EPSG:32632")
		out, err := tr.TransformRaw(r.WGS84(), []float64{9, 50, 100, 50}, nil)
		var te *domain.TransformationError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, []float64{100, 50}, out[2:])
	})

	t.Run("invalid length", func(t *testing.T) {
		tr := newTransformer(t, r, "EPSG:32632")
		_, err := tr.TransformRaw(r.WGS84(), []float64{9, 50, 10}, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestCoordinateTransformerConcurrent(t *testing.T) {
	r := newCountingRegistry(t)
	tr := newTransformer(t, r, "EPSG:25832")
	sources := []domain.CRS{r.WGS84(), r.mustLookup(t, "EPSG:4258")}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := range 64 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := tr.Transform(sources[i%2], []domain.Point3{domain.NewPoint2(9, 50)})
			if err != nil {
				errs <- err
				return
			}
			if math.Abs(out[0].X-500000) > 1 {
				errs <- errors.New("unexpected easting")
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	var msgs []string
	for err := range errs {
		msgs = append(msgs, err.Error())
	}
	assert.Empty(t, msgs, strings.Join(msgs, "; "))
}
