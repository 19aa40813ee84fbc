package transform

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/jobrunner/geotrans/internal/domain"
)

const arcSecToRad = math.Pi / (180 * 3600)

// HelmertMatrix returns the 4x4 position vector matrix shifting geocentric
// coordinates of the datum to WGS84. A nil shift gives the identity.
func HelmertMatrix(bw *domain.BursaWolf) *mat.Dense {
	if bw.IsIdentity() {
		return mat.NewDense(4, 4, []float64{
			1, 0, 0, 0,
			0, 1, 0, 0,
			0, 0, 1, 0,
			0, 0, 0, 1,
		})
	}
	s := 1 + bw.PPM*1e-6
	ex, ey, ez := bw.Ex*arcSecToRad, bw.Ey*arcSecToRad, bw.Ez*arcSecToRad
	return mat.NewDense(4, 4, []float64{
		s, -ez * s, ey * s, bw.Dx,
		ez * s, s, -ex * s, bw.Dy,
		-ey * s, ex * s, s, bw.Dz,
		0, 0, 0, 1,
	})
}

// HelmertPivot returns the matrix shifting geocentric coordinates of the
// source datum to the target datum through WGS84, nil if both shifts are
// equal.
func HelmertPivot(source, target *domain.BursaWolf) (*mat.Dense, error) {
	if source.Equal(target) {
		return nil, nil
	}
	toWGS84 := HelmertMatrix(source)
	if target.IsIdentity() {
		return toWGS84, nil
	}
	var fromWGS84 mat.Dense
	if err := fromWGS84.Inverse(HelmertMatrix(target)); err != nil {
		return nil, fmt.Errorf("inverting helmert shift: %w", domain.ErrSingularMatrix)
	}
	if source.IsIdentity() {
		return &fromWGS84, nil
	}
	var result mat.Dense
	result.Mul(&fromWGS84, toWGS84)
	return &result, nil
}
