package transform

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/jobrunner/geotrans/internal/domain"
)

// Matrix applies a homogeneous (n+1)x(m+1) matrix to the points, including
// the division by the last (w) component.
type Matrix struct {
	base
	matrix        *mat.Dense
	inverseMatrix *mat.Dense
	identity      bool
	name          string
}

// NewMatrix wraps a general matrix. The inverse is precomputed for square,
// non-singular matrices.
func NewMatrix(source, target domain.CRS, m *mat.Dense, name string) (*Matrix, error) {
	if m == nil {
		return nil, fmt.Errorf("matrix transformation: %w", domain.ErrNilArgument)
	}
	rows, cols := m.Dims()
	if rows < 2 || cols < 2 {
		return nil, fmt.Errorf("matrix of %dx%d is too small: %w", rows, cols, domain.ErrInvalidInput)
	}
	b, err := newBase("matrix", source, target, nil)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = "Matrix"
	}
	t := &Matrix{base: b, matrix: mat.DenseCopyOf(m), name: name}
	if rows == cols {
		var inv mat.Dense
		if err := inv.Inverse(m); err == nil {
			t.inverseMatrix = &inv
		}
	}
	t.identity = isIdentityMatrix(t.matrix)
	return t, nil
}

// NewAffine wraps a square matrix and fails for any other shape.
func NewAffine(source, target domain.CRS, m *mat.Dense, name string) (*Matrix, error) {
	if m == nil {
		return nil, fmt.Errorf("affine transformation: %w", domain.ErrNilArgument)
	}
	if rows, cols := m.Dims(); rows != cols {
		return nil, fmt.Errorf("%dx%d: %w", rows, cols, domain.ErrNonAffineMatrix)
	}
	return NewMatrix(source, target, m, name)
}

// ImplementationName returns the configured name.
func (t *Matrix) ImplementationName() string { return t.name }

// IsIdentity returns true for a square identity matrix.
func (t *Matrix) IsIdentity() bool { return t.identity }

// Inverse returns the transformation using the inverse matrix.
func (t *Matrix) Inverse() domain.Transformation {
	c := *t
	c.inverse = !c.inverse
	return &c
}

// Matrix returns a copy of the matrix applied in the current direction, nil
// if the inverse direction has no inverse matrix.
func (t *Matrix) Matrix() *mat.Dense {
	m := t.active()
	if m == nil {
		return nil
	}
	return mat.DenseCopyOf(m)
}

func (t *Matrix) active() *mat.Dense {
	if t.inverse {
		return t.inverseMatrix
	}
	return t.matrix
}

// Transform applies the matrix to all points in place.
func (t *Matrix) Transform(points []domain.Point3) ([]domain.Point3, error) {
	m := t.active()
	if m == nil {
		src, dst := t.codes()
		te := domain.NewTransformationError(src, dst)
		te.Err = domain.ErrSingularMatrix
		te.Points = points
		return points, te
	}
	rows, cols := m.Dims()
	switch {
	case rows == 3 && cols == 3:
		for i := range points {
			apply3x3(m, &points[i])
		}
	case rows == 4 && cols == 4:
		for i := range points {
			apply4x4(m, &points[i])
		}
	default:
		applyGeneral(m, points)
	}
	return points, nil
}

// apply3x3 applies a 2-D matrix. Z is a height carried along by a 2-D
// CRS and never enters the homogeneous vector.
func apply3x3(m *mat.Dense, p *domain.Point3) {
	x, y := p.X, p.Y
	w := m.At(2, 0)*x + m.At(2, 1)*y + m.At(2, 2)
	p.X = (m.At(0, 0)*x + m.At(0, 1)*y + m.At(0, 2)) / w
	p.Y = (m.At(1, 0)*x + m.At(1, 1)*y + m.At(1, 2)) / w
}

func apply4x4(m *mat.Dense, p *domain.Point3) {
	hasZ := p.HasZ()
	x, y, z := p.X, p.Y, p.Z
	if !hasZ {
		z = 1
	}
	w := m.At(3, 0)*x + m.At(3, 1)*y + m.At(3, 2)*z + m.At(3, 3)
	p.X = (m.At(0, 0)*x + m.At(0, 1)*y + m.At(0, 2)*z + m.At(0, 3)) / w
	p.Y = (m.At(1, 0)*x + m.At(1, 1)*y + m.At(1, 2)*z + m.At(1, 3)) / w
	if hasZ {
		p.Z = (m.At(2, 0)*x + m.At(2, 1)*y + m.At(2, 2)*z + m.At(2, 3)) / w
	} else {
		p.Z = math.NaN()
	}
}

func applyGeneral(m *mat.Dense, points []domain.Point3) {
	rows, cols := m.Dims()
	inDim, outDim := cols-1, rows-1
	src := mat.NewVecDense(cols, nil)
	dst := mat.NewVecDense(rows, nil)

	for i := range points {
		p := &points[i]
		hasZ := p.HasZ()
		for k := 0; k < inDim; k++ {
			v := 0.0
			if k < 3 {
				v = p.Get(k)
			}
			if k == 2 && !hasZ {
				v = 1
			}
			src.SetVec(k, v)
		}
		src.SetVec(inDim, 1)

		dst.MulVec(m, src)
		w := dst.AtVec(outDim)
		for k := 0; k < outDim && k < 3; k++ {
			p.Set(k, dst.AtVec(k)/w)
		}
		switch {
		case outDim == 2 && inDim >= 3:
			// height dropped
			p.Z = math.NaN()
		case outDim >= 3 && inDim >= 3 && !hasZ:
			p.Z = math.NaN()
		}
	}
}

func isIdentityMatrix(m *mat.Dense) bool {
	rows, cols := m.Dims()
	if rows != cols {
		return false
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			want := 0.0
			if r == c {
				want = 1
			}
			if math.Abs(m.At(r, c)-want) > EPS11 {
				return false
			}
		}
	}
	return true
}

// AxisAlignMatrix builds the matrix reordering (and negating) the axes of
// source into the axis order of target, based on orientations only.
// It returns nil if no reordering is needed.
func AxisAlignMatrix(source, target domain.CRS) *mat.Dense {
	srcAxes, dstAxes := source.Axes(), target.Axes()
	n, m := len(srcAxes), len(dstAxes)
	result := mat.NewDense(m+1, n+1, nil)
	for j, dst := range dstAxes {
		matched := false
		for i, src := range srcAxes {
			if src.Orientation == dst.Orientation && dst.Orientation != domain.OrientationOther {
				result.Set(j, i, 1)
				matched = true
				break
			}
			if src.Orientation.Opposite() == dst.Orientation && dst.Orientation != domain.OrientationOther {
				result.Set(j, i, -1)
				matched = true
				break
			}
		}
		if !matched && j < n {
			result.Set(j, j, 1)
		}
	}
	result.Set(m, n, 1)
	if isIdentityMatrix(result) {
		return nil
	}
	return result
}

// ScaleMatrix returns a diagonal homogeneous matrix with the given factors,
// nil if all factors are 1.
func ScaleMatrix(factors []float64) *mat.Dense {
	n := len(factors)
	result := mat.NewDense(n+1, n+1, nil)
	for i, f := range factors {
		result.Set(i, i, f)
	}
	result.Set(n, n, 1)
	if isIdentityMatrix(result) {
		return nil
	}
	return result
}

// TranslateMatrix returns a homogeneous matrix adding offsets to the
// ordinates, nil if all offsets are 0.
func TranslateMatrix(offsets []float64) *mat.Dense {
	n := len(offsets)
	result := mat.NewDense(n+1, n+1, nil)
	for i := 0; i <= n; i++ {
		result.Set(i, i, 1)
	}
	for i, o := range offsets {
		result.Set(i, n, o)
	}
	if isIdentityMatrix(result) {
		return nil
	}
	return result
}

// MulMatrices returns second*first, treating nil as identity.
func MulMatrices(first, second *mat.Dense) *mat.Dense {
	switch {
	case first == nil:
		return second
	case second == nil:
		return first
	}
	var result mat.Dense
	result.Mul(second, first)
	return &result
}
