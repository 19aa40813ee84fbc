package transform

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/jobrunner/geotrans/internal/domain"
)

// PolynomialFit is a fitted transformation that can only be applied forward.
type PolynomialFit interface {
	// Name returns a short description of the fit.
	Name() string

	// Apply transforms the points in place.
	Apply(points []domain.Point3) ([]domain.Point3, error)
}

// Direct wraps a polynomial fit between two CRS. The inverse direction is not
// supported: it is logged and the forward fit is applied.
type Direct struct {
	base
	fit    PolynomialFit
	logger *slog.Logger
}

// NewDirect creates a direct transformation.
func NewDirect(source, target domain.CRS, fit PolynomialFit, logger *slog.Logger) (*Direct, error) {
	if fit == nil {
		return nil, fmt.Errorf("direct transformation fit: %w", domain.ErrNilArgument)
	}
	if logger == nil {
		logger = slog.Default()
	}
	b, err := newBase("direct", source, target, nil)
	if err != nil {
		return nil, err
	}
	return &Direct{base: b, fit: fit, logger: logger}, nil
}

// ImplementationName returns the fit name.
func (t *Direct) ImplementationName() string { return "Direct(" + t.fit.Name() + ")" }

// IsIdentity is always false.
func (t *Direct) IsIdentity() bool { return false }

// Inverse returns the transformation flagged as inverse.
func (t *Direct) Inverse() domain.Transformation {
	c := *t
	c.inverse = !c.inverse
	return &c
}

// Transform applies the fit.
func (t *Direct) Transform(points []domain.Point3) ([]domain.Point3, error) {
	if t.inverse {
		t.logger.Warn("inverse of a polynomial transformation is not supported, applying forward fit",
			"transformation", t.id.Code().String(),
			"fit", t.fit.Name(),
		)
	}
	return t.fit.Apply(points)
}

// Polynomial is a least-squares polynomial fit of x and y. Inputs are
// normalized around the centroid of the passpoints.
type Polynomial struct {
	order    int
	offX     float64
	offY     float64
	scale    float64
	coeffX   []float64
	coeffY   []float64
	residual float64
}

// FitPolynomial fits a polynomial of the given order mapping source onto
// target passpoints.
func FitPolynomial(order int, source, target []domain.Point3) (*Polynomial, error) {
	if order < 1 {
		return nil, fmt.Errorf("polynomial order %d: %w", order, domain.ErrInvalidInput)
	}
	if len(source) != len(target) {
		return nil, fmt.Errorf("%d source but %d target passpoints: %w", len(source), len(target), domain.ErrInvalidInput)
	}
	nTerms := (order + 1) * (order + 2) / 2
	if len(source) < nTerms {
		return nil, fmt.Errorf("order %d needs at least %d passpoints, got %d: %w",
			order, nTerms, len(source), domain.ErrInvalidInput)
	}

	p := &Polynomial{order: order}
	p.normalize(source)

	a := mat.NewDense(len(source), nTerms, nil)
	bx := mat.NewDense(len(source), 1, nil)
	by := mat.NewDense(len(source), 1, nil)
	row := make([]float64, nTerms)
	for i, s := range source {
		p.terms((s.X-p.offX)/p.scale, (s.Y-p.offY)/p.scale, row)
		a.SetRow(i, row)
		bx.Set(i, 0, target[i].X)
		by.Set(i, 0, target[i].Y)
	}

	var cx, cy mat.Dense
	if err := cx.Solve(a, bx); err != nil {
		return nil, fmt.Errorf("solving x coefficients: %w", err)
	}
	if err := cy.Solve(a, by); err != nil {
		return nil, fmt.Errorf("solving y coefficients: %w", err)
	}
	p.coeffX = mat.Col(nil, 0, &cx)
	p.coeffY = mat.Col(nil, 0, &cy)

	fitted := domain.ClonePoints(source)
	if _, err := p.Apply(fitted); err != nil {
		return nil, err
	}
	for i := range fitted {
		p.residual = math.Max(p.residual, math.Hypot(fitted[i].X-target[i].X, fitted[i].Y-target[i].Y))
	}
	return p, nil
}

func (p *Polynomial) normalize(points []domain.Point3) {
	var sumX, sumY float64
	for _, s := range points {
		sumX += s.X
		sumY += s.Y
	}
	n := float64(len(points))
	p.offX, p.offY = sumX/n, sumY/n
	p.scale = 0
	for _, s := range points {
		p.scale = math.Max(p.scale, math.Max(math.Abs(s.X-p.offX), math.Abs(s.Y-p.offY)))
	}
	if p.scale == 0 {
		p.scale = 1
	}
}

// terms fills x^i*y^j for i+j <= order.
func (p *Polynomial) terms(x, y float64, out []float64) {
	k := 0
	for i := 0; i <= p.order; i++ {
		for j := 0; j <= p.order-i; j++ {
			out[k] = math.Pow(x, float64(i)) * math.Pow(y, float64(j))
			k++
		}
	}
}

// Name returns e.g. "polynomial(2)".
func (p *Polynomial) Name() string { return fmt.Sprintf("polynomial(%d)", p.order) }

// Order returns the polynomial order.
func (p *Polynomial) Order() int { return p.order }

// MaxResidual returns the largest passpoint residual of the fit.
func (p *Polynomial) MaxResidual() float64 { return p.residual }

// Apply transforms x and y in place. Z is left untouched.
func (p *Polynomial) Apply(points []domain.Point3) ([]domain.Point3, error) {
	row := make([]float64, len(p.coeffX))
	for i := range points {
		pt := &points[i]
		p.terms((pt.X-p.offX)/p.scale, (pt.Y-p.offY)/p.scale, row)
		var x, y float64
		for k, t := range row {
			x += p.coeffX[k] * t
			y += p.coeffY[k] * t
		}
		pt.X, pt.Y = x, y
	}
	return points, nil
}
