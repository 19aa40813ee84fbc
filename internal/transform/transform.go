// Package transform implements the elementary transformation kinds and the
// chain that composes them.
package transform

import (
	"fmt"
	"strings"

	"github.com/jobrunner/geotrans/internal/domain"
)

// EPS11 is the tolerance used for identity checks.
const EPS11 = 1e-11

type base struct {
	id      *domain.Identifiable
	source  domain.CRS
	target  domain.CRS
	inverse bool
}

func newBase(kind string, source, target domain.CRS, id *domain.Identifiable) (base, error) {
	if source == nil || target == nil {
		return base{}, fmt.Errorf("%s transformation source and target: %w", kind, domain.ErrNilArgument)
	}
	if id == nil {
		id = generatedID(kind, source, target)
	}
	return base{id: id, source: source, target: target}, nil
}

func generatedID(kind string, source, target domain.CRS) *domain.Identifiable {
	code := fmt.Sprintf("%s_%s_%s", kind, source.Code(), target.Code())
	code = strings.ReplaceAll(code, ":", "_")
	id, _ := domain.NewIdentifiableFromCode(domain.NewCodeType(code),
		fmt.Sprintf("%s transformation from %s to %s", kind, source.Code(), target.Code()), "")
	return id
}

func (b *base) ID() *domain.Identifiable { return b.id }

func (b *base) SourceCRS() domain.CRS {
	if b.inverse {
		return b.target
	}
	return b.source
}

func (b *base) TargetCRS() domain.CRS {
	if b.inverse {
		return b.source
	}
	return b.target
}

func (b *base) IsInverse() bool { return b.inverse }

func (b *base) codes() (string, string) {
	return b.SourceCRS().Code().String(), b.TargetCRS().Code().String()
}

// Describe returns a one-line description of a transformation.
func Describe(t domain.Transformation) string {
	if t == nil {
		return "<nil>"
	}
	dir := "forward"
	if t.IsInverse() {
		dir = "inverse"
	}
	return fmt.Sprintf("%s %s -> %s (%s)", t.ImplementationName(), t.SourceCRS().Code(), t.TargetCRS().Code(), dir)
}

// Identity is a transformation that leaves all points untouched.
type Identity struct {
	base
}

// NewIdentity creates an identity transformation.
func NewIdentity(source, target domain.CRS) (*Identity, error) {
	b, err := newBase("identity", source, target, nil)
	if err != nil {
		return nil, err
	}
	return &Identity{base: b}, nil
}

// ImplementationName returns "Identity".
func (t *Identity) ImplementationName() string { return "Identity" }

// IsIdentity is always true.
func (t *Identity) IsIdentity() bool { return true }

// Inverse returns the identity with the direction toggled.
func (t *Identity) Inverse() domain.Transformation {
	c := *t
	c.inverse = !c.inverse
	return &c
}

// Transform returns the points unchanged.
func (t *Identity) Transform(points []domain.Point3) ([]domain.Point3, error) {
	return points, nil
}
