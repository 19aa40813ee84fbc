package transform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jobrunner/geotrans/internal/domain"
)

// Chain applies a sequence of transformations between explicit endpoints.
// Per-point failures of one step are collected and the remaining steps are
// still applied.
type Chain struct {
	base
	steps []domain.Transformation
}

// Concatenate composes the steps into a transformation from source to
// target. Nil and identity steps are dropped; if nothing is left an
// identity is returned.
func Concatenate(source, target domain.CRS, steps ...domain.Transformation) (domain.Transformation, error) {
	kept := make([]domain.Transformation, 0, len(steps))
	for _, s := range steps {
		if domain.IsIdentity(s) {
			continue
		}
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		return NewIdentity(source, target)
	}
	if len(kept) == 1 && kept[0].SourceCRS().Equal(source) && kept[0].TargetCRS().Equal(target) {
		return kept[0], nil
	}
	b, err := newBase("chain", source, target, nil)
	if err != nil {
		return nil, err
	}
	return &Chain{base: b, steps: kept}, nil
}

// Steps returns the steps in the order they are applied.
func (t *Chain) Steps() []domain.Transformation {
	return append([]domain.Transformation(nil), t.steps...)
}

// ImplementationName lists the step names.
func (t *Chain) ImplementationName() string {
	names := make([]string, len(t.steps))
	for i, s := range t.steps {
		names[i] = s.ImplementationName()
	}
	return "Chain[" + strings.Join(names, ", ") + "]"
}

// IsIdentity returns true if every step is an identity.
func (t *Chain) IsIdentity() bool {
	for _, s := range t.steps {
		if !s.IsIdentity() {
			return false
		}
	}
	return true
}

// Inverse returns the chain of inverted steps in reverse order.
func (t *Chain) Inverse() domain.Transformation {
	c := &Chain{base: t.base, steps: make([]domain.Transformation, len(t.steps))}
	c.inverse = !t.inverse
	for i, s := range t.steps {
		c.steps[len(t.steps)-1-i] = s.Inverse()
	}
	return c
}

// Transform applies all steps in place.
func (t *Chain) Transform(points []domain.Point3) ([]domain.Point3, error) {
	src, dst := t.codes()
	var collected *domain.TransformationError
	for _, step := range t.steps {
		out, err := step.Transform(points)
		if out != nil {
			points = out
		}
		if err == nil {
			continue
		}
		var te *domain.TransformationError
		if !errors.As(err, &te) {
			return points, &domain.TransformationError{
				Source: src,
				Target: dst,
				Errors: map[int]string{},
				Points: points,
				Err:    fmt.Errorf("%s: %w", step.ImplementationName(), err),
			}
		}
		if collected == nil {
			collected = domain.NewTransformationError(src, dst)
		}
		collected.Merge(te)
		if te.Err != nil && len(te.Errors) == 0 {
			// the whole step failed
			collected.Points = points
			return points, collected
		}
	}
	if collected != nil {
		collected.Points = points
		return points, collected
	}
	return points, nil
}
