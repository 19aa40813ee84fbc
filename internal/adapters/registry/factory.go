package registry

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/jobrunner/geotrans/internal/domain"
	"github.com/jobrunner/geotrans/internal/transform"
)

// Factory builds transformation chains between two CRS. Chains operate on
// standard values internally (radians for angles, metres for lengths,
// Greenwich longitudes); unit conversion happens at both chain ends.
type Factory struct {
	logger *slog.Logger
}

// NewFactory creates a transformation factory.
func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// Create returns the transformation from source to target. A preferred
// transformation with matching (or swapped) endpoints takes precedence
// over the ones defined on the CRS and the generated chain.
func (f *Factory) Create(source, target domain.CRS, preferred []domain.Transformation) (domain.Transformation, error) {
	if source == nil || target == nil {
		return nil, fmt.Errorf("transformation endpoints: %w", domain.ErrNilArgument)
	}
	if source.Equal(target) {
		f.logger.Debug("source and target crs are equal, using identity",
			"source", source.Code().String(), "target", target.Code().String())
		return transform.NewIdentity(source, target)
	}
	if t := matchPreferred(source, target, preferred); t != nil {
		return t, nil
	}
	if source.EqualWithFlippedAxis(target) {
		m := transform.AxisAlignMatrix(source, target)
		if m == nil {
			return transform.NewIdentity(source, target)
		}
		return transform.NewMatrix(source, target, m, "Axis flip")
	}
	if source.HasDirectTransformation(target) {
		return source.DirectTransformation(target), nil
	}
	if target.HasDirectTransformation(source) {
		return target.DirectTransformation(source).Inverse(), nil
	}

	steps, err := f.steps(source, target)
	if err != nil {
		return nil, fmt.Errorf("%s (%s) to %s (%s): %w",
			source.Code(), source.Type(), target.Code(), target.Type(), err)
	}
	chain, err := transform.Concatenate(source, target, steps...)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("created transformation", "chain", transform.Describe(chain))
	return chain, nil
}

func matchPreferred(source, target domain.CRS, preferred []domain.Transformation) domain.Transformation {
	for _, t := range preferred {
		if t == nil {
			continue
		}
		if t.SourceCRS().Equal(source) && t.TargetCRS().Equal(target) {
			return t
		}
	}
	for _, t := range preferred {
		if t == nil {
			continue
		}
		if t.SourceCRS().Equal(target) && t.TargetCRS().Equal(source) {
			return t.Inverse()
		}
	}
	return nil
}

func (f *Factory) steps(source, target domain.CRS) ([]domain.Transformation, error) {
	if source.Type() == domain.CRSVertical || target.Type() == domain.CRSVertical {
		return nil, domain.ErrNoTransformation
	}
	if sp, ok := source.(*domain.ProjectedCRS); ok {
		if tp, ok := target.(*domain.ProjectedCRS); ok &&
			sp.Projection().Equal(tp.Projection()) && sp.Geographic().Equal(tp.Geographic()) {
			return f.single(source, target, transform.AxisAlignMatrix(source, target), "Axis alignment")
		}
	}

	var steps []domain.Transformation
	add := func(t domain.Transformation, err error) error {
		if err != nil {
			return err
		}
		steps = append(steps, t)
		return nil
	}

	if err := add(toStandard(source)); err != nil {
		return nil, err
	}
	srcGeo, enter, err := f.horizontal(source)
	if err != nil {
		return nil, err
	}
	tgtGeo, exit, err := f.horizontal(target)
	if err != nil {
		return nil, err
	}
	steps = append(steps, enter...)
	geodetic, err := f.geodetic(srcGeo, tgtGeo)
	if err != nil {
		return nil, err
	}
	steps = append(steps, geodetic...)
	steps = append(steps, invert(exit)...)
	if err := add(fromStandard(target)); err != nil {
		return nil, err
	}
	return mergeMatrices(steps)
}

// mergeMatrices multiplies adjacent matrix steps into one, so that unit
// conversions cancelling out leave no step behind.
func mergeMatrices(steps []domain.Transformation) ([]domain.Transformation, error) {
	out := make([]domain.Transformation, 0, len(steps))
	for _, s := range steps {
		if s == nil {
			continue
		}
		if n := len(out); n > 0 {
			prev, okPrev := out[n-1].(*transform.Matrix)
			cur, okCur := s.(*transform.Matrix)
			if okPrev && okCur {
				first, second := prev.Matrix(), cur.Matrix()
				if first != nil && second != nil {
					rows, _ := first.Dims()
					if _, cols := second.Dims(); cols == rows {
						m, err := transform.NewMatrix(prev.SourceCRS(), cur.TargetCRS(),
							transform.MulMatrices(first, second), prev.ImplementationName()+", "+cur.ImplementationName())
						if err != nil {
							return nil, err
						}
						out[n-1] = m
						continue
					}
				}
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *Factory) single(source, target domain.CRS, m *mat.Dense, name string) ([]domain.Transformation, error) {
	if m == nil {
		return nil, nil
	}
	t, err := transform.NewMatrix(source, target, m, name)
	if err != nil {
		return nil, err
	}
	return []domain.Transformation{t}, nil
}

// horizontal returns the geographic (or geocentric) base of c and the steps
// converting standard values of c into standard values of that base.
func (f *Factory) horizontal(c domain.CRS) (domain.CRS, []domain.Transformation, error) {
	switch v := c.(type) {
	case *domain.GeographicCRS, *domain.GeocentricCRS:
		return c, nil, nil
	case *domain.ProjectedCRS:
		p, err := transform.NewProjection(v, f.logger)
		if err != nil {
			return nil, nil, err
		}
		return v.Geographic(), []domain.Transformation{p.Inverse()}, nil
	case *domain.CompoundCRS:
		base, steps, err := f.horizontal(v.Underlying())
		if err != nil {
			return nil, nil, err
		}
		if base.Type() == domain.CRSGeocentric {
			return base, steps, nil
		}
		if base == v.Underlying() {
			return c, steps, nil
		}
		withHeight, err := domain.NewCompoundCRS(v.ID(), base, v.HeightAxis(), v.DefaultHeight())
		if err != nil {
			return nil, nil, err
		}
		return withHeight, steps, nil
	}
	return nil, nil, domain.ErrUnsupportedCRSType
}

// geodetic connects two geographic or geocentric CRS, shifting the datum
// through geocentric coordinates when needed.
func (f *Factory) geodetic(source, target domain.CRS) ([]domain.Transformation, error) {
	srcDatum, tgtDatum := source.GeodeticDatum(), target.GeodeticDatum()
	if srcDatum == nil || tgtDatum == nil {
		return nil, fmt.Errorf("geodetic datum: %w", domain.ErrUnsupportedCRSType)
	}
	srcGeocentric := source.Type() == domain.CRSGeocentric
	tgtGeocentric := target.Type() == domain.CRSGeocentric
	if !srcGeocentric && !tgtGeocentric && !srcDatum.NeedsShift(tgtDatum) {
		return f.align(source, target)
	}

	var steps []domain.Transformation
	srcCentric, ok := source.(*domain.GeocentricCRS)
	if !ok {
		lonLat, align, err := f.toLonLat(source)
		if err != nil {
			return nil, err
		}
		srcCentric, err = geocentricOf(srcDatum)
		if err != nil {
			return nil, err
		}
		g, err := transform.NewGeocentric(lonLat, srcCentric)
		if err != nil {
			return nil, err
		}
		steps = append(steps, align...)
		steps = append(steps, g)
	}

	tgtCentric, ok := target.(*domain.GeocentricCRS)
	if !ok {
		var err error
		tgtCentric, err = geocentricOf(tgtDatum)
		if err != nil {
			return nil, err
		}
	}
	if m, err := transform.HelmertPivot(srcDatum.ToWGS84(), tgtDatum.ToWGS84()); err != nil {
		return nil, err
	} else if m != nil {
		h, err := transform.NewAffine(srcCentric, tgtCentric, m, "Helmert")
		if err != nil {
			return nil, err
		}
		steps = append(steps, h)
	}

	if !tgtGeocentric {
		lonLat, align, err := f.toLonLat(target)
		if err != nil {
			return nil, err
		}
		g, err := transform.NewGeocentric(lonLat, tgtCentric)
		if err != nil {
			return nil, err
		}
		steps = append(steps, g.Inverse())
		steps = append(steps, invert(align)...)
	}
	return steps, nil
}

// align reorders axes between two CRS sharing a datum. A missing target
// height is filled with the default height of a compound target.
func (f *Factory) align(source, target domain.CRS) ([]domain.Transformation, error) {
	m := transform.AxisAlignMatrix(source, target)
	if m != nil && source.Dimension() < 3 {
		if c, ok := target.(*domain.CompoundCRS); ok {
			rows, cols := m.Dims()
			m.Set(rows-2, cols-1, c.DefaultHeight())
		}
	}
	return f.single(source, target, m, "Axis alignment")
}

// toLonLat returns a lon/lat(/height) variant of a geographic or compound
// CRS and the steps reordering c into it.
func (f *Factory) toLonLat(c domain.CRS) (domain.CRS, []domain.Transformation, error) {
	if c.Easting() == 0 && c.Northing() == 1 {
		return c, nil, nil
	}
	var lonLat domain.CRS
	switch v := c.(type) {
	case *domain.GeographicCRS:
		axes := domain.AxesLonLat
		if v.Dimension() >= 3 {
			axes = domain.AxesLonLatHeight
		}
		g, err := domain.NewGeographicCRS(v.ID(), v.GeodeticDatum(), axes)
		if err != nil {
			return nil, nil, err
		}
		lonLat = g
	case *domain.CompoundCRS:
		u, _, err := f.toLonLat(v.Underlying())
		if err != nil {
			return nil, nil, err
		}
		cc, err := domain.NewCompoundCRS(v.ID(), u, v.HeightAxis(), v.DefaultHeight())
		if err != nil {
			return nil, nil, err
		}
		lonLat = cc
	default:
		return nil, nil, domain.ErrUnsupportedCRSType
	}
	steps, err := f.single(c, lonLat, transform.AxisAlignMatrix(c, lonLat), "Axis alignment")
	return lonLat, steps, err
}

func geocentricOf(d *domain.GeodeticDatum) (*domain.GeocentricCRS, error) {
	id, err := domain.NewIdentifiableFromCode(
		domain.NewCodeTypeIn("geocentric-"+d.ID().Code().Code(), d.ID().Code().CodeSpace()),
		"geocentric "+d.ID().Name(), "")
	if err != nil {
		return nil, err
	}
	return domain.NewGeocentricCRS(id, d, domain.AxesGeocentric)
}

// toStandard converts the units of c into radians and metres and adds the
// prime meridian to the longitude.
func toStandard(c domain.CRS) (domain.Transformation, error) {
	m := standardMatrix(c)
	if m == nil {
		return nil, nil
	}
	return transform.NewAffine(c, c, m, "Standard units")
}

func fromStandard(c domain.CRS) (domain.Transformation, error) {
	t, err := toStandard(c)
	if t == nil || err != nil {
		return nil, err
	}
	return t.Inverse(), nil
}

func standardMatrix(c domain.CRS) *mat.Dense {
	units := c.Units()
	factors := make([]float64, len(units))
	for i, u := range units {
		factors[i] = u.ToBase
		if factors[i] == 0 {
			factors[i] = 1
		}
	}
	m := transform.ScaleMatrix(factors)
	if c.Type() != domain.CRSGeographic && c.Type() != domain.CRSCompound {
		return m
	}
	if c.Type() == domain.CRSCompound && c.(*domain.CompoundCRS).Underlying().Type() != domain.CRSGeographic {
		return m
	}
	if gd := c.GeodeticDatum(); gd != nil && gd.PrimeMeridian() != 0 {
		offsets := make([]float64, len(units))
		offsets[c.Easting()] = gd.PrimeMeridian() * math.Pi / 180
		m = transform.MulMatrices(m, transform.TranslateMatrix(offsets))
	}
	return m
}

// invert returns the inverse steps in reverse order.
func invert(steps []domain.Transformation) []domain.Transformation {
	out := make([]domain.Transformation, 0, len(steps))
	for _, s := range slices.Backward(steps) {
		out = append(out, s.Inverse())
	}
	return out
}
