package domain

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// DomainPointsPerSide is the number of interior samples per bbox edge.
const DomainPointsPerSide = 5

// validDomainOf computes the domain of validity of self once and caches it.
// Failures are not cached, a later call retries.
func (b *baseCRS) validDomainOf(self CRS, s DomainSampler) (BBox, error) {
	b.domainMu.Lock()
	defer b.domainMu.Unlock()

	if b.validDomain != nil {
		return *b.validDomain, nil
	}
	if s == nil {
		return BBox{}, fmt.Errorf("valid domain of %s: sampler: %w", self.Code(), ErrNilArgument)
	}

	wgs84 := s.WGS84()
	if wgs84 == nil {
		return BBox{}, fmt.Errorf("valid domain of %s: wgs84: %w", self.Code(), ErrNilArgument)
	}
	samples := SampleBoundary(self.AreaOfUseBBox(), DomainPointsPerSide, wgs84.Easting() != 0)

	out, err := s.Reproject(wgs84, self, samples)
	if err != nil {
		return BBox{}, fmt.Errorf("valid domain of %s: %w", self.Code(), err)
	}

	domain, err := boundOf(out)
	if err != nil {
		return BBox{}, fmt.Errorf("valid domain of %s: %w", self.Code(), err)
	}
	b.validDomain = &domain
	return domain, nil
}

// SampleBoundary returns 4*(perSide+2) points along the edges of a lon/lat
// box, corners included. If latLon is set, the ordinates are swapped.
func SampleBoundary(box BBox, perSide int, latLon bool) []Point3 {
	steps := perSide + 1
	w := box[2] - box[0]
	h := box[3] - box[1]

	points := make([]Point3, 0, 4*(perSide+2))
	add := func(lon, lat float64) {
		if latLon {
			points = append(points, NewPoint2(lat, lon))
			return
		}
		points = append(points, NewPoint2(lon, lat))
	}
	for k := 0; k <= steps; k++ {
		f := float64(k) / float64(steps)
		add(box[0]+f*w, box[1])
	}
	for k := 0; k <= steps; k++ {
		f := float64(k) / float64(steps)
		add(box[2], box[1]+f*h)
	}
	for k := 0; k <= steps; k++ {
		f := float64(k) / float64(steps)
		add(box[2]-f*w, box[3])
	}
	for k := 0; k <= steps; k++ {
		f := float64(k) / float64(steps)
		add(box[0], box[3]-f*h)
	}
	return points
}

func boundOf(points []Point3) (BBox, error) {
	if len(points) == 0 {
		return BBox{}, fmt.Errorf("no sample points: %w", ErrInvalidInput)
	}
	var bound orb.Bound
	for i, p := range points {
		if !p.IsValid() {
			return BBox{}, fmt.Errorf("sample %d is not finite (%v, %v): %w",
				i, p.X, p.Y, ErrInvalidCoordinate)
		}
		if i == 0 {
			bound = orb.Point{p.X, p.Y}.Bound()
			continue
		}
		bound = bound.Extend(orb.Point{p.X, p.Y})
	}
	box := BBoxFromBound(bound)
	if math.IsNaN(box[0]) {
		return BBox{}, ErrInvalidCoordinate
	}
	return box, nil
}
