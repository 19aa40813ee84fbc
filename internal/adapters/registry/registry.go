// Package registry provides the in-memory CRS registry: the built-in
// catalog, code lookup, transformation chains and area-of-use queries.
package registry

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jobrunner/geotrans/internal/domain"
	"github.com/jobrunner/geotrans/internal/ports/output"
)

// DefaultChainCacheSize is the number of cached transformation chains.
const DefaultChainCacheSize = 256

// Options configures the registry.
type Options struct {
	ChainCacheSize int // Cached chains, 0 disables the cache
}

// Registry manages the known CRS and resolves transformations between them.
type Registry struct {
	mu      sync.RWMutex
	exact   map[string]domain.CRS // upper-cased original code
	byKey   map[string]domain.CRS // normalized code key
	entries []*areaEntry
	seq     int
	index   *areaIndex
	wgs84   domain.CRS

	chains  *lru.Cache[uint64, domain.Transformation]
	factory *Factory
	metrics output.MetricsCollector
	logger  *slog.Logger
}

// New creates a registry holding the built-in catalog.
func New(opts Options, metrics output.MetricsCollector, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}
	r := &Registry{
		exact:   make(map[string]domain.CRS),
		byKey:   make(map[string]domain.CRS),
		index:   newAreaIndex(),
		factory: NewFactory(logger),
		metrics: metrics,
		logger:  logger,
	}
	if opts.ChainCacheSize > 0 {
		c, err := lru.New[uint64, domain.Transformation](opts.ChainCacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating chain cache: %w", err)
		}
		r.chains = c
	}

	catalog, err := Catalog()
	if err != nil {
		return nil, fmt.Errorf("loading built-in catalog: %w", err)
	}
	for _, c := range catalog {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	wgs84, err := r.Lookup("EPSG:4326")
	if err != nil {
		return nil, err
	}
	r.wgs84 = wgs84

	logger.Info("crs registry ready", "crs", r.Count(), "chain_cache", opts.ChainCacheSize)
	return r, nil
}

// Register adds a CRS under all of its codes. A CRS registered under the
// same default code is replaced; other codes already taken keep resolving
// to their CRS by normalized key.
func (r *Registry) Register(c domain.CRS) error {
	if c == nil {
		return fmt.Errorf("register crs: %w", domain.ErrNilArgument)
	}

	r.mu.Lock()
	if prev, ok := r.exact[strings.ToUpper(c.Code().Original())]; ok {
		if prev == c {
			r.mu.Unlock()
			return nil
		}
		r.logger.Debug("replacing crs", "code", c.Code().String())
		r.remove(prev)
	}
	for _, code := range c.ID().Codes() {
		r.exact[strings.ToUpper(code.Original())] = c
		if _, ok := r.byKey[code.Key()]; !ok {
			r.byKey[code.Key()] = c
		}
	}
	entry := &areaEntry{crs: c, order: r.seq, box: c.AreaOfUseBBox()}
	r.seq++
	r.entries = append(r.entries, entry)
	r.index.insert(entry)
	count := len(r.entries)
	r.mu.Unlock()

	if r.chains != nil {
		r.chains.Purge()
	}
	r.metrics.SetCRSRegistered(count)
	return nil
}

// remove drops every reference to c. The caller holds the lock.
func (r *Registry) remove(c domain.CRS) {
	for k, v := range r.exact {
		if v == c {
			delete(r.exact, k)
		}
	}
	for k, v := range r.byKey {
		if v == c {
			delete(r.byKey, k)
		}
	}
	for i, e := range r.entries {
		if e.crs == c {
			r.index.remove(e)
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
}

// Lookup resolves a CRS code. The exact code is tried first, then the
// EPSG URN form and finally the normalized code.
func (r *Registry) Lookup(code string) (domain.CRS, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &domain.UnknownCRSError{Code: code}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.exact[strings.ToUpper(code)]; ok {
		return c, nil
	}
	ct := domain.NewCodeType(code)
	if n, ok := ct.EPSG(); ok && isURI(code) {
		if c, ok := r.exact[strings.ToUpper(fmt.Sprintf("urn:ogc:def:crs:EPSG::%d", n))]; ok {
			return c, nil
		}
	}
	if c, ok := r.byKey[ct.Key()]; ok {
		return c, nil
	}
	return nil, &domain.UnknownCRSError{Code: code}
}

// isURI reports codes in URN or OGC URL form, which use the axis order of
// the EPSG database.
func isURI(code string) bool {
	lower := strings.ToLower(code)
	return strings.HasPrefix(lower, "urn:") || strings.HasPrefix(lower, "http://www.opengis.net/def/")
}

// WGS84 returns EPSG:4326 in longitude/latitude order.
func (r *Registry) WGS84() domain.CRS {
	return r.wgs84
}

// List returns all registered CRS in registration order.
func (r *Registry) List() []domain.CRS {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.CRS, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.crs
	}
	return out
}

// Count returns the number of registered CRS.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// FindByArea returns the CRS whose area of use intersects bbox.
func (r *Registry) FindByArea(bbox domain.BBox) []domain.CRS {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.intersecting(bbox)
}

// FindAt returns the CRS whose area of use contains lon/lat.
func (r *Registry) FindAt(lon, lat float64) []domain.CRS {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.containing(lon, lat)
}

// ResolveTransformation returns the chain from source to target. Chains
// built without preferred transformations are cached.
func (r *Registry) ResolveTransformation(source, target domain.CRS, preferred []domain.Transformation) (domain.Transformation, error) {
	if source == nil || target == nil {
		return nil, fmt.Errorf("resolve transformation: %w", domain.ErrNilArgument)
	}

	useCache := r.chains != nil && len(preferred) == 0
	var key uint64
	if useCache {
		key = chainKey(source, target)
		if t, ok := r.chains.Get(key); ok {
			r.metrics.IncChainCache(true)
			return t, nil
		}
		r.metrics.IncChainCache(false)
	}

	t, err := r.factory.Create(source, target, preferred)
	if err != nil {
		return nil, fmt.Errorf("no transformation from %s to %s: %w",
			source.Code(), target.Code(), joinNoTransformation(err))
	}
	r.metrics.IncChainBuilds(source.Code().String(), target.Code().String())
	r.logger.Debug("resolved transformation",
		"source", source.Code().String(),
		"target", target.Code().String(),
		"implementation", t.ImplementationName(),
	)

	if useCache {
		r.chains.Add(key, t)
	}
	return t, nil
}

func joinNoTransformation(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrNoTransformation, err)
}

// parameterized is implemented by projections whose name does not pin
// down their parameters.
type parameterized interface {
	Parameters() []float64
}

// chainKey hashes everything of both endpoints that a chain is built from:
// type, code, axes, datum and projection.
func chainKey(source, target domain.CRS) uint64 {
	d := xxhash.New()
	writeCRS(d, source)
	_, _ = d.WriteString("\x00")
	writeCRS(d, target)
	return d.Sum64()
}

func writeCRS(d *xxhash.Digest, c domain.CRS) {
	_, _ = d.WriteString(c.Type().String())
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(c.Code().Key())
	for _, a := range c.Axes() {
		_, _ = d.WriteString("|")
		_, _ = d.WriteString(a.Orientation.String())
		_, _ = d.WriteString(a.Unit.Symbol)
	}

	switch datum := c.Datum().(type) {
	case *domain.GeodeticDatum:
		e := datum.Ellipsoid()
		_, _ = d.WriteString("|" + datum.ID().Code().Key() + "|" + e.ID().Code().Key())
		writeFloats(d, e.SemiMajorMetres(), e.InverseFlattening(), datum.PrimeMeridian())
		if w := datum.ToWGS84(); !w.IsIdentity() {
			writeFloats(d, w.Dx, w.Dy, w.Dz, w.Ex, w.Ey, w.Ez, w.PPM)
		}
	case domain.Datum:
		_, _ = d.WriteString("|" + datum.ID().Code().Key())
	}

	switch crs := c.(type) {
	case *domain.ProjectedCRS:
		p := crs.Projection()
		_, _ = d.WriteString("|" + p.Name())
		if pp, ok := p.(parameterized); ok {
			writeFloats(d, pp.Parameters()...)
		}
	case *domain.CompoundCRS:
		_, _ = d.WriteString("|")
		writeCRS(d, crs.Underlying())
		writeFloats(d, crs.DefaultHeight())
	}
}

func writeFloats(d *xxhash.Digest, values ...float64) {
	var buf [8]byte
	for _, v := range values {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = d.Write(buf[:])
	}
}
