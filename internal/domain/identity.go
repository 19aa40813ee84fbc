package domain

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb"
)

// CodeType is an identifier of a CRS-related resource inside a code space.
type CodeType struct {
	original  string
	codeSpace string
	code      string
	version   string
	epsg      int
}

// NewCodeType parses a code string such as "EPSG:4326",
// "urn:ogc:def:crs:EPSG::4326" or "http://www.opengis.net/def/crs/EPSG/0/4326".
func NewCodeType(original string) CodeType {
	c := CodeType{original: strings.TrimSpace(original)}
	c.codeSpace, c.version, c.code = splitCode(c.original)
	if strings.EqualFold(c.codeSpace, "EPSG") {
		if n, err := strconv.Atoi(c.code); err == nil && n > 0 {
			c.epsg = n
			c.codeSpace = "EPSG"
		}
	}
	return c
}

// NewCodeTypeIn creates a code inside the given code space.
func NewCodeTypeIn(code, codeSpace string) CodeType {
	if codeSpace == "" {
		return NewCodeType(code)
	}
	return NewCodeType(codeSpace + ":" + code)
}

// NewEPSGCode creates an EPSG code from its number.
func NewEPSGCode(n int) CodeType {
	return CodeType{
		original:  "EPSG:" + strconv.Itoa(n),
		codeSpace: "EPSG",
		code:      strconv.Itoa(n),
		epsg:      n,
	}
}

func splitCode(s string) (space, version, code string) {
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "urn:ogc:def:crs:"), strings.HasPrefix(lower, "urn:x-ogc:def:crs:"):
		// urn:ogc:def:crs:EPSG:[version]:code
		parts := strings.Split(s, ":")
		rest := parts[4:]
		if len(rest) == 0 {
			return "", "", s
		}
		space = rest[0]
		if len(rest) >= 3 {
			version = rest[len(rest)-2]
		}
		return space, version, rest[len(rest)-1]
	case strings.HasPrefix(lower, "http://www.opengis.net/def/crs/"):
		// http://www.opengis.net/def/crs/EPSG/0/4326
		parts := strings.Split(strings.TrimPrefix(s[len("http://www.opengis.net/def/crs/"):], "/"), "/")
		if len(parts) >= 3 {
			return parts[0], parts[1], parts[len(parts)-1]
		}
		return "", "", s
	case strings.HasPrefix(lower, "http://www.opengis.net/gml/srs/epsg.xml#"):
		return "EPSG", "", s[strings.Index(s, "#")+1:]
	}
	if i := strings.LastIndex(s, ":"); i > 0 && i < len(s)-1 {
		return s[:i], "", s[i+1:]
	}
	return "", "", s
}

// Original returns the code as it was given.
func (c CodeType) Original() string { return c.original }

// CodeSpace returns the code space, e.g. "EPSG".
func (c CodeType) CodeSpace() string { return c.codeSpace }

// Code returns the code inside its code space.
func (c CodeType) Code() string { return c.code }

// Version returns the code version if one was given.
func (c CodeType) Version() string { return c.version }

// EPSG returns the EPSG number if this is an EPSG code.
func (c CodeType) EPSG() (int, bool) {
	return c.epsg, c.epsg > 0
}

// IsZero returns true for an unset code.
func (c CodeType) IsZero() bool {
	return c.original == "" && c.code == ""
}

// Key returns the normalized lookup key.
func (c CodeType) Key() string {
	if c.epsg > 0 {
		return "EPSG:" + strconv.Itoa(c.epsg)
	}
	if c.codeSpace == "" {
		return strings.ToUpper(c.code)
	}
	return strings.ToUpper(c.codeSpace + ":" + c.code)
}

// Equal compares two codes by value. EPSG codes compare by number.
func (c CodeType) Equal(other CodeType) bool {
	if c.epsg > 0 || other.epsg > 0 {
		return c.epsg == other.epsg
	}
	return c.Key() == other.Key()
}

// String returns the normalized code.
func (c CodeType) String() string {
	if c.epsg > 0 || c.codeSpace != "" {
		return c.Key()
	}
	return c.original
}

// Identifiable carries the codes, names, versions, descriptions and areas of
// use of a CRS-related resource. Element 0 of each slice is the default.
// Mutators are meant for construction time and must not race with readers.
type Identifiable struct {
	codes        []CodeType
	names        []string
	versions     []string
	descriptions []string
	areasOfUse   []string

	mu       sync.Mutex
	areaBBox *BBox
}

// NewIdentifiable creates an identifiable. At least one code is required.
func NewIdentifiable(codes []CodeType, names, versions, descriptions, areasOfUse []string) (*Identifiable, error) {
	valid := make([]CodeType, 0, len(codes))
	for _, c := range codes {
		if !c.IsZero() {
			valid = append(valid, c)
		}
	}
	if len(valid) == 0 {
		return nil, ErrMissingCode
	}
	return &Identifiable{
		codes:        valid,
		names:        append([]string(nil), names...),
		versions:     append([]string(nil), versions...),
		descriptions: append([]string(nil), descriptions...),
		areasOfUse:   append([]string(nil), areasOfUse...),
	}, nil
}

// NewIdentifiableFromCode is a shorthand for a single code, name and area.
func NewIdentifiableFromCode(code CodeType, name, areaOfUse string) (*Identifiable, error) {
	var names, areas []string
	if name != "" {
		names = []string{name}
	}
	if areaOfUse != "" {
		areas = []string{areaOfUse}
	}
	return NewIdentifiable([]CodeType{code}, names, nil, nil, areas)
}

// MustIdentifiable is NewIdentifiableFromCode that panics on error.
func MustIdentifiable(code CodeType, name, areaOfUse string) *Identifiable {
	id, err := NewIdentifiableFromCode(code, name, areaOfUse)
	if err != nil {
		panic(err)
	}
	return id
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Code returns the default code.
func (i *Identifiable) Code() CodeType { return i.codes[0] }

// Codes returns all codes.
func (i *Identifiable) Codes() []CodeType { return append([]CodeType(nil), i.codes...) }

// Name returns the default name.
func (i *Identifiable) Name() string { return first(i.names) }

// Names returns all names.
func (i *Identifiable) Names() []string { return append([]string(nil), i.names...) }

// Version returns the default version.
func (i *Identifiable) Version() string { return first(i.versions) }

// Description returns the default description.
func (i *Identifiable) Description() string { return first(i.descriptions) }

// AreaOfUse returns the default area of use.
func (i *Identifiable) AreaOfUse() string { return first(i.areasOfUse) }

// AreasOfUse returns all areas of use.
func (i *Identifiable) AreasOfUse() []string { return append([]string(nil), i.areasOfUse...) }

// HasCode returns true if one of the codes equals c.
func (i *Identifiable) HasCode(c CodeType) bool {
	for _, own := range i.codes {
		if own.Equal(c) {
			return true
		}
	}
	return false
}

// HasID returns true if s matches one of the codes or, case-insensitively, names.
func (i *Identifiable) HasID(s string) bool {
	if i.HasCode(NewCodeType(s)) {
		return true
	}
	for _, n := range i.names {
		if strings.EqualFold(n, s) {
			return true
		}
	}
	return false
}

func setDefault[T any](values []T, v T, override bool) []T {
	if override && len(values) > 0 {
		values[0] = v
		return values
	}
	return append([]T{v}, values...)
}

// SetDefaultCode overrides the default code or prepends a new one.
func (i *Identifiable) SetDefaultCode(c CodeType, override bool) {
	if c.IsZero() {
		return
	}
	i.codes = setDefault(i.codes, c, override)
}

// SetDefaultName overrides the default name or prepends a new one.
func (i *Identifiable) SetDefaultName(name string, override bool) {
	i.names = setDefault(i.names, name, override)
}

// SetDefaultVersion overrides the default version or prepends a new one.
func (i *Identifiable) SetDefaultVersion(version string, override bool) {
	i.versions = setDefault(i.versions, version, override)
}

// SetDefaultDescription overrides the default description or prepends a new one.
func (i *Identifiable) SetDefaultDescription(description string, override bool) {
	i.descriptions = setDefault(i.descriptions, description, override)
}

// SetDefaultAreaOfUse overrides the default area or prepends a new one and
// resets the cached bounding box.
func (i *Identifiable) SetDefaultAreaOfUse(area string, override bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.areasOfUse = setDefault(i.areasOfUse, area, override)
	i.areaBBox = nil
}

// Equal holds if the smaller code set is contained in the larger one.
func (i *Identifiable) Equal(other *Identifiable) bool {
	if i == nil || other == nil {
		return i == other
	}
	small, large := i, other
	if len(small.codes) > len(large.codes) {
		small, large = large, small
	}
	for _, c := range small.codes {
		if !large.HasCode(c) {
			return false
		}
	}
	return true
}

// AreaOfUseBBox returns the union of all parseable areas of use in WGS84
// lon/lat order, or WorldBBox if none parses. The result is cached.
func (i *Identifiable) AreaOfUseBBox() BBox {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.areaBBox != nil {
		return *i.areaBBox
	}
	var (
		union orb.Bound
		found bool
	)
	for _, area := range i.areasOfUse {
		b, err := ParseBBox(area)
		if err != nil {
			continue
		}
		if !found {
			union, found = b.Bound(), true
			continue
		}
		union = union.Union(b.Bound())
	}
	result := WorldBBox
	if found {
		result = BBoxFromBound(union)
	}
	i.areaBBox = &result
	return result
}

// String returns the default code and name.
func (i *Identifiable) String() string {
	if n := i.Name(); n != "" {
		return fmt.Sprintf("%s (%s)", i.Code(), n)
	}
	return i.Code().String()
}

// ParsePosition parses a WGS84 position "lon,lat".
func ParsePosition(s string) (lon, lat float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("position %q needs lon,lat: %w", s, ErrInvalidInput)
	}
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLon != nil || errLat != nil {
		return 0, 0, fmt.Errorf("position %q: %w", s, ErrInvalidInput)
	}
	if !validPosition(lon, lat) {
		return 0, 0, fmt.Errorf("position %q outside -180..180, -90..90: %w", s, ErrInvalidInput)
	}
	return lon, lat, nil
}

func validPosition(lon, lat float64) bool {
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}

// ParseBBox parses "minLon,minLat,maxLon,maxLat".
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("bbox %q needs 4 values: %w", s, ErrInvalidInput)
	}
	var b BBox
	for idx, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("bbox %q: %w", s, ErrInvalidInput)
		}
		b[idx] = v
	}
	if !b.IsValid() {
		return BBox{}, fmt.Errorf("bbox %q has min > max: %w", s, ErrInvalidInput)
	}
	return b, nil
}
