package domain

// CRSInfo is a read-only description of a CRS.
type CRSInfo struct {
	Code       string   `json:"code" yaml:"code"`
	Codes      []string `json:"codes" yaml:"codes"`
	Name       string   `json:"name" yaml:"name"`
	Type       string   `json:"type" yaml:"type"`
	Dimension  int      `json:"dimension" yaml:"dimension"`
	Axes       []string `json:"axes" yaml:"axes"`
	Datum      string   `json:"datum,omitempty" yaml:"datum,omitempty"`
	Ellipsoid  string   `json:"ellipsoid,omitempty" yaml:"ellipsoid,omitempty"`
	Projection string   `json:"projection,omitempty" yaml:"projection,omitempty"`
	Underlying string   `json:"underlying,omitempty" yaml:"underlying,omitempty"`
	AreaOfUse  BBox     `json:"area_of_use" yaml:"area_of_use,flow"`
}

// DescribeCRS builds the description of a CRS.
func DescribeCRS(c CRS) CRSInfo {
	info := CRSInfo{
		Code:      c.Code().String(),
		Name:      c.Name(),
		Type:      c.Type().String(),
		Dimension: c.Dimension(),
		AreaOfUse: c.AreaOfUseBBox(),
	}
	for _, code := range c.ID().Codes() {
		info.Codes = append(info.Codes, code.Original())
	}
	for _, a := range c.Axes() {
		info.Axes = append(info.Axes, a.String())
	}
	if d := c.Datum(); d != nil {
		info.Datum = d.ID().String()
	}
	if gd := c.GeodeticDatum(); gd != nil {
		info.Ellipsoid = gd.Ellipsoid().ID().String()
	}
	switch v := c.(type) {
	case *ProjectedCRS:
		info.Projection = v.Projection().Name()
	case *CompoundCRS:
		info.Underlying = v.Underlying().Code().String()
	}
	return info
}
