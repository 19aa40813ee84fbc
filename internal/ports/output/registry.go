package output

import (
	"github.com/jobrunner/geotrans/internal/domain"
)

// CRSRegistry defines the secondary port for CRS lookup and transformation
// resolution.
type CRSRegistry interface {
	// Lookup resolves a textual CRS identifier. Unknown codes return
	// *domain.UnknownCRSError.
	Lookup(code string) (domain.CRS, error)

	// ResolveTransformation returns a transformation chain from source to
	// target. A matching preferred transformation is used if present.
	ResolveTransformation(source, target domain.CRS, preferred []domain.Transformation) (domain.Transformation, error)

	// WGS84 returns the WGS84 geographic CRS in longitude/latitude order.
	WGS84() domain.CRS
}

// CRSCatalog is a CRSRegistry that can enumerate and search its CRS.
type CRSCatalog interface {
	CRSRegistry

	// List returns all registered CRS in registration order.
	List() []domain.CRS

	// FindByArea returns the CRS whose area of use intersects the box
	// (WGS84 lon/lat).
	FindByArea(bbox domain.BBox) []domain.CRS

	// FindAt returns the CRS whose area of use contains the position.
	FindAt(lon, lat float64) []domain.CRS
}
