package registry

import (
	"sort"

	"github.com/dhconnelly/rtreego"

	"github.com/jobrunner/geotrans/internal/domain"
)

// minExtent keeps degenerate areas of use indexable.
const minExtent = 0.0001

type areaEntry struct {
	crs   domain.CRS
	order int
	box   domain.BBox
}

// Bounds implements rtreego.Spatial.
func (e *areaEntry) Bounds() rtreego.Rect {
	return rectOf(e.box)
}

func rectOf(b domain.BBox) rtreego.Rect {
	point := rtreego.Point{b[0], b[1]}
	lengths := []float64{
		max(b[2]-b[0], minExtent),
		max(b[3]-b[1], minExtent),
	}
	rect, _ := rtreego.NewRect(point, lengths)
	return rect
}

// areaIndex is an R-tree over the areas of use of the registered CRS.
type areaIndex struct {
	tree *rtreego.Rtree
}

func newAreaIndex() *areaIndex {
	return &areaIndex{tree: rtreego.NewTree(2, 25, 50)}
}

func (i *areaIndex) insert(e *areaEntry) {
	i.tree.Insert(e)
}

func (i *areaIndex) remove(e *areaEntry) {
	i.tree.Delete(e)
}

func (i *areaIndex) search(b domain.BBox) []*areaEntry {
	spatials := i.tree.SearchIntersect(rectOf(b))
	entries := make([]*areaEntry, 0, len(spatials))
	for _, s := range spatials {
		entries = append(entries, s.(*areaEntry))
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].order < entries[b].order })
	return entries
}

func (i *areaIndex) intersecting(b domain.BBox) []domain.CRS {
	entries := i.search(b)
	out := make([]domain.CRS, len(entries))
	for k, e := range entries {
		out[k] = e.crs
	}
	return out
}

func (i *areaIndex) containing(lon, lat float64) []domain.CRS {
	var out []domain.CRS
	for _, e := range i.search(domain.BBox{lon, lat, lon, lat}) {
		if e.box.Contains(lon, lat) {
			out = append(out, e.crs)
		}
	}
	return out
}
