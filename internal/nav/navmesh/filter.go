package navmesh

import "navmotion.ai/internal/nav/geom"

// Filter selects which polygons a query may enter and what crossing them costs.
type Filter struct {
	Include  uint16
	Exclude  uint16
	AreaCost [MaxAreas]float64
}

func DefaultFilter() Filter {
	f := Filter{Include: FlagAll, Exclude: FlagDisabled}
	for i := range f.AreaCost {
		f.AreaCost[i] = 1
	}
	return f
}

func (f *Filter) pass(p *Poly) bool {
	return p.Flags&f.Include != 0 && p.Flags&f.Exclude == 0
}

func (f *Filter) cost(a, b geom.Vec3, p *Poly) float64 {
	c := 1.0
	if int(p.Area) < len(f.AreaCost) && f.AreaCost[p.Area] > 0 {
		c = f.AreaCost[p.Area]
	}
	return geom.Dist(a, b) * c
}
