package navmesh

import (
	"math"

	"navmotion.ai/internal/nav/geom"
)

// MoveAlongSurface slides from startPos towards endPos over the mesh starting
// in startRef, stopping at walls. It returns the reached position and the
// polygons passed, at most maxVisited of them.
func (q *Query) MoveAlongSurface(startRef PolyRef, startPos, endPos geom.Vec3, filter *Filter, maxVisited int) (geom.Vec3, []PolyRef, error) {
	m := q.mesh
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, _, err := m.resolve(startRef); err != nil {
		return startPos, nil, err
	}
	if filter == nil {
		f := DefaultFilter()
		filter = &f
	}
	if maxVisited <= 0 {
		maxVisited = 16
	}

	searchPos := geom.Lerp(startPos, endPos, 0.5)
	r := geom.Dist(startPos, endPos)/2 + 1e-3
	searchRadSqr := r * r

	parent := map[PolyRef]PolyRef{startRef: 0}
	queue := []PolyRef{startRef}
	bestPos := startPos
	bestDist := math.MaxFloat64
	bestRef := startRef

	for len(queue) > 0 && len(parent) <= q.maxNodes {
		cur := queue[0]
		queue = queue[1:]
		t, pi, err := m.resolve(cur)
		if err != nil {
			continue
		}
		verts := t.polyVerts(pi)
		if geom.PointInPoly2D(endPos, verts) {
			bestRef = cur
			bestPos = endPos
			break
		}

		n := len(verts)
		for e := 0; e < n; e++ {
			a := verts[e]
			b := verts[(e+1)%n]

			var neis []PolyRef
			for _, l := range t.links[pi] {
				if int(l.edge) != e {
					continue
				}
				nt, npi, err := m.resolve(l.ref)
				if err != nil || !filter.pass(&nt.data.Polys[npi]) {
					continue
				}
				neis = append(neis, l.ref)
			}

			if len(neis) == 0 {
				d, u := geom.DistPtSegSqr2D(endPos, a, b)
				if d < bestDist {
					bestPos = geom.Lerp(a, b, u)
					bestDist = d
					bestRef = cur
				}
				continue
			}
			for _, nref := range neis {
				if _, seen := parent[nref]; seen {
					continue
				}
				if d, _ := geom.DistPtSegSqr2D(searchPos, a, b); d > searchRadSqr {
					continue
				}
				parent[nref] = cur
				queue = append(queue, nref)
			}
		}
	}

	var rev []PolyRef
	for ref := bestRef; ref != 0; ref = parent[ref] {
		rev = append(rev, ref)
	}
	visited := make([]PolyRef, 0, min(len(rev), maxVisited))
	for i := len(rev) - 1; i >= 0 && len(visited) < maxVisited; i-- {
		visited = append(visited, rev[i])
	}

	if t, pi, err := m.resolve(bestRef); err == nil {
		if h, ok := polyHeight(t.polyVerts(pi), bestPos); ok {
			bestPos[2] = h
		}
	}
	return bestPos, visited, nil
}

// Surface answers height and line-of-walk queries from the navmesh. It stands
// in for a terrain/collision service.
type Surface struct {
	q      *Query
	filter Filter
}

func NewSurface(q *Query) *Surface {
	return &Surface{q: q, filter: DefaultFilter()}
}

// HeightAt returns the walkable height at x,y closest to zHint, searching
// maxSearch up and down.
func (s *Surface) HeightAt(x, y, zHint, maxSearch float64) (float64, bool) {
	if maxSearch <= 0 {
		maxSearch = 5
	}
	pos := geom.V(x, y, zHint)
	ref, _, err := s.q.PolygonLookup(pos, geom.V(0.5, 0.5, maxSearch), &s.filter)
	if err != nil {
		return zHint, false
	}
	h, err := s.q.PolyHeight(ref, pos)
	if err != nil {
		return zHint, false
	}
	return h, true
}

// HitPosition walks from `from` towards `to` on the surface and returns the
// first blocking point, or to when nothing blocks.
func (s *Surface) HitPosition(from, to geom.Vec3) (geom.Vec3, bool) {
	ref, start, err := s.q.PolygonLookup(from, geom.V(2, 2, 4), &s.filter)
	if err != nil {
		return to, false
	}
	end, _, err := s.q.MoveAlongSurface(ref, start, to, &s.filter, 64)
	if err != nil {
		return to, false
	}
	if geom.Dist2DSqr(end, to) > 1e-4 {
		return end, true
	}
	return to, false
}
