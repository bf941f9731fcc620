package navmesh

import (
	"math"

	"navmotion.ai/internal/nav/geom"
)

const (
	DefaultMaxNodes = 2048
	heuristicScale  = 0.999
)

// Query runs read-only searches against a Mesh. A Query keeps no per-call
// state, so one value may be shared by every worker of a tick.
type Query struct {
	mesh     *Mesh
	maxNodes int
}

func NewQuery(m *Mesh, maxNodes int) *Query {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	return &Query{mesh: m, maxNodes: maxNodes}
}

func (q *Query) Mesh() *Mesh { return q.mesh }

// TileLoaded reports whether the tile covering pos is present.
func (q *Query) TileLoaded(pos geom.Vec3) bool {
	return q.mesh.HasTile(q.mesh.TileCoords(pos))
}

func (q *Query) IsValid(ref PolyRef) bool { return q.mesh.IsValidRef(ref) }

// PolygonLookup finds the polygon nearest to center inside the box
// center±extents that passes filter, and the closest point on it.
func (q *Query) PolygonLookup(center, extents geom.Vec3, filter *Filter) (PolyRef, geom.Vec3, error) {
	m := q.mesh
	m.mu.RLock()
	defer m.mu.RUnlock()

	bmin := center.Sub(extents)
	bmax := center.Add(extents)
	x0, y0 := m.TileCoords(bmin)
	x1, y1 := m.TileCoords(bmax)

	var best PolyRef
	var bestPt geom.Vec3
	bestD := math.MaxFloat64
	for ty := y0; ty <= y1; ty++ {
		for tx := x0; tx <= x1; tx++ {
			slot, ok := m.pos[tileKey{tx, ty}]
			if !ok {
				continue
			}
			t := &m.tiles[slot]
			for pi := range t.data.Polys {
				if filter != nil && !filter.pass(&t.data.Polys[pi]) {
					continue
				}
				if !overlapBounds(bmin, bmax, t.bounds[pi][0], t.bounds[pi][1]) {
					continue
				}
				pt, over := closestOnPoly(t, pi, center)
				var d float64
				if over {
					dz := math.Abs(center[2]-pt[2]) - t.data.WalkableClimb
					if dz > 0 {
						d = dz * dz
					}
				} else {
					d = geom.DistSqr(center, pt)
				}
				if d < bestD {
					bestD = d
					best = encodeRef(t.gen, slot, pi)
					bestPt = pt
				}
			}
		}
	}
	if best == 0 {
		return 0, center, ErrNoPolygon
	}
	return best, bestPt, nil
}

// ClosestPointOnPoly returns the point of ref nearest to pos and whether pos
// lies over the polygon on the ground plane.
func (q *Query) ClosestPointOnPoly(ref PolyRef, pos geom.Vec3) (geom.Vec3, bool, error) {
	m := q.mesh
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, pi, err := m.resolve(ref)
	if err != nil {
		return pos, false, err
	}
	pt, over := closestOnPoly(t, pi, pos)
	return pt, over, nil
}

// ClosestPointOnPolyBoundary returns pos itself when it is over ref, otherwise
// the nearest point on the polygon's edges.
func (q *Query) ClosestPointOnPolyBoundary(ref PolyRef, pos geom.Vec3) (geom.Vec3, error) {
	m := q.mesh
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, pi, err := m.resolve(ref)
	if err != nil {
		return pos, err
	}
	verts := t.polyVerts(pi)
	if geom.PointInPoly2D(pos, verts) {
		return pos, nil
	}
	return closestOnBoundary(verts, pos), nil
}

// PolyHeight returns the surface height of ref under pos.
func (q *Query) PolyHeight(ref PolyRef, pos geom.Vec3) (float64, error) {
	m := q.mesh
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, pi, err := m.resolve(ref)
	if err != nil {
		return 0, err
	}
	if h, ok := polyHeight(t.polyVerts(pi), pos); ok {
		return h, nil
	}
	return 0, ErrInvalidParam
}

func closestOnPoly(t *tile, pi int, pos geom.Vec3) (geom.Vec3, bool) {
	verts := t.polyVerts(pi)
	if h, ok := polyHeight(verts, pos); ok {
		return geom.V(pos[0], pos[1], h), true
	}
	return closestOnBoundary(verts, pos), false
}

func polyHeight(verts []geom.Vec3, pos geom.Vec3) (float64, bool) {
	for i := 1; i+1 < len(verts); i++ {
		if h, ok := geom.ClosestHeightOnTriangle(pos, verts[0], verts[i], verts[i+1]); ok {
			return h, true
		}
	}
	return 0, false
}

func closestOnBoundary(verts []geom.Vec3, pos geom.Vec3) geom.Vec3 {
	best := math.MaxFloat64
	var out geom.Vec3
	n := len(verts)
	for i := 0; i < n; i++ {
		a := verts[i]
		b := verts[(i+1)%n]
		d, u := geom.DistPtSegSqr2D(pos, a, b)
		if d < best {
			best = d
			out = geom.Lerp(a, b, u)
		}
	}
	return out
}

// portal returns the left and right end of the opening from ref `from` into
// `to`, as seen when walking from `from`. Caller holds the read lock.
func (m *Mesh) portal(from, to PolyRef) (geom.Vec3, geom.Vec3, error) {
	t, pi, err := m.resolve(from)
	if err != nil {
		return geom.Vec3{}, geom.Vec3{}, err
	}
	for _, l := range t.links[pi] {
		if l.ref != to {
			continue
		}
		a, b := t.edge(pi, int(l.edge))
		right := geom.Lerp(a, b, l.tmin)
		left := geom.Lerp(a, b, l.tmax)
		return left, right, nil
	}
	return geom.Vec3{}, geom.Vec3{}, ErrInvalidRef
}
