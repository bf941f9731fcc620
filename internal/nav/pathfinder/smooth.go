package pathfinder

import (
	"math"

	"navmotion.ai/internal/nav/geom"
	"navmotion.ai/internal/nav/navmesh"
)

// smoothPath walks the corridor in fixed steps towards successive steer
// targets, keeping every point on the surface.
func (p *PathFinder) smoothPath(start, end geom.Vec3) ([]geom.Vec3, bool) {
	if len(p.corridor) == 0 {
		return nil, false
	}
	polys := append([]navmesh.PolyRef(nil), p.corridor...)

	iterPos, err := p.nav.ClosestPointOnPolyBoundary(polys[0], start)
	if err != nil {
		return nil, false
	}
	targetPos, err := p.nav.ClosestPointOnPolyBoundary(polys[len(polys)-1], end)
	if err != nil {
		return nil, false
	}

	pts := []geom.Vec3{iterPos}
	slop := p.opts.SmoothPathSlop
	for len(polys) > 0 && len(pts) < p.pointLimit {
		steerPos, steerFlags, ok := p.steerTarget(iterPos, targetPos, slop, polys)
		if !ok {
			break
		}
		endOfPath := steerFlags&navmesh.StraightEnd != 0

		delta := steerPos.Sub(iterPos)
		l := delta.Len()
		if endOfPath && l < p.opts.SmoothStepSize {
			l = 1
		} else {
			l = p.opts.SmoothStepSize / l
		}
		moveTgt := iterPos.Add(delta.Mul(l))

		result, visited, err := p.nav.MoveAlongSurface(polys[0], iterPos, moveTgt, &p.filter, 16)
		if err != nil {
			return nil, false
		}
		polys = fixupCorridor(polys, visited)
		if h, err := p.nav.PolyHeight(polys[0], result); err == nil {
			result[2] = h
		}
		iterPos = result

		if endOfPath && inRangeYZX(iterPos, steerPos, slop, 1) {
			iterPos = targetPos
			pts = append(pts, iterPos)
			break
		}
		pts = append(pts, iterPos)
	}
	return pts, true
}

// steerTarget picks the first straight-path corner that is farther than
// minDist from start. Its height is taken from start.
func (p *PathFinder) steerTarget(start, end geom.Vec3, minDist float64, polys []navmesh.PolyRef) (geom.Vec3, uint8, bool) {
	verts, err := p.nav.StraightPath(start, end, polys, p.opts.MaxSteerPoints)
	if err != nil || len(verts) == 0 {
		return geom.Vec3{}, 0, false
	}
	ns := 0
	for ns < len(verts) {
		if verts[ns].Flags&navmesh.StraightEnd != 0 || !inRangeYZX(verts[ns].Pos, start, minDist, 1000) {
			break
		}
		ns++
	}
	if ns >= len(verts) {
		return geom.Vec3{}, 0, false
	}
	pos := verts[ns].Pos
	pos[2] = start[2]
	return pos, verts[ns].Flags, true
}

// fixupCorridor replaces the walked-over head of path with the polygons
// MoveAlongSurface actually visited.
func fixupCorridor(path, visited []navmesh.PolyRef) []navmesh.PolyRef {
	furthestPath, furthestVisited := -1, -1
	for i := len(path) - 1; i >= 0; i-- {
		found := false
		for j := len(visited) - 1; j >= 0; j-- {
			if path[i] == visited[j] {
				furthestPath = i
				furthestVisited = j
				found = true
			}
		}
		if found {
			break
		}
	}
	if furthestPath == -1 || furthestVisited == -1 {
		return path
	}

	out := make([]navmesh.PolyRef, 0, len(visited)-furthestVisited+len(path)-furthestPath-1)
	for i := len(visited) - 1; i >= furthestVisited; i-- {
		out = append(out, visited[i])
	}
	return append(out, path[furthestPath+1:]...)
}

func inRangeYZX(a, b geom.Vec3, r, h float64) bool {
	return geom.Dist2DSqr(a, b) < r*r && math.Abs(a[2]-b[2]) < h
}
