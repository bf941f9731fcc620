// Package pathfinder turns a start/destination pair into a point path over a
// navigation mesh and classifies how far that path can be trusted.
package pathfinder

import (
	"math"

	"go.uber.org/zap"

	"navmotion.ai/internal/nav/geom"
	"navmotion.ai/internal/nav/navmesh"
)

// PathFinder plans paths for one Source. It is not safe for concurrent use;
// each mover owns its own.
type PathFinder struct {
	nav    Navigation
	height HeightQuery
	src    Source
	opts   Options
	log    *zap.Logger

	useStraightPath bool
	pointLimit      int
	filter          navmesh.Filter

	corridor []navmesh.PolyRef
	points   []geom.Vec3
	typ      PathType

	start     geom.Vec3
	end       geom.Vec3
	actualEnd geom.Vec3

	forceDest  bool
	calculated bool
	dirty      bool
	tilesSeen  bool
}

func New(nav Navigation, height HeightQuery, src Source, opts Options, log *zap.Logger) *PathFinder {
	opts.normalize()
	if log == nil {
		log = zap.NewNop()
	}
	return &PathFinder{
		nav:             nav,
		height:          height,
		src:             src,
		opts:            opts,
		log:             log,
		useStraightPath: true,
		pointLimit:      opts.MaxPointPathLength,
		filter:          navmesh.DefaultFilter(),
	}
}

func (p *PathFinder) Path() []geom.Vec3            { return p.points }
func (p *PathFinder) Type() PathType               { return p.typ }
func (p *PathFinder) StartPosition() geom.Vec3     { return p.start }
func (p *PathFinder) EndPosition() geom.Vec3       { return p.end }
func (p *PathFinder) ActualEndPosition() geom.Vec3 { return p.actualEnd }
func (p *PathFinder) Corridor() []navmesh.PolyRef  { return p.corridor }
func (p *PathFinder) Length() float64              { return geom.PathLength(p.points) }
func (p *PathFinder) UsesStraightPath() bool       { return p.useStraightPath }
func (p *PathFinder) PathLengthLimitPoints() int   { return p.pointLimit }

// SetUseStraightPath selects corner points (true) or a smoothed, surface
// following path (false).
func (p *PathFinder) SetUseStraightPath(v bool) {
	if p.useStraightPath != v {
		p.dirty = true
	}
	p.useStraightPath = v
}

// SetPathLengthLimit caps the point path so it covers roughly dist.
func (p *PathFinder) SetPathLengthLimit(dist float64) {
	limit := p.opts.MaxPointPathLength
	if n := int(dist / p.opts.SmoothStepSize); n < limit {
		limit = n
	}
	if limit < 3 {
		limit = 3
	}
	if limit != p.pointLimit {
		p.dirty = true
	}
	p.pointLimit = limit
}

// Calculate plans a path from the source's current position to dest. It
// reports false when nothing changed since the previous call: same endpoints,
// same options and a mesh whose referenced polygons are still valid.
func (p *PathFinder) Calculate(dest geom.Vec3, forceDest bool) bool {
	start := p.src.Position()
	loaded := p.nav.TileLoaded(start) && p.nav.TileLoaded(dest)
	if p.calculated && !p.dirty && forceDest == p.forceDest && loaded == p.tilesSeen &&
		geom.Equal(start, p.start) && geom.Equal(dest, p.end) && p.corridorValid() {
		return false
	}

	p.start = start
	p.end = dest
	p.actualEnd = dest
	p.forceDest = forceDest
	p.calculated = true
	p.dirty = false
	p.tilesSeen = loaded

	traits := p.src.PathTraits()
	p.setFilter(traits)
	if !p.corridorValid() {
		// A tile under the old corridor was reloaded; none of it can be reused.
		p.corridor = p.corridor[:0]
	}

	if traits.IgnorePathfinding || traits.Flying || (traits.Swimming && !traits.CanWalk) || !loaded {
		p.buildShortcut()
		p.typ = Shortcut | NotUsingPath
		return true
	}

	p.buildPolyPath(start, dest, traits)
	return true
}

func (p *PathFinder) corridorValid() bool {
	for _, ref := range p.corridor {
		if !p.nav.IsValid(ref) {
			return false
		}
	}
	return true
}

func (p *PathFinder) setFilter(t Traits) {
	f := navmesh.DefaultFilter()
	f.Include = navmesh.FlagDoor
	if t.CanWalk || !t.CanSwim {
		f.Include |= navmesh.FlagWalk
	}
	if t.CanSwim {
		f.Include |= navmesh.FlagSwim
	}
	p.filter = f
}

func (p *PathFinder) buildShortcut() {
	p.corridor = p.corridor[:0]
	p.points = append(p.points[:0], p.start, p.actualEnd)
	p.normalizePath()
}

// polyByLocation resolves the polygon under point: first from the current
// corridor, then the normal lookup box, then a tall one.
func (p *PathFinder) polyByLocation(point geom.Vec3) (navmesh.PolyRef, geom.Vec3, float64) {
	if ref, closest, d := p.polyOnCorridor(point); ref != 0 {
		return ref, closest, d
	}
	if ref, closest, err := p.nav.PolygonLookup(point, p.opts.Extents, &p.filter); err == nil {
		return ref, closest, geom.Dist(point, closest)
	}
	tall := p.opts.Extents
	tall[2] = p.opts.TallExtentZ
	if ref, closest, err := p.nav.PolygonLookup(point, tall, &p.filter); err == nil {
		return ref, closest, geom.Dist(point, closest)
	}
	return 0, point, math.MaxFloat64
}

func (p *PathFinder) polyOnCorridor(point geom.Vec3) (navmesh.PolyRef, geom.Vec3, float64) {
	var best navmesh.PolyRef
	var bestPt geom.Vec3
	minD := math.MaxFloat64
	for _, ref := range p.corridor {
		closest, _, err := p.nav.ClosestPointOnPoly(ref, point)
		if err != nil {
			continue
		}
		d := geom.DistSqr(point, closest)
		if d < minD {
			minD = d
			best = ref
			bestPt = closest
		}
		if minD < 1e-6 {
			break
		}
	}
	if minD < 3 {
		return best, bestPt, math.Sqrt(minD)
	}
	return 0, point, math.MaxFloat64
}

func (p *PathFinder) buildPolyPath(start, end geom.Vec3, traits Traits) {
	startRef, _, distStart := p.polyByLocation(start)
	endRef, endClosest, distEnd := p.polyByLocation(end)

	if startRef == 0 || endRef == 0 {
		p.log.Debug("no polygon under path endpoint",
			zap.Float64s("start", start[:]), zap.Float64s("end", end[:]))
		p.buildShortcut()
		if traits.CanSwim && traits.Swimming {
			p.typ = Normal | NotUsingPath
		} else {
			p.typ = NoPath
		}
		return
	}

	far := distStart > p.opts.FarFromPolyDistance || distEnd > p.opts.FarFromPolyDistance
	var farFlags PathType
	if distStart > p.opts.FarFromPolyDistance {
		farFlags |= FarFromStart
	}
	if distEnd > p.opts.FarFromPolyDistance {
		farFlags |= FarFromEnd
	}
	if far {
		end = endClosest
		p.actualEnd = endClosest
	}

	if startRef == endRef {
		p.corridor = append(p.corridor[:0], startRef)
		p.buildShortcut()
		if far {
			p.typ = Incomplete | farFlags
		} else {
			p.typ = Normal
		}
		p.applyForceDest()
		return
	}

	partial, ok := p.buildCorridor(startRef, endRef, start, end)
	if !ok {
		p.buildShortcut()
		p.typ = NoPath
		return
	}

	if partial || far {
		p.typ = Incomplete | farFlags
	} else {
		p.typ = Normal
	}
	p.buildPointPath(start, end)
}

// buildCorridor fills p.corridor, reusing the previous one when the source is
// still walking it.
func (p *PathFinder) buildCorridor(startRef, endRef navmesh.PolyRef, start, end geom.Vec3) (partial bool, ok bool) {
	startIdx, endIdx := -1, -1
	for i, ref := range p.corridor {
		if ref == startRef && startIdx < 0 {
			startIdx = i
		}
		if ref == endRef && startIdx >= 0 {
			endIdx = i
			break
		}
	}

	switch {
	case startIdx >= 0 && endIdx >= 0:
		p.corridor = append(p.corridor[:0], p.corridor[startIdx:endIdx+1]...)
		return false, true

	case startIdx >= 0:
		remaining := len(p.corridor) - startIdx
		prefix := int(float64(remaining)*p.opts.CorridorReusePrefix + 0.5)
		if prefix < 1 {
			prefix = 1
		}
		if prefix > p.opts.MaxPathLength-1 {
			prefix = p.opts.MaxPathLength - 1
		}
		kept := append([]navmesh.PolyRef(nil), p.corridor[startIdx:startIdx+prefix]...)
		suffixStart := kept[len(kept)-1]
		suffixPos, err := p.nav.ClosestPointOnPolyBoundary(suffixStart, end)
		if err != nil {
			break
		}
		res, err := p.nav.CorridorSearch(suffixStart, endRef, suffixPos, end, &p.filter, p.opts.MaxPathLength-len(kept)+1)
		if err != nil || len(res.Polys) == 0 {
			break
		}
		p.corridor = append(kept, res.Polys[1:]...)
		return res.Partial, true
	}

	res, err := p.nav.CorridorSearch(startRef, endRef, start, end, &p.filter, p.opts.MaxPathLength)
	if err != nil || len(res.Polys) == 0 {
		p.corridor = p.corridor[:0]
		return false, false
	}
	p.corridor = append(p.corridor[:0], res.Polys...)
	return res.Partial, true
}

func (p *PathFinder) buildPointPath(start, end geom.Vec3) {
	var pts []geom.Vec3
	var ok, partial bool
	smooth := !p.useStraightPath ||
		(p.opts.SmoothShortMoveRange > 0 && geom.Dist(start, end) < p.opts.SmoothShortMoveRange)
	if smooth {
		pts, ok = p.smoothPath(start, end)
	} else {
		verts, err := p.nav.StraightPath(start, end, p.corridor, p.pointLimit)
		ok = err == nil
		for _, v := range verts {
			pts = append(pts, v.Pos)
		}
		partial = len(verts) > 0 && verts[len(verts)-1].Flags&navmesh.StraightPartial != 0
	}

	if !ok || len(pts) < 2 {
		p.buildShortcut()
		p.typ = NoPath
		return
	}
	if len(pts) >= p.pointLimit {
		p.buildShortcut()
		p.typ = Short
		return
	}

	if partial {
		p.typ = p.typ&^Normal | Incomplete
	}

	p.points = append(p.points[:0], pts...)
	p.points[0] = p.start
	p.normalizePath()
	p.actualEnd = p.points[len(p.points)-1]
	p.applyForceDest()
}

// applyForceDest snaps the path onto the requested destination. A path that
// ends close enough keeps its points and only swaps the last one; otherwise it
// degrades to a straight line.
func (p *PathFinder) applyForceDest() {
	if !p.forceDest {
		return
	}
	if p.typ.Has(Normal) && geom.Dist2D(p.end, p.actualEnd) <= 1 && math.Abs(p.end[2]-p.actualEnd[2]) <= 1 {
		return
	}
	if geom.DistSqr(p.actualEnd, p.end) < p.opts.ForceDestFactor*geom.DistSqr(p.start, p.end) {
		p.actualEnd = p.end
		p.points[len(p.points)-1] = p.end
	} else {
		p.actualEnd = p.end
		p.buildShortcut()
	}
	p.typ = Normal | NotUsingPath
}

// normalizePath drops ground points onto the terrain. The first point is the
// source position and is left alone.
func (p *PathFinder) normalizePath() {
	if p.height == nil {
		return
	}
	t := p.src.PathTraits()
	if t.Flying || t.Swimming {
		return
	}
	for i := 1; i < len(p.points); i++ {
		pt := p.points[i]
		if h, ok := p.height.HeightAt(pt[0], pt[1], pt[2]+0.5, 5); ok {
			p.points[i][2] = h
		}
	}
}
