package pathfinder

import (
	"strings"

	"navmotion.ai/internal/nav/geom"
	"navmotion.ai/internal/nav/navmesh"
)

// PathType classifies the last computed path. Values combine as flags.
type PathType uint16

const (
	Blank        PathType = 0
	Normal       PathType = 1 << 0 // full path to the destination
	Shortcut     PathType = 1 << 1 // straight line, no mesh data used
	Incomplete   PathType = 1 << 2 // ends at the closest reachable point
	NoPath       PathType = 1 << 3 // no valid path; points are a straight fallback
	NotUsingPath PathType = 1 << 4 // points do not follow the mesh
	Short        PathType = 1 << 5 // point path hit the length limit
	FarFromStart PathType = 1 << 6 // start was far from any polygon
	FarFromEnd   PathType = 1 << 7 // destination was far from any polygon
)

func (t PathType) Has(f PathType) bool { return t&f != 0 }

func (t PathType) String() string {
	if t == Blank {
		return "BLANK"
	}
	names := []struct {
		f PathType
		n string
	}{
		{Normal, "NORMAL"}, {Shortcut, "SHORTCUT"}, {Incomplete, "INCOMPLETE"},
		{NoPath, "NOPATH"}, {NotUsingPath, "NOT_USING_PATH"}, {Short, "SHORT"},
		{FarFromStart, "FAR_FROM_START"}, {FarFromEnd, "FAR_FROM_END"},
	}
	var parts []string
	for _, e := range names {
		if t.Has(e.f) {
			parts = append(parts, e.n)
		}
	}
	return strings.Join(parts, "|")
}

// Traits are the mover properties that affect path selection.
type Traits struct {
	CanWalk           bool
	CanSwim           bool
	Flying            bool
	Swimming          bool
	IgnorePathfinding bool
}

// Source is the entity a PathFinder plans for.
type Source interface {
	Position() geom.Vec3
	PathTraits() Traits
}

// Navigation is the mesh query surface a PathFinder needs. *navmesh.Query
// implements it.
type Navigation interface {
	TileLoaded(pos geom.Vec3) bool
	IsValid(ref navmesh.PolyRef) bool
	PolygonLookup(center, extents geom.Vec3, filter *navmesh.Filter) (navmesh.PolyRef, geom.Vec3, error)
	CorridorSearch(startRef, endRef navmesh.PolyRef, startPos, endPos geom.Vec3, filter *navmesh.Filter, maxLen int) (navmesh.CorridorResult, error)
	StraightPath(startPos, endPos geom.Vec3, corridor []navmesh.PolyRef, maxPoints int) ([]navmesh.StraightVert, error)
	MoveAlongSurface(startRef navmesh.PolyRef, startPos, endPos geom.Vec3, filter *navmesh.Filter, maxVisited int) (geom.Vec3, []navmesh.PolyRef, error)
	ClosestPointOnPoly(ref navmesh.PolyRef, pos geom.Vec3) (geom.Vec3, bool, error)
	ClosestPointOnPolyBoundary(ref navmesh.PolyRef, pos geom.Vec3) (geom.Vec3, error)
	PolyHeight(ref navmesh.PolyRef, pos geom.Vec3) (float64, error)
}

// HeightQuery stands for terrain height and line-of-sight services.
// *navmesh.Surface implements it.
type HeightQuery interface {
	HeightAt(x, y, zHint, maxSearch float64) (float64, bool)
	HitPosition(from, to geom.Vec3) (geom.Vec3, bool)
}

type Options struct {
	MaxPathLength        int     // corridor polygons
	MaxPointPathLength   int     // path points
	SmoothStepSize       float64 // advance per smoothing iteration
	SmoothPathSlop       float64 // steer target acceptance radius
	MaxSteerPoints       int
	FarFromPolyDistance  float64
	SmoothShortMoveRange float64   // moves shorter than this use smoothing
	Extents              geom.Vec3 // polygon lookup box half size
	TallExtentZ          float64   // retry lookup height
	ForceDestFactor      float64
	CorridorReusePrefix  float64
}

func DefaultOptions() Options {
	return Options{
		MaxPathLength:        74,
		MaxPointPathLength:   74,
		SmoothStepSize:       4,
		SmoothPathSlop:       0.3,
		MaxSteerPoints:       3,
		FarFromPolyDistance:  7,
		SmoothShortMoveRange: 5,
		Extents:              geom.V(3, 3, 5),
		TallExtentZ:          200,
		ForceDestFactor:      0.3,
		CorridorReusePrefix:  0.8,
	}
}

func (o *Options) normalize() {
	d := DefaultOptions()
	if o.MaxPathLength <= 0 {
		o.MaxPathLength = d.MaxPathLength
	}
	if o.MaxPointPathLength <= 0 {
		o.MaxPointPathLength = d.MaxPointPathLength
	}
	if o.SmoothStepSize <= 0 {
		o.SmoothStepSize = d.SmoothStepSize
	}
	if o.SmoothPathSlop <= 0 {
		o.SmoothPathSlop = d.SmoothPathSlop
	}
	if o.MaxSteerPoints <= 0 {
		o.MaxSteerPoints = d.MaxSteerPoints
	}
	if o.FarFromPolyDistance <= 0 {
		o.FarFromPolyDistance = d.FarFromPolyDistance
	}
	if o.Extents == (geom.Vec3{}) {
		o.Extents = d.Extents
	}
	if o.TallExtentZ <= 0 {
		o.TallExtentZ = d.TallExtentZ
	}
	if o.ForceDestFactor <= 0 {
		o.ForceDestFactor = d.ForceDestFactor
	}
	if o.CorridorReusePrefix <= 0 || o.CorridorReusePrefix > 1 {
		o.CorridorReusePrefix = d.CorridorReusePrefix
	}
}
