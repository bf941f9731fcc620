package navmesh

import (
	"math"

	"navmotion.ai/internal/nav/geom"
)

// Poly flags. Filters include or exclude polygons by these bits.
const (
	FlagWalk     uint16 = 1 << 0
	FlagSwim     uint16 = 1 << 1
	FlagDoor     uint16 = 1 << 2
	FlagDisabled uint16 = 1 << 3

	FlagAll uint16 = 0xffff
)

// Area ids index Filter.AreaCost.
const (
	AreaGround uint8 = 0
	AreaWater  uint8 = 1
	AreaSlime  uint8 = 2
	AreaRoad   uint8 = 3

	MaxAreas = 16
)

// Poly is a convex polygon with counter-clockwise vertex order (seen from +z).
type Poly struct {
	Verts []uint16 `msgpack:"v"`
	Flags uint16   `msgpack:"f"`
	Area  uint8    `msgpack:"a"`
}

// TileData is the immutable payload of one tile. Tiles are addressed by their
// grid coordinates X/Y; BMin/BMax bound every vertex.
type TileData struct {
	X             int32       `msgpack:"x"`
	Y             int32       `msgpack:"y"`
	BMin          geom.Vec3   `msgpack:"bmin"`
	BMax          geom.Vec3   `msgpack:"bmax"`
	WalkableClimb float64     `msgpack:"climb"`
	Verts         []geom.Vec3 `msgpack:"verts"`
	Polys         []Poly      `msgpack:"polys"`
}

func (d *TileData) validate() error {
	if d == nil || len(d.Polys) == 0 {
		return ErrInvalidParam
	}
	if len(d.Polys) > polyMask {
		return ErrInvalidParam
	}
	for _, p := range d.Polys {
		if len(p.Verts) < 3 {
			return ErrInvalidParam
		}
		for _, vi := range p.Verts {
			if int(vi) >= len(d.Verts) {
				return ErrInvalidParam
			}
		}
	}
	return nil
}

// link is one traversable portal from a polygon edge into a neighbour polygon.
// The portal spans [tmin,tmax] of the edge v[edge]->v[edge+1].
type link struct {
	ref  PolyRef
	edge uint8
	tmin float64
	tmax float64
}

type tile struct {
	gen    uint16
	inUse  bool
	data   *TileData
	links  [][]link
	bounds [][2]geom.Vec3
}

func (t *tile) polyVerts(pi int) []geom.Vec3 {
	p := &t.data.Polys[pi]
	out := make([]geom.Vec3, len(p.Verts))
	for i, vi := range p.Verts {
		out[i] = t.data.Verts[vi]
	}
	return out
}

func (t *tile) edge(pi, e int) (geom.Vec3, geom.Vec3) {
	p := &t.data.Polys[pi]
	n := len(p.Verts)
	return t.data.Verts[p.Verts[e]], t.data.Verts[p.Verts[(e+1)%n]]
}

func polyBounds(verts []geom.Vec3) [2]geom.Vec3 {
	bmin := geom.V(math.Inf(1), math.Inf(1), math.Inf(1))
	bmax := geom.V(math.Inf(-1), math.Inf(-1), math.Inf(-1))
	for _, v := range verts {
		for k := 0; k < 3; k++ {
			bmin[k] = math.Min(bmin[k], v[k])
			bmax[k] = math.Max(bmax[k], v[k])
		}
	}
	return [2]geom.Vec3{bmin, bmax}
}

func overlapBounds(amin, amax, bmin, bmax geom.Vec3) bool {
	return !(amin[0] > bmax[0] || amax[0] < bmin[0] ||
		amin[1] > bmax[1] || amax[1] < bmin[1] ||
		amin[2] > bmax[2] || amax[2] < bmin[2])
}

const portalEps = 1e-3

// edgeOverlap matches edge a0->a1 against an opposite, collinear edge b0->b1
// and returns the shared span as parameters along a.
func edgeOverlap(a0, a1, b0, b1 geom.Vec3, climb float64) (float64, float64, bool) {
	dx := a1[0] - a0[0]
	dy := a1[1] - a0[1]
	l2 := dx*dx + dy*dy
	if l2 < portalEps*portalEps {
		return 0, 0, false
	}
	ex := b1[0] - b0[0]
	ey := b1[1] - b0[1]
	if dx*ex+dy*ey >= 0 {
		return 0, 0, false
	}
	l := math.Sqrt(l2)
	// Perpendicular offset of b from the line through a.
	if math.Abs(dx*(b0[1]-a0[1])-dy*(b0[0]-a0[0]))/l > portalEps ||
		math.Abs(dx*(b1[1]-a0[1])-dy*(b1[0]-a0[0]))/l > portalEps {
		return 0, 0, false
	}
	t0 := (dx*(b0[0]-a0[0]) + dy*(b0[1]-a0[1])) / l2
	t1 := (dx*(b1[0]-a0[0]) + dy*(b1[1]-a0[1])) / l2
	tmin := math.Max(0, math.Min(t0, t1))
	tmax := math.Min(1, math.Max(t0, t1))
	if (tmax-tmin)*l < portalEps {
		return 0, 0, false
	}
	// Heights of both edges at the portal ends must stay within climb.
	for _, u := range [2]float64{tmin, tmax} {
		za := a0[2] + (a1[2]-a0[2])*u
		s := 0.0
		if bl := math.Hypot(ex, ey); bl > 0 {
			px := a0[0] + dx*u
			py := a0[1] + dy*u
			s = ((px-b0[0])*ex + (py-b0[1])*ey) / (bl * bl)
		}
		zb := b0[2] + (b1[2]-b0[2])*s
		if math.Abs(za-zb) > climb+portalEps {
			return 0, 0, false
		}
	}
	return tmin, tmax, true
}
