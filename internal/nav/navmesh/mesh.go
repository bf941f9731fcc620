// Package navmesh stores tiled convex-polygon navigation meshes and answers
// polygon, corridor and surface queries against them.
package navmesh

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"navmotion.ai/internal/nav/geom"
)

// Params fixes the tile grid of a mesh.
type Params struct {
	Origin     geom.Vec3
	TileWidth  float64
	TileHeight float64
	MaxTiles   int
}

type tileKey struct{ x, y int32 }

// Mesh is a set of tiles with generation-checked references. Tile changes take
// the write lock; queries only read.
type Mesh struct {
	params Params
	log    *zap.Logger

	mu    sync.RWMutex
	tiles []tile
	free  []int
	pos   map[tileKey]int
}

func NewMesh(p Params, log *zap.Logger) (*Mesh, error) {
	if p.TileWidth <= 0 || p.TileHeight <= 0 {
		return nil, fmt.Errorf("tile size %vx%v: %w", p.TileWidth, p.TileHeight, ErrInvalidParam)
	}
	if p.MaxTiles <= 0 {
		p.MaxTiles = 1024
	}
	if p.MaxTiles > tileMask {
		p.MaxTiles = tileMask
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Mesh{
		params: p,
		log:    log,
		pos:    make(map[tileKey]int),
	}, nil
}

func (m *Mesh) Params() Params { return m.params }

// TileCoords returns the grid cell containing pos.
func (m *Mesh) TileCoords(pos geom.Vec3) (int32, int32) {
	tx := int32(math.Floor((pos[0] - m.params.Origin[0]) / m.params.TileWidth))
	ty := int32(math.Floor((pos[1] - m.params.Origin[1]) / m.params.TileHeight))
	return tx, ty
}

func (m *Mesh) HasTile(x, y int32) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.pos[tileKey{x, y}]
	return ok
}

func (m *Mesh) TileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pos)
}

// AddTile links data into the mesh and returns the ref of its first polygon.
func (m *Mesh) AddTile(data *TileData) (PolyRef, error) {
	if err := data.validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := tileKey{data.X, data.Y}
	if _, ok := m.pos[key]; ok {
		return 0, fmt.Errorf("tile %d,%d: %w", data.X, data.Y, ErrTileExists)
	}
	slot := -1
	if n := len(m.free); n > 0 {
		slot = m.free[n-1]
		m.free = m.free[:n-1]
	} else if len(m.tiles) < m.params.MaxTiles {
		m.tiles = append(m.tiles, tile{gen: 1})
		slot = len(m.tiles) - 1
	}
	if slot < 0 {
		return 0, ErrOutOfSlots
	}

	t := &m.tiles[slot]
	t.inUse = true
	t.data = data
	t.links = make([][]link, len(data.Polys))
	t.bounds = make([][2]geom.Vec3, len(data.Polys))
	for i := range data.Polys {
		t.bounds[i] = polyBounds(t.polyVerts(i))
	}
	m.pos[key] = slot

	m.connectInternal(slot)
	for _, d := range [4][2]int32{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		if ns, ok := m.pos[tileKey{data.X + d[0], data.Y + d[1]}]; ok {
			m.connectTiles(slot, ns)
			m.connectTiles(ns, slot)
		}
	}
	m.log.Debug("navmesh tile added",
		zap.Int32("x", data.X), zap.Int32("y", data.Y),
		zap.Int("polys", len(data.Polys)), zap.Int("slot", slot))
	return encodeRef(t.gen, slot, 0), nil
}

// RemoveTile unlinks the tile at x,y and invalidates every ref into it.
func (m *Mesh) RemoveTile(x, y int32) (*TileData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := tileKey{x, y}
	slot, ok := m.pos[key]
	if !ok {
		return nil, fmt.Errorf("tile %d,%d: %w", x, y, ErrNoTile)
	}
	for _, d := range [4][2]int32{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
		if ns, ok := m.pos[tileKey{x + d[0], y + d[1]}]; ok {
			m.unconnect(ns, slot)
		}
	}
	t := &m.tiles[slot]
	data := t.data
	t.inUse = false
	t.data = nil
	t.links = nil
	t.bounds = nil
	t.gen++
	if t.gen == 0 {
		t.gen = 1
	}
	delete(m.pos, key)
	m.free = append(m.free, slot)
	m.log.Debug("navmesh tile removed", zap.Int32("x", x), zap.Int32("y", y), zap.Int("slot", slot))
	return data, nil
}

func (m *Mesh) connectInternal(slot int) {
	t := &m.tiles[slot]
	pad := portalEps + t.data.WalkableClimb
	for a := range t.data.Polys {
		for b := range t.data.Polys {
			if a == b || !overlapBounds(grow(t.bounds[a][0], -pad), grow(t.bounds[a][1], pad), t.bounds[b][0], t.bounds[b][1]) {
				continue
			}
			m.linkPolys(slot, a, slot, b, t.data.WalkableClimb)
		}
	}
}

// connectTiles adds links from polys of tile `from` into tile `to`.
func (m *Mesh) connectTiles(from, to int) {
	ft := &m.tiles[from]
	tt := &m.tiles[to]
	climb := math.Max(ft.data.WalkableClimb, tt.data.WalkableClimb)
	pad := portalEps + climb
	for a := range ft.data.Polys {
		amin := grow(ft.bounds[a][0], -pad)
		amax := grow(ft.bounds[a][1], pad)
		if !overlapBounds(amin, amax, tt.data.BMin, tt.data.BMax) {
			continue
		}
		for b := range tt.data.Polys {
			if !overlapBounds(amin, amax, tt.bounds[b][0], tt.bounds[b][1]) {
				continue
			}
			m.linkPolys(from, a, to, b, climb)
		}
	}
}

func (m *Mesh) linkPolys(sa, pa, sb, pb int, climb float64) {
	ta := &m.tiles[sa]
	tb := &m.tiles[sb]
	na := len(ta.data.Polys[pa].Verts)
	nb := len(tb.data.Polys[pb].Verts)
	for ea := 0; ea < na; ea++ {
		a0, a1 := ta.edge(pa, ea)
		for eb := 0; eb < nb; eb++ {
			b0, b1 := tb.edge(pb, eb)
			tmin, tmax, ok := edgeOverlap(a0, a1, b0, b1, climb)
			if !ok {
				continue
			}
			ta.links[pa] = append(ta.links[pa], link{
				ref:  encodeRef(tb.gen, sb, pb),
				edge: uint8(ea),
				tmin: tmin,
				tmax: tmax,
			})
		}
	}
}

func (m *Mesh) unconnect(slot, target int) {
	t := &m.tiles[slot]
	for pi, ls := range t.links {
		kept := ls[:0]
		for _, l := range ls {
			if _, s, _ := l.ref.decode(); s == target {
				continue
			}
			kept = append(kept, l)
		}
		t.links[pi] = kept
	}
}

// resolve returns the tile and poly index for ref. Caller holds the read lock.
func (m *Mesh) resolve(ref PolyRef) (*tile, int, error) {
	if ref == 0 {
		return nil, 0, ErrInvalidRef
	}
	gen, slot, pi := ref.decode()
	if slot >= len(m.tiles) {
		return nil, 0, ErrInvalidRef
	}
	t := &m.tiles[slot]
	if !t.inUse || t.gen != gen || pi >= len(t.data.Polys) {
		return nil, 0, ErrInvalidRef
	}
	return t, pi, nil
}

// IsValidRef reports whether ref still resolves to a loaded polygon.
func (m *Mesh) IsValidRef(ref PolyRef) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, _, err := m.resolve(ref)
	return err == nil
}

// PolyFlags returns the flags of ref.
func (m *Mesh) PolyFlags(ref PolyRef) (uint16, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, pi, err := m.resolve(ref)
	if err != nil {
		return 0, err
	}
	return t.data.Polys[pi].Flags, nil
}

// SetPolyFlags changes the flags of ref, e.g. to close a door.
func (m *Mesh) SetPolyFlags(ref PolyRef, flags uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, pi, err := m.resolve(ref)
	if err != nil {
		return err
	}
	t.data.Polys[pi].Flags = flags
	return nil
}

// grow shifts every component of v by d.
func grow(v geom.Vec3, d float64) geom.Vec3 {
	return geom.V(v[0]+d, v[1]+d, v[2]+d)
}
