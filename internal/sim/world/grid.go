package world

import (
	"math"
	"sort"
	"sync"

	"navmotion.ai/internal/nav/geom"
)

// cellKey addresses one scheduling cell on the XY plane.
type cellKey struct{ X, Y int32 }

func (w *World) cellOf(p geom.Vec3) cellKey {
	return cellKey{
		X: int32(math.Floor(p[0] / w.cfg.GridSize)),
		Y: int32(math.Floor(p[1] / w.cfg.GridSize)),
	}
}

// grid is the unit set of one cell, kept sorted by id. One worker owns a
// grid for the whole update phase of a tick.
type grid struct {
	key   cellKey
	units []*Unit
}

func (g *grid) add(u *Unit) {
	i := sort.Search(len(g.units), func(i int) bool { return g.units[i].id >= u.id })
	g.units = append(g.units, nil)
	copy(g.units[i+1:], g.units[i:])
	g.units[i] = u
}

func (g *grid) remove(u *Unit) {
	for i, x := range g.units {
		if x == u {
			g.units = append(g.units[:i], g.units[i+1:]...)
			return
		}
	}
}

func (w *World) placeUnit(u *Unit) {
	u.cell = w.cellOf(u.pos)
	g := w.grids[u.cell]
	if g == nil {
		g = &grid{key: u.cell}
		w.grids[u.cell] = g
	}
	g.add(u)
}

func (w *World) unplaceUnit(u *Unit) {
	g := w.grids[u.cell]
	if g == nil {
		return
	}
	g.remove(u)
	if len(g.units) == 0 {
		delete(w.grids, u.cell)
	}
}

// sortedGrids returns the grids in key order.
func (w *World) sortedGrids() []*grid {
	out := make([]*grid, 0, len(w.grids))
	for _, g := range w.grids {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].key.X != out[j].key.X {
			return out[i].key.X < out[j].key.X
		}
		return out[i].key.Y < out[j].key.Y
	})
	return out
}

// updateGrids runs every grid on at most cfg.Workers goroutines and waits
// for all of them.
func (w *World) updateGrids(grids []*grid, diff int32) {
	if w.cfg.Workers <= 1 || len(grids) <= 1 {
		for _, g := range grids {
			for _, u := range g.units {
				u.update(diff)
			}
		}
		return
	}
	sem := make(chan struct{}, w.cfg.Workers)
	var wg sync.WaitGroup
	for _, g := range grids {
		wg.Add(1)
		sem <- struct{}{}
		go func(g *grid) {
			defer wg.Done()
			defer func() { <-sem }()
			for _, u := range g.units {
				u.update(diff)
			}
		}(g)
	}
	wg.Wait()
}

// handoff moves units that left their cell during the tick. It runs after
// all workers joined.
func (w *World) handoff() int {
	var moved []*Unit
	for _, g := range w.grids {
		for _, u := range g.units {
			if w.cellOf(u.pos) != u.cell {
				moved = append(moved, u)
			}
		}
	}
	for _, u := range moved {
		w.unplaceUnit(u)
		w.placeUnit(u)
	}
	return len(moved)
}
