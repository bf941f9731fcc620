package pathfinder

import (
	"strings"
	"testing"

	"navmotion.ai/internal/nav/geom"
	"navmotion.ai/internal/nav/navmesh"
)

type mover struct {
	pos    geom.Vec3
	traits Traits
}

func (m *mover) Position() geom.Vec3 { return m.pos }
func (m *mover) PathTraits() Traits  { return m.traits }

func walker(x, y float64) *mover {
	return &mover{pos: geom.V(x, y, 0), traits: Traits{CanWalk: true}}
}

func meshFrom(t *testing.T, l navmesh.GridLayout) *navmesh.Query {
	t.Helper()
	m, err := navmesh.NewMesh(l.Params(), nil)
	if err != nil {
		t.Fatalf("mesh: %v", err)
	}
	tiles, err := navmesh.BuildGrid(l)
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	for _, d := range tiles {
		if _, err := m.AddTile(d); err != nil {
			t.Fatalf("add tile: %v", err)
		}
	}
	return navmesh.NewQuery(m, 0)
}

func rows(n int, row string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = row
	}
	return out
}

func openField(t *testing.T) *navmesh.Query {
	return meshFrom(t, navmesh.GridLayout{TileCells: 16, Rows: rows(4, strings.Repeat(".", 64))})
}

func TestConnectedRegionIsNormal(t *testing.T) {
	q := openField(t)
	src := walker(1, 1)
	pf := New(q, navmesh.NewSurface(q), src, DefaultOptions(), nil)

	dest := geom.V(60, 3, 0)
	if !pf.Calculate(dest, false) {
		t.Fatalf("first calculate must report a change")
	}
	if pf.Type() != Normal {
		t.Fatalf("type=%v", pf.Type())
	}
	path := pf.Path()
	if len(path) < 2 || !geom.Equal(path[0], src.pos) || geom.Dist(path[len(path)-1], dest) > 1e-6 {
		t.Fatalf("path=%v", path)
	}
	if geom.Dist(pf.ActualEndPosition(), dest) > 1e-6 {
		t.Fatalf("actual end=%v", pf.ActualEndPosition())
	}
	if !geom.Equal(pf.StartPosition(), src.pos) || !geom.Equal(pf.EndPosition(), dest) || !pf.UsesStraightPath() {
		t.Fatalf("start=%v end=%v straight=%v", pf.StartPosition(), pf.EndPosition(), pf.UsesStraightPath())
	}
}

func TestUnloadedDestinationIsShortcut(t *testing.T) {
	q := openField(t)
	pf := New(q, nil, walker(1, 1), DefaultOptions(), nil)
	dest := geom.V(500, 1, 0)
	pf.Calculate(dest, false)
	if pf.Type() != Shortcut|NotUsingPath {
		t.Fatalf("type=%v", pf.Type())
	}
	if p := pf.Path(); len(p) != 2 || !geom.Equal(p[1], dest) {
		t.Fatalf("path=%v", p)
	}
}

func TestFlyingMoverGetsShortcut(t *testing.T) {
	q := openField(t)
	src := walker(1, 1)
	src.traits.Flying = true
	pf := New(q, nil, src, DefaultOptions(), nil)
	pf.Calculate(geom.V(60, 3, 10), false)
	if !pf.Type().Has(Shortcut) || len(pf.Path()) != 2 {
		t.Fatalf("type=%v path=%v", pf.Type(), pf.Path())
	}
}

func TestDisconnectedRegionIsIncomplete(t *testing.T) {
	q := meshFrom(t, navmesh.GridLayout{Rows: rows(3, "..........#..........")})
	pf := New(q, nil, walker(1, 1), DefaultOptions(), nil)
	pf.Calculate(geom.V(18, 1, 0), false)
	if !pf.Type().Has(Incomplete) {
		t.Fatalf("type=%v", pf.Type())
	}
	if end := pf.ActualEndPosition(); end[0] > 10+1e-6 {
		t.Fatalf("actual end %v outside the reachable region", end)
	}
}

func TestRepeatCalculateReportsUnchanged(t *testing.T) {
	q := openField(t)
	src := walker(1, 1)
	pf := New(q, nil, src, DefaultOptions(), nil)
	dest := geom.V(40, 2, 0)
	if !pf.Calculate(dest, false) {
		t.Fatalf("expected change")
	}
	if pf.Calculate(dest, false) {
		t.Fatalf("identical inputs must report unchanged")
	}
	pf.SetUseStraightPath(false)
	if !pf.Calculate(dest, false) {
		t.Fatalf("option change must recompute")
	}
	src.pos = geom.V(5, 1, 0)
	if !pf.Calculate(dest, false) {
		t.Fatalf("moved source must recompute")
	}
}

func TestSmoothPathOnFlatMesh(t *testing.T) {
	l := navmesh.GridLayout{
		Origin:    [3]float64{-4, -4, 0},
		TileCells: 32,
		Rows:      rows(8, strings.Repeat(".", 112)),
	}
	q := meshFrom(t, l)
	pf := New(q, navmesh.NewSurface(q), walker(0, 0), DefaultOptions(), nil)
	pf.SetUseStraightPath(false)
	dest := geom.V(100, 0, 0)
	pf.Calculate(dest, false)
	if pf.Type() != Normal {
		t.Fatalf("type=%v", pf.Type())
	}
	path := pf.Path()
	if len(path) <= 2 {
		t.Fatalf("smoothed path should have intermediate points: %v", path)
	}
	if geom.Dist(path[len(path)-1], dest) > 1e-6 {
		t.Fatalf("end=%v", path[len(path)-1])
	}
	for i := 1; i < len(path); i++ {
		if geom.Dist(path[i-1], path[i]) > 4+1e-6 {
			t.Fatalf("step %d too long: %v -> %v", i, path[i-1], path[i])
		}
	}
}

func wallLayout() navmesh.GridLayout {
	return navmesh.GridLayout{CellSize: 4, Rows: []string{
		"..........",
		"#########.",
		"..........",
	}}
}

func TestStraightPathCorners(t *testing.T) {
	q := meshFrom(t, wallLayout())
	pf := New(q, nil, walker(2, 10), DefaultOptions(), nil)
	pf.Calculate(geom.V(2, 2, 0), false)
	want := []geom.Vec3{geom.V(2, 10, 0), geom.V(36, 8, 0), geom.V(36, 4, 0), geom.V(2, 2, 0)}
	got := pf.Path()
	if pf.Type() != Normal || len(got) != len(want) {
		t.Fatalf("type=%v path=%v", pf.Type(), got)
	}
	for i := range want {
		if geom.Dist(got[i], want[i]) > 1e-6 {
			t.Fatalf("point %d=%v want %v", i, got[i], want[i])
		}
	}
}

func TestPathLengthLimitMarksShort(t *testing.T) {
	q := meshFrom(t, wallLayout())
	pf := New(q, nil, walker(2, 10), DefaultOptions(), nil)
	pf.SetPathLengthLimit(8)
	if n := pf.PathLengthLimitPoints(); n < 3 || n >= DefaultOptions().MaxPointPathLength {
		t.Fatalf("limit points=%d", n)
	}
	pf.Calculate(geom.V(2, 2, 0), false)
	if pf.Type() != Short || len(pf.Path()) != 2 {
		t.Fatalf("type=%v path=%v", pf.Type(), pf.Path())
	}
}

func TestForceDestinationSnapsEnd(t *testing.T) {
	q := meshFrom(t, navmesh.GridLayout{TileCells: 10, Rows: rows(4, strings.Repeat(".", 20))})
	dest := geom.V(18, 5.5, 0)

	pf := New(q, nil, walker(1, 1), DefaultOptions(), nil)
	pf.Calculate(dest, false)
	if pf.Type() != Normal {
		t.Fatalf("type=%v", pf.Type())
	}
	if end := pf.ActualEndPosition(); geom.Dist2D(end, geom.V(18, 4, 0)) > 1e-6 {
		t.Fatalf("unforced end=%v", end)
	}

	pf = New(q, nil, walker(1, 1), DefaultOptions(), nil)
	pf.Calculate(dest, true)
	if pf.Type() != Normal|NotUsingPath {
		t.Fatalf("type=%v", pf.Type())
	}
	path := pf.Path()
	if !geom.Equal(path[len(path)-1], dest) || !geom.Equal(pf.ActualEndPosition(), dest) {
		t.Fatalf("forced path=%v", path)
	}
}

func TestShortenPathUntilDist(t *testing.T) {
	q := openField(t)
	pf := New(q, nil, walker(1, 1), DefaultOptions(), nil)
	target := geom.V(60, 1, 0)
	pf.Calculate(target, false)
	pf.ShortenPathUntilDist(target, 5)
	path := pf.Path()
	if last := path[len(path)-1]; geom.Dist(last, geom.V(55, 1, 0)) > 1e-6 {
		t.Fatalf("last=%v", last)
	}
}

func TestCorridorReusedWhileWalking(t *testing.T) {
	q := meshFrom(t, navmesh.GridLayout{Rows: rows(2, "0101010101010101")})
	src := walker(0.5, 0.5)
	pf := New(q, nil, src, DefaultOptions(), nil)
	dest := geom.V(15.5, 0.5, 0.5)
	pf.Calculate(dest, false)
	first := append([]navmesh.PolyRef(nil), pf.Corridor()...)
	if len(first) != 16 {
		t.Fatalf("corridor=%d", len(first))
	}

	src.pos = geom.V(3.5, 0.5, 0.5)
	pf.Calculate(dest, false)
	got := pf.Corridor()
	if len(got) != 13 || got[0] != first[3] || got[12] != first[15] {
		t.Fatalf("expected corridor cut from the previous one: %v", got)
	}
}

func TestFixupCorridor(t *testing.T) {
	path := []navmesh.PolyRef{1, 2, 3, 4}
	if got := fixupCorridor(path, []navmesh.PolyRef{1, 2}); len(got) != 3 || got[0] != 2 {
		t.Fatalf("got %v", got)
	}
	if got := fixupCorridor(path, []navmesh.PolyRef{1, 9}); len(got) != 5 || got[0] != 9 || got[1] != 1 {
		t.Fatalf("got %v", got)
	}
	if got := fixupCorridor(path, []navmesh.PolyRef{7}); len(got) != 4 {
		t.Fatalf("got %v", got)
	}
}

func TestPathTypeString(t *testing.T) {
	if s := (Normal | NotUsingPath).String(); s != "NORMAL|NOT_USING_PATH" {
		t.Fatalf("got %q", s)
	}
}

func TestRecalculateAfterTileReload(t *testing.T) {
	q := openField(t)
	src := walker(1, 1)
	pf := New(q, nil, src, DefaultOptions(), nil)
	dest := geom.V(60, 3, 0)
	pf.Calculate(dest, false)
	if pf.Type() != Normal {
		t.Fatalf("type=%v", pf.Type())
	}

	data, err := q.Mesh().RemoveTile(1, 0)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := q.Mesh().AddTile(data); err != nil {
		t.Fatalf("re-add: %v", err)
	}

	src.pos = geom.V(5, 1, 0)
	if !pf.Calculate(dest, false) {
		t.Fatalf("reload must force a new plan")
	}
	path := pf.Path()
	if pf.Type() != Normal || geom.Dist(path[len(path)-1], dest) > 1e-6 {
		t.Fatalf("type=%v path=%v", pf.Type(), path)
	}
	for _, ref := range pf.Corridor() {
		if !q.IsValid(ref) {
			t.Fatalf("stale ref %v kept in corridor", ref)
		}
	}
}
