package navmesh

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"navmotion.ai/internal/nav/geom"
)

func buildMesh(t *testing.T, l GridLayout) (*Mesh, *Query) {
	t.Helper()
	m, err := NewMesh(l.Params(), nil)
	if err != nil {
		t.Fatalf("new mesh: %v", err)
	}
	tiles, err := BuildGrid(l)
	if err != nil {
		t.Fatalf("build grid: %v", err)
	}
	for _, d := range tiles {
		if _, err := m.AddTile(d); err != nil {
			t.Fatalf("add tile: %v", err)
		}
	}
	return m, NewQuery(m, 0)
}

func lookup(t *testing.T, q *Query, p geom.Vec3) PolyRef {
	t.Helper()
	f := DefaultFilter()
	ref, _, err := q.PolygonLookup(p, geom.V(1, 1, 2), &f)
	if err != nil {
		t.Fatalf("lookup %v: %v", p, err)
	}
	return ref
}

// uLayout is a corridor that turns around a wall:
//
//	y2 ..........
//	y1 #########.
//	y0 ..........
func uLayout() GridLayout {
	return GridLayout{Rows: []string{
		"..........",
		"#########.",
		"..........",
	}}
}

func TestStaleRefAfterTileReload(t *testing.T) {
	l := GridLayout{TileCells: 8, Rows: []string{strings.Repeat(".", 16)}}
	m, q := buildMesh(t, l)
	ref := lookup(t, q, geom.V(1, 0.5, 0))
	if !q.IsValid(ref) {
		t.Fatalf("expected valid ref")
	}
	data, err := m.RemoveTile(0, 0)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if q.IsValid(ref) {
		t.Fatalf("ref must be invalid after removal")
	}
	if _, err := m.RemoveTile(0, 0); !errors.Is(err, ErrNoTile) {
		t.Fatalf("expected ErrNoTile, got %v", err)
	}
	if _, err := m.AddTile(data); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if q.IsValid(ref) {
		t.Fatalf("old ref must stay invalid after the slot is reused")
	}
	if fresh := lookup(t, q, geom.V(1, 0.5, 0)); fresh == ref || !q.IsValid(fresh) {
		t.Fatalf("fresh=%v old=%v", fresh, ref)
	}
	if _, err := m.AddTile(data); !errors.Is(err, ErrTileExists) {
		t.Fatalf("expected ErrTileExists, got %v", err)
	}
}

func TestCorridorAcrossTiles(t *testing.T) {
	l := GridLayout{TileCells: 16, Rows: []string{strings.Repeat(".", 40)}}
	m, q := buildMesh(t, l)
	if m.TileCount() != 3 {
		t.Fatalf("tiles=%d", m.TileCount())
	}
	start, end := geom.V(1, 0.5, 0), geom.V(39, 0.5, 0)
	sref, eref := lookup(t, q, start), lookup(t, q, end)

	res, err := q.CorridorSearch(sref, eref, start, end, nil, 74)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if res.Partial || len(res.Polys) != 3 || res.Polys[2] != eref {
		t.Fatalf("unexpected corridor: %+v", res)
	}

	if _, err := m.RemoveTile(1, 0); err != nil {
		t.Fatalf("remove: %v", err)
	}
	res, err = q.CorridorSearch(sref, eref, start, end, nil, 74)
	if err != nil {
		t.Fatalf("search after removal: %v", err)
	}
	if !res.Partial || res.Polys[len(res.Polys)-1] != sref {
		t.Fatalf("expected partial corridor ending at start poly: %+v", res)
	}
}

func TestCorridorTruncatedToMaxLen(t *testing.T) {
	// Alternating heights keep every cell its own polygon.
	l := GridLayout{TileCells: 32, Rows: []string{"0101010101010101"}}
	_, q := buildMesh(t, l)
	start, end := geom.V(0.5, 0.5, 0), geom.V(15.5, 0.5, 0.5)
	res, err := q.CorridorSearch(lookup(t, q, start), lookup(t, q, end), start, end, nil, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Polys) != 5 || !res.Partial {
		t.Fatalf("unexpected corridor: %+v", res)
	}
}

func TestStraightPathTurnsAroundWall(t *testing.T) {
	_, q := buildMesh(t, uLayout())
	start, end := geom.V(0.5, 2.5, 0), geom.V(0.5, 0.5, 0)
	res, err := q.CorridorSearch(lookup(t, q, start), lookup(t, q, end), start, end, nil, 74)
	if err != nil || res.Partial {
		t.Fatalf("search: %+v %v", res, err)
	}
	pts, err := q.StraightPath(start, end, res.Polys, 16)
	if err != nil {
		t.Fatalf("straight: %v", err)
	}
	want := []geom.Vec3{start, geom.V(9, 2, 0), geom.V(9, 1, 0), end}
	if len(pts) != len(want) {
		t.Fatalf("points=%v", pts)
	}
	for i := range want {
		if geom.Dist(pts[i].Pos, want[i]) > 1e-6 {
			t.Fatalf("point %d = %v, want %v", i, pts[i].Pos, want[i])
		}
	}
	if pts[0].Flags&StraightStart == 0 || pts[3].Flags&StraightEnd == 0 {
		t.Fatalf("flags: %v", pts)
	}
}

func TestStraightPathThroughReloadedTileIsPartial(t *testing.T) {
	m, q := buildMesh(t, GridLayout{TileCells: 8, Rows: []string{strings.Repeat(".", 24)}})
	start, end := geom.V(1, 0.5, 0), geom.V(23, 0.5, 0)
	res, err := q.CorridorSearch(lookup(t, q, start), lookup(t, q, end), start, end, nil, 74)
	if err != nil || res.Partial {
		t.Fatalf("search: %+v %v", res, err)
	}
	data, err := m.RemoveTile(1, 0)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := m.AddTile(data); err != nil {
		t.Fatalf("re-add: %v", err)
	}

	pts, err := q.StraightPath(start, end, res.Polys, 16)
	if err != nil {
		t.Fatalf("straight: %v", err)
	}
	last := pts[len(pts)-1]
	if last.Flags&StraightPartial == 0 || last.Pos[0] > 8+1e-6 {
		t.Fatalf("end=%+v", last)
	}
}

func TestMoveAlongSurfaceStopsAtWall(t *testing.T) {
	_, q := buildMesh(t, uLayout())
	start := geom.V(0.5, 2.5, 0)
	sref := lookup(t, q, start)
	pos, visited, err := q.MoveAlongSurface(sref, start, geom.V(0.5, 0.5, 0), nil, 8)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if math.Abs(pos[1]-2) > 1e-6 || math.Abs(pos[0]-0.5) > 1e-6 {
		t.Fatalf("pos=%v", pos)
	}
	if len(visited) != 1 || visited[0] != sref {
		t.Fatalf("visited=%v", visited)
	}
}

func TestStepHeightsAndClimb(t *testing.T) {
	l := GridLayout{StepHeight: 0.5, WalkableClimb: 0.6, Rows: []string{"0123", "0..9"}}
	_, q := buildMesh(t, l)
	ref := lookup(t, q, geom.V(2.5, 0.5, 1))
	h, err := q.PolyHeight(ref, geom.V(2.5, 0.5, 1))
	if err != nil || math.Abs(h-1) > 1e-9 {
		t.Fatalf("h=%v err=%v", h, err)
	}

	start, end := geom.V(0.5, 0.5, 0), geom.V(3.5, 0.5, 1.5)
	res, err := q.CorridorSearch(lookup(t, q, start), lookup(t, q, end), start, end, nil, 74)
	if err != nil || res.Partial {
		t.Fatalf("stairs should connect: %+v %v", res, err)
	}
	cliff := geom.V(3.5, 1.5, 4.5)
	res, err = q.CorridorSearch(lookup(t, q, start), lookup(t, q, cliff), start, cliff, nil, 74)
	if err != nil || !res.Partial {
		t.Fatalf("cliff must not connect: %+v %v", res, err)
	}
}

func TestFilterExcludesWater(t *testing.T) {
	l := GridLayout{Rows: []string{"..~~.."}}
	_, q := buildMesh(t, l)
	f := DefaultFilter()
	f.Include = FlagWalk
	start, end := geom.V(0.5, 0.5, 0), geom.V(5.5, 0.5, 0)
	sref, _, err := q.PolygonLookup(start, geom.V(1, 1, 2), &f)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	eref, _, err := q.PolygonLookup(end, geom.V(1, 1, 2), &f)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	res, err := q.CorridorSearch(sref, eref, start, end, &f, 74)
	if err != nil || !res.Partial {
		t.Fatalf("walker should not cross water: %+v %v", res, err)
	}
	res, err = q.CorridorSearch(sref, eref, start, end, nil, 74)
	if err != nil || res.Partial {
		t.Fatalf("default filter should cross water: %+v %v", res, err)
	}
}

func TestTileFilesLoadDir(t *testing.T) {
	l := GridLayout{TileCells: 8, Rows: []string{strings.Repeat(".", 20), strings.Repeat(".", 20)}}
	tiles, err := BuildGrid(l)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	dir := t.TempDir()
	for _, d := range tiles {
		if err := WriteTileFile(filepath.Join(dir, TileFileName(d.X, d.Y)), d); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	m, err := NewMesh(l.Params(), nil)
	if err != nil {
		t.Fatalf("mesh: %v", err)
	}
	n, err := LoadDir(m, dir)
	if err != nil || n != len(tiles) {
		t.Fatalf("loaded=%d err=%v", n, err)
	}
	q := NewQuery(m, 0)
	if !q.TileLoaded(geom.V(17, 1, 0)) || q.TileLoaded(geom.V(30, 1, 0)) {
		t.Fatalf("unexpected tile coverage")
	}
}

func TestDecodeTileRejectsWrongMagic(t *testing.T) {
	var sb strings.Builder
	if err := encodeRaw(&sb, tileFile{Magic: 1, Version: TileVersion, Tile: &TileData{}}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeTile(strings.NewReader(sb.String())); !errors.Is(err, ErrWrongMagic) {
		t.Fatalf("expected ErrWrongMagic, got %v", err)
	}
}
