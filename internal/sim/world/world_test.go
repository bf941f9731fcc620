package world

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"navmotion.ai/internal/movement/motion"
	"navmotion.ai/internal/movement/waypoints"
	"navmotion.ai/internal/nav/geom"
	"navmotion.ai/internal/nav/navmesh"
	"navmotion.ai/internal/protocol"
)

type recordingLogger struct {
	entries []TickLogEntry
}

func (r *recordingLogger) WriteTick(e TickLogEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

func (r *recordingLogger) informs() []InformEntry {
	var out []InformEntry
	for _, e := range r.entries {
		out = append(out, e.Informs...)
	}
	return out
}

func openMesh(t *testing.T, w, h int) *navmesh.Mesh {
	t.Helper()
	l := navmesh.GridLayout{CellSize: 1, TileCells: 16}
	for i := 0; i < h; i++ {
		l.Rows = append(l.Rows, strings.Repeat(".", w))
	}
	m, err := navmesh.NewMesh(l.Params(), nil)
	if err != nil {
		t.Fatalf("new mesh: %v", err)
	}
	tiles, err := navmesh.BuildGrid(l)
	if err != nil {
		t.Fatalf("build grid: %v", err)
	}
	for _, d := range tiles {
		if _, err := m.AddTile(d); err != nil {
			t.Fatalf("add tile: %v", err)
		}
	}
	return m
}

func spawn(t *testing.T, w *World, spec UnitSpec) *Unit {
	t.Helper()
	u, err := w.Spawn(spec)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	return u
}

func steps(w *World, n int) {
	for i := 0; i < n; i++ {
		w.StepOnce()
	}
}

func TestSpawnAssignsIDsAndCells(t *testing.T) {
	w := New(Config{GridSize: 10}, nil, nil)
	a := spawn(t, w, UnitSpec{Pos: [3]float64{1, 1, 0}})
	b := spawn(t, w, UnitSpec{Pos: [3]float64{25, -3, 0}})
	if a.ID() != 1 || b.ID() != 2 {
		t.Fatalf("ids: %d %d", a.ID(), b.ID())
	}
	if b.cell != (cellKey{2, -1}) {
		t.Fatalf("cell: %+v", b.cell)
	}
	if len(w.grids) != 2 {
		t.Fatalf("grids: %d", len(w.grids))
	}
	if _, err := w.Spawn(UnitSpec{ID: 2}); !errors.Is(err, ErrUnitExists) {
		t.Fatalf("duplicate spawn: %v", err)
	}
	if _, err := w.Spawn(UnitSpec{Speeds: map[string]float64{"warp": 9}}); err == nil {
		t.Fatalf("expected unknown speed error")
	}
}

func TestPointOrderArrivesAndInforms(t *testing.T) {
	w := New(Config{}, nil, nil)
	rec := &recordingLogger{}
	w.SetTickLogger(rec)
	u := spawn(t, w, UnitSpec{})

	w.StepOnce(Order{Unit: u.ID(), Do: func(u *Unit) {
		u.Motion().MovePoint(7, geom.V(10, 0, 0), false, nil)
	}})
	if len(rec.entries[0].Launches) != 1 || rec.entries[0].Launches[0].Generator != "POINT" {
		t.Fatalf("launches: %+v", rec.entries[0].Launches)
	}
	steps(w, 20)

	if !geom.Equal(u.Position(), geom.V(10, 0, 0)) {
		t.Fatalf("pos: %v", u.Position())
	}
	got := rec.informs()
	if len(got) != 1 || got[0] != (InformEntry{Unit: 1, Kind: "POINT", ID: 7}) {
		t.Fatalf("informs: %+v", got)
	}
	if w.Metrics().InformsTotal != 1 {
		t.Fatalf("metrics: %+v", w.Metrics())
	}
}

func TestOrderForUnknownUnitIsDropped(t *testing.T) {
	w := New(Config{}, nil, nil)
	called := false
	w.StepOnce(Order{Unit: 42, Do: func(*Unit) { called = true }})
	if called {
		t.Fatalf("order ran for a unit that does not exist")
	}
}

func TestHandoffMovesUnitAcrossCells(t *testing.T) {
	w := New(Config{GridSize: 8}, nil, nil)
	u := spawn(t, w, UnitSpec{Pos: [3]float64{1, 1, 0}})
	w.StepOnce(Order{Unit: u.ID(), Do: func(u *Unit) {
		u.Motion().MovePoint(1, geom.V(20, 1, 0), false, nil)
	}})
	steps(w, 30)

	if u.cell != (cellKey{2, 0}) {
		t.Fatalf("cell: %+v", u.cell)
	}
	if len(w.grids) != 1 || w.grids[cellKey{2, 0}] == nil {
		t.Fatalf("grids: %+v", w.grids)
	}
	if w.Metrics().HandoffsTotal < 2 {
		t.Fatalf("handoffs: %d", w.Metrics().HandoffsTotal)
	}
}

func TestChaseReadsTargetFromSnapshot(t *testing.T) {
	w := New(Config{GridSize: 8, Workers: 4}, openMesh(t, 40, 40), nil)
	prey := spawn(t, w, UnitSpec{Pos: [3]float64{30, 30, 0}})
	hound := spawn(t, w, UnitSpec{Pos: [3]float64{5, 5, 0}})
	hound.Motion().MoveChase(prey.ID(), 2, nil)

	steps(w, 60)

	if d := geom.Dist(hound.Position(), prey.Position()); d > 2.1 {
		t.Fatalf("hound %v still %.2f from prey %v", hound.Position(), d, prey.Position())
	}
	if hound.Motion().Kind() != motion.KindChase {
		t.Fatalf("kind: %v", hound.Motion().Kind())
	}
}

func TestSameSeedSameDigests(t *testing.T) {
	mesh := openMesh(t, 48, 48)
	build := func() *World {
		w := New(Config{GridSize: 8, Workers: 4, Seed: 99}, mesh, nil)
		for i := 0; i < 12; i++ {
			x := float64(4 + 3*i)
			spawn(t, w, UnitSpec{Pos: [3]float64{x, x, 0}}).Motion().MoveRandom(6)
		}
		return w
	}
	w1, w2 := build(), build()
	for i := 0; i < 80; i++ {
		_, d1 := w1.StepOnce()
		_, d2 := w2.StepOnce()
		if d1 != d2 {
			t.Fatalf("tick %d: digest mismatch %s vs %s", i, d1, d2)
		}
	}
	if w1.Metrics().LaunchesTotal == 0 {
		t.Fatalf("random movers never launched")
	}
}

func TestTileOpsApplyBetweenTicks(t *testing.T) {
	mesh := openMesh(t, 32, 16)
	w := New(Config{}, mesh, nil)
	before := mesh.TileCount()

	resp := make(chan error, 2)
	w.stepInternal([]TileOp{
		{Unload: true, X: 1, Y: 0, Resp: resp},
		{Unload: true, X: 9, Y: 9, Resp: resp},
	}, nil, nil)

	if err := <-resp; err != nil {
		t.Fatalf("unload: %v", err)
	}
	if err := <-resp; !errors.Is(err, navmesh.ErrNoTile) {
		t.Fatalf("unload missing tile: %v", err)
	}
	if mesh.TileCount() != before-1 || w.Metrics().LoadedTiles != before-1 {
		t.Fatalf("tiles: %d -> %d", before, mesh.TileCount())
	}

	bare := New(Config{}, nil, nil)
	bare.stepInternal([]TileOp{{Unload: true, Resp: resp}}, nil, nil)
	if err := <-resp; !errors.Is(err, ErrNoMesh) {
		t.Fatalf("no mesh: %v", err)
	}
}

func TestObserverGetsWelcomeAndMoves(t *testing.T) {
	w := New(Config{ID: "w_obs"}, nil, nil)
	u := spawn(t, w, UnitSpec{})

	all := make(chan []byte, 4)
	resp := make(chan ObserverJoinResponse, 1)
	w.handleObserverJoin(ObserverJoinRequest{Format: protocol.FormatMsgpack, Out: all, Resp: resp})
	welcome := (<-resp).Welcome
	if welcome.WorldID != "w_obs" || welcome.Units != 1 || welcome.Format != protocol.FormatMsgpack {
		t.Fatalf("welcome: %+v", welcome)
	}
	other := make(chan []byte, 4)
	w.handleObserverJoin(ObserverJoinRequest{Units: []uint64{99}, Out: other, Resp: make(chan ObserverJoinResponse, 1)})

	w.StepOnce(Order{Unit: u.ID(), Do: func(u *Unit) {
		u.Motion().MovePoint(1, geom.V(5, 5, 0), false, nil)
	}})

	select {
	case data := <-all:
		b, err := protocol.DecodeMoveBatch(protocol.FormatMsgpack, data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(b.Moves) != 1 || b.Moves[0].Unit != u.ID() || len(b.Moves[0].Points) < 2 {
			t.Fatalf("batch: %+v", b)
		}
	default:
		t.Fatalf("observer got nothing")
	}
	if len(other) != 0 {
		t.Fatalf("filtered observer got %d batches", len(other))
	}

	// A late joiner is caught up with the curve in flight.
	late := make(chan []byte, 4)
	w.handleObserverJoin(ObserverJoinRequest{Out: late, Resp: make(chan ObserverJoinResponse, 1)})
	if len(late) != 1 {
		t.Fatalf("late observer catch-up: %d", len(late))
	}
	w.handleObserverLeave("O000001")
	if len(w.observers) != 2 {
		t.Fatalf("observers: %d", len(w.observers))
	}
}

func TestApplyScenario(t *testing.T) {
	dir := t.TempDir()
	store, err := waypoints.OpenSQLite(filepath.Join(dir, "wp.sqlite"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	ctx := context.Background()
	err = store.Save(ctx, waypoints.Path{ID: 4, Nodes: []waypoints.Node{
		{ID: 1, X: 5, Y: 0}, {ID: 2, X: 5, Y: 5},
	}})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	path := filepath.Join(dir, "scenario.yaml")
	raw := `units:
  - id: 1
    pos: [0, 0, 0]
    behavior: {kind: waypoint, path: 4}
  - id: 2
    pos: [10, 10, 0]
    speeds: {run: 9}
    behavior: {kind: chase, target: 1}
  - id: 3
    pos: [20, 0, 0]
    behavior: {kind: flee, target: 2, duration_ms: 1000}
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	sc, err := LoadScenario(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	w := New(Config{}, nil, nil)
	if err := w.ApplyScenario(ctx, sc, store); err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := map[uint64]motion.Kind{1: motion.KindWaypoint, 2: motion.KindChase, 3: motion.KindTimedFleeing}
	for id, k := range want {
		u, _ := w.Unit(id)
		if u.Motion().Kind() != k {
			t.Fatalf("unit %d kind %v, want %v", id, u.Motion().Kind(), k)
		}
	}
	if u, _ := w.Unit(2); u.Speed(1) != 9 {
		t.Fatalf("run speed override: %v", u.Speed(1))
	}

	bad := New(Config{}, nil, nil)
	err = bad.ApplyScenario(ctx, Scenario{Units: []UnitSpec{{Behavior: Behavior{Kind: "teleport"}}}}, nil)
	if err == nil {
		t.Fatalf("expected unknown behavior error")
	}
	err = bad.ApplyScenario(ctx, Scenario{Units: []UnitSpec{{ID: 9, Behavior: Behavior{Kind: "waypoint", Path: 77}}}}, store)
	if !errors.Is(err, waypoints.ErrPathNotFound) {
		t.Fatalf("missing path: %v", err)
	}
}

func TestDespawnClearsUnit(t *testing.T) {
	w := New(Config{}, nil, nil)
	u := spawn(t, w, UnitSpec{})
	u.Motion().MoveRandom(5)
	if !w.Despawn(u.ID()) {
		t.Fatalf("despawn queue full")
	}
	w.stepInternal(nil, []uint64{<-w.despawns}, nil)
	if _, ok := w.Unit(u.ID()); ok || len(w.grids) != 0 {
		t.Fatalf("unit still present")
	}
}

func TestRunStopsOnContextAndStop(t *testing.T) {
	w := New(Config{TickRateHz: 50}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	resp := make(chan ObserverJoinResponse, 1)
	w.JoinObserver(ObserverJoinRequest{Out: make(chan []byte, 1), Resp: resp})
	select {
	case <-resp:
	case <-time.After(2 * time.Second):
		t.Fatalf("join timed out")
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("run: %v", err)
	}

	w2 := New(Config{TickRateHz: 50}, nil, nil)
	go func() { done <- w2.Run(context.Background()) }()
	w2.Stop()
	w2.Stop()
	if err := <-done; err != nil {
		t.Fatalf("run after stop: %v", err)
	}
}
