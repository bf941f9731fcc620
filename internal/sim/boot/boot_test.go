package boot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"navmotion.ai/internal/nav/navmesh"
)

const configDir = "../../../configs"

func repoInputs(t *testing.T) Inputs {
	t.Helper()
	return Inputs{
		ConfigDir:   configDir,
		WaypointsDB: filepath.Join(t.TempDir(), "waypoints.db"),
	}.Resolve()
}

func TestResolveDefaults(t *testing.T) {
	in := Inputs{ConfigDir: configDir}.Resolve()
	if in.TuningPath != filepath.Join(configDir, "tuning.yaml") {
		t.Fatalf("tuning path %q", in.TuningPath)
	}
	if in.LayoutPath == "" || in.WaypointsYAML == "" || in.ScenarioPath == "" {
		t.Fatalf("resolve: %+v", in)
	}

	in = Inputs{ConfigDir: t.TempDir()}.Resolve()
	if in.LayoutPath != "" || in.ScenarioPath != "" {
		t.Fatalf("missing files resolved: %+v", in)
	}
}

func TestBuildFromRepoConfigs(t *testing.T) {
	rt, err := Build(context.Background(), repoInputs(t), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()

	if rt.Mesh == nil || rt.Mesh.TileCount() != 6 {
		t.Fatalf("mesh tiles: %v", rt.Mesh)
	}
	if rt.World.UnitCount() != 6 {
		t.Fatalf("units=%d", rt.World.UnitCount())
	}
	if rt.World.ID() != rt.Tuning.World.ID {
		t.Fatalf("world id %q", rt.World.ID())
	}
	for i := 0; i < 30; i++ {
		rt.World.StepOnce()
	}
	if m := rt.World.Metrics(); m.LaunchesTotal == 0 {
		t.Fatalf("no launches after 30 ticks: %+v", m)
	}
}

func TestBuildIsReproducible(t *testing.T) {
	a, err := Build(context.Background(), repoInputs(t), nil)
	if err != nil {
		t.Fatalf("Build a: %v", err)
	}
	defer a.Close()
	b, err := Build(context.Background(), repoInputs(t), nil)
	if err != nil {
		t.Fatalf("Build b: %v", err)
	}
	defer b.Close()

	for i := 0; i < 100; i++ {
		ta, da := a.World.StepOnce()
		tb, db := b.World.StepOnce()
		if ta != tb || da != db {
			t.Fatalf("tick %d diverged: %s vs %s", ta, da, db)
		}
	}
}

func TestMissingTuningUsesDefaults(t *testing.T) {
	rt, err := Build(context.Background(), Inputs{TuningPath: filepath.Join(t.TempDir(), "none.yaml")}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer rt.Close()
	if rt.Mesh != nil || rt.Store != nil {
		t.Fatalf("unexpected resources: %+v", rt)
	}
	if rt.World.TickRateHz() != 10 {
		t.Fatalf("tick rate %d", rt.World.TickRateHz())
	}
}

func TestLoadMeshPrefersBakedTiles(t *testing.T) {
	layoutPath := filepath.Join(configDir, "layout.yaml")
	layout, err := navmesh.LoadGridLayout(layoutPath)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	tiles, err := navmesh.BuildGrid(layout)
	if err != nil {
		t.Fatalf("bake: %v", err)
	}
	dir := t.TempDir()
	// Only the first tile goes to disk, so a full bake would be detectable.
	if err := navmesh.WriteTileFile(filepath.Join(dir, navmesh.TileFileName(tiles[0].X, tiles[0].Y)), tiles[0]); err != nil {
		t.Fatalf("write tile: %v", err)
	}
	m, err := LoadMesh(layoutPath, dir, nil)
	if err != nil {
		t.Fatalf("LoadMesh: %v", err)
	}
	if m.TileCount() != 1 {
		t.Fatalf("tiles=%d", m.TileCount())
	}

	empty := t.TempDir()
	m, err = LoadMesh(layoutPath, empty, nil)
	if err != nil || m.TileCount() != len(tiles) {
		t.Fatalf("empty dir bake: %v %v", m, err)
	}

	if _, err := LoadMesh("", dir, nil); err == nil {
		t.Fatalf("tiles without layout accepted")
	}
	if m, err := LoadMesh("", "", nil); m != nil || err != nil {
		t.Fatalf("no layout: %v %v", m, err)
	}
}

func TestBadScenarioFails(t *testing.T) {
	dir := t.TempDir()
	sc := filepath.Join(dir, "scenario.yaml")
	if err := os.WriteFile(sc, []byte("units:\n  - id: 1\n    behavior: {kind: dance}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Build(context.Background(), Inputs{TuningPath: filepath.Join(dir, "none.yaml"), ScenarioPath: sc}, nil); err == nil {
		t.Fatalf("unknown behavior accepted")
	}
}
