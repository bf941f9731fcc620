package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	persistlog "navmotion.ai/internal/persistence/log"
	"navmotion.ai/internal/sim/boot"
	"navmotion.ai/internal/sim/world"
)

func buildRepoWorld(t *testing.T) *world.World {
	t.Helper()
	in := boot.Inputs{
		ConfigDir:   "../../configs",
		WaypointsDB: filepath.Join(t.TempDir(), "waypoints.db"),
	}.Resolve()
	rt, err := boot.Build(context.Background(), in, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	return rt.World
}

func record(t *testing.T, ticks int) []string {
	t.Helper()
	dir := t.TempDir()
	w := buildRepoWorld(t)
	tl := persistlog.NewTickLogger(dir)
	w.SetTickLogger(tl)
	for i := 0; i < ticks; i++ {
		w.StepOnce()
	}
	if err := tl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	files, err := persistlog.Files(filepath.Join(dir, "ticks"), "ticks")
	if err != nil || len(files) == 0 {
		t.Fatalf("files: %v %v", files, err)
	}
	return files
}

func TestVerifyRecordedRun(t *testing.T) {
	files := record(t, 60)

	res, err := verify(buildRepoWorld(t), files, 0, 0)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Checked != 60 || res.LastTick != 59 || res.Launches == 0 {
		t.Fatalf("result: %+v", res)
	}

	res, err = verify(buildRepoWorld(t), files, 20, 39)
	if err != nil {
		t.Fatalf("verify window: %v", err)
	}
	if res.Checked != 20 || res.LastTick != 39 {
		t.Fatalf("window result: %+v", res)
	}
}

func TestVerifyDetectsDivergence(t *testing.T) {
	files := record(t, 10)

	// A world without the scenario has no units, so digests differ at once.
	empty := world.New(world.Config{ID: "world_1", Seed: 1337}, nil, nil)
	_, err := verify(empty, files, 0, 0)
	if err == nil || !strings.Contains(err.Error(), "mismatch") {
		t.Fatalf("expected mismatch, got %v", err)
	}
}

func TestSameLaunches(t *testing.T) {
	a := []world.LaunchEntry{{Unit: 1, SplineID: 5, Generator: "POINT", DurationMs: 100, Points: [][3]float64{{0, 0, 0}, {1, 0, 0}}}}
	b := []world.LaunchEntry{{Unit: 1, SplineID: 9, Generator: "POINT", DurationMs: 100, Points: [][3]float64{{0, 0, 0}, {1, 0, 0}}}}
	if err := sameLaunches(a, b); err != nil {
		t.Fatalf("spline ids should not matter: %v", err)
	}
	b[0].Generator = "CHASE"
	if err := sameLaunches(a, b); err == nil {
		t.Fatalf("generator change accepted")
	}
	if err := sameLaunches(a, nil); err == nil {
		t.Fatalf("count change accepted")
	}
}
