package main

import (
	"path/filepath"
	"testing"

	"navmotion.ai/internal/nav/navmesh"
)

func TestBakeRepoLayout(t *testing.T) {
	layoutPath := "../../configs/layout.yaml"
	out := t.TempDir()
	st, err := bake(layoutPath, out)
	if err != nil {
		t.Fatalf("bake: %v", err)
	}
	if st.Tiles != 6 || st.Polys == 0 || st.Verts == 0 {
		t.Fatalf("stats: %+v", st)
	}

	layout, err := navmesh.LoadGridLayout(layoutPath)
	if err != nil {
		t.Fatal(err)
	}
	m, err := navmesh.NewMesh(layout.Params(), nil)
	if err != nil {
		t.Fatal(err)
	}
	n, err := navmesh.LoadDir(m, out)
	if err != nil || n != st.Tiles {
		t.Fatalf("LoadDir: n=%d err=%v", n, err)
	}
	if !m.HasTile(0, 0) || !m.HasTile(2, 1) {
		t.Fatalf("corner tiles missing")
	}
}

func TestBakeMissingLayout(t *testing.T) {
	if _, err := bake(filepath.Join(t.TempDir(), "none.yaml"), t.TempDir()); err == nil {
		t.Fatalf("missing layout accepted")
	}
}
