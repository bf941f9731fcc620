package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"navmotion.ai/internal/nav/geom"
	"navmotion.ai/internal/nav/navmesh"
	"navmotion.ai/internal/nav/pathfinder"
	"navmotion.ai/internal/sim/boot"
)

func arena(t *testing.T) *navmesh.Mesh {
	t.Helper()
	m, err := boot.LoadMesh("../../configs/layout.yaml", "", nil)
	if err != nil {
		t.Fatalf("LoadMesh: %v", err)
	}
	return m
}

func TestParseVec(t *testing.T) {
	v, err := parseVec(" 1, 2.5 ,-3")
	if err != nil || v != geom.V(1, 2.5, -3) {
		t.Fatalf("v=%v err=%v", v, err)
	}
	for _, bad := range []string{"", "1,2", "1,2,z"} {
		if _, err := parseVec(bad); err == nil {
			t.Fatalf("%q accepted", bad)
		}
	}
}

func TestRouteThroughWallGap(t *testing.T) {
	req := request{
		Start:    geom.V(10, 10, 0),
		Dest:     geom.V(80, 10, 0),
		Straight: true,
		Traits:   pathfinder.Traits{CanWalk: true},
	}
	res := run(arena(t), pathfinder.DefaultOptions(), req, nil)
	if res.Type != "NORMAL" {
		t.Fatalf("type=%s", res.Type)
	}
	// The only opening is around y=28..36, so the path detours north.
	direct := geom.Dist(req.Start, req.Dest)
	if res.Length <= direct+10 || len(res.Points) < 3 {
		t.Fatalf("length=%.1f points=%d", res.Length, len(res.Points))
	}
	var detour bool
	for _, p := range res.Points {
		if p[1] >= 27 {
			detour = true
		}
	}
	if !detour {
		t.Fatalf("no point near the gap: %v", res.Points)
	}
}

func TestFlyingIsShortcut(t *testing.T) {
	req := request{Start: geom.V(10, 10, 5), Dest: geom.V(80, 10, 5), Traits: pathfinder.Traits{Flying: true}}
	res := run(arena(t), pathfinder.DefaultOptions(), req, nil)
	if res.Type != "SHORTCUT|NOT_USING_PATH" || len(res.Points) != 2 {
		t.Fatalf("res=%+v", res)
	}
}

func TestPrintFormats(t *testing.T) {
	res := result{Type: "NORMAL", Length: 3, Points: [][3]float64{{0, 0, 0}, {3, 0, 0}}}
	var text bytes.Buffer
	if err := res.print(&text, false); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(text.String(), "type=NORMAL length=3.00 points=2") {
		t.Fatalf("text: %q", text.String())
	}
	var js bytes.Buffer
	if err := res.print(&js, true); err != nil {
		t.Fatal(err)
	}
	var back result
	if err := json.Unmarshal(js.Bytes(), &back); err != nil || back.Type != "NORMAL" || len(back.Points) != 2 {
		t.Fatalf("json: %s %v", js.String(), err)
	}
}
