package waypoints

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `paths:
  - id: 7
    repeating: true
    nodes:
      - {id: 1, x: 0, y: 0, z: 0}
      - {id: 2, x: 10, y: 0, z: 0, delay_ms: 1500, orientation: 1.5}
      - {id: 3, x: 10, y: 10, z: 2, move_type: 2}
`

func TestImportAndLoad(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "paths.yaml")
	if err := os.WriteFile(src, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := OpenSQLite(filepath.Join(dir, "db", "waypoints.sqlite"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	n, err := s.ImportYAML(ctx, src)
	if err != nil || n != 1 {
		t.Fatalf("import n=%d err=%v", n, err)
	}
	p, err := s.Path(ctx, 7)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if !p.Repeating || len(p.Nodes) != 3 {
		t.Fatalf("path=%+v", p)
	}
	if n := p.Nodes[1]; n.DelayMs != 1500 || n.Orientation == nil || *n.Orientation != 1.5 {
		t.Fatalf("node 2=%+v", n)
	}
	if p.Nodes[0].Orientation != nil || p.Nodes[2].MoveType != MoveFly || p.Nodes[2].Z != 2 {
		t.Fatalf("nodes=%+v", p.Nodes)
	}

	// Saving again replaces the node list.
	p.Nodes = p.Nodes[:2]
	if err := s.Save(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}
	if p, _ = s.Path(ctx, 7); len(p.Nodes) != 2 {
		t.Fatalf("nodes after save=%d", len(p.Nodes))
	}
	if ids, err := s.IDs(ctx); err != nil || len(ids) != 1 || ids[0] != 7 {
		t.Fatalf("ids=%v err=%v", ids, err)
	}
}

func TestMissingPath(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "w.sqlite"), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if _, err := s.Path(context.Background(), 99); !errors.Is(err, ErrPathNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestValidateRejectsDuplicates(t *testing.T) {
	p := Path{ID: 1, Nodes: []Node{{ID: 1}, {ID: 1}}}
	if err := p.Validate(); err == nil {
		t.Fatalf("duplicate node ids must fail")
	}
	if err := (Path{ID: 2}).Validate(); err == nil {
		t.Fatalf("empty path must fail")
	}
}
