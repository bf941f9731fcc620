package waypoints

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"navmotion.ai/internal/nav/geom"
)

var ErrPathNotFound = errors.New("waypoints: path not found")

type MoveType uint8

const (
	MoveWalk MoveType = iota
	MoveRun
	MoveFly
)

type Node struct {
	ID          uint32   `yaml:"id"`
	X           float64  `yaml:"x"`
	Y           float64  `yaml:"y"`
	Z           float64  `yaml:"z"`
	Orientation *float64 `yaml:"orientation,omitempty"`
	DelayMs     int32    `yaml:"delay_ms,omitempty"`
	MoveType    MoveType `yaml:"move_type,omitempty"`
}

func (n Node) Pos() geom.Vec3 { return geom.V(n.X, n.Y, n.Z) }

// Path is an ordered node list. Repeating paths loop back to the first node.
type Path struct {
	ID        uint32 `yaml:"id"`
	Repeating bool   `yaml:"repeating,omitempty"`
	Nodes     []Node `yaml:"nodes"`
}

func (p Path) Validate() error {
	if len(p.Nodes) == 0 {
		return fmt.Errorf("path %d: no nodes", p.ID)
	}
	seen := make(map[uint32]bool, len(p.Nodes))
	for _, n := range p.Nodes {
		if seen[n.ID] {
			return fmt.Errorf("path %d: duplicate node %d", p.ID, n.ID)
		}
		seen[n.ID] = true
		if n.MoveType > MoveFly {
			return fmt.Errorf("path %d node %d: bad move type %d", p.ID, n.ID, n.MoveType)
		}
	}
	return nil
}

// Points returns the node positions in order.
func (p Path) Points() []geom.Vec3 {
	out := make([]geom.Vec3, len(p.Nodes))
	for i, n := range p.Nodes {
		out[i] = n.Pos()
	}
	return out
}

type file struct {
	Paths []Path `yaml:"paths"`
}

// LoadYAML reads a waypoint file of the form {paths: [{id, nodes: [...]}]}.
func LoadYAML(path string) ([]Path, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, p := range f.Paths {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return f.Paths, nil
}
