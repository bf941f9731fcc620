package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"navmotion.ai/internal/movement/spline"
	"navmotion.ai/internal/nav/geom"
	"navmotion.ai/internal/protocol"
)

type mover struct {
	pos geom.Vec3
	ms  spline.MoveSpline
}

func (m *mover) Position() geom.Vec3             { return m.pos }
func (m *mover) Orientation() float64            { return 0 }
func (m *mover) Speed(spline.SpeedType) float64  { return 7 }
func (m *mover) IsSwimming() bool                { return false }
func (m *mover) MoveSpline() *spline.MoveSpline  { return &m.ms }
func (m *mover) Relocate(p geom.Vec3, _ float64) { m.pos = p }

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var doc any
		if err := json.Unmarshal(b, &doc); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := s.Validate(doc); err != nil {
			t.Fatalf("validate %s: %v", b, err)
		}
	}

	validate(compile("hello.schema.json"), protocol.HelloMsg{
		Type: protocol.TypeHello, ProtocolVersion: protocol.Version, Format: protocol.FormatMsgpack, MaxQueue: 8,
	})
	validate(compile("welcome.schema.json"), protocol.WelcomeMsg{
		Type: protocol.TypeWelcome, ProtocolVersion: protocol.Version, WorldID: "world_1",
		TickRateHz: 10, Format: protocol.FormatJSON, Units: 3,
	})

	m := &mover{}
	in := spline.NewInit(m)
	in.MoveByPath([]geom.Vec3{{}, geom.V(10, 0, 0), geom.V(10, 10, 0)}, 0)
	in.SetFacing(1.5)
	if in.Launch() <= 0 {
		t.Fatalf("launch: %v", in.Err())
	}
	batch := protocol.NewMoveBatch("world_1", 42, []protocol.MoveUpdate{protocol.NewMoveUpdate(7, &m.ms)})
	validate(compile("moves.schema.json"), batch)
	validate(compile("moves.schema.json"), protocol.NewMoveBatch("world_1", 43, nil))
}
