package protocol

import (
	"reflect"
	"testing"

	"navmotion.ai/internal/movement/spline"
	"navmotion.ai/internal/nav/geom"
)

type stubMover struct {
	pos geom.Vec3
	ms  spline.MoveSpline
}

func (m *stubMover) Position() geom.Vec3             { return m.pos }
func (m *stubMover) Orientation() float64            { return 0 }
func (m *stubMover) Speed(spline.SpeedType) float64  { return 7 }
func (m *stubMover) IsSwimming() bool                { return false }
func (m *stubMover) MoveSpline() *spline.MoveSpline  { return &m.ms }
func (m *stubMover) Relocate(p geom.Vec3, _ float64) { m.pos = p }

func TestMoveUpdateReadsCurve(t *testing.T) {
	m := &stubMover{}
	in := spline.NewInit(m)
	in.MoveTo(geom.V(14, 0, 0), false, false, 0)
	in.SetFacingTarget(9)
	d := in.Launch()
	spline.Advance(m, 500)

	u := NewMoveUpdate(3, &m.ms)
	if u.Unit != 3 || u.SplineID != m.ms.ID() || u.DurationMs != d || u.ElapsedMs != 500 || u.Velocity != 7 {
		t.Fatalf("update=%+v", u)
	}
	if len(u.Points) != 2 || u.Points[1] != [3]float64{14, 0, 0} {
		t.Fatalf("points=%v", u.Points)
	}
	if u.Facing == nil || u.Facing.Kind != "target" || u.Facing.Target != 9 || u.Stopped {
		t.Fatalf("facing=%+v stopped=%v", u.Facing, u.Stopped)
	}
}

func TestMoveBatchEncodings(t *testing.T) {
	b := NewMoveBatch("w", 5, []MoveUpdate{{
		Unit: 1, SplineID: 2, Velocity: 7, DurationMs: 2001,
		Points: [][3]float64{{0, 0, 0}, {14, 0, 0}},
		Facing: &FacingMsg{Kind: "angle", Angle: 1},
	}})
	for _, f := range []Format{FormatJSON, FormatMsgpack} {
		data, err := b.Encode(f)
		if err != nil {
			t.Fatalf("%s encode: %v", f, err)
		}
		got, err := DecodeMoveBatch(f, data)
		if err != nil {
			t.Fatalf("%s decode: %v", f, err)
		}
		if !reflect.DeepEqual(got, b) {
			t.Fatalf("%s: got %+v want %+v", f, got, b)
		}
	}
	if _, err := b.Encode("xml"); err == nil {
		t.Fatalf("unknown format accepted")
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatJSON {
		t.Fatalf("default=%q err=%v", f, err)
	}
	if _, err := ParseFormat("cbor"); err == nil {
		t.Fatalf("cbor accepted")
	}
}
