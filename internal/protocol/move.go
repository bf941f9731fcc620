package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"navmotion.ai/internal/movement/spline"
)

// MoveUpdate describes one launched curve. Observers replay it locally from
// Points, DurationMs and ElapsedMs.
type MoveUpdate struct {
	Unit       uint64       `json:"unit" msgpack:"unit"`
	SplineID   uint32       `json:"spline_id" msgpack:"spline_id"`
	Flags      uint32       `json:"flags" msgpack:"flags"`
	Velocity   float64      `json:"velocity" msgpack:"velocity"`
	DurationMs int32        `json:"duration_ms" msgpack:"duration_ms"`
	ElapsedMs  int32        `json:"elapsed_ms" msgpack:"elapsed_ms"`
	Points     [][3]float64 `json:"points" msgpack:"points"`
	Facing     *FacingMsg   `json:"facing,omitempty" msgpack:"facing,omitempty"`
	Stopped    bool         `json:"stopped,omitempty" msgpack:"stopped,omitempty"`
}

type FacingMsg struct {
	Kind   string     `json:"kind" msgpack:"kind"`
	Angle  float64    `json:"angle,omitempty" msgpack:"angle,omitempty"`
	Point  [3]float64 `json:"point,omitempty" msgpack:"point,omitempty"`
	Target uint64     `json:"target,omitempty" msgpack:"target,omitempty"`
}

// MOVES (server -> observer)
type MoveBatch struct {
	Type            string       `json:"type" msgpack:"type"`
	ProtocolVersion string       `json:"protocol_version" msgpack:"protocol_version"`
	WorldID         string       `json:"world_id" msgpack:"world_id"`
	Tick            uint64       `json:"tick" msgpack:"tick"`
	Moves           []MoveUpdate `json:"moves" msgpack:"moves"`
}

func NewMoveBatch(worldID string, tick uint64, moves []MoveUpdate) MoveBatch {
	if moves == nil {
		moves = []MoveUpdate{}
	}
	return MoveBatch{Type: TypeMoves, ProtocolVersion: Version, WorldID: worldID, Tick: tick, Moves: moves}
}

// NewMoveUpdate reads the curve currently installed on a unit.
func NewMoveUpdate(unit uint64, ms *spline.MoveSpline) MoveUpdate {
	m := MoveUpdate{
		Unit:       unit,
		SplineID:   ms.ID(),
		Flags:      uint32(ms.Flags()),
		Velocity:   ms.Velocity(),
		DurationMs: ms.Duration(),
		ElapsedMs:  ms.TimePassed(),
		Stopped:    ms.Finalized(),
	}
	for _, p := range ms.ControlPoints() {
		m.Points = append(m.Points, [3]float64{p[0], p[1], p[2]})
	}
	switch f := ms.Facing(); f.Kind {
	case spline.FacingAngle:
		m.Facing = &FacingMsg{Kind: "angle", Angle: f.Angle}
	case spline.FacingPoint:
		m.Facing = &FacingMsg{Kind: "point", Point: [3]float64{f.Point[0], f.Point[1], f.Point[2]}}
	case spline.FacingTarget:
		m.Facing = &FacingMsg{Kind: "target", Target: f.Target}
	}
	return m
}

func (b MoveBatch) Encode(f Format) ([]byte, error) {
	switch f {
	case FormatJSON, "":
		return json.Marshal(b)
	case FormatMsgpack:
		return msgpack.Marshal(&b)
	}
	return nil, fmt.Errorf("encode moves: unknown format %q", f)
}

func DecodeMoveBatch(f Format, data []byte) (MoveBatch, error) {
	var b MoveBatch
	var err error
	switch f {
	case FormatJSON, "":
		err = json.Unmarshal(data, &b)
	case FormatMsgpack:
		err = msgpack.Unmarshal(data, &b)
	default:
		err = fmt.Errorf("unknown format %q", f)
	}
	if err != nil {
		return b, fmt.Errorf("decode moves: %w", err)
	}
	if b.Type != TypeMoves {
		return b, fmt.Errorf("decode moves: unexpected type %q", b.Type)
	}
	return b, nil
}
