package motion

import (
	"go.uber.org/zap"

	"navmotion.ai/internal/movement/spline"
	"navmotion.ai/internal/movement/waypoints"
	"navmotion.ai/internal/nav/geom"
)

// Effect ids reported through MovementInform.
const (
	EffectJump   uint32 = 1
	EffectFall   uint32 = 2
	EffectCharge uint32 = 3
)

// MoveIdle drops every behavior above the default.
func (m *Master) MoveIdle() { m.Clear() }

func (m *Master) MoveRandom(radius float64) {
	if radius <= 0 {
		return
	}
	m.Push(&Random{Radius: radius, Walk: true})
}

// MovePath walks a stored waypoint path. repeating overrides the path's own
// setting when true.
func (m *Master) MovePath(p waypoints.Path, repeating bool) {
	if err := p.Validate(); err != nil {
		m.log.Debug("waypoint path rejected", zap.Error(err))
		return
	}
	p.Repeating = p.Repeating || repeating
	m.Push(&Waypoint{Path: p})
}

func (m *Master) MoveChase(target uint64, reach float64, onReached func(Moveable, uint64)) {
	m.Push(&Chase{Target: target, Range: reach, OnReached: onReached})
}

func (m *Master) MoveFollow(target uint64, dist, angle float64) {
	m.Push(&Follow{Target: target, Distance: dist, Angle: angle})
}

// MoveFleeing runs from fright. A positive duration bounds the flee.
func (m *Master) MoveFleeing(fright uint64, durationMs int32) {
	if durationMs > 0 {
		m.Push(&TimedFleeing{Fleeing: Fleeing{Fright: fright}, DurationMs: durationMs})
		return
	}
	m.Push(&Fleeing{Fright: fright})
}

func (m *Master) MoveConfused() { m.Push(&Confused{}) }

// MovePoint moves to dest once and informs id on arrival.
func (m *Master) MovePoint(id uint32, dest geom.Vec3, generatePath bool, finalFacing *float64) {
	m.Push(&Point{ID: id, Dest: dest, GeneratePath: generatePath, FinalFacing: finalFacing})
}

func (m *Master) MoveDistract(orientation float64, durationMs int32) {
	if m.owner.HasUnitState(StateNotMove) {
		return
	}
	m.Push(&Distract{Orientation: orientation, DurationMs: durationMs})
}

// MoveJump leaps to dest along a parabola whose peak follows from the
// vertical launch speed.
func (m *Master) MoveJump(dest geom.Vec3, speedXY, speedZ float64, id uint32) {
	if speedXY < 0.01 {
		return
	}
	height := speedZ * speedZ / (2 * spline.Gravity)
	m.Push(&Effect{ID: id, Build: func(in *spline.Init) {
		in.MoveTo(dest, false, false, 0)
		in.SetParabolic(height, 0)
		in.SetVelocity(speedXY)
	}})
}

// MoveFall drops the owner onto the ground below it. Nothing happens when
// there is no ground or the owner already stands on it.
func (m *Master) MoveFall(id uint32) {
	hq := m.owner.HeightQuery()
	if hq == nil {
		return
	}
	pos := m.owner.Position()
	z, ok := hq.HeightAt(pos[0], pos[1], pos[2], 500)
	if !ok || pos[2]-z < 0.1 {
		return
	}
	dest := geom.V(pos[0], pos[1], z)
	if id == 0 {
		id = EffectFall
	}
	m.Push(&Effect{ID: id, Build: func(in *spline.Init) {
		in.MoveTo(dest, false, false, 0)
		in.SetFall()
	}})
}

// MoveCharge runs to dest at speed through the path finder.
func (m *Master) MoveCharge(dest geom.Vec3, speed float64, id uint32) {
	if id == 0 {
		id = EffectCharge
	}
	m.Push(&Point{ID: id, Dest: dest, GeneratePath: true, Speed: speed})
}

// MoveTargetedHome abandons every behavior and walks home.
func (m *Master) MoveTargetedHome() {
	m.Clear()
	m.Push(&Home{})
}

func (m *Master) MoveTaxiFlight(nodes []waypoints.Node, start int) {
	if start < 0 || start >= len(nodes) {
		return
	}
	m.Push(&Flight{Nodes: nodes, Start: start})
}
