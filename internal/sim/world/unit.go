package world

import (
	"math/rand"

	"navmotion.ai/internal/movement/motion"
	"navmotion.ai/internal/movement/spline"
	"navmotion.ai/internal/nav/geom"
	"navmotion.ai/internal/nav/pathfinder"
)

// Unit is one simulated mover. Between ticks only the world loop touches it;
// during a tick only the worker owning its cell does.
type Unit struct {
	id          uint64
	name        string
	pos         geom.Vec3
	orientation float64
	combatReach float64
	canFly      bool
	swimming    bool
	speeds      Speeds
	home        spline.Location

	states motion.UnitState
	ms     spline.MoveSpline
	master *motion.Master
	rng    *rand.Rand
	w      *World
	cell   cellKey

	lastSpline uint32
	informs    []InformEntry
}

func (u *Unit) ID() uint64                     { return u.id }
func (u *Unit) Name() string                   { return u.name }
func (u *Unit) Position() geom.Vec3            { return u.pos }
func (u *Unit) Orientation() float64           { return u.orientation }
func (u *Unit) IsSwimming() bool               { return u.swimming }
func (u *Unit) MoveSpline() *spline.MoveSpline { return &u.ms }
func (u *Unit) CombatReach() float64           { return u.combatReach }
func (u *Unit) Home() spline.Location          { return u.home }
func (u *Unit) Rand() *rand.Rand               { return u.rng }
func (u *Unit) CanFly() bool                   { return u.canFly }

// Motion is the unit's generator stack.
func (u *Unit) Motion() *motion.Master { return u.master }

func (u *Unit) Speed(t spline.SpeedType) float64 {
	if int(t) < len(u.speeds) {
		return u.speeds[t]
	}
	return 0
}

// SetSpeed changes one speed and lets the running generator relaunch.
func (u *Unit) SetSpeed(t spline.SpeedType, v float64) {
	if int(t) >= len(u.speeds) || u.speeds[t] == v {
		return
	}
	u.speeds[t] = v
	u.master.PropagateSpeedChange()
}

func (u *Unit) Relocate(pos geom.Vec3, orientation float64) {
	u.pos = pos
	u.orientation = orientation
}

func (u *Unit) AddUnitState(s motion.UnitState)      { u.states |= s }
func (u *Unit) ClearUnitState(s motion.UnitState)    { u.states &^= s }
func (u *Unit) HasUnitState(s motion.UnitState) bool { return u.states&s != 0 }

func (u *Unit) PathTraits() pathfinder.Traits {
	return pathfinder.Traits{CanWalk: true, CanSwim: true, Flying: u.canFly, Swimming: u.swimming}
}

func (u *Unit) NewPathFinder() *pathfinder.PathFinder {
	if u.w.query == nil {
		return nil
	}
	return pathfinder.New(u.w.query, u.w.surface, u, u.w.cfg.Path, u.w.log)
}

func (u *Unit) HeightQuery() pathfinder.HeightQuery {
	if u.w.surface == nil {
		return nil
	}
	return u.w.surface
}

// Target reads another unit from the snapshot taken at the start of the tick.
func (u *Unit) Target(id uint64) (motion.TargetInfo, bool) {
	info, ok := u.w.snapshot[id]
	return info, ok
}

func (u *Unit) LocateTarget(id uint64) (geom.Vec3, bool) {
	info, ok := u.w.snapshot[id]
	return info.Pos, ok
}

func (u *Unit) MovementInform(kind motion.Kind, id uint32) {
	u.informs = append(u.informs, InformEntry{Unit: u.id, Kind: kind.String(), ID: id})
}

func (u *Unit) info() motion.TargetInfo {
	return motion.TargetInfo{
		ID:          u.id,
		Pos:         u.pos,
		Orientation: u.orientation,
		CombatReach: u.combatReach,
		Walking:     u.ms.Flags().Has(spline.FlagWalkMode),
		Moving:      !u.ms.Finalized(),
	}
}

// update runs one tick for the unit: curve first, then the generator.
func (u *Unit) update(diff int32) {
	spline.Advance(u, diff)
	u.master.Update(diff)
}
