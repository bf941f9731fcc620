package motion

import (
	"go.uber.org/zap"

	"navmotion.ai/internal/movement/spline"
	"navmotion.ai/internal/nav/geom"
)

// Idle keeps the unit where it is.
type Idle struct{ base }

func (g *Idle) Kind() Kind { return KindIdle }

func (g *Idle) Initialize(owner Moveable) {
	g.add(flagInitialized)
	stopMoving(owner)
}

func (g *Idle) Reset(owner Moveable) {
	g.clear(flagInterrupted)
	stopMoving(owner)
}

func (g *Idle) Interrupt(Moveable)                  { g.add(flagInterrupted) }
func (g *Idle) Finalize(Moveable, bool, bool)       { g.add(flagFinalized) }
func (g *Idle) Update(owner Moveable, _ int32) bool { return true }

// Point moves to a destination once and pops on arrival.
type Point struct {
	base
	ID           uint32
	Dest         geom.Vec3
	GeneratePath bool
	Speed        float64
	FinalFacing  *float64
	Walk         bool
	ForceDest    bool
}

func (g *Point) Kind() Kind { return KindPoint }

func (g *Point) Initialize(owner Moveable) {
	g.add(flagInitialized)
	g.clear(flagInterrupted)
	g.launch(owner)
}

func (g *Point) launch(owner Moveable) {
	owner.AddUnitState(StateRoamingMove)
	in := spline.NewInit(owner)
	in.MoveTo(g.Dest, g.GeneratePath, g.ForceDest, 0)
	in.SetWalk(g.Walk)
	if g.Speed > 0 {
		in.SetVelocity(g.Speed)
	}
	if g.FinalFacing != nil {
		in.SetFacing(*g.FinalFacing)
	}
	in.Launch()
}

func (g *Point) Reset(owner Moveable) {
	g.clear(flagInterrupted | flagSpeedUpdatePending)
	g.launch(owner)
}

func (g *Point) Interrupt(owner Moveable) {
	g.add(flagInterrupted)
	owner.ClearUnitState(StateRoamingMove)
}

func (g *Point) Update(owner Moveable, _ int32) bool {
	if g.has(flagSpeedUpdatePending) && !owner.MoveSpline().Finalized() {
		g.clear(flagSpeedUpdatePending)
		g.launch(owner)
	}
	if owner.MoveSpline().Finalized() {
		g.add(flagInformEnabled)
		return false
	}
	return true
}

func (g *Point) Finalize(owner Moveable, active, movementInform bool) {
	g.add(flagFinalized)
	if active {
		owner.ClearUnitState(StateRoamingMove)
	}
	if movementInform && g.has(flagInformEnabled) {
		inform(owner, KindPoint, g.ID)
	}
}

// Home walks back to the owner's home position.
type Home struct{ base }

func (g *Home) Kind() Kind { return KindHome }

func (g *Home) Initialize(owner Moveable) {
	g.add(flagInitialized)
	g.launch(owner)
}

func (g *Home) launch(owner Moveable) {
	home := owner.Home()
	owner.AddUnitState(StateRoamingMove | StateEvade)
	in := spline.NewInit(owner)
	in.MoveTo(home.Pos, true, false, 0)
	in.SetFacing(home.Orientation)
	in.SetWalk(false)
	if in.Launch() == 0 {
		// Already home: turn to the home facing.
		spline.FaceTo(owner, home.Orientation, true)
	}
}

func (g *Home) Reset(owner Moveable) {
	g.clear(flagInterrupted)
	g.launch(owner)
}

func (g *Home) Interrupt(owner Moveable) {
	g.add(flagInterrupted)
	owner.ClearUnitState(StateRoamingMove)
}

func (g *Home) Update(owner Moveable, _ int32) bool {
	if g.has(flagInterrupted) || owner.MoveSpline().Finalized() {
		g.add(flagInformEnabled)
		return false
	}
	return true
}

func (g *Home) Finalize(owner Moveable, active, movementInform bool) {
	g.add(flagFinalized)
	if active {
		owner.ClearUnitState(StateRoamingMove | StateEvade)
	}
	if movementInform && g.has(flagInformEnabled) {
		inform(owner, KindHome, 0)
	}
}

// Distract turns the unit to a fixed direction for a while.
type Distract struct {
	base
	Orientation float64
	DurationMs  int32
	timer       int32
}

func (g *Distract) Kind() Kind { return KindDistract }

func (g *Distract) Initialize(owner Moveable) {
	g.add(flagInitialized)
	g.timer = g.DurationMs
	owner.AddUnitState(StateDistracted)
	in := spline.NewInit(owner)
	in.MoveTo(owner.Position(), false, false, 0)
	in.SetFacing(g.Orientation)
	in.SetOrientationFixed(true)
	in.Launch()
}

func (g *Distract) Reset(owner Moveable) {
	g.clear(flagInterrupted)
	spline.FaceTo(owner, g.Orientation, true)
}

func (g *Distract) Interrupt(Moveable) { g.add(flagInterrupted) }

func (g *Distract) Update(owner Moveable, diff int32) bool {
	if diff >= g.timer {
		g.add(flagInformEnabled)
		return false
	}
	g.timer -= diff
	return true
}

func (g *Distract) Finalize(owner Moveable, _, movementInform bool) {
	g.add(flagFinalized)
	owner.ClearUnitState(StateDistracted)
	if movementInform && g.has(flagInformEnabled) {
		inform(owner, KindDistract, 0)
	}
}

// Effect runs a caller-built curve (jump, fall, charge) and pops when it
// lands.
type Effect struct {
	base
	ID    uint32
	Build func(in *spline.Init)
	// Arrived runs once when the curve lands, before the inform.
	Arrived  func(owner Moveable)
	duration int32
}

func (g *Effect) Kind() Kind { return KindEffect }

func (g *Effect) Initialize(owner Moveable) {
	g.add(flagInitialized)
	in := spline.NewInit(owner)
	if g.Build != nil {
		g.Build(in)
	}
	g.duration = in.Launch()
	if g.duration == 0 {
		_, log := g.env()
		log.Debug("effect curve rejected", zap.Error(in.Err()))
	}
}

func (g *Effect) Reset(Moveable)     { g.clear(flagInterrupted) }
func (g *Effect) Interrupt(Moveable) { g.add(flagInterrupted) }

func (g *Effect) Update(owner Moveable, diff int32) bool {
	g.duration -= diff
	if g.duration <= 0 || owner.MoveSpline().Finalized() {
		g.add(flagInformEnabled)
		return false
	}
	return true
}

func (g *Effect) Finalize(owner Moveable, _, movementInform bool) {
	g.add(flagFinalized)
	if !g.has(flagInformEnabled) {
		return
	}
	if g.Arrived != nil {
		g.Arrived(owner)
	}
	if movementInform {
		inform(owner, KindEffect, g.ID)
	}
}
