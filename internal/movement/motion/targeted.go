package motion

import (
	"math"

	"go.uber.org/zap"

	"navmotion.ai/internal/movement/spline"
	"navmotion.ai/internal/nav/geom"
	"navmotion.ai/internal/nav/pathfinder"
)

const reachEpsilon = 0.01

// tracker is the replanning state shared by Chase and Follow.
type tracker struct {
	path       *pathfinder.PathFinder
	lastTarget geom.Vec3
	hasLast    bool
	recheck    int32
	retry      int32
	recalc     bool
}

func (t *tracker) reset() {
	t.path = nil
	t.hasLast = false
	t.recheck = 0
	t.retry = 0
	t.recalc = true
}

// due reports whether the target drifted past threshold since the last plan,
// checking at most once per interval. A pending recalc or an elapsed NoPath
// retry also makes it due.
func (t *tracker) due(info TargetInfo, diff, interval int32, threshold float64) bool {
	if t.retry > 0 {
		t.retry -= diff
		if t.retry <= 0 {
			t.recalc = true
		}
	}
	moved := false
	t.recheck -= diff
	if t.recheck <= 0 {
		t.recheck = interval
		moved = !t.hasLast || geom.Dist2D(info.Pos, t.lastTarget) > threshold
	}
	return t.recalc || moved
}

func (t *tracker) planned(info TargetInfo) {
	t.recalc = false
	t.lastTarget = info.Pos
	t.hasLast = true
}

// plan returns a point path towards dest, or false when no path exists.
func (t *tracker) plan(owner Moveable, dest geom.Vec3, stopDist float64) ([]geom.Vec3, bool) {
	if t.path == nil {
		t.path = owner.NewPathFinder()
	}
	if t.path == nil {
		from := owner.Position()
		d := geom.Dist(from, dest)
		if stopDist > 0 && d > stopDist {
			dest = geom.Lerp(from, dest, (d-stopDist)/d)
		}
		return []geom.Vec3{from, dest}, true
	}
	t.path.Calculate(dest, owner.CanFly())
	if t.path.Type().Has(pathfinder.NoPath) {
		return nil, false
	}
	if stopDist > 0 {
		t.path.ShortenPathUntilDist(dest, stopDist)
	}
	return t.path.Path(), true
}

// Chase closes in on a target to melee reach (or Range when set).
type Chase struct {
	base
	tracker
	Target uint64
	// Range overrides the melee reach when positive.
	Range float64
	Walk  bool
	// OnReached fires once each time a launched approach ends within reach.
	OnReached func(owner Moveable, target uint64)

	reached bool
}

func (g *Chase) Kind() Kind { return KindChase }

func (g *Chase) Initialize(owner Moveable) {
	g.add(flagInitialized)
	g.clear(flagInterrupted)
	g.tracker.reset()
	g.reached = false
	owner.AddUnitState(StateChase)
}

func (g *Chase) Reset(owner Moveable) {
	g.clear(flagInterrupted | flagSpeedUpdatePending)
	g.tracker.reset()
	owner.AddUnitState(StateChase)
}

func (g *Chase) Interrupt(owner Moveable) {
	g.add(flagInterrupted)
	g.path = nil
	owner.ClearUnitState(StateChaseMove)
}

func (g *Chase) Finalize(owner Moveable, active, _ bool) {
	g.add(flagFinalized)
	g.path = nil
	if active {
		owner.ClearUnitState(StateChase | StateChaseMove)
	}
}

func (g *Chase) reach(owner Moveable, info TargetInfo) float64 {
	if g.Range > 0 {
		return g.Range
	}
	cfg, _ := g.env()
	return cfg.meleeReach(owner.CombatReach(), info.CombatReach)
}

func (g *Chase) Update(owner Moveable, diff int32) bool {
	info, ok := owner.Target(g.Target)
	if !ok {
		return false
	}
	if owner.HasUnitState(StateNotMove) {
		stopMoving(owner)
		owner.ClearUnitState(StateChaseMove)
		g.hasLast = false
		return true
	}
	cfg, _ := g.env()
	reach := g.reach(owner, info)

	if g.has(flagSpeedUpdatePending) {
		g.clear(flagSpeedUpdatePending)
		g.recalc = true
	}
	// Settle a finished approach before replanning, so an arrival within
	// reach is not chased by another short leg.
	if owner.HasUnitState(StateChaseMove) && owner.MoveSpline().Finalized() {
		owner.ClearUnitState(StateChaseMove)
		g.path = nil
		g.checkReached(owner, info, reach)
	}
	if g.due(info, diff, cfg.ChaseRecheckMs, cfg.recalcThreshold(reach)) {
		g.setTargetLocation(owner, info, reach)
	}
	return true
}

func (g *Chase) checkReached(owner Moveable, info TargetInfo, reach float64) {
	if g.reached || geom.Dist(owner.Position(), info.Pos) > reach+reachEpsilon {
		return
	}
	g.reached = true
	if g.OnReached != nil {
		g.OnReached(owner, g.Target)
	}
}

func (g *Chase) setTargetLocation(owner Moveable, info TargetInfo, reach float64) {
	cfg, log := g.env()
	g.planned(info)
	if !owner.HasUnitState(StateChaseMove) && geom.Dist(owner.Position(), info.Pos) <= reach {
		spline.FaceTo(owner, geom.AngleTo(owner.Position(), info.Pos), false)
		g.checkReached(owner, info, reach)
		return
	}
	stop := math.Max(reach-cfg.ContactDistance, cfg.ContactDistance)
	points, ok := g.plan(owner, info.Pos, stop)
	if !ok {
		log.Debug("chase no path", zap.Uint64("target", g.Target))
		stopMoving(owner)
		owner.ClearUnitState(StateChaseMove)
		g.retry = cfg.NoPathRetryMs
		return
	}
	in := spline.NewInit(owner)
	in.MoveByPath(points, 0)
	in.SetWalk(g.Walk)
	in.SetFacingTarget(g.Target)
	if in.Launch() == 0 {
		return
	}
	owner.AddUnitState(StateChaseMove)
	g.reached = false
}

// Follow keeps the unit at Distance from a target, at Angle relative to the
// target's facing. It mirrors the target's walk mode.
type Follow struct {
	base
	tracker
	Target   uint64
	Distance float64
	Angle    float64
}

func (g *Follow) Kind() Kind { return KindFollow }

func (g *Follow) Initialize(owner Moveable) {
	g.add(flagInitialized)
	g.clear(flagInterrupted)
	g.tracker.reset()
	owner.AddUnitState(StateFollow)
}

func (g *Follow) Reset(owner Moveable) {
	g.clear(flagInterrupted | flagSpeedUpdatePending)
	g.tracker.reset()
	owner.AddUnitState(StateFollow)
}

func (g *Follow) Interrupt(owner Moveable) {
	g.add(flagInterrupted)
	g.path = nil
	owner.ClearUnitState(StateFollowMove)
}

func (g *Follow) Finalize(owner Moveable, active, _ bool) {
	g.add(flagFinalized)
	g.path = nil
	if active {
		owner.ClearUnitState(StateFollow | StateFollowMove)
	}
}

func (g *Follow) Update(owner Moveable, diff int32) bool {
	info, ok := owner.Target(g.Target)
	if !ok {
		return false
	}
	if owner.HasUnitState(StateNotMove) {
		stopMoving(owner)
		owner.ClearUnitState(StateFollowMove)
		g.hasLast = false
		return true
	}
	cfg, log := g.env()
	if g.has(flagSpeedUpdatePending) {
		g.clear(flagSpeedUpdatePending)
		g.recalc = true
	}
	if owner.HasUnitState(StateFollowMove) && owner.MoveSpline().Finalized() {
		owner.ClearUnitState(StateFollowMove)
		g.path = nil
	}
	if !g.due(info, diff, cfg.FollowRecheckMs, cfg.recalcThreshold(g.Distance)) {
		return true
	}
	g.planned(info)
	if !owner.HasUnitState(StateFollowMove) && g.inPosition(owner, info) {
		return true
	}

	dest := geom.Polar(info.Pos, info.Orientation+g.Angle, g.Distance)
	if hq := owner.HeightQuery(); hq != nil {
		if h, ok := hq.HeightAt(dest[0], dest[1], info.Pos[2], 10); ok {
			dest[2] = h
		}
	}
	points, ok := g.plan(owner, dest, 0)
	if !ok {
		log.Debug("follow no path", zap.Uint64("target", g.Target))
		stopMoving(owner)
		owner.ClearUnitState(StateFollowMove)
		g.retry = cfg.NoPathRetryMs
		return true
	}
	in := spline.NewInit(owner)
	in.MoveByPath(points, 0)
	in.SetWalk(info.Walking)
	in.SetFacing(info.Orientation)
	if in.Launch() > 0 {
		owner.AddUnitState(StateFollowMove)
	}
	return true
}

// inPosition reports whether the owner already sits inside the follow band.
func (g *Follow) inPosition(owner Moveable, info TargetInfo) bool {
	cfg, _ := g.env()
	pos := owner.Position()
	if geom.Dist(pos, info.Pos) > g.Distance+cfg.FollowTolerance {
		return false
	}
	if g.Distance < cfg.FollowTolerance {
		return true
	}
	want := geom.NormalizeAngle(info.Orientation + g.Angle)
	got := geom.AngleTo(info.Pos, pos)
	d := math.Abs(want - got)
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d <= cfg.FollowAngleBand
}
