package motion

import (
	"math"

	"go.uber.org/zap"

	"navmotion.ai/internal/movement/spline"
	"navmotion.ai/internal/nav/geom"
	"navmotion.ai/internal/nav/pathfinder"
)

// Fleeing runs away from a fright source. With no source (or a source that
// is gone) it scatters in random directions.
type Fleeing struct {
	base
	Fright uint64

	timer int32
	path  *pathfinder.PathFinder
}

func (g *Fleeing) Kind() Kind { return KindFleeing }

func (g *Fleeing) Initialize(owner Moveable) {
	g.add(flagInitialized)
	g.clear(flagInterrupted)
	owner.AddUnitState(StateFleeing)
	g.timer = 0
	g.path = nil
}

func (g *Fleeing) Reset(owner Moveable) {
	g.clear(flagInterrupted | flagSpeedUpdatePending)
	owner.AddUnitState(StateFleeing)
	g.timer = 0
	g.path = nil
}

func (g *Fleeing) Interrupt(owner Moveable) {
	g.add(flagInterrupted)
	g.path = nil
	owner.ClearUnitState(StateFleeingMove)
}

func (g *Fleeing) Finalize(owner Moveable, active, _ bool) {
	g.add(flagFinalized)
	g.path = nil
	if active {
		owner.ClearUnitState(StateFleeing | StateFleeingMove)
		stopMoving(owner)
	}
}

func (g *Fleeing) Update(owner Moveable, diff int32) bool {
	finalized := owner.MoveSpline().Finalized()
	g.timer -= diff
	if (g.has(flagSpeedUpdatePending) && !finalized) || (g.timer <= 0 && finalized) {
		g.clear(flagSpeedUpdatePending)
		g.setTargetLocation(owner)
	}
	return true
}

func (g *Fleeing) setTargetLocation(owner Moveable) {
	cfg, log := g.env()
	if owner.HasUnitState(StateNotMove) {
		g.path = nil
		stopMoving(owner)
		g.timer = cfg.FleeRetryMs
		return
	}
	owner.AddUnitState(StateFleeingMove)
	dest := g.point(owner)

	if g.path == nil {
		g.path = owner.NewPathFinder()
		if g.path != nil {
			g.path.SetPathLengthLimit(cfg.FleePathLimit)
		}
	}
	points := []geom.Vec3{owner.Position(), dest}
	if g.path != nil {
		g.path.Calculate(dest, false)
		if unusablePath(g.path.Type(), true) {
			log.Debug("flee point unreachable", zap.Stringer("type", g.path.Type()))
			g.timer = cfg.FleeRetryMs
			return
		}
		points = g.path.Path()
	}

	in := spline.NewInit(owner)
	in.MoveByPath(points, 0)
	in.SetWalk(false)
	d := in.Launch()
	if d == 0 {
		g.timer = cfg.FleeRetryMs
		return
	}
	g.timer = d + urand(owner.Rand(), cfg.FleeCooldownMinMs, cfg.FleeCooldownMaxMs)
}

// point picks the next flee destination in bands around the fright source:
// too close runs straight away, too far drifts back, in between wanders.
func (g *Fleeing) point(owner Moveable) geom.Vec3 {
	cfg, _ := g.env()
	r := owner.Rand()
	pos := owner.Position()

	casterDist, casterAngle := 0.0, frand(r, 0, 2*math.Pi)
	if info, ok := owner.Target(g.Fright); ok && g.Fright != 0 {
		casterDist = geom.Dist(info.Pos, pos)
		if casterDist > 0.2 {
			casterAngle = geom.AngleTo(info.Pos, pos)
		}
	}

	var dist, angle float64
	switch {
	case casterDist < cfg.FleeMinQuiet:
		dist = frand(r, 0.4, 1.3) * (cfg.FleeMinQuiet - casterDist)
		angle = casterAngle + frand(r, -math.Pi/8, math.Pi/8)
	case casterDist > cfg.FleeMaxQuiet:
		dist = frand(r, 0.4, 1.0) * (cfg.FleeMaxQuiet - cfg.FleeMinQuiet)
		angle = casterAngle + math.Pi + frand(r, -math.Pi/4, math.Pi/4)
	default:
		dist = frand(r, 0.6, 1.2) * (cfg.FleeMaxQuiet - cfg.FleeMinQuiet)
		angle = frand(r, 0, 2*math.Pi)
	}
	return firstCollision(owner, pos, dist, angle)
}

// TimedFleeing flees for a fixed time and then pops.
type TimedFleeing struct {
	Fleeing
	DurationMs int32
	left       int32
}

func (g *TimedFleeing) Kind() Kind { return KindTimedFleeing }

func (g *TimedFleeing) Initialize(owner Moveable) {
	g.left = g.DurationMs
	g.Fleeing.Initialize(owner)
}

func (g *TimedFleeing) Update(owner Moveable, diff int32) bool {
	g.left -= diff
	if g.left <= 0 {
		return false
	}
	return g.Fleeing.Update(owner, diff)
}
