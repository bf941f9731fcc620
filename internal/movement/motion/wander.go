package motion

import (
	"math"

	"go.uber.org/zap"

	"navmotion.ai/internal/movement/spline"
	"navmotion.ai/internal/nav/geom"
	"navmotion.ai/internal/nav/pathfinder"
)

// Random wanders around the owner's home position within Radius.
type Random struct {
	base
	Radius float64
	Walk   bool

	center geom.Vec3
	timer  int32
	steps  int32
	path   *pathfinder.PathFinder
}

func (g *Random) Kind() Kind { return KindRandom }

func (g *Random) Initialize(owner Moveable) {
	cfg, _ := g.env()
	g.add(flagInitialized)
	g.clear(flagInterrupted)
	g.center = owner.Home().Pos
	g.timer = 0
	g.steps = urand(owner.Rand(), cfg.RandomSteps[0], cfg.RandomSteps[1])
	g.path = nil
	owner.AddUnitState(StateRoaming)
}

func (g *Random) Reset(owner Moveable) {
	g.clear(flagInterrupted | flagSpeedUpdatePending)
	g.timer = 0
	g.path = nil
	owner.AddUnitState(StateRoaming)
}

func (g *Random) Interrupt(owner Moveable) {
	g.add(flagInterrupted)
	g.path = nil
	owner.ClearUnitState(StateRoamingMove)
}

func (g *Random) Finalize(owner Moveable, active, _ bool) {
	g.add(flagFinalized)
	g.path = nil
	if active {
		owner.ClearUnitState(StateRoaming | StateRoamingMove)
		stopMoving(owner)
	}
}

func (g *Random) Update(owner Moveable, diff int32) bool {
	if owner.HasUnitState(StateNotMove) {
		g.path = nil
		stopMoving(owner)
		return true
	}
	finalized := owner.MoveSpline().Finalized()
	if finalized {
		owner.ClearUnitState(StateRoamingMove)
	}
	g.timer -= diff
	if (g.has(flagSpeedUpdatePending) && !finalized) || (g.timer <= 0 && finalized) {
		g.clear(flagSpeedUpdatePending)
		g.wander(owner)
	}
	return true
}

func (g *Random) wander(owner Moveable) {
	cfg, log := g.env()
	r := owner.Rand()
	dist := frand(r, 0, g.Radius)
	dest := firstCollision(owner, g.center, dist, frand(r, 0, 2*math.Pi))

	if g.path == nil {
		g.path = owner.NewPathFinder()
		if g.path != nil {
			g.path.SetPathLengthLimit(cfg.WanderPathLimit)
		}
	}
	points := []geom.Vec3{owner.Position(), dest}
	if g.path != nil {
		g.path.Calculate(dest, false)
		if unusablePath(g.path.Type(), false) {
			g.timer = cfg.WanderRetryMs
			return
		}
		direct := geom.Dist(owner.Position(), dest)
		if direct > 0 && g.path.Length() > direct*cfg.RandomMaxPathFactor {
			log.Debug("random path too long", zap.Float64("path", g.path.Length()), zap.Float64("direct", direct))
			g.timer = cfg.WanderRetryMs
			return
		}
		points = g.path.Path()
	}

	in := spline.NewInit(owner)
	in.MoveByPath(points, 0)
	in.SetWalk(g.Walk)
	d := in.Launch()
	if d == 0 {
		g.timer = cfg.WanderRetryMs
		return
	}
	owner.AddUnitState(StateRoamingMove)
	g.steps--
	if g.steps > 0 {
		g.timer = d
		return
	}
	pause := cfg.RandomShortPauseMs
	if r.Intn(2) == 0 {
		pause = cfg.RandomLongPauseMs
	}
	g.timer = d + urand(r, pause[0], pause[1])
	g.steps = urand(r, cfg.RandomSteps[0], cfg.RandomSteps[1])
}

// Confused makes short random hops around where the confusion started.
type Confused struct {
	base
	origin geom.Vec3
	timer  int32
	path   *pathfinder.PathFinder
}

func (g *Confused) Kind() Kind { return KindConfused }

func (g *Confused) Initialize(owner Moveable) {
	g.add(flagInitialized)
	g.clear(flagInterrupted)
	owner.AddUnitState(StateConfused)
	stopMoving(owner)
	g.origin = owner.Position()
	g.timer = 0
	g.path = nil
}

func (g *Confused) Reset(owner Moveable) {
	g.clear(flagInterrupted | flagSpeedUpdatePending)
	owner.AddUnitState(StateConfused)
	g.timer = 0
	g.path = nil
}

func (g *Confused) Interrupt(owner Moveable) {
	g.add(flagInterrupted)
	g.path = nil
	owner.ClearUnitState(StateConfusedMove)
}

func (g *Confused) Finalize(owner Moveable, active, _ bool) {
	g.add(flagFinalized)
	g.path = nil
	if active {
		owner.ClearUnitState(StateConfused | StateConfusedMove)
		stopMoving(owner)
	}
}

func (g *Confused) Update(owner Moveable, diff int32) bool {
	if owner.HasUnitState(StateNotMove) {
		g.path = nil
		stopMoving(owner)
		return true
	}
	cfg, _ := g.env()
	finalized := owner.MoveSpline().Finalized()
	g.timer -= diff
	if !(g.has(flagSpeedUpdatePending) && !finalized) && !(g.timer <= 0 && finalized) {
		return true
	}
	g.clear(flagSpeedUpdatePending)

	r := owner.Rand()
	hop := cfg.ConfusedHop
	dest := firstCollision(owner, g.origin, frand(r, -hop, hop), frand(r, 0, 2*math.Pi))

	if g.path == nil {
		g.path = owner.NewPathFinder()
		if g.path != nil {
			g.path.SetPathLengthLimit(cfg.WanderPathLimit)
		}
	}
	points := []geom.Vec3{owner.Position(), dest}
	if g.path != nil {
		g.path.Calculate(dest, false)
		if unusablePath(g.path.Type(), true) {
			g.timer = cfg.WanderRetryMs
			return true
		}
		points = g.path.Path()
	}
	in := spline.NewInit(owner)
	in.MoveByPath(points, 0)
	in.SetWalk(true)
	d := in.Launch()
	if d == 0 {
		g.timer = cfg.WanderRetryMs
		return true
	}
	owner.AddUnitState(StateConfusedMove)
	g.timer = d
	return true
}
