package motion

import (
	"math"
	"math/rand"

	"go.uber.org/zap"

	"navmotion.ai/internal/movement/spline"
	"navmotion.ai/internal/nav/geom"
	"navmotion.ai/internal/nav/pathfinder"
)

type Kind uint8

const (
	KindIdle Kind = iota
	KindRandom
	KindWaypoint
	KindConfused
	KindChase
	KindHome
	KindFlight
	KindPoint
	KindFleeing
	KindTimedFleeing
	KindDistract
	KindEffect
	KindFollow
)

var kindNames = [...]string{
	KindIdle: "IDLE", KindRandom: "RANDOM", KindWaypoint: "WAYPOINT", KindConfused: "CONFUSED",
	KindChase: "CHASE", KindHome: "HOME", KindFlight: "FLIGHT", KindPoint: "POINT",
	KindFleeing: "FLEEING", KindTimedFleeing: "TIMED_FLEEING", KindDistract: "DISTRACT",
	KindEffect: "EFFECT", KindFollow: "FOLLOW",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "UNKNOWN"
}

// UnitState are movement state bits kept on the owner.
type UnitState uint32

const (
	StateRoaming UnitState = 1 << iota
	StateRoamingMove
	StateChase
	StateChaseMove
	StateFollow
	StateFollowMove
	StateFleeing
	StateFleeingMove
	StateConfused
	StateConfusedMove
	StateDistracted
	StateInFlight
	StateRoot
	StateEvade

	StateNotMove = StateRoot
)

// TargetInfo is the per-tick view of another unit.
type TargetInfo struct {
	ID          uint64
	Pos         geom.Vec3
	Orientation float64
	CombatReach float64
	Walking     bool
	Moving      bool
}

// Moveable is everything a generator may touch on its owner.
type Moveable interface {
	spline.Mover
	spline.PathPlanner
	ID() uint64
	CombatReach() float64
	Home() spline.Location
	Target(id uint64) (TargetInfo, bool)
	HeightQuery() pathfinder.HeightQuery
	Rand() *rand.Rand
	CanFly() bool
	AddUnitState(UnitState)
	ClearUnitState(UnitState)
	HasUnitState(UnitState) bool
}

// Informer is implemented by owners that want arrival notifications.
type Informer interface {
	MovementInform(kind Kind, id uint32)
}

// Generator is one movement behavior on a Master stack.
type Generator interface {
	Initialize(owner Moveable)
	Finalize(owner Moveable, active, movementInform bool)
	Interrupt(owner Moveable)
	Reset(owner Moveable)
	Update(owner Moveable, diff int32) bool
	Kind() Kind
	SpeedChanged()
}

type genFlags uint16

const (
	flagInitialized genFlags = 1 << iota
	flagInterrupted
	flagFinalized
	flagInformEnabled
	flagSpeedUpdatePending
	flagPaused
	flagTimedPaused
)

// base carries the lifecycle bits and environment shared by all built-in
// generators.
type base struct {
	flags genFlags
	cfg   *Config
	log   *zap.Logger
}

func (b *base) attach(cfg *Config, log *zap.Logger) {
	b.cfg = cfg
	b.log = log
}

func (b *base) env() (*Config, *zap.Logger) {
	if b.cfg == nil {
		c := DefaultConfig()
		b.cfg = &c
	}
	if b.log == nil {
		b.log = zap.NewNop()
	}
	return b.cfg, b.log
}

func (b *base) has(f genFlags) bool { return b.flags&f != 0 }
func (b *base) add(f genFlags)      { b.flags |= f }
func (b *base) clear(f genFlags)    { b.flags &^= f }

func (b *base) SpeedChanged() { b.add(flagSpeedUpdatePending) }

type attacher interface {
	attach(cfg *Config, log *zap.Logger)
}

func stopMoving(owner Moveable) {
	spline.NewInit(owner).Stop()
}

func inform(owner Moveable, kind Kind, id uint32) {
	if in, ok := owner.(Informer); ok {
		in.MovementInform(kind, id)
	}
}

func frand(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

func urand(r *rand.Rand, lo, hi int32) int32 {
	if hi <= lo {
		return lo
	}
	return lo + r.Int31n(hi-lo+1)
}

// firstCollision projects dist along angle from from, settles the point on
// the ground and pulls it back to the first obstacle on the way.
func firstCollision(owner Moveable, from geom.Vec3, dist, angle float64) geom.Vec3 {
	dest := geom.Polar(from, angle, dist)
	hq := owner.HeightQuery()
	if hq == nil {
		return dest
	}
	if h, ok := hq.HeightAt(dest[0], dest[1], dest[2], math.Max(10, dist)); ok {
		dest[2] = h
	}
	hit, blocked := hq.HitPosition(from, dest)
	if !blocked {
		return dest
	}
	// Stay off the wall.
	back := from.Sub(hit)
	if l := back.Len(); l > collisionBackoff {
		hit = hit.Add(back.Mul(collisionBackoff / l))
	} else {
		hit = from
	}
	return hit
}

const collisionBackoff = 0.5

// unusablePath reports path results a wandering generator should retry. A
// Shortcut that is NotUsingPath is the straight leg flying, swimming and
// off-mesh movers travel, so it is kept.
func unusablePath(t pathfinder.PathType, rejectFar bool) bool {
	if t.Has(pathfinder.NoPath) {
		return true
	}
	if t.Has(pathfinder.Shortcut) && !t.Has(pathfinder.NotUsingPath) {
		return true
	}
	return rejectFar && t.Has(pathfinder.FarFromStart|pathfinder.FarFromEnd)
}
