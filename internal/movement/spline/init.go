package spline

import (
	"sync/atomic"

	"navmotion.ai/internal/nav/geom"
	"navmotion.ai/internal/nav/pathfinder"
)

type SpeedType uint8

const (
	SpeedWalk SpeedType = iota
	SpeedRun
	SpeedRunBack
	SpeedSwim
	SpeedSwimBack
	SpeedFlight
	SpeedFlightBack
)

const (
	smoothSpeedLimit  = 50.0
	groundSpeedFloor  = 28.0
	groundSpeedFactor = 4.0
)

// Mover owns a MoveSpline and the position it drives.
type Mover interface {
	Position() geom.Vec3
	Orientation() float64
	Speed(SpeedType) float64
	IsSwimming() bool
	MoveSpline() *MoveSpline
	Relocate(pos geom.Vec3, orientation float64)
}

// PathPlanner is implemented by movers that can plan over a navmesh.
type PathPlanner interface {
	NewPathFinder() *pathfinder.PathFinder
}

// TargetLocator resolves FacingTarget ids while a curve is sampled.
type TargetLocator interface {
	LocateTarget(id uint64) (geom.Vec3, bool)
}

var splineIDs atomic.Uint32

func nextSplineID() uint32 { return splineIDs.Add(1) }

// Init collects the parameters of one launch. It is not reusable across
// movers.
type Init struct {
	owner       Mover
	args        InitArgs
	walk        bool
	hasVelocity bool
	err         error
}

func NewInit(owner Mover) *Init {
	return &Init{owner: owner}
}

// MoveByPath moves along points. offset is added to CurrentPathIdx so
// callers can map progress back to their own node list.
func (in *Init) MoveByPath(points []geom.Vec3, offset int) {
	in.args.PathIdxOffset = offset
	in.args.Path = append(in.args.Path[:0], points...)
}

// MoveTo moves to dest, through the owner's PathFinder when generatePath is
// set and a path exists, else in a straight line. maxRange > 0 caps the
// planned path length.
func (in *Init) MoveTo(dest geom.Vec3, generatePath, forceDest bool, maxRange float64) {
	if generatePath {
		if pp, ok := in.owner.(PathPlanner); ok {
			if pf := pp.NewPathFinder(); pf != nil {
				if maxRange > 0 {
					pf.SetPathLengthLimit(maxRange)
				}
				pf.Calculate(dest, forceDest)
				if !pf.Type().Has(pathfinder.NoPath) {
					in.MoveByPath(pf.Path(), 0)
					return
				}
			}
		}
	}
	in.args.PathIdxOffset = 0
	in.args.Path = append(in.args.Path[:0], in.owner.Position(), dest)
}

// SetWalk selects walk speed when no velocity is set.
func (in *Init) SetWalk(walk bool) {
	in.walk = walk
	if walk {
		in.args.Flags |= FlagWalkMode
	} else {
		in.args.Flags &^= FlagWalkMode
	}
}

func (in *Init) SetFly() {
	in.args.Flags = in.args.Flags&^FlagFalling | FlagFlying
}

// SetSmooth interpolates with a Catmull-Rom curve.
func (in *Init) SetSmooth() { in.args.Flags |= FlagCatmullRom }

func (in *Init) SetCyclic() { in.args.Flags |= FlagCyclic }

func (in *Init) SetFall() {
	in.args.Flags = in.args.Flags&^(FlagParabolic|FlagFlying) | FlagFalling
}

// SetParabolic lifts the curve by amplitude at its midpoint. The arc starts
// after startPercent of the duration.
func (in *Init) SetParabolic(amplitude, startPercent float64) {
	in.args.ParabolicAmplitude = amplitude
	in.args.EffectStartPercent = startPercent
	in.args.VerticalAcceleration = 0
	in.args.Flags = in.args.Flags&^FlagFalling | FlagParabolic
}

func (in *Init) SetVelocity(v float64) {
	in.args.Velocity = v
	in.hasVelocity = true
}

func (in *Init) SetBackward() { in.args.Flags |= FlagBackward }

func (in *Init) SetOrientationFixed(fixed bool) {
	if fixed {
		in.args.Flags |= FlagOrientationFixed
	} else {
		in.args.Flags &^= FlagOrientationFixed
	}
}

func (in *Init) SetFacing(angle float64) {
	in.setFacing(Facing{Kind: FacingAngle, Angle: geom.NormalizeAngle(angle)}, FlagFinalAngle)
}

func (in *Init) SetFacingPoint(p geom.Vec3) {
	in.setFacing(Facing{Kind: FacingPoint, Point: p}, FlagFinalPoint)
}

func (in *Init) SetFacingTarget(id uint64) {
	in.setFacing(Facing{Kind: FacingTarget, Target: id}, FlagFinalTarget)
}

func (in *Init) setFacing(f Facing, flag Flags) {
	in.args.Facing = f
	in.args.Flags = in.args.Flags&^facingMask | flag
}

// Path returns the points collected so far.
func (in *Init) Path() []geom.Vec3 { return in.args.Path }

// Err is the validation error of the last Launch, if any.
func (in *Init) Err() error { return in.err }

// Launch installs a new curve on the owner, replacing any curve in flight,
// and returns its duration in ms. Invalid parameters leave the previous
// curve untouched and return 0.
func (in *Init) Launch() int32 {
	in.err = nil
	ms := in.owner.MoveSpline()
	if len(in.args.Path) == 0 {
		return 0
	}

	cur := Location{Pos: in.owner.Position(), Orientation: in.owner.Orientation()}
	if !ms.Finalized() {
		cur = ms.ComputePosition()
	}
	in.args.Path[0] = cur.Pos
	in.args.InitialOrientation = cur.Orientation
	if len(in.args.Path) > 2 {
		in.args.Path = dropShortSegments(in.args.Path)
	}

	if !in.hasVelocity {
		in.args.Velocity = in.owner.Speed(in.speedType())
	}
	in.args.Velocity = min(in.args.Velocity, in.speedLimit())

	if err := in.args.Validate(); err != nil {
		in.err = err
		return 0
	}
	in.args.SplineID = nextSplineID()
	ms.Initialize(&in.args)
	return ms.Duration()
}

// Stop freezes the owner where its curve currently is.
func (in *Init) Stop() {
	ms := in.owner.MoveSpline()
	if ms.Finalized() {
		return
	}
	loc := ms.ComputePosition()
	in.args = InitArgs{
		Path:               []geom.Vec3{loc.Pos},
		Flags:              FlagDone,
		InitialOrientation: loc.Orientation,
		SplineID:           nextSplineID(),
	}
	ms.Initialize(&in.args)
	in.owner.Relocate(loc.Pos, loc.Orientation)
}

func (in *Init) speedType() SpeedType {
	back := in.args.Flags.Has(FlagBackward)
	switch {
	case in.args.Flags.Has(FlagFlying):
		if back {
			return SpeedFlightBack
		}
		return SpeedFlight
	case in.owner.IsSwimming():
		if back {
			return SpeedSwimBack
		}
		return SpeedSwim
	case in.walk:
		return SpeedWalk
	case back:
		return SpeedRunBack
	}
	return SpeedRun
}

func (in *Init) speedLimit() float64 {
	if in.args.Flags.Has(FlagFalling | FlagCatmullRom | FlagFlying | FlagParabolic) {
		return smoothSpeedLimit
	}
	return max(groundSpeedFloor, in.owner.Speed(SpeedRun)*groundSpeedFactor)
}

// dropShortSegments removes interior points closer than minSegmentLength to
// the previously kept point. The first and last points are always kept.
func dropShortSegments(path []geom.Vec3) []geom.Vec3 {
	out := path[:1]
	for i := 1; i < len(path)-1; i++ {
		if geom.Dist(out[len(out)-1], path[i]) >= minSegmentLength {
			out = append(out, path[i])
		}
	}
	last := path[len(path)-1]
	if len(out) > 1 && geom.Dist(out[len(out)-1], last) < minSegmentLength {
		out = out[:len(out)-1]
	}
	return append(out, last)
}

// FaceTo turns the owner in place. Unless force is set it does nothing while
// a curve is in flight.
func FaceTo(owner Mover, angle float64, force bool) int32 {
	if !force && !owner.MoveSpline().Finalized() {
		return 0
	}
	in := NewInit(owner)
	in.MoveTo(owner.Position(), false, false, 0)
	in.SetFacing(angle)
	return in.Launch()
}

// Advance runs the owner's curve forward by diff ms and relocates the owner
// to the sampled position.
func Advance(owner Mover, diff int32) UpdateResult {
	ms := owner.MoveSpline()
	if ms.Finalized() {
		return ResultNone
	}
	res := ms.UpdateState(diff, nil)
	loc := ms.ComputePosition()
	if ms.Finalized() && ms.Facing().Kind == FacingTarget {
		if tl, ok := owner.(TargetLocator); ok {
			if p, ok := tl.LocateTarget(ms.Facing().Target); ok {
				loc.Orientation = geom.AngleTo(loc.Pos, p)
			}
		}
	}
	owner.Relocate(loc.Pos, loc.Orientation)
	return res
}
