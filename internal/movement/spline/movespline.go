package spline

import (
	"errors"
	"fmt"
	"math"

	"navmotion.ai/internal/nav/geom"
)

var ErrInvalidArgs = errors.New("spline: invalid args")

type Flags uint32

const (
	FlagDone Flags = 1 << iota
	FlagFalling
	FlagCatmullRom
	FlagCyclic
	FlagFlying
	FlagWalkMode
	FlagParabolic
	FlagOrientationFixed
	FlagFinalPoint
	FlagFinalTarget
	FlagFinalAngle
	FlagBackward
)

const facingMask = FlagFinalPoint | FlagFinalTarget | FlagFinalAngle

// Has reports whether any of f is set.
func (fl Flags) Has(f Flags) bool { return fl&f != 0 }

type FacingKind uint8

const (
	FacingNone FacingKind = iota
	FacingAngle
	FacingPoint
	FacingTarget
)

// Facing is the orientation applied once the curve finalizes.
type Facing struct {
	Kind   FacingKind
	Angle  float64
	Point  geom.Vec3
	Target uint64
}

type Location struct {
	Pos         geom.Vec3
	Orientation float64
}

type UpdateResult uint8

const (
	ResultNone UpdateResult = iota
	ResultNextSegment
	ResultNextCycle
	ResultArrived
)

// minSegmentLength is the shortest allowed segment on non facing-only curves.
const minSegmentLength = 0.1

type InitArgs struct {
	Path                 []geom.Vec3
	Facing               Facing
	Flags                Flags
	PathIdxOffset        int
	Velocity             float64
	ParabolicAmplitude   float64
	VerticalAcceleration float64
	EffectStartPercent   float64
	InitialOrientation   float64
	SplineID             uint32
}

func (a *InitArgs) Validate() error {
	if len(a.Path) < 2 {
		return fmt.Errorf("%w: path has %d points", ErrInvalidArgs, len(a.Path))
	}
	if a.Velocity < 0.01 {
		return fmt.Errorf("%w: velocity %v", ErrInvalidArgs, a.Velocity)
	}
	if a.EffectStartPercent < 0 || a.EffectStartPercent > 1 {
		return fmt.Errorf("%w: effect start %v", ErrInvalidArgs, a.EffectStartPercent)
	}
	// A two point curve with a facing is a turn in place.
	if len(a.Path) > 2 || a.Facing.Kind == FacingNone {
		for i := 1; i < len(a.Path); i++ {
			if geom.Dist(a.Path[i-1], a.Path[i]) < minSegmentLength {
				return fmt.Errorf("%w: segment %d shorter than %v", ErrInvalidArgs, i-1, minSegmentLength)
			}
		}
	}
	return nil
}

// MoveSpline is the in-flight curve of one mover. Time is in milliseconds.
// The zero value is finalized and has no curve.
type MoveSpline struct {
	curve              Curve
	id                 uint32
	flags              Flags
	facing             Facing
	velocity           float64
	timePassed         int32
	verticalAccel      float64
	effectStart        int32
	initialOrientation float64
	pointIdx           int
	pointIdxOffset     int
}

// Initialize replaces the current curve. args must have passed Validate
// unless it carries FlagDone, which installs a stationary curve at Path[0].
func (m *MoveSpline) Initialize(args *InitArgs) {
	m.id = args.SplineID
	m.flags = args.Flags
	m.facing = args.Facing
	m.velocity = args.Velocity
	m.pointIdxOffset = args.PathIdxOffset
	m.initialOrientation = args.InitialOrientation
	m.timePassed = 0
	m.verticalAccel = 0
	m.effectStart = 0

	if m.flags.Has(FlagDone) {
		p := args.Path[0]
		m.curve.Init([]geom.Vec3{p, p}, ModeLinear)
		m.pointIdx = m.curve.First()
		return
	}
	m.initCurve(args)

	if m.flags.Has(FlagParabolic) {
		m.effectStart = int32(float64(m.Duration()) * args.EffectStartPercent)
		if m.effectStart < m.Duration() {
			if args.ParabolicAmplitude != 0 {
				d := float64(m.Duration()-m.effectStart) / 1000
				m.verticalAccel = args.ParabolicAmplitude * 8 / (d * d)
			} else {
				m.verticalAccel = args.VerticalAcceleration
			}
		}
	}
}

func (m *MoveSpline) initCurve(args *InitArgs) {
	mode := ModeLinear
	if m.flags.Has(FlagCatmullRom) {
		mode = ModeCatmullRom
	}
	if m.flags.Has(FlagCyclic) {
		m.curve.InitCyclic(args.Path, mode, 0)
	} else {
		m.curve.Init(args.Path, mode)
	}

	if m.flags.Has(FlagFalling) {
		startZ := m.curve.Point(m.curve.First())[2]
		m.curve.InitLengths(func(c *Curve, i int) int32 {
			return int32(FallTime(startZ-c.Point(i + 1)[2]) * 1000)
		})
	} else {
		inv := 1000 / args.Velocity
		t := int32(minimalDurationMS)
		m.curve.InitLengths(func(c *Curve, i int) int32 {
			t = int32(float64(t) + c.SegLength(i)*inv)
			return t
		})
	}

	if m.curve.Length() < minimalDurationMS {
		if m.curve.Cyclic() {
			m.curve.SetLength(m.curve.Last(), 1000)
		} else {
			m.curve.SetLength(m.curve.Last(), 1)
		}
	}
	m.pointIdx = m.curve.First()
}

func (m *MoveSpline) Initialized() bool { return !m.curve.Empty() }
func (m *MoveSpline) Finalized() bool   { return !m.Initialized() || m.flags.Has(FlagDone) }
func (m *MoveSpline) ID() uint32        { return m.id }
func (m *MoveSpline) Flags() Flags      { return m.flags }
func (m *MoveSpline) Facing() Facing    { return m.facing }
func (m *MoveSpline) Velocity() float64 { return m.velocity }
func (m *MoveSpline) Cyclic() bool      { return m.flags.Has(FlagCyclic) }
func (m *MoveSpline) Duration() int32   { return m.curve.Length() }
func (m *MoveSpline) TimePassed() int32 { return m.timePassed }

// ControlPoints are the curve's real points, as sent to observers.
func (m *MoveSpline) ControlPoints() []geom.Vec3 { return m.curve.Controls() }

func (m *MoveSpline) Remaining() int32 {
	if m.Finalized() {
		return 0
	}
	return max(0, m.Duration()-m.timePassed)
}

func (m *MoveSpline) FinalDestination() geom.Vec3 {
	if !m.Initialized() {
		return geom.Vec3{}
	}
	return m.curve.Point(m.curve.Last())
}

func (m *MoveSpline) CurrentDestination() geom.Vec3 {
	if !m.Initialized() {
		return geom.Vec3{}
	}
	return m.curve.Point(m.pointIdx + 1)
}

// CurrentPathIdx is the index of the next path point, counted from the
// offset given to MoveByPath.
func (m *MoveSpline) CurrentPathIdx() int {
	if !m.Initialized() {
		return m.pointIdxOffset
	}
	p := m.pointIdxOffset + m.pointIdx - m.curve.First()
	if m.Finalized() {
		p++
	}
	if m.Cyclic() {
		p %= m.curve.Last() - m.curve.First()
	}
	return p
}

// UpdateState advances the curve by diff ms and returns the most recent
// event, calling fn for each step when it is non-nil.
func (m *MoveSpline) UpdateState(diff int32, fn func(UpdateResult)) UpdateResult {
	if m.Finalized() {
		return ResultNone
	}
	last := ResultNone
	for {
		r := m.step(&diff)
		if fn != nil {
			fn(r)
		}
		if r != ResultNone {
			last = r
		}
		if diff <= 0 {
			break
		}
	}
	return last
}

func (m *MoveSpline) nextTimestamp() int32 { return m.curve.LengthAt(m.pointIdx + 1) }

func (m *MoveSpline) step(diff *int32) UpdateResult {
	d := min(*diff, m.nextTimestamp()-m.timePassed)
	if d < 0 {
		d = 0
	}
	m.timePassed += d
	*diff -= d

	if m.timePassed < m.nextTimestamp() {
		return ResultNone
	}
	m.pointIdx++
	if m.pointIdx < m.curve.Last() {
		return ResultNextSegment
	}
	if m.Cyclic() {
		m.pointIdx = m.curve.First()
		m.timePassed %= m.Duration()
		return ResultNextCycle
	}
	m.finalize()
	*diff = 0
	return ResultArrived
}

func (m *MoveSpline) finalize() {
	m.flags |= FlagDone
	m.pointIdx = m.curve.Last() - 1
	m.timePassed = m.Duration()
}

// ComputePosition samples the curve at the current time. After the curve
// finalizes it keeps returning the final point.
func (m *MoveSpline) ComputePosition() Location {
	loc := Location{Orientation: m.initialOrientation}
	if !m.Initialized() {
		return loc
	}
	u := 1.0
	if seg := m.curve.LengthBetween(m.pointIdx, m.pointIdx+1); seg > 0 {
		u = float64(m.timePassed-m.curve.LengthAt(m.pointIdx)) / float64(seg)
	}
	loc.Pos = m.curve.Evaluate(m.pointIdx, u)

	switch {
	case m.flags.Has(FlagParabolic):
		loc.Pos[2] += m.parabolicElevation()
	case m.flags.Has(FlagFalling):
		loc.Pos[2] = m.fallElevation()
	}

	if m.flags.Has(FlagDone) && m.facing.Kind != FacingNone {
		switch m.facing.Kind {
		case FacingAngle:
			loc.Orientation = m.facing.Angle
		case FacingPoint:
			loc.Orientation = math.Atan2(m.facing.Point[1]-loc.Pos[1], m.facing.Point[0]-loc.Pos[0])
		}
	} else {
		if !m.flags.Has(FlagOrientationFixed | FlagFalling) {
			d := m.curve.Derivative(m.pointIdx, u)
			if d[0] != 0 || d[1] != 0 {
				loc.Orientation = math.Atan2(d[1], d[0])
			}
		}
		if m.flags.Has(FlagBackward) {
			loc.Orientation -= math.Pi
		}
	}
	loc.Orientation = geom.NormalizeAngle(loc.Orientation)
	return loc
}

func (m *MoveSpline) parabolicElevation() float64 {
	if m.timePassed <= m.effectStart {
		return 0
	}
	passed := float64(m.timePassed-m.effectStart) / 1000
	total := float64(m.Duration()-m.effectStart) / 1000
	return (total - passed) * 0.5 * m.verticalAccel * passed
}

func (m *MoveSpline) fallElevation() float64 {
	now := m.curve.Point(m.curve.First())[2] - FallElevation(float64(m.timePassed)/1000)
	return max(now, m.FinalDestination()[2])
}
