package spline

import (
	"math"

	"navmotion.ai/internal/nav/geom"
)

type EvalMode uint8

const (
	ModeLinear EvalMode = iota
	ModeCatmullRom
)

const catmullStepsPerSegment = 3

// Curve is a polyline or Catmull-Rom curve with a cumulative int32 length per
// control point. Catmull-Rom curves carry virtual padding points so every real
// segment has neighbours on both sides; First/Last bound the real segments.
type Curve struct {
	points  []geom.Vec3
	lengths []int32
	lo, hi  int
	mode    EvalMode
	cyclic  bool
}

func (c *Curve) Init(controls []geom.Vec3, mode EvalMode) {
	c.mode = mode
	c.cyclic = false
	c.initPoints(controls, 0)
}

// InitCyclic builds a looping curve. Segments after the last control point
// return to controls[cyclicPoint].
func (c *Curve) InitCyclic(controls []geom.Vec3, mode EvalMode, cyclicPoint int) {
	c.mode = mode
	c.cyclic = true
	c.initPoints(controls, cyclicPoint)
}

func (c *Curve) initPoints(controls []geom.Vec3, cyclicPoint int) {
	n := len(controls)
	switch c.mode {
	case ModeCatmullRom:
		extra := 2
		if c.cyclic {
			extra = 3
		}
		c.points = make([]geom.Vec3, n+extra)
		lo := 1
		high := lo + n - 1
		copy(c.points[lo:], controls)
		if c.cyclic {
			if cyclicPoint == 0 {
				c.points[0] = controls[n-1]
			} else {
				c.points[0] = geom.Lerp(controls[0], controls[1], -1)
			}
			c.points[high+1] = controls[cyclicPoint]
			c.points[high+2] = controls[(cyclicPoint+1)%n]
			c.hi = high + 1
		} else {
			c.points[0] = geom.Lerp(controls[0], controls[1], -1)
			c.points[high+1] = controls[n-1]
			c.hi = high
		}
		c.lo = lo
	default:
		c.points = make([]geom.Vec3, n+1)
		copy(c.points, controls)
		if c.cyclic {
			c.points[n] = controls[cyclicPoint]
			c.hi = n
		} else {
			c.points[n] = controls[n-1]
			c.hi = n - 1
		}
		c.lo = 0
	}
	c.lengths = make([]int32, c.hi+1)
}

// InitLengths fills the cumulative lengths. cacher returns the cumulative
// value at the end of segment i.
func (c *Curve) InitLengths(cacher func(c *Curve, i int) int32) {
	var prev int32
	for i := c.lo; i < c.hi; i++ {
		v := cacher(c, i)
		if v < 0 {
			v = math.MaxInt32
		}
		if v < prev {
			v = prev
		}
		c.lengths[i+1] = v
		prev = v
	}
}

func (c *Curve) Clear() {
	c.points = nil
	c.lengths = nil
	c.lo, c.hi = 0, 0
}

func (c *Curve) Empty() bool                  { return len(c.points) == 0 }
func (c *Curve) First() int                   { return c.lo }
func (c *Curve) Last() int                    { return c.hi }
func (c *Curve) Cyclic() bool                 { return c.cyclic }
func (c *Curve) Point(i int) geom.Vec3        { return c.points[i] }
func (c *Curve) LengthAt(i int) int32         { return c.lengths[i] }
func (c *Curve) LengthBetween(a, b int) int32 { return c.lengths[b] - c.lengths[a] }
func (c *Curve) SetLength(i int, v int32)     { c.lengths[i] = v }

// Length is the cumulative length at the last point.
func (c *Curve) Length() int32 {
	if len(c.lengths) == 0 {
		return 0
	}
	return c.lengths[c.hi]
}

// Controls returns the real control points, without virtual padding.
func (c *Curve) Controls() []geom.Vec3 {
	if c.Empty() {
		return nil
	}
	out := make([]geom.Vec3, c.hi-c.lo+1)
	copy(out, c.points[c.lo:c.hi+1])
	return out
}

// SegLength is the geometric length of segment i.
func (c *Curve) SegLength(i int) float64 {
	if c.mode == ModeCatmullRom {
		cur := c.points[i]
		var l float64
		for s := 1; s <= catmullStepsPerSegment; s++ {
			next := c.catmull(i, float64(s)/catmullStepsPerSegment)
			l += geom.Dist(cur, next)
			cur = next
		}
		return l
	}
	return geom.Dist(c.points[i], c.points[i+1])
}

// IndexAt returns the segment that contains cumulative length t.
func (c *Curve) IndexAt(t int32) int {
	i := c.lo
	for i+1 < c.hi && c.lengths[i+1] < t {
		i++
	}
	return i
}

// Evaluate returns the point at fraction u of segment i.
func (c *Curve) Evaluate(i int, u float64) geom.Vec3 {
	if c.mode == ModeCatmullRom {
		return c.catmull(i, u)
	}
	return geom.Lerp(c.points[i], c.points[i+1], u)
}

// Derivative returns the tangent at fraction u of segment i.
func (c *Curve) Derivative(i int, u float64) geom.Vec3 {
	if c.mode == ModeCatmullRom {
		w := catmullWeights(3*u*u, 2*u, 1, 0)
		return c.weighted(i, w)
	}
	return c.points[i+1].Sub(c.points[i])
}

func (c *Curve) catmull(i int, u float64) geom.Vec3 {
	return c.weighted(i, catmullWeights(u*u*u, u*u, u, 1))
}

func (c *Curve) weighted(i int, w [4]float64) geom.Vec3 {
	p0, p1, p2, p3 := c.points[i-1], c.points[i], c.points[i+1], c.points[i+2]
	return p0.Mul(w[0]).Add(p1.Mul(w[1])).Add(p2.Mul(w[2])).Add(p3.Mul(w[3]))
}

// catmullRomCoeffs is the Catmull-Rom basis in row-major order.
var catmullRomCoeffs = [4][4]float64{
	{-0.5, 1.5, -1.5, 0.5},
	{1, -2.5, 2, -0.5},
	{-0.5, 0, 0.5, 0},
	{0, 1, 0, 0},
}

func catmullWeights(t3, t2, t1, t0 float64) [4]float64 {
	tv := [4]float64{t3, t2, t1, t0}
	var w [4]float64
	for j := 0; j < 4; j++ {
		for k := 0; k < 4; k++ {
			w[j] += tv[k] * catmullRomCoeffs[k][j]
		}
	}
	return w
}
