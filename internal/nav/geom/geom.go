// Package geom holds the vector helpers shared by the navigation and movement
// packages. World space is Z-up: x/y span the ground plane and z is height.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

type Vec3 = mgl64.Vec3

const equalEps = 1.0 / 16384.0

func V(x, y, z float64) Vec3 { return Vec3{x, y, z} }

func Dist(a, b Vec3) float64 { return a.Sub(b).Len() }

func DistSqr(a, b Vec3) float64 {
	d := a.Sub(b)
	return d.Dot(d)
}

func Dist2D(a, b Vec3) float64 { return math.Sqrt(Dist2DSqr(a, b)) }

func Dist2DSqr(a, b Vec3) float64 {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	return dx*dx + dy*dy
}

// Equal reports whether a and b are the same point within a small tolerance.
func Equal(a, b Vec3) bool { return DistSqr(a, b) < equalEps*equalEps }

func Lerp(a, b Vec3, t float64) Vec3 {
	return Vec3{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t, a[2] + (b[2]-a[2])*t}
}

// TriArea2D returns twice the signed ground-plane area of abc. Positive when c
// lies to the left of a->b.
func TriArea2D(a, b, c Vec3) float64 {
	abx := b[0] - a[0]
	aby := b[1] - a[1]
	acx := c[0] - a[0]
	acy := c[1] - a[1]
	return abx*acy - acx*aby
}

// DistPtSegSqr2D returns the squared ground distance from pt to segment pq and
// the segment parameter of the closest point.
func DistPtSegSqr2D(pt, p, q Vec3) (float64, float64) {
	pqx := q[0] - p[0]
	pqy := q[1] - p[1]
	dx := pt[0] - p[0]
	dy := pt[1] - p[1]
	d := pqx*pqx + pqy*pqy
	t := pqx*dx + pqy*dy
	if d > 0 {
		t /= d
	}
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	dx = p[0] + t*pqx - pt[0]
	dy = p[1] + t*pqy - pt[1]
	return dx*dx + dy*dy, t
}

// ClosestHeightOnTriangle returns the height of triangle abc under p, if p lies
// inside it on the ground plane.
func ClosestHeightOnTriangle(p, a, b, c Vec3) (float64, bool) {
	v0 := c.Sub(a)
	v1 := b.Sub(a)
	v2 := p.Sub(a)

	denom := v0[0]*v1[1] - v0[1]*v1[0]
	if math.Abs(denom) < 1e-12 {
		return 0, false
	}
	u := v1[1]*v2[0] - v1[0]*v2[1]
	v := v0[0]*v2[1] - v0[1]*v2[0]
	if denom < 0 {
		denom, u, v = -denom, -u, -v
	}
	const eps = 1e-4
	if u >= -eps*denom && v >= -eps*denom && u+v <= denom+eps*denom {
		return a[2] + (v0[2]*u+v1[2]*v)/denom, true
	}
	return 0, false
}

// PointInPoly2D tests pt against a convex or concave polygon on the ground plane.
func PointInPoly2D(pt Vec3, verts []Vec3) bool {
	inside := false
	n := len(verts)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi := verts[i]
		vj := verts[j]
		if (vi[1] > pt[1]) != (vj[1] > pt[1]) &&
			pt[0] < (vj[0]-vi[0])*(pt[1]-vi[1])/(vj[1]-vi[1])+vi[0] {
			inside = !inside
		}
	}
	return inside
}

// NormalizeAngle maps a to [0, 2π).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// AngleTo is the ground-plane heading from a towards b.
func AngleTo(a, b Vec3) float64 {
	return NormalizeAngle(math.Atan2(b[1]-a[1], b[0]-a[0]))
}

// Polar offsets center by dist along heading angle, keeping its height.
func Polar(center Vec3, angle, dist float64) Vec3 {
	return Vec3{center[0] + dist*math.Cos(angle), center[1] + dist*math.Sin(angle), center[2]}
}

// PathLength sums the 3D length of consecutive segments.
func PathLength(pts []Vec3) float64 {
	var l float64
	for i := 1; i < len(pts); i++ {
		l += Dist(pts[i-1], pts[i])
	}
	return l
}
