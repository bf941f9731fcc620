package geom

import (
	"math"
	"testing"
)

func TestTriArea2DSign(t *testing.T) {
	a := V(0, 0, 0)
	b := V(1, 0, 0)
	if got := TriArea2D(a, b, V(0, 1, 0)); got <= 0 {
		t.Fatalf("expected left side positive, got %v", got)
	}
	if got := TriArea2D(a, b, V(0, -1, 0)); got >= 0 {
		t.Fatalf("expected right side negative, got %v", got)
	}
}

func TestDistPtSegSqr2DClamps(t *testing.T) {
	d, u := DistPtSegSqr2D(V(-3, 4, 0), V(0, 0, 0), V(10, 0, 0))
	if u != 0 || math.Abs(d-25) > 1e-9 {
		t.Fatalf("d=%v t=%v", d, u)
	}
	d, u = DistPtSegSqr2D(V(5, 2, 7), V(0, 0, 0), V(10, 0, 0))
	if math.Abs(u-0.5) > 1e-9 || math.Abs(d-4) > 1e-9 {
		t.Fatalf("d=%v t=%v", d, u)
	}
}

func TestClosestHeightOnTriangle(t *testing.T) {
	a := V(0, 0, 0)
	b := V(10, 0, 10)
	c := V(0, 10, 0)
	h, ok := ClosestHeightOnTriangle(V(5, 2, 0), a, b, c)
	if !ok || math.Abs(h-5) > 1e-9 {
		t.Fatalf("h=%v ok=%v", h, ok)
	}
	if _, ok := ClosestHeightOnTriangle(V(20, 20, 0), a, b, c); ok {
		t.Fatalf("expected miss outside triangle")
	}
}

func TestPointInPoly2D(t *testing.T) {
	sq := []Vec3{V(0, 0, 0), V(4, 0, 0), V(4, 4, 0), V(0, 4, 0)}
	if !PointInPoly2D(V(1, 1, 9), sq) {
		t.Fatalf("expected inside")
	}
	if PointInPoly2D(V(5, 1, 0), sq) {
		t.Fatalf("expected outside")
	}
}

func TestNormalizeAngleAndPolar(t *testing.T) {
	if got := NormalizeAngle(-math.Pi / 2); math.Abs(got-3*math.Pi/2) > 1e-9 {
		t.Fatalf("got %v", got)
	}
	p := Polar(V(1, 1, 3), math.Pi/2, 2)
	if math.Abs(p[0]-1) > 1e-9 || math.Abs(p[1]-3) > 1e-9 || p[2] != 3 {
		t.Fatalf("got %v", p)
	}
	if got := AngleTo(V(0, 0, 0), V(0, -1, 0)); math.Abs(got-3*math.Pi/2) > 1e-9 {
		t.Fatalf("got %v", got)
	}
}

func TestPathLength(t *testing.T) {
	if got := PathLength([]Vec3{V(0, 0, 0), V(3, 4, 0), V(3, 4, 2)}); math.Abs(got-7) > 1e-9 {
		t.Fatalf("got %v", got)
	}
}
