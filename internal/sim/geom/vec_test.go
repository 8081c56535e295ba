package geom

import (
	"math"
	"testing"
)

func TestYawRoundTrip(t *testing.T) {
	for _, deg := range []float64{0, 45, 90, 180, 270, 359} {
		got := FromYaw(deg).Yaw()
		if math.Abs(DeltaDeg(got, deg)) > 1e-9 {
			t.Fatalf("yaw round trip %v -> %v", deg, got)
		}
	}
}

func TestRotateTowards(t *testing.T) {
	if got := RotateTowards(350, 10, 5); math.Abs(got-355) > 1e-9 {
		t.Fatalf("RotateTowards(350,10,5)=%v", got)
	}
	if got := RotateTowards(10, 350, 30); math.Abs(got-350) > 1e-9 {
		t.Fatalf("RotateTowards should snap when in reach: %v", got)
	}
}

func TestNormalizeZero(t *testing.T) {
	if n := (Vec3{}).Normalize(); n != (Vec3{}) {
		t.Fatalf("zero normalize: %+v", n)
	}
	if l := V(3, 0, 4).Normalize().Len(); math.Abs(l-1) > 1e-9 {
		t.Fatalf("unit length: %v", l)
	}
}

func TestAngleBetween(t *testing.T) {
	if a := AngleBetween(V(0, 0, 1), V(1, 0, 0)); math.Abs(a-90) > 1e-9 {
		t.Fatalf("angle=%v", a)
	}
}
