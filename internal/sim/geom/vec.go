package geom

import "math"

// Vec3 is a world-space point or direction. Y is up.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

var Up = Vec3{Y: 1}

func V(x, y, z float64) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z} }

func (v Vec3) Scale(k float64) Vec3 { return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k} }

func (v Vec3) LenSq() float64 { return v.X*v.X + v.Y*v.Y + v.Z*v.Z }
func (v Vec3) Len() float64   { return math.Sqrt(v.LenSq()) }

func (v Vec3) Dist(o Vec3) float64 { return v.Sub(o).Len() }

// Normalize returns the unit vector, or the zero vector when v is (nearly) zero.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < 1e-9 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Flat drops the vertical component.
func (v Vec3) Flat() Vec3 { return Vec3{X: v.X, Z: v.Z} }

// Yaw returns the heading of v on the XZ plane in degrees, 0 along +Z, clockwise.
func (v Vec3) Yaw() float64 {
	deg := math.Atan2(v.X, v.Z) * 180 / math.Pi
	return NormalizeDeg(deg)
}

// FromYaw returns the unit XZ direction for a heading in degrees.
func FromYaw(deg float64) Vec3 {
	r := deg * math.Pi / 180
	return Vec3{X: math.Sin(r), Z: math.Cos(r)}
}

// NormalizeDeg maps an angle into [0, 360).
func NormalizeDeg(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// DeltaDeg returns the signed shortest rotation from a to b, in (-180, 180].
func DeltaDeg(a, b float64) float64 {
	d := NormalizeDeg(b - a)
	if d > 180 {
		d -= 360
	}
	return d
}

// RotateTowards turns from heading cur toward target by at most maxStep degrees.
func RotateTowards(cur, target, maxStep float64) float64 {
	d := DeltaDeg(cur, target)
	if math.Abs(d) <= maxStep {
		return NormalizeDeg(target)
	}
	if d < 0 {
		return NormalizeDeg(cur - maxStep)
	}
	return NormalizeDeg(cur + maxStep)
}

// AngleBetween is the unsigned angle between two directions in degrees.
func AngleBetween(a, b Vec3) float64 {
	an, bn := a.Normalize(), b.Normalize()
	if an.LenSq() == 0 || bn.LenSq() == 0 {
		return 0
	}
	dot := an.X*bn.X + an.Y*bn.Y + an.Z*bn.Z
	dot = math.Max(-1, math.Min(1, dot))
	return math.Acos(dot) * 180 / math.Pi
}
