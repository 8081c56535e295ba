package arena

import (
	"math"

	"cavewarden.ai/internal/sim/geom"
)

const arriveDist = 0.5

// Body is a kinematic ground mover: it walks straight at its set speed, turns instantly
// and is clamped to the arena square. It implements agent.Locomotion.
type Body struct {
	pos    geom.Vec3
	fwd    geom.Vec3
	vel    geom.Vec3
	speed  float64
	dest   geom.Vec3
	moving bool
	bound  float64
}

func NewBody(pos geom.Vec3, yaw, bound float64) *Body {
	return &Body{pos: pos, fwd: geom.FromYaw(yaw), bound: bound}
}

func (b *Body) Position() geom.Vec3 { return b.pos }
func (b *Body) Forward() geom.Vec3  { return b.fwd }
func (b *Body) Velocity() geom.Vec3 { return b.vel }

func (b *Body) SetSpeed(speed float64) { b.speed = math.Max(0, speed) }

func (b *Body) RequestMove(dest geom.Vec3) {
	dest.Y = b.pos.Y
	b.dest = b.clamp(dest)
	b.moving = true
}

func (b *Body) Stop() {
	b.moving = false
	b.vel = geom.Vec3{}
}

func (b *Body) RemainingDistance() float64 {
	if !b.moving {
		return 0
	}
	return b.pos.Flat().Dist(b.dest.Flat())
}

func (b *Body) HasArrived() bool {
	return !b.moving || b.RemainingDistance() <= arriveDist
}

func (b *Body) RequestFaceDirection(dir geom.Vec3) {
	dir = dir.Flat()
	if dir.LenSq() < 1e-8 {
		return
	}
	b.fwd = dir.Normalize()
}

// Step integrates one tick of movement.
func (b *Body) Step(dt float64) {
	if !b.moving || dt <= 0 {
		b.vel = geom.Vec3{}
		return
	}
	d := b.dest.Sub(b.pos).Flat()
	dist := d.Len()
	if dist <= arriveDist {
		b.moving = false
		b.vel = geom.Vec3{}
		return
	}
	dir := d.Scale(1 / dist)
	step := math.Min(b.speed*dt, dist)
	b.pos = b.clamp(b.pos.Add(dir.Scale(step)))
	b.vel = dir.Scale(step / dt)
	b.fwd = dir
}

func (b *Body) clamp(p geom.Vec3) geom.Vec3 {
	if b.bound <= 0 {
		return p
	}
	p.X = math.Max(-b.bound, math.Min(b.bound, p.X))
	p.Z = math.Max(-b.bound, math.Min(b.bound, p.Z))
	return p
}
