package arena

import (
	"cavewarden.ai/internal/sim/geom"
	"cavewarden.ai/internal/sim/registry"
)

const (
	gravity         = 9.81
	hitRadius       = 1.2
	targetCenterY   = 1.0
	maxFlightSecond = 10.0
)

type projectile struct {
	owner string
	item  registry.Item
	pos   geom.Vec3
	vel   geom.Vec3
	age   float64
}

// Launch implements agent.Launcher: the object flies ballistically until it hits the
// target or lands, then goes back into the registry as a fresh heavy object.
func (w *World) Launch(owner string, item registry.Item, from, velocity geom.Vec3) {
	w.projectiles = append(w.projectiles, projectile{owner: owner, item: item, pos: from, vel: velocity})
}

// Strike implements agent.Striker.
func (w *World) Strike(owner string, at geom.Vec3) {
	t := w.target
	if t.Down() {
		return
	}
	if t.Position().Flat().Dist(at.Flat()) > w.cfg.Agent.StrikeRange+arriveDist {
		return
	}
	w.hitTarget(owner, "strike")
}

func (w *World) stepProjectiles(dt float64) {
	kept := w.projectiles[:0]
	for _, p := range w.projectiles {
		p.vel.Y -= gravity * dt
		p.pos = p.pos.Add(p.vel.Scale(dt))
		p.age += dt

		t := w.target
		switch {
		case !t.Down() && p.pos.Dist(t.Position().Add(geom.Up.Scale(targetCenterY))) <= hitRadius:
			w.hitTarget(p.owner, "throw")
			w.land(t.Position())
		case p.pos.Y <= 0 || p.age >= maxFlightSecond:
			w.land(p.pos)
		default:
			kept = append(kept, p)
		}
	}
	w.projectiles = kept
}

func (w *World) land(at geom.Vec3) {
	b := w.cfg.Arena.HalfExtent
	at.Y = 0
	at.X = clamp(at.X, -b, b)
	at.Z = clamp(at.Z, -b, b)
	w.reg.Add(registry.HeavyObject, at)
}

func (w *World) hitTarget(owner, how string) {
	last := w.target.Hit()
	w.log.Info("target hit", "by", owner, "how", how, "lives", w.target.Lives())
	if last {
		w.log.Info("target down", "by", owner)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
