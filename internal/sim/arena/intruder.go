package arena

import (
	"math"

	bt "github.com/joeycumines/go-behaviortree"
	"github.com/ojrac/opensimplex-go"

	"cavewarden.ai/internal/sim/geom"
)

// treasureSite is the part of the world the intruder steals from.
type treasureSite interface {
	nearestTreasure(from geom.Vec3) (int, geom.Vec3, bool)
	takeTreasure(i int) (geom.Vec3, bool)
}

// Intruder is the scripted target. Its behaviour tree, in priority order: carry loot to
// the arena edge under cloak, go steal the nearest treasure, wander on simplex noise.
type Intruder struct {
	pos   geom.Vec3
	vel   geom.Vec3
	speed float64
	bound float64

	lives       int
	cloaked     bool
	cloakBudget float64
	carrying    bool
	stolen      int
	theftPos    geom.Vec3
	stash       geom.Vec3
	goal        int
	goalPos     geom.Vec3

	noise opensimplex.Noise
	clock float64
	dt    float64
	site  treasureSite
	tree  bt.Node
}

func newIntruder(pos geom.Vec3, speed, bound, cloakBudget float64, lives int, seed int64, site treasureSite) *Intruder {
	in := &Intruder{
		pos:         pos,
		speed:       speed,
		bound:       bound,
		lives:       lives,
		cloakBudget: cloakBudget,
		noise:       opensimplex.New(seed),
		site:        site,
	}
	in.tree = bt.New(
		bt.Selector,
		bt.New(bt.Sequence, cond(in.isCarrying), leaf(in.flee)),
		bt.New(bt.Sequence, cond(in.pickTreasure), leaf(in.approach), leaf(in.steal)),
		leaf(in.wander),
	)
	return in
}

func leaf(fn func() bt.Status) bt.Node {
	return bt.New(func([]bt.Node) (bt.Status, error) { return fn(), nil })
}

func cond(fn func() bool) bt.Node {
	return bt.New(func([]bt.Node) (bt.Status, error) {
		if fn() {
			return bt.Success, nil
		}
		return bt.Failure, nil
	})
}

func (in *Intruder) Position() geom.Vec3 { return in.pos }
func (in *Intruder) Velocity() geom.Vec3 { return in.vel }
func (in *Intruder) Lives() int          { return in.lives }
func (in *Intruder) Down() bool          { return in.lives <= 0 }
func (in *Intruder) Cloaked() bool       { return in.cloaked && !in.Down() }
func (in *Intruder) Carrying() bool      { return in.carrying }
func (in *Intruder) Stolen() int         { return in.stolen }
func (in *Intruder) TheftPosition() geom.Vec3 {
	return in.theftPos
}

// Step runs the behaviour tree once.
func (in *Intruder) Step(dt float64) error {
	if in.Down() || dt <= 0 {
		in.vel = geom.Vec3{}
		return nil
	}
	in.dt = dt
	in.clock += dt
	prev := in.pos
	if _, err := in.tree.Tick(); err != nil {
		return err
	}
	in.vel = in.pos.Sub(prev).Scale(1 / dt)
	return nil
}

// Hit removes one life and breaks the cloak. It reports whether this hit took the last life.
func (in *Intruder) Hit() bool {
	if in.Down() {
		return false
	}
	in.lives--
	in.cloaked = false
	return in.Down()
}

func (in *Intruder) isCarrying() bool { return in.carrying }

func (in *Intruder) flee() bt.Status {
	if in.cloakBudget > 0 {
		in.cloaked = true
		in.cloakBudget = math.Max(0, in.cloakBudget-in.dt)
	} else {
		in.cloaked = false
	}
	if in.moveTowards(in.stash, in.speed*1.25) {
		in.carrying = false
		in.cloaked = false
		return bt.Success
	}
	return bt.Running
}

func (in *Intruder) pickTreasure() bool {
	i, p, ok := in.site.nearestTreasure(in.pos)
	in.goal, in.goalPos = i, p
	return ok
}

func (in *Intruder) approach() bt.Status {
	in.cloaked = false
	if in.moveTowards(in.goalPos, in.speed) {
		return bt.Success
	}
	return bt.Running
}

func (in *Intruder) steal() bt.Status {
	p, ok := in.site.takeTreasure(in.goal)
	if !ok {
		return bt.Failure
	}
	in.stolen++
	in.theftPos = p
	in.carrying = true
	in.stash = edgePoint(in.pos, in.bound)
	return bt.Success
}

func (in *Intruder) wander() bt.Status {
	in.cloaked = false
	heading := in.noise.Eval2(in.clock*0.05, 0) * 360
	dir := geom.FromYaw(heading)
	if math.Abs(in.pos.X) > in.bound*0.9 || math.Abs(in.pos.Z) > in.bound*0.9 {
		dir = in.pos.Flat().Scale(-1).Normalize()
	}
	in.moveTowards(in.pos.Add(dir.Scale(in.speed)), in.speed*0.5)
	return bt.Running
}

// moveTowards steps toward p and reports arrival.
func (in *Intruder) moveTowards(p geom.Vec3, speed float64) bool {
	d := p.Sub(in.pos).Flat()
	dist := d.Len()
	if dist <= arriveDist {
		return true
	}
	step := math.Min(speed*in.dt, dist)
	in.pos = in.pos.Add(d.Scale(step / dist))
	in.pos.X = math.Max(-in.bound, math.Min(in.bound, in.pos.X))
	in.pos.Z = math.Max(-in.bound, math.Min(in.bound, in.pos.Z))
	return in.pos.Flat().Dist(p.Flat()) <= arriveDist
}

// edgePoint projects p onto the nearest side of the arena square.
func edgePoint(p geom.Vec3, bound float64) geom.Vec3 {
	if math.Abs(p.X) >= math.Abs(p.Z) {
		if p.X < 0 {
			return geom.V(-bound, 0, p.Z)
		}
		return geom.V(bound, 0, p.Z)
	}
	if p.Z < 0 {
		return geom.V(p.X, 0, -bound)
	}
	return geom.V(p.X, 0, bound)
}
