package arena

import (
	"cavewarden.ai/internal/sim/agent"
	"cavewarden.ai/internal/sim/geom"
)

// alertRangeScale widens the view range of an agent that saw the target recently.
const alertRangeScale = 1.5

// canSee is a range and field-of-view test on the ground plane. Alert agents see all
// around them. There is no occlusion.
func canSee(from, fwd, to geom.Vec3, viewRange, viewAngleDeg float64, alert bool) bool {
	d := to.Sub(from).Flat()
	if alert {
		viewRange *= alertRangeScale
	}
	if d.LenSq() > viewRange*viewRange {
		return false
	}
	if alert || d.LenSq() < 1e-8 {
		return true
	}
	return geom.AngleBetween(fwd.Flat(), d) <= viewAngleDeg/2
}

func (w *World) perceive(wd *warden) agent.Percept {
	t := w.target
	p := agent.Percept{
		TargetPosition:    t.Position(),
		TargetCloaked:     t.Cloaked(),
		GoalObjectsStolen: t.Stolen(),
		GoalTheftPosition: t.TheftPosition(),
	}
	if t.Down() {
		// Known but unreachable: hunting agents stand down.
		p.TargetCloaked = true
		return p
	}
	a := w.cfg.Agent
	p.TargetVisible = canSee(wd.body.Position(), wd.body.Forward(), t.Position(), a.ViewRange, a.ViewAngleDeg, wd.agent.State().IsAlert)
	return p
}
