package agent

import (
	"math"

	"cavewarden.ai/internal/sim/geom"
)

var walkSteps = []string{"Pick point near home", "Walk"}

type walkRandomlyAction struct{ done bool }

func (w *walkRandomlyAction) begin(a *Agent) {
	a.body.SetSpeed(a.cfg.IdleSpeed)
	a.body.RequestMove(randomPointNear(a, a.state.HomePosition, a.cfg.PatrolRadius))
}

func (w *walkRandomlyAction) tick(a *Agent, _ float64) bool {
	if a.body.HasArrived() {
		w.done = true
	}
	return w.done
}

func (w *walkRandomlyAction) cancel(a *Agent) { a.body.Stop() }

func (w *walkRandomlyAction) steps() []SubStep {
	if w.done {
		return phaseSteps(walkSteps, 2)
	}
	return phaseSteps(walkSteps, 1)
}

type lookPhase uint8

const (
	lookStart lookPhase = iota
	lookWaitBefore
	lookTurn
	lookWaitAfter
	lookDone
)

var lookSteps = []string{"Stop", "Wait", "Turn to random heading", "Wait"}

type lookAroundAction struct {
	phase   lookPhase
	timer   float64
	heading float64
}

func (l *lookAroundAction) begin(a *Agent) {
	a.body.Stop()
	l.phase = lookStart
	l.timer = 0
	l.heading = a.body.Forward().Yaw()
}

func (l *lookAroundAction) tick(a *Agent, dt float64) bool {
	l.timer += dt
	switch l.phase {
	case lookStart:
		l.phase = lookWaitBefore
		l.timer = 0
	case lookWaitBefore:
		if l.timer >= a.cfg.LookWait {
			l.heading = a.rng.Float64() * 360
			l.phase = lookTurn
			l.timer = 0
		}
	case lookTurn:
		yaw := geom.RotateTowards(a.body.Forward().Yaw(), l.heading, a.cfg.LookTurnSpeed*dt)
		a.body.RequestFaceDirection(geom.FromYaw(yaw))
		if math.Abs(geom.DeltaDeg(yaw, l.heading)) < a.cfg.LookTolerance {
			l.phase = lookWaitAfter
			l.timer = 0
		}
	case lookWaitAfter:
		if l.timer >= a.cfg.LookWait {
			l.phase = lookDone
			return true
		}
	case lookDone:
		return true
	}
	return false
}

func (l *lookAroundAction) cancel(*Agent) {}

func (l *lookAroundAction) steps() []SubStep {
	return phaseSteps(lookSteps, int(l.phase))
}
