package agent

import (
	"cavewarden.ai/internal/sim/geom"
	"cavewarden.ai/internal/sim/registry"
)

type pickUpPhase uint8

const (
	pickUpRunToObject pickUpPhase = iota
	pickUpGrasp
	pickUpDone
)

var pickUpSteps = []string{"Run to heavy object", "Grasp", "Done"}

type pickUpAction struct {
	phase  pickUpPhase
	target registry.Item
}

// begin reserves the nearest free object. With nothing to reserve, or something already
// in hand, the task completes as a no-op.
func (p *pickUpAction) begin(a *Agent) {
	if a.carried != nil {
		p.phase = pickUpDone
		return
	}
	it, ok := a.reg.NearestUnreserved(registry.HeavyObject, a.body.Position(), a.id)
	if !ok {
		p.phase = pickUpDone
		return
	}
	a.heavyClaim = it.Handle
	p.target = it
	p.phase = pickUpRunToObject
	a.body.SetSpeed(a.cfg.IdleSpeed)
	a.body.RequestMove(it.Position)
}

func (p *pickUpAction) tick(a *Agent, _ float64) bool {
	switch p.phase {
	case pickUpRunToObject:
		if _, ok := a.reg.Get(p.target.Handle); !ok {
			a.heavyClaim = 0
			p.phase = pickUpDone
			return true
		}
		if a.body.HasArrived() {
			p.phase = pickUpGrasp
		}
	case pickUpGrasp:
		it, ok := a.reg.Consume(p.target.Handle, a.id)
		a.heavyClaim = 0
		if ok {
			a.carried = &it
			a.state.HasHeavyObjectInHand = true
			a.emit(Event{Kind: EventPickUp, Pos: it.Position})
		}
		p.phase = pickUpDone
		return true
	case pickUpDone:
		return true
	}
	return false
}

func (p *pickUpAction) cancel(a *Agent) {
	a.body.Stop()
	a.releaseHeavy()
}

func (p *pickUpAction) steps() []SubStep {
	if p.phase == pickUpDone {
		return phaseSteps(pickUpSteps, len(pickUpSteps))
	}
	return phaseSteps(pickUpSteps, int(p.phase))
}

type throwPhase uint8

const (
	throwApproachAndAim throwPhase = iota
	throwRelease
	throwDone
)

var throwSteps = []string{"Approach and aim", "Release", "Done"}

type throwAction struct {
	phase throwPhase
	lost  float64
}

func (t *throwAction) begin(a *Agent) {
	if a.carried == nil {
		t.phase = throwDone
		return
	}
	t.phase = throwApproachAndAim
	t.lost = 0
	a.body.SetSpeed(a.cfg.AttackSpeed)
}

func (t *throwAction) tick(a *Agent, dt float64) bool {
	s := a.state
	switch t.phase {
	case throwApproachAndAim:
		if a.carried == nil {
			t.phase = throwDone
			return true
		}
		faceTowards(a, s.LastSeenTargetPosition)
		if !a.targetInSight() {
			// Hold position; give up after a search window, keeping the object.
			a.body.Stop()
			t.lost += dt
			if t.lost >= a.cfg.SearchDuration {
				t.phase = throwDone
				return true
			}
			return false
		}
		t.lost = 0
		if s.DistanceToTarget > a.cfg.ThrowRange {
			a.body.RequestMove(s.LastSeenTargetPosition)
			return false
		}
		a.body.Stop()
		t.phase = throwRelease
	case throwRelease:
		from, vel := a.releaseVector()
		item := *a.carried
		a.carried = nil
		a.state.HasHeavyObjectInHand = false
		if a.launcher != nil {
			a.launcher.Launch(a.id, item, from, vel)
		}
		a.emit(Event{Kind: EventThrow, Pos: from})
		t.phase = throwDone
		return true
	case throwDone:
		return true
	}
	return false
}

// releaseVector returns the hand position and launch velocity. A visible target is led
// by its estimated velocity over the straight-line flight time.
func (a *Agent) releaseVector() (from, vel geom.Vec3) {
	pos := a.body.Position()
	fwd := a.body.Forward().Flat().Normalize()
	from = pos.Add(fwd.Scale(a.cfg.HandOffsetForward)).Add(geom.Up.Scale(a.cfg.HandOffsetUp))

	aim := a.state.LastSeenTargetPosition
	if a.targetInSight() {
		flight := aim.Dist(from) / a.cfg.ThrowSpeed
		aim = aim.Add(a.targetVel.Flat().Scale(flight))
	}
	aim = aim.Add(geom.Up.Scale(0.5))

	dir := aim.Sub(from).Normalize()
	vel = dir.Scale(a.cfg.ThrowSpeed).Add(geom.Up.Scale(a.cfg.ThrowUpwardBoost))
	return from, vel
}

// cancel leaves the carried object in hand.
func (t *throwAction) cancel(a *Agent) { a.body.Stop() }

func (t *throwAction) steps() []SubStep {
	if t.phase == throwDone {
		return phaseSteps(throwSteps, len(throwSteps))
	}
	return phaseSteps(throwSteps, int(t.phase))
}
