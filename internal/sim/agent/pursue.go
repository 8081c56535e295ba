package agent

import "cavewarden.ai/internal/sim/geom"

type pursuePhase uint8

const (
	pursueChasing pursuePhase = iota
	pursueGoingToLastSeen
	pursueSearching
	pursueDone
)

var pursueSteps = []string{"Chase target", "Go to last seen position", "Search", "Strike or give up"}

type pursueAction struct {
	phase  pursuePhase
	search float64
}

func (p *pursueAction) begin(a *Agent) {
	p.phase = pursueChasing
	p.search = 0
	a.body.SetSpeed(a.cfg.AttackSpeed)
}

func (p *pursueAction) tick(a *Agent, dt float64) bool {
	s := a.state
	switch p.phase {
	case pursueChasing:
		if !a.targetInSight() {
			a.body.RequestMove(s.LastSeenTargetPosition)
			p.phase = pursueGoingToLastSeen
			return false
		}
		a.body.RequestMove(s.LastSeenTargetPosition)
		faceTowards(a, s.LastSeenTargetPosition)
		if s.DistanceToTarget <= a.cfg.StrikeRange {
			if a.striker != nil {
				a.striker.Strike(a.id, s.LastSeenTargetPosition)
			}
			a.emit(Event{Kind: EventStrike, Pos: s.LastSeenTargetPosition})
			a.body.Stop()
			p.phase = pursueDone
			return true
		}
	case pursueGoingToLastSeen:
		if a.targetInSight() {
			p.phase = pursueChasing
			return false
		}
		if a.body.HasArrived() {
			a.body.Stop()
			p.search = 0
			p.phase = pursueSearching
		}
	case pursueSearching:
		if a.targetInSight() {
			p.phase = pursueChasing
			return false
		}
		p.search += dt
		// One full turn over the search window.
		yaw := a.body.Forward().Yaw() + 360/a.cfg.SearchDuration*dt
		a.body.RequestFaceDirection(geom.FromYaw(yaw))
		if p.search >= a.cfg.SearchDuration {
			p.phase = pursueDone
			return true
		}
	case pursueDone:
		return true
	}
	return false
}

func (p *pursueAction) cancel(a *Agent) { a.body.Stop() }

func (p *pursueAction) steps() []SubStep {
	if p.phase == pursueDone {
		return phaseSteps(pursueSteps, len(pursueSteps))
	}
	return phaseSteps(pursueSteps, int(p.phase))
}
