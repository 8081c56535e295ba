package agent

import "cavewarden.ai/internal/sim/registry"

var (
	goToForageSteps = []string{"Reserve forage point", "Walk to forage point"}
	forageSteps     = []string{"Forage", "Consume"}
	returnHomeSteps = []string{"Walk home"}
)

// goToForageAction claims the nearest free forage point and walks to it. The claim is
// agent-local so the following Forage task can consume it.
type goToForageAction struct {
	started bool
	done    bool
}

func (g *goToForageAction) begin(a *Agent) {
	g.started = true
	it, ok := a.reg.NearestUnreserved(registry.ForagePoint, a.body.Position(), a.id)
	if !ok {
		// Lost the race for food; drop the hunger and the rest of the forage plan.
		a.state.IsHungry = false
		a.resetHunger()
		a.abandoned = true
		g.done = true
		return
	}
	a.forageClaim = it.Handle
	a.body.SetSpeed(a.cfg.IdleSpeed)
	a.body.RequestMove(it.Position)
}

func (g *goToForageAction) tick(a *Agent, _ float64) bool {
	if g.done {
		return true
	}
	if _, ok := a.reg.Get(a.forageClaim); !ok {
		a.forageClaim = 0
		g.done = true
		return true
	}
	if a.body.HasArrived() {
		g.done = true
	}
	return g.done
}

func (g *goToForageAction) cancel(a *Agent) {
	a.body.Stop()
	a.releaseForage()
}

func (g *goToForageAction) steps() []SubStep {
	switch {
	case g.done:
		return phaseSteps(goToForageSteps, 2)
	case g.started:
		return phaseSteps(goToForageSteps, 1)
	}
	return phaseSteps(goToForageSteps, 0)
}

type forageAction struct {
	elapsed float64
	done    bool
}

func (f *forageAction) begin(a *Agent) {
	f.elapsed = 0
	a.body.Stop()
	if a.forageClaim == 0 {
		f.done = true
	}
}

func (f *forageAction) tick(a *Agent, dt float64) bool {
	if f.done {
		return true
	}
	f.elapsed += dt
	if f.elapsed < a.cfg.ForageDuration {
		return false
	}
	if it, ok := a.reg.Consume(a.forageClaim, a.id); ok {
		a.emit(Event{Kind: EventForageConsumed, Pos: it.Position})
	}
	a.forageClaim = 0
	a.state.IsHungry = false
	a.resetHunger()
	f.done = true
	return true
}

func (f *forageAction) cancel(a *Agent) { a.releaseForage() }

func (f *forageAction) steps() []SubStep {
	if f.done {
		return phaseSteps(forageSteps, 2)
	}
	return phaseSteps(forageSteps, 0)
}

type returnHomeAction struct{ done bool }

func (r *returnHomeAction) begin(a *Agent) {
	a.body.SetSpeed(a.cfg.IdleSpeed)
	a.body.RequestMove(a.state.HomePosition)
}

func (r *returnHomeAction) tick(a *Agent, _ float64) bool {
	if a.body.HasArrived() {
		r.done = true
	}
	return r.done
}

func (r *returnHomeAction) cancel(a *Agent) { a.body.Stop() }

func (r *returnHomeAction) steps() []SubStep {
	if r.done {
		return phaseSteps(returnHomeSteps, 1)
	}
	return phaseSteps(returnHomeSteps, 0)
}
