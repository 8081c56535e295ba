package agent

var investigateSteps = []string{"Walk to theft spot", "Mark investigated"}

type investigateAction struct{ done bool }

func (i *investigateAction) begin(a *Agent) {
	a.body.SetSpeed(a.cfg.AttackSpeed)
	a.body.RequestMove(randomPointNear(a, a.state.LastGoalTheftPosition, a.cfg.InvestigateRadius))
}

func (i *investigateAction) tick(a *Agent, _ float64) bool {
	if i.done {
		return true
	}
	if !a.body.HasArrived() {
		return false
	}
	a.state.GoalObjectInvestigated = true
	a.emit(Event{Kind: EventInvestigated, Pos: a.state.LastGoalTheftPosition})
	i.done = true
	return true
}

func (i *investigateAction) cancel(a *Agent) { a.body.Stop() }

func (i *investigateAction) steps() []SubStep {
	if i.done {
		return phaseSteps(investigateSteps, 2)
	}
	return phaseSteps(investigateSteps, 0)
}
