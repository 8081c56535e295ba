package agent

import (
	"cavewarden.ai/internal/sim/htn"
	"cavewarden.ai/internal/sim/worldstate"
)

// PolicyInput is everything the replan rules look at for one tick.
type PolicyInput struct {
	State          *worldstate.State
	Plan           *htn.Plan
	Active         *htn.Task
	ActiveComplete bool
	// HungerRose is true on the tick isHungry went from false to true.
	HungerRose bool
	// Abandoned is set when the active task gave up on the rest of its plan.
	Abandoned bool
}

type Decision struct {
	Replan  bool
	Advance bool
	Reason  string
}

const (
	ReasonTargetSpotted = "target_spotted"
	ReasonNoPlan        = "no_plan"
	ReasonPlanDone      = "plan_done"
	ReasonTheft         = "theft"
	ReasonHungry        = "hungry"
	ReasonAbandoned     = "plan_abandoned"
)

// Policy applies the replan rules in priority order; the first rule that fires decides.
type Policy struct{}

func (Policy) Evaluate(in PolicyInput) Decision {
	s := in.State
	active := in.Active

	// Perception interrupts everything except a combat commitment still in progress.
	if s.TargetVisible && !s.TargetCloaked {
		if active != nil && active.Kind.Uninterruptible() && !in.ActiveComplete {
			return Decision{}
		}
		return Decision{Replan: true, Reason: ReasonTargetSpotted}
	}

	if in.Plan.Exhausted() || active == nil {
		return Decision{Replan: true, Reason: ReasonNoPlan}
	}

	if in.Abandoned {
		return Decision{Replan: true, Reason: ReasonAbandoned}
	}

	// A completed task hands the remaining rules to the one that runs next.
	task, advance := active, false
	if in.ActiveComplete {
		next := in.Plan.Next()
		if next == nil {
			return Decision{Advance: true, Replan: true, Reason: ReasonPlanDone}
		}
		task, advance = next, true
	}

	if s.GoalObjectStolen && !s.GoalObjectInvestigated && task.Kind != htn.KindInvestigate {
		return Decision{Advance: advance, Replan: true, Reason: ReasonTheft}
	}

	if in.HungerRose && !task.Kind.InForageSequence() {
		return Decision{Advance: advance, Replan: true, Reason: ReasonHungry}
	}
	return Decision{Advance: advance}
}

// ShouldReplan reports whether the rules discard the current plan this tick.
func ShouldReplan(in PolicyInput) bool {
	return Policy{}.Evaluate(in).Replan
}
