package agent

import (
	"cavewarden.ai/internal/sim/geom"
	"cavewarden.ai/internal/sim/registry"
	"cavewarden.ai/internal/sim/worldstate"
)

// Snapshot is the debug-overlay view of one agent at the end of a tick.
type Snapshot struct {
	ID        string           `json:"id"`
	Tick      uint64           `json:"tick"`
	Phase     string           `json:"phase"`
	Plan      []string         `json:"plan"`
	TaskIndex int              `json:"task_index"`
	Task      string           `json:"task"`
	SubSteps  []SubStep        `json:"sub_steps"`
	Position  geom.Vec3        `json:"pos"`
	Yaw       float64          `json:"yaw"`
	Carrying  *registry.Item   `json:"carrying,omitempty"`
	State     worldstate.State `json:"state"`
}

func (a *Agent) ID() string { return a.id }

func (a *Agent) Config() Config { return a.cfg }

// State returns a copy of the live world state.
func (a *Agent) State() worldstate.State { return *a.state }

func (a *Agent) Position() geom.Vec3 { return a.body.Position() }

func (a *Agent) Carrying() (registry.Item, bool) {
	if a.carried == nil {
		return registry.Item{}, false
	}
	return *a.carried, true
}

func (a *Agent) Phase() Phase { return a.ctl.Phase() }

func (a *Agent) CurrentPlan() []string { return a.ctl.Plan().Names() }

// CurrentTaskIndex is the plan cursor, or -1 without a plan.
func (a *Agent) CurrentTaskIndex() int {
	if a.ctl.Plan() == nil {
		return -1
	}
	return a.ctl.Plan().Cursor()
}

func (a *Agent) CurrentTaskName() string {
	if t := a.ctl.Active(); t != nil {
		return t.Name
	}
	return ""
}

func (a *Agent) CurrentSubSteps() []SubStep {
	t := a.ctl.Active()
	if t == nil {
		return nil
	}
	if a.act == nil {
		return phaseSteps(stepNames(t.Kind), 0)
	}
	return a.act.steps()
}

func (a *Agent) Snapshot() Snapshot {
	snap := Snapshot{
		ID:        a.id,
		Tick:      a.tick,
		Phase:     a.ctl.Phase().String(),
		Plan:      a.CurrentPlan(),
		TaskIndex: a.CurrentTaskIndex(),
		Task:      a.CurrentTaskName(),
		SubSteps:  a.CurrentSubSteps(),
		Position:  a.body.Position(),
		Yaw:       a.body.Forward().Yaw(),
		State:     a.state.Exported(),
	}
	if a.carried != nil {
		it := *a.carried
		snap.Carrying = &it
	}
	return snap
}
