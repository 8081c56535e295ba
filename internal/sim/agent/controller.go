package agent

import "cavewarden.ai/internal/sim/htn"

type Phase uint8

const (
	PhaseNoPlan Phase = iota
	PhaseRunning
	// PhaseAdvancing: the active task reported completion and waits for the policy to
	// move the cursor.
	PhaseAdvancing
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhaseAdvancing:
		return "advancing"
	default:
		return "no_plan"
	}
}

// Executor runs the state machine behind a primitive task.
type Executor interface {
	Begin(t *htn.Task)
	Step(t *htn.Task, dt float64) (complete bool)
	Cancel(t *htn.Task)
}

// Controller owns the plan cursor and decides when an executor sees a fresh Begin.
type Controller struct {
	exec  Executor
	plan  *htn.Plan
	phase Phase

	begun     bool
	begunPlan *htn.Plan
	begunIdx  int
	complete  bool
}

func NewController(exec Executor) *Controller {
	return &Controller{exec: exec}
}

func (c *Controller) Phase() Phase    { return c.phase }
func (c *Controller) Plan() *htn.Plan { return c.plan }
func (c *Controller) Complete() bool  { return c.complete }

// Active is the task under the cursor, nil without a plan.
func (c *Controller) Active() *htn.Task { return c.plan.Current() }

// Install replaces the plan, cancelling whatever was running. A nil or empty plan leaves
// the controller in PhaseNoPlan.
func (c *Controller) Install(p *htn.Plan) {
	c.cancelActive()
	c.plan = p
	c.begun = false
	c.complete = false
	if p.Exhausted() {
		c.phase = PhaseNoPlan
		return
	}
	c.phase = PhaseRunning
}

func (c *Controller) Clear() { c.Install(nil) }

// Advance moves past a completed task and reports whether one remains.
func (c *Controller) Advance() bool {
	c.begun = false
	c.complete = false
	if !c.plan.Advance() {
		c.phase = PhaseNoPlan
		return false
	}
	c.phase = PhaseRunning
	return true
}

func (c *Controller) Tick(dt float64) {
	t := c.plan.Current()
	if t == nil {
		c.phase = PhaseNoPlan
		return
	}
	if !c.begun || c.begunPlan != c.plan || c.begunIdx != c.plan.Cursor() {
		c.begun = true
		c.begunPlan = c.plan
		c.begunIdx = c.plan.Cursor()
		c.complete = false
		c.phase = PhaseRunning
		c.exec.Begin(t)
	}
	if c.complete {
		return
	}
	if c.exec.Step(t, dt) {
		c.complete = true
		c.phase = PhaseAdvancing
	}
}

func (c *Controller) cancelActive() {
	if !c.begun || c.complete {
		return
	}
	if t := c.plan.Current(); t != nil {
		c.exec.Cancel(t)
	}
	c.begun = false
}
