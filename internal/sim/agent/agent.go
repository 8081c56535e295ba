// Package agent runs one HTN-planned NPC: it folds percepts into the live world state,
// applies the replan policy, and drives the per-task state machines through a Controller.
package agent

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"

	"cavewarden.ai/internal/sim/geom"
	"cavewarden.ai/internal/sim/htn"
	"cavewarden.ai/internal/sim/registry"
	"cavewarden.ai/internal/sim/worldstate"
)

type Deps struct {
	Body     Locomotion
	Registry *registry.Registry
	Planner  *htn.Planner
	Root     string

	Launcher Launcher
	Striker  Striker
	Events   EventSink
	Logger   *slog.Logger
	Rand     *rand.Rand
}

type Agent struct {
	id       string
	cfg      Config
	body     Locomotion
	reg      *registry.Registry
	planner  *htn.Planner
	root     string
	launcher Launcher
	striker  Striker
	events   EventSink
	log      *slog.Logger
	rng      *rand.Rand

	state  *worldstate.State
	policy Policy
	ctl    *Controller
	act    action

	tick uint64

	// Agent-local; survives replans.
	carried     *registry.Item
	forageClaim registry.Handle
	heavyClaim  registry.Handle

	stolenSeen  int
	hungerClock float64
	hungerAt    float64
	hungerRose  bool
	abandoned   bool

	targetVel    geom.Vec3
	prevTarget   geom.Vec3
	prevTargetOK bool

	failStreak int
}

func New(id string, home geom.Vec3, cfg Config, deps Deps) (*Agent, error) {
	if id == "" {
		return nil, errors.New("agent: empty id")
	}
	if deps.Body == nil || deps.Registry == nil || deps.Planner == nil {
		return nil, errors.New("agent: body, registry and planner are required")
	}
	if _, ok := deps.Planner.Domain().Task(deps.Root); !ok {
		return nil, fmt.Errorf("agent: unknown root task %q", deps.Root)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Agent{
		id:       id,
		cfg:      cfg,
		body:     deps.Body,
		reg:      deps.Registry,
		planner:  deps.Planner,
		root:     deps.Root,
		launcher: deps.Launcher,
		striker:  deps.Striker,
		events:   deps.Events,
		log:      deps.Logger,
		rng:      deps.Rand,
		state:    worldstate.New(home),
	}
	if a.events == nil {
		a.events = discardSink{}
	}
	if a.log == nil {
		a.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	a.log = a.log.With("agent", id)
	if a.rng == nil {
		a.rng = rand.New(rand.NewSource(1))
	}
	a.ctl = NewController(agentExec{a})
	a.resetHunger()
	return a, nil
}

// Tick advances the agent by dt seconds: perceive, evaluate the replan policy, then run
// the active task.
func (a *Agent) Tick(dt float64, p Percept) {
	a.tick++
	a.perceive(dt, p)

	d := a.policy.Evaluate(PolicyInput{
		State:          a.state,
		Plan:           a.ctl.Plan(),
		Active:         a.ctl.Active(),
		ActiveComplete: a.ctl.Complete(),
		HungerRose:     a.hungerRose,
		Abandoned:      a.abandoned,
	})
	if d.Advance {
		a.ctl.Advance()
	}
	if d.Replan {
		a.replan(d.Reason)
	}
	a.ctl.Tick(dt)
}

func (a *Agent) replan(reason string) {
	a.ctl.Clear()
	a.act = nil
	a.abandoned = false
	a.releaseClaims()

	tasks, err := a.planner.Plan(a.state, a.root)
	if err != nil {
		a.failStreak++
		if a.failStreak == 1 {
			a.log.Warn("planning failed", "reason", reason, "err", err)
		} else {
			a.log.Debug("planning failed", "reason", reason, "err", err, "streak", a.failStreak)
		}
		a.emit(Event{Kind: EventPlanFailed, Reason: err.Error()})
		return
	}
	a.failStreak = 0
	plan := htn.NewPlan(tasks)
	a.ctl.Install(plan)
	a.log.Debug("replan", "reason", reason, "plan", plan.Names())
	a.emit(Event{Kind: EventPlanInstalled, Plan: plan.Names(), Reason: reason})
}

func (a *Agent) perceive(dt float64, p Percept) {
	s := a.state
	pos := a.body.Position()

	if p.GoalObjectsStolen > a.stolenSeen {
		a.stolenSeen = p.GoalObjectsStolen
		s.GoalObjectStolen = true
		s.GoalObjectInvestigated = false
		s.LastGoalTheftPosition = p.GoalTheftPosition
		a.emit(Event{Kind: EventTheftDetected, Pos: p.GoalTheftPosition})
	}

	s.TargetCloaked = p.TargetCloaked
	visible := p.TargetVisible
	if a.hunting() {
		visible = !p.TargetCloaked
	}
	s.TargetVisible = visible

	if visible {
		a.trackTarget(p.TargetPosition, dt)
		s.LastSeenTargetPosition = p.TargetPosition
		s.TimeSinceTargetSeen = 0
	} else {
		a.prevTargetOK = false
		a.targetVel = geom.Vec3{}
		s.TimeSinceTargetSeen += dt
	}
	if math.IsInf(s.TimeSinceTargetSeen, 1) {
		s.DistanceToTarget = math.Inf(1)
	} else {
		s.DistanceToTarget = pos.Dist(s.LastSeenTargetPosition)
	}
	s.TargetInStrikeRange = visible && s.DistanceToTarget <= a.cfg.StrikeRange
	s.IsAlert = s.TimeSinceTargetSeen <= a.cfg.AlertWindow

	s.HasHeavyObjectInHand = a.carried != nil
	if it, ok := a.reg.Nearest(registry.HeavyObject, pos); ok {
		s.DistanceToNearestHeavyObject = pos.Dist(it.Position)
	} else {
		s.DistanceToNearestHeavyObject = math.Inf(1)
	}
	s.HeavyObjectAvailable = a.reg.Available(registry.HeavyObject, a.id)
	s.ForageAvailable = a.reg.Available(registry.ForagePoint, a.id)

	a.hungerRose = false
	if a.hunting() {
		s.IsHungry = false
		s.ForageAvailable = false
		return
	}
	if s.IsHungry || a.inForageSequence() {
		return
	}
	a.hungerClock += dt
	if a.hungerClock < a.hungerAt {
		return
	}
	if s.ForageAvailable {
		s.IsHungry = true
		a.hungerRose = true
		a.emit(Event{Kind: EventHungry})
		return
	}
	a.resetHunger()
}

// hunting: after investigating a theft the agent always knows where the target is,
// unless it is cloaked.
func (a *Agent) hunting() bool {
	return a.cfg.HuntMode && a.state.GoalObjectStolen && a.state.GoalObjectInvestigated
}

func (a *Agent) trackTarget(pos geom.Vec3, dt float64) {
	if a.prevTargetOK && dt > 0 {
		inst := pos.Sub(a.prevTarget).Scale(1 / dt)
		a.targetVel = a.targetVel.Scale(0.5).Add(inst.Scale(0.5))
	}
	a.prevTarget = pos
	a.prevTargetOK = true
}

func (a *Agent) inForageSequence() bool {
	t := a.ctl.Active()
	return t != nil && t.Kind.InForageSequence()
}

func (a *Agent) resetHunger() {
	a.hungerClock = 0
	a.hungerAt = a.cfg.HungerMin + a.rng.Float64()*(a.cfg.HungerMax-a.cfg.HungerMin)
}

// targetInSight is the combat notion of visibility: seen and not cloaked.
func (a *Agent) targetInSight() bool {
	return a.state.TargetVisible && !a.state.TargetCloaked
}

func (a *Agent) releaseForage() {
	if a.forageClaim != 0 {
		a.reg.Release(a.forageClaim, a.id)
		a.forageClaim = 0
	}
}

func (a *Agent) releaseHeavy() {
	if a.heavyClaim != 0 {
		a.reg.Release(a.heavyClaim, a.id)
		a.heavyClaim = 0
	}
}

// releaseClaims drops reservations only; a carried object stays in hand.
func (a *Agent) releaseClaims() {
	a.releaseForage()
	a.releaseHeavy()
}

func (a *Agent) emit(e Event) {
	e.Tick = a.tick
	e.AgentID = a.id
	if e.Pos == (geom.Vec3{}) {
		e.Pos = a.body.Position()
	}
	a.events.Notify(e)
}

// Remove releases every reservation the agent holds. Call when the host despawns it.
func (a *Agent) Remove() {
	a.ctl.Clear()
	a.releaseClaims()
}

type agentExec struct{ a *Agent }

func (e agentExec) Begin(t *htn.Task) {
	a := e.a
	a.act = newAction(t.Kind)
	a.emit(Event{Kind: EventTaskStarted, Task: t.Name})
	if a.act != nil {
		a.act.begin(a)
	}
}

func (e agentExec) Step(t *htn.Task, dt float64) bool {
	a := e.a
	if a.act == nil {
		return true
	}
	if !a.act.tick(a, dt) {
		return false
	}
	a.emit(Event{Kind: EventTaskCompleted, Task: t.Name})
	return true
}

func (e agentExec) Cancel(t *htn.Task) {
	a := e.a
	if a.act != nil {
		a.act.cancel(a)
		a.emit(Event{Kind: EventTaskCancelled, Task: t.Name})
	}
	a.act = nil
}
