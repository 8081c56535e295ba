package htn

import (
	"errors"
	"fmt"
	"math/rand"

	"cavewarden.ai/internal/sim/worldstate"
)

var (
	ErrUnknownTask  = errors.New("unknown task")
	ErrNoMethod     = errors.New("no applicable method")
	ErrPrecondition = errors.New("precondition failed")
)

type PlanError struct {
	Root string
	Task string
	Err  error
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("htn: plan %s: %s: %v", e.Root, e.Task, e.Err)
}

func (e *PlanError) Unwrap() error { return e.Err }

// Planner decomposes a root compound task into primitives.
//
// There is no backtracking: the first failed primitive precondition, or a compound task
// with no applicable method, fails the whole call even if an earlier method choice could
// have led elsewhere. Domains are written against these strict semantics.
type Planner struct {
	domain *Domain
	rng    *rand.Rand
}

func NewPlanner(d *Domain, rng *rand.Rand) *Planner {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Planner{domain: d, rng: rng}
}

func (p *Planner) Domain() *Domain { return p.domain }

// Plan never mutates state; effects are simulated on a clone.
func (p *Planner) Plan(state *worldstate.State, root string) ([]*Task, error) {
	rt, ok := p.domain.Task(root)
	if !ok {
		return nil, &PlanError{Root: root, Task: root, Err: ErrUnknownTask}
	}
	sim := state.Clone()
	if sim == nil {
		sim = &worldstate.State{}
	}

	var out []*Task
	stack := []*Task{rt}
	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if t.IsPrimitive() {
			if !t.Applicable(sim) {
				return nil, &PlanError{Root: root, Task: t.Name, Err: ErrPrecondition}
			}
			out = append(out, t)
			t.apply(sim)
			continue
		}

		m := p.chooseMethod(t.Name, sim)
		if m == nil {
			return nil, &PlanError{Root: root, Task: t.Name, Err: ErrNoMethod}
		}
		for i := len(m.Subtasks) - 1; i >= 0; i-- {
			stack = append(stack, m.Subtasks[i])
		}
	}
	return out, nil
}

func (p *Planner) chooseMethod(task string, s *worldstate.State) *Method {
	ms := p.domain.methods[task]
	if task != p.domain.idle {
		for _, m := range ms {
			if m.Applicable(s) {
				return m
			}
		}
		return nil
	}
	var candidates []*Method
	for _, m := range ms {
		if m.Applicable(s) {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	return candidates[p.rng.Intn(len(candidates))]
}

// Check replays tasks from state and reports the first primitive whose precondition
// does not hold at the point it would run.
func Check(state *worldstate.State, tasks []*Task) error {
	sim := state.Clone()
	for i, t := range tasks {
		if !t.IsPrimitive() {
			return fmt.Errorf("htn: step %d (%s) is not primitive", i, t.Name)
		}
		if !t.Applicable(sim) {
			return fmt.Errorf("htn: step %d (%s): %w", i, t.Name, ErrPrecondition)
		}
		t.apply(sim)
	}
	return nil
}
