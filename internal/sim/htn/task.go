// Package htn is a forward-decomposition hierarchical task network planner.
//
// Tasks and methods are plain data: preconditions are Condition values, effects are fact
// assignments, and primitive actions are identified by Kind. The planner never touches
// the caller's live state.
package htn

import (
	"fmt"
	"strings"

	"cavewarden.ai/internal/sim/worldstate"
)

// Kind names the multi-tick action that backs a primitive task.
type Kind uint8

const (
	KindNone Kind = iota
	KindPursue
	KindPickUp
	KindThrow
	KindGoToForage
	KindForage
	KindReturnHome
	KindWalkRandomly
	KindLookAround
	KindInvestigate
)

var kindNames = [...]string{
	KindNone:         "none",
	KindPursue:       "pursue",
	KindPickUp:       "pick_up",
	KindThrow:        "throw",
	KindGoToForage:   "go_to_forage",
	KindForage:       "forage",
	KindReturnHome:   "return_home",
	KindWalkRandomly: "walk_randomly",
	KindLookAround:   "look_around",
	KindInvestigate:  "investigate",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for i, name := range kindNames {
		if i != int(KindNone) && name == s {
			return Kind(i), nil
		}
	}
	return KindNone, fmt.Errorf("unknown action kind %q", s)
}

// Uninterruptible actions are not preempted by the target-spotted interrupt.
func (k Kind) Uninterruptible() bool {
	return k == KindPursue || k == KindThrow
}

func (k Kind) InForageSequence() bool {
	return k == KindGoToForage || k == KindForage || k == KindReturnHome
}

// Condition is a guard evaluated against a (simulated) world state.
type Condition interface {
	Holds(s *worldstate.State) bool
	String() string
}

// Always is the vacuously true condition.
type Always struct{}

func (Always) Holds(*worldstate.State) bool { return true }
func (Always) String() string               { return "true" }
func (Always) Vacuous() bool                { return true }

// CondFunc adapts a Go predicate for domains built in code.
type CondFunc struct {
	Name string
	Fn   func(*worldstate.State) bool
}

func (c CondFunc) Holds(s *worldstate.State) bool {
	if c.Fn == nil {
		return true
	}
	return c.Fn(s)
}

func (c CondFunc) String() string {
	if c.Name == "" {
		return "func"
	}
	return c.Name
}

func isVacuous(c Condition) bool {
	if c == nil {
		return true
	}
	v, ok := c.(interface{ Vacuous() bool })
	return ok && v.Vacuous()
}

// Assignment sets one boolean fact when a primitive's effect is simulated.
type Assignment struct {
	Fact  string `json:"fact"`
	Value bool   `json:"value"`
}

func Set(fact string, v bool) Assignment { return Assignment{Fact: fact, Value: v} }

type TaskType uint8

const (
	TypePrimitive TaskType = iota + 1
	TypeCompound
)

// Task is immutable once registered; plans hold references, never copies.
type Task struct {
	Name string
	Type TaskType

	// Primitive only.
	Kind         Kind
	Precondition Condition
	Effects      []Assignment
}

func Primitive(name string, kind Kind, pre Condition, effects ...Assignment) *Task {
	return &Task{Name: name, Type: TypePrimitive, Kind: kind, Precondition: pre, Effects: effects}
}

func Compound(name string) *Task {
	return &Task{Name: name, Type: TypeCompound}
}

func (t *Task) IsPrimitive() bool { return t != nil && t.Type == TypePrimitive }

func (t *Task) Applicable(s *worldstate.State) bool {
	if t.Precondition == nil {
		return true
	}
	return t.Precondition.Holds(s)
}

func (t *Task) apply(s *worldstate.State) {
	for _, a := range t.Effects {
		// Fact names are checked at registration.
		_ = s.SetFact(a.Fact, a.Value)
	}
}

// Method is one guarded decomposition of a compound task.
type Method struct {
	Task         string
	Name         string
	Precondition Condition
	Subtasks     []*Task
}

func (m *Method) Applicable(s *worldstate.State) bool {
	if m.Precondition == nil {
		return true
	}
	return m.Precondition.Holds(s)
}
