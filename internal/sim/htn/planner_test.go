package htn

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cavewarden.ai/internal/sim/geom"
	"cavewarden.ai/internal/sim/worldstate"
)

func fact(name string) Condition {
	return CondFunc{Name: name, Fn: func(s *worldstate.State) bool {
		v, _ := s.Fact(name)
		return v
	}}
}

func not(c Condition) Condition {
	return CondFunc{Name: "!" + c.String(), Fn: func(s *worldstate.State) bool { return !c.Holds(s) }}
}

// forageDomain is a trimmed version of the default agent domain.
func forageDomain(t *testing.T) *Domain {
	t.Helper()
	d := NewDomain()
	root := d.MustAdd(Compound("Root"))
	idle := d.MustAdd(Compound("Idle"))
	goTo := d.MustAdd(Primitive("GoToForage", KindGoToForage, fact("isHungry")))
	forage := d.MustAdd(Primitive("Forage", KindForage, fact("isHungry"), Set("isHungry", false)))
	home := d.MustAdd(Primitive("ReturnHome", KindReturnHome, nil))
	walk := d.MustAdd(Primitive("WalkRandomly", KindWalkRandomly, Always{}))
	look := d.MustAdd(Primitive("LookAround", KindLookAround, Always{}))
	_ = root

	d.MustAddMethod(&Method{
		Task: "Root", Name: "Eat",
		Precondition: CondFunc{Name: "hungry&&available", Fn: func(s *worldstate.State) bool {
			return s.IsHungry && s.ForageAvailable
		}},
		Subtasks: []*Task{goTo, forage, home},
	})
	d.MustAddMethod(&Method{Task: "Root", Name: "Idle", Subtasks: []*Task{idle}})
	d.MustAddMethod(&Method{Task: "Idle", Name: "Walk", Precondition: Always{}, Subtasks: []*Task{walk}})
	d.MustAddMethod(&Method{Task: "Idle", Name: "Look", Precondition: Always{}, Subtasks: []*Task{look}})
	d.SetIdle("Idle")
	require.NoError(t, d.Validate("Root"))
	return d
}

func names(ts []*Task) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Name
	}
	return out
}

func TestPlanForageSequence(t *testing.T) {
	d := forageDomain(t)
	s := worldstate.New(geom.Vec3{})
	s.IsHungry = true
	s.ForageAvailable = true

	plan, err := NewPlanner(d, nil).Plan(s, "Root")
	require.NoError(t, err)
	assert.Equal(t, []string{"GoToForage", "Forage", "ReturnHome"}, names(plan))
	assert.True(t, s.IsHungry, "live state must not be mutated")
	require.NoError(t, Check(s, plan))
}

func TestPlanPreconditionSoundness(t *testing.T) {
	d := forageDomain(t)
	p := NewPlanner(d, rand.New(rand.NewSource(7)))
	for mask := 0; mask < 1<<len(worldstate.FactNames()); mask++ {
		s := worldstate.New(geom.Vec3{})
		for i, name := range worldstate.FactNames() {
			require.NoError(t, s.SetFact(name, mask&(1<<i) != 0))
		}
		plan, err := p.Plan(s, "Root")
		if err != nil {
			continue
		}
		require.NoError(t, Check(s, plan), "mask=%b plan=%v", mask, names(plan))
	}
}

func TestPlanNoBacktracking(t *testing.T) {
	d := NewDomain()
	d.MustAdd(Compound("Root"))
	a := d.MustAdd(Primitive("A", KindWalkRandomly, Always{}, Set("isAlert", true)))
	b := d.MustAdd(Primitive("B", KindLookAround, not(fact("isAlert"))))
	c := d.MustAdd(Primitive("C", KindLookAround, Always{}))
	d.MustAddMethod(&Method{Task: "Root", Name: "First", Subtasks: []*Task{a, b}})
	d.MustAddMethod(&Method{Task: "Root", Name: "Second", Subtasks: []*Task{c}})

	_, err := NewPlanner(d, nil).Plan(worldstate.New(geom.Vec3{}), "Root")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPrecondition)
	var pe *PlanError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "B", pe.Task)
}

func TestPlanDeepChainTerminates(t *testing.T) {
	const n = 500
	d := NewDomain()
	evaluations := 0
	counted := CondFunc{Name: "counted", Fn: func(*worldstate.State) bool {
		evaluations++
		return true
	}}
	leaf := d.MustAdd(Primitive("Leaf", KindLookAround, nil))
	for i := 0; i <= n; i++ {
		d.MustAdd(Compound(fmt.Sprintf("C%d", i)))
	}
	for i := 0; i < n; i++ {
		next, _ := d.Task(fmt.Sprintf("C%d", i+1))
		d.MustAddMethod(&Method{Task: fmt.Sprintf("C%d", i), Name: "down", Precondition: counted, Subtasks: []*Task{next}})
	}
	d.MustAddMethod(&Method{Task: fmt.Sprintf("C%d", n), Name: "leaf", Precondition: counted, Subtasks: []*Task{leaf}})

	plan, err := NewPlanner(d, nil).Plan(worldstate.New(geom.Vec3{}), "C0")
	require.NoError(t, err)
	assert.Equal(t, []string{"Leaf"}, names(plan))
	assert.Equal(t, n+1, evaluations)
}

func TestFirstMatchIsDeterministic(t *testing.T) {
	d := NewDomain()
	d.MustAdd(Compound("Root"))
	a := d.MustAdd(Primitive("A", KindWalkRandomly, nil))
	b := d.MustAdd(Primitive("B", KindLookAround, nil))
	d.MustAddMethod(&Method{Task: "Root", Name: "A", Precondition: Always{}, Subtasks: []*Task{a}})
	d.MustAddMethod(&Method{Task: "Root", Name: "B", Precondition: Always{}, Subtasks: []*Task{b}})

	p := NewPlanner(d, rand.New(rand.NewSource(99)))
	for i := 0; i < 50; i++ {
		plan, err := p.Plan(worldstate.New(geom.Vec3{}), "Root")
		require.NoError(t, err)
		require.Equal(t, []string{"A"}, names(plan))
	}
}

func TestIdleChoiceIsRandomized(t *testing.T) {
	d := forageDomain(t)
	p := NewPlanner(d, rand.New(rand.NewSource(3)))
	seen := map[string]int{}
	for i := 0; i < 200; i++ {
		plan, err := p.Plan(worldstate.New(geom.Vec3{}), "Root")
		require.NoError(t, err)
		require.Len(t, plan, 1)
		seen[plan[0].Name]++
	}
	assert.Greater(t, seen["WalkRandomly"], 0)
	assert.Greater(t, seen["LookAround"], 0)
}

func TestEmptyMethodSetThenFallback(t *testing.T) {
	d := NewDomain()
	d.MustAdd(Compound("Root"))
	p := NewPlanner(d, nil)

	_, err := p.Plan(worldstate.New(geom.Vec3{}), "Root")
	require.ErrorIs(t, err, ErrNoMethod)

	look := d.MustAdd(Primitive("LookAround", KindLookAround, Always{}))
	d.MustAddMethod(&Method{Task: "Root", Name: "Fallback", Precondition: Always{}, Subtasks: []*Task{look}})
	plan, err := p.Plan(worldstate.New(geom.Vec3{}), "Root")
	require.NoError(t, err)
	assert.Equal(t, []string{"LookAround"}, names(plan))
}

func TestUnknownRoot(t *testing.T) {
	_, err := NewPlanner(NewDomain(), nil).Plan(worldstate.New(geom.Vec3{}), "Nope")
	require.ErrorIs(t, err, ErrUnknownTask)
}

func TestPlanCursor(t *testing.T) {
	a := Primitive("A", KindWalkRandomly, nil)
	b := Primitive("B", KindLookAround, nil)
	p := NewPlan([]*Task{a, b})
	assert.Equal(t, a, p.Current())
	assert.True(t, p.Advance())
	assert.Equal(t, b, p.Current())
	assert.False(t, p.Advance())
	assert.True(t, p.Exhausted())
	assert.Nil(t, p.Current())
	assert.False(t, p.Advance())
	assert.Equal(t, 2, p.Cursor())

	var empty *Plan
	assert.True(t, empty.Exhausted())
	assert.Nil(t, empty.Current())
	assert.Zero(t, empty.Len())
	assert.True(t, NewPlan(nil).Exhausted())
}
