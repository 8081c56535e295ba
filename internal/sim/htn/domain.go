package htn

import (
	"errors"
	"fmt"
	"sort"

	"cavewarden.ai/internal/sim/worldstate"
)

// Domain is the registered task grammar. Method order is registration order and is
// significant: the first applicable method wins for every task except the idle task.
type Domain struct {
	tasks   map[string]*Task
	methods map[string][]*Method
	idle    string
}

func NewDomain() *Domain {
	return &Domain{
		tasks:   map[string]*Task{},
		methods: map[string][]*Method{},
	}
}

func (d *Domain) Add(t *Task) error {
	if t == nil || t.Name == "" {
		return errors.New("htn: task needs a name")
	}
	if _, dup := d.tasks[t.Name]; dup {
		return fmt.Errorf("htn: duplicate task %q", t.Name)
	}
	switch t.Type {
	case TypePrimitive:
		if t.Kind == KindNone {
			return fmt.Errorf("htn: primitive %q has no action kind", t.Name)
		}
		for _, a := range t.Effects {
			if !worldstate.IsFact(a.Fact) {
				return fmt.Errorf("htn: primitive %q sets unknown fact %q", t.Name, a.Fact)
			}
		}
	case TypeCompound:
	default:
		return fmt.Errorf("htn: task %q has no type", t.Name)
	}
	d.tasks[t.Name] = t
	return nil
}

// MustAdd is Add for domains built in code at startup.
func (d *Domain) MustAdd(t *Task) *Task {
	if err := d.Add(t); err != nil {
		panic(err)
	}
	return t
}

func (d *Domain) AddMethod(m *Method) error {
	if m == nil || m.Task == "" || m.Name == "" {
		return errors.New("htn: method needs a task and a name")
	}
	owner, ok := d.tasks[m.Task]
	if !ok || owner.Type != TypeCompound {
		return fmt.Errorf("htn: method %s.%s: %q is not a registered compound task", m.Task, m.Name, m.Task)
	}
	if len(m.Subtasks) == 0 {
		return fmt.Errorf("htn: method %s.%s has no subtasks", m.Task, m.Name)
	}
	for _, existing := range d.methods[m.Task] {
		if existing.Name == m.Name {
			return fmt.Errorf("htn: duplicate method %s.%s", m.Task, m.Name)
		}
	}
	d.methods[m.Task] = append(d.methods[m.Task], m)
	return nil
}

func (d *Domain) MustAddMethod(m *Method) {
	if err := d.AddMethod(m); err != nil {
		panic(err)
	}
}

// SetIdle designates the compound task whose methods are chosen at random.
func (d *Domain) SetIdle(name string) { d.idle = name }
func (d *Domain) Idle() string        { return d.idle }

func (d *Domain) Task(name string) (*Task, bool) {
	t, ok := d.tasks[name]
	return t, ok
}

func (d *Domain) Methods(task string) []*Method {
	ms := d.methods[task]
	out := make([]*Method, len(ms))
	copy(out, ms)
	return out
}

func (d *Domain) Tasks() []*Task {
	out := make([]*Task, 0, len(d.tasks))
	for _, t := range d.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Validate checks the grammar rooted at root: references resolve, the method graph is
// acyclic, and the idle task has an unconditional fallback method.
func (d *Domain) Validate(root string) error {
	rt, ok := d.tasks[root]
	if !ok || rt.Type != TypeCompound {
		return fmt.Errorf("htn: root %q is not a registered compound task", root)
	}
	names := make([]string, 0, len(d.methods))
	for name := range d.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, m := range d.methods[name] {
			for _, sub := range m.Subtasks {
				if sub == nil {
					return fmt.Errorf("htn: method %s.%s has a nil subtask", m.Task, m.Name)
				}
				reg, ok := d.tasks[sub.Name]
				if !ok {
					return fmt.Errorf("htn: method %s.%s references unknown task %q", m.Task, m.Name, sub.Name)
				}
				if reg.Type != sub.Type {
					return fmt.Errorf("htn: method %s.%s references %q with the wrong type", m.Task, m.Name, sub.Name)
				}
			}
		}
	}
	if err := d.checkAcyclic(); err != nil {
		return err
	}
	if d.idle == "" {
		return errors.New("htn: no idle task designated")
	}
	fallback := false
	for _, m := range d.methods[d.idle] {
		if isVacuous(m.Precondition) {
			fallback = true
			break
		}
	}
	if !fallback {
		return fmt.Errorf("htn: idle task %q has no unconditional method", d.idle)
	}
	return nil
}

func (d *Domain) checkAcyclic() error {
	const (
		white = iota
		grey
		black
	)
	color := map[string]int{}
	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch color[name] {
		case grey:
			return fmt.Errorf("htn: cyclic decomposition %v -> %s", path, name)
		case black:
			return nil
		}
		color[name] = grey
		for _, m := range d.methods[name] {
			for _, sub := range m.Subtasks {
				if sub.Type != TypeCompound {
					continue
				}
				if err := visit(sub.Name, append(path, name)); err != nil {
					return err
				}
			}
		}
		color[name] = black
		return nil
	}
	for _, t := range d.Tasks() {
		if t.Type != TypeCompound {
			continue
		}
		if err := visit(t.Name, nil); err != nil {
			return err
		}
	}
	return nil
}
