package htn

// Plan is an ordered list of primitive tasks with a cursor. It is replaced wholesale on
// replan; only the cursor moves.
type Plan struct {
	tasks  []*Task
	cursor int
}

func NewPlan(tasks []*Task) *Plan {
	return &Plan{tasks: tasks}
}

func (p *Plan) Len() int {
	if p == nil {
		return 0
	}
	return len(p.tasks)
}

func (p *Plan) Cursor() int {
	if p == nil {
		return 0
	}
	return p.cursor
}

func (p *Plan) Exhausted() bool { return p == nil || p.cursor >= len(p.tasks) }

// Current returns the task under the cursor, or nil once exhausted.
func (p *Plan) Current() *Task {
	if p.Exhausted() {
		return nil
	}
	return p.tasks[p.cursor]
}

// Next returns the task after the cursor without moving it.
func (p *Plan) Next() *Task {
	if p == nil || p.cursor+1 >= len(p.tasks) {
		return nil
	}
	return p.tasks[p.cursor+1]
}

// Advance moves the cursor and reports whether a task remains.
func (p *Plan) Advance() bool {
	if p == nil {
		return false
	}
	if p.cursor < len(p.tasks) {
		p.cursor++
	}
	return !p.Exhausted()
}

func (p *Plan) Names() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.tasks))
	for i, t := range p.tasks {
		out[i] = t.Name
	}
	return out
}
