package agent

type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepActive  StepStatus = "active"
	StepDone    StepStatus = "done"
)

type SubStep struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
}

// phaseSteps marks names[:cur] done, names[cur] active and the rest pending. cur past
// the end marks everything done.
func phaseSteps(names []string, cur int) []SubStep {
	out := make([]SubStep, len(names))
	for i, n := range names {
		st := StepPending
		switch {
		case i < cur:
			st = StepDone
		case i == cur:
			st = StepActive
		}
		out[i] = SubStep{Name: n, Status: st}
	}
	return out
}
