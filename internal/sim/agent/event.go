package agent

import "cavewarden.ai/internal/sim/geom"

type EventKind string

const (
	EventPlanInstalled  EventKind = "plan_installed"
	EventPlanFailed     EventKind = "plan_failed"
	EventTaskStarted    EventKind = "task_started"
	EventTaskCompleted  EventKind = "task_completed"
	EventTaskCancelled  EventKind = "task_cancelled"
	EventStrike         EventKind = "strike"
	EventPickUp         EventKind = "pick_up"
	EventThrow          EventKind = "throw"
	EventForageConsumed EventKind = "forage_consumed"
	EventHungry         EventKind = "hungry"
	EventTheftDetected  EventKind = "theft_detected"
	EventInvestigated   EventKind = "investigated"
)

type Event struct {
	Tick    uint64    `json:"tick"`
	AgentID string    `json:"agent_id"`
	Kind    EventKind `json:"kind"`
	Task    string    `json:"task,omitempty"`
	Plan    []string  `json:"plan,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	Pos     geom.Vec3 `json:"pos"`
}

// EventSink observes agent events. Notify is called synchronously from Tick.
type EventSink interface {
	Notify(Event)
}

type EventSinkFunc func(Event)

func (f EventSinkFunc) Notify(e Event) { f(e) }

// Sinks fans out to every non-nil sink in order.
type Sinks []EventSink

func (s Sinks) Notify(e Event) {
	for _, sink := range s {
		if sink != nil {
			sink.Notify(e)
		}
	}
}

type discardSink struct{}

func (discardSink) Notify(Event) {}
