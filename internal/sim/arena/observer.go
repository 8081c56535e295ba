package arena

import (
	"encoding/json"
	"sort"
	"strings"

	"cavewarden.ai/internal/observerproto"
	"cavewarden.ai/internal/sim/agent"
)

// ObserverJoinRequest registers a read-only debug overlay session that receives one
// TICK message per tick on TickOut. All observer state is owned by the world loop.
type ObserverJoinRequest struct {
	SessionID    string
	TickOut      chan []byte
	FocusAgentID string
}

// ObserverSubscribeRequest changes the focused agent of an existing session.
type ObserverSubscribeRequest struct {
	SessionID    string
	FocusAgentID string
}

type observerClient struct {
	id      string
	tickOut chan []byte
	focus   string
	dropped uint64
}

func (w *World) ObserverJoin() chan<- ObserverJoinRequest { return w.observerJoin }

func (w *World) ObserverSubscribe() chan<- ObserverSubscribeRequest { return w.observerSub }

func (w *World) ObserverLeave() chan<- string { return w.observerLeave }

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.TickOut == nil {
		return
	}
	if old := w.observers[req.SessionID]; old != nil {
		close(old.tickOut)
	}
	w.observers[req.SessionID] = &observerClient{
		id:      req.SessionID,
		tickOut: req.TickOut,
		focus:   strings.TrimSpace(req.FocusAgentID),
	}
}

func (w *World) handleObserverSubscribe(req ObserverSubscribeRequest) {
	if c := w.observers[req.SessionID]; c != nil {
		c.focus = strings.TrimSpace(req.FocusAgentID)
	}
}

func (w *World) handleObserverLeave(sessionID string) {
	c := w.observers[sessionID]
	if c == nil {
		return
	}
	delete(w.observers, sessionID)
	close(c.tickOut)
}

func (w *World) closeObservers() {
	for id := range w.observers {
		w.handleObserverLeave(id)
	}
}

func (w *World) stepObservers(tick uint64) {
	if len(w.observers) == 0 {
		return
	}
	snaps := w.Snapshots()
	t := w.target
	pos := t.Position()
	base := observerproto.TickMsg{
		Type:            "TICK",
		ProtocolVersion: observerproto.Version,
		Tick:            tick,
		Target: observerproto.TargetState{
			Pos:      [3]float64{pos.X, pos.Y, pos.Z},
			Lives:    t.Lives(),
			Cloaked:  t.Cloaked(),
			Carrying: t.Carrying(),
			Stolen:   t.Stolen(),
			Down:     t.Down(),
		},
		Outcome: string(w.outcome),
	}

	ids := make([]string, 0, len(w.observers))
	for id := range w.observers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		c := w.observers[id]
		msg := base
		msg.Agents = snaps
		msg.Events = w.tickEvents
		if c.focus != "" {
			msg.Agents = filterSnapshots(snaps, c.focus)
			msg.Events = filterEvents(w.tickEvents, c.focus)
		}
		b, err := json.Marshal(msg)
		if err != nil {
			w.log.Warn("observer tick encode", "err", err)
			return
		}
		select {
		case c.tickOut <- b:
		default:
			// Slow consumer; it catches up on the next tick.
			c.dropped++
		}
	}
}

func filterSnapshots(in []agent.Snapshot, id string) []agent.Snapshot {
	out := []agent.Snapshot{}
	for _, s := range in {
		if s.ID == id {
			out = append(out, s)
		}
	}
	return out
}

func filterEvents(in []agent.Event, id string) []agent.Event {
	var out []agent.Event
	for _, e := range in {
		if e.AgentID == id {
			out = append(out, e)
		}
	}
	return out
}
