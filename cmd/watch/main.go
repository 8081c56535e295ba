package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/gorilla/websocket"

	"cavewarden.ai/internal/observerproto"
	"cavewarden.ai/internal/sim/agent"
)

func main() {
	var (
		url   = flag.String("url", "ws://127.0.0.1:8080/debug/v1/ws", "observer ws url")
		focus = flag.String("agent", "", "focus agent id (empty watches every agent)")
		every = flag.Uint64("every", 20, "print every N ticks")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[watch] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, http.Header{})
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{
		Type:            "SUBSCRIBE",
		ProtocolVersion: observerproto.Version,
		FocusAgentID:    *focus,
	}
	if err := conn.WriteJSON(sub); err != nil {
		logger.Fatalf("send SUBSCRIBE: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	if *every == 0 {
		*every = 1
	}
	var decided bool
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var tm observerproto.TickMsg
		if err := json.Unmarshal(msg, &tm); err != nil || tm.Type != "TICK" {
			continue
		}
		// Events and outcomes are printed as they arrive; overlays are sampled.
		for _, e := range tm.Events {
			if *focus == "" || e.AgentID == *focus {
				logger.Print(formatEvent(e))
			}
		}
		if tm.Outcome != "" && !decided {
			decided = true
			logger.Printf("OUTCOME %s tick=%d", tm.Outcome, tm.Tick)
		}
		if tm.Tick%*every != 0 {
			continue
		}
		t := tm.Target
		logger.Printf("tick=%d target pos=(%.1f,%.1f) lives=%d cloaked=%v carrying=%v stolen=%d",
			tm.Tick, t.Pos[0], t.Pos[2], t.Lives, t.Cloaked, t.Carrying, t.Stolen)
		for _, s := range tm.Agents {
			logger.Print(formatOverlay(s))
		}
	}
}

func formatEvent(e agent.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s tick=%d", e.AgentID, e.Kind, e.Tick)
	if e.Task != "" {
		fmt.Fprintf(&b, " task=%s", e.Task)
	}
	if len(e.Plan) > 0 {
		fmt.Fprintf(&b, " plan=[%s]", strings.Join(e.Plan, " > "))
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, " reason=%q", e.Reason)
	}
	return b.String()
}

// formatOverlay renders one agent as "id phase [plan] task#i {steps}".
func formatOverlay(s agent.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  %s %-10s pos=(%.1f,%.1f)", s.ID, s.Phase, s.Position.X, s.Position.Z)
	if len(s.Plan) > 0 {
		fmt.Fprintf(&b, " [%s] %s#%d", strings.Join(s.Plan, " > "), s.Task, s.TaskIndex)
	}
	if len(s.SubSteps) > 0 {
		parts := make([]string, 0, len(s.SubSteps))
		for _, st := range s.SubSteps {
			mark := " "
			switch st.Status {
			case agent.StepDone:
				mark = "x"
			case agent.StepActive:
				mark = ">"
			}
			parts = append(parts, mark+st.Name)
		}
		fmt.Fprintf(&b, " {%s}", strings.Join(parts, " "))
	}
	if s.Carrying != nil {
		fmt.Fprintf(&b, " carrying=%v#%v", s.Carrying.Kind, s.Carrying.Handle)
	}
	return b.String()
}
