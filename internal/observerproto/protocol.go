package observerproto

import "cavewarden.ai/internal/sim/agent"

// Version is the debug overlay protocol version.
const Version = "0.1"

// Client -> Server. First message on the observer WS connection, and can be re-sent to
// change the focused agent.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Optional: restrict TICK messages to one agent.
	FocusAgentID string `json:"focus_agent_id,omitempty"`
	// Optional: include the full world state facts in each snapshot.
	WithState bool `json:"with_state,omitempty"`
}

// HTTP response for GET /debug/v1/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	RunID           string      `json:"run_id"`
	Tick            uint64      `json:"tick"`
	ArenaParams     ArenaParams `json:"arena_params"`
	Domain          DomainInfo  `json:"domain"`
	AgentIDs        []string    `json:"agent_ids"`
}

type ArenaParams struct {
	TickRateHz  int     `json:"tick_rate_hz"`
	Seed        int64   `json:"seed"`
	HalfExtent  float64 `json:"half_extent"`
	TargetLives int     `json:"target_lives"`
	Treasures   int     `json:"treasures"`
}

type DomainInfo struct {
	ID     string `json:"id"`
	Root   string `json:"root"`
	Digest string `json:"digest"`
}

// Server -> Client. Sent every tick.
type TickMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Target  TargetState      `json:"target"`
	Agents  []agent.Snapshot `json:"agents"`
	Events  []agent.Event    `json:"events,omitempty"`
	Outcome string           `json:"outcome,omitempty"`
}

type TargetState struct {
	Pos      [3]float64 `json:"pos"`
	Lives    int        `json:"lives"`
	Cloaked  bool       `json:"cloaked"`
	Carrying bool       `json:"carrying"`
	Stolen   int        `json:"stolen"`
	Down     bool       `json:"down"`
}
