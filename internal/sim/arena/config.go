package arena

import (
	"cavewarden.ai/internal/sim/agent"
	"cavewarden.ai/internal/sim/tuning"
)

// AgentConfig maps the agent section of tuning.yaml onto per-agent behaviour constants.
// Perception values stay with the arena.
func AgentConfig(t tuning.Agent) agent.Config {
	c := agent.DefaultConfig()
	c.StrikeRange = t.StrikeRange
	c.IdleSpeed = t.IdleSpeed
	c.AttackSpeed = t.AttackSpeed
	c.PatrolRadius = t.PatrolRadius
	c.LookWait = t.LookWaitS
	c.LookTurnSpeed = t.TurnSpeedDeg
	c.InvestigateRadius = t.InvestigateR
	c.SearchDuration = t.SearchS
	c.ThrowRange = t.ThrowRange
	c.ThrowSpeed = t.ThrowSpeed
	c.ThrowUpwardBoost = t.ThrowUpBoost
	c.HandOffsetForward = t.HandForward
	c.HandOffsetUp = t.HandUp
	c.ForageDuration = t.ForageS
	c.HungerMin = t.HungerMinS
	c.HungerMax = t.HungerMaxS
	c.AlertWindow = t.AlertWindowS
	c.HuntMode = t.HuntMode
	return c
}
