package agent

import (
	"errors"
	"fmt"
)

// Config holds per-agent behaviour constants. Durations are seconds, angles degrees,
// speeds units per second.
type Config struct {
	StrikeRange float64
	IdleSpeed   float64
	AttackSpeed float64

	PatrolRadius      float64
	LookWait          float64
	LookTurnSpeed     float64
	LookTolerance     float64
	InvestigateRadius float64

	SearchDuration float64

	ThrowRange        float64
	ThrowSpeed        float64
	ThrowUpwardBoost  float64
	HandOffsetForward float64
	HandOffsetUp      float64

	ForageDuration float64
	HungerMin      float64
	HungerMax      float64

	AlertWindow float64
	HuntMode    bool
}

func DefaultConfig() Config {
	return Config{
		StrikeRange: 2,
		IdleSpeed:   5,
		AttackSpeed: 10,

		PatrolRadius:      15,
		LookWait:          2,
		LookTurnSpeed:     90,
		LookTolerance:     3,
		InvestigateRadius: 3,

		SearchDuration: 3,

		ThrowRange:        25,
		ThrowSpeed:        15,
		ThrowUpwardBoost:  4,
		HandOffsetForward: 0.8,
		HandOffsetUp:      1.2,

		ForageDuration: 1,
		HungerMin:      15,
		HungerMax:      25,

		AlertWindow: 2,
		HuntMode:    true,
	}
}

func (c Config) Validate() error {
	positive := []struct {
		name string
		v    float64
	}{
		{"strike_range", c.StrikeRange},
		{"idle_speed", c.IdleSpeed},
		{"attack_speed", c.AttackSpeed},
		{"look_turn_speed", c.LookTurnSpeed},
		{"look_tolerance", c.LookTolerance},
		{"search_duration", c.SearchDuration},
		{"throw_range", c.ThrowRange},
		{"throw_speed", c.ThrowSpeed},
		{"forage_duration", c.ForageDuration},
		{"hunger_min", c.HungerMin},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("agent: %s must be > 0", p.name)
		}
	}
	if c.PatrolRadius < 0 || c.InvestigateRadius < 0 || c.LookWait < 0 || c.AlertWindow < 0 {
		return errors.New("agent: radii and waits must be >= 0")
	}
	if c.HungerMax < c.HungerMin {
		return fmt.Errorf("agent: hunger_max %.1f < hunger_min %.1f", c.HungerMax, c.HungerMin)
	}
	return nil
}
