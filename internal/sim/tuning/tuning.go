package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	TickRateHz int    `yaml:"tick_rate_hz"`
	DomainPath string `yaml:"domain_path"`

	Agent Agent `yaml:"agent"`
	Arena Arena `yaml:"arena"`
}

type Agent struct {
	ViewRange    float64 `yaml:"view_range"`
	ViewAngleDeg float64 `yaml:"view_angle_deg"`
	StrikeRange  float64 `yaml:"strike_range"`
	IdleSpeed    float64 `yaml:"idle_speed"`
	AttackSpeed  float64 `yaml:"attack_speed"`
	PatrolRadius float64 `yaml:"patrol_radius"`
	TurnSpeedDeg float64 `yaml:"turn_speed_deg"`
	LookWaitS    float64 `yaml:"look_wait_s"`
	SearchS      float64 `yaml:"search_s"`
	ThrowRange   float64 `yaml:"throw_range"`
	ThrowSpeed   float64 `yaml:"throw_speed"`
	ThrowUpBoost float64 `yaml:"throw_upward_boost"`
	HandForward  float64 `yaml:"hand_offset_forward"`
	HandUp       float64 `yaml:"hand_offset_up"`
	ForageS      float64 `yaml:"forage_s"`
	HungerMinS   float64 `yaml:"hunger_min_s"`
	HungerMaxS   float64 `yaml:"hunger_max_s"`
	InvestigateR float64 `yaml:"investigate_radius"`
	AlertWindowS float64 `yaml:"alert_window_s"`
	HuntMode     bool    `yaml:"hunt_mode"`
}

type Arena struct {
	Seed         int64   `yaml:"seed"`
	HalfExtent   float64 `yaml:"half_extent"`
	Agents       int     `yaml:"agents"`
	HeavyObjects int     `yaml:"heavy_objects"`
	ForagePoints int     `yaml:"forage_points"`
	Treasures    int     `yaml:"treasures"`
	TargetLives  int     `yaml:"target_lives"`
	TargetSpeed  float64 `yaml:"target_speed"`
	CloakBudgetS float64 `yaml:"cloak_budget_s"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz: 20,
		Agent: Agent{
			ViewRange:    50,
			ViewAngleDeg: 120,
			StrikeRange:  2,
			IdleSpeed:    5,
			AttackSpeed:  10,
			PatrolRadius: 15,
			TurnSpeedDeg: 90,
			LookWaitS:    2,
			SearchS:      3,
			ThrowRange:   25,
			ThrowSpeed:   15,
			ThrowUpBoost: 4,
			HandForward:  0.8,
			HandUp:       1.2,
			ForageS:      1,
			HungerMinS:   15,
			HungerMaxS:   25,
			InvestigateR: 3,
			AlertWindowS: 2,
			HuntMode:     true,
		},
		Arena: Arena{
			Seed:         1337,
			HalfExtent:   60,
			Agents:       2,
			HeavyObjects: 6,
			ForagePoints: 4,
			Treasures:    3,
			TargetLives:  2,
			TargetSpeed:  7,
			CloakBudgetS: 10,
		},
	}
}

// Load overlays the file onto Defaults; keys missing from the file keep their defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 {
		return errors.New("tick_rate_hz must be > 0")
	}
	a := t.Agent
	for name, v := range map[string]float64{
		"agent.view_range":     a.ViewRange,
		"agent.view_angle_deg": a.ViewAngleDeg,
		"agent.strike_range":   a.StrikeRange,
		"agent.idle_speed":     a.IdleSpeed,
		"agent.attack_speed":   a.AttackSpeed,
		"agent.turn_speed_deg": a.TurnSpeedDeg,
		"agent.search_s":       a.SearchS,
		"agent.throw_range":    a.ThrowRange,
		"agent.throw_speed":    a.ThrowSpeed,
		"agent.forage_s":       a.ForageS,
		"agent.hunger_min_s":   a.HungerMinS,
		"arena.half_extent":    t.Arena.HalfExtent,
		"arena.target_speed":   t.Arena.TargetSpeed,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	if a.HungerMaxS < a.HungerMinS {
		return errors.New("agent.hunger_max_s must be >= agent.hunger_min_s")
	}
	if t.Arena.Agents <= 0 {
		return errors.New("arena.agents must be > 0")
	}
	if t.Arena.HeavyObjects < 0 || t.Arena.ForagePoints < 0 || t.Arena.Treasures < 0 {
		return errors.New("arena counts must be >= 0")
	}
	if t.Arena.TargetLives <= 0 {
		return errors.New("arena.target_lives must be > 0")
	}
	return nil
}
