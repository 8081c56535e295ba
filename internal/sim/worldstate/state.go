// Package worldstate holds the facts an agent believes about itself and its target.
//
// One State per agent is live and is mutated by perception every tick. Planning works on
// clones only.
package worldstate

import (
	"fmt"
	"math"
	"sort"

	"cavewarden.ai/internal/sim/geom"
)

type State struct {
	TargetVisible          bool `json:"target_visible" expr:"targetVisible"`
	TargetInStrikeRange    bool `json:"target_in_strike_range" expr:"targetInStrikeRange"`
	TargetCloaked          bool `json:"target_cloaked" expr:"targetCloaked"`
	GoalObjectStolen       bool `json:"goal_object_stolen" expr:"goalObjectStolen"`
	GoalObjectInvestigated bool `json:"goal_object_investigated" expr:"goalObjectInvestigated"`
	HasHeavyObjectInHand   bool `json:"has_heavy_object_in_hand" expr:"hasHeavyObjectInHand"`
	HeavyObjectAvailable   bool `json:"heavy_object_available" expr:"heavyObjectAvailable"`
	IsHungry               bool `json:"is_hungry" expr:"isHungry"`
	ForageAvailable        bool `json:"forage_available" expr:"forageAvailable"`
	IsAlert                bool `json:"is_alert" expr:"isAlert"`

	DistanceToTarget             float64 `json:"distance_to_target" expr:"distanceToTarget"`
	DistanceToNearestHeavyObject float64 `json:"distance_to_nearest_heavy_object" expr:"distanceToNearestHeavyObject"`
	TimeSinceTargetSeen          float64 `json:"time_since_target_seen" expr:"timeSinceTargetSeen"`

	LastSeenTargetPosition geom.Vec3 `json:"last_seen_target_position" expr:"lastSeenTargetPosition"`
	LastGoalTheftPosition  geom.Vec3 `json:"last_goal_theft_position" expr:"lastGoalTheftPosition"`
	HomePosition           geom.Vec3 `json:"home_position" expr:"homePosition"`
}

// New returns the spawn state: every fact false, distances unknown, home fixed.
func New(home geom.Vec3) *State {
	return &State{
		DistanceToTarget:             math.Inf(1),
		DistanceToNearestHeavyObject: math.Inf(1),
		TimeSinceTargetSeen:          math.Inf(1),
		HomePosition:                 home,
	}
}

// Clone returns an independent copy; State holds no references.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// JSON cannot carry +Inf, so snapshots clamp unknown distances to -1.
func (s State) Exported() State {
	out := s
	if math.IsInf(out.DistanceToTarget, 0) {
		out.DistanceToTarget = -1
	}
	if math.IsInf(out.DistanceToNearestHeavyObject, 0) {
		out.DistanceToNearestHeavyObject = -1
	}
	if math.IsInf(out.TimeSinceTargetSeen, 0) {
		out.TimeSinceTargetSeen = -1
	}
	return out
}

type fact struct {
	get func(*State) bool
	set func(*State, bool)
}

var facts = map[string]fact{
	"targetVisible": {
		func(s *State) bool { return s.TargetVisible },
		func(s *State, v bool) { s.TargetVisible = v },
	},
	"targetInStrikeRange": {
		func(s *State) bool { return s.TargetInStrikeRange },
		func(s *State, v bool) { s.TargetInStrikeRange = v },
	},
	"targetCloaked": {
		func(s *State) bool { return s.TargetCloaked },
		func(s *State, v bool) { s.TargetCloaked = v },
	},
	"goalObjectStolen": {
		func(s *State) bool { return s.GoalObjectStolen },
		func(s *State, v bool) { s.GoalObjectStolen = v },
	},
	"goalObjectInvestigated": {
		func(s *State) bool { return s.GoalObjectInvestigated },
		func(s *State, v bool) { s.GoalObjectInvestigated = v },
	},
	"hasHeavyObjectInHand": {
		func(s *State) bool { return s.HasHeavyObjectInHand },
		func(s *State, v bool) { s.HasHeavyObjectInHand = v },
	},
	"heavyObjectAvailable": {
		func(s *State) bool { return s.HeavyObjectAvailable },
		func(s *State, v bool) { s.HeavyObjectAvailable = v },
	},
	"isHungry": {
		func(s *State) bool { return s.IsHungry },
		func(s *State, v bool) { s.IsHungry = v },
	},
	"forageAvailable": {
		func(s *State) bool { return s.ForageAvailable },
		func(s *State, v bool) { s.ForageAvailable = v },
	},
	"isAlert": {
		func(s *State) bool { return s.IsAlert },
		func(s *State, v bool) { s.IsAlert = v },
	},
}

// FactNames lists the boolean facts addressable by name, sorted.
func FactNames() []string {
	out := make([]string, 0, len(facts))
	for name := range facts {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func IsFact(name string) bool {
	_, ok := facts[name]
	return ok
}

func (s *State) Fact(name string) (bool, bool) {
	f, ok := facts[name]
	if !ok {
		return false, false
	}
	return f.get(s), true
}

func (s *State) SetFact(name string, v bool) error {
	f, ok := facts[name]
	if !ok {
		return fmt.Errorf("unknown fact %q", name)
	}
	f.set(s, v)
	return nil
}
