package agent

import (
	"cavewarden.ai/internal/sim/geom"
	"cavewarden.ai/internal/sim/registry"
)

// Locomotion is the body the agent steers. Movement is requested, never awaited: actions
// poll HasArrived/RemainingDistance on later ticks.
type Locomotion interface {
	Position() geom.Vec3
	Forward() geom.Vec3
	SetSpeed(speed float64)
	RequestMove(dest geom.Vec3)
	Stop()
	RemainingDistance() float64
	HasArrived() bool
	Velocity() geom.Vec3
	RequestFaceDirection(dir geom.Vec3)
}

// Percept is what the host's sensors report for one tick.
//
// TargetPosition is read only when the target is visible, or while the agent is hunting
// after an investigated theft; hosts may fill it unconditionally.
type Percept struct {
	TargetVisible     bool
	TargetPosition    geom.Vec3
	TargetCloaked     bool
	GoalObjectsStolen int
	GoalTheftPosition geom.Vec3
}

// Launcher takes ownership of a released heavy object.
type Launcher interface {
	Launch(owner string, item registry.Item, from, velocity geom.Vec3)
}

// Striker applies a melee hit to the target.
type Striker interface {
	Strike(owner string, at geom.Vec3)
}
