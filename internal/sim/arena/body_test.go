package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cavewarden.ai/internal/sim/geom"
)

func TestBodyWalksToDestination(t *testing.T) {
	b := NewBody(geom.Vec3{}, 0, 50)
	b.SetSpeed(5)
	b.RequestMove(geom.V(10, 3, 0))
	require.False(t, b.HasArrived())
	assert.InDelta(t, 10, b.RemainingDistance(), 1e-9)

	b.Step(1)
	assert.InDelta(t, 5, b.Position().X, 1e-9)
	assert.Zero(t, b.Position().Y, "moves stay on the ground plane")
	assert.InDelta(t, 90, b.Forward().Yaw(), 1e-9)
	assert.InDelta(t, 5, b.Velocity().Len(), 1e-9)

	b.Step(1)
	b.Step(1)
	assert.True(t, b.HasArrived())
	assert.Zero(t, b.RemainingDistance())
	assert.Zero(t, b.Velocity().Len())
}

func TestBodyClampsToArena(t *testing.T) {
	b := NewBody(geom.Vec3{}, 0, 10)
	b.SetSpeed(100)
	b.RequestMove(geom.V(50, 0, -50))
	b.Step(1)
	assert.InDelta(t, 10, b.Position().X, 1e-9)
	assert.InDelta(t, -10, b.Position().Z, 1e-9)
}

func TestBodyStopAndFace(t *testing.T) {
	b := NewBody(geom.Vec3{}, 0, 10)
	b.SetSpeed(1)
	b.RequestMove(geom.V(0, 0, 5))
	b.Stop()
	b.Step(1)
	assert.Equal(t, geom.Vec3{}, b.Position())
	assert.True(t, b.HasArrived())

	b.RequestFaceDirection(geom.V(-1, 4, 0))
	assert.InDelta(t, 270, b.Forward().Yaw(), 1e-9)
	b.RequestFaceDirection(geom.Vec3{})
	assert.InDelta(t, 270, b.Forward().Yaw(), 1e-9)
}

func TestCanSee(t *testing.T) {
	from := geom.Vec3{}
	fwd := geom.V(0, 0, 1)
	assert.True(t, canSee(from, fwd, geom.V(0, 0, 40), 50, 120, false))
	assert.False(t, canSee(from, fwd, geom.V(0, 0, 60), 50, 120, false))
	assert.True(t, canSee(from, fwd, geom.V(0, 0, 60), 50, 120, true), "alert widens range")
	assert.False(t, canSee(from, fwd, geom.V(0, 0, -10), 50, 120, false), "behind")
	assert.True(t, canSee(from, fwd, geom.V(0, 0, -10), 50, 120, true), "alert sees all around")
	assert.True(t, canSee(from, fwd, geom.V(10, 0, 10), 50, 120, false), "45 degrees off axis")
	assert.False(t, canSee(from, fwd, geom.V(10, 0, 1), 50, 120, false), "outside the cone")
}
