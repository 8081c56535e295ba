package registry

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cavewarden.ai/internal/sim/geom"
)

func TestNearestUnreservedSkipsOtherOwners(t *testing.T) {
	r := New()
	near := r.Add(ForagePoint, geom.V(1, 0, 0))
	far := r.Add(ForagePoint, geom.V(10, 0, 0))

	it, ok := r.NearestUnreserved(ForagePoint, geom.Vec3{}, "a")
	require.True(t, ok)
	assert.Equal(t, near, it.Handle)

	it, ok = r.NearestUnreserved(ForagePoint, geom.Vec3{}, "b")
	require.True(t, ok)
	assert.Equal(t, far, it.Handle)

	_, ok = r.NearestUnreserved(ForagePoint, geom.Vec3{}, "c")
	assert.False(t, ok)
	assert.False(t, r.Available(ForagePoint, "c"))
	assert.True(t, r.Available(ForagePoint, "a"))

	// Nearest ignores reservations.
	it, ok = r.Nearest(ForagePoint, geom.Vec3{})
	require.True(t, ok)
	assert.Equal(t, near, it.Handle)
}

func TestReserveIdempotentAndExclusive(t *testing.T) {
	r := New()
	h := r.Add(HeavyObject, geom.Vec3{})
	require.True(t, r.Reserve(h, "a"))
	require.True(t, r.Reserve(h, "a"))
	require.False(t, r.Reserve(h, "b"))
	require.False(t, r.Release(h, "b"))
	require.True(t, r.Release(h, "a"))
	require.True(t, r.Reserve(h, "b"))
	require.False(t, r.Reserve(Handle(999), "a"))
}

func TestReleaseVersusConsume(t *testing.T) {
	r := New()
	h := r.Add(ForagePoint, geom.Vec3{})
	_, ok := r.NearestUnreserved(ForagePoint, geom.Vec3{}, "a")
	require.True(t, ok)

	require.True(t, r.Release(h, "a"))
	_, held := r.ReservedBy(h)
	assert.False(t, held)
	assert.Len(t, r.List(ForagePoint), 1)

	_, ok = r.NearestUnreserved(ForagePoint, geom.Vec3{}, "a")
	require.True(t, ok)
	it, ok := r.Consume(h, "a")
	require.True(t, ok)
	assert.Equal(t, h, it.Handle)
	_, held = r.ReservedBy(h)
	assert.False(t, held)
	assert.Empty(t, r.List(ForagePoint))
	_, ok = r.Consume(h, "a")
	assert.False(t, ok)
}

func TestConsumeRespectsOtherOwnersReservation(t *testing.T) {
	r := New()
	h := r.Add(HeavyObject, geom.Vec3{})
	require.True(t, r.Reserve(h, "a"))

	_, ok := r.Consume(h, "b")
	assert.False(t, ok)
	owner, held := r.ReservedBy(h)
	assert.True(t, held)
	assert.Equal(t, "a", owner)
	assert.Len(t, r.List(HeavyObject), 1)

	it, ok := r.Consume(h, "a")
	require.True(t, ok)
	assert.Equal(t, h, it.Handle)
	assert.Empty(t, r.List(HeavyObject))

	// An unreserved item can be taken by anyone.
	h2 := r.Add(HeavyObject, geom.Vec3{})
	_, ok = r.Consume(h2, "b")
	assert.True(t, ok)
}

func TestReservationExclusivityUnderRandomOps(t *testing.T) {
	owners := []string{"a", "b", "c"}
	for seed := int64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		r := New()
		for i := 0; i < 5; i++ {
			r.Add(ForagePoint, geom.V(rng.Float64()*10, 0, rng.Float64()*10))
		}
		held := map[Handle]string{}
		for step := 0; step < 300; step++ {
			owner := owners[rng.Intn(len(owners))]
			switch rng.Intn(4) {
			case 0:
				it, ok := r.NearestUnreserved(ForagePoint, geom.V(rng.Float64()*10, 0, 0), owner)
				if !ok {
					continue
				}
				if prev, taken := held[it.Handle]; taken {
					require.Equal(t, owner, prev, "seed=%d step=%d handle %d double-claimed", seed, step, it.Handle)
				}
				held[it.Handle] = owner
			case 1:
				for h, o := range held {
					if o == owner {
						require.True(t, r.Release(h, owner))
						delete(held, h)
						break
					}
				}
			case 2:
				for h, o := range held {
					if o == owner {
						_, ok := r.Consume(h, owner)
						require.True(t, ok)
						delete(held, h)
						break
					}
				}
			case 3:
				if rng.Intn(5) == 0 {
					r.Add(ForagePoint, geom.V(rng.Float64()*10, 0, 0))
				}
			}
		}
	}
}

func TestReleaseAll(t *testing.T) {
	r := New()
	a := r.Add(HeavyObject, geom.Vec3{})
	b := r.Add(ForagePoint, geom.Vec3{})
	require.True(t, r.Reserve(a, "x"))
	require.True(t, r.Reserve(b, "x"))
	assert.Equal(t, 2, r.ReleaseAll("x"))
	assert.Zero(t, r.ReleaseAll("x"))
	assert.Equal(t, 1, r.Count(HeavyObject))
}
