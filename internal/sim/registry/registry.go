// Package registry tracks contested world objects and who has claimed them.
//
// A Registry is owned by the host simulation and handed to every agent. Agents are ticked
// one at a time, so there is no locking; check-and-reserve in NearestUnreserved is a
// single step from the caller's point of view.
package registry

import (
	"fmt"

	"cavewarden.ai/internal/sim/geom"
)

type Kind uint8

const (
	HeavyObject Kind = iota + 1
	ForagePoint
)

func (k Kind) String() string {
	switch k {
	case HeavyObject:
		return "heavy_object"
	case ForagePoint:
		return "forage_point"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

type Handle uint32

type Item struct {
	Handle   Handle    `json:"handle"`
	Kind     Kind      `json:"kind"`
	Position geom.Vec3 `json:"position"`
}

// Registry keeps one list per kind plus a reservation set. Released and consumed are
// distinct: a released item stays listed, a consumed one is gone.
type Registry struct {
	lists    map[Kind][]Item
	reserved map[Handle]string
	next     Handle
}

func New() *Registry {
	return &Registry{
		lists:    map[Kind][]Item{},
		reserved: map[Handle]string{},
	}
}

func (r *Registry) Add(kind Kind, pos geom.Vec3) Handle {
	r.next++
	r.lists[kind] = append(r.lists[kind], Item{Handle: r.next, Kind: kind, Position: pos})
	return r.next
}

func (r *Registry) List(kind Kind) []Item {
	src := r.lists[kind]
	out := make([]Item, len(src))
	copy(out, src)
	return out
}

func (r *Registry) Count(kind Kind) int { return len(r.lists[kind]) }

func (r *Registry) Get(h Handle) (Item, bool) {
	for _, items := range r.lists {
		for _, it := range items {
			if it.Handle == h {
				return it, true
			}
		}
	}
	return Item{}, false
}

// Nearest ignores reservations. Ties go to the earlier registration.
func (r *Registry) Nearest(kind Kind, from geom.Vec3) (Item, bool) {
	return r.nearest(kind, from, func(Item) bool { return true })
}

// NearestUnreserved finds the closest item not held by another owner and reserves it
// for owner. An item owner already holds is eligible.
func (r *Registry) NearestUnreserved(kind Kind, from geom.Vec3, owner string) (Item, bool) {
	it, ok := r.nearest(kind, from, func(it Item) bool { return r.claimable(it.Handle, owner) })
	if !ok {
		return Item{}, false
	}
	r.reserved[it.Handle] = owner
	return it, true
}

// Available reports whether any item of kind could be claimed by owner.
func (r *Registry) Available(kind Kind, owner string) bool {
	for _, it := range r.lists[kind] {
		if r.claimable(it.Handle, owner) {
			return true
		}
	}
	return false
}

// Reserve is idempotent for the current holder and fails if another owner holds h or h
// is not listed.
func (r *Registry) Reserve(h Handle, owner string) bool {
	if _, ok := r.Get(h); !ok {
		return false
	}
	if !r.claimable(h, owner) {
		return false
	}
	r.reserved[h] = owner
	return true
}

// Release drops owner's reservation on h. The item stays listed.
func (r *Registry) Release(h Handle, owner string) bool {
	cur, ok := r.reserved[h]
	if !ok || cur != owner {
		return false
	}
	delete(r.reserved, h)
	return true
}

// Consume removes h from its list and from the reservation set. It fails if another
// owner holds h.
func (r *Registry) Consume(h Handle, owner string) (Item, bool) {
	if !r.claimable(h, owner) {
		return Item{}, false
	}
	delete(r.reserved, h)
	for kind, items := range r.lists {
		for i, it := range items {
			if it.Handle != h {
				continue
			}
			r.lists[kind] = append(items[:i:i], items[i+1:]...)
			return it, true
		}
	}
	return Item{}, false
}

func (r *Registry) ReservedBy(h Handle) (string, bool) {
	owner, ok := r.reserved[h]
	return owner, ok
}

// ReleaseAll drops every reservation held by owner.
func (r *Registry) ReleaseAll(owner string) int {
	n := 0
	for h, cur := range r.reserved {
		if cur == owner {
			delete(r.reserved, h)
			n++
		}
	}
	return n
}

func (r *Registry) claimable(h Handle, owner string) bool {
	cur, ok := r.reserved[h]
	return !ok || cur == owner
}

func (r *Registry) nearest(kind Kind, from geom.Vec3, ok func(Item) bool) (Item, bool) {
	var best Item
	bestD := -1.0
	for _, it := range r.lists[kind] {
		if !ok(it) {
			continue
		}
		d := it.Position.Sub(from).LenSq()
		if bestD < 0 || d < bestD {
			best, bestD = it, d
		}
	}
	return best, bestD >= 0
}
