package particles

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Hengle/DeferredShading/dsrt/rt/core"
	"github.com/google/uuid"
)

var (
	ErrUnknownHandle = errors.New("particles: unknown handle")
	ErrShapeMismatch = errors.New("particles: collider shape mismatch")
)

// Handle identifies a registered collider or force.
type Handle uuid.UUID

func (h Handle) String() string { return uuid.UUID(h).String() }

type colliderEntry struct {
	handle   Handle
	owner    uint32
	collider core.Collider
}

type forceEntry struct {
	handle Handle
	force  core.ForceRecord
}

// Registry is the world-owned set of live colliders and forces. Snapshots
// list entries in registration order.
type Registry struct {
	colliders []colliderEntry
	forces    []forceEntry
	transient []core.ForceRecord
	nextOwner uint32
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Add(c core.Collider) Handle {
	h := Handle(uuid.New())
	r.colliders = append(r.colliders, colliderEntry{handle: h, owner: r.nextOwner, collider: c})
	r.nextOwner++
	return h
}

// Update replaces the collider behind h. The shape cannot change.
func (r *Registry) Update(h Handle, c core.Collider) error {
	i := r.colliderIndex(h)
	if i < 0 {
		return fmt.Errorf("collider %s: %w", h, ErrUnknownHandle)
	}
	if r.colliders[i].collider.Shape() != c.Shape() {
		return fmt.Errorf("collider %s is a %s, got %s: %w", h, r.colliders[i].collider.Shape(), c.Shape(), ErrShapeMismatch)
	}
	r.colliders[i].collider = c
	return nil
}

// Remove drops a collider or persistent force.
func (r *Registry) Remove(h Handle) bool {
	if i := r.colliderIndex(h); i >= 0 {
		r.colliders = slices.Delete(r.colliders, i, i+1)
		return true
	}
	if i := r.forceIndex(h); i >= 0 {
		r.forces = slices.Delete(r.forces, i, i+1)
		return true
	}
	return false
}

func (r *Registry) AddForce(f core.ForceRecord) Handle {
	h := Handle(uuid.New())
	r.forces = append(r.forces, forceEntry{handle: h, force: f})
	return h
}

func (r *Registry) UpdateForce(h Handle, f core.ForceRecord) error {
	i := r.forceIndex(h)
	if i < 0 {
		return fmt.Errorf("force %s: %w", h, ErrUnknownHandle)
	}
	r.forces[i].force = f
	return nil
}

// ApplyForce queues a force for the next snapshot only.
func (r *Registry) ApplyForce(f core.ForceRecord) {
	r.transient = append(r.transient, f)
}

// ConsumeForces drops one-frame forces once the simulation has read them.
func (r *Registry) ConsumeForces() {
	r.transient = r.transient[:0]
}

// Snapshot rebuilds the per-type record lists from the live entries.
func (r *Registry) Snapshot() core.Snapshot {
	var s core.Snapshot
	for _, e := range r.colliders {
		switch c := e.collider.(type) {
		case core.SphereCollider:
			c.Info.Owner = e.owner
			s.Spheres = append(s.Spheres, c)
		case core.CapsuleCollider:
			c.Info.Owner = e.owner
			s.Capsules = append(s.Capsules, c)
		case core.BoxCollider:
			c.Info.Owner = e.owner
			s.Boxes = append(s.Boxes, c)
		}
	}
	s.Forces = make([]core.ForceRecord, 0, len(r.forces)+len(r.transient))
	for _, f := range r.forces {
		s.Forces = append(s.Forces, f.force)
	}
	s.Forces = append(s.Forces, r.transient...)
	return s
}

func (r *Registry) Len() int {
	return len(r.colliders)
}

func (r *Registry) colliderIndex(h Handle) int {
	return slices.IndexFunc(r.colliders, func(e colliderEntry) bool { return e.handle == h })
}

func (r *Registry) forceIndex(h Handle) int {
	return slices.IndexFunc(r.forces, func(e forceEntry) bool { return e.handle == h })
}
