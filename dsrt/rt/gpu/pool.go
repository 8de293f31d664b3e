package gpu

import (
	"errors"

	"github.com/Hengle/DeferredShading/dsrt/rt/core"
)

type PoolCapacities struct {
	Spheres  int
	Capsules int
	Boxes    int
	Forces   int
}

func DefaultPoolCapacities() PoolCapacities {
	return PoolCapacities{Spheres: 256, Capsules: 256, Boxes: 256, Forces: 128}
}

// BufferPool holds the shared collider and force buffers every particle set
// reads from.
type BufferPool struct {
	Spheres  *GrowableBuffer[core.SphereCollider]
	Capsules *GrowableBuffer[core.CapsuleCollider]
	Boxes    *GrowableBuffer[core.BoxCollider]
	Forces   *GrowableBuffer[core.ForceRecord]

	log core.Logger
}

func NewBufferPool(dev Device, caps PoolCapacities, log core.Logger) (*BufferPool, error) {
	p := &BufferPool{log: core.OrNop(log)}
	var err error
	if p.Spheres, err = NewGrowableBuffer[core.SphereCollider](dev, "sphere_colliders", caps.Spheres); err != nil {
		return nil, err
	}
	if p.Capsules, err = NewGrowableBuffer[core.CapsuleCollider](dev, "capsule_colliders", caps.Capsules); err != nil {
		p.Release()
		return nil, err
	}
	if p.Boxes, err = NewGrowableBuffer[core.BoxCollider](dev, "box_colliders", caps.Boxes); err != nil {
		p.Release()
		return nil, err
	}
	if p.Forces, err = NewGrowableBuffer[core.ForceRecord](dev, "forces", caps.Forces); err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

// Sync uploads a registry snapshot, growing any buffer that is too small.
func (p *BufferPool) Sync(s core.Snapshot) error {
	var errs []error
	if resized, err := p.Spheres.Sync(s.Spheres); err != nil {
		errs = append(errs, err)
	} else if resized {
		p.grown(p.Spheres.Label(), p.Spheres.Capacity())
	}
	if resized, err := p.Capsules.Sync(s.Capsules); err != nil {
		errs = append(errs, err)
	} else if resized {
		p.grown(p.Capsules.Label(), p.Capsules.Capacity())
	}
	if resized, err := p.Boxes.Sync(s.Boxes); err != nil {
		errs = append(errs, err)
	} else if resized {
		p.grown(p.Boxes.Label(), p.Boxes.Capacity())
	}
	if resized, err := p.Forces.Sync(s.Forces); err != nil {
		errs = append(errs, err)
	} else if resized {
		p.grown(p.Forces.Label(), p.Forces.Capacity())
	}
	return errors.Join(errs...)
}

func (p *BufferPool) grown(label string, capacity int) {
	p.log.Debugf("buffer pool: %s grown to %d", label, capacity)
}

func (p *BufferPool) Counts() core.ColliderCounts {
	return core.ColliderCounts{
		Spheres:  p.Spheres.Count(),
		Capsules: p.Capsules.Count(),
		Boxes:    p.Boxes.Count(),
		Forces:   p.Forces.Count(),
	}
}

func (p *BufferPool) Release() {
	if p.Spheres != nil {
		p.Spheres.Release()
	}
	if p.Capsules != nil {
		p.Capsules.Release()
	}
	if p.Boxes != nil {
		p.Boxes.Release()
	}
	if p.Forces != nil {
		p.Forces.Release()
	}
}
