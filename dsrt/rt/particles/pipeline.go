package particles

import (
	"fmt"
	"strings"

	"github.com/Hengle/DeferredShading/dsrt/rt/core"
	"github.com/Hengle/DeferredShading/dsrt/rt/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// FrameState is the shared per-frame input of every set's kernel sequence.
type FrameState struct {
	DeltaTime float32
	ViewProj  mgl32.Mat4
	RTSize    [2]float32
	Counts    core.ColliderCounts
	Pool      *gpu.BufferPool
	Copy      *gpu.GBufferCopy
	// GBufferCollision is false for every set when no set opted in or the
	// copy surfaces do not exist yet.
	GBufferCollision bool
}

// Pipeline issues the fixed kernel sequence of one particle set on the
// frame command stream.
type Pipeline struct {
	dev     gpu.Device
	cs      gpu.ComputeBackend
	kernels *KernelSet

	dispatches int
}

func NewPipeline(dev gpu.Device, cs gpu.ComputeBackend, kernels *KernelSet) *Pipeline {
	return &Pipeline{dev: dev, cs: cs, kernels: kernels}
}

// Step uploads pending spawns and the parameter block, then runs
// AddParticles, Prepare, the hash grid, the interaction model, the three
// collider passes, the optional G-buffer collision, forces and integration.
func (p *Pipeline) Step(set *ParticleSet, f FrameState) error {
	k := p.kernels
	cfg := set.Config

	spawns := set.takePending()
	if _, err := set.spawn.Sync(spawns); err != nil {
		return fmt.Errorf("particle set %s spawn upload: %w", cfg.Label, err)
	}
	p.dev.WriteBuffer(set.params.Handle(), set.simParams(f, len(spawns)).AppendBytes(nil))

	blocks := Groups(cfg.MaxParticles)
	dim := cfg.Dimension

	p.dispatch(k.AddParticles, set, f, Groups(len(spawns)))
	p.dispatch(k.Prepare, set, f, blocks)

	p.dispatch(k.GridHash[dim], set, f, blocks)
	p.cs.Barrier()
	p.dispatch(k.GridCells[dim], set, f, Groups(cfg.GridCells))

	switch cfg.Interaction {
	case InteractionSPH:
		p.dispatch(k.SPHDensity[dim], set, f, blocks)
		p.cs.Barrier()
		p.dispatch(k.SPHForce[dim], set, f, blocks)
	default:
		p.dispatch(k.Impulse[dim], set, f, blocks)
	}

	p.dispatch(k.SphereColliders, set, f, blocks)
	p.dispatch(k.CapsuleColliders, set, f, blocks)
	p.dispatch(k.BoxColliders, set, f, blocks)

	if f.GBufferCollision && cfg.GBufferCollision {
		p.dispatch(k.GBufferCollision, set, f, blocks)
	}

	p.dispatch(k.Forces, set, f, blocks)
	p.dispatch(k.Integrate, set, f, blocks)
	return nil
}

// dispatch rebinds every resource the kernel declares from the current
// handles, then issues it.
func (p *Pipeline) dispatch(k gpu.Kernel, set *ParticleSet, f FrameState, groups uint32) {
	for _, name := range kernelBindings[strings.TrimSuffix(k.Name(), kernel2DSuffix)] {
		p.bind(k, name, set, f)
	}
	p.cs.Dispatch(k, groups, 1, 1)
	p.dispatches++
}

func (p *Pipeline) bind(k gpu.Kernel, name string, set *ParticleSet, f FrameState) {
	switch name {
	case BindingParams:
		p.cs.SetBuffer(k, name, set.params.Handle())
	case BindingParticles:
		p.cs.SetBuffer(k, name, set.particles.Handle())
	case BindingSpawn:
		p.cs.SetBuffer(k, name, set.spawn.Handle())
	case BindingSortKeys:
		p.cs.SetBuffer(k, name, set.sortKeys.Handle())
	case BindingCells:
		p.cs.SetBuffer(k, name, set.cells.Handle())
	case BindingSphereColliders:
		p.cs.SetBuffer(k, name, f.Pool.Spheres.Handle())
	case BindingCapsuleColliders:
		p.cs.SetBuffer(k, name, f.Pool.Capsules.Handle())
	case BindingBoxColliders:
		p.cs.SetBuffer(k, name, f.Pool.Boxes.Handle())
	case BindingForces:
		p.cs.SetBuffer(k, name, f.Pool.Forces.Handle())
	case BindingGBufferNormal:
		p.cs.SetTexture(k, name, f.Copy.Normal())
	case BindingGBufferPosition:
		p.cs.SetTexture(k, name, f.Copy.Position())
	}
}

// Dispatches counts kernel dispatches issued since creation.
func (p *Pipeline) Dispatches() int { return p.dispatches }
