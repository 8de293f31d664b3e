package particles

import (
	"fmt"

	"github.com/Hengle/DeferredShading/dsrt/rt/core"
	"github.com/Hengle/DeferredShading/dsrt/rt/gpu"
)

// Frame is the simulator input for one world update.
type Frame struct {
	DeltaTime float32
	Snapshot  core.Snapshot
}

// Simulator steps every particle set of a world. Implementations are picked
// once, when the world is constructed.
type Simulator interface {
	OnEnable(w *World) error
	Start(w *World) error
	Update(w *World, f Frame) error
	OnDisable(w *World)
}

func NewSimulator(cfg WorldConfig) Simulator {
	if cfg.Backend == BackendCPU {
		return NewCPUSimulator()
	}
	return NewGPUSimulator(cfg.Capacities, cfg.CubeHalfSize)
}

// GPUSimulator dispatches the kernel pipeline for each set on the frame
// command stream.
type GPUSimulator struct {
	caps     gpu.PoolCapacities
	cubeHalf float32
	pool     *gpu.BufferPool
	kernels  *KernelSet
	pipeline *Pipeline
	cube     gpu.Generation[gpu.Buffer]
}

func NewGPUSimulator(caps gpu.PoolCapacities, cubeHalf float32) *GPUSimulator {
	return &GPUSimulator{caps: caps, cubeHalf: cubeHalf}
}

func (s *GPUSimulator) OnEnable(w *World) error {
	if w.dev == nil || w.cs == nil {
		return ErrNoDevice
	}
	pool, err := gpu.NewBufferPool(w.dev, s.caps, w.log)
	if err != nil {
		return err
	}
	s.pool = pool

	verts := core.CubeVertices(s.cubeHalf)
	cube, err := w.dev.CreateBuffer("cube_vertices", len(verts), core.Vertex{}.Stride())
	if err != nil {
		s.pool.Release()
		return fmt.Errorf("cube_vertices: %w: %w", gpu.ErrAllocation, err)
	}
	s.cube.Replace(cube)
	w.dev.WriteBuffer(cube, core.EncodeRecords(verts))
	return nil
}

func (s *GPUSimulator) Start(w *World) error {
	kernels, err := LoadKernels(w.cs)
	if err != nil {
		return err
	}
	s.kernels = kernels
	s.pipeline = NewPipeline(w.dev, w.cs, kernels)
	return nil
}

func (s *GPUSimulator) Update(w *World, f Frame) error {
	if err := s.pool.Sync(f.Snapshot); err != nil {
		return fmt.Errorf("collider sync: %w", err)
	}

	collide := w.gbufferCollisionReady()
	if w.NeedsGBufferCopy() && !collide {
		w.log.Debugf("particles: gbuffer copy not ready, gbuffer collision skipped")
	}
	fs := FrameState{
		DeltaTime:        f.DeltaTime,
		ViewProj:         w.viewProj,
		RTSize:           w.rtSize,
		Counts:           s.pool.Counts(),
		Pool:             s.pool,
		Copy:             w.copy,
		GBufferCollision: collide,
	}
	for _, set := range w.sets {
		if err := set.ensureDevice(w.dev); err != nil {
			return err
		}
		if err := s.pipeline.Step(set, fs); err != nil {
			return err
		}
	}
	return nil
}

func (s *GPUSimulator) OnDisable(w *World) {
	if s.pool != nil {
		s.pool.Release()
		s.pool = nil
	}
	s.cube.Release()
}

// Pool exposes the shared collider and force buffers.
func (s *GPUSimulator) Pool() *gpu.BufferPool { return s.pool }

// CubeVertices is the 36 vertex mesh drawers instance per particle.
func (s *GPUSimulator) CubeVertices() gpu.Buffer { return s.cube.Handle() }

func (s *GPUSimulator) Dispatches() int {
	if s.pipeline == nil {
		return 0
	}
	return s.pipeline.Dispatches()
}
