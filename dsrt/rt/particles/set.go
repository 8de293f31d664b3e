package particles

import (
	"errors"
	"fmt"

	"github.com/Hengle/DeferredShading/dsrt/rt/core"
	"github.com/Hengle/DeferredShading/dsrt/rt/gpu"
	"github.com/google/uuid"
)

var ErrInvalidSet = errors.New("particles: invalid set config")

type Interaction int

const (
	InteractionImpulse Interaction = iota
	InteractionSPH
)

func (i Interaction) String() string {
	if i == InteractionSPH {
		return "sph"
	}
	return "impulse"
}

type Dimension int

const (
	Dim3D Dimension = iota
	Dim2D
)

type SetConfig struct {
	Label            string
	MaxParticles     int
	Interaction      Interaction
	Dimension        Dimension
	GBufferCollision bool

	ParticleRadius    float32
	PressureStiffness float32
	RestDensity       float32
	Viscosity         float32
	Damping           float32 // per second
	WallStiffness     float32
	GridCellSize      float32
	GridCells         int
}

func DefaultSetConfig() SetConfig {
	return SetConfig{
		Label:             "particles",
		MaxParticles:      32768,
		Interaction:       InteractionImpulse,
		Dimension:         Dim3D,
		ParticleRadius:    0.05,
		PressureStiffness: 200,
		RestDensity:       1000,
		Viscosity:         0.1,
		Damping:           0.6,
		WallStiffness:     3000,
		GridCellSize:      0.2,
		GridCells:         65536,
	}
}

func (c SetConfig) validate() error {
	if c.MaxParticles <= 0 {
		return fmt.Errorf("%s: max particles %d: %w", c.Label, c.MaxParticles, ErrInvalidSet)
	}
	if c.GridCells <= 0 {
		return fmt.Errorf("%s: grid cells %d: %w", c.Label, c.GridCells, ErrInvalidSet)
	}
	if c.Interaction != InteractionImpulse && c.Interaction != InteractionSPH {
		return fmt.Errorf("%s: interaction %d: %w", c.Label, c.Interaction, ErrInvalidSet)
	}
	if c.Dimension != Dim3D && c.Dimension != Dim2D {
		return fmt.Errorf("%s: dimension %d: %w", c.Label, c.Dimension, ErrInvalidSet)
	}
	return nil
}

// Drawer renders a particle set from the renderer's callback stages.
type Drawer interface {
	DepthPrePass(s *ParticleSet)
	GBufferPass(s *ParticleSet)
	TransparentPass(s *ParticleSet)
}

// ParticleSet is one simulated particle system. Its device buffers are
// created lazily by the GPU simulator before the first dispatch.
type ParticleSet struct {
	ID     uuid.UUID
	Config SetConfig
	Drawer Drawer

	particles gpu.Generation[gpu.Buffer]
	sortKeys  gpu.Generation[gpu.Buffer]
	cells     gpu.Generation[gpu.Buffer]
	params    gpu.Generation[gpu.Buffer]
	spawn     *gpu.GrowableBuffer[core.ParticleSpawn]

	pending     []core.ParticleSpawn
	lastSpawned int
}

func newParticleSet(cfg SetConfig) (*ParticleSet, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &ParticleSet{ID: uuid.New(), Config: cfg}, nil
}

// Emit queues spawns for the next AddParticles dispatch. Requests beyond
// the set capacity within one frame are dropped; the number accepted is
// returned.
func (s *ParticleSet) Emit(spawns ...core.ParticleSpawn) int {
	room := s.Config.MaxParticles - len(s.pending)
	if room <= 0 {
		return 0
	}
	if len(spawns) > room {
		spawns = spawns[:room]
	}
	s.pending = append(s.pending, spawns...)
	return len(spawns)
}

func (s *ParticleSet) Pending() int     { return len(s.pending) }
func (s *ParticleSet) LastSpawned() int { return s.lastSpawned }

// takePending hands the queued spawns to the simulator and resets the queue.
func (s *ParticleSet) takePending() []core.ParticleSpawn {
	out := s.pending
	s.pending = nil
	s.lastSpawned = len(out)
	return out
}

// ParticleBuffer returns the live particle buffer for drawers.
func (s *ParticleSet) ParticleBuffer() gpu.Buffer { return s.particles.Handle() }

func (s *ParticleSet) deviceReady() bool {
	return s.particles.Live() && s.params.Live() && s.spawn != nil
}

func (s *ParticleSet) ensureDevice(dev gpu.Device) error {
	if s.deviceReady() {
		return nil
	}
	create := func(g *gpu.Generation[gpu.Buffer], label string, count, stride int) error {
		b, err := dev.CreateBuffer(s.Config.Label+"."+label, count, stride)
		if err != nil {
			return fmt.Errorf("particle set %s %s: %w: %w", s.Config.Label, label, gpu.ErrAllocation, err)
		}
		g.Replace(b)
		return nil
	}
	n := s.Config.MaxParticles
	if err := create(&s.particles, BindingParticles, n, core.Particle{}.Stride()); err != nil {
		return err
	}
	if err := create(&s.sortKeys, BindingSortKeys, n, 8); err != nil {
		s.release()
		return err
	}
	if err := create(&s.cells, BindingCells, s.Config.GridCells, 8); err != nil {
		s.release()
		return err
	}
	if err := create(&s.params, BindingParams, 1, core.SimParams{}.Stride()); err != nil {
		s.release()
		return err
	}
	spawn, err := gpu.NewGrowableBuffer[core.ParticleSpawn](dev, s.Config.Label+"."+BindingSpawn, 256)
	if err != nil {
		s.release()
		return err
	}
	s.spawn = spawn
	// Dead particles are encoded with a zero lifetime.
	dev.WriteBuffer(s.particles.Handle(), make([]byte, n*core.Particle{}.Stride()))
	return nil
}

func (s *ParticleSet) simParams(f FrameState, spawnCount int) core.SimParams {
	c := s.Config
	return core.SimParams{
		ViewProj:          f.ViewProj,
		RTSize:            f.RTSize,
		DeltaTime:         f.DeltaTime,
		MaxParticles:      uint32(c.MaxParticles),
		SpawnCount:        uint32(spawnCount),
		Counts:            f.Counts,
		ParticleRadius:    c.ParticleRadius,
		PressureStiffness: c.PressureStiffness,
		RestDensity:       c.RestDensity,
		Viscosity:         c.Viscosity,
		Damping:           c.Damping,
		WallStiffness:     c.WallStiffness,
		GridCellSize:      c.GridCellSize,
		GridCells:         uint32(c.GridCells),
		Dimension:         uint32(c.Dimension),
	}
}

func (s *ParticleSet) release() {
	s.particles.Release()
	s.sortKeys.Release()
	s.cells.Release()
	s.params.Release()
	if s.spawn != nil {
		s.spawn.Release()
		s.spawn = nil
	}
}
