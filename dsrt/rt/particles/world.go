package particles

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Hengle/DeferredShading/dsrt/rt/core"
	"github.com/Hengle/DeferredShading/dsrt/rt/gpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

var (
	ErrNotStarted = errors.New("particles: world not started")
	ErrNoDevice   = errors.New("particles: simulator requires a device and compute backend")
)

type Backend int

const (
	BackendGPU Backend = iota
	BackendCPU
)

func (b Backend) String() string {
	if b == BackendCPU {
		return "cpu"
	}
	return "gpu"
}

type WorldConfig struct {
	Backend      Backend
	Capacities   gpu.PoolCapacities
	CubeHalfSize float32
}

func DefaultWorldConfig() WorldConfig {
	return WorldConfig{
		Backend:      BackendGPU,
		Capacities:   gpu.DefaultPoolCapacities(),
		CubeHalfSize: 0.05,
	}
}

// Backends bundles the device-side collaborators of a world. Any of them may
// be nil for a CPU world.
type Backends struct {
	Device  gpu.Device
	Compute gpu.ComputeBackend
	Targets gpu.TargetBackend
}

// GBufferSource is the renderer-owned G-buffer the world copies from.
type GBufferSource interface {
	Current() *gpu.RenderTargetSet
	Size() (int, int)
	Format() gpu.Format
	Allocated() bool
	BindGBuffer()
}

// World is the particle simulation context: the collider registry, every
// particle set and the simulator strategy stepping them.
type World struct {
	Registry *Registry
	Camera   core.Camera

	cfg     WorldConfig
	dev     gpu.Device
	cs      gpu.ComputeBackend
	targets gpu.TargetBackend
	sim     Simulator
	gbuffer GBufferSource
	copy    *gpu.GBufferCopy
	log     core.Logger

	sets     []*ParticleSet
	viewProj mgl32.Mat4
	rtSize   [2]float32
	frame    uint64
	started  bool
	err      error
}

func NewWorld(cfg WorldConfig, b Backends, log core.Logger) *World {
	w := &World{
		Registry: NewRegistry(),
		cfg:      cfg,
		dev:      b.Device,
		cs:       b.Compute,
		targets:  b.Targets,
		log:      core.OrNop(log),
	}
	w.sim = NewSimulator(cfg)
	if b.Targets != nil {
		w.copy = gpu.NewGBufferCopy(b.Targets, gpu.FormatRGBA16Float, w.log)
	}
	return w
}

// AttachGBuffer connects the renderer G-buffer used for collision copies and
// the render-target size.
func (w *World) AttachGBuffer(src GBufferSource) {
	w.gbuffer = src
}

// Start enables the simulator and resolves its resources.
func (w *World) Start() error {
	if w.started {
		return nil
	}
	if err := w.sim.OnEnable(w); err != nil {
		return fmt.Errorf("%s simulator enable: %w", w.cfg.Backend, err)
	}
	if err := w.sim.Start(w); err != nil {
		w.sim.OnDisable(w)
		return fmt.Errorf("%s simulator start: %w", w.cfg.Backend, err)
	}
	w.started = true
	w.log.Infof("particles: %s simulator started", w.cfg.Backend)
	return nil
}

func (w *World) AddSet(cfg SetConfig) (*ParticleSet, error) {
	s, err := newParticleSet(cfg)
	if err != nil {
		return nil, err
	}
	w.sets = append(w.sets, s)
	w.log.Debugf("particles: added set %s (%s, %d max)", cfg.Label, cfg.Interaction, cfg.MaxParticles)
	return s, nil
}

func (w *World) RemoveSet(id uuid.UUID) bool {
	i := slices.IndexFunc(w.sets, func(s *ParticleSet) bool { return s.ID == id })
	if i < 0 {
		return false
	}
	w.sets[i].release()
	w.sets = slices.Delete(w.sets, i, i+1)
	return true
}

func (w *World) Sets() []*ParticleSet { return w.sets }

// Update advances the simulation by dt seconds. Collider and force buffers
// are synced before any kernel reads them and one-frame forces are dropped
// afterwards.
func (w *World) Update(dt float32) error {
	if !w.started {
		return ErrNotStarted
	}
	w.frame++
	w.updateCamera()

	snap := w.Registry.Snapshot()
	err := w.sim.Update(w, Frame{DeltaTime: dt, Snapshot: snap})
	w.Registry.ConsumeForces()
	return err
}

func (w *World) updateCamera() {
	if w.Camera == nil {
		return
	}
	w.viewProj = core.AdaptedViewProj(w.Camera)
	if w.gbuffer != nil && w.gbuffer.Allocated() {
		width, height := w.gbuffer.Size()
		w.rtSize = [2]float32{float32(width), float32(height)}
	}
}

// NeedsGBufferCopy reports whether any set opted into G-buffer collision.
func (w *World) NeedsGBufferCopy() bool {
	return slices.ContainsFunc(w.sets, func(s *ParticleSet) bool { return s.Config.GBufferCollision })
}

func (w *World) gbufferCollisionReady() bool {
	return w.NeedsGBufferCopy() && w.copy != nil && w.copy.Ready()
}

// DepthPrePass runs before the G-buffer is filled.
func (w *World) DepthPrePass() {
	for _, s := range w.sets {
		if s.Drawer != nil {
			s.Drawer.DepthPrePass(s)
		}
	}
}

// GBufferPass copies the G-buffer for collision when needed, then lets
// drawers write their particles into it.
func (w *World) GBufferPass() {
	if w.NeedsGBufferCopy() {
		w.copyGBuffer()
	}
	for _, s := range w.sets {
		if s.Drawer != nil {
			s.Drawer.GBufferPass(s)
		}
	}
}

func (w *World) TransparentPass() {
	for _, s := range w.sets {
		if s.Drawer != nil {
			s.Drawer.TransparentPass(s)
		}
	}
}

func (w *World) copyGBuffer() {
	switch {
	case w.copy == nil:
		w.log.Debugf("particles: no render targets, gbuffer copy skipped")
		return
	case w.gbuffer == nil || !w.gbuffer.Allocated():
		w.log.Debugf("particles: no gbuffer attached, copy skipped")
		return
	case w.Camera == nil:
		w.log.Debugf("particles: no camera, gbuffer copy skipped")
		return
	}
	width, height := w.gbuffer.Size()
	if _, err := w.copy.EnsureCapacity(width, height, w.gbuffer.Format()); err != nil {
		w.fail(err)
		return
	}
	if w.copy.Copy(w.frame, w.gbuffer.Current()) {
		w.gbuffer.BindGBuffer()
	}
}

// fail records the first callback error of a frame; callbacks cannot
// return errors themselves.
func (w *World) fail(err error) {
	w.log.Errorf("particles: %v", err)
	if w.err == nil {
		w.err = err
	}
}

// TakeError returns and clears the error recorded by a render callback.
func (w *World) TakeError() error {
	err := w.err
	w.err = nil
	return err
}

func (w *World) ViewProj() mgl32.Mat4          { return w.viewProj }
func (w *World) RTSize() [2]float32            { return w.rtSize }
func (w *World) Frame() uint64                 { return w.frame }
func (w *World) GBufferCopy() *gpu.GBufferCopy { return w.copy }
func (w *World) Simulator() Simulator          { return w.sim }

// Close disables the simulator and releases every device resource.
func (w *World) Close() {
	if w.started {
		w.sim.OnDisable(w)
		w.started = false
	}
	for _, s := range w.sets {
		s.release()
	}
	if w.copy != nil {
		w.copy.Release()
	}
}
