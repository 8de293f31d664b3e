package deferredshading

import (
	"fmt"

	"github.com/Hengle/DeferredShading/dsrt/rt/core"
	"github.com/Hengle/DeferredShading/dsrt/rt/gpu"
	"github.com/Hengle/DeferredShading/dsrt/rt/stats"
)

// ScenePasses draws the scene itself. The renderer only orders them around
// the G-buffer and composite bookkeeping.
type ScenePasses interface {
	ClearGBuffer()
	DrawOpaque()
	RenderLights()
	Present(front gpu.Surface)
}

// Renderer runs the deferred frame: G-buffer fill, lighting into the
// composite buffer and the callback stages in between.
type Renderer struct {
	Name            string
	ResolutionScale float32
	GBuffer         *gpu.GBufferManager
	Callbacks       *CallbackRegistry
	Camera          core.Camera
	Passes          ScenePasses

	logger   Logger
	profiler *stats.Profiler
	frames   uint64
	skipped  uint64
}

func NewRenderer(targets gpu.TargetBackend, format gpu.Format, logger Logger) *Renderer {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Renderer{
		Name:            "deferred",
		ResolutionScale: 1,
		GBuffer:         gpu.NewGBufferManager(targets, format, logger),
		Callbacks:       NewCallbackRegistry(),
		logger:          logger,
		profiler:        stats.NewProfiler(),
	}
}

// InternalResolution is the camera pixel size scaled by ResolutionScale.
func (r *Renderer) InternalResolution() (int, int) {
	if r.Camera == nil {
		return 0, 0
	}
	w, h := r.Camera.PixelSize()
	scale := r.ResolutionScale
	if scale <= 0 {
		scale = 1
	}
	return max(1, int(float32(w)*scale)), max(1, int(float32(h)*scale))
}

func (r *Renderer) RenderFrame() error {
	defer r.profiler.Scope("Render")()

	if r.Camera != nil {
		w, h := r.InternalResolution()
		if _, err := r.GBuffer.EnsureCapacity(w, h); err != nil {
			return fmt.Errorf("render frame %d: %w", r.frames+1, err)
		}
		r.GBuffer.ComputeTemporalMatrices(r.Camera)
	}
	if !r.GBuffer.Allocated() {
		r.skipped++
		r.logger.Debugf("renderer: no camera and no render targets, frame skipped")
		return nil
	}
	r.frames++

	g := r.GBuffer
	g.BeginFrame()
	if r.Passes != nil {
		r.Passes.ClearGBuffer()
	}
	r.Callbacks.Run(StagePreGBuffer, nil)

	if r.Passes != nil {
		r.Passes.DrawOpaque()
	}
	// Callbacks may bind their own targets; the G-buffer goes back on after each.
	r.Callbacks.Run(StagePostGBuffer, g.BindGBuffer)

	g.ClearComposite()
	r.Callbacks.Run(StagePreLighting, nil)
	if r.Passes != nil {
		r.Passes.RenderLights()
	}
	r.Callbacks.Run(StagePostLighting, nil)
	r.Callbacks.Run(StageTransparent, nil)
	r.Callbacks.Run(StagePostEffect, nil)
	r.Callbacks.Run(StageHUD, nil)

	if r.Passes != nil {
		r.Passes.Present(g.Composite().Front())
	}
	return nil
}

func (r *Renderer) Frames() uint64            { return r.frames }
func (r *Renderer) Skipped() uint64           { return r.skipped }
func (r *Renderer) Profiler() *stats.Profiler { return r.profiler }

func (r *Renderer) Release() {
	r.GBuffer.Release()
}
