package deferredshading

import (
	"fmt"

	"github.com/Hengle/DeferredShading/dsrt/rt/particles"
)

// ParticleModule creates the particle world and hooks its draw passes into
// the renderer stages.
type ParticleModule struct {
	// Priority orders the particle callbacks within their stages.
	Priority int
}

func (m ParticleModule) Install(app *App) error {
	cfg := app.config
	if !cfg.Particles.Enabled {
		app.Logger().Infof("particles disabled")
		return nil
	}
	backends := app.backends
	if backend, _ := cfg.ParticleBackend(); backend == particles.BackendGPU && (backends.Device == nil || backends.Compute == nil) {
		return fmt.Errorf("%w: gpu particles need a device and a compute backend", ErrNoBackends)
	}

	w := particles.NewWorld(cfg.WorldConfig(), backends, app.Logger())
	w.Camera = app.camera

	prio := m.Priority
	if prio == 0 {
		prio = DefaultPriority
	}
	if r := app.Renderer; r != nil {
		w.AttachGBuffer(r.GBuffer)
		r.Callbacks.
			Use(Callback("particles.depth", w.DepthPrePass).InStage(StagePreGBuffer).WithPriority(prio)).
			Use(Callback("particles.gbuffer", w.GBufferPass).InStage(StagePostGBuffer).WithPriority(prio)).
			Use(Callback("particles.transparent", w.TransparentPass).InStage(StageTransparent).WithPriority(prio))
	}

	if err := w.Start(); err != nil {
		w.Close()
		return err
	}
	app.World = w
	app.OnClose(w.Close)
	return nil
}
