package deferredshading

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Hengle/DeferredShading/dsrt/rt/core"
	"github.com/Hengle/DeferredShading/dsrt/rt/particles"
	"github.com/Hengle/DeferredShading/dsrt/rt/stats"
)

type Module interface {
	Install(app *App) error
}

// FrameHook runs at the end of every successful Tick.
type FrameHook func(app *App)

type App struct {
	Renderer *Renderer
	World    *particles.World
	HUD      *HUD
	Time     Time

	config   Config
	backends particles.Backends
	camera   core.Camera
	modules  []Module
	logger   Logger
	profiler *stats.Profiler
	frame    uint64
	pending  chan Config
	patches  chan func(*Config)
	hooks    []FrameHook
	closers  []func()
}

func (app *App) Config() Config               { return app.config }
func (app *App) Backends() particles.Backends { return app.backends }
func (app *App) Profiler() *stats.Profiler    { return app.profiler }
func (app *App) Frame() uint64                { return app.frame }
func (app *App) Camera() core.Camera          { return app.camera }
func (app *App) OnFrame(h FrameHook)          { app.hooks = append(app.hooks, h) }
func (app *App) OnClose(fn func())            { app.closers = append(app.closers, fn) }

// SetCamera hands cam to both the renderer and the particle world.
func (app *App) SetCamera(cam core.Camera) {
	app.camera = cam
	if app.Renderer != nil {
		app.Renderer.Camera = cam
	}
	if app.World != nil {
		app.World.Camera = cam
	}
}

// ApplyConfig queues cfg for the next Tick. It may be called from any
// goroutine; only the newest queued config is applied.
func (app *App) ApplyConfig(cfg Config) {
	for {
		select {
		case app.pending <- cfg:
			return
		default:
		}
		select {
		case <-app.pending:
		default:
		}
	}
}

// UpdateConfig queues a change against the config current at the next
// Tick. Patches beyond the queue size are dropped.
func (app *App) UpdateConfig(fn func(*Config)) {
	select {
	case app.patches <- fn:
	default:
		app.Logger().Warnf("config patch dropped, queue full")
	}
}

func (app *App) drainConfig() {
	select {
	case cfg := <-app.pending:
		app.applyConfig(cfg)
	default:
	}
	for {
		select {
		case fn := <-app.patches:
			cfg := app.config
			fn(&cfg)
			app.applyConfig(cfg)
		default:
			return
		}
	}
}

func (app *App) applyConfig(cfg Config) {
	if err := cfg.Validate(); err != nil {
		app.Logger().Warnf("config rejected: %v", err)
		return
	}
	if r := app.Renderer; r != nil {
		r.ResolutionScale = cfg.Renderer.ResolutionScale
		if f, ok := cfg.Format(); ok {
			r.GBuffer.SetFormat(f)
		}
	}
	app.Logger().SetDebug(cfg.Log.Debug)
	if app.HUD != nil {
		app.HUD.configure(cfg.HUD)
	}
	app.config = cfg
	app.Logger().Infof("config applied: scale=%.2f format=%s", cfg.Renderer.ResolutionScale, cfg.Renderer.TextureFormat)
}

// Tick runs one frame: pending config, clock, simulation, rendering, then
// the frame hooks.
func (app *App) Tick(now time.Time) error {
	app.drainConfig()
	app.Time.Advance(now)
	app.frame++
	app.profiler.Reset()

	if app.World != nil {
		end := app.profiler.Scope("Simulate")
		err := app.World.Update(app.Time.Seconds())
		end()
		if err != nil {
			return fmt.Errorf("frame %d: simulate: %w", app.frame, err)
		}
	}
	if app.Renderer != nil {
		if err := app.Renderer.RenderFrame(); err != nil {
			return fmt.Errorf("frame %d: %w", app.frame, err)
		}
	}
	if app.World != nil {
		if err := app.World.TakeError(); err != nil {
			return fmt.Errorf("frame %d: render callback: %w", app.frame, err)
		}
		app.recordWorldStats()
	}
	if app.HUD != nil {
		if err := app.HUD.TakeError(); err != nil {
			return fmt.Errorf("frame %d: %w", app.frame, err)
		}
	}

	for _, h := range app.hooks {
		h(app)
	}
	return nil
}

func (app *App) recordWorldStats() {
	w := app.World
	spawned := 0
	for _, s := range w.Sets() {
		spawned += s.LastSpawned()
	}
	app.profiler.SetCount("sets", len(w.Sets()))
	app.profiler.SetCount("colliders", w.Registry.Len())
	app.profiler.SetCount("spawned", spawned)
}

// Run ticks until ctx is done, poll returns false or a frame fails.
func (app *App) Run(ctx context.Context, poll func() bool) error {
	defer app.Close()
	for {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if poll != nil && !poll() {
			return nil
		}
		if err := app.Tick(time.Now()); err != nil {
			return err
		}
	}
}

// Close releases module resources in reverse install order.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i]()
	}
	app.closers = nil
	if app.Renderer != nil {
		app.Renderer.Release()
	}
}
