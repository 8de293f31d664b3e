// Command dsdemo opens a window and runs the deferred renderer with a
// particle fountain bouncing off a few colliders.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"runtime"

	ds "github.com/Hengle/DeferredShading"
	"github.com/Hengle/DeferredShading/dsrt/rt/backend"
	"github.com/Hengle/DeferredShading/dsrt/rt/core"
	"github.com/Hengle/DeferredShading/dsrt/rt/gpu"
	"github.com/Hengle/DeferredShading/dsrt/rt/particles"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

func init() {
	// GLFW and the swapchain must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "dsdemo.toml", "path to the TOML config")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "dsdemo:", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (ds.Config, bool, error) {
	cfg, err := ds.LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		return ds.DefaultConfig(), false, nil
	}
	return cfg, err == nil, err
}

func run(configPath string) error {
	cfg, fromFile, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := ds.NewDefaultLogger(cfg.Log.Prefix, cfg.Log.Debug)

	var kernelSource string
	if cfg.Particles.KernelSource != "" {
		src, err := os.ReadFile(cfg.Particles.KernelSource)
		if err != nil {
			return fmt.Errorf("kernel source: %w", err)
		}
		kernelSource = string(src)
	} else if cfg.Particles.Backend != "cpu" {
		logger.Warnf("no particles.kernel_source configured, simulating on the cpu")
		cfg.Particles.Backend = "cpu"
	}

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("glfw init: %w", err)
	}
	defer glfw.Terminate()
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	win, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	defer win.Destroy()

	dev, err := backend.NewDevice(win)
	if err != nil {
		return err
	}
	defer dev.Release()
	stream, err := backend.NewStream(dev.Device, kernelSource, particles.KernelBindings(), logger)
	if err != nil {
		return err
	}
	defer stream.Release()
	presenter, err := backend.NewPresenter(dev, stream)
	if err != nil {
		return err
	}
	defer presenter.Release()

	app, err := ds.NewAppBuilder().
		WithConfig(cfg).
		WithBackends(particles.Backends{Device: stream, Compute: stream, Targets: stream}).
		WithLogger(logger).
		UseModule(ds.ParticleModule{}, ds.HUDModule{}, ds.TelemetryModule{}).
		Build()
	if err != nil {
		return err
	}

	fbw, fbh := win.GetFramebufferSize()
	cam := core.NewCameraState(fbw, fbh)
	cam.Position = mgl32.Vec3{0, 3, 12}
	cam.Pitch = -0.2
	app.SetCamera(cam)

	passes := &demoPasses{app: app, stream: stream, presenter: presenter, log: logger}
	app.Renderer.Passes = passes

	fountain, err := setupScene(app.World)
	if err != nil {
		app.Close()
		return err
	}

	if fromFile {
		watcher, err := ds.WatchConfig(configPath, logger, app.ApplyConfig)
		if err != nil {
			logger.Warnf("config hot reload disabled: %v", err)
		} else {
			defer watcher.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fly := newFlyingCamera()

	return app.Run(ctx, func() bool {
		glfw.PollEvents()
		if passes.err != nil {
			return false
		}
		w, h := win.GetFramebufferSize()
		dev.Resize(w, h)
		if w > 0 && h > 0 {
			cam.Resize(w, h)
		}
		fly.Update(win, cam, app.Time.Seconds())
		fountain.emit(64)
		return !win.ShouldClose()
	})
}

// demoPasses clears the G-buffer and presents the composite. The scene
// itself is only the particles.
type demoPasses struct {
	app       *ds.App
	stream    *backend.Stream
	presenter *backend.Presenter
	log       ds.Logger
	err       error
}

func (p *demoPasses) ClearGBuffer() { p.stream.Clear(true, true) }
func (p *demoPasses) DrawOpaque()   {}
func (p *demoPasses) RenderLights() {}

func (p *demoPasses) Present(front gpu.Surface) {
	var overlays []backend.Overlay
	if hud := p.app.HUD; hud != nil {
		if s, ok := hud.Surface().(*backend.Surface); ok {
			overlays = append(overlays, backend.Overlay{Surface: s, X: 8, Y: 8})
		}
	}
	if err := p.presenter.Present(front.(*backend.Surface), overlays...); err != nil {
		p.log.Errorf("present: %v", err)
		p.err = err
	}
}

type fountain struct {
	set *particles.ParticleSet
	rng *rand.Rand
}

func (f *fountain) emit(n int) {
	spawns := make([]core.ParticleSpawn, n)
	for i := range spawns {
		spawns[i] = core.ParticleSpawn{
			Position: mgl32.Vec3{0, 0.5, 0},
			Lifetime: 4 + f.rng.Float32()*2,
			Velocity: mgl32.Vec3{f.rng.Float32()*2 - 1, 6 + f.rng.Float32()*2, f.rng.Float32()*2 - 1},
		}
	}
	f.set.Emit(spawns...)
}

func setupScene(w *particles.World) (*fountain, error) {
	if w == nil {
		return nil, errors.New("particles are disabled in the config")
	}
	w.Registry.Add(core.NewBoxCollider(mgl32.Translate3D(0, -0.5, 0), mgl32.Vec3{20, 1, 20}))
	w.Registry.Add(core.NewSphereCollider(mgl32.Vec3{1.5, 2, 0}, 0.8))
	w.Registry.Add(core.NewCapsuleCollider(mgl32.Vec3{-2, 1, -1}, mgl32.Vec3{-2, 1, 1}, 0.4))
	w.Registry.AddForce(core.ForceRecord{
		Shape:     core.ForceShapeAll,
		Direction: core.ForceDirectional,
		Strength:  9.81,
		Dir:       mgl32.Vec3{0, -1, 0},
	})

	cfg := particles.DefaultSetConfig()
	cfg.Label = "fountain"
	cfg.GBufferCollision = true
	set, err := w.AddSet(cfg)
	if err != nil {
		return nil, err
	}
	return &fountain{set: set, rng: rand.New(rand.NewSource(1))}, nil
}
