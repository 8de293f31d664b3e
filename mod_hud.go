package deferredshading

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"github.com/Hengle/DeferredShading/dsrt/rt/gpu"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const hudLineHeight = 13

// HUD rasterizes the profiler stats into an RGBA8 overlay surface.
type HUD struct {
	targets  gpu.TargetBackend
	surface  gpu.Generation[gpu.Surface]
	img      *image.RGBA
	width    int
	height   int
	interval int
	enabled  bool
	refresh  uint64
	err      error
}

func newHUD(targets gpu.TargetBackend, cfg HUDConfig) (*HUD, error) {
	h := &HUD{targets: targets}
	h.configure(cfg)
	if err := h.ensureSurface(); err != nil {
		return nil, err
	}
	return h, nil
}

// configure applies a reloaded HUD table. A disabled table only pauses
// drawing; its size is not validated and is ignored.
func (h *HUD) configure(cfg HUDConfig) {
	h.enabled = cfg.Enabled
	if !cfg.Enabled {
		return
	}
	h.interval = max(1, cfg.Interval)
	if cfg.Width != h.width || cfg.Height != h.height {
		h.width, h.height = cfg.Width, cfg.Height
		h.img = nil
	}
}

func (h *HUD) ensureSurface() error {
	if h.img != nil && h.surface.Live() {
		return nil
	}
	h.surface.Release()
	s, err := h.targets.CreateSurface(gpu.SurfaceDesc{
		Label:  "hud",
		Width:  h.width,
		Height: h.height,
		Format: gpu.FormatRGBA8Unorm,
	})
	if err != nil {
		return fmt.Errorf("hud surface %dx%d: %w", h.width, h.height, err)
	}
	h.surface.Replace(s)
	h.img = image.NewRGBA(image.Rect(0, 0, h.width, h.height))
	return nil
}

// Draw renders text into the overlay image and uploads it.
func (h *HUD) Draw(text string) error {
	if err := h.ensureSurface(); err != nil {
		return err
	}
	draw.Draw(h.img, h.img.Bounds(), image.NewUniform(color.RGBA{A: 160}), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  h.img,
		Src:  image.White,
		Face: basicfont.Face7x13,
	}
	y := hudLineHeight
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if y > h.height {
			break
		}
		d.Dot = fixed.P(4, y)
		d.DrawString(line)
		y += hudLineHeight
	}
	h.targets.WriteSurface(h.surface.Handle(), h.img.Pix)
	h.refresh++
	return nil
}

// onFrame redraws every interval frames, starting with the first.
func (h *HUD) onFrame(frame uint64, text func() string) {
	if !h.enabled || (frame-1)%uint64(h.interval) != 0 {
		return
	}
	if err := h.Draw(text()); err != nil && h.err == nil {
		h.err = err
	}
}

func (h *HUD) TakeError() error {
	err := h.err
	h.err = nil
	return err
}

func (h *HUD) Surface() gpu.Surface { return h.surface.Handle() }
func (h *HUD) Image() *image.RGBA   { return h.img }
func (h *HUD) Refreshes() uint64    { return h.refresh }

func (h *HUD) Release() {
	h.surface.Release()
}

// HUDModule draws the frame stats overlay in the HUD stage.
type HUDModule struct{}

func (HUDModule) Install(app *App) error {
	cfg := app.config.HUD
	if !cfg.Enabled {
		return nil
	}
	if app.Renderer == nil || app.backends.Targets == nil {
		return fmt.Errorf("hud: %w", ErrNoRenderer)
	}
	h, err := newHUD(app.backends.Targets, cfg)
	if err != nil {
		return err
	}
	app.HUD = h
	app.Renderer.Callbacks.Use(Callback("hud.stats", func() {
		h.onFrame(app.frame, func() string { return app.profiler.Snapshot(app.frame).String() })
	}).InStage(StageHUD))
	app.OnClose(h.Release)
	return nil
}
