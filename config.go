package deferredshading

import (
	"fmt"
	"os"

	"github.com/Hengle/DeferredShading/dsrt/rt/gpu"
	"github.com/Hengle/DeferredShading/dsrt/rt/particles"
	"github.com/pelletier/go-toml/v2"
)

type WindowConfig struct {
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Title  string `toml:"title"`
}

type RendererConfig struct {
	ResolutionScale float32 `toml:"resolution_scale"`
	// TextureFormat is float16 or float32.
	TextureFormat string `toml:"texture_format"`
}

type ParticlesConfig struct {
	Enabled         bool   `toml:"enabled"`
	Backend         string `toml:"backend"`
	KernelSource    string `toml:"kernel_source"`
	SphereCapacity  int    `toml:"sphere_capacity"`
	CapsuleCapacity int    `toml:"capsule_capacity"`
	BoxCapacity     int    `toml:"box_capacity"`
	ForceCapacity   int    `toml:"force_capacity"`
}

type HUDConfig struct {
	Enabled bool `toml:"enabled"`
	Width   int  `toml:"width"`
	Height  int  `toml:"height"`
	// Interval is the number of frames between HUD refreshes.
	Interval int `toml:"interval"`
}

type TelemetryConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

type LogConfig struct {
	Prefix string `toml:"prefix"`
	Debug  bool   `toml:"debug"`
}

type Config struct {
	Window    WindowConfig    `toml:"window"`
	Renderer  RendererConfig  `toml:"renderer"`
	Particles ParticlesConfig `toml:"particles"`
	HUD       HUDConfig       `toml:"hud"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Log       LogConfig       `toml:"log"`
}

func DefaultConfig() Config {
	caps := gpu.DefaultPoolCapacities()
	return Config{
		Window:   WindowConfig{Width: 1280, Height: 720, Title: "Deferred Shading"},
		Renderer: RendererConfig{ResolutionScale: 1, TextureFormat: "float16"},
		Particles: ParticlesConfig{
			Enabled:         true,
			Backend:         "gpu",
			SphereCapacity:  caps.Spheres,
			CapsuleCapacity: caps.Capsules,
			BoxCapacity:     caps.Boxes,
			ForceCapacity:   caps.Forces,
		},
		HUD:       HUDConfig{Enabled: true, Width: 256, Height: 96, Interval: 30},
		Telemetry: TelemetryConfig{Addr: "127.0.0.1:8089"},
		Log:       LogConfig{Prefix: "ds"},
	}
}

// ParseConfig decodes TOML over the defaults and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Renderer.ResolutionScale <= 0 || c.Renderer.ResolutionScale > 4 {
		return fmt.Errorf("%w: renderer.resolution_scale %v", ErrInvalidConfig, c.Renderer.ResolutionScale)
	}
	if f, ok := c.Format(); !ok || f == gpu.FormatRGBA8Unorm {
		return fmt.Errorf("%w: renderer.texture_format %q", ErrInvalidConfig, c.Renderer.TextureFormat)
	}
	if _, ok := c.ParticleBackend(); !ok {
		return fmt.Errorf("%w: particles.backend %q", ErrInvalidConfig, c.Particles.Backend)
	}
	p := c.Particles
	if p.SphereCapacity < 1 || p.CapsuleCapacity < 1 || p.BoxCapacity < 1 || p.ForceCapacity < 1 {
		return fmt.Errorf("%w: particles capacities must be positive", ErrInvalidConfig)
	}
	if c.HUD.Enabled && (c.HUD.Width <= 0 || c.HUD.Height <= 0) {
		return fmt.Errorf("%w: hud size %dx%d", ErrInvalidConfig, c.HUD.Width, c.HUD.Height)
	}
	return nil
}

func (c Config) Format() (gpu.Format, bool) {
	return gpu.ParseFormat(c.Renderer.TextureFormat)
}

func (c Config) ParticleBackend() (particles.Backend, bool) {
	switch c.Particles.Backend {
	case "gpu", "":
		return particles.BackendGPU, true
	case "cpu":
		return particles.BackendCPU, true
	}
	return 0, false
}

// WorldConfig derives the particle world settings.
func (c Config) WorldConfig() particles.WorldConfig {
	wc := particles.DefaultWorldConfig()
	wc.Backend, _ = c.ParticleBackend()
	wc.Capacities = gpu.PoolCapacities{
		Spheres:  c.Particles.SphereCapacity,
		Capsules: c.Particles.CapsuleCapacity,
		Boxes:    c.Particles.BoxCapacity,
		Forces:   c.Particles.ForceCapacity,
	}
	return wc
}
