package deferredshading

import (
	"fmt"
	"reflect"

	"github.com/Hengle/DeferredShading/dsrt/rt/particles"
	"github.com/Hengle/DeferredShading/dsrt/rt/stats"
)

type AppBuilder struct {
	app     *App
	modules []Module
}

func NewAppBuilder() *AppBuilder {
	return &AppBuilder{app: &App{
		config:   DefaultConfig(),
		profiler: stats.NewProfiler(),
		pending:  make(chan Config, 1),
		patches:  make(chan func(*Config), 16),
	}}
}

func (b *AppBuilder) WithConfig(cfg Config) *AppBuilder {
	b.app.config = cfg
	return b
}

// WithBackends sets the device collaborators. A non-nil Targets backend
// gives the app a deferred renderer.
func (b *AppBuilder) WithBackends(backends particles.Backends) *AppBuilder {
	b.app.backends = backends
	return b
}

func (b *AppBuilder) WithLogger(l Logger) *AppBuilder {
	b.app.logger = l
	return b
}

func (b *AppBuilder) UseModule(modules ...Module) *AppBuilder {
	for _, m := range modules {
		t := reflect.TypeOf(m)
		for _, existing := range b.modules {
			if reflect.TypeOf(existing) == t {
				panic(fmt.Sprintf("%s is already installed", t))
			}
		}
		b.modules = append(b.modules, m)
	}
	return b
}

// Build validates the config, creates the renderer when targets exist and
// installs the modules in order.
func (b *AppBuilder) Build() (*App, error) {
	app := b.app
	if err := app.config.Validate(); err != nil {
		return nil, err
	}
	if app.logger == nil {
		app.logger = NewDefaultLogger(app.config.Log.Prefix, app.config.Log.Debug)
	}

	if targets := app.backends.Targets; targets != nil {
		format, _ := app.config.Format()
		r := NewRenderer(targets, format, app.logger)
		r.ResolutionScale = app.config.Renderer.ResolutionScale
		app.UseRenderer(r)
	}

	for _, module := range b.modules {
		if err := module.Install(app); err != nil {
			app.Close()
			return nil, fmt.Errorf("install %T: %w", module, err)
		}
		app.modules = append(app.modules, module)
	}
	return app, nil
}
