package deferredshading

import "fmt"

// UseRenderer installs r as the app's only renderer. Installing a second,
// different renderer panics.
func (app *App) UseRenderer(r *Renderer) *App {
	ensureSingleRenderer(app, r)
	r.profiler = app.profiler
	if app.camera != nil {
		r.Camera = app.camera
	}
	app.Renderer = r
	return app
}

func ensureSingleRenderer(app *App, r *Renderer) {
	if app == nil {
		panic("ensureSingleRenderer: app is nil")
	}
	if r == nil {
		panic("ensureSingleRenderer: renderer is nil")
	}
	if app.Renderer != nil && app.Renderer != r {
		app.Logger().Errorf("Multiple renderers installed: %s and %s", app.Renderer.Name, r.Name)
		panic(fmt.Sprintf("Multiple renderers installed: %s and %s", app.Renderer.Name, r.Name))
	}
}
