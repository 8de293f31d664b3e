package deferredshading

import (
	"errors"
	"testing"

	"github.com/Hengle/DeferredShading/dsrt/rt/gpu/gputest"
	"github.com/Hengle/DeferredShading/dsrt/rt/particles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockModule struct {
	installed bool
}

func (m *MockModule) Install(app *App) error {
	m.installed = true
	return nil
}

type failingModule struct{}

var errMockInstall = errors.New("mock install failed")

func (failingModule) Install(app *App) error {
	app.OnClose(func() {})
	return errMockInstall
}

func TestAppBuilder_Headless(t *testing.T) {
	app, err := NewAppBuilder().WithLogger(NewNopLogger()).Build()
	require.NoError(t, err)

	assert.Nil(t, app.Renderer)
	assert.Nil(t, app.World)
	assert.Equal(t, DefaultConfig(), app.Config())
}

func TestAppBuilder_RendererFromTargets(t *testing.T) {
	cfg := testConfig()
	cfg.Renderer.ResolutionScale = 0.75
	app, err := NewAppBuilder().
		WithConfig(cfg).
		WithBackends(particles.Backends{Targets: gputest.NewRecorder()}).
		WithLogger(NewNopLogger()).
		Build()
	require.NoError(t, err)

	require.NotNil(t, app.Renderer)
	assert.Equal(t, float32(0.75), app.Renderer.ResolutionScale)
	assert.Same(t, app.Profiler(), app.Renderer.Profiler())
}

func TestAppBuilder_UseModule(t *testing.T) {
	m := &MockModule{}
	_, err := NewAppBuilder().WithLogger(NewNopLogger()).UseModule(m).Build()
	require.NoError(t, err)
	assert.True(t, m.installed)
}

func TestAppBuilder_DuplicateModulePanics(t *testing.T) {
	b := NewAppBuilder().UseModule(&MockModule{})
	require.PanicsWithValue(t, "*deferredshading.MockModule is already installed", func() {
		b.UseModule(&MockModule{})
	})
}

func TestAppBuilder_InstallErrorIsWrapped(t *testing.T) {
	_, err := NewAppBuilder().WithLogger(NewNopLogger()).UseModule(failingModule{}).Build()
	require.ErrorIs(t, err, errMockInstall)
	assert.Contains(t, err.Error(), "failingModule")
}

func TestAppBuilder_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Renderer.TextureFormat = "rgba8"
	_, err := NewAppBuilder().WithConfig(cfg).Build()
	require.ErrorIs(t, err, ErrInvalidConfig)
}
