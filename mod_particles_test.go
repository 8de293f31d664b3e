package deferredshading

import (
	"slices"
	"testing"
	"time"

	"github.com/Hengle/DeferredShading/dsrt/rt/core"
	"github.com/Hengle/DeferredShading/dsrt/rt/gpu/gputest"
	"github.com/Hengle/DeferredShading/dsrt/rt/particles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stageDrawer struct {
	calls []string
}

func (d *stageDrawer) DepthPrePass(s *particles.ParticleSet)    { d.calls = append(d.calls, "depth") }
func (d *stageDrawer) GBufferPass(s *particles.ParticleSet)     { d.calls = append(d.calls, "gbuffer") }
func (d *stageDrawer) TransparentPass(s *particles.ParticleSet) { d.calls = append(d.calls, "transparent") }

func newGPUApp(t *testing.T) (*App, *gputest.Recorder) {
	t.Helper()
	rec := gputest.NewRecorder()
	cfg := DefaultConfig()
	cfg.HUD.Enabled = false
	app, err := NewAppBuilder().
		WithConfig(cfg).
		WithBackends(particles.Backends{Device: rec, Compute: rec, Targets: rec}).
		WithLogger(NewNopLogger()).
		UseModule(ParticleModule{}).
		Build()
	require.NoError(t, err)
	app.SetCamera(core.NewCameraState(640, 480))
	t.Cleanup(app.Close)
	return app, rec
}

func TestParticleModule_RegistersStageCallbacks(t *testing.T) {
	app, _ := newGPUApp(t)
	cb := app.Renderer.Callbacks

	assert.Equal(t, 1, cb.Len(StagePreGBuffer))
	assert.Equal(t, 1, cb.Len(StagePostGBuffer))
	assert.Equal(t, 1, cb.Len(StageTransparent))
	assert.Equal(t, DefaultPriority, cb.Callbacks(StagePostGBuffer)[0].Priority)
}

func TestParticleModule_DrawersFollowFrameStages(t *testing.T) {
	app, _ := newGPUApp(t)
	set, err := app.World.AddSet(particles.DefaultSetConfig())
	require.NoError(t, err)
	d := &stageDrawer{}
	set.Drawer = d

	require.NoError(t, app.Tick(time.Unix(0, 0)))
	assert.Equal(t, []string{"depth", "gbuffer", "transparent"}, d.calls)
}

func TestParticleModule_GBufferCollisionFromSecondFrame(t *testing.T) {
	app, rec := newGPUApp(t)
	cfg := particles.DefaultSetConfig()
	cfg.MaxParticles = 1024
	cfg.GridCells = 4096
	cfg.GBufferCollision = true
	_, err := app.World.AddSet(cfg)
	require.NoError(t, err)

	now := time.Unix(0, 0)
	require.NoError(t, app.Tick(now))
	assert.NotContains(t, rec.Dispatches(), particles.KernelGBufferCollision)
	assert.Equal(t, 2, rec.Count(gputest.OpBlit), "normal and position copied once")

	rec.Reset()
	require.NoError(t, app.Tick(now.Add(16*time.Millisecond)))
	d := rec.Dispatches()
	require.Contains(t, d, particles.KernelGBufferCollision)
	assert.Less(t, slices.Index(d, particles.KernelBoxColliders), slices.Index(d, particles.KernelGBufferCollision))
	assert.Less(t, slices.Index(d, particles.KernelGBufferCollision), slices.Index(d, particles.KernelForces))
}

func TestParticleModule_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Particles.Enabled = false
	app, _ := newTestApp(t, cfg, ParticleModule{})
	assert.Nil(t, app.World)
	assert.Zero(t, app.Renderer.Callbacks.Len(StagePostGBuffer))
}

func TestParticleModule_GPUNeedsDevice(t *testing.T) {
	cfg := DefaultConfig()
	_, err := NewAppBuilder().
		WithConfig(cfg).
		WithBackends(particles.Backends{Targets: gputest.NewRecorder()}).
		WithLogger(NewNopLogger()).
		UseModule(ParticleModule{}).
		Build()
	require.ErrorIs(t, err, ErrNoBackends)
}
