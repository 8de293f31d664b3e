package particles

import (
	"encoding/binary"
	"testing"

	"github.com/Hengle/DeferredShading/dsrt/rt/core"
	"github.com/Hengle/DeferredShading/dsrt/rt/gpu"
	"github.com/Hengle/DeferredShading/dsrt/rt/gpu/gputest"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGPUWorld(t *testing.T) (*World, *gputest.Recorder) {
	t.Helper()
	rec := gputest.NewRecorder()
	w := NewWorld(DefaultWorldConfig(), Backends{Device: rec, Compute: rec, Targets: rec}, nil)
	require.NoError(t, w.Start())
	return w, rec
}

func smallSet(label string) SetConfig {
	cfg := DefaultSetConfig()
	cfg.Label = label
	cfg.MaxParticles = 1024
	cfg.GridCells = 4096
	return cfg
}

func TestPipeline_ImpulseSequence(t *testing.T) {
	w, rec := newGPUWorld(t)
	_, err := w.AddSet(smallSet("sparks"))
	require.NoError(t, err)

	rec.Reset()
	require.NoError(t, w.Update(1.0/60.0))

	assert.Equal(t, []string{
		KernelAddParticles,
		KernelPrepare,
		KernelGridHash, "|", KernelGridCells,
		KernelImpulse,
		KernelSphereColliders, KernelCapsuleColliders, KernelBoxColliders,
		KernelForces,
		KernelIntegrate,
	}, rec.Sequence())
}

func TestPipeline_SPHDensityBarrierForce(t *testing.T) {
	w, rec := newGPUWorld(t)
	cfg := smallSet("fluid")
	cfg.Interaction = InteractionSPH
	_, err := w.AddSet(cfg)
	require.NoError(t, err)

	rec.Reset()
	require.NoError(t, w.Update(1.0/60.0))

	seq := rec.Sequence()
	density := indexOf(seq, KernelSPHDensity)
	force := indexOf(seq, KernelSPHForce)
	require.GreaterOrEqual(t, density, 0)
	require.Greater(t, force, density)
	assert.Contains(t, seq[density+1:force], "|")
	assert.NotContains(t, seq, KernelImpulse)
}

func TestPipeline_2DVariants(t *testing.T) {
	w, rec := newGPUWorld(t)
	cfg := smallSet("flat")
	cfg.Interaction = InteractionSPH
	cfg.Dimension = Dim2D
	_, err := w.AddSet(cfg)
	require.NoError(t, err)

	rec.Reset()
	require.NoError(t, w.Update(1.0/60.0))

	d := rec.Dispatches()
	assert.Contains(t, d, KernelGridHash+"2D")
	assert.Contains(t, d, KernelSPHDensity+"2D")
	assert.Contains(t, d, KernelSPHForce+"2D")
	assert.NotContains(t, d, KernelSPHDensity)
	assert.Equal(t, []string{BindingParams, BindingParticles, BindingSortKeys, BindingCells}, KernelBindings()[KernelSPHForce+"2D"])
}

func TestPipeline_ZeroCollidersStillDispatchesAllColliderPasses(t *testing.T) {
	w, rec := newGPUWorld(t)
	_, err := w.AddSet(smallSet("a"))
	require.NoError(t, err)

	rec.Reset()
	require.NoError(t, w.Update(0.016))

	d := rec.Dispatches()
	for _, k := range []string{KernelSphereColliders, KernelCapsuleColliders, KernelBoxColliders} {
		assert.Equal(t, 1, count(d, k), k)
	}
	pool := w.Simulator().(*GPUSimulator).Pool()
	assert.Equal(t, core.ColliderCounts{}, pool.Counts())
}

func TestPipeline_ZeroParticleSetRunsFullSequence(t *testing.T) {
	w, rec := newGPUWorld(t)
	_, err := w.AddSet(smallSet("idle"))
	require.NoError(t, err)

	rec.Reset()
	require.NoError(t, w.Update(0.016))

	for _, op := range rec.OpsOf(gputest.OpDispatch) {
		assert.GreaterOrEqual(t, op.Groups[0], uint32(1), op.Kernel)
	}
	assert.Len(t, rec.Dispatches(), 11)
}

func TestPipeline_ColliderGrowthRebindsBeforeDispatch(t *testing.T) {
	w, rec := newGPUWorld(t)
	_, err := w.AddSet(smallSet("a"))
	require.NoError(t, err)
	pool := w.Simulator().(*GPUSimulator).Pool()

	for i := 0; i < 10; i++ {
		w.Registry.Add(core.NewSphereCollider(mgl32.Vec3{float32(i), 0, 0}, 0.5))
	}
	require.NoError(t, w.Update(0.016))
	old := pool.Spheres.Handle().(*gputest.Buffer)
	assert.Equal(t, old.ID, rec.Bound(KernelSphereColliders, BindingSphereColliders))

	for i := 10; i < 300; i++ {
		w.Registry.Add(core.NewSphereCollider(mgl32.Vec3{float32(i), 0, 0}, 0.5))
	}
	rec.Reset()
	require.NoError(t, w.Update(0.016))

	assert.Equal(t, 512, pool.Spheres.Capacity())
	assert.True(t, old.Released)
	grown := pool.Spheres.Handle().(*gputest.Buffer)
	assert.Equal(t, grown.ID, rec.Bound(KernelSphereColliders, BindingSphereColliders))
	assert.Len(t, grown.Data, 300*48)

	created, firstDispatch := -1, -1
	for i, op := range rec.Ops {
		if op.Kind == gputest.OpCreateBuffer && op.Name == BindingSphereColliders && created < 0 {
			created = i
		}
		if op.Kind == gputest.OpDispatch && firstDispatch < 0 {
			firstDispatch = i
		}
	}
	require.GreaterOrEqual(t, created, 0)
	assert.Less(t, created, firstDispatch)
}

func TestPipeline_ParamsCarrySpawnCountAndColliderCounts(t *testing.T) {
	w, _ := newGPUWorld(t)
	set, err := w.AddSet(smallSet("a"))
	require.NoError(t, err)
	w.Registry.Add(core.NewBoxCollider(mgl32.Ident4(), mgl32.Vec3{1, 1, 1}))

	set.Emit(make([]core.ParticleSpawn, 7)...)
	require.NoError(t, w.Update(0.016))

	params := set.params.Handle().(*gputest.Buffer).Data
	require.Len(t, params, core.SimParams{}.Stride())
	assert.Equal(t, uint32(7), binary.LittleEndian.Uint32(params[80:]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(params[92:]))
	assert.Equal(t, 7, set.LastSpawned())
	assert.Zero(t, set.Pending())
	assert.Len(t, set.spawn.Handle().(*gputest.Buffer).Data, 7*32)
}

func TestPipeline_GBufferCollisionOnlyForOptedInSets(t *testing.T) {
	w, rec := newGPUWorld(t)
	mgr := gpu.NewGBufferManager(rec, gpu.FormatRGBA16Float, nil)
	_, err := mgr.EnsureCapacity(64, 64)
	require.NoError(t, err)
	w.AttachGBuffer(mgr)
	w.Camera = core.NewCameraState(64, 64)

	_, err = w.AddSet(smallSet("plain"))
	require.NoError(t, err)
	cfg := smallSet("colliding")
	cfg.GBufferCollision = true
	_, err = w.AddSet(cfg)
	require.NoError(t, err)

	rec.Reset()
	require.NoError(t, w.Update(0.016))
	assert.Zero(t, count(rec.Dispatches(), KernelGBufferCollision), "copy does not exist before the first gbuffer pass")

	w.GBufferPass()
	assert.Equal(t, 2, rec.Count(gputest.OpBlit))
	w.GBufferPass()
	assert.Equal(t, 2, rec.Count(gputest.OpBlit), "copy happens at most once per frame")

	rec.Reset()
	require.NoError(t, w.Update(0.016))
	assert.Equal(t, 1, count(rec.Dispatches(), KernelGBufferCollision))
	assert.Equal(t, w.GBufferCopy().Normal().(*gputest.Surface).ID, rec.Bound(KernelGBufferCollision, BindingGBufferNormal))
	assert.Equal(t, [2]float32{64, 64}, w.RTSize())
}

func TestPipeline_NoOptInSkipsCopy(t *testing.T) {
	w, rec := newGPUWorld(t)
	mgr := gpu.NewGBufferManager(rec, gpu.FormatRGBA16Float, nil)
	_, err := mgr.EnsureCapacity(32, 32)
	require.NoError(t, err)
	w.AttachGBuffer(mgr)
	w.Camera = core.NewCameraState(32, 32)
	_, err = w.AddSet(smallSet("plain"))
	require.NoError(t, err)

	require.NoError(t, w.Update(0.016))
	w.GBufferPass()

	assert.Zero(t, rec.Count(gputest.OpBlit))
	assert.False(t, w.GBufferCopy().Ready())
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func count(list []string, s string) int {
	n := 0
	for _, v := range list {
		if v == s {
			n++
		}
	}
	return n
}
