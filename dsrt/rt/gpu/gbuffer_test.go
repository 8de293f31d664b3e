package gpu_test

import (
	"testing"

	"github.com/Hengle/DeferredShading/dsrt/rt/core"
	"github.com/Hengle/DeferredShading/dsrt/rt/gpu"
	"github.com/Hengle/DeferredShading/dsrt/rt/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, w, h int) (*gpu.GBufferManager, *gputest.Recorder) {
	t.Helper()
	rec := gputest.NewRecorder()
	m := gpu.NewGBufferManager(rec, gpu.FormatRGBA16Float, nil)
	allocated, err := m.EnsureCapacity(w, h)
	require.NoError(t, err)
	require.True(t, allocated)
	return m, rec
}

func TestGBufferManager_EnsureCapacityIsIdempotent(t *testing.T) {
	m, rec := newManager(t, 1920, 1080)
	assert.Len(t, rec.LiveSurfaces(), 10)

	rec.Reset()
	for i := 0; i < 5; i++ {
		allocated, err := m.EnsureCapacity(1920, 1080)
		require.NoError(t, err)
		assert.False(t, allocated)
	}
	assert.Zero(t, rec.Count(gputest.OpCreateSurface))
	assert.Zero(t, rec.Count(gputest.OpRelease))
	assert.Equal(t, uint64(1), m.Generation())
}

func TestGBufferManager_ResizeReallocatesEverything(t *testing.T) {
	m, rec := newManager(t, 1920, 1080)
	old := rec.LiveSurfaces()

	allocated, err := m.EnsureCapacity(3840, 2160)
	require.NoError(t, err)
	assert.True(t, allocated)

	for _, s := range old {
		assert.True(t, s.Released, "%s not released", s.Desc.Label)
	}
	live := rec.LiveSurfaces()
	require.Len(t, live, 10)
	for _, s := range live {
		assert.Equal(t, 3840, s.Width())
		assert.Equal(t, 2160, s.Height())
	}
	w, h := m.Size()
	assert.Equal(t, 3840, w)
	assert.Equal(t, 2160, h)
}

func TestGBufferManager_DepthOnNormalSurface(t *testing.T) {
	m, _ := newManager(t, 64, 64)
	depth := m.Current().Depth().(*gputest.Surface)
	assert.Equal(t, 32, depth.Desc.DepthBits)
	assert.Same(t, m.Current().Normal(), m.Current().Depth())
	assert.Zero(t, m.Current().Albedo().(*gputest.Surface).Desc.DepthBits)
}

func TestGBufferManager_DoubleBufferAlternates(t *testing.T) {
	m, rec := newManager(t, 320, 240)
	a, b := m.Current(), m.Previous()
	require.NotSame(t, a, b)

	for frame := 0; frame < 6; frame++ {
		before := m.Current()
		m.BeginFrame()
		assert.Same(t, before, m.Previous(), "frame %d", frame)
		assert.NotSame(t, m.Current(), m.Previous())
		assert.True(t, m.Current() == a || m.Current() == b)
	}

	binds := rec.OpsOf(gputest.OpBind)
	require.NotEmpty(t, binds)
	last := binds[len(binds)-1]
	assert.Len(t, last.Targets, 4)
	assert.Equal(t, m.Current().Normal().(*gputest.Surface).ID, last.Depth)
}

func TestGBufferManager_TemporalMatricesCarryPrevious(t *testing.T) {
	m, _ := newManager(t, 800, 600)
	cam := core.NewCameraState(800, 600)

	m.ComputeTemporalMatrices(cam)
	first := m.Matrices.ViewProj
	cam.Yaw = 0.5
	m.ComputeTemporalMatrices(cam)

	assert.Equal(t, first, m.Matrices.PrevViewProj)
	assert.NotEqual(t, first, m.Matrices.ViewProj)
}

func TestGBufferManager_CompositeHelpers(t *testing.T) {
	m, rec := newManager(t, 128, 128)
	front, back := m.Composite().Front(), m.Composite().Back()

	rec.Reset()
	m.ClearComposite()
	binds := rec.OpsOf(gputest.OpBind)
	require.Len(t, binds, 2)
	assert.Zero(t, binds[0].Depth)
	assert.Equal(t, m.Current().Depth().(*gputest.Surface).ID, binds[1].Depth)
	assert.Equal(t, 1, rec.Count(gputest.OpClear))

	got := m.CopyFramebuffer()
	assert.Same(t, back, got)
	blit := rec.OpsOf(gputest.OpBlit)[0]
	assert.Equal(t, []int{front.(*gputest.Surface).ID, back.(*gputest.Surface).ID}, blit.Targets)

	got = m.SwapFramebuffer()
	assert.Same(t, front, got)
	assert.Same(t, back, m.Composite().Front())
}

func TestGBufferManager_AllocationFailureIsFatal(t *testing.T) {
	rec := gputest.NewRecorder()
	rec.FailSurfaces = 5
	m := gpu.NewGBufferManager(rec, gpu.FormatRGBA32Float, nil)

	allocated, err := m.EnsureCapacity(640, 480)
	assert.False(t, allocated)
	assert.ErrorIs(t, err, gpu.ErrAllocation)
	assert.Empty(t, rec.LiveSurfaces())
	assert.False(t, m.Allocated())

	_, err = m.EnsureCapacity(0, 480)
	assert.ErrorIs(t, err, gpu.ErrAllocation)
}

func TestGBufferManager_SetFormatForcesReallocation(t *testing.T) {
	m, rec := newManager(t, 100, 100)
	m.SetFormat(gpu.FormatRGBA32Float)

	allocated, err := m.EnsureCapacity(100, 100)
	require.NoError(t, err)
	assert.True(t, allocated)
	for _, s := range rec.LiveSurfaces() {
		assert.Equal(t, gpu.FormatRGBA32Float, s.Desc.Format)
	}
}
