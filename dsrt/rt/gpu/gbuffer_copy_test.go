package gpu_test

import (
	"testing"

	"github.com/Hengle/DeferredShading/dsrt/rt/gpu"
	"github.com/Hengle/DeferredShading/dsrt/rt/gpu/gputest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGBufferCopy_OncePerFrame(t *testing.T) {
	m, rec := newManager(t, 256, 256)
	cp := gpu.NewGBufferCopy(rec, m.Format(), nil)
	assert.False(t, cp.Copy(1, m.Current()))

	_, err := cp.EnsureCapacity(256, 256, m.Format())
	require.NoError(t, err)

	rec.Reset()
	assert.True(t, cp.Copy(1, m.Current()))
	assert.False(t, cp.Copy(1, m.Current()))
	assert.Equal(t, 2, rec.Count(gputest.OpBlit))

	assert.True(t, cp.Copy(2, m.Current()))
	assert.Equal(t, 2, cp.Copies())

	blits := rec.OpsOf(gputest.OpBlit)
	assert.Equal(t, m.Current().Normal().(*gputest.Surface).ID, blits[0].Targets[0])
	assert.Equal(t, cp.Normal().(*gputest.Surface).ID, blits[0].Targets[1])
	assert.Equal(t, cp.Position().(*gputest.Surface).ID, blits[1].Targets[1])
}

func TestGBufferCopy_ReallocatesOnResize(t *testing.T) {
	rec := gputest.NewRecorder()
	cp := gpu.NewGBufferCopy(rec, gpu.FormatRGBA16Float, nil)

	allocated, err := cp.EnsureCapacity(1920, 1080, gpu.FormatRGBA16Float)
	require.NoError(t, err)
	assert.True(t, allocated)
	old := cp.Normal()

	allocated, err = cp.EnsureCapacity(1920, 1080, gpu.FormatRGBA16Float)
	require.NoError(t, err)
	assert.False(t, allocated)

	allocated, err = cp.EnsureCapacity(3840, 2160, gpu.FormatRGBA16Float)
	require.NoError(t, err)
	assert.True(t, allocated)
	assert.True(t, old.(*gputest.Surface).Released)
	assert.Len(t, rec.LiveSurfaces(), 2)
	assert.Equal(t, 3840, cp.Normal().Width())
}
