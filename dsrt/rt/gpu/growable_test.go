package gpu_test

import (
	"testing"

	"github.com/Hengle/DeferredShading/dsrt/rt/core"
	"github.com/Hengle/DeferredShading/dsrt/rt/gpu"
	"github.com/Hengle/DeferredShading/dsrt/rt/gpu/gputest"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spheres(n int) []core.SphereCollider {
	out := make([]core.SphereCollider, n)
	for i := range out {
		out[i] = core.NewSphereCollider(mgl32.Vec3{float32(i), 0, 0}, 0.5)
	}
	return out
}

func TestGrowCapacity(t *testing.T) {
	cases := []struct{ capacity, count, want int }{
		{256, 0, 256},
		{256, 255, 256},
		{256, 256, 512},
		{256, 300, 512},
		{256, 1024, 2048},
		{0, 0, 1},
		{1, 5, 8},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, gpu.GrowCapacity(c.capacity, c.count), "cap=%d count=%d", c.capacity, c.count)
	}
	assert.Equal(t, uint32(128), gpu.GrowCapacity[uint32](128, 127))
}

func TestGrowableBuffer_CapacityAlwaysExceedsCount(t *testing.T) {
	rec := gputest.NewRecorder()
	buf, err := gpu.NewGrowableBuffer[core.SphereCollider](rec, "sphere_colliders", 4)
	require.NoError(t, err)

	for _, n := range []int{0, 3, 4, 9, 2, 31, 32, 0} {
		_, err := buf.Sync(spheres(n))
		require.NoError(t, err)
		assert.Greater(t, buf.Capacity(), buf.Count(), "after syncing %d", n)
		assert.Equal(t, n, buf.Count())
	}
	assert.Equal(t, 64, buf.Capacity())
	assert.Len(t, rec.LiveBuffers(), 1)
}

func TestGrowableBuffer_GrowthReleasesBeforeAllocating(t *testing.T) {
	rec := gputest.NewRecorder()
	buf, err := gpu.NewGrowableBuffer[core.SphereCollider](rec, "sphere_colliders", 256)
	require.NoError(t, err)
	first := buf.Handle()

	resized, err := buf.Sync(spheres(10))
	require.NoError(t, err)
	assert.False(t, resized)
	assert.Same(t, first, buf.Handle())

	rec.Reset()
	resized, err = buf.Sync(spheres(300))
	require.NoError(t, err)
	assert.True(t, resized)
	assert.Equal(t, 512, buf.Capacity())
	assert.NotSame(t, first, buf.Handle())

	kinds := []gputest.OpKind{}
	for _, op := range rec.Ops {
		kinds = append(kinds, op.Kind)
	}
	assert.Equal(t, []gputest.OpKind{gputest.OpReleaseBuffer, gputest.OpCreateBuffer, gputest.OpWriteBuffer}, kinds)

	live := buf.Handle().(*gputest.Buffer)
	assert.Len(t, live.Data, 300*48)
	assert.Equal(t, uint64(512*48), live.Size())
	assert.True(t, first.(*gputest.Buffer).Released)
}

func TestGrowableBuffer_AllocationFailure(t *testing.T) {
	rec := gputest.NewRecorder()
	buf, err := gpu.NewGrowableBuffer[core.ForceRecord](rec, "forces", 2)
	require.NoError(t, err)

	rec.FailBuffers = 0
	_, err = buf.Sync(make([]core.ForceRecord, 5))
	require.Error(t, err)
	assert.ErrorIs(t, err, gpu.ErrAllocation)
	assert.ErrorIs(t, err, gputest.ErrInjected)
	assert.Empty(t, rec.LiveBuffers())
	assert.Equal(t, 2, buf.Capacity())

	rec.FailBuffers = -1
	resized, err := buf.Sync(make([]core.ForceRecord, 1))
	require.NoError(t, err)
	assert.True(t, resized, "lost handle is reallocated")
	assert.Equal(t, 2, buf.Capacity())
	live := rec.LiveBuffers()
	require.Len(t, live, 1)
	assert.Equal(t, 2, live[0].Count)

	resized, err = buf.Sync(make([]core.ForceRecord, 5))
	require.NoError(t, err)
	assert.True(t, resized)
	assert.Equal(t, 8, buf.Capacity())
}
