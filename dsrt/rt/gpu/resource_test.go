package gpu_test

import (
	"testing"

	"github.com/Hengle/DeferredShading/dsrt/rt/gpu"
	"github.com/stretchr/testify/assert"
)

type countedHandle struct {
	releases int
}

func (h *countedHandle) Release() { h.releases++ }

func TestGeneration_ReplaceReleasesPrevious(t *testing.T) {
	var g gpu.Generation[*countedHandle]
	a, b := &countedHandle{}, &countedHandle{}

	g.Replace(a)
	assert.Equal(t, uint64(1), g.Gen())
	assert.Same(t, a, g.Handle())

	g.Replace(b)
	assert.Equal(t, 1, a.releases)
	assert.Equal(t, 0, b.releases)
	assert.Equal(t, uint64(2), g.Gen())

	g.Release()
	g.Release()
	assert.Equal(t, 1, b.releases)
	assert.False(t, g.Live())
	_, ok := g.Get()
	assert.False(t, ok)
}

func TestGeneration_SwapKeepsBothAlive(t *testing.T) {
	var x, y gpu.Generation[*countedHandle]
	a, b := &countedHandle{}, &countedHandle{}
	x.Replace(a)
	y.Replace(b)

	gpu.Swap(&x, &y)

	assert.Same(t, b, x.Handle())
	assert.Same(t, a, y.Handle())
	assert.Zero(t, a.releases)
	assert.Zero(t, b.releases)
}
