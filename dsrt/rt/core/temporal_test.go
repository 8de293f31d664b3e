package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestAdaptProjection_BlendsThirdRow(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(60), 16.0/9.0, 0.1, 100)
	adapted := AdaptProjection(proj)

	for col := 0; col < 4; col++ {
		want := proj.At(2, col)*0.5 + proj.At(3, col)*0.5
		assert.InDelta(t, want, adapted.At(2, col), 1e-6, "col %d", col)
		assert.Equal(t, proj.At(0, col), adapted.At(0, col))
		assert.Equal(t, proj.At(1, col), adapted.At(1, col))
		assert.Equal(t, proj.At(3, col), adapted.At(3, col))
	}
}

func TestAdaptProjection_MapsDepthToUnitRange(t *testing.T) {
	near, far := float32(0.5), float32(50)
	proj := AdaptProjection(mgl32.Perspective(mgl32.DegToRad(70), 1, near, far))

	pNear := proj.Mul4x1(mgl32.Vec4{0, 0, -near, 1})
	pFar := proj.Mul4x1(mgl32.Vec4{0, 0, -far, 1})

	assert.InDelta(t, 0, pNear.Z()/pNear.W(), 1e-5)
	assert.InDelta(t, 1, pFar.Z()/pFar.W(), 1e-4)
}

func TestTemporalMatrices_UpdateStashesPrevious(t *testing.T) {
	cam := NewCameraState(1920, 1080)
	var tm TemporalMatrices

	tm.Update(cam)
	first := tm.ViewProj
	firstInv := tm.ViewProjInv
	assert.Equal(t, mgl32.Mat4{}, tm.PrevViewProj)

	cam.Position = cam.Position.Add(mgl32.Vec3{1, 0, 0})
	tm.Update(cam)

	assert.Equal(t, first, tm.PrevViewProj)
	assert.Equal(t, firstInv, tm.PrevViewProjInv)
	assert.NotEqual(t, first, tm.ViewProj)
	assert.True(t, tm.ViewProj.Mul4(tm.ViewProjInv).ApproxEqualThreshold(mgl32.Ident4(), 1e-4))
}

func TestCameraState_PixelSize(t *testing.T) {
	cam := NewCameraState(800, 600)
	w, h := cam.PixelSize()
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)

	cam.Resize(1024, 768)
	w, h = cam.PixelSize()
	assert.Equal(t, 1024, w)
	assert.Equal(t, 768, h)
}
