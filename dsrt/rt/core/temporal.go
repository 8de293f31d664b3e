package core

import "github.com/go-gl/mathgl/mgl32"

// TemporalMatrices holds the current and previous frame view-projection.
// The previous pair always describes the frame before the current one.
type TemporalMatrices struct {
	ViewProj        mgl32.Mat4
	ViewProjInv     mgl32.Mat4
	PrevViewProj    mgl32.Mat4
	PrevViewProjInv mgl32.Mat4
}

// AdaptProjection remaps clip depth from [-w, w] to [0, w] by replacing the
// third row with the average of the third and fourth rows.
func AdaptProjection(proj mgl32.Mat4) mgl32.Mat4 {
	for col := 0; col < 4; col++ {
		proj.Set(2, col, proj.At(2, col)*0.5+proj.At(3, col)*0.5)
	}
	return proj
}

// AdaptedViewProj composes the adapted projection with the view matrix.
func AdaptedViewProj(cam Camera) mgl32.Mat4 {
	return AdaptProjection(cam.ProjectionMatrix()).Mul4(cam.ViewMatrix())
}

// Update stashes the outgoing matrices as previous and computes the new pair.
func (t *TemporalMatrices) Update(cam Camera) {
	t.PrevViewProj = t.ViewProj
	t.PrevViewProjInv = t.ViewProjInv
	t.ViewProj = AdaptedViewProj(cam)
	t.ViewProjInv = t.ViewProj.Inv()
}
