package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecords_EncodedSizeMatchesStride(t *testing.T) {
	records := []Record{
		NewSphereCollider(mgl32.Vec3{1, 2, 3}, 0.5),
		NewCapsuleCollider(mgl32.Vec3{}, mgl32.Vec3{0, 2, 0}, 0.25),
		NewBoxCollider(mgl32.Ident4(), mgl32.Vec3{1, 1, 1}),
		ForceRecord{Strength: 9.8, Dir: mgl32.Vec3{0, -1, 0}},
		Particle{},
		ParticleSpawn{},
		SimParams{},
		Vertex{},
	}
	for _, r := range records {
		assert.Len(t, r.AppendBytes(nil), r.Stride(), "%T", r)
		assert.Zero(t, r.Stride()%4, "%T", r)
	}
}

func TestEncodeRecords_PacksBackToBack(t *testing.T) {
	spheres := []SphereCollider{
		NewSphereCollider(mgl32.Vec3{}, 1),
		NewSphereCollider(mgl32.Vec3{5, 0, 0}, 2),
	}
	data := EncodeRecords(spheres)
	require.Len(t, data, 96)
	assert.Equal(t, spheres[1].AppendBytes(nil), data[48:])
	assert.Nil(t, EncodeRecords([]SphereCollider{}))
}

func TestNewBoxCollider_PlanesAndBounds(t *testing.T) {
	trs := mgl32.Translate3D(10, 0, 0).Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(45)))
	box := NewBoxCollider(trs, mgl32.Vec3{2, 2, 2})

	assert.True(t, box.Contains(mgl32.Vec3{10, 0, 0}))
	assert.True(t, box.Contains(mgl32.Vec3{10.9, 0.9, 0}))
	assert.False(t, box.Contains(mgl32.Vec3{12, 0, 0}))
	assert.False(t, box.Contains(mgl32.Vec3{10, 1.5, 0}))

	assert.InDelta(t, 10-1.4142, box.Info.AABBMin.X(), 1e-3)
	assert.InDelta(t, 10+1.4142, box.Info.AABBMax.X(), 1e-3)
	assert.Equal(t, ShapeBox, box.Header().Shape)
}

func TestForceRecord_Acceleration(t *testing.T) {
	dir := ForceRecord{Shape: ForceShapeAll, Strength: 2, Dir: mgl32.Vec3{0, -1, 0}}
	assert.Equal(t, mgl32.Vec3{0, -2, 0}, dir.Acceleration(mgl32.Vec3{100, 0, 0}))

	radial := ForceRecord{Shape: ForceShapeSphere, Direction: ForceRadial, Strength: 3, Radius: 1}
	assert.Equal(t, mgl32.Vec3{3, 0, 0}, radial.Acceleration(mgl32.Vec3{0.5, 0, 0}))
	assert.Equal(t, mgl32.Vec3{}, radial.Acceleration(mgl32.Vec3{2, 0, 0}))
}

func TestCubeVertices(t *testing.T) {
	verts := CubeVertices(0.05)
	require.Len(t, verts, 36)
	for _, v := range verts {
		for k := 0; k < 3; k++ {
			assert.InDelta(t, 0.05, abs32(v.Position[k]), 1e-7)
		}
		assert.InDelta(t, 1, v.Normal.Len(), 1e-6)
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
