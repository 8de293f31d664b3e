package core

import "github.com/go-gl/mathgl/mgl32"

// Particle matches the per-particle struct read by every simulation kernel.
// struct Particle { vec3 position; float lifetime; vec3 velocity; float density; float pressure; int hit; uint owner; float pad; }
type Particle struct {
	Position mgl32.Vec3
	Lifetime float32
	Velocity mgl32.Vec3
	Density  float32
	Pressure float32
	Hit      int32
	Owner    uint32
}

func (Particle) Stride() int { return 48 }

func (p Particle) AppendBytes(b []byte) []byte {
	b = appendVec3(b, p.Position)
	b = appendF32(b, p.Lifetime)
	b = appendVec3(b, p.Velocity)
	b = appendF32(b, p.Density)
	b = appendF32(b, p.Pressure)
	b = appendU32(b, uint32(p.Hit))
	b = appendU32(b, p.Owner)
	return appendF32(b, 0)
}

// ParticleSpawn is one pending emission consumed by AddParticles.
type ParticleSpawn struct {
	Position mgl32.Vec3
	Lifetime float32
	Velocity mgl32.Vec3
}

func (ParticleSpawn) Stride() int { return 32 }

func (s ParticleSpawn) AppendBytes(b []byte) []byte {
	b = appendVec3(b, s.Position)
	b = appendF32(b, s.Lifetime)
	return appendVec3Padded(b, s.Velocity)
}

// SimParams is the per-set uniform block written before the first dispatch.
type SimParams struct {
	ViewProj          mgl32.Mat4
	RTSize            [2]float32
	DeltaTime         float32
	MaxParticles      uint32
	SpawnCount        uint32
	Counts            ColliderCounts
	ParticleRadius    float32
	PressureStiffness float32
	RestDensity       float32
	Viscosity         float32
	Damping           float32
	WallStiffness     float32
	GridCellSize      float32
	GridCells         uint32
	Dimension         uint32
}

func (SimParams) Stride() int { return 144 }

func (p SimParams) AppendBytes(b []byte) []byte {
	b = appendMat4(b, p.ViewProj)
	b = appendF32(b, p.RTSize[0])
	b = appendF32(b, p.RTSize[1])
	b = appendF32(b, p.DeltaTime)
	b = appendU32(b, p.MaxParticles)

	b = appendU32(b, p.SpawnCount)
	b = appendU32(b, uint32(p.Counts.Spheres))
	b = appendU32(b, uint32(p.Counts.Capsules))
	b = appendU32(b, uint32(p.Counts.Boxes))

	b = appendU32(b, uint32(p.Counts.Forces))
	b = appendF32(b, p.ParticleRadius)
	b = appendF32(b, p.PressureStiffness)
	b = appendF32(b, p.RestDensity)

	b = appendF32(b, p.Viscosity)
	b = appendF32(b, p.Damping)
	b = appendF32(b, p.WallStiffness)
	b = appendF32(b, p.GridCellSize)

	b = appendU32(b, p.GridCells)
	b = appendU32(b, p.Dimension)
	b = appendU32(b, 0)
	return appendU32(b, 0)
}

// Vertex is the packed position/normal layout of the particle mesh.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
}

func (Vertex) Stride() int { return 24 }

func (v Vertex) AppendBytes(b []byte) []byte {
	return appendVec3(appendVec3(b, v.Position), v.Normal)
}

// CubeVertices returns the 36 vertex triangle list of an axis aligned cube
// with the given half extent.
func CubeVertices(s float32) []Vertex {
	positions := [24]mgl32.Vec3{
		{-s, -s, s}, {s, -s, s}, {s, s, s}, {-s, s, s},
		{-s, s, s}, {s, s, s}, {s, s, -s}, {-s, s, -s},
		{-s, s, -s}, {s, s, -s}, {s, -s, -s}, {-s, -s, -s},
		{-s, -s, -s}, {s, -s, -s}, {s, -s, s}, {-s, -s, s},
		{-s, -s, -s}, {-s, -s, s}, {-s, s, s}, {-s, s, -s},
		{s, -s, s}, {s, -s, -s}, {s, s, -s}, {s, s, s},
	}
	normals := [6]mgl32.Vec3{
		{0, 0, 1}, {0, 1, 0}, {0, 0, -1}, {0, -1, 0}, {-1, 0, 0}, {1, 0, 0},
	}
	quad := [6]int{0, 1, 3, 3, 1, 2}

	out := make([]Vertex, 0, 36)
	for face := 0; face < 6; face++ {
		for _, q := range quad {
			out = append(out, Vertex{Position: positions[face*4+q], Normal: normals[face]})
		}
	}
	return out
}
