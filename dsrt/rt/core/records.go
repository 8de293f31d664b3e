package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Record is a fixed-size little-endian structure mirrored by kernel code.
type Record interface {
	Stride() int
	AppendBytes(b []byte) []byte
}

type ColliderShape uint32

const (
	ShapeSphere ColliderShape = iota
	ShapeCapsule
	ShapeBox
)

func (s ColliderShape) String() string {
	switch s {
	case ShapeSphere:
		return "sphere"
	case ShapeCapsule:
		return "capsule"
	case ShapeBox:
		return "box"
	}
	return "unknown"
}

// Collider is implemented by the three collider record types.
type Collider interface {
	Record
	Shape() ColliderShape
	Header() ColliderInfo
}

// ColliderInfo is the shared 32 byte header.
// struct ColliderInfo { vec3 aabb_min; uint owner; vec3 aabb_max; uint shape; }
type ColliderInfo struct {
	AABBMin mgl32.Vec3
	Owner   uint32
	AABBMax mgl32.Vec3
	Shape   ColliderShape
}

func (i ColliderInfo) appendBytes(b []byte) []byte {
	b = appendVec3(b, i.AABBMin)
	b = appendU32(b, i.Owner)
	b = appendVec3(b, i.AABBMax)
	return appendU32(b, uint32(i.Shape))
}

type SphereCollider struct {
	Info   ColliderInfo
	Center mgl32.Vec3
	Radius float32
}

func NewSphereCollider(center mgl32.Vec3, radius float32) SphereCollider {
	r := mgl32.Vec3{radius, radius, radius}
	return SphereCollider{
		Info:   ColliderInfo{AABBMin: center.Sub(r), AABBMax: center.Add(r), Shape: ShapeSphere},
		Center: center,
		Radius: radius,
	}
}

func (SphereCollider) Stride() int            { return 48 }
func (SphereCollider) Shape() ColliderShape   { return ShapeSphere }
func (c SphereCollider) Header() ColliderInfo { return c.Info }

func (c SphereCollider) AppendBytes(b []byte) []byte {
	b = c.Info.appendBytes(b)
	b = appendVec3(b, c.Center)
	return appendF32(b, c.Radius)
}

type CapsuleCollider struct {
	Info   ColliderInfo
	PosA   mgl32.Vec3
	Radius float32
	PosB   mgl32.Vec3
}

func NewCapsuleCollider(a, b mgl32.Vec3, radius float32) CapsuleCollider {
	r := mgl32.Vec3{radius, radius, radius}
	lo := mgl32.Vec3{min(a[0], b[0]), min(a[1], b[1]), min(a[2], b[2])}
	hi := mgl32.Vec3{max(a[0], b[0]), max(a[1], b[1]), max(a[2], b[2])}
	return CapsuleCollider{
		Info:   ColliderInfo{AABBMin: lo.Sub(r), AABBMax: hi.Add(r), Shape: ShapeCapsule},
		PosA:   a,
		Radius: radius,
		PosB:   b,
	}
}

func (CapsuleCollider) Stride() int            { return 64 }
func (CapsuleCollider) Shape() ColliderShape   { return ShapeCapsule }
func (c CapsuleCollider) Header() ColliderInfo { return c.Info }

func (c CapsuleCollider) AppendBytes(b []byte) []byte {
	b = c.Info.appendBytes(b)
	b = appendVec3(b, c.PosA)
	b = appendF32(b, c.Radius)
	return appendVec3Padded(b, c.PosB)
}

// BoxCollider stores an oriented box as six outward planes (n, d) with
// dot(n, p) + d <= 0 for points inside.
type BoxCollider struct {
	Info   ColliderInfo
	Center mgl32.Vec3
	Planes [6]mgl32.Vec4
}

// NewBoxCollider builds a box of the given full size transformed by trs.
func NewBoxCollider(trs mgl32.Mat4, size mgl32.Vec3) BoxCollider {
	center := trs.Col(3).Vec3()
	box := BoxCollider{Center: center}

	for axis := 0; axis < 3; axis++ {
		col := trs.Col(axis).Vec3()
		scale := col.Len()
		n := mgl32.Vec3{}
		if scale > 0 {
			n = col.Mul(1 / scale)
		}
		half := size[axis] * 0.5 * scale
		dc := n.Dot(center)
		box.Planes[axis*2] = n.Vec4(-dc - half)
		box.Planes[axis*2+1] = n.Mul(-1).Vec4(dc - half)
	}

	lo := mgl32.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	hi := lo.Mul(-1)
	for i := 0; i < 8; i++ {
		corner := mgl32.Vec3{
			size[0] * (float32(i&1) - 0.5),
			size[1] * (float32((i>>1)&1) - 0.5),
			size[2] * (float32((i>>2)&1) - 0.5),
		}
		p := mgl32.TransformCoordinate(corner, trs)
		for k := 0; k < 3; k++ {
			lo[k] = min(lo[k], p[k])
			hi[k] = max(hi[k], p[k])
		}
	}
	box.Info = ColliderInfo{AABBMin: lo, AABBMax: hi, Shape: ShapeBox}
	return box
}

func (BoxCollider) Stride() int            { return 144 }
func (BoxCollider) Shape() ColliderShape   { return ShapeBox }
func (c BoxCollider) Header() ColliderInfo { return c.Info }

// Contains reports whether p lies inside every plane.
func (c BoxCollider) Contains(p mgl32.Vec3) bool {
	for _, pl := range c.Planes {
		if pl.Vec3().Dot(p)+pl[3] > 0 {
			return false
		}
	}
	return true
}

func (c BoxCollider) AppendBytes(b []byte) []byte {
	b = c.Info.appendBytes(b)
	b = appendVec3Padded(b, c.Center)
	for _, p := range c.Planes {
		b = appendVec4(b, p)
	}
	return b
}

type ForceShape uint32

const (
	ForceShapeAll ForceShape = iota
	ForceShapeSphere
)

type ForceDirection uint32

const (
	ForceDirectional ForceDirection = iota
	ForceRadial
)

// ForceRecord is a 48 byte force field description.
type ForceRecord struct {
	Shape         ForceShape
	Direction     ForceDirection
	Strength      float32
	RandomDiffuse float32
	Center        mgl32.Vec3
	Radius        float32
	Dir           mgl32.Vec3
}

func (ForceRecord) Stride() int { return 48 }

func (f ForceRecord) AppendBytes(b []byte) []byte {
	b = appendU32(b, uint32(f.Shape))
	b = appendU32(b, uint32(f.Direction))
	b = appendF32(b, f.Strength)
	b = appendF32(b, f.RandomDiffuse)
	b = appendVec3(b, f.Center)
	b = appendF32(b, f.Radius)
	return appendVec3Padded(b, f.Dir)
}

// Affects reports whether a point is inside the force volume.
func (f ForceRecord) Affects(p mgl32.Vec3) bool {
	if f.Shape == ForceShapeAll {
		return true
	}
	return p.Sub(f.Center).Len() <= f.Radius
}

// Acceleration returns the force contribution at p, ignoring diffusion.
func (f ForceRecord) Acceleration(p mgl32.Vec3) mgl32.Vec3 {
	if !f.Affects(p) {
		return mgl32.Vec3{}
	}
	if f.Direction == ForceRadial {
		d := p.Sub(f.Center)
		if d.Len() == 0 {
			return mgl32.Vec3{}
		}
		return d.Normalize().Mul(f.Strength)
	}
	return f.Dir.Mul(f.Strength)
}

// ColliderCounts are the logical element counts visible to kernels.
type ColliderCounts struct {
	Spheres  int
	Capsules int
	Boxes    int
	Forces   int
}

// Snapshot is the per-frame host copy of every collider and force.
type Snapshot struct {
	Spheres  []SphereCollider
	Capsules []CapsuleCollider
	Boxes    []BoxCollider
	Forces   []ForceRecord
}

func (s Snapshot) Counts() ColliderCounts {
	return ColliderCounts{
		Spheres:  len(s.Spheres),
		Capsules: len(s.Capsules),
		Boxes:    len(s.Boxes),
		Forces:   len(s.Forces),
	}
}
