package core

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Helpers appending little-endian device layouts. Vec3 fields occupy 16 bytes
// unless the caller packs a scalar into the fourth lane.

func appendF32(b []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
}

func appendU32(b []byte, v uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, v)
}

func appendVec3(b []byte, v mgl32.Vec3) []byte {
	b = appendF32(b, v[0])
	b = appendF32(b, v[1])
	return appendF32(b, v[2])
}

func appendVec3Padded(b []byte, v mgl32.Vec3) []byte {
	return appendF32(appendVec3(b, v), 0)
}

func appendVec4(b []byte, v mgl32.Vec4) []byte {
	for _, f := range v {
		b = appendF32(b, f)
	}
	return b
}

func appendMat4(b []byte, m mgl32.Mat4) []byte {
	for _, f := range m {
		b = appendF32(b, f)
	}
	return b
}

// EncodeRecords packs items back to back using their fixed strides.
func EncodeRecords[T Record](items []T) []byte {
	if len(items) == 0 {
		return nil
	}
	out := make([]byte, 0, len(items)*items[0].Stride())
	for _, it := range items {
		out = it.AppendBytes(out)
	}
	return out
}
