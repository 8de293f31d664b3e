package gpu

import "errors"

var (
	ErrAllocation     = errors.New("gpu: allocation failed")
	ErrKernelNotFound = errors.New("gpu: kernel not found")
)

type Format uint32

const (
	FormatRGBA16Float Format = iota
	FormatRGBA32Float
	FormatRGBA8Unorm
)

func (f Format) String() string {
	switch f {
	case FormatRGBA16Float:
		return "rgba16float"
	case FormatRGBA32Float:
		return "rgba32float"
	case FormatRGBA8Unorm:
		return "rgba8unorm"
	}
	return "unknown"
}

// ParseFormat accepts the config spellings float16, float32 and rgba8.
func ParseFormat(s string) (Format, bool) {
	switch s {
	case "float16", "half", "rgba16float":
		return FormatRGBA16Float, true
	case "float32", "float", "rgba32float":
		return FormatRGBA32Float, true
	case "rgba8", "rgba8unorm":
		return FormatRGBA8Unorm, true
	}
	return 0, false
}

// SurfaceDesc describes a 2D render surface. DepthBits > 0 attaches a depth
// plane to the surface.
type SurfaceDesc struct {
	Label     string
	Width     int
	Height    int
	DepthBits int
	Format    Format
}

type Surface interface {
	Width() int
	Height() int
	Release()
}

type Buffer interface {
	Size() uint64
	Release()
}

type Kernel interface {
	Name() string
}

// Device allocates and fills linear buffers.
type Device interface {
	CreateBuffer(label string, count, stride int) (Buffer, error)
	WriteBuffer(buf Buffer, data []byte)
}

// ComputeBackend issues kernel work on the frame command stream. Bindings set
// with SetBuffer/SetTexture are consumed by the next Dispatch of that kernel.
type ComputeBackend interface {
	FindKernel(name string) (Kernel, error)
	SetBuffer(k Kernel, name string, buf Buffer)
	SetTexture(k Kernel, name string, s Surface)
	Dispatch(k Kernel, x, y, z uint32)
	Barrier()
}

// TargetBackend owns render surfaces and the currently bound target set.
type TargetBackend interface {
	CreateSurface(desc SurfaceDesc) (Surface, error)
	BindTargets(colors []Surface, depth Surface)
	Clear(color, depth bool)
	Blit(src, dst Surface)
	WriteSurface(dst Surface, pix []byte)
}
