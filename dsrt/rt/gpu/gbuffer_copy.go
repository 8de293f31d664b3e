package gpu

import (
	"fmt"

	"github.com/Hengle/DeferredShading/dsrt/rt/core"
)

// GBufferCopy holds the pipeline-owned snapshot of the normal and position
// surfaces that collision kernels sample.
type GBufferCopy struct {
	targets  TargetBackend
	format   Format
	log      core.Logger
	normal   Generation[Surface]
	position Generation[Surface]

	width, height int
	lastFrame     uint64
	copied        bool
	copies        int
}

func NewGBufferCopy(targets TargetBackend, format Format, log core.Logger) *GBufferCopy {
	return &GBufferCopy{targets: targets, format: format, log: core.OrNop(log)}
}

// EnsureCapacity reallocates both surfaces when the primary size or format
// changed.
func (c *GBufferCopy) EnsureCapacity(width, height int, format Format) (bool, error) {
	if c.Ready() && c.width == width && c.height == height && c.format == format {
		return false, nil
	}
	c.Release()
	c.format = format
	for _, slot := range []struct {
		g     *Generation[Surface]
		label string
	}{{&c.normal, "gbuffer_copy.normal"}, {&c.position, "gbuffer_copy.position"}} {
		s, err := c.targets.CreateSurface(SurfaceDesc{Label: slot.label, Width: width, Height: height, Format: format})
		if err != nil {
			c.Release()
			return false, fmt.Errorf("%s %dx%d: %w: %w", slot.label, width, height, ErrAllocation, err)
		}
		slot.g.Replace(s)
	}
	c.width, c.height = width, height
	c.log.Debugf("gbuffer copy: allocated %dx%d", width, height)
	return true, nil
}

// Copy snapshots src for the given frame. A second call within the same
// frame is ignored and reports false.
func (c *GBufferCopy) Copy(frame uint64, src *RenderTargetSet) bool {
	if !c.Ready() || (c.copied && c.lastFrame == frame) {
		return false
	}
	c.targets.Blit(src.Normal(), c.normal.Handle())
	c.targets.Blit(src.Position(), c.position.Handle())
	c.lastFrame = frame
	c.copied = true
	c.copies++
	return true
}

func (c *GBufferCopy) Ready() bool {
	return c.normal.Live() && c.position.Live()
}

func (c *GBufferCopy) Normal() Surface   { return c.normal.Handle() }
func (c *GBufferCopy) Position() Surface { return c.position.Handle() }
func (c *GBufferCopy) Copies() int       { return c.copies }
func (c *GBufferCopy) Size() (int, int)  { return c.width, c.height }

func (c *GBufferCopy) Release() {
	c.normal.Release()
	c.position.Release()
}
