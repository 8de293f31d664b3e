package gpu

import (
	"fmt"

	"github.com/Hengle/DeferredShading/dsrt/rt/core"
)

const (
	GBufferNormal = iota
	GBufferPosition
	GBufferAlbedo
	GBufferEmission
	gbufferSlots
)

var gbufferNames = [gbufferSlots]string{"normal", "position", "albedo", "emission"}

// RenderTargetSet is one G-buffer generation. Depth lives on the normal
// surface.
type RenderTargetSet struct {
	slots [gbufferSlots]Generation[Surface]
}

func (s *RenderTargetSet) Normal() Surface   { return s.slots[GBufferNormal].Handle() }
func (s *RenderTargetSet) Position() Surface { return s.slots[GBufferPosition].Handle() }
func (s *RenderTargetSet) Albedo() Surface   { return s.slots[GBufferAlbedo].Handle() }
func (s *RenderTargetSet) Emission() Surface { return s.slots[GBufferEmission].Handle() }
func (s *RenderTargetSet) Depth() Surface    { return s.Normal() }

// Colors returns the four color surfaces in binding order.
func (s *RenderTargetSet) Colors() []Surface {
	out := make([]Surface, gbufferSlots)
	for i := range s.slots {
		out[i] = s.slots[i].Handle()
	}
	return out
}

func (s *RenderTargetSet) release() {
	for i := range s.slots {
		s.slots[i].Release()
	}
}

// CompositeBuffer is the lighting accumulation pair.
type CompositeBuffer struct {
	front Generation[Surface]
	back  Generation[Surface]
}

func (c *CompositeBuffer) Front() Surface { return c.front.Handle() }
func (c *CompositeBuffer) Back() Surface  { return c.back.Handle() }

func (c *CompositeBuffer) release() {
	c.front.Release()
	c.back.Release()
}

// GBufferManager owns the double-buffered G-buffer, the composite pair and
// the temporal matrices.
type GBufferManager struct {
	Matrices core.TemporalMatrices

	targets   TargetBackend
	format    Format
	log       core.Logger
	current   *RenderTargetSet
	previous  *RenderTargetSet
	composite CompositeBuffer

	width, height int
	allocated     bool
	generation    uint64
}

func NewGBufferManager(targets TargetBackend, format Format, log core.Logger) *GBufferManager {
	return &GBufferManager{
		targets:  targets,
		format:   format,
		log:      core.OrNop(log),
		current:  &RenderTargetSet{},
		previous: &RenderTargetSet{},
	}
}

// EnsureCapacity reallocates every surface when the requested size differs
// from the stored one. It reports whether an allocation happened.
func (m *GBufferManager) EnsureCapacity(width, height int) (bool, error) {
	if width <= 0 || height <= 0 {
		return false, fmt.Errorf("gbuffer %dx%d: %w", width, height, ErrAllocation)
	}
	if m.allocated && m.width == width && m.height == height {
		return false, nil
	}

	m.release()
	sets := [2]*RenderTargetSet{m.current, m.previous}
	for si, set := range sets {
		for slot := range set.slots {
			desc := SurfaceDesc{
				Label:  fmt.Sprintf("gbuffer.%s.%d", gbufferNames[slot], si),
				Width:  width,
				Height: height,
				Format: m.format,
			}
			if slot == GBufferNormal {
				desc.DepthBits = 32
			}
			if err := m.createInto(&set.slots[slot], desc); err != nil {
				return false, err
			}
		}
	}
	for i, g := range []*Generation[Surface]{&m.composite.front, &m.composite.back} {
		desc := SurfaceDesc{
			Label:  fmt.Sprintf("composite.%d", i),
			Width:  width,
			Height: height,
			Format: m.format,
		}
		if err := m.createInto(g, desc); err != nil {
			return false, err
		}
	}

	m.width, m.height = width, height
	m.allocated = true
	m.generation++
	m.log.Infof("gbuffer: allocated %dx%d %s (generation %d)", width, height, m.format, m.generation)
	return true, nil
}

func (m *GBufferManager) createInto(g *Generation[Surface], desc SurfaceDesc) error {
	s, err := m.targets.CreateSurface(desc)
	if err != nil {
		m.release()
		return fmt.Errorf("gbuffer %s %dx%d: %w: %w", desc.Label, desc.Width, desc.Height, ErrAllocation, err)
	}
	g.Replace(s)
	return nil
}

// SetFormat changes the pixel format; surfaces are reallocated by the next
// EnsureCapacity.
func (m *GBufferManager) SetFormat(f Format) {
	if f == m.format {
		return
	}
	m.format = f
	m.allocated = false
}

// BeginFrame swaps current and previous and binds the new current set.
func (m *GBufferManager) BeginFrame() {
	if !m.allocated {
		return
	}
	m.current, m.previous = m.previous, m.current
	m.BindGBuffer()
}

func (m *GBufferManager) ComputeTemporalMatrices(cam core.Camera) {
	m.Matrices.Update(cam)
}

// BindGBuffer binds the current color set and its depth plane.
func (m *GBufferManager) BindGBuffer() {
	m.targets.BindTargets(m.current.Colors(), m.current.Depth())
}

// BindComposite binds the front composite surface with the G-buffer depth.
func (m *GBufferManager) BindComposite() {
	m.targets.BindTargets([]Surface{m.composite.Front()}, m.current.Depth())
}

// ClearComposite clears the front composite color, then binds it for
// lighting with the G-buffer depth.
func (m *GBufferManager) ClearComposite() {
	m.targets.BindTargets([]Surface{m.composite.Front()}, nil)
	m.targets.Clear(true, false)
	m.BindComposite()
}

// CopyFramebuffer blits front into back and returns back for sampling.
func (m *GBufferManager) CopyFramebuffer() Surface {
	m.targets.Blit(m.composite.Front(), m.composite.Back())
	return m.composite.Back()
}

// SwapFramebuffer exchanges front and back, rebinds the new front and
// returns the old one.
func (m *GBufferManager) SwapFramebuffer() Surface {
	Swap(&m.composite.front, &m.composite.back)
	m.BindComposite()
	return m.composite.Back()
}

func (m *GBufferManager) Current() *RenderTargetSet   { return m.current }
func (m *GBufferManager) Previous() *RenderTargetSet  { return m.previous }
func (m *GBufferManager) Composite() *CompositeBuffer { return &m.composite }
func (m *GBufferManager) Size() (int, int)            { return m.width, m.height }
func (m *GBufferManager) Allocated() bool             { return m.allocated }
func (m *GBufferManager) Generation() uint64          { return m.generation }
func (m *GBufferManager) Format() Format              { return m.format }

func (m *GBufferManager) release() {
	m.current.release()
	m.previous.release()
	m.composite.release()
	m.allocated = false
}

func (m *GBufferManager) Release() {
	m.release()
	m.width, m.height = 0, 0
}
