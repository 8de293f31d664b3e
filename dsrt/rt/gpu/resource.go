package gpu

type Releaser interface {
	Release()
}

// Generation owns at most one live device handle. Replace and Swap are the
// only mutations; every Replace bumps the generation counter so holders can
// detect that a previously read handle is stale.
type Generation[H Releaser] struct {
	handle H
	live   bool
	gen    uint64
}

// Replace releases the current handle, if any, and takes ownership of h.
func (g *Generation[H]) Replace(h H) {
	g.Release()
	g.handle = h
	g.live = true
	g.gen++
}

// Release drops the live handle without installing a new one.
func (g *Generation[H]) Release() {
	if g.live {
		g.handle.Release()
		var zero H
		g.handle = zero
		g.live = false
	}
}

func (g *Generation[H]) Get() (H, bool) {
	return g.handle, g.live
}

// Handle returns the live handle or the zero value.
func (g *Generation[H]) Handle() H {
	return g.handle
}

func (g *Generation[H]) Live() bool {
	return g.live
}

func (g *Generation[H]) Gen() uint64 {
	return g.gen
}

// Swap exchanges ownership of two wrappers without releasing anything.
func Swap[H Releaser](a, b *Generation[H]) {
	*a, *b = *b, *a
}
