// Package gputest provides an in-memory recording implementation of the
// gpu backend contracts for tests.
package gputest

import (
	"errors"
	"fmt"

	"github.com/Hengle/DeferredShading/dsrt/rt/gpu"
)

var ErrInjected = errors.New("gputest: injected failure")

type OpKind string

const (
	OpCreateBuffer  OpKind = "create-buffer"
	OpReleaseBuffer OpKind = "release-buffer"
	OpWriteBuffer   OpKind = "write-buffer"
	OpSetBuffer     OpKind = "set-buffer"
	OpSetTexture    OpKind = "set-texture"
	OpDispatch      OpKind = "dispatch"
	OpBarrier       OpKind = "barrier"
	OpCreateSurface OpKind = "create-surface"
	OpRelease       OpKind = "release-surface"
	OpBind          OpKind = "bind"
	OpClear         OpKind = "clear"
	OpBlit          OpKind = "blit"
	OpWriteSurface  OpKind = "write-surface"
)

// Op is one recorded backend call. Name carries the kernel, label or binding
// name depending on the kind.
type Op struct {
	Kind    OpKind
	Name    string
	Kernel  string
	ID      int
	Groups  [3]uint32
	Targets []int
	Depth   int
}

type Buffer struct {
	ID       int
	Label    string
	Count    int
	Stride   int
	Data     []byte
	Released bool
	rec      *Recorder
}

func (b *Buffer) Size() uint64 { return uint64(b.Count * b.Stride) }

func (b *Buffer) Release() {
	if b.Released {
		panic(fmt.Sprintf("gputest: buffer %d (%s) released twice", b.ID, b.Label))
	}
	b.Released = true
	b.rec.record(Op{Kind: OpReleaseBuffer, Name: b.Label, ID: b.ID})
}

type Surface struct {
	ID       int
	Desc     gpu.SurfaceDesc
	Released bool
	Pixels   []byte
	rec      *Recorder
}

func (s *Surface) Width() int  { return s.Desc.Width }
func (s *Surface) Height() int { return s.Desc.Height }

func (s *Surface) Release() {
	if s.Released {
		panic(fmt.Sprintf("gputest: surface %d (%s) released twice", s.ID, s.Desc.Label))
	}
	s.Released = true
	s.rec.record(Op{Kind: OpRelease, Name: s.Desc.Label, ID: s.ID})
}

type Kernel struct {
	name     string
	bindings map[string]int
}

func (k *Kernel) Name() string { return k.name }

// Recorder implements gpu.Device, gpu.ComputeBackend and gpu.TargetBackend.
type Recorder struct {
	Ops []Op

	// FailBuffers/FailSurfaces make the matching Create call fail once the
	// given number of successful creations has been reached. Negative
	// disables injection.
	FailBuffers  int
	FailSurfaces int
	// MissingKernels makes FindKernel fail for the named kernels.
	MissingKernels map[string]bool

	nextID   int
	buffers  []*Buffer
	surfaces []*Surface
	kernels  map[string]*Kernel
	bound    []int
}

func NewRecorder() *Recorder {
	return &Recorder{
		FailBuffers:  -1,
		FailSurfaces: -1,
		kernels:      make(map[string]*Kernel),
	}
}

func (r *Recorder) record(op Op) {
	r.Ops = append(r.Ops, op)
}

func (r *Recorder) CreateBuffer(label string, count, stride int) (gpu.Buffer, error) {
	if r.FailBuffers == 0 {
		return nil, ErrInjected
	}
	if r.FailBuffers > 0 {
		r.FailBuffers--
	}
	r.nextID++
	b := &Buffer{ID: r.nextID, Label: label, Count: count, Stride: stride, rec: r}
	r.buffers = append(r.buffers, b)
	r.record(Op{Kind: OpCreateBuffer, Name: label, ID: b.ID})
	return b, nil
}

func (r *Recorder) WriteBuffer(buf gpu.Buffer, data []byte) {
	b := buf.(*Buffer)
	if b.Released {
		panic(fmt.Sprintf("gputest: write to released buffer %d (%s)", b.ID, b.Label))
	}
	if uint64(len(data)) > b.Size() {
		panic(fmt.Sprintf("gputest: write of %d bytes overflows %s (%d bytes)", len(data), b.Label, b.Size()))
	}
	b.Data = append(b.Data[:0], data...)
	r.record(Op{Kind: OpWriteBuffer, Name: b.Label, ID: b.ID})
}

func (r *Recorder) FindKernel(name string) (gpu.Kernel, error) {
	if r.MissingKernels[name] {
		return nil, fmt.Errorf("%s: %w", name, gpu.ErrKernelNotFound)
	}
	k, ok := r.kernels[name]
	if !ok {
		k = &Kernel{name: name, bindings: make(map[string]int)}
		r.kernels[name] = k
	}
	return k, nil
}

func (r *Recorder) SetBuffer(k gpu.Kernel, name string, buf gpu.Buffer) {
	kk := k.(*Kernel)
	id := 0
	if b, ok := buf.(*Buffer); ok && b != nil {
		id = b.ID
	}
	kk.bindings[name] = id
	r.record(Op{Kind: OpSetBuffer, Kernel: kk.name, Name: name, ID: id})
}

func (r *Recorder) SetTexture(k gpu.Kernel, name string, s gpu.Surface) {
	kk := k.(*Kernel)
	id := 0
	if ss, ok := s.(*Surface); ok && ss != nil {
		id = ss.ID
	}
	kk.bindings[name] = id
	r.record(Op{Kind: OpSetTexture, Kernel: kk.name, Name: name, ID: id})
}

func (r *Recorder) Dispatch(k gpu.Kernel, x, y, z uint32) {
	kk := k.(*Kernel)
	for name, id := range kk.bindings {
		if r.isReleased(id) {
			panic(fmt.Sprintf("gputest: %s dispatched with released %s (%d)", kk.name, name, id))
		}
	}
	r.record(Op{Kind: OpDispatch, Kernel: kk.name, Name: kk.name, Groups: [3]uint32{x, y, z}})
}

func (r *Recorder) Barrier() {
	r.record(Op{Kind: OpBarrier})
}

func (r *Recorder) CreateSurface(desc gpu.SurfaceDesc) (gpu.Surface, error) {
	if r.FailSurfaces == 0 {
		return nil, ErrInjected
	}
	if r.FailSurfaces > 0 {
		r.FailSurfaces--
	}
	r.nextID++
	s := &Surface{ID: r.nextID, Desc: desc, rec: r}
	r.surfaces = append(r.surfaces, s)
	r.record(Op{Kind: OpCreateSurface, Name: desc.Label, ID: s.ID})
	return s, nil
}

func (r *Recorder) BindTargets(colors []gpu.Surface, depth gpu.Surface) {
	op := Op{Kind: OpBind}
	for _, c := range colors {
		op.Targets = append(op.Targets, surfaceID(c))
	}
	op.Depth = surfaceID(depth)
	r.bound = op.Targets
	r.record(op)
}

func (r *Recorder) Clear(color, depth bool) {
	name := ""
	switch {
	case color && depth:
		name = "color+depth"
	case color:
		name = "color"
	case depth:
		name = "depth"
	}
	r.record(Op{Kind: OpClear, Name: name, Targets: r.bound})
}

func (r *Recorder) Blit(src, dst gpu.Surface) {
	r.record(Op{Kind: OpBlit, Targets: []int{surfaceID(src), surfaceID(dst)}})
}

func (r *Recorder) WriteSurface(dst gpu.Surface, pix []byte) {
	s := dst.(*Surface)
	s.Pixels = append(s.Pixels[:0], pix...)
	r.record(Op{Kind: OpWriteSurface, Name: s.Desc.Label, ID: s.ID})
}

func surfaceID(s gpu.Surface) int {
	if ss, ok := s.(*Surface); ok && ss != nil {
		return ss.ID
	}
	return 0
}

func (r *Recorder) isReleased(id int) bool {
	for _, b := range r.buffers {
		if b.ID == id {
			return b.Released
		}
	}
	for _, s := range r.surfaces {
		if s.ID == id {
			return s.Released
		}
	}
	return false
}

// Reset forgets recorded ops but keeps live resources.
func (r *Recorder) Reset() {
	r.Ops = r.Ops[:0]
}

// Dispatches lists dispatched kernel names in issue order.
func (r *Recorder) Dispatches() []string {
	var out []string
	for _, op := range r.Ops {
		if op.Kind == OpDispatch {
			out = append(out, op.Kernel)
		}
	}
	return out
}

// Sequence lists dispatches and barriers in issue order, barriers as "|".
func (r *Recorder) Sequence() []string {
	var out []string
	for _, op := range r.Ops {
		switch op.Kind {
		case OpDispatch:
			out = append(out, op.Kernel)
		case OpBarrier:
			out = append(out, "|")
		}
	}
	return out
}

func (r *Recorder) Count(kind OpKind) int {
	n := 0
	for _, op := range r.Ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

func (r *Recorder) OpsOf(kind OpKind) []Op {
	var out []Op
	for _, op := range r.Ops {
		if op.Kind == kind {
			out = append(out, op)
		}
	}
	return out
}

func (r *Recorder) LiveSurfaces() []*Surface {
	var out []*Surface
	for _, s := range r.surfaces {
		if !s.Released {
			out = append(out, s)
		}
	}
	return out
}

func (r *Recorder) LiveBuffers() []*Buffer {
	var out []*Buffer
	for _, b := range r.buffers {
		if !b.Released {
			out = append(out, b)
		}
	}
	return out
}

// Bound returns the id last bound to name on kernel, or 0.
func (r *Recorder) Bound(kernel, name string) int {
	if k, ok := r.kernels[kernel]; ok {
		return k.bindings[name]
	}
	return 0
}
