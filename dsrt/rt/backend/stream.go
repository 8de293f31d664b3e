// Package backend implements the gpu backend contracts on WebGPU. Every
// call of a frame is recorded into one command encoder and submitted by
// EndFrame, so issue order is execution order.
package backend

import (
	"errors"
	"fmt"

	"github.com/Hengle/DeferredShading/dsrt/rt/core"
	"github.com/Hengle/DeferredShading/dsrt/rt/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

var ErrUnbound = errors.New("backend: kernel binding not set")

type Buffer struct {
	buf   *wgpu.Buffer
	size  uint64
	label string
}

func (b *Buffer) Size() uint64 { return b.size }

func (b *Buffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

// Surface is a color texture with an optional depth plane of the same size.
type Surface struct {
	desc      gpu.SurfaceDesc
	tex       *wgpu.Texture
	view      *wgpu.TextureView
	depth     *wgpu.Texture
	depthView *wgpu.TextureView
}

func (s *Surface) Width() int             { return s.desc.Width }
func (s *Surface) Height() int            { return s.desc.Height }
func (s *Surface) View() *wgpu.TextureView { return s.view }

func (s *Surface) Release() {
	if s.depthView != nil {
		s.depthView.Release()
		s.depth.Release()
		s.depthView, s.depth = nil, nil
	}
	if s.view != nil {
		s.view.Release()
		s.tex.Release()
		s.view, s.tex = nil, nil
	}
}

type binding struct {
	buf  *Buffer
	surf *Surface
}

type Kernel struct {
	name     string
	pipeline *wgpu.ComputePipeline
	slots    []string
	bound    map[string]binding
}

func (k *Kernel) Name() string { return k.name }

// Stream implements gpu.Device, gpu.ComputeBackend and gpu.TargetBackend.
type Stream struct {
	device   *wgpu.Device
	queue    *wgpu.Queue
	module   *wgpu.ShaderModule
	bindings map[string][]string
	kernels  map[string]*Kernel
	log      core.Logger

	encoder *wgpu.CommandEncoder
	pass    *wgpu.ComputePassEncoder
	colors  []*Surface
	depth   *Surface
	groups  []*wgpu.BindGroup
	err     error
}

// NewStream compiles the kernel source once; each kernel is an entry point
// of it whose binding slots follow bindings[name].
func NewStream(device *wgpu.Device, kernelSource string, bindings map[string][]string, log core.Logger) (*Stream, error) {
	s := &Stream{
		device:   device,
		queue:    device.GetQueue(),
		bindings: bindings,
		kernels:  make(map[string]*Kernel),
		log:      core.OrNop(log),
	}
	if kernelSource != "" {
		module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
			Label:          "Particle Kernels",
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: kernelSource},
		})
		if err != nil {
			return nil, fmt.Errorf("compile kernels: %w", err)
		}
		s.module = module
	}
	return s, nil
}

func (s *Stream) fail(err error) {
	s.log.Errorf("backend: %v", err)
	if s.err == nil {
		s.err = err
	}
}

func (s *Stream) commandEncoder() *wgpu.CommandEncoder {
	if s.encoder == nil {
		enc, err := s.device.CreateCommandEncoder(nil)
		if err != nil {
			s.fail(fmt.Errorf("create command encoder: %w", err))
			return nil
		}
		s.encoder = enc
	}
	return s.encoder
}

func (s *Stream) endPass() {
	if s.pass == nil {
		return
	}
	if err := s.pass.End(); err != nil {
		s.fail(fmt.Errorf("end compute pass: %w", err))
	}
	s.pass.Release()
	s.pass = nil
}

// EndFrame closes the frame's encoder and submits it. It returns the first
// error recorded since the previous EndFrame.
func (s *Stream) EndFrame() error {
	s.endPass()
	if s.encoder != nil {
		cmd, err := s.encoder.Finish(nil)
		s.encoder.Release()
		s.encoder = nil
		if err != nil {
			s.fail(fmt.Errorf("finish encoder: %w", err))
		} else {
			s.queue.Submit(cmd)
			cmd.Release()
		}
	}
	for _, g := range s.groups {
		g.Release()
	}
	s.groups = s.groups[:0]

	err := s.err
	s.err = nil
	return err
}

func (s *Stream) CreateBuffer(label string, count, stride int) (gpu.Buffer, error) {
	size := uint64(max(count*stride, 16))
	size = (size + 3) &^ 3
	buf, err := s.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("buffer %s (%d bytes): %w", label, size, err)
	}
	return &Buffer{buf: buf, size: size, label: label}, nil
}

func (s *Stream) WriteBuffer(buf gpu.Buffer, data []byte) {
	b := buf.(*Buffer)
	if len(data)%4 != 0 {
		padded := make([]byte, (len(data)+3)&^3)
		copy(padded, data)
		data = padded
	}
	s.queue.WriteBuffer(b.buf, 0, data)
}

func (s *Stream) FindKernel(name string) (gpu.Kernel, error) {
	if k, ok := s.kernels[name]; ok {
		return k, nil
	}
	slots, ok := s.bindings[name]
	if !ok || s.module == nil {
		return nil, fmt.Errorf("%s: %w", name, gpu.ErrKernelNotFound)
	}
	pipeline, err := s.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: name,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     s.module,
			EntryPoint: name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", name, gpu.ErrKernelNotFound, err)
	}
	k := &Kernel{name: name, pipeline: pipeline, slots: slots, bound: make(map[string]binding)}
	s.kernels[name] = k
	return k, nil
}

func (s *Stream) SetBuffer(k gpu.Kernel, name string, buf gpu.Buffer) {
	b, _ := buf.(*Buffer)
	k.(*Kernel).bound[name] = binding{buf: b}
}

func (s *Stream) SetTexture(k gpu.Kernel, name string, surf gpu.Surface) {
	sf, _ := surf.(*Surface)
	k.(*Kernel).bound[name] = binding{surf: sf}
}

// Dispatch builds the bind group from the current bindings, so a buffer
// replaced since the last dispatch is picked up here.
func (s *Stream) Dispatch(k gpu.Kernel, x, y, z uint32) {
	kk := k.(*Kernel)
	entries := make([]wgpu.BindGroupEntry, 0, len(kk.slots))
	for i, name := range kk.slots {
		b := kk.bound[name]
		switch {
		case b.buf != nil && b.buf.buf != nil:
			entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(i), Buffer: b.buf.buf, Size: wgpu.WholeSize})
		case b.surf != nil && b.surf.view != nil:
			entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(i), TextureView: b.surf.view})
		default:
			s.fail(fmt.Errorf("%s.%s: %w", kk.name, name, ErrUnbound))
			return
		}
	}
	group, err := s.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   kk.name,
		Layout:  kk.pipeline.GetBindGroupLayout(0),
		Entries: entries,
	})
	if err != nil {
		s.fail(fmt.Errorf("%s bind group: %w", kk.name, err))
		return
	}
	s.groups = append(s.groups, group)

	if s.pass == nil {
		enc := s.commandEncoder()
		if enc == nil {
			return
		}
		s.pass = enc.BeginComputePass(nil)
	}
	s.pass.SetPipeline(kk.pipeline)
	s.pass.SetBindGroup(0, group, nil)
	s.pass.DispatchWorkgroups(x, y, z)
}

// Barrier ends the open compute pass; the next dispatch starts a new one,
// which orders it after every write of the previous pass.
func (s *Stream) Barrier() {
	s.endPass()
}

var surfaceFormats = map[gpu.Format]wgpu.TextureFormat{
	gpu.FormatRGBA16Float: wgpu.TextureFormatRGBA16Float,
	gpu.FormatRGBA32Float: wgpu.TextureFormatRGBA32Float,
	gpu.FormatRGBA8Unorm:  wgpu.TextureFormatRGBA8Unorm,
}

var bytesPerPixel = map[gpu.Format]uint32{
	gpu.FormatRGBA16Float: 8,
	gpu.FormatRGBA32Float: 16,
	gpu.FormatRGBA8Unorm:  4,
}

func (s *Stream) CreateSurface(desc gpu.SurfaceDesc) (gpu.Surface, error) {
	format, ok := surfaceFormats[desc.Format]
	if !ok {
		return nil, fmt.Errorf("surface %s: unsupported format %s", desc.Label, desc.Format)
	}
	extent := wgpu.Extent3D{Width: uint32(desc.Width), Height: uint32(desc.Height), DepthOrArrayLayers: 1}
	surf := &Surface{desc: desc}

	var err error
	surf.tex, err = s.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Size:          extent,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage: wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding |
			wgpu.TextureUsageCopySrc | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("surface %s: %w", desc.Label, err)
	}
	if surf.view, err = surf.tex.CreateView(nil); err != nil {
		surf.tex.Release()
		return nil, fmt.Errorf("surface %s view: %w", desc.Label, err)
	}

	if desc.DepthBits > 0 {
		surf.depth, err = s.device.CreateTexture(&wgpu.TextureDescriptor{
			Label:         desc.Label + ".depth",
			Size:          extent,
			MipLevelCount: 1,
			SampleCount:   1,
			Dimension:     wgpu.TextureDimension2D,
			Format:        wgpu.TextureFormatDepth32Float,
			Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
		})
		if err == nil {
			surf.depthView, err = surf.depth.CreateView(nil)
			if err != nil {
				surf.depth.Release()
				surf.depth = nil
			}
		}
		if err != nil {
			surf.Release()
			return nil, fmt.Errorf("surface %s depth: %w", desc.Label, err)
		}
	}
	return surf, nil
}

func (s *Stream) BindTargets(colors []gpu.Surface, depth gpu.Surface) {
	s.endPass()
	s.colors = s.colors[:0]
	for _, c := range colors {
		s.colors = append(s.colors, c.(*Surface))
	}
	s.depth, _ = depth.(*Surface)
}

// Bound returns the currently bound color targets and depth plane owner.
func (s *Stream) Bound() ([]*Surface, *Surface) {
	return s.colors, s.depth
}

// Clear runs an empty render pass over the bound targets.
func (s *Stream) Clear(color, depth bool) {
	s.endPass()
	enc := s.commandEncoder()
	if enc == nil {
		return
	}
	desc := &wgpu.RenderPassDescriptor{Label: "clear"}
	for _, c := range s.colors {
		load := wgpu.LoadOpLoad
		if color {
			load = wgpu.LoadOpClear
		}
		desc.ColorAttachments = append(desc.ColorAttachments, wgpu.RenderPassColorAttachment{
			View:       c.view,
			LoadOp:     load,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{},
		})
	}
	if s.depth != nil && s.depth.depthView != nil {
		load := wgpu.LoadOpLoad
		if depth {
			load = wgpu.LoadOpClear
		}
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            s.depth.depthView,
			DepthLoadOp:     load,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1,
		}
	}
	pass := enc.BeginRenderPass(desc)
	if err := pass.End(); err != nil {
		s.fail(fmt.Errorf("clear pass: %w", err))
	}
	pass.Release()
}

func (s *Stream) Blit(src, dst gpu.Surface) {
	s.endPass()
	enc := s.commandEncoder()
	if enc == nil {
		return
	}
	from, to := src.(*Surface), dst.(*Surface)
	enc.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{Texture: from.tex, MipLevel: 0},
		&wgpu.ImageCopyTexture{Texture: to.tex, MipLevel: 0},
		&wgpu.Extent3D{Width: uint32(min(from.desc.Width, to.desc.Width)), Height: uint32(min(from.desc.Height, to.desc.Height)), DepthOrArrayLayers: 1},
	)
}

func (s *Stream) WriteSurface(dst gpu.Surface, pix []byte) {
	surf := dst.(*Surface)
	extent := wgpu.Extent3D{Width: uint32(surf.desc.Width), Height: uint32(surf.desc.Height), DepthOrArrayLayers: 1}
	err := s.queue.WriteTexture(
		surf.tex.AsImageCopy(),
		pix,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(surf.desc.Width) * bytesPerPixel[surf.desc.Format],
			RowsPerImage: uint32(surf.desc.Height),
		},
		&extent,
	)
	if err != nil {
		s.fail(fmt.Errorf("write surface %s: %w", surf.desc.Label, err))
	}
}

// Encoder exposes the frame encoder to scene passes that record their own
// render passes. Any open compute pass is closed first.
func (s *Stream) Encoder() *wgpu.CommandEncoder {
	s.endPass()
	return s.commandEncoder()
}

func (s *Stream) Release() {
	s.endPass()
	if s.encoder != nil {
		s.encoder.Release()
		s.encoder = nil
	}
	for _, k := range s.kernels {
		k.pipeline.Release()
	}
	clear(s.kernels)
	if s.module != nil {
		s.module.Release()
		s.module = nil
	}
}

var (
	_ gpu.Device         = (*Stream)(nil)
	_ gpu.ComputeBackend = (*Stream)(nil)
	_ gpu.TargetBackend  = (*Stream)(nil)
)
