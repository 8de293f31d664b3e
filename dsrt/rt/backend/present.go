package backend

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

const fullscreenWGSL = `
@group(0) @binding(0) var src_tex: texture_2d<f32>;
@group(0) @binding(1) var src_smp: sampler;

struct VsOut {
	@builtin(position) pos: vec4<f32>,
	@location(0) uv: vec2<f32>,
};

@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> VsOut {
	let uv = vec2<f32>(f32((i << 1u) & 2u), f32(i & 2u));
	var out: VsOut;
	out.pos = vec4<f32>(uv * 2.0 - 1.0, 0.0, 1.0);
	out.uv = vec2<f32>(uv.x, 1.0 - uv.y);
	return out;
}

@fragment
fn fs_main(in: VsOut) -> @location(0) vec4<f32> {
	return textureSample(src_tex, src_smp, in.uv);
}
`

// Presenter draws a surface onto the window swapchain with a fullscreen
// triangle, scaling it to the window size.
type Presenter struct {
	dev      *Device
	stream   *Stream
	pipeline *wgpu.RenderPipeline
	sampler  *wgpu.Sampler
}

func NewPresenter(dev *Device, stream *Stream) (*Presenter, error) {
	module, err := dev.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Fullscreen VS/FS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: fullscreenWGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("present shader: %w", err)
	}
	defer module.Release()

	pipeline, err := dev.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Blit Pipeline",
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    dev.Config.Format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("present pipeline: %w", err)
	}
	sampler, err := dev.Device.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		pipeline.Release()
		return nil, fmt.Errorf("present sampler: %w", err)
	}
	return &Presenter{dev: dev, stream: stream, pipeline: pipeline, sampler: sampler}, nil
}

// Overlay is a surface drawn unscaled at a pixel offset over the frame.
type Overlay struct {
	Surface *Surface
	X, Y    int
}

// Present records the blit into the frame encoder, submits the frame and
// flips the swapchain.
func (p *Presenter) Present(src *Surface, overlays ...Overlay) error {
	next, err := p.dev.Surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("acquire swapchain: %w", err)
	}
	view, err := next.CreateView(nil)
	if err != nil {
		return fmt.Errorf("swapchain view: %w", err)
	}
	defer view.Release()

	group, err := p.bindGroup(src)
	if err != nil {
		return err
	}
	defer group.Release()

	enc := p.stream.Encoder()
	if enc == nil {
		return p.stream.EndFrame()
	}
	pass := enc.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, group, nil)
	pass.Draw(3, 1, 0, 0)
	for _, o := range overlays {
		if o.Surface == nil || o.Surface.view == nil {
			continue
		}
		og, err := p.bindGroup(o.Surface)
		if err != nil {
			return err
		}
		defer og.Release()
		pass.SetViewport(float32(o.X), float32(o.Y), float32(o.Surface.Width()), float32(o.Surface.Height()), 0, 1)
		pass.SetBindGroup(0, og, nil)
		pass.Draw(3, 1, 0, 0)
	}
	if err := pass.End(); err != nil {
		return fmt.Errorf("present pass: %w", err)
	}
	pass.Release()

	if err := p.stream.EndFrame(); err != nil {
		return err
	}
	p.dev.Surface.Present()
	return nil
}

func (p *Presenter) bindGroup(src *Surface) (*wgpu.BindGroup, error) {
	group, err := p.dev.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: p.pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: src.view},
			{Binding: 1, Sampler: p.sampler},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("present bind group %s: %w", src.desc.Label, err)
	}
	return group, nil
}

func (p *Presenter) Release() {
	p.sampler.Release()
	p.pipeline.Release()
}
