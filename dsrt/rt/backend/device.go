package backend

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Device owns the WebGPU instance, the window surface and the logical
// device.
type Device struct {
	Instance *wgpu.Instance
	Surface  *wgpu.Surface
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Config   *wgpu.SurfaceConfiguration
}

func NewDevice(window *glfw.Window) (*Device, error) {
	d := &Device{Instance: wgpu.CreateInstance(nil)}
	d.Surface = d.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))

	adapter, err := d.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: d.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	d.Adapter = adapter

	d.Device, err = adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "Main Device"})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	d.Queue = d.Device.GetQueue()

	width, height := window.GetFramebufferSize()
	caps := d.Surface.GetCapabilities(adapter)
	d.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	d.Surface.Configure(adapter, d.Device, d.Config)
	return d, nil
}

// Resize reconfigures the swapchain; zero sizes (minimized) are ignored.
func (d *Device) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	if d.Config.Width == uint32(width) && d.Config.Height == uint32(height) {
		return
	}
	d.Config.Width = uint32(width)
	d.Config.Height = uint32(height)
	d.Surface.Configure(d.Adapter, d.Device, d.Config)
}

func (d *Device) Release() {
	if d.Device != nil {
		d.Device.Release()
	}
	if d.Adapter != nil {
		d.Adapter.Release()
	}
	if d.Surface != nil {
		d.Surface.Release()
	}
	if d.Instance != nil {
		d.Instance.Release()
	}
}
