package gpu

import "github.com/cogentcore/webgpu/wgpu"

// WGPUDeviceBuilderOption is a functional option for configuring a WebGPU device.
type WGPUDeviceBuilderOption func(d *wgpuDevice)

// WithVSync selects FIFO presentation instead of immediate.
//
// Parameters:
//   - enabled: whether presentation waits for vertical sync
//
// Returns:
//   - WGPUDeviceBuilderOption: option function to apply
func WithVSync(enabled bool) WGPUDeviceBuilderOption {
	return func(d *wgpuDevice) {
		if enabled {
			d.presentMode = wgpu.PresentModeFifo
		} else {
			d.presentMode = wgpu.PresentModeImmediate
		}
	}
}

// WithFallbackAdapter forces the software fallback adapter.
func WithFallbackAdapter(force bool) WGPUDeviceBuilderOption {
	return func(d *wgpuDevice) {
		d.forceFallback = force
	}
}
