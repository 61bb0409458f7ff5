package gpu

// SoftwareDeviceBuilderOption is a functional option for configuring a software device.
type SoftwareDeviceBuilderOption func(d *softwareDevice)

// WithSoftwareLimits overrides the device limits.
//
// Parameters:
//   - limits: the limits to report and enforce
//
// Returns:
//   - SoftwareDeviceBuilderOption: option function to apply
func WithSoftwareLimits(limits Limits) SoftwareDeviceBuilderOption {
	return func(d *softwareDevice) {
		d.limits = limits
	}
}

// WithFallbackFragmentKernel runs k for render programs whose fragment shader has no registered
// kernel, instead of failing program creation.
//
// Parameters:
//   - k: the kernel used for unregistered fragment shaders
//
// Returns:
//   - SoftwareDeviceBuilderOption: option function to apply
func WithFallbackFragmentKernel(k FragmentKernel) SoftwareDeviceBuilderOption {
	return func(d *softwareDevice) {
		d.fallbackFragment = k
	}
}
