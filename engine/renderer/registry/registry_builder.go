package registry

import (
	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
)

// RegistryBuilderOption is a functional option used to configure a Registry during construction.
type RegistryBuilderOption func(*registry)

// WithLimits overrides the size limits reported by the device.
//
// Parameters:
//   - limits: the limits images are checked against
//
// Returns:
//   - RegistryBuilderOption: a function that sets the limits of the registry
func WithLimits(limits gpu.Limits) RegistryBuilderOption {
	return func(r *registry) {
		r.limits = limits
	}
}

// WithCanvas sets the initial canvas size canvas-relative images resolve against.
//
// Parameters:
//   - canvas: the canvas size in pixels
//
// Returns:
//   - RegistryBuilderOption: a function that sets the canvas of the registry
func WithCanvas(canvas common.Extent) RegistryBuilderOption {
	return func(r *registry) {
		r.canvas = canvas
	}
}
