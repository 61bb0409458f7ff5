package camera

import (
	"github.com/Carmen-Shannon/oxy-chart/common"
)

// ControllerBuilderOption is a functional option for configuring an orbit controller.
type ControllerBuilderOption func(*orbitController)

// WithTarget sets the orbit center.
//
// Parameters:
//   - target: the point the camera orbits
//
// Returns:
//   - ControllerBuilderOption: option function to apply
func WithTarget(target common.Vec3) ControllerBuilderOption {
	return func(oc *orbitController) {
		oc.target = target
	}
}

// WithRadiusLimits bounds the zoom distance.
//
// Parameters:
//   - minRadius: closest allowed distance to the target
//   - maxRadius: farthest allowed distance to the target
//
// Returns:
//   - ControllerBuilderOption: option function to apply
func WithRadiusLimits(minRadius, maxRadius float32) ControllerBuilderOption {
	return func(oc *orbitController) {
		oc.minRadius = minRadius
		oc.maxRadius = maxRadius
		oc.radius = common.Clamp(oc.radius, minRadius, maxRadius)
	}
}

// WithMouseSensitivity sets the radians orbited per pixel of mouse drag.
func WithMouseSensitivity(s float32) ControllerBuilderOption {
	return func(oc *orbitController) {
		oc.mouseSensitivity = s
	}
}

// WithZoomSpeed sets the fraction of the radius covered per scroll step.
func WithZoomSpeed(s float32) ControllerBuilderOption {
	return func(oc *orbitController) {
		oc.zoomSpeed = s
	}
}
