package scheduler

import (
	"time"

	"github.com/Carmen-Shannon/oxy-chart/engine/camera"
)

// ExecutorBuilderOption is a functional option used to configure an Executor during construction.
type ExecutorBuilderOption func(*executor)

// WithMipShader replaces the built-in downsample shader used by mip generation steps.
//
// Parameters:
//   - path: the shader path, used for both stages
//
// Returns:
//   - ExecutorBuilderOption: a function that sets the mip shader
func WithMipShader(path string) ExecutorBuilderOption {
	return func(e *executor) {
		e.mipShader = path
	}
}

// WithDefaultView sets the camera and light used by frames that do not supply their own.
//
// Parameters:
//   - cam: the default camera
//   - light: the default light
//
// Returns:
//   - ExecutorBuilderOption: a function that sets the default view
func WithDefaultView(cam camera.Camera, light camera.Light) ExecutorBuilderOption {
	return func(e *executor) {
		if cam != nil {
			e.camera = cam
		}
		if light != nil {
			e.light = light
		}
	}
}

// WithLogRepeats logs every occurrence of a step error instead of once per distinct error.
//
// Parameters:
//   - enabled: true to log repeats
//
// Returns:
//   - ExecutorBuilderOption: a function that sets repeat logging
func WithLogRepeats(enabled bool) ExecutorBuilderOption {
	return func(e *executor) {
		e.logRepeats = enabled
	}
}

// WithStepObserver reports how long each step took to record, skipped steps included.
//
// Parameters:
//   - fn: called after every step with its id and duration
//
// Returns:
//   - ExecutorBuilderOption: a function that sets the observer
func WithStepObserver(fn func(stepID string, d time.Duration)) ExecutorBuilderOption {
	return func(e *executor) {
		e.observe = fn
	}
}
