package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-chart/engine/config"
	"github.com/Carmen-Shannon/oxy-chart/engine/mesh"
	"github.com/Carmen-Shannon/oxy-chart/engine/profiler"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-chart/engine/watcher"
	"github.com/Carmen-Shannon/oxy-chart/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
type EngineBuilderOption func(*engine)

// WithConfig replaces the default configuration.
//
// Parameters:
//   - cfg: the engine configuration
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithConfig(cfg config.Config) EngineBuilderOption {
	return func(e *engine) {
		e.cfg = cfg
	}
}

// WithWindow presents into w and follows its framebuffer size. Run polls it every frame.
//
// Parameters:
//   - w: the window
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithMeshes replaces the default builtin and glTF mesh providers.
//
// Parameters:
//   - p: the mesh provider
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithMeshes(p mesh.Provider) EngineBuilderOption {
	return func(e *engine) {
		e.meshes = p
	}
}

// WithWatcher enables hot reload from w. Run pumps it, Frame drains its queue and Close closes it.
//
// Parameters:
//   - w: the file watcher
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWatcher(w watcher.Watcher) EngineBuilderOption {
	return func(e *engine) {
		e.watcher = w
	}
}

// WithCompiler replaces the naga shader validator.
//
// Parameters:
//   - c: the compiler
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCompiler(c pipeline.Compiler) EngineBuilderOption {
	return func(e *engine) {
		e.compiler = c
	}
}

// WithProfiler records frame and step timings into p, regardless of the profiler.enabled setting.
//
// Parameters:
//   - p: the profiler
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		e.profiler = p
	}
}

// WithClock replaces time.Now as the source of frame times in Run.
//
// Parameters:
//   - now: the clock
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithClock(now func() time.Time) EngineBuilderOption {
	return func(e *engine) {
		e.now = now
	}
}
