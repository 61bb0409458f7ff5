// Package engine owns the active chart and drives it frame by frame: it applies hot-reload
// invalidations and canvas resizes at frame start, advances the simulation cursor, executes the
// chart's steps and retires replaced resources once the frames that used them are done.
package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/camera"
	"github.com/Carmen-Shannon/oxy-chart/engine/chart"
	"github.com/Carmen-Shannon/oxy-chart/engine/config"
	"github.com/Carmen-Shannon/oxy-chart/engine/control"
	"github.com/Carmen-Shannon/oxy-chart/engine/mesh"
	"github.com/Carmen-Shannon/oxy-chart/engine/profiler"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/registry"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/scheduler"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-chart/engine/simulation"
	"github.com/Carmen-Shannon/oxy-chart/engine/watcher"
	"github.com/Carmen-Shannon/oxy-chart/engine/window"
	"golang.org/x/sync/errgroup"
)

// framesInFlight is how many submitted frames may still be using a replaced resource.
const framesInFlight = 2

// Engine runs one chart at a time.
type Engine interface {
	// Load parses, resolves and activates the chart, then resets the simulation. When a chart is
	// already active and loading fails, the active chart keeps running.
	//
	// Parameters:
	//   - ctx: cancels pipeline precompilation
	//
	// Returns:
	//   - error: a ClassFatal error if the chart cannot be parsed or resolved
	Load(ctx context.Context) error

	// Frame runs one frame at now.
	//
	// Parameters:
	//   - ctx: cancels the frame between steps
	//   - now: the wall-clock time of the frame
	//
	// Returns:
	//   - *scheduler.FrameReport: what the executor did, nil when no chart is active
	//   - error: non-nil only when the whole frame failed
	Frame(ctx context.Context, now time.Time) (*scheduler.FrameReport, error)

	// Resize records a canvas size to apply at the start of the next frame.
	Resize(size common.Extent)

	// Run drives frames until ctx is cancelled or the window closes, pumping the watcher
	// alongside.
	//
	// Parameters:
	//   - ctx: ends the loop
	//
	// Returns:
	//   - error: the first fatal frame or watcher error
	Run(ctx context.Context) error

	// ResetSimulation restarts the simulation at the next frame.
	ResetSimulation()

	// SetPaused stops or resumes chart time. The simulation keeps its state while paused.
	SetPaused(paused bool)

	// Paused reports whether chart time is stopped.
	Paused() bool

	// Schema returns the reflected uniform schema of a shader, for parameter editors.
	//
	// Parameters:
	//   - path: the shader path
	//
	// Returns:
	//   - *shader.Schema: the schema
	//   - error: error if the shader cannot be read or reflected
	Schema(path string) (*shader.Schema, error)

	// Chart returns the active chart, nil before the first successful Load.
	Chart() *chart.Chart

	// Resources returns the resources of the active chart.
	Resources() *registry.ResourceSet

	// Camera returns the camera the chart is viewed through.
	Camera() camera.Camera

	// Profiler returns the profiler, nil when profiling is disabled.
	Profiler() *profiler.Profiler

	// Close stops the watcher and releases every pipeline and resource.
	Close()
}

type engine struct {
	mu *sync.Mutex

	device    gpu.Device
	chartPath string
	cfg       config.Config
	window    window.Window
	meshes    mesh.Provider
	watcher   watcher.Watcher
	compiler  pipeline.Compiler
	profiler  *profiler.Profiler
	now       func() time.Time

	cache    pipeline.Cache
	registry registry.Registry
	executor scheduler.Executor
	cursor   *simulation.Cursor
	camera   camera.Camera
	light    camera.Light
	controls *control.Set

	active *chart.Chart
	res    *registry.ResourceSet

	frameIndex uint64
	started    time.Time
	lastFrame  time.Time
	chartTime  float64

	// Guarded by mu: set from window callbacks, applied at frame start.
	pendingResize *common.Extent
	resetPending  bool
	paused        bool
}

var _ Engine = &engine{}

// NewEngine creates an engine for the chart at chartPath. Nothing is loaded until Load.
//
// Parameters:
//   - device: the GPU device charts run on
//   - chartPath: the chart document path
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the new engine
func NewEngine(device gpu.Device, chartPath string, options ...EngineBuilderOption) Engine {
	e := &engine{
		mu:        &sync.Mutex{},
		device:    device,
		chartPath: chartPath,
		cfg:       config.Default(),
		now:       time.Now,
		camera:    camera.NewCamera(camera.WithSettings(chart.DefaultCamera)),
		light:     camera.NewLight(camera.WithLightSettings(chart.DefaultLight)),
		controls:  control.NewSet(nil),
	}
	for _, opt := range options {
		opt(e)
	}
	if abs, err := filepath.Abs(chartPath); err == nil {
		e.chartPath = abs
	}
	if e.meshes == nil {
		e.meshes = mesh.Chain(mesh.NewBuiltin(device), mesh.NewGLTF(device))
	}
	if e.profiler == nil && e.cfg.Profiler.Enabled {
		e.profiler = profiler.NewProfiler()
	}

	canvas := common.Extent{Width: e.cfg.Canvas.Width, Height: e.cfg.Canvas.Height}
	if e.window != nil {
		canvas = e.window.Size()
		e.window.SetResizeCallback(e.Resize)
	}

	limits := device.Limits()
	if e.cfg.Limits.MaxImageDimension > 0 && (limits.MaxImageDimension == 0 || e.cfg.Limits.MaxImageDimension < limits.MaxImageDimension) {
		limits.MaxImageDimension = e.cfg.Limits.MaxImageDimension
	}

	cacheOpts := []pipeline.CacheBuilderOption{}
	if e.compiler != nil {
		cacheOpts = append(cacheOpts, pipeline.WithCompiler(e.compiler))
	}
	e.cache = pipeline.NewCache(device, cacheOpts...)
	e.registry = registry.NewRegistry(device, registry.WithCanvas(canvas), registry.WithLimits(limits))

	execOpts := []scheduler.ExecutorBuilderOption{scheduler.WithDefaultView(e.camera, e.light)}
	if e.profiler != nil {
		execOpts = append(execOpts, scheduler.WithStepObserver(e.profiler.RecordStep))
	}
	e.executor = scheduler.NewExecutor(device, e.cache, e.meshes, execOpts...)

	sim := e.cfg.Simulation
	e.cursor = simulation.NewCursor(
		simulation.WithStepSeconds(sim.StepSeconds),
		simulation.WithMaxSteps(sim.MaxStepsPerFrame, sim.MaxStepsPerFramePaused),
		simulation.WithPrecalculation(sim.PrecalculationSeconds),
	)
	return e
}

func (e *engine) Load(ctx context.Context) error {
	logger := common.Logger()

	c, err := chart.Load(e.chartPath)
	if err != nil {
		logger.Error("chart load failed", "chart", e.chartPath, "err", err)
		return err
	}
	res, err := e.registry.Resolve(c)
	if err != nil {
		logger.Error("chart resolve failed", "chart", c.ID, "err", err)
		return err
	}

	if err := e.cache.Precompile(ctx, e.executor.PipelineKeys(c, res)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Warn("precompile", "chart", c.ID, "err", err)
	}

	e.active, e.res = c, res
	e.camera.Apply(c.Camera)
	e.light.Apply(c.Light)
	e.controls.Replace(c.Controls)
	e.cursor.Reset()
	logger.Info("chart loaded", "chart", c.ID, "steps", len(c.Steps), "images", len(c.Images), "buffers", len(c.Buffers), "controls", len(c.Controls))
	return nil
}

func (e *engine) Frame(ctx context.Context, now time.Time) (*scheduler.FrameReport, error) {
	e.applyInvalidations(ctx)
	resize, reset, paused := e.takePending()

	if resize != nil {
		if p, ok := e.device.(gpu.Presenter); ok {
			p.ConfigureSurface(resize.Width, resize.Height)
		}
		if err := e.registry.ReallocateCanvasRelative(*resize); err != nil {
			common.Logger().Warn("canvas reallocation failed", "err", err)
		}
		e.cursor.DropPartialTick()
	}
	if reset {
		e.cursor.Reset()
	}

	if e.started.IsZero() {
		e.started, e.lastFrame = now, now
	}
	if !paused {
		e.chartTime += now.Sub(e.lastFrame).Seconds()
	}
	e.lastFrame = now

	if e.active == nil {
		return nil, nil
	}

	adv := e.cursor.Advance(e.chartTime, paused)
	frame := &scheduler.FrameContext{
		Canvas:          e.registry.Canvas(),
		AppTime:         now.Sub(e.started).Seconds(),
		ChartTime:       e.chartTime,
		FrameIndex:      e.frameIndex,
		SimulationTicks: adv.Ticks,
		TickTimes:       adv.Times,
		Ratio:           adv.Ratio,
		ResetSimulation: adv.Reset,
		StepSeconds:     e.cursor.StepSeconds,
		Controls:        e.controls.Evaluate(e.chartTime),
	}

	e.registry.BeginFrame(e.frameIndex)
	report, err := e.executor.Execute(ctx, frame, e.active, e.res)
	if err != nil {
		return report, err
	}
	if p, ok := e.device.(gpu.Presenter); ok {
		p.Present()
	}
	if e.frameIndex >= framesInFlight {
		e.registry.RetireFrames(e.frameIndex - framesInFlight)
	}
	e.frameIndex++

	if e.profiler != nil {
		e.profiler.Tick(now)
	}
	return report, nil
}

// applyInvalidations drains the watcher queue. Shader changes only drop cached sources; the
// pipelines rebuild when the executor next asks for them. A change to the chart document
// reloads it.
func (e *engine) applyInvalidations(ctx context.Context) {
	if e.watcher == nil {
		return
	}
	reload := false
	for _, ev := range e.watcher.Queue().Drain() {
		switch ev.Kind {
		case watcher.KindShader:
			common.Logger().Info("shader changed", "path", ev.Path)
			e.cache.Invalidate(ev.Path)
		case watcher.KindChart:
			if ev.Path == e.chartPath {
				reload = true
			}
		}
	}
	if !reload {
		return
	}
	common.Logger().Info("chart changed, reloading", "chart", e.chartPath)
	if err := e.Load(ctx); err != nil && e.active != nil {
		common.Logger().Warn("keeping previous chart", "chart", e.active.ID)
	}
}

func (e *engine) takePending() (*common.Extent, bool, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	resize, reset := e.pendingResize, e.resetPending
	e.pendingResize, e.resetPending = nil, false
	return resize, reset, e.paused
}

func (e *engine) Resize(size common.Extent) {
	if !size.Valid() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pendingResize = &size
}

func (e *engine) ResetSimulation() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetPending = true
}

func (e *engine) SetPaused(paused bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = paused
}

func (e *engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if e.watcher != nil {
		g.Go(func() error {
			return e.watcher.Run(gctx)
		})
	}

	// The frame loop stays on the calling goroutine: the window must be polled from the thread
	// that created it.
	err := e.loop(gctx)
	cancel()
	return errors.Join(err, g.Wait())
}

func (e *engine) loop(ctx context.Context) error {
	var minFrame time.Duration
	if fps := e.cfg.Render.FrameLimitFPS; fps > 0 {
		minFrame = time.Duration(float64(time.Second) / fps)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		if e.window != nil && !e.window.PollEvents() {
			return nil
		}

		start := e.now()
		if _, err := e.Frame(ctx, start); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if minFrame > 0 {
			if remaining := minFrame - e.now().Sub(start); remaining > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(remaining):
				}
			}
		}
	}
}

func (e *engine) Schema(path string) (*shader.Schema, error) {
	return e.cache.Schema(path)
}

func (e *engine) Chart() *chart.Chart {
	return e.active
}

func (e *engine) Resources() *registry.ResourceSet {
	return e.res
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) Close() {
	if e.watcher != nil {
		if err := e.watcher.Close(); err != nil {
			common.Logger().Warn("close watcher", "err", err)
		}
		e.watcher = nil
	}
	e.cache.Release()
	e.registry.Release()
	e.active, e.res = nil, nil
}
