// Package scheduler executes a chart's steps in declaration order. Every frame it records the
// draws, dispatches and mip blits of all steps into one command list, inserts the barriers the
// steps' reads require, and submits the list once. A step that cannot run this frame is left
// out of the submission while every other step still runs.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/camera"
	"github.com/Carmen-Shannon/oxy-chart/engine/chart"
	"github.com/Carmen-Shannon/oxy-chart/engine/control"
	"github.com/Carmen-Shannon/oxy-chart/engine/mesh"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/registry"
)

// FrameContext is everything a frame's steps read besides the chart and its resources.
type FrameContext struct {
	Canvas common.Extent

	// AppTime is the wall time since the engine started, in seconds.
	AppTime float64

	// ChartTime is the presented chart time, in seconds.
	ChartTime float64

	FrameIndex uint64

	// SimulationTicks is the number of simulate dispatches due this frame.
	SimulationTicks int

	// TickTimes optionally holds the chart time of each tick. Ticks without an entry see ChartTime.
	TickTimes []float64

	// Ratio is the fraction of a tick presentation has advanced past the last completed tick.
	Ratio float32

	// ResetSimulation runs the init steps before any simulate tick.
	ResetSimulation bool

	StepSeconds float64

	// Controls holds the animated uniform values at ChartTime. Ticks of one frame share them.
	Controls control.Values

	// Camera and Light supply the matrix globals. Nil selects the chart defaults.
	Camera camera.Camera
	Light  camera.Light
}

// FrameReport describes what one Execute call did.
type FrameReport struct {
	// StepErrors holds the error of every step skipped this frame.
	StepErrors map[string]error

	// Warnings holds transient errors of steps that ran with a previous pipeline.
	Warnings map[string]error

	// Barriers is the number of barriers recorded.
	Barriers int

	// Submitted lists the steps that recorded work, in execution order.
	Submitted []string
}

// Executor runs charts.
type Executor interface {
	// Execute records every step of c and submits the frame.
	//
	// Parameters:
	//   - ctx: cancels the frame between steps
	//   - frame: the per-frame inputs
	//   - c: the active chart
	//   - res: the resources resolved for c
	//
	// Returns:
	//   - *FrameReport: the skipped steps, warnings, barrier count and submitted steps
	//   - error: non-nil only when the whole frame failed
	Execute(ctx context.Context, frame *FrameContext, c *chart.Chart, res *registry.ResourceSet) (*FrameReport, error)

	// PipelineKeys lists the pipelines executing c against res will request, for precompilation.
	PipelineKeys(c *chart.Chart, res *registry.ResourceSet) []pipeline.Key
}

type executor struct {
	mu *sync.Mutex

	device gpu.Device
	cache  pipeline.Cache
	meshes mesh.Provider

	camera camera.Camera
	light  camera.Light

	mipShader  string
	logRepeats bool
	observe    func(stepID string, d time.Duration)

	// logged remembers the last error text logged per step, so a failure repeating every frame
	// is logged once.
	logged map[string]string
}

var _ Executor = &executor{}

// NewExecutor creates an Executor that records onto device.
//
// Parameters:
//   - device: the device frames are submitted to
//   - cache: the pipeline cache draw, compute and mip steps build through
//   - meshes: the mesh provider draw objects resolve through
//   - opts: optional builder options
//
// Returns:
//   - Executor: the new executor
func NewExecutor(device gpu.Device, cache pipeline.Cache, meshes mesh.Provider, opts ...ExecutorBuilderOption) Executor {
	e := &executor{
		mu:        &sync.Mutex{},
		device:    device,
		cache:     cache,
		meshes:    meshes,
		camera:    camera.NewCamera(),
		light:     camera.NewLight(),
		mipShader: gpu.MipBlitPath,
		logged:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// frameRun is the state of one Execute call.
type frameRun struct {
	*executor

	ctx     context.Context
	frame   *FrameContext
	res     *registry.ResourceSet
	cam     camera.Camera
	light   camera.Light
	tracker barrierTracker
	report  *FrameReport
}

func (e *executor) Execute(ctx context.Context, frame *FrameContext, c *chart.Chart, res *registry.ResourceSet) (*FrameReport, error) {
	if frame == nil || c == nil || res == nil {
		return nil, common.Fatal("execute", "", errors.New("frame context, chart and resources are required"))
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	run := &frameRun{
		executor: e,
		ctx:      ctx,
		frame:    frame,
		res:      res,
		cam:      e.camera,
		light:    e.light,
		report:   &FrameReport{StepErrors: map[string]error{}, Warnings: map[string]error{}},
	}
	if frame.Camera != nil {
		run.cam = frame.Camera
	}
	if frame.Light != nil {
		run.light = frame.Light
	}
	if frame.ResetSimulation {
		res.ResetBuffers()
	}

	frameList := gpu.NewCommandList()
	for _, step := range c.Steps {
		if err := ctx.Err(); err != nil {
			return run.report, err
		}

		scratch := gpu.NewCommandList()
		saved := run.tracker.snapshot()
		start := time.Now()
		err := run.step(step, scratch)
		if e.observe != nil {
			e.observe(step.ID(), time.Since(start))
		}
		if err != nil {
			if common.ClassOf(err) != common.ClassStep {
				return run.report, err
			}
			run.tracker = saved
			run.report.StepErrors[step.ID()] = err
			e.logOnce(step.ID(), "step skipped", err)
			continue
		}
		if _, warned := run.report.Warnings[step.ID()]; !warned {
			delete(e.logged, step.ID())
		}
		if scratch.Len() > 0 {
			run.report.Submitted = append(run.report.Submitted, step.ID())
			frameList.Append(scratch)
		}
	}

	for _, db := range res.DoubleBuffers() {
		db.SetInterpolationFraction(frame.Ratio)
	}
	run.report.Barriers = run.tracker.emitted

	if err := e.device.Submit(frameList); err != nil {
		return run.report, common.Fatal("submit frame", c.ID, err)
	}
	return run.report, nil
}

func (r *frameRun) step(s chart.Step, cl *gpu.CommandList) error {
	switch step := s.(type) {
	case *chart.Draw:
		return r.draw(step, cl)
	case *chart.Compute:
		return r.compute(step, cl)
	case *chart.GenerateMipLevels:
		return r.generateMips(step, cl)
	}
	return common.StepError("execute", s.ID(), errors.New("unsupported step type"))
}

// pipeline builds key, keeping a previous pipeline in service across a failed rebuild.
func (r *frameRun) pipeline(stepID string, key pipeline.Key) (*pipeline.Pipeline, error) {
	p, err := r.cache.GetOrBuild(r.ctx, key)
	if err == nil {
		return p, nil
	}
	if p != nil && common.ClassOf(err) == common.ClassTransient {
		r.report.Warnings[stepID] = err
		r.logOnce(stepID, "stale pipeline in use", err)
		return p, nil
	}
	return nil, err
}

func (e *executor) logOnce(stepID, msg string, err error) {
	text := err.Error()
	if !e.logRepeats && e.logged[stepID] == text {
		return
	}
	e.logged[stepID] = text
	common.Logger().Warn(msg, "step", stepID, "class", common.ClassOf(err), "err", err)
}
