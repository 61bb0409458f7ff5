package engine

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/config"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-chart/engine/watcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fillWGSL = `
struct Params {
    g_chart_time: f32,
    color: vec4f,
};
//@chart:default color 1 0 0 1
@group(0) @binding(0) var<uniform> params: Params;

@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4f {
    return vec4f(0.0);
}

@fragment
fn fs_main() -> @location(0) vec4f {
    return params.color;
}
`

const initWGSL = `
@group(0) @binding(0) var<storage, read_write> next: array<vec4f>;

@compute @workgroup_size(64)
fn cs_main(@builtin(global_invocation_id) id: vec3<u32>) {
    next[id.x] = vec4f(10.0);
}
`

const simulateWGSL = `
@group(0) @binding(0) var<storage, read> current: array<vec4f>;
@group(0) @binding(1) var<storage, read_write> next: array<vec4f>;

@compute @workgroup_size(64)
fn cs_main(@builtin(global_invocation_id) id: vec3<u32>) {
    next[id.x] = current[id.x] + vec4f(1.0);
}
`

func drawChart(color string) string {
	return `
images:
  - {id: color, format: rgba32f, size: {canvas: 1.0}}
steps:
  - draw:
      id: main
      passes:
        - {id: solid, color: [color]}
      objects:
        - id: plane
          mesh: {file: builtin, name: fullscreen}
          params: {color: ` + color + `}
          material:
            passes:
              solid: {vertex: fill.wgsl, depth_test: false, depth_write: false}
`
}

const particlesChart = `
buffers:
  - {id: particles, item_size_in_vec4: 1, item_count: 4}
steps:
  - compute: {id: init, shader: init.wgsl, run: init, buffer: particles, buffers: {next: {next: particles}}}
  - compute: {id: simulate, shader: simulate.wgsl, run: simulate, buffer: particles, buffers: {current: {current: particles}, next: {next: particles}}}
`

// countingCompiler accepts every source and counts validations.
type countingCompiler struct {
	calls atomic.Int32
}

func (c *countingCompiler) Validate(string, shader.Language) error {
	c.calls.Add(1)
	return nil
}

// queueWatcher hands the engine a queue the test pushes to directly.
type queueWatcher struct {
	queue  *watcher.Queue
	closed atomic.Int32
}

func (w *queueWatcher) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (w *queueWatcher) Queue() *watcher.Queue { return w.queue }

func (w *queueWatcher) Close() error {
	w.closed.Add(1)
	return nil
}

type fixture struct {
	t        *testing.T
	dir      string
	device   gpu.SoftwareDevice
	compiler *countingCompiler
	watch    *queueWatcher
	engine   Engine
	base     time.Time
}

func newFixture(t *testing.T, doc string) *fixture {
	t.Helper()
	common.SetLogOutput(io.Discard)

	f := &fixture{
		t:        t,
		dir:      t.TempDir(),
		device:   gpu.NewSoftwareDevice(8, 8),
		compiler: &countingCompiler{},
		watch:    &queueWatcher{queue: watcher.NewQueue()},
		base:     time.Unix(1000, 0),
	}
	f.registerShaders()
	f.write("chart.yaml", doc)

	cfg := config.Default()
	cfg.Canvas = config.Canvas{Width: 8, Height: 8}
	f.engine = NewEngine(f.device, f.path("chart.yaml"),
		WithConfig(cfg),
		WithCompiler(f.compiler),
		WithWatcher(f.watch),
	)
	t.Cleanup(f.engine.Close)
	return f
}

func (f *fixture) path(name string) string {
	return filepath.Join(f.dir, name)
}

func (f *fixture) write(name, content string) {
	f.t.Helper()
	require.NoError(f.t, os.WriteFile(f.path(name), []byte(content), 0o644))
}

func (f *fixture) registerShaders() {
	f.write("fill.wgsl", fillWGSL)
	f.device.RegisterFragmentKernel(f.path("fill.wgsl"), func(in *gpu.FragmentInput) gpu.FragmentOutput {
		c := in.Uniform("color")
		return gpu.FragmentOutput{Colors: []common.Color{{c[0], c[1], c[2], c[3]}}}
	})
	f.write("init.wgsl", initWGSL)
	f.device.RegisterComputeKernel(f.path("init.wgsl"), func(in *gpu.ComputeInput) {
		in.Buffer("next")[in.Index*4] = 10
	})
	f.write("simulate.wgsl", simulateWGSL)
	f.device.RegisterComputeKernel(f.path("simulate.wgsl"), func(in *gpu.ComputeInput) {
		in.Buffer("next")[in.Index*4] = in.Buffer("current")[in.Index*4] + 1
	})
}

// frame runs a frame at offset seconds after the fixture's base time.
func (f *fixture) frame(offset float64) {
	f.t.Helper()
	report, err := f.engine.Frame(context.Background(), f.base.Add(time.Duration(offset*float64(time.Second))))
	require.NoError(f.t, err)
	require.NotNil(f.t, report)
	require.Empty(f.t, report.StepErrors)
}

func (f *fixture) pixel() common.Color {
	f.t.Helper()
	img, err := f.engine.Resources().Image("color")
	require.NoError(f.t, err)
	pixels, _, _, err := f.device.ReadImage(img.Handle, 0)
	require.NoError(f.t, err)
	return pixels[0]
}

// particles returns the first component of every item in the current and next buffers.
func (f *fixture) particles() ([]float32, []float32) {
	f.t.Helper()
	db, err := f.engine.Resources().DoubleBuffer("particles")
	require.NoError(f.t, err)
	read := func(h gpu.BufferHandle) []float32 {
		data, err := f.device.ReadBuffer(h)
		require.NoError(f.t, err)
		out := make([]float32, 0, len(data)/4)
		for i := 0; i < len(data); i += 4 {
			out = append(out, data[i])
		}
		return out
	}
	return read(db.Current()), read(db.Next())
}

func TestFrameBeforeLoadDoesNothing(t *testing.T) {
	f := newFixture(t, drawChart("[0, 1, 0, 1]"))
	report, err := f.engine.Frame(context.Background(), f.base)
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Equal(t, 0, f.device.Submissions())
}

func TestLoadAndFrame(t *testing.T) {
	f := newFixture(t, drawChart("[0, 1, 0, 1]"))
	require.NoError(t, f.engine.Load(context.Background()))
	require.NotNil(t, f.engine.Chart())

	report, err := f.engine.Frame(context.Background(), f.base)
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, report.Submitted)
	assert.Equal(t, common.Color{0, 1, 0, 1}, f.pixel())
	assert.Equal(t, 1, f.device.Presents())
	assert.Equal(t, int32(1), f.compiler.calls.Load())
}

func TestLoadMissingChartIsFatal(t *testing.T) {
	f := newFixture(t, drawChart("[0, 1, 0, 1]"))
	require.NoError(t, os.Remove(f.path("chart.yaml")))

	err := f.engine.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, common.ClassFatal, common.ClassOf(err))
	assert.Nil(t, f.engine.Chart())
}

func TestMalformedReloadKeepsPreviousChart(t *testing.T) {
	f := newFixture(t, drawChart("[0, 1, 0, 1]"))
	require.NoError(t, f.engine.Load(context.Background()))
	f.frame(0)
	first := f.engine.Chart()

	f.write("chart.yaml", "steps: [")
	f.watch.queue.Push(watcher.Event{Path: f.path("chart.yaml"), Kind: watcher.KindChart})
	f.frame(0.1)
	assert.Same(t, first, f.engine.Chart())
	assert.Equal(t, common.Color{0, 1, 0, 1}, f.pixel())

	f.write("chart.yaml", drawChart("[0, 0, 1, 1]"))
	f.watch.queue.Push(watcher.Event{Path: f.path("chart.yaml"), Kind: watcher.KindChart})
	f.frame(0.2)
	assert.NotSame(t, first, f.engine.Chart())
	assert.Equal(t, common.Color{0, 0, 1, 1}, f.pixel())
}

func TestOtherChartEventsAreIgnored(t *testing.T) {
	f := newFixture(t, drawChart("[0, 1, 0, 1]"))
	require.NoError(t, f.engine.Load(context.Background()))
	first := f.engine.Chart()

	f.watch.queue.Push(watcher.Event{Path: f.path("other.yaml"), Kind: watcher.KindChart})
	f.frame(0)
	assert.Same(t, first, f.engine.Chart())
}

func TestShaderChangeRebuildsPipeline(t *testing.T) {
	f := newFixture(t, drawChart("[0, 1, 0, 1]"))
	require.NoError(t, f.engine.Load(context.Background()))
	f.frame(0)
	f.frame(0.1)
	assert.Equal(t, int32(1), f.compiler.calls.Load())

	f.write("fill.wgsl", fillWGSL+"\n// edited\n")
	f.watch.queue.Push(watcher.Event{Path: f.path("fill.wgsl"), Kind: watcher.KindShader})
	f.frame(0.2)
	assert.Equal(t, int32(2), f.compiler.calls.Load())
	assert.Equal(t, common.Color{0, 1, 0, 1}, f.pixel())
}

func TestResizeAppliesAtNextFrame(t *testing.T) {
	f := newFixture(t, drawChart("[0, 1, 0, 1]"))
	require.NoError(t, f.engine.Load(context.Background()))
	f.frame(0)

	f.engine.Resize(common.Extent{Width: 16, Height: 12})
	img, err := f.engine.Resources().Image("color")
	require.NoError(t, err)
	assert.Equal(t, 8, img.Shape.Width)

	f.frame(0.1)
	img, err = f.engine.Resources().Image("color")
	require.NoError(t, err)
	assert.Equal(t, 16, img.Shape.Width)
	assert.Equal(t, 12, img.Shape.Height)

	surface, ok := f.device.ImageDescriptor(f.device.Surface())
	require.True(t, ok)
	assert.Equal(t, 16, surface.Width)
	assert.Equal(t, 12, surface.Height)
	assert.Equal(t, common.Color{0, 1, 0, 1}, f.pixel())
}

func TestInvalidResizeIsIgnored(t *testing.T) {
	f := newFixture(t, drawChart("[0, 1, 0, 1]"))
	require.NoError(t, f.engine.Load(context.Background()))

	f.engine.Resize(common.Extent{Width: 0, Height: 12})
	f.frame(0)
	img, err := f.engine.Resources().Image("color")
	require.NoError(t, err)
	assert.Equal(t, 8, img.Shape.Width)
}

func TestSimulationFollowsChartTime(t *testing.T) {
	f := newFixture(t, particlesChart)
	require.NoError(t, f.engine.Load(context.Background()))

	f.frame(0)
	current, next := f.particles()
	assert.Equal(t, []float32{10, 10, 10, 10}, current)
	assert.Equal(t, []float32{11, 11, 11, 11}, next)

	f.frame(2.5 / 60)
	current, next = f.particles()
	assert.Equal(t, []float32{12, 12, 12, 12}, current)
	assert.Equal(t, []float32{13, 13, 13, 13}, next)

	db, err := f.engine.Resources().DoubleBuffer("particles")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, db.InterpolationFraction(), 1e-3)
}

func TestPauseStopsChartTime(t *testing.T) {
	f := newFixture(t, particlesChart)
	require.NoError(t, f.engine.Load(context.Background()))
	f.frame(0)
	f.frame(2.5 / 60)

	f.engine.SetPaused(true)
	assert.True(t, f.engine.Paused())
	f.frame(1)
	_, next := f.particles()
	assert.Equal(t, []float32{13, 13, 13, 13}, next)

	f.engine.SetPaused(false)
	f.frame(1 + 1.0/60)
	_, next = f.particles()
	assert.Equal(t, []float32{14, 14, 14, 14}, next)
}

func TestResetSimulationRunsInit(t *testing.T) {
	f := newFixture(t, particlesChart)
	require.NoError(t, f.engine.Load(context.Background()))
	f.frame(0)
	f.frame(2.5 / 60)

	f.engine.ResetSimulation()
	f.frame(3.0 / 60)
	current, next := f.particles()
	assert.Equal(t, []float32{10, 10, 10, 10}, current)
	assert.Equal(t, []float32{11, 11, 11, 11}, next)
}

func TestSchemaReflectsShader(t *testing.T) {
	f := newFixture(t, drawChart("[0, 1, 0, 1]"))
	s, err := f.engine.Schema(f.path("fill.wgsl"))
	require.NoError(t, err)

	color, ok := s.Entry("color")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0, 0, 1}, color.Default)
	assert.True(t, color.Editable)

	_, err = f.engine.Schema(f.path("missing.wgsl"))
	assert.Error(t, err)
}

func TestRunStopsWhenContextEnds(t *testing.T) {
	f := newFixture(t, drawChart("[0, 1, 0, 1]"))
	require.NoError(t, f.engine.Load(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, f.engine.Run(ctx))
	assert.Positive(t, f.device.Presents())
}

func TestCloseClosesWatcherOnce(t *testing.T) {
	f := newFixture(t, drawChart("[0, 1, 0, 1]"))
	require.NoError(t, f.engine.Load(context.Background()))

	f.engine.Close()
	assert.Equal(t, int32(1), f.watch.closed.Load())

	f.engine.Close()
	assert.Equal(t, int32(1), f.watch.closed.Load())
}

func TestControlsAnimateUniformsOverChartTime(t *testing.T) {
	doc := drawChart("[0, 1, 0, 1]") + `
controls:
  - target: main/plane
    uniform: color
    components:
      - [{time: 0, value: 0, linear: true}, {time: 2, value: 1}]
      - []
`
	f := newFixture(t, doc)
	require.NoError(t, f.engine.Load(context.Background()))
	require.Len(t, f.engine.Chart().Controls, 1)

	f.frame(0)
	assert.Equal(t, common.Color{0, 1, 0, 1}, f.pixel())

	f.frame(1)
	px := f.pixel()
	assert.InDeltaSlice(t, []float32{0.5, 1, 0, 1}, px[:], 1e-6)

	f.engine.SetPaused(true)
	f.frame(5)
	px = f.pixel()
	assert.InDeltaSlice(t, []float32{0.5, 1, 0, 1}, px[:], 1e-6)

	f.engine.SetPaused(false)
	f.frame(7)
	assert.Equal(t, common.Color{1, 1, 0, 1}, f.pixel())
}
