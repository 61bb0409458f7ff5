package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tintWGSL = `
struct Params { g_app_time: f32, tint: vec4f, };
@group(0) @binding(0) var<uniform> params: Params;

@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4f {
    return vec4f(0.0);
}

@fragment
fn fs_main() -> @location(0) vec4f {
    return params.tint;
}
`

const doubleWGSL = `
struct Params { factor: f32, };
@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read_write> data: array<f32>;

@compute @workgroup_size(32)
fn cs_main(@builtin(global_invocation_id) id: vec3<u32>) {
    data[id.x] = data[id.x] * params.factor;
}
`

// fakeCompiler fails any source containing the marker text and counts its invocations.
type fakeCompiler struct {
	mu     sync.Mutex
	calls  int
	marker string
}

func (f *fakeCompiler) Validate(source string, _ shader.Language) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.marker != "" && strings.Contains(source, f.marker) {
		return errors.New("expected ';' at line 3")
	}
	return nil
}

func (f *fakeCompiler) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func writeShader(t *testing.T, dir, name, source string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func newTestCache(t *testing.T, kernels ...string) (Cache, gpu.SoftwareDevice, *fakeCompiler) {
	t.Helper()
	common.SetLogOutput(io.Discard)
	d := gpu.NewSoftwareDevice(8, 8)
	for _, k := range kernels {
		d.RegisterFragmentKernel(k, func(in *gpu.FragmentInput) gpu.FragmentOutput {
			return gpu.FragmentOutput{Colors: []common.Color{{1, 1, 1, 1}}}
		})
	}
	fc := &fakeCompiler{marker: "BROKEN"}
	return NewCache(d, WithCompiler(fc), WithPrecompileWorkers(2)), d, fc
}

func renderKey(path string) Key {
	return Key{
		Kind:     KindRender,
		Vertex:   path,
		Fragment: path,
		State:    State{ColorFormats: []gpu.Format{gpu.FormatRGBA16Float}},
	}
}

func TestGetOrBuildMemoizes(t *testing.T) {
	dir := t.TempDir()
	path := writeShader(t, dir, "tint.wgsl", tintWGSL)
	c, d, fc := newTestCache(t, path)
	ctx := context.Background()

	p1, err := c.GetOrBuild(ctx, renderKey(path))
	require.NoError(t, err)
	p2, err := c.GetOrBuild(ctx, renderKey(path))
	require.NoError(t, err)

	assert.Same(t, p1, p2)
	assert.Equal(t, 1, fc.Calls())
	assert.Equal(t, 1, p1.Generation)
	assert.Equal(t, 1, d.LivePrograms())
	assert.Equal(t, 1, c.Len())

	tint, ok := p1.Schema.Entry("tint")
	require.True(t, ok)
	assert.True(t, tint.Editable)
	assert.Equal(t, gpu.StageVertex|gpu.StageFragment, p1.Schema.UniformBlock.Stages)
}

func TestGetOrBuildStateChangesIdentity(t *testing.T) {
	dir := t.TempDir()
	path := writeShader(t, dir, "tint.wgsl", tintWGSL)
	c, d, fc := newTestCache(t, path)
	ctx := context.Background()

	a := renderKey(path)
	b := renderKey(path)
	b.State.Blend = gpu.BlendAlpha
	labelled := renderKey(path)
	labelled.State.Label = "solid"

	pa, err := c.GetOrBuild(ctx, a)
	require.NoError(t, err)
	pb, err := c.GetOrBuild(ctx, b)
	require.NoError(t, err)
	pl, err := c.GetOrBuild(ctx, labelled)
	require.NoError(t, err)

	assert.NotEqual(t, pa.Program, pb.Program)
	assert.Same(t, pa, pl)
	assert.Equal(t, 2, d.LivePrograms())
	assert.Equal(t, 1, fc.Calls(), "one distinct source is validated once")
}

func TestInvalidateRebuildsOnlyOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeShader(t, dir, "tint.wgsl", tintWGSL)
	c, d, fc := newTestCache(t, path)
	ctx := context.Background()

	p1, err := c.GetOrBuild(ctx, renderKey(path))
	require.NoError(t, err)

	c.Invalidate(path)
	p2, err := c.GetOrBuild(ctx, renderKey(path))
	require.NoError(t, err)
	assert.Same(t, p1, p2, "unchanged content is a hit after invalidation")

	writeShader(t, dir, "tint.wgsl", tintWGSL+"\n// edited\n")
	c.Invalidate(path)
	p3, err := c.GetOrBuild(ctx, renderKey(path))
	require.NoError(t, err)
	assert.Equal(t, 2, p3.Generation)
	assert.NotEqual(t, p1.Fingerprint, p3.Fingerprint)
	assert.Equal(t, 1, d.LivePrograms(), "the replaced program is released")
	assert.Equal(t, 2, fc.Calls())
}

func TestFailedRebuildKeepsLastGoodPipeline(t *testing.T) {
	dir := t.TempDir()
	path := writeShader(t, dir, "tint.wgsl", tintWGSL)
	c, _, fc := newTestCache(t, path)
	ctx := context.Background()

	good, err := c.GetOrBuild(ctx, renderKey(path))
	require.NoError(t, err)

	writeShader(t, dir, "tint.wgsl", tintWGSL+"\nBROKEN\n")
	c.Invalidate(path)

	p, err := c.GetOrBuild(ctx, renderKey(path))
	require.Error(t, err)
	assert.Same(t, good, p)
	assert.Equal(t, common.ClassTransient, common.ClassOf(err))
	assert.ErrorIs(t, err, common.ErrCompile)
	calls := fc.Calls()

	p, err = c.GetOrBuild(ctx, renderKey(path))
	require.Error(t, err)
	assert.Same(t, good, p)
	assert.Equal(t, calls, fc.Calls(), "an unchanged failing source is not recompiled")

	c.Invalidate(path)
	_, err = c.GetOrBuild(ctx, renderKey(path))
	require.Error(t, err)
	assert.Equal(t, calls, fc.Calls(), "invalidation without a content change does not retry")

	writeShader(t, dir, "tint.wgsl", tintWGSL)
	c.Invalidate(path)
	p, err = c.GetOrBuild(ctx, renderKey(path))
	require.NoError(t, err)
	assert.Same(t, good, p, "restoring the good content hits the good pipeline")
}

func TestFirstBuildFailureIsStepError(t *testing.T) {
	dir := t.TempDir()
	path := writeShader(t, dir, "broken.wgsl", tintWGSL+"\nBROKEN\n")
	c, d, _ := newTestCache(t, path)

	p, err := c.GetOrBuild(context.Background(), renderKey(path))
	assert.Nil(t, p)
	assert.Equal(t, common.ClassStep, common.ClassOf(err))
	assert.ErrorIs(t, err, common.ErrCompile)
	assert.Equal(t, 0, d.LivePrograms())
	assert.Equal(t, 0, c.Len())
}

func TestSchemaErrorNeverReachesDevice(t *testing.T) {
	dir := t.TempDir()
	path := writeShader(t, dir, "matrix.wgsl", strings.Replace(tintWGSL, "tint: vec4f", "tint: mat4x4f", 1))
	c, d, fc := newTestCache(t, path)

	_, err := c.GetOrBuild(context.Background(), renderKey(path))
	assert.ErrorIs(t, err, common.ErrSchema)
	assert.Equal(t, common.ClassStep, common.ClassOf(err))
	assert.Equal(t, 0, fc.Calls())
	assert.Equal(t, 0, d.LivePrograms())
}

func TestMissingSourceIsStepError(t *testing.T) {
	c, _, _ := newTestCache(t)
	_, err := c.GetOrBuild(context.Background(), renderKey(filepath.Join(t.TempDir(), "absent.wgsl")))
	assert.Equal(t, common.ClassStep, common.ClassOf(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestComputePipeline(t *testing.T) {
	dir := t.TempDir()
	path := writeShader(t, dir, "double.wgsl", doubleWGSL)
	c, d, _ := newTestCache(t)
	d.RegisterComputeKernel(path, func(in *gpu.ComputeInput) {})

	p, err := c.GetOrBuild(context.Background(), Key{Kind: KindCompute, Compute: path})
	require.NoError(t, err)
	assert.Equal(t, [3]uint32{32, 1, 1}, p.Schema.WorkgroupSize)
	assert.Equal(t, [3]uint32{4, 1, 1}, p.Workgroups(100))
	assert.Equal(t, gpu.StageCompute, p.Schema.Resources[0].Stages)
	assert.Equal(t, "double.wgsl", p.Key.Label())
}

func TestWorkgroupsDefault(t *testing.T) {
	p := &Pipeline{Schema: &shader.Schema{WorkgroupSize: [3]uint32{1, 1, 1}}}
	assert.Equal(t, [3]uint32{2, 1, 1}, p.Workgroups(65))
	assert.Equal(t, [3]uint32{1, 1, 1}, p.Workgroups(0))
}

func TestBuiltinMipBlit(t *testing.T) {
	c, _, _ := newTestCache(t)
	p, err := c.GetOrBuild(context.Background(), renderKey(gpu.MipBlitPath))
	require.NoError(t, err)
	_, ok := p.Schema.Resource("source_texture")
	assert.True(t, ok)
	assert.Nil(t, p.Schema.UniformBlock)
}

func TestPrecompile(t *testing.T) {
	dir := t.TempDir()
	good := writeShader(t, dir, "good.wgsl", tintWGSL)
	bad := writeShader(t, dir, "bad.wgsl", tintWGSL+"\nBROKEN\n")
	c, _, fc := newTestCache(t, good, bad)

	alpha := renderKey(good)
	alpha.State.Blend = gpu.BlendAdditive
	err := c.Precompile(context.Background(), []Key{renderKey(good), alpha, renderKey(bad)})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrCompile)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 2, fc.Calls(), "each distinct source is validated once")

	_, err = c.GetOrBuild(context.Background(), renderKey(good))
	require.NoError(t, err)
	assert.Equal(t, 2, fc.Calls())
}

func TestRelease(t *testing.T) {
	dir := t.TempDir()
	path := writeShader(t, dir, "tint.wgsl", tintWGSL)
	c, d, _ := newTestCache(t, path)
	_, err := c.GetOrBuild(context.Background(), renderKey(path))
	require.NoError(t, err)

	c.Release()
	assert.Equal(t, 0, d.LivePrograms())
	assert.Equal(t, 0, c.Len())
}

func TestSchemaLookup(t *testing.T) {
	dir := t.TempDir()
	path := writeShader(t, dir, "tint.wgsl", tintWGSL)
	c, _, _ := newTestCache(t)

	s, err := c.Schema(path)
	require.NoError(t, err)
	require.Len(t, s.Editable(), 1)
	assert.Equal(t, "tint", s.Editable()[0].Name)
}

func TestCanceledContext(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetOrBuild(ctx, renderKey(gpu.MipBlitPath))
	assert.ErrorIs(t, err, context.Canceled)
}
