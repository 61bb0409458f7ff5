package main

import (
	"bytes"
	"context"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine"
	"github.com/Carmen-Shannon/oxy-chart/engine/config"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/shader"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tintWGSL = `
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

const sampledWGSL = tintWGSL + `
@group(0) @binding(1) var src: texture_2d<f32>;
`

const tintChart = `
images:
  - {id: color, format: rgba32f, size: {canvas: 0.5}}
steps:
  - draw:
      id: main
      passes:
        - {id: solid, color: [color]}
      objects:
        - id: plane
          mesh: {file: builtin, name: fullscreen}
          params: {color: [0, 1, 0, 1]}
          material:
            passes:
              solid: {vertex: tint.wgsl, depth_test: false, depth_write: false}
`

type acceptAll struct{}

func (acceptAll) Validate(string, shader.Language) error { return nil }

func TestMain(m *testing.M) {
	common.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestSchemaCommandPrintsEntries(t *testing.T) {
	dir := writeFiles(t, map[string]string{"tint.wgsl": sampledWGSL})

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"schema", filepath.Join(dir, "tint.wgsl"), "--log-level", "error"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	text := out.String()
	assert.Contains(t, text, "global chart_time")
	assert.Contains(t, text, "color")
	assert.Contains(t, text, "1 0 0 1")
	assert.Contains(t, text, "src")
	assert.Contains(t, text, "texture")
}

func TestSchemaCommandMissingFile(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"schema", filepath.Join(t.TempDir(), "missing.wgsl")})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestRootRejectsUnknownLogLevel(t *testing.T) {
	dir := writeFiles(t, map[string]string{"tint.wgsl": tintWGSL})
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"schema", filepath.Join(dir, "tint.wgsl"), "--log-level", "chatty"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestRenderChartUsesParameterColor(t *testing.T) {
	dir := writeFiles(t, map[string]string{"tint.wgsl": tintWGSL, "chart.yaml": tintChart})

	img, err := renderChart(context.Background(), filepath.Join(dir, "chart.yaml"), config.Default(), renderOptions{
		frames:   3,
		image:    "color",
		width:    8,
		height:   6,
		compiler: acceptAll{},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())
	assert.Equal(t, color.NRGBA{G: 255, A: 255}, img.NRGBAAt(1, 1))

	out := filepath.Join(dir, "out.png")
	require.NoError(t, imaging.Save(img, out))
	saved, err := imaging.Open(out)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), saved.Bounds())
}

func TestRenderChartRejectsUnknownImage(t *testing.T) {
	dir := writeFiles(t, map[string]string{"tint.wgsl": tintWGSL, "chart.yaml": tintChart})
	_, err := renderChart(context.Background(), filepath.Join(dir, "chart.yaml"), config.Default(), renderOptions{
		frames: 1, image: "nope", width: 8, height: 6, compiler: acceptAll{},
	})
	assert.ErrorIs(t, err, common.ErrUnknownImage)
}

func TestRenderChartNeedsFrames(t *testing.T) {
	_, err := renderChart(context.Background(), "chart.yaml", config.Default(), renderOptions{frames: 0})
	assert.Error(t, err)
}

func TestParameterColorFallsBackToWhite(t *testing.T) {
	out := parameterColor(&gpu.FragmentInput{})
	assert.Equal(t, []common.Color{{1, 1, 1, 1}}, out.Colors)
}

func TestUnorm8(t *testing.T) {
	assert.Equal(t, uint8(0), unorm8(-1))
	assert.Equal(t, uint8(128), unorm8(0.5))
	assert.Equal(t, uint8(255), unorm8(2))
}

func TestKeyBindings(t *testing.T) {
	eng := engine.NewEngine(gpu.NewSoftwareDevice(4, 4), "chart.yaml")
	t.Cleanup(eng.Close)
	keys := keyBindings(eng)

	keys(common.KeySpace, true)
	assert.True(t, eng.Paused())
	keys(common.KeySpace, false)
	assert.True(t, eng.Paused())
	keys(common.KeySpace, true)
	assert.False(t, eng.Paused())

	// Profiler is disabled by default; the binding only logs.
	keys(common.KeyP, true)
	keys(common.KeyR, true)
}
