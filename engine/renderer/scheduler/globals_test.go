package scheduler

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/camera"
	"github.com/Carmen-Shannon/oxy-chart/engine/chart"
	"github.com/Carmen-Shannon/oxy-chart/engine/control"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeFloats(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

func TestPackUniforms(t *testing.T) {
	schema, err := shader.Extract(fillWGSL, shader.LanguageWGSL)
	require.NoError(t, err)

	globals := globalValues(&FrameContext{ChartTime: 2, Ratio: 0.5}, passView{}, common.Identity(), 3)
	data := packUniforms(schema, globals, map[string][]float32{
		"color":      {0, 1},
		"undeclared": {9},
	})
	require.Len(t, data, int(schema.UniformBlock.Size))

	vals := decodeFloats(data)
	assert.Equal(t, []float32{2, 0.5, 3}, vals[0:3])
	assert.Equal(t, []float32{0, 1, 0, 1}, vals[4:8])
}

func TestPackUniformsDefaults(t *testing.T) {
	schema, err := shader.Extract(fillWGSL, shader.LanguageWGSL)
	require.NoError(t, err)

	vals := decodeFloats(packUniforms(schema, map[shader.GlobalType][]float32{}, nil))
	assert.Equal(t, []float32{1, 0, 0, 1}, vals[4:8])
}

func TestPackUniformsControlsWinOverParams(t *testing.T) {
	schema, err := shader.Extract(fillWGSL, shader.LanguageWGSL)
	require.NoError(t, err)

	red := control.Control{Uniform: "color", Components: []control.Spline{{Points: []control.Point{{Value: 0.25}}}}}
	blue := control.Control{Uniform: "color", Components: []control.Spline{{}, {}, {Points: []control.Point{{Value: 0.75}}}}}
	chartTime := control.Control{Uniform: "g_chart_time", Components: []control.Spline{{Points: []control.Point{{Value: 9}}}}}
	globals := globalValues(&FrameContext{ChartTime: 2}, passView{}, common.Identity(), 1)

	vals := decodeFloats(packUniforms(schema, globals,
		map[string][]float32{"color": {0, 1, 0, 1}},
		map[string]control.Value{"color": red.Evaluate(0), "g_chart_time": chartTime.Evaluate(0)},
		map[string]control.Value{"color": blue.Evaluate(0)},
	))
	assert.Equal(t, float32(2), vals[0])
	assert.Equal(t, []float32{0.25, 1, 0.75, 1}, vals[4:8])

	vals = decodeFloats(packUniforms(schema, globals, nil, map[string]control.Value{"color": blue.Evaluate(0)}))
	assert.Equal(t, []float32{1, 0, 0.75, 1}, vals[4:8])
}

func TestPackUniformsWithoutBlock(t *testing.T) {
	schema, err := shader.Extract(sampleWGSL, shader.LanguageWGSL)
	require.NoError(t, err)
	assert.Nil(t, packUniforms(schema, nil, nil))
}

func TestShadowPassView(t *testing.T) {
	light := camera.NewLight()
	v := newPassView(camera.NewCamera(), light, common.Extent{Width: 640, Height: 480}, true)

	size := light.ShadowMapSize()
	assert.Equal(t, light.ViewMatrix(), v.view)
	assert.Equal(t, light.ProjectionMatrix(), v.projection)
	assert.Equal(t, [2]float32{1 / size, 1 / size}, v.pixelSize)
	assert.Equal(t, float32(1), v.aspect)
	assert.Equal(t, float32(0), v.fov)
	assert.Equal(t, -size, v.zNear)
	assert.Equal(t, common.Vec3{0, 0, 1}, v.lightDirCam)
}

func TestCameraPassView(t *testing.T) {
	cam := camera.NewCamera()
	light := camera.NewLight()
	v := newPassView(cam, light, common.Extent{Width: 200, Height: 100}, false)

	assert.Equal(t, cam.ViewMatrix(), v.view)
	assert.Equal(t, cam.ProjectionMatrix(2), v.projection)
	assert.Equal(t, [2]float32{1.0 / 200, 1.0 / 100}, v.pixelSize)
	assert.Equal(t, float32(2), v.aspect)
	assert.Equal(t, cam.Near(), v.zNear)
	assert.Equal(t, cam.Fov(), v.fov)
	assert.Equal(t, light.ViewProjectionMatrix(), v.lightViewProj)

	dir := v.lightDirCam
	assert.InDelta(t, 1, math.Sqrt(float64(common.Dot(dir, dir))), 1e-5)
}

func TestGlobalMatricesCompose(t *testing.T) {
	v := newPassView(camera.NewCamera(), camera.NewLight(), common.Extent{Width: 4, Height: 4}, false)
	model := modelMatrix(chart.Transform{Position: common.Vec3{1, 2, 3}})
	g := globalValues(&FrameContext{}, v, model, 1)

	want := v.projection.Mul(v.view).Mul(model)
	assert.Equal(t, want[:], g[shader.GlobalProjectionFromModel])
	assert.Equal(t, model[:], g[shader.GlobalWorldFromModel])
	assert.Len(t, g, 20)
}

func TestModelMatrixZeroScale(t *testing.T) {
	assert.Equal(t, common.Identity(), modelMatrix(chart.Transform{}))
}

func TestBarrierTracker(t *testing.T) {
	var tr barrierTracker
	cl := gpu.NewCommandList()

	tr.wrote(chart.ResourceRef{ID: "color", Level: 0}, chart.ResourceRef{ID: chart.ScreenTarget})
	tr.before(cl, []chart.ResourceRef{{ID: "color", Level: 1}})
	assert.Equal(t, 0, cl.Len())

	saved := tr.snapshot()
	tr.before(cl, []chart.ResourceRef{{ID: "color", Level: chart.AllLevels}, {ID: chart.ScreenTarget}})
	require.Equal(t, 1, cl.Len())
	assert.Equal(t, gpu.Barrier{Resources: []string{"color[0]"}}, cl.Commands()[0])
	assert.Equal(t, 1, tr.emitted)

	tr.before(cl, []chart.ResourceRef{{ID: "color", Level: 0}})
	assert.Equal(t, 1, cl.Len())

	tr = saved
	assert.Equal(t, 0, tr.emitted)
	assert.Len(t, tr.written, 1)
}
