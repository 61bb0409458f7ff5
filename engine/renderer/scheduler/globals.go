package scheduler

import (
	"encoding/binary"
	"math"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/camera"
	"github.com/Carmen-Shannon/oxy-chart/engine/chart"
	"github.com/Carmen-Shannon/oxy-chart/engine/control"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/shader"
)

// passView is the part of the globals shared by every object of one pass.
type passView struct {
	view          common.Mat4
	projection    common.Mat4
	lightViewProj common.Mat4
	pixelSize     [2]float32
	aspect        float32
	zNear         float32
	fov           float32
	lightDirWorld common.Vec3
	lightDirCam   common.Vec3
	shadowMapSize float32
}

// newPassView derives the view globals for a pass rendering into extent. A shadow pass sees
// the scene from the light: square pixels of the shadow map, no perspective, and the light
// direction pointing straight down the view axis.
func newPassView(cam camera.Camera, light camera.Light, extent common.Extent, shadow bool) passView {
	v := passView{
		lightViewProj: light.ViewProjectionMatrix(),
		lightDirWorld: light.Direction(),
		shadowMapSize: light.ShadowMapSize(),
	}
	if shadow {
		size := max(light.ShadowMapSize(), 1)
		v.view = light.ViewMatrix()
		v.projection = light.ProjectionMatrix()
		v.pixelSize = [2]float32{1 / size, 1 / size}
		v.aspect = 1
		v.zNear = -size
		v.lightDirCam = common.Vec3{0, 0, 1}
		return v
	}

	v.aspect = extent.Aspect()
	v.view = cam.ViewMatrix()
	v.projection = cam.ProjectionMatrix(v.aspect)
	if extent.Valid() {
		v.pixelSize = [2]float32{1 / float32(extent.Width), 1 / float32(extent.Height)}
	}
	v.zNear = cam.Near()
	v.fov = cam.Fov()
	v.lightDirCam = common.Normalize(v.view.TransformDirection(v.lightDirWorld))
	return v
}

// globalValues returns the value of every global for one object drawn in a pass.
//
// Parameters:
//   - frame: the frame being executed
//   - v: the pass view
//   - model: the object's world_from_model matrix
//   - instances: the instance count of the draw
//
// Returns:
//   - map[shader.GlobalType][]float32: the values keyed by global
func globalValues(frame *FrameContext, v passView, model common.Mat4, instances int) map[shader.GlobalType][]float32 {
	projFromWorld := v.projection.Mul(v.view)
	camFromModel := v.view.Mul(model)
	return map[shader.GlobalType][]float32{
		shader.GlobalAppTime:                  {float32(frame.AppTime)},
		shader.GlobalChartTime:                {float32(frame.ChartTime)},
		shader.GlobalProjectionFromModel:      mat(projFromWorld.Mul(model)),
		shader.GlobalLightProjectionFromModel: mat(v.lightViewProj.Mul(model)),
		shader.GlobalLightProjectionFromWorld: mat(v.lightViewProj),
		shader.GlobalProjectionFromCamera:     mat(v.projection),
		shader.GlobalProjectionFromWorld:      mat(projFromWorld),
		shader.GlobalCameraFromModel:          mat(camFromModel),
		shader.GlobalCameraFromWorld:          mat(v.view),
		shader.GlobalWorldFromModel:           mat(model),
		shader.GlobalInstanceCount:            {float32(instances)},
		shader.GlobalPixelSize:                v.pixelSize[:],
		shader.GlobalAspectRatio:              {v.aspect},
		shader.GlobalZNear:                    {v.zNear},
		shader.GlobalFieldOfView:              {v.fov},
		shader.GlobalLightDirWorldspaceNorm:   v.lightDirWorld[:],
		shader.GlobalLightDirCamspaceNorm:     v.lightDirCam[:],
		shader.GlobalShadowMapSize:            {v.shadowMapSize},
		shader.GlobalSimulationFrameRatio:     {frame.Ratio},
		shader.GlobalSimulationStepSeconds:    {float32(frame.StepSeconds)},
	}
}

func mat(m common.Mat4) []float32 {
	return m[:]
}

// modelMatrix builds world_from_model from a chart transform. A zero scale means unit scale.
func modelMatrix(t chart.Transform) common.Mat4 {
	scale := t.Scale
	if scale == (common.Vec3{}) {
		scale = common.Vec3{1, 1, 1}
	}
	return common.ModelMatrix(t.Position, t.Rotation, scale)
}

// packUniforms lays out the uniform block of schema. Globals come first, then the member
// defaults, then the per-object overrides, then the animated controls in the order given.
// Overrides and controls for members the shader does not declare are ignored, and controls
// never touch globals.
//
// Parameters:
//   - schema: the reflected schema of the pipeline
//   - globals: the global values
//   - params: the object or step parameter overrides
//   - controls: evaluated controls by member name, later maps winning
//
// Returns:
//   - []byte: the block contents, nil when the schema has no uniform block
func packUniforms(schema *shader.Schema, globals map[shader.GlobalType][]float32, params map[string][]float32, controls ...map[string]control.Value) []byte {
	if schema.UniformBlock == nil {
		return nil
	}
	out := make([]byte, schema.UniformBlock.Size)
	for _, e := range schema.Entries {
		var values []float32
		switch {
		case e.Group == shader.GroupGlobal:
			values = globals[e.Global]
		case params[e.Name] != nil:
			values = make([]float32, len(e.Default))
			copy(values, e.Default)
			copy(values, params[e.Name])
		default:
			values = e.Default
		}
		if e.Group != shader.GroupGlobal {
			for _, c := range controls {
				if v, ok := c[e.Name]; ok {
					values = v.Apply(values, e.Type.Components())
				}
			}
		}
		n := min(len(values), e.Type.Components())
		for i := 0; i < n; i++ {
			off := e.Offset + uint64(i)*4
			if off+4 > uint64(len(out)) {
				break
			}
			binary.LittleEndian.PutUint32(out[off:], math.Float32bits(values[i]))
		}
	}
	return out
}
