package camera

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/chart"
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func transformPoint(m common.Mat4, p common.Vec3) [4]float32 {
	var out [4]float32
	for row := 0; row < 4; row++ {
		out[row] = m[row]*p[0] + m[4+row]*p[1] + m[8+row]*p[2] + m[12+row]
	}
	return out
}

func TestCameraDefaults(t *testing.T) {
	c := NewCamera()
	assert.Equal(t, chart.DefaultCamera.Position, c.Position())
	assert.Equal(t, chart.DefaultCamera.Target, c.Target())
	assert.Equal(t, chart.DefaultCamera.FieldOfView, c.Fov())
	assert.Equal(t, chart.DefaultCamera.ZNear, c.Near())
	assert.Equal(t, chart.DefaultCamera.ZFar, c.Far())
	assert.Nil(t, c.Controller())
}

func TestCameraViewMatrix(t *testing.T) {
	c := FromSettings(chart.CameraSettings{Position: common.Vec3{0, 0, 5}, Target: common.Vec3{}})
	p := transformPoint(c.ViewMatrix(), common.Vec3{})
	assert.InDelta(t, 0, p[0], 1e-5)
	assert.InDelta(t, 0, p[1], 1e-5)
	assert.InDelta(t, -5, p[2], 1e-5)
}

func TestCameraSettingsKeepLensWhenOmitted(t *testing.T) {
	c := NewCamera(WithFov(1.2), WithClipPlanes(0.5, 50))
	c.Apply(chart.CameraSettings{Position: common.Vec3{1, 2, 3}})
	assert.Equal(t, common.Vec3{1, 2, 3}, c.Position())
	assert.Equal(t, float32(1.2), c.Fov())
	assert.Equal(t, float32(0.5), c.Near())
	assert.Equal(t, float32(50), c.Far())
}

func TestCameraProjectionAspect(t *testing.T) {
	c := NewCamera()
	wide := c.ProjectionMatrix(2)
	square := c.ProjectionMatrix(1)
	assert.InDelta(t, square[0]/2, wide[0], 1e-6)
	assert.Equal(t, square, c.ProjectionMatrix(0), "a degenerate aspect falls back to 1")
}

func TestOrbitControllerAnchorsToCamera(t *testing.T) {
	ctrl := NewOrbitController()
	c := NewCamera(WithController(ctrl))
	assert.InDelta(t, 5, ctrl.Radius(), 1e-5)
	assert.InDelta(t, 0, ctrl.Azimuth(), 1e-5)
	assert.InDelta(t, 0, ctrl.Elevation(), 1e-5)

	ctrl.Orbit(math32.Pi/2, 0)
	pos := c.Position()
	assert.InDelta(t, 5, pos[0], 1e-4)
	assert.InDelta(t, 0, pos[2], 1e-4)

	c.Apply(chart.CameraSettings{Position: common.Vec3{0, 3, 0}, Target: common.Vec3{0, 1, 0}})
	assert.InDelta(t, 2, ctrl.Radius(), 1e-5)
	assert.Equal(t, common.Vec3{0, 1, 0}, c.Target())
}

func TestOrbitControllerZoomAndDrag(t *testing.T) {
	ctrl := NewOrbitController(WithZoomSpeed(0.1), WithMouseSensitivity(0.01), WithRadiusLimits(1, 10))
	ctrl.LookAt(common.Vec3{0, 0, 5}, common.Vec3{})

	ctrl.Zoom(1)
	assert.InDelta(t, 4.5, ctrl.Radius(), 1e-5)
	ctrl.Zoom(-100)
	assert.Equal(t, float32(10), ctrl.Radius())

	ctrl.Drag(50, 0)
	assert.InDelta(t, 0, ctrl.Azimuth(), 1e-6, "moves outside a drag are ignored")

	ctrl.BeginDrag(0, 0)
	ctrl.Drag(50, 0)
	assert.InDelta(t, -0.5, ctrl.Azimuth(), 1e-5)
	ctrl.EndDrag()
	ctrl.Drag(100, 0)
	assert.InDelta(t, -0.5, ctrl.Azimuth(), 1e-5)

	ctrl.Orbit(0, 10)
	assert.InDelta(t, math32.Pi/2-0.01, ctrl.Elevation(), 1e-5)
}

func TestLightDirectionAndMatrices(t *testing.T) {
	l := LightFromSettings(chart.LightSettings{Direction: common.Vec3{0, -2, 0}, ShadowMapSize: 1024})
	assert.Equal(t, common.Vec3{0, -1, 0}, l.Direction())
	assert.Equal(t, float32(1024), l.ShadowMapSize())

	clip := transformPoint(l.ViewProjectionMatrix(), common.Vec3{})
	assert.InDelta(t, 0, clip[0], 1e-5)
	assert.InDelta(t, 0, clip[1], 1e-5)
	assert.InDelta(t, 0.5, clip[2], 1e-4, "the origin sits midway through the shadow depth range")
	assert.Equal(t, l.ProjectionMatrix().Mul(l.ViewMatrix()), l.ViewProjectionMatrix())
}

func TestLightDefaults(t *testing.T) {
	l := NewLight()
	assert.Equal(t, common.Normalize(chart.DefaultLight.Direction), l.Direction())
	assert.Equal(t, chart.DefaultLight.ShadowMapSize, l.ShadowMapSize())

	l.Apply(chart.LightSettings{})
	assert.Equal(t, common.Normalize(chart.DefaultLight.Direction), l.Direction(), "a zero direction falls back to the default")
}
