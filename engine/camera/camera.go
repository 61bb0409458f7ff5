// Package camera supplies the view and light transforms behind the matrix globals. A Camera is
// positioned from the chart document and can be steered by an attached orbit Controller.
package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/chart"
)

type cameraImpl struct {
	mu *sync.Mutex

	position common.Vec3
	target   common.Vec3
	up       common.Vec3

	fov  float32
	near float32
	far  float32

	controller Controller
}

// Camera holds the perspective settings used for every non-shadow pass.
type Camera interface {
	// Position returns the eye position in world space. An attached controller takes precedence.
	//
	// Returns:
	//   - common.Vec3: the eye position
	Position() common.Vec3

	// Target returns the point the camera looks at. An attached controller takes precedence.
	//
	// Returns:
	//   - common.Vec3: the look-at target
	Target() common.Vec3

	// Up returns the camera's up vector.
	Up() common.Vec3

	// Fov returns the vertical field of view in radians.
	Fov() float32

	// Near returns the near clipping plane distance.
	Near() float32

	// Far returns the far clipping plane distance.
	Far() float32

	// ViewMatrix returns the camera_from_world transform.
	//
	// Returns:
	//   - common.Mat4: the view matrix (column-major)
	ViewMatrix() common.Mat4

	// ProjectionMatrix returns the projection_from_camera transform for a viewport.
	//
	// Parameters:
	//   - aspect: the viewport width divided by its height
	//
	// Returns:
	//   - common.Mat4: the projection matrix (column-major)
	ProjectionMatrix(aspect float32) common.Mat4

	// Apply replaces position, target and lens settings with those of a chart document.
	// The attached controller, if any, is re-anchored to the new position and target.
	//
	// Parameters:
	//   - s: the chart camera block
	Apply(s chart.CameraSettings)

	// Controller returns the attached controller, or nil.
	Controller() Controller

	// SetController attaches a controller. Pass nil to detach.
	SetController(ctrl Controller)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a Camera at the chart default position.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu: &sync.Mutex{},
		up: common.Vec3{0, 1, 0},
	}
	c.apply(chart.DefaultCamera)
	for _, option := range options {
		option(c)
	}
	return c
}

// FromSettings creates a Camera from a chart camera block.
func FromSettings(s chart.CameraSettings, options ...CameraBuilderOption) Camera {
	return NewCamera(append([]CameraBuilderOption{WithSettings(s)}, options...)...)
}

func (c *cameraImpl) Position() common.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller != nil {
		return c.controller.Position()
	}
	return c.position
}

func (c *cameraImpl) Target() common.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller != nil {
		return c.controller.Target()
	}
	return c.target
}

func (c *cameraImpl) Up() common.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) ViewMatrix() common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, target := c.position, c.target
	if c.controller != nil {
		pos, target = c.controller.Position(), c.controller.Target()
	}
	return common.LookAt(pos, target, c.up)
}

func (c *cameraImpl) ProjectionMatrix(aspect float32) common.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if aspect <= 0 {
		aspect = 1
	}
	return common.Perspective(c.fov, aspect, c.near, c.far)
}

func (c *cameraImpl) Apply(s chart.CameraSettings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apply(s)
	if c.controller != nil {
		c.controller.LookAt(c.position, c.target)
	}
}

func (c *cameraImpl) Controller() Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) SetController(ctrl Controller) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
}

// apply copies the chart settings, keeping the current value for zero lens fields.
// Caller must hold the mutex.
func (c *cameraImpl) apply(s chart.CameraSettings) {
	c.position = s.Position
	c.target = s.Target
	c.fov = common.Coalesce(s.FieldOfView, c.fov, chart.DefaultCamera.FieldOfView)
	c.near = common.Coalesce(s.ZNear, c.near, chart.DefaultCamera.ZNear)
	c.far = common.Coalesce(s.ZFar, c.far, chart.DefaultCamera.ZFar)
}
