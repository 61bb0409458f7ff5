package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/chewxy/math32"
)

// Controller steers a camera around its target with spherical coordinates. The window's
// middle-mouse drag orbits and the scroll wheel zooms.
type Controller interface {
	// Position returns the eye position derived from target and spherical coordinates.
	Position() common.Vec3

	// Target returns the orbit center.
	Target() common.Vec3

	// LookAt re-anchors the orbit so the eye sits at position looking at target.
	//
	// Parameters:
	//   - position: the eye position
	//   - target: the orbit center
	LookAt(position, target common.Vec3)

	// Orbit rotates around the target.
	//
	// Parameters:
	//   - dAzimuth: horizontal rotation in radians
	//   - dElevation: vertical rotation in radians, clamped to the elevation limits
	Orbit(dAzimuth, dElevation float32)

	// Zoom moves toward (positive) or away from (negative) the target, clamped to the radius limits.
	//
	// Parameters:
	//   - delta: scroll amount, scaled by the zoom speed
	Zoom(delta float32)

	// BeginDrag starts a mouse drag at the given cursor position.
	BeginDrag(x, y int32)

	// Drag orbits by the cursor movement since the last drag event. It does nothing outside a drag.
	Drag(x, y int32)

	// EndDrag ends the current mouse drag.
	EndDrag()

	// Radius returns the distance between eye and target.
	Radius() float32

	// Azimuth returns the horizontal angle around the Y axis in radians.
	Azimuth() float32

	// Elevation returns the vertical angle from the horizontal plane in radians.
	Elevation() float32
}

type orbitController struct {
	mu *sync.Mutex

	target    common.Vec3
	radius    float32
	azimuth   float32
	elevation float32

	minRadius    float32
	maxRadius    float32
	minElevation float32
	maxElevation float32

	mouseSensitivity float32
	zoomSpeed        float32

	dragging     bool
	lastX, lastY int32
}

var _ Controller = &orbitController{}

// NewOrbitController creates an orbit controller five units in front of the origin.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - Controller: the newly created controller
func NewOrbitController(options ...ControllerBuilderOption) Controller {
	oc := &orbitController{
		mu:               &sync.Mutex{},
		radius:           5,
		minRadius:        0.1,
		maxRadius:        1000,
		minElevation:     -math32.Pi/2 + 0.01,
		maxElevation:     math32.Pi/2 - 0.01,
		mouseSensitivity: 0.005,
		zoomSpeed:        0.1,
	}
	for _, opt := range options {
		opt(oc)
	}
	return oc
}

func (oc *orbitController) Position() common.Vec3 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.position()
}

func (oc *orbitController) Target() common.Vec3 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.target
}

func (oc *orbitController) LookAt(position, target common.Vec3) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	d := common.Vec3{position[0] - target[0], position[1] - target[1], position[2] - target[2]}
	r := math32.Sqrt(common.Dot(d, d))
	oc.target = target
	if r == 0 {
		return
	}
	oc.radius = r
	oc.azimuth = math32.Atan2(d[0], d[2])
	oc.elevation = math32.Asin(common.Clamp(d[1]/r, -1, 1))
}

func (oc *orbitController) Orbit(dAzimuth, dElevation float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.azimuth += dAzimuth
	oc.elevation = common.Clamp(oc.elevation+dElevation, oc.minElevation, oc.maxElevation)
}

func (oc *orbitController) Zoom(delta float32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.radius = common.Clamp(oc.radius*(1-delta*oc.zoomSpeed), oc.minRadius, oc.maxRadius)
}

func (oc *orbitController) BeginDrag(x, y int32) {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.dragging = true
	oc.lastX, oc.lastY = x, y
}

func (oc *orbitController) Drag(x, y int32) {
	oc.mu.Lock()
	if !oc.dragging {
		oc.mu.Unlock()
		return
	}
	dx := float32(x-oc.lastX) * oc.mouseSensitivity
	dy := float32(y-oc.lastY) * oc.mouseSensitivity
	oc.lastX, oc.lastY = x, y
	oc.mu.Unlock()
	oc.Orbit(-dx, dy)
}

func (oc *orbitController) EndDrag() {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	oc.dragging = false
}

func (oc *orbitController) Radius() float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.radius
}

func (oc *orbitController) Azimuth() float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.azimuth
}

func (oc *orbitController) Elevation() float32 {
	oc.mu.Lock()
	defer oc.mu.Unlock()
	return oc.elevation
}

// position converts the spherical coordinates to a world-space eye position.
// Caller must hold the mutex.
func (oc *orbitController) position() common.Vec3 {
	ce := math32.Cos(oc.elevation)
	return common.Vec3{
		oc.target[0] + oc.radius*ce*math32.Sin(oc.azimuth),
		oc.target[1] + oc.radius*math32.Sin(oc.elevation),
		oc.target[2] + oc.radius*ce*math32.Cos(oc.azimuth),
	}
}
