package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/chart"
	"github.com/chewxy/math32"
)

// DefaultShadowHalfExtent is the orthographic half-extent (in world units) of the directional
// light's shadow frustum around the origin.
const DefaultShadowHalfExtent float32 = 40.0

// DefaultShadowNear is the near plane of the light's orthographic shadow projection.
const DefaultShadowNear float32 = 0.1

// DefaultShadowFar is the far plane of the light's orthographic shadow projection.
const DefaultShadowFar float32 = 200.0

type lightImpl struct {
	mu *sync.Mutex

	direction     common.Vec3
	shadowMapSize float32

	halfExtent float32
	near       float32
	far        float32
}

// Light is the single directional light. A pass with id "shadow" renders from its point of view.
type Light interface {
	// Direction returns the normalized world-space direction the light travels.
	Direction() common.Vec3

	// ShadowMapSize returns the edge length in texels of the shadow map.
	ShadowMapSize() float32

	// ViewMatrix returns the light's camera_from_world transform.
	//
	// Returns:
	//   - common.Mat4: a view looking along Direction at the origin
	ViewMatrix() common.Mat4

	// ProjectionMatrix returns the orthographic shadow projection.
	ProjectionMatrix() common.Mat4

	// ViewProjectionMatrix returns ProjectionMatrix * ViewMatrix.
	ViewProjectionMatrix() common.Mat4

	// Apply replaces direction and shadow map size with those of a chart document.
	Apply(s chart.LightSettings)
}

var _ Light = &lightImpl{}

// NewLight creates the chart default light.
//
// Parameters:
//   - options: functional options to configure the light
//
// Returns:
//   - Light: the newly created light
func NewLight(options ...LightBuilderOption) Light {
	l := &lightImpl{
		mu:         &sync.Mutex{},
		halfExtent: DefaultShadowHalfExtent,
		near:       DefaultShadowNear,
		far:        DefaultShadowFar,
	}
	l.apply(chart.DefaultLight)
	for _, opt := range options {
		opt(l)
	}
	return l
}

// LightFromSettings creates a Light from a chart light block.
func LightFromSettings(s chart.LightSettings, options ...LightBuilderOption) Light {
	return NewLight(append([]LightBuilderOption{WithLightSettings(s)}, options...)...)
}

func (l *lightImpl) Direction() common.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.direction
}

func (l *lightImpl) ShadowMapSize() float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shadowMapSize
}

func (l *lightImpl) ViewMatrix() common.Mat4 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.view()
}

func (l *lightImpl) ProjectionMatrix() common.Mat4 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return common.Orthographic(l.halfExtent, l.halfExtent, l.near, l.far)
}

func (l *lightImpl) ViewProjectionMatrix() common.Mat4 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return common.Orthographic(l.halfExtent, l.halfExtent, l.near, l.far).Mul(l.view())
}

func (l *lightImpl) Apply(s chart.LightSettings) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.apply(s)
}

// apply normalizes the direction and keeps the current shadow map size when s leaves it zero.
// Caller must hold the mutex.
func (l *lightImpl) apply(s chart.LightSettings) {
	dir := common.Normalize(s.Direction)
	if dir == (common.Vec3{}) {
		dir = common.Normalize(chart.DefaultLight.Direction)
	}
	l.direction = dir
	l.shadowMapSize = common.Coalesce(s.ShadowMapSize, l.shadowMapSize, chart.DefaultLight.ShadowMapSize)
}

// view places the eye halfway through the depth range, upstream of the origin.
// Caller must hold the mutex.
func (l *lightImpl) view() common.Mat4 {
	d := (l.near + l.far) / 2
	eye := common.Vec3{-l.direction[0] * d, -l.direction[1] * d, -l.direction[2] * d}
	up := common.Vec3{0, 1, 0}
	if math32.Abs(l.direction[1]) > 0.99 {
		up = common.Vec3{0, 0, 1}
	}
	return common.LookAt(eye, common.Vec3{}, up)
}
