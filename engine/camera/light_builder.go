package camera

import (
	"github.com/Carmen-Shannon/oxy-chart/engine/chart"
)

// LightBuilderOption is a functional option for configuring a Light.
type LightBuilderOption func(*lightImpl)

// WithLightSettings applies a chart light block.
func WithLightSettings(s chart.LightSettings) LightBuilderOption {
	return func(l *lightImpl) {
		l.apply(s)
	}
}

// WithShadowFrustum overrides the orthographic shadow volume.
//
// Parameters:
//   - halfExtent: half the width and height of the volume in world units
//   - near, far: clip plane distances along the light direction
//
// Returns:
//   - LightBuilderOption: option function to apply
func WithShadowFrustum(halfExtent, near, far float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.halfExtent = halfExtent
		l.near = near
		l.far = far
	}
}
