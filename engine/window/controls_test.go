package window

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-chart/engine/camera"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubWindow records callbacks so tests can fire input without a display.
type stubWindow struct {
	Window
	scroll func(delta float32)
	drag   func(phase DragPhase, x, y int32)
}

func (s *stubWindow) SetScrollCallback(cb func(delta float32))             { s.scroll = cb }
func (s *stubWindow) SetDragCallback(cb func(phase DragPhase, x, y int32)) { s.drag = cb }

func TestAttachOrbit(t *testing.T) {
	w := &stubWindow{}
	ctrl := camera.NewOrbitController()
	AttachOrbit(w, ctrl)
	require.NotNil(t, w.scroll)
	require.NotNil(t, w.drag)

	w.scroll(1)
	assert.InDelta(t, 4.5, ctrl.Radius(), 1e-5)

	w.drag(DragBegin, 0, 0)
	w.drag(DragMove, 100, 0)
	assert.InDelta(t, -0.5, ctrl.Azimuth(), 1e-5)

	w.drag(DragEnd, 100, 0)
	w.drag(DragMove, 200, 0)
	assert.InDelta(t, -0.5, ctrl.Azimuth(), 1e-5)
}
