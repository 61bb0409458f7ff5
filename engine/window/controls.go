package window

import (
	"github.com/Carmen-Shannon/oxy-chart/engine/camera"
)

// AttachOrbit drives ctrl from the window: left drag orbits and the wheel zooms.
//
// Parameters:
//   - w: the window whose input is used
//   - ctrl: the controller to drive
func AttachOrbit(w Window, ctrl camera.Controller) {
	w.SetScrollCallback(func(delta float32) {
		ctrl.Zoom(delta)
	})
	w.SetDragCallback(func(phase DragPhase, x, y int32) {
		switch phase {
		case DragBegin:
			ctrl.BeginDrag(x, y)
		case DragMove:
			ctrl.Drag(x, y)
		case DragEnd:
			ctrl.EndDrag()
		}
	})
}
