// Package window provides the GLFW window that presents the chart's screen target and feeds
// resize and input events back to the engine.
package window

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// DragPhase tells a drag callback where in the gesture the cursor is.
type DragPhase int

const (
	DragBegin DragPhase = iota
	DragMove
	DragEnd
)

// Window is the presentation surface collaborator.
// Every method must be called from the thread that created the window.
type Window interface {
	// SetResizeCallback sets the function called when the framebuffer size changes.
	//
	// Parameters:
	//   - callback: function receiving the new size in pixels
	SetResizeCallback(callback func(size common.Extent))

	// SetScrollCallback sets the callback for mouse wheel events.
	//
	// Parameters:
	//   - callback: function receiving the vertical scroll delta, positive away from the user
	SetScrollCallback(callback func(delta float32))

	// SetKeyCallback sets the callback for key presses and releases.
	//
	// Parameters:
	//   - callback: function receiving the key code and whether it went down
	SetKeyCallback(callback func(key uint32, pressed bool))

	// SetDragCallback sets the callback for left mouse button drags.
	//
	// Parameters:
	//   - callback: function receiving the drag phase and cursor position
	SetDragCallback(callback func(phase DragPhase, x, y int32))

	// SurfaceDescriptor returns the platform surface descriptor for creating a WebGPU surface.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the descriptor, nil once the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// Size returns the framebuffer size in pixels.
	Size() common.Extent

	// PollEvents dispatches pending window events to the callbacks without blocking.
	//
	// Returns:
	//   - bool: false once the window has been asked to close
	PollEvents() bool

	// IsRunning reports whether the window is still open.
	IsRunning() bool

	// Close destroys the window.
	//
	// Returns:
	//   - error: error if the window was never opened
	Close() error
}

type engineWindow struct {
	title     string
	width     int
	height    int
	minWidth  int
	minHeight int

	platform *glfwWindow

	onResize func(size common.Extent)
	onScroll func(delta float32)
	onKey    func(key uint32, pressed bool)
	onDrag   func(phase DragPhase, x, y int32)
}

var _ Window = &engineWindow{}

// NewWindow opens a window. The calling goroutine becomes the window's thread.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the open window
//   - error: error if the platform window cannot be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:     "oxy-chart",
		width:     1280,
		height:    720,
		minWidth:  64,
		minHeight: 64,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := openPlatformWindow(w); err != nil {
		return nil, fmt.Errorf("open window: %w", err)
	}
	return w, nil
}

func (w *engineWindow) SetResizeCallback(callback func(size common.Extent)) {
	w.onResize = callback
}

func (w *engineWindow) SetScrollCallback(callback func(delta float32)) {
	w.onScroll = callback
}

func (w *engineWindow) SetKeyCallback(callback func(key uint32, pressed bool)) {
	w.onKey = callback
}

func (w *engineWindow) SetDragCallback(callback func(phase DragPhase, x, y int32)) {
	w.onDrag = callback
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformSurfaceDescriptor(w)
}

func (w *engineWindow) Size() common.Extent {
	return common.Extent{Width: w.width, Height: w.height}
}

func (w *engineWindow) PollEvents() bool {
	return platformPollEvents(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunning(w)
}

func (w *engineWindow) Close() error {
	return platformClose(w)
}

func (w *engineWindow) resized(width, height int) {
	w.width, w.height = width, height
	if w.onResize != nil {
		w.onResize(w.Size())
	}
}
