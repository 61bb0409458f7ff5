// package common contains plain types and helpers shared across the engine.
package common

// Extent is a width/height pair in pixels.
type Extent struct {
	Width  int
	Height int
}

// Valid reports whether both dimensions are positive.
func (e Extent) Valid() bool {
	return e.Width > 0 && e.Height > 0
}

// Aspect returns width / height, or 1 for an invalid extent.
func (e Extent) Aspect() float32 {
	if !e.Valid() {
		return 1
	}
	return float32(e.Width) / float32(e.Height)
}

// Color is a linear RGBA color.
type Color [4]float32

// DefaultClearColor is used by render passes that do not declare a clear color.
var DefaultClearColor = Color{0.03, 0.03, 0.03, 1.0}
