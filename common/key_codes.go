package common

// Key codes delivered by the window. They match GLFW key codes, which use ASCII values for
// printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeySpace = 32  // pause and resume chart time
	KeyP     = 80  // print profiler stats
	KeyR     = 82  // reset the simulation
	KeyEsc   = 256 // close the window
)
