package simulation

// CursorBuilderOption is a functional option used to configure a Cursor during construction.
type CursorBuilderOption func(*Cursor)

// WithStepSeconds sets the fixed tick length.
//
// Parameters:
//   - seconds: the simulated time one tick advances, ignored unless positive
//
// Returns:
//   - CursorBuilderOption: a function that sets the tick length of the cursor
func WithStepSeconds(seconds float64) CursorBuilderOption {
	return func(c *Cursor) {
		if seconds > 0 {
			c.StepSeconds = seconds
		}
	}
}

// WithMaxSteps caps the ticks executed per presented frame, while running and while paused.
//
// Parameters:
//   - running: the cap while the clock runs
//   - paused: the cap while the clock is paused
//
// Returns:
//   - CursorBuilderOption: a function that sets the per-frame tick caps of the cursor
func WithMaxSteps(running, paused int) CursorBuilderOption {
	return func(c *Cursor) {
		if running > 0 {
			c.MaxStepsPerFrame = running
		}
		if paused > 0 {
			c.MaxStepsPerFramePaused = paused
		}
	}
}

// WithPrecalculation makes every reset start the simulation this many seconds before the cursor.
func WithPrecalculation(seconds float64) CursorBuilderOption {
	return func(c *Cursor) {
		if seconds >= 0 {
			c.PrecalculationSeconds = seconds
		}
	}
}
