// Package simulation decouples the fixed simulation tick from presentation. Each presented frame
// asks the cursor how many whole ticks are due, and how far presentation has moved past the
// last completed tick.
package simulation

import (
	"github.com/Carmen-Shannon/oxy-chart/common"
)

const (
	DefaultStepSeconds            = 1.0 / 60.0
	DefaultMaxStepsPerFrame       = 3
	DefaultMaxStepsPerFramePaused = 2

	seekEpsilon = 1e-9
)

// Advance is the simulation work due for one presented frame.
type Advance struct {
	// Ticks is the number of simulate dispatches to run this frame.
	Ticks int

	// Times holds the simulated chart time of each tick, oldest first.
	Times []float64

	// Ratio is the fraction of a tick presentation has advanced past the last completed tick.
	Ratio float32

	// Reset is true when the init dispatches must run before the ticks.
	Reset bool
}

// Cursor tracks simulated time against the presented chart time.
// The simulation keeps (simTime - StepSeconds) < cursor <= simTime between frames.
type Cursor struct {
	StepSeconds            float64
	MaxStepsPerFrame       int
	MaxStepsPerFramePaused int
	PrecalculationSeconds  float64

	cursor  float64
	simTime float64
	started bool
}

// NewCursor creates a Cursor that resets on its first Advance.
//
// Parameters:
//   - opts: optional builder options
//
// Returns:
//   - *Cursor: the new cursor
func NewCursor(opts ...CursorBuilderOption) *Cursor {
	c := &Cursor{
		StepSeconds:            DefaultStepSeconds,
		MaxStepsPerFrame:       DefaultMaxStepsPerFrame,
		MaxStepsPerFramePaused: DefaultMaxStepsPerFramePaused,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reset makes the next Advance restart the simulation. The cursor itself keeps its position.
func (c *Cursor) Reset() {
	c.started = false
}

// Advance moves the cursor to the given chart time and returns the ticks due.
//
// Parameters:
//   - cursor: the presented chart time in seconds
//   - paused: selects the lower per-frame tick cap
//
// Returns:
//   - Advance: the ticks, their simulated times, the interpolation ratio and whether a reset happened
func (c *Cursor) Advance(cursor float64, paused bool) Advance {
	c.cursor = cursor
	var out Advance

	if c.started && cursor < c.simTime-c.StepSeconds-seekEpsilon {
		common.Logger().Debug("simulation reset by backwards seek", "cursor", cursor, "sim_time", c.simTime)
		c.started = false
	}

	if !c.started {
		c.started = true
		c.simTime = cursor - c.PrecalculationSeconds
		out.Reset = true
		// The precalculation window is simulated without a cap.
		for c.simTime <= cursor {
			c.simTime += c.StepSeconds
			out.Ticks++
			out.Times = append(out.Times, c.simTime)
		}
		out.Ratio = c.ratio()
		return out
	}

	limit := c.MaxStepsPerFrame
	if paused {
		limit = c.MaxStepsPerFramePaused
	}
	for c.simTime <= cursor && out.Ticks < limit {
		c.simTime += c.StepSeconds
		out.Ticks++
		out.Times = append(out.Times, c.simTime)
	}
	if c.simTime <= cursor {
		c.simTime = cursor
	}
	out.Ratio = c.ratio()
	return out
}

// DropPartialTick re-anchors the simulation one full tick ahead of the cursor, discarding the
// partially presented tick. A canvas resize calls it so no catch-up burst follows the stall.
func (c *Cursor) DropPartialTick() {
	if c.started {
		c.simTime = c.cursor + c.StepSeconds
	}
}

// Ratio returns the interpolation fraction at the last advanced cursor position.
func (c *Cursor) Ratio() float32 {
	if !c.started {
		return 0
	}
	return c.ratio()
}

// SimulationTime returns the time of the most recent simulated tick.
func (c *Cursor) SimulationTime() float64 {
	return c.simTime
}

func (c *Cursor) ratio() float32 {
	r := 1 - (c.simTime-c.cursor)/c.StepSeconds
	return common.Clamp(float32(r), 0, 1)
}
