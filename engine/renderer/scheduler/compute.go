package scheduler

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/chart"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
)

// compute records the dispatches of a compute step. An init step dispatches once into the
// next buffer when the simulation resets. A simulate step dispatches once per tick, swapping
// the buffer roles before each dispatch so it reads the latest state and writes the next.
func (r *frameRun) compute(c *chart.Compute, cl *gpu.CommandList) error {
	var ticks int
	switch c.Run {
	case chart.RunInit:
		if r.frame.ResetSimulation {
			ticks = 1
		}
	case chart.RunSimulate:
		ticks = r.frame.SimulationTicks
	default:
		return common.StepError("compute", c.StepID, fmt.Errorf("unknown run mode %q", c.Run))
	}
	if ticks <= 0 {
		return nil
	}

	db, err := r.res.DoubleBuffer(c.Buffer)
	if err != nil {
		return common.StepError("compute", c.StepID, err)
	}
	p, err := r.pipeline(c.StepID, computeKey(c))
	if err != nil {
		return err
	}

	// Bind once up front so a missing binding fails before any role has moved.
	rb := resourceBindings{buffers: c.Buffers}
	if _, err := rb.bind(p.Schema, r.res, nil); err != nil {
		return common.StepError("compute", c.StepID, err)
	}

	view := newPassView(r.cam, r.light, r.frame.Canvas, false)
	swaps := 0
	for tick := 0; tick < ticks; tick++ {
		if c.Run == chart.RunSimulate {
			db.Swap()
			swaps++
		}
		frame := *r.frame
		if tick < len(r.frame.TickTimes) {
			frame.ChartTime = r.frame.TickTimes[tick]
		}
		uniforms := packUniforms(p.Schema, globalValues(&frame, view, common.Identity(), db.ItemCount), c.Params, frame.Controls.For(c.StepID))
		bindings, err := rb.bind(p.Schema, r.res, uniforms)
		if err != nil {
			for ; swaps > 0; swaps-- {
				db.Swap()
			}
			return common.StepError("compute", c.StepID, err)
		}

		r.tracker.before(cl, c.Reads())
		cl.Record(gpu.Dispatch{
			Label:       fmt.Sprintf("%s#%d", c.StepID, tick),
			Program:     p.Program,
			Workgroups:  p.Workgroups(db.ItemCount),
			Invocations: db.ItemCount,
			Bindings:    bindings,
		})
		r.tracker.wrote(c.Writes()...)
	}
	return nil
}
