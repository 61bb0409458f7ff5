package profiler

import (
	"io"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickReportsAfterInterval(t *testing.T) {
	common.SetLogOutput(io.Discard)
	p := NewProfiler(WithInterval(time.Second), WithMemoryStats(false))
	start := time.Unix(100, 0)

	assert.False(t, p.Tick(start))
	for i := 1; i < 10; i++ {
		assert.False(t, p.Tick(start.Add(time.Duration(i)*100*time.Millisecond)))
	}
	require.True(t, p.Tick(start.Add(time.Second+50*time.Millisecond)))

	r := p.Last()
	assert.Equal(t, 10, r.Frames)
	assert.InDelta(t, 10/1.05, r.FPS, 1e-9)
	assert.Equal(t, 150*time.Millisecond, r.MaxFrame)
}

func TestStepsSortedByTotal(t *testing.T) {
	common.SetLogOutput(io.Discard)
	p := NewProfiler(WithInterval(time.Millisecond), WithMemoryStats(false))
	start := time.Unix(0, 0)
	p.Tick(start)

	p.RecordStep("fast", time.Millisecond)
	p.RecordStep("slow", 4*time.Millisecond)
	p.RecordStep("slow", 2*time.Millisecond)
	require.True(t, p.Tick(start.Add(time.Second)))

	steps := p.Last().Steps
	require.Len(t, steps, 2)
	assert.Equal(t, "slow", steps[0].ID)
	assert.Equal(t, 2, steps[0].Calls)
	assert.Equal(t, 3*time.Millisecond, steps[0].Mean())
	assert.Equal(t, 4*time.Millisecond, steps[0].Max)
	assert.Equal(t, "fast", steps[1].ID)

	p.RecordStep("fast", time.Millisecond)
	require.True(t, p.Tick(start.Add(2*time.Second)))
	assert.Len(t, p.Last().Steps, 1)
}

func TestMeanWithoutCalls(t *testing.T) {
	assert.Equal(t, time.Duration(0), StepStats{}.Mean())
}
