// Package profiler aggregates frame and per-step timings and logs them at a fixed interval.
package profiler

import (
	"cmp"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-chart/common"
)

// StepStats is the accumulated recording time of one step within a reporting window.
type StepStats struct {
	ID    string
	Calls int
	Total time.Duration
	Max   time.Duration
}

// Mean returns the average duration per call.
func (s StepStats) Mean() time.Duration {
	if s.Calls == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Calls)
}

// Report summarizes one reporting window.
type Report struct {
	Frames   int
	Elapsed  time.Duration
	FPS      float64
	MaxFrame time.Duration
	HeapMB   float64
	NumGC    uint32

	// Steps is sorted by total time, slowest first.
	Steps []StepStats
}

// Profiler tracks frame rate, frame time and per-step recording time.
// RecordStep may be called from any goroutine; Tick is called once per frame by the frame loop.
type Profiler struct {
	mu *sync.Mutex

	interval    time.Duration
	memory      bool
	windowStart time.Time
	lastFrame   time.Time
	frames      int
	maxFrame    time.Duration
	steps       map[string]*StepStats
	last        Report
	memStats    runtime.MemStats
}

// NewProfiler creates a Profiler. The interval defaults to 1 second.
//
// Parameters:
//   - opts: optional builder options
//
// Returns:
//   - *Profiler: the new profiler
func NewProfiler(opts ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		mu:       &sync.Mutex{},
		interval: time.Second,
		memory:   true,
		steps:    make(map[string]*StepStats),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RecordStep adds one step's recording time to the current window.
//
// Parameters:
//   - id: the step id
//   - d: how long the step took
func (p *Profiler) RecordStep(id string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.steps[id]
	if !ok {
		s = &StepStats{ID: id}
		p.steps[id] = s
	}
	s.Calls++
	s.Total += d
	s.Max = max(s.Max, d)
}

// Tick marks the end of a frame at now. When the interval has elapsed it closes the window,
// logs the report and starts a new window.
//
// Parameters:
//   - now: the time the frame ended
//
// Returns:
//   - bool: true if a report was produced this tick
func (p *Profiler) Tick(now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.windowStart.IsZero() {
		p.windowStart, p.lastFrame = now, now
		return false
	}
	p.frames++
	p.maxFrame = max(p.maxFrame, now.Sub(p.lastFrame))
	p.lastFrame = now

	elapsed := now.Sub(p.windowStart)
	if elapsed < p.interval {
		return false
	}

	r := Report{
		Frames:   p.frames,
		Elapsed:  elapsed,
		FPS:      float64(p.frames) / elapsed.Seconds(),
		MaxFrame: p.maxFrame,
	}
	if p.memory {
		runtime.ReadMemStats(&p.memStats)
		r.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
		r.NumGC = p.memStats.NumGC
	}
	for _, s := range p.steps {
		r.Steps = append(r.Steps, *s)
	}
	slices.SortFunc(r.Steps, func(a, b StepStats) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	p.last = r
	p.log(r)

	p.windowStart = now
	p.frames = 0
	p.maxFrame = 0
	clear(p.steps)
	return true
}

// Last returns the most recent report.
func (p *Profiler) Last() Report {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Profiler) log(r Report) {
	logger := common.Logger()
	logger.Info("frame stats", "fps", r.FPS, "max_frame", r.MaxFrame, "heap_mb", r.HeapMB, "gc", r.NumGC)
	for _, s := range r.Steps {
		logger.Debug("step stats", "step", s.ID, "calls", s.Calls, "mean", s.Mean(), "max", s.Max)
	}
}
