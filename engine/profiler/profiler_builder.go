package profiler

import "time"

type ProfilerBuilderOption func(*Profiler)

// WithInterval sets how often a report is produced.
//
// Parameters:
//   - d: the reporting interval
//
// Returns:
//   - ProfilerBuilderOption: a function that sets the interval
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithMemoryStats toggles reading runtime memory statistics for each report.
//
// Parameters:
//   - enabled: whether heap and GC figures are collected
//
// Returns:
//   - ProfilerBuilderOption: a function that sets the flag
func WithMemoryStats(enabled bool) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.memory = enabled
	}
}
