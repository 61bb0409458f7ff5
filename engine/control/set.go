package control

import (
	"fmt"
	"sync"
)

// Set holds the controls of the active chart.
type Set struct {
	mu       *sync.RWMutex
	controls []Control
}

// NewSet creates a set holding controls.
//
// Parameters:
//   - controls: the chart's controls, validated and unique by Key
//
// Returns:
//   - *Set: the new set
func NewSet(controls []Control) *Set {
	return &Set{mu: &sync.RWMutex{}, controls: controls}
}

// Replace swaps in the controls of a newly loaded chart.
func (s *Set) Replace(controls []Control) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controls = controls
}

// Len returns the number of controls.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.controls)
}

// Evaluate samples every control at chart time t.
//
// Parameters:
//   - t: the chart time in seconds
//
// Returns:
//   - Values: the evaluated controls by target and uniform, nil when the set is empty
func (s *Set) Evaluate(t float64) Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.controls) == 0 {
		return nil
	}
	out := make(Values)
	for _, c := range s.controls {
		byUniform := out[c.Target]
		if byUniform == nil {
			byUniform = make(map[string]Value)
			out[c.Target] = byUniform
		}
		byUniform[c.Uniform] = c.Evaluate(float32(t))
	}
	return out
}

// CheckUnique reports the first pair of controls that drive the same uniform of the same target.
func CheckUnique(controls []Control) error {
	seen := make(map[string]bool, len(controls))
	for _, c := range controls {
		if seen[c.Key()] {
			return fmt.Errorf("duplicate control %q", c.Key())
		}
		seen[c.Key()] = true
	}
	return nil
}
