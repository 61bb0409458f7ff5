// Package control animates shader parameters over chart time. A Control drives one uniform
// member of a step or draw object with a spline per vector component, and a Set evaluates all
// controls of a chart once per frame.
package control

import (
	"errors"
	"fmt"
	"strings"
)

// MaxComponents is the widest uniform a control can drive.
const MaxComponents = 4

// TargetSeparator joins a step id and an object id in a control target.
const TargetSeparator = "/"

// Target returns the control target of an object of a draw step, or of the step itself when
// object is empty.
func Target(step, object string) string {
	if object == "" {
		return step
	}
	return step + TargetSeparator + object
}

// SplitTarget splits a target into its step id and optional object id.
func SplitTarget(target string) (step, object string) {
	step, object, _ = strings.Cut(target, TargetSeparator)
	return step, object
}

// Control drives one uniform member.
type Control struct {
	// Target is a step id, or "step/object" for one object of a draw step. A step target
	// applies to every object of the step.
	Target string

	// Uniform is the uniform block member the control writes.
	Uniform string

	// Components holds one spline per vector component. An empty spline leaves its component
	// to the parameters and shader defaults.
	Components []Spline
}

// Key identifies the uniform the control drives.
func (c Control) Key() string {
	return c.Target + "." + c.Uniform
}

// Validate checks the shape of the control. Target resolution is left to the chart.
//
// Returns:
//   - error: nil when the control is well formed
func (c Control) Validate() error {
	if c.Target == "" {
		return errors.New("control without target")
	}
	if c.Uniform == "" {
		return fmt.Errorf("control %q: missing uniform", c.Target)
	}
	if len(c.Components) == 0 || len(c.Components) > MaxComponents {
		return fmt.Errorf("control %q: want 1 to %d components, got %d", c.Key(), MaxComponents, len(c.Components))
	}
	animated := false
	for i, s := range c.Components {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("control %q component %d: %w", c.Key(), i, err)
		}
		animated = animated || !s.Empty()
	}
	if !animated {
		return fmt.Errorf("control %q: every component is empty", c.Key())
	}
	return nil
}

// Evaluate samples every non-empty component at t.
func (c Control) Evaluate(t float32) Value {
	var v Value
	for i, s := range c.Components {
		if s.Empty() {
			continue
		}
		v.Components[i] = s.Value(t)
		v.Animated[i] = true
	}
	return v
}

// Value is an evaluated control. Only animated components override.
type Value struct {
	Components [MaxComponents]float32
	Animated   [MaxComponents]bool
}

// Apply overrides the animated components of values.
//
// Parameters:
//   - values: the member values before the control, not modified
//   - n: the component count of the member
//
// Returns:
//   - []float32: a copy at least n long with the animated components replaced
func (v Value) Apply(values []float32, n int) []float32 {
	out := make([]float32, max(len(values), n))
	copy(out, values)
	for i := 0; i < min(n, MaxComponents); i++ {
		if v.Animated[i] {
			out[i] = v.Components[i]
		}
	}
	return out
}

// Values maps a target to the evaluated controls of its uniform members.
type Values map[string]map[string]Value

// For returns the values of one target. It is safe on a nil Values.
func (v Values) For(target string) map[string]Value {
	return v[target]
}
