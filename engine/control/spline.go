package control

import (
	"fmt"
	"sort"
)

// Point is one key of a spline.
type Point struct {
	Time  float32
	Value float32

	// Linear interpolates straight to the next point instead of following the curve.
	Linear bool
}

// Spline is a Catmull-Rom curve through its points, parameterized by point time.
// Points are sorted by strictly increasing time.
type Spline struct {
	Points []Point
}

// Empty reports whether the spline has no points and so animates nothing.
func (s Spline) Empty() bool {
	return len(s.Points) == 0
}

// Validate checks that point times strictly increase.
func (s Spline) Validate() error {
	for i := 1; i < len(s.Points); i++ {
		if s.Points[i].Time <= s.Points[i-1].Time {
			return fmt.Errorf("point %d: time %g does not follow %g", i, s.Points[i].Time, s.Points[i-1].Time)
		}
	}
	return nil
}

// Value evaluates the spline at t. The first and last values hold outside the keyed range.
//
// Parameters:
//   - t: the chart time in seconds
//
// Returns:
//   - float32: the interpolated value, 0 for an empty spline
func (s Spline) Value(t float32) float32 {
	n := len(s.Points)
	if n == 0 {
		return 0
	}
	i := sort.Search(n, func(i int) bool { return s.Points[i].Time >= t })
	if i == 0 {
		return s.Points[0].Value
	}
	if i == n {
		return s.Points[n-1].Value
	}

	p1, p2 := s.Points[i-1], s.Points[i]
	if p2.Time == t {
		return p2.Value
	}
	if p1.Linear {
		return blend(p1.Value, p2.Value, p1.Time, p2.Time, t)
	}

	// Barry-Goldman pyramid. Missing neighbours at the ends repeat the end point.
	p0 := s.Points[max(i-2, 0)]
	p3 := s.Points[min(i+1, n-1)]
	a1 := segment(p0, p1, t)
	a2 := segment(p1, p2, t)
	a3 := segment(p2, p3, t)
	b1 := blend(a1, a2, p0.Time, p2.Time, t)
	b2 := blend(a2, a3, p1.Time, p3.Time, t)
	return blend(b1, b2, p1.Time, p2.Time, t)
}

// segment extends the line through a and b to t. A repeated end point yields its value.
func segment(a, b Point, t float32) float32 {
	if a.Time == b.Time {
		return a.Value
	}
	return blend(a.Value, b.Value, a.Time, b.Time, t)
}

func blend(x, y, t0, t1, t float32) float32 {
	return ((t1-t)*x + (t-t0)*y) / (t1 - t0)
}
