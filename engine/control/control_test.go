package control

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keys(values ...float32) Spline {
	s := Spline{}
	for i, v := range values {
		s.Points = append(s.Points, Point{Time: float32(i), Value: v})
	}
	return s
}

func TestSplineValue(t *testing.T) {
	wave := keys(0, 1, 0, 1)
	tests := []struct {
		name   string
		spline Spline
		t      float32
		want   float32
	}{
		{"empty", Spline{}, 3, 0},
		{"single point", keys(7), -1, 7},
		{"before first key", wave, -2, 0},
		{"after last key", wave, 10, 1},
		{"on a key", wave, 2, 0},
		{"interior segment", wave, 1.25, 0.84375},
		{"straight data stays straight", keys(0, 1, 2, 3), 1.5, 1.5},
		{"first segment repeats the end point", keys(0, 1, 2), 0.5, 0.375},
		{"linear segment", Spline{Points: []Point{{Time: 0, Value: 2, Linear: true}, {Time: 4, Value: 6}, {Time: 5, Value: 0}}}, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.spline.Value(tt.t), 1e-6)
		})
	}
}

func TestSplineIsContinuousAcrossKeys(t *testing.T) {
	s := keys(0, 3, -1, 2, 2)
	for _, key := range []float32{1, 2, 3} {
		assert.InDelta(t, s.Value(key), s.Value(key-1e-4), 1e-2, "left of %g", key)
		assert.InDelta(t, s.Value(key), s.Value(key+1e-4), 1e-2, "right of %g", key)
	}
}

func TestSplineValidate(t *testing.T) {
	assert.NoError(t, keys(1, 2, 3).Validate())
	assert.Error(t, Spline{Points: []Point{{Time: 1}, {Time: 1}}}.Validate())
	assert.Error(t, Spline{Points: []Point{{Time: 2}, {Time: 1}}}.Validate())
}

func TestControlValidate(t *testing.T) {
	ok := Control{Target: "main/plane", Uniform: "tint", Components: []Spline{keys(0, 1), {}}}
	require.NoError(t, ok.Validate())

	tests := []struct {
		name    string
		control Control
	}{
		{"no target", Control{Uniform: "tint", Components: []Spline{keys(1)}}},
		{"no uniform", Control{Target: "main", Components: []Spline{keys(1)}}},
		{"no components", Control{Target: "main", Uniform: "tint"}},
		{"too many components", Control{Target: "main", Uniform: "tint", Components: make([]Spline, 5)}},
		{"nothing animated", Control{Target: "main", Uniform: "tint", Components: []Spline{{}, {}}}},
		{"unsorted keys", Control{Target: "main", Uniform: "tint", Components: []Spline{{Points: []Point{{Time: 1}, {Time: 0}}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.control.Validate())
		})
	}
}

func TestValueApply(t *testing.T) {
	c := Control{Target: "main", Uniform: "tint", Components: []Spline{{}, keys(5)}}
	v := c.Evaluate(0)

	base := []float32{1, 2, 3, 4}
	assert.Equal(t, []float32{1, 5, 3, 4}, v.Apply(base, 4))
	assert.Equal(t, []float32{1, 2, 3, 4}, base)

	assert.Equal(t, []float32{0, 5, 0}, v.Apply(nil, 3))
	assert.Equal(t, []float32{9}, v.Apply([]float32{9}, 1))
}

func TestSetEvaluate(t *testing.T) {
	s := NewSet(nil)
	assert.Nil(t, s.Evaluate(1))
	assert.Nil(t, s.Evaluate(1).For("main"))

	s.Replace([]Control{
		{Target: "main", Uniform: "tint", Components: []Spline{keys(0, 10)}},
		{Target: Target("main", "plane"), Uniform: "tint", Components: []Spline{{}, keys(4, 8)}},
		{Target: "sim", Uniform: "gravity", Components: []Spline{keys(-1)}},
	})
	require.Equal(t, 3, s.Len())

	values := s.Evaluate(0.5)
	assert.InDelta(t, 5, values.For("main")["tint"].Components[0], 1e-6)
	assert.True(t, values.For("main")["tint"].Animated[0])

	plane := values.For("main/plane")["tint"]
	assert.Equal(t, [MaxComponents]bool{false, true}, plane.Animated)
	assert.InDelta(t, 6, plane.Components[1], 1e-6)

	assert.Equal(t, float32(-1), values.For("sim")["gravity"].Components[0])
	assert.Nil(t, values.For("other"))
}

func TestTargets(t *testing.T) {
	assert.Equal(t, "main", Target("main", ""))
	assert.Equal(t, "main/plane", Target("main", "plane"))

	step, object := SplitTarget("main/plane")
	assert.Equal(t, "main", step)
	assert.Equal(t, "plane", object)

	step, object = SplitTarget("sim")
	assert.Equal(t, "sim", step)
	assert.Empty(t, object)
}

func TestCheckUnique(t *testing.T) {
	a := Control{Target: "main", Uniform: "tint"}
	b := Control{Target: "main/plane", Uniform: "tint"}
	assert.NoError(t, CheckUnique([]Control{a, b}))
	assert.Error(t, CheckUnique([]Control{a, b, a}))
}
