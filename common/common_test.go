package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMipLevelCount(t *testing.T) {
	assert.Equal(t, 9, MipLevelCount(256, 256))
	assert.Equal(t, 1, MipLevelCount(1, 1))
	assert.Equal(t, 11, MipLevelCount(1920, 1080))
	assert.Equal(t, 10, MipLevelCount(3, 512))
	assert.Equal(t, 1, MipLevelCount(0, 0))
}

func TestMipExtent(t *testing.T) {
	for level, want := range []int{256, 128, 64, 32, 16, 8, 4, 2, 1} {
		assert.Equal(t, want, MipExtent(256, level))
	}
	assert.Equal(t, 1, MipExtent(3, 5))
}

func TestMat4InvertRoundTrip(t *testing.T) {
	m := ModelMatrix(Vec3{1, 2, 3}, Vec3{0.3, 0.2, 0.1}, Vec3{2, 2, 2})
	inv, ok := m.Invert()
	require.True(t, ok)

	id := m.Mul(inv)
	want := Identity()
	for i := range id {
		assert.InDelta(t, want[i], id[i], 1e-5, "element %d", i)
	}
}

func TestLookAtMovesEyeToOrigin(t *testing.T) {
	eye := Vec3{0, 0, 5}
	view := LookAt(eye, Vec3{0, 0, 0}, Vec3{0, 1, 0})
	// translation column of view * eye must land at the origin
	x := view[0]*eye[0] + view[4]*eye[1] + view[8]*eye[2] + view[12]
	y := view[1]*eye[0] + view[5]*eye[1] + view[9]*eye[2] + view[13]
	z := view[2]*eye[0] + view[6]*eye[1] + view[10]*eye[2] + view[14]
	assert.InDelta(t, 0, x, 1e-6)
	assert.InDelta(t, 0, y, 1e-6)
	assert.InDelta(t, 0, z, 1e-6)
}

func TestClassOf(t *testing.T) {
	err := fmt.Errorf("frame: %w", StepError("draw", "main", ErrMissingBinding))
	assert.Equal(t, ClassStep, ClassOf(err))
	assert.True(t, errors.Is(err, ErrMissingBinding))
	assert.Equal(t, ClassFatal, ClassOf(errors.New("plain")))
	assert.Equal(t, ClassTransient, ClassOf(Transient("build", "a.wgsl", ErrCompile)))
	assert.Equal(t, `draw "main": missing binding`, StepError("draw", "main", ErrMissingBinding).Error())
}

func TestContentHashSeparatesParts(t *testing.T) {
	assert.NotEqual(t, ContentHash("ab", "c"), ContentHash("a", "bc"))
	assert.Equal(t, ContentHash("x"), ContentHash("x"))
}

func TestDivCeil(t *testing.T) {
	assert.Equal(t, 0, DivCeil(0, 64))
	assert.Equal(t, 1, DivCeil(1, 64))
	assert.Equal(t, 1, DivCeil(64, 64))
	assert.Equal(t, 2, DivCeil(65, 64))
}
