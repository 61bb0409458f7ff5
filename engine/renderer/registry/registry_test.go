package registry

import (
	"io"
	"testing"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/chart"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChart() *chart.Chart {
	return &chart.Chart{
		ID: "test",
		Images: []chart.Image{
			{ID: "color", Format: chart.FormatRgba16F, Size: chart.CanvasRelative(1), HasMipmaps: true},
			{ID: "half", Format: chart.FormatRgba16F, Size: chart.CanvasRelative(0.5)},
			{ID: "bloom", Format: chart.FormatRgba16F, Size: chart.At4k(512, 256)},
			{ID: "env", Format: chart.FormatRgba8, Size: chart.Fixed(256, 256), HasMipmaps: true},
			{ID: "env_small", Format: chart.FormatRgba8, Size: chart.MipOf("env", 3)},
			{ID: "color_q", Format: chart.FormatRgba16F, Size: chart.MipOf("color", 2)},
			{ID: "depth", Format: chart.FormatDepth32F, Size: chart.CanvasRelative(1)},
		},
		Buffers: []chart.DoubleBuffer{{ID: "particles", ItemSizeInVec4: 2, ItemCount: 100}},
	}
}

func newTestRegistry(t *testing.T, canvas common.Extent) (Registry, gpu.SoftwareDevice) {
	t.Helper()
	common.SetLogOutput(io.Discard)
	d := gpu.NewSoftwareDevice(canvas.Width, canvas.Height)
	return NewRegistry(d, WithCanvas(canvas)), d
}

func shapeOf(t *testing.T, shapes []ImageShape, id string) ImageShape {
	t.Helper()
	for _, s := range shapes {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("no shape %q", id)
	return ImageShape{}
}

func TestComputeShapes(t *testing.T) {
	shapes, err := ComputeShapes(testChart(), common.Extent{Width: 1920, Height: 1080}, gpu.Limits{MaxImageDimension: 16384})
	require.NoError(t, err)
	require.Len(t, shapes, 7)

	color := shapeOf(t, shapes, "color")
	assert.Equal(t, 1920, color.Width)
	assert.Equal(t, 1080, color.Height)
	assert.Equal(t, 11, color.MipLevels)
	assert.Equal(t, gpu.FormatRGBA16Float, color.Format)

	half := shapeOf(t, shapes, "half")
	assert.Equal(t, common.Extent{Width: 960, Height: 540}, half.Extent())
	assert.Equal(t, 1, half.MipLevels)

	bloom := shapeOf(t, shapes, "bloom")
	assert.Equal(t, common.Extent{Width: 256, Height: 128}, bloom.Extent(), "At4k halves at 1920 wide")

	env := shapeOf(t, shapes, "env")
	assert.Equal(t, 9, env.MipLevels)

	assert.Equal(t, common.Extent{Width: 32, Height: 32}, shapeOf(t, shapes, "env_small").Extent())
	assert.Equal(t, common.Extent{Width: 480, Height: 270}, shapeOf(t, shapes, "color_q").Extent())
	assert.Equal(t, gpu.FormatDepth32Float, shapeOf(t, shapes, "depth").Format)

	again, err := ComputeShapes(testChart(), common.Extent{Width: 1920, Height: 1080}, gpu.Limits{MaxImageDimension: 16384})
	require.NoError(t, err)
	assert.Equal(t, shapes, again)
}

func TestComputeShapesMinimumSize(t *testing.T) {
	c := &chart.Chart{Images: []chart.Image{
		{ID: "tiny", Format: chart.FormatRgba8, Size: chart.CanvasRelative(0.001)},
		{ID: "deep", Format: chart.FormatRgba8, Size: chart.MipOf("tiny", 12)},
	}}
	shapes, err := ComputeShapes(c, common.Extent{Width: 100, Height: 50}, gpu.Limits{})
	require.NoError(t, err)
	assert.Equal(t, common.Extent{Width: 1, Height: 1}, shapes[0].Extent())
	assert.Equal(t, common.Extent{Width: 1, Height: 1}, shapes[1].Extent())
}

func TestComputeShapesErrors(t *testing.T) {
	canvas := common.Extent{Width: 800, Height: 600}

	_, err := ComputeShapes(&chart.Chart{Images: []chart.Image{
		{ID: "big", Format: chart.FormatRgba8, Size: chart.Fixed(20000, 16)},
	}}, canvas, gpu.Limits{MaxImageDimension: 16384})
	assert.ErrorIs(t, err, common.ErrSizeLimit)

	_, err = ComputeShapes(&chart.Chart{Images: []chart.Image{
		{ID: "m", Format: chart.FormatRgba8, Size: chart.MipOf("missing", 1)},
	}}, canvas, gpu.Limits{})
	assert.ErrorIs(t, err, common.ErrUnknownImage)

	cyclic := &chart.Chart{Images: []chart.Image{
		{ID: "a", Format: chart.FormatRgba8, Size: chart.MipOf("b", 1)},
		{ID: "b", Format: chart.FormatRgba8, Size: chart.MipOf("a", 1)},
	}}
	_, err = ComputeShapes(cyclic, canvas, gpu.Limits{})
	assert.ErrorIs(t, err, common.ErrCycle)

	later := &chart.Chart{Images: []chart.Image{
		{ID: "a", Format: chart.FormatRgba8, Size: chart.MipOf("b", 1)},
		{ID: "b", Format: chart.FormatRgba8, Size: chart.Fixed(8, 8)},
	}}
	_, err = ComputeShapes(later, canvas, gpu.Limits{})
	assert.ErrorIs(t, err, common.ErrUnknownImage)
}

func TestResolve(t *testing.T) {
	r, d := newTestRegistry(t, common.Extent{Width: 64, Height: 32})
	set, err := r.Resolve(testChart())
	require.NoError(t, err)
	assert.Same(t, set, r.Current())
	assert.Equal(t, 7, d.LiveImages())

	color, err := set.Image("color")
	require.NoError(t, err)
	desc, ok := d.ImageDescriptor(color.Handle)
	require.True(t, ok)
	assert.Equal(t, 64, desc.Width)
	assert.Equal(t, 7, desc.MipLevels)

	screen, err := set.Image(chart.ScreenTarget)
	require.NoError(t, err)
	assert.Equal(t, d.Surface(), screen.Handle)

	_, err = set.Image("nope")
	assert.ErrorIs(t, err, common.ErrUnknownImage)
	_, err = set.DoubleBuffer("nope")
	assert.ErrorIs(t, err, common.ErrUnknownBuffer)

	buf, err := set.DoubleBuffer("particles")
	require.NoError(t, err)
	assert.Equal(t, uint64(3200), buf.SizeInBytes())
	assert.NotEqual(t, buf.Current(), buf.Next())
	assert.Zero(t, buf.InterpolationFraction())
	data, err := d.ReadBuffer(buf.Current())
	require.NoError(t, err)
	assert.Len(t, data, 800)

	ids := make([]string, 0, 7)
	for _, img := range set.Images() {
		ids = append(ids, img.ID)
	}
	assert.Equal(t, []string{"color", "half", "bloom", "env", "env_small", "color_q", "depth"}, ids)
}

func TestResolveIsAtomic(t *testing.T) {
	r, d := newTestRegistry(t, common.Extent{Width: 64, Height: 64})
	first, err := r.Resolve(testChart())
	require.NoError(t, err)
	live := d.LiveImages()

	c := testChart()
	c.Images = append(c.Images, chart.Image{ID: "huge", Format: chart.FormatRgba8, Size: chart.Fixed(1<<20, 4)})
	_, err = r.Resolve(c)
	require.Error(t, err)
	assert.Equal(t, common.ClassFatal, common.ClassOf(err))
	assert.ErrorIs(t, err, common.ErrSizeLimit)
	assert.Same(t, first, r.Current())
	assert.Equal(t, live, d.LiveImages())
	assert.Zero(t, r.PendingDestruction())
}

func TestResolveDeviceFailureDestroysScratch(t *testing.T) {
	common.SetLogOutput(io.Discard)
	d := gpu.NewSoftwareDevice(64, 64, gpu.WithSoftwareLimits(gpu.Limits{MaxImageDimension: 128}))
	r := NewRegistry(d, WithCanvas(common.Extent{Width: 64, Height: 64}), WithLimits(gpu.Limits{}))

	c := &chart.Chart{ID: "c", Images: []chart.Image{
		{ID: "ok", Format: chart.FormatRgba8, Size: chart.Fixed(16, 16)},
		{ID: "too_big", Format: chart.FormatRgba8, Size: chart.Fixed(256, 16)},
	}}
	_, err := r.Resolve(c)
	require.Error(t, err)
	assert.Equal(t, 0, d.LiveImages())
	assert.Nil(t, r.Current())
}

func TestReplacingSetDefersDestruction(t *testing.T) {
	r, d := newTestRegistry(t, common.Extent{Width: 32, Height: 32})
	_, err := r.Resolve(testChart())
	require.NoError(t, err)

	r.BeginFrame(5)
	second, err := r.Resolve(testChart())
	require.NoError(t, err)
	assert.Equal(t, 14, d.LiveImages())
	assert.Equal(t, 9, r.PendingDestruction())

	r.RetireFrames(4)
	assert.Equal(t, 9, r.PendingDestruction())
	r.RetireFrames(5)
	assert.Zero(t, r.PendingDestruction())
	assert.Equal(t, 7, d.LiveImages())
	assert.Same(t, second, r.Current())
}

func TestReallocateCanvasRelative(t *testing.T) {
	r, d := newTestRegistry(t, common.Extent{Width: 64, Height: 32})
	set, err := r.Resolve(testChart())
	require.NoError(t, err)

	env, _ := set.Image("env")
	envSmall, _ := set.Image("env_small")
	oldColor, _ := set.Image("color")
	envHandle, envSmallHandle, oldColorHandle := env.Handle, envSmall.Handle, oldColor.Handle

	r.BeginFrame(1)
	require.NoError(t, r.ReallocateCanvasRelative(common.Extent{Width: 128, Height: 64}))

	color, _ := set.Image("color")
	assert.NotEqual(t, oldColorHandle, color.Handle)
	assert.Equal(t, 128, color.Shape.Width)
	assert.Equal(t, 8, color.Shape.MipLevels)
	colorQ, _ := set.Image("color_q")
	assert.Equal(t, 32, colorQ.Shape.Width, "mip_of chains follow their canvas-relative base")

	env, _ = set.Image("env")
	envSmall, _ = set.Image("env_small")
	assert.Equal(t, envHandle, env.Handle, "fixed images keep their handles")
	assert.Equal(t, envSmallHandle, envSmall.Handle)

	// color, half, bloom, color_q, depth
	assert.Equal(t, 5, r.PendingDestruction())
	screen, _ := set.Image(chart.ScreenTarget)
	assert.Equal(t, 128, screen.Shape.Width)
	assert.Equal(t, common.Extent{Width: 128, Height: 64}, set.Canvas)

	live := d.LiveImages()
	require.NoError(t, r.ReallocateCanvasRelative(common.Extent{Width: 128, Height: 64}))
	assert.Equal(t, live, d.LiveImages(), "same size twice is a no-op")
	assert.Equal(t, 5, r.PendingDestruction())

	r.RetireFrames(1)
	assert.Equal(t, 7, d.LiveImages())
}

func TestReallocateOverLimitKeepsImages(t *testing.T) {
	common.SetLogOutput(io.Discard)
	d := gpu.NewSoftwareDevice(64, 64)
	r := NewRegistry(d, WithCanvas(common.Extent{Width: 64, Height: 64}), WithLimits(gpu.Limits{MaxImageDimension: 100}))
	set, err := r.Resolve(&chart.Chart{ID: "c", Images: []chart.Image{
		{ID: "color", Format: chart.FormatRgba8, Size: chart.CanvasRelative(1)},
	}})
	require.NoError(t, err)
	before, _ := set.Image("color")
	handle := before.Handle

	err = r.ReallocateCanvasRelative(common.Extent{Width: 200, Height: 64})
	assert.Equal(t, common.ClassTransient, common.ClassOf(err))
	assert.ErrorIs(t, err, common.ErrSizeLimit)
	after, _ := set.Image("color")
	assert.Equal(t, handle, after.Handle)
	assert.Equal(t, common.Extent{Width: 64, Height: 64}, r.Canvas())
}

func TestDoubleBuffer(t *testing.T) {
	b := newDoubleBuffer(chart.DoubleBuffer{ID: "p", ItemCount: 4, ItemSizeInVec4: 1}, 10, 20)
	assert.Equal(t, gpu.BufferHandle(10), b.Current())
	assert.Equal(t, gpu.BufferHandle(20), b.Next())

	b.Swap()
	assert.Equal(t, gpu.BufferHandle(20), b.Current())
	assert.Equal(t, gpu.BufferHandle(10), b.Next())
	assert.Equal(t, gpu.BufferHandle(10), b.Handle(chart.RoleNext))
	assert.Equal(t, gpu.BufferHandle(20), b.Handle(chart.RoleCurrent))

	b.SetInterpolationFraction(1.5)
	assert.Equal(t, float32(1), b.InterpolationFraction())
	b.SetInterpolationFraction(-1)
	assert.Equal(t, float32(0), b.InterpolationFraction())
	b.SetInterpolationFraction(0.25)

	b.Reset()
	assert.Equal(t, gpu.BufferHandle(10), b.Current())
	assert.Zero(t, b.InterpolationFraction())
}

func TestRelease(t *testing.T) {
	r, d := newTestRegistry(t, common.Extent{Width: 16, Height: 16})
	_, err := r.Resolve(testChart())
	require.NoError(t, err)
	require.NoError(t, r.ReallocateCanvasRelative(common.Extent{Width: 32, Height: 32}))

	r.Release()
	assert.Equal(t, 0, d.LiveImages())
	assert.Zero(t, r.PendingDestruction())
	assert.Nil(t, r.Current())
}
