package gpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidKernel(c common.Color, depth float32) FragmentKernel {
	return func(in *FragmentInput) FragmentOutput {
		return FragmentOutput{Colors: []common.Color{c}, Depth: depth}
	}
}

func floatBytes(vals ...float32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func TestSoftwareDeviceClearAndDraw(t *testing.T) {
	d := NewSoftwareDevice(4, 4)
	d.RegisterFragmentKernel("red.wgsl", solidKernel(common.Color{1, 0, 0, 1}, 0.5))

	img, err := d.CreateImage(ImageDescriptor{Label: "color", Width: 4, Height: 4, MipLevels: 1, Format: FormatRGBA16Float})
	require.NoError(t, err)
	prog, err := d.CreateRenderProgram(RenderProgramDescriptor{Label: "red", FragmentPath: "red.wgsl", ColorFormats: []Format{FormatRGBA16Float}})
	require.NoError(t, err)

	clear := common.Color{0, 0, 1, 1}
	cl := NewCommandList()
	cl.Record(BeginRenderPass{Label: "clear", Colors: []ColorAttachment{{Image: img, Clear: &clear}}})
	cl.Record(EndRenderPass{})
	require.NoError(t, d.Submit(cl))

	texels, w, h, err := d.ReadImage(img, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, w)
	assert.Equal(t, 4, h)
	assert.Equal(t, clear, texels[5])

	cl.Reset()
	cl.Record(BeginRenderPass{Label: "draw", Colors: []ColorAttachment{{Image: img}}})
	cl.Record(Draw{Program: prog, Instances: 1})
	cl.Record(EndRenderPass{})
	require.NoError(t, d.Submit(cl))

	texels, _, _, err = d.ReadImage(img, 0)
	require.NoError(t, err)
	assert.Equal(t, common.Color{1, 0, 0, 1}, texels[0])
	assert.Equal(t, 2, d.Submissions())
}

func TestSoftwareDeviceDepthTest(t *testing.T) {
	d := NewSoftwareDevice(2, 2)
	d.RegisterFragmentKernel("near.wgsl", solidKernel(common.Color{0, 1, 0, 1}, 0.2))
	d.RegisterFragmentKernel("far.wgsl", solidKernel(common.Color{1, 0, 0, 1}, 0.8))

	color, err := d.CreateImage(ImageDescriptor{Label: "color", Width: 2, Height: 2, MipLevels: 1, Format: FormatRGBA16Float})
	require.NoError(t, err)
	depth, err := d.CreateImage(ImageDescriptor{Label: "depth", Width: 2, Height: 2, MipLevels: 1, Format: FormatDepth32Float})
	require.NoError(t, err)

	mk := func(path string) ProgramHandle {
		h, err := d.CreateRenderProgram(RenderProgramDescriptor{
			Label: path, FragmentPath: path, ColorFormats: []Format{FormatRGBA16Float},
			DepthFormat: FormatDepth32Float, DepthTest: true, DepthWrite: true,
		})
		require.NoError(t, err)
		return h
	}
	near, far := mk("near.wgsl"), mk("far.wgsl")

	black := common.Color{0, 0, 0, 1}
	cl := NewCommandList()
	cl.Record(BeginRenderPass{Colors: []ColorAttachment{{Image: color, Clear: &black}}, Depth: &DepthAttachment{Image: depth, Clear: true}})
	cl.Record(Draw{Program: near})
	cl.Record(Draw{Program: far})
	cl.Record(EndRenderPass{})
	require.NoError(t, d.Submit(cl))

	texels, _, _, err := d.ReadImage(color, 0)
	require.NoError(t, err)
	assert.Equal(t, common.Color{0, 1, 0, 1}, texels[3])
}

func TestSoftwareDeviceBlendModes(t *testing.T) {
	dst := common.Color{0.5, 0.5, 0.5, 1}
	src := common.Color{1, 0, 0, 0.5}
	assert.Equal(t, src, blend(BlendNone, src, dst))
	assert.Equal(t, common.Color{1.5, 0.5, 0.5, 1.5}, blend(BlendAdditive, src, dst))
	alpha := blend(BlendAlpha, src, dst)
	assert.InDeltaSlice(t, []float32{0.75, 0.25, 0.25, 1}, alpha[:], 1e-6)
}

func TestSoftwareDeviceQuantizesEightBitTargets(t *testing.T) {
	q := quantize(FormatRGBA8Unorm, common.Color{1.5, -1, 0.5, 0.1})
	assert.Equal(t, float32(1), q[0])
	assert.Equal(t, float32(0), q[1])
	assert.InDelta(t, 128.0/255.0, q[2], 1e-6)
	assert.Equal(t, common.Color{1.5, -1, 0.5, 0.1}, quantize(FormatRGBA16Float, common.Color{1.5, -1, 0.5, 0.1}))
}

func TestSoftwareDeviceComputeDispatch(t *testing.T) {
	d := NewSoftwareDevice(1, 1)
	d.RegisterComputeKernel("double.wgsl", func(in *ComputeInput) {
		buf := in.Buffer("data")
		buf[in.Index] = buf[in.Index] * in.Uniform("factor")[0]
	})

	buf, err := d.CreateBuffer(BufferDescriptor{Label: "data", Size: 16})
	require.NoError(t, err)
	require.NoError(t, d.WriteBuffer(buf, 0, floatBytes(1, 2, 3, 4)))

	layout := ProgramLayout{
		Slots: []BindingSlot{
			{Group: 0, Binding: 0, Name: "params", Kind: BindingUniform, Stages: StageCompute},
			{Group: 0, Binding: 1, Name: "data", Kind: BindingStorage, Stages: StageCompute},
		},
		UniformSize:   16,
		UniformFields: []UniformField{{Name: "factor", Offset: 0, Components: 1}},
	}
	prog, err := d.CreateComputeProgram(ComputeProgramDescriptor{Label: "double", Path: "double.wgsl", Layout: layout, WorkgroupSize: [3]uint32{64, 1, 1}})
	require.NoError(t, err)

	cl := NewCommandList()
	cl.Record(Dispatch{
		Label: "double", Program: prog, Workgroups: [3]uint32{1, 1, 1}, Invocations: 3,
		Bindings: []Binding{
			{Group: 0, Binding: 0, Kind: BindingUniform, Data: floatBytes(2, 0, 0, 0)},
			{Group: 0, Binding: 1, Kind: BindingStorage, Buffer: buf},
		},
	})
	cl.Record(Barrier{Resources: []string{"data"}})
	require.NoError(t, d.Submit(cl))

	out, err := d.ReadBuffer(buf)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 4, 6, 4}, out)
	assert.Equal(t, []Barrier{{Resources: []string{"data"}}}, d.Barriers())
}

func TestSoftwareDeviceRejectsMalformedLists(t *testing.T) {
	d := NewSoftwareDevice(2, 2)
	cases := map[string][]Command{
		"nested pass":     {BeginRenderPass{Colors: []ColorAttachment{{Image: d.Surface()}}}, BeginRenderPass{Colors: []ColorAttachment{{Image: d.Surface()}}}},
		"unterminated":    {BeginRenderPass{Colors: []ColorAttachment{{Image: d.Surface()}}}},
		"draw outside":    {Draw{}},
		"unknown target":  {BeginRenderPass{Colors: []ColorAttachment{{Image: 999}}}},
		"dangling end":    {EndRenderPass{}},
		"unknown program": {Dispatch{Program: 42}},
	}
	for name, cmds := range cases {
		t.Run(name, func(t *testing.T) {
			cl := NewCommandList()
			for _, c := range cmds {
				cl.Record(c)
			}
			assert.Error(t, d.Submit(cl))
		})
	}
}

func TestSoftwareDeviceMipBlitAveragesBlocks(t *testing.T) {
	d := NewSoftwareDevice(1, 1)
	img, err := d.CreateImage(ImageDescriptor{Label: "chain", Width: 4, Height: 4, MipLevels: common.MipLevelCount(4, 4), Format: FormatRGBA32Float})
	require.NoError(t, err)

	d.RegisterFragmentKernel("checker.wgsl", func(in *FragmentInput) FragmentOutput {
		v := float32((in.X + in.Y) % 2)
		return FragmentOutput{Colors: []common.Color{{v, v, v, 1}}}
	})
	checker, err := d.CreateRenderProgram(RenderProgramDescriptor{FragmentPath: "checker.wgsl", ColorFormats: []Format{FormatRGBA32Float}})
	require.NoError(t, err)
	blit, err := d.CreateRenderProgram(RenderProgramDescriptor{
		FragmentPath: MipBlitPath,
		ColorFormats: []Format{FormatRGBA32Float},
		Layout: ProgramLayout{Slots: []BindingSlot{
			{Group: 0, Binding: 0, Name: "source_texture", Kind: BindingTexture, Stages: StageFragment},
			{Group: 0, Binding: 1, Name: "source_sampler", Kind: BindingSampler, Stages: StageFragment},
		}},
	})
	require.NoError(t, err)

	cl := NewCommandList()
	cl.Record(BeginRenderPass{Colors: []ColorAttachment{{Image: img}}})
	cl.Record(Draw{Program: checker})
	cl.Record(EndRenderPass{})
	cl.Record(BeginRenderPass{Colors: []ColorAttachment{{Image: img, Level: 1}}})
	cl.Record(Draw{Program: blit, Bindings: []Binding{
		{Group: 0, Binding: 0, Kind: BindingTexture, Image: img, BaseLevel: 0, LevelCount: 1},
		{Group: 0, Binding: 1, Kind: BindingSampler, Sampler: SamplerClampToEdge},
	}})
	cl.Record(EndRenderPass{})
	require.NoError(t, d.Submit(cl))

	level1, w, h, err := d.ReadImage(img, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, w)
	assert.Equal(t, 2, h)
	for _, c := range level1 {
		assert.Equal(t, common.Color{0.5, 0.5, 0.5, 1}, c)
	}
}

func TestSoftwareDeviceLimits(t *testing.T) {
	d := NewSoftwareDevice(1, 1, WithSoftwareLimits(Limits{MaxImageDimension: 8}))
	_, err := d.CreateImage(ImageDescriptor{Width: 16, Height: 4, MipLevels: 1, Format: FormatRGBA8Unorm})
	assert.Error(t, err)
	assert.Equal(t, 0, d.LiveImages())

	h, err := d.CreateImage(ImageDescriptor{Width: 8, Height: 8, MipLevels: 1, Format: FormatRGBA8Unorm})
	require.NoError(t, err)
	assert.Equal(t, 1, d.LiveImages())
	d.DestroyImage(h)
	d.DestroyImage(d.Surface())
	assert.Equal(t, 0, d.LiveImages())
}

func TestSoftwareDeviceFallbackKernel(t *testing.T) {
	d := NewSoftwareDevice(2, 2)
	_, err := d.CreateRenderProgram(RenderProgramDescriptor{Label: "plain", FragmentPath: "plain.wgsl"})
	assert.Error(t, err)

	d = NewSoftwareDevice(2, 2, WithFallbackFragmentKernel(solidKernel(common.Color{0, 1, 0, 1}, 0)))
	d.RegisterFragmentKernel("red.wgsl", solidKernel(common.Color{1, 0, 0, 1}, 0))
	img, err := d.CreateImage(ImageDescriptor{Label: "color", Width: 2, Height: 2, MipLevels: 1, Format: FormatRGBA32Float})
	require.NoError(t, err)

	draw := func(path string) common.Color {
		prog, err := d.CreateRenderProgram(RenderProgramDescriptor{Label: path, FragmentPath: path, ColorFormats: []Format{FormatRGBA32Float}})
		require.NoError(t, err)
		cl := NewCommandList()
		cl.Record(BeginRenderPass{Label: path, Colors: []ColorAttachment{{Image: img}}})
		cl.Record(Draw{Program: prog, Instances: 1})
		cl.Record(EndRenderPass{})
		require.NoError(t, d.Submit(cl))
		texels, _, _, err := d.ReadImage(img, 0)
		require.NoError(t, err)
		return texels[0]
	}
	assert.Equal(t, common.Color{0, 1, 0, 1}, draw("plain.wgsl"))
	assert.Equal(t, common.Color{1, 0, 0, 1}, draw("red.wgsl"))
}

func TestSampleAddressModes(t *testing.T) {
	assert.Equal(t, 1, address(SamplerRepeat, 5, 4))
	assert.Equal(t, 3, address(SamplerRepeat, -1, 4))
	assert.Equal(t, 3, address(SamplerClampToEdge, 9, 4))
	assert.Equal(t, 0, address(SamplerClampToEdge, -2, 4))
	assert.Equal(t, 3, address(SamplerMirroredRepeat, 4, 4))
	assert.Equal(t, 2, address(SamplerMirroredRepeat, 5, 4))
}
