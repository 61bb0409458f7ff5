package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/chewxy/math32"
)

type softAttachment struct {
	image  *softImage
	level  *softLevel
	format Format
}

type softPass struct {
	label  string
	colors []softAttachment
	depth  *softAttachment
	width  int
	height int
}

func (d *softwareDevice) attachment(h ImageHandle, level int) (softAttachment, error) {
	img, ok := d.images[h]
	if !ok {
		return softAttachment{}, fmt.Errorf("unknown image %d", h)
	}
	if level < 0 || level >= len(img.levels) {
		return softAttachment{}, fmt.Errorf("image %q has no level %d", img.desc.Label, level)
	}
	return softAttachment{image: img, level: &img.levels[level], format: img.desc.Format}, nil
}

func (d *softwareDevice) beginPass(cmd BeginRenderPass) (*softPass, error) {
	p := &softPass{label: cmd.Label}
	for _, c := range cmd.Colors {
		a, err := d.attachment(c.Image, c.Level)
		if err != nil {
			return nil, fmt.Errorf("pass %q color: %w", cmd.Label, err)
		}
		if c.Clear != nil {
			col := quantize(a.format, *c.Clear)
			for i := range a.level.texels {
				a.level.texels[i] = col
			}
		}
		p.colors = append(p.colors, a)
	}
	if cmd.Depth != nil {
		a, err := d.attachment(cmd.Depth.Image, cmd.Depth.Level)
		if err != nil {
			return nil, fmt.Errorf("pass %q depth: %w", cmd.Label, err)
		}
		if cmd.Depth.Clear {
			for i := range a.level.texels {
				a.level.texels[i] = common.Color{1, 0, 0, 0}
			}
		}
		p.depth = &a
	}

	var all []softAttachment
	all = append(all, p.colors...)
	if p.depth != nil {
		all = append(all, *p.depth)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("pass %q has no attachments", cmd.Label)
	}
	p.width, p.height = all[0].level.width, all[0].level.height
	for _, a := range all[1:] {
		if a.level.width != p.width || a.level.height != p.height {
			return nil, fmt.Errorf("pass %q: attachment sizes differ (%dx%d vs %dx%d)", cmd.Label, p.width, p.height, a.level.width, a.level.height)
		}
	}
	return p, nil
}

type softTexture struct {
	level *softLevel
	mode  SamplerMode
}

// FragmentInput is the per-pixel context handed to a FragmentKernel.
type FragmentInput struct {
	X, Y          int
	Width, Height int

	// U and V are the normalized coordinates of the pixel center.
	U, V float32

	Instances int

	uniforms map[string][]float32
	textures map[string]softTexture
	buffers  map[string][]float32
}

// Uniform returns the value of a uniform block member, or nil if it is not declared.
func (in *FragmentInput) Uniform(name string) []float32 {
	return in.uniforms[name]
}

// Buffer returns the float32 contents of a bound storage buffer.
func (in *FragmentInput) Buffer(name string) []float32 {
	return in.buffers[name]
}

// TextureSize returns the dimensions of the bound level of a texture.
func (in *FragmentInput) TextureSize(name string) (int, int) {
	t, ok := in.textures[name]
	if !ok {
		return 0, 0
	}
	return t.level.width, t.level.height
}

// Fetch reads one texel of the bound level, clamping coordinates to the edge.
func (in *FragmentInput) Fetch(name string, x, y int) common.Color {
	t, ok := in.textures[name]
	if !ok {
		return common.Color{}
	}
	x = min(max(x, 0), t.level.width-1)
	y = min(max(y, 0), t.level.height-1)
	return t.level.texels[y*t.level.width+x]
}

// Sample reads the bound level with bilinear filtering and the binding's address mode.
func (in *FragmentInput) Sample(name string, u, v float32) common.Color {
	t, ok := in.textures[name]
	if !ok {
		return common.Color{}
	}
	w, h := t.level.width, t.level.height
	fx := u*float32(w) - 0.5
	fy := v*float32(h) - 0.5
	x0, y0 := int(math32.Floor(fx)), int(math32.Floor(fy))
	tx, ty := fx-float32(x0), fy-float32(y0)

	uMode, vMode := t.mode, t.mode
	if t.mode == SamplerEnvmap {
		uMode, vMode = SamplerRepeat, SamplerClampToEdge
	}
	fetch := func(x, y int) common.Color {
		x = address(uMode, x, w)
		y = address(vMode, y, h)
		return t.level.texels[y*w+x]
	}

	var out common.Color
	c00, c10, c01, c11 := fetch(x0, y0), fetch(x0+1, y0), fetch(x0, y0+1), fetch(x0+1, y0+1)
	for i := range out {
		top := c00[i]*(1-tx) + c10[i]*tx
		bottom := c01[i]*(1-tx) + c11[i]*tx
		out[i] = top*(1-ty) + bottom*ty
	}
	return out
}

// SampleCompare returns 1 where ref is closer than the stored depth and 0 otherwise.
func (in *FragmentInput) SampleCompare(name string, u, v, ref float32) float32 {
	t, ok := in.textures[name]
	if !ok {
		return 0
	}
	x := address(SamplerClampToEdge, int(u*float32(t.level.width)), t.level.width)
	y := address(SamplerClampToEdge, int(v*float32(t.level.height)), t.level.height)
	if ref < t.level.texels[y*t.level.width+x][0] {
		return 1
	}
	return 0
}

func address(mode SamplerMode, i, n int) int {
	switch mode {
	case SamplerRepeat:
		i %= n
		if i < 0 {
			i += n
		}
		return i
	case SamplerMirroredRepeat:
		period := 2 * n
		i %= period
		if i < 0 {
			i += period
		}
		if i >= n {
			i = period - 1 - i
		}
		return i
	default:
		return min(max(i, 0), n-1)
	}
}

// ComputeInput is the per-invocation context handed to a ComputeKernel.
type ComputeInput struct {
	Index       int
	Invocations int

	uniforms map[string][]float32
	buffers  map[string][]float32
}

// Uniform returns the value of a uniform block member, or nil if it is not declared.
func (in *ComputeInput) Uniform(name string) []float32 {
	return in.uniforms[name]
}

// Buffer returns the float32 contents of a bound storage buffer. Writes are visible to later commands.
func (in *ComputeInput) Buffer(name string) []float32 {
	return in.buffers[name]
}

type softBindings struct {
	uniforms map[string][]float32
	textures map[string]softTexture
	buffers  map[string][]float32
}

func (d *softwareDevice) resolveBindings(layout ProgramLayout, bindings []Binding) (softBindings, error) {
	out := softBindings{
		uniforms: map[string][]float32{},
		textures: map[string]softTexture{},
		buffers:  map[string][]float32{},
	}
	for _, b := range bindings {
		slot, ok := layout.Slot(b.Group, b.Binding)
		if !ok {
			return out, fmt.Errorf("binding @group(%d) @binding(%d) is not declared by the program", b.Group, b.Binding)
		}
		switch b.Kind {
		case BindingUniform:
			for _, f := range layout.UniformFields {
				vals := make([]float32, f.Components)
				for c := range vals {
					off := int(f.Offset) + c*4
					if off+4 <= len(b.Data) {
						vals[c] = math.Float32frombits(binary.LittleEndian.Uint32(b.Data[off:]))
					}
				}
				out.uniforms[f.Name] = vals
			}
		case BindingTexture, BindingDepthTexture:
			img, ok := d.images[b.Image]
			if !ok {
				return out, fmt.Errorf("texture %q: unknown image %d", slot.Name, b.Image)
			}
			if b.BaseLevel < 0 || b.BaseLevel >= len(img.levels) {
				return out, fmt.Errorf("texture %q: level %d out of range", slot.Name, b.BaseLevel)
			}
			out.textures[slot.Name] = softTexture{level: &img.levels[b.BaseLevel], mode: b.Sampler}
		case BindingStorage, BindingReadOnlyStorage:
			buf, ok := d.buffers[b.Buffer]
			if !ok {
				return out, fmt.Errorf("buffer %q: unknown handle %d", slot.Name, b.Buffer)
			}
			out.buffers[slot.Name] = buf
		case BindingSampler, BindingComparisonSampler:
		}
	}
	return out, nil
}

func (d *softwareDevice) draw(p *softPass, cmd Draw) error {
	prog, ok := d.programs[cmd.Program]
	if !ok || prog.render == nil {
		return fmt.Errorf("draw: %d is not a render program", cmd.Program)
	}
	if cmd.Mesh != InvalidHandle {
		if _, ok := d.meshes[cmd.Mesh]; !ok {
			return fmt.Errorf("draw: unknown mesh %d", cmd.Mesh)
		}
	}
	if len(prog.render.ColorFormats) != len(p.colors) {
		return fmt.Errorf("draw %q: program has %d color targets, pass has %d", prog.render.Label, len(prog.render.ColorFormats), len(p.colors))
	}
	b, err := d.resolveBindings(prog.render.Layout, cmd.Bindings)
	if err != nil {
		return fmt.Errorf("draw %q: %w", prog.render.Label, err)
	}

	in := &FragmentInput{
		Width:     p.width,
		Height:    p.height,
		Instances: max(cmd.Instances, 1),
		uniforms:  b.uniforms,
		textures:  b.textures,
		buffers:   b.buffers,
	}
	for y := 0; y < p.height; y++ {
		for x := 0; x < p.width; x++ {
			in.X, in.Y = x, y
			in.U = (float32(x) + 0.5) / float32(p.width)
			in.V = (float32(y) + 0.5) / float32(p.height)
			out := prog.fragment(in)
			if out.Discard {
				continue
			}
			idx := y*p.width + x
			if p.depth != nil && prog.render.DepthTest {
				if out.Depth >= p.depth.level.texels[idx][0] {
					continue
				}
			}
			if p.depth != nil && prog.render.DepthWrite {
				p.depth.level.texels[idx][0] = out.Depth
			}
			for i, a := range p.colors {
				if i >= len(out.Colors) {
					break
				}
				dst := a.level.texels[idx]
				a.level.texels[idx] = quantize(a.format, blend(prog.render.Blend, out.Colors[i], dst))
			}
		}
	}
	return nil
}

func (d *softwareDevice) dispatch(cmd Dispatch) error {
	prog, ok := d.programs[cmd.Program]
	if !ok || prog.compute == nil {
		return fmt.Errorf("dispatch %q: %d is not a compute program", cmd.Label, cmd.Program)
	}
	b, err := d.resolveBindings(prog.compute.Layout, cmd.Bindings)
	if err != nil {
		return fmt.Errorf("dispatch %q: %w", cmd.Label, err)
	}
	n := cmd.Invocations
	if n == 0 {
		n = int(cmd.Workgroups[0]*max(prog.compute.WorkgroupSize[0], 1)) * int(max(cmd.Workgroups[1], 1)) * int(max(cmd.Workgroups[2], 1))
	}
	in := &ComputeInput{Invocations: n, uniforms: b.uniforms, buffers: b.buffers}
	for i := 0; i < n; i++ {
		in.Index = i
		prog.kernel(in)
	}
	return nil
}

func blend(mode BlendMode, src, dst common.Color) common.Color {
	switch mode {
	case BlendAlpha:
		a := src[3]
		return common.Color{
			src[0]*a + dst[0]*(1-a),
			src[1]*a + dst[1]*(1-a),
			src[2]*a + dst[2]*(1-a),
			a + dst[3]*(1-a),
		}
	case BlendAdditive:
		return common.Color{src[0] + dst[0], src[1] + dst[1], src[2] + dst[2], src[3] + dst[3]}
	default:
		return src
	}
}

// quantize rounds to the precision of 8-bit formats and clamps them to [0, 1].
func quantize(f Format, c common.Color) common.Color {
	if !f.Is8Bit() {
		return c
	}
	for i := range c {
		c[i] = math32.Round(common.Clamp(c[i], 0, 1)*255) / 255
	}
	return c
}

// mipBlitKernel averages the 2x2 block of the previous level under each destination texel.
func mipBlitKernel(in *FragmentInput) FragmentOutput {
	x, y := in.X*2, in.Y*2
	a := in.Fetch("source_texture", x, y)
	b := in.Fetch("source_texture", x+1, y)
	c := in.Fetch("source_texture", x, y+1)
	d := in.Fetch("source_texture", x+1, y+1)
	var out common.Color
	for i := range out {
		out[i] = (a[i] + b[i] + c[i] + d[i]) * 0.25
	}
	return FragmentOutput{Colors: []common.Color{out}}
}
