package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// surfaceHandle is the stable handle render passes use to target the swapchain image.
const surfaceHandle ImageHandle = 1 << 62

type wgpuImage struct {
	desc    ImageDescriptor
	texture *wgpu.Texture
}

type wgpuMesh struct {
	vertices   *wgpu.Buffer
	indices    *wgpu.Buffer
	indexCount uint32
}

type wgpuProgram struct {
	layout  ProgramLayout
	groups  []*wgpu.BindGroupLayout
	render  *wgpu.RenderPipeline
	compute *wgpu.ComputePipeline
}

type wgpuDevice struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface
	device   *wgpu.Device
	queue    *wgpu.Queue

	surfaceFormat wgpu.TextureFormat
	presentMode   wgpu.PresentMode
	forceFallback bool
	limits        Limits

	nextHandle uint64
	images     map[ImageHandle]*wgpuImage
	buffers    map[BufferHandle]*wgpu.Buffer
	meshes     map[MeshHandle]*wgpuMesh
	programs   map[ProgramHandle]*wgpuProgram
	samplers   map[SamplerMode]*wgpu.Sampler

	// frameSurface is the swapchain texture acquired by the first pass that targets the surface.
	frameSurface *wgpu.Texture
}

var _ Device = &wgpuDevice{}
var _ Presenter = &wgpuDevice{}

// NewWGPUDevice creates a device that renders through WebGPU into the given window surface.
//
// Parameters:
//   - surfaceDescriptor: the platform surface descriptor of the window
//   - width, height: the initial surface size
//   - opts: optional configuration
//
// Returns:
//   - Device: the device, which also implements Presenter
//   - error: an error if no adapter or device could be acquired
func NewWGPUDevice(surfaceDescriptor *wgpu.SurfaceDescriptor, width, height int, opts ...WGPUDeviceBuilderOption) (Device, error) {
	runtime.LockOSThread()
	d := &wgpuDevice{
		mu:          &sync.Mutex{},
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		images:      make(map[ImageHandle]*wgpuImage),
		buffers:     make(map[BufferHandle]*wgpu.Buffer),
		meshes:      make(map[MeshHandle]*wgpuMesh),
		programs:    make(map[ProgramHandle]*wgpuProgram),
		samplers:    make(map[SamplerMode]*wgpu.Sampler),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.surface = d.instance.CreateSurface(surfaceDescriptor)

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallback,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	d.adapter = a

	limits := wgpu.DefaultLimits()
	limits.MaxBindGroups = 4
	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          "oxy-chart device",
		RequiredLimits: &wgpu.RequiredLimits{Limits: limits},
	})
	if err != nil {
		return nil, fmt.Errorf("request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()
	d.limits = Limits{MaxImageDimension: int(limits.MaxTextureDimension2D)}

	d.ConfigureSurface(width, height)
	return d, nil
}

func (d *wgpuDevice) handle() uint64 {
	d.nextHandle++
	return d.nextHandle
}

func (d *wgpuDevice) ConfigureSurface(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	capabilities := d.surface.GetCapabilities(d.adapter)
	d.surfaceFormat = capabilities.Formats[0]
	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      d.surfaceFormat,
		Width:       uint32(max(width, 1)),
		Height:      uint32(max(height, 1)),
		PresentMode: d.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
}

func (d *wgpuDevice) Present() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.frameSurface == nil {
		return
	}
	d.surface.Present()
	d.frameSurface.Release()
	d.frameSurface = nil
}

func (d *wgpuDevice) Surface() ImageHandle {
	return surfaceHandle
}

func (d *wgpuDevice) SurfaceFormat() Format {
	switch d.surfaceFormat {
	case wgpu.TextureFormatBGRA8UnormSrgb:
		return FormatBGRA8UnormSrgb
	case wgpu.TextureFormatRGBA8Unorm:
		return FormatRGBA8Unorm
	case wgpu.TextureFormatRGBA8UnormSrgb:
		return FormatRGBA8UnormSrgb
	}
	return FormatBGRA8Unorm
}

func (d *wgpuDevice) Limits() Limits {
	return d.limits
}

func textureFormat(f Format) wgpu.TextureFormat {
	switch f {
	case FormatRGBA16Float:
		return wgpu.TextureFormatRGBA16Float
	case FormatRGBA32Float:
		return wgpu.TextureFormatRGBA32Float
	case FormatDepth32Float:
		return wgpu.TextureFormatDepth32Float
	case FormatRGBA8Unorm:
		return wgpu.TextureFormatRGBA8Unorm
	case FormatRGBA8UnormSrgb:
		return wgpu.TextureFormatRGBA8UnormSrgb
	case FormatBGRA8UnormSrgb:
		return wgpu.TextureFormatBGRA8UnormSrgb
	case FormatBGRA8Unorm:
		return wgpu.TextureFormatBGRA8Unorm
	}
	return wgpu.TextureFormatUndefined
}

func (d *wgpuDevice) CreateImage(desc ImageDescriptor) (ImageHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if desc.Width <= 0 || desc.Height <= 0 {
		return InvalidHandle, fmt.Errorf("image %q: invalid size %dx%d", desc.Label, desc.Width, desc.Height)
	}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: uint32(max(desc.MipLevels, 1)),
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        textureFormat(desc.Format),
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return InvalidHandle, fmt.Errorf("image %q: %w", desc.Label, err)
	}
	h := ImageHandle(d.handle())
	d.images[h] = &wgpuImage{desc: desc, texture: tex}
	return h, nil
}

func (d *wgpuDevice) DestroyImage(h ImageHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if img, ok := d.images[h]; ok {
		img.texture.Release()
		delete(d.images, h)
	}
}

func (d *wgpuDevice) CreateBuffer(desc BufferDescriptor) (BufferHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return InvalidHandle, fmt.Errorf("buffer %q: %w", desc.Label, err)
	}
	h := BufferHandle(d.handle())
	d.buffers[h] = buf
	return h, nil
}

func (d *wgpuDevice) DestroyBuffer(h BufferHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if buf, ok := d.buffers[h]; ok {
		buf.Release()
		delete(d.buffers, h)
	}
}

func (d *wgpuDevice) WriteBuffer(h BufferHandle, offset uint64, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, ok := d.buffers[h]
	if !ok {
		return fmt.Errorf("write buffer: unknown handle %d", h)
	}
	d.queue.WriteBuffer(buf, offset, data)
	return nil
}

func (d *wgpuDevice) CreateMesh(data MeshData) (MeshHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	m := &wgpuMesh{indexCount: uint32(len(data.Indices))}
	vertexBytes := float32Bytes(data.Vertices)
	vb, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: data.Label + " Vertex Buffer",
		Size:  uint64(len(vertexBytes)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return InvalidHandle, err
	}
	d.queue.WriteBuffer(vb, 0, vertexBytes)
	m.vertices = vb

	indexBytes := uint32Bytes(data.Indices)
	ib, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: data.Label + " Index Buffer",
		Size:  uint64(len(indexBytes)),
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		vb.Release()
		return InvalidHandle, err
	}
	d.queue.WriteBuffer(ib, 0, indexBytes)
	m.indices = ib

	h := MeshHandle(d.handle())
	d.meshes[h] = m
	return h, nil
}

// bindGroupLayouts creates one layout per group from the reflected binding slots.
func (d *wgpuDevice) bindGroupLayouts(label string, layout ProgramLayout) ([]*wgpu.BindGroupLayout, error) {
	maxGroup := -1
	for _, s := range layout.Slots {
		maxGroup = max(maxGroup, s.Group)
	}
	entries := make([][]wgpu.BindGroupLayoutEntry, maxGroup+1)
	for _, s := range layout.Slots {
		entry := wgpu.BindGroupLayoutEntry{Binding: uint32(s.Binding), Visibility: shaderStage(s.Stages)}
		switch s.Kind {
		case BindingUniform:
			entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		case BindingStorage:
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		case BindingReadOnlyStorage:
			entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		case BindingTexture:
			entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
			entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		case BindingDepthTexture:
			entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
			entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		case BindingSampler:
			entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
		case BindingComparisonSampler:
			entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
		}
		entries[s.Group] = append(entries[s.Group], entry)
	}

	groups := make([]*wgpu.BindGroupLayout, len(entries))
	for g, e := range entries {
		bgl, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s group %d", label, g),
			Entries: e,
		})
		if err != nil {
			return nil, fmt.Errorf("bind group layout for group %d: %w", g, err)
		}
		groups[g] = bgl
	}
	return groups, nil
}

func shaderStage(s Stage) wgpu.ShaderStage {
	var out wgpu.ShaderStage
	if s&StageVertex != 0 {
		out |= wgpu.ShaderStageVertex
	}
	if s&StageFragment != 0 {
		out |= wgpu.ShaderStageFragment
	}
	if s&StageCompute != 0 {
		out |= wgpu.ShaderStageCompute
	}
	return out
}

func (d *wgpuDevice) shaderModule(path, source string) (*wgpu.ShaderModule, error) {
	desc, err := shaderModuleDescriptor(path, source)
	if err != nil {
		return nil, err
	}
	return d.device.CreateShaderModule(desc)
}

// shaderModuleDescriptor describes a WGSL module. GLSL sources are rejected by extension.
func shaderModuleDescriptor(path, source string) (*wgpu.ShaderModuleDescriptor, error) {
	if IsGLSL(path) {
		return nil, fmt.Errorf("shader %q: GLSL sources are not supported by the WebGPU device", path)
	}
	return &wgpu.ShaderModuleDescriptor{
		Label:          path,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: source},
	}, nil
}

func blendState(mode BlendMode) *wgpu.BlendState {
	switch mode {
	case BlendAlpha:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorSrcAlpha, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha, Operation: wgpu.BlendOperationAdd},
			Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha, Operation: wgpu.BlendOperationAdd},
		}
	case BlendAdditive:
		return &wgpu.BlendState{
			Color: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOne, Operation: wgpu.BlendOperationAdd},
			Alpha: wgpu.BlendComponent{SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOne, Operation: wgpu.BlendOperationAdd},
		}
	}
	return nil
}

// vertexLayout exposes only the MeshData attributes the vertex shader consumes.
func vertexLayout(inputs []VertexInput) []wgpu.VertexBufferLayout {
	if len(inputs) == 0 {
		return nil
	}
	offsets := map[int]uint64{0: 0, 1: 12, 2: 24}
	var attrs []wgpu.VertexAttribute
	for _, in := range inputs {
		off, ok := offsets[in.Location]
		if !ok {
			continue
		}
		format := wgpu.VertexFormatFloat32x3
		if in.Location == 2 {
			format = wgpu.VertexFormatFloat32x2
		}
		attrs = append(attrs, wgpu.VertexAttribute{Format: format, Offset: off, ShaderLocation: uint32(in.Location)})
	}
	return []wgpu.VertexBufferLayout{{
		ArrayStride: VertexStride * 4,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}}
}

func (d *wgpuDevice) CreateRenderProgram(desc RenderProgramDescriptor) (ProgramHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	vs, err := d.shaderModule(desc.VertexPath, desc.VertexSource)
	if err != nil {
		return InvalidHandle, err
	}
	defer vs.Release()
	fs, err := d.shaderModule(desc.FragmentPath, desc.FragmentSource)
	if err != nil {
		return InvalidHandle, err
	}
	defer fs.Release()

	groups, err := d.bindGroupLayouts(desc.Label, desc.Layout)
	if err != nil {
		return InvalidHandle, err
	}
	pipelineLayout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: groups,
	})
	if err != nil {
		return InvalidHandle, err
	}
	defer pipelineLayout.Release()

	targets := make([]wgpu.ColorTargetState, 0, len(desc.ColorFormats))
	for _, f := range desc.ColorFormats {
		targets = append(targets, wgpu.ColorTargetState{
			Format:    textureFormat(f),
			Blend:     blendState(desc.Blend),
			WriteMask: wgpu.ColorWriteMaskAll,
		})
	}

	var depthStencil *wgpu.DepthStencilState
	if desc.DepthFormat != FormatUndefined {
		compare := wgpu.CompareFunctionLess
		if !desc.DepthTest {
			compare = wgpu.CompareFunctionAlways
		}
		depthStencil = &wgpu.DepthStencilState{
			Format:            textureFormat(desc.DepthFormat),
			DepthWriteEnabled: desc.DepthWrite,
			DepthCompare:      compare,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
	}

	created, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: desc.VertexEntry,
			Buffers:    vertexLayout(desc.Layout.VertexInputs),
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: desc.FragmentEntry,
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample:  wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
		DepthStencil: depthStencil,
	})
	if err != nil {
		return InvalidHandle, err
	}

	h := ProgramHandle(d.handle())
	d.programs[h] = &wgpuProgram{layout: desc.Layout, groups: groups, render: created}
	return h, nil
}

func (d *wgpuDevice) CreateComputeProgram(desc ComputeProgramDescriptor) (ProgramHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, err := d.shaderModule(desc.Path, desc.Source)
	if err != nil {
		return InvalidHandle, err
	}
	defer s.Release()

	groups, err := d.bindGroupLayouts(desc.Label, desc.Layout)
	if err != nil {
		return InvalidHandle, err
	}
	layout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: groups,
	})
	if err != nil {
		return InvalidHandle, err
	}
	defer layout.Release()

	created, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     s,
			EntryPoint: desc.Entry,
		},
	})
	if err != nil {
		return InvalidHandle, err
	}

	h := ProgramHandle(d.handle())
	d.programs[h] = &wgpuProgram{layout: desc.Layout, groups: groups, compute: created}
	return h, nil
}

func (d *wgpuDevice) ReleaseProgram(h ProgramHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.programs[h]
	if !ok {
		return
	}
	if p.render != nil {
		p.render.Release()
	}
	if p.compute != nil {
		p.compute.Release()
	}
	for _, g := range p.groups {
		g.Release()
	}
	delete(d.programs, h)
}

func (d *wgpuDevice) sampler(mode SamplerMode) (*wgpu.Sampler, error) {
	if s, ok := d.samplers[mode]; ok {
		return s, nil
	}
	desc := &wgpu.SamplerDescriptor{
		Label:         "sampler",
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeRepeat,
		AddressModeW:  wgpu.AddressModeRepeat,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	}
	switch mode {
	case SamplerClampToEdge:
		desc.AddressModeU, desc.AddressModeV, desc.AddressModeW = wgpu.AddressModeClampToEdge, wgpu.AddressModeClampToEdge, wgpu.AddressModeClampToEdge
	case SamplerMirroredRepeat:
		desc.AddressModeU, desc.AddressModeV, desc.AddressModeW = wgpu.AddressModeMirrorRepeat, wgpu.AddressModeMirrorRepeat, wgpu.AddressModeMirrorRepeat
	case SamplerEnvmap:
		desc.AddressModeV = wgpu.AddressModeClampToEdge
	case SamplerShadow:
		desc.AddressModeU, desc.AddressModeV, desc.AddressModeW = wgpu.AddressModeClampToEdge, wgpu.AddressModeClampToEdge, wgpu.AddressModeClampToEdge
		desc.Compare = wgpu.CompareFunctionLess
		desc.MipmapFilter = wgpu.MipmapFilterModeNearest
	}
	s, err := d.device.CreateSampler(desc)
	if err != nil {
		return nil, err
	}
	d.samplers[mode] = s
	return s, nil
}

// frameResources are released once the submission that used them is queued.
type frameResources struct {
	views      []*wgpu.TextureView
	bindGroups []*wgpu.BindGroup
	buffers    []*wgpu.Buffer
}

func (r *frameResources) release() {
	for _, bg := range r.bindGroups {
		bg.Release()
	}
	for _, v := range r.views {
		v.Release()
	}
	for _, b := range r.buffers {
		b.Release()
	}
}

func (d *wgpuDevice) levelView(h ImageHandle, base, count int, res *frameResources) (*wgpu.TextureView, error) {
	var tex *wgpu.Texture
	format := d.surfaceFormat
	if h == surfaceHandle {
		if d.frameSurface == nil {
			st, err := d.surface.GetCurrentTexture()
			if err != nil {
				return nil, fmt.Errorf("acquire surface: %w", err)
			}
			d.frameSurface = st
		}
		tex = d.frameSurface
	} else {
		img, ok := d.images[h]
		if !ok {
			return nil, fmt.Errorf("unknown image %d", h)
		}
		tex = img.texture
		format = textureFormat(img.desc.Format)
		if count == 0 {
			count = max(img.desc.MipLevels, 1) - base
		}
	}
	view, err := tex.CreateView(&wgpu.TextureViewDescriptor{
		Format:          format,
		Dimension:       wgpu.TextureViewDimension2D,
		BaseMipLevel:    uint32(base),
		MipLevelCount:   uint32(max(count, 1)),
		BaseArrayLayer:  0,
		ArrayLayerCount: 1,
		Aspect:          wgpu.TextureAspectAll,
	})
	if err != nil {
		return nil, err
	}
	res.views = append(res.views, view)
	return view, nil
}

func (d *wgpuDevice) bindGroups(p *wgpuProgram, bindings []Binding, res *frameResources) ([]*wgpu.BindGroup, error) {
	entries := make([][]wgpu.BindGroupEntry, len(p.groups))
	for _, b := range bindings {
		if b.Group >= len(entries) {
			return nil, fmt.Errorf("binding group %d is not declared by the program", b.Group)
		}
		entry := wgpu.BindGroupEntry{Binding: uint32(b.Binding)}
		switch b.Kind {
		case BindingUniform:
			size := max(uint64(len(b.Data)), p.layout.UniformSize, 16)
			size = (size + 15) &^ 15
			buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
				Label: "uniforms",
				Size:  size,
				Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
			})
			if err != nil {
				return nil, err
			}
			res.buffers = append(res.buffers, buf)
			padded := make([]byte, size)
			copy(padded, b.Data)
			d.queue.WriteBuffer(buf, 0, padded)
			entry.Buffer, entry.Size = buf, wgpu.WholeSize
		case BindingStorage, BindingReadOnlyStorage:
			buf, ok := d.buffers[b.Buffer]
			if !ok {
				return nil, fmt.Errorf("unknown buffer %d", b.Buffer)
			}
			entry.Buffer, entry.Size = buf, wgpu.WholeSize
		case BindingTexture, BindingDepthTexture:
			view, err := d.levelView(b.Image, b.BaseLevel, b.LevelCount, res)
			if err != nil {
				return nil, err
			}
			entry.TextureView = view
		case BindingSampler, BindingComparisonSampler:
			s, err := d.sampler(b.Sampler)
			if err != nil {
				return nil, err
			}
			entry.Sampler = s
		}
		entries[b.Group] = append(entries[b.Group], entry)
	}

	out := make([]*wgpu.BindGroup, len(entries))
	for g, e := range entries {
		bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   fmt.Sprintf("group %d", g),
			Layout:  p.groups[g],
			Entries: e,
		})
		if err != nil {
			return nil, fmt.Errorf("bind group %d: %w", g, err)
		}
		res.bindGroups = append(res.bindGroups, bg)
		out[g] = bg
	}
	return out, nil
}

// Submit encodes the command list into one command buffer and queues it.
func (d *wgpuDevice) Submit(cl *CommandList) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()
	res := &frameResources{}
	defer res.release()

	var pass *wgpu.RenderPassEncoder
	for i, c := range cl.Commands() {
		switch cmd := c.(type) {
		case BeginRenderPass:
			if pass != nil {
				return fmt.Errorf("command %d: render pass %q begun inside another pass", i, cmd.Label)
			}
			desc := &wgpu.RenderPassDescriptor{Label: cmd.Label}
			for _, a := range cmd.Colors {
				view, err := d.levelView(a.Image, a.Level, 1, res)
				if err != nil {
					return fmt.Errorf("command %d: %w", i, err)
				}
				att := wgpu.RenderPassColorAttachment{View: view, LoadOp: wgpu.LoadOpLoad, StoreOp: wgpu.StoreOpStore}
				if a.Clear != nil {
					att.LoadOp = wgpu.LoadOpClear
					att.ClearValue = wgpuColor(*a.Clear)
				}
				desc.ColorAttachments = append(desc.ColorAttachments, att)
			}
			if cmd.Depth != nil {
				view, err := d.levelView(cmd.Depth.Image, cmd.Depth.Level, 1, res)
				if err != nil {
					return fmt.Errorf("command %d: %w", i, err)
				}
				load := wgpu.LoadOpLoad
				if cmd.Depth.Clear {
					load = wgpu.LoadOpClear
				}
				desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
					View:            view,
					DepthLoadOp:     load,
					DepthStoreOp:    wgpu.StoreOpStore,
					DepthClearValue: 1.0,
				}
			}
			pass = encoder.BeginRenderPass(desc)
		case EndRenderPass:
			if pass == nil {
				return fmt.Errorf("command %d: end without render pass", i)
			}
			pass.End()
			pass.Release()
			pass = nil
		case Draw:
			if pass == nil {
				return fmt.Errorf("command %d: draw outside render pass", i)
			}
			p, ok := d.programs[cmd.Program]
			if !ok || p.render == nil {
				return fmt.Errorf("command %d: %d is not a render program", i, cmd.Program)
			}
			groups, err := d.bindGroups(p, cmd.Bindings, res)
			if err != nil {
				return fmt.Errorf("command %d: %w", i, err)
			}
			pass.SetPipeline(p.render)
			for g, bg := range groups {
				pass.SetBindGroup(uint32(g), bg, nil)
			}
			instances := uint32(max(cmd.Instances, 1))
			if cmd.Mesh == InvalidHandle {
				pass.Draw(3, instances, 0, 0)
				continue
			}
			m, ok := d.meshes[cmd.Mesh]
			if !ok {
				return fmt.Errorf("command %d: unknown mesh %d", i, cmd.Mesh)
			}
			pass.SetVertexBuffer(0, m.vertices, 0, wgpu.WholeSize)
			pass.SetIndexBuffer(m.indices, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
			pass.DrawIndexed(m.indexCount, instances, 0, 0, 0)
		case Dispatch:
			if pass != nil {
				return fmt.Errorf("command %d: dispatch inside render pass", i)
			}
			p, ok := d.programs[cmd.Program]
			if !ok || p.compute == nil {
				return fmt.Errorf("command %d: %d is not a compute program", i, cmd.Program)
			}
			groups, err := d.bindGroups(p, cmd.Bindings, res)
			if err != nil {
				return fmt.Errorf("command %d: %w", i, err)
			}
			cp := encoder.BeginComputePass(nil)
			cp.SetPipeline(p.compute)
			for g, bg := range groups {
				cp.SetBindGroup(uint32(g), bg, nil)
			}
			cp.DispatchWorkgroups(cmd.Workgroups[0], max(cmd.Workgroups[1], 1), max(cmd.Workgroups[2], 1))
			cp.End()
			cp.Release()
		case Barrier:
			// WebGPU orders accesses between passes of one encoder.
		default:
			return fmt.Errorf("command %d: unsupported %T", i, c)
		}
	}
	if pass != nil {
		pass.End()
		pass.Release()
		return errors.New("command list ends inside a render pass")
	}

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer commandBuffer.Release()
	d.queue.Submit(commandBuffer)
	return nil
}

func wgpuColor(c common.Color) wgpu.Color {
	return wgpu.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])}
}

func float32Bytes(vals []float32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func uint32Bytes(vals []uint32) []byte {
	out := make([]byte, 4*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}
