// Package gpu is the capability layer the render graph executes against. A Device creates
// images, buffers, meshes and programs, and runs recorded command lists in submission order.
package gpu

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ImageHandle identifies an image owned by a Device.
type ImageHandle uint64

// BufferHandle identifies a storage buffer owned by a Device.
type BufferHandle uint64

// MeshHandle identifies uploaded vertex and index data.
type MeshHandle uint64

// ProgramHandle identifies a compiled render or compute program.
type ProgramHandle uint64

// InvalidHandle is never returned by a successful create call.
const InvalidHandle = 0

// Format is the pixel format of an image.
type Format int

const (
	FormatUndefined Format = iota
	FormatRGBA16Float
	FormatRGBA32Float
	FormatDepth32Float
	FormatRGBA8Unorm
	FormatRGBA8UnormSrgb
	FormatBGRA8UnormSrgb
	FormatBGRA8Unorm
)

// IsDepth reports whether f is a depth format.
func (f Format) IsDepth() bool {
	return f == FormatDepth32Float
}

// Is8Bit reports whether each channel is stored with 8 bits of precision.
func (f Format) Is8Bit() bool {
	switch f {
	case FormatRGBA8Unorm, FormatRGBA8UnormSrgb, FormatBGRA8UnormSrgb, FormatBGRA8Unorm:
		return true
	}
	return false
}

func (f Format) String() string {
	switch f {
	case FormatRGBA16Float:
		return "rgba16float"
	case FormatRGBA32Float:
		return "rgba32float"
	case FormatDepth32Float:
		return "depth32float"
	case FormatRGBA8Unorm:
		return "rgba8unorm"
	case FormatRGBA8UnormSrgb:
		return "rgba8unorm-srgb"
	case FormatBGRA8UnormSrgb:
		return "bgra8unorm-srgb"
	case FormatBGRA8Unorm:
		return "bgra8unorm"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// SamplerMode selects addressing and comparison for a sampled texture.
type SamplerMode int

const (
	SamplerRepeat SamplerMode = iota
	SamplerClampToEdge
	SamplerMirroredRepeat
	SamplerEnvmap
	SamplerShadow
)

// BlendMode selects the color blend equation for a render program.
type BlendMode int

const (
	BlendNone BlendMode = iota
	BlendAlpha
	BlendAdditive
)

// BindingKind is the resource type expected at a binding slot.
type BindingKind int

const (
	BindingUniform BindingKind = iota
	BindingTexture
	BindingDepthTexture
	BindingSampler
	BindingComparisonSampler
	BindingStorage
	BindingReadOnlyStorage
)

// Stage is a bit mask of shader stages that see a binding.
type Stage uint32

const (
	StageVertex Stage = 1 << iota
	StageFragment
	StageCompute
)

// BindingSlot is one @group/@binding declared by a program.
type BindingSlot struct {
	Group   int
	Binding int
	Name    string
	Kind    BindingKind
	Stages  Stage
}

// UniformField locates a named member inside the uniform block.
type UniformField struct {
	Name       string
	Offset     uint64
	Components int
}

// VertexInput is a vertex shader input location and its component count.
type VertexInput struct {
	Location   int
	Components int
}

// ProgramLayout is the reflected interface of a program.
type ProgramLayout struct {
	Slots         []BindingSlot
	UniformSize   uint64
	UniformFields []UniformField
	VertexInputs  []VertexInput
}

// Slot returns the slot with the given group and binding.
func (l ProgramLayout) Slot(group, binding int) (BindingSlot, bool) {
	for _, s := range l.Slots {
		if s.Group == group && s.Binding == binding {
			return s, true
		}
	}
	return BindingSlot{}, false
}

// ImageDescriptor describes an image allocation.
type ImageDescriptor struct {
	Label     string
	Width     int
	Height    int
	MipLevels int
	Format    Format
}

// BufferDescriptor describes a storage buffer allocation.
type BufferDescriptor struct {
	Label string
	Size  uint64
}

// MeshData is interleaved vertex data (position xyz, normal xyz, uv) and triangle indices.
type MeshData struct {
	Label    string
	Vertices []float32
	Indices  []uint32
}

// VertexStride is the number of floats per vertex in MeshData.Vertices.
const VertexStride = 8

// RenderProgramDescriptor is everything needed to build a render pipeline.
type RenderProgramDescriptor struct {
	Label          string
	VertexPath     string
	FragmentPath   string
	VertexSource   string
	FragmentSource string
	VertexEntry    string
	FragmentEntry  string
	Layout         ProgramLayout
	ColorFormats   []Format
	DepthFormat    Format
	DepthTest      bool
	DepthWrite     bool
	Blend          BlendMode
}

// ComputeProgramDescriptor is everything needed to build a compute pipeline.
type ComputeProgramDescriptor struct {
	Label         string
	Path          string
	Source        string
	Entry         string
	Layout        ProgramLayout
	WorkgroupSize [3]uint32
}

// Limits reports device capabilities the registry checks before allocating.
type Limits struct {
	MaxImageDimension int
}

// Device is the GPU capability the engine is written against.
type Device interface {
	// CreateImage allocates an image with the requested mip chain.
	CreateImage(desc ImageDescriptor) (ImageHandle, error)

	// DestroyImage releases an image. Unknown handles are ignored.
	DestroyImage(h ImageHandle)

	// CreateBuffer allocates a zeroed storage buffer.
	CreateBuffer(desc BufferDescriptor) (BufferHandle, error)

	// DestroyBuffer releases a buffer. Unknown handles are ignored.
	DestroyBuffer(h BufferHandle)

	// WriteBuffer uploads data at the given byte offset.
	WriteBuffer(h BufferHandle, offset uint64, data []byte) error

	// CreateMesh uploads vertex and index data.
	CreateMesh(data MeshData) (MeshHandle, error)

	// CreateRenderProgram compiles a render pipeline.
	CreateRenderProgram(desc RenderProgramDescriptor) (ProgramHandle, error)

	// CreateComputeProgram compiles a compute pipeline.
	CreateComputeProgram(desc ComputeProgramDescriptor) (ProgramHandle, error)

	// ReleaseProgram frees a program. Unknown handles are ignored.
	ReleaseProgram(h ProgramHandle)

	// Surface returns the handle that render passes use to target the presentation surface.
	Surface() ImageHandle

	// SurfaceFormat returns the pixel format of the presentation surface.
	SurfaceFormat() Format

	// Submit executes a recorded command list in order.
	Submit(cl *CommandList) error

	// Limits reports the device limits.
	Limits() Limits
}

// Presenter is implemented by devices backed by a window surface.
type Presenter interface {
	// Present shows the surface image rendered by the last submission.
	Present()

	// ConfigureSurface resizes the presentation surface.
	ConfigureSurface(width, height int)
}

// IsGLSL reports whether path names a GLSL source by its extension.
func IsGLSL(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".glsl", ".vert", ".frag", ".comp":
		return true
	}
	return false
}
