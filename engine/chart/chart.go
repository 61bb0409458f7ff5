// Package chart holds the in-memory render-graph description: resource declarations
// and the ordered step list. A Chart is immutable once loaded.
package chart

import (
	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/control"
)

// ScreenTarget is the reserved image id that names the presentation surface.
const ScreenTarget = "screen"

// BuiltinPrefix marks shader and mesh references served by the engine rather than the filesystem.
const BuiltinPrefix = "builtin:"

// BuiltinMeshFile is the mesh file name that selects the procedural meshes served by the engine.
const BuiltinMeshFile = "builtin"

// PixelFormat is the storage format of an image.
type PixelFormat string

const (
	FormatRgba16F    PixelFormat = "rgba16f"
	FormatRgba32F    PixelFormat = "rgba32f"
	FormatDepth32F   PixelFormat = "depth32f"
	FormatRgba8      PixelFormat = "rgba8"
	FormatRgba8Srgb  PixelFormat = "rgba8srgb"
	FormatBgra8Srgb  PixelFormat = "bgra8srgb"
	FormatBgra8Unorm PixelFormat = "bgra8unorm"
)

// Valid reports whether f is one of the supported formats.
func (f PixelFormat) Valid() bool {
	switch f {
	case FormatRgba16F, FormatRgba32F, FormatDepth32F, FormatRgba8, FormatRgba8Srgb, FormatBgra8Srgb, FormatBgra8Unorm:
		return true
	}
	return false
}

// IsDepth reports whether f is a depth format.
func (f PixelFormat) IsDepth() bool {
	return f == FormatDepth32F
}

// SizeKind selects how an image's pixel dimensions are derived.
type SizeKind int

const (
	// SizeFixed uses Width and Height as given.
	SizeFixed SizeKind = iota

	// SizeCanvasRelative multiplies the canvas dimensions by Factor.
	SizeCanvasRelative

	// SizeAt4k scales Width and Height, authored for a 3840 pixel wide canvas, to the current canvas width.
	SizeAt4k

	// SizeMipOf takes the dimensions of mip Level of image Base.
	SizeMipOf
)

// SizeRule is the symbolic size of an image.
type SizeRule struct {
	Kind   SizeKind
	Width  int
	Height int
	Factor float32
	Base   string
	Level  int
}

// Fixed returns a fixed-size rule.
func Fixed(width, height int) SizeRule {
	return SizeRule{Kind: SizeFixed, Width: width, Height: height}
}

// CanvasRelative returns a rule that scales with the canvas.
func CanvasRelative(factor float32) SizeRule {
	return SizeRule{Kind: SizeCanvasRelative, Factor: factor}
}

// At4k returns a rule for sizes authored against a 3840 pixel wide canvas.
func At4k(width, height int) SizeRule {
	return SizeRule{Kind: SizeAt4k, Width: width, Height: height}
}

// MipOf returns a rule matching mip level of another image.
func MipOf(base string, level int) SizeRule {
	return SizeRule{Kind: SizeMipOf, Base: base, Level: level}
}

// DependsOnCanvas reports whether the rule itself reads the canvas size.
// MipOf rules inherit canvas dependence from their base and are resolved by the registry.
func (r SizeRule) DependsOnCanvas() bool {
	return r.Kind == SizeCanvasRelative || r.Kind == SizeAt4k
}

// Image declares a GPU image resource.
type Image struct {
	ID         string
	Format     PixelFormat
	Size       SizeRule
	HasMipmaps bool
}

// DoubleBuffer declares a current/next pair of storage buffers.
type DoubleBuffer struct {
	ID string

	// ItemSizeInVec4 is the per-item stride in 16 byte units.
	ItemSizeInVec4 int

	ItemCount int
}

// SizeInBytes returns the size of one of the two buffers.
func (b DoubleBuffer) SizeInBytes() uint64 {
	return uint64(b.ItemCount) * uint64(b.ItemSizeInVec4) * 16
}

// CameraSettings positions the view used for the matrix globals.
type CameraSettings struct {
	Position    common.Vec3
	Target      common.Vec3
	FieldOfView float32
	ZNear       float32
	ZFar        float32
}

// LightSettings describes the directional light used for shading and the shadow pass.
type LightSettings struct {
	Direction     common.Vec3
	ShadowMapSize float32
}

// Chart is a loaded render graph.
type Chart struct {
	// ID is derived from the document file name.
	ID string

	// Path is the document path the chart was loaded from, empty for charts built in code.
	Path string

	Images  []Image
	Buffers []DoubleBuffer
	Steps   []Step
	Camera  CameraSettings
	Light   LightSettings

	// Controls animate uniform members of steps and objects over chart time.
	Controls []control.Control
}

// DefaultCamera is used when a chart omits the camera block.
var DefaultCamera = CameraSettings{
	Position:    common.Vec3{0, 0, 5},
	Target:      common.Vec3{0, 0, 0},
	FieldOfView: 0.8,
	ZNear:       0.1,
	ZFar:        100,
}

// DefaultLight is used when a chart omits the light block.
var DefaultLight = LightSettings{
	Direction:     common.Vec3{0.3, -1, 0.2},
	ShadowMapSize: 2048,
}

// Image returns the image declaration with the given id.
func (c *Chart) Image(id string) (Image, bool) {
	for _, img := range c.Images {
		if img.ID == id {
			return img, true
		}
	}
	return Image{}, false
}

// Buffer returns the double buffer declaration with the given id.
func (c *Chart) Buffer(id string) (DoubleBuffer, bool) {
	for _, b := range c.Buffers {
		if b.ID == id {
			return b, true
		}
	}
	return DoubleBuffer{}, false
}

// ShaderPaths returns every distinct shader path referenced by the chart's steps.
func (c *Chart) ShaderPaths() []string {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, s := range c.Steps {
		switch step := s.(type) {
		case *Draw:
			for _, obj := range step.Objects {
				for _, id := range obj.Material.PassIDs() {
					mp := obj.Material.Passes[id]
					add(mp.Vertex)
					add(mp.Fragment)
				}
			}
		case *Compute:
			add(step.Shader)
		}
	}
	return out
}
