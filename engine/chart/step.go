package chart

import (
	"sort"

	"github.com/Carmen-Shannon/oxy-chart/common"
)

// Step is one unit of GPU work. The concrete types are *Draw, *Compute and *GenerateMipLevels.
type Step interface {
	// ID returns the step identifier, unique within the chart.
	ID() string

	// Reads returns the resources the step samples or binds for reading.
	Reads() []ResourceRef

	// Writes returns the resources the step renders into or dispatches into.
	Writes() []ResourceRef
}

// AllLevels is the ResourceRef level that covers every mip level of an image.
const AllLevels = -1

// ResourceRef names an image (optionally one mip level) or a buffer.
type ResourceRef struct {
	ID    string
	Level int
}

// Overlaps reports whether two references touch the same memory.
func (r ResourceRef) Overlaps(o ResourceRef) bool {
	if r.ID != o.ID {
		return false
	}
	return r.Level == AllLevels || o.Level == AllLevels || r.Level == o.Level
}

// Target is a render pass attachment: an image id and the mip level rendered into.
type Target struct {
	Image string
	Level int
}

// Pass is one render pass of a Draw step.
type Pass struct {
	ID     string
	Depth  *Target
	Colors []Target

	// ClearColor is applied to color targets when Load is false. Nil means the default clear color.
	ClearColor *common.Color

	// Load keeps the previous target contents instead of clearing.
	Load bool
}

// IsShadow reports whether the pass renders from the light's point of view.
func (p Pass) IsShadow() bool {
	return p.ID == "shadow"
}

// EffectiveClearColor returns the declared clear color or the default.
func (p Pass) EffectiveClearColor() common.Color {
	if p.ClearColor != nil {
		return *p.ClearColor
	}
	return common.DefaultClearColor
}

// MeshRef points at a mesh served by the mesh collaborator.
type MeshRef struct {
	File string
	Name string
}

// Transform places an object in world space.
type Transform struct {
	Position common.Vec3
	Rotation common.Vec3
	Scale    common.Vec3
}

// IdentityTransform has unit scale and no translation or rotation.
var IdentityTransform = Transform{Scale: common.Vec3{1, 1, 1}}

// Object is a mesh drawn with a material in one or more passes.
type Object struct {
	ID        string
	Mesh      MeshRef
	Instances int
	Transform Transform

	// Params overrides material uniform values by member name.
	Params map[string][]float32

	Material Material
}

// Draw renders objects into one or more passes.
type Draw struct {
	StepID  string
	Passes  []Pass
	Objects []Object
}

// ID returns the step identifier.
func (d *Draw) ID() string { return d.StepID }

func (d *Draw) hasObject(id string) bool {
	for _, obj := range d.Objects {
		if obj.ID == id {
			return true
		}
	}
	return false
}

// Reads returns the textures and buffers bound by every object.
func (d *Draw) Reads() []ResourceRef {
	var refs []ResourceRef
	for _, obj := range d.Objects {
		refs = append(refs, obj.Material.reads()...)
	}
	return refs
}

// Writes returns every pass attachment.
func (d *Draw) Writes() []ResourceRef {
	var refs []ResourceRef
	for _, p := range d.Passes {
		if p.Depth != nil {
			refs = append(refs, ResourceRef{ID: p.Depth.Image, Level: p.Depth.Level})
		}
		for _, c := range p.Colors {
			refs = append(refs, ResourceRef{ID: c.Image, Level: c.Level})
		}
	}
	return refs
}

// RunMode selects when a compute step dispatches.
type RunMode string

const (
	// RunInit dispatches once when the simulation resets.
	RunInit RunMode = "init"

	// RunSimulate dispatches once per simulation tick.
	RunSimulate RunMode = "simulate"
)

// Compute dispatches a compute shader over the items of a double buffer.
type Compute struct {
	StepID string
	Shader string
	Run    RunMode

	// Buffer is the double buffer whose item count sizes the dispatch and which simulate steps advance.
	Buffer string

	// Buffers binds storage buffer names declared in the shader to buffer roles.
	Buffers map[string]BufferBinding

	Params map[string][]float32
}

// ID returns the step identifier.
func (c *Compute) ID() string { return c.StepID }

// Reads returns the buffers bound in the current role.
func (c *Compute) Reads() []ResourceRef {
	var refs []ResourceRef
	for _, name := range sortedKeys(c.Buffers) {
		b := c.Buffers[name]
		if b.Role == RoleCurrent {
			refs = append(refs, ResourceRef{ID: b.Buffer, Level: AllLevels})
		}
	}
	return refs
}

// Writes returns the advanced double buffer followed by every other buffer bound in the next role.
func (c *Compute) Writes() []ResourceRef {
	refs := []ResourceRef{{ID: c.Buffer, Level: AllLevels}}
	seen := map[string]bool{c.Buffer: true}
	for _, name := range sortedKeys(c.Buffers) {
		b := c.Buffers[name]
		if b.Role == RoleNext && !seen[b.Buffer] {
			seen[b.Buffer] = true
			refs = append(refs, ResourceRef{ID: b.Buffer, Level: AllLevels})
		}
	}
	return refs
}

// GenerateMipLevels fills levels 1..n-1 of a mipmapped image from level 0.
type GenerateMipLevels struct {
	StepID string
	Image  string
}

// ID returns the step identifier.
func (g *GenerateMipLevels) ID() string { return g.StepID }

// Reads returns the base level.
func (g *GenerateMipLevels) Reads() []ResourceRef {
	return []ResourceRef{{ID: g.Image, Level: 0}}
}

// Writes returns the whole image.
func (g *GenerateMipLevels) Writes() []ResourceRef {
	return []ResourceRef{{ID: g.Image, Level: AllLevels}}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
