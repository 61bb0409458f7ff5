// Package shader reflects uniform schemas from shader source text. A schema lists the members
// of the shader's single uniform block in declaration order, separates engine globals (the g_
// prefix) from user-editable parameters, and records every texture, sampler and storage buffer
// the shader binds.
package shader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
)

// Language is the shading language of a source file.
type Language int

const (
	LanguageWGSL Language = iota
	LanguageGLSL
)

func (l Language) String() string {
	if l == LanguageGLSL {
		return "glsl"
	}
	return "wgsl"
}

// LanguageFromPath picks the language from the file extension. Unknown extensions are WGSL.
func LanguageFromPath(path string) Language {
	if gpu.IsGLSL(path) {
		return LanguageGLSL
	}
	return LanguageWGSL
}

// Type is the semantic type of a schema entry or resource.
type Type int

const (
	TypeFloat Type = iota
	TypeVec2
	TypeVec3
	TypeVec4
	TypeMat4
	TypeTexture
	TypeSampler
	TypeBuffer
)

// Components returns the number of float32 values of a uniform type.
func (t Type) Components() int {
	switch t {
	case TypeFloat:
		return 1
	case TypeVec2:
		return 2
	case TypeVec3:
		return 3
	case TypeVec4:
		return 4
	case TypeMat4:
		return 16
	}
	return 0
}

func (t Type) String() string {
	switch t {
	case TypeFloat:
		return "float"
	case TypeVec2:
		return "vec2"
	case TypeVec3:
		return "vec3"
	case TypeVec4:
		return "vec4"
	case TypeMat4:
		return "mat4x4"
	case TypeTexture:
		return "texture"
	case TypeSampler:
		return "sampler"
	case TypeBuffer:
		return "buffer"
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// Group tells who supplies the value of a uniform member.
type Group int

const (
	GroupMaterial Group = iota
	GroupGlobal
)

func (g Group) String() string {
	if g == GroupGlobal {
		return "global"
	}
	return "material"
}

// ResourceKind is the binding type of a non-uniform resource.
type ResourceKind int

const (
	KindSampledTexture ResourceKind = iota
	KindDepthTexture
	KindSampler
	KindComparisonSampler
	KindStorageBuffer
	KindReadOnlyStorageBuffer
)

func (k ResourceKind) String() string {
	switch k {
	case KindSampledTexture:
		return "texture"
	case KindDepthTexture:
		return "depth_texture"
	case KindSampler:
		return "sampler"
	case KindComparisonSampler:
		return "comparison_sampler"
	case KindStorageBuffer:
		return "storage"
	case KindReadOnlyStorageBuffer:
		return "read_only_storage"
	}
	return "unknown"
}

// IsTexture reports whether the resource is bound to an image.
func (k ResourceKind) IsTexture() bool {
	return k == KindSampledTexture || k == KindDepthTexture
}

// IsSampler reports whether the resource is a sampler object.
func (k ResourceKind) IsSampler() bool {
	return k == KindSampler || k == KindComparisonSampler
}

// IsBuffer reports whether the resource is a storage buffer.
func (k ResourceKind) IsBuffer() bool {
	return k == KindStorageBuffer || k == KindReadOnlyStorageBuffer
}

// BindingKind returns the device binding type of the resource.
func (k ResourceKind) BindingKind() gpu.BindingKind {
	switch k {
	case KindDepthTexture:
		return gpu.BindingDepthTexture
	case KindSampler:
		return gpu.BindingSampler
	case KindComparisonSampler:
		return gpu.BindingComparisonSampler
	case KindStorageBuffer:
		return gpu.BindingStorage
	case KindReadOnlyStorageBuffer:
		return gpu.BindingReadOnlyStorage
	}
	return gpu.BindingTexture
}

// Entry is one member of the uniform block.
type Entry struct {
	Name     string
	Type     Type
	Group    Group
	Offset   uint64
	Default  []float32
	Editable bool
	Global   GlobalType
}

// Resource is a texture, sampler or storage buffer binding.
type Resource struct {
	Name    string
	Group   int
	Binding int
	Kind    ResourceKind
	Type    Type
	Stages  gpu.Stage
}

// UniformBlock locates the uniform buffer binding. Size is rounded up to 16 bytes.
type UniformBlock struct {
	Name    string
	Group   int
	Binding int
	Size    uint64
	Stages  gpu.Stage
}

// EntryPoints names the stage entry functions found in the source.
type EntryPoints struct {
	Vertex   string
	Fragment string
	Compute  string
}

// Schema is the reflected interface of one shader, or of a merged vertex and fragment pair.
type Schema struct {
	Entries       []Entry
	Resources     []Resource
	UniformBlock  *UniformBlock
	EntryPoints   EntryPoints
	WorkgroupSize [3]uint32
	VertexInputs  []gpu.VertexInput
}

// Entry returns the uniform member with the given name.
func (s *Schema) Entry(name string) (Entry, bool) {
	for _, e := range s.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Resource returns the resource with the given name.
func (s *Schema) Resource(name string) (Resource, bool) {
	for _, r := range s.Resources {
		if r.Name == name {
			return r, true
		}
	}
	return Resource{}, false
}

// Editable returns the user-editable members in declaration order.
func (s *Schema) Editable() []Entry {
	var out []Entry
	for _, e := range s.Entries {
		if e.Editable {
			out = append(out, e)
		}
	}
	return out
}

// WithStage returns a copy whose uniform block and resources are visible to the given stages.
func (s *Schema) WithStage(stage gpu.Stage) *Schema {
	out := s.clone()
	if out.UniformBlock != nil {
		out.UniformBlock.Stages = stage
	}
	for i := range out.Resources {
		out.Resources[i].Stages = stage
	}
	return out
}

func (s *Schema) clone() *Schema {
	out := *s
	out.Entries = make([]Entry, len(s.Entries))
	for i, e := range s.Entries {
		e.Default = append([]float32(nil), e.Default...)
		out.Entries[i] = e
	}
	out.Resources = append([]Resource(nil), s.Resources...)
	out.VertexInputs = append([]gpu.VertexInput(nil), s.VertexInputs...)
	if s.UniformBlock != nil {
		ub := *s.UniformBlock
		out.UniformBlock = &ub
	}
	return &out
}

// Layout converts the schema into the program layout a device builds bind groups from.
//
// Returns:
//   - gpu.ProgramLayout: binding slots sorted by group and binding, and the uniform field offsets
func (s *Schema) Layout() gpu.ProgramLayout {
	var l gpu.ProgramLayout
	if s.UniformBlock != nil {
		l.Slots = append(l.Slots, gpu.BindingSlot{
			Group:   s.UniformBlock.Group,
			Binding: s.UniformBlock.Binding,
			Name:    s.UniformBlock.Name,
			Kind:    gpu.BindingUniform,
			Stages:  s.UniformBlock.Stages,
		})
		l.UniformSize = s.UniformBlock.Size
	}
	for _, r := range s.Resources {
		l.Slots = append(l.Slots, gpu.BindingSlot{
			Group:   r.Group,
			Binding: r.Binding,
			Name:    r.Name,
			Kind:    r.Kind.BindingKind(),
			Stages:  r.Stages,
		})
	}
	sort.Slice(l.Slots, func(i, j int) bool {
		if l.Slots[i].Group != l.Slots[j].Group {
			return l.Slots[i].Group < l.Slots[j].Group
		}
		return l.Slots[i].Binding < l.Slots[j].Binding
	})
	for _, e := range s.Entries {
		l.UniformFields = append(l.UniformFields, gpu.UniformField{Name: e.Name, Offset: e.Offset, Components: e.Type.Components()})
	}
	l.VertexInputs = append(l.VertexInputs, s.VertexInputs...)
	return l
}

// Extract reflects the uniform schema of a shader source.
//
// Parameters:
//   - source: the shader source text
//   - lang: the shading language of the source
//
// Returns:
//   - *Schema: the reflected schema
//   - error: an error wrapping common.ErrSchema when the source is malformed or declares an
//     unsupported uniform member
func Extract(source string, lang Language) (*Schema, error) {
	var (
		r   *reflection
		err error
	)
	switch lang {
	case LanguageGLSL:
		r, err = reflectGLSL(source)
	default:
		r, err = reflectWGSL(source)
	}
	if err != nil {
		return nil, schemaError(err)
	}

	s := &Schema{
		Resources:     r.resources,
		EntryPoints:   r.entryPoints,
		WorkgroupSize: r.workgroupSize,
		VertexInputs:  r.vertexInputs,
	}
	sortResources(s.Resources)

	if r.block != nil {
		entries, size, err := buildEntries(r.block.members)
		if err != nil {
			return nil, schemaError(err)
		}
		s.Entries = entries
		s.UniformBlock = &UniformBlock{
			Name:    r.block.name,
			Group:   r.block.group,
			Binding: r.block.binding,
			Size:    size,
		}
	}

	defaults, err := parseDefaultAnnotations(source)
	if err != nil {
		return nil, schemaError(err)
	}
	if err := applyDefaults(s, defaults); err != nil {
		return nil, schemaError(err)
	}
	return s, nil
}

func sortResources(rs []Resource) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Group != rs[j].Group {
			return rs[i].Group < rs[j].Group
		}
		return rs[i].Binding < rs[j].Binding
	})
}

func schemaError(err error) error {
	return fmt.Errorf("%w: %w", common.ErrSchema, err)
}

// reflection is the language-independent result of parsing a source file.
type reflection struct {
	block         *reflectedBlock
	resources     []Resource
	entryPoints   EntryPoints
	workgroupSize [3]uint32
	vertexInputs  []gpu.VertexInput
}

type reflectedBlock struct {
	name    string
	group   int
	binding int
	members []reflectedMember
}

// reflectedMember is a uniform block member with its source type already mapped.
// typ is nil when the source type has no uniform mapping.
type reflectedMember struct {
	name       string
	sourceType string
	typ        *Type
}

// uniformLayout is the size and alignment of each uniform type. WGSL uniform layout and
// std140 agree for every type a uniform block may hold.
var uniformLayout = map[Type]typeLayout{
	TypeFloat: {4, 4},
	TypeVec2:  {8, 8},
	TypeVec3:  {12, 16},
	TypeVec4:  {16, 16},
	TypeMat4:  {64, 16},
}

func buildEntries(members []reflectedMember) ([]Entry, uint64, error) {
	entries := make([]Entry, 0, len(members))
	seen := make(map[string]bool, len(members))
	offset := uint64(0)
	for _, m := range members {
		if seen[m.name] {
			return nil, 0, fmt.Errorf("duplicate uniform member %q", m.name)
		}
		seen[m.name] = true

		e := Entry{Name: m.name}
		if strings.HasPrefix(m.name, GlobalPrefix) {
			g, err := ParseGlobal(m.name)
			if err != nil {
				return nil, 0, err
			}
			if m.typ == nil || *m.typ != g.Type() {
				return nil, 0, fmt.Errorf("global %q must be declared as %s, not %s", m.name, g.Type(), m.sourceType)
			}
			e.Type, e.Group, e.Global = g.Type(), GroupGlobal, g
		} else {
			if m.typ == nil || *m.typ == TypeMat4 {
				return nil, 0, fmt.Errorf("uniform %q is not a float scalar or float vector (%s)", m.name, m.sourceType)
			}
			e.Type, e.Group, e.Editable = *m.typ, GroupMaterial, true
		}

		layout := uniformLayout[e.Type]
		offset = roundUpAlign(layout.align, offset)
		e.Offset = offset
		offset += layout.size
		e.Default = make([]float32, e.Type.Components())
		entries = append(entries, e)
	}
	return entries, max(roundUpAlign(16, offset), 16), nil
}

func applyDefaults(s *Schema, defaults []defaultAnnotation) error {
	for _, d := range defaults {
		idx := -1
		for i, e := range s.Entries {
			if e.Name == d.member {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("line %d: default for undeclared uniform %q", d.line, d.member)
		}
		e := &s.Entries[idx]
		if !e.Editable {
			return fmt.Errorf("line %d: %q is an engine global and takes no default", d.line, d.member)
		}
		if len(d.values) != e.Type.Components() {
			return fmt.Errorf("line %d: default for %q has %d values, want %d", d.line, d.member, len(d.values), e.Type.Components())
		}
		copy(e.Default, d.values)
	}
	return nil
}
