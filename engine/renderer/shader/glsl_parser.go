package shader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
)

// glslUniformTypeMap maps GLSL type names to the uniform types a schema entry can hold
var glslUniformTypeMap = map[string]Type{
	"float":  TypeFloat,
	"vec2":   TypeVec2,
	"vec3":   TypeVec3,
	"vec4":   TypeVec4,
	"mat4":   TypeMat4,
	"mat4x4": TypeMat4,
}

// glslOpaqueKinds maps GLSL opaque uniform types to resource kinds
var glslOpaqueKinds = map[string]ResourceKind{
	"texture2D":       KindSampledTexture,
	"sampler2D":       KindSampledTexture,
	"sampler2DShadow": KindDepthTexture,
	"sampler":         KindSampler,
	"samplerShadow":   KindComparisonSampler,
}

var (
	// glslBlockRegex captures layout qualifiers, storage modifiers, the block kind, block name,
	// body and optional instance name of an interface block
	glslBlockRegex = regexp.MustCompile(`layout\s*\(([^)]*)\)\s*((?:\w+\s+)*?)(uniform|buffer)\s+(\w+)\s*\{([^}]*)\}\s*(\w*)\s*;`)

	// glslBlockOpenRegex matches the opening of every interface block
	glslBlockOpenRegex = regexp.MustCompile(`\b(?:uniform|buffer)\s+\w+\s*\{`)

	// glslOpaqueRegex captures layout qualifiers, type and name of an opaque uniform
	glslOpaqueRegex = regexp.MustCompile(`layout\s*\(([^)]*)\)\s*uniform\s+(?:(?:lowp|mediump|highp)\s+)?(\w+)\s+(\w+)\s*;`)

	// glslUniformKeywordRegex matches every uniform declaration so unqualified ones can be found
	glslUniformKeywordRegex = regexp.MustCompile(`\buniform\s+(?:\w+\s+)?(\w+)`)

	// glslLocalSizeRegex captures the compute local size layout
	glslLocalSizeRegex = regexp.MustCompile(`layout\s*\(([^)]*local_size[^)]*)\)\s*in\s*;`)

	// glslVertexInputRegex captures location and type of a stage input
	glslVertexInputRegex = regexp.MustCompile(`layout\s*\(\s*location\s*=\s*(\d+)\s*\)\s*in\s+(\w+)\s+\w+\s*;`)

	glslMainRegex     = regexp.MustCompile(`\bvoid\s+main\s*\(`)
	glslPositionRegex = regexp.MustCompile(`\bgl_Position\b`)
)

// glslComponentCount maps GLSL vertex input types to their float component count
var glslComponentCount = map[string]int{
	"float": 1,
	"vec2":  2,
	"vec3":  3,
	"vec4":  4,
}

// reflectGLSL parses Vulkan-flavored GLSL into the language-independent reflection. The stage is
// inferred from the source: a local_size layout marks a compute shader, a write to gl_Position a
// vertex shader, and anything else with a main function a fragment shader.
//
// Parameters:
//   - source: the raw GLSL source code string
//
// Returns:
//   - *reflection: the uniform block, resources, entry point and vertex inputs
//   - error: an error if the source is malformed or a binding lacks a layout binding index
func reflectGLSL(source string) (*reflection, error) {
	cleaned := stripComments(source)

	blocks := glslBlockRegex.FindAllStringSubmatch(cleaned, -1)
	if opened := len(glslBlockOpenRegex.FindAllStringIndex(cleaned, -1)); opened != len(blocks) {
		return nil, fmt.Errorf("unterminated or unqualified interface block")
	}
	if name, ok := unqualifiedUniform(cleaned); ok {
		return nil, fmt.Errorf("uniform %q has no layout binding", name)
	}

	r := &reflection{workgroupSize: [3]uint32{1, 1, 1}}

	for _, m := range blocks {
		group, binding, err := parseGLSLLayout(m[1])
		if err != nil {
			return nil, fmt.Errorf("block %s: %w", m[4], err)
		}
		name := m[6]
		if name == "" {
			name = m[4]
		}

		if m[3] == "buffer" {
			res := Resource{Name: name, Group: group, Binding: binding, Type: TypeBuffer, Kind: KindStorageBuffer}
			if strings.Contains(m[2], "readonly") {
				res.Kind = KindReadOnlyStorageBuffer
			}
			r.resources = append(r.resources, res)
			continue
		}

		if r.block != nil {
			return nil, fmt.Errorf("second uniform block %q, only one is allowed (first is %q)", name, r.block.name)
		}
		members, err := parseGLSLMembers(m[5])
		if err != nil {
			return nil, fmt.Errorf("block %s: %w", m[4], err)
		}
		r.block = &reflectedBlock{name: name, group: group, binding: binding, members: members}
	}

	for _, m := range glslOpaqueRegex.FindAllStringSubmatch(cleaned, -1) {
		group, binding, err := parseGLSLLayout(m[1])
		if err != nil {
			return nil, fmt.Errorf("%q: %w", m[3], err)
		}
		kind, ok := glslOpaqueKinds[m[2]]
		if !ok {
			return nil, fmt.Errorf("%q: unsupported binding type %s", m[3], m[2])
		}
		res := Resource{Name: m[3], Group: group, Binding: binding, Kind: kind, Type: TypeTexture}
		if kind.IsSampler() {
			res.Type = TypeSampler
		}
		r.resources = append(r.resources, res)
	}

	if glslMainRegex.MatchString(cleaned) {
		switch {
		case glslLocalSizeRegex.MatchString(cleaned):
			r.entryPoints.Compute = "main"
		case glslPositionRegex.MatchString(cleaned):
			r.entryPoints.Vertex = "main"
		default:
			r.entryPoints.Fragment = "main"
		}
	}

	if m := glslLocalSizeRegex.FindStringSubmatch(cleaned); m != nil {
		for i, axis := range []string{"local_size_x", "local_size_y", "local_size_z"} {
			if v, ok := layoutValue(m[1], axis); ok {
				r.workgroupSize[i] = uint32(v)
			}
		}
	}

	if r.entryPoints.Vertex != "" {
		for _, m := range glslVertexInputRegex.FindAllStringSubmatch(cleaned, -1) {
			loc, _ := strconv.Atoi(m[1])
			n, ok := glslComponentCount[m[2]]
			if !ok {
				return nil, fmt.Errorf("vertex input at location %d: unsupported type %s", loc, m[2])
			}
			r.vertexInputs = append(r.vertexInputs, gpu.VertexInput{Location: loc, Components: n})
		}
	}
	return r, nil
}

// unqualifiedUniform returns the first uniform declaration not covered by a layout-qualified
// block or opaque declaration.
func unqualifiedUniform(source string) (string, bool) {
	var spans [][]int
	spans = append(spans, glslBlockRegex.FindAllStringIndex(source, -1)...)
	spans = append(spans, glslOpaqueRegex.FindAllStringIndex(source, -1)...)
	for _, m := range glslUniformKeywordRegex.FindAllStringSubmatchIndex(source, -1) {
		covered := false
		for _, sp := range spans {
			if m[0] >= sp[0] && m[1] <= sp[1] {
				covered = true
				break
			}
		}
		if !covered {
			return source[m[2]:m[3]], true
		}
	}
	return "", false
}

// parseGLSLLayout reads set and binding from a layout qualifier list. set defaults to 0,
// binding is required.
func parseGLSLLayout(qualifiers string) (group, binding int, err error) {
	b, ok := layoutValue(qualifiers, "binding")
	if !ok {
		return 0, 0, fmt.Errorf("layout(%s) has no binding", strings.TrimSpace(qualifiers))
	}
	s, _ := layoutValue(qualifiers, "set")
	return s, b, nil
}

func layoutValue(qualifiers, key string) (int, bool) {
	for _, q := range strings.Split(qualifiers, ",") {
		k, v, ok := strings.Cut(q, "=")
		if !ok || strings.TrimSpace(k) != key {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func parseGLSLMembers(body string) ([]reflectedMember, error) {
	var members []reflectedMember
	for _, decl := range strings.Split(body, ";") {
		fields := strings.Fields(decl)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("malformed member %q", strings.TrimSpace(decl))
		}
		typeName := fields[len(fields)-2]
		name := fields[len(fields)-1]
		m := reflectedMember{name: name, sourceType: typeName}
		if idx := strings.IndexByte(name, '['); idx >= 0 {
			m.name = name[:idx]
			m.sourceType = typeName + name[idx:]
		} else if t, ok := glslUniformTypeMap[typeName]; ok {
			m.typ = &t
		}
		members = append(members, m)
	}
	return members, nil
}
