package shader

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
)

// wgslUniformTypeMap maps WGSL type names to the uniform types a schema entry can hold
var wgslUniformTypeMap = map[string]Type{
	"f32":         TypeFloat,
	"vec2f":       TypeVec2,
	"vec2<f32>":   TypeVec2,
	"vec3f":       TypeVec3,
	"vec3<f32>":   TypeVec3,
	"vec4f":       TypeVec4,
	"vec4<f32>":   TypeVec4,
	"mat4x4f":     TypeMat4,
	"mat4x4<f32>": TypeMat4,
}

// wgslComponentCount maps WGSL vertex input types to their float component count
var wgslComponentCount = map[string]int{
	"f32":       1,
	"vec2f":     2,
	"vec2<f32>": 2,
	"vec3f":     3,
	"vec3<f32>": 3,
	"vec4f":     4,
	"vec4<f32>": 4,
}

var (
	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// structOpenRegex matches the opening of every struct declaration, terminated or not
	structOpenRegex = regexp.MustCompile(`struct\s+\w+\s*\{`)

	// locationRegex matches @location(N) attributes
	locationRegex = regexp.MustCompile(`@location\((\d+)\)`)

	// builtinRegex matches @builtin(...) attributes
	builtinRegex = regexp.MustCompile(`@builtin\(\w+\)`)

	// fieldRegex matches a struct field line: optional attributes, name, colon, type.
	fieldRegex = regexp.MustCompile(`^(?:@\w+(?:\([^)]*\))?\s*)*(\w+)\s*:\s*(.+)$`)

	// vertexEntryRegex captures the vertex entry point name and its parameter list
	vertexEntryRegex = regexp.MustCompile(`(?s)@vertex\s+fn\s+(\w+)\s*\((.*?)\)\s*(?:->|\{)`)

	// fragmentEntryRegex matches @fragment functions and captures the entry point name
	fragmentEntryRegex = regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`)

	// computeEntryRegex matches @compute functions and captures the entry point name
	computeEntryRegex = regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`)

	// workgroupSizeRegex captures 1-3 integer dimensions from @workgroup_size(x[, y[, z]])
	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?\)`)

	// bindGroupDeclRegex captures group, binding, optional address space, variable name, and type
	// from declarations like: @group(0) @binding(0) var<uniform> params: Params;
	// or handle types: @group(1) @binding(0) var env: texture_2d<f32>;
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// reflectWGSL parses WGSL source into the language-independent reflection.
//
// Parameters:
//   - source: the raw WGSL source code string
//
// Returns:
//   - *reflection: the uniform block, resources, entry points and vertex inputs
//   - error: an error if the source is malformed or declares an unsupported binding
func reflectWGSL(source string) (*reflection, error) {
	cleaned := stripComments(source)

	structs, err := parseStructBlocks(cleaned)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]parsedStruct, len(structs))
	for _, ps := range structs {
		byName[ps.name] = ps
	}

	r := &reflection{
		entryPoints: EntryPoints{
			Vertex:   parseEntryPoint(cleaned, vertexEntryRegex),
			Fragment: parseEntryPoint(cleaned, fragmentEntryRegex),
			Compute:  parseEntryPoint(cleaned, computeEntryRegex),
		},
		workgroupSize: parseWorkgroupSize(cleaned),
	}

	for _, match := range bindGroupDeclRegex.FindAllStringSubmatch(cleaned, -1) {
		group, _ := strconv.Atoi(match[1])
		binding, _ := strconv.Atoi(match[2])
		addressSpace := strings.TrimSpace(match[3])
		varName := strings.TrimSpace(match[4])
		typeName := strings.TrimSpace(match[5])

		if addressSpace == "uniform" {
			if r.block != nil {
				return nil, fmt.Errorf("second uniform block %q, only one is allowed (first is %q)", varName, r.block.name)
			}
			ps, ok := byName[typeName]
			if !ok {
				return nil, fmt.Errorf("uniform %q: type %q is not a declared struct", varName, typeName)
			}
			block := &reflectedBlock{name: varName, group: group, binding: binding}
			for _, f := range ps.fields {
				m := reflectedMember{name: f.name, sourceType: f.typeName}
				if t, ok := wgslUniformTypeMap[f.typeName]; ok {
					m.typ = &t
				}
				block.members = append(block.members, m)
			}
			r.block = block
			continue
		}

		res, err := classifyResource(group, binding, varName, addressSpace, typeName)
		if err != nil {
			return nil, err
		}
		r.resources = append(r.resources, res)
	}

	r.vertexInputs, err = parseVertexInputs(cleaned, byName)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// parseWorkgroupSize extracts the @workgroup_size(x, y, z) dimensions from WGSL source.
// Omitted dimensions default to 1. Returns [1, 1, 1] if no @workgroup_size annotation is found.
//
// Parameters:
//   - source: WGSL source with comments already stripped
//
// Returns:
//   - [3]uint32: the workgroup size as [x, y, z]
func parseWorkgroupSize(source string) [3]uint32 {
	result := [3]uint32{1, 1, 1}

	match := workgroupSizeRegex.FindStringSubmatch(source)
	if match == nil {
		return result
	}
	for i := 0; i < 3; i++ {
		if match[i+1] == "" {
			continue
		}
		if v, err := strconv.ParseUint(match[i+1], 10, 32); err == nil {
			result[i] = uint32(v)
		}
	}
	return result
}

func parseEntryPoint(source string, re *regexp.Regexp) string {
	if match := re.FindStringSubmatch(source); match != nil {
		return match[1]
	}
	return ""
}

// parseStructBlocks finds all struct { ... } blocks in the cleaned WGSL source
// and parses their fields including @location and @builtin attributes
//
// Parameters:
//   - source: WGSL source with comments already stripped
//
// Returns:
//   - []parsedStruct: all struct blocks found in the source
//   - error: an error if a struct is unterminated or has a field without a type
func parseStructBlocks(source string) ([]parsedStruct, error) {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	if opened := len(structOpenRegex.FindAllStringIndex(source, -1)); opened != len(matches) {
		return nil, fmt.Errorf("unterminated struct declaration")
	}

	structs := make([]parsedStruct, 0, len(matches))
	for _, match := range matches {
		fields, err := parseStructFields(match[2])
		if err != nil {
			return nil, fmt.Errorf("struct %s: %w", match[1], err)
		}
		structs = append(structs, parsedStruct{name: match[1], fields: fields})
	}
	return structs, nil
}

// parseStructFields parses the body of a struct block into individual fields,
// extracting @location and @builtin attributes along with the field name and type
//
// Parameters:
//   - body: the content between { and } of a struct declaration
//
// Returns:
//   - []parsedField: all fields found in the struct body
//   - error: an error if a field has no type
func parseStructFields(body string) ([]parsedField, error) {
	lines := splitAtTopLevelCommas(strings.ReplaceAll(body, ";", ","))
	fields := make([]parsedField, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		field := parsedField{location: -1}
		if builtinRegex.MatchString(line) {
			field.isBuiltin = true
		}
		if locMatch := locationRegex.FindStringSubmatch(line); locMatch != nil {
			field.location, _ = strconv.Atoi(locMatch[1])
		}

		fm := fieldRegex.FindStringSubmatch(line)
		if fm == nil {
			return nil, fmt.Errorf("malformed member %q", line)
		}
		field.name = fm[1]
		field.typeName = strings.TrimSpace(fm[2])
		fields = append(fields, field)
	}

	return fields, nil
}

// parseVertexInputs collects the @location inputs of the vertex entry point, either declared
// directly as parameters or as fields of a pure vertex input struct parameter.
func parseVertexInputs(source string, structs map[string]parsedStruct) ([]gpu.VertexInput, error) {
	match := vertexEntryRegex.FindStringSubmatch(source)
	if match == nil {
		return nil, nil
	}

	var inputs []gpu.VertexInput
	add := func(f parsedField) error {
		n, ok := wgslComponentCount[f.typeName]
		if !ok {
			return fmt.Errorf("vertex input %q: unsupported type %s", f.name, f.typeName)
		}
		inputs = append(inputs, gpu.VertexInput{Location: f.location, Components: n})
		return nil
	}

	params, err := parseStructFields(match[2])
	if err != nil {
		return nil, fmt.Errorf("vertex entry %s: %w", match[1], err)
	}
	for _, p := range params {
		if p.location >= 0 {
			if err := add(p); err != nil {
				return nil, err
			}
			continue
		}
		ps, ok := structs[p.typeName]
		if !ok || !isVertexInputStruct(ps) {
			continue
		}
		for _, f := range ps.fields {
			if err := add(f); err != nil {
				return nil, err
			}
		}
	}
	return inputs, nil
}
