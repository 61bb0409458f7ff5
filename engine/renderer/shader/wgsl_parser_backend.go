package shader

import (
	"fmt"
	"strings"
)

// roundUpAlign rounds value up to the next multiple of alignment.
// Alignment must be a power of two.
//
// Parameters:
//   - alignment: the required alignment (must be a power of two)
//   - value: the value to align
//
// Returns:
//   - uint64: value rounded up to the next multiple of alignment
func roundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// classifyResource creates a Resource from a parsed WGSL handle or storage declaration.
// It determines the resource category (buffer, texture, sampler) from the address space
// qualifier and type name.
//
// Parameters:
//   - group: the group index from @group(N)
//   - binding: the binding index from @binding(N)
//   - name: the variable name
//   - addressSpace: the address space qualifier (e.g. "storage, read_write"), empty for handle types
//   - typeName: the WGSL type string (e.g. "texture_2d<f32>", "sampler", "array<vec4<f32>>")
//
// Returns:
//   - Resource: the classified resource
//   - error: an error for address spaces or handle types the engine cannot bind
func classifyResource(group, binding int, name, addressSpace, typeName string) (Resource, error) {
	r := Resource{Name: name, Group: group, Binding: binding}

	if addressSpace != "" {
		if !strings.HasPrefix(addressSpace, "storage") {
			return r, fmt.Errorf("%q: unsupported address space %q", name, addressSpace)
		}
		r.Type = TypeBuffer
		r.Kind = KindReadOnlyStorageBuffer
		if strings.Contains(addressSpace, "read_write") {
			r.Kind = KindStorageBuffer
		}
		return r, nil
	}

	base, _ := splitTypeParams(typeName)
	switch {
	case typeName == "sampler":
		r.Type, r.Kind = TypeSampler, KindSampler
	case typeName == "sampler_comparison":
		r.Type, r.Kind = TypeSampler, KindComparisonSampler
	case base == "texture_depth_2d":
		r.Type, r.Kind = TypeTexture, KindDepthTexture
	case base == "texture_2d":
		r.Type, r.Kind = TypeTexture, KindSampledTexture
	default:
		return r, fmt.Errorf("%q: unsupported binding type %s", name, typeName)
	}
	return r, nil
}

// splitTypeParams splits a WGSL parameterized type into its base name and parameter string.
// For "texture_2d<f32>" returns ("texture_2d", "f32").
// For "texture_depth_2d" (no params) returns ("texture_depth_2d", "").
//
// Parameters:
//   - typeName: the WGSL type string to split
//
// Returns:
//   - base: the type name before the first angle bracket
//   - params: the content between angle brackets, or empty if none
func splitTypeParams(typeName string) (base string, params string) {
	before, after, ok := strings.Cut(typeName, "<")
	if !ok {
		return typeName, ""
	}
	return before, strings.TrimSpace(strings.TrimSuffix(after, ">"))
}

// stripComments removes both single-line (//) and block (/* */) comments.
// Block comments may be nested.
//
// Parameters:
//   - source: raw shader source string
//
// Returns:
//   - string: source with all comments removed
func stripComments(source string) string {
	return stripLineComments(stripBlockComments(source))
}

// stripLineComments removes single-line // comments so they do not interfere with
// struct and field parsing
func stripLineComments(source string) string {
	var sb strings.Builder
	for line := range strings.SplitSeq(source, "\n") {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// stripBlockComments removes block comments (/* ... */), handling nested block comments
func stripBlockComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	i := 0
	for i < len(source) {
		if i+1 < len(source) {
			if source[i] == '/' && source[i+1] == '*' {
				depth++
				i += 2
				continue
			}
			if source[i] == '*' && source[i+1] == '/' {
				if depth > 0 {
					depth--
				}
				i += 2
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
		i++
	}
	return sb.String()
}

// isVertexInputStruct returns true if the struct is a pure vertex input, meaning
// it has at least one @location field and zero @builtin fields. This distinguishes
// vertex input structs from vertex output structs which mix @location with @builtin(position).
func isVertexInputStruct(ps parsedStruct) bool {
	hasLocation := false
	for _, f := range ps.fields {
		if f.isBuiltin {
			return false
		}
		if f.location >= 0 {
			hasLocation = true
		}
	}
	return hasLocation
}

// splitAtTopLevelCommas splits a string at commas that are not nested inside angle brackets
// or parentheses, so array<T, N> and @interpolate(flat, either) stay whole.
//
// Parameters:
//   - s: the string to split (typically the body of a struct or a parameter list)
//
// Returns:
//   - []string: substrings between top-level commas
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(':
			depth++
		case '>', ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}
