// annotations.go parses //@chart: annotations. Annotations are single-line comments that attach
// engine metadata to a shader without changing its compiled meaning. They may appear on any line
// of a WGSL or GLSL source.
//
// Syntax:
//
//	//@chart:default <member> <v0> [v1 v2 v3]
//
// The number of values must match the component count of the member.
package shader

import (
	"fmt"
	"strconv"
	"strings"
)

// annotationPrefix marks an annotation inside a line comment.
const annotationPrefix = "@chart:"

// AnnotationType identifies the kind of annotation.
type AnnotationType string

const (
	// AnnotationTypeDefault sets the default value of an editable uniform member.
	AnnotationTypeDefault AnnotationType = "default"
)

type defaultAnnotation struct {
	member string
	values []float32
	line   int
}

// parseDefaultAnnotations collects every default annotation in source order.
//
// Parameters:
//   - source: the raw shader source
//
// Returns:
//   - []defaultAnnotation: the parsed defaults
//   - error: an error if an annotation is malformed or of an unknown type
func parseDefaultAnnotations(source string) ([]defaultAnnotation, error) {
	var out []defaultAnnotation
	for i, line := range strings.Split(source, "\n") {
		idx := strings.Index(line, "//")
		if idx < 0 {
			continue
		}
		comment := strings.TrimSpace(line[idx+2:])
		if !strings.HasPrefix(comment, annotationPrefix) {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(comment, annotationPrefix))
		if len(fields) == 0 {
			return nil, fmt.Errorf("line %d: empty annotation", i+1)
		}

		switch AnnotationType(fields[0]) {
		case AnnotationTypeDefault:
			if len(fields) < 3 {
				return nil, fmt.Errorf("line %d: default annotation needs a member and at least one value", i+1)
			}
			d := defaultAnnotation{member: fields[1], line: i + 1}
			for _, f := range fields[2:] {
				v, err := strconv.ParseFloat(f, 32)
				if err != nil {
					return nil, fmt.Errorf("line %d: default for %q: %q is not a number", i+1, d.member, f)
				}
				d.values = append(d.values, float32(v))
			}
			out = append(out, d)
		default:
			return nil, fmt.Errorf("line %d: unknown annotation %q", i+1, fields[0])
		}
	}
	return out, nil
}
