package shader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
)

// MergeStages combines the schemas of a vertex and a fragment shader into the schema of one
// render program. Bindings present in both stages become visible to both. A uniform block or
// resource declared by both stages must agree on its binding and type.
//
// Parameters:
//   - vertex: the vertex stage schema
//   - fragment: the fragment stage schema
//
// Returns:
//   - *Schema: the merged schema, vertex entry point and inputs from vertex, fragment entry point from fragment
//   - error: an error wrapping common.ErrSchema when the stages disagree
func MergeStages(vertex, fragment *Schema) (*Schema, error) {
	out := vertex.WithStage(gpu.StageVertex)
	frag := fragment.WithStage(gpu.StageFragment)
	out.EntryPoints.Fragment = frag.EntryPoints.Fragment

	switch {
	case out.UniformBlock == nil:
		out.UniformBlock = frag.UniformBlock
		out.Entries = frag.Entries
	case frag.UniformBlock != nil:
		if err := mergeBlocks(out, frag); err != nil {
			return nil, schemaError(err)
		}
	}

	for _, r := range frag.Resources {
		idx := -1
		for i, existing := range out.Resources {
			if existing.Group == r.Group && existing.Binding == r.Binding {
				idx = i
				break
			}
		}
		if idx < 0 {
			out.Resources = append(out.Resources, r)
			continue
		}
		existing := &out.Resources[idx]
		if existing.Name != r.Name || existing.Kind != r.Kind {
			return nil, schemaError(fmt.Errorf("binding %d/%d is %q in the vertex stage and %q in the fragment stage", r.Group, r.Binding, existing.Name, r.Name))
		}
		existing.Stages |= r.Stages
	}
	sortResources(out.Resources)
	return out, nil
}

func mergeBlocks(out, frag *Schema) error {
	vb, fb := out.UniformBlock, frag.UniformBlock
	if vb.Group != fb.Group || vb.Binding != fb.Binding {
		return fmt.Errorf("uniform block is bound at %d/%d in the vertex stage and %d/%d in the fragment stage", vb.Group, vb.Binding, fb.Group, fb.Binding)
	}
	for _, fe := range frag.Entries {
		ve, ok := out.Entry(fe.Name)
		if !ok {
			return fmt.Errorf("uniform %q is declared only in the fragment stage", fe.Name)
		}
		if ve.Type != fe.Type || ve.Offset != fe.Offset {
			return fmt.Errorf("uniform %q is %s in the vertex stage and %s in the fragment stage", fe.Name, ve.Type, fe.Type)
		}
	}
	if len(frag.Entries) != len(out.Entries) {
		return fmt.Errorf("vertex and fragment uniform blocks declare different members")
	}
	// Defaults annotated in the fragment source win when the vertex source left them at zero.
	for i, e := range out.Entries {
		fe, _ := frag.Entry(e.Name)
		if isZero(e.Default) {
			copy(out.Entries[i].Default, fe.Default)
		}
	}
	vb.Stages |= fb.Stages
	return nil
}

func isZero(v []float32) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return true
}
