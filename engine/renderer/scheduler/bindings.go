package scheduler

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/chart"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/registry"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/shader"
)

// resourceBindings is the set of named resources a draw object or compute step offers to its shader.
type resourceBindings struct {
	textures map[string]chart.TextureBinding
	buffers  map[string]chart.BufferBinding
}

// bind resolves every resource the schema declares against the offered bindings. Each name
// must match exactly one offered binding.
//
// Parameters:
//   - schema: the pipeline schema
//   - res: the resolved resources of the chart
//   - uniforms: the packed uniform block, ignored when the schema declares none
//
// Returns:
//   - []gpu.Binding: one binding per declared slot
//   - error: ErrMissingBinding, ErrAmbiguousBinding, ErrUnknownImage or ErrUnknownBuffer
func (rb resourceBindings) bind(schema *shader.Schema, res *registry.ResourceSet, uniforms []byte) ([]gpu.Binding, error) {
	var out []gpu.Binding
	if ub := schema.UniformBlock; ub != nil {
		out = append(out, gpu.Binding{Group: ub.Group, Binding: ub.Binding, Kind: gpu.BindingUniform, Data: uniforms})
	}
	for _, r := range schema.Resources {
		b := gpu.Binding{Group: r.Group, Binding: r.Binding, Kind: r.Kind.BindingKind()}
		_, isTexture := rb.textures[r.Name]
		_, isBuffer := rb.buffers[r.Name]
		if isTexture && isBuffer {
			return nil, fmt.Errorf("%q is bound as both a texture and a buffer: %w", r.Name, common.ErrAmbiguousBinding)
		}

		switch {
		case r.Kind.IsTexture():
			tb, ok := rb.textures[r.Name]
			if !ok {
				return nil, fmt.Errorf("texture %q: %w", r.Name, common.ErrMissingBinding)
			}
			img, err := res.Image(tb.Image)
			if err != nil {
				return nil, err
			}
			b.Image = img.Handle
			b.Sampler = samplerMode(tb.Sampler)
		case r.Kind.IsSampler():
			b.Sampler = samplerMode(rb.samplerFor(r))
		case r.Kind.IsBuffer():
			bb, ok := rb.buffers[r.Name]
			if !ok {
				return nil, fmt.Errorf("buffer %q: %w", r.Name, common.ErrMissingBinding)
			}
			db, err := res.DoubleBuffer(bb.Buffer)
			if err != nil {
				return nil, err
			}
			b.Buffer = db.Handle(bb.Role)
		}
		out = append(out, b)
	}
	return out, nil
}

// samplerFor picks the sampler mode of the texture a sampler object belongs to. A sampler
// named "env_sampler" pairs with the texture "env", "env_texture" or "env_map". When no name
// pairs up, a lone texture lends its mode, and otherwise the kind of sampler decides.
func (rb resourceBindings) samplerFor(r shader.Resource) chart.SamplerMode {
	base := strings.TrimSuffix(r.Name, "_sampler")
	for _, name := range []string{base, base + "_texture", base + "_map"} {
		if tb, ok := rb.textures[name]; ok {
			return tb.Sampler
		}
	}
	if len(rb.textures) == 1 {
		for _, tb := range rb.textures {
			return tb.Sampler
		}
	}
	if r.Kind == shader.KindComparisonSampler {
		return chart.SamplerShadow
	}
	return chart.SamplerRepeat
}

func samplerMode(m chart.SamplerMode) gpu.SamplerMode {
	switch m {
	case chart.SamplerClampToEdge:
		return gpu.SamplerClampToEdge
	case chart.SamplerMirroredRepeat:
		return gpu.SamplerMirroredRepeat
	case chart.SamplerEnvmap:
		return gpu.SamplerEnvmap
	case chart.SamplerShadow:
		return gpu.SamplerShadow
	default:
		return gpu.SamplerRepeat
	}
}
