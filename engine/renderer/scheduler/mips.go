package scheduler

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/chart"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/shader"
)

// generateMips fills levels 1..n-1 of an image. Each level is a render sub-pass sampling the
// level above it, so every sub-pass after the first waits on a barrier.
func (r *frameRun) generateMips(g *chart.GenerateMipLevels, cl *gpu.CommandList) error {
	img, err := r.res.Image(g.Image)
	if err != nil {
		return common.StepError("generate mips", g.StepID, err)
	}
	if img.Shape.MipLevels <= 1 {
		return common.StepError("generate mips", g.StepID, fmt.Errorf("image %q: %w", g.Image, common.ErrNoMipChain))
	}

	p, err := r.pipeline(g.StepID, mipKey(r.mipShader, img.Shape.Format))
	if err != nil {
		return err
	}

	for level := 1; level < img.Shape.MipLevels; level++ {
		r.tracker.before(cl, []chart.ResourceRef{{ID: g.Image, Level: level - 1}})
		cl.Record(gpu.BeginRenderPass{
			Label:  fmt.Sprintf("%s/level%d", g.StepID, level),
			Colors: []gpu.ColorAttachment{{Image: img.Handle, Level: level}},
		})
		cl.Record(gpu.Draw{Program: p.Program, Mesh: gpu.InvalidHandle, Instances: 1, Bindings: mipBindings(p.Schema, img.Handle, level-1)})
		cl.Record(gpu.EndRenderPass{})
		r.tracker.wrote(chart.ResourceRef{ID: g.Image, Level: level})
	}
	return nil
}

// mipBindings exposes a single source level to every texture slot of the blit shader.
func mipBindings(schema *shader.Schema, image gpu.ImageHandle, source int) []gpu.Binding {
	var out []gpu.Binding
	if ub := schema.UniformBlock; ub != nil {
		out = append(out, gpu.Binding{Group: ub.Group, Binding: ub.Binding, Kind: gpu.BindingUniform, Data: make([]byte, ub.Size)})
	}
	for _, res := range schema.Resources {
		b := gpu.Binding{Group: res.Group, Binding: res.Binding, Kind: res.Kind.BindingKind(), Sampler: gpu.SamplerClampToEdge}
		if res.Kind.IsTexture() {
			b.Image = image
			b.BaseLevel = source
			b.LevelCount = 1
		}
		out = append(out, b)
	}
	return out
}
