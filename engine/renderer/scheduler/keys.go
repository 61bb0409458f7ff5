package scheduler

import (
	"github.com/Carmen-Shannon/oxy-chart/engine/chart"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/registry"
)

func drawKey(stepID, objectID, passID string, target pipeline.State, mp chart.MaterialPass) pipeline.Key {
	return pipeline.Key{
		Kind:     pipeline.KindRender,
		Vertex:   mp.Vertex,
		Fragment: mp.Fragment,
		State: pipeline.State{
			ColorFormats: target.ColorFormats,
			DepthFormat:  target.DepthFormat,
			DepthTest:    mp.DepthTest,
			DepthWrite:   mp.DepthWrite,
			Blend:        blendMode(mp.Blend),
			Label:        stepID + "/" + objectID + "/" + passID,
		},
	}
}

func computeKey(c *chart.Compute) pipeline.Key {
	return pipeline.Key{Kind: pipeline.KindCompute, Compute: c.Shader, State: pipeline.State{Label: c.StepID}}
}

func mipKey(shaderPath string, format gpu.Format) pipeline.Key {
	return pipeline.Key{
		Kind:     pipeline.KindRender,
		Vertex:   shaderPath,
		Fragment: shaderPath,
		State:    pipeline.State{ColorFormats: []gpu.Format{format}, Label: "mip_blit"},
	}
}

// PipelineKeys lists the pipelines c will request when executed against res, in step order.
// Passes whose targets do not resolve are skipped, since executing them fails before any
// pipeline is requested.
//
// Parameters:
//   - c: the chart
//   - res: the resources resolved for c
//
// Returns:
//   - []pipeline.Key: the keys, possibly with repeats
func (e *executor) PipelineKeys(c *chart.Chart, res *registry.ResourceSet) []pipeline.Key {
	var keys []pipeline.Key
	for _, s := range c.Steps {
		switch step := s.(type) {
		case *chart.Draw:
			for _, pass := range step.Passes {
				state, ok := passFormats(pass, res)
				if !ok {
					continue
				}
				for _, obj := range step.Objects {
					if mp, ok := obj.Material.Pass(pass.ID); ok {
						keys = append(keys, drawKey(step.StepID, obj.ID, pass.ID, state, mp))
					}
				}
			}
		case *chart.Compute:
			keys = append(keys, computeKey(step))
		case *chart.GenerateMipLevels:
			if img, err := res.Image(step.Image); err == nil && img.Shape.MipLevels > 1 {
				keys = append(keys, mipKey(e.mipShader, img.Shape.Format))
			}
		}
	}
	return keys
}

func passFormats(pass chart.Pass, res *registry.ResourceSet) (pipeline.State, bool) {
	var state pipeline.State
	for _, t := range pass.Colors {
		img, err := res.Image(t.Image)
		if err != nil {
			return state, false
		}
		state.ColorFormats = append(state.ColorFormats, img.Shape.Format)
	}
	if pass.Depth != nil {
		img, err := res.Image(pass.Depth.Image)
		if err != nil {
			return state, false
		}
		state.DepthFormat = img.Shape.Format
	}
	return state, true
}
