package scheduler

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/chart"
	"github.com/Carmen-Shannon/oxy-chart/engine/control"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/registry"
)

func (r *frameRun) draw(d *chart.Draw, cl *gpu.CommandList) error {
	for _, pass := range d.Passes {
		if err := r.drawPass(d, pass, cl); err != nil {
			return err
		}
	}
	return nil
}

// drawPass records one render pass. Objects whose material has no entry for the pass id do
// not take part in it. The pass still clears its targets when no object does.
func (r *frameRun) drawPass(d *chart.Draw, pass chart.Pass, cl *gpu.CommandList) error {
	begin := gpu.BeginRenderPass{Label: d.StepID + "/" + pass.ID}
	var (
		state  pipeline.State
		extent common.Extent
		writes []chart.ResourceRef
	)
	for _, t := range pass.Colors {
		img, err := r.target(t)
		if err != nil {
			return common.StepError("draw", d.StepID, fmt.Errorf("pass %q: %w", pass.ID, err))
		}
		att := gpu.ColorAttachment{Image: img.Handle, Level: t.Level}
		if !pass.Load {
			color := pass.EffectiveClearColor()
			att.Clear = &color
		}
		begin.Colors = append(begin.Colors, att)
		state.ColorFormats = append(state.ColorFormats, img.Shape.Format)
		if !extent.Valid() {
			extent = levelExtent(img.Shape, t.Level)
		}
		writes = append(writes, chart.ResourceRef{ID: t.Image, Level: t.Level})
	}
	if pass.Depth != nil {
		img, err := r.target(*pass.Depth)
		if err != nil {
			return common.StepError("draw", d.StepID, fmt.Errorf("pass %q depth: %w", pass.ID, err))
		}
		begin.Depth = &gpu.DepthAttachment{Image: img.Handle, Level: pass.Depth.Level, Clear: !pass.Load}
		state.DepthFormat = img.Shape.Format
		if !extent.Valid() {
			extent = levelExtent(img.Shape, pass.Depth.Level)
		}
		writes = append(writes, chart.ResourceRef{ID: pass.Depth.Image, Level: pass.Depth.Level})
	}

	var objects []chart.Object
	var reads []chart.ResourceRef
	for _, obj := range d.Objects {
		if _, ok := obj.Material.Pass(pass.ID); ok {
			objects = append(objects, obj)
			reads = append(reads, materialReads(obj.Material)...)
		}
	}

	// Resolve everything before recording, so the barrier and pass are only recorded for work
	// that can be issued.
	draws := make([]gpu.Draw, 0, len(objects))
	view := newPassView(r.cam, r.light, extent, pass.IsShadow())
	for _, obj := range objects {
		mp, _ := obj.Material.Pass(pass.ID)
		key := drawKey(d.StepID, obj.ID, pass.ID, state, mp)
		p, err := r.pipeline(d.StepID, key)
		if err != nil {
			return err
		}

		var meshHandle gpu.MeshHandle
		if obj.Mesh.File != "" {
			meshHandle, err = r.meshes.Mesh(obj.Mesh.File, obj.Mesh.Name)
			if err != nil {
				return common.StepError("draw", d.StepID, fmt.Errorf("object %q: %w", obj.ID, err))
			}
		}

		instances := max(obj.Instances, 1)
		uniforms := packUniforms(p.Schema, globalValues(r.frame, view, modelMatrix(obj.Transform), instances), obj.Params,
			r.frame.Controls.For(d.StepID), r.frame.Controls.For(control.Target(d.StepID, obj.ID)))
		rb := resourceBindings{textures: obj.Material.Textures, buffers: obj.Material.Buffers}
		bindings, err := rb.bind(p.Schema, r.res, uniforms)
		if err != nil {
			return common.StepError("draw", d.StepID, fmt.Errorf("object %q pass %q: %w", obj.ID, pass.ID, err))
		}
		draws = append(draws, gpu.Draw{Program: p.Program, Mesh: meshHandle, Instances: instances, Bindings: bindings})
	}

	r.tracker.before(cl, reads)
	cl.Record(begin)
	for _, dc := range draws {
		cl.Record(dc)
	}
	cl.Record(gpu.EndRenderPass{})
	r.tracker.wrote(writes...)
	return nil
}

// target resolves a pass attachment and checks the level exists.
func (r *frameRun) target(t chart.Target) (*registry.Image, error) {
	img, err := r.res.Image(t.Image)
	if err != nil {
		return nil, err
	}
	if t.Level < 0 || t.Level >= max(img.Shape.MipLevels, 1) {
		return nil, fmt.Errorf("image %q has no level %d: %w", t.Image, t.Level, common.ErrNoMipChain)
	}
	return img, nil
}

func levelExtent(s registry.ImageShape, level int) common.Extent {
	return common.Extent{Width: common.MipExtent(s.Width, level), Height: common.MipExtent(s.Height, level)}
}

func materialReads(m chart.Material) []chart.ResourceRef {
	refs := make([]chart.ResourceRef, 0, len(m.Textures)+len(m.Buffers))
	for _, t := range m.Textures {
		refs = append(refs, chart.ResourceRef{ID: t.Image, Level: chart.AllLevels})
	}
	for _, b := range m.Buffers {
		refs = append(refs, chart.ResourceRef{ID: b.Buffer, Level: chart.AllLevels})
	}
	return refs
}

func blendMode(m chart.BlendMode) gpu.BlendMode {
	switch m {
	case chart.BlendAlpha:
		return gpu.BlendAlpha
	case chart.BlendAdditive:
		return gpu.BlendAdditive
	default:
		return gpu.BlendNone
	}
}
