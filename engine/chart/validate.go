package chart

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/control"
)

// Validate checks the structural invariants of a chart: unique ids, known formats and modes,
// and that every step only references resources declared in the chart.
// Reading an image that no earlier step has written is reported as a warning.
//
// Parameters:
//   - c: the chart to validate
//
// Returns:
//   - []string: non-fatal warnings
//   - error: a ClassFatal error wrapping common.ErrInvalidChart or common.ErrUnknownImage
func Validate(c *Chart) ([]string, error) {
	v := &validator{chart: c, images: map[string]Image{}, buffers: map[string]bool{}, written: map[string]bool{}}
	if err := v.declarations(); err != nil {
		return nil, common.Fatal("validate chart", c.ID, err)
	}
	if err := v.steps(); err != nil {
		return nil, common.Fatal("validate chart", c.ID, err)
	}
	if err := v.controls(); err != nil {
		return nil, common.Fatal("validate chart", c.ID, err)
	}
	return v.warnings, nil
}

type validator struct {
	chart    *Chart
	images   map[string]Image
	buffers  map[string]bool
	written  map[string]bool
	warnings []string
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrInvalidChart, fmt.Sprintf(format, args...))
}

func (v *validator) declarations() error {
	ids := map[string]bool{ScreenTarget: true}
	for _, img := range v.chart.Images {
		if img.ID == "" {
			return invalid("image without id")
		}
		if ids[img.ID] {
			return invalid("duplicate resource id %q", img.ID)
		}
		ids[img.ID] = true
		if !img.Format.Valid() {
			return invalid("image %q: unknown format %q", img.ID, img.Format)
		}
		switch img.Size.Kind {
		case SizeFixed, SizeAt4k:
			if img.Size.Width <= 0 || img.Size.Height <= 0 {
				return invalid("image %q: size must be positive", img.ID)
			}
		case SizeCanvasRelative:
			if img.Size.Factor <= 0 {
				return invalid("image %q: canvas factor must be positive", img.ID)
			}
		case SizeMipOf:
			if img.Size.Base == img.ID {
				return fmt.Errorf("image %q: %w", img.ID, common.ErrCycle)
			}
			if _, ok := v.images[img.Size.Base]; !ok {
				return fmt.Errorf("image %q: mip_of %q: %w", img.ID, img.Size.Base, common.ErrUnknownImage)
			}
			if img.Size.Level < 0 {
				return invalid("image %q: negative mip level", img.ID)
			}
		}
		v.images[img.ID] = img
	}
	for _, b := range v.chart.Buffers {
		if b.ID == "" {
			return invalid("buffer without id")
		}
		if ids[b.ID] {
			return invalid("duplicate resource id %q", b.ID)
		}
		ids[b.ID] = true
		if b.ItemCount <= 0 || b.ItemSizeInVec4 <= 0 {
			return invalid("buffer %q: item_count and item_size_in_vec4 must be positive", b.ID)
		}
		v.buffers[b.ID] = true
	}
	return nil
}

func (v *validator) steps() error {
	stepIDs := map[string]bool{}
	for i, s := range v.chart.Steps {
		if s.ID() == "" {
			return invalid("step %d has no id", i)
		}
		if stepIDs[s.ID()] {
			return invalid("duplicate step id %q", s.ID())
		}
		stepIDs[s.ID()] = true

		var err error
		switch step := s.(type) {
		case *Draw:
			err = v.draw(step)
		case *Compute:
			err = v.compute(step)
		case *GenerateMipLevels:
			err = v.requireImage(step.Image)
		default:
			err = invalid("unsupported step type %T", s)
		}
		if err != nil {
			return fmt.Errorf("step %q: %w", s.ID(), err)
		}

		for _, r := range s.Reads() {
			if _, isImage := v.images[r.ID]; isImage && !v.written[r.ID] {
				v.warnings = append(v.warnings, fmt.Sprintf("step %q reads image %q before any step writes it", s.ID(), r.ID))
			}
		}
		for _, w := range s.Writes() {
			v.written[w.ID] = true
		}
	}
	return nil
}

func (v *validator) requireImage(id string) error {
	if _, ok := v.images[id]; !ok {
		return fmt.Errorf("image %q: %w", id, common.ErrUnknownImage)
	}
	return nil
}

func (v *validator) requireBuffer(id string) error {
	if !v.buffers[id] {
		return fmt.Errorf("buffer %q: %w", id, common.ErrUnknownBuffer)
	}
	return nil
}

func (v *validator) draw(d *Draw) error {
	passIDs := map[string]bool{}
	for _, p := range d.Passes {
		if passIDs[p.ID] {
			return invalid("duplicate pass id %q", p.ID)
		}
		passIDs[p.ID] = true
		if p.Depth != nil {
			if err := v.requireImage(p.Depth.Image); err != nil {
				return err
			}
			if !v.images[p.Depth.Image].Format.IsDepth() {
				return invalid("pass %q: depth target %q is not a depth format", p.ID, p.Depth.Image)
			}
		}
		if p.Depth == nil && len(p.Colors) == 0 {
			return invalid("pass %q has no targets", p.ID)
		}
		for _, t := range p.Colors {
			if t.Image == ScreenTarget {
				continue
			}
			if err := v.requireImage(t.Image); err != nil {
				return err
			}
			if v.images[t.Image].Format.IsDepth() {
				return invalid("pass %q: color target %q has a depth format", p.ID, t.Image)
			}
		}
	}

	var errs []error
	for _, obj := range d.Objects {
		if len(obj.Material.Passes) == 0 {
			errs = append(errs, invalid("object %q: material has no passes", obj.ID))
		}
		for _, id := range obj.Material.PassIDs() {
			mp := obj.Material.Passes[id]
			if mp.Vertex == "" {
				errs = append(errs, invalid("object %q pass %q: missing vertex shader", obj.ID, id))
			}
			if !mp.Blend.Valid() {
				errs = append(errs, invalid("object %q pass %q: unknown blend %q", obj.ID, id, mp.Blend))
			}
		}
		for name, t := range obj.Material.Textures {
			if !t.Sampler.Valid() {
				errs = append(errs, invalid("object %q texture %q: unknown sampler %q", obj.ID, name, t.Sampler))
			}
			if err := v.requireImage(t.Image); err != nil {
				errs = append(errs, fmt.Errorf("object %q texture %q: %w", obj.ID, name, err))
			}
		}
		for name, b := range obj.Material.Buffers {
			if err := v.requireBuffer(b.Buffer); err != nil {
				errs = append(errs, fmt.Errorf("object %q buffer %q: %w", obj.ID, name, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (v *validator) compute(c *Compute) error {
	if c.Run != RunInit && c.Run != RunSimulate {
		return invalid("unknown run mode %q (want %s)", c.Run, strings.Join([]string{string(RunInit), string(RunSimulate)}, " or "))
	}
	if c.Shader == "" {
		return invalid("missing shader")
	}
	if err := v.requireBuffer(c.Buffer); err != nil {
		return err
	}
	for _, b := range c.Buffers {
		if err := v.requireBuffer(b.Buffer); err != nil {
			return err
		}
	}
	return nil
}

// controls checks that every control is well formed, unique, and targets a declared step or
// an object of a draw step.
func (v *validator) controls() error {
	if err := control.CheckUnique(v.chart.Controls); err != nil {
		return invalid("%v", err)
	}
	steps := make(map[string]Step, len(v.chart.Steps))
	for _, s := range v.chart.Steps {
		steps[s.ID()] = s
	}
	for _, c := range v.chart.Controls {
		if err := c.Validate(); err != nil {
			return invalid("%v", err)
		}
		stepID, objectID := control.SplitTarget(c.Target)
		s, ok := steps[stepID]
		if !ok {
			return invalid("control %q: unknown step %q", c.Key(), stepID)
		}
		if objectID == "" {
			continue
		}
		d, isDraw := s.(*Draw)
		if !isDraw || !d.hasObject(objectID) {
			return invalid("control %q: step %q has no object %q", c.Key(), stepID, objectID)
		}
	}
	return nil
}
