// Package registry turns a chart's symbolic resource declarations into device images and
// double buffers, and keeps canvas-relative images sized to the canvas.
package registry

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine/chart"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
	"github.com/chewxy/math32"
)

// At4kWidth is the canvas width At4k sizes are authored against.
const At4kWidth = 3840

// ImageShape is the concrete allocation of one declared image.
type ImageShape struct {
	ID        string
	Width     int
	Height    int
	MipLevels int
	Format    gpu.Format
}

// Extent returns the base level dimensions.
func (s ImageShape) Extent() common.Extent {
	return common.Extent{Width: s.Width, Height: s.Height}
}

var formats = map[chart.PixelFormat]gpu.Format{
	chart.FormatRgba16F:    gpu.FormatRGBA16Float,
	chart.FormatRgba32F:    gpu.FormatRGBA32Float,
	chart.FormatDepth32F:   gpu.FormatDepth32Float,
	chart.FormatRgba8:      gpu.FormatRGBA8Unorm,
	chart.FormatRgba8Srgb:  gpu.FormatRGBA8UnormSrgb,
	chart.FormatBgra8Srgb:  gpu.FormatBGRA8UnormSrgb,
	chart.FormatBgra8Unorm: gpu.FormatBGRA8Unorm,
}

// FormatOf maps a chart pixel format to the device format. Unknown formats map to FormatUndefined.
func FormatOf(f chart.PixelFormat) gpu.Format {
	return formats[f]
}

// ComputeShapes resolves every image declaration of c against the canvas. It is pure: the same
// chart, canvas and limits always produce the same shapes in declaration order.
//
// Parameters:
//   - c: the chart whose images are resolved
//   - canvas: the current canvas size in pixels
//   - limits: the device limits, a zero MaxImageDimension disables the size check
//
// Returns:
//   - []ImageShape: one shape per declared image, in declaration order
//   - error: an error wrapping common.ErrUnknownImage, common.ErrCycle or common.ErrSizeLimit
func ComputeShapes(c *chart.Chart, canvas common.Extent, limits gpu.Limits) ([]ImageShape, error) {
	shapes := make([]ImageShape, 0, len(c.Images))
	byID := make(map[string]ImageShape, len(c.Images))

	for _, img := range c.Images {
		w, h, err := resolveSize(c, img, canvas, byID)
		if err != nil {
			return nil, err
		}
		if limits.MaxImageDimension > 0 && (w > limits.MaxImageDimension || h > limits.MaxImageDimension) {
			return nil, fmt.Errorf("image %q is %dx%d, limit %d: %w", img.ID, w, h, limits.MaxImageDimension, common.ErrSizeLimit)
		}

		shape := ImageShape{ID: img.ID, Width: w, Height: h, MipLevels: 1, Format: FormatOf(img.Format)}
		if img.HasMipmaps {
			shape.MipLevels = common.MipLevelCount(w, h)
		}
		shapes = append(shapes, shape)
		byID[img.ID] = shape
	}
	return shapes, nil
}

func resolveSize(c *chart.Chart, img chart.Image, canvas common.Extent, resolved map[string]ImageShape) (int, int, error) {
	rule := img.Size
	switch rule.Kind {
	case chart.SizeFixed:
		return rule.Width, rule.Height, nil
	case chart.SizeCanvasRelative:
		return scaled(canvas.Width, rule.Factor), scaled(canvas.Height, rule.Factor), nil
	case chart.SizeAt4k:
		scale := float32(canvas.Width) / At4kWidth
		return scaled(rule.Width, scale), scaled(rule.Height, scale), nil
	case chart.SizeMipOf:
		base, ok := resolved[rule.Base]
		if !ok {
			if mipCycle(c, img.ID) {
				return 0, 0, fmt.Errorf("image %q: mip_of %q: %w", img.ID, rule.Base, common.ErrCycle)
			}
			return 0, 0, fmt.Errorf("image %q: mip_of %q: %w", img.ID, rule.Base, common.ErrUnknownImage)
		}
		return common.MipExtent(base.Width, rule.Level), common.MipExtent(base.Height, rule.Level), nil
	}
	return 0, 0, fmt.Errorf("image %q: unknown size rule %d", img.ID, rule.Kind)
}

// scaled returns int(n*factor), never less than 1.
func scaled(n int, factor float32) int {
	return max(1, int(math32.Floor(float32(n)*factor)))
}

// mipCycle follows the mip_of chain starting at id and reports whether it returns to id.
func mipCycle(c *chart.Chart, id string) bool {
	seen := map[string]bool{}
	cur := id
	for {
		img, ok := c.Image(cur)
		if !ok || img.Size.Kind != chart.SizeMipOf {
			return false
		}
		if seen[cur] {
			return true
		}
		seen[cur] = true
		cur = img.Size.Base
	}
}
