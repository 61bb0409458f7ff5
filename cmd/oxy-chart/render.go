package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine"
	"github.com/Carmen-Shannon/oxy-chart/engine/chart"
	"github.com/Carmen-Shannon/oxy-chart/engine/config"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/pipeline"
	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
)

type renderOptions struct {
	frames int
	image  string
	out    string
	width  int
	height int

	// compiler replaces the naga validator when set.
	compiler pipeline.Compiler
}

func newRenderCmd(root *rootOptions) *cobra.Command {
	opts := renderOptions{}
	cmd := &cobra.Command{
		Use:   "render <chart.yaml>",
		Short: "Render a chart headlessly on the software device and save one image as PNG",
		Long: "Render runs the chart on the CPU reference device for a number of fixed-step frames and " +
			"saves level 0 of the chosen image. Fragment shaders without a software kernel write their " +
			"color parameter, or white when they have none.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := renderChart(cmd.Context(), args[0], root.cfg, opts)
			if err != nil {
				return err
			}
			if err := imaging.Save(img, opts.out); err != nil {
				return fmt.Errorf("save %s: %w", opts.out, err)
			}
			common.Logger().Info("image saved", "image", opts.image, "out", opts.out)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.frames, "frames", 1, "frames to run before the snapshot")
	cmd.Flags().StringVar(&opts.image, "image", chart.ScreenTarget, "id of the image to save")
	cmd.Flags().StringVar(&opts.out, "out", "chart.png", "output file; the extension selects the encoder")
	cmd.Flags().IntVar(&opts.width, "width", 640, "canvas width")
	cmd.Flags().IntVar(&opts.height, "height", 360, "canvas height")
	return cmd
}

// renderChart runs opts.frames frames one simulation step apart and returns the chosen image.
func renderChart(ctx context.Context, chartPath string, cfg config.Config, opts renderOptions) (*image.NRGBA, error) {
	if opts.frames < 1 {
		return nil, errors.New("frames must be at least 1")
	}
	cfg.Canvas = config.Canvas{Width: opts.width, Height: opts.height}

	device := gpu.NewSoftwareDevice(opts.width, opts.height,
		gpu.WithSoftwareLimits(gpu.Limits{MaxImageDimension: cfg.Limits.MaxImageDimension}),
		gpu.WithFallbackFragmentKernel(parameterColor),
	)
	engineOpts := []engine.EngineBuilderOption{engine.WithConfig(cfg)}
	if opts.compiler != nil {
		engineOpts = append(engineOpts, engine.WithCompiler(opts.compiler))
	}
	eng := engine.NewEngine(device, chartPath, engineOpts...)
	defer eng.Close()

	if err := eng.Load(ctx); err != nil {
		return nil, err
	}

	step := time.Duration(cfg.Simulation.StepSeconds * float64(time.Second))
	start := time.Unix(0, 0)
	for i := 0; i < opts.frames; i++ {
		report, err := eng.Frame(ctx, start.Add(time.Duration(i)*step))
		if err != nil {
			return nil, err
		}
		for id, stepErr := range report.StepErrors {
			common.Logger().Debug("step skipped", "frame", i, "step", id, "err", stepErr)
		}
	}

	target, err := eng.Resources().Image(opts.image)
	if err != nil {
		return nil, err
	}
	texels, w, h, err := device.ReadImage(target.Handle, 0)
	if err != nil {
		return nil, err
	}
	return toNRGBA(texels, w, h), nil
}

// parameterColor writes the object's color parameter, or white.
func parameterColor(in *gpu.FragmentInput) gpu.FragmentOutput {
	c := common.Color{1, 1, 1, 1}
	if p := in.Uniform("color"); len(p) >= 3 {
		copy(c[:], p)
	}
	return gpu.FragmentOutput{Colors: []common.Color{c}}
}

func toNRGBA(texels []common.Color, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := texels[y*w+x]
			img.SetNRGBA(x, y, color.NRGBA{R: unorm8(c[0]), G: unorm8(c[1]), B: unorm8(c[2]), A: unorm8(c[3])})
		}
	}
	return img
}

func unorm8(v float32) uint8 {
	return uint8(common.Clamp(v, 0, 1)*255 + 0.5)
}
