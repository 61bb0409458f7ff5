package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/Carmen-Shannon/oxy-chart/common"
	"github.com/Carmen-Shannon/oxy-chart/engine"
	"github.com/Carmen-Shannon/oxy-chart/engine/camera"
	"github.com/Carmen-Shannon/oxy-chart/engine/config"
	"github.com/Carmen-Shannon/oxy-chart/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-chart/engine/watcher"
	"github.com/Carmen-Shannon/oxy-chart/engine/window"
	"github.com/spf13/cobra"
)

func newRunCmd(root *rootOptions) *cobra.Command {
	var vsync bool
	cmd := &cobra.Command{
		Use:   "run <chart.yaml>",
		Short: "Run a chart in a window, reloading it and its shaders on change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChart(cmd, root.cfg, args[0], vsync)
		},
	}
	cmd.Flags().BoolVar(&vsync, "vsync", true, "wait for vertical sync when presenting")
	return cmd
}

func runChart(cmd *cobra.Command, cfg config.Config, chartPath string, vsync bool) error {
	w, err := window.NewWindow(
		window.WithTitle("oxy-chart - "+filepath.Base(chartPath)),
		window.WithSize(cfg.Canvas.Width, cfg.Canvas.Height),
	)
	if err != nil {
		return err
	}
	defer w.Close()

	size := w.Size()
	device, err := gpu.NewWGPUDevice(w.SurfaceDescriptor(), size.Width, size.Height, gpu.WithVSync(vsync))
	if err != nil {
		return err
	}

	opts := []engine.EngineBuilderOption{engine.WithConfig(cfg), engine.WithWindow(w)}
	if cfg.Watch.Enabled {
		wt, err := newWatcher(cfg.Watch, chartPath)
		if err != nil {
			return err
		}
		opts = append(opts, engine.WithWatcher(wt))
	}

	eng := engine.NewEngine(device, chartPath, opts...)
	defer eng.Close()

	orbit := camera.NewOrbitController()
	eng.Camera().SetController(orbit)
	window.AttachOrbit(w, orbit)
	w.SetKeyCallback(keyBindings(eng))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Load(ctx); err != nil {
		return err
	}
	return eng.Run(ctx)
}

// newWatcher watches the configured roots, or the chart's directory when none are configured.
func newWatcher(cfg config.Watch, chartPath string) (watcher.Watcher, error) {
	roots := cfg.Roots
	if len(roots) == 0 {
		roots = []string{filepath.Dir(chartPath)}
	}
	return watcher.NewWatcher(roots,
		watcher.WithInclude(cfg.Include...),
		watcher.WithExclude(cfg.Exclude...),
	)
}

// keyBindings maps key presses onto engine controls: space pauses, R resets the simulation and
// P logs the latest profiler report.
func keyBindings(eng engine.Engine) func(key uint32, pressed bool) {
	return func(key uint32, pressed bool) {
		if !pressed {
			return
		}
		switch key {
		case common.KeySpace:
			eng.SetPaused(!eng.Paused())
			common.Logger().Info("simulation", "paused", eng.Paused())
		case common.KeyR:
			eng.ResetSimulation()
			common.Logger().Info("simulation reset")
		case common.KeyP:
			p := eng.Profiler()
			if p == nil {
				common.Logger().Info("profiler disabled")
				return
			}
			r := p.Last()
			common.Logger().Info("profile", "fps", r.FPS, "max_frame", r.MaxFrame, "heap_mb", r.HeapMB, "steps", len(r.Steps))
			for _, s := range r.Steps {
				common.Logger().Info("step", "id", s.ID, "calls", s.Calls, "mean", s.Mean(), "max", s.Max)
			}
		}
	}
}
