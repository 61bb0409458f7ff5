// Package config loads the engine configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is the configuration file looked up when none is given explicitly.
const DefaultPath = "engine.toml"

// Config is the engine configuration. Zero-valued fields in a file keep their defaults.
type Config struct {
	Canvas     Canvas     `toml:"canvas"`
	Simulation Simulation `toml:"simulation"`
	Limits     Limits     `toml:"limits"`
	Watch      Watch      `toml:"watch"`
	Log        Log        `toml:"log"`
	Profiler   Profiler   `toml:"profiler"`
	Render     Render     `toml:"render"`
}

// Canvas is the initial output size before the window reports its framebuffer size.
type Canvas struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// Simulation controls the fixed-tick simulation clock.
type Simulation struct {
	StepSeconds            float64 `toml:"step_seconds"`
	MaxStepsPerFrame       int     `toml:"max_steps_per_frame"`
	MaxStepsPerFramePaused int     `toml:"max_steps_per_frame_paused"`
	PrecalculationSeconds  float64 `toml:"precalculation_seconds"`
}

// Limits bounds resource allocation.
type Limits struct {
	MaxImageDimension int `toml:"max_image_dimension"`
}

// Watch configures the hot-reload watcher.
type Watch struct {
	Enabled bool     `toml:"enabled"`
	Roots   []string `toml:"roots"`
	Include []string `toml:"include"`
	Exclude []string `toml:"exclude"`
}

// Log configures the shared logger.
type Log struct {
	Level string `toml:"level"`
}

// Profiler toggles frame statistics.
type Profiler struct {
	Enabled bool `toml:"enabled"`
}

// Render controls the frame loop.
type Render struct {
	FrameLimitFPS float64 `toml:"frame_limit_fps"`
}

// Default returns the built-in configuration.
//
// Returns:
//   - Config: a fully populated configuration
func Default() Config {
	return Config{
		Canvas: Canvas{Width: 1280, Height: 720},
		Simulation: Simulation{
			StepSeconds:            1.0 / 60.0,
			MaxStepsPerFrame:       3,
			MaxStepsPerFramePaused: 2,
		},
		Limits: Limits{MaxImageDimension: 16384},
		Watch: Watch{
			Enabled: true,
			Include: []string{"**/*.wgsl", "**/*.glsl", "**/*.yaml"},
		},
		Log:    Log{Level: "info"},
		Render: Render{FrameLimitFPS: 0},
	}
}

// Load reads a TOML file over the defaults. A missing file at DefaultPath is not an error.
//
// Parameters:
//   - path: the file to read, or "" for DefaultPath
//
// Returns:
//   - Config: the merged configuration
//   - error: error if the file exists but cannot be read or decoded
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	return Decode(data, cfg)
}

// Decode overlays a TOML document on base.
func Decode(data []byte, base Config) (Config, error) {
	cfg := base
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return fmt.Errorf("canvas size must be positive, got %dx%d", c.Canvas.Width, c.Canvas.Height)
	}
	if c.Simulation.StepSeconds <= 0 {
		return fmt.Errorf("simulation.step_seconds must be positive")
	}
	if c.Simulation.MaxStepsPerFrame < 1 || c.Simulation.MaxStepsPerFramePaused < 1 {
		return fmt.Errorf("simulation step caps must be at least 1")
	}
	if c.Limits.MaxImageDimension <= 0 {
		return fmt.Errorf("limits.max_image_dimension must be positive")
	}
	return nil
}
