package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BusConfig describes how to reach the lens controller registers.
type BusConfig struct {
	Sim            bool   `yaml:"sim"`              // use the in-memory simulated bus (dev/test)
	I2CBus         string `yaml:"i2c_bus"`          // bus name, e.g. "1" or "/dev/i2c-1" ("" = first available)
	Address        uint16 `yaml:"address"`          // 7-bit chip address, default 0x0C
	PollIntervalMs int    `yaml:"poll_interval_ms"` // busy-flag poll period
	WaitTimeoutMs  int    `yaml:"wait_timeout_ms"`  // give up waiting for idle after this
	ReadRetries    int    `yaml:"read_retries"`     // bounded retries for register reads (writes never retry)
}

// CameraConfig selects the sharpness sample source.
// Type selects a concrete implementation ("sim" or "stream").
type CameraConfig struct {
	Type      string `yaml:"type"`       // "sim" or "stream"
	FramePath string `yaml:"frame_path"` // raw Y8 frame stream, e.g. a V4L2 device or FIFO
	Width     int    `yaml:"width"`      // frame width in pixels
	Height    int    `yaml:"height"`     // frame height in pixels
}

// LensConfig holds motor timing parameters.
type LensConfig struct {
	SettleDelayS int `yaml:"settle_delay_s"` // cooldown after Fixed->Adjust; 0 = default, negative = disabled
}

// AutofocusConfig tunes the focus search.
type AutofocusConfig struct {
	CoarseSteps  int     `yaml:"coarse_steps"`  // coarse sweep divisions
	FineMinStep  int     `yaml:"fine_min_step"` // fine search resolution
	FineMaxIters int     `yaml:"fine_max_iters"`
	Epsilon      float64 `yaml:"epsilon"`       // score tie threshold
	ZoomSamples  int     `yaml:"zoom_samples"`  // table build sample points
	FilterWindow int     `yaml:"filter_window"` // median filter window (1 disables)
}

// ControlConfig holds the per-keypress step sizes.
type ControlConfig struct {
	PanStep   int `yaml:"pan_step"`   // degrees
	TiltStep  int `yaml:"tilt_step"`  // degrees
	ZoomStep  int `yaml:"zoom_step"`  // motor steps
	FocusStep int `yaml:"focus_step"` // motor steps
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int `yaml:"debug_level"` // 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
}

// Config aggregates all application configuration.
type Config struct {
	Bus             BusConfig       `yaml:"bus"`
	Camera          CameraConfig    `yaml:"camera"`
	Lens            LensConfig      `yaml:"lens"`
	Autofocus       AutofocusConfig `yaml:"autofocus"`
	Control         ControlConfig   `yaml:"control"`
	CalibrationPath string          `yaml:"calibration_path"`
	Defaults        DefaultsConfig  `yaml:"defaults"`
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Basic validation
	if cfg.Bus.Address == 0 {
		cfg.Bus.Address = 0x0C // lens controller default
	}
	if cfg.Bus.Address >= 0x80 {
		return nil, fmt.Errorf("bus.address must be a 7-bit address, got 0x%02X", cfg.Bus.Address)
	}
	if cfg.Bus.PollIntervalMs <= 0 {
		cfg.Bus.PollIntervalMs = 5
	}
	if cfg.Bus.WaitTimeoutMs <= 0 {
		cfg.Bus.WaitTimeoutMs = 10000
	}
	if cfg.Bus.ReadRetries <= 0 {
		cfg.Bus.ReadRetries = 3
	}

	switch cfg.Camera.Type {
	case "":
		cfg.Camera.Type = "sim"
	case "sim":
	case "stream":
		if cfg.Camera.FramePath == "" {
			return nil, fmt.Errorf("camera.frame_path is required for camera.type %q", cfg.Camera.Type)
		}
	default:
		return nil, fmt.Errorf("camera.type must be \"sim\" or \"stream\", got %q", cfg.Camera.Type)
	}
	if cfg.Camera.Width <= 0 {
		cfg.Camera.Width = 640
	}
	if cfg.Camera.Height <= 0 {
		cfg.Camera.Height = 480
	}

	if cfg.Lens.SettleDelayS == 0 {
		cfg.Lens.SettleDelayS = 8
	}

	if cfg.Autofocus.Epsilon < 0 {
		return nil, fmt.Errorf("autofocus.epsilon must be >= 0, got %.2f", cfg.Autofocus.Epsilon)
	}

	if cfg.CalibrationPath == "" {
		cfg.CalibrationPath = "configs/calibration.yaml"
	}

	if cfg.Defaults.DebugLevel < 0 || cfg.Defaults.DebugLevel > 4 {
		return nil, fmt.Errorf("debug_level must be between 0 and 4, got %d", cfg.Defaults.DebugLevel)
	}

	return &cfg, nil
}

// PollInterval returns the busy-flag poll period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Bus.PollIntervalMs) * time.Millisecond
}

// WaitTimeout returns the motion wait deadline.
func (c *Config) WaitTimeout() time.Duration {
	return time.Duration(c.Bus.WaitTimeoutMs) * time.Millisecond
}

// SettleDelay returns the Fixed->Adjust cooldown. Negative disables it.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Lens.SettleDelayS) * time.Second
}
