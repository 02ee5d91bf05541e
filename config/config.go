// Package config loads the tracker configuration: a YAML file layered over
// built-in defaults, validated before any device is opened.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/nvr-ai/go-zonetrack/controller"
	"github.com/nvr-ai/go-zonetrack/images"
	"github.com/nvr-ai/go-zonetrack/output"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Output drivers.
const (
	DriverGPIO   = "gpio"
	DriverSerial = "serial"
	DriverNone   = "none"
)

// Config is the complete tracker configuration.
type Config struct {
	Cameras    []CameraConfig     `yaml:"cameras"`
	Tracking   TrackingConfig     `yaml:"tracking"`
	Parameters map[string]float64 `yaml:"parameters"`
	Zones      ZonesConfig        `yaml:"zones"`
	Output     OutputConfig       `yaml:"output"`
	Preview    PreviewConfig      `yaml:"preview"`
	Journal    JournalConfig      `yaml:"journal"`
	Profiler   ProfilerConfig     `yaml:"profiler"`
	Debug      bool               `yaml:"debug"`
}

// CameraConfig selects one frame source. Dir takes precedence over Video,
// Video over Device. Resolution ("VGA", "720p", "640x480") sets Width and
// Height when they are not given.
type CameraConfig struct {
	Name       string `yaml:"name"`
	Device     int    `yaml:"device"`
	Video      string `yaml:"video"`
	Dir        string `yaml:"dir"`
	Resolution string `yaml:"resolution"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	FPS        int    `yaml:"fps"`
	// Loop restarts a video file or frame directory when it ends.
	Loop       bool   `yaml:"loop"`
}

// TrackingConfig holds the structural pipeline settings.
type TrackingConfig struct {
	Strategy               controller.Strategy `yaml:"strategy"`
	TieBreak               controller.TieBreak `yaml:"tie_break"`
	BlurKernel             int                 `yaml:"blur_kernel"`
	KernelSize             int                 `yaml:"kernel_size"`
	DilateIterations       int                 `yaml:"dilate_iterations"`
	ErodeIterations        int                 `yaml:"erode_iterations"`
	MaxConsecutiveFailures int                 `yaml:"max_consecutive_failures"`
}

// ZonesConfig splits the frame into bands. Boundaries, when set, override
// Bands.
type ZonesConfig struct {
	Bands      int   `yaml:"bands"`
	Boundaries []int `yaml:"boundaries"`
}

// OutputConfig selects the output line driver. The line follows one camera,
// the first by default.
type OutputConfig struct {
	Driver     string            `yaml:"driver"`
	Camera     string            `yaml:"camera"`
	Pin        string            `yaml:"pin"`
	SerialPort string            `yaml:"serial_port"`
	Baud       int               `yaml:"baud"`
	SerialMode output.SerialMode `yaml:"serial_mode"`
}

// PreviewConfig controls the optional preview windows and snapshots.
type PreviewConfig struct {
	ShowWindow  bool   `yaml:"show_window"`
	ShowMask    bool   `yaml:"show_mask"`
	SnapshotDir string `yaml:"snapshot_dir"`
}

// JournalConfig locates the transition journal; an empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// ProfilerConfig enables periodic timing reports.
type ProfilerConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ReportInterval time.Duration `yaml:"report_interval"`
}

// DefaultIR returns the single-camera IR tracker configuration: camera 0 at
// 640x480, overlap strategy, GPIO17 output.
func DefaultIR() Config {
	return Config{
		Cameras: []CameraConfig{{Name: "ir", Device: 0, Width: DefaultWidth, Height: DefaultHeight, FPS: 30}},
		Tracking: TrackingConfig{
			Strategy:         controller.StrategyOverlap,
			TieBreak:         controller.TieBreakFirst,
			KernelSize:       3,
			DilateIterations: 2,
		},
		Parameters: map[string]float64{},
		Zones:      ZonesConfig{Bands: 2},
		Output: OutputConfig{
			Driver:     DriverGPIO,
			Pin:        output.DefaultPin,
			Baud:       9600,
			SerialMode: output.SerialModeByte,
		},
		Profiler: ProfilerConfig{ReportInterval: 10 * time.Second},
	}
}

// DefaultDrumstick returns the dual-camera drumstick configuration: cameras
// 0 and 1, shape strategy, no output line.
func DefaultDrumstick() Config {
	return Config{
		Cameras: []CameraConfig{
			{Name: "left", Device: 0, Width: DefaultWidth, Height: DefaultHeight, FPS: 30},
			{Name: "right", Device: 1, Width: DefaultWidth, Height: DefaultHeight, FPS: 30},
		},
		Tracking: TrackingConfig{
			Strategy:         controller.StrategyShape,
			TieBreak:         controller.TieBreakFirst,
			BlurKernel:       5,
			KernelSize:       5,
			DilateIterations: 2,
			ErodeIterations:  1,
		},
		Parameters: map[string]float64{},
		Zones:      ZonesConfig{Bands: 2},
		Output: OutputConfig{
			Driver:     DriverNone,
			Pin:        output.DefaultPin,
			Baud:       9600,
			SerialMode: output.SerialModeByte,
		},
		Profiler: ProfilerConfig{ReportInterval: 10 * time.Second},
	}
}

// Load reads a YAML file over base and validates the result. An empty path
// validates and returns base.
//
// Arguments:
//   - path: YAML file path, may be empty.
//   - base: Defaults the file is layered over.
//
// Returns:
//   - Config: The merged configuration.
//   - error: read, parse or validation failure.
func Load(path string, base Config) (Config, error) {
	cfg := base
	cfg.Parameters = make(map[string]float64, len(base.Parameters))
	for k, v := range base.Parameters {
		cfg.Parameters[k] = v
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
	}
	if cfg.Parameters == nil {
		cfg.Parameters = map[string]float64{}
	}
	if err := cfg.fillCameraDefaults(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default frame size for cameras that do not set one.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

func (c *Config) fillCameraDefaults() error {
	for i := range c.Cameras {
		cam := &c.Cameras[i]
		if cam.Name == "" {
			cam.Name = fmt.Sprintf("cam%d", i)
		}
		if cam.Resolution != "" {
			res, err := images.ParseResolution(cam.Resolution)
			if err != nil {
				return errors.Wrapf(ErrInvalidConfig, "camera %s: %v", cam.Name, err)
			}
			if cam.Width == 0 && cam.Height == 0 {
				cam.Width, cam.Height = res.Width, res.Height
			}
		}
		if cam.Width == 0 {
			cam.Width = DefaultWidth
		}
		if cam.Height == 0 {
			cam.Height = DefaultHeight
		}
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidConfig, format, args...)
}

// Validate checks the configuration before anything is opened.
func (c Config) Validate() error {
	if len(c.Cameras) == 0 {
		return invalid("at least one camera is required")
	}
	names := make(map[string]bool, len(c.Cameras))
	for i, cam := range c.Cameras {
		if cam.Name == "" {
			return invalid("camera %d has no name", i)
		}
		if names[cam.Name] {
			return invalid("duplicate camera name %q", cam.Name)
		}
		names[cam.Name] = true
		if cam.Width <= 0 || cam.Height <= 0 {
			return invalid("camera %s: width and height must be positive, got %dx%d", cam.Name, cam.Width, cam.Height)
		}
		if cam.FPS < 0 {
			return invalid("camera %s: fps must not be negative", cam.Name)
		}
		if cam.Device < 0 {
			return invalid("camera %s: device must not be negative", cam.Name)
		}
		if err := c.Zones.validate(cam.Height); err != nil {
			return errors.Wrapf(err, "camera %s", cam.Name)
		}
	}

	if err := c.pipelineConfig("check", c.Cameras[0].Height).Validate(); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if c.Tracking.MaxConsecutiveFailures < 0 {
		return invalid("max_consecutive_failures must not be negative")
	}

	if _, err := c.ParameterDefinitions(); err != nil {
		return err
	}

	if c.Output.Camera != "" && !names[c.Output.Camera] {
		return invalid("output camera %q is not configured", c.Output.Camera)
	}

	switch c.Output.Driver {
	case DriverGPIO:
		if c.Output.Pin == "" {
			return invalid("gpio output needs a pin")
		}
	case DriverSerial:
		if c.Output.SerialPort == "" {
			return invalid("serial output needs a port")
		}
		if c.Output.Baud <= 0 {
			return invalid("baud rate must be positive, got %d", c.Output.Baud)
		}
		switch c.Output.SerialMode {
		case output.SerialModeByte, output.SerialModeDTR, "":
		default:
			return invalid("unknown serial mode %q", c.Output.SerialMode)
		}
	case DriverNone, "":
	default:
		return invalid("unknown output driver %q", c.Output.Driver)
	}

	if c.Profiler.Enabled && c.Profiler.ReportInterval <= 0 {
		return invalid("profiler report interval must be positive")
	}
	return nil
}

func (z ZonesConfig) validate(height int) error {
	if len(z.Boundaries) > 0 {
		prev := 0
		for _, b := range z.Boundaries {
			if b <= prev || b >= height {
				return invalid("zone boundaries %v must increase strictly inside (0, %d)", z.Boundaries, height)
			}
			prev = b
		}
		return nil
	}
	if z.Bands != 0 && (z.Bands < 2 || z.Bands > height) {
		return invalid("zone bands must be between 2 and the frame height, got %d", z.Bands)
	}
	return nil
}

// OutputCamera returns the name of the camera that drives the output line.
func (c Config) OutputCamera() string {
	if c.Output.Camera != "" || len(c.Cameras) == 0 {
		return c.Output.Camera
	}
	return c.Cameras[0].Name
}

// Pipeline builds the structural settings of the named camera's pipeline.
func (c Config) Pipeline(cam CameraConfig) controller.PipelineConfig {
	return c.pipelineConfig(cam.Name, cam.Height)
}

func (c Config) pipelineConfig(name string, height int) controller.PipelineConfig {
	return controller.PipelineConfig{
		Camera:           name,
		Strategy:         c.Tracking.Strategy,
		TieBreak:         c.Tracking.TieBreak,
		BlurKernel:       c.Tracking.BlurKernel,
		KernelSize:       c.Tracking.KernelSize,
		DilateIterations: c.Tracking.DilateIterations,
		ErodeIterations:  c.Tracking.ErodeIterations,
		FrameHeight:      height,
		Bands:            c.Zones.Bands,
		Boundaries:       c.Zones.Boundaries,
	}
}

// ParameterDefinitions returns the strategy's default parameters with the
// configured overrides applied.
func (c Config) ParameterDefinitions() ([]controller.Parameter, error) {
	defs := controller.DefaultIRParameters()
	switch c.Tracking.Strategy {
	case controller.StrategyShape:
		defs = controller.DefaultDrumstickParameters()
	case controller.StrategyBrightness:
		defs = controller.DefaultBrightnessParameters()
	}

	index := make(map[string]int, len(defs))
	for i, d := range defs {
		index[d.Name] = i
	}
	for name, value := range c.Parameters {
		i, ok := index[name]
		if !ok {
			return nil, invalid("unknown parameter %q for strategy %s", name, c.Tracking.Strategy)
		}
		if value < defs[i].Min || value > defs[i].Max {
			return nil, invalid("parameter %s=%v outside [%v, %v]", name, value, defs[i].Min, defs[i].Max)
		}
		defs[i].Value = value
	}

	bands := [][2]string{
		{controller.ParamMotionAreaMin, controller.ParamMotionAreaMax},
		{controller.ParamBrightAreaMin, controller.ParamBrightAreaMax},
		{controller.ParamCannyLow, controller.ParamCannyHigh},
	}
	for _, b := range bands {
		lo, hasLo := index[b[0]]
		hi, hasHi := index[b[1]]
		if hasLo && hasHi && defs[lo].Value > defs[hi].Value {
			return nil, invalid("%s (%v) exceeds %s (%v)", b[0], defs[lo].Value, b[1], defs[hi].Value)
		}
	}
	return defs, nil
}
