package app

import (
	"flag"
	"fmt"

	"github.com/nvr-ai/go-zonetrack/config"
	"github.com/nvr-ai/go-zonetrack/controller"
)

// CameraFlags selects the source of one camera from the command line.
type CameraFlags struct {
	Device int
	Video  string
	Dir    string
}

// Flags are the command-line overrides shared by the tracker binaries. Only
// flags given on the command line override the configuration file.
type Flags struct {
	ConfigPath string
	Strategy   string
	Cameras    []CameraFlags
	Output     string
	Pin        string
	Serial     string
	ShowWindow bool
	Debug      bool

	fs *flag.FlagSet
}

// Register binds the flags to fs. cameras is the number of cameras with
// source flags: the first uses -device/-video/-dir, the next ones add their
// 1-based index (-device2, -video2, -dir2).
func Register(fs *flag.FlagSet, cameras int) *Flags {
	f := &Flags{fs: fs, Cameras: make([]CameraFlags, cameras)}
	fs.StringVar(&f.ConfigPath, "config", "", "Path to a YAML configuration file")
	fs.StringVar(&f.Strategy, "strategy", "", "Marker strategy: overlap, shape or brightness")
	for i := range f.Cameras {
		suffix := ""
		if i > 0 {
			suffix = fmt.Sprint(i + 1)
		}
		fs.IntVar(&f.Cameras[i].Device, "device"+suffix, i, fmt.Sprintf("Video capture device of camera %d", i+1))
		fs.StringVar(&f.Cameras[i].Video, "video"+suffix, "", fmt.Sprintf("Video file for camera %d instead of a device", i+1))
		fs.StringVar(&f.Cameras[i].Dir, "dir"+suffix, "", fmt.Sprintf("Directory of frame images for camera %d", i+1))
	}
	fs.StringVar(&f.Output, "output", "", "Output driver: gpio, serial or none")
	fs.StringVar(&f.Pin, "pin", "", "GPIO pin name (e.g. GPIO17)")
	fs.StringVar(&f.Serial, "serial", "", "Serial port for the serial output driver")
	fs.BoolVar(&f.ShowWindow, "show-window", false, "Show preview windows with parameter trackbars")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	return f
}

// Apply copies the flags that were set on the command line onto cfg.
func (f *Flags) Apply(cfg *config.Config) {
	set := make(map[string]bool)
	f.fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	for i, cf := range f.Cameras {
		if i >= len(cfg.Cameras) {
			break
		}
		suffix := ""
		if i > 0 {
			suffix = fmt.Sprint(i + 1)
		}
		cam := &cfg.Cameras[i]
		if set["device"+suffix] {
			cam.Device = cf.Device
		}
		if set["video"+suffix] {
			cam.Video = cf.Video
		}
		if set["dir"+suffix] {
			cam.Dir = cf.Dir
		}
	}

	if set["strategy"] {
		cfg.Tracking.Strategy = controller.Strategy(f.Strategy)
	}
	if set["output"] {
		cfg.Output.Driver = f.Output
	}
	if set["pin"] {
		cfg.Output.Pin = f.Pin
	}
	if set["serial"] {
		cfg.Output.SerialPort = f.Serial
		if !set["output"] {
			cfg.Output.Driver = config.DriverSerial
		}
	}
	if set["show-window"] {
		cfg.Preview.ShowWindow = f.ShowWindow
	}
	if set["debug"] {
		cfg.Debug = f.Debug
	}
}

// Load reads the configuration file named by -config over base, applies the
// flag overrides and validates the result.
func (f *Flags) Load(base config.Config) (config.Config, error) {
	cfg, err := config.Load(f.ConfigPath, base)
	if err != nil {
		return config.Config{}, err
	}
	f.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
