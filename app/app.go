// Package app assembles a tracker from its configuration: frame sources,
// pipelines sharing one parameter store, the output line and the optional
// journal, profiler and preview.
package app

import (
	"context"
	"os"
	"strconv"

	"github.com/nvr-ai/go-zonetrack/config"
	"github.com/nvr-ai/go-zonetrack/controller"
	"github.com/nvr-ai/go-zonetrack/journal"
	"github.com/nvr-ai/go-zonetrack/output"
	"github.com/nvr-ai/go-zonetrack/profiler"
	"github.com/nvr-ai/go-zonetrack/source"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Opener hooks let tests replace device access.
type Opener struct {
	Source func(cam config.CameraConfig) (source.Source, error)
	Line   func(out config.OutputConfig) (output.Line, error)
}

// DefaultOpener opens real cameras, files and output devices.
var DefaultOpener = Opener{Source: OpenSource, Line: OpenLine}

// App is an assembled tracker.
type App struct {
	Config     config.Config
	Parameters *controller.Parameters
	Cameras    []controller.Camera

	log      logrus.FieldLogger
	journal  *journal.Journal
	profiler *profiler.CycleProfiler
	preview  *controller.Preview
	ran      bool
}

// Build opens every collaborator the configuration names. On failure
// everything opened so far is closed again.
//
// Arguments:
//   - cfg: A validated configuration.
//   - opener: Device access; use DefaultOpener outside tests.
//   - log: Process logger.
//
// Returns:
//   - *App: Call Run, then Close.
//   - error: the first collaborator that failed to open.
func Build(cfg config.Config, opener Opener, log logrus.FieldLogger) (a *App, err error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	defs, err := cfg.ParameterDefinitions()
	if err != nil {
		return nil, err
	}
	a = &App{
		Config:     cfg,
		Parameters: controller.NewParameters(defs...),
		log:        log,
	}
	defer func() {
		if err != nil {
			a.Close()
			a = nil
		}
	}()

	outputCamera := cfg.OutputCamera()
	for _, camCfg := range cfg.Cameras {
		pipeline, err := controller.NewPipeline(cfg.Pipeline(camCfg), a.Parameters, log)
		if err != nil {
			return a, err
		}
		cam := controller.Camera{Name: camCfg.Name, Pipeline: pipeline}
		a.Cameras = append(a.Cameras, cam)

		src, err := opener.Source(camCfg)
		if err != nil {
			return a, errors.Wrapf(err, "camera %s", camCfg.Name)
		}
		a.Cameras[len(a.Cameras)-1].Source = src
		describeSource(log, camCfg, src)

		if camCfg.Name == outputCamera && cfg.Output.Driver != config.DriverNone && cfg.Output.Driver != "" {
			line, err := opener.Line(cfg.Output)
			if err != nil {
				return a, errors.Wrap(err, "output line")
			}
			a.Cameras[len(a.Cameras)-1].Line = line
		}
	}

	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path, log)
		if err != nil {
			return a, err
		}
		a.journal = j
	}
	if cfg.Profiler.Enabled {
		a.profiler = profiler.New(profiler.Options{ReportInterval: cfg.Profiler.ReportInterval, Logger: log})
	}
	if cfg.Preview.ShowWindow {
		a.preview = controller.NewPreview("Controls", a.Parameters, cfg.Preview.ShowMask, log)
	}
	if cfg.Preview.SnapshotDir != "" {
		if err := os.MkdirAll(cfg.Preview.SnapshotDir, 0o755); err != nil {
			return a, errors.Wrap(err, "create snapshot directory")
		}
	}
	return a, nil
}

// Run drives the cameras until ctx is done, a source is exhausted or the
// preview asks to quit. Sources and lines are closed when it returns.
func (a *App) Run(ctx context.Context) error {
	a.ran = true
	opts := controller.RunOptions{
		Cameras:                a.Cameras,
		MaxConsecutiveFailures: a.Config.Tracking.MaxConsecutiveFailures,
		SnapshotDir:            a.Config.Preview.SnapshotDir,
		Logger:                 a.log,
	}
	if a.journal != nil {
		opts.Journal = a.journal
	}
	if a.profiler != nil {
		opts.Profiler = a.profiler
		a.profiler.Start()
		defer a.profiler.Stop()
	}
	if a.preview != nil {
		opts.Display = a.preview
	}
	return controller.Run(ctx, opts)
}

// Journal returns the transition journal, nil when disabled.
func (a *App) Journal() *journal.Journal {
	return a.journal
}

// Close releases everything Build opened. Sources and lines are only closed
// here when Run never took ownership of them.
func (a *App) Close() {
	for _, cam := range a.Cameras {
		if !a.ran {
			if cam.Line != nil {
				if err := cam.Line.Close(); err != nil {
					a.log.WithError(err).Warn("close output line")
				}
			}
			if cam.Source != nil {
				if err := cam.Source.Close(); err != nil {
					a.log.WithError(err).Warn("close source")
				}
			}
		}
		cam.Pipeline.Close()
	}
	a.Cameras = nil
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.WithError(err).Warn("close journal")
		}
		a.journal = nil
	}
	if a.preview != nil {
		if err := a.preview.Close(); err != nil {
			a.log.WithError(err).Warn("close preview")
		}
		a.preview = nil
	}
}

// OpenSource opens a camera's configured source: a frame directory, a video
// file, or a capture device. Finite sources are wrapped in source.Loop when
// the camera asks for it.
func OpenSource(cam config.CameraConfig) (source.Source, error) {
	var (
		src source.Source
		err error
	)
	switch {
	case cam.Dir != "":
		src, err = source.OpenDirectory(cam.Dir, cam.Width, cam.Height)
	case cam.Video != "":
		src, err = source.OpenFile(cam.Video)
	default:
		return source.OpenDevice(cam.Device, source.CaptureOptions{
			Width:  cam.Width,
			Height: cam.Height,
			FPS:    float64(cam.FPS),
		})
	}
	if err != nil {
		return nil, err
	}
	if cam.Loop {
		src = source.Loop(src)
	}
	return src, nil
}

// describeSource logs what a source reports about itself. A capture whose
// negotiated size differs from the configured one is only a warning: the
// pipeline sizes its zone bands from the frames it receives.
func describeSource(log logrus.FieldLogger, cam config.CameraConfig, src source.Source) {
	if l, ok := src.(*source.Looping); ok {
		src = l.Unwrap()
	}
	entry := log.WithField("camera", cam.Name)
	switch s := src.(type) {
	case interface{ Size() (int, int) }:
		w, h := s.Size()
		entry = entry.WithFields(logrus.Fields{"width": w, "height": h})
		if w > 0 && h > 0 && (w != cam.Width || h != cam.Height) {
			entry.WithFields(logrus.Fields{
				"configured_width":  cam.Width,
				"configured_height": cam.Height,
			}).Warn("capture size differs from configuration")
			return
		}
	case interface{ Len() int }:
		entry = entry.WithField("frames", s.Len())
	}
	entry.WithField("source", sourceName(cam)).Info("camera ready")
}

func sourceName(cam config.CameraConfig) string {
	switch {
	case cam.Dir != "":
		return "dir:" + cam.Dir
	case cam.Video != "":
		return "video:" + cam.Video
	default:
		return "device:" + strconv.Itoa(cam.Device)
	}
}

// OpenLine opens the configured output driver.
func OpenLine(out config.OutputConfig) (output.Line, error) {
	switch out.Driver {
	case config.DriverGPIO:
		return output.OpenGPIO(out.Pin)
	case config.DriverSerial:
		return output.OpenSerial(out.SerialPort, out.Baud, out.SerialMode)
	default:
		return nil, errors.Errorf("no line for output driver %q", out.Driver)
	}
}
