// Command zonetrack tracks a moving IR marker with one camera and drives a
// digital output line HIGH while the marker is in the upper half of the
// frame.
//
// Usage:
//
//	zonetrack [-config zonetrack.yaml] [-strategy overlap|brightness]
//	          [-device 0 | -video clip.mp4 | -dir frames/]
//	          [-output gpio|serial|none] [-pin GPIO17] [-serial /dev/ttyUSB0]
//	          [-show-window] [-debug]
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/nvr-ai/go-zonetrack/app"
	"github.com/nvr-ai/go-zonetrack/config"
	"github.com/sirupsen/logrus"
)

func main() {
	flags := app.Register(flag.CommandLine, 1)
	flag.Parse()

	if err := run(flags); err != nil {
		logrus.WithError(err).Error("zonetrack failed")
		os.Exit(1)
	}
}

func run(flags *app.Flags) error {
	cfg, err := flags.Load(config.DefaultIR())
	if err != nil {
		return err
	}
	log := app.InitLogger(cfg.Debug)
	logrus.SetFormatter(log.Formatter)

	tracker, err := app.Build(cfg, app.DefaultOpener, log)
	if err != nil {
		return err
	}
	defer tracker.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"output": cfg.Output.Driver,
		"pin":    cfg.Output.Pin,
	}).Info("starting IR marker tracking, press q in the preview or Ctrl+C to quit")
	return tracker.Run(ctx)
}
