// Command dualcam tracks a drumstick tip independently in two cameras. Each
// camera reports its own 2D tip position and zone; the two are not fused.
// Both pipelines read one shared parameter store, so a trackbar change
// applies to both cameras on their next cycle.
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
	flags := app.Register(flag.CommandLine, 2)
	flag.Parse()

	if err := run(flags); err != nil {
		logrus.WithError(err).Error("dualcam failed")
		os.Exit(1)
	}
}

func run(flags *app.Flags) error {
	cfg, err := flags.Load(config.DefaultDrumstick())
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

	names := make([]string, 0, len(cfg.Cameras))
	for _, cam := range cfg.Cameras {
		names = append(names, cam.Name)
	}
	log.WithField("cameras", names).Info("starting drumstick tracking")
	return tracker.Run(ctx)
}
