// Package controller - The cooperative tracking loop driving one or more
// camera pipelines, their output lines and the optional collaborators.
package controller

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvr-ai/go-zonetrack/images"
	"github.com/nvr-ai/go-zonetrack/output"
	"github.com/nvr-ai/go-zonetrack/source"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Camera binds a frame source to its pipeline and output line.
type Camera struct {
	Name     string
	Source   source.Source
	Pipeline *Pipeline
	// Line is optional; a camera without one only logs and journals.
	Line output.Line
}

// Display shows annotated frames and reports quit requests.
type Display interface {
	// Show presents one camera's annotated frame and debug mask.
	Show(camera string, annotated, mask gocv.Mat)
	// Poll is called once per loop iteration. It returns false when the user
	// asked to quit.
	Poll() bool
}

// TransitionRecorder persists completed cycles.
type TransitionRecorder interface {
	Record(res CycleResult) error
}

// Profiler receives stage timings and per-cycle metrics.
type Profiler interface {
	OperationTimer
	RecordMetric(name string, value float64)
}

// RunOptions configures Run.
type RunOptions struct {
	Cameras []Camera
	Display Display
	Journal TransitionRecorder
	// Profiler is optional.
	Profiler Profiler
	// MaxConsecutiveFailures bounds consecutive transient failures per
	// camera; 0 means unlimited.
	MaxConsecutiveFailures int
	// SnapshotDir, when set, receives an annotated JPEG on every transition.
	SnapshotDir string
	Logger      logrus.FieldLogger
	// OnResult is called after every cycle, completed or not.
	OnResult func(CycleResult)
}

// ErrTooManyFailures is returned when a camera exceeds
// MaxConsecutiveFailures.
var ErrTooManyFailures = errors.New("too many consecutive frame failures")

const (
	stageRead  = "read"
	stageCycle = "cycle"
)

// Run drives every camera once per iteration until the context is done, a
// finite source is exhausted, the display asks to quit or a fatal error
// occurs. The first three end the loop with a nil error.
//
// Whatever ends the loop, including a panic, every line is driven Low and
// closed and every source is closed before Run returns. Pipelines stay
// owned by the caller.
//
// Arguments:
//   - ctx: Cancellation is checked at every cycle boundary.
//   - opts: Cameras and collaborators.
//
// Returns:
//   - error: nil on a clean stop, the fatal error otherwise.
func Run(ctx context.Context, opts RunOptions) (err error) {
	if len(opts.Cameras) == 0 {
		return errors.New("no cameras to run")
	}
	for i, cam := range opts.Cameras {
		if cam.Source == nil || cam.Pipeline == nil {
			return errors.Errorf("camera %d (%s) needs a source and a pipeline", i, cam.Name)
		}
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("tracking loop panic: %v", r)
		}
		if cerr := shutdown(opts.Cameras, log); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if opts.Profiler != nil {
		for _, cam := range opts.Cameras {
			cam.Pipeline.Instrument(opts.Profiler)
		}
	}

	r := &runner{
		opts:      opts,
		log:       log,
		frames:    make([]gocv.Mat, len(opts.Cameras)),
		failures:  make([]int, len(opts.Cameras)),
		annotated: gocv.NewMat(),
	}
	for i := range r.frames {
		r.frames[i] = gocv.NewMat()
	}
	defer r.close()

	log.WithField("cameras", len(opts.Cameras)).Info("tracking started")
	for {
		select {
		case <-ctx.Done():
			log.Info("tracking stopped")
			return nil
		default:
		}

		for i := range opts.Cameras {
			stop, err := r.step(i)
			if err != nil {
				return err
			}
			if stop {
				return nil
			}
		}

		if opts.Display != nil && !opts.Display.Poll() {
			log.Info("quit requested")
			return nil
		}
	}
}

type runner struct {
	opts      RunOptions
	log       logrus.FieldLogger
	frames    []gocv.Mat
	failures  []int
	annotated gocv.Mat
}

func (r *runner) close() {
	for i := range r.frames {
		r.frames[i].Close()
	}
	r.annotated.Close()
}

func (r *runner) timer() OperationTimer {
	if r.opts.Profiler == nil {
		return noopTimer{}
	}
	return r.opts.Profiler
}

// step runs one cycle of camera i. stop is true when its source is
// exhausted.
func (r *runner) step(i int) (stop bool, err error) {
	cam := r.opts.Cameras[i]
	log := r.log.WithField("camera", cam.Name)

	done := r.timer().StartOperation(stageRead)
	rerr := cam.Source.Read(&r.frames[i])
	done()
	if rerr != nil {
		if errors.Is(rerr, source.ErrSourceExhausted) {
			log.Info("source exhausted")
			return true, nil
		}
		log.WithError(rerr).Debug("frame read failed")
		return false, r.fail(i, rerr)
	}

	done = r.timer().StartOperation(stageCycle)
	res, cerr := cam.Pipeline.Cycle(r.frames[i])
	done()
	if cerr != nil {
		return false, errors.Wrapf(cerr, "camera %s cycle %d", cam.Name, res.Cycle)
	}
	if r.opts.OnResult != nil {
		r.opts.OnResult(res)
	}

	switch {
	case res.Status == StatusSkipped:
		return false, r.fail(i, errors.New("unusable frame"))
	case !res.Status.Completed():
		r.failures[i] = 0
		return false, nil
	}
	r.failures[i] = 0

	if cam.Line != nil {
		if err := output.Write(cam.Line, int(res.State.Zone), res.State.Level); err != nil {
			return false, errors.Wrapf(err, "camera %s output", cam.Name)
		}
	}
	r.report(log, cam, res)

	if r.opts.Profiler != nil {
		detected := 0.0
		if res.Status == StatusMarker {
			detected = 1
		}
		r.opts.Profiler.RecordMetric("detected."+cam.Name, detected)
	}
	if r.opts.Journal != nil {
		if err := r.opts.Journal.Record(res); err != nil {
			log.WithError(err).Warn("journal write failed")
		}
	}
	r.present(log, cam, i, res)
	return false, nil
}

func (r *runner) fail(i int, cause error) error {
	r.failures[i]++
	limit := r.opts.MaxConsecutiveFailures
	if limit > 0 && r.failures[i] >= limit {
		return errors.Wrapf(ErrTooManyFailures, "camera %s: %d in a row, last: %v",
			r.opts.Cameras[i].Name, r.failures[i], cause)
	}
	return nil
}

func (r *runner) report(log logrus.FieldLogger, cam Camera, res CycleResult) {
	fields := logrus.Fields{
		"cycle": res.Cycle,
		"zone":  cam.Pipeline.Zones().Label(res.State.Zone),
		"level": res.State.Level.String(),
	}
	if res.Observation != nil {
		fields["x"] = res.Observation.Point.X
		fields["y"] = res.Observation.Point.Y
	}
	entry := log.WithFields(fields)
	if res.Changed {
		entry.Info("zone changed")
		return
	}
	entry.Debug("cycle complete")
}

// present annotates the frame when a display or snapshot directory wants it.
func (r *runner) present(log logrus.FieldLogger, cam Camera, i int, res CycleResult) {
	wantSnapshot := r.opts.SnapshotDir != "" && res.Changed
	if r.opts.Display == nil && !wantSnapshot {
		return
	}
	if err := Annotate(r.frames[i], res, cam.Pipeline.Zones(), &r.annotated); err != nil {
		log.WithError(err).Warn("annotation failed")
		return
	}
	if r.opts.Display != nil {
		r.opts.Display.Show(cam.Name, r.annotated, cam.Pipeline.Mask())
	}
	if wantSnapshot {
		if err := saveSnapshot(r.opts.SnapshotDir, cam.Name, res.Cycle, r.annotated); err != nil {
			log.WithError(err).Warn("snapshot failed")
		}
	}
}

func saveSnapshot(dir, camera string, cycle int64, frame gocv.Mat) error {
	img, err := images.Encode(frame, images.FormatJPEG)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%s-%06d%s", camera, cycle, img.Format.Extension())
	return errors.Wrap(os.WriteFile(filepath.Join(dir, name), img.Data, 0o644), "write snapshot")
}

// shutdown drives every line Low, closes lines and sources and resets the
// pipelines' output state. It visits every camera even when one fails.
func shutdown(cams []Camera, log logrus.FieldLogger) error {
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	for _, cam := range cams {
		if cam.Line != nil {
			if err := output.Write(cam.Line, int(ZoneNone), output.Low); err != nil && !errors.Is(err, output.ErrClosed) {
				log.WithError(err).WithField("camera", cam.Name).Error("failed to drive line low")
				keep(err)
			}
			if err := cam.Line.Close(); err != nil && !errors.Is(err, output.ErrClosed) {
				keep(errors.Wrapf(err, "close line of %s", cam.Name))
			}
		}
		if cam.Source != nil {
			if err := cam.Source.Close(); err != nil {
				keep(errors.Wrapf(err, "close source of %s", cam.Name))
			}
		}
		if cam.Pipeline != nil {
			cam.Pipeline.Reset()
		}
	}
	log.Info("outputs driven low")
	return first
}
