// Package controller - This file contains the per-camera tracking pipeline
// that turns frames into a zone signal.
package controller

import (
	"fmt"
	"time"

	"github.com/nvr-ai/go-zonetrack/images"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Strategy selects how the marker is resolved from the masks.
type Strategy string

const (
	// StrategyOverlap fuses an independent motion mask and brightness mask
	// by bounding-box intersection (IR marker tracker).
	StrategyOverlap Strategy = "overlap"
	// StrategyShape screens one edge AND motion mask by shape and reports the
	// topmost point of the first elongated region (drumstick tracker).
	StrategyShape Strategy = "shape"
	// StrategyBrightness reports the box center of the first bright region
	// large enough, moving or not (brightness-only marker tracker).
	StrategyBrightness Strategy = "brightness"
)

// CycleStatus is the outcome class of one cycle.
type CycleStatus int

const (
	// StatusSkipped means the frame was empty or malformed; nothing changed.
	StatusSkipped CycleStatus = iota
	// StatusSeeded means the frame only became the prior frame.
	StatusSeeded
	// StatusNoMarker means the cycle completed without a marker.
	StatusNoMarker
	// StatusMarker means the cycle resolved one marker.
	StatusMarker
)

func (s CycleStatus) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusSeeded:
		return "seeded"
	case StatusNoMarker:
		return "no-marker"
	case StatusMarker:
		return "marker"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Completed reports whether the cycle ran to classification and therefore
// produced an output state to write.
func (s CycleStatus) Completed() bool {
	return s == StatusNoMarker || s == StatusMarker
}

// CycleResult is everything one cycle produced.
type CycleResult struct {
	Camera string
	Cycle  int64
	Status CycleStatus
	// Observation is nil unless Status is StatusMarker.
	Observation *Observation
	// State is the output state after the cycle, Previous the one before.
	State    OutputState
	Previous OutputState
	// Changed is true when State differs from Previous.
	Changed bool
	// MotionRegions and BrightRegions are the screened candidates. For the
	// shape strategy MotionRegions holds the shape-screened candidates.
	MotionRegions []images.Region
	BrightRegions []images.Region
	Elapsed       time.Duration
}

// PipelineConfig holds the structural settings of a pipeline. Tunable
// thresholds live in Parameters.
type PipelineConfig struct {
	// Camera names the pipeline in logs and results.
	Camera   string
	Strategy Strategy
	TieBreak TieBreak
	// BlurKernel is the Gaussian kernel applied before edge detection; 0
	// disables it.
	BlurKernel int
	// KernelSize is the side of the morphological structuring element.
	KernelSize       int
	DilateIterations int
	ErodeIterations  int
	// FrameHeight builds the zone bands up front. 0 derives them from the
	// first frame. Either way a frame of another height rebuilds them.
	FrameHeight int
	// Bands is the number of equal bands; ignored when Boundaries is set.
	Bands      int
	Boundaries []int
}

// DefaultIRConfig returns the single-camera IR tracker settings: overlap
// strategy, first-match tie-break, motion mask dilated twice with a 3x3
// kernel, two bands.
func DefaultIRConfig(camera string, height int) PipelineConfig {
	return PipelineConfig{
		Camera:           camera,
		Strategy:         StrategyOverlap,
		TieBreak:         TieBreakFirst,
		KernelSize:       3,
		DilateIterations: 2,
		FrameHeight:      height,
		Bands:            2,
	}
}

// DefaultBrightnessConfig returns the brightness-only tracker settings: no
// motion mask, no morphology, two bands.
func DefaultBrightnessConfig(camera string, height int) PipelineConfig {
	return PipelineConfig{
		Camera:      camera,
		Strategy:    StrategyBrightness,
		TieBreak:    TieBreakFirst,
		KernelSize:  3,
		FrameHeight: height,
		Bands:       2,
	}
}

// DefaultDrumstickConfig returns the drumstick tracker settings: shape
// strategy, 5x5 blur and kernel, dilate twice then erode once.
func DefaultDrumstickConfig(camera string, height int) PipelineConfig {
	return PipelineConfig{
		Camera:           camera,
		Strategy:         StrategyShape,
		TieBreak:         TieBreakFirst,
		BlurKernel:       5,
		KernelSize:       5,
		DilateIterations: 2,
		ErodeIterations:  1,
		FrameHeight:      height,
		Bands:            2,
	}
}

// Validate checks the structural settings.
func (c PipelineConfig) Validate() error {
	switch c.Strategy {
	case StrategyOverlap, StrategyShape, StrategyBrightness:
	default:
		return errors.Errorf("unknown strategy %q", c.Strategy)
	}
	switch c.TieBreak {
	case TieBreakFirst, TieBreakLargest, "":
	default:
		return errors.Errorf("unknown tie-break %q", c.TieBreak)
	}
	if c.BlurKernel < 0 || (c.BlurKernel > 0 && c.BlurKernel%2 == 0) {
		return errors.Errorf("blur kernel must be 0 or odd and positive, got %d", c.BlurKernel)
	}
	if c.ErodeIterations < 0 || c.DilateIterations < 0 {
		return errors.New("morphology iterations must not be negative")
	}
	if c.ErodeIterations > 0 && c.DilateIterations <= c.ErodeIterations {
		return errors.Errorf("dilate iterations (%d) must exceed erode iterations (%d)",
			c.DilateIterations, c.ErodeIterations)
	}
	if c.FrameHeight < 0 {
		return errors.Errorf("frame height must not be negative, got %d", c.FrameHeight)
	}
	return nil
}

// Pipeline is one camera's tracking state: its prior frame (inside the mask
// generator), its output state and a reference to the parameter store.
// A Pipeline is driven by a single goroutine; independent pipelines share
// nothing but, optionally, the Parameters.
type Pipeline struct {
	config PipelineConfig
	params *Parameters
	masks  *images.MaskGenerator
	zones  *ZoneClassifier
	state  OutputState
	cycle  int64
	log    logrus.FieldLogger
	timer  OperationTimer
}

// OperationTimer times named stages of a cycle.
type OperationTimer interface {
	StartOperation(name string) func()
}

type noopTimer struct{}

func (noopTimer) StartOperation(string) func() { return func() {} }

// NewPipeline validates the configuration and allocates the native buffers.
//
// Arguments:
//   - config: Structural settings.
//   - params: The parameter store read once per cycle.
//   - logger: Logger for routine status output; nil uses the standard logger.
//
// Returns:
//   - *Pipeline: Call Close() to release native memory.
//   - error: if the configuration is invalid.
func NewPipeline(config PipelineConfig, params *Parameters, logger logrus.FieldLogger) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid pipeline config")
	}
	if params == nil {
		return nil, errors.New("pipeline requires a parameter store")
	}
	if config.TieBreak == "" {
		config.TieBreak = TieBreakFirst
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	p := &Pipeline{
		config: config,
		params: params,
		state:  InitialState,
		log:    logger.WithField("camera", config.Camera),
		timer:  noopTimer{},
	}
	if config.FrameHeight > 0 {
		zones, err := p.buildZones(config.FrameHeight)
		if err != nil {
			return nil, err
		}
		p.zones = zones
	}
	p.masks = images.NewMaskGenerator(config.KernelSize)
	return p, nil
}

func (p *Pipeline) buildZones(height int) (*ZoneClassifier, error) {
	if len(p.config.Boundaries) > 0 {
		return NewZoneClassifierWithBoundaries(height, p.config.Boundaries)
	}
	bands := p.config.Bands
	if bands == 0 {
		bands = 2
	}
	return NewZoneClassifier(height, bands)
}

// Cycle runs one frame through the pipeline.
//
// Arguments:
//   - frame: The raw frame; it is only read.
//
// Returns:
//   - CycleResult: The outcome. Skipped and seeded cycles leave the output
//     state untouched; completed cycles always set it to a defined value.
//   - error: only for unexpected faults (OpenCV failures, bad zone setup).
func (p *Pipeline) Cycle(frame gocv.Mat) (CycleResult, error) {
	start := time.Now()
	p.cycle++
	res := CycleResult{
		Camera:   p.config.Camera,
		Cycle:    p.cycle,
		State:    p.state,
		Previous: p.state,
	}

	if err := p.masks.Preprocess(frame, p.config.BlurKernel); err != nil {
		if errors.Is(err, images.ErrEmptyFrame) || errors.Is(err, images.ErrMalformedFrame) {
			p.log.WithError(err).Debug("skipping frame")
			res.Status = StatusSkipped
			return res, nil
		}
		return res, errors.Wrap(err, "preprocess")
	}

	// Bands always follow the height of the frames actually delivered.
	if rows := p.masks.Gray.Rows(); p.zones == nil || p.zones.Height() != rows {
		zones, err := p.buildZones(rows)
		if err != nil {
			return res, errors.Wrapf(err, "zone setup for %d rows", rows)
		}
		if p.zones != nil {
			p.log.WithFields(logrus.Fields{
				"from": p.zones.Height(),
				"to":   rows,
			}).Info("frame height changed, zone bands rebuilt")
		}
		p.zones = zones
	}

	// Bootstrap, or the source changed resolution: reseed and skip. The
	// brightness strategy needs no prior frame.
	if p.config.Strategy != StrategyBrightness &&
		(!p.masks.HasPrior() || p.masks.Prior.Rows() != p.masks.Gray.Rows() || p.masks.Prior.Cols() != p.masks.Gray.Cols()) {
		p.masks.Seed()
		res.Status = StatusSeeded
		res.Elapsed = time.Since(start)
		return res, nil
	}

	th := p.params.Thresholds()
	var (
		obs   Observation
		found bool
		err   error
	)
	switch p.config.Strategy {
	case StrategyShape:
		obs, found, err = p.detectShape(th, &res)
	case StrategyBrightness:
		obs, found, err = p.detectBrightness(th, &res)
	default:
		obs, found, err = p.detectOverlap(th, &res)
	}
	if err != nil {
		return res, err
	}
	p.masks.Seed()

	var marker *Observation
	if found {
		marker = &obs
		res.Observation = marker
		res.Status = StatusMarker
	} else {
		res.Status = StatusNoMarker
	}

	p.state = p.zones.State(marker)
	res.State = p.state
	res.Changed = res.State != res.Previous
	res.Elapsed = time.Since(start)
	return res, nil
}

// Instrument routes the "masks" and "fusion" stage timings to t.
func (p *Pipeline) Instrument(t OperationTimer) {
	if t == nil {
		t = noopTimer{}
	}
	p.timer = t
}

// State returns the current output state.
func (p *Pipeline) State() OutputState {
	return p.state
}

// Zones returns the classifier, nil until the first frame when the height
// was not configured.
func (p *Pipeline) Zones() *ZoneClassifier {
	return p.zones
}

// Config returns the structural settings.
func (p *Pipeline) Config() PipelineConfig {
	return p.config
}

// Mask returns the mask the strategy extracts candidates from, for debug
// display. It is overwritten by the next cycle.
func (p *Pipeline) Mask() gocv.Mat {
	switch p.config.Strategy {
	case StrategyShape:
		return p.masks.Combined
	case StrategyBrightness:
		return p.masks.Bright
	default:
		return p.masks.Motion
	}
}

// Reset drops the prior frame and returns the output state to its default.
func (p *Pipeline) Reset() {
	p.masks.Reset()
	p.state = InitialState
}

// Close releases the native buffers.
func (p *Pipeline) Close() {
	p.masks.Close()
}
