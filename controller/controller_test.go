// Package controller - Pipeline scenarios on synthetic frames.
package controller

import (
	"image"
	"testing"

	"github.com/nvr-ai/go-zonetrack/images"
	"github.com/nvr-ai/go-zonetrack/output"
	"github.com/nvr-ai/go-zonetrack/test"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

const (
	frameWidth  = 160
	frameHeight = 120
)

// markerTop and markerBottom are 10x15 bright patches whose intersection
// midpoints are (15, 17) and (15, 87).
var (
	markerTop    = test.Patch{Rect: image.Rect(10, 10, 20, 25), Value: 255}
	markerBottom = test.Patch{Rect: image.Rect(10, 80, 20, 95), Value: 255}
)

func quietLogger() logrus.FieldLogger {
	logger, _ := logtest.NewNullLogger()
	return logger
}

func newIRPipeline(t *testing.T, height int) *Pipeline {
	t.Helper()
	p, err := NewPipeline(DefaultIRConfig("ir", height), NewParameters(DefaultIRParameters()...), quietLogger())
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

// cycle runs one frame and closes it.
func cycle(t *testing.T, p *Pipeline, frame gocv.Mat) CycleResult {
	t.Helper()
	defer frame.Close()
	res, err := p.Cycle(frame)
	require.NoError(t, err)
	return res
}

func TestPipelineBootstrapSeeds(t *testing.T) {
	gen := test.NewFrameGenerator(frameWidth, frameHeight, 50)
	p := newIRPipeline(t, frameHeight)

	res := cycle(t, p, gen.Frame(markerTop))
	assert.Equal(t, StatusSeeded, res.Status)
	assert.Nil(t, res.Observation)
	assert.False(t, res.Changed)
	assert.Equal(t, InitialState, res.State)
	assert.Equal(t, InitialState, p.State())
}

func TestPipelineMarkerInUpperHalf(t *testing.T) {
	gen := test.NewFrameGenerator(frameWidth, frameHeight, 50)
	p := newIRPipeline(t, frameHeight)

	cycle(t, p, gen.Static())
	res := cycle(t, p, gen.Frame(markerTop))

	require.Equal(t, StatusMarker, res.Status)
	require.NotNil(t, res.Observation)
	assert.Equal(t, images.Rect{X1: 10, Y1: 10, X2: 20, Y2: 25}, res.Observation.Region)
	assert.Equal(t, image.Pt(15, 17), res.Observation.Point)
	assert.Equal(t, OutputState{Zone: ZoneUpper, Level: output.High}, res.State)
	assert.True(t, res.Changed)
	assert.Len(t, res.BrightRegions, 1)
	assert.Len(t, res.MotionRegions, 1)
}

func TestPipelineMarkerMovesToLowerHalf(t *testing.T) {
	gen := test.NewFrameGenerator(frameWidth, frameHeight, 50)
	p := newIRPipeline(t, frameHeight)

	cycle(t, p, gen.Static())
	up := cycle(t, p, gen.Frame(markerTop))
	down := cycle(t, p, gen.Frame(markerBottom))

	assert.Equal(t, output.High, up.State.Level)
	require.Equal(t, StatusMarker, down.Status)
	assert.Equal(t, image.Pt(15, 87), down.Observation.Point)
	assert.Equal(t, OutputState{Zone: ZoneLower, Level: output.Low}, down.State)
	assert.Equal(t, up.State, down.Previous)
	assert.True(t, down.Changed)
}

func TestPipelineColorFrames(t *testing.T) {
	gen := test.NewFrameGenerator(frameWidth, frameHeight, 50)
	p := newIRPipeline(t, frameHeight)

	cycle(t, p, gen.ColorFrame())
	res := cycle(t, p, gen.ColorFrame(markerTop))

	require.Equal(t, StatusMarker, res.Status)
	assert.Equal(t, image.Pt(15, 17), res.Observation.Point)
}

func TestPipelineStaticBrightObjectIsNotAMarker(t *testing.T) {
	gen := test.NewFrameGenerator(frameWidth, frameHeight, 50)
	p := newIRPipeline(t, frameHeight)

	cycle(t, p, gen.Frame(markerTop))
	res := cycle(t, p, gen.Frame(markerTop))

	assert.Equal(t, StatusNoMarker, res.Status)
	assert.Nil(t, res.Observation)
	assert.Equal(t, InitialState, res.State)
	assert.Empty(t, res.MotionRegions)
	assert.Len(t, res.BrightRegions, 1)
}

func TestPipelineMotionWithoutBrightnessIsNotAMarker(t *testing.T) {
	gen := test.NewFrameGenerator(frameWidth, frameHeight, 50)
	p := newIRPipeline(t, frameHeight)

	cycle(t, p, gen.Static())
	res := cycle(t, p, gen.Frame(test.Square(40, 40, 20, 150)))

	assert.Equal(t, StatusNoMarker, res.Status)
	assert.Len(t, res.MotionRegions, 1)
	assert.Empty(t, res.BrightRegions)
}

func TestPipelineMarkerLostReturnsLow(t *testing.T) {
	gen := test.NewFrameGenerator(frameWidth, frameHeight, 50)
	p := newIRPipeline(t, frameHeight)

	cycle(t, p, gen.Static())
	cycle(t, p, gen.Frame(markerTop))
	cycle(t, p, gen.Frame(markerTop))

	assert.Equal(t, InitialState, p.State(), "no marker never holds the previous zone")
}

func TestPipelineIdenticalFramesProduceEmptyMotionMask(t *testing.T) {
	gen := test.NewFrameGenerator(frameWidth, frameHeight, 50)
	p := newIRPipeline(t, frameHeight)

	cycle(t, p, gen.Frame(markerTop))
	first := cycle(t, p, gen.Frame(markerTop))
	assert.Equal(t, 0, images.CountSet(p.Mask()))
	sum := images.ComputeMatChecksum(p.Mask())

	second := cycle(t, p, gen.Frame(markerTop))
	assert.Equal(t, sum, images.ComputeMatChecksum(p.Mask()))
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.State, second.State)
}

func TestPipelineSkipsEmptyFrame(t *testing.T) {
	gen := test.NewFrameGenerator(frameWidth, frameHeight, 50)
	p := newIRPipeline(t, frameHeight)

	cycle(t, p, gen.Static())
	up := cycle(t, p, gen.Frame(markerTop))
	require.Equal(t, output.High, up.State.Level)

	skipped := cycle(t, p, gocv.NewMat())
	assert.Equal(t, StatusSkipped, skipped.Status)
	assert.False(t, skipped.Status.Completed())
	assert.Equal(t, up.State, skipped.State)
	assert.Equal(t, up.State, p.State(), "a skipped cycle does not touch the output state")

	// The prior frame survived the skip: the same marker frame is static.
	res := cycle(t, p, gen.Frame(markerTop))
	assert.Equal(t, StatusNoMarker, res.Status)
}

func TestPipelineReseedsOnResolutionChange(t *testing.T) {
	p := newIRPipeline(t, 0)

	cycle(t, p, test.NewFrameGenerator(frameWidth, frameHeight, 50).Static())
	res := cycle(t, p, test.NewFrameGenerator(80, 60, 50).Static())
	assert.Equal(t, StatusSeeded, res.Status)
}

func TestPipelineDerivesZonesFromFirstFrame(t *testing.T) {
	p := newIRPipeline(t, 0)
	assert.Nil(t, p.Zones())

	cycle(t, p, test.NewFrameGenerator(frameWidth, frameHeight, 50).Static())
	require.NotNil(t, p.Zones())
	assert.Equal(t, []int{frameHeight / 2}, p.Zones().Boundaries())
}

func TestPipelineZonesFollowDeliveredFrameHeight(t *testing.T) {
	// Built for 480 rows, fed 120-row frames: the bands must split at 60.
	p := newIRPipeline(t, 480)
	require.Equal(t, []int{240}, p.Zones().Boundaries())

	gen := test.NewFrameGenerator(frameWidth, frameHeight, 50)
	cycle(t, p, gen.Static())
	assert.Equal(t, []int{frameHeight / 2}, p.Zones().Boundaries())

	res := cycle(t, p, gen.Frame(markerBottom))
	require.Equal(t, StatusMarker, res.Status)
	assert.Equal(t, image.Pt(15, 87), res.Observation.Point)
	assert.Equal(t, OutputState{Zone: ZoneLower, Level: output.Low}, res.State)
}

func TestPipelineRebuildsZonesOnResolutionChange(t *testing.T) {
	p := newIRPipeline(t, 0)

	cycle(t, p, test.NewFrameGenerator(frameWidth, frameHeight, 50).Static())
	require.Equal(t, []int{60}, p.Zones().Boundaries())

	tall := test.NewFrameGenerator(80, 240, 50)
	res := cycle(t, p, tall.Static())
	assert.Equal(t, StatusSeeded, res.Status)
	assert.Equal(t, []int{120}, p.Zones().Boundaries())

	// y=87 is the upper half of a 240-row frame.
	res = cycle(t, p, tall.Frame(markerBottom))
	require.Equal(t, StatusMarker, res.Status)
	assert.Equal(t, OutputState{Zone: ZoneUpper, Level: output.High}, res.State)
}

func TestPipelineFaultKeepsPriorFrame(t *testing.T) {
	gen := test.NewFrameGenerator(frameWidth, frameHeight, 50)
	p := newIRPipeline(t, frameHeight)

	cycle(t, p, gen.Static())
	prior := images.ComputeMatChecksum(p.masks.Prior)

	// Morphology rejects more erosions than dilations mid-cycle.
	valid := p.config
	p.config.DilateIterations, p.config.ErodeIterations = 1, 2
	frame := gen.Frame(markerTop)
	_, err := p.Cycle(frame)
	frame.Close()
	require.Error(t, err)
	assert.Equal(t, prior, images.ComputeMatChecksum(p.masks.Prior), "a faulted cycle must not reseed")

	p.config = valid
	res := cycle(t, p, gen.Frame(markerTop))
	assert.Equal(t, StatusMarker, res.Status, "the marker is still measured against the static frame")
}

func TestPipelineParameterChangeAppliesNextCycle(t *testing.T) {
	gen := test.NewFrameGenerator(frameWidth, frameHeight, 50)
	params := NewParameters(DefaultIRParameters()...)
	p, err := NewPipeline(DefaultIRConfig("ir", frameHeight), params, quietLogger())
	require.NoError(t, err)
	defer p.Close()

	cycle(t, p, gen.Static())
	_, err = params.Set(ParamMotionSensitivity, 255)
	require.NoError(t, err)

	res := cycle(t, p, gen.Frame(markerTop))
	assert.Equal(t, StatusNoMarker, res.Status, "no difference exceeds 255")
}

func TestPipelineReset(t *testing.T) {
	gen := test.NewFrameGenerator(frameWidth, frameHeight, 50)
	p := newIRPipeline(t, frameHeight)

	cycle(t, p, gen.Static())
	cycle(t, p, gen.Frame(markerTop))
	p.Reset()

	assert.Equal(t, InitialState, p.State())
	res := cycle(t, p, gen.Frame(markerTop))
	assert.Equal(t, StatusSeeded, res.Status)
}

func TestPipelineConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *PipelineConfig)
		wantErr bool
	}{
		{"ir defaults", func(c *PipelineConfig) {}, false},
		{"unknown strategy", func(c *PipelineConfig) { c.Strategy = "magic" }, true},
		{"unknown tie-break", func(c *PipelineConfig) { c.TieBreak = "random" }, true},
		{"even blur", func(c *PipelineConfig) { c.BlurKernel = 4 }, true},
		{"erode not below dilate", func(c *PipelineConfig) { c.ErodeIterations = 2 }, true},
		{"negative height", func(c *PipelineConfig) { c.FrameHeight = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultIRConfig("ir", 120)
			tt.mutate(&c)
			if tt.wantErr {
				assert.Error(t, c.Validate())
			} else {
				assert.NoError(t, c.Validate())
			}
		})
	}

	assert.NoError(t, DefaultDrumstickConfig("stick", 120).Validate())

	_, err := NewPipeline(DefaultIRConfig("ir", 120), nil, nil)
	assert.Error(t, err)
}

func newShapePipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := NewPipeline(DefaultDrumstickConfig("stick", frameHeight),
		NewParameters(DefaultDrumstickParameters()...), quietLogger())
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

// stick draws a 6 px wide vertical bar from top to bottom with a dimmer
// halo, so its edges lie inside the motion mask whichever side of the step
// Canny picks.
func stick(top, bottom int) []test.Patch {
	return []test.Patch{
		{Rect: image.Rect(67, top-3, 79, bottom+3), Value: 90},
		{Rect: image.Rect(70, top, 76, bottom), Value: 255},
	}
}

func TestShapePipelineReportsStickTip(t *testing.T) {
	gen := test.NewFrameGenerator(frameWidth, frameHeight, 50)
	p := newShapePipeline(t)

	first := cycle(t, p, gen.Static())
	assert.Equal(t, StatusSeeded, first.Status)

	res := cycle(t, p, gen.Frame(stick(20, 80)...))
	require.Equal(t, StatusMarker, res.Status)
	require.NotNil(t, res.Observation)

	pt := res.Observation.Point
	assert.GreaterOrEqual(t, pt.X, 60)
	assert.LessOrEqual(t, pt.X, 86)
	assert.GreaterOrEqual(t, pt.Y, 8)
	assert.Less(t, pt.Y, 30)
	assert.Equal(t, OutputState{Zone: ZoneUpper, Level: output.High}, res.State)
	assert.Equal(t, -1, res.Observation.BrightIndex)
	assert.Greater(t, images.CountSet(p.Mask()), 0)
}

func TestShapePipelineLowerTip(t *testing.T) {
	gen := test.NewFrameGenerator(frameWidth, frameHeight, 50)
	p := newShapePipeline(t)

	cycle(t, p, gen.Static())
	res := cycle(t, p, gen.Frame(stick(72, 112)...))

	require.Equal(t, StatusMarker, res.Status)
	assert.GreaterOrEqual(t, res.Observation.Point.Y, 60)
	assert.Equal(t, OutputState{Zone: ZoneLower, Level: output.Low}, res.State)
}

func TestShapePipelineRejectsSquareBlob(t *testing.T) {
	gen := test.NewFrameGenerator(frameWidth, frameHeight, 50)
	p := newShapePipeline(t)

	cycle(t, p, gen.Static())
	res := cycle(t, p, gen.Frame(
		test.Patch{Rect: image.Rect(57, 37, 93, 73), Value: 90},
		test.Square(60, 40, 30, 255),
	))

	assert.Equal(t, StatusNoMarker, res.Status)
	assert.Empty(t, res.MotionRegions)
	assert.Equal(t, InitialState, res.State)
}

func newBrightnessPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := NewPipeline(DefaultBrightnessConfig("ir", frameHeight),
		NewParameters(DefaultBrightnessParameters()...), quietLogger())
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func TestBrightnessPipelineTracksStaticMarker(t *testing.T) {
	gen := test.NewFrameGenerator(frameWidth, frameHeight, 50)
	p := newBrightnessPipeline(t)

	first := cycle(t, p, gen.Frame(markerTop))
	require.Equal(t, StatusMarker, first.Status, "no prior frame is needed")
	assert.Equal(t, image.Pt(15, 17), first.Observation.Point)
	assert.Equal(t, markerRect(), first.Observation.Region)
	assert.Equal(t, -1, first.Observation.MotionIndex)
	assert.Equal(t, OutputState{Zone: ZoneUpper, Level: output.High}, first.State)
	assert.True(t, first.Changed)

	still := cycle(t, p, gen.Frame(markerTop))
	require.Equal(t, StatusMarker, still.Status, "a stationary marker is still tracked")
	assert.Equal(t, output.High, still.State.Level)
	assert.False(t, still.Changed)

	lower := cycle(t, p, gen.Frame(markerBottom))
	assert.Equal(t, OutputState{Zone: ZoneLower, Level: output.Low}, lower.State)
	assert.Greater(t, images.CountSet(p.Mask()), 0)
}

func TestBrightnessPipelineIgnoresSmallSpots(t *testing.T) {
	gen := test.NewFrameGenerator(frameWidth, frameHeight, 50)
	p := newBrightnessPipeline(t)

	res := cycle(t, p, gen.Frame(test.Square(40, 20, 5, 255)))
	assert.Equal(t, StatusNoMarker, res.Status)
	assert.Empty(t, res.BrightRegions)
	assert.Equal(t, InitialState, res.State)
}

func TestCycleStatusString(t *testing.T) {
	assert.Equal(t, "skipped", StatusSkipped.String())
	assert.Equal(t, "seeded", StatusSeeded.String())
	assert.Equal(t, "no-marker", StatusNoMarker.String())
	assert.Equal(t, "marker", StatusMarker.String())
	assert.True(t, StatusMarker.Completed())
	assert.True(t, StatusNoMarker.Completed())
	assert.False(t, StatusSeeded.Completed())
}

func markerRect() images.Rect {
	return images.FromRectangle(markerTop.Rect)
}
