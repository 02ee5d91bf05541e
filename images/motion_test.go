package images

import (
	"image"
	"image/color"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func grayFrame(w, h int, value uint8) gocv.Mat {
	m := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC1)
	m.SetTo(gocv.NewScalar(float64(value), 0, 0, 0))
	return m
}

func fill(m *gocv.Mat, r image.Rectangle, value uint8) {
	gocv.Rectangle(m, r, color.RGBA{value, value, value, 0}, -1)
}

func TestPreprocessRejectsEmptyFrame(t *testing.T) {
	gen := NewMaskGenerator(3)
	defer gen.Close()

	empty := gocv.NewMat()
	defer empty.Close()

	err := gen.Preprocess(empty, 0)
	assert.True(t, errors.Is(err, ErrEmptyFrame))
	assert.False(t, gen.HasPrior())
}

func TestPreprocessRejectsUnsupportedChannels(t *testing.T) {
	gen := NewMaskGenerator(3)
	defer gen.Close()

	twoChannel := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC2)
	defer twoChannel.Close()

	err := gen.Preprocess(twoChannel, 0)
	assert.True(t, errors.Is(err, ErrMalformedFrame))
}

func TestPreprocessConvertsColor(t *testing.T) {
	gen := NewMaskGenerator(3)
	defer gen.Close()

	gray := grayFrame(20, 10, 77)
	defer gray.Close()
	bgr := gocv.NewMat()
	defer bgr.Close()
	require.NoError(t, gocv.CvtColor(gray, &bgr, gocv.ColorGrayToBGR))

	require.NoError(t, gen.Preprocess(bgr, 5))
	assert.Equal(t, 1, gen.Gray.Channels())
	assert.Equal(t, 20, gen.Gray.Cols())
	assert.Equal(t, 10, gen.Gray.Rows())
	assert.Equal(t, uint8(77), gen.Gray.GetUCharAt(5, 5))
	assert.Equal(t, uint8(77), gen.Blurred.GetUCharAt(5, 5), "blur of a flat frame is flat")
}

func TestMotionMaskRequiresPrior(t *testing.T) {
	gen := NewMaskGenerator(3)
	defer gen.Close()

	frame := grayFrame(20, 20, 50)
	defer frame.Close()
	require.NoError(t, gen.Preprocess(frame, 0))

	assert.Error(t, gen.MotionMask(25))
}

func TestMotionMaskThresholdIsStrict(t *testing.T) {
	gen := NewMaskGenerator(3)
	defer gen.Close()

	prior := grayFrame(40, 40, 50)
	defer prior.Close()
	require.NoError(t, gen.Preprocess(prior, 0))
	gen.Seed()

	current := grayFrame(40, 40, 50)
	defer current.Close()
	fill(&current, image.Rect(0, 0, 10, 10), 75)   // difference 25: not moving
	fill(&current, image.Rect(20, 20, 30, 30), 76) // difference 26: moving
	require.NoError(t, gen.Preprocess(current, 0))
	require.NoError(t, gen.MotionMask(25))

	assert.Equal(t, uint8(0), gen.Motion.GetUCharAt(5, 5))
	assert.Equal(t, uint8(255), gen.Motion.GetUCharAt(25, 25))
	assert.Equal(t, 100, CountSet(gen.Motion))
}

func TestBrightnessMask(t *testing.T) {
	gen := NewMaskGenerator(3)
	defer gen.Close()

	frame := grayFrame(30, 30, 200)
	defer frame.Close()
	fill(&frame, image.Rect(10, 10, 15, 15), 201)
	require.NoError(t, gen.Preprocess(frame, 0))

	gen.BrightnessMask(200)
	assert.Equal(t, 25, CountSet(gen.Bright), "pixels equal to the cutoff are not bright")
}

func TestCleanValidatesIterations(t *testing.T) {
	gen := NewMaskGenerator(3)
	defer gen.Close()

	mask := grayFrame(10, 10, 0)
	defer mask.Close()

	assert.Error(t, gen.Clean(&mask, 1, 1))
	assert.Error(t, gen.Clean(&mask, 0, 1))
	assert.NoError(t, gen.Clean(&mask, 0, 0))
}

func TestCleanDilatesThenErodes(t *testing.T) {
	gen := NewMaskGenerator(3)
	defer gen.Close()

	mask := grayFrame(40, 40, 0)
	defer mask.Close()
	fill(&mask, image.Rect(10, 10, 20, 20), 255)

	require.NoError(t, gen.Clean(&mask, 2, 0))
	assert.Equal(t, 14*14, CountSet(mask))

	require.NoError(t, gen.Clean(&mask, 0, 0))
	assert.Equal(t, 14*14, CountSet(mask))
}

func TestCleanMergesFragments(t *testing.T) {
	gen := NewMaskGenerator(3)
	defer gen.Close()

	mask := grayFrame(40, 40, 0)
	defer mask.Close()
	fill(&mask, image.Rect(10, 10, 15, 20), 255)
	fill(&mask, image.Rect(17, 10, 22, 20), 255)
	require.Len(t, ExtractRegions(mask), 2)

	require.NoError(t, gen.Clean(&mask, 2, 1))
	assert.Len(t, ExtractRegions(mask), 1)
}

func TestSeedAndReset(t *testing.T) {
	gen := NewMaskGenerator(0)
	defer gen.Close()

	frame := grayFrame(10, 10, 1)
	defer frame.Close()
	require.NoError(t, gen.Preprocess(frame, 0))
	assert.False(t, gen.HasPrior())

	gen.Seed()
	assert.True(t, gen.HasPrior())

	gen.Reset()
	assert.False(t, gen.HasPrior())
}

func TestEncode(t *testing.T) {
	frame := grayFrame(32, 24, 128)
	defer frame.Close()

	for _, format := range []ImageFormat{FormatJPEG, FormatPNG} {
		img, err := Encode(frame, format)
		require.NoError(t, err)
		assert.Equal(t, format, img.Format)
		assert.Equal(t, 32, img.Width)
		assert.Equal(t, 24, img.Height)
		assert.NotEmpty(t, img.Data)
	}

	empty := gocv.NewMat()
	defer empty.Close()
	_, err := Encode(empty, FormatJPEG)
	assert.True(t, errors.Is(err, ErrEmptyFrame))
}
