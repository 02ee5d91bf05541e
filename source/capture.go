package source

import (
	"fmt"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// CaptureOptions requests a capture resolution and frame rate. Zero values
// leave the driver defaults in place.
type CaptureOptions struct {
	Width  int
	Height int
	FPS    float64
}

// Capture reads frames from a camera device or a video file through OpenCV.
type Capture struct {
	name   string
	finite bool
	vc     *gocv.VideoCapture
}

// OpenDevice opens a camera by index and applies the requested capture
// properties.
//
// Arguments:
//   - deviceID: Camera index (0 for the first camera).
//   - opts: Requested resolution and frame rate.
//
// Returns:
//   - *Capture: The opened camera.
//   - error: if the device cannot be opened.
func OpenDevice(deviceID int, opts CaptureOptions) (*Capture, error) {
	vc, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, errors.Wrapf(err, "open video capture device %d", deviceID)
	}
	if opts.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(opts.Width))
	}
	if opts.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(opts.Height))
	}
	if opts.FPS > 0 {
		vc.Set(gocv.VideoCaptureFPS, opts.FPS)
	}
	return &Capture{name: fmt.Sprintf("device %d", deviceID), vc: vc}, nil
}

// OpenFile opens a video file. Reaching its end yields ErrSourceExhausted.
func OpenFile(path string) (*Capture, error) {
	vc, err := gocv.OpenVideoCapture(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open video file %s", path)
	}
	return &Capture{name: path, finite: true, vc: vc}, nil
}

// Read grabs the next frame.
func (c *Capture) Read(dst *gocv.Mat) error {
	if ok := c.vc.Read(dst); !ok {
		if c.finite {
			return ErrSourceExhausted
		}
		return errors.Wrap(ErrEmptyFrame, c.name)
	}
	if dst.Empty() {
		return errors.Wrap(ErrEmptyFrame, c.name)
	}
	return nil
}

// Rewind seeks a video file back to its first frame. It does nothing for
// a device.
func (c *Capture) Rewind() {
	if c.finite {
		c.vc.Set(gocv.VideoCapturePosFrames, 0)
	}
}

// Size returns the size the driver negotiated, which may differ from the
// requested one.
func (c *Capture) Size() (width, height int) {
	return int(c.vc.Get(gocv.VideoCaptureFrameWidth)), int(c.vc.Get(gocv.VideoCaptureFrameHeight))
}

// Close releases the device.
func (c *Capture) Close() error {
	return c.vc.Close()
}

func (c *Capture) String() string {
	return c.name
}
