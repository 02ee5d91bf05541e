// Package controller - Annotated frame rendering for preview and snapshots.
package controller

import (
	"fmt"
	"image"
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var (
	regionColor   = color.RGBA{0, 255, 0, 0}
	centroidColor = color.RGBA{0, 0, 255, 0}
	labelColor    = color.RGBA{255, 255, 255, 0}
	bandColor     = color.RGBA{255, 255, 0, 0}
)

// Annotate copies frame into dst as a 3-channel image and overlays the zone
// boundaries, the resolved region, its marker point and the zone label.
// dst is only for display; nothing in the pipeline reads it back.
//
// Arguments:
//   - frame: The frame the cycle ran on.
//   - res: The cycle outcome.
//   - zones: The pipeline's classifier; nil skips the band lines.
//   - dst: Destination Mat, reallocated as needed.
//
// Returns:
//   - error: if frame is empty, cannot be converted, or a drawing call fails.
func Annotate(frame gocv.Mat, res CycleResult, zones *ZoneClassifier, dst *gocv.Mat) error {
	if frame.Empty() {
		return errors.New("cannot annotate an empty frame")
	}
	switch frame.Channels() {
	case 1:
		if err := gocv.CvtColor(frame, dst, gocv.ColorGrayToBGR); err != nil {
			return errors.Wrap(err, "annotate color conversion")
		}
	case 4:
		if err := gocv.CvtColor(frame, dst, gocv.ColorBGRAToBGR); err != nil {
			return errors.Wrap(err, "annotate color conversion")
		}
	default:
		frame.CopyTo(dst)
	}

	var drawErr error
	keep := func(err error) {
		if err != nil && drawErr == nil {
			drawErr = err
		}
	}

	width := dst.Cols()
	if zones != nil {
		for _, y := range zones.Boundaries() {
			keep(gocv.Line(dst, image.Pt(0, y), image.Pt(width, y), bandColor, 1))
		}
	}

	label := "No marker detected"
	if res.Observation != nil {
		obs := res.Observation
		keep(gocv.Rectangle(dst, obs.Region.Rectangle(), regionColor, 2))
		keep(gocv.Circle(dst, obs.Point, 5, centroidColor, -1))
		if zones != nil {
			label = zones.Label(res.State.Zone)
		}
		keep(gocv.PutText(dst, fmt.Sprintf("(%d, %d)", obs.Point.X, obs.Point.Y),
			obs.Point.Add(image.Pt(8, -8)), gocv.FontHersheyPlain, 1.0, centroidColor, 1))
	}
	keep(gocv.PutText(dst, label, image.Pt(10, 30), gocv.FontHersheyPlain, 1.2, labelColor, 2))
	if res.Camera != "" {
		keep(gocv.PutText(dst, res.Camera, image.Pt(10, 55), gocv.FontHersheyPlain, 1.0, labelColor, 1))
	}
	return errors.Wrap(drawErr, "annotate draw")
}
