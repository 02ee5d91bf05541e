package images

import (
	"image"

	"gocv.io/x/gocv"
)

// Region is a contiguous set of mask pixels found by external-boundary
// tracing, with the attributes the contour filter screens on.
type Region struct {
	// Index is the discovery order of the contour in its mask.
	Index int
	// Area is the contour area as computed by gocv.ContourArea.
	Area float64
	// Box is the axis-aligned bounding box of the contour.
	Box Rect
	// Aspect is Box height divided by Box width, 0 when the width is 0.
	Aspect float64
	// Tip is the topmost contour point (minimum row, first in contour order).
	Tip image.Point
}

// ExtractRegions traces the external contours (holes ignored) of a binary
// mask and returns one Region per contour in discovery order.
//
// Arguments:
//   - mask: A single-channel binary mask.
//
// Returns:
//   - []Region: Possibly empty, never nil.
func ExtractRegions(mask gocv.Mat) []Region {
	if mask.Empty() {
		return []Region{}
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	regions := make([]Region, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		box := FromRectangle(gocv.BoundingRect(contour))
		regions = append(regions, Region{
			Index:  i,
			Area:   gocv.ContourArea(contour),
			Box:    box,
			Aspect: AspectRatio(box),
			Tip:    Topmost(contour.ToPoints()),
		})
	}
	return regions
}

// AspectRatio returns height/width of a box, or 0 for a zero-width box.
func AspectRatio(box Rect) float64 {
	if box.Width() == 0 {
		return 0
	}
	return float64(box.Height()) / float64(box.Width())
}

// Topmost returns the point with the smallest Y. Ties keep the earliest
// point, so the result is deterministic for a given contour.
func Topmost(points []image.Point) image.Point {
	if len(points) == 0 {
		return image.Point{}
	}
	tip := points[0]
	for _, p := range points[1:] {
		if p.Y < tip.Y {
			tip = p
		}
	}
	return tip
}
