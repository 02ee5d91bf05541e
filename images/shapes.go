// Package images - Rectangle math for region candidates.
package images

import "image"

// Rect is a lightweight bounding box.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1, Y1, X2, Y2 int
}

// FromRectangle converts an image.Rectangle (as returned by gocv.BoundingRect)
// into a Rect.
func FromRectangle(r image.Rectangle) Rect {
	r = r.Canon()
	return Rect{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// Rectangle converts the Rect back into an image.Rectangle for drawing.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// Width returns the horizontal extent, never negative.
func (r Rect) Width() int {
	return max(r.X2-r.X1, 0)
}

// Height returns the vertical extent, never negative.
func (r Rect) Height() int {
	return max(r.Y2-r.Y1, 0)
}

// Area returns Width*Height.
func (r Rect) Area() int {
	return r.Width() * r.Height()
}

// Empty reports whether the rectangle encloses no pixels.
func (r Rect) Empty() bool {
	return r.Width() == 0 || r.Height() == 0
}

// Center returns the integer midpoint of the rectangle. The midpoint is
// floored towards the top-left corner: x1 + (x2-x1)/2.
func (r Rect) Center() image.Point {
	return image.Pt(r.X1+(r.X2-r.X1)/2, r.Y1+(r.Y2-r.Y1)/2)
}

// Intersect returns the overlap of two rectangles.
//
// Arguments:
//   - o: The other rectangle.
//
// Returns:
//   - Rect: The intersection rectangle (zero value when there is no overlap).
//   - bool: true only when the overlap has positive width and height.
//
// @example
// a := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
// b := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
// in, ok := a.Intersect(b) // in == Rect{5, 5, 10, 10}, ok == true
func (r Rect) Intersect(o Rect) (Rect, bool) {
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	// Touching edges produce a zero-width strip, which is not an overlap.
	if ix1 >= ix2 || iy1 >= iy2 {
		return Rect{}, false
	}

	return Rect{X1: ix1, Y1: iy1, X2: ix2, Y2: iy2}, true
}

// CalculateIoU measures how much two rectangles overlap as
// Area(Intersection) / Area(Union), a value between 0.0 and 1.0.
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle to compare against.
//
// Returns:
//   - float32: 1.0 for identical rectangles, 0.0 when they do not overlap.
//
// Example Usage:
// ```go
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//	iouScore := CalculateIoU(rect1, rect2) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	inter, ok := r.Intersect(o)
	if !ok {
		return 0.0
	}
	interArea := inter.Area()

	// Union(A, B) = Area(A) + Area(B) - Intersection(A, B)
	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}

	return float32(interArea) / float32(unionArea)
}
