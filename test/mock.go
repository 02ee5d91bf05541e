// Package test provides deterministic synthetic frames for pipeline tests.
package test

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Patch is a filled rectangle of constant intensity drawn onto a frame.
type Patch struct {
	Rect  image.Rectangle
	Value uint8
}

// FrameGenerator creates deterministic test frames with controlled content.
//
// @example
// gen := NewFrameGenerator(160, 120, 50)
// frame := gen.Frame(Patch{Rect: image.Rect(10, 10, 20, 25), Value: 255})
// defer frame.Close()
type FrameGenerator struct {
	width      int
	height     int
	background uint8
}

// NewFrameGenerator creates a new frame generator with specified dimensions.
//
// Arguments:
// - width: Frame width in pixels.
// - height: Frame height in pixels.
// - background: Intensity of the static background.
//
// Returns:
// - A configured FrameGenerator instance.
func NewFrameGenerator(width, height int, background uint8) *FrameGenerator {
	return &FrameGenerator{width: width, height: height, background: background}
}

// Width returns the frame width.
func (g *FrameGenerator) Width() int { return g.width }

// Height returns the frame height.
func (g *FrameGenerator) Height() int { return g.height }

// Static creates a grayscale frame holding only the background.
func (g *FrameGenerator) Static() gocv.Mat {
	frame := gocv.NewMatWithSize(g.height, g.width, gocv.MatTypeCV8UC1)
	frame.SetTo(gocv.NewScalar(float64(g.background), 0, 0, 0))
	return frame
}

// Frame creates a grayscale frame with the patches drawn in order, later
// patches on top.
func (g *FrameGenerator) Frame(patches ...Patch) gocv.Mat {
	frame := g.Static()
	for _, p := range patches {
		gocv.Rectangle(&frame, p.Rect, color.RGBA{p.Value, p.Value, p.Value, 0}, -1)
	}
	return frame
}

// ColorFrame is Frame converted to 3-channel BGR, as a camera delivers it.
func (g *FrameGenerator) ColorFrame(patches ...Patch) gocv.Mat {
	gray := g.Frame(patches...)
	defer gray.Close()
	frame := gocv.NewMat()
	gocv.CvtColor(gray, &frame, gocv.ColorGrayToBGR)
	return frame
}

// Square is a Patch helper for a size x size square at (x, y).
func Square(x, y, size int, value uint8) Patch {
	return Patch{Rect: image.Rect(x, y, x+size, y+size), Value: value}
}
