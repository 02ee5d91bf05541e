// Package images - This file contains the dual-mask generation for marker
// tracking using OpenCV (via gocv).
//
// The MaskGenerator struct encapsulates the per-frame pipeline that produces
// the two binary masks the tracker fuses:
//  1. Preprocessing (grayscale, optional Gaussian blur).
//  2. Motion mask: absolute difference against the prior grayscale frame,
//     thresholded to binary.
//  3. Brightness mask: fixed high-intensity threshold (IR marker), or
//  4. Edge mask: Canny edges AND motion mask (drumstick).
//  5. Morphology: dilation followed by erosion to merge fragments.
//
// Pipeline Overview:
//
// ┌──────────────┐
// │ Input Frame  │
// └──────┬───────┘
// ┌────────────────────────────┐
// │ Preprocess (gray, blur)    │
// └──────┬─────────────────────┘
// ┌────────────────────────────┐      ┌──────────────────────────┐
// │ AbsDiff vs Prior + Thresh  │      │ Bright thresh / Canny    │
// └──────┬─────────────────────┘      └──────┬───────────────────┘
// ┌────────────────────────────┐             │
// │ Morphology (dilate, erode) │◄────────────┘
// └──────┬─────────────────────┘
// ┌────────────────────────────┐
// │ Region extraction          │
// └────────────────────────────┘
//
// Usage:
//
//	gen := images.NewMaskGenerator(3)
//	defer gen.Close()
//
//	for {
//	    if err := gen.Preprocess(frame, 0); err != nil { continue }
//	    if !gen.HasPrior() { gen.Seed(); continue }
//	    gen.MotionMask(25)
//	    gen.BrightnessMask(200)
//	    gen.Seed()
//	}
//
// Note: You must call Close() when finished to release native resources.
package images

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var (
	// ErrEmptyFrame is returned by Preprocess when the input frame holds no pixels.
	ErrEmptyFrame = errors.New("empty frame")
	// ErrMalformedFrame is returned by Preprocess for frames it cannot convert.
	ErrMalformedFrame = errors.New("malformed frame")
)

// MaskGenerator owns the OpenCV matrices used to build the motion and
// brightness/edge masks of one camera. It is stateful: Prior survives across
// frames and is only replaced by Seed.
//
// A MaskGenerator is not safe for concurrent use; each camera pipeline owns
// its own instance. Always call Close() when done to release native resources.
type MaskGenerator struct {
	Gray     gocv.Mat // Single-channel intensity of the current frame
	Blurred  gocv.Mat // Gray after optional Gaussian blur (edge input)
	Prior    gocv.Mat // Gray of the previous frame; empty until seeded
	Delta    gocv.Mat // |Gray - Prior|
	Motion   gocv.Mat // Binary motion mask
	Bright   gocv.Mat // Binary brightness mask
	Edges    gocv.Mat // Canny edges of Blurred
	Combined gocv.Mat // Edges AND Motion
	Kernel   gocv.Mat // Morphological kernel
}

// NewMaskGenerator constructs a MaskGenerator with a square rectangular
// morphological kernel of the given size.
//
// Arguments:
//   - kernelSize: Side of the structuring element (3 for the IR tracker, 5 for
//     the drumstick tracker). Values below 1 fall back to 3.
//
// Returns:
//   - *MaskGenerator: Ready to use; call Close() to release memory.
func NewMaskGenerator(kernelSize int) *MaskGenerator {
	if kernelSize < 1 {
		kernelSize = 3
	}
	return &MaskGenerator{
		Gray:     gocv.NewMat(),
		Blurred:  gocv.NewMat(),
		Prior:    gocv.NewMat(),
		Delta:    gocv.NewMat(),
		Motion:   gocv.NewMat(),
		Bright:   gocv.NewMat(),
		Edges:    gocv.NewMat(),
		Combined: gocv.NewMat(),
		Kernel:   gocv.GetStructuringElement(gocv.MorphRect, image.Pt(kernelSize, kernelSize)),
	}
}

// Preprocess converts a raw frame into single-channel intensity and, when
// blurKernel is positive, a smoothed copy for edge detection.
//
// Arguments:
//   - frame: BGR, BGRA or grayscale frame.
//   - blurKernel: Odd Gaussian kernel size; 0 disables smoothing.
//
// Returns:
//   - error: ErrEmptyFrame or ErrMalformedFrame (the caller skips the
//     cycle), or a wrapped OpenCV error.
//
// Prior is never touched here, so a failed Preprocess leaves the generator
// exactly as it was.
func (m *MaskGenerator) Preprocess(frame gocv.Mat, blurKernel int) error {
	if frame.Empty() {
		return ErrEmptyFrame
	}

	switch frame.Channels() {
	case 1:
		frame.CopyTo(&m.Gray)
	case 3:
		if err := gocv.CvtColor(frame, &m.Gray, gocv.ColorBGRToGray); err != nil {
			return errors.Wrap(err, "grayscale conversion failed")
		}
	case 4:
		if err := gocv.CvtColor(frame, &m.Gray, gocv.ColorBGRAToGray); err != nil {
			return errors.Wrap(err, "grayscale conversion failed")
		}
	default:
		return errors.Wrapf(ErrMalformedFrame, "unsupported channel count %d", frame.Channels())
	}

	if blurKernel <= 0 {
		m.Gray.CopyTo(&m.Blurred)
		return nil
	}
	if blurKernel%2 == 0 {
		blurKernel++
	}
	if err := gocv.GaussianBlur(m.Gray, &m.Blurred, image.Pt(blurKernel, blurKernel), 0, 0, gocv.BorderDefault); err != nil {
		return errors.Wrap(err, "gaussian blur failed")
	}
	return nil
}

// HasPrior reports whether a prior frame has been seeded.
func (m *MaskGenerator) HasPrior() bool {
	return !m.Prior.Empty()
}

// Seed stores the current grayscale frame as the prior frame for the next
// cycle.
func (m *MaskGenerator) Seed() {
	m.Gray.CopyTo(&m.Prior)
}

// MotionMask computes |Gray - Prior| and thresholds it into Motion.
// Pixels whose difference is strictly greater than sensitivity become 255.
//
// Arguments:
//   - sensitivity: Pixel difference threshold (e.g., 25).
//
// Returns:
//   - error: if no prior frame exists or the sizes differ.
func (m *MaskGenerator) MotionMask(sensitivity float32) error {
	if !m.HasPrior() {
		return errors.New("motion mask requires a prior frame")
	}
	if m.Prior.Rows() != m.Gray.Rows() || m.Prior.Cols() != m.Gray.Cols() {
		return errors.Errorf("frame size changed from %dx%d to %dx%d",
			m.Prior.Cols(), m.Prior.Rows(), m.Gray.Cols(), m.Gray.Rows())
	}
	if err := gocv.AbsDiff(m.Gray, m.Prior, &m.Delta); err != nil {
		return errors.Wrap(err, "frame difference failed")
	}
	gocv.Threshold(m.Delta, &m.Motion, sensitivity, 255, gocv.ThresholdBinary)
	return nil
}

// BrightnessMask isolates saturated pixels: intensity strictly greater than
// cutoff becomes 255.
func (m *MaskGenerator) BrightnessMask(cutoff float32) float32 {
	return gocv.Threshold(m.Gray, &m.Bright, cutoff, 255, gocv.ThresholdBinary)
}

// EdgeMask runs Canny on the blurred frame and keeps only edges that are also
// moving. MotionMask must have been called first in the same cycle.
func (m *MaskGenerator) EdgeMask(low, high float32) error {
	if err := gocv.Canny(m.Blurred, &m.Edges, low, high); err != nil {
		return errors.Wrap(err, "edge detection failed")
	}
	if err := gocv.BitwiseAnd(m.Edges, m.Motion, &m.Combined); err != nil {
		return errors.Wrap(err, "mask combination failed")
	}
	return nil
}

// Clean dilates then erodes a mask in place. Dilation merges nearby
// fragments, erosion removes the speckle that dilation grew.
//
// Arguments:
//   - mask: The binary mask to clean (Motion, Bright or Combined).
//   - dilations: Number of dilation iterations.
//   - erosions: Number of erosion iterations; must be lower than dilations.
func (m *MaskGenerator) Clean(mask *gocv.Mat, dilations, erosions int) error {
	if erosions >= dilations && erosions > 0 {
		return errors.Errorf("erosions (%d) must be fewer than dilations (%d)", erosions, dilations)
	}
	for i := 0; i < dilations; i++ {
		if err := gocv.Dilate(*mask, mask, m.Kernel); err != nil {
			return errors.Wrap(err, "dilate failed")
		}
	}
	for i := 0; i < erosions; i++ {
		if err := gocv.Erode(*mask, mask, m.Kernel); err != nil {
			return errors.Wrap(err, "erode failed")
		}
	}
	return nil
}

// Reset drops the prior frame so the next cycle bootstraps again.
func (m *MaskGenerator) Reset() {
	m.Prior.Close()
	m.Prior = gocv.NewMat()
}

// Close releases all OpenCV native resources used by the generator.
//
// Always call this when you're done to prevent memory leaks.
func (m *MaskGenerator) Close() {
	m.Gray.Close()
	m.Blurred.Close()
	m.Prior.Close()
	m.Delta.Close()
	m.Motion.Close()
	m.Bright.Close()
	m.Edges.Close()
	m.Combined.Close()
	m.Kernel.Close()
}
