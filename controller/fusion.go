// Package controller - Fusion of region candidates into one marker observation.
package controller

import (
	"fmt"
	"image"

	"github.com/nvr-ai/go-zonetrack/images"
)

// TieBreak selects which overlapping motion/brightness pair wins when more
// than one pair intersects.
type TieBreak string

const (
	// TieBreakFirst reports the first intersecting pair in discovery order.
	TieBreakFirst TieBreak = "first"
	// TieBreakLargest reports the pair with the largest intersection area,
	// discovery order breaking equal areas.
	TieBreakLargest TieBreak = "largest"
)

// Observation is the resolved marker of one cycle for one camera.
type Observation struct {
	// Point is the reported marker position.
	Point image.Point
	// Region is the source bounding region: the intersection rectangle for
	// the overlap strategy, the contour box for the single-mask strategies.
	Region images.Rect
	// Overlap is the IoU of the fused motion and brightness boxes; 0 for the
	// single-mask strategy.
	Overlap float32
	// MotionIndex and BrightIndex are the discovery indices of the winning
	// candidates, -1 for the mask a strategy does not use.
	MotionIndex int
	BrightIndex int
}

func (o Observation) String() string {
	return fmt.Sprintf("marker at (%d,%d) region %v", o.Point.X, o.Point.Y, o.Region.Rectangle())
}

// ResolveOverlap fuses motion and brightness candidates. Every motion
// candidate is tested, in order, against every brightness candidate; a pair
// qualifies when their boxes intersect with positive width and height, and
// the marker is the midpoint of the intersection rectangle.
//
// Arguments:
//   - motion: Screened motion candidates in discovery order.
//   - bright: Screened brightness candidates in discovery order.
//   - tie: TieBreakFirst stops at the first qualifying pair; TieBreakLargest
//     scans every pair.
//
// Returns:
//   - Observation: The marker, valid only when ok is true.
//   - bool: false when no pair intersects ("no marker observed").
func ResolveOverlap(motion, bright []images.Region, tie TieBreak) (Observation, bool) {
	var (
		best     Observation
		bestArea int
		found    bool
	)

	for _, m := range motion {
		for _, b := range bright {
			inter, ok := m.Box.Intersect(b.Box)
			if !ok {
				continue
			}
			if found && inter.Area() <= bestArea {
				continue
			}

			best = Observation{
				Point:       inter.Center(),
				Region:      inter,
				Overlap:     images.CalculateIoU(m.Box, b.Box),
				MotionIndex: m.Index,
				BrightIndex: b.Index,
			}
			bestArea = inter.Area()
			found = true

			if tie != TieBreakLargest {
				return best, true
			}
		}
	}

	return best, found
}

// ResolveTip takes the first shape-screened candidate and reports its
// topmost contour point.
func ResolveTip(candidates []images.Region) (Observation, bool) {
	if len(candidates) == 0 {
		return Observation{}, false
	}
	c := candidates[0]
	return Observation{
		Point:       c.Tip,
		Region:      c.Box,
		MotionIndex: c.Index,
		BrightIndex: -1,
	}, true
}

// ResolveCenter takes the first screened bright candidate and reports the
// integer midpoint of its bounding box.
func ResolveCenter(candidates []images.Region) (Observation, bool) {
	if len(candidates) == 0 {
		return Observation{}, false
	}
	c := candidates[0]
	return Observation{
		Point:       c.Box.Center(),
		Region:      c.Box,
		MotionIndex: -1,
		BrightIndex: c.Index,
	}, true
}
