// Package controller - Marker detection steps fusing the motion mask with the
// brightness or edge mask.
package controller

import (
	"github.com/nvr-ai/go-zonetrack/images"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Stage names passed to the OperationTimer.
const (
	stageMasks  = "masks"
	stageFusion = "fusion"
)

// detectOverlap implements the IR marker strategy:
//
//  1. Motion mask from the frame difference, dilated to fill holes.
//  2. Brightness mask from a fixed intensity cutoff.
//  3. Area screening of both candidate sets.
//  4. Bounding-box intersection of the two sets.
func (p *Pipeline) detectOverlap(th Thresholds, res *CycleResult) (Observation, bool, error) {
	done := p.timer.StartOperation(stageMasks)
	if err := p.masks.MotionMask(float32(th.MotionSensitivity)); err != nil {
		done()
		return Observation{}, false, errors.Wrap(err, "motion mask")
	}
	if err := p.masks.Clean(&p.masks.Motion, p.config.DilateIterations, p.config.ErodeIterations); err != nil {
		done()
		return Observation{}, false, errors.Wrap(err, "motion morphology")
	}
	p.masks.BrightnessMask(float32(th.BrightnessCutoff))
	done()

	done = p.timer.StartOperation(stageFusion)
	motion := FilterByArea(images.ExtractRegions(p.masks.Motion), th.MotionArea)
	bright := FilterByArea(images.ExtractRegions(p.masks.Bright), th.BrightArea)
	res.MotionRegions = motion
	res.BrightRegions = bright

	obs, found := ResolveOverlap(motion, bright, p.config.TieBreak)
	done()
	if found {
		p.log.WithFields(logrus.Fields{
			"cycle": p.cycle,
			"x":     obs.Point.X,
			"y":     obs.Point.Y,
			"iou":   obs.Overlap,
		}).Debug("overlapping motion and brightness regions")
	}
	return obs, found, nil
}

// detectShape implements the drumstick strategy:
//
//  1. Motion mask from the frame difference.
//  2. Canny edges of the blurred frame AND the motion mask.
//  3. Dilate then erode to merge the stick's edge fragments.
//  4. Area and aspect screening; the first survivor's tip is the marker.
func (p *Pipeline) detectShape(th Thresholds, res *CycleResult) (Observation, bool, error) {
	done := p.timer.StartOperation(stageMasks)
	defer func() { done() }()
	if err := p.masks.MotionMask(float32(th.MotionSensitivity)); err != nil {
		return Observation{}, false, errors.Wrap(err, "motion mask")
	}
	if err := p.masks.EdgeMask(float32(th.CannyLow), float32(th.CannyHigh)); err != nil {
		return Observation{}, false, errors.Wrap(err, "edge mask")
	}
	if err := p.masks.Clean(&p.masks.Combined, p.config.DilateIterations, p.config.ErodeIterations); err != nil {
		return Observation{}, false, errors.Wrap(err, "combined morphology")
	}
	done()

	done = p.timer.StartOperation(stageFusion)
	candidates := FilterByShape(images.ExtractRegions(p.masks.Combined), th.MotionArea, th.AspectMin)
	res.MotionRegions = candidates

	obs, found := ResolveTip(candidates)
	if found {
		p.log.WithFields(logrus.Fields{
			"cycle":  p.cycle,
			"x":      obs.Point.X,
			"y":      obs.Point.Y,
			"aspect": candidates[0].Aspect,
		}).Debug("elongated moving edge region")
	}
	return obs, found, nil
}

// detectBrightness implements the brightness-only strategy: the box center
// of the first bright region inside the area band is the marker. No frame
// difference is taken, so a stationary marker is still tracked.
func (p *Pipeline) detectBrightness(th Thresholds, res *CycleResult) (Observation, bool, error) {
	done := p.timer.StartOperation(stageMasks)
	p.masks.BrightnessMask(float32(th.BrightnessCutoff))
	done()

	done = p.timer.StartOperation(stageFusion)
	bright := FilterByArea(images.ExtractRegions(p.masks.Bright), th.BrightArea)
	res.BrightRegions = bright
	obs, found := ResolveCenter(bright)
	done()
	if found {
		p.log.WithFields(logrus.Fields{
			"cycle": p.cycle,
			"x":     obs.Point.X,
			"y":     obs.Point.Y,
			"area":  bright[0].Area,
		}).Debug("bright region")
	}
	return obs, found, nil
}
