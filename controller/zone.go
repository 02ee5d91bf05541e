// Package controller - Zone classification of the marker's vertical position.
package controller

import (
	"fmt"
	"sort"

	"github.com/nvr-ai/go-zonetrack/output"
	"github.com/pkg/errors"
)

// Zone is a band index counted from the top of the frame. ZoneNone marks a
// cycle without a marker.
type Zone int

const (
	// ZoneNone is reported when no marker was observed.
	ZoneNone Zone = -1
	// ZoneUpper is the top band.
	ZoneUpper Zone = 0
	// ZoneLower is the bottom band of the two-band configuration.
	ZoneLower Zone = 1
)

// OutputState is the persistent signal of one pipeline.
type OutputState struct {
	Zone  Zone
	Level output.Level
}

// InitialState is the state at startup and after shutdown.
var InitialState = OutputState{Zone: ZoneNone, Level: output.Low}

// ZoneClassifier maps a row coordinate to a band using boundaries fixed at
// construction.
type ZoneClassifier struct {
	height     int
	boundaries []int
}

// NewZoneClassifier splits a frame of the given height into equal bands. Two
// bands give a single boundary at height/2.
//
// Arguments:
//   - height: Frame height in pixels.
//   - bands: Number of bands, at least 2.
//
// Returns:
//   - *ZoneClassifier: The classifier.
//   - error: if height or bands is out of range.
func NewZoneClassifier(height, bands int) (*ZoneClassifier, error) {
	if bands < 2 {
		return nil, errors.Errorf("need at least 2 bands, got %d", bands)
	}
	if height < bands {
		return nil, errors.Errorf("frame height %d cannot hold %d bands", height, bands)
	}
	boundaries := make([]int, 0, bands-1)
	for i := 1; i < bands; i++ {
		boundaries = append(boundaries, i*height/bands)
	}
	return &ZoneClassifier{height: height, boundaries: boundaries}, nil
}

// NewZoneClassifierWithBoundaries builds a classifier from explicit
// boundaries, which must be strictly increasing and inside (0, height).
func NewZoneClassifierWithBoundaries(height int, boundaries []int) (*ZoneClassifier, error) {
	if len(boundaries) == 0 {
		return nil, errors.New("at least one zone boundary is required")
	}
	prev := 0
	for _, b := range boundaries {
		if b <= prev || b >= height {
			return nil, errors.Errorf("zone boundaries %v must increase strictly inside (0, %d)", boundaries, height)
		}
		prev = b
	}
	return &ZoneClassifier{height: height, boundaries: append([]int(nil), boundaries...)}, nil
}

// Classify returns the band containing row y. A row equal to a boundary
// belongs to the band below it.
func (z *ZoneClassifier) Classify(y int) Zone {
	// Number of boundaries <= y.
	return Zone(sort.SearchInts(z.boundaries, y+1))
}

// Level returns the output level of a zone: High for the top band only.
func (z *ZoneClassifier) Level(zone Zone) output.Level {
	if zone == ZoneUpper {
		return output.High
	}
	return output.Low
}

// State classifies an observation. A missing marker always yields the
// absent state, never the previous one.
func (z *ZoneClassifier) State(obs *Observation) OutputState {
	if obs == nil {
		return InitialState
	}
	zone := z.Classify(obs.Point.Y)
	return OutputState{Zone: zone, Level: z.Level(zone)}
}

// Height returns the frame height the bands were built for.
func (z *ZoneClassifier) Height() int {
	return z.height
}

// Bands returns the number of bands.
func (z *ZoneClassifier) Bands() int {
	return len(z.boundaries) + 1
}

// Boundaries returns a copy of the band boundaries.
func (z *ZoneClassifier) Boundaries() []int {
	return append([]int(nil), z.boundaries...)
}

// Label returns a human-readable zone name for display and logs.
func (z *ZoneClassifier) Label(zone Zone) string {
	switch {
	case zone == ZoneNone:
		return "No marker detected"
	case z.Bands() == 2 && zone == ZoneUpper:
		return "Upper Half (HIGH)"
	case z.Bands() == 2 && zone == ZoneLower:
		return "Lower Half (LOW)"
	default:
		return fmt.Sprintf("Band %d (%s)", int(zone)+1, z.Level(zone))
	}
}
