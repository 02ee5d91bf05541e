// Package controller - Contour screening by area and shape.
package controller

import "github.com/nvr-ai/go-zonetrack/images"

// AreaBand is an inclusive [Min, Max] range of contour areas.
type AreaBand struct {
	Min float64
	Max float64
}

// Contains reports whether area lies inside the band, bounds included.
func (b AreaBand) Contains(area float64) bool {
	return area >= b.Min && area <= b.Max
}

// FilterByArea keeps the regions whose area lies in band, preserving
// discovery order.
//
// Arguments:
//   - regions: Candidates in discovery order.
//   - band: Inclusive area range.
//
// Returns:
//   - []images.Region: The survivors, in the same relative order.
func FilterByArea(regions []images.Region, band AreaBand) []images.Region {
	kept := make([]images.Region, 0, len(regions))
	for _, r := range regions {
		if band.Contains(r.Area) {
			kept = append(kept, r)
		}
	}
	return kept
}

// FilterByShape keeps the regions whose area lies in band and whose bounding
// box is elongated: height/width strictly greater than aspectMin. Near-square
// blobs are rejected in favour of stick-like shapes.
func FilterByShape(regions []images.Region, band AreaBand, aspectMin float64) []images.Region {
	kept := make([]images.Region, 0, len(regions))
	for _, r := range regions {
		if band.Contains(r.Area) && r.Aspect > aspectMin {
			kept = append(kept, r)
		}
	}
	return kept
}
