// Package images - Named capture resolutions accepted by the camera
// configuration.
package images

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ResolutionType is the common name of a capture resolution.
type ResolutionType string

// Capture resolutions typically offered by USB and CSI cameras.
const (
	ResolutionTypeQVGA     ResolutionType = "QVGA"
	ResolutionTypeVGA      ResolutionType = "VGA"
	ResolutionTypeNHD      ResolutionType = "nHD"
	ResolutionTypeSVGA     ResolutionType = "SVGA"
	ResolutionTypeHD720p   ResolutionType = "720p"
	ResolutionTypeFHD1080p ResolutionType = "1080p"
)

// Resolution is a frame size.
type Resolution struct {
	Name   ResolutionType `json:"name" yaml:"name"`
	Width  int            `json:"width" yaml:"width"`
	Height int            `json:"height" yaml:"height"`
}

// GetMegaPixels returns the pixel count in millions, rounded to two decimals.
func (r Resolution) GetMegaPixels() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return float64(r.Width*r.Height/10_000) / 100
}

func (r Resolution) String() string {
	if r.Name == "" {
		return fmt.Sprintf("%dx%d", r.Width, r.Height)
	}
	return fmt.Sprintf("%s (%dx%d)", r.Name, r.Width, r.Height)
}

var resolutions = map[ResolutionType]Resolution{
	ResolutionTypeQVGA:     {Name: ResolutionTypeQVGA, Width: 320, Height: 240},
	ResolutionTypeVGA:      {Name: ResolutionTypeVGA, Width: 640, Height: 480},
	ResolutionTypeNHD:      {Name: ResolutionTypeNHD, Width: 640, Height: 360},
	ResolutionTypeSVGA:     {Name: ResolutionTypeSVGA, Width: 800, Height: 600},
	ResolutionTypeHD720p:   {Name: ResolutionTypeHD720p, Width: 1280, Height: 720},
	ResolutionTypeFHD1080p: {Name: ResolutionTypeFHD1080p, Width: 1920, Height: 1080},
}

// GetSupportedResolutions returns every named resolution, smallest first.
func GetSupportedResolutions() []Resolution {
	all := make([]Resolution, 0, len(resolutions))
	for _, r := range resolutions {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool {
		pi, pj := all[i].Width*all[i].Height, all[j].Width*all[j].Height
		if pi != pj {
			return pi < pj
		}
		return all[i].Name < all[j].Name
	})
	return all
}

// ParseResolution accepts a resolution name ("VGA", "720p", case-insensitive)
// or explicit dimensions ("640x480").
//
// Arguments:
//   - s: The resolution text.
//
// Returns:
//   - Resolution: The parsed size; Name is empty for explicit dimensions.
//   - error: if s is neither a known name nor valid positive dimensions.
func ParseResolution(s string) (Resolution, error) {
	s = strings.TrimSpace(s)
	for name, r := range resolutions {
		if strings.EqualFold(string(name), s) {
			return r, nil
		}
	}

	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return Resolution{}, errors.Errorf("unknown resolution %q", s)
	}
	width, werr := strconv.Atoi(w)
	height, herr := strconv.Atoi(h)
	if werr != nil || herr != nil || width <= 0 || height <= 0 {
		return Resolution{}, errors.Errorf("invalid resolution %q, want WIDTHxHEIGHT", s)
	}
	return Resolution{Width: width, Height: height}, nil
}
