package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResolution(t *testing.T) {
	tests := []struct {
		in     string
		width  int
		height int
	}{
		{"VGA", 640, 480},
		{"vga", 640, 480},
		{"720p", 1280, 720},
		{" 1080P ", 1920, 1080},
		{"320x240", 320, 240},
		{"160X120", 160, 120},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, err := ParseResolution(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.width, r.Width)
			assert.Equal(t, tt.height, r.Height)
		})
	}
}

func TestParseResolutionErrors(t *testing.T) {
	for _, in := range []string{"", "huge", "640x", "x480", "0x480", "-640x480", "640x480x3"} {
		_, err := ParseResolution(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestSupportedResolutionsOrdered(t *testing.T) {
	all := GetSupportedResolutions()
	require.NotEmpty(t, all)
	assert.Equal(t, ResolutionTypeQVGA, all[0].Name)
	assert.Equal(t, ResolutionTypeFHD1080p, all[len(all)-1].Name)
	for i := 1; i < len(all); i++ {
		assert.LessOrEqual(t, all[i-1].Width*all[i-1].Height, all[i].Width*all[i].Height)
	}
}

func TestResolutionString(t *testing.T) {
	assert.Equal(t, "VGA (640x480)", resolutions[ResolutionTypeVGA].String())
	assert.Equal(t, "10x20", Resolution{Width: 10, Height: 20}.String())
	assert.Equal(t, 2.07, resolutions[ResolutionTypeFHD1080p].GetMegaPixels())
	assert.Equal(t, 0.0, Resolution{}.GetMegaPixels())
}
