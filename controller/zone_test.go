package controller

import (
	"image"
	"testing"

	"github.com/nvr-ai/go-zonetrack/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZoneClassifierTwoBands(t *testing.T) {
	z, err := NewZoneClassifier(480, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{240}, z.Boundaries())

	tests := []struct {
		y    int
		want Zone
	}{
		{0, ZoneUpper},
		{239, ZoneUpper},
		{240, ZoneLower},
		{479, ZoneLower},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, z.Classify(tt.y), "y=%d", tt.y)
	}
}

func TestZoneClassifierOddHeight(t *testing.T) {
	z, err := NewZoneClassifier(121, 2)
	require.NoError(t, err)
	assert.Equal(t, ZoneUpper, z.Classify(59))
	assert.Equal(t, ZoneLower, z.Classify(60))
}

func TestZoneClassifierState(t *testing.T) {
	z, err := NewZoneClassifier(120, 2)
	require.NoError(t, err)

	assert.Equal(t, InitialState, z.State(nil))
	assert.Equal(t, OutputState{Zone: ZoneUpper, Level: output.High},
		z.State(&Observation{Point: image.Pt(5, 10)}))
	assert.Equal(t, OutputState{Zone: ZoneLower, Level: output.Low},
		z.State(&Observation{Point: image.Pt(5, 60)}))
}

func TestZoneClassifierBands(t *testing.T) {
	z, err := NewZoneClassifier(300, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, z.Bands())
	assert.Equal(t, []int{100, 200}, z.Boundaries())

	assert.Equal(t, Zone(0), z.Classify(99))
	assert.Equal(t, Zone(1), z.Classify(100))
	assert.Equal(t, Zone(2), z.Classify(250))

	assert.Equal(t, output.High, z.Level(0))
	assert.Equal(t, output.Low, z.Level(1))
	assert.Equal(t, output.Low, z.Level(2))
	assert.Equal(t, "Band 2 (LOW)", z.Label(1))
}

func TestZoneClassifierExplicitBoundaries(t *testing.T) {
	z, err := NewZoneClassifierWithBoundaries(100, []int{30})
	require.NoError(t, err)
	assert.Equal(t, ZoneUpper, z.Classify(29))
	assert.Equal(t, ZoneLower, z.Classify(30))

	for _, bad := range [][]int{nil, {0}, {100}, {50, 50}, {60, 40}} {
		_, err := NewZoneClassifierWithBoundaries(100, bad)
		assert.Error(t, err, "boundaries %v", bad)
	}
}

func TestZoneClassifierInvalid(t *testing.T) {
	_, err := NewZoneClassifier(100, 1)
	assert.Error(t, err)
	_, err = NewZoneClassifier(1, 2)
	assert.Error(t, err)
}

func TestZoneLabels(t *testing.T) {
	z, err := NewZoneClassifier(120, 2)
	require.NoError(t, err)
	assert.Equal(t, "No marker detected", z.Label(ZoneNone))
	assert.Equal(t, "Upper Half (HIGH)", z.Label(ZoneUpper))
	assert.Equal(t, "Lower Half (LOW)", z.Label(ZoneLower))
}
