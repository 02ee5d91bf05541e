// Package output drives the digital output line that carries the zone signal
// to downstream hardware.
//
// Every driver starts inactive (Low), accepts exactly one level per tracking
// cycle, and returns to Low on Close.
package output

import "github.com/pkg/errors"

// Level is the two-valued state of an output line.
type Level bool

const (
	// Low is the inactive level, also the safe default at startup and shutdown.
	Low Level = false
	// High is the active level.
	High Level = true
)

func (l Level) String() string {
	if l {
		return "HIGH"
	}
	return "LOW"
}

// Line is a two-valued sink.
type Line interface {
	// Set drives the line to level.
	Set(level Level) error
	// Close drives the line Low and releases the underlying device.
	Close() error
}

// ZoneLine is implemented by lines that can carry the band index in addition
// to the level. zone is -1 when no marker was observed.
type ZoneLine interface {
	Line
	SetZone(zone int, level Level) error
}

// ErrClosed is returned by Set after Close.
var ErrClosed = errors.New("output line closed")

// Write sets a line, preferring SetZone when the line supports it.
func Write(line Line, zone int, level Level) error {
	if zl, ok := line.(ZoneLine); ok {
		return zl.SetZone(zone, level)
	}
	return line.Set(level)
}
