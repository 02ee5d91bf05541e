// Package source provides pull-based frame sources for the tracker.
package source

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var (
	// ErrEmptyFrame is a transient acquisition failure: the caller skips the
	// cycle and tries again.
	ErrEmptyFrame = errors.New("failed to grab frame")
	// ErrSourceExhausted means a finite source (video file, directory) has no
	// more frames.
	ErrSourceExhausted = errors.New("source exhausted")
)

// Source is a pull-based frame source. Read blocks until a frame is ready
// or fails.
type Source interface {
	// Read decodes the next frame into dst.
	Read(dst *gocv.Mat) error
	// Close releases the device or file.
	Close() error
}
