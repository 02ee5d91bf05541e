package source

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Rewinder is implemented by finite sources that can restart from their
// first frame.
type Rewinder interface {
	Rewind()
}

// Looping replays a finite source forever: when the wrapped source is
// exhausted it is rewound and read again.
type Looping struct {
	src    Source
	rounds int
}

// Loop wraps src. A source that cannot rewind is returned unchanged.
func Loop(src Source) Source {
	if _, ok := src.(Rewinder); !ok {
		return src
	}
	return &Looping{src: src}
}

// Read reads the next frame, rewinding once at the end of the sequence.
func (l *Looping) Read(dst *gocv.Mat) error {
	err := l.src.Read(dst)
	if !errors.Is(err, ErrSourceExhausted) {
		return err
	}
	l.src.(Rewinder).Rewind()
	l.rounds++
	return l.src.Read(dst)
}

// Rounds returns how many times the sequence restarted.
func (l *Looping) Rounds() int {
	return l.rounds
}

// Unwrap returns the wrapped source.
func (l *Looping) Unwrap() Source {
	return l.src
}

// Close closes the wrapped source.
func (l *Looping) Close() error {
	return l.src.Close()
}
