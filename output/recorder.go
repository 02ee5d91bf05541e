package output

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Update is one recorded line write.
type Update struct {
	Zone  int
	Level Level
}

// Recorder is an in-memory line that keeps every update. It backs the "none"
// driver and the tests.
type Recorder struct {
	mu      sync.Mutex
	log     logrus.FieldLogger
	level   Level
	history []Update
	closed  bool
}

// NewRecorder returns a Low recorder. When logger is non-nil every level
// change is logged at Info.
func NewRecorder(logger logrus.FieldLogger) *Recorder {
	return &Recorder{log: logger}
}

// Set records a level without band information.
func (r *Recorder) Set(level Level) error {
	zone := -1
	if level == High {
		zone = 0
	}
	return r.SetZone(zone, level)
}

// SetZone records a level and band.
func (r *Recorder) SetZone(zone int, level Level) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if r.log != nil && level != r.level {
		r.log.WithFields(logrus.Fields{"level": level, "zone": zone}).Info("output line changed")
	}
	r.level = level
	r.history = append(r.history, Update{Zone: zone, Level: level})
	return nil
}

// Level returns the current level.
func (r *Recorder) Level() Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.level
}

// History returns a copy of every recorded write.
func (r *Recorder) History() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Update, len(r.history))
	copy(out, r.history)
	return out
}

// Levels returns the recorded levels in order.
func (r *Recorder) Levels() []Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Level, 0, len(r.history))
	for _, w := range r.history {
		out = append(out, w.Level)
	}
	return out
}

// Closed reports whether Close was called.
func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close returns the recorder to Low.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.level = Low
	r.closed = true
	return nil
}
