// Package controller - Preview windows with the parameter control surface.
package controller

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// Key codes that end the loop.
const (
	keyQuit   = 'q'
	keyEscape = 27
)

// Preview is a Display backed by OpenCV windows: one frame window and one
// mask window per camera, plus a control window carrying one trackbar per
// parameter. Trackbar positions are pushed into the parameter store once per
// Poll, so a pipeline sees a change on its next cycle.
//
// OpenCV windows must be driven from the goroutine running Run.
type Preview struct {
	title     string
	params    *Parameters
	showMask  bool
	control   *gocv.Window
	trackbars map[string]*gocv.Trackbar
	applied   map[string]int
	windows   map[string]*gocv.Window
	log       logrus.FieldLogger
}

// NewPreview opens the control window and binds the trackbars.
//
// Arguments:
//   - title: Control window name.
//   - params: The store to edit; nil disables the trackbars.
//   - showMask: Also display each pipeline's mask.
//   - logger: Parameter changes are logged at Info.
func NewPreview(title string, params *Parameters, showMask bool, logger logrus.FieldLogger) *Preview {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	p := &Preview{
		title:     title,
		params:    params,
		showMask:  showMask,
		trackbars: make(map[string]*gocv.Trackbar),
		applied:   make(map[string]int),
		windows:   make(map[string]*gocv.Window),
		log:       logger,
	}
	if params == nil {
		return p
	}

	p.control = gocv.NewWindow(title)
	for _, def := range params.Definitions() {
		tb := p.control.CreateTrackbar(def.Name, trackbarPosition(def, def.Max))
		pos := trackbarPosition(def, def.Value)
		tb.SetPos(pos)
		p.trackbars[def.Name] = tb
		p.applied[def.Name] = pos
	}
	return p
}

// trackbarPosition maps a value onto the integer trackbar scale.
func trackbarPosition(def Parameter, v float64) int {
	return int(v*def.Scale + 0.5)
}

// Show presents a camera's annotated frame and, optionally, its mask. A
// window that fails to render is logged and skipped.
func (p *Preview) Show(camera string, annotated, mask gocv.Mat) {
	if err := p.window(camera).IMShow(annotated); err != nil {
		p.log.WithError(err).WithField("camera", camera).Warn("preview frame not shown")
	}
	if p.showMask && !mask.Empty() {
		if err := p.window(camera + " mask").IMShow(mask); err != nil {
			p.log.WithError(err).WithField("camera", camera).Warn("preview mask not shown")
		}
	}
}

func (p *Preview) window(name string) *gocv.Window {
	w, ok := p.windows[name]
	if !ok {
		w = gocv.NewWindow(name)
		p.windows[name] = w
	}
	return w
}

// Poll pumps the window events, applies moved trackbars and reports false
// on 'q' or ESC.
func (p *Preview) Poll() bool {
	key := gocv.WaitKey(1)
	p.apply()
	return key != keyQuit && key != keyEscape
}

func (p *Preview) apply() {
	if p.params == nil {
		return
	}
	for _, def := range p.params.Definitions() {
		tb, ok := p.trackbars[def.Name]
		if !ok {
			continue
		}
		pos := tb.GetPos()
		if pos == p.applied[def.Name] {
			continue
		}
		p.applied[def.Name] = pos
		value, err := p.params.Set(def.Name, float64(pos)/def.Scale)
		if err != nil {
			p.log.WithError(err).Warn("trackbar update rejected")
			continue
		}
		p.log.WithFields(logrus.Fields{"parameter": def.Name, "value": value}).Info("parameter changed")
	}
}

// Close destroys every window and returns the first failure.
func (p *Preview) Close() error {
	var first error
	for name, w := range p.windows {
		if err := w.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "close window %s", name)
		}
		delete(p.windows, name)
	}
	if p.control != nil {
		if err := p.control.Close(); err != nil && first == nil {
			first = errors.Wrap(err, "close control window")
		}
		p.control = nil
	}
	return first
}
