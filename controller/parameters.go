// Package controller - Runtime-tunable thresholds shared with the control surface.
package controller

import (
	"math"
	"sync"

	"github.com/pkg/errors"
)

// Parameter names understood by the pipeline.
const (
	ParamMotionSensitivity = "motion_sensitivity"
	ParamBrightnessCutoff  = "brightness_cutoff"
	ParamMotionAreaMin     = "motion_area_min"
	ParamMotionAreaMax     = "motion_area_max"
	ParamBrightAreaMin     = "bright_area_min"
	ParamBrightAreaMax     = "bright_area_max"
	ParamAspectMin         = "aspect_min"
	ParamCannyLow          = "canny_low"
	ParamCannyHigh         = "canny_high"
)

// ErrUnknownParameter is returned when a name is not registered in the store.
var ErrUnknownParameter = errors.New("unknown parameter")

// Parameter is one named numeric threshold with its allowed range.
type Parameter struct {
	Name  string  `yaml:"name"`
	Value float64 `yaml:"value"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	// Scale maps the value onto an integer trackbar position (pos = value*Scale).
	Scale float64 `yaml:"scale"`
}

func (p Parameter) clamp(v float64) float64 {
	if math.IsNaN(v) {
		return p.Value
	}
	return math.Min(math.Max(v, p.Min), p.Max)
}

// Thresholds is a consistent snapshot of every tunable, read once per cycle.
type Thresholds struct {
	MotionSensitivity float64
	BrightnessCutoff  float64
	MotionArea        AreaBand
	BrightArea        AreaBand
	AspectMin         float64
	CannyLow          float64
	CannyHigh         float64
}

// Parameters is the parameter store. It is safe for concurrent use so a
// control surface and one or more pipelines can share a single store.
type Parameters struct {
	mu     sync.RWMutex
	values map[string]*Parameter
	order  []string
}

// NewParameters builds a store from parameter definitions. Each initial value
// is clamped to its range. Later definitions with the same name replace
// earlier ones.
func NewParameters(defs ...Parameter) *Parameters {
	ps := &Parameters{values: make(map[string]*Parameter, len(defs))}
	for _, d := range defs {
		if d.Max < d.Min {
			d.Min, d.Max = d.Max, d.Min
		}
		if d.Scale == 0 {
			d.Scale = 1
		}
		d.Value = d.clamp(d.Value)
		if _, exists := ps.values[d.Name]; !exists {
			ps.order = append(ps.order, d.Name)
		}
		def := d
		ps.values[d.Name] = &def
	}
	return ps
}

// DefaultIRParameters returns the thresholds of the single-camera IR tracker.
func DefaultIRParameters() []Parameter {
	return []Parameter{
		{Name: ParamMotionSensitivity, Value: 25, Min: 0, Max: 255},
		{Name: ParamBrightnessCutoff, Value: 200, Min: 0, Max: 255},
		{Name: ParamMotionAreaMin, Value: 100, Min: 0, Max: 1e6},
		{Name: ParamMotionAreaMax, Value: 1e6, Min: 0, Max: 1e6},
		{Name: ParamBrightAreaMin, Value: 50, Min: 0, Max: 1e6},
		{Name: ParamBrightAreaMax, Value: 1e6, Min: 0, Max: 1e6},
	}
}

// DefaultBrightnessParameters returns the thresholds of the brightness-only
// tracker. The minimum area 51 is the inclusive form of "area > 50".
func DefaultBrightnessParameters() []Parameter {
	return []Parameter{
		{Name: ParamBrightnessCutoff, Value: 200, Min: 0, Max: 255},
		{Name: ParamBrightAreaMin, Value: 51, Min: 0, Max: 1e6},
		{Name: ParamBrightAreaMax, Value: 1e6, Min: 0, Max: 1e6},
	}
}

// DefaultDrumstickParameters returns the thresholds of the edge+motion
// drumstick tracker. The area band 101..4999 is the inclusive form of the
// exclusive band (100, 5000).
func DefaultDrumstickParameters() []Parameter {
	return []Parameter{
		{Name: ParamMotionSensitivity, Value: 30, Min: 0, Max: 255},
		{Name: ParamCannyLow, Value: 50, Min: 0, Max: 255},
		{Name: ParamCannyHigh, Value: 150, Min: 0, Max: 255},
		{Name: ParamMotionAreaMin, Value: 101, Min: 0, Max: 1e5},
		{Name: ParamMotionAreaMax, Value: 4999, Min: 0, Max: 1e5},
		{Name: ParamAspectMin, Value: 2, Min: 0, Max: 20, Scale: 10},
	}
}

// Get returns the current value of a parameter.
func (ps *Parameters) Get(name string) (float64, error) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	p, ok := ps.values[name]
	if !ok {
		return 0, errors.Wrap(ErrUnknownParameter, name)
	}
	return p.Value, nil
}

// Set updates a parameter, clamping to its range, and returns the stored
// value. The change is seen by the next cycle.
func (ps *Parameters) Set(name string, value float64) (float64, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	p, ok := ps.values[name]
	if !ok {
		return 0, errors.Wrap(ErrUnknownParameter, name)
	}
	p.Value = p.clamp(value)
	return p.Value, nil
}

// Names returns parameter names in registration order.
func (ps *Parameters) Names() []string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	names := make([]string, len(ps.order))
	copy(names, ps.order)
	return names
}

// Definitions returns copies of every parameter in registration order.
func (ps *Parameters) Definitions() []Parameter {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	defs := make([]Parameter, 0, len(ps.order))
	for _, name := range ps.order {
		defs = append(defs, *ps.values[name])
	}
	return defs
}

// Snapshot returns every current value keyed by name.
func (ps *Parameters) Snapshot() map[string]float64 {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	out := make(map[string]float64, len(ps.values))
	for name, p := range ps.values {
		out[name] = p.Value
	}
	return out
}

// Thresholds reads every tunable under one lock. Missing area bounds are
// unbounded, a missing aspect minimum is 0.
func (ps *Parameters) Thresholds() Thresholds {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	value := func(name string, fallback float64) float64 {
		if p, ok := ps.values[name]; ok {
			return p.Value
		}
		return fallback
	}

	return Thresholds{
		MotionSensitivity: value(ParamMotionSensitivity, 25),
		BrightnessCutoff:  value(ParamBrightnessCutoff, 200),
		MotionArea: AreaBand{
			Min: value(ParamMotionAreaMin, 0),
			Max: value(ParamMotionAreaMax, math.MaxFloat64),
		},
		BrightArea: AreaBand{
			Min: value(ParamBrightAreaMin, 0),
			Max: value(ParamBrightAreaMax, math.MaxFloat64),
		},
		AspectMin: value(ParamAspectMin, 0),
		CannyLow:  value(ParamCannyLow, 50),
		CannyHigh: value(ParamCannyHigh, 150),
	}
}
