package output

import (
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// DefaultPin is the BCM pin the tracker signals on.
const DefaultPin = "GPIO17"

// pinOut is the subset of gpio.PinIO the line needs.
type pinOut interface {
	Out(l gpio.Level) error
	Halt() error
}

// GPIOLine drives a single GPIO pin, active high.
type GPIOLine struct {
	mu     sync.Mutex
	name   string
	pin    pinOut
	closed bool
}

// OpenGPIO initialises the host drivers and claims a pin as an output,
// initially Low.
//
// Arguments:
//   - name: Pin name as known to gpioreg, e.g. "GPIO17".
//
// Returns:
//   - *GPIOLine: The configured line.
//   - error: if the host cannot be initialised or the pin does not exist.
func OpenGPIO(name string) (*GPIOLine, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "periph host init")
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.Errorf("gpio pin %q not found", name)
	}
	return newGPIOLine(name, p)
}

func newGPIOLine(name string, p pinOut) (*GPIOLine, error) {
	if err := p.Out(gpio.Low); err != nil {
		return nil, errors.Wrapf(err, "configure %s as output", name)
	}
	return &GPIOLine{name: name, pin: p}, nil
}

// Set drives the pin.
func (g *GPIOLine) Set(level Level) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if err := g.pin.Out(gpio.Level(level)); err != nil {
		return errors.Wrapf(err, "set %s %s", g.name, level)
	}
	return nil
}

// Close drives the pin Low and halts it. Calling Close twice is a no-op.
func (g *GPIOLine) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	outErr := g.pin.Out(gpio.Low)
	haltErr := g.pin.Halt()
	if outErr != nil {
		return errors.Wrapf(outErr, "reset %s", g.name)
	}
	return haltErr
}

func (g *GPIOLine) String() string {
	return "gpio:" + g.name
}
