package output

import (
	"sync"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// SerialMode selects how a level is represented on a serial port.
type SerialMode string

const (
	// SerialModeDTR drives the DTR modem line: High asserts DTR.
	SerialModeDTR SerialMode = "dtr"
	// SerialModeByte writes one ASCII record per cycle: the band digit
	// ('0' for no marker, '1'..'9' for bands) followed by the level
	// ('1' or '0') and a newline.
	SerialModeByte SerialMode = "byte"
)

// serialPort is the subset of serial.Port the line needs.
type serialPort interface {
	Write(p []byte) (int, error)
	SetDTR(dtr bool) error
	Close() error
}

// SerialLine carries the zone signal to a microcontroller over a serial port.
type SerialLine struct {
	mu     sync.Mutex
	name   string
	mode   SerialMode
	port   serialPort
	closed bool
}

// OpenSerial opens a serial port and returns a line in the given mode,
// initially Low.
//
// Arguments:
//   - portName: Device path, e.g. "/dev/ttyUSB0".
//   - baud: Baud rate, e.g. 115200.
//   - mode: SerialModeDTR or SerialModeByte.
func OpenSerial(portName string, baud int, mode SerialMode) (*SerialLine, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", portName)
	}
	line, err := newSerialLine(portName, port, mode)
	if err != nil {
		port.Close()
		return nil, err
	}
	return line, nil
}

func newSerialLine(name string, port serialPort, mode SerialMode) (*SerialLine, error) {
	switch mode {
	case SerialModeDTR, SerialModeByte:
	case "":
		mode = SerialModeByte
	default:
		return nil, errors.Errorf("unknown serial mode %q", mode)
	}
	s := &SerialLine{name: name, mode: mode, port: port}
	if err := s.write(-1, Low); err != nil {
		return nil, err
	}
	return s, nil
}

// Set drives the line without band information.
func (s *SerialLine) Set(level Level) error {
	zone := -1
	if level == High {
		zone = 0
	}
	return s.SetZone(zone, level)
}

// SetZone drives the line and, in byte mode, reports the band index.
func (s *SerialLine) SetZone(zone int, level Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.write(zone, level)
}

func (s *SerialLine) write(zone int, level Level) error {
	if s.mode == SerialModeDTR {
		if err := s.port.SetDTR(bool(level)); err != nil {
			return errors.Wrapf(err, "set DTR on %s", s.name)
		}
		return nil
	}

	if _, err := s.port.Write(encodeRecord(zone, level)); err != nil {
		return errors.Wrapf(err, "write to %s", s.name)
	}
	return nil
}

func encodeRecord(zone int, level Level) []byte {
	band := byte('0')
	if zone >= 0 && zone < 9 {
		band = byte('1' + zone)
	}
	lvl := byte('0')
	if level == High {
		lvl = '1'
	}
	return []byte{band, lvl, '\n'}
}

// Close writes a final Low record and closes the port.
func (s *SerialLine) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	writeErr := s.write(-1, Low)
	closeErr := s.port.Close()
	if writeErr != nil {
		return writeErr
	}
	return closeErr
}

func (s *SerialLine) String() string {
	return "serial:" + s.name
}
