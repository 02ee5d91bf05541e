package output

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
)

// mockPin records every level written to it.
type mockPin struct {
	levels []gpio.Level
	outErr error
	halted bool
}

func (p *mockPin) Out(l gpio.Level) error {
	if p.outErr != nil {
		return p.outErr
	}
	p.levels = append(p.levels, l)
	return nil
}

func (p *mockPin) Halt() error {
	p.halted = true
	return nil
}

// mockPort is a minimal serial port.
type mockPort struct {
	written    []byte
	dtr        []bool
	writeError error
	closed     bool
}

func (m *mockPort) Write(p []byte) (int, error) {
	if m.writeError != nil {
		return 0, m.writeError
	}
	m.written = append(m.written, p...)
	return len(p), nil
}

func (m *mockPort) SetDTR(dtr bool) error {
	m.dtr = append(m.dtr, dtr)
	return nil
}

func (m *mockPort) Close() error {
	m.closed = true
	return nil
}

func TestGPIOLine_StartsLowAndResetsOnClose(t *testing.T) {
	pin := &mockPin{}
	line, err := newGPIOLine("GPIO17", pin)
	require.NoError(t, err)

	require.NoError(t, line.Set(High))
	require.NoError(t, line.Set(Low))
	require.NoError(t, line.Set(High))
	require.NoError(t, line.Close())

	assert.Equal(t, []gpio.Level{gpio.Low, gpio.High, gpio.Low, gpio.High, gpio.Low}, pin.levels)
	assert.True(t, pin.halted)
	assert.ErrorIs(t, line.Set(High), ErrClosed)
	assert.NoError(t, line.Close(), "second Close is a no-op")
}

func TestGPIOLine_ConfigureFailure(t *testing.T) {
	_, err := newGPIOLine("GPIO4", &mockPin{outErr: errors.New("busy")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GPIO4")
}

func TestSerialLine_ByteMode(t *testing.T) {
	port := &mockPort{}
	line, err := newSerialLine("/dev/ttyUSB0", port, SerialModeByte)
	require.NoError(t, err)

	require.NoError(t, line.SetZone(0, High))
	require.NoError(t, line.SetZone(1, Low))
	require.NoError(t, line.SetZone(-1, Low))
	require.NoError(t, line.Close())

	assert.Equal(t, "00\n11\n20\n00\n00\n", string(port.written))
	assert.True(t, port.closed)
}

func TestSerialLine_DTRMode(t *testing.T) {
	port := &mockPort{}
	line, err := newSerialLine("/dev/ttyACM0", port, SerialModeDTR)
	require.NoError(t, err)

	require.NoError(t, line.Set(High))
	require.NoError(t, line.Set(Low))
	require.NoError(t, line.Close())

	assert.Equal(t, []bool{false, true, false, false}, port.dtr)
	assert.Empty(t, port.written)
}

func TestSerialLine_Errors(t *testing.T) {
	_, err := newSerialLine("x", &mockPort{}, SerialMode("morse"))
	assert.Error(t, err)

	_, err = newSerialLine("x", &mockPort{writeError: errors.New("unplugged")}, SerialModeByte)
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder(nil)
	assert.Equal(t, Low, rec.Level())

	require.NoError(t, Write(rec, 0, High))
	require.NoError(t, Write(rec, -1, Low))
	assert.Equal(t, []Level{High, Low}, rec.Levels())
	assert.Equal(t, []Update{{Zone: 0, Level: High}, {Zone: -1, Level: Low}}, rec.History())

	require.NoError(t, rec.Close())
	assert.True(t, rec.Closed())
	assert.ErrorIs(t, rec.Set(High), ErrClosed)
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "HIGH", High.String())
	assert.Equal(t, "LOW", Low.String())
}
