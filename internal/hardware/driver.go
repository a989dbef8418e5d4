// Package hardware provides the hardware abstraction layer for PiBlinker.
// It defines the PinSet, I2CBus and SerialPort interfaces used by the LED,
// shield, UART and daemon packages, together with the real periph.io / Linux
// implementations and in-memory mocks.
package hardware

import (
	"fmt"
	"io"
	"time"
)

// Level is the logical level of a GPIO line.
type Level int

const (
	Low  Level = 0
	High Level = 1
)

func (l Level) String() string {
	if l == High {
		return "high"
	}
	return "low"
}

// Direction is the configured mode of a GPIO line.
type Direction int

const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	if d == Out {
		return "out"
	}
	return "in"
}

// Edge selects which signal transition fires a watch callback.
type Edge int

const (
	RisingEdge Edge = iota + 1
	FallingEdge
	BothEdges
)

// PinSet owns a set of BCM-numbered GPIO lines.
// Implementations must be safe for concurrent use: edge callbacks run on
// their own goroutines while the caller keeps writing output pins.
type PinSet interface {
	// Configure exports pin and sets its direction. Reconfiguring a pin that
	// is already in the requested direction is a no-op.
	Configure(pin int, dir Direction) error

	// Write drives an output pin. Returns *PinError if the pin was never
	// configured as output.
	Write(pin int, level Level) error

	// Read samples a configured pin.
	Read(pin int) (Level, error)

	// WatchEdge registers callback for edge events on an input pin. Events
	// arriving within debounce of the last accepted event are dropped.
	WatchEdge(pin int, edge Edge, debounce time.Duration, callback func(pin int)) error

	// Cleanup stops every watcher and returns all configured pins to input.
	Cleanup() error
}

// I2CHandle is one direction of an I2C device channel, already bound to a
// slave address.
type I2CHandle interface {
	io.ReadWriteCloser
}

// I2CBus opens address-bound device handles on a numbered adapter.
type I2CBus interface {
	// OpenHandle opens a fresh handle on /dev/i2c-<bus> and binds it to addr.
	OpenHandle(bus int, addr uint16) (I2CHandle, error)
}

// SerialPort is the subset of a serial device used by the UART channel.
type SerialPort interface {
	io.ReadWriteCloser

	// SetReadTimeout bounds each Read. A Read that times out returns 0, nil.
	SetReadTimeout(t time.Duration) error

	// ResetInputBuffer discards unread inbound bytes.
	ResetInputBuffer() error
}

// PinError is returned for operations on invalid or unconfigured pins.
type PinError struct {
	Pin    int
	Op     string
	Reason string
}

func (e *PinError) Error() string {
	return fmt.Sprintf("gpio: %s GPIO%d: %s", e.Op, e.Pin, e.Reason)
}

// pinName returns the periph.io registry name for a BCM pin number.
func pinName(pin int) string {
	return fmt.Sprintf("GPIO%d", pin)
}

// i2cDevPath returns the character device for an I2C adapter number.
func i2cDevPath(bus int) string {
	return fmt.Sprintf("/dev/i2c-%d", bus)
}
