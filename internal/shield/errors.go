package shield

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceBusy marks an Open of an address that is already open.
	ErrDeviceBusy = errors.New("shield: device already open")
	// ErrUnknownDevice marks an operation on an address that is not open.
	ErrUnknownDevice = errors.New("shield: device not open")
	// ErrBadAddress marks an address that does not fit in 7 bits.
	ErrBadAddress = errors.New("shield: not a 7-bit address")
)

// FrameError is returned when values or bytes do not fit a Layout.
type FrameError struct {
	Layout string
	Reason string
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("shield: frame %s: %s", e.Layout, e.Reason)
}

// IOError wraps a transport failure on an open device.
type IOError struct {
	Op   string
	Addr uint16
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("shield: %s 0x%02x: %v", e.Op, e.Addr, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IsRecoverable reports whether err is registry misuse (busy or unknown
// device, bad address or frame) rather than a transport fault.
func IsRecoverable(err error) bool {
	var fe *FrameError
	return errors.Is(err, ErrDeviceBusy) || errors.Is(err, ErrUnknownDevice) ||
		errors.Is(err, ErrBadAddress) || errors.As(err, &fe)
}
