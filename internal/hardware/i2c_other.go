//go:build !linux

package hardware

import (
	"errors"
	"fmt"
)

// LinuxI2C is unavailable off Linux; every open fails.
type LinuxI2C struct{}

// NewI2C returns an I2C opener that always fails on this platform.
func NewI2C() *LinuxI2C { return &LinuxI2C{} }

func (LinuxI2C) OpenHandle(bus int, addr uint16) (I2CHandle, error) {
	return nil, fmt.Errorf("i2c: open %s: %w", i2cDevPath(bus), errors.ErrUnsupported)
}
