//go:build linux

package hardware

import (
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sys/unix"
)

const i2cSlave = 0x0703 // I2C_SLAVE ioctl

// LinuxI2C opens handles on /dev/i2c-<bus> character devices.
type LinuxI2C struct{}

// NewI2C returns the Linux I2C bus opener.
func NewI2C() *LinuxI2C { return &LinuxI2C{} }

// OpenHandle opens the adapter device and fixes the target slave with the
// I2C_SLAVE ioctl. Every handle gets its own fd.
func (LinuxI2C) OpenHandle(bus int, addr uint16) (I2CHandle, error) {
	path := i2cDevPath(bus)
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("i2c: open %s: %w", path, err)
	}
	if err := unix.IoctlSetInt(fd, i2cSlave, int(addr)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("i2c: I2C_SLAVE 0x%02x on %s: %w", addr, path, err)
	}
	slog.Debug("i2c: handle bound", "path", path, "addr", fmt.Sprintf("0x%02x", addr), "fd", fd)
	return &i2cHandle{fd: fd, addr: addr}, nil
}

type i2cHandle struct {
	mu   sync.Mutex
	fd   int
	addr uint16
}

func (h *i2cHandle) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fd < 0 {
		return 0, fmt.Errorf("i2c: read 0x%02x: handle closed", h.addr)
	}
	n, err := unix.Read(h.fd, p)
	if err != nil {
		return 0, fmt.Errorf("i2c: read 0x%02x: %w", h.addr, err)
	}
	return n, nil
}

func (h *i2cHandle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fd < 0 {
		return 0, fmt.Errorf("i2c: write 0x%02x: handle closed", h.addr)
	}
	n, err := unix.Write(h.fd, p)
	if err != nil {
		return 0, fmt.Errorf("i2c: write 0x%02x: %w", h.addr, err)
	}
	return n, nil
}

func (h *i2cHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fd < 0 {
		return nil
	}
	err := unix.Close(h.fd)
	h.fd = -1
	return err
}

var _ I2CBus = LinuxI2C{}
