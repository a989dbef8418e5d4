package main

import (
	"log/slog"
	"time"

	"github.com/micro-nova/piblinker-go/internal/hardware"
)

// Simulated shield readings for --mock.
const (
	simADC  = 512
	simPin  = 1
	simTemp = 47.5
)

// simBus is an I2C bus whose devices always report the same muxed sample.
type simBus struct{}

func newSimBus() simBus { return simBus{} }

func (simBus) OpenHandle(bus int, addr uint16) (hardware.I2CHandle, error) {
	return &simHandle{addr: addr}, nil
}

type simHandle struct {
	addr uint16
	off  int
}

func (h *simHandle) Read(p []byte) (int, error) {
	sample := [2]byte{byte(simPin<<7 | simADC>>8), byte(simADC & 0xFF)}
	for i := range p {
		p[i] = sample[h.off%2]
		h.off++
	}
	return len(p), nil
}

func (h *simHandle) Write(p []byte) (int, error) {
	slog.Debug("sim: i2c write", "addr", h.addr, "bytes", p)
	return len(p), nil
}

func (h *simHandle) Close() error { return nil }

// simOpener returns a mock serial port that answers like an activated shield.
func simOpener(port string, baud int, timeout time.Duration) (hardware.SerialPort, error) {
	return hardware.NewMockSerial(func(written []byte) []byte {
		switch string(written) {
		case "O":
			return []byte("OK")
		case "2":
			return []byte("512\r\n")
		case "1":
			return []byte("1\r\n")
		}
		return nil
	}), nil
}
