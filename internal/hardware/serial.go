package hardware

import (
	"fmt"
	"log/slog"
	"time"

	"go.bug.st/serial"
)

// NoTimeout makes serial reads block until data arrives.
var NoTimeout = serial.NoTimeout

// OpenSerial opens a serial device at baud, 8N1, with the given read
// timeout. A zero timeout blocks reads until data arrives.
func OpenSerial(port string, baud int, timeout time.Duration) (SerialPort, error) {
	p, err := serial.Open(port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", port, err)
	}
	t := timeout
	if t <= 0 {
		t = NoTimeout
	}
	if err := p.SetReadTimeout(t); err != nil {
		p.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", port, err)
	}
	slog.Debug("serial: port opened", "port", port, "baud", baud, "timeout", timeout)
	return p, nil
}
