// Package uart implements the shield's serial command channel: the
// probe-until-acknowledged activation handshake and single-byte register
// reads with newline-terminated ASCII replies.
package uart

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/micro-nova/piblinker-go/internal/hardware"
)

// Single-byte commands understood by the shield firmware.
const (
	cmdProbe byte = 'O' // unsupported; a listening device answers it
	cmdADC   byte = '2'
	cmdPin   byte = '1'
)

const (
	probeTick   = 50 * time.Millisecond
	probeTicks  = 100 // ticks spent on cmdProbe before falling back to cmdADC
	maxTicks    = 101
	ackReply    = "OK"
	maxLineSize = 256
)

// Target selects the register read by Read.
type Target int

const (
	ADC Target = iota
	Pin
)

func (t Target) command() (byte, bool) {
	switch t {
	case ADC:
		return cmdADC, true
	case Pin:
		return cmdPin, true
	}
	return 0, false
}

func (t Target) String() string {
	switch t {
	case ADC:
		return "adc"
	case Pin:
		return "pin"
	}
	return fmt.Sprintf("Target(%d)", int(t))
}

// Activation is the outcome of the activation handshake.
type Activation int

const (
	NoReply Activation = iota
	Activated
	AlreadyActive
)

func (a Activation) String() string {
	switch a {
	case Activated:
		return "activated"
	case AlreadyActive:
		return "already active"
	default:
		return "no reply"
	}
}

// SerialInitError is returned when the serial port cannot be opened.
type SerialInitError struct {
	Port string
	Err  error
}

func (e *SerialInitError) Error() string {
	return fmt.Sprintf("uart: init %s: %v", e.Port, e.Err)
}

func (e *SerialInitError) Unwrap() error { return e.Err }

// Opener opens a serial device. hardware.OpenSerial is the default.
type Opener func(port string, baud int, timeout time.Duration) (hardware.SerialPort, error)

// Option configures a Channel.
type Option func(*Channel)

// WithOpener replaces the serial device opener.
func WithOpener(o Opener) Option {
	return func(c *Channel) { c.open = o }
}

// WithLogger sets the channel logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) { c.log = l }
}

// Channel is an open serial session with the shield. It is not safe for
// concurrent use.
type Channel struct {
	port    hardware.SerialPort
	name    string
	timeout time.Duration
	open    Opener
	log     *slog.Logger
}

// Open binds a serial session to port at baud. timeout bounds each line
// read; zero blocks.
func Open(port string, baud int, timeout time.Duration, opts ...Option) (*Channel, error) {
	c := &Channel{
		name:    port,
		timeout: timeout,
		open:    hardware.OpenSerial,
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	if strings.TrimSpace(port) == "" {
		return nil, &SerialInitError{Port: port, Err: fmt.Errorf("empty port name")}
	}
	if baud <= 0 {
		return nil, &SerialInitError{Port: port, Err: fmt.Errorf("invalid baud rate %d", baud)}
	}
	p, err := c.open(port, baud, timeout)
	if err != nil {
		return nil, &SerialInitError{Port: port, Err: err}
	}
	c.port = p
	c.log.Info("uart: session opened", "port", port, "baud", baud, "timeout", timeout)
	return c, nil
}

// Activate runs the activation handshake. Every probe tick it writes a
// probe byte and waits up to 50ms for a reply. A two-byte "OK" means the
// device was just activated; any other two-byte reply means it was already
// active. After 100 silent ticks the probe switches from the unsupported
// 'O' to the supported '2' to catch a device that is active but does not
// ack; after 101 ticks Activate gives up and returns NoReply with a nil
// error.
func (c *Channel) Activate(ctx context.Context) (Activation, error) {
	if c.port == nil {
		return NoReply, fmt.Errorf("uart: activate: channel closed")
	}
	if err := c.port.SetReadTimeout(probeTick); err != nil {
		return NoReply, fmt.Errorf("uart: activate: set probe timeout: %w", err)
	}
	defer func() {
		if err := c.port.SetReadTimeout(c.readTimeout()); err != nil {
			c.log.Warn("uart: restore read timeout failed", "port", c.name, "err", err)
		}
	}()
	if err := c.port.ResetInputBuffer(); err != nil {
		return NoReply, fmt.Errorf("uart: activate: flush input: %w", err)
	}

	reply := make([]byte, 0, len(ackReply))
	buf := make([]byte, len(ackReply))
	for tick := 0; tick < maxTicks; tick++ {
		if err := ctx.Err(); err != nil {
			return NoReply, err
		}
		probe := cmdProbe
		if tick >= probeTicks {
			probe = cmdADC
		}
		if _, err := c.port.Write([]byte{probe}); err != nil {
			return NoReply, fmt.Errorf("uart: activate: write probe: %w", err)
		}
		n, err := c.port.Read(buf[:len(ackReply)-len(reply)])
		if err != nil {
			return NoReply, fmt.Errorf("uart: activate: read reply: %w", err)
		}
		reply = append(reply, buf[:n]...)
		if len(reply) < len(ackReply) {
			continue
		}
		// Drop the rest of a register reply so the next Read starts clean.
		if err := c.port.ResetInputBuffer(); err != nil {
			return NoReply, fmt.Errorf("uart: activate: flush input: %w", err)
		}
		result := AlreadyActive
		if string(reply) == ackReply {
			result = Activated
		}
		c.log.Info("uart: handshake complete", "port", c.name, "result", result.String(), "ticks", tick+1)
		return result, nil
	}
	c.log.Warn("uart: no reply to activation probe", "port", c.name, "ticks", maxTicks)
	return NoReply, nil
}

// Read sends the command for target and returns one reply line without its
// trailing line terminator. A read timeout ends the line early.
func (c *Channel) Read(target Target) (string, error) {
	if c.port == nil {
		return "", fmt.Errorf("uart: read %s: channel closed", target)
	}
	cmd, ok := target.command()
	if !ok {
		return "", fmt.Errorf("uart: read: unknown target %v", target)
	}
	if _, err := c.port.Write([]byte{cmd}); err != nil {
		return "", fmt.Errorf("uart: read %s: write command: %w", target, err)
	}
	line, err := c.readLine()
	if err != nil {
		return "", fmt.Errorf("uart: read %s: %w", target, err)
	}
	return line, nil
}

// ReadADC reads and parses the ADC register.
func (c *Channel) ReadADC() (int, error) {
	return c.readInt(ADC)
}

// ReadPin reads and parses the PIN register.
func (c *Channel) ReadPin() (int, error) {
	return c.readInt(Pin)
}

func (c *Channel) readInt(target Target) (int, error) {
	line, err := c.Read(target)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, fmt.Errorf("uart: read %s: parse %q: %w", target, line, err)
	}
	return v, nil
}

func (c *Channel) readLine() (string, error) {
	var line []byte
	b := make([]byte, 1)
	for len(line) < maxLineSize {
		n, err := c.port.Read(b)
		if err != nil {
			return "", err
		}
		if n == 0 {
			break
		}
		if b[0] == '\n' {
			break
		}
		line = append(line, b[0])
	}
	return strings.TrimRight(string(line), "\r"), nil
}

func (c *Channel) readTimeout() time.Duration {
	if c.timeout <= 0 {
		return hardware.NoTimeout
	}
	return c.timeout
}

// Close releases the serial port. Closing twice is a no-op.
func (c *Channel) Close() error {
	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.port = nil
	if err != nil {
		return fmt.Errorf("uart: close %s: %w", c.name, err)
	}
	c.log.Info("uart: session closed", "port", c.name)
	return nil
}
