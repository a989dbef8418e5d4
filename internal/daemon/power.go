package daemon

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Power performs the built-in reboot and shutdown actions. A nil Power in
// Config runs RebootCommand and ShutdownCommand instead.
type Power interface {
	Reboot(ctx context.Context) error
	PowerOff(ctx context.Context) error
}

const (
	logindDest    = "org.freedesktop.login1"
	logindPath    = dbus.ObjectPath("/org/freedesktop/login1")
	logindManager = "org.freedesktop.login1.Manager"
)

// LogindPower asks systemd-logind over the system bus to reboot or power
// off. The caller must be allowed by polkit.
type LogindPower struct {
	conn *dbus.Conn
}

// NewLogindPower connects to the system bus.
func NewLogindPower() (*LogindPower, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("daemon: connect system bus: %w", err)
	}
	return &LogindPower{conn: conn}, nil
}

func (p *LogindPower) call(ctx context.Context, method string) error {
	obj := p.conn.Object(logindDest, logindPath)
	// false: not interactive, fail instead of prompting for authentication.
	call := obj.CallWithContext(ctx, logindManager+"."+method, 0, false)
	if call.Err != nil {
		return fmt.Errorf("daemon: logind %s: %w", method, call.Err)
	}
	return nil
}

// Reboot calls Manager.Reboot.
func (p *LogindPower) Reboot(ctx context.Context) error { return p.call(ctx, "Reboot") }

// PowerOff calls Manager.PowerOff.
func (p *LogindPower) PowerOff(ctx context.Context) error { return p.call(ctx, "PowerOff") }

// Close releases the bus connection.
func (p *LogindPower) Close() error { return p.conn.Close() }
