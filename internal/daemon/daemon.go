// Package daemon maps physical button presses on GPIO interrupt lines to
// actions: Go functions, external scripts, or the built-in reboot and
// shutdown commands, each announced with a status LED blink.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/micro-nova/piblinker-go/internal/hardware"
	"github.com/micro-nova/piblinker-go/internal/led"
)

const (
	// DefaultDebounce is the minimum time between accepted presses of one
	// button.
	DefaultDebounce = 300 * time.Millisecond
	// DefaultButton1 and DefaultButton2 are the BCM pins of the two buttons.
	DefaultButton1 = 5
	DefaultButton2 = 6

	statusBlinks = 3
	statusDelay  = 400 * time.Millisecond
)

// Binding attaches an action to a button. Func wins over Script; a Script
// that is not an existing regular file is ignored. An empty binding falls
// back to the button's default.
type Binding struct {
	Pin    int
	Func   Action
	Script string
}

// Config describes the daemon's buttons and command policy.
type Config struct {
	// Button1 defaults to reboot, Button2 to shutdown.
	Button1 Binding
	Button2 Binding

	Debounce  time.Duration
	Privilege Privilege

	// RebootCommand and ShutdownCommand override the power commands.
	RebootCommand   string
	ShutdownCommand string

	// Power, if set, replaces the power commands.
	Power Power
}

// DefaultConfig returns the stock two-button layout.
func DefaultConfig() Config {
	return Config{
		Button1:         Binding{Pin: DefaultButton1},
		Button2:         Binding{Pin: DefaultButton2},
		Debounce:        DefaultDebounce,
		RebootCommand:   DefaultRebootCommand,
		ShutdownCommand: DefaultShutdownCommand,
	}
}

type button struct {
	name   string
	pin    int
	kind   string
	action Action
}

// Daemon watches button pins and dispatches their actions.
type Daemon struct {
	pins     hardware.PinSet
	leds     *led.Controller
	priv     Privilege
	run      Runner
	debounce time.Duration
	reboot   []string
	shutdown []string
	power    Power
	buttons  []button
	errc     chan error
	log      *slog.Logger
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithRunner replaces the external command runner.
func WithRunner(r Runner) Option {
	return func(d *Daemon) { d.run = r }
}

// WithLogger sets the daemon logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Daemon) { d.log = l }
}

// New resolves the button bindings. They cannot change afterwards.
func New(pins hardware.PinSet, leds *led.Controller, cfg Config, opts ...Option) (*Daemon, error) {
	if cfg.Button1.Pin == cfg.Button2.Pin {
		return nil, fmt.Errorf("daemon: both buttons on GPIO%d", cfg.Button1.Pin)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.RebootCommand == "" {
		cfg.RebootCommand = DefaultRebootCommand
	}
	if cfg.ShutdownCommand == "" {
		cfg.ShutdownCommand = DefaultShutdownCommand
	}
	reboot, err := splitCommand(cfg.RebootCommand)
	if err != nil {
		return nil, err
	}
	shutdown, err := splitCommand(cfg.ShutdownCommand)
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		pins:     pins,
		leds:     leds,
		priv:     cfg.Privilege,
		run:      execRunner,
		debounce: cfg.Debounce,
		reboot:   reboot,
		shutdown: shutdown,
		power:    cfg.Power,
		errc:     make(chan error, 1),
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	d.buttons = []button{
		d.resolve("button1", cfg.Button1, "reboot", d.Reboot),
		d.resolve("button2", cfg.Button2, "shutdown", d.Shutdown),
	}
	return d, nil
}

func (d *Daemon) resolve(name string, b Binding, defKind string, def Action) button {
	switch {
	case b.Func != nil:
		return button{name: name, pin: b.Pin, kind: "func", action: b.Func}
	case isScript(b.Script):
		script := b.Script
		return button{name: name, pin: b.Pin, kind: "script", action: func(ctx context.Context) error {
			return d.RunScript(ctx, script)
		}}
	case b.Script != "":
		d.log.Warn("daemon: script not found, using default action",
			"button", name, "script", b.Script, "action", defKind)
	}
	return button{name: name, pin: b.Pin, kind: defKind, action: def}
}

// Reboot blinks green and reboots the system.
func (d *Daemon) Reboot(ctx context.Context) error {
	d.status(led.Green)
	if d.power != nil {
		return d.power.Reboot(ctx)
	}
	return d.shellRun(ctx, d.reboot)
}

// Shutdown blinks red and halts the system.
func (d *Daemon) Shutdown(ctx context.Context) error {
	d.status(led.Red)
	if d.power != nil {
		return d.power.PowerOff(ctx)
	}
	return d.shellRun(ctx, d.shutdown)
}

// RunScript blinks blue and runs an executable.
func (d *Daemon) RunScript(ctx context.Context, path string) error {
	d.status(led.Blue)
	return d.shellRun(ctx, []string{path})
}

func (d *Daemon) status(c led.Color) {
	if err := d.leds.Blink(c, statusBlinks, statusDelay); err != nil {
		d.log.Warn("daemon: status blink failed", "color", c.String(), "err", err)
	}
}

// Arm configures the button pins and registers their rising-edge
// callbacks. Actions run with ctx.
func (d *Daemon) Arm(ctx context.Context) error {
	for _, b := range d.buttons {
		if err := d.pins.Configure(b.pin, hardware.In); err != nil {
			return fmt.Errorf("daemon: setup %s: %w", b.name, err)
		}
		cb := func(pin int) { d.dispatch(ctx, b) }
		if err := d.pins.WatchEdge(b.pin, hardware.RisingEdge, d.debounce, cb); err != nil {
			return fmt.Errorf("daemon: watch %s: %w", b.name, err)
		}
		d.log.Info("daemon: button armed", "button", b.name, "pin", b.pin, "action", b.kind)
	}
	return nil
}

// dispatch runs on the edge-watcher goroutine.
func (d *Daemon) dispatch(ctx context.Context, b button) {
	level, err := d.pins.Read(b.pin)
	if err != nil || level != hardware.High {
		d.log.Debug("daemon: ignoring glitch", "button", b.name, "pin", b.pin)
		return
	}
	d.log.Info("daemon: button pressed", "button", b.name, "pin", b.pin, "action", b.kind)
	if err := b.action(ctx); err != nil {
		err = fmt.Errorf("daemon: %s action: %w", b.name, err)
		select {
		case d.errc <- err:
		default:
		}
	}
}

// Release turns the LEDs off and returns every pin.
func (d *Daemon) Release() error {
	errLED := d.leds.AllOff()
	errPins := d.pins.Cleanup()
	return errors.Join(errLED, errPins)
}

// Run arms the buttons and blocks until ctx is cancelled or an action
// fails. Pins are released on every return path. Cancellation is a clean
// exit and returns nil.
func (d *Daemon) Run(ctx context.Context) error {
	defer func() {
		if rerr := d.Release(); rerr != nil {
			d.log.Warn("daemon: release failed", "err", rerr)
		}
		d.log.Info("daemon: stopped")
	}()
	if err := d.Arm(ctx); err != nil {
		return err
	}
	d.log.Info("daemon: running")
	select {
	case <-ctx.Done():
		return nil
	case err := <-d.errc:
		d.log.Error("daemon: action failed", "err", err)
		return err
	}
}
