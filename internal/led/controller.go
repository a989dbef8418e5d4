package led

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/micro-nova/piblinker-go/internal/hardware"
)

// Mode is a requested LED state. Off and On double as the explicit levels
// 0 and 1.
type Mode int

const (
	Off Mode = iota
	On
	Toggle
)

const (
	// DefaultBlinks is the number of on/off cycles Notify flashes.
	DefaultBlinks = 3
	// DefaultNotifyDelay is the pause between Notify level flips.
	DefaultNotifyDelay = 500 * time.Millisecond
)

func (m Mode) String() string {
	switch m {
	case Off:
		return "OFF"
	case On:
		return "ON"
	case Toggle:
		return "TOGGLE"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts off, on, toggle (any case) or 0, 1, 2.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OFF", "0":
		return Off, true
	case "ON", "1":
		return On, true
	case "TOGGLE", "2":
		return Toggle, true
	}
	return 0, false
}

// Controller drives the LEDs of a Palette. A single last-applied level is
// shared by all colours; Toggle flips it regardless of which colour set it.
// Controller is safe for concurrent use.
type Controller struct {
	mu      sync.Mutex
	pins    hardware.PinSet
	palette Palette
	last    hardware.Level
	sleep   func(time.Duration)
	log     *slog.Logger

	notifyBlinks int
	notifyDelay  time.Duration
}

// Option configures a Controller.
type Option func(*Controller)

// WithSleep replaces time.Sleep for blink timing.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Controller) { c.sleep = sleep }
}

// WithNotify overrides the blink count and delay used by Notify.
func WithNotify(blinks int, delay time.Duration) Option {
	return func(c *Controller) {
		c.notifyBlinks = blinks
		c.notifyDelay = delay
	}
}

// WithLogger sets the logger used for notifications and diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// New configures every palette pin as output and returns a controller.
func New(pins hardware.PinSet, palette Palette, opts ...Option) (*Controller, error) {
	c := &Controller{
		pins:    pins,
		palette: palette,
		sleep:   time.Sleep,
		log:     slog.Default(),

		notifyBlinks: DefaultBlinks,
		notifyDelay:  DefaultNotifyDelay,
	}
	for _, o := range opts {
		o(c)
	}
	for _, pin := range palette.AllPins() {
		if err := pins.Configure(pin, hardware.Out); err != nil {
			return nil, fmt.Errorf("led: setup pin %d: %w", pin, err)
		}
	}
	return c, nil
}

// Palette returns the pin assignment in use.
func (c *Controller) Palette() Palette { return c.palette }

// Last returns the last level applied by Set or Blink.
func (c *Controller) Last() hardware.Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Set applies mode to every pin of color. Unknown colours are ignored.
func (c *Controller) Set(color Color, mode Mode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	pins, ok := c.palette.Pins(color)
	if !ok {
		c.log.Debug("led: ignoring unknown colour", "color", int(color))
		return nil
	}
	return c.set(color, pins, mode)
}

// set must be called with c.mu held.
func (c *Controller) set(color Color, pins []int, mode Mode) error {
	var level hardware.Level
	switch mode {
	case Off:
		level = hardware.Low
	case On:
		level = hardware.High
	case Toggle:
		level = (c.last + 1) % 2
	default:
		return fmt.Errorf("led: invalid mode %v for %s", mode, color)
	}
	c.last = level
	for _, pin := range pins {
		if err := c.pins.Write(pin, level); err != nil {
			return fmt.Errorf("led: set %s: %w", color, err)
		}
	}
	return nil
}

// Blink flashes color for times on/off cycles. It writes levels 0,1,0,...
// 2*times+1 times, sleeping delay after each, so the LED always ends off.
// Blink blocks for the whole sequence.
func (c *Controller) Blink(color Color, times int, delay time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	pins, ok := c.palette.Pins(color)
	if !ok {
		c.log.Debug("led: ignoring blink of unknown colour", "color", int(color))
		return nil
	}
	mode := Off
	for count := 0; count <= times*2; count++ {
		if err := c.set(color, pins, mode); err != nil {
			return err
		}
		c.sleep(delay)
		mode = (mode + 1) % 2
	}
	return nil
}

// Notify logs text at the colour's level and then blinks it, DefaultBlinks
// times unless overridden with WithNotify.
func (c *Controller) Notify(color Color, text string) error {
	level, ok := notifyLevels[color]
	if !ok {
		c.log.Warn("led: invalid led", "color", int(color), "msg", text)
		return nil
	}
	c.log.Log(context.Background(), level, text, "led", color.String())
	return c.Blink(color, c.notifyBlinks, c.notifyDelay)
}

// AllOff drives every palette pin low.
func (c *Controller) AllOff() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = hardware.Low
	for _, pin := range c.palette.AllPins() {
		if err := c.pins.Write(pin, hardware.Low); err != nil {
			return fmt.Errorf("led: all off: %w", err)
		}
	}
	return nil
}
