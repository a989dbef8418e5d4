// Package config loads PiBlinker settings from a YAML file, applies
// PIBLINKER_* environment overrides and validates the result.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/micro-nova/piblinker-go/internal/daemon"
	"github.com/micro-nova/piblinker-go/internal/led"
)

// DefaultPath is where the commands look for a config file.
const DefaultPath = "/etc/piblinker/config.yaml"

// Config is the complete PiBlinker configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	LEDs    LEDConfig     `yaml:"leds"`
	Notify  NotifyConfig  `yaml:"notify"`
	I2C     I2CConfig     `yaml:"i2c"`
	UART    UARTConfig    `yaml:"uart"`
	Daemon  DaemonConfig  `yaml:"daemon"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json or color
	Output string `yaml:"output"` // stdout, stderr or a file path
}

// LEDConfig holds the BCM pins of the primary LEDs.
type LEDConfig struct {
	Red   int `yaml:"red"`
	Green int `yaml:"green"`
	Blue  int `yaml:"blue"`
}

// NotifyConfig controls the blink pattern of a notification.
type NotifyConfig struct {
	Blinks int           `yaml:"blinks"`
	Delay  time.Duration `yaml:"delay"`
}

// I2CConfig describes the shield's I2C device.
type I2CConfig struct {
	Bus          int    `yaml:"bus"`
	Address      uint16 `yaml:"address"`
	MaxOpsPerSec int    `yaml:"max_ops_per_sec"`
}

// UARTConfig describes the shield's serial link.
type UARTConfig struct {
	Port    string        `yaml:"port"`
	Baud    int           `yaml:"baud"`
	Timeout time.Duration `yaml:"timeout"`
}

// ButtonConfig binds one button.
type ButtonConfig struct {
	Pin    int    `yaml:"pin"`
	Script string `yaml:"script"`
}

// DaemonConfig configures the button daemon.
type DaemonConfig struct {
	Button1         ButtonConfig  `yaml:"button1"`
	Button2         ButtonConfig  `yaml:"button2"`
	Debounce        time.Duration `yaml:"debounce"`
	Sudo            bool          `yaml:"sudo"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	RebootCommand   string        `yaml:"reboot_command"`
	ShutdownCommand string        `yaml:"shutdown_command"`
	// Power is "exec" (run the commands) or "logind" (D-Bus).
	Power string `yaml:"power"`
}

// Default returns the stock configuration.
func Default() *Config {
	p := led.DefaultPalette()
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text", Output: "stderr"},
		LEDs:    LEDConfig{Red: p.Red, Green: p.Green, Blue: p.Blue},
		Notify:  NotifyConfig{Blinks: led.DefaultBlinks, Delay: led.DefaultNotifyDelay},
		I2C:     I2CConfig{Bus: 1, Address: 0x04, MaxOpsPerSec: 500},
		UART:    UARTConfig{Port: "/dev/ttyS0", Baud: 9600, Timeout: time.Second},
		Daemon: DaemonConfig{
			Button1:         ButtonConfig{Pin: daemon.DefaultButton1},
			Button2:         ButtonConfig{Pin: daemon.DefaultButton2},
			Debounce:        daemon.DefaultDebounce,
			RebootCommand:   daemon.DefaultRebootCommand,
			ShutdownCommand: daemon.DefaultShutdownCommand,
			Power:           "exec",
		},
	}
}

// Load reads path on top of the defaults, applies environment overrides and
// validates. An empty or missing path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Debug("config: file not found, using defaults", "path", path)
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies PIBLINKER_SECTION_KEY variables.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}

	str("PIBLINKER_LOG_LEVEL", &cfg.Logging.Level)
	str("PIBLINKER_LOG_FORMAT", &cfg.Logging.Format)
	num("PIBLINKER_I2C_BUS", &cfg.I2C.Bus)
	if v, ok := lookup("PIBLINKER_I2C_ADDRESS"); ok && v != "" {
		n, err := strconv.ParseUint(v, 0, 16)
		if err != nil {
			errs = append(errs, fmt.Errorf("PIBLINKER_I2C_ADDRESS: %w", err))
		} else {
			cfg.I2C.Address = uint16(n)
		}
	}
	str("PIBLINKER_UART_PORT", &cfg.UART.Port)
	num("PIBLINKER_UART_BAUD", &cfg.UART.Baud)
	str("PIBLINKER_DAEMON_USER", &cfg.Daemon.User)
	str("PIBLINKER_DAEMON_PASSWORD", &cfg.Daemon.Password)
	str("PIBLINKER_DAEMON_POWER", &cfg.Daemon.Power)

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json", "color":
	default:
		errs = append(errs, fmt.Sprintf("logging.format %q must be text, json or color", c.Logging.Format))
	}

	pins := []struct {
		name string
		pin  int
	}{
		{"leds.red", c.LEDs.Red},
		{"leds.green", c.LEDs.Green},
		{"leds.blue", c.LEDs.Blue},
		{"daemon.button1.pin", c.Daemon.Button1.Pin},
		{"daemon.button2.pin", c.Daemon.Button2.Pin},
	}
	owner := make(map[int]string)
	for _, p := range pins {
		if p.pin < 0 {
			errs = append(errs, fmt.Sprintf("%s must not be negative", p.name))
			continue
		}
		if other, dup := owner[p.pin]; dup {
			errs = append(errs, fmt.Sprintf("%s and %s both use GPIO%d", other, p.name, p.pin))
			continue
		}
		owner[p.pin] = p.name
	}

	if c.Notify.Blinks < 0 {
		errs = append(errs, "notify.blinks must not be negative")
	}
	if c.Notify.Delay < 0 {
		errs = append(errs, "notify.delay must not be negative")
	}
	if c.I2C.Bus < 0 {
		errs = append(errs, "i2c.bus must not be negative")
	}
	if c.I2C.Address > 0x7F {
		errs = append(errs, fmt.Sprintf("i2c.address 0x%02x is not a 7-bit address", c.I2C.Address))
	}
	if c.UART.Baud <= 0 {
		errs = append(errs, "uart.baud must be positive")
	}
	if c.Daemon.Debounce < 0 {
		errs = append(errs, "daemon.debounce must not be negative")
	}
	switch c.Daemon.Power {
	case "exec", "logind":
	default:
		errs = append(errs, fmt.Sprintf("daemon.power %q must be exec or logind", c.Daemon.Power))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Palette returns the LED pin assignment.
func (c *Config) Palette() led.Palette {
	return led.Palette{Red: c.LEDs.Red, Green: c.LEDs.Green, Blue: c.LEDs.Blue}
}

// LEDOptions returns the controller options derived from the notify section.
func (c *Config) LEDOptions() []led.Option {
	return []led.Option{led.WithNotify(c.Notify.Blinks, c.Notify.Delay)}
}

// Buttons returns the daemon configuration. Power is left nil; callers
// choosing the logind backend set it themselves.
func (c *Config) Buttons() daemon.Config {
	d := c.Daemon
	return daemon.Config{
		Button1:  daemon.Binding{Pin: d.Button1.Pin, Script: d.Button1.Script},
		Button2:  daemon.Binding{Pin: d.Button2.Pin, Script: d.Button2.Script},
		Debounce: d.Debounce,
		Privilege: daemon.Privilege{
			Sudo:     d.Sudo,
			User:     d.User,
			Password: d.Password,
		},
		RebootCommand:   d.RebootCommand,
		ShutdownCommand: d.ShutdownCommand,
	}
}
