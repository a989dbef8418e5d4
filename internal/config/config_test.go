package config_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/micro-nova/piblinker-go/internal/config"
	"github.com/micro-nova/piblinker-go/internal/led"
)

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	for _, path := range []string{"", filepath.Join(t.TempDir(), "absent.yaml")} {
		cfg, err := config.Load(path)
		if err != nil {
			t.Fatalf("Load(%q) error = %v", path, err)
		}
		if cfg.Palette() != led.DefaultPalette() {
			t.Errorf("Palette() = %+v, want default", cfg.Palette())
		}
		if cfg.Daemon.Debounce != 300*time.Millisecond {
			t.Errorf("Debounce = %v, want 300ms", cfg.Daemon.Debounce)
		}
		if cfg.I2C.Address != 0x04 || cfg.I2C.Bus != 1 {
			t.Errorf("I2C = %+v, want bus 1 address 0x04", cfg.I2C)
		}
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
logging:
  level: debug
  format: json
leds:
  red: 22
notify:
  blinks: 5
  delay: 250ms
i2c:
  bus: 0
  address: 0x10
uart:
  port: /dev/ttyAMA0
  baud: 115200
  timeout: 2s
daemon:
  button1:
    pin: 23
    script: /usr/local/bin/press.sh
  debounce: 150ms
  sudo: true
  user: pi
  power: logind
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if p := cfg.Palette(); p.Red != 22 || p.Green != 18 || p.Blue != 27 {
		t.Errorf("Palette() = %+v, want red overridden only", p)
	}
	if cfg.Notify.Blinks != 5 || cfg.Notify.Delay != 250*time.Millisecond {
		t.Errorf("Notify = %+v", cfg.Notify)
	}
	if cfg.I2C.Bus != 0 || cfg.I2C.Address != 0x10 || cfg.I2C.MaxOpsPerSec != 500 {
		t.Errorf("I2C = %+v", cfg.I2C)
	}
	if cfg.UART.Port != "/dev/ttyAMA0" || cfg.UART.Baud != 115200 || cfg.UART.Timeout != 2*time.Second {
		t.Errorf("UART = %+v", cfg.UART)
	}

	d := cfg.Buttons()
	if d.Button1.Pin != 23 || d.Button1.Script != "/usr/local/bin/press.sh" {
		t.Errorf("Button1 = %+v", d.Button1)
	}
	if d.Button2.Pin != 6 {
		t.Errorf("Button2.Pin = %d, want default 6", d.Button2.Pin)
	}
	if d.Debounce != 150*time.Millisecond {
		t.Errorf("Debounce = %v, want 150ms", d.Debounce)
	}
	if !d.Privilege.Sudo || d.Privilege.User != "pi" {
		t.Errorf("Privilege = %+v", d.Privilege)
	}
	if d.RebootCommand != "/sbin/reboot" {
		t.Errorf("RebootCommand = %q, want default", d.RebootCommand)
	}
	if cfg.Daemon.Power != "logind" {
		t.Errorf("Power = %q, want logind", cfg.Daemon.Power)
	}
}

func TestLoad_ParseError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "leds: [not, a, map\n")
	if _, err := config.Load(path); err == nil {
		t.Fatal("Load() with malformed YAML: want error")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PIBLINKER_LOG_LEVEL", "warn")
	t.Setenv("PIBLINKER_I2C_BUS", "3")
	t.Setenv("PIBLINKER_I2C_ADDRESS", "0x2a")
	t.Setenv("PIBLINKER_UART_PORT", "/dev/ttyUSB0")
	t.Setenv("PIBLINKER_UART_BAUD", "19200")
	t.Setenv("PIBLINKER_DAEMON_USER", "admin")
	t.Setenv("PIBLINKER_DAEMON_PASSWORD", "hunter2")

	path := writeFile(t, t.TempDir(), "uart:\n  port: /dev/ttyS0\n")
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.I2C.Bus != 3 || cfg.I2C.Address != 0x2a {
		t.Errorf("I2C = %+v, want bus 3 address 0x2a", cfg.I2C)
	}
	if cfg.UART.Port != "/dev/ttyUSB0" || cfg.UART.Baud != 19200 {
		t.Errorf("UART = %+v, env should win over file", cfg.UART)
	}
	if p := cfg.Buttons().Privilege; p.User != "admin" || p.Password != "hunter2" {
		t.Errorf("Privilege = %+v", p)
	}
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("PIBLINKER_UART_BAUD", "fast")
	_, err := config.Load("")
	if err == nil || !strings.Contains(err.Error(), "PIBLINKER_UART_BAUD") {
		t.Fatalf("Load() error = %v, want PIBLINKER_UART_BAUD error", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"defaults", func(*config.Config) {}, ""},
		{"negative led pin", func(c *config.Config) { c.LEDs.Green = -1 }, "leds.green must not be negative"},
		{"led collides with led", func(c *config.Config) { c.LEDs.Blue = c.LEDs.Red }, "both use GPIO17"},
		{"button collides with led", func(c *config.Config) { c.Daemon.Button1.Pin = 18 }, "leds.green and daemon.button1.pin"},
		{"buttons collide", func(c *config.Config) { c.Daemon.Button2.Pin = 5 }, "both use GPIO5"},
		{"address overflow", func(c *config.Config) { c.I2C.Address = 0x80 }, "not a 7-bit address"},
		{"zero baud", func(c *config.Config) { c.UART.Baud = 0 }, "uart.baud must be positive"},
		{"negative blinks", func(c *config.Config) { c.Notify.Blinks = -2 }, "notify.blinks"},
		{"unknown level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"unknown format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"unknown power", func(c *config.Config) { c.Daemon.Power = "acpi" }, "daemon.power"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := config.Default()
	cfg.Notify.Delay = 750 * time.Millisecond
	cfg.Daemon.Button2.Script = "/opt/halt.sh"
	cfg.I2C.Address = 0x08

	if err := config.Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("mode = %o, want 600", perm)
	}

	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Notify.Delay != 750*time.Millisecond {
		t.Errorf("Notify.Delay = %v, want 750ms", loaded.Notify.Delay)
	}
	if loaded.Daemon.Button2.Script != "/opt/halt.sh" {
		t.Errorf("Button2.Script = %q", loaded.Daemon.Button2.Script)
	}
	if loaded.I2C.Address != 0x08 {
		t.Errorf("I2C.Address = 0x%02x, want 0x08", loaded.I2C.Address)
	}
}

func TestWatch_ReloadsOnSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := config.Save(path, config.Default()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan *config.Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- config.Watch(ctx, path, func(c *config.Config) { changes <- c })
	}()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	// An invalid file is skipped.
	if err := os.WriteFile(path, []byte("uart:\n  baud: 0\n"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)
	select {
	case c := <-changes:
		t.Fatalf("invalid config delivered: %+v", c.UART)
	default:
	}

	updated := config.Default()
	updated.Daemon.Debounce = 50 * time.Millisecond
	if err := config.Save(path, updated); err != nil {
		t.Fatal(err)
	}
	select {
	case c := <-changes:
		if c.Daemon.Debounce != 50*time.Millisecond {
			t.Errorf("reloaded Debounce = %v, want 50ms", c.Daemon.Debounce)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after Save")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
