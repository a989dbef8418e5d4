package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/micro-nova/piblinker-go/internal/config"
	"github.com/micro-nova/piblinker-go/internal/hardware"
)

// activeConfig holds the configuration of the running daemon.
type activeConfig struct {
	mu  sync.Mutex
	cfg *config.Config
}

func (a *activeConfig) set(c *config.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = c
}

func (a *activeConfig) get() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

var current activeConfig

// pressOnSignal turns SIGUSR1 and SIGUSR2 into presses of button1 and
// button2 on simulated pins.
func pressOnSignal(ctx context.Context, pins *hardware.MockPins, cfg func() *config.Config) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigs)
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			c := cfg()
			if c == nil {
				continue
			}
			pin := c.Daemon.Button1.Pin
			if sig == syscall.SIGUSR2 {
				pin = c.Daemon.Button2.Pin
			}
			press(pins, pin, c.Daemon.Debounce)
		}
	}
}

// press moves the mock clock past any debounce window and raises pin.
func press(pins *hardware.MockPins, pin int, debounce time.Duration) bool {
	pins.Advance(debounce + time.Second)
	ok := pins.Trigger(pin)
	pins.SetLevel(pin, hardware.Low)
	slog.Info("simulated press", "pin", pin, "delivered", ok)
	return ok
}
