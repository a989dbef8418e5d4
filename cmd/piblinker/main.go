// Command piblinker drives the PiBlinker LEDs and talks to the shield over
// I2C or UART. Run with --mock to use simulated hardware.
//
//	piblinker [--mock] [--config path] [--debug] <command> [args]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/micro-nova/piblinker-go/internal/config"
	"github.com/micro-nova/piblinker-go/internal/hardware"
	"github.com/micro-nova/piblinker-go/internal/led"
	"github.com/micro-nova/piblinker-go/internal/logging"
	"github.com/micro-nova/piblinker-go/internal/uart"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "piblinker:", err)
		}
		os.Exit(1)
	}
}

// env carries what a subcommand needs.
type env struct {
	cfg  *config.Config
	mock bool
	pins hardware.PinSet
	bus  hardware.I2CBus
	open uart.Opener
	temp func() (float64, error)
	out  io.Writer
	log  *slog.Logger

	leds *led.Controller
}

// controller lazily configures the LED pins so non-LED commands leave
// GPIO alone.
func (e *env) controller() (*led.Controller, error) {
	if e.leds != nil {
		return e.leds, nil
	}
	opts := append(e.cfg.LEDOptions(), led.WithLogger(e.log))
	c, err := led.New(e.pins, e.cfg.Palette(), opts...)
	if err != nil {
		return nil, err
	}
	e.leds = c
	return c, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("piblinker", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		mock    = fs.Bool("mock", false, "use simulated hardware")
		cfgPath = fs.String("config", config.DefaultPath, "config file")
		debug   = fs.Bool("debug", false, "enable debug logging")
	)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: piblinker [flags] <command> [args]")
		fmt.Fprintln(stderr, "\ncommands:")
		for _, c := range commands {
			fmt.Fprintf(stderr, "  %-14s %s\n", c.name, c.help)
		}
		fmt.Fprintln(stderr, "\nflags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return flag.ErrHelp
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *debug {
		cfg.Logging.Level = "debug"
	}
	log, closer, err := logging.New(cfg.Logging, "piblinker")
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(log)

	name, rest := fs.Arg(0), fs.Args()[1:]
	cmd, ok := lookup(name)
	if !ok {
		fs.Usage()
		return fmt.Errorf("unknown command %q", name)
	}

	e := &env{cfg: cfg, mock: *mock, out: stdout, log: log}
	if *mock {
		log.Info("using simulated hardware")
		e.pins = hardware.NewMockPins()
		e.bus = newSimBus()
		e.open = simOpener
		e.temp = func() (float64, error) { return simTemp, nil }
	} else {
		e.bus = hardware.NewI2C()
		e.open = hardware.OpenSerial
		e.temp = func() (float64, error) { return hardware.ReadCPUTemp(hardware.CPUTempPath) }
		if cmd.gpio {
			pins, err := hardware.NewPeriphPins()
			if err != nil {
				return err
			}
			e.pins = pins
		}
	}
	// set leaves its level in place; everything else hands the pins back.
	if e.pins != nil && cmd.release {
		defer func() {
			if e.leds != nil {
				if err := e.leds.AllOff(); err != nil {
					log.Warn("leds off failed", "err", err)
				}
			}
			if err := e.pins.Cleanup(); err != nil {
				log.Warn("gpio cleanup failed", "err", err)
			}
		}()
	}
	return cmd.run(ctx, e, rest)
}
