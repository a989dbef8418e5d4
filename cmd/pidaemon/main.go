// Command pidaemon runs the PiBlinker button daemon in the foreground until
// SIGINT or SIGTERM. The config file is watched and the daemon restarts
// with the new settings when it changes.
//
// With --mock no GPIO is touched and commands are only logged; SIGUSR1 and
// SIGUSR2 simulate presses of button1 and button2.
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
	"strings"
	"syscall"

	"github.com/micro-nova/piblinker-go/internal/config"
	"github.com/micro-nova/piblinker-go/internal/daemon"
	"github.com/micro-nova/piblinker-go/internal/hardware"
	"github.com/micro-nova/piblinker-go/internal/led"
	"github.com/micro-nova/piblinker-go/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "pidaemon:", err)
		}
		os.Exit(1)
	}
}

// run parses flags, sets up logging and serves until ctx is done. The log
// output is closed before it returns.
func run(ctx context.Context, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("pidaemon", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		mock    = fs.Bool("mock", false, "simulate GPIO and only log commands")
		cfgPath = fs.String("config", config.DefaultPath, "config file")
		debug   = fs.Bool("debug", false, "enable debug logging")
		watch   = fs.Bool("watch", true, "restart when the config file changes")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return err
	}
	if *debug {
		cfg.Logging.Level = "debug"
	}
	log, closer, err := logging.New(cfg.Logging, "pidaemon")
	if err != nil {
		return err
	}
	defer closer.Close()
	prev := slog.Default()
	slog.SetDefault(log)
	defer slog.SetDefault(prev)

	var pins hardware.PinSet
	if *mock {
		slog.Info("using simulated GPIO")
		mp := hardware.NewMockPins()
		go pressOnSignal(ctx, mp, current.get)
		pins = mp
	} else {
		pp, err := hardware.NewPeriphPins()
		if err != nil {
			slog.Error("gpio initialization failed", "err", err)
			return err
		}
		pins = pp
	}

	watchPath := ""
	if *watch {
		watchPath = *cfgPath
	}
	if err := serve(ctx, pins, cfg, watchPath, *mock); err != nil {
		slog.Error("daemon failed", "err", err)
		return err
	}
	slog.Info("shutdown complete")
	return nil
}

// serve runs the daemon until ctx is done or an action fails, rebuilding
// it each time the config at watchPath changes. An empty watchPath
// disables reloading.
func serve(ctx context.Context, pins hardware.PinSet, cfg *config.Config, watchPath string, dryRun bool) error {
	for {
		current.set(cfg)
		d, cleanup, err := build(pins, cfg, dryRun)
		if err != nil {
			return err
		}

		runCtx, stop := context.WithCancel(ctx)
		reload := make(chan *config.Config, 1)
		watchDone := make(chan struct{})
		if watchPath != "" {
			go func() {
				defer close(watchDone)
				err := config.Watch(runCtx, watchPath, func(c *config.Config) {
					select {
					case reload <- c:
					default:
					}
					stop()
				})
				if err != nil {
					slog.Warn("config watch disabled", "err", err)
				}
			}()
		} else {
			close(watchDone)
		}

		err = d.Run(runCtx)
		stop()
		<-watchDone
		cleanup()

		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		select {
		case next := <-reload:
			slog.Info("config changed, restarting daemon")
			cfg = next
		default:
			return nil
		}
	}
}

// build wires a daemon for cfg. cleanup releases anything build opened
// besides the pins, which Run releases itself.
func build(pins hardware.PinSet, cfg *config.Config, dryRun bool) (*daemon.Daemon, func(), error) {
	log := slog.Default()
	leds, err := led.New(pins, cfg.Palette(), append(cfg.LEDOptions(), led.WithLogger(log))...)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {}
	dcfg := cfg.Buttons()
	opts := []daemon.Option{daemon.WithLogger(log)}
	switch {
	case dryRun:
		opts = append(opts, daemon.WithRunner(dryRunner))
	case cfg.Daemon.Power == "logind":
		power, err := daemon.NewLogindPower()
		if err != nil {
			return nil, nil, err
		}
		dcfg.Power = power
		cleanup = func() { power.Close() }
	}

	d, err := daemon.New(pins, leds, dcfg, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return d, cleanup, nil
}

// dryRunner logs commands instead of running them.
func dryRunner(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, error) {
	slog.Info("dry run: command not executed", "cmd", strings.TrimSpace(name+" "+strings.Join(args, " ")))
	return nil, nil
}
