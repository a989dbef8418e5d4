package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/micro-nova/piblinker-go/internal/config"
	"github.com/micro-nova/piblinker-go/internal/led"
	"github.com/micro-nova/piblinker-go/internal/shield"
	"github.com/micro-nova/piblinker-go/internal/uart"
)

type command struct {
	name    string
	help    string
	gpio    bool // needs the GPIO pins
	release bool // return the pins on exit
	run     func(ctx context.Context, e *env, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{name: "set", help: "set <color> <off|on|toggle>", gpio: true, run: cmdSet},
		{name: "blink", help: "blink [-times n] [-delay d] <color>", gpio: true, release: true, run: cmdBlink},
		{name: "notify", help: "notify <color> <text...>", gpio: true, release: true, run: cmdNotify},
		{name: "demo", help: "notify on red, green and blue", gpio: true, release: true, run: cmdDemo},
		{name: "i2c-read", help: "i2c-read [-addr a] [-layout fmt]", run: cmdI2CRead},
		{name: "i2c-write", help: "i2c-write [-addr a] [-layout fmt] <values...>", run: cmdI2CWrite},
		{name: "adc", help: "read the shield ADC over I2C", run: cmdADC},
		{name: "pin", help: "read the shield digital pin over I2C", run: cmdPin},
		{name: "uart-activate", help: "probe the shield UART link", run: cmdUARTActivate},
		{name: "uart-read", help: "uart-read <adc|pin>", run: cmdUARTRead},
		{name: "temp", help: "temp [-notify] [-warn c] [-crit c]: CPU temperature", gpio: true, release: true, run: cmdTemp},
		{name: "config-init", help: "config-init <path>: write the active config as YAML", run: cmdConfigInit},
	}
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func parseColor(s string) (led.Color, error) {
	c, ok := led.ParseColor(s)
	if !ok {
		return 0, fmt.Errorf("unknown color %q", s)
	}
	return c, nil
}

func cmdSet(ctx context.Context, e *env, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: set <color> <off|on|toggle>")
	}
	color, err := parseColor(args[0])
	if err != nil {
		return err
	}
	mode, ok := led.ParseMode(args[1])
	if !ok {
		return fmt.Errorf("unknown mode %q", args[1])
	}
	leds, err := e.controller()
	if err != nil {
		return err
	}
	return leds.Set(color, mode)
}

func cmdBlink(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("blink", flag.ContinueOnError)
	fs.SetOutput(e.out)
	times := fs.Int("times", e.cfg.Notify.Blinks, "on/off cycles")
	delay := fs.Duration("delay", e.cfg.Notify.Delay, "pause between flips")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: blink [-times n] [-delay d] <color>")
	}
	color, err := parseColor(fs.Arg(0))
	if err != nil {
		return err
	}
	leds, err := e.controller()
	if err != nil {
		return err
	}
	return leds.Blink(color, *times, *delay)
}

func cmdNotify(ctx context.Context, e *env, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: notify <color> <text...>")
	}
	color, err := parseColor(args[0])
	if err != nil {
		return err
	}
	leds, err := e.controller()
	if err != nil {
		return err
	}
	return leds.Notify(color, strings.Join(args[1:], " "))
}

func cmdDemo(ctx context.Context, e *env, args []string) error {
	leds, err := e.controller()
	if err != nil {
		return err
	}
	steps := []struct {
		color led.Color
		text  string
	}{
		{led.Red, "This is important"},
		{led.Green, "This worked"},
		{led.Blue, "This you should know"},
	}
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := leds.Notify(s.color, s.text); err != nil {
			return err
		}
	}
	return nil
}

// shieldFlags adds -addr and -layout to fs with config defaults.
func shieldFlags(fs *flag.FlagSet, e *env, layout string) (addr *uint, format *string) {
	addr = fs.Uint("addr", uint(e.cfg.I2C.Address), "7-bit device address")
	format = fs.String("layout", layout, "frame layout, e.g. >H or <2b")
	return addr, format
}

// openRegistry opens addr, rejecting flag values that do not fit in 7 bits
// before they are narrowed.
func openRegistry(ctx context.Context, e *env, addr uint) (*shield.Registry, error) {
	if addr > 0x7F {
		return nil, fmt.Errorf("-addr %#x: %w", addr, shield.ErrBadAddress)
	}
	reg := shield.NewRegistry(e.bus,
		shield.WithRateLimit(e.cfg.I2C.MaxOpsPerSec),
		shield.WithLogger(e.log))
	if err := reg.Open(ctx, uint16(addr), e.cfg.I2C.Bus); err != nil {
		return nil, err
	}
	return reg, nil
}

func cmdI2CRead(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("i2c-read", flag.ContinueOnError)
	fs.SetOutput(e.out)
	addr, format := shieldFlags(fs, e, ">H")
	if err := fs.Parse(args); err != nil {
		return err
	}
	layout, err := shield.ParseLayout(*format)
	if err != nil {
		return err
	}
	reg, err := openRegistry(ctx, e, *addr)
	if err != nil {
		return err
	}
	defer reg.CloseAll()

	vals, err := reg.ReadAs(ctx, uint16(*addr), layout, layout.Size())
	if err != nil {
		return err
	}
	strs := make([]string, len(vals))
	for i, v := range vals {
		strs[i] = strconv.FormatInt(v, 10)
	}
	fmt.Fprintln(e.out, strings.Join(strs, " "))
	return nil
}

func cmdI2CWrite(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("i2c-write", flag.ContinueOnError)
	fs.SetOutput(e.out)
	addr, format := shieldFlags(fs, e, "B")
	if err := fs.Parse(args); err != nil {
		return err
	}
	layout, err := shield.ParseLayout(*format)
	if err != nil {
		return err
	}
	vals := make([]int64, fs.NArg())
	for i, s := range fs.Args() {
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return fmt.Errorf("value %q: %w", s, err)
		}
		vals[i] = v
	}
	reg, err := openRegistry(ctx, e, *addr)
	if err != nil {
		return err
	}
	defer reg.CloseAll()
	return reg.WriteAs(ctx, uint16(*addr), layout, vals...)
}

func sampleCmd(name string, read func(ctx context.Context, reg *shield.Registry, addr uint16) (int, error)) func(context.Context, *env, []string) error {
	return func(ctx context.Context, e *env, args []string) error {
		fs := flag.NewFlagSet(name, flag.ContinueOnError)
		fs.SetOutput(e.out)
		addr := fs.Uint("addr", uint(e.cfg.I2C.Address), "7-bit device address")
		if err := fs.Parse(args); err != nil {
			return err
		}
		reg, err := openRegistry(ctx, e, *addr)
		if err != nil {
			return err
		}
		defer reg.CloseAll()
		v, err := read(ctx, reg, uint16(*addr))
		if err != nil {
			return err
		}
		fmt.Fprintln(e.out, v)
		return nil
	}
}

var (
	cmdADC = sampleCmd("adc", func(ctx context.Context, reg *shield.Registry, addr uint16) (int, error) {
		v, err := reg.ReadADC(ctx, addr)
		return int(v), err
	})
	cmdPin = sampleCmd("pin", func(ctx context.Context, reg *shield.Registry, addr uint16) (int, error) {
		v, err := reg.ReadPin(ctx, addr)
		return int(v), err
	})
)

func openUART(e *env) (*uart.Channel, error) {
	return uart.Open(e.cfg.UART.Port, e.cfg.UART.Baud, e.cfg.UART.Timeout,
		uart.WithOpener(e.open), uart.WithLogger(e.log))
}

func cmdUARTActivate(ctx context.Context, e *env, args []string) error {
	ch, err := openUART(e)
	if err != nil {
		return err
	}
	defer ch.Close()
	act, err := ch.Activate(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, act)
	return nil
}

func cmdUARTRead(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: uart-read <adc|pin>")
	}
	var target uart.Target
	switch strings.ToLower(args[0]) {
	case "adc":
		target = uart.ADC
	case "pin":
		target = uart.Pin
	default:
		return fmt.Errorf("unknown target %q", args[0])
	}
	ch, err := openUART(e)
	if err != nil {
		return err
	}
	defer ch.Close()
	if _, err := ch.Activate(ctx); err != nil {
		return err
	}
	line, err := ch.Read(target)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, line)
	return nil
}

func cmdConfigInit(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: config-init <path>")
	}
	if err := config.Save(args[0], e.cfg); err != nil {
		return err
	}
	e.log.Info("config written", "path", args[0])
	return nil
}

// tempColor grades a CPU temperature against the warn and crit thresholds.
func tempColor(c, warn, crit float64) led.Color {
	switch {
	case c >= crit:
		return led.Red
	case c >= warn:
		return led.Yellow
	default:
		return led.Green
	}
}

func cmdTemp(ctx context.Context, e *env, args []string) error {
	fs := flag.NewFlagSet("temp", flag.ContinueOnError)
	fs.SetOutput(e.out)
	notify := fs.Bool("notify", false, "flash the temperature grade")
	warn := fs.Float64("warn", 60, "warning threshold in °C")
	crit := fs.Float64("crit", 75, "critical threshold in °C")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c, err := e.temp()
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%.1f\n", c)
	if !*notify {
		return nil
	}
	leds, err := e.controller()
	if err != nil {
		return err
	}
	return leds.Notify(tempColor(c, *warn, *crit), fmt.Sprintf("cpu temperature %.1f°C", c))
}
