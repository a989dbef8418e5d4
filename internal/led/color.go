// Package led drives GPIO status LEDs: primary and composite colours,
// toggling, blink sequences and blink-backed notifications.
package led

import (
	"log/slog"
	"strings"
)

// Color names an LED colour. Composites light several primaries at once.
type Color int

const (
	Red Color = iota + 1
	Green
	Blue
	Purple
	Yellow
	Cyan
	White
)

var colorNames = map[Color]string{
	Red:    "RED",
	Green:  "GREEN",
	Blue:   "BLUE",
	Purple: "PURPLE",
	Yellow: "YELLOW",
	Cyan:   "CYAN",
	White:  "WHITE",
}

// primaries lists the physical LEDs each colour is built from, in drive order.
var primaries = map[Color][]Color{
	Red:    {Red},
	Green:  {Green},
	Blue:   {Blue},
	Purple: {Red, Blue},
	Yellow: {Red, Green},
	Cyan:   {Green, Blue},
	White:  {Red, Green, Blue},
}

// notifyLevels is the log level a Notify on each colour is emitted at.
var notifyLevels = map[Color]slog.Level{
	Red:    slog.LevelError,
	Green:  slog.LevelInfo,
	Blue:   slog.LevelWarn,
	Purple: slog.LevelWarn,
	Yellow: slog.LevelWarn,
	Cyan:   slog.LevelInfo,
	White:  slog.LevelInfo,
}

func (c Color) String() string {
	if n, ok := colorNames[c]; ok {
		return n
	}
	return "UNKNOWN"
}

// Colors returns every known colour in declaration order.
func Colors() []Color {
	return []Color{Red, Green, Blue, Purple, Yellow, Cyan, White}
}

// ParseColor resolves a case-insensitive colour name.
func ParseColor(s string) (Color, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for c, n := range colorNames {
		if n == s {
			return c, true
		}
	}
	return 0, false
}

// Palette binds the three primary LEDs to BCM pin numbers.
type Palette struct {
	Red   int
	Green int
	Blue  int
}

// DefaultPalette matches the PiDaemon status LED wiring.
func DefaultPalette() Palette {
	return Palette{Red: 17, Green: 18, Blue: 27}
}

func (p Palette) primaryPin(c Color) int {
	switch c {
	case Red:
		return p.Red
	case Green:
		return p.Green
	default:
		return p.Blue
	}
}

// Pins returns the pins driven by c, or false for an unknown colour.
func (p Palette) Pins(c Color) ([]int, bool) {
	prims, ok := primaries[c]
	if !ok {
		return nil, false
	}
	pins := make([]int, len(prims))
	for i, prim := range prims {
		pins[i] = p.primaryPin(prim)
	}
	return pins, true
}

// AllPins returns the three primary pins.
func (p Palette) AllPins() []int {
	return []int{p.Red, p.Green, p.Blue}
}
