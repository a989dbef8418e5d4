// Package logging builds the slog logger the commands install as default.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/micro-nova/piblinker-go/internal/config"
)

// New returns a logger for cfg and the file it writes to, if any. The
// caller closes the returned closer on exit.
//
// Formats: "text" and "json" are the slog handlers, "color" is an ANSI
// console format. Output is "stdout", "stderr" or a file path opened for
// append.
func New(cfg config.LoggingConfig, label string) (*slog.Logger, io.Closer, error) {
	var (
		out    io.Writer
		closer io.Closer = nopCloser{}
	)
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: open %s: %w", cfg.Output, err)
		}
		out, closer = f, f
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		h = slog.NewJSONHandler(out, opts)
	case "color":
		h = NewColorHandler(out, label, opts.Level)
	default:
		h = slog.NewTextHandler(out, opts)
	}
	if label != "" && !strings.EqualFold(cfg.Format, "color") {
		h = h.WithAttrs([]slog.Attr{slog.String("service", label)})
	}
	return slog.New(h), closer, nil
}

// ParseLevel converts a level name to slog.Level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
