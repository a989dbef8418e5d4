package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

const (
	ansiEnd     = "\033[0m"
	ansiCyan    = "\033[36m"
	ansiBlue    = "\033[34m"
	ansiYellow  = "\033[33m"
	ansiHRed    = "\033[91m"
	ansiWhite   = "\033[37m"
	timeLayout  = "2006-01-02 15:04:05"
	levelColumn = 7
)

// ColorHandler writes one ANSI-coloured line per record:
//
//	2016-03-04 12:00:00 piblinker [warning]: message key=value
//
// The timestamp and label are cyan; the message takes the level colour.
type ColorHandler struct {
	mu    *sync.Mutex
	out   io.Writer
	label string
	level slog.Leveler
	attrs []slog.Attr
	group string
	now   func() time.Time
}

// NewColorHandler returns a handler writing to out at or above level.
func NewColorHandler(out io.Writer, label string, level slog.Leveler) *ColorHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &ColorHandler{mu: new(sync.Mutex), out: out, label: label, level: level, now: time.Now}
}

func (h *ColorHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func levelStyle(l slog.Level) (name, color string) {
	switch {
	case l >= slog.LevelError:
		return "error", ansiHRed
	case l >= slog.LevelWarn:
		return "warning", ansiYellow
	case l >= slog.LevelInfo:
		return "info", ansiBlue
	default:
		return "debug", ansiWhite
	}
}

func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	t := r.Time
	if t.IsZero() {
		t = h.now()
	}
	name, color := levelStyle(r.Level)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s%s%s ", ansiCyan, t.Format(timeLayout), ansiEnd)
	if h.label != "" {
		fmt.Fprintf(&buf, "%s%s%s ", ansiCyan, h.label, ansiEnd)
	}
	pad := levelColumn - len(name)
	if pad < 0 {
		pad = 0
	}
	fmt.Fprintf(&buf, "%s[%s]:%*s %s%s", color, name, pad, "", r.Message, ansiEnd)

	for _, a := range h.attrs {
		writeAttr(&buf, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&buf, h.group, a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf.Bytes())
	return err
}

func writeAttr(buf *bytes.Buffer, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(buf, key, ga)
		}
		return
	}
	fmt.Fprintf(buf, " %s=%v", key, a.Value.Any())
}

func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	h2.attrs = append(h2.attrs, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		h2.attrs = append(h2.attrs, a)
	}
	return &h2
}

func (h *ColorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	if h.group != "" {
		name = h.group + "." + name
	}
	h2.group = name
	return &h2
}
