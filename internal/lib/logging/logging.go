// Package logging provides the colored console slog handler used across
// the service.
package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ConsoleHandler renders slog records as single colored lines, meant for
// operator terminals rather than log shippers.
type ConsoleHandler struct {
	mu    sync.Mutex
	out   *log.Logger
	level slog.Level
	attrs []slog.Attr
}

func NewConsoleHandler(out io.Writer, level slog.Level) *ConsoleHandler {
	return &ConsoleHandler{
		out:   log.New(out, "", 0),
		level: level,
	}
}

// New builds the service logger at the named level (debug, info, warn,
// error; defaults to info).
func New(out io.Writer, level string) *slog.Logger {
	return slog.New(NewConsoleHandler(out, ParseLevel(level)))
}

// ParseLevel maps a config string onto a slog level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	label := r.Level.String()
	switch r.Level {
	case slog.LevelDebug:
		label = color.MagentaString(label)
	case slog.LevelInfo:
		label = color.CyanString(label)
	case slog.LevelWarn:
		label = color.YellowString(label)
	case slog.LevelError:
		label = color.RedString(label)
	}

	var b strings.Builder
	for _, a := range h.attrs {
		writeAttr(&b, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, a)
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	h.out.Println(r.Time.Format("15:04:05.000"), label, r.Message, b.String())
	return nil
}

func writeAttr(b *strings.Builder, a slog.Attr) {
	b.WriteString(color.GreenString(a.Key))
	b.WriteByte('=')
	fmt.Fprint(b, a.Value.Any())
	b.WriteByte(' ')
}

func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := &ConsoleHandler{
		out:   h.out,
		level: h.level,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
	return clone
}

func (h *ConsoleHandler) WithGroup(string) slog.Handler {
	return h
}
