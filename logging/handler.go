package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fatih/color"
)

const hostCapability = "logging"

var (
	colorError = color.New(color.FgRed)
	colorWarn  = color.New(color.FgYellow)
	colorInfo  = color.New(color.FgGreen)
	colorDebug = color.New(color.FgHiBlack)
	colorTrace = color.New(color.FgMagenta)
	colorKey   = color.New(color.FgCyan)
)

// textHandler writes records as "[timestamp] [LEVEL] prefix message key=value".
// Level filtering happens before records reach it.
type textHandler struct {
	w        io.Writer
	mu       *sync.Mutex
	prefix   string
	attrs    []slog.Attr
	useColor bool

	host      HostCall
	namespace string
}

func newTextHandler(w io.Writer, prefix string, useColor bool) *textHandler {
	return &textHandler{
		w:        w,
		mu:       &sync.Mutex{},
		prefix:   prefix,
		useColor: useColor,
	}
}

func (h *textHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	var buf []byte
	buf = fmt.Appendf(buf, "[%s] [%s] ", r.Time.Format("2006-01-02 15:04:05.000"), h.formatLevel(r.Level))
	if h.prefix != "" {
		buf = append(buf, h.prefix...)
		buf = append(buf, ' ')
	}
	buf = append(buf, r.Message...)

	for _, a := range h.attrs {
		buf = h.appendAttr(buf, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		buf = h.appendAttr(buf, a)
		return true
	})
	buf = append(buf, '\n')

	if h.host != nil {
		_, err := h.host(h.namespace, hostCapability, hostFunction(r.Level), buf)
		return err
	}

	h.mu.Lock()
	_, err := h.w.Write(buf)
	h.mu.Unlock()
	return err
}

func (h *textHandler) formatLevel(l slog.Level) string {
	var name string
	var c *color.Color

	switch {
	case l < slog.LevelDebug:
		name, c = "TRACE", colorTrace
	case l < slog.LevelInfo:
		name, c = "DEBUG", colorDebug
	case l < slog.LevelWarn:
		name, c = "INFO", colorInfo
	case l < slog.LevelError:
		name, c = "WARNING", colorWarn
	default:
		name, c = "ERROR", colorError
	}

	if h.useColor {
		return c.Sprint(name)
	}
	return name
}

func (h *textHandler) appendAttr(buf []byte, a slog.Attr) []byte {
	if a.Equal(slog.Attr{}) {
		return buf
	}
	a.Value = a.Value.Resolve()

	key := a.Key
	if h.useColor {
		key = colorKey.Sprint(key)
	}
	return fmt.Appendf(buf, " %s=%s", key, formatValue(a.Value))
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		if b, ok := v.Any().([]byte); ok {
			return fmt.Sprintf("%x", b)
		}
		return fmt.Sprintf("%v", v.Any())
	default:
		return v.String()
	}
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &nh
}

// WithGroup is not supported; group names are dropped.
func (h *textHandler) WithGroup(string) slog.Handler { return h }

// hostFunction names the host logging function for a record level.
func hostFunction(l slog.Level) string {
	switch {
	case l < slog.LevelDebug:
		return "Trace"
	case l < slog.LevelInfo:
		return "Debug"
	case l < slog.LevelWarn:
		return "Info"
	case l < slog.LevelError:
		return "Warn"
	default:
		return "Error"
	}
}
