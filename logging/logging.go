package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-isatty"
)

// Level orders log verbosity. Messages above the configured level are dropped.
type Level int32

const (
	LevelOff Level = iota
	LevelError
	LevelWarning
	LevelInfo
	LevelDebug
	LevelTrace
)

// slogTrace is the slog level used for LevelTrace records.
const slogTrace = slog.Level(-8)

// ErrInvalidLevel is returned by ParseLevel for unknown level names.
var ErrInvalidLevel = errors.New("invalid log level")

var levelNames = [...]string{"OFF", "ERROR", "WARNING", "INFO", "DEBUG", "TRACE"}

func (l Level) String() string {
	if l < LevelOff || l > LevelTrace {
		return fmt.Sprintf("Level(%d)", int32(l))
	}
	return levelNames[l]
}

// ParseLevel converts a level name such as "info" or "warn" into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OFF", "NONE":
		return LevelOff, nil
	case "ERROR":
		return LevelError, nil
	case "WARNING", "WARN":
		return LevelWarning, nil
	case "INFO":
		return LevelInfo, nil
	case "DEBUG":
		return LevelDebug, nil
	case "TRACE":
		return LevelTrace, nil
	default:
		return LevelOff, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
}

// slogLevel maps a Level onto the slog scale.
func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelError:
		return slog.LevelError
	case LevelWarning:
		return slog.LevelWarn
	case LevelInfo:
		return slog.LevelInfo
	case LevelDebug:
		return slog.LevelDebug
	default:
		return slogTrace
	}
}

// HostCall defines the waPC host function signature used to forward log lines.
type HostCall func(string, string, string, []byte) ([]byte, error)

// Config controls the process-wide logger.
type Config struct {
	// Prefix is prepended to every message when set.
	Prefix string

	// Level is the most verbose level emitted.
	Level Level

	// Path is the destination file. Empty writes to stdout.
	Path string

	// Append keeps existing content of Path instead of truncating it.
	Append bool

	// HostCall forwards log lines to a waPC host logging capability instead
	// of writing them locally. Path is ignored when set.
	HostCall HostCall

	// Namespace scopes host calls. Defaults to "nvm3".
	Namespace string
}

var (
	initialized atomic.Bool
	level       atomic.Int32

	mu      sync.Mutex
	logger  *slog.Logger
	closeFn func() error
)

// Init configures the process-wide logger. Only the first successful call
// has an effect; later calls return nil without changing anything. When the
// destination cannot be opened the logger stays uninitialized.
func Init(cfg Config) error {
	if initialized.Load() {
		return nil
	}

	mu.Lock()
	defer mu.Unlock()

	if initialized.Load() {
		return nil
	}

	var (
		w        io.Writer = os.Stdout
		useColor bool
		closer   func() error
	)

	switch {
	case cfg.HostCall != nil:
		w = io.Discard
	case cfg.Path != "":
		flags := os.O_CREATE | os.O_WRONLY
		if cfg.Append {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
		f, err := os.OpenFile(cfg.Path, flags, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", cfg.Path, err)
		}
		w = f
		closer = f.Close
	default:
		useColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}

	h := newTextHandler(w, cfg.Prefix, useColor)
	if cfg.HostCall != nil {
		h.host = cfg.HostCall
		h.namespace = cfg.Namespace
		if h.namespace == "" {
			h.namespace = "nvm3"
		}
	}

	logger = slog.New(h)
	closeFn = closer
	level.Store(int32(cfg.Level))
	initialized.Store(true)
	return nil
}

// Initialized reports whether Init has succeeded.
func Initialized() bool { return initialized.Load() }

// CurrentLevel returns the effective level. It is LevelOff before Init.
func CurrentLevel() Level { return Level(level.Load()) }

// Enabled reports whether messages at l are emitted.
func Enabled(l Level) bool {
	return l > LevelOff && l <= Level(level.Load())
}

// Error logs at Error level.
func Error(msg string, args ...any) { emit(LevelError, msg, args) }

// Warn logs at Warning level.
func Warn(msg string, args ...any) { emit(LevelWarning, msg, args) }

// Info logs at Info level.
func Info(msg string, args ...any) { emit(LevelInfo, msg, args) }

// Debug logs at Debug level.
func Debug(msg string, args ...any) { emit(LevelDebug, msg, args) }

// Trace logs at Trace level.
func Trace(msg string, args ...any) { emit(LevelTrace, msg, args) }

func emit(l Level, msg string, args []any) {
	if !Enabled(l) {
		return
	}

	mu.Lock()
	lg := logger
	mu.Unlock()
	if lg == nil {
		return
	}

	r := slog.NewRecord(time.Now(), l.slogLevel(), msg, 0)
	r.Add(args...)
	_ = lg.Handler().Handle(context.Background(), r)
}

// reset returns the logger to its uninitialized state.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	if closeFn != nil {
		_ = closeFn()
	}
	closeFn = nil
	logger = nil
	level.Store(int32(LevelOff))
	initialized.Store(false)
}
