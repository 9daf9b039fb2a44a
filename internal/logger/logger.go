// Package logger provides the application-wide slog logger.
//
// Values come from Options or from the environment:
//   - REFMAN_LOG_LEVEL=debug|info|warn|error
//   - REFMAN_LOG_FORMAT=console|json
//   - REFMAN_LOG_FILE=<path> (adds a rotated JSON file sink)
//   - REFMAN_LOG_SOURCE=true|false
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger initialization.
type Options struct {
	Level     string
	Format    string // "console" or "json"
	AddSource bool
	File      string
}

var (
	mu      sync.RWMutex
	current *slog.Logger
)

// L returns the default logger, initializing it from the environment on first use.
func L() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init(FromEnv())
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Init configures the global logger and installs it as slog.Default.
func Init(opts Options) {
	InitWithWriter(os.Stderr, opts)
}

// InitWithWriter is Init with an explicit console writer.
func InitWithWriter(w io.Writer, opts Options) {
	lvl := parseLevel(opts.Level)
	hopts := &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource}

	var console slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		console = slog.NewJSONHandler(w, hopts)
	} else {
		console = slog.NewTextHandler(w, hopts)
	}

	h := console
	if strings.TrimSpace(opts.File) != "" {
		rotated := &lj.Logger{Filename: opts.File, MaxSize: 10, MaxBackups: 3, MaxAge: 28, Compress: true}
		h = fanout{console, slog.NewJSONHandler(rotated, hopts)}
	}

	l := slog.New(h).With(slog.String("app", "refman"))

	mu.Lock()
	current = l
	mu.Unlock()
	slog.SetDefault(l)
}

// FromEnv builds Options from environment variables.
func FromEnv() Options {
	return Options{
		Level:     getenv("REFMAN_LOG_LEVEL", "info"),
		Format:    getenv("REFMAN_LOG_FORMAT", "console"),
		AddSource: strings.EqualFold(getenv("REFMAN_LOG_SOURCE", "false"), "true"),
		File:      os.Getenv("REFMAN_LOG_FILE"),
	}
}

// WithComponent returns a logger with the component attribute pre-set.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation annotates l with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// fanout sends each record to every handler.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
