// Package logger is the process-wide structured logger. It wraps log/slog
// with a colored text handler, a JSON handler and context-aware helpers that
// attach the fields of the current mapping run.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config holds logger configuration.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or file path
}

const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	level = new(slog.LevelVar)

	mu      sync.RWMutex
	format  = FormatText
	out     io.Writer = os.Stdout
	color   = isTerminal(os.Stdout)
	current *slog.Logger
)

func init() {
	rebuild()
}

// rebuild swaps the active logger for one matching the current settings.
// Callers must not hold mu.
func rebuild() {
	mu.Lock()
	defer mu.Unlock()

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == FormatJSON {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = newTextHandler(out, opts, color)
	}
	current = slog.New(h)
}

// Init applies cfg. Empty fields keep their current value.
func Init(cfg Config) error {
	if cfg.Output != "" {
		w, useColor, err := openOutput(cfg.Output)
		if err != nil {
			return err
		}
		mu.Lock()
		out, color = w, useColor
		mu.Unlock()
	}
	if cfg.Level != "" {
		if _, ok := parseLevel(cfg.Level); !ok {
			return fmt.Errorf("invalid log level %q", cfg.Level)
		}
		SetLevel(cfg.Level)
	}
	if cfg.Format != "" {
		SetFormat(cfg.Format)
	}
	rebuild()
	return nil
}

func openOutput(name string) (io.Writer, bool, error) {
	switch strings.ToLower(name) {
	case "stdout":
		return os.Stdout, isTerminal(os.Stdout), nil
	case "stderr":
		return os.Stderr, isTerminal(os.Stderr), nil
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open log file %q: %w", name, err)
	}
	return f, false, nil
}

// InitWithWriter routes output to w. Used by tests.
func InitWithWriter(w io.Writer, lvl, fmtName string, enableColor bool) {
	mu.Lock()
	out, color = w, enableColor
	mu.Unlock()
	if lvl != "" {
		SetLevel(lvl)
	}
	if fmtName != "" {
		SetFormat(fmtName)
	}
	rebuild()
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	return 0, false
}

// SetLevel sets the minimum level. Unknown names are ignored.
func SetLevel(name string) {
	if l, ok := parseLevel(name); ok {
		level.Set(l)
	}
}

// GetLevel returns the minimum level.
func GetLevel() slog.Level {
	return level.Level()
}

// SetFormat selects text or json output. Unknown names are ignored.
func SetFormat(name string) {
	name = strings.ToLower(name)
	if name != FormatText && name != FormatJSON {
		return
	}
	mu.Lock()
	changed := format != name
	format = name
	mu.Unlock()
	if changed {
		rebuild()
	}
}

func get() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func emit(ctx context.Context, l slog.Level, msg string, args []any) {
	if l < level.Level() {
		return
	}
	get().Log(ctx, l, msg, withContextFields(ctx, args)...)
}

// Debug logs at debug level: Debug("msg", "key", value, ...).
func Debug(msg string, args ...any) { emit(context.Background(), slog.LevelDebug, msg, args) }

// Info logs at info level.
func Info(msg string, args ...any) { emit(context.Background(), slog.LevelInfo, msg, args) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { emit(context.Background(), slog.LevelWarn, msg, args) }

// Error logs at error level.
func Error(msg string, args ...any) { emit(context.Background(), slog.LevelError, msg, args) }

// DebugCtx logs at debug level with the fields of the context's LogContext.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	emit(ctx, slog.LevelDebug, msg, args)
}

func InfoCtx(ctx context.Context, msg string, args ...any) {
	emit(ctx, slog.LevelInfo, msg, args)
}

func WarnCtx(ctx context.Context, msg string, args ...any) {
	emit(ctx, slog.LevelWarn, msg, args)
}

func ErrorCtx(ctx context.Context, msg string, args ...any) {
	emit(ctx, slog.LevelError, msg, args)
}

// withContextFields puts the LogContext fields in front of args.
func withContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}
	fields := [...][2]string{
		{KeyTraceID, lc.TraceID},
		{KeySpanID, lc.SpanID},
		{KeyOperation, lc.Operation},
		{KeyResource, lc.Resource},
		{KeyAnyType, lc.AnyType},
		{KeyOwner, lc.OwnerKey},
	}
	merged := make([]any, 0, 2*len(fields)+len(args))
	for _, f := range fields {
		if f[1] != "" {
			merged = append(merged, f[0], f[1])
		}
	}
	return append(merged, args...)
}
