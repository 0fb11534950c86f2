package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Log formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

type Logger struct {
	*slog.Logger
}

// New builds a logger writing to stderr so report tables on stdout stay clean.
// A silent logger discards everything below error.
func New(logLevel, format string, silent bool) *Logger {
	return NewWithWriter(os.Stderr, logLevel, format, silent)
}

func NewWithWriter(w io.Writer, logLevel, format string, silent bool) *Logger {
	level := parseLogLevel(logLevel)
	if silent {
		level = slog.LevelError
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: level == slog.LevelDebug,
		})
	default:
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			AddSource:  level == slog.LevelDebug,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if s, ok := a.Value.Any().(string); ok && s == "" {
					return slog.Attr{}
				}
				return a
			},
		})
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Discard returns a logger that drops every record, for tests
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", component),
	}
}

func (l *Logger) WithFields(fields ...interface{}) *Logger {
	return &Logger{
		Logger: l.Logger.With(fields...),
	}
}

func (l *Logger) RouteOperation(action, network, gateway string, duration int64, success bool) {
	l.Debug("Route operation completed",
		slog.String("action", action),
		slog.String("network", network),
		slog.String("gateway", gateway),
		slog.Int64("duration_ms", duration),
		slog.Bool("success", success))
}

func (l *Logger) BatchOperation(action string, total, success, failed int, duration int64) {
	l.Info("Batch operation completed",
		slog.String("action", action),
		slog.Int("total", total),
		slog.Int("success", success),
		slog.Int("failed", failed),
		slog.Int64("duration_ms", duration))
}

func (l *Logger) ForwardingChange(scope string, ifIndex uint32, enabled, rebootRequired bool) {
	l.Info("Forwarding state changed",
		slog.String("scope", scope),
		slog.Uint64("interface", uint64(ifIndex)),
		slog.Bool("enabled", enabled),
		slog.Bool("reboot_required", rebootRequired))
}

func (l *Logger) ConfigLoaded(file string, lists, targets int) {
	l.Debug("Configuration loaded",
		slog.String("config_file", file),
		slog.Int("lists", lists),
		slog.Int("targets", targets))
}

func (l *Logger) Performance(operation string, metrics map[string]interface{}) {
	args := []interface{}{
		"operation", operation,
	}

	for k, v := range metrics {
		args = append(args, k, v)
	}

	l.Debug("performance metrics", args...)
}
