package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/technoelf/stomata/internal/infrastructure/config"
)

// ServiceName is attached to every log entry.
const ServiceName = "stomata"

// Logger wraps slog.Logger with the service's default attributes.
//
// All methods are safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New creates a Logger writing to the destination named in cfg.Output.
//
// The handler is JSON unless cfg.Format is "text". Every entry carries
// service and version attributes.
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		output = os.Stderr
	}
	return NewWithWriter(output, cfg, version)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", ServiceName),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

// parseLevel converts a level name to slog.Level, defaulting to info.
func parseLevel(level string) slog.Level {
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

// With returns a new Logger with additional default attributes.
//
//	notifierLog := logger.With("component", "notifier")
//	notifierLog.Info("listening") // includes component=notifier
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default returns a JSON info-level logger on stdout for use before
// configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
