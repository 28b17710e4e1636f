package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string
	Format string
	Output string
	// Service and Version are attached to every record when set.
	Service string
	Version string
	// Writer overrides Output.
	Writer io.Writer
}

// NewLogger creates a structured logger based on configuration.
func NewLogger(config LoggingConfig) *slog.Logger {
	output := config.Writer
	if output == nil {
		switch strings.ToLower(config.Output) {
		case "stderr":
			output = os.Stderr
		default:
			output = os.Stdout
		}
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(config.Level)}

	var handler slog.Handler
	switch strings.ToLower(config.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	logger := slog.New(handler)
	if config.Service != "" {
		logger = logger.With("service", config.Service)
	}
	if config.Version != "" {
		logger = logger.With("version", config.Version)
	}
	return logger
}

// ParseLevel maps a level name to a slog.Level. Unknown names are info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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
