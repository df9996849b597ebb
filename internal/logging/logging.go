// Package logging configures structured zerolog loggers for the Warren
// daemons. Output is JSON by default for log aggregation; the console
// format is for local development.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger construction options.
type Config struct {
	Level     string `yaml:"level"`     // trace, debug, info, warn, error (default info)
	Format    string `yaml:"format"`    // "json" (default) or "console"
	Component string `yaml:"-"`         // Component name stamped on every event
}

// New creates a logger writing to w with the given configuration.
func New(w io.Writer, cfg Config) zerolog.Logger {
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(w).Level(parseLevel(cfg.Level)).With().Timestamp()
	if cfg.Component != "" {
		logger = logger.Str("component", cfg.Component)
	}

	return logger.Logger()
}

// NewStderr creates a logger writing to stderr, the default for daemons.
func NewStderr(cfg Config) zerolog.Logger {
	return New(os.Stderr, cfg)
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
