// Package logger provides structured logging with subsystem-specific levels
// and OpenTelemetry trace context integration.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const loggerKey contextKey = "logger"

// Subsystem names used for per-subsystem log levels.
const (
	SubsystemAPI       = "API"
	SubsystemInstances = "INSTANCES"
	SubsystemAttach    = "ATTACH"
	SubsystemVMM       = "VMM"
)

// Config holds log levels. LOG_LEVEL sets the default and
// LOG_LEVEL_<SUBSYSTEM> overrides it for one subsystem.
type Config struct {
	DefaultLevel    slog.Level
	SubsystemLevels map[string]slog.Level
	AddSource       bool
}

// NewConfig reads log levels from the environment.
func NewConfig() Config {
	cfg := Config{
		DefaultLevel:    parseLevel(os.Getenv("LOG_LEVEL"), slog.LevelInfo),
		SubsystemLevels: make(map[string]slog.Level),
		AddSource:       os.Getenv("LOG_ADD_SOURCE") == "true",
	}
	for _, sub := range []string{SubsystemAPI, SubsystemInstances, SubsystemAttach, SubsystemVMM} {
		if v := os.Getenv("LOG_LEVEL_" + sub); v != "" {
			cfg.SubsystemLevels[sub] = parseLevel(v, cfg.DefaultLevel)
		}
	}
	return cfg
}

// LevelFor returns the level for a subsystem.
func (c Config) LevelFor(subsystem string) slog.Level {
	if level, ok := c.SubsystemLevels[strings.ToUpper(subsystem)]; ok {
		return level
	}
	return c.DefaultLevel
}

func parseLevel(s string, fallback slog.Level) slog.Level {
	if s == "" {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return fallback
	}
	return level
}

// NewSubsystemLogger creates a JSON logger on stdout for a subsystem.
// When otelHandler is non-nil, records are also sent to it.
func NewSubsystemLogger(subsystem string, cfg Config, otelHandler slog.Handler) *slog.Logger {
	return newSubsystemLogger(os.Stdout, subsystem, cfg, otelHandler)
}

func newSubsystemLogger(w io.Writer, subsystem string, cfg Config, otelHandler slog.Handler) *slog.Logger {
	level := cfg.LevelFor(subsystem)
	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	})
	if otelHandler != nil {
		handler = &fanoutHandler{handlers: []slog.Handler{handler, &levelHandler{Handler: otelHandler, level: level}}}
	}
	handler = &traceContextHandler{Handler: handler}
	return slog.New(handler).With("subsystem", strings.ToLower(subsystem))
}

// AddToContext adds a logger to the context
func AddToContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or returns default
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
