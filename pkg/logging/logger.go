// Package logging configures the global zerolog logger and names the
// components that log through it.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Component names used in the "component" field.
const (
	ComponentClient     = "catalog-client"
	ComponentScheduler  = "batch-scheduler"
	ComponentWalker     = "list-walker"
	ComponentGeneration = "generation-index"
	ComponentState      = "state-store"
	ComponentURLSync    = "url-sync"
	ComponentSession    = "browse-session"
	ComponentHistory    = "history"
	ComponentServer     = "http-server"
	ComponentCLI        = "pokedex"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum level written.
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Output defaults to os.Stderr when nil.
	Output io.Writer
}

// DefaultConfig returns JSON logging at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// ParseLevel validates a level name. "warning" is accepted for warn.
func ParseLevel(name string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return "", fmt.Errorf("unknown log level %q", name)
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(zerologLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

// zerologLevel maps a level to zerolog, falling back to info.
func zerologLevel(level LogLevel) zerolog.Level {
	parsed, err := ParseLevel(string(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	switch parsed {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger derives a logger from the global one with the component field set.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: cache hits and misses, conditional requests, store changes, URL
// writes, skipped generation species entries.
//
// Info: catalog loads, generation index builds, 304 responses, server
// startup and shutdown.
//
// Warn: retry attempts, quota throttling, cache errors, a list count that
// changes mid-walk.
//
// Error: fetches that used every attempt, failed detail batches,
// configuration errors.
//
// Context Fields:
//   - component: one of the Component constants
//   - resource: catalog resource (pokemon, generation)
//   - endpoint: request path relative to the base URL
//   - status_code: HTTP status code
//   - attempt: retry attempt number
//   - error_class: client, server, rate_limit or network
//   - batch / chunks: scheduler position
//   - query: canonical browse query string
