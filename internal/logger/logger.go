// Package logger holds the process-wide structured logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the package-level zerolog logger used throughout the application.
// It discards output until Init is called, which keeps tests quiet.
var Logger = zerolog.Nop()

// Init sets up the global zerolog logger with structured JSON output.
// Level is parsed from the given string (e.g. "debug", "info", "warn", "error").
func Init(level, service string) {
	InitWithWriter(os.Stdout, level, service)
}

// InitWithWriter is Init with an explicit destination
func InitWithWriter(w io.Writer, level, service string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond
	zerolog.DurationFieldInteger = true

	Logger = zerolog.New(w).With().
		Timestamp().
		Str("service", service).
		Logger()
}

// With returns a child logger tagged with a component name
func With(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}
