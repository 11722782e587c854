// Package log constructs the process-wide zerolog logger.
package log

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger so call sites can do log.New(...).Logger.
type Logger struct {
	zerolog.Logger
}

// New builds a Logger at the given level ("trace".."error"), optionally
// rendering human-readable console output instead of JSON.
func New(level string, pretty bool) Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var out zerolog.ConsoleWriter
	var logger zerolog.Logger
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		logger = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
	}

	return Logger{Logger: logger}
}
