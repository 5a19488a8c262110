// Package utils
package utils

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	logger zerolog.Logger
	once   sync.Once
)

// LogOptions controls the process-wide logger. Level is a zerolog level name;
// an unknown or empty level means info.
type LogOptions struct {
	Level string
	JSON  bool
	Out   io.Writer
}

// InitLogger configures the process-wide logger. Only the first call, or the
// first GetLogger, takes effect.
func InitLogger(opts LogOptions) {
	once.Do(func() {
		logger = newLogger(opts)
	})
}

// GetLogger returns the process-wide logger, with defaults if InitLogger was
// never called.
func GetLogger() *zerolog.Logger {
	once.Do(func() {
		logger = newLogger(LogOptions{})
	})
	return &logger
}

func newLogger(opts LogOptions) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if !opts.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(ParseLevel(opts.Level)).With().Timestamp().Str("service", "financeiq").Logger()
}

// ParseLevel maps a level name to a zerolog level, falling back to info.
func ParseLevel(name string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
