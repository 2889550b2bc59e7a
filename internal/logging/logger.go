// Package logging builds the zerolog loggers used across the tool.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls logger construction.
type Config struct {
	// Level names the minimum level to emit ("debug", "info", "warn",
	// "error"). Unknown names fall back to info.
	Level string
	// Pretty switches to the human console writer. JSON otherwise.
	Pretty bool
	// Output defaults to stderr, keeping stdout free for results.
	Output io.Writer
}

// New builds the root logger.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// NewWithComponent builds a logger tagged with a component name.
func NewWithComponent(cfg Config, component string) zerolog.Logger {
	return New(cfg).With().Str("component", component).Logger()
}
