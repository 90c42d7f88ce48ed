// Package logger configures the zerolog logger shared by the build and dev commands.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options configures Setup.
type Options struct {
	// Debug lowers the level to debug.
	Debug bool

	// JSON writes structured JSON lines instead of the console format.
	JSON bool

	// Out defaults to os.Stderr.
	Out io.Writer
}

// Setup returns a logger writing to stderr. Interactive runs get the
// console writer with short timestamps; JSON output is meant for CI logs.
func Setup(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
	}

	if opts.JSON {
		return zerolog.New(out).Level(level).With().Timestamp().Logger()
	}

	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.TimeOnly,
	}).Level(level).With().Timestamp().Logger()

	if opts.Debug {
		logger = logger.With().Caller().Logger()
	}

	return logger
}
