package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns the TUI logger. The terminal belongs to the UI, so nothing is
// written unless debug is on; then records go to path.
func New(debug bool, path string) (zerolog.Logger, io.Closer, error) {
	if !debug {
		return zerolog.Nop(), io.NopCloser(nil), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return zerolog.Nop(), io.NopCloser(nil), err
	}
	log := zerolog.New(f).With().Timestamp().Str("component", "swashark").Logger().Level(zerolog.DebugLevel)
	return log, f, nil
}

// Console returns a human-readable logger for the HTTP host and the
// one-shot commands.
func Console(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger().Level(level)
}
