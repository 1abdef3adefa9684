// Package logging builds the zerolog logger used by the binaries.
//
// Library packages do not import zerolog; they accept a small Printf-style
// Logger. Printer adapts a zerolog.Logger to it at info level, since
// zerolog's own Printf logs at debug.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Printf is the logging surface library packages depend on.
type Printf interface {
	Printf(format string, v ...any)
}

// Discard drops every message.
type Discard struct{}

func (Discard) Printf(string, ...any) {}

// Printer returns l as a Printf logging at info level.
func Printer(l zerolog.Logger) Printf { return printer{l: l} }

type printer struct{ l zerolog.Logger }

func (p printer) Printf(format string, v ...any) { p.l.Info().Msgf(format, v...) }

// ParseLevel maps a level name to a zerolog level. Unknown or empty names
// yield info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New returns a logger writing to stderr. format "text" (or "console") uses
// the human readable console writer, anything else JSON lines.
func New(level, format string) zerolog.Logger {
	return NewWriter(os.Stderr, level, format)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, level, format string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	out := w
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text", "console":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	return zerolog.New(out).Level(ParseLevel(level)).With().Timestamp().Logger()
}
