// Package logging builds the structured logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const permission = 0664

// Builder collects logger options.
type Builder struct {
	writer    io.Writer
	path      string
	level     string
	verbosity int
}

// Logger is a zerolog logger with the engine's numeric verbosity gate.
//
// Verbosity levels: 0 errors and lifecycle, 1 connections, 2 messages,
// 3 layer mutations, 4 values.
type Logger struct {
	zerolog.Logger
	file      *os.File
	verbosity int
}

// New starts a builder that writes to stderr.
func New() *Builder {
	return &Builder{}
}

// FromPath appends to a log file instead of stderr.
func (b *Builder) FromPath(path string) *Builder {
	b.path = path
	return b
}

// FromBuffer writes to w.
func (b *Builder) FromBuffer(w io.Writer) *Builder {
	b.writer = w
	return b
}

// Level sets the minimum zerolog level by name ("debug", "info", ...).
func (b *Builder) Level(level string) *Builder {
	b.level = level
	return b
}

// Verbosity sets the numeric verbosity gate used by Log.
func (b *Builder) Verbosity(v int) *Builder {
	b.verbosity = v
	return b
}

// Make opens the output and returns the logger.
func (b *Builder) Make() (*Logger, error) {
	l := &Logger{verbosity: b.verbosity}
	var w io.Writer = os.Stderr
	if b.writer != nil {
		w = b.writer
	}
	if b.path != "" {
		f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.file = f
		w = zerolog.SyncWriter(f)
	}
	zl := zerolog.New(w).With().Timestamp().Logger()
	if b.level != "" {
		lvl, err := zerolog.ParseLevel(strings.ToLower(b.level))
		if err != nil {
			if l.file != nil {
				l.file.Close()
			}
			return nil, fmt.Errorf("log level %q: %w", b.level, err)
		}
		zl = zl.Level(lvl)
	}
	l.Logger = zl
	return l, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// V reports whether messages at verbosity level are written.
func (l *Logger) V(level int) bool {
	return l != nil && level <= l.verbosity
}

// Verbosity returns the configured verbosity.
func (l *Logger) Verbosity() int {
	if l == nil {
		return 0
	}
	return l.verbosity
}

// Log writes a printf-style message when level is within the verbosity.
func (l *Logger) Log(level int, format string, args ...any) {
	if !l.V(level) {
		return
	}
	l.Info().Int("v", level).Msgf(format, args...)
}

// With returns a child logger carrying a string field.
func (l *Logger) With(key, value string) *Logger {
	if l == nil {
		return Nop()
	}
	return &Logger{
		Logger:    l.Logger.With().Str(key, value).Logger(),
		verbosity: l.verbosity,
	}
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return Nop()
	}
	return l
}
