// Package log provides structured logging for aigene.
//
// Subsystems take a Logger through their options and fall back to the
// process-wide default installed by the CLI after it parses verbosity flags.
//
// Output semantics:
//   - Operator output (stdout): chat text, install progress, summaries
//   - Diagnostics (stderr): Debug, Info, Warn, Error records
//
// Verbosity levels:
//   - ERROR (--quiet)
//   - WARN (default)
//   - INFO (--verbose)
//   - DEBUG (--debug)
package log

import (
	"log/slog"
	"sync"
)

// Logger is the structured logging interface used across aigene.
type Logger interface {
	// Debug is for internal state: pip arguments, probe results, record paths.
	Debug(msg string, args ...any)

	// Info is for operational context such as "trying mirror".
	Info(msg string, args ...any)

	// Warn is for recoverable problems: a corrupt record that was reset,
	// a mirror timeout, an unparsable script.
	Warn(msg string, args ...any)

	// Error is for failures that stop the current operation.
	Error(msg string, args ...any)

	// With returns a Logger that adds the given attributes to every record.
	With(args ...any) Logger
}

type slogLogger struct {
	l *slog.Logger
}

// New creates a Logger backed by the given slog handler.
func New(h slog.Handler) Logger {
	return &slogLogger{l: slog.New(h)}
}

func (s *slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

func (s *slogLogger) With(args ...any) Logger {
	return &slogLogger{l: s.l.With(args...)}
}

type noopLogger struct{}

// NewNoop returns a logger that discards everything.
func NewNoop() Logger {
	return noopLogger{}
}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) With(...any) Logger   { return noopLogger{} }

var (
	defaultLogger Logger = noopLogger{}
	defaultMu     sync.RWMutex
)

// Default returns the process-wide logger, or a noop logger if none was set.
func Default() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault installs the process-wide logger.
func SetDefault(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if l == nil {
		l = noopLogger{}
	}
	defaultLogger = l
}

// OrDefault returns l, or the process-wide logger when l is nil.
func OrDefault(l Logger) Logger {
	if l == nil {
		return Default()
	}
	return l
}
