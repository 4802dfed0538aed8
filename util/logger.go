// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// sink is shared by a Logger and every scoped copy made with With, so
// lines from different sessions never interleave mid-line.
type sink struct {
	mu         sync.Mutex
	output     io.Writer
	timestamps bool
}

// Logger writes levelled messages to stderr with optional timestamps,
// level prefixes and a scope (usually the remote host).
type Logger struct {
	level LogLevel
	scope string
	sink  *sink
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug).
func NewLogger(verbosity int) *Logger {
	return &Logger{
		level: LogLevel(verbosity),
		sink: &sink{
			output:     os.Stderr,
			timestamps: verbosity >= 3, // auto-enable timestamps in debug mode
		},
	}
}

// Discard returns a Logger that prints nothing, not even errors.
func Discard() *Logger {
	l := NewLogger(0)
	l.SetOutput(io.Discard)
	return l
}

// With returns a copy of l whose messages are prefixed with scope.
// The copy shares l's output and timestamp settings.
func (l *Logger) With(scope string) *Logger {
	if l.scope != "" {
		scope = l.scope + " " + scope
	}
	return &Logger{level: l.level, scope: scope, sink: l.sink}
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) {
	l.sink.mu.Lock()
	l.sink.timestamps = on
	l.sink.mu.Unlock()
}

// SetOutput overrides the output writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	l.sink.output = w
	l.sink.mu.Unlock()
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// Info prints when verbosity ≥ 1.  Prefixed with [INF].
func (l *Logger) Info(format string, args ...any) {
	if l.level >= LogNormal {
		l.write("INF", format, args...)
	}
}

// Warn prints when verbosity ≥ 1.  Prefixed with [WRN].
func (l *Logger) Warn(format string, args ...any) {
	if l.level >= LogNormal {
		l.write("WRN", format, args...)
	}
}

// Verbose prints when verbosity ≥ 2.  Prefixed with [VRB].
func (l *Logger) Verbose(format string, args ...any) {
	if l.level >= LogVerbose {
		l.write("VRB", format, args...)
	}
}

// Debug prints when verbosity ≥ 3.  Prefixed with [DBG].
func (l *Logger) Debug(format string, args ...any) {
	if l.level >= LogDebug {
		l.write("DBG", format, args...)
	}
}

// Error always prints regardless of verbosity.  Prefixed with [ERR].
func (l *Logger) Error(format string, args ...any) {
	l.write("ERR", format, args...)
}

func (l *Logger) write(level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if l.scope != "" {
		msg = l.scope + ": " + msg
	}

	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timestamps {
		ts := time.Now().Format("15:04:05.000")
		fmt.Fprintf(s.output, "%s [%s] %s\n", ts, level, msg)
	} else {
		fmt.Fprintf(s.output, "[%s] %s\n", level, msg)
	}
}
