// Package errors provides domain-specific error types for sshmux.
//
// Remote failures are data (a non-zero exit code), so the types here only
// cover infrastructure problems: tools that cannot be started, sessions
// used outside their lifetime, and invalid configuration.
package errors

import (
	"errors"
	"fmt"
	"os/exec"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrNotConnected    = errors.New("session is not connected")
	ErrSessionClosed   = errors.New("session is closed")
	ErrProcessNotFound = errors.New("control process not found")
)

// ── Structured error types ───────────────────────────────────────────

// SpawnError reports that an external tool could not be started at all,
// as opposed to one that ran and exited non-zero.
type SpawnError struct {
	Tool string // binary name or path, e.g. "ssh"
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Tool, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// ExitError carries a remote exit status up to the CLI so it can be
// used as the process exit code.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("remote command exited with status %d", e.Code)
}

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Spawn wraps err as a SpawnError for tool.
func Spawn(tool string, err error) *SpawnError {
	return &SpawnError{Tool: tool, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsSpawn reports whether err means a tool binary could not be started.
func IsSpawn(err error) bool {
	var se *SpawnError
	return errors.As(err, &se)
}

// IsNotFound reports whether err is a missing-binary failure.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}

// ExitCode extracts the status from an ExitError, or returns 1 for any
// other non-nil error and 0 for nil.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 1
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use sshmux/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
