// Package session owns the lifecycle of one multiplexed SSH connection.
//
// A Session is tagged with a unique identifier that is embedded in the
// ControlPath of its background ssh master.  The tag is later used to
// find that master process and kill it, so the connection never
// outlives the work it was opened for.
package session

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	smerr "sshmux/internal/errors"
)

// TagPlaceholder is replaced with the session tag in caller-supplied
// option lists, so overrides can still carry the tag for discovery.
const TagPlaceholder = "%tag%"

// State is where a Session is in its lifecycle.
type State int

const (
	StateCreated State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// IDGenerator produces session tags.
type IDGenerator interface {
	NewID() string
}

// IDFunc adapts a function to [IDGenerator].
type IDFunc func() string

// NewID calls f.
func (f IDFunc) NewID() string { return f() }

// UUIDGenerator returns random v4 UUIDs without dashes, which keeps
// socket paths short and the tag safe to use as a pgrep pattern.
type UUIDGenerator struct{}

const tagLen = 32

// NewID returns a fresh 32-character hex tag.
func (UUIDGenerator) NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// DefaultOptions returns the multiplexing options for tag: reuse an
// existing master when there is one, and put the control socket in dir.
func DefaultOptions(dir, tag string) []string {
	return []string{
		"-o", "ControlMaster=auto",
		"-o", "ControlPath=" + ControlPath(dir, tag),
	}
}

// ControlPath is the socket location used by DefaultOptions.
func ControlPath(dir, tag string) string {
	return filepath.Join(dir, "sshmux-"+tag+".sock")
}

// Unix socket paths hold at most 103 bytes on macOS and the BSDs, and
// ssh first binds the master to ControlPath plus a 17-byte random
// suffix before renaming it into place.
const (
	maxSocketPath = 103
	muxTempSuffix = 17

	// FallbackControlDir is used when a control path would not fit.
	FallbackControlDir = "/tmp"
)

// ControlPathFits reports whether ssh can bind a master socket at path.
func ControlPathFits(path string) bool {
	return len(path)+muxTempSuffix <= maxSocketPath
}

// DefaultControlDir returns os.TempDir(), or FallbackControlDir when a
// socket for a full-length tag would not fit there (macOS $TMPDIR).
func DefaultControlDir() string {
	dir := os.TempDir()
	if ControlPathFits(ControlPath(dir, strings.Repeat("0", tagLen))) {
		return dir
	}
	return FallbackControlDir
}

// Session represents one logical connection to a remote host.
type Session struct {
	Host string
	Tag  string

	options     []string
	controlPath string // empty when the caller replaced the options

	mu        sync.RWMutex
	state     State
	attempted bool // Preconnect ran the background ssh at least once
	pid       int
}

// Options returns a copy of the connection options passed to every
// ssh and scp invocation for this session.
func (s *Session) Options() []string {
	out := make([]string, len(s.options))
	copy(out, s.options)
	return out
}

// ControlPath returns the managed control socket path, or "" when the
// options were supplied by the caller.
func (s *Session) ControlPath() string { return s.controlPath }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// PID returns the control process found during Preconnect, or 0.
func (s *Session) PID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pid
}

// Ready returns nil when remote operations may run on s.
func (s *Session) Ready() error {
	switch s.State() {
	case StateOpen:
		return nil
	case StateClosed:
		return smerr.ErrSessionClosed
	default:
		return smerr.ErrNotConnected
	}
}

// ── Creation options ─────────────────────────────────────────────────

type createOptions struct {
	override []string
	extra    []string
}

// Option customises Create.
type Option func(*createOptions)

// WithOptions replaces the whole option list, including the default
// multiplexing flags.  TagPlaceholder in any element is substituted.
func WithOptions(opts []string) Option {
	return func(o *createOptions) {
		o.override = append([]string{}, opts...)
	}
}

// WithExtraOptions appends opts after the default multiplexing flags.
// Ignored when WithOptions is also given.
func WithExtraOptions(opts ...string) Option {
	return func(o *createOptions) {
		o.extra = append(o.extra, opts...)
	}
}
