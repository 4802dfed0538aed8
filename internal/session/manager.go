package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	smerr "sshmux/internal/errors"
	"sshmux/internal/metrics"
	"sshmux/internal/proc"
	"sshmux/internal/retry"
	"sshmux/internal/transport"
	"sshmux/util"
)

// Settings are the static knobs of a Manager.
type Settings struct {
	SSHPath      string   // remote-access tool, default "ssh"
	SCPPath      string   // secure-copy tool, default "scp"
	ControlDir   string   // socket directory, default os.TempDir()
	ExtraOptions []string // appended to the defaults of every session

	// Discovery is the lookup schedule used right after the master is
	// spawned.  Nil means a single lookup.
	Discovery *retry.Backoff

	// ControlOutput receives the background master's stderr.  It must
	// be an *os.File because the detached master keeps it open.
	ControlOutput *os.File
}

// Deps are the collaborators a Manager talks to.  Zero values are
// replaced with the real implementations by NewManager.
type Deps struct {
	Runner  transport.Runner
	Finder  proc.Finder
	Killer  proc.Killer
	IDs     IDGenerator
	Logger  *util.Logger
	Metrics *metrics.Collector
}

// Manager creates, connects and closes Sessions.
type Manager struct {
	settings Settings
	deps     Deps
}

// NewManager fills in defaults and returns a ready Manager.
func NewManager(settings Settings, deps Deps) *Manager {
	if settings.SSHPath == "" {
		settings.SSHPath = "ssh"
	}
	if settings.SCPPath == "" {
		settings.SCPPath = "scp"
	}
	if settings.ControlDir == "" {
		settings.ControlDir = DefaultControlDir()
	}
	if deps.Logger == nil {
		deps.Logger = util.Discard()
	}
	if deps.Runner == nil {
		deps.Runner = transport.NewExecRunner(deps.Logger)
	}
	if deps.Finder == nil {
		deps.Finder = &proc.Pgrep{Runner: deps.Runner}
	}
	if deps.Killer == nil {
		deps.Killer = proc.SignalKiller{}
	}
	if deps.IDs == nil {
		deps.IDs = UUIDGenerator{}
	}
	return &Manager{settings: settings, deps: deps}
}

// Settings returns the effective settings.
func (m *Manager) Settings() Settings { return m.settings }

// Runner returns the subprocess runner shared by all sessions.
func (m *Manager) Runner() transport.Runner { return m.deps.Runner }

// Logger returns the manager's logger.
func (m *Manager) Logger() *util.Logger { return m.deps.Logger }

// Metrics returns the collector, which may be nil.
func (m *Manager) Metrics() *metrics.Collector { return m.deps.Metrics }

// Create builds a Session for host.  It performs no I/O.
func (m *Manager) Create(host string, opts ...Option) *Session {
	var co createOptions
	for _, o := range opts {
		o(&co)
	}

	s := &Session{Host: host, Tag: m.deps.IDs.NewID()}

	log := m.deps.Logger.With(host)

	if co.override != nil {
		s.options = make([]string, len(co.override))
		carriesTag := false
		for i, o := range co.override {
			s.options[i] = strings.ReplaceAll(o, TagPlaceholder, s.Tag)
			carriesTag = carriesTag || s.options[i] != o
		}
		if !carriesTag {
			log.Warn("options do not contain %s; the control process cannot be found or closed", TagPlaceholder)
		}
		return s
	}

	dir := m.settings.ControlDir
	if p := ControlPath(dir, s.Tag); !ControlPathFits(p) {
		log.Warn("control path %s is too long for a unix socket, using %s", p, FallbackControlDir)
		dir = FallbackControlDir
	}
	s.controlPath = ControlPath(dir, s.Tag)
	s.options = DefaultOptions(dir, s.Tag)
	s.options = append(s.options, m.settings.ExtraOptions...)
	s.options = append(s.options, co.extra...)
	return s
}

// Preconnect starts the background master (`ssh <opts> <host> -fNT`),
// waits for the spawning invocation to return and then looks up the
// master's PID by tag.  Only an invalid host or a failure to start ssh
// is returned; a non-zero exit or a discovery miss is logged and the
// session opens anyway.
func (m *Manager) Preconnect(ctx context.Context, s *Session) error {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return smerr.ErrSessionClosed
	case StateOpen:
		s.mu.Unlock()
		return nil
	}
	if _, _, err := SplitHost(s.Host); err != nil {
		s.mu.Unlock()
		return &smerr.ConfigError{Field: "host", Value: s.Host, Message: err.Error()}
	}
	s.attempted = true
	s.mu.Unlock()

	log := m.deps.Logger.With(s.Host)

	inv := transport.Invocation{
		Tool: m.settings.SSHPath,
		Args: append(s.Options(), s.Host, "-fNT"),
	}
	if m.settings.ControlOutput != nil {
		inv.Stderr = m.settings.ControlOutput
	}

	log.Verbose("starting control connection (tag %s)", s.Tag)
	code, err := m.deps.Runner.Run(ctx, inv)
	if err != nil {
		if smerr.IsSpawn(err) {
			m.deps.Metrics.SpawnError(err.Error())
		}
		return fmt.Errorf("preconnect %s: %w", s.Host, err)
	}
	if code != 0 {
		log.Warn("control connection exited with status %d", code)
	}

	pid, ok := m.discover(ctx, log, s)
	if !ok {
		log.Warn("no control process matches tag %s", s.Tag)
		m.deps.Metrics.DiscoveryMiss()
	}

	s.mu.Lock()
	s.state = StateOpen
	s.pid = pid
	s.mu.Unlock()

	m.deps.Metrics.SessionOpened()
	return nil
}

// Close kills the session's master, found again by tag, and removes a
// managed control socket.  A missing master is a silent no-op.  Close
// is idempotent and always leaves the session closed.
func (m *Manager) Close(ctx context.Context, s *Session) error {
	s.mu.Lock()
	prev := s.state
	attempted := s.attempted
	s.state = StateClosed
	s.mu.Unlock()

	if prev == StateClosed {
		return nil
	}
	if prev == StateOpen {
		defer m.deps.Metrics.SessionClosed()
	}

	log := m.deps.Logger.With(s.Host)
	defer m.removeSocket(log, s)

	if !attempted {
		return nil
	}

	pid, ok := m.find(ctx, log, s)
	if !ok {
		log.Debug("no control process to stop")
		return nil
	}

	log.Verbose("killing control process %d", pid)
	if err := m.deps.Killer.Kill(pid); err != nil {
		return fmt.Errorf("close %s: killing control process %d: %w", s.Host, pid, err)
	}
	return nil
}

// discover looks the fresh master up, retrying misses on the
// Discovery schedule.  Finder errors are not retried.
func (m *Manager) discover(ctx context.Context, log *util.Logger, s *Session) (int, bool) {
	var pid int
	err := m.settings.Discovery.Do(ctx, func(attempt int) error {
		p, ok, err := m.deps.Finder.Find(ctx, s.Tag)
		switch {
		case err != nil:
			return retry.Permanent(err)
		case !ok:
			if attempt < m.settings.Discovery.Attempts() {
				log.Debug("control process not visible yet (attempt %d)", attempt)
			}
			return errNoMatch
		}
		pid = p
		return nil
	})
	switch {
	case err == nil:
		log.Debug("control process %d", pid)
		return pid, true
	case !errors.Is(err, errNoMatch):
		log.Warn("locating control process: %v", err)
	}
	return 0, false
}

var errNoMatch = errors.New("no matching process")

func (m *Manager) find(ctx context.Context, log *util.Logger, s *Session) (int, bool) {
	pid, ok, err := m.deps.Finder.Find(ctx, s.Tag)
	switch {
	case err != nil:
		log.Warn("locating control process: %v", err)
		return 0, false
	case !ok:
		return 0, false
	}
	log.Debug("control process %d", pid)
	return pid, true
}

// removeSocket deletes a control socket left behind by SIGKILL.
func (m *Manager) removeSocket(log *util.Logger, s *Session) {
	if s.controlPath == "" {
		return
	}
	if err := os.Remove(s.controlPath); err != nil && !os.IsNotExist(err) {
		log.Debug("removing %s: %v", s.controlPath, err)
	}
}
