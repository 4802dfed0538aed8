// Package proc locates and terminates the background processes that
// back a session's control connection.
package proc

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strconv"
	"strings"

	"sshmux/internal/transport"
)

// Finder looks up a running process whose command line contains a tag.
type Finder interface {
	// Find returns the first matching PID.  ok is false when nothing
	// matches; err is reserved for a search that could not run.
	Find(ctx context.Context, tag string) (pid int, ok bool, err error)
}

// Killer terminates a process immediately.
type Killer interface {
	Kill(pid int) error
}

// Pgrep implements [Finder] with `pgrep -f`.
type Pgrep struct {
	Runner transport.Runner
	Path   string // defaults to "pgrep"
}

// Find runs pgrep -f tag.  pgrep exits 1 when nothing matches, and any
// non-zero exit is treated as a miss rather than an error.
func (p *Pgrep) Find(ctx context.Context, tag string) (int, bool, error) {
	tool := p.Path
	if tool == "" {
		tool = "pgrep"
	}

	var out bytes.Buffer
	code, err := p.Runner.Run(ctx, transport.Invocation{
		Tool:   tool,
		Args:   []string{"-f", tag},
		Stdout: &out,
	})
	if err != nil {
		return 0, false, err
	}
	if code != 0 {
		return 0, false, nil
	}
	pid, ok := FirstPID(out.String())
	return pid, ok, nil
}

// FirstPID parses pgrep output and returns the first positive PID.
func FirstPID(output string) (int, bool) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pid, err := strconv.Atoi(line)
		if err != nil || pid <= 0 {
			continue
		}
		return pid, true
	}
	return 0, false
}

// SignalKiller implements [Killer] with os.Process.Kill, which sends
// SIGKILL on Unix.
type SignalKiller struct{}

// Kill sends SIGKILL to pid.  A process that already exited is not an
// error.
func (SignalKiller) Kill(pid int) error {
	if pid <= 0 {
		return nil
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
