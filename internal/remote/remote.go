// Package remote exposes the operations a caller can run against a
// host once its session is connected, and the entry point that drives
// a session from connect to teardown around a unit of work.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	smerr "sshmux/internal/errors"
	"sshmux/internal/metrics"
	"sshmux/internal/session"
	"sshmux/internal/transport"
	"sshmux/util"
)

// Result is the outcome of Execute.  A non-zero Code is a normal
// outcome, not an error.
type Result struct {
	Success bool
	Code    int
	Stdout  string
	Stderr  string
}

// Remote runs operations over one session's shared control connection.
// Each call spawns a single ssh or scp process and blocks until it
// exits.  Calls may be made concurrently.
type Remote struct {
	sess    *session.Session
	runner  transport.Runner
	ssh     string
	scp     string
	logger  *util.Logger
	metrics *metrics.Collector
}

// New binds a Remote to s using the tools and collaborators of mgr.
func New(mgr *session.Manager, s *session.Session) *Remote {
	st := mgr.Settings()
	return &Remote{
		sess:    s,
		runner:  mgr.Runner(),
		ssh:     st.SSHPath,
		scp:     st.SCPPath,
		logger:  mgr.Logger().With(s.Host),
		metrics: mgr.Metrics(),
	}
}

// Host returns the remote endpoint.
func (r *Remote) Host() string { return r.sess.Host }

// Options returns the session's connection options, for callers that
// need to run their own ssh invocation over the same connection.
func (r *Remote) Options() []string { return r.sess.Options() }

// Execute runs command on the host as a single remote invocation.  The
// command is passed as-is; quoting is the caller's job.
func (r *Remote) Execute(ctx context.Context, command string) (Result, error) {
	if err := r.sess.Ready(); err != nil {
		return Result{}, err
	}

	stdout, stderr := util.GetBuffer(), util.GetBuffer()
	defer util.PutBuffer(stdout)
	defer util.PutBuffer(stderr)

	code, err := r.run(ctx, transport.Invocation{
		Tool:   r.ssh,
		Args:   append(r.sess.Options(), r.sess.Host, command),
		Stdout: stdout,
		Stderr: stderr,
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Success: code == 0,
		Code:    code,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}
	r.metrics.Operation(metrics.OpExecute, res.Success)
	r.logger.Verbose("execute %q: status %d", command, code)
	return res, nil
}

// Upload copies localPath to remotePath on the host.
func (r *Remote) Upload(ctx context.Context, localPath, remotePath string) (bool, error) {
	ok, err := r.copy(ctx, localPath, r.remoteSpec(remotePath))
	if err == nil {
		r.metrics.Operation(metrics.OpUpload, ok)
		r.logger.Verbose("upload %s -> %s: ok=%t", localPath, remotePath, ok)
	}
	return ok, err
}

// Download copies remotePath on the host to localPath.  Like Upload,
// the source comes first.
func (r *Remote) Download(ctx context.Context, remotePath, localPath string) (bool, error) {
	ok, err := r.copy(ctx, r.remoteSpec(remotePath), localPath)
	if err == nil {
		r.metrics.Operation(metrics.OpDownload, ok)
		r.logger.Verbose("download %s -> %s: ok=%t", remotePath, localPath, ok)
	}
	return ok, err
}

// Test evaluates condition with /bin/sh on the host and reports whether
// it exited 0.  Output is discarded.
func (r *Remote) Test(ctx context.Context, condition string) (bool, error) {
	if err := r.sess.Ready(); err != nil {
		return false, err
	}

	args := append(r.sess.Options(), r.sess.Host, "/bin/sh", "-c", QuoteCondition(condition))
	code, err := r.run(ctx, transport.Invocation{Tool: r.ssh, Args: args})
	if err != nil {
		return false, err
	}

	ok := code == 0
	r.metrics.Operation(metrics.OpTest, ok)
	r.logger.Verbose("test %q: %t", condition, ok)
	return ok, nil
}

func (r *Remote) copy(ctx context.Context, src, dst string) (bool, error) {
	if err := r.sess.Ready(); err != nil {
		return false, err
	}
	args := append(r.sess.Options(), src, dst)
	code, err := r.run(ctx, transport.Invocation{Tool: r.scp, Args: args})
	if err != nil {
		return false, err
	}
	return code == 0, nil
}

func (r *Remote) remoteSpec(path string) string {
	return session.SCPDestination(r.sess.Host) + ":" + path
}

func (r *Remote) run(ctx context.Context, inv transport.Invocation) (int, error) {
	code, err := r.runner.Run(ctx, inv)
	if smerr.IsSpawn(err) {
		r.metrics.SpawnError(err.Error())
	}
	return code, err
}

// QuoteCondition renders condition as a double-quoted, JSON-escaped
// string.  ssh joins its arguments with spaces for the remote login
// shell, which strips the quotes again, so the condition reaches
// /bin/sh -c as a single argument.  HTML escaping is disabled because
// the shell would not decode <, and U+2028/U+2029 are written raw for
// the same reason.  The login shell still expands $ and backticks
// inside the quotes.  Invalid UTF-8 is replaced with U+FFFD.
func QuoteCondition(condition string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(condition) // a string always encodes
	return unescapeLineSeparators(strings.TrimSuffix(buf.String(), "\n"))
}

// unescapeLineSeparators undoes encoding/json's \u2028 and \u2029
// escapes, leaving escaped backslashes alone.
func unescapeLineSeparators(s string) string {
	if !strings.Contains(s, `\u202`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		switch {
		case strings.HasPrefix(s[i:], `\u2028`):
			b.WriteRune('\u2028')
			i += 5
		case strings.HasPrefix(s[i:], `\u2029`):
			b.WriteRune('\u2029')
			i += 5
		default:
			b.WriteString(s[i : i+2])
			i++
		}
	}
	return b.String()
}
