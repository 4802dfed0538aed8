package transport

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	smerr "sshmux/internal/errors"
	"sshmux/util"
)

// DefaultWaitDelay bounds how long Run waits for output pipes after the
// tool exits or the context is cancelled.
const DefaultWaitDelay = 5 * time.Second

// ExecRunner implements [Runner] with os/exec.
type ExecRunner struct {
	logger    *util.Logger
	waitDelay time.Duration
}

// NewExecRunner returns a Runner that spawns real processes.
func NewExecRunner(logger *util.Logger) *ExecRunner {
	return &ExecRunner{logger: logger, waitDelay: DefaultWaitDelay}
}

// Run starts the tool, waits for it and translates the outcome.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (int, error) {
	cmd := exec.CommandContext(ctx, inv.Tool, inv.Args...)
	cmd.Stdout = inv.Stdout
	cmd.Stderr = inv.Stderr
	cmd.WaitDelay = r.waitDelay

	r.logger.Debug("exec: %s %s", inv.Tool, strings.Join(inv.Args, " "))

	if err := cmd.Start(); err != nil {
		return -1, smerr.Spawn(inv.Tool, err)
	}

	err := cmd.Wait()
	if err == nil {
		return 0, nil
	}

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		code := ee.ExitCode()
		if code < 0 {
			// Killed by a signal, usually our own context cancellation.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return code, ctxErr
			}
		}
		r.logger.Debug("exec: %s exited %d", inv.Tool, code)
		return code, nil
	}

	// ErrWaitDelay: the tool exited but left its output pipes open.
	if errors.Is(err, exec.ErrWaitDelay) {
		return cmd.ProcessState.ExitCode(), nil
	}
	return -1, err
}
