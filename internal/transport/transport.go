// Package transport runs the external remote-access tools.  It handles
// the "how" of reaching a host (spawning ssh or scp and collecting the
// exit status) independent of what the invocation means, which is the
// session and remote layers' job.
package transport

import (
	"context"
	"io"
)

// Invocation describes one subprocess run.
type Invocation struct {
	Tool string   // binary name or path
	Args []string // arguments, not including Tool

	// Stdout and Stderr receive the tool's output.  Nil discards it.
	// A tool that daemonizes (ssh -f) keeps these open in the detached
	// child, so for such invocations use nil or an *os.File, never a
	// buffer: a buffer makes Run wait for the child to exit.
	Stdout io.Writer
	Stderr io.Writer
}

// Runner starts external tools.  Implementations include ExecRunner,
// which uses os/exec, and test doubles that record invocations.
type Runner interface {
	// Run starts inv and waits for it to exit.  A tool that ran and
	// exited non-zero is not an error: its status is returned as code.
	// err is non-nil only when the tool could not be run at all.
	Run(ctx context.Context, inv Invocation) (code int, err error)
}
