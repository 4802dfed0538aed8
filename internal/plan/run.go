package plan

import (
	"context"
	"errors"
	"fmt"
	"io"

	"sshmux/internal/remote"
	"sshmux/util"
)

// ErrStepFailed is returned when a step that does not ignore errors
// reports failure.
var ErrStepFailed = errors.New("plan step failed")

// Operations is the set of remote operations a plan can use.
// *remote.Remote satisfies it.
type Operations interface {
	Execute(ctx context.Context, command string) (remote.Result, error)
	Upload(ctx context.Context, localPath, remotePath string) (bool, error)
	Download(ctx context.Context, remotePath, localPath string) (bool, error)
	Test(ctx context.Context, condition string) (bool, error)
}

// StepResult records what happened to one step.
type StepResult struct {
	Label   string
	Kind    string
	OK      bool
	Code    int  // exit status of exec steps
	Ignored bool // failed, but ignore_errors was set
}

// Report is the outcome of a plan run.  Steps after a failing step are
// not run and do not appear.
type Report struct {
	Name  string
	Steps []StepResult
}

// Failed counts the steps that did not succeed, ignored ones included.
func (r *Report) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if !s.OK {
			n++
		}
	}
	return n
}

// Runner executes plans.  Exec output is copied to Stdout and Stderr.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *util.Logger
}

// Run executes p's steps in order against ops.  It stops at the first
// failed step unless that step sets ignore_errors, and at the first
// infrastructure error.
func (r *Runner) Run(ctx context.Context, ops Operations, p *Plan) (*Report, error) {
	log := r.Logger
	if log == nil {
		log = util.Discard()
	}
	rep := &Report{Name: p.Name}

	for i, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		res := StepResult{Label: step.Label(), Kind: step.Kind()}
		log.Info("[%d/%d] %s", i+1, len(p.Steps), res.Label)

		ok, code, err := r.runStep(ctx, ops, step)
		if err != nil {
			return rep, fmt.Errorf("step %d (%s): %w", i+1, res.Label, err)
		}
		res.OK, res.Code = ok, code

		if !ok && step.IgnoreErrors {
			res.Ignored = true
			log.Warn("step %d (%s) failed, continuing", i+1, res.Label)
		}
		rep.Steps = append(rep.Steps, res)

		if !ok && !step.IgnoreErrors {
			return rep, fmt.Errorf("step %d (%s): %w", i+1, res.Label, ErrStepFailed)
		}
	}
	return rep, nil
}

func (r *Runner) runStep(ctx context.Context, ops Operations, s Step) (ok bool, code int, err error) {
	switch s.Kind() {
	case "exec":
		res, err := ops.Execute(ctx, s.Exec)
		if err != nil {
			return false, 0, err
		}
		r.copyOut(r.Stdout, res.Stdout)
		r.copyOut(r.Stderr, res.Stderr)
		return res.Success, res.Code, nil
	case "test":
		got, err := ops.Test(ctx, s.Test)
		if err != nil {
			return false, 0, err
		}
		return got == s.Want(), 0, nil
	case "upload":
		ok, err := ops.Upload(ctx, s.Upload.Local, s.Upload.Remote)
		return ok, 0, err
	case "download":
		ok, err := ops.Download(ctx, s.Download.Remote, s.Download.Local)
		return ok, 0, err
	}
	return false, 0, fmt.Errorf("step has no action")
}

func (r *Runner) copyOut(w io.Writer, s string) {
	if w == nil || s == "" {
		return
	}
	_, _ = io.WriteString(w, s)
}
