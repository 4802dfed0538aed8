package remote

import (
	"context"
	"time"

	smerr "sshmux/internal/errors"
	"sshmux/internal/session"
)

// CloseTimeout bounds teardown, which runs even when the caller's
// context is already cancelled.
const CloseTimeout = 10 * time.Second

// WorkFunc is the caller's unit of work for one session.
type WorkFunc func(ctx context.Context, r *Remote) error

// On connects to host, runs work with a Remote bound to the new
// session and closes the session.  Teardown is deferred, so it happens
// when work returns normally, returns an error or panics.  A panic keeps
// unwinding after the control connection is gone.  The returned error
// joins the work error with any teardown error.
func On(ctx context.Context, mgr *session.Manager, host string, work WorkFunc, opts ...session.Option) (err error) {
	s := mgr.Create(host, opts...)

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), CloseTimeout)
		defer cancel()
		if cerr := mgr.Close(closeCtx, s); cerr != nil {
			err = smerr.Join(err, cerr)
		}
	}()

	if err := mgr.Preconnect(ctx, s); err != nil {
		return err
	}
	return work(ctx, New(mgr, s))
}
