// Package retry provides exponential backoff for operations that may
// need a few attempts to observe a state change, such as a forked
// control process becoming visible to process discovery.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ── Permanent errors ─────────────────────────────────────────────────

// PermanentError wraps an error to signal that retrying will not help.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable.  Do returns the inner error
// immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked as permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ── Backoff ──────────────────────────────────────────────────────────

// Backoff implements exponential backoff with optional jitter.
type Backoff struct {
	// InitialDelay is the delay before the first retry (default 50ms).
	InitialDelay time.Duration
	// MaxDelay caps the backoff duration (default 1s).
	MaxDelay time.Duration
	// Multiplier increases the delay each attempt (default 2.0).
	Multiplier float64
	// MaxAttempts is the total number of tries including the first.
	// Zero means one attempt.
	MaxAttempts int
	// Jitter adds ±25% randomisation.
	Jitter bool
}

// DiscoveryBackoff is the schedule used to look up a freshly forked
// control process: four tries over roughly 350ms.
func DiscoveryBackoff() *Backoff {
	return &Backoff{
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     200 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  4,
		Jitter:       true,
	}
}

// Attempts returns the effective attempt budget.
func (b *Backoff) Attempts() int {
	if b == nil || b.MaxAttempts < 1 {
		return 1
	}
	return b.MaxAttempts
}

// Do calls fn until it returns nil, returns a permanent error, or the
// attempt budget or ctx is exhausted.  The attempt passed to fn is
// 1-based.  A nil Backoff makes exactly one attempt.
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	if b == nil {
		b = &Backoff{}
	}
	delay := b.InitialDelay
	if delay <= 0 {
		delay = 50 * time.Millisecond
	}
	multiplier := b.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	maxDelay := b.MaxDelay
	if maxDelay <= 0 {
		maxDelay = time.Second
	}
	attempts := b.Attempts()

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return errors.Unwrap(err)
		}
		if attempt >= attempts {
			if attempts == 1 {
				return err
			}
			return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
		}

		wait := delay
		if b.Jitter {
			wait = addJitter(delay)
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-t.C:
		}

		delay = time.Duration(float64(delay) * multiplier)
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// addJitter adds ±25% randomisation to a duration.
func addJitter(d time.Duration) time.Duration {
	quarter := float64(d) * 0.25
	delta := (rand.Float64() * 2 * quarter) - quarter
	result := float64(d) + delta
	return time.Duration(math.Max(result, float64(time.Millisecond)))
}
