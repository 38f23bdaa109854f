package gateway

import (
	"context"
	"errors"
	"time"
)

// permanentError marks a job failure that no amount of retrying will fix,
// such as an unknown delivery target or a missing credential.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the retry policy gives up on it immediately.
// Permanent(nil) is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err, or anything it wraps, was marked
// permanent. Cancellation and unsealed records count as permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, ErrUnsealed)
}

// RetryPolicy retries failed jobs with doubling backoff.
type RetryPolicy struct {
	Attempts int           // total tries, including the first
	Base     time.Duration // delay after the first failure
	Cap      time.Duration // upper bound on any single delay
}

// DefaultRetryPolicy tries three times, waiting 1s then 2s.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{Attempts: 3, Base: time.Second, Cap: 30 * time.Second}
}

// Delay returns the wait after the given failed attempt (1-indexed).
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	d := p.Base
	for i := 1; i < attempt && (p.Cap == 0 || d < p.Cap); i++ {
		d *= 2
	}
	if p.Cap > 0 && d > p.Cap {
		return p.Cap
	}
	return d
}

// Run calls fn until it succeeds, fails permanently, or the attempts run
// out, and returns the last error. Waiting stops early when ctx is done.
func (p *RetryPolicy) Run(ctx context.Context, fn func() error) error {
	attempts := max(p.Attempts, 1)
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil || IsPermanent(err) || attempt == attempts {
			return err
		}
		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
