// Package retry runs an operation with exponential backoff and jitter for
// transient failures of external systems.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Policy describes how often and how patiently to retry.
type Policy struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Retryable decides whether err is worth another attempt. Nil retries
	// everything except context errors.
	Retryable func(err error) bool
}

// DefaultPolicy retries twice starting at 200ms.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: 2, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// permanent marks an error that must not be retried.
type permanent struct{ err error }

func (p *permanent) Error() string { return p.err.Error() }
func (p *permanent) Unwrap() error { return p.err }

// Permanent wraps err so Do returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanent{err: err}
}

// Do calls fn until it succeeds, the policy gives up, or ctx is done. The
// last error from fn is returned; a context error is only returned when fn
// never ran or itself failed with it.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return lastErr
			}
			return ctx.Err()
		}

		if attempt > 0 {
			timer := time.NewTimer(p.delay(attempt))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return lastErr
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		var perm *permanent
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err
		if !p.retryable(err) || ctx.Err() != nil {
			return err
		}
	}
	return lastErr
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return true
}

// delay is full jitter over min(MaxDelay, BaseDelay * 2^(attempt-1)), never
// below a millisecond.
func (p Policy) delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	exp := float64(base) * math.Pow(2, float64(attempt-1))
	if p.MaxDelay > 0 && exp > float64(p.MaxDelay) {
		exp = float64(p.MaxDelay)
	}
	jittered := time.Duration(rand.Float64() * exp)
	if jittered < time.Millisecond {
		jittered = time.Millisecond
	}
	return jittered
}
