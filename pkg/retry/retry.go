// Package retry runs an operation again after transient failures, with
// exponential backoff and jitter. It backs calls to the shared stores
// (Redis, PostgreSQL) and the dependency checks at process start.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR CLASSIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// RetryableError marks an error as worth another attempt.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err so the default policy will retry it.
// A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err carries the retryable marker.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// PermanentError stops retries regardless of policy.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so no policy will retry it. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries the permanent marker.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ══════════════════════════════════════════════════════════════════════════════
// POLICY
// ══════════════════════════════════════════════════════════════════════════════

type policy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	jitter       float64

	// retryIf decides per error. When nil, only errors wrapped with
	// Retryable are retried.
	retryIf func(error) bool

	onRetry func(attempt int, err error, delay time.Duration)
}

// Option adjusts the retry policy.
type Option func(*policy)

// WithMaxAttempts sets the total attempt count, first try included.
func WithMaxAttempts(n int) Option {
	return func(p *policy) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithInitialDelay sets the delay before the second attempt.
func WithInitialDelay(d time.Duration) Option {
	return func(p *policy) {
		if d > 0 {
			p.initialDelay = d
		}
	}
}

// WithMaxDelay caps the backoff growth.
func WithMaxDelay(d time.Duration) Option {
	return func(p *policy) {
		if d > 0 {
			p.maxDelay = d
		}
	}
}

// WithMultiplier sets the backoff growth factor (at least 1.0).
func WithMultiplier(m float64) Option {
	return func(p *policy) {
		if m >= 1.0 {
			p.multiplier = m
		}
	}
}

// WithJitter sets the relative jitter, 0 to 1.
func WithJitter(j float64) Option {
	return func(p *policy) {
		if j >= 0 && j <= 1.0 {
			p.jitter = j
		}
	}
}

// WithRetryIf replaces the default marker-based retry decision.
func WithRetryIf(fn func(error) bool) Option {
	return func(p *policy) {
		p.retryIf = fn
	}
}

// WithOnRetry registers a callback fired before each sleep.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(p *policy) {
		p.onRetry = fn
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RETRIER
// ══════════════════════════════════════════════════════════════════════════════

// Retrier executes operations under a fixed policy. Safe for
// concurrent use.
type Retrier struct {
	policy policy
}

// New builds a Retrier. Defaults: 3 attempts, 100ms initial delay,
// 30s cap, doubling backoff, 10% jitter.
func New(opts ...Option) *Retrier {
	p := policy{
		maxAttempts:  3,
		initialDelay: 100 * time.Millisecond,
		maxDelay:     30 * time.Second,
		multiplier:   2.0,
		jitter:       0.1,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return &Retrier{policy: p}
}

// Do runs operation until it succeeds, exhausts the attempt budget, or
// returns an error the policy refuses to retry. The retryable marker is
// stripped from the final error so callers match on the inner error.
func (r *Retrier) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if IsPermanent(err) {
			return errors.Unwrap(err)
		}

		retry := IsRetryable(err)
		if r.policy.retryIf != nil {
			retry = r.policy.retryIf(err)
		}
		if !retry {
			return err
		}

		if attempt >= r.policy.maxAttempts {
			if IsRetryable(err) {
				return errors.Unwrap(err)
			}
			return err
		}

		delay := r.backoff(attempt)
		if r.policy.onRetry != nil {
			r.policy.onRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(delay):
		}
	}
}

// backoff returns the sleep before attempt+1.
func (r *Retrier) backoff(attempt int) time.Duration {
	d := float64(r.policy.initialDelay) * math.Pow(r.policy.multiplier, float64(attempt-1))
	if d > float64(r.policy.maxDelay) {
		d = float64(r.policy.maxDelay)
	}
	if r.policy.jitter > 0 {
		d += d * r.policy.jitter * (rand.Float64()*2 - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// ══════════════════════════════════════════════════════════════════════════════
// PRESETS
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRetrier suits audit ledger writes. The append happens after the
// purchase has committed, so it can afford a longer backoff before
// giving up.
func LedgerRetrier() *Retrier {
	return New(
		WithMaxAttempts(5),
		WithInitialDelay(100*time.Millisecond),
		WithMaxDelay(5*time.Second),
		WithMultiplier(2.0),
		WithJitter(0.2),
	)
}

// StartupRetrier suits dependency pings at process start, where the
// stores may still be coming up.
func StartupRetrier() *Retrier {
	return New(
		WithMaxAttempts(5),
		WithInitialDelay(500*time.Millisecond),
		WithMaxDelay(10*time.Second),
		WithMultiplier(2.0),
		WithJitter(0.1),
	)
}
