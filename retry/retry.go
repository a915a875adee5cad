// Package retry provides classification-aware retry with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Class is the retry decision for a failed attempt.
type Class int

const (
	// ClassTransient errors are retried per the backoff policy.
	ClassTransient Class = iota
	// ClassAuthExpired triggers one token refresh, then retries the same
	// attempt without consuming a backoff slot. At most one refresh per
	// call to Do.
	ClassAuthExpired
	// ClassQuotaExceeded aborts immediately and propagates as-is.
	ClassQuotaExceeded
	// ClassFatal aborts immediately and propagates as-is.
	ClassFatal
)

// Classifier maps an error to a retry class.
type Classifier func(error) Class

// Refresher performs a credential refresh on behalf of the executor.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Policy holds retry configuration.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// InitialBackoff is the delay after the first failed attempt.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration
	// Multiplier is the exponential backoff multiplier.
	Multiplier float64
	// JitterFraction is the fraction of backoff used for jitter (0.0-1.0).
	JitterFraction float64
	// Refresher handles ClassAuthExpired errors. Nil disables refresh,
	// in which case an auth-expired error propagates immediately.
	Refresher Refresher
}

// DefaultPolicy returns the standard policy: 5 attempts with delays of
// 1s, 2s, 4s, 8s between them.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    5,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// ExhaustedError wraps the last error after all transient retries failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do executes fn, classifying each failure to decide between retrying,
// refreshing credentials once, or aborting. The backoff delay is an
// interruption point: context cancellation during a delay returns
// ctx.Err() without a further attempt. Quota reservation is the caller's
// responsibility; Do never charges quota, so transient retries of an
// already-reserved call are free.
func Do(ctx context.Context, p Policy, classify Classifier, fn func(context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy().MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = DefaultPolicy().InitialBackoff
	}
	if p.Multiplier <= 1 {
		p.Multiplier = DefaultPolicy().Multiplier
	}

	backoff := p.InitialBackoff
	refreshed := false

	for attempt := 1; attempt <= p.MaxAttempts; {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}

		switch classify(err) {
		case ClassFatal, ClassQuotaExceeded:
			return err

		case ClassAuthExpired:
			if refreshed || p.Refresher == nil {
				return err
			}
			refreshed = true
			if rerr := p.Refresher.Refresh(ctx); rerr != nil {
				return fmt.Errorf("token refresh failed: %w", rerr)
			}
			// Same attempt again, no backoff consumed.
			continue

		case ClassTransient:
			if attempt == p.MaxAttempts {
				return &ExhaustedError{Attempts: attempt, Err: err}
			}

			sleep := backoff + jitter(backoff, p.JitterFraction)
			if p.MaxBackoff > 0 && sleep > p.MaxBackoff {
				sleep = p.MaxBackoff
			}
			select {
			case <-time.After(sleep):
			case <-ctx.Done():
				return ctx.Err()
			}

			backoff = time.Duration(float64(backoff) * p.Multiplier)
			if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
				backoff = p.MaxBackoff
			}
			attempt++

		default:
			return err
		}
	}

	// Unreachable: the loop always returns from within.
	return nil
}

// jitter returns a random duration in [-fraction*d, +fraction*d].
func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return 0
	}
	span := float64(d) * fraction
	return time.Duration((rand.Float64() - 0.5) * 2 * span)
}
