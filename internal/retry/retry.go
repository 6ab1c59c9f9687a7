// Package retry runs an operation a bounded number of times with a growing
// delay between attempts.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/teranos/finkg/errors"
)

// ErrExhausted matches, via errors.Is, the error Do returns once every attempt has failed
var ErrExhausted = errors.New("retry budget exhausted")

// ExhaustedError carries the last failure after the budget ran out
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrExhausted) hold
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// NonRetryableError wraps errors that should not be retried
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return e.Err.Error()
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable marks err so Do returns it immediately
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable checks if an error is marked as non-retryable
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Backoff computes the wait before the next attempt. attempt is the 1-based
// number of the attempt that just failed.
type Backoff func(attempt int, base time.Duration) time.Duration

// Linear waits attempt x base: base, 2*base, 3*base, ...
func Linear(attempt int, base time.Duration) time.Duration {
	return time.Duration(attempt) * base
}

// Exponential waits base, 2*base, 4*base, ...
func Exponential(attempt int, base time.Duration) time.Duration {
	return base << (attempt - 1)
}

// Config provides retry configuration
type Config struct {
	MaxAttempts int           // Total attempts including the first; values < 1 mean 1
	Delay       time.Duration // Base delay fed to Backoff
	MaxDelay    time.Duration // Upper bound on a single wait; 0 = unbounded
	Backoff     Backoff       // nil = Linear
	// OnRetry, when set, is called before each wait
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultConfig is three attempts with linear delays of 1.5s and 3s between them
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		Delay:       1500 * time.Millisecond,
		Backoff:     Linear,
	}
}

// Do executes fn until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx is done. fn receives the 1-based attempt number.
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Backoff == nil {
		cfg.Backoff = Linear
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if IsNonRetryable(err) {
			return err
		}
		if ctx.Err() != nil {
			return errors.Wrapf(ctx.Err(), "retry cancelled after attempt %d", attempt)
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := cfg.Backoff(attempt, cfg.Delay)
		if cfg.MaxDelay > 0 && wait > cfg.MaxDelay {
			wait = cfg.MaxDelay
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrapf(ctx.Err(), "retry cancelled during backoff before attempt %d", attempt+1)
		case <-timer.C:
		}
	}

	return &ExhaustedError{Attempts: cfg.MaxAttempts, Err: lastErr}
}

// DoWithResult executes fn with retry and returns both result and error
func DoWithResult[T any](ctx context.Context, cfg Config, fn func(attempt int) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(attempt int) error {
		var innerErr error
		result, innerErr = fn(attempt)
		return innerErr
	})
	return result, err
}
