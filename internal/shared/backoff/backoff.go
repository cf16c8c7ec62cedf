// Package backoff retries idempotent operations with bounded exponential
// backoff.
package backoff

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// MaxDelay caps the wait between two attempts.
const MaxDelay = 8 * time.Second

// ErrExhausted is returned (wrapping the last failure) once every attempt
// has failed.
var ErrExhausted = errors.New("retry attempts exhausted")

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying; WithBackoff returns it at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err}
}

// after is swapped in tests.
var after = time.After

// WithBackoff calls op until it succeeds, returns a Permanent error, the
// context ends, or maxAttempts calls have failed. The delay starts at
// baseDelay and doubles after every failure, capped at MaxDelay.
func WithBackoff[T any](ctx context.Context, maxAttempts int, baseDelay time.Duration, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	delay := baseDelay
	var last error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		var perm permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		last = err
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("%w: %w", ctx.Err(), last)
		case <-after(delay):
		}
		if delay < MaxDelay {
			delay *= 2
			if delay > MaxDelay {
				delay = MaxDelay
			}
		}
	}
	return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, maxAttempts, last)
}

// Do is WithBackoff for operations without a result.
func Do(ctx context.Context, maxAttempts int, baseDelay time.Duration, op func(context.Context) error) error {
	_, err := WithBackoff(ctx, maxAttempts, baseDelay, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
