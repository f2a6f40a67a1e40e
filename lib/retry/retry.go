// Package retry wraps flaky browser and network operations with bounded
// exponential backoff. Only transient failure kinds are retried; everything
// else returns immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"
)

// Policy bounds the retry budget for one wrapped operation.
type Policy struct {
	// MaxAttempts counts the initial attempt.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy suits interactive navigation against a sluggish vendor app.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
	}
}

// ExhaustedError reports that every attempt failed with a transient error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry budget exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent marks err as non-retryable regardless of what Transient says.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// transientPatterns matches driver and network failures that are expected
// to resolve themselves on retry: timeouts, not-yet-ready page state and
// dropped connections.
var transientPatterns = []string{
	"timeout",
	"deadline exceeded",
	"element is not attached",
	"execution context was destroyed",
	"navigation interrupted",
	"intercepts pointer events",
	"connection reset",
	"connection_reset",
	"connection refused",
	"connection_refused",
	"temporarily unavailable",
}

// Transient reports whether err is a failure kind worth retrying.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Do invokes op, retrying transient failures with exponential backoff plus
// random jitter in [0, delay). Backoff sleeps respect ctx cancellation.
func Do(ctx context.Context, p Policy, op func() error) error {
	_, err := DoValue(ctx, p, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !Transient(err) {
			var perm *permanentError
			if errors.As(err, &perm) {
				return zero, perm.err
			}
			return zero, err
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.BaseDelay << (attempt - 1)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		if delay > 0 {
			delay += rand.N(delay)
		}

		slog.WarnContext(ctx, "retrying after transient failure",
			"attempt", attempt,
			"delay", delay,
			"err", err,
		)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, &ExhaustedError{Attempts: p.MaxAttempts, Err: lastErr}
}
