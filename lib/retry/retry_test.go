package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSucceedsAfterTransientFailures(t *testing.T) {
	policy := Policy{
		MaxAttempts: 3,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    time.Second,
	}

	calls := 0
	start := time.Now()
	result, err := DoValue(context.Background(), policy, func() (string, error) {
		calls++
		if calls <= 2 {
			return "", errors.New("page load timeout")
		}
		return "ok", nil
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, 3, calls)
	// base delays are 10+20ms; jitter at most doubles each one
	require.Less(t, elapsed, 500*time.Millisecond)
}

func TestExhaustsBudget(t *testing.T) {
	policy := Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    10 * time.Millisecond,
	}

	calls := 0
	underlying := errors.New("connection reset by peer")
	err := Do(context.Background(), policy, func() error {
		calls++
		return underlying
	})

	require.Equal(t, 3, calls)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 3, exhausted.Attempts)
	require.ErrorIs(t, err, underlying)
}

func TestPermanentErrorReturnsImmediately(t *testing.T) {
	calls := 0
	underlying := errors.New("bad credentials")
	err := Do(context.Background(), DefaultPolicy(), func() error {
		calls++
		return Permanent(underlying)
	})

	require.Equal(t, 1, calls)
	require.ErrorIs(t, err, underlying)

	var exhausted *ExhaustedError
	require.False(t, errors.As(err, &exhausted))
}

func TestNonTransientErrorReturnsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultPolicy(), func() error {
		calls++
		return errors.New("malformed url")
	})

	require.Equal(t, 1, calls)
	require.EqualError(t, err, "malformed url")
}

func TestCancellationInterruptsBackoff(t *testing.T) {
	policy := Policy{
		MaxAttempts: 5,
		BaseDelay:   time.Hour,
		MaxDelay:    time.Hour,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Do(ctx, policy, func() error {
		return errors.New("timeout")
	})

	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), time.Second)
}

func TestTransientClassification(t *testing.T) {
	testCases := []struct {
		err       error
		transient bool
	}{
		{errors.New("Timeout 30000ms exceeded"), true},
		{errors.New("net::ERR_CONNECTION_RESET"), true},
		{errors.New("element is not attached to the DOM"), true},
		{context.DeadlineExceeded, true},
		{errors.New("no such element"), false},
		{Permanent(errors.New("timeout")), false},
		{nil, false},
	}

	for _, test := range testCases {
		require.Equal(t, test.transient, Transient(test.err), "err: %v", test.err)
	}
}
