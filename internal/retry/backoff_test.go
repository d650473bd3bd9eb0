package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackoff(jitter bool) *Backoff {
	return NewBackoff(BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     8 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  4,
		Jitter:       jitter,
	})
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := newTestBackoff(false).Retry(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := newTestBackoff(false).Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	lastErr := errors.New("still broken")
	calls := 0
	err := newTestBackoff(false).Retry(context.Background(), func() error {
		calls++
		return lastErr
	})
	assert.ErrorIs(t, err, lastErr)
	assert.Equal(t, 4, calls)
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	backoff := NewBackoff(BackoffConfig{
		InitialDelay: time.Hour,
		MaxDelay:     time.Hour,
		Multiplier:   2.0,
		MaxAttempts:  5,
	})

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	calls := 0
	err := backoff.Retry(ctx, func() error {
		calls++
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDelayForGrowsAndCaps(t *testing.T) {
	backoff := newTestBackoff(false)

	assert.Equal(t, time.Millisecond, backoff.DelayFor(1))
	assert.Equal(t, 2*time.Millisecond, backoff.DelayFor(2))
	assert.Equal(t, 4*time.Millisecond, backoff.DelayFor(3))
	assert.Equal(t, 8*time.Millisecond, backoff.DelayFor(4))
	// Capped from here on.
	assert.Equal(t, 8*time.Millisecond, backoff.DelayFor(10))
}

func TestDelayForJitterStaysBounded(t *testing.T) {
	backoff := newTestBackoff(true)

	for i := 0; i < 100; i++ {
		delay := backoff.DelayFor(2)
		// 2ms ±25%, never negative, never above the cap.
		assert.GreaterOrEqual(t, delay, 1500*time.Microsecond)
		assert.LessOrEqual(t, delay, 2500*time.Microsecond)
	}
}
