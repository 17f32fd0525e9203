package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestThrottle(clock *fakeClock, store AttemptStore) *LoginThrottle {
	throttle := NewLoginThrottle(store, DefaultThrottlePolicy())
	throttle.now = clock.Now
	return throttle
}

func TestThrottleBlocksAtThreshold(t *testing.T) {
	clock := newFakeClock(testStart)
	throttle := newTestThrottle(clock, NewMemoryStore())
	ctx := context.Background()

	for i := 1; i < 5; i++ {
		attempt, err := throttle.RecordFailure(ctx, "kim@example.com")
		require.NoError(t, err)
		assert.Equal(t, i, attempt.FailCount)
		assert.Nil(t, attempt.BlockedUntil)
		require.NoError(t, throttle.CheckNotBlocked(ctx, "kim@example.com"))
	}

	attempt, err := throttle.RecordFailure(ctx, "kim@example.com")
	require.NoError(t, err)
	require.NotNil(t, attempt.BlockedUntil)
	assert.Equal(t, testStart.Add(10*time.Minute), *attempt.BlockedUntil)

	err = throttle.CheckNotBlocked(ctx, "kim@example.com")
	var blocked ErrLoginBlocked
	require.True(t, errors.As(err, &blocked))
	assert.Equal(t, testStart.Add(10*time.Minute), blocked.Until)
}

func TestThrottleLockoutExpires(t *testing.T) {
	clock := newFakeClock(testStart)
	throttle := newTestThrottle(clock, NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := throttle.RecordFailure(ctx, "kim@example.com")
		require.NoError(t, err)
	}

	clock.Advance(10*time.Minute - time.Second)
	assert.Error(t, throttle.CheckNotBlocked(ctx, "kim@example.com"))

	clock.Advance(time.Second)
	assert.NoError(t, throttle.CheckNotBlocked(ctx, "kim@example.com"))
}

func TestThrottleSuccessResets(t *testing.T) {
	clock := newFakeClock(testStart)
	store := NewMemoryStore()
	throttle := newTestThrottle(clock, store)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := throttle.RecordFailure(ctx, "kim@example.com")
		require.NoError(t, err)
	}
	require.NoError(t, throttle.RecordSuccess(ctx, "kim@example.com"))

	attempt, err := store.LoginAttempt(ctx, "kim@example.com")
	require.NoError(t, err)
	assert.Zero(t, attempt.FailCount)
	assert.Nil(t, attempt.BlockedUntil)

	_, err = throttle.RecordFailure(ctx, "kim@example.com")
	require.NoError(t, err)
	assert.NoError(t, throttle.CheckNotBlocked(ctx, "kim@example.com"))
}

func TestThrottleKeysAreIndependent(t *testing.T) {
	clock := newFakeClock(testStart)
	throttle := newTestThrottle(clock, NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := throttle.RecordFailure(ctx, "kim@example.com")
		require.NoError(t, err)
	}

	assert.Error(t, throttle.CheckNotBlocked(ctx, "kim@example.com"))
	assert.NoError(t, throttle.CheckNotBlocked(ctx, "lee@example.com"))
}

func TestThrottlePolicyDefaults(t *testing.T) {
	throttle := NewLoginThrottle(NewMemoryStore(), ThrottlePolicy{})
	assert.Equal(t, DefaultThrottlePolicy(), throttle.Policy())

	custom := NewLoginThrottle(NewMemoryStore(), ThrottlePolicy{Threshold: 3, Lockout: time.Minute})
	assert.Equal(t, 3, custom.Policy().Threshold)
}

func TestThrottleStoreErrors(t *testing.T) {
	throttle := newTestThrottle(newFakeClock(testStart), failingStore{})

	assert.ErrorIs(t, throttle.CheckNotBlocked(context.Background(), "kim@example.com"), errStoreDown)
	_, err := throttle.RecordFailure(context.Background(), "kim@example.com")
	assert.ErrorIs(t, err, errStoreDown)
}

func recordConcurrentFailures(t *testing.T, throttle *LoginThrottle, email string, n int) {
	t.Helper()

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := throttle.RecordFailure(context.Background(), email); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
}

func TestThrottleCountsConcurrentFailures(t *testing.T) {
	const failures = 50

	t.Run("memory", func(t *testing.T) {
		store := NewMemoryStore()
		throttle := newTestThrottle(newFakeClock(testStart), store)

		recordConcurrentFailures(t, throttle, "kim@example.com", failures)

		attempt, err := store.LoginAttempt(context.Background(), "kim@example.com")
		require.NoError(t, err)
		assert.Equal(t, failures, attempt.FailCount)
		assert.True(t, attempt.BlockedAt(testStart))
	})

	t.Run("redis", func(t *testing.T) {
		_, store := newRedisStore(t)
		throttle := newTestThrottle(newFakeClock(testStart), store)

		recordConcurrentFailures(t, throttle, "kim@example.com", failures)

		attempt, err := store.LoginAttempt(context.Background(), "kim@example.com")
		require.NoError(t, err)
		assert.Equal(t, failures, attempt.FailCount)
		assert.True(t, attempt.BlockedAt(testStart))
	})
}
