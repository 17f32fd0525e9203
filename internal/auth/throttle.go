package auth

import (
	"context"
	"time"
)

type AttemptStore interface {
	// LoginAttempt returns the zero record (with Email set) when none exists.
	LoginAttempt(ctx context.Context, email string) (LoginAttempt, error)
	// RegisterFailure atomically increments the failure count for email and
	// sets BlockedUntil once the count reaches policy.Threshold.
	RegisterFailure(ctx context.Context, email string, policy ThrottlePolicy, now time.Time) (LoginAttempt, error)
	// ResetAttempts zeroes an existing record. Missing records stay missing.
	ResetAttempts(ctx context.Context, email string, now time.Time) error
}

type LoginThrottle struct {
	store  AttemptStore
	policy ThrottlePolicy
	now    func() time.Time
}

func NewLoginThrottle(store AttemptStore, policy ThrottlePolicy) *LoginThrottle {
	defaults := DefaultThrottlePolicy()
	if policy.Threshold <= 0 {
		policy.Threshold = defaults.Threshold
	}
	if policy.Lockout <= 0 {
		policy.Lockout = defaults.Lockout
	}

	return &LoginThrottle{
		store:  store,
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (t *LoginThrottle) Policy() ThrottlePolicy {
	return t.policy
}

// CheckNotBlocked fails with ErrLoginBlocked while a lockout is active.
func (t *LoginThrottle) CheckNotBlocked(ctx context.Context, email string) error {
	attempt, err := t.store.LoginAttempt(ctx, email)
	if err != nil {
		return err
	}
	if attempt.BlockedAt(t.now()) {
		return ErrLoginBlocked{Until: *attempt.BlockedUntil}
	}

	return nil
}

func (t *LoginThrottle) RecordFailure(ctx context.Context, email string) (LoginAttempt, error) {
	return t.store.RegisterFailure(ctx, email, t.policy, t.now())
}

func (t *LoginThrottle) RecordSuccess(ctx context.Context, email string) error {
	return t.store.ResetAttempts(ctx, email, t.now())
}
