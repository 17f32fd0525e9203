package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "swm:auth"

// RedisStore is an alternative RevocationStore and AttemptStore. Keys carry
// TTLs, so no sweep is needed.
type RedisStore struct {
	client           *redis.Client
	prefix           string
	attemptRetention time.Duration
}

func NewRedisStore(client *redis.Client, prefix string, attemptRetention time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	if attemptRetention <= 0 {
		attemptRetention = 30 * 24 * time.Hour
	}
	return &RedisStore{client: client, prefix: prefix, attemptRetention: attemptRetention}
}

func (s *RedisStore) revokedKey(tokenHash string) string {
	return s.prefix + ":revoked:" + tokenHash
}

func (s *RedisStore) attemptKey(email string) string {
	return s.prefix + ":attempt:" + email
}

func (s *RedisStore) AddRevoked(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl < time.Second {
		ttl = time.Second
	}

	err := s.client.SetNX(ctx, s.revokedKey(tokenHash), expiresAt.UTC().UnixMilli(), ttl).Err()
	if err != nil {
		return fmt.Errorf("redis add revoked token: %w", err)
	}

	return nil
}

func (s *RedisStore) IsRevoked(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	value, err := s.client.Get(ctx, s.revokedKey(tokenHash)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get revoked token: %w", err)
	}

	return value > now.UTC().UnixMilli(), nil
}

// KEYS[1] attempt hash; ARGV threshold, now ms, blocked-until ms, retention ms.
var registerFailureScript = redis.NewScript(`
local count = redis.call("HINCRBY", KEYS[1], "fail_count", 1)
redis.call("HSET", KEYS[1], "last_failed_at", ARGV[2])
if count >= tonumber(ARGV[1]) then
	redis.call("HSET", KEYS[1], "blocked_until", ARGV[3])
end
redis.call("PEXPIRE", KEYS[1], ARGV[4])
local blocked = redis.call("HGET", KEYS[1], "blocked_until") or "0"
return {count, tonumber(blocked), tonumber(ARGV[2])}
`)

var resetAttemptsScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	redis.call("HSET", KEYS[1], "fail_count", 0)
	redis.call("HDEL", KEYS[1], "blocked_until", "last_failed_at")
	return 1
end
return 0
`)

func (s *RedisStore) LoginAttempt(ctx context.Context, email string) (LoginAttempt, error) {
	fields, err := s.client.HGetAll(ctx, s.attemptKey(email)).Result()
	if err != nil {
		return LoginAttempt{}, fmt.Errorf("redis get login attempt: %w", err)
	}

	attempt := LoginAttempt{Email: email}
	if len(fields) == 0 {
		return attempt, nil
	}

	if raw, ok := fields["fail_count"]; ok {
		count, err := strconv.Atoi(raw)
		if err != nil {
			return LoginAttempt{}, fmt.Errorf("redis parse fail_count: %w", err)
		}
		attempt.FailCount = count
	}
	attempt.BlockedUntil = millisField(fields, "blocked_until")
	attempt.LastFailedAt = millisField(fields, "last_failed_at")

	return attempt, nil
}

func (s *RedisStore) RegisterFailure(ctx context.Context, email string, policy ThrottlePolicy, now time.Time) (LoginAttempt, error) {
	now = now.UTC()
	values, err := registerFailureScript.Run(ctx, s.client, []string{s.attemptKey(email)},
		policy.Threshold,
		now.UnixMilli(),
		now.Add(policy.Lockout).UnixMilli(),
		s.attemptRetention.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return LoginAttempt{}, fmt.Errorf("redis register login failure: %w", err)
	}
	if len(values) != 3 {
		return LoginAttempt{}, fmt.Errorf("redis register login failure: unexpected reply length %d", len(values))
	}

	attempt := LoginAttempt{Email: email, FailCount: int(values[0])}
	if values[1] > 0 {
		until := time.UnixMilli(values[1]).UTC()
		attempt.BlockedUntil = &until
	}
	lastFailed := time.UnixMilli(values[2]).UTC()
	attempt.LastFailedAt = &lastFailed

	return attempt, nil
}

func (s *RedisStore) ResetAttempts(ctx context.Context, email string, _ time.Time) error {
	if err := resetAttemptsScript.Run(ctx, s.client, []string{s.attemptKey(email)}).Err(); err != nil {
		return fmt.Errorf("redis reset login attempt: %w", err)
	}

	return nil
}

// CleanupExpired is a no-op: revocation and attempt keys expire through their TTLs.
func (s *RedisStore) CleanupExpired(ctx context.Context, _ time.Time, _ time.Duration, _ int) (CleanupResult, error) {
	if err := ctx.Err(); err != nil {
		return CleanupResult{}, err
	}
	return CleanupResult{}, nil
}

func millisField(fields map[string]string, name string) *time.Time {
	raw, ok := fields[name]
	if !ok {
		return nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return nil
	}
	value := time.UnixMilli(ms).UTC()
	return &value
}
