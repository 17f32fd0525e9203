package app

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cayman031/study-with-me/internal/auth"
)

const testJWTSecret = "0123456789abcdef0123456789abcdef"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testJWTSecret)
	for _, name := range []string{"PORT", "DATABASE_URL", "REDIS_URL", "PASSWORD_HASHER", "BCRYPT_COST", "AUTH_SWEEP_INTERVAL_MINUTES", "RUN_MIGRATIONS_ON_STARTUP"} {
		t.Setenv(name, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 14*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, auth.ThrottlePolicy{Threshold: 5, Lockout: 10 * time.Minute}, cfg.Throttle)
	assert.Equal(t, 10, cfg.LoginRateLimitMax)
	assert.Equal(t, time.Minute, cfg.LoginRateLimitWindow)
	assert.Equal(t, "bcrypt", cfg.PasswordHasher)
	assert.Equal(t, 30*24*time.Hour, cfg.LoginAttemptRetention)
	assert.Equal(t, 500, cfg.CleanupBatchSize)
	assert.Zero(t, cfg.SweepInterval)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.DatabaseURL)
	assert.True(t, cfg.RunMigrations)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testJWTSecret)
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "5")
	t.Setenv("LOGIN_MAX_FAILURES", "3")
	t.Setenv("LOGIN_LOCK_MINUTES", "1")
	t.Setenv("PASSWORD_HASHER", "argon2id")
	t.Setenv("RUN_MIGRATIONS_ON_STARTUP", "false")
	t.Setenv("AUTH_SWEEP_INTERVAL_MINUTES", "15")
	t.Setenv("LOGIN_RATE_LIMIT_MAX", "not-a-number")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, auth.ThrottlePolicy{Threshold: 3, Lockout: time.Minute}, cfg.Throttle)
	assert.Equal(t, "argon2id", cfg.PasswordHasher)
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, 15*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 10, cfg.LoginRateLimitMax)
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "too-short")
	_, err = LoadConfig()
	assert.True(t, errors.Is(err, auth.ErrSigningKeyTooShort))
}

func TestLoadConfigRejectsUnknownHasher(t *testing.T) {
	t.Setenv("JWT_SECRET", testJWTSecret)
	t.Setenv("PASSWORD_HASHER", "md5")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRejectsBcryptCostOutOfRange(t *testing.T) {
	t.Setenv("JWT_SECRET", testJWTSecret)
	t.Setenv("BCRYPT_COST", "99")

	_, err := LoadConfig()
	assert.Error(t, err)
}
