package app

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cayman031/study-with-me/internal/auth"
	"github.com/cayman031/study-with-me/internal/db"
)

type Config struct {
	AppEnv   string
	Port     string
	LogLevel string

	DatabaseURL   string
	DBPool        db.PoolConfig
	RunMigrations bool
	RedisURL      string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	Throttle             auth.ThrottlePolicy
	LoginRateLimitMax    int
	LoginRateLimitWindow time.Duration

	PasswordHasher string
	BcryptCost     int

	SentryDSN  string
	CronSecret string

	LoginAttemptRetention time.Duration
	CleanupBatchSize      int
	SweepInterval         time.Duration

	ShutdownTimeout time.Duration
}

func LoadConfig() (Config, error) {
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return Config{}, err
	}
	if len(jwtSecret) < auth.MinSigningKeyBytes {
		return Config{}, fmt.Errorf("JWT_SECRET must be at least %d bytes: %w", auth.MinSigningKeyBytes, auth.ErrSigningKeyTooShort)
	}

	cfg := Config{
		AppEnv:   envOrDefault("APP_ENV", "development"),
		Port:     envOrDefault("PORT", "8080"),
		LogLevel: envOrDefault("LOG_LEVEL", "info"),

		DatabaseURL: envOrDefault("DATABASE_URL", ""),
		DBPool: db.PoolConfig{
			MaxConns:        int32(envIntOrDefault("DB_MAX_CONNS", 10)),
			MinConns:        int32(envIntOrDefault("DB_MIN_CONNS", 1)),
			MaxConnLifetime: envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
			MaxConnIdleTime: envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
		},
		RunMigrations: EnvBoolOrDefault("RUN_MIGRATIONS_ON_STARTUP", true),
		RedisURL:      envOrDefault("REDIS_URL", ""),

		JWTSecret:       jwtSecret,
		AccessTokenTTL:  envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 15),
		RefreshTokenTTL: envDaysOrDefault("REFRESH_TOKEN_TTL_DAYS", 14),

		Throttle: auth.ThrottlePolicy{
			Threshold: envIntOrDefault("LOGIN_MAX_FAILURES", 5),
			Lockout:   envMinutesOrDefault("LOGIN_LOCK_MINUTES", 10),
		},
		LoginRateLimitMax:    envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		LoginRateLimitWindow: envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),

		PasswordHasher: envOrDefault("PASSWORD_HASHER", "bcrypt"),
		BcryptCost:     envIntOrDefault("BCRYPT_COST", bcrypt.DefaultCost),

		SentryDSN:  envOrDefault("SENTRY_DSN", ""),
		CronSecret: envOrDefault("CRON_SECRET", ""),

		LoginAttemptRetention: envDaysOrDefault("AUTH_LOGIN_ATTEMPT_RETENTION_DAYS", 30),
		CleanupBatchSize:      envIntOrDefault("AUTH_CLEANUP_BATCH_SIZE", 500),
		SweepInterval:         envMinutesOrDefault("AUTH_SWEEP_INTERVAL_MINUTES", 0),

		ShutdownTimeout: envSecondsOrDefault("SHUTDOWN_TIMEOUT_SECONDS", 10),
	}

	switch cfg.PasswordHasher {
	case "bcrypt", "argon2id":
	default:
		return Config{}, fmt.Errorf("unsupported PASSWORD_HASHER: %q", cfg.PasswordHasher)
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return Config{}, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	return cfg, nil
}
