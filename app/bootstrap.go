package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cayman031/study-with-me/internal/auth"
	"github.com/cayman031/study-with-me/internal/db"
	"github.com/cayman031/study-with-me/internal/maintenance"
	"github.com/cayman031/study-with-me/internal/member"
	"github.com/cayman031/study-with-me/internal/observability"
	"github.com/cayman031/study-with-me/internal/password"
	"github.com/cayman031/study-with-me/internal/response"
)

type Runtime struct {
	Handler http.Handler
	Logger  *observability.Logger
	Sweeper *maintenance.Sweeper
	Close   func() error
}

type stores struct {
	members     member.Repository
	revocations auth.RevocationStore
	attempts    auth.AttemptStore
	refresh     auth.RefreshStore
	cleaner     maintenance.Cleaner
	ping        func(ctx context.Context) error
	closers     []func() error
}

func Build(ctx context.Context, cfg Config) (*Runtime, error) {
	logger := observability.NewLogger(cfg.LogLevel)

	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	metrics := observability.NewMetrics()

	st, err := buildStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	closeAll := func() error {
		observability.FlushSentry()
		var errs []error
		for i := len(st.closers) - 1; i >= 0; i-- {
			errs = append(errs, st.closers[i]())
		}
		return errors.Join(errs...)
	}

	hasher, err := password.New(cfg.PasswordHasher, cfg.BcryptCost)
	if err != nil {
		_ = closeAll()
		return nil, err
	}

	codec, err := auth.NewCodec(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		_ = closeAll()
		return nil, fmt.Errorf("init token codec: %w", err)
	}

	revocations := auth.NewRevocationList(st.revocations, codec)
	throttle := auth.NewLoginThrottle(st.attempts, cfg.Throttle)
	rotation := auth.NewRefreshRotation(st.refresh)
	authenticator := auth.NewAuthenticator(codec, revocations, st.members, metrics)

	authService := auth.NewService(st.members, hasher, codec, throttle, revocations, rotation).
		WithObservability(logger, metrics)
	authHandler := auth.NewHandler(authService, logger)
	memberHandler := member.NewHandler(st.members, auth.CurrentMemberID)
	cleanupHandler := maintenance.NewCleanupHandler(
		st.cleaner,
		logger,
		cfg.CronSecret,
		cfg.LoginAttemptRetention,
		cfg.CleanupBatchSize,
	)
	ipLimiter := auth.NewIPRateLimiter(cfg.LoginRateLimitMax, cfg.LoginRateLimitWindow, metrics)

	protected := func(h http.HandlerFunc) http.Handler {
		return auth.Middleware(authenticator, logger, auth.RequireMember(h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /auth/signup", ipLimiter.Middleware(http.HandlerFunc(authHandler.Signup)))
	mux.Handle("POST /auth/login", ipLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /auth/refresh", authHandler.Refresh)
	mux.Handle("POST /auth/logout", protected(authHandler.Logout))
	mux.Handle("GET /members/me", protected(memberHandler.Me))
	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler(st.ping))
	mux.Handle("GET /metrics", metrics.Handler())

	handler := observability.RecoverMiddleware(logger,
		observability.TraceMiddleware(
			observability.RequestLoggingMiddleware(logger, metrics, mux)))

	sweeper := maintenance.NewSweeper(st.cleaner, logger, cfg.SweepInterval, cfg.LoginAttemptRetention, cfg.CleanupBatchSize)

	return &Runtime{
		Handler: handler,
		Logger:  logger,
		Sweeper: sweeper,
		Close:   closeAll,
	}, nil
}

func buildStores(ctx context.Context, cfg Config, logger *observability.Logger) (*stores, error) {
	st := &stores{}

	if cfg.DatabaseURL == "" {
		logger.Warn("database_not_configured", map[string]any{"mode": "in-memory"})
		memoryStore := auth.NewMemoryStore()
		st.members = member.NewMemoryRepository()
		st.revocations = memoryStore
		st.attempts = memoryStore
		st.refresh = memoryStore
		st.cleaner = memoryStore
		st.ping = func(context.Context) error { return nil }
	} else {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBPool)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func() error { pool.Close(); return nil })

		if cfg.RunMigrations {
			if err := db.MigrateFromPool(ctx, pool); err != nil {
				pool.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}

		pgStore := auth.NewPostgresStore(pool)
		st.members = member.NewPostgresRepository(pool)
		st.revocations = pgStore
		st.attempts = pgStore
		st.refresh = pgStore
		st.cleaner = pgStore
		st.ping = pool.Ping
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			closeStores(st)
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			closeStores(st)
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		st.closers = append(st.closers, client.Close)

		redisStore := auth.NewRedisStore(client, "", cfg.LoginAttemptRetention)
		st.revocations = redisStore
		st.attempts = redisStore
		st.cleaner = redisStore
		logger.Info("redis_enabled", map[string]any{"stores": "revocation,login_attempt", "cleanup": "ttl"})
	}

	return st, nil
}

func closeStores(st *stores) {
	for i := len(st.closers) - 1; i >= 0; i-- {
		_ = st.closers[i]()
	}
}

func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		response.JSON(w, status, body)
	}
}
