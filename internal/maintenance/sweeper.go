package maintenance

import (
	"context"
	"time"

	"github.com/cayman031/study-with-me/internal/observability"
)

// Sweeper runs the same cleanup as the cron endpoint on a fixed interval.
// Correctness never depends on it: expired rows are ignored at read time.
type Sweeper struct {
	cleaner          Cleaner
	logger           *observability.Logger
	interval         time.Duration
	attemptRetention time.Duration
	batchSize        int
	now              func() time.Time
}

func NewSweeper(cleaner Cleaner, logger *observability.Logger, interval, attemptRetention time.Duration, batchSize int) *Sweeper {
	return &Sweeper{
		cleaner:          cleaner,
		logger:           logger,
		interval:         interval,
		attemptRetention: attemptRetention,
		batchSize:        batchSize,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Run blocks until ctx is done. A non-positive interval returns immediately.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

func (s *Sweeper) SweepOnce(ctx context.Context) {
	result, err := s.cleaner.CleanupExpired(ctx, s.now(), s.attemptRetention, s.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Error("auth_sweep_failed", map[string]any{"error": err.Error()})
		return
	}

	if result.DeletedRevokedTokens > 0 || result.DeletedLoginAttempts > 0 {
		s.logger.Info("auth_cleanup_completed", map[string]any{
			"trigger":                "sweeper",
			"deleted_revoked_tokens": result.DeletedRevokedTokens,
			"deleted_login_attempts": result.DeletedLoginAttempts,
		})
	}
}
