package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cayman031/study-with-me/internal/db"
	"github.com/cayman031/study-with-me/internal/member"
)

// PostgresStore backs the revocation list, the login throttle and refresh
// rotation. Refresh state lives on the member row.
type PostgresStore struct {
	db db.DBTX
}

func NewPostgresStore(database db.DBTX) *PostgresStore {
	return &PostgresStore{db: database}
}

func (s *PostgresStore) AddRevoked(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO access_token_blacklist (token_hash, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (token_hash) DO NOTHING
	`, tokenHash, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("insert revoked token: %w", err)
	}

	return nil
}

func (s *PostgresStore) IsRevoked(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	var revoked bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM access_token_blacklist
			WHERE token_hash = $1 AND expires_at > $2
		)
	`, tokenHash, now.UTC()).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("query revoked token: %w", err)
	}

	return revoked, nil
}

func (s *PostgresStore) LoginAttempt(ctx context.Context, email string) (LoginAttempt, error) {
	attempt := LoginAttempt{Email: email}
	err := s.db.QueryRow(ctx, `
		SELECT fail_count, blocked_until, last_failed_at
		FROM login_attempt
		WHERE email = $1
	`, email).Scan(&attempt.FailCount, &attempt.BlockedUntil, &attempt.LastFailedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LoginAttempt{Email: email}, nil
		}
		return LoginAttempt{}, fmt.Errorf("query login attempt: %w", err)
	}

	return attempt, nil
}

func (s *PostgresStore) RegisterFailure(ctx context.Context, email string, policy ThrottlePolicy, now time.Time) (LoginAttempt, error) {
	now = now.UTC()
	blockedUntil := now.Add(policy.Lockout)

	attempt := LoginAttempt{Email: email}
	err := s.db.QueryRow(ctx, `
		INSERT INTO login_attempt (email, fail_count, blocked_until, last_failed_at, created_at, updated_at)
		VALUES ($1, 1, CASE WHEN 1 >= $2 THEN $4::timestamptz END, $3, $3, $3)
		ON CONFLICT (email) DO UPDATE
		SET
			fail_count = login_attempt.fail_count + 1,
			blocked_until = CASE
				WHEN login_attempt.fail_count + 1 >= $2 THEN $4::timestamptz
				ELSE login_attempt.blocked_until
			END,
			last_failed_at = $3,
			updated_at = $3
		RETURNING fail_count, blocked_until, last_failed_at
	`, email, policy.Threshold, now, blockedUntil).Scan(&attempt.FailCount, &attempt.BlockedUntil, &attempt.LastFailedAt)
	if err != nil {
		return LoginAttempt{}, fmt.Errorf("upsert login attempt: %w", err)
	}

	return attempt, nil
}

func (s *PostgresStore) ResetAttempts(ctx context.Context, email string, now time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE login_attempt
		SET fail_count = 0, blocked_until = NULL, last_failed_at = NULL, updated_at = $2
		WHERE email = $1
	`, email, now.UTC())
	if err != nil {
		return fmt.Errorf("reset login attempt: %w", err)
	}

	return nil
}

func (s *PostgresStore) SaveRefresh(ctx context.Context, memberID, tokenHash string, expiresAt, now time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE member
		SET refresh_token_hash = $2, refresh_token_expires_at = $3, updated_at = $4
		WHERE id = $1
	`, memberID, tokenHash, expiresAt.UTC(), now.UTC())
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return member.ErrNotFound
	}

	return nil
}

func (s *PostgresStore) ClearRefresh(ctx context.Context, memberID string, now time.Time) error {
	if _, err := s.db.Exec(ctx, clearRefreshSQL, memberID, now.UTC()); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}

	return nil
}

const clearRefreshSQL = `
	UPDATE member
	SET refresh_token_hash = NULL, refresh_token_expires_at = NULL, updated_at = $2
	WHERE id = $1
`

func (s *PostgresStore) RotateRefresh(ctx context.Context, memberID, presentedHash, nextHash string, nextExpiresAt, now time.Time) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin refresh rotation tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var storedHash *string
	var storedExpiresAt *time.Time
	err = tx.QueryRow(ctx, `
		SELECT refresh_token_hash, refresh_token_expires_at
		FROM member
		WHERE id = $1
		FOR UPDATE
	`, memberID).Scan(&storedHash, &storedExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errRefreshMissing
		}
		return fmt.Errorf("lock member refresh token: %w", err)
	}

	if storedHash == nil || storedExpiresAt == nil {
		return errRefreshMissing
	}

	if !hashesEqual(*storedHash, presentedHash) {
		if _, err := tx.Exec(ctx, clearRefreshSQL, memberID, now.UTC()); err != nil {
			return fmt.Errorf("clear reused refresh token: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit refresh reuse tx: %w", err)
		}
		return errRefreshReuse
	}

	if !now.Before(*storedExpiresAt) {
		return ErrTokenExpired
	}

	if _, err := tx.Exec(ctx, `
		UPDATE member
		SET refresh_token_hash = $2, refresh_token_expires_at = $3, updated_at = $4
		WHERE id = $1
	`, memberID, nextHash, nextExpiresAt.UTC(), now.UTC()); err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit refresh rotation tx: %w", err)
	}

	return nil
}

// CleanupExpired purges revocation entries past their expiry and idle,
// unblocked login attempts older than attemptRetention, in batches.
func (s *PostgresStore) CleanupExpired(ctx context.Context, now time.Time, attemptRetention time.Duration, batchSize int) (CleanupResult, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	if attemptRetention <= 0 {
		attemptRetention = 30 * 24 * time.Hour
	}
	now = now.UTC()

	revoked, err := s.deleteBatched(ctx, "delete expired revoked tokens", `
		WITH stale AS (
			SELECT token_hash
			FROM access_token_blacklist
			WHERE expires_at <= $1
			ORDER BY expires_at ASC
			LIMIT $2
		)
		DELETE FROM access_token_blacklist t
		USING stale
		WHERE t.token_hash = stale.token_hash
	`, now, batchSize)
	if err != nil {
		return CleanupResult{}, err
	}

	attempts, err := s.deleteBatched(ctx, "delete stale login attempts", `
		WITH stale AS (
			SELECT email
			FROM login_attempt
			WHERE updated_at < $1
			  AND (blocked_until IS NULL OR blocked_until <= $3)
			ORDER BY updated_at ASC
			LIMIT $2
		)
		DELETE FROM login_attempt t
		USING stale
		WHERE t.email = stale.email
	`, now.Add(-attemptRetention), batchSize, now)
	if err != nil {
		return CleanupResult{}, err
	}

	return CleanupResult{DeletedRevokedTokens: revoked, DeletedLoginAttempts: attempts}, nil
}

// deleteBatched repeats a LIMITed delete until a short batch.
func (s *PostgresStore) deleteBatched(ctx context.Context, op, sql string, cutoff time.Time, batchSize int, extra ...any) (int64, error) {
	var total int64
	for {
		args := append([]any{cutoff, batchSize}, extra...)
		tag, err := s.db.Exec(ctx, sql, args...)
		if err != nil {
			return total, fmt.Errorf("%s: %w", op, err)
		}

		affected := tag.RowsAffected()
		total += affected
		if affected < int64(batchSize) {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}
