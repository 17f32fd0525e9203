package auth

import (
	"context"
	"sync"
	"time"
)

type memoryRefresh struct {
	hash      string
	expiresAt time.Time
}

// MemoryStore implements every auth store in process memory. It is the
// fallback when DATABASE_URL is unset and the backing store for tests.
type MemoryStore struct {
	mu       sync.Mutex
	revoked  map[string]time.Time
	attempts map[string]LoginAttempt
	refresh  map[string]memoryRefresh
	touched  map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		revoked:  make(map[string]time.Time),
		attempts: make(map[string]LoginAttempt),
		refresh:  make(map[string]memoryRefresh),
		touched:  make(map[string]time.Time),
	}
}

func (s *MemoryStore) AddRevoked(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.revoked[tokenHash]; !ok {
		s.revoked[tokenHash] = expiresAt.UTC()
	}
	return nil
}

func (s *MemoryStore) IsRevoked(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.revoked[tokenHash]
	return ok && expiresAt.After(now), nil
}

func (s *MemoryStore) LoginAttempt(ctx context.Context, email string) (LoginAttempt, error) {
	if err := ctx.Err(); err != nil {
		return LoginAttempt{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	attempt, ok := s.attempts[email]
	if !ok {
		return LoginAttempt{Email: email}, nil
	}
	return copyAttempt(attempt), nil
}

func (s *MemoryStore) RegisterFailure(ctx context.Context, email string, policy ThrottlePolicy, now time.Time) (LoginAttempt, error) {
	if err := ctx.Err(); err != nil {
		return LoginAttempt{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now = now.UTC()
	attempt := s.attempts[email]
	attempt.Email = email
	attempt.FailCount++
	attempt.LastFailedAt = &now
	if attempt.FailCount >= policy.Threshold {
		until := now.Add(policy.Lockout)
		attempt.BlockedUntil = &until
	}
	s.attempts[email] = attempt
	s.touched[email] = now

	return copyAttempt(attempt), nil
}

func (s *MemoryStore) ResetAttempts(ctx context.Context, email string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.attempts[email]; ok {
		s.attempts[email] = LoginAttempt{Email: email}
		s.touched[email] = now.UTC()
	}
	return nil
}

func (s *MemoryStore) SaveRefresh(ctx context.Context, memberID, tokenHash string, expiresAt, _ time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.refresh[memberID] = memoryRefresh{hash: tokenHash, expiresAt: expiresAt.UTC()}
	return nil
}

func (s *MemoryStore) ClearRefresh(ctx context.Context, memberID string, _ time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.refresh, memberID)
	return nil
}

func (s *MemoryStore) RotateRefresh(ctx context.Context, memberID, presentedHash, nextHash string, nextExpiresAt, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.refresh[memberID]
	if !ok {
		return errRefreshMissing
	}
	if !hashesEqual(current.hash, presentedHash) {
		delete(s.refresh, memberID)
		return errRefreshReuse
	}
	if !now.Before(current.expiresAt) {
		return ErrTokenExpired
	}

	s.refresh[memberID] = memoryRefresh{hash: nextHash, expiresAt: nextExpiresAt.UTC()}
	return nil
}

// HasRefresh reports whether memberID currently holds a refresh token.
func (s *MemoryStore) HasRefresh(memberID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.refresh[memberID]
	return ok
}

func (s *MemoryStore) CleanupExpired(ctx context.Context, now time.Time, attemptRetention time.Duration, _ int) (CleanupResult, error) {
	if err := ctx.Err(); err != nil {
		return CleanupResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result CleanupResult
	for hash, expiresAt := range s.revoked {
		if !expiresAt.After(now) {
			delete(s.revoked, hash)
			result.DeletedRevokedTokens++
		}
	}

	cutoff := now.Add(-attemptRetention)
	for email, attempt := range s.attempts {
		if attempt.BlockedAt(now) {
			continue
		}
		if s.touched[email].Before(cutoff) {
			delete(s.attempts, email)
			delete(s.touched, email)
			result.DeletedLoginAttempts++
		}
	}

	return result, nil
}

func copyAttempt(a LoginAttempt) LoginAttempt {
	out := LoginAttempt{Email: a.Email, FailCount: a.FailCount}
	if a.BlockedUntil != nil {
		v := *a.BlockedUntil
		out.BlockedUntil = &v
	}
	if a.LastFailedAt != nil {
		v := *a.LastFailedAt
		out.LastFailedAt = &v
	}
	return out
}
