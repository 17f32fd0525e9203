package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cayman031/study-with-me/internal/member"
	"github.com/cayman031/study-with-me/internal/observability"
	"github.com/cayman031/study-with-me/internal/password"
)

const dummyPassword = "study-with-me-dummy-password"

type Service struct {
	members     member.Repository
	passwords   password.Hasher
	codec       *Codec
	throttle    *LoginThrottle
	revocations *RevocationList
	rotation    *RefreshRotation
	logger      *observability.Logger
	metrics     *observability.Metrics

	dummyOnce sync.Once
	dummyHash string
}

func NewService(
	members member.Repository,
	passwords password.Hasher,
	codec *Codec,
	throttle *LoginThrottle,
	revocations *RevocationList,
	rotation *RefreshRotation,
) *Service {
	return &Service{
		members:     members,
		passwords:   passwords,
		codec:       codec,
		throttle:    throttle,
		revocations: revocations,
		rotation:    rotation,
	}
}

func (s *Service) WithObservability(logger *observability.Logger, metrics *observability.Metrics) *Service {
	s.logger = logger
	s.metrics = metrics
	return s
}

func (s *Service) AccessTTL() int64 {
	return int64(s.codec.AccessTTL().Seconds())
}

type SignupInput struct {
	Email    string
	Password string
	Name     string
	Role     string
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (member.Member, error) {
	role := member.RoleParticipant
	if strings.TrimSpace(in.Role) != "" {
		parsed, ok := member.ParseRole(in.Role)
		if !ok || parsed == member.RoleAdmin {
			s.metrics.AuthEvent("signup", "invalid_role")
			return member.Member{}, ErrInvalidRole
		}
		role = parsed
	}

	email := member.NormalizeEmail(in.Email)
	exists, err := s.members.ExistsByEmail(ctx, email)
	if err != nil {
		return member.Member{}, err
	}
	if exists {
		s.metrics.AuthEvent("signup", "duplicated")
		return member.Member{}, member.ErrEmailDuplicated
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return member.Member{}, err
	}

	created, err := s.members.Create(ctx, member.Member{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Role:         role,
		Status:       member.StatusActive,
	})
	if err != nil {
		if errors.Is(err, member.ErrEmailDuplicated) {
			s.metrics.AuthEvent("signup", "duplicated")
		}
		return member.Member{}, err
	}

	s.metrics.AuthEvent("signup", "success")
	return created, nil
}

// Login checks the throttle before touching the member or password so a
// blocked identifier costs no hash comparison.
func (s *Service) Login(ctx context.Context, email, plaintext string) (TokenPair, error) {
	email = member.NormalizeEmail(email)
	if email == "" || plaintext == "" {
		return TokenPair{}, ErrInvalidCredentials
	}

	if err := s.throttle.CheckNotBlocked(ctx, email); err != nil {
		var blocked ErrLoginBlocked
		if errors.As(err, &blocked) {
			s.metrics.AuthEvent("login", "blocked")
		}
		return TokenPair{}, err
	}

	m, err := s.members.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, member.ErrNotFound) {
			s.burnPasswordCheck(plaintext)
			return TokenPair{}, s.loginFailed(ctx, email)
		}
		return TokenPair{}, err
	}

	if !m.IsActive() {
		s.metrics.AuthEvent("login", "forbidden")
		return TokenPair{}, ErrForbidden
	}

	ok, err := s.passwords.Verify(plaintext, m.PasswordHash)
	if err != nil {
		return TokenPair{}, fmt.Errorf("verify password for member %s: %w", m.ID, err)
	}
	if !ok {
		return TokenPair{}, s.loginFailed(ctx, email)
	}

	pair, err := s.codec.Issue(m.ID, m.Role)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.rotation.Store(ctx, m.ID, pair.RefreshToken, pair.RefreshExpiresAt); err != nil {
		return TokenPair{}, err
	}
	if err := s.throttle.RecordSuccess(ctx, email); err != nil {
		return TokenPair{}, err
	}

	s.metrics.AuthEvent("login", "success")
	return pair, nil
}

func (s *Service) loginFailed(ctx context.Context, email string) error {
	attempt, err := s.throttle.RecordFailure(ctx, email)
	if err != nil {
		return err
	}

	if attempt.BlockedUntil != nil && attempt.FailCount >= s.throttle.Policy().Threshold {
		s.logger.Warn("auth_login_blocked", map[string]any{
			"email":         email,
			"fail_count":    attempt.FailCount,
			"blocked_until": attempt.BlockedUntil.Format(time.RFC3339),
		})
	}

	s.metrics.AuthEvent("login", "invalid_credentials")
	return ErrInvalidCredentials
}

// burnPasswordCheck spends one hash verification so unknown emails take about
// as long as wrong passwords.
func (s *Service) burnPasswordCheck(plaintext string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.passwords.Hash(dummyPassword)
	})
	if s.dummyHash != "" {
		_, _ = s.passwords.Verify(plaintext, s.dummyHash)
	}
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)

	memberID, err := s.codec.ParseRefresh(refreshToken)
	if err != nil {
		s.metrics.AuthEvent("refresh", refreshOutcome(err))
		return TokenPair{}, err
	}

	m, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, member.ErrNotFound) {
			s.metrics.AuthEvent("refresh", "unauthorized")
			return TokenPair{}, ErrUnauthorized
		}
		return TokenPair{}, err
	}
	if !m.IsActive() {
		s.metrics.AuthEvent("refresh", "forbidden")
		return TokenPair{}, ErrForbidden
	}

	pair, err := s.codec.Issue(m.ID, m.Role)
	if err != nil {
		return TokenPair{}, err
	}

	err = s.rotation.CompareAndRotate(ctx, m.ID, refreshToken, pair.RefreshToken, pair.RefreshExpiresAt)
	switch {
	case err == nil:
		s.metrics.AuthEvent("refresh", "success")
		return pair, nil
	case errors.Is(err, errRefreshReuse):
		s.logger.Warn("auth_refresh_reuse_detected", map[string]any{"member_id": m.ID})
		s.metrics.AuthEvent("refresh", "reuse")
		return TokenPair{}, ErrUnauthorized
	case errors.Is(err, errRefreshMissing):
		s.metrics.AuthEvent("refresh", "unauthorized")
		return TokenPair{}, ErrUnauthorized
	case errors.Is(err, ErrTokenExpired):
		s.metrics.AuthEvent("refresh", "expired")
		return TokenPair{}, ErrTokenExpired
	default:
		return TokenPair{}, err
	}
}

func refreshOutcome(err error) string {
	if errors.Is(err, ErrTokenExpired) {
		return "expired"
	}
	return "unauthorized"
}

// Logout clears the member's refresh token and revokes accessToken. An
// undecodable access token does not fail the logout.
func (s *Service) Logout(ctx context.Context, memberID, accessToken string) error {
	m, err := s.members.FindByID(ctx, memberID)
	if err != nil {
		return err
	}

	if err := s.rotation.Clear(ctx, m.ID); err != nil {
		return err
	}
	if err := s.revocations.Revoke(ctx, accessToken); err != nil {
		return err
	}

	s.logger.Info("auth_logout", map[string]any{"member_id": m.ID})
	s.metrics.AuthEvent("logout", "success")
	return nil
}
