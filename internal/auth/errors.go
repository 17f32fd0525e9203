package auth

import (
	"errors"
	"time"

	"github.com/cayman031/study-with-me/internal/apperror"
	"github.com/cayman031/study-with-me/internal/member"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("member is not active")
	ErrInvalidRole        = errors.New("role is not allowed for signup")
	ErrSigningKeyTooShort = errors.New("jwt signing key must be at least 32 bytes")

	// errRefreshMissing and errRefreshReuse are collapsed into ErrUnauthorized
	// by the service so callers cannot tell reuse apart.
	errRefreshMissing = errors.New("no refresh token on record")
	errRefreshReuse   = errors.New("refresh token does not match current token")
)

type ErrLoginBlocked struct {
	Until time.Time
}

func (e ErrLoginBlocked) Error() string {
	return "login temporarily blocked"
}

// ErrorCode maps a service error to its wire code. Unknown errors are internal.
func ErrorCode(err error) apperror.Code {
	var blocked ErrLoginBlocked
	switch {
	case err == nil:
		return ""
	case errors.As(err, &blocked):
		return apperror.AuthLoginBlocked
	case errors.Is(err, ErrInvalidCredentials):
		return apperror.AuthInvalidCredentials
	case errors.Is(err, ErrTokenExpired):
		return apperror.AuthTokenExpired
	case errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrUnauthorized):
		return apperror.AuthUnauthorized
	case errors.Is(err, ErrForbidden):
		return apperror.AuthForbidden
	case errors.Is(err, ErrInvalidRole):
		return apperror.InvalidRequest
	case errors.Is(err, member.ErrEmailDuplicated):
		return apperror.MemberEmailDuplicated
	case errors.Is(err, member.ErrNotFound):
		return apperror.MemberNotFound
	default:
		return apperror.Internal
	}
}
