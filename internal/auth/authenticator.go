package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cayman031/study-with-me/internal/apperror"
	"github.com/cayman031/study-with-me/internal/member"
	"github.com/cayman031/study-with-me/internal/observability"
)

type MemberLookup interface {
	FindByID(ctx context.Context, id string) (member.Member, error)
}

// Result is the outcome of authenticating one request. A request without a
// bearer credential has Present false and no Reason.
type Result struct {
	Principal Principal
	Present   bool
	Reason    apperror.Code
}

func (r Result) Authenticated() bool {
	return r.Present && r.Reason == ""
}

type Authenticator struct {
	codec       *Codec
	revocations *RevocationList
	members     MemberLookup
	metrics     *observability.Metrics
}

func NewAuthenticator(codec *Codec, revocations *RevocationList, members MemberLookup, metrics *observability.Metrics) *Authenticator {
	return &Authenticator{codec: codec, revocations: revocations, members: members, metrics: metrics}
}

// Authenticate runs revocation, token and member-status checks for an
// Authorization header value. Malformed input always yields a Result; the
// error is reserved for store failures.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (Result, error) {
	token, ok := BearerToken(header)
	if !ok {
		return Result{}, nil
	}

	result, err := a.authenticate(ctx, token)
	if err != nil {
		a.metrics.AuthEvent("authenticate", "error")
		return Result{}, err
	}

	outcome := "success"
	if result.Reason != "" {
		outcome = strings.ToLower(string(result.Reason))
	}
	a.metrics.AuthEvent("authenticate", outcome)

	return result, nil
}

func (a *Authenticator) authenticate(ctx context.Context, token string) (Result, error) {
	revoked, err := a.revocations.IsRevoked(ctx, token)
	if err != nil {
		return Result{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return Result{Present: true, Reason: apperror.AuthUnauthorized}, nil
	}

	principal, err := a.codec.ParseAccess(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return Result{Present: true, Reason: apperror.AuthTokenExpired}, nil
		}
		return Result{Present: true, Reason: apperror.AuthUnauthorized}, nil
	}

	m, err := a.members.FindByID(ctx, principal.MemberID)
	if err != nil {
		if errors.Is(err, member.ErrNotFound) {
			return Result{Present: true, Reason: apperror.AuthUnauthorized}, nil
		}
		return Result{}, fmt.Errorf("load member: %w", err)
	}
	if !m.IsActive() {
		return Result{Present: true, Reason: apperror.AuthForbidden}, nil
	}

	return Result{Present: true, Principal: principal}, nil
}

// BearerToken extracts the token from "Bearer <token>". The scheme is matched
// case-insensitively; anything else counts as no credential.
func BearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}

	return token, true
}
