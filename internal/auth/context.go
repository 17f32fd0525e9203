package auth

import (
	"context"

	"github.com/cayman031/study-with-me/internal/apperror"
)

type resultKey struct{}

func WithResult(ctx context.Context, result Result) context.Context {
	return context.WithValue(ctx, resultKey{}, result)
}

func ResultFromContext(ctx context.Context) (Result, bool) {
	result, ok := ctx.Value(resultKey{}).(Result)
	return result, ok
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	result, ok := ResultFromContext(ctx)
	if !ok || !result.Authenticated() {
		return Principal{}, false
	}
	return result.Principal, true
}

func CurrentMemberID(ctx context.Context) (string, bool) {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return "", false
	}
	return principal.MemberID, true
}

// failureReason is the code to answer an unauthenticated request with.
func failureReason(ctx context.Context) apperror.Code {
	result, ok := ResultFromContext(ctx)
	if !ok || result.Reason == "" {
		return apperror.AuthUnauthorized
	}
	return result.Reason
}
