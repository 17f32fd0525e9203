package auth

import (
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/cayman031/study-with-me/internal/apperror"
	"github.com/cayman031/study-with-me/internal/observability"
	"github.com/cayman031/study-with-me/internal/response"
)

// Middleware authenticates every request and stores the Result in the
// request context. It never rejects on its own; see RequireMember.
func Middleware(authenticator *Authenticator, logger *observability.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result, err := authenticator.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			sentry.CaptureException(err)
			logger.Error("authenticate_failed", map[string]any{
				"error":    err.Error(),
				"trace_id": observability.TraceID(r.Context()),
			})
			response.Error(w, r, apperror.Internal)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithResult(r.Context(), result)))
	})
}

func RequireMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			response.Error(w, r, failureReason(r.Context()))
			return
		}

		next.ServeHTTP(w, r)
	})
}
