package observability

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/oklog/ulid/v2"
)

const TraceHeader = "X-Trace-Id"

var traceIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

type traceKey struct{}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// TraceID returns the request trace id, or "" outside a traced request.
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(traceKey{}).(string)
	return value
}

// TraceMiddleware reuses a well-formed X-Trace-Id from the caller or mints a
// new one, and echoes it on the response.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := strings.TrimSpace(r.Header.Get(TraceHeader))
		if !traceIDPattern.MatchString(traceID) {
			traceID = NewTraceID()
		}

		w.Header().Set(TraceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(WithTraceID(r.Context(), traceID)))
	})
}

func NewTraceID() string {
	return strings.ToLower(ulid.Make().String())
}
