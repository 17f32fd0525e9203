package maintenance

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/cayman031/study-with-me/internal/auth"
	"github.com/cayman031/study-with-me/internal/observability"
	"github.com/cayman031/study-with-me/internal/response"
)

type Cleaner interface {
	CleanupExpired(ctx context.Context, now time.Time, attemptRetention time.Duration, batchSize int) (auth.CleanupResult, error)
}

type CleanupHandler struct {
	cleaner          Cleaner
	logger           *observability.Logger
	cronSecret       string
	attemptRetention time.Duration
	batchSize        int
}

func NewCleanupHandler(
	cleaner Cleaner,
	logger *observability.Logger,
	cronSecret string,
	attemptRetention time.Duration,
	batchSize int,
) *CleanupHandler {
	return &CleanupHandler{
		cleaner:          cleaner,
		logger:           logger,
		cronSecret:       strings.TrimSpace(cronSecret),
		attemptRetention: attemptRetention,
		batchSize:        batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		response.JSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	token, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.cronSecret)) != 1 {
		response.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	result, err := h.cleaner.CleanupExpired(r.Context(), time.Now().UTC(), h.attemptRetention, h.batchSize)
	if err != nil {
		sentry.CaptureException(err)
		h.logger.Error("auth_cleanup_failed", map[string]any{"error": err.Error(), "trigger": "cron"})
		response.JSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	h.logger.Info("auth_cleanup_completed", map[string]any{
		"trigger":                "cron",
		"deleted_revoked_tokens": result.DeletedRevokedTokens,
		"deleted_login_attempts": result.DeletedLoginAttempts,
	})

	response.JSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"result": result,
	})
}
