package member

import (
	"context"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"

	"github.com/cayman031/study-with-me/internal/apperror"
	"github.com/cayman031/study-with-me/internal/response"
)

type Handler struct {
	repo            Repository
	currentMemberID func(context.Context) (string, bool)
}

func NewHandler(repo Repository, currentMemberID func(context.Context) (string, bool)) *Handler {
	return &Handler{repo: repo, currentMemberID: currentMemberID}
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	memberID, ok := h.currentMemberID(r.Context())
	if !ok {
		response.Error(w, r, apperror.AuthUnauthorized)
		return
	}

	m, err := h.repo.FindByID(r.Context(), memberID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.Error(w, r, apperror.MemberNotFound)
			return
		}
		sentry.CaptureException(err)
		response.Error(w, r, apperror.Internal)
		return
	}

	response.OK(w, r, m.View())
}
