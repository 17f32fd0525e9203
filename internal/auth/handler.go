package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"

	"github.com/cayman031/study-with-me/internal/apperror"
	"github.com/cayman031/study-with-me/internal/observability"
	"github.com/cayman031/study-with-me/internal/response"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service *Service
	logger  *observability.Logger
}

func NewHandler(service *Service, logger *observability.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int64     `json:"expires_in"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var body signupRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	var fieldErrors []response.FieldError
	fieldErrors = append(fieldErrors, validateEmail(body.Email)...)
	fieldErrors = append(fieldErrors, validateLength("password", body.Password, 8, 20)...)
	fieldErrors = append(fieldErrors, validateLength("name", strings.TrimSpace(body.Name), 2, 20)...)
	if len(fieldErrors) > 0 {
		response.Error(w, r, apperror.InvalidRequest, fieldErrors...)
		return
	}

	created, err := h.service.Signup(r.Context(), SignupInput{
		Email:    body.Email,
		Password: body.Password,
		Name:     body.Name,
		Role:     body.Role,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidRole) {
			response.Error(w, r, apperror.InvalidRequest, response.FieldError{Field: "role", Reason: "role is not allowed"})
			return
		}
		h.writeServiceError(w, r, err)
		return
	}

	response.OK(w, r, created.View())
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	var fieldErrors []response.FieldError
	fieldErrors = append(fieldErrors, validateEmail(body.Email)...)
	fieldErrors = append(fieldErrors, validateLength("password", body.Password, 8, 20)...)
	if len(fieldErrors) > 0 {
		response.Error(w, r, apperror.InvalidRequest, fieldErrors...)
		return
	}

	pair, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	response.OK(w, r, h.tokenResponse(pair))
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.RefreshToken = strings.TrimSpace(body.RefreshToken)
	if body.RefreshToken == "" {
		response.Error(w, r, apperror.InvalidRequest, response.FieldError{Field: "refresh_token", Reason: "must not be blank"})
		return
	}

	pair, err := h.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	response.OK(w, r, h.tokenResponse(pair))
}

// Logout must sit behind RequireMember.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	memberID, ok := CurrentMemberID(r.Context())
	if !ok {
		response.Error(w, r, failureReason(r.Context()))
		return
	}

	accessToken, _ := BearerToken(r.Header.Get("Authorization"))
	if err := h.service.Logout(r.Context(), memberID, accessToken); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	response.OK(w, r, nil)
}

func (h *Handler) tokenResponse(pair TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        h.service.AccessTTL(),
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := ErrorCode(err)

	var blocked ErrLoginBlocked
	if errors.As(err, &blocked) {
		retryAfter := int(time.Until(blocked.Until).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}

	if code == apperror.Internal {
		sentry.CaptureException(err)
		h.logger.Error("auth_request_failed", map[string]any{
			"path":     r.URL.Path,
			"error":    err.Error(),
			"trace_id": observability.TraceID(r.Context()),
		})
	}

	response.Error(w, r, code)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		response.Error(w, r, apperror.InvalidRequest, response.FieldError{Field: "body", Reason: "invalid json body"})
		return false
	}

	return true
}

func validateEmail(email string) []response.FieldError {
	email = strings.TrimSpace(email)
	if email == "" {
		return []response.FieldError{{Field: "email", Reason: "must not be blank"}}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || len(email) > 255 {
		return []response.FieldError{{Field: "email", Reason: "must be a valid email"}}
	}
	return nil
}

func validateLength(field, value string, minLen, maxLen int) []response.FieldError {
	if strings.TrimSpace(value) == "" {
		return []response.FieldError{{Field: field, Reason: "must not be blank"}}
	}
	if n := utf8.RuneCountInString(value); n < minLen || n > maxLen {
		return []response.FieldError{{Field: field, Reason: "length must be between " + strconv.Itoa(minLen) + " and " + strconv.Itoa(maxLen)}}
	}
	return nil
}
