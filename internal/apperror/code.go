package apperror

import "net/http"

type Code string

const (
	AuthInvalidCredentials Code = "AUTH_INVALID_CREDENTIALS"
	AuthLoginBlocked       Code = "AUTH_LOGIN_BLOCKED"
	AuthTokenExpired       Code = "AUTH_TOKEN_EXPIRED"
	AuthUnauthorized       Code = "AUTH_UNAUTHORIZED"
	AuthForbidden          Code = "AUTH_FORBIDDEN"
	MemberEmailDuplicated  Code = "MEMBER_EMAIL_DUPLICATED"
	MemberNotFound         Code = "MEMBER_NOT_FOUND"
	InvalidRequest         Code = "COMMON_INVALID_REQUEST"
	Internal               Code = "INTERNAL_ERROR"
)

type definition struct {
	status    int
	message   string
	retryable bool
}

var definitions = map[Code]definition{
	AuthInvalidCredentials: {http.StatusUnauthorized, "email or password is incorrect", false},
	AuthLoginBlocked:       {http.StatusTooManyRequests, "too many login attempts, try again later", true},
	AuthTokenExpired:       {http.StatusUnauthorized, "token has expired", true},
	AuthUnauthorized:       {http.StatusUnauthorized, "authentication is required", true},
	AuthForbidden:          {http.StatusForbidden, "access is denied", false},
	MemberEmailDuplicated:  {http.StatusConflict, "email is already in use", false},
	MemberNotFound:         {http.StatusNotFound, "member not found", false},
	InvalidRequest:         {http.StatusBadRequest, "request is invalid", false},
	Internal:               {http.StatusInternalServerError, "internal server error", true},
}

// Status returns the HTTP status for c. Unknown codes map to 500.
func (c Code) Status() int {
	if def, ok := definitions[c]; ok {
		return def.status
	}
	return http.StatusInternalServerError
}

func (c Code) Message() string {
	if def, ok := definitions[c]; ok {
		return def.message
	}
	return definitions[Internal].message
}

// Retryable reports whether a client may repeat the request unchanged and
// reasonably expect a different outcome (after a refresh, a wait or a retry).
func (c Code) Retryable() bool {
	if def, ok := definitions[c]; ok {
		return def.retryable
	}
	return true
}
