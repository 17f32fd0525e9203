package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cayman031/study-with-me/internal/apperror"
	"github.com/cayman031/study-with-me/internal/observability"
)

func tracedRequest(traceID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	return req.WithContext(observability.WithTraceID(req.Context(), traceID))
}

func TestOKEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, tracedRequest("t-1"), map[string]string{"id": "m-1"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "OK", body["code"])
	assert.Equal(t, "t-1", body["traceId"])
	assert.Equal(t, map[string]any{"id": "m-1"}, body["data"])
	assert.Equal(t, []any{}, body["errors"])
}

func TestErrorEnvelopeUsesCodeStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, tracedRequest("t-2"), apperror.InvalidRequest, FieldError{Field: "email", Reason: "must be a valid email"})

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "COMMON_INVALID_REQUEST", body.Code)
	assert.Equal(t, apperror.InvalidRequest.Message(), body.Message)
	assert.Nil(t, body.Data)
	assert.Equal(t, []FieldError{{Field: "email", Reason: "must be a valid email"}}, body.Errors)
	assert.Equal(t, "t-2", body.TraceID)
}
