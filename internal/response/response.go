package response

import (
	"encoding/json"
	"net/http"

	"github.com/cayman031/study-with-me/internal/apperror"
	"github.com/cayman031/study-with-me/internal/observability"
)

const codeOK = "OK"

type Envelope struct {
	Success bool         `json:"success"`
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Data    any          `json:"data"`
	Errors  []FieldError `json:"errors"`
	TraceID string       `json:"traceId"`
}

type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func OK(w http.ResponseWriter, r *http.Request, data any) {
	JSON(w, http.StatusOK, Envelope{
		Success: true,
		Code:    codeOK,
		Message: "success",
		Data:    data,
		Errors:  []FieldError{},
		TraceID: observability.TraceID(r.Context()),
	})
}

func Error(w http.ResponseWriter, r *http.Request, code apperror.Code, fieldErrors ...FieldError) {
	if fieldErrors == nil {
		fieldErrors = []FieldError{}
	}
	JSON(w, code.Status(), Envelope{
		Success: false,
		Code:    string(code),
		Message: code.Message(),
		Data:    nil,
		Errors:  fieldErrors,
		TraceID: observability.TraceID(r.Context()),
	})
}

func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
