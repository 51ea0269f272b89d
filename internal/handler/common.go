package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"banking-core/internal/errors"
)

type Response struct {
	Data  interface{} `json:"data,omitempty"`
	Error *Error      `json:"error,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := Response{Data: data}
	json.NewEncoder(w).Encode(response)
}

func writeError(w http.ResponseWriter, appErr *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")

	errResponse := Error{
		Code:    string(appErr.Code),
		Message: appErr.Message,
		Details: appErr.Details,
	}

	w.WriteHeader(appErr.HTTPStatus())
	json.NewEncoder(w).Encode(Response{Error: &errResponse})
}

// writeServiceError renders taxonomy errors with their mapped status and
// anything else as an opaque internal error.
func writeServiceError(w http.ResponseWriter, err error) {
	if appErr, ok := err.(*errors.AppError); ok {
		writeError(w, appErr)
		return
	}
	writeError(w, errors.NewAppError(errors.InternalError, "an unexpected error occurred").WithDetails(err.Error()))
}

// requester extracts the authenticated caller's identity. Authentication is
// an upstream concern; these headers carry its verdict.
func requester(r *http.Request) (uuid.UUID, bool, *errors.AppError) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return uuid.Nil, false, errors.NewUnauthorized("missing X-User-ID header")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, errors.NewUnauthorized("invalid X-User-ID header")
	}
	return id, r.Header.Get("X-Admin") == "true", nil
}
