package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/storage"
)

// APIError is the JSON error body of every failed request.
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

func newAPIError(status int, code, msg string) *APIError {
	return &APIError{StatusCode: status, ErrorCode: code, Message: msg}
}

// FieldError is one failed request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorFor maps an engine or storage error to an API error.
func errorFor(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var paramErr *domain.InvalidParameterError
	if errors.As(err, &paramErr) {
		e := newAPIError(http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
		e.Details = []FieldError{{Field: paramErr.Name, Message: paramErr.Reason}}
		return e
	}

	switch {
	case errors.Is(err, domain.ErrSchema):
		return newAPIError(http.StatusUnprocessableEntity, "SCHEMA_ERROR", err.Error())
	case errors.Is(err, storage.ErrNotFound):
		return newAPIError(http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, storage.ErrInvalidInput):
		return newAPIError(http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	}
	return newAPIError(http.StatusInternalServerError, "INTERNAL", "internal error")
}
