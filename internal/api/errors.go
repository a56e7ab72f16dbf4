package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/johnwards/dealerhub/internal/store"
)

// Error categories.
const (
	CategoryValidationError = "VALIDATION_ERROR"
	CategoryObjectNotFound  = "OBJECT_NOT_FOUND"
	CategoryConflict        = "CONFLICT"
	CategoryReadOnly        = "READ_ONLY"
	CategoryInternal        = "INTERNAL_ERROR"
	CategoryUpstream        = "UPSTREAM_ERROR"
)

// Error is the JSON error envelope. Success is always false so clients that
// only inspect {success, message} read it the same way as a data envelope.
type Error struct {
	Success       bool          `json:"success"`
	Status        string        `json:"status"`
	Message       string        `json:"message"`
	CorrelationID string        `json:"correlationId"`
	Category      string        `json:"category"`
	Errors        []ErrorDetail `json:"errors,omitempty"`
}

// ErrorDetail represents a single error within an Error.
type ErrorDetail struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	In      string `json:"in,omitempty"`
}

// NewNotFoundError creates a 404 error with the OBJECT_NOT_FOUND category.
func NewNotFoundError(message, correlationID string) *Error {
	return &Error{
		Status:        "error",
		Message:       message,
		CorrelationID: correlationID,
		Category:      CategoryObjectNotFound,
	}
}

// NewValidationError creates a 400 error with the VALIDATION_ERROR category.
func NewValidationError(message, correlationID string, details []ErrorDetail) *Error {
	return &Error{
		Status:        "error",
		Message:       message,
		CorrelationID: correlationID,
		Category:      CategoryValidationError,
		Errors:        details,
	}
}

// NewConflictError creates a 409 error with the CONFLICT category.
func NewConflictError(message, correlationID string) *Error {
	return &Error{
		Status:        "error",
		Message:       message,
		CorrelationID: correlationID,
		Category:      CategoryConflict,
	}
}

// NewInternalError creates a 500 error with the INTERNAL_ERROR category.
func NewInternalError(message, correlationID string) *Error {
	return &Error{
		Status:        "error",
		Message:       message,
		CorrelationID: correlationID,
		Category:      CategoryInternal,
	}
}

// WriteError writes an Error as a JSON response with the given HTTP status code.
func WriteError(w http.ResponseWriter, statusCode int, apiErr *Error) {
	apiErr.Success = false
	WriteJSON(w, statusCode, apiErr)
}

// WriteStoreError maps a store error onto the matching status and category.
func WriteStoreError(w http.ResponseWriter, r *http.Request, err error) {
	corrID := CorrelationID(r.Context())

	var ve *store.ValidationError
	switch {
	case errors.As(err, &ve):
		WriteError(w, http.StatusBadRequest, NewValidationError(ve.Message, corrID, []ErrorDetail{
			{Message: ve.Message, Code: "INVALID_FIELD", In: ve.Field},
		}))
	case errors.Is(err, store.ErrNotFound):
		WriteError(w, http.StatusNotFound, NewNotFoundError(err.Error(), corrID))
	case errors.Is(err, store.ErrConflict):
		WriteError(w, http.StatusConflict, NewConflictError(err.Error(), corrID))
	case errors.Is(err, store.ErrReadOnly):
		WriteError(w, http.StatusMethodNotAllowed, &Error{
			Status:        "error",
			Message:       err.Error(),
			CorrelationID: corrID,
			Category:      CategoryReadOnly,
		})
	default:
		slog.Error("store error", "error", err, "path", r.URL.Path)
		WriteError(w, http.StatusInternalServerError, NewInternalError("Internal Server Error", corrID))
	}
}
