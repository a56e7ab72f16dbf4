package view

import (
	"context"
	"errors"

	"github.com/johnwards/dealerhub/internal/client"
)

var (
	// ErrBusy is returned while another mutation of the screen is in flight.
	ErrBusy = errors.New("another request is in progress")
	// ErrTransitionNotAllowed is returned for an action the record's current
	// status does not permit.
	ErrTransitionNotAllowed = errors.New("action not allowed for the current status")
	// ErrConfirmationRequired is returned when a destructive step was not
	// confirmed.
	ErrConfirmationRequired = errors.New("confirmation required")
	// ErrUnknownAction is returned for an action the screen does not offer.
	ErrUnknownAction = errors.New("unknown action")
	// ErrModalState is returned when the open modal does not accept the
	// requested step.
	ErrModalState = errors.New("modal is not open for this operation")
	// ErrReadOnly is returned for mutations on a read-only screen.
	ErrReadOnly = errors.New("screen is read-only")
	// ErrUnknownRecord is returned for an id the loaded list does not hold.
	ErrUnknownRecord = errors.New("record not found")
)

// ValidationError is a form value rejected before any request is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Message renders err as the single line shown in a screen's alert.
func Message(err error) string {
	var (
		apiErr       *client.APIError
		transportErr *client.TransportError
		validation   *ValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return validation.Message
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, context.Canceled):
		return "Request cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "Request timed out"
	case errors.As(err, &transportErr):
		return "Network error: " + transportErr.Err.Error()
	default:
		return err.Error()
	}
}
