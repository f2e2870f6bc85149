package lifecycle

import (
	"errors"
	"fmt"

	"github.com/spec-kit/helpdesk/internal/domain"
)

var (
	ErrForbidden         = errors.New("lifecycle: actor not allowed")
	ErrInvalidTransition = errors.New("lifecycle: invalid state transition")
	ErrUnknownTransition = errors.New("lifecycle: unknown transition")
	ErrTicketRequired    = errors.New("lifecycle: ticket required")
)

// InvalidTransitionError names the transition and the status that blocked it.
type InvalidTransitionError struct {
	Transition Transition
	Current    domain.TicketStatus
	Reason     string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s ticket in status %s: %s", e.Transition, e.Current, e.Reason)
	}
	return fmt.Sprintf("cannot %s ticket in status %s", e.Transition, e.Current)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ValidationError reports a malformed field of a request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
