package booking

import (
	"errors"
	"fmt"

	"github.com/sartorlabs/sartor/services/booking-service/internal/model"
)

var (
	ErrNotFound  = errors.New("appointment not found")
	ErrForbidden = errors.New("forbidden")

	// ErrSlotLocked means another request holds the booking lock for the slot.
	ErrSlotLocked = errors.New("slot is being booked by another request, please try again")
	// ErrSlotTaken means an overlapping appointment already exists.
	ErrSlotTaken = errors.New("slot is no longer available")
)

// ValidationError reports bad request input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalidf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// TransitionError reports a status change the state machine does not allow.
type TransitionError struct {
	From model.Status
	To   model.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition appointment from %s to %s", e.From, e.To)
}
