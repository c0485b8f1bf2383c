package booking

import "github.com/sartorlabs/sartor/services/booking-service/internal/model"

// transitions is the appointment status graph. Terminal statuses have no
// outgoing edges. NO_SHOW is terminal but has no incoming edge either: no
// flow marks an appointment as a no-show yet, so it can only exist in data
// written by hand.
var transitions = map[model.Status][]model.Status{
	model.StatusPending:   {model.StatusConfirmed, model.StatusCancelled},
	model.StatusConfirmed: {model.StatusCompleted, model.StatusCancelled},
}

// CanTransition reports whether the state machine allows moving from one
// status to another.
func CanTransition(from, to model.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
