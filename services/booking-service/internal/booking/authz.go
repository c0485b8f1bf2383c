package booking

import "github.com/sartorlabs/sartor/services/booking-service/internal/model"

// Action names an operation subject to role checks.
type Action string

const (
	ActionCreate     Action = "create"
	ActionRead       Action = "read"
	ActionConfirm    Action = "confirm"
	ActionComplete   Action = "complete"
	ActionCancel     Action = "cancel"
	ActionReschedule Action = "reschedule"
	ActionAssign     Action = "assign"
	ActionDelete     Action = "delete"
)

// Allowed is the single authorization predicate. owns reports whether the
// appointment belongs to the acting user: for customers that means they
// booked it, for staff that they are assigned to it. It is ignored for
// actions that are role-gated only.
func Allowed(action Action, role model.Role, owns bool) bool {
	switch action {
	case ActionCreate:
		return role == model.RoleCustomer
	case ActionRead:
		return role == model.RoleAdmin || owns
	case ActionConfirm:
		return role == model.RoleAdmin
	case ActionComplete:
		return role == model.RoleStaff || role == model.RoleAdmin
	case ActionCancel, ActionReschedule:
		return role == model.RoleAdmin || (role == model.RoleCustomer && owns)
	case ActionAssign, ActionDelete:
		return role == model.RoleAdmin
	default:
		return false
	}
}
