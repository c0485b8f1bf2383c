package outbox

// Appointment lifecycle event types. Each type is also the Kafka topic it is
// published to.
const (
	EventAppointmentCreated     = "booking.appointment.created.v1"
	EventAppointmentConfirmed   = "booking.appointment.confirmed.v1"
	EventAppointmentCancelled   = "booking.appointment.cancelled.v1"
	EventAppointmentRescheduled = "booking.appointment.rescheduled.v1"
)

// Event is the domain event envelope written to the outbox table inside the
// same transaction as the appointment mutation it describes.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
