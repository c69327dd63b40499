package outbox

// Event is the domain event envelope written to the outbox table inside the
// booking transaction. The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Event types emitted by the agenda service.
const (
	EventAppointmentBooked      = "agenda.appointment.booked.v1"
	EventAppointmentRescheduled = "agenda.appointment.rescheduled.v1"
	EventAppointmentCancelled   = "agenda.appointment.cancelled.v1"
)
