package model

import "time"

// Appointment statuses. Scheduled appointments block slots; cancelled and
// completed ones do not.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Appointment is one booked consultation. Day is midnight in the clinic
// timezone; StartMinute and DurationMinutes place it within the day, so the
// occupied range is the half-open [StartMinute, StartMinute+DurationMinutes).
type Appointment struct {
	ID              string
	ProviderID      string
	PatientNIF      string
	PatientName     string
	Day             time.Time
	StartMinute     int
	DurationMinutes int
	IsOnline        bool
	Status          string
	CancelledAt     *time.Time
	CancelReason    string
	CreatedAt       time.Time
}

func (a Appointment) EndMinute() int {
	return a.StartMinute + a.DurationMinutes
}

// Provider is a clinician offering appointments.
type Provider struct {
	ID        string
	Name      string
	Specialty string
	Active    bool
}
