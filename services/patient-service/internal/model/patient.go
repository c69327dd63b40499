package model

import "time"

// Patient is a clinic patient record. NIF is the natural key; reception
// creates patients with the minimal quick-add fields and fills the rest in
// later.
type Patient struct {
	ID        string
	NIF       string
	Name      string
	Phone     string
	BirthDate *time.Time
	CreatedAt time.Time
}

// VisitStats aggregates a patient's appointment history, maintained from
// agenda events.
type VisitStats struct {
	NIF          string
	TotalVisits  int
	Cancelled    int
	LastVisitDay *time.Time
}
