package appointments

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses. Status updates accept arbitrary labels on purpose;
// these constants cover the lifecycle the platform itself drives.
const (
	StatusScheduled = "scheduled"
	StatusArrived   = "arrived"
	StatusNoShow    = "no_show"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Appointment is a booked slot for a doctor within a tenant.
type Appointment struct {
	ID            uuid.UUID  `json:"id"`
	TenantID      uuid.UUID  `json:"tenant_id"`
	BranchID      uuid.UUID  `json:"branch_id"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	StartsAt      time.Time  `json:"starts_at"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	ProcedureSize *int       `json:"procedure_size,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Patient *PatientSummary `json:"patient,omitempty"`
	Doctor  *DoctorSummary  `json:"doctor,omitempty"`
}

// PatientSummary is the patient projection nested in appointment responses.
type PatientSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Phone string    `json:"phone"`
}

// DoctorSummary is the doctor projection nested in appointment responses.
type DoctorSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// CreateRequest carries the fields needed to book an appointment.
type CreateRequest struct {
	PatientID     uuid.UUID
	DoctorID      uuid.UUID
	StartsAt      time.Time
	Type          string
	Status        string
	ProcedureSize *int
}

// Validate checks required fields.
func (r *CreateRequest) Validate() error {
	if r.PatientID == uuid.Nil {
		return ErrMissingPatient
	}
	if r.DoctorID == uuid.Nil {
		return ErrMissingDoctor
	}
	if r.StartsAt.IsZero() {
		return ErrMissingDate
	}
	return nil
}

// NormalizeInstant converts a timestamp to the canonical representation used
// for conflict detection: UTC, truncated to whole seconds.
func NormalizeInstant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
