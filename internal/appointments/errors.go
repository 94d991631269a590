package appointments

import "errors"

var (
	// ErrMissingPatient is returned when a booking has no patient.
	ErrMissingPatient = errors.New("patient_id is required")

	// ErrMissingDoctor is returned when a booking has no doctor.
	ErrMissingDoctor = errors.New("doctor_id is required")

	// ErrMissingDate is returned when a booking has no timestamp.
	ErrMissingDate = errors.New("date is required")

	// ErrMissingStatus is returned when a status update carries no status.
	ErrMissingStatus = errors.New("status is required")

	// ErrSlotTaken is returned when the doctor already has a non-cancelled
	// booking at the requested instant.
	ErrSlotTaken = errors.New("the doctor already has a booking at that time")

	// ErrNotFound is returned when no appointment matches within the caller's tenant.
	ErrNotFound = errors.New("appointment not found")

	// ErrUnknownDoctor is returned when the doctor does not exist in the tenant.
	ErrUnknownDoctor = errors.New("doctor not found in this clinic")
)
