package patients

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Patient lifecycle statuses.
const (
	StatusLead     = "lead"
	StatusActive   = "active"
	StatusTreated  = "treated"
	StatusArchived = "archived"
)

// ErrPatientNotFound indicates the patient does not exist within the tenant.
var ErrPatientNotFound = errors.New("patients: patient not found")

// Patient is one person a clinic treats or is courting.
type Patient struct {
	ID        uuid.UUID  `json:"id"`
	TenantID  uuid.UUID  `json:"tenant_id"`
	BranchID  *uuid.UUID `json:"branch_id,omitempty"`
	Name      string     `json:"name"`
	Phone     string     `json:"phone"`
	Email     string     `json:"email,omitempty"`
	Status    string     `json:"status"`
	BirthDate *time.Time `json:"birth_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
