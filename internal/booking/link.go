package booking

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrLinkNotFound indicates the slug resolves to no active booking link.
var ErrLinkNotFound = errors.New("booking: link not found")

// Link is a public, slug-addressable booking page for one doctor.
type Link struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Slug      string    `json:"slug"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
