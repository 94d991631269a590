package booking

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clinicbase/clinic-platform/internal/appointments"
	"github.com/clinicbase/clinic-platform/internal/patients"
	"github.com/clinicbase/clinic-platform/internal/tenancy"
	"github.com/clinicbase/clinic-platform/pkg/logging"
)

// Handler serves the public, unauthenticated booking pages.
type Handler struct {
	links        *LinkRepository
	patients     *patients.Repository
	appointments *appointments.Service
	logger       *logging.Logger
}

// NewHandler creates the public booking handler.
func NewHandler(links *LinkRepository, patientRepo *patients.Repository, svc *appointments.Service, logger *logging.Logger) *Handler {
	if links == nil {
		panic("booking: link repository required")
	}
	if patientRepo == nil {
		panic("booking: patient repository required")
	}
	if svc == nil {
		panic("booking: appointment service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		links:        links,
		patients:     patientRepo,
		appointments: svc,
		logger:       logger,
	}
}

type slotsResponse struct {
	DoctorID string      `json:"doctor_id"`
	Slots    []time.Time `json:"slots"`
}

// Slots handles GET /public/booking/{slug}/slots.
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	link, ok := h.resolve(w, r)
	if !ok {
		return
	}

	slots, err := h.appointments.FreeSlotsForDoctor(r.Context(), link.TenantID, link.DoctorID)
	if err != nil {
		h.logger.Error("failed to compute public slots", "error", err, "slug", link.Slug)
		http.Error(w, "failed to load availability", http.StatusInternalServerError)
		return
	}
	if slots == nil {
		slots = []time.Time{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(slotsResponse{DoctorID: link.DoctorID.String(), Slots: slots})
}

type createRequest struct {
	PatientName string `json:"patient_name"`
	Phone       string `json:"phone"`
	Date        string `json:"date"`
	Type        string `json:"type"`
}

// Create handles POST /public/booking/{slug}.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	link, ok := h.resolve(w, r)
	if !ok {
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	startsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.Date))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be RFC3339")
		return
	}

	patient, err := h.patients.FindOrCreateByPhone(r.Context(), link.TenantID, req.PatientName, req.Phone)
	if err != nil {
		h.logger.Error("failed to resolve booking patient", "error", err, "slug", link.Slug)
		writeError(w, http.StatusBadRequest, "a valid phone number is required")
		return
	}

	// Public bookings act with a tenant-wide staff scope minted from the
	// link itself; the caller never supplies tenant identifiers.
	scope := tenancy.Scope{TenantID: link.TenantID, Role: tenancy.RoleStaff}
	appt, err := h.appointments.Create(r.Context(), scope, appointments.CreateRequest{
		PatientID: patient.ID,
		DoctorID:  link.DoctorID,
		StartsAt:  startsAt,
		Type:      req.Type,
	})
	if err != nil {
		switch {
		case errors.Is(err, appointments.ErrSlotTaken):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, appointments.ErrUnknownDoctor):
			writeError(w, http.StatusNotFound, "doctor not found")
		default:
			h.logger.Error("public booking failed", "error", err, "slug", link.Slug)
			writeError(w, http.StatusBadRequest, "could not book the appointment")
		}
		return
	}

	h.logger.Info("public booking created", "appointment_id", appt.ID, "slug", link.Slug)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(appt)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (*Link, bool) {
	slug := chi.URLParam(r, "slug")
	link, err := h.links.Resolve(r.Context(), slug)
	if err != nil {
		if errors.Is(err, ErrLinkNotFound) {
			writeError(w, http.StatusNotFound, "booking link not found")
			return nil, false
		}
		h.logger.Error("failed to resolve booking link", "error", err, "slug", slug)
		http.Error(w, "failed to resolve booking link", http.StatusInternalServerError)
		return nil, false
	}
	return link, true
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
