package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicbase/clinic-platform/internal/tenancy"
	"github.com/clinicbase/clinic-platform/pkg/logging"
)

// Handler exposes the staff-facing appointment endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates an appointment handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("appointments: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type createPayload struct {
	PatientID     string `json:"patient_id"`
	DoctorID      string `json:"doctor_id"`
	Date          string `json:"date"`
	Type          string `json:"type"`
	Status        string `json:"status,omitempty"`
	ProcedureSize *int   `json:"procedure_size,omitempty"`
}

// Create handles POST /appointments.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}

	var payload createPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req, err := payload.toRequest()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	appt, err := h.service.Create(r.Context(), scope, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, appt)
}

func (p createPayload) toRequest() (CreateRequest, error) {
	var req CreateRequest
	var err error

	if req.PatientID, err = uuid.Parse(strings.TrimSpace(p.PatientID)); err != nil {
		return req, ErrMissingPatient
	}
	if req.DoctorID, err = uuid.Parse(strings.TrimSpace(p.DoctorID)); err != nil {
		return req, ErrMissingDoctor
	}
	if req.StartsAt, err = time.Parse(time.RFC3339, strings.TrimSpace(p.Date)); err != nil {
		return req, ErrMissingDate
	}
	req.Type = strings.TrimSpace(p.Type)
	req.Status = strings.TrimSpace(p.Status)
	req.ProcedureSize = p.ProcedureSize
	return req, nil
}

type statusUpdatePayload struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /appointments/{id}/status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, ok := h.appointmentID(w, r)
	if !ok {
		return
	}

	var payload statusUpdatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	appt, err := h.service.UpdateStatus(r.Context(), scope, id, strings.TrimSpace(payload.Status))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// Cancel handles POST /appointments/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, ok := h.appointmentID(w, r)
	if !ok {
		return
	}

	appt, err := h.service.Cancel(r.Context(), scope, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

// DoctorSlots handles GET /doctors/{id}/slots.
func (h *Handler) DoctorSlots(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scope(w, r)
	if !ok {
		return
	}
	doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid doctor id")
		return
	}

	slots, err := h.service.FreeSlotsForDoctor(r.Context(), scope.TenantID, doctorID)
	if err != nil {
		h.logger.Error("failed to compute free slots", "error", err, "doctor_id", doctorID)
		writeError(w, http.StatusInternalServerError, "failed to load availability")
		return
	}
	if slots == nil {
		slots = []time.Time{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"doctor_id": doctorID.String(),
		"slots":     slots,
	})
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (tenancy.Scope, bool) {
	scope, ok := tenancy.ScopeFromContext(r.Context())
	if !ok || !scope.Valid() {
		writeError(w, http.StatusUnauthorized, "missing tenant scope")
		return tenancy.Scope{}, false
	}
	return scope, true
}

func (h *Handler) appointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrSlotTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnknownDoctor):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrMissingPatient), errors.Is(err, ErrMissingDoctor),
		errors.Is(err, ErrMissingDate), errors.Is(err, ErrMissingStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("appointment request failed", "error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
