package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinicbase/clinic-platform/internal/observability/metrics"
	"github.com/clinicbase/clinic-platform/internal/tenancy"
	"github.com/clinicbase/clinic-platform/pkg/logging"
)

var appointmentsTracer = otel.Tracer("clinic.internal.appointments")

// Automation event names fired on lifecycle transitions.
const (
	EventCreated       = "appointment_created"
	EventStatusChanged = "appointment_status_changed"
)

// Effects receives the fire-and-forget side effects of appointment
// transitions. Implementations must never block the caller on delivery and
// must swallow their own failures.
type Effects interface {
	SendMessage(ctx context.Context, tenantID uuid.UUID, channel, recipient, content string)
	TriggerAutomation(ctx context.Context, tenantID uuid.UUID, event string, payload map[string]any)
}

// NopEffects discards all side effects.
type NopEffects struct{}

func (NopEffects) SendMessage(context.Context, uuid.UUID, string, string, string)       {}
func (NopEffects) TriggerAutomation(context.Context, uuid.UUID, string, map[string]any) {}

// Service owns appointment lifecycle transitions and their side effects.
type Service struct {
	repo    *Repository
	effects Effects
	metrics *metrics.SchedulingMetrics
	logger  *logging.Logger
	window  SlotWindow
	now     func() time.Time
}

// NewService constructs an appointment service.
func NewService(repo *Repository, effects Effects, m *metrics.SchedulingMetrics, window SlotWindow, logger *logging.Logger) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if effects == nil {
		effects = NopEffects{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:    repo,
		effects: effects,
		metrics: m,
		logger:  logger,
		window:  window.normalized(),
		now:     time.Now,
	}
}

// WithClock overrides the time source (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Create books the appointment and, once the row is persisted, hands the
// confirmation message and the automation trigger to the effects sink.
// Side-effect failures are invisible to the caller: the booking stands.
func (s *Service) Create(ctx context.Context, scope tenancy.Scope, req CreateRequest) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.tenant_id", scope.TenantID.String()),
		attribute.String("clinic.doctor_id", req.DoctorID.String()),
	)

	if err := req.Validate(); err != nil {
		return nil, err
	}

	appt := &Appointment{
		TenantID:      scope.TenantID,
		DoctorID:      req.DoctorID,
		PatientID:     req.PatientID,
		StartsAt:      req.StartsAt,
		Type:          req.Type,
		Status:        req.Status,
		ProcedureSize: req.ProcedureSize,
	}
	if err := s.repo.Insert(ctx, appt); err != nil {
		if err == ErrSlotTaken {
			s.metrics.ObserveBooking("conflict")
		}
		span.RecordError(err)
		return nil, err
	}
	s.metrics.ObserveBooking("created")

	full, err := s.repo.GetScoped(ctx, scope, appt.ID)
	if err != nil {
		// The booking is already committed; return what we have.
		s.logger.Warn("appointment created but reload failed", "error", err, "appointment_id", appt.ID)
		full = appt
	}

	s.logger.Info("appointment created",
		"appointment_id", full.ID,
		"tenant_id", scope.TenantID,
		"doctor_id", full.DoctorID,
		"starts_at", full.StartsAt.Format(time.RFC3339),
	)

	s.effects.TriggerAutomation(ctx, scope.TenantID, EventCreated, createdPayload(full))
	if full.Patient != nil && full.Patient.Phone != "" {
		s.effects.SendMessage(ctx, scope.TenantID, "sms", full.Patient.Phone, confirmationMessage(full))
	}
	return full, nil
}

// UpdateStatus sets a new status on a tenant-owned appointment. The persisted
// change always happens before the status-changed trigger is handed off.
func (s *Service) UpdateStatus(ctx context.Context, scope tenancy.Scope, id uuid.UUID, status string) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.update_status")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.tenant_id", scope.TenantID.String()),
		attribute.String("clinic.status", status),
	)

	if status == "" {
		return nil, ErrMissingStatus
	}

	appt, err := s.repo.GetScoped(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, scope, id, status); err != nil {
		span.RecordError(err)
		return nil, err
	}
	appt.Status = status
	s.metrics.ObserveStatusChange(status)

	s.effects.TriggerAutomation(ctx, scope.TenantID, EventStatusChanged, statusPayload(appt, status))
	if status == StatusCompleted && appt.Patient != nil && appt.Patient.Phone != "" {
		s.effects.SendMessage(ctx, scope.TenantID, "sms", appt.Patient.Phone, postProcedureMessage(appt))
	}
	return appt, nil
}

// Cancel sets the appointment to cancelled unconditionally within the scope.
func (s *Service) Cancel(ctx context.Context, scope tenancy.Scope, id uuid.UUID) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.cancel")
	defer span.End()

	appt, err := s.repo.GetScoped(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, scope, id, StatusCancelled); err != nil {
		span.RecordError(err)
		return nil, err
	}
	appt.Status = StatusCancelled
	s.metrics.ObserveStatusChange(StatusCancelled)

	s.effects.TriggerAutomation(ctx, scope.TenantID, EventStatusChanged, statusPayload(appt, StatusCancelled))
	return appt, nil
}

// FreeSlotsForDoctor computes the doctor's bookable instants in the window.
func (s *Service) FreeSlotsForDoctor(ctx context.Context, tenantID, doctorID uuid.UUID) ([]time.Time, error) {
	now := s.now()
	from, to := s.window.Bounds(now)
	booked, err := s.repo.BookedTimes(ctx, tenantID, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	return FreeSlots(s.window, booked, now), nil
}

func createdPayload(a *Appointment) map[string]any {
	payload := map[string]any{
		"appointment_id": a.ID.String(),
		"patient_id":     a.PatientID.String(),
		"doctor_id":      a.DoctorID.String(),
		"date":           a.StartsAt.Format(time.RFC3339),
	}
	if a.Patient != nil {
		payload["patient_name"] = a.Patient.Name
		payload["phone"] = a.Patient.Phone
	}
	if a.Doctor != nil {
		payload["doctor_name"] = a.Doctor.Name
	}
	return payload
}

func statusPayload(a *Appointment, event string) map[string]any {
	return map[string]any{
		"appointment_id": a.ID.String(),
		"patient_id":     a.PatientID.String(),
		"doctor_id":      a.DoctorID.String(),
		"event":          event,
	}
}

func confirmationMessage(a *Appointment) string {
	name := ""
	if a.Patient != nil {
		name = a.Patient.Name
	}
	doctor := ""
	if a.Doctor != nil {
		doctor = a.Doctor.Name
	}
	return fmt.Sprintf("Hi %s, your appointment with %s is confirmed for %s.",
		name, doctor, a.StartsAt.Format("Mon 2 Jan 15:04"))
}

func postProcedureMessage(a *Appointment) string {
	name := ""
	if a.Patient != nil {
		name = a.Patient.Name
	}
	return fmt.Sprintf("Hi %s, thank you for your visit today. Please follow your aftercare instructions and reach out if anything feels off.", name)
}
