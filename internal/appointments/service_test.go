package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicbase/clinic-platform/internal/tenancy"
)

type recordedMessage struct {
	channel   string
	recipient string
	content   string
}

type recordedTrigger struct {
	event   string
	payload map[string]any
}

type fakeEffects struct {
	messages []recordedMessage
	triggers []recordedTrigger
}

func (f *fakeEffects) SendMessage(_ context.Context, _ uuid.UUID, channel, recipient, content string) {
	f.messages = append(f.messages, recordedMessage{channel, recipient, content})
}

func (f *fakeEffects) TriggerAutomation(_ context.Context, _ uuid.UUID, event string, payload map[string]any) {
	f.triggers = append(f.triggers, recordedTrigger{event, payload})
}

func newTestService(t *testing.T, effects Effects) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	svc := NewService(NewRepository(mock), effects, nil, DefaultSlotWindow(), nil)
	return svc, mock
}

func insertArgs() []any {
	args := make([]any, 8)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func expectInsert(mock pgxmock.PgxPoolIface, branchID uuid.UUID) {
	now := time.Now().UTC()
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(insertArgs()...).
		WillReturnRows(pgxmock.NewRows([]string{"branch_id", "created_at", "updated_at"}).
			AddRow(branchID, now, now))
}

// expectReload matches the scoped reload for admin callers (no branch
// filter). The id is matched loosely because Insert assigns it.
func expectReload(mock pgxmock.PgxPoolIface, a Appointment, phone string) {
	mock.ExpectQuery("SELECT a.id, a.tenant_id").
		WithArgs(pgxmock.AnyArg(), a.TenantID).
		WillReturnRows(appointmentRows(a, "Ayşe Yılmaz", phone, "Dr. Demir"))
}

func TestCreateHandsOffConfirmationEffects(t *testing.T) {
	effects := &fakeEffects{}
	svc, mock := newTestService(t, effects)

	scope := tenancy.Scope{TenantID: uuid.New(), Role: tenancy.RoleAdmin}
	req := CreateRequest{
		PatientID: uuid.New(),
		DoctorID:  uuid.New(),
		StartsAt:  time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC),
		Type:      "consultation",
	}
	stored := Appointment{
		ID:        uuid.New(),
		TenantID:  scope.TenantID,
		BranchID:  uuid.New(),
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
		StartsAt:  req.StartsAt,
		Type:      req.Type,
		Status:    StatusScheduled,
	}
	expectInsert(mock, stored.BranchID)
	expectReload(mock, stored, "+905551234567")

	appt, err := svc.Create(context.Background(), scope, req)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, appt.Status)

	require.Len(t, effects.triggers, 1)
	assert.Equal(t, EventCreated, effects.triggers[0].event)
	assert.Equal(t, "Ayşe Yılmaz", effects.triggers[0].payload["patient_name"])

	require.Len(t, effects.messages, 1)
	assert.Equal(t, "sms", effects.messages[0].channel)
	assert.Equal(t, "+905551234567", effects.messages[0].recipient)
	assert.Contains(t, effects.messages[0].content, "Dr. Demir")
	assert.Contains(t, effects.messages[0].content, "confirmed")
}

func TestCreateWithoutPhoneSkipsConfirmationSMS(t *testing.T) {
	effects := &fakeEffects{}
	svc, mock := newTestService(t, effects)

	scope := tenancy.Scope{TenantID: uuid.New(), Role: tenancy.RoleAdmin}
	req := CreateRequest{
		PatientID: uuid.New(),
		DoctorID:  uuid.New(),
		StartsAt:  time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC),
	}
	stored := Appointment{
		ID: uuid.New(), TenantID: scope.TenantID, BranchID: uuid.New(),
		DoctorID: req.DoctorID, PatientID: req.PatientID,
		StartsAt: req.StartsAt, Status: StatusScheduled,
	}
	expectInsert(mock, stored.BranchID)
	expectReload(mock, stored, "")

	_, err := svc.Create(context.Background(), scope, req)
	require.NoError(t, err)

	assert.Len(t, effects.triggers, 1)
	assert.Empty(t, effects.messages)
}

func TestCreateConflictFiresNoEffects(t *testing.T) {
	effects := &fakeEffects{}
	svc, mock := newTestService(t, effects)

	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(insertArgs()...).
		WillReturnError(slotConflictError())

	scope := tenancy.Scope{TenantID: uuid.New(), Role: tenancy.RoleAdmin}
	_, err := svc.Create(context.Background(), scope, CreateRequest{
		PatientID: uuid.New(),
		DoctorID:  uuid.New(),
		StartsAt:  time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC),
	})

	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.Empty(t, effects.triggers)
	assert.Empty(t, effects.messages)
}

func TestCreateRejectsIncompleteRequest(t *testing.T) {
	effects := &fakeEffects{}
	svc, _ := newTestService(t, effects)

	scope := tenancy.Scope{TenantID: uuid.New(), Role: tenancy.RoleAdmin}
	_, err := svc.Create(context.Background(), scope, CreateRequest{DoctorID: uuid.New()})
	assert.ErrorIs(t, err, ErrMissingPatient)
}

func TestCompletedStatusSendsAftercareMessage(t *testing.T) {
	effects := &fakeEffects{}
	svc, mock := newTestService(t, effects)

	scope := tenancy.Scope{TenantID: uuid.New(), Role: tenancy.RoleAdmin}
	stored := Appointment{
		ID: uuid.New(), TenantID: scope.TenantID, BranchID: uuid.New(),
		DoctorID: uuid.New(), PatientID: uuid.New(),
		StartsAt: time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC), Status: StatusScheduled,
	}
	expectReload(mock, stored, "+905551234567")
	mock.ExpectExec("UPDATE appointments").
		WithArgs(stored.ID, scope.TenantID, StatusCompleted).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	appt, err := svc.UpdateStatus(context.Background(), scope, stored.ID, StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, appt.Status)

	require.Len(t, effects.triggers, 1)
	assert.Equal(t, EventStatusChanged, effects.triggers[0].event)

	require.Len(t, effects.messages, 1)
	assert.Contains(t, effects.messages[0].content, "aftercare")
}

func TestArrivedStatusFiresTriggerOnly(t *testing.T) {
	effects := &fakeEffects{}
	svc, mock := newTestService(t, effects)

	scope := tenancy.Scope{TenantID: uuid.New(), Role: tenancy.RoleAdmin}
	stored := Appointment{
		ID: uuid.New(), TenantID: scope.TenantID, BranchID: uuid.New(),
		DoctorID: uuid.New(), PatientID: uuid.New(),
		StartsAt: time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC), Status: StatusScheduled,
	}
	expectReload(mock, stored, "+905551234567")
	mock.ExpectExec("UPDATE appointments").
		WithArgs(stored.ID, scope.TenantID, StatusArrived).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	_, err := svc.UpdateStatus(context.Background(), scope, stored.ID, StatusArrived)
	require.NoError(t, err)
	assert.Len(t, effects.triggers, 1)
	assert.Empty(t, effects.messages)
}

func TestUpdateStatusRequiresStatus(t *testing.T) {
	effects := &fakeEffects{}
	svc, _ := newTestService(t, effects)

	scope := tenancy.Scope{TenantID: uuid.New(), Role: tenancy.RoleAdmin}
	_, err := svc.UpdateStatus(context.Background(), scope, uuid.New(), "")
	assert.ErrorIs(t, err, ErrMissingStatus)
}

func TestCancelMarksCancelledAndFiresTrigger(t *testing.T) {
	effects := &fakeEffects{}
	svc, mock := newTestService(t, effects)

	scope := tenancy.Scope{TenantID: uuid.New(), Role: tenancy.RoleAdmin}
	stored := Appointment{
		ID: uuid.New(), TenantID: scope.TenantID, BranchID: uuid.New(),
		DoctorID: uuid.New(), PatientID: uuid.New(),
		StartsAt: time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC), Status: StatusScheduled,
	}
	expectReload(mock, stored, "")
	mock.ExpectExec("UPDATE appointments").
		WithArgs(stored.ID, scope.TenantID, StatusCancelled).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	appt, err := svc.Cancel(context.Background(), scope, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, appt.Status)

	require.Len(t, effects.triggers, 1)
	assert.Equal(t, StatusCancelled, effects.triggers[0].payload["event"])
	assert.Empty(t, effects.messages)
}

func TestFreeSlotsForDoctorFiltersBooked(t *testing.T) {
	svc, mock := newTestService(t, nil)
	now := time.Date(2025, 1, 31, 20, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })

	tenantID := uuid.New()
	doctorID := uuid.New()
	booked := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT starts_at").
		WithArgs(tenantID, doctorID, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"starts_at"}).AddRow(booked))

	slots, err := svc.FreeSlotsForDoctor(context.Background(), tenantID, doctorID)
	require.NoError(t, err)
	assert.NotContains(t, slots, booked)
	assert.Contains(t, slots, time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC))
}
