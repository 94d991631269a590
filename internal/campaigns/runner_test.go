package campaigns

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicbase/clinic-platform/internal/messaging"
)

type fakeSender struct {
	sent   []messaging.SendRequest
	status string
	err    error
}

func (s *fakeSender) Send(_ context.Context, req messaging.SendRequest) (string, error) {
	s.sent = append(s.sent, req)
	if s.status == "" {
		return messaging.StatusSent, s.err
	}
	return s.status, s.err
}

type fakeConsent struct {
	allowed bool
	err     error
	calls   int
}

func (c *fakeConsent) Check(context.Context, uuid.UUID, string, string) (bool, error) {
	c.calls++
	return c.allowed, c.err
}

// All runner tests pin the clock to this instant so the candidate query
// arguments are fixed and can be matched exactly.
var runStamp = time.Date(2025, 2, 14, 9, 0, 0, 0, time.UTC)

func retentionTarget() time.Time { return runStamp.AddDate(0, 0, -30) }
func reminderFrom() time.Time    { return time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC) }
func reminderTo() time.Time      { return time.Date(2025, 2, 16, 0, 0, 0, 0, time.UTC) }

func candidateRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"tenant_id", "id", "name", "phone"})
}

func emptyBirthday(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery("FROM patients").
		WithArgs(2, 14).
		WillReturnRows(candidateRows())
}

func emptyRetention(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery("a.status = 'completed'").
		WithArgs(retentionTarget(), "%treatment%").
		WillReturnRows(pgxmock.NewRows([]string{"tenant_id", "id", "name", "phone", "type"}))
}

func emptyReminder(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery("a.status = 'scheduled'").
		WithArgs(reminderFrom(), reminderTo()).
		WillReturnRows(pgxmock.NewRows([]string{"tenant_id", "id", "name", "phone", "starts_at"}))
}

func newRunner(t *testing.T, mock pgxmock.PgxPoolIface, sender MessageSender, consent ConsentChecker) *Runner {
	t.Helper()
	return NewRunner(NewRepository(mock), sender, consent, nil, nil, nil, Options{}).
		WithClock(func() time.Time { return runStamp })
}

func TestBirthdayJobSendsOneGreeting(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tenantID := uuid.New()
	mock.ExpectQuery("FROM patients").
		WithArgs(2, 14).
		WillReturnRows(candidateRows().AddRow(tenantID, uuid.New(), "Ayşe", "+905551112233"))
	emptyRetention(mock)
	emptyReminder(mock)

	sender := &fakeSender{}
	consent := &fakeConsent{allowed: true}
	runner := newRunner(t, mock, sender, consent)

	summary := runner.RunOnce(context.Background())

	require.NoError(t, summary.Errs())
	require.Len(t, sender.sent, 1)
	assert.Equal(t, tenantID, sender.sent[0].TenantID)
	assert.Equal(t, "+905551112233", sender.sent[0].Recipient)
	assert.Contains(t, sender.sent[0].Content, "Ayşe")
	assert.Equal(t, 1, summary.Jobs[0].Sent)
}

func TestCampaignTrafficRespectsOptOuts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM patients").
		WithArgs(2, 14).
		WillReturnRows(candidateRows().AddRow(uuid.New(), uuid.New(), "Mert", "+905550001122"))
	emptyRetention(mock)
	emptyReminder(mock)

	sender := &fakeSender{}
	runner := newRunner(t, mock, sender, &fakeConsent{allowed: false})

	summary := runner.RunOnce(context.Background())

	assert.Empty(t, sender.sent)
	assert.Equal(t, 1, summary.Jobs[0].Skipped)
}

func TestRemindersBypassConsent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	emptyBirthday(mock)
	emptyRetention(mock)
	mock.ExpectQuery("a.status = 'scheduled'").
		WithArgs(reminderFrom(), reminderTo()).
		WillReturnRows(pgxmock.NewRows([]string{"tenant_id", "id", "name", "phone", "starts_at"}).
			AddRow(uuid.New(), uuid.New(), "Deniz", "+905559998877", time.Date(2025, 2, 15, 10, 0, 0, 0, time.UTC)))

	sender := &fakeSender{}
	consent := &fakeConsent{allowed: false}
	runner := newRunner(t, mock, sender, consent)

	summary := runner.RunOnce(context.Background())

	// The opted-out patient still gets the reminder; it is transactional.
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Content, "10:00")
	assert.Equal(t, 0, consent.calls)
	assert.Equal(t, 1, summary.Jobs[2].Sent)
}

func TestFailedJobDoesNotBlockTheOthers(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM patients").
		WithArgs(2, 14).
		WillReturnError(errors.New("db down"))
	emptyRetention(mock)
	mock.ExpectQuery("a.status = 'scheduled'").
		WithArgs(reminderFrom(), reminderTo()).
		WillReturnRows(pgxmock.NewRows([]string{"tenant_id", "id", "name", "phone", "starts_at"}).
			AddRow(uuid.New(), uuid.New(), "Ece", "+905551234500", time.Date(2025, 2, 15, 14, 0, 0, 0, time.UTC)))

	sender := &fakeSender{}
	runner := newRunner(t, mock, sender, &fakeConsent{allowed: true})

	summary := runner.RunOnce(context.Background())

	require.Error(t, summary.Errs())
	assert.True(t, strings.Contains(summary.Errs().Error(), "birthday"))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, 1, summary.Jobs[2].Sent)
}

func TestFailedSendIsCountedAndLoopContinues(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM patients").
		WithArgs(2, 14).
		WillReturnRows(candidateRows().
			AddRow(uuid.New(), uuid.New(), "Ali", "+905550000001").
			AddRow(uuid.New(), uuid.New(), "Veli", "+905550000002"))
	emptyRetention(mock)
	emptyReminder(mock)

	sender := &fakeSender{status: messaging.StatusFailed}
	runner := newRunner(t, mock, sender, &fakeConsent{allowed: true})

	summary := runner.RunOnce(context.Background())

	assert.Len(t, sender.sent, 2)
	assert.Equal(t, 0, summary.Jobs[0].Sent)
	assert.Equal(t, 2, summary.Jobs[0].Skipped)
}

func TestNextFiring(t *testing.T) {
	runner := &Runner{opts: Options{RunAt: "09:00"}}

	before := time.Date(2025, 6, 1, 7, 30, 0, 0, time.UTC)
	next, err := runner.nextFiring(before)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), next)

	after := time.Date(2025, 6, 1, 9, 0, 1, 0, time.UTC)
	next, err = runner.nextFiring(after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC), next)

	runner.opts.RunAt = "26:00"
	_, err = runner.nextFiring(before)
	assert.Error(t, err)
}
