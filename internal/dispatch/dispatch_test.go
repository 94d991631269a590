package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicbase/clinic-platform/internal/messaging"
)

type capturingSender struct {
	mu   sync.Mutex
	sent []messaging.SendRequest
	done chan struct{}
}

func newCapturingSender(expected int) *capturingSender {
	return &capturingSender{done: make(chan struct{}, expected)}
}

func (s *capturingSender) Send(_ context.Context, req messaging.SendRequest) (string, error) {
	s.mu.Lock()
	s.sent = append(s.sent, req)
	s.mu.Unlock()
	s.done <- struct{}{}
	return messaging.StatusSent, nil
}

type capturingTrigger struct {
	mu     sync.Mutex
	events []string
	done   chan struct{}
}

func newCapturingTrigger(expected int) *capturingTrigger {
	return &capturingTrigger{done: make(chan struct{}, expected)}
}

func (t *capturingTrigger) Trigger(_ context.Context, _ uuid.UUID, event string, _ map[string]any) {
	t.mu.Lock()
	t.events = append(t.events, event)
	t.mu.Unlock()
	t.done <- struct{}{}
}

func waitFor(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for task to be processed")
	}
}

func TestMemoryQueueRoundTrip(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()

	require.NoError(t, q.Send(ctx, `{"kind":"message"}`))
	require.NoError(t, q.Send(ctx, `{"kind":"automation"}`))

	messages, err := q.Receive(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, `{"kind":"message"}`, messages[0].Body)
	assert.NotEmpty(t, messages[0].ID)
}

func TestMemoryQueueReceiveTimesOut(t *testing.T) {
	q := NewMemoryQueue(1)

	start := time.Now()
	messages, err := q.Receive(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestPublisherAndWorkerDeliverMessageTask(t *testing.T) {
	q := NewMemoryQueue(4)
	sender := newCapturingSender(1)
	pub := NewPublisher(q, nil)
	worker := NewWorker(q, sender, nil, nil, WithWorkerCount(1), WithReceiveWaitSeconds(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	tenantID := uuid.New()
	pub.SendMessage(context.Background(), tenantID, messaging.ChannelSMS, "+15550001111", "see you tomorrow")

	waitFor(t, sender.done)
	cancel()
	worker.Wait()

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.sent, 1)
	assert.Equal(t, tenantID, sender.sent[0].TenantID)
	assert.Equal(t, messaging.ChannelSMS, sender.sent[0].Channel)
	assert.Equal(t, "+15550001111", sender.sent[0].Recipient)
	assert.Equal(t, "see you tomorrow", sender.sent[0].Content)
}

func TestPublisherAndWorkerDeliverAutomationTask(t *testing.T) {
	q := NewMemoryQueue(4)
	trigger := newCapturingTrigger(1)
	pub := NewPublisher(q, nil)
	worker := NewWorker(q, nil, trigger, nil, WithWorkerCount(1), WithReceiveWaitSeconds(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	pub.TriggerAutomation(context.Background(), uuid.New(), "appointment_created", map[string]any{"id": "abc"})

	waitFor(t, trigger.done)
	cancel()
	worker.Wait()

	trigger.mu.Lock()
	defer trigger.mu.Unlock()
	require.Len(t, trigger.events, 1)
	assert.Equal(t, "appointment_created", trigger.events[0])
}

func TestWorkerDropsMalformedTask(t *testing.T) {
	q := NewMemoryQueue(2)
	sender := newCapturingSender(1)
	worker := NewWorker(q, sender, nil, nil, WithWorkerCount(1), WithReceiveWaitSeconds(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker.Start(ctx)

	require.NoError(t, q.Send(context.Background(), "not json"))
	// A valid task behind the malformed one still gets through.
	pub := NewPublisher(q, nil)
	pub.SendMessage(context.Background(), uuid.New(), messaging.ChannelChat, "patient-77", "hello")

	waitFor(t, sender.done)
	cancel()
	worker.Wait()

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.sent, 1)
	assert.Equal(t, messaging.ChannelChat, sender.sent[0].Channel)
}
