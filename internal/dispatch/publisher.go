package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbase/clinic-platform/pkg/logging"
)

// Publisher enqueues side-effect tasks for asynchronous processing. It is the
// boundary between request handling and delivery: callers never learn whether
// delivery succeeded, only whether the task was accepted onto the queue.
type Publisher struct {
	queue          queueClient
	logger         *logging.Logger
	enqueueTimeout time.Duration
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue queueClient, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("dispatch: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{
		queue:          queue,
		logger:         logger,
		enqueueTimeout: 5 * time.Second,
	}
}

// SendMessage enqueues one outbound message delivery. The request context is
// deliberately not used for the enqueue: a booking that has already committed
// should not lose its confirmation because the caller hung up.
func (p *Publisher) SendMessage(_ context.Context, tenantID uuid.UUID, channel, recipient, content string) {
	task := Task{
		Kind:     KindMessage,
		TenantID: tenantID,
		Message: &MessageTask{
			Channel:   channel,
			Recipient: recipient,
			Content:   content,
		},
	}
	p.enqueue(task)
}

// TriggerAutomation enqueues one workflow event dispatch.
func (p *Publisher) TriggerAutomation(_ context.Context, tenantID uuid.UUID, event string, payload map[string]any) {
	task := Task{
		Kind:     KindAutomation,
		TenantID: tenantID,
		Automation: &AutomationTask{
			Event:   event,
			Payload: payload,
		},
	}
	p.enqueue(task)
}

func (p *Publisher) enqueue(task Task) {
	task, body, err := encodeTask(task)
	if err != nil {
		p.logger.Error("failed to encode side-effect task", "error", err, "kind", task.Kind)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.enqueueTimeout)
	defer cancel()

	if err := p.queue.Send(ctx, body); err != nil {
		p.logger.Error("failed to enqueue side-effect task",
			"error", fmt.Errorf("dispatch: enqueue: %w", err),
			"task_id", task.ID,
			"kind", task.Kind,
			"tenant_id", task.TenantID,
		)
		return
	}

	p.logger.Debug("side-effect task enqueued", "task_id", task.ID, "kind", task.Kind)
}
