package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbase/clinic-platform/internal/messaging"
	"github.com/clinicbase/clinic-platform/pkg/logging"
)

// MessageSender delivers one outbound message. Satisfied by *messaging.Gateway.
type MessageSender interface {
	Send(ctx context.Context, req messaging.SendRequest) (string, error)
}

// AutomationTrigger fires one workflow event. Satisfied by *automation.Dispatcher.
type AutomationTrigger interface {
	Trigger(ctx context.Context, tenantID uuid.UUID, event string, payload map[string]any)
}

// Worker consumes side-effect tasks from the queue and executes them.
type Worker struct {
	queue      queueClient
	messages   MessageSender
	automation AutomationTrigger
	logger     *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	taskTimeout      time.Duration
}

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	defaultTaskTimeout   = 30 * time.Second
	deleteTimeoutSeconds = 5
)

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the queue long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many tasks to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// NewWorker constructs a queue consumer that routes message tasks to the
// gateway and automation tasks to the dispatcher.
func NewWorker(queue queueClient, messages MessageSender, automation AutomationTrigger, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if queue == nil {
		panic("dispatch: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
		taskTimeout:      defaultTaskTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		queue:      queue,
		messages:   messages,
		automation: automation,
		logger:     logger,
		cfg:        cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("dispatch worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("dispatch worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive side-effect tasks", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	var task Task
	if err := json.Unmarshal([]byte(msg.Body), &task); err != nil {
		w.logger.Error("failed to decode side-effect task", "error", err)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	taskCtx, cancel := context.WithTimeout(ctx, w.cfg.taskTimeout)
	err := w.execute(taskCtx, task)
	cancel()

	if err != nil {
		// Delivery outcomes are already recorded by the gateway and the
		// automation log. The task is consumed either way.
		w.logger.Error("side-effect task failed", "error", err, "task_id", task.ID, "kind", task.Kind, "tenant_id", task.TenantID)
	} else {
		w.logger.Debug("side-effect task processed", "task_id", task.ID, "kind", task.Kind)
	}

	w.deleteMessage(context.Background(), msg.ReceiptHandle)
}

func (w *Worker) execute(ctx context.Context, task Task) error {
	switch task.Kind {
	case KindMessage:
		if task.Message == nil {
			return fmt.Errorf("dispatch: message task %s has no body", task.ID)
		}
		if w.messages == nil {
			return fmt.Errorf("dispatch: no message sender configured")
		}
		_, err := w.messages.Send(ctx, messaging.SendRequest{
			TenantID:       task.TenantID,
			Channel:        task.Message.Channel,
			Recipient:      task.Message.Recipient,
			Content:        task.Message.Content,
			SenderID:       task.Message.SenderID,
			ConversationID: task.Message.ConversationID,
		})
		return err
	case KindAutomation:
		if task.Automation == nil {
			return fmt.Errorf("dispatch: automation task %s has no body", task.ID)
		}
		if w.automation == nil {
			return fmt.Errorf("dispatch: no automation trigger configured")
		}
		w.automation.Trigger(ctx, task.TenantID, task.Automation.Event, task.Automation.Payload)
		return nil
	default:
		return fmt.Errorf("dispatch: unknown task kind %q", task.Kind)
	}
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}

	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSeconds*time.Second)
	defer cancel()

	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete side-effect task", "error", err)
	}
}
