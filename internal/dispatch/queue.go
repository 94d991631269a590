package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// queueClient is the transport behind the side-effect queue.
type queueClient interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// Task kinds carried on the queue.
const (
	KindMessage    = "message"
	KindAutomation = "automation"
)

// MessageTask asks the messaging gateway to deliver one message.
type MessageTask struct {
	Channel        string    `json:"channel"`
	Recipient      string    `json:"recipient"`
	Content        string    `json:"content"`
	SenderID       uuid.UUID `json:"sender_id,omitempty"`
	ConversationID uuid.UUID `json:"conversation_id,omitempty"`
}

// AutomationTask asks the dispatcher to fire one workflow event.
type AutomationTask struct {
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

// Task is one queued side effect.
type Task struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	TenantID   uuid.UUID       `json:"tenant_id"`
	Message    *MessageTask    `json:"message,omitempty"`
	Automation *AutomationTask `json:"automation,omitempty"`
}

func encodeTask(task Task) (Task, string, error) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	body, err := json.Marshal(task)
	if err != nil {
		return Task{}, "", fmt.Errorf("dispatch: encode task: %w", err)
	}
	return task, string(body), nil
}
