package messaging

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinicbase/clinic-platform/internal/observability/metrics"
	"github.com/clinicbase/clinic-platform/pkg/logging"
)

var gatewayTracer = otel.Tracer("clinic.internal.messaging")

// Channels the gateway can route to.
const (
	ChannelSMS  = "sms"
	ChannelChat = "chat"
)

// Delivery log statuses.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// ErrNotConfigured is returned by providers whose credentials are missing.
// No network call is attempted in that case.
var ErrNotConfigured = errors.New("messaging: provider not configured")

// Provider delivers a message on one channel.
type Provider interface {
	Send(ctx context.Context, recipient, content string) error
}

// SendRequest describes one outbound message.
type SendRequest struct {
	TenantID       uuid.UUID
	Channel        string
	Recipient      string
	Content        string
	SenderID       uuid.UUID
	ConversationID uuid.UUID
}

// Gateway routes sends to per-channel providers and writes exactly one
// delivery log row per invocation, whatever the outcome. Failures are
// terminal: there is no retry, only the record.
type Gateway struct {
	providers map[string]Provider
	store     *Store
	metrics   *metrics.MessagingMetrics
	logger    *logging.Logger
}

// NewGateway builds a gateway over the given channel providers.
func NewGateway(providers map[string]Provider, store *Store, m *metrics.MessagingMetrics, logger *logging.Logger) *Gateway {
	if store == nil {
		panic("messaging: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if providers == nil {
		providers = map[string]Provider{}
	}
	return &Gateway{providers: providers, store: store, metrics: m, logger: logger}
}

// Send dispatches the message and records the outcome. The returned status is
// "sent" or "failed"; an error is only returned when even the audit log row
// could not be written.
func (g *Gateway) Send(ctx context.Context, req SendRequest) (string, error) {
	ctx, span := gatewayTracer.Start(ctx, "messaging.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.tenant_id", req.TenantID.String()),
		attribute.String("clinic.channel", req.Channel),
	)

	sendErr := g.dispatch(ctx, req)

	status := StatusSent
	detail := ""
	if sendErr != nil {
		status = StatusFailed
		detail = sendErr.Error()
		span.RecordError(sendErr)
		g.logger.Warn("message send failed",
			"channel", req.Channel,
			"recipient", req.Recipient,
			"tenant_id", req.TenantID,
			"error", sendErr,
		)
	}
	g.metrics.ObserveSend(req.Channel, status)

	if _, err := g.store.InsertLog(ctx, MessageLog{
		TenantID:  req.TenantID,
		Channel:   req.Channel,
		Recipient: req.Recipient,
		Content:   req.Content,
		Status:    status,
		Detail:    detail,
	}); err != nil {
		g.logger.Error("failed to write message log", "error", err, "tenant_id", req.TenantID)
		return status, err
	}

	if sendErr == nil && req.ConversationID != uuid.Nil {
		if err := g.store.AppendThreadMessage(ctx, req.TenantID, req.ConversationID, req.SenderID, req.Content); err != nil {
			g.logger.Warn("failed to append thread message", "error", err, "conversation_id", req.ConversationID)
		}
	}

	return status, nil
}

func (g *Gateway) dispatch(ctx context.Context, req SendRequest) error {
	if req.Recipient == "" {
		return errors.New("messaging: recipient required")
	}
	provider, ok := g.providers[req.Channel]
	if !ok || provider == nil {
		return errors.New("messaging: unknown channel " + req.Channel)
	}
	return provider.Send(ctx, req.Recipient, req.Content)
}
