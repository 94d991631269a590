package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/clinicbase/clinic-platform/pkg/logging"
)

var dispatcherTracer = otel.Tracer("clinic.internal.automation")

// Dispatcher fires named workflow events at the external automation engine.
// Callers treat it as fire-and-forget: nothing escapes its boundary, every
// attempt leaves an audit row.
type Dispatcher struct {
	baseURL    string
	store      *Store
	httpClient *http.Client
	logger     *logging.Logger
}

// NewDispatcher builds a dispatcher for the engine at baseURL. An empty
// baseURL disables dispatch; attempts are still logged pending then failed.
func NewDispatcher(baseURL string, store *Store, logger *logging.Logger) *Dispatcher {
	if store == nil {
		panic("automation: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Trigger persists a pending log row, then POSTs the payload to
// {base}/{event}. A dispatch failure appends a second, failed row carrying
// the captured error and the original payload; the pending row stays as-is.
func (d *Dispatcher) Trigger(ctx context.Context, tenantID uuid.UUID, event string, payload map[string]any) {
	ctx, span := dispatcherTracer.Start(ctx, "automation.trigger")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.tenant_id", tenantID.String()),
		attribute.String("clinic.event", event),
	)

	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("automation payload not serializable", "error", err, "event", event)
		return
	}

	if err := d.store.Insert(ctx, LogEntry{
		TenantID: tenantID,
		Workflow: event,
		Status:   StatusPending,
		Payload:  body,
	}); err != nil {
		d.logger.Error("failed to write pending automation log", "error", err, "event", event)
		// Without the pending audit row the attempt is abandoned.
		return
	}

	if err := d.post(ctx, event, body); err != nil {
		span.RecordError(err)
		d.logger.Warn("automation dispatch failed", "error", err, "event", event, "tenant_id", tenantID)
		if logErr := d.store.Insert(ctx, LogEntry{
			TenantID: tenantID,
			Workflow: event,
			Status:   StatusFailed,
			Payload:  body,
			Detail:   err.Error(),
		}); logErr != nil {
			d.logger.Error("failed to write failed automation log", "error", logErr, "event", event)
		}
		return
	}

	d.logger.Info("automation triggered", "event", event, "tenant_id", tenantID)
}

func (d *Dispatcher) post(ctx context.Context, event string, body []byte) error {
	if d.baseURL == "" {
		return fmt.Errorf("automation: engine url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/"+event, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("automation: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("automation: post %s: %w", event, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 2048))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("automation: post %s: status %d", event, resp.StatusCode)
	}
	return nil
}
