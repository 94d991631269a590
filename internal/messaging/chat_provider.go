package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clinicbase/clinic-platform/pkg/logging"
)

// ChatProvider posts messages to the chat platform's REST API using a
// bearer token. Any non-2xx response is a failure.
type ChatProvider struct {
	apiURL     string
	token      string
	httpClient *http.Client
	logger     *logging.Logger
}

// ChatConfig holds the chat API settings.
type ChatConfig struct {
	APIURL string
	Token  string
}

// NewChatProvider builds the chat adapter.
func NewChatProvider(cfg ChatConfig, logger *logging.Logger) *ChatProvider {
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatProvider{
		apiURL: cfg.APIURL,
		token:  cfg.Token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

var _ Provider = (*ChatProvider)(nil)

type chatPayload struct {
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

// Send posts one chat message.
func (p *ChatProvider) Send(ctx context.Context, recipient, content string) error {
	if p.token == "" || p.apiURL == "" {
		return ErrNotConfigured
	}
	if recipient == "" {
		return fmt.Errorf("messaging: chat recipient required")
	}

	body, err := json.Marshal(chatPayload{Recipient: recipient, Text: content})
	if err != nil {
		return fmt.Errorf("messaging: marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("messaging: build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("messaging: chat post: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("messaging: chat send failed: status %d: %s", resp.StatusCode, string(respBody))
	}

	p.logger.Info("chat message sent", "to", recipient)
	return nil
}
