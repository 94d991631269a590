package messaging

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clinicbase/clinic-platform/pkg/logging"
)

// smsSuccessMarker is the first byte of a successful gateway response; the
// remainder of the line is the provider's message reference.
const smsSuccessMarker = '$'

// SMSProvider posts messages to a bulk-SMS gateway as an XML document with
// the account credentials embedded in the body.
type SMSProvider struct {
	apiURL     string
	usercode   string
	password   string
	from       string
	httpClient *http.Client
	logger     *logging.Logger
}

// SMSConfig holds the gateway account settings.
type SMSConfig struct {
	APIURL   string
	Usercode string
	Password string
	From     string
}

// NewSMSProvider builds the SMS adapter.
func NewSMSProvider(cfg SMSConfig, logger *logging.Logger) *SMSProvider {
	if logger == nil {
		logger = logging.Default()
	}
	return &SMSProvider{
		apiURL:   cfg.APIURL,
		usercode: cfg.Usercode,
		password: cfg.Password,
		from:     cfg.From,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

var _ Provider = (*SMSProvider)(nil)

type smsDocument struct {
	XMLName  xml.Name `xml:"smspack"`
	Usercode string   `xml:"usercode,attr"`
	Password string   `xml:"password,attr"`
	From     string   `xml:"from,attr"`
	Message  struct {
		Text string `xml:"text"`
		To   string `xml:"to"`
	} `xml:"message"`
}

// Send posts one SMS. The gateway answers with a plain-text body whose
// leading character decides the outcome.
func (p *SMSProvider) Send(ctx context.Context, recipient, content string) error {
	if p.usercode == "" || p.password == "" {
		return ErrNotConfigured
	}
	if recipient == "" {
		return fmt.Errorf("messaging: sms recipient required")
	}

	doc := smsDocument{
		Usercode: p.usercode,
		Password: p.password,
		From:     p.from,
	}
	doc.Message.Text = content
	doc.Message.To = recipient

	body, err := xml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("messaging: marshal sms document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("messaging: build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("messaging: sms post: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	answer := strings.TrimSpace(string(raw))
	if len(answer) == 0 || answer[0] != smsSuccessMarker {
		return fmt.Errorf("messaging: sms gateway rejected send: %q", answer)
	}

	p.logger.Info("sms sent", "to", recipient, "reference", strings.TrimPrefix(answer, string(smsSuccessMarker)))
	return nil
}
