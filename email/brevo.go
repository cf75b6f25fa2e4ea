package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"sidequest/faults"
)

// BrevoBaseURL is the production Brevo API endpoint.
const BrevoBaseURL = "https://api.brevo.com"

const (
	// DefaultSenderEmail and DefaultSenderName identify the agent when
	// no sender is configured.
	DefaultSenderEmail = "pos-agent@mvp.com"
	DefaultSenderName  = "POS AI Agent"

	defaultSendTimeout = 20 * time.Second
)

// BrevoConfig configures the Brevo transactional sender.
type BrevoConfig struct {
	// APIKey authenticates against Brevo. Required.
	APIKey string

	// BaseURL overrides BrevoBaseURL, mainly for tests.
	BaseURL string

	// SenderEmail and SenderName identify the sender; both default.
	SenderEmail string
	SenderName  string

	// Timeout bounds one send. Defaults to 20s.
	Timeout time.Duration
}

// Brevo sends email through the Brevo transactional API.
type Brevo struct {
	apiKey  string
	baseURL string
	sender  brevoParty
	client  *http.Client
	logger  *zap.Logger
}

// NewBrevo creates a Brevo sender.
func NewBrevo(cfg BrevoConfig, logger *zap.Logger) (*Brevo, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("brevo API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = BrevoBaseURL
	}
	senderEmail := cfg.SenderEmail
	if senderEmail == "" {
		senderEmail = DefaultSenderEmail
	}
	senderName := cfg.SenderName
	if senderName == "" {
		senderName = DefaultSenderName
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Brevo{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		sender:  brevoParty{Name: senderName, Email: senderEmail},
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("brevo"),
	}, nil
}

type brevoParty struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoMessage struct {
	Sender      brevoParty   `json:"sender"`
	To          []brevoParty `json:"to"`
	Subject     string       `json:"subject"`
	HTMLContent string       `json:"htmlContent"`
	TextContent string       `json:"textContent"`
}

type brevoReceipt struct {
	MessageID string `json:"messageId"`
}

// Send implements the Sender interface.
func (b *Brevo) Send(ctx context.Context, to, subject, body string) (string, error) {
	msg := brevoMessage{
		Sender:      b.sender,
		To:          []brevoParty{{Email: to}},
		Subject:     subject,
		HTMLContent: renderHTML(body, b.sender.Name),
		TextContent: body,
	}

	receipt, err := b.post(ctx, "/v3/smtp/email", msg)
	if err != nil {
		return "", faults.WrapWithCode(err, faults.CodeUnavailable, "send email via brevo")
	}
	return receipt.MessageID, nil
}

func (b *Brevo) post(ctx context.Context, path string, in brevoMessage) (*brevoReceipt, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", b.apiKey)

	httpResp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode < http.StatusOK || httpResp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("brevo API error (status %d): %s", httpResp.StatusCode, string(respBody))
	}

	var receipt brevoReceipt
	if err := json.Unmarshal(respBody, &receipt); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &receipt, nil
}

// renderHTML wraps the plain body for HTML clients and appends the
// agent signature.
func renderHTML(body, senderName string) string {
	escaped := strings.ReplaceAll(body, "\n", "<br>")
	return fmt.Sprintf(`<html>
<body style="font-family: 'Segoe UI', sans-serif; color: #333; line-height: 1.6;">
%s
<br><br>
<p style="margin-top: 20px;">
Best regards,<br>
<strong>%s</strong><br>
<span style="font-size: 12px; color: #888;">Automated Communication Assistant</span>
</p>
</body>
</html>`, escaped, senderName)
}
