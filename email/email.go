// Package email turns a free-form context into a finished email: the
// recipient is pulled from the request or the context text, an LLM
// drafts the subject and body, and a Sender delivers the result.
package email

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"sidequest/faults"
	"sidequest/llm"
)

const (
	draftTemperature = 0.6
	draftMaxTokens   = 500

	// fallbackSubject labels drafts whose model output had no usable
	// subject line.
	fallbackSubject = "Automated Email"

	// subjectWords caps the subject built from a plain-text fallback.
	subjectWords = 8
)

const draftSystemPrompt = `You are a professional email writing assistant.
Craft a complete, well-structured email based on the given context.
Follow these rules strictly:
- Use a polite, natural, and professional business tone.
- Begin with a greeting (e.g., 'Hi <Name>,' or 'Hello Team,').
- Write 2-3 concise, well-formed paragraphs.
- End with a polite closing (e.g., 'Best regards,' or 'Thank you,').
- The subject should be clear and concise.
- Do NOT include markdown, explanations, or backticks.
- Output ONLY valid JSON in this format:
  {
    "subject": "<email subject>",
    "body": "<email body>"
  }`

var addressPattern = regexp.MustCompile(`[\w.-]+@[\w.-]+\.\w+`)

// DraftRequest is the create_draft payload. To is optional; when empty
// the first address found in Context is the recipient.
type DraftRequest struct {
	Context string `json:"context"`
	To      string `json:"to"`
}

// Draft reports a drafted and delivered email.
type Draft struct {
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	MessageID string `json:"message_id"`
}

// Sender delivers a finished draft and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) (string, error)
}

// Agent drafts and sends emails. A nil provider skips drafting and
// sends the plain-text fallback, which keeps keyless setups working.
type Agent struct {
	provider llm.Provider
	sender   Sender
	logger   *zap.Logger
}

// NewAgent creates an email Agent.
func NewAgent(provider llm.Provider, sender Sender, logger *zap.Logger) (*Agent, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{provider: provider, sender: sender, logger: logger.Named("email")}, nil
}

// CreateDraft resolves the recipient, drafts the email, and sends it.
func (a *Agent) CreateDraft(ctx context.Context, req DraftRequest) (*Draft, error) {
	recipient := strings.TrimSpace(req.To)
	if recipient == "" {
		recipient = addressPattern.FindString(req.Context)
	}
	if recipient == "" {
		return nil, faults.New(faults.CodeInvalidInput, "no recipient found in request or context")
	}

	// Addresses never reach the model.
	sanitized := strings.TrimSpace(addressPattern.ReplaceAllString(req.Context, ""))

	subject, body := a.draft(ctx, sanitized)

	messageID, err := a.sender.Send(ctx, recipient, subject, body)
	if err != nil {
		return nil, faults.Wrap(err, "send draft")
	}

	a.logger.Info("draft sent",
		zap.String("to", recipient),
		zap.String("subject", subject),
		zap.String("message_id", messageID))

	return &Draft{To: recipient, Subject: subject, Body: body, MessageID: messageID}, nil
}

type draftJSON struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// draft asks the model for a subject and body. It always produces a
// sendable draft: model failures degrade to the plain-text fallback and
// prose output becomes the body under a generic subject.
func (a *Agent) draft(ctx context.Context, text string) (subject, body string) {
	if a.provider == nil {
		return fallbackDraft(text)
	}

	temp := draftTemperature
	resp, err := a.provider.Chat(ctx, llm.ChatRequest{
		System:      draftSystemPrompt,
		Messages:    []llm.Message{{Role: "user", Content: text}},
		MaxTokens:   draftMaxTokens,
		Temperature: &temp,
	})
	if err != nil {
		a.logger.Warn("drafter unavailable, sending plain draft", zap.Error(err))
		return fallbackDraft(text)
	}

	content := strings.TrimSpace(resp.Content)
	if raw, err := llm.ExtractJSON(content); err == nil {
		var d draftJSON
		if json.Unmarshal([]byte(raw), &d) == nil {
			d.Subject = strings.TrimSpace(d.Subject)
			d.Body = strings.TrimSpace(d.Body)
			if d.Subject != "" && d.Body != "" {
				return d.Subject, d.Body
			}
		}
	}
	return fallbackSubject, content
}

// fallbackDraft builds a plain draft from the context; the subject is
// its leading words.
func fallbackDraft(text string) (subject, body string) {
	body = strings.TrimSpace(text)
	if body == "" {
		return fallbackSubject, "Hello,\n\nThis is an automated message.\n\nBest regards."
	}
	words := strings.Fields(body)
	if len(words) > subjectWords {
		return strings.Join(words[:subjectWords], " ") + "...", body
	}
	return strings.Join(words, " "), body
}
