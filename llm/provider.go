// Package llm provides the LLM provider abstraction shared by the sidequest
// agents. Three capabilities sit on top of it: task classification, email
// drafting, and research. All of them are single-turn completions, so the
// surface is deliberately small: messages in, text out.
package llm

import (
	"context"
	"fmt"
)

// Message is a single chat message.
type Message struct {
	Role    string `json:"role"` // user, assistant
	Content string `json:"content"`
}

// ChatRequest is a completion request.
type ChatRequest struct {
	// System is the system instruction, if any.
	System string `json:"system,omitempty"`

	Messages []Message `json:"messages"`

	// MaxTokens overrides the provider's configured limit when > 0.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature overrides the provider default when set. The classifier
	// pins it to 0 for determinism.
	Temperature *float64 `json:"temperature,omitempty"`
}

// ChatResponse is a completion response.
type ChatResponse struct {
	Content      string `json:"content"`
	StopReason   string `json:"stop_reason"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	Model        string `json:"model"`
}

// Provider is the interface implemented by all LLM backends.
type Provider interface {
	// Chat sends a completion request and returns the response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Config selects and configures a provider for NewProvider.
type Config struct {
	Provider  string      `json:"provider"` // anthropic, openai, google, groq, openai-compat
	Model     string      `json:"model"`
	APIKey    string      `json:"api_key"`
	BaseURL   string      `json:"base_url,omitempty"` // custom endpoint for openai-compat
	MaxTokens int         `json:"max_tokens"`
	Retry     RetryConfig `json:"retry"`
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("api key is required")
	}
	if c.MaxTokens == 0 {
		return fmt.Errorf("max_tokens is required")
	}
	return nil
}

// Zero returns a Temperature pointer pinned to 0.
func Zero() *float64 {
	z := 0.0
	return &z
}

// --- Mock Provider for Testing ---

// MockProvider is a test double for Provider.
type MockProvider struct {
	response     string
	stopReason   string
	inputTokens  int
	outputTokens int
	lastRequest  *ChatRequest
	err          error
	callCount    int

	// ChatFunc can be set for custom behavior.
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// NewMockProvider creates a new mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{stopReason: "end_turn"}
}

// SetResponse sets the response content.
func (p *MockProvider) SetResponse(content string) {
	p.response = content
}

// SetError sets an error to return.
func (p *MockProvider) SetError(err error) {
	p.err = err
}

// SetTokenCounts sets the token counts.
func (p *MockProvider) SetTokenCounts(input, output int) {
	p.inputTokens = input
	p.outputTokens = output
}

// LastRequest returns the most recent request, or nil.
func (p *MockProvider) LastRequest() *ChatRequest {
	return p.lastRequest
}

// CallCount returns the number of Chat calls made.
func (p *MockProvider) CallCount() int {
	return p.callCount
}

// Reset clears the call count.
func (p *MockProvider) Reset() {
	p.callCount = 0
}

// Chat implements the Provider interface.
func (p *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	p.callCount++
	p.lastRequest = &req

	if p.ChatFunc != nil {
		return p.ChatFunc(ctx, req)
	}

	if p.err != nil {
		return nil, p.err
	}

	return &ChatResponse{
		Content:      p.response,
		StopReason:   p.stopReason,
		InputTokens:  p.inputTokens,
		OutputTokens: p.outputTokens,
	}, nil
}
