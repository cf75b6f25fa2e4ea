package research

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"sidequest/faults"
	"sidequest/llm"
)

const structuredAnswer = `{
  "executive_summary": ["Go is a compiled language"],
  "key_findings": ["strong concurrency story"],
  "notable_sources": ["go.dev"],
  "recommended_next_steps": ["read the module reference"]
}`

func newResearchAgent(t *testing.T, primary, fallback llm.Provider) *Agent {
	t.Helper()
	a, err := NewAgent(primary, fallback, zap.NewNop())
	if err != nil {
		t.Fatalf("NewAgent failed: %v", err)
	}
	return a
}

func TestResearchPrimary(t *testing.T) {
	primary := llm.NewMockProvider()
	primary.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{Content: structuredAnswer, Model: "gemini-2.5-flash"}, nil
	}
	fallback := llm.NewMockProvider()
	a := newResearchAgent(t, primary, fallback)

	result, err := a.Research(context.Background(), "the Go programming language")
	if err != nil {
		t.Fatalf("Research failed: %v", err)
	}

	if result.Query != "the Go programming language" {
		t.Errorf("query = %q", result.Query)
	}
	if result.Model != "gemini-2.5-flash" {
		t.Errorf("model = %q", result.Model)
	}
	if len(result.Summary.ExecutiveSummary) != 1 || result.Summary.ExecutiveSummary[0] != "Go is a compiled language" {
		t.Errorf("summary = %+v", result.Summary)
	}
	if result.Summary.Raw != "" {
		t.Errorf("raw set on structured output: %q", result.Summary.Raw)
	}
	if fallback.CallCount() != 0 {
		t.Errorf("fallback consulted %d times on a healthy primary", fallback.CallCount())
	}

	prompt := primary.LastRequest().Messages[0].Content
	if !strings.Contains(prompt, `"the Go programming language"`) {
		t.Errorf("topic missing from prompt: %q", prompt)
	}
	if temp := primary.LastRequest().Temperature; temp == nil || *temp != researchTemperature {
		t.Errorf("temperature = %v", temp)
	}
}

func TestResearchFallsBack(t *testing.T) {
	primary := llm.NewMockProvider()
	primary.SetError(errors.New("gemini blocked output"))
	fallback := llm.NewMockProvider()
	fallback.ChatFunc = func(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{Content: structuredAnswer, Model: "llama-3.3-70b-versatile"}, nil
	}
	a := newResearchAgent(t, primary, fallback)

	result, err := a.Research(context.Background(), "solar panel efficiency")
	if err != nil {
		t.Fatalf("Research failed: %v", err)
	}
	if result.Model != "llama-3.3-70b-versatile" {
		t.Errorf("model = %q, want the fallback's", result.Model)
	}
	if primary.CallCount() != 1 || fallback.CallCount() != 1 {
		t.Errorf("calls = %d primary, %d fallback", primary.CallCount(), fallback.CallCount())
	}
}

func TestResearchBothFail(t *testing.T) {
	primary := llm.NewMockProvider()
	primary.SetError(errors.New("gemini down"))
	fallback := llm.NewMockProvider()
	fallback.SetError(errors.New("groq down"))
	a := newResearchAgent(t, primary, fallback)

	_, err := a.Research(context.Background(), "anything")
	if err == nil {
		t.Fatal("Research succeeded with both providers failing")
	}
	if faults.CodeOf(err) != faults.CodeUnavailable {
		t.Errorf("code = %s, want %s", faults.CodeOf(err), faults.CodeUnavailable)
	}
}

func TestResearchNoFallbackConfigured(t *testing.T) {
	primary := llm.NewMockProvider()
	primary.SetError(errors.New("gemini down"))
	a := newResearchAgent(t, primary, nil)

	_, err := a.Research(context.Background(), "anything")
	if err == nil {
		t.Fatal("Research succeeded with a failing primary and no fallback")
	}
	if faults.CodeOf(err) != faults.CodeUnavailable {
		t.Errorf("code = %s, want %s", faults.CodeOf(err), faults.CodeUnavailable)
	}
}

func TestResearchEmptyQuery(t *testing.T) {
	a := newResearchAgent(t, llm.NewMockProvider(), nil)

	for _, q := range []string{"", "   "} {
		_, err := a.Research(context.Background(), q)
		if err == nil {
			t.Fatalf("Research(%q) succeeded", q)
		}
		if faults.CodeOf(err) != faults.CodeInvalidInput {
			t.Errorf("Research(%q) code = %s, want %s", q, faults.CodeOf(err), faults.CodeInvalidInput)
		}
	}
}

func TestResearchProseAnswerKeptRaw(t *testing.T) {
	primary := llm.NewMockProvider()
	primary.SetResponse("Solar panels convert sunlight to power, typically at 20% efficiency.")
	a := newResearchAgent(t, primary, nil)

	result, err := a.Research(context.Background(), "solar panel efficiency")
	if err != nil {
		t.Fatalf("Research failed: %v", err)
	}
	if result.Summary.Raw == "" || len(result.Summary.ExecutiveSummary) != 0 {
		t.Errorf("summary = %+v, want raw text only", result.Summary)
	}
}
