// Package research answers ad-hoc research queries. A primary provider
// handles every query; any provider failure reroutes to the fallback.
package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"sidequest/faults"
	"sidequest/llm"
)

const (
	researchTemperature = 0.4
	researchMaxTokens   = 800
)

// Summary is the structured research answer. Raw carries the model
// output verbatim when it was not the requested JSON shape.
type Summary struct {
	ExecutiveSummary     []string `json:"executive_summary,omitempty"`
	KeyFindings          []string `json:"key_findings,omitempty"`
	NotableSources       []string `json:"notable_sources,omitempty"`
	RecommendedNextSteps []string `json:"recommended_next_steps,omitempty"`
	Raw                  string   `json:"raw_text,omitempty"`
}

// Result is the research response.
type Result struct {
	Query   string  `json:"query"`
	Summary Summary `json:"summary"`
	Model   string  `json:"model"`
}

// Agent runs research queries against a primary provider with an
// optional fallback.
type Agent struct {
	primary  llm.Provider
	fallback llm.Provider
	logger   *zap.Logger
}

// NewAgent creates a research Agent. The fallback may be nil.
func NewAgent(primary, fallback llm.Provider, logger *zap.Logger) (*Agent, error) {
	if primary == nil {
		return nil, fmt.Errorf("primary provider is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{primary: primary, fallback: fallback, logger: logger.Named("research")}, nil
}

// Research answers the query, rerouting to the fallback provider when
// the primary fails.
func (a *Agent) Research(ctx context.Context, query string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, faults.New(faults.CodeInvalidInput, "query is empty")
	}

	result, primaryErr := a.ask(ctx, a.primary, query)
	if primaryErr == nil {
		return result, nil
	}

	if a.fallback == nil {
		return nil, faults.WrapWithCode(primaryErr, faults.CodeUnavailable, "research provider failed")
	}

	a.logger.Warn("primary research provider failed, using fallback", zap.Error(primaryErr))

	result, fallbackErr := a.ask(ctx, a.fallback, query)
	if fallbackErr != nil {
		return nil, faults.WrapWithCode(errors.Join(primaryErr, fallbackErr),
			faults.CodeUnavailable, "all research providers failed")
	}
	return result, nil
}

// ask runs one provider. Output that is not the requested JSON shape is
// kept verbatim in Summary.Raw rather than treated as a failure.
func (a *Agent) ask(ctx context.Context, provider llm.Provider, query string) (*Result, error) {
	temp := researchTemperature
	resp, err := provider.Chat(ctx, llm.ChatRequest{
		Messages:    []llm.Message{{Role: "user", Content: buildPrompt(query)}},
		MaxTokens:   researchMaxTokens,
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(resp.Content)
	summary := Summary{Raw: content}
	if raw, err := llm.ExtractJSON(content); err == nil {
		var s Summary
		if err := json.Unmarshal([]byte(raw), &s); err == nil {
			summary = s
		}
	}

	return &Result{Query: query, Summary: summary, Model: resp.Model}, nil
}

func buildPrompt(query string) string {
	return fmt.Sprintf(`You are a professional research assistant.
Summarize the following topic concisely using general publicly available knowledge.
Avoid giving medical, legal, or financial advice.

Topic: %q

Respond ONLY in the following JSON format:
{
  "executive_summary": ["point1", "point2", "point3"],
  "key_findings": ["finding1", "finding2", "finding3"],
  "notable_sources": ["source 1 (if known)", "source 2 (if known)"],
  "recommended_next_steps": ["next step 1", "next step 2"]
}`, query)
}
