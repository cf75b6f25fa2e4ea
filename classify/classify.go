// Package classify provides the task classifier capability: given a
// completion message and an enumerated list of open tasks, decide which
// task the message reports as done. The XP matcher consumes it through
// the Classifier interface and degrades to a lexical heuristic whenever
// classification fails, so implementations here report failures freely.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"sidequest/faults"
	"sidequest/llm"
)

// Decision is a classifier verdict. Index is 1-based into the candidate
// list as presented; 0 means the model saw no match. Range validation is
// the caller's job.
type Decision struct {
	Index         int    `json:"index"`
	Justification string `json:"justification"`
}

// Classifier decides which candidate task a completion message refers to.
type Classifier interface {
	Classify(ctx context.Context, message string, candidates []string) (*Decision, error)
}

const systemPrompt = `You are a task-completion matcher for a personal quest log.
You will receive a completion message written by the user and a numbered list of their open tasks.
Decide which task, if any, the message reports as completed.

You must output ONLY a JSON object with these exact fields:
- index: the 1-based number of the matching task, or 0 if none match
- justification: one sentence explaining the choice

CRITICAL RULES:
1. index must be a number shown in the list, or 0 for no match
2. Never invent tasks that are not in the list
3. Prefer the task whose title the message refers to most directly
4. Output ONLY the JSON object, no markdown, no explanation`

// LLM is the production classifier backed by an llm.Provider.
type LLM struct {
	provider llm.Provider
	timeout  time.Duration
	logger   *zap.Logger
}

// NewLLM creates an LLM classifier. The timeout bounds each Classify call;
// zero means no bound beyond the caller's context.
func NewLLM(provider llm.Provider, timeout time.Duration, logger *zap.Logger) *LLM {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLM{
		provider: provider,
		timeout:  timeout,
		logger:   logger.Named("classifier"),
	}
}

// Classify implements the Classifier interface. Transport, parse, and
// shape failures all come back as CodeClassifier faults; the caller
// decides what to do with them.
func (c *LLM) Classify(ctx context.Context, message string, candidates []string) (*Decision, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.provider.Chat(ctx, llm.ChatRequest{
		System: systemPrompt,
		Messages: []llm.Message{
			{Role: "user", Content: buildPrompt(message, candidates)},
		},
		Temperature: llm.Zero(),
	})
	if err != nil {
		return nil, faults.WrapWithCode(err, faults.CodeClassifier, "classify completion message")
	}

	raw, err := llm.ExtractJSON(resp.Content)
	if err != nil {
		c.logger.Warn("classifier returned non-JSON output",
			zap.String("model", resp.Model),
			zap.Int("output_tokens", resp.OutputTokens))
		return nil, faults.WrapWithCode(err, faults.CodeClassifier, "parse classifier output")
	}

	var decision Decision
	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		return nil, faults.WrapWithCode(err, faults.CodeClassifier, "decode classifier decision")
	}

	c.logger.Debug("classifier decision",
		zap.Int("index", decision.Index),
		zap.Int("candidates", len(candidates)))

	return &decision, nil
}

// buildPrompt renders the user message and the numbered candidate list.
func buildPrompt(message string, candidates []string) string {
	var b strings.Builder
	b.WriteString("Completion message:\n")
	b.WriteString(message)
	b.WriteString("\n\nOpen tasks:\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c)
	}
	b.WriteString("\nWhich task does the message complete?")
	return b.String()
}

// Null is the classifier wired in when no LLM credential is configured.
// It always reports unavailability, which sends the matcher straight to
// its heuristic; callers never branch on whether a classifier exists.
type Null struct{}

// Classify implements the Classifier interface.
func (Null) Classify(ctx context.Context, message string, candidates []string) (*Decision, error) {
	return nil, faults.New(faults.CodeClassifier, "no classifier configured")
}
