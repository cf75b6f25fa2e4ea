package xp

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"sidequest/classify"
	"sidequest/metrics"
	"sidequest/taskstore"
)

// Confidence labels for how a match was decided.
const (
	ConfidenceClassifier = "classifier"
	ConfidenceHeuristic  = "heuristic"
)

// Heuristic weights. A title hit dominates; context overlap only breaks
// near-ties between candidates.
const (
	titleWeight   = 10
	contextWeight = 3
)

// MatchResult names the one task a completion message resolved to.
// Absence of a match is expressed as a nil result, not an error.
type MatchResult struct {
	Task          taskstore.TaskSummary `json:"task"`
	Justification string                `json:"justification"`
	Confidence    string                `json:"confidence"`
}

// Matcher resolves a free-text completion message to at most one open
// task. The classifier is the primary strategy; a lexical heuristic takes
// over whenever the classifier fails or returns an index outside the
// candidate range, so matching still works offline and with no credentials.
type Matcher struct {
	classifier classify.Classifier
	metrics    *metrics.Registry
	logger     *zap.Logger
}

// NewMatcher creates a Matcher. A nil classifier gets the Null classifier,
// which routes every request to the heuristic.
func NewMatcher(classifier classify.Classifier, reg *metrics.Registry, logger *zap.Logger) *Matcher {
	if classifier == nil {
		classifier = classify.Null{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{
		classifier: classifier,
		metrics:    reg,
		logger:     logger.Named("matcher"),
	}
}

// Match picks the task the message reports complete, or nil when nothing
// matches. The classifier is consulted at most once per call and its
// failures never escape here.
func (m *Matcher) Match(ctx context.Context, message string, candidates []taskstore.TaskSummary) *MatchResult {
	if len(candidates) == 0 {
		return nil
	}

	decision, err := m.classifier.Classify(ctx, message, renderCandidates(candidates))
	switch {
	case err != nil:
		m.logger.Info("classifier unavailable, falling back to heuristic", zap.Error(err))
	case decision == nil || decision.Index < 1 || decision.Index > len(candidates):
		m.logger.Warn("classifier decision rejected",
			zap.Int("index", decisionIndex(decision)),
			zap.Int("candidates", len(candidates)))
	default:
		return &MatchResult{
			Task:          candidates[decision.Index-1],
			Justification: decision.Justification,
			Confidence:    ConfidenceClassifier,
		}
	}

	m.metrics.IncClassifierFallbacks()
	return m.heuristic(message, candidates)
}

func decisionIndex(d *classify.Decision) int {
	if d == nil {
		return 0
	}
	return d.Index
}

// renderCandidates enumerates candidates for the classifier prompt:
// title, plus context in parentheses when present.
func renderCandidates(candidates []taskstore.TaskSummary) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		if c.Context != "" {
			out[i] = fmt.Sprintf("%s (%s)", c.Title, c.Context)
		} else {
			out[i] = c.Title
		}
	}
	return out
}

// heuristic scores candidates lexically against the message. A title hit
// is worth titleWeight: either the whole title appears in the message, or
// one of the title's words appears as a word of the message. Any context
// word appearing in the message adds contextWeight. The strictly highest
// positive score wins; earlier candidates win ties; all-zero means no
// match. Deterministic for a fixed message and candidate order.
func (m *Matcher) heuristic(message string, candidates []taskstore.TaskSummary) *MatchResult {
	lower := strings.ToLower(message)
	words := strings.Fields(lower)

	best := -1
	bestScore := 0
	bestWhy := ""
	for i, c := range candidates {
		score := 0
		var why []string

		if hit, reason := titleHit(lower, words, c.Title); hit {
			score += titleWeight
			why = append(why, reason)
		}
		if tok, ok := wordOverlap(words, c.Context); ok {
			score += contextWeight
			why = append(why, fmt.Sprintf("context word %q appears in the message", tok))
		}

		if score > bestScore {
			best = i
			bestScore = score
			bestWhy = strings.Join(why, "; ")
		}
	}

	if best < 0 {
		return nil
	}

	m.logger.Debug("heuristic match",
		zap.String("task_id", candidates[best].ID),
		zap.Int("score", bestScore))

	return &MatchResult{
		Task:          candidates[best],
		Justification: bestWhy,
		Confidence:    ConfidenceHeuristic,
	}
}

func titleHit(lowerMessage string, messageWords []string, title string) (bool, string) {
	t := strings.ToLower(title)
	if t == "" {
		return false, ""
	}
	if strings.Contains(lowerMessage, t) {
		return true, fmt.Sprintf("title %q appears in the message", title)
	}
	if tok, ok := wordOverlap(messageWords, title); ok {
		return true, fmt.Sprintf("title word %q appears in the message", tok)
	}
	return false, ""
}

// wordOverlap returns the first whitespace-delimited word of text that
// appears as a whole word of the message.
func wordOverlap(messageWords []string, text string) (string, bool) {
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		for _, w := range messageWords {
			if w == tok {
				return tok, true
			}
		}
	}
	return "", false
}
