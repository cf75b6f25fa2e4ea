package xp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sidequest/faults"
	"sidequest/ledger"
	"sidequest/metrics"
	"sidequest/taskstore"
)

// DefaultSource labels awards whose request carried no source.
const DefaultSource = "avatar"

// Outcome is the terminal state of one award request.
type Outcome string

const (
	// OutcomeAwarded means a task was matched, scored, and marked done.
	OutcomeAwarded Outcome = "awarded"

	// OutcomeNoOpenTasks means the store had no extractable open tasks.
	// A success: there was nothing to award against.
	OutcomeNoOpenTasks Outcome = "no_open_tasks"

	// OutcomeNoMatch means no open task corresponded to the message.
	// Also a success, not an error.
	OutcomeNoMatch Outcome = "no_match"
)

// AwardRequest is one inbound "award XP for this message" operation.
type AwardRequest struct {
	Message string `json:"message"`
	Source  string `json:"source,omitempty"`
}

// XPAward is the immutable record of one granted award.
type XPAward struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Title     string    `json:"title"`
	Points    int       `json:"points"`
	Source    string    `json:"source"`
	Reason    string    `json:"reason"`
	AwardedAt time.Time `json:"awarded_at"`
}

// AwardResult is the orchestrator's response. Award is set only for
// OutcomeAwarded; Skipped counts malformed store records dropped while
// building the candidate set.
type AwardResult struct {
	Outcome    Outcome  `json:"outcome"`
	Award      *XPAward `json:"award,omitempty"`
	Confidence string   `json:"confidence,omitempty"`
	Skipped    int      `json:"skipped,omitempty"`
}

// Orchestrator runs the award pipeline for one request: fetch open tasks,
// match, score, persist the completion, then append to the ledger. It
// holds no per-request state and serves concurrent requests.
type Orchestrator struct {
	store   taskstore.Store
	matcher *Matcher
	ledger  ledger.Ledger
	metrics *metrics.Registry
	logger  *zap.Logger
	zone    *time.Location
	source  string
	now     func() time.Time
}

// OrchestratorConfig wires an Orchestrator.
type OrchestratorConfig struct {
	Store   taskstore.Store
	Matcher *Matcher
	Ledger  ledger.Ledger     // nil disables ledger logging
	Metrics *metrics.Registry // nil disables counters
	Logger  *zap.Logger
	Zone    *time.Location   // anchors date-only due values, defaults to UTC
	Source  string           // default source label, defaults to DefaultSource
	Now     func() time.Time // clock hook for tests
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Matcher == nil {
		return nil, fmt.Errorf("matcher is required")
	}

	o := &Orchestrator{
		store:   cfg.Store,
		matcher: cfg.Matcher,
		ledger:  cfg.Ledger,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		zone:    cfg.Zone,
		source:  cfg.Source,
		now:     cfg.Now,
	}
	if o.ledger == nil {
		o.ledger = ledger.Nop{}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	o.logger = o.logger.Named("award")
	if o.zone == nil {
		o.zone = time.UTC
	}
	if o.source == "" {
		o.source = DefaultSource
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// Award processes one completion message end to end. It returns an error
// only when the task store fails: a fetch failure, or a completion patch
// failure after a successful match, without which the award would not be
// durable. Everything else resolves to a terminal outcome. Ledger append
// failures are logged and swallowed because the patched task already
// holds the authoritative record.
func (o *Orchestrator) Award(ctx context.Context, req AwardRequest) (*AwardResult, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, faults.New(faults.CodeInvalidInput, "completion message is empty")
	}
	source := req.Source
	if source == "" {
		source = o.source
	}

	records, err := o.store.ListOpen(ctx)
	if err != nil {
		o.metrics.IncStoreFailures()
		return nil, faults.Wrap(err, "list open tasks")
	}

	candidates := make([]taskstore.TaskSummary, 0, len(records))
	skipped := 0
	for _, rec := range records {
		summary, err := taskstore.Extract(rec, o.zone)
		if err != nil {
			skipped++
			o.logger.Warn("skipping malformed record",
				zap.String("record_id", rec.ID),
				zap.Error(err))
			continue
		}
		candidates = append(candidates, summary)
	}
	o.metrics.AddMalformedRecords(skipped)

	if len(candidates) == 0 {
		o.metrics.IncNoOpenTasks()
		o.logger.Info("no open tasks to award against", zap.Int("skipped", skipped))
		return &AwardResult{Outcome: OutcomeNoOpenTasks, Skipped: skipped}, nil
	}

	match := o.matcher.Match(ctx, message, candidates)
	if match == nil {
		o.metrics.IncNoMatch()
		o.logger.Info("message matched no open task",
			zap.Int("candidates", len(candidates)))
		return &AwardResult{Outcome: OutcomeNoMatch, Skipped: skipped}, nil
	}

	now := o.now()
	points := Score(match.Task.Due, now)

	award := &XPAward{
		ID:        uuid.NewString(),
		TaskID:    match.Task.ID,
		Title:     match.Task.Title,
		Points:    points,
		Source:    source,
		Reason:    match.Justification,
		AwardedAt: now,
	}

	if err := o.store.Patch(ctx, award.TaskID, taskstore.Patch{Done: true, Reward: &points}); err != nil {
		o.metrics.IncStoreFailures()
		return nil, faults.Wrap(err, "persist completion", faults.WithTaskID(award.TaskID))
	}

	// The patched task is authoritative; the award stands from here on
	// regardless of ledger health.
	if err := o.ledger.Append(ctx, ledgerEntry(award)); err != nil {
		o.metrics.IncLedgerFailures()
		o.logger.Warn("ledger append failed",
			zap.String("award_id", award.ID),
			zap.String("task_id", award.TaskID),
			zap.Error(err))
	}

	o.metrics.IncAwards()
	o.logger.Info("xp awarded",
		zap.String("award_id", award.ID),
		zap.String("task_id", award.TaskID),
		zap.String("title", award.Title),
		zap.Int("points", award.Points),
		zap.String("confidence", match.Confidence))

	return &AwardResult{
		Outcome:    OutcomeAwarded,
		Award:      award,
		Confidence: match.Confidence,
		Skipped:    skipped,
	}, nil
}

func ledgerEntry(a *XPAward) ledger.Entry {
	return ledger.Entry{
		ID:        a.ID,
		TaskID:    a.TaskID,
		Title:     a.Title,
		Points:    a.Points,
		Source:    a.Source,
		Reason:    a.Reason,
		AwardedAt: a.AwardedAt,
	}
}
