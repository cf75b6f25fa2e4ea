package xp

import (
	"context"
	"testing"
	"time"

	"sidequest/classify"
	"sidequest/faults"
	"sidequest/ledger"
	"sidequest/metrics"
	"sidequest/taskstore"
)

var awardNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// listFailStore fails every fetch.
type listFailStore struct{ err error }

func (s listFailStore) ListOpen(ctx context.Context) ([]taskstore.Record, error) {
	return nil, s.err
}
func (s listFailStore) Patch(ctx context.Context, id string, p taskstore.Patch) error {
	return nil
}

// patchFailStore serves fetches from the wrapped store but fails patches.
type patchFailStore struct {
	*taskstore.MemoryStore
	err error
}

func (s patchFailStore) Patch(ctx context.Context, id string, p taskstore.Patch) error {
	return s.err
}

// failingLedger fails every append.
type failingLedger struct{ err error }

func (f failingLedger) Append(ctx context.Context, e ledger.Entry) error { return f.err }

func newOrchestrator(t *testing.T, store taskstore.Store, cls classify.Classifier, lg ledger.Ledger, reg *metrics.Registry) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(OrchestratorConfig{
		Store:   store,
		Matcher: NewMatcher(cls, reg, nil),
		Ledger:  lg,
		Metrics: reg,
		Now:     func() time.Time { return awardNow },
	})
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}
	return o
}

func TestAwardClassifierPath(t *testing.T) {
	store := taskstore.NewMemoryStore()
	store.Add(taskstore.Record{
		ID:    "t1",
		Title: "Budget Report",
		Due:   awardNow.Add(-25 * time.Hour).Format(time.RFC3339),
	})
	store.Add(taskstore.Record{ID: "t2", Title: "Plan offsite"})

	cls := classifierFunc(func(ctx context.Context, message string, candidates []string) (*classify.Decision, error) {
		return &classify.Decision{Index: 1, Justification: "names the budget report"}, nil
	})
	rec := ledger.NewMemory()
	reg := metrics.New()
	o := newOrchestrator(t, store, cls, rec, reg)

	result, err := o.Award(context.Background(), AwardRequest{Message: "finished the budget report"})
	if err != nil {
		t.Fatalf("Award failed: %v", err)
	}
	if result.Outcome != OutcomeAwarded {
		t.Fatalf("Outcome = %q, want awarded", result.Outcome)
	}
	if result.Confidence != ConfidenceClassifier {
		t.Errorf("Confidence = %q, want classifier", result.Confidence)
	}

	award := result.Award
	if award == nil {
		t.Fatal("missing award")
	}
	// One day late: 15 - 3.
	if award.Points != 12 {
		t.Errorf("Points = %d, want 12", award.Points)
	}
	if award.TaskID != "t1" || award.Title != "Budget Report" {
		t.Errorf("award names %q/%q", award.TaskID, award.Title)
	}
	if award.Source != DefaultSource {
		t.Errorf("Source = %q, want %q", award.Source, DefaultSource)
	}
	if award.ID == "" {
		t.Error("award has no id")
	}
	if !award.AwardedAt.Equal(awardNow) {
		t.Errorf("AwardedAt = %v, want %v", award.AwardedAt, awardNow)
	}

	if !store.Done("t1") {
		t.Error("task not marked done")
	}
	patched, _ := store.Get("t1")
	if patched.Reward == nil || *patched.Reward != 12 {
		t.Errorf("persisted reward = %v, want 12", patched.Reward)
	}

	entries := rec.Entries()
	if len(entries) != 1 {
		t.Fatalf("ledger has %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.ID != award.ID || e.TaskID != "t1" || e.Points != 12 || e.Source != DefaultSource {
		t.Errorf("ledger entry mismatch: %+v", e)
	}

	snap := reg.Snapshot()
	if snap.Awards != 1 || snap.StoreFailures != 0 || snap.LedgerFailures != 0 {
		t.Errorf("counters = %+v", snap)
	}
}

// The offline path end to end: no classifier, heuristic title hit,
// lateness-decayed score.
func TestAwardHeuristicBudgetReport(t *testing.T) {
	store := taskstore.NewMemoryStore()
	store.Add(taskstore.Record{
		ID:    "t1",
		Title: "Budget Report",
		Due:   awardNow.Add(-25 * time.Hour).Format(time.RFC3339),
	})
	store.Add(taskstore.Record{ID: "t2", Title: "Plan offsite"})

	o := newOrchestrator(t, store, classify.Null{}, ledger.NewMemory(), nil)

	result, err := o.Award(context.Background(), AwardRequest{Message: "finished the budget report"})
	if err != nil {
		t.Fatalf("Award failed: %v", err)
	}
	if result.Outcome != OutcomeAwarded {
		t.Fatalf("Outcome = %q, want awarded", result.Outcome)
	}
	if result.Confidence != ConfidenceHeuristic {
		t.Errorf("Confidence = %q, want heuristic", result.Confidence)
	}
	if result.Award.Points != 12 {
		t.Errorf("Points = %d, want 12", result.Award.Points)
	}
}

// Near-due tasks earn the plain base score.
func TestAwardDueSoonScoresBase(t *testing.T) {
	store := taskstore.NewMemoryStore()
	store.Add(taskstore.Record{
		ID:    "w",
		Title: "Write report",
		Due:   awardNow.Add(2 * time.Hour).Format(time.RFC3339),
	})
	store.Add(taskstore.Record{
		ID:    "c",
		Title: "Call client",
		Due:   awardNow.Add(48 * time.Hour).Format(time.RFC3339),
	})

	o := newOrchestrator(t, store, classify.Null{}, nil, nil)

	result, err := o.Award(context.Background(), AwardRequest{Message: "finished the report"})
	if err != nil {
		t.Fatalf("Award failed: %v", err)
	}
	if result.Outcome != OutcomeAwarded {
		t.Fatalf("Outcome = %q, want awarded", result.Outcome)
	}
	if result.Award.TaskID != "w" {
		t.Errorf("matched %q, want the report task", result.Award.TaskID)
	}
	if result.Award.Points != 15 {
		t.Errorf("Points = %d, want 15", result.Award.Points)
	}
}

func TestAwardNoOpenTasks(t *testing.T) {
	counter := &countingClassifier{inner: classify.Null{}}
	reg := metrics.New()
	o := newOrchestrator(t, taskstore.NewMemoryStore(), counter, nil, reg)

	result, err := o.Award(context.Background(), AwardRequest{Message: "finished something"})
	if err != nil {
		t.Fatalf("Award failed: %v", err)
	}
	if result.Outcome != OutcomeNoOpenTasks {
		t.Errorf("Outcome = %q, want no_open_tasks", result.Outcome)
	}
	if result.Award != nil {
		t.Errorf("unexpected award: %+v", result.Award)
	}
	if counter.calls != 0 {
		t.Errorf("classifier consulted %d times with no tasks", counter.calls)
	}
	if reg.Snapshot().NoOpenTasks != 1 {
		t.Errorf("NoOpenTasks counter = %d", reg.Snapshot().NoOpenTasks)
	}
}

func TestAwardNoMatch(t *testing.T) {
	store := taskstore.NewMemoryStore()
	store.Add(taskstore.Record{ID: "t1", Title: "Write report"})
	store.Add(taskstore.Record{ID: "t2", Title: "Call client"})

	rec := ledger.NewMemory()
	reg := metrics.New()
	o := newOrchestrator(t, store, classify.Null{}, rec, reg)

	result, err := o.Award(context.Background(), AwardRequest{Message: "done with nothing relevant"})
	if err != nil {
		t.Fatalf("Award failed: %v", err)
	}
	if result.Outcome != OutcomeNoMatch {
		t.Errorf("Outcome = %q, want no_match", result.Outcome)
	}
	if store.Done("t1") || store.Done("t2") {
		t.Error("no task should be patched on no match")
	}
	if len(rec.Entries()) != 0 {
		t.Error("ledger should stay empty on no match")
	}
	if reg.Snapshot().NoMatch != 1 {
		t.Errorf("NoMatch counter = %d", reg.Snapshot().NoMatch)
	}
}

func TestAwardSkipsMalformedRecords(t *testing.T) {
	store := taskstore.NewMemoryStore()
	store.Add(taskstore.Record{ID: "bad", Due: "not a date"})
	store.Add(taskstore.Record{ID: "good", Title: "Budget Report"})

	reg := metrics.New()
	o := newOrchestrator(t, store, classify.Null{}, nil, reg)

	result, err := o.Award(context.Background(), AwardRequest{Message: "finished the budget report"})
	if err != nil {
		t.Fatalf("Award failed: %v", err)
	}
	if result.Outcome != OutcomeAwarded {
		t.Fatalf("Outcome = %q, want awarded despite the bad record", result.Outcome)
	}
	if result.Award.TaskID != "good" {
		t.Errorf("matched %q", result.Award.TaskID)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if reg.Snapshot().MalformedRecords != 1 {
		t.Errorf("MalformedRecords = %d, want 1", reg.Snapshot().MalformedRecords)
	}
}

func TestAwardAllRecordsMalformed(t *testing.T) {
	store := taskstore.NewMemoryStore()
	store.Add(taskstore.Record{ID: "bad1"})
	store.Add(taskstore.Record{ID: "bad2", Title: "T", Due: "garbage"})

	o := newOrchestrator(t, store, classify.Null{}, nil, nil)

	result, err := o.Award(context.Background(), AwardRequest{Message: "finished T"})
	if err != nil {
		t.Fatalf("Award failed: %v", err)
	}
	if result.Outcome != OutcomeNoOpenTasks {
		t.Errorf("Outcome = %q, want no_open_tasks", result.Outcome)
	}
	if result.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", result.Skipped)
	}
}

func TestAwardFetchFailure(t *testing.T) {
	reg := metrics.New()
	store := listFailStore{err: faults.New(faults.CodeStoreRead, "query task database: connection refused")}
	o := newOrchestrator(t, store, classify.Null{}, nil, reg)

	_, err := o.Award(context.Background(), AwardRequest{Message: "finished something"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !faults.HasCode(err, faults.CodeStoreRead) {
		t.Errorf("expected %s, got %v", faults.CodeStoreRead, err)
	}
	if reg.Snapshot().StoreFailures != 1 {
		t.Errorf("StoreFailures = %d, want 1", reg.Snapshot().StoreFailures)
	}
}

func TestAwardPatchFailureIsFatal(t *testing.T) {
	mem := taskstore.NewMemoryStore()
	mem.Add(taskstore.Record{ID: "t1", Title: "Budget Report"})
	store := patchFailStore{
		MemoryStore: mem,
		err:         faults.New(faults.CodeStoreWrite, "patch task t1: network error"),
	}

	rec := ledger.NewMemory()
	reg := metrics.New()
	o := newOrchestrator(t, store, classify.Null{}, rec, reg)

	_, err := o.Award(context.Background(), AwardRequest{Message: "finished the budget report"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !faults.HasCode(err, faults.CodeStoreWrite) {
		t.Errorf("expected %s, got %v", faults.CodeStoreWrite, err)
	}
	// The award is not durable, so nothing may reach the ledger.
	if len(rec.Entries()) != 0 {
		t.Errorf("ledger has %d entries after a failed patch, want 0", len(rec.Entries()))
	}
	if reg.Snapshot().Awards != 0 {
		t.Error("award counted despite failed patch")
	}
	if reg.Snapshot().StoreFailures != 1 {
		t.Errorf("StoreFailures = %d, want 1", reg.Snapshot().StoreFailures)
	}
}

func TestAwardLedgerFailureSwallowed(t *testing.T) {
	store := taskstore.NewMemoryStore()
	store.Add(taskstore.Record{ID: "t1", Title: "Budget Report"})

	reg := metrics.New()
	lg := failingLedger{err: faults.New(faults.CodeLedgerWrite, "ledger down")}
	o := newOrchestrator(t, store, classify.Null{}, lg, reg)

	result, err := o.Award(context.Background(), AwardRequest{Message: "finished the budget report"})
	if err != nil {
		t.Fatalf("Award failed: %v", err)
	}
	if result.Outcome != OutcomeAwarded {
		t.Errorf("Outcome = %q, want awarded despite ledger failure", result.Outcome)
	}
	if !store.Done("t1") {
		t.Error("task should be done; the patch is authoritative")
	}
	snap := reg.Snapshot()
	if snap.LedgerFailures != 1 {
		t.Errorf("LedgerFailures = %d, want 1", snap.LedgerFailures)
	}
	if snap.Awards != 1 {
		t.Errorf("Awards = %d, want 1", snap.Awards)
	}
}

func TestAwardEmptyMessage(t *testing.T) {
	o := newOrchestrator(t, taskstore.NewMemoryStore(), classify.Null{}, nil, nil)

	for _, message := range []string{"", "   \n\t"} {
		_, err := o.Award(context.Background(), AwardRequest{Message: message})
		if err == nil {
			t.Fatalf("message %q: expected an error", message)
		}
		if !faults.HasCode(err, faults.CodeInvalidInput) {
			t.Errorf("message %q: expected %s, got %v", message, faults.CodeInvalidInput, err)
		}
	}
}

func TestAwardSourcePropagates(t *testing.T) {
	store := taskstore.NewMemoryStore()
	store.Add(taskstore.Record{ID: "t1", Title: "Budget Report"})

	rec := ledger.NewMemory()
	o := newOrchestrator(t, store, classify.Null{}, rec, nil)

	result, err := o.Award(context.Background(), AwardRequest{
		Message: "finished the budget report",
		Source:  "Producer",
	})
	if err != nil {
		t.Fatalf("Award failed: %v", err)
	}
	if result.Award.Source != "Producer" {
		t.Errorf("Source = %q, want Producer", result.Award.Source)
	}
	if entries := rec.Entries(); len(entries) != 1 || entries[0].Source != "Producer" {
		t.Errorf("ledger source mismatch: %+v", entries)
	}
}
