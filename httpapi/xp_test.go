package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sidequest/classify"
	"sidequest/faults"
	"sidequest/ledger"
	"sidequest/taskstore"
	"sidequest/xp"
)

var awardNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type failingStore struct{}

func (failingStore) ListOpen(ctx context.Context) ([]taskstore.Record, error) {
	return nil, faults.New(faults.CodeStoreRead, "task store unreachable")
}

func (failingStore) Patch(ctx context.Context, id string, p taskstore.Patch) error {
	return faults.New(faults.CodeStoreWrite, "task store unreachable")
}

func newAwardServer(t *testing.T, store taskstore.Store, hist Historian) *httptest.Server {
	t.Helper()

	orch, err := xp.NewOrchestrator(xp.OrchestratorConfig{
		Store:   store,
		Matcher: xp.NewMatcher(classify.Null{}, nil, nil),
		Ledger:  ledger.NewMemory(),
		Now:     func() time.Time { return awardNow },
	})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}

	s := NewServer(Options{Agent: "xp-agent"})
	XPHandlers{Orchestrator: orch, History: hist}.Register(s)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestAwardXPOverHTTP(t *testing.T) {
	store := taskstore.NewMemoryStore()
	store.Add(taskstore.Record{
		ID:    "t1",
		Title: "Write quarterly budget report",
		Due:   "2026-03-12T09:00:00Z",
	})
	ts := newAwardServer(t, store, nil)

	var result xp.AwardResult
	resp := postJSON(t, ts.URL+"/award_xp",
		`{"message":"finished the budget report","source":"slack"}`, &result)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if result.Outcome != xp.OutcomeAwarded {
		t.Fatalf("outcome = %q, want awarded", result.Outcome)
	}
	if result.Award == nil {
		t.Fatal("award is nil")
	}
	if result.Award.TaskID != "t1" {
		t.Errorf("task_id = %q, want t1", result.Award.TaskID)
	}
	// Due two days out: base 15 plus 2 early-bird points.
	if result.Award.Points != 17 {
		t.Errorf("points = %d, want 17", result.Award.Points)
	}
	if result.Award.Source != "slack" {
		t.Errorf("source = %q, want slack", result.Award.Source)
	}
	if result.Confidence != xp.ConfidenceHeuristic {
		t.Errorf("confidence = %q, want heuristic", result.Confidence)
	}

	if !store.Done("t1") {
		t.Error("task not marked done in the store")
	}
	rec, _ := store.Get("t1")
	if rec.Reward == nil || *rec.Reward != 17 {
		t.Errorf("stored reward = %v, want 17", rec.Reward)
	}
}

func TestAwardXPDefaultSource(t *testing.T) {
	store := taskstore.NewMemoryStore()
	store.Add(taskstore.Record{ID: "t1", Title: "Water the plants"})
	ts := newAwardServer(t, store, nil)

	var result xp.AwardResult
	postJSON(t, ts.URL+"/award_xp", `{"message":"watered the plants"}`, &result)

	if result.Outcome != xp.OutcomeAwarded {
		t.Fatalf("outcome = %q, want awarded", result.Outcome)
	}
	if result.Award.Source != xp.DefaultSource {
		t.Errorf("source = %q, want %q", result.Award.Source, xp.DefaultSource)
	}
}

func TestAwardXPNoMatch(t *testing.T) {
	store := taskstore.NewMemoryStore()
	store.Add(taskstore.Record{ID: "t1", Title: "Buy groceries"})
	ts := newAwardServer(t, store, nil)

	var result xp.AwardResult
	resp := postJSON(t, ts.URL+"/award_xp", `{"message":"deployed the web service"}`, &result)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if result.Outcome != xp.OutcomeNoMatch {
		t.Errorf("outcome = %q, want no_match", result.Outcome)
	}
	if result.Award != nil {
		t.Errorf("award = %+v, want nil", result.Award)
	}
	if store.Done("t1") {
		t.Error("unmatched task was marked done")
	}
}

func TestAwardXPNoOpenTasks(t *testing.T) {
	ts := newAwardServer(t, taskstore.NewMemoryStore(), nil)

	var result xp.AwardResult
	resp := postJSON(t, ts.URL+"/award_xp", `{"message":"finished everything"}`, &result)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if result.Outcome != xp.OutcomeNoOpenTasks {
		t.Errorf("outcome = %q, want no_open_tasks", result.Outcome)
	}
}

func TestAwardXPInvalidJSON(t *testing.T) {
	ts := newAwardServer(t, taskstore.NewMemoryStore(), nil)

	var body map[string]string
	resp := postJSON(t, ts.URL+"/award_xp", `{not json`, &body)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body["code"] != string(faults.CodeInvalidInput) {
		t.Errorf("code = %q, want %q", body["code"], faults.CodeInvalidInput)
	}
}

func TestAwardXPEmptyMessage(t *testing.T) {
	ts := newAwardServer(t, taskstore.NewMemoryStore(), nil)

	var body map[string]string
	resp := postJSON(t, ts.URL+"/award_xp", `{"message":"   "}`, &body)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body["code"] != string(faults.CodeInvalidInput) {
		t.Errorf("code = %q, want %q", body["code"], faults.CodeInvalidInput)
	}
}

func TestAwardXPStoreFailure(t *testing.T) {
	ts := newAwardServer(t, failingStore{}, nil)

	var body map[string]string
	resp := postJSON(t, ts.URL+"/award_xp", `{"message":"finished the report"}`, &body)

	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	if body["code"] != string(faults.CodeStoreRead) {
		t.Errorf("code = %q, want %q", body["code"], faults.CodeStoreRead)
	}
}

func TestXPHistory(t *testing.T) {
	archive, err := ledger.NewArchive("")
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}
	defer archive.Close()

	ctx := context.Background()
	entries := []ledger.Entry{
		{ID: "a1", TaskID: "t1", Title: "Write quarterly budget report", Points: 17, Source: "slack", Reason: "title match", AwardedAt: awardNow},
		{ID: "a2", TaskID: "t2", Title: "Water the plants", Points: 15, Source: "avatar", Reason: "title match", AwardedAt: awardNow.Add(time.Hour)},
	}
	for _, e := range entries {
		if err := archive.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	ts := newAwardServer(t, taskstore.NewMemoryStore(), archive)

	var page struct {
		Count   int            `json:"count"`
		Entries []ledger.Entry `json:"entries"`
	}
	resp := getJSON(t, ts.URL+"/xp/history?q=budget&limit=10", &page)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if page.Count != 1 {
		t.Fatalf("count = %d, want 1", page.Count)
	}
	if page.Entries[0].ID != "a1" {
		t.Errorf("entry ID = %q, want a1", page.Entries[0].ID)
	}

	// No query returns recent awards, newest first.
	resp = getJSON(t, ts.URL+"/xp/history", &page)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if page.Count != 2 {
		t.Fatalf("count = %d, want 2", page.Count)
	}
	if page.Entries[0].ID != "a2" {
		t.Errorf("first entry = %q, want the newest (a2)", page.Entries[0].ID)
	}
}

func TestXPHistoryNotRegisteredWithoutArchive(t *testing.T) {
	ts := newAwardServer(t, taskstore.NewMemoryStore(), nil)

	resp := getJSON(t, ts.URL+"/xp/history", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
