package taskstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"sidequest/faults"
)

const notionTaskPage = `{
	"id": "page-1",
	"properties": {
		"Task": {"title": [{"plain_text": "Budget "}, {"plain_text": "Report"}]},
		"Notes": {"rich_text": [{"plain_text": "Q3 figures"}]},
		"Due": {"date": {"start": "2026-03-14"}},
		"Reward": {"number": 12},
		"Status": {"status": {"name": "Todo"}}
	}
}`

func TestNotionListOpen(t *testing.T) {
	var gotQuery notionQuery
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/databases/db-1/query" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Notion-Version"); got != "2022-06-28" {
			t.Errorf("Notion-Version = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotQuery); err != nil {
			t.Errorf("decode query: %v", err)
		}
		w.Write([]byte(`{"results": [` + notionTaskPage + `], "has_more": false}`))
	}))
	defer server.Close()

	store, err := NewNotionStore(NotionConfig{
		APIKey:     "secret",
		DatabaseID: "db-1",
		BaseURL:    server.URL,
	})
	if err != nil {
		t.Fatalf("NewNotionStore failed: %v", err)
	}

	records, err := store.ListOpen(context.Background())
	if err != nil {
		t.Fatalf("ListOpen failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec.ID != "page-1" {
		t.Errorf("ID = %q", rec.ID)
	}
	if rec.Title != "Budget Report" {
		t.Errorf("Title = %q, want joined title", rec.Title)
	}
	if rec.Context != "Q3 figures" {
		t.Errorf("Context = %q", rec.Context)
	}
	if rec.Due != "2026-03-14" {
		t.Errorf("Due = %q", rec.Due)
	}
	if rec.Reward == nil || *rec.Reward != 12 {
		t.Errorf("Reward = %v, want 12", rec.Reward)
	}

	if gotQuery.Filter == nil || gotQuery.Filter.Property != "Status" {
		t.Fatalf("unexpected filter: %+v", gotQuery.Filter)
	}
	if gotQuery.Filter.Status == nil || gotQuery.Filter.Status.DoesNotEqual != "Done" {
		t.Errorf("status filter = %+v, want does_not_equal Done", gotQuery.Filter.Status)
	}
}

func TestNotionListOpenPagination(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var query notionQuery
		if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
			t.Errorf("decode query: %v", err)
		}
		switch calls {
		case 1:
			if query.StartCursor != "" {
				t.Errorf("first call cursor = %q, want empty", query.StartCursor)
			}
			w.Write([]byte(`{
				"results": [{"id": "p1", "properties": {"Task": {"title": [{"plain_text": "A"}]}}}],
				"has_more": true,
				"next_cursor": "cur-2"
			}`))
		case 2:
			if query.StartCursor != "cur-2" {
				t.Errorf("second call cursor = %q, want cur-2", query.StartCursor)
			}
			w.Write([]byte(`{
				"results": [{"id": "p2", "properties": {"Task": {"title": [{"plain_text": "B"}]}}}],
				"has_more": false
			}`))
		default:
			t.Errorf("unexpected call %d", calls)
		}
	}))
	defer server.Close()

	store, err := NewNotionStore(NotionConfig{APIKey: "k", DatabaseID: "db", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewNotionStore failed: %v", err)
	}

	records, err := store.ListOpen(context.Background())
	if err != nil {
		t.Fatalf("ListOpen failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records across pages, got %d", len(records))
	}
	if records[0].ID != "p1" || records[1].ID != "p2" {
		t.Errorf("unexpected ids: %s, %s", records[0].ID, records[1].ID)
	}
}

func TestNotionListOpenError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"message": "down for maintenance"}`))
	}))
	defer server.Close()

	store, err := NewNotionStore(NotionConfig{APIKey: "k", DatabaseID: "db", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewNotionStore failed: %v", err)
	}

	_, err = store.ListOpen(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	if !faults.HasCode(err, faults.CodeStoreRead) {
		t.Errorf("expected %s, got %v", faults.CodeStoreRead, err)
	}
}

func TestNotionPatch(t *testing.T) {
	var gotBody notionPatchBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PATCH" {
			t.Errorf("method = %s, want PATCH", r.Method)
		}
		if r.URL.Path != "/pages/page-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"id": "page-1"}`))
	}))
	defer server.Close()

	store, err := NewNotionStore(NotionConfig{APIKey: "k", DatabaseID: "db", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewNotionStore failed: %v", err)
	}

	reward := 17
	if err := store.Patch(context.Background(), "page-1", Patch{Done: true, Reward: &reward}); err != nil {
		t.Fatalf("Patch failed: %v", err)
	}

	if gotBody.Properties.Status == nil || gotBody.Properties.Status.Status.Name != "Done" {
		t.Errorf("status write = %+v, want Done", gotBody.Properties.Status)
	}
	if gotBody.Properties.Reward == nil || gotBody.Properties.Reward.Number != 17 {
		t.Errorf("reward write = %+v, want 17", gotBody.Properties.Reward)
	}
}

func TestNotionPatchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"message": "upstream"}`))
	}))
	defer server.Close()

	store, err := NewNotionStore(NotionConfig{APIKey: "k", DatabaseID: "db", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewNotionStore failed: %v", err)
	}

	err = store.Patch(context.Background(), "page-1", Patch{Done: true})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !faults.HasCode(err, faults.CodeStoreWrite) {
		t.Errorf("expected %s, got %v", faults.CodeStoreWrite, err)
	}
}
