// Package taskstore provides access to the external task board: listing
// open tasks, normalizing their records, and patching completions. The
// production store is Notion; a memory store backs tests and dev mode.
package taskstore

import (
	"context"
	"time"

	"sidequest/faults"
)

// Record is a raw task record as the store returned it: strings still
// unparsed, absence as zero values. Extract turns it into a TaskSummary
// or rejects it.
type Record struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Context string `json:"context,omitempty"`
	Due     string `json:"due,omitempty"` // RFC 3339 or YYYY-MM-DD
	Reward  *int   `json:"reward,omitempty"`
}

// TaskSummary is the canonical in-memory task shape used by matching and
// scoring. Optional fields are nil when absent, never sentinel values.
type TaskSummary struct {
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Context string     `json:"context,omitempty"`
	Due     *time.Time `json:"due,omitempty"`
	Reward  *int       `json:"reward,omitempty"`
}

// Patch carries the fields a completion writes back to the store.
type Patch struct {
	Done   bool `json:"done"`
	Reward *int `json:"reward,omitempty"`
}

// Store is the task board capability consumed by the award flow.
type Store interface {
	// ListOpen returns every task not yet completed. Tasks are fetched
	// fresh per request; the store is the single source of truth.
	ListOpen(ctx context.Context) ([]Record, error)

	// Patch updates one task. Used to mark completion and record the
	// awarded score.
	Patch(ctx context.Context, id string, patch Patch) error
}

// dueFormats are accepted due-date layouts, tried in order. A date-only
// value means start of day in the caller's zone.
var dueFormats = []string{time.RFC3339, "2006-01-02"}

// Extract normalizes a raw record into a TaskSummary. It either returns a
// fully populated summary or a CodeMalformedRecord fault; partially
// populated results never leave this function. zone anchors date-only due
// values and defaults to UTC.
func Extract(rec Record, zone *time.Location) (TaskSummary, error) {
	if zone == nil {
		zone = time.UTC
	}
	if rec.ID == "" {
		return TaskSummary{}, faults.MalformedRecord(rec.ID, "missing id")
	}
	if rec.Title == "" {
		return TaskSummary{}, faults.MalformedRecord(rec.ID, "missing title")
	}

	summary := TaskSummary{
		ID:      rec.ID,
		Title:   rec.Title,
		Context: rec.Context,
	}

	if rec.Due != "" {
		due, err := parseDue(rec.Due, zone)
		if err != nil {
			return TaskSummary{}, faults.MalformedRecord(rec.ID, "unparseable due date "+rec.Due)
		}
		summary.Due = &due
	}

	if rec.Reward != nil {
		if *rec.Reward < 0 {
			return TaskSummary{}, faults.MalformedRecord(rec.ID, "negative reward")
		}
		reward := *rec.Reward
		summary.Reward = &reward
	}

	return summary, nil
}

func parseDue(raw string, zone *time.Location) (time.Time, error) {
	var lastErr error
	for _, layout := range dueFormats {
		t, err := time.ParseInLocation(layout, raw, zone)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
