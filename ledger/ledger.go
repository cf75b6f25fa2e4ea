// Package ledger records granted XP awards. The ledger is best-effort by
// contract: the authoritative record of a completion is the patched task,
// and the award flow logs and swallows append failures. Sinks exist for
// Notion (the original XP Ledger database), Postgres, and a local bleve
// archive that backs award history search.
package ledger

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Entry is one granted award as the ledger records it.
type Entry struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Title     string    `json:"title"`
	Points    int       `json:"points"`
	Source    string    `json:"source"`
	Reason    string    `json:"reason"`
	AwardedAt time.Time `json:"awarded_at"`
}

// Ledger is an append-only record of awards.
type Ledger interface {
	Append(ctx context.Context, entry Entry) error
}

// Nop discards entries. Wired when no sink is configured.
type Nop struct{}

// Append implements the Ledger interface.
func (Nop) Append(ctx context.Context, entry Entry) error { return nil }

// Fanout appends to every sink and joins their failures. A partial write
// is reported as a failure even though some sinks succeeded; the award
// flow only logs it.
type Fanout []Ledger

// Append implements the Ledger interface.
func (f Fanout) Append(ctx context.Context, entry Entry) error {
	var errs []error
	for _, sink := range f {
		if err := sink.Append(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Memory keeps entries in memory. Useful for testing and dev mode.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{}
}

// Append implements the Ledger interface.
func (m *Memory) Append(ctx context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// Entries returns a copy of everything appended so far.
func (m *Memory) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}
