package taskstore

import (
	"context"
	"sync"

	"sidequest/faults"
)

// MemoryStore implements Store using in-memory records.
// Useful for testing and the dev mode where no Notion credential exists.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*memoryTask
	order   []string
}

type memoryTask struct {
	record Record
	done   bool
}

// NewMemoryStore creates a new in-memory task store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*memoryTask)}
}

// Add seeds a task. Re-adding an ID overwrites the record and reopens it.
func (s *MemoryStore) Add(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; !exists {
		s.order = append(s.order, rec.ID)
	}
	s.records[rec.ID] = &memoryTask{record: rec}
}

// ListOpen implements the Store interface. Records come back in insertion
// order so matching is deterministic.
func (s *MemoryStore) ListOpen(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var open []Record
	for _, id := range s.order {
		t := s.records[id]
		if t.done {
			continue
		}
		open = append(open, t.record)
	}
	return open, nil
}

// Patch implements the Store interface.
func (s *MemoryStore) Patch(ctx context.Context, id string, patch Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.records[id]
	if !ok {
		return faults.New(faults.CodeStoreWrite, "task "+id+" not found",
			faults.WithTaskID(id))
	}
	if patch.Done {
		t.done = true
	}
	if patch.Reward != nil {
		reward := *patch.Reward
		t.record.Reward = &reward
	}
	return nil
}

// Get returns a copy of the stored record, for inspection in tests.
func (s *MemoryStore) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return t.record, true
}

// Done reports whether the task has been marked complete.
func (s *MemoryStore) Done(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.records[id]
	return ok && t.done
}
