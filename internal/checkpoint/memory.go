package checkpoint

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps records in process memory. Records are copied on the way
// in and out so callers cannot mutate stored state.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (s *MemoryStore) FindByContent(ctx context.Context, content string) (string, bool, error) {
	id := TaskID(content)
	s.mu.RLock()
	_, ok := s.records[id]
	s.mu.RUnlock()
	return id, ok, nil
}

func (s *MemoryStore) Load(ctx context.Context, taskID string) (*Record, error) {
	if err := checkTaskID(taskID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[taskID]
	if !ok {
		return nil, nil
	}
	return r.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, r *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("checkpoint: refusing to save invalid record: %w", err)
	}
	s.mu.Lock()
	s.records[r.TaskID] = r.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, taskID string) error {
	if err := checkTaskID(taskID); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.records, taskID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	records := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		records = append(records, *r.Clone())
	}
	s.mu.RUnlock()
	sortRecords(records)
	return records, nil
}

func (s *MemoryStore) Close() error { return nil }
