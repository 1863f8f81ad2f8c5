package watermark

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps cursors in process memory. It does not survive a
// restart and exists for tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	cursors map[string]time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cursors: make(map[string]time.Time)}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, pollerID string) (time.Time, bool, error) {
	if pollerID == "" {
		return time.Time{}, false, ErrEmptyPollerID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cursor, ok := s.cursors[pollerID]
	return cursor, ok, nil
}

// Set implements Store. An older cursor than the stored one is ignored.
func (s *MemoryStore) Set(_ context.Context, pollerID string, cursor time.Time) error {
	if pollerID == "" {
		return ErrEmptyPollerID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.cursors[pollerID]; ok && prev.After(cursor) {
		return nil
	}
	s.cursors[pollerID] = cursor.UTC()
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
