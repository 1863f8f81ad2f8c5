package watermark

import (
	"context"
	"time"
)

// OverlayStore reads through to a base store but keeps every write in
// memory, so the base is never modified. Dry runs use it to evaluate ticks
// against real cursors.
type OverlayStore struct {
	base    Store
	written *MemoryStore
}

// NewOverlayStore wraps base. Closing the overlay closes base.
func NewOverlayStore(base Store) *OverlayStore {
	return &OverlayStore{base: base, written: NewMemoryStore()}
}

// Get implements Store. A cursor set on the overlay shadows the base value.
func (s *OverlayStore) Get(ctx context.Context, pollerID string) (time.Time, bool, error) {
	cursor, ok, err := s.written.Get(ctx, pollerID)
	if err != nil || ok {
		return cursor, ok, err
	}
	return s.base.Get(ctx, pollerID)
}

// Set implements Store. Only the in-memory layer is written.
func (s *OverlayStore) Set(ctx context.Context, pollerID string, cursor time.Time) error {
	return s.written.Set(ctx, pollerID, cursor)
}

// Close implements Store.
func (s *OverlayStore) Close() error {
	return s.base.Close()
}
