package trigger

import (
	"context"
	"sync"
	"time"
)

// Engine submits trigger requests to the downstream workflow system. The
// engine owns idempotency: submitting a key it has already accepted must be
// a no-op, reported through Receipt.Duplicate.
type Engine interface {
	Submit(ctx context.Context, key string, payload []byte) (Receipt, error)
}

// Receipt describes an accepted submission.
type Receipt struct {
	// Duplicate is true when the engine recognised the key and did not
	// start another execution.
	Duplicate bool
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, key string, payload []byte) (Receipt, error)

// Submit calls f.
func (f EngineFunc) Submit(ctx context.Context, key string, payload []byte) (Receipt, error) {
	return f(ctx, key, payload)
}

// MemoryEngine is an in-process engine that remembers accepted keys for a
// retention period. It backs dry runs and tests.
type MemoryEngine struct {
	mu        sync.Mutex
	retention time.Duration
	accepted  map[string]time.Time
	order     []string
	now       func() time.Time
}

// NewMemoryEngine creates a MemoryEngine. A non-positive retention keeps keys
// forever.
func NewMemoryEngine(retention time.Duration) *MemoryEngine {
	return &MemoryEngine{
		retention: retention,
		accepted:  make(map[string]time.Time),
		now:       time.Now,
	}
}

// Submit accepts key unless it was accepted within the retention period.
func (m *MemoryEngine) Submit(ctx context.Context, key string, _ []byte) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if at, ok := m.accepted[key]; ok {
		if m.retention <= 0 || now.Sub(at) < m.retention {
			return Receipt{Duplicate: true}, nil
		}
	}

	m.accepted[key] = now
	m.order = append(m.order, key)
	return Receipt{}, nil
}

// Executed returns accepted keys in the order they were first accepted,
// including keys accepted again after their retention expired.
func (m *MemoryEngine) Executed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}
