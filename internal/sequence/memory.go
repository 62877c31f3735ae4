package sequence

import (
	"context"
	"sync"
)

type memoryCounter struct {
	mu   sync.Mutex
	last int64
}

// MemoryStore is a process-local CounterStore. Each scope has its own mutex,
// so allocations in different scopes never contend.
type MemoryStore struct {
	counters sync.Map // Scope -> *memoryCounter
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Next implements CounterStore.
func (s *MemoryStore) Next(ctx context.Context, scope Scope, max int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	v, _ := s.counters.LoadOrStore(scope, &memoryCounter{})
	c := v.(*memoryCounter)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last >= max {
		return 0, ErrExhausted
	}
	c.last++
	return c.last, nil
}

// Last returns the last value handed out for scope, or 0 if none was.
func (s *MemoryStore) Last(scope Scope) int64 {
	v, ok := s.counters.Load(scope)
	if !ok {
		return 0
	}
	c := v.(*memoryCounter)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
