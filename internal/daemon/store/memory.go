package store

import (
	"context"
	"sync"
)

// MemoryHistory is an in-memory History used when persistence is disabled
// and in tests.
type MemoryHistory struct {
	samples []Sample
	limit   int
	closed  bool
	mu      sync.RWMutex
}

// NewMemoryHistory creates an empty in-memory history.
func NewMemoryHistory(limit int) *MemoryHistory {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &MemoryHistory{limit: limit}
}

func (m *MemoryHistory) Append(ctx context.Context, s Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	m.samples = append(m.samples, s)
	if over := len(m.samples) - m.limit; over > 0 {
		m.samples = append([]Sample(nil), m.samples[over:]...)
	}
	return nil
}

func (m *MemoryHistory) Last(ctx context.Context, n int) ([]Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	if n <= 0 {
		return nil, nil
	}
	if n > len(m.samples) {
		n = len(m.samples)
	}
	return append([]Sample(nil), m.samples[len(m.samples)-n:]...), nil
}

func (m *MemoryHistory) Len(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.samples), nil
}

func (m *MemoryHistory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
