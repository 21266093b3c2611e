package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend keeps entries in process. Entries older than twice the
// window are dropped while recording new ones; there is no background sweep.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]time.Time)}
}

// Seen implements Backend.
func (m *MemoryBackend) Seen(_ context.Context, key string, now time.Time, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if last, ok := m.entries[key]; ok && now.Sub(last) < window {
		return true, nil
	}
	m.entries[key] = now

	cutoff := now.Add(-2 * window)
	for k, ts := range m.entries {
		if ts.Before(cutoff) {
			delete(m.entries, k)
		}
	}
	return false, nil
}

// Forget implements Backend.
func (m *MemoryBackend) Forget(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Len returns the number of stored entries.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
