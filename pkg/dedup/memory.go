package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryIndex is an in-memory Index. Used in tests and for deployments
// where losing the duplicate window across restarts is acceptable.
type MemoryIndex struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
}

// NewMemoryIndex creates an empty index with the given window.
// A non-positive window defaults to 24 hours.
func NewMemoryIndex(window time.Duration) *MemoryIndex {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &MemoryIndex{
		window: window,
		seen:   make(map[string]time.Time),
	}
}

// CheckAndRecord reports whether the hash was seen within the window and
// records this sighting.
func (m *MemoryIndex) CheckAndRecord(ctx context.Context, hash string, at time.Time) (bool, error) {
	if hash == "" {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	last, ok := m.seen[hash]
	m.seen[hash] = at
	return ok && at.Sub(last) <= m.window, nil
}

// Cleanup removes entries last seen before the cutoff.
func (m *MemoryIndex) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for hash, last := range m.seen {
		if last.Before(cutoff) {
			delete(m.seen, hash)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op.
func (m *MemoryIndex) Close() error { return nil }
