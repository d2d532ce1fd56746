package cache

import (
	"sync"
	"time"
)

// memoryTier is the process-wide in-memory mapping from key to entry.
// Safe for concurrent use; concurrent puts for the same key are
// last-write-wins.
type memoryTier struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func newMemoryTier() *memoryTier {
	return &memoryTier{entries: make(map[string]entry)}
}

func (m *memoryTier) get(key string) (entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	return e, ok
}

func (m *memoryTier) put(key string, e entry) {
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
}

func (m *memoryTier) remove(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// removeExpired drops every entry older than ttl as of now and returns
// how many were dropped.
func (m *memoryTier) removeExpired(ttl time.Duration, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, e := range m.entries {
		if !fresh(e.createdAt, now, ttl) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

func (m *memoryTier) clear() {
	m.mu.Lock()
	m.entries = make(map[string]entry)
	m.mu.Unlock()
}

func (m *memoryTier) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
