// Package cache provides key/value stores with per-entry expiry used to keep
// resolved search pages for a bounded time.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"
)

const defaultMemoryMaxEntries = 2000

type memoryEntry struct {
	value     []byte
	updatedAt time.Time
	expiresAt time.Time
}

// Memory is a process-local cache. Entries past their expiry are treated as
// misses and evicted lazily.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]*memoryEntry
	maxEntries int
	now        func() time.Time
}

type MemoryOption func(*Memory)

func WithMaxEntries(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.maxEntries = n
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries:    make(map[string]*memoryEntry),
		maxEntries: defaultMemoryMaxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !m.now().Before(entry.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), entry.value...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = &memoryEntry{
		value:     append([]byte(nil), value...),
		updatedAt: now,
		expiresAt: now.Add(ttl),
	}
	m.trimLocked(now)
	return nil
}

func (m *Memory) TTL(_ context.Context, key string) (time.Duration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return 0, false, nil
	}
	remaining := entry.expiresAt.Sub(m.now())
	if remaining <= 0 {
		delete(m.entries, key)
		return 0, false, nil
	}
	return remaining, true, nil
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) trimLocked(now time.Time) {
	for key, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
	if len(m.entries) <= m.maxEntries {
		return
	}

	type pair struct {
		key   string
		entry *memoryEntry
	}
	items := make([]pair, 0, len(m.entries))
	for key, entry := range m.entries {
		items = append(items, pair{key: key, entry: entry})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].entry.updatedAt.Before(items[j].entry.updatedAt)
	})
	for i := 0; i < len(items)-m.maxEntries; i++ {
		delete(m.entries, items[i].key)
	}
}
