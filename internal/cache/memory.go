package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value   []byte
	expires time.Time
}

// Memory is an in-process Cache. Expired entries are dropped lazily on Get
// and swept on Set once the map grows past sweepAt.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
	sweepAt int
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
		sweepAt: 1024,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrMiss
	}
	if now := m.now(); !e.expires.IsZero() && !now.Before(e.expires) {
		m.mu.Lock()
		// a Set may have replaced the entry since the read lock was dropped
		if cur, ok := m.entries[key]; ok && !cur.expires.IsZero() && !now.Before(cur.expires) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, ErrMiss
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores value under key. A non-positive ttl never expires.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	now := m.now()
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) >= m.sweepAt {
		for k, old := range m.entries {
			if !old.expires.IsZero() && !now.Before(old.expires) {
				delete(m.entries, k)
			}
		}
	}
	m.entries[key] = e
	return nil
}

// Len returns the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Close() error { return nil }
