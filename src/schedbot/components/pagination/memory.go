package pagination

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	cursor  Cursor
	expires time.Time
}

// MemoryStore is the in-process cursor store used when no Redis is
// configured. Entries self-cancel on TTL; StartCleanup sweeps the leftovers.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memEntry
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = CursorTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]memEntry),
		now:     time.Now,
	}
}

func (m *MemoryStore) Save(ctx context.Context, id string, cur Cursor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[id] = memEntry{cursor: cur, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Take(ctx context.Context, id string) (Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	delete(m.entries, id)
	if !ok || m.now().After(e.expires) {
		return Cursor{}, ErrExpired
	}
	return e.cursor, nil
}

// Len reports the number of stored cursors, expired ones included until the
// next sweep.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// StartCleanup sweeps expired cursors until the context ends.
func (m *MemoryStore) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sweep()
			}
		}
	}()
}

func (m *MemoryStore) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, id)
		}
	}
}
