package sessionstore

import (
	"context"
	"sync"
	"time"

	auth "github.com/goliatone/go-auth-frontend"
)

type memoryEntry struct {
	state     auth.SessionState
	expiresAt time.Time
}

// MemoryBackend keeps sessions in process memory. Entries expire ttl after
// their last Save; a zero ttl keeps them forever.
type MemoryBackend struct {
	mu    sync.RWMutex
	items map[string]memoryEntry
	ttl   time.Duration
	now   func() time.Time
}

var _ auth.SessionBackend = (*MemoryBackend)(nil)

func NewMemoryBackend(ttl time.Duration) *MemoryBackend {
	return &MemoryBackend{
		items: make(map[string]memoryEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (m *MemoryBackend) Load(_ context.Context, id string) (auth.SessionState, bool, error) {
	m.mu.RLock()
	entry, ok := m.items[id]
	m.mu.RUnlock()

	if !ok {
		return auth.SessionState{}, false, nil
	}

	if m.expired(entry) {
		m.mu.Lock()
		if current, ok := m.items[id]; ok && m.expired(current) {
			delete(m.items, id)
		}
		m.mu.Unlock()
		return auth.SessionState{}, false, nil
	}

	return entry.state, true, nil
}

func (m *MemoryBackend) Save(_ context.Context, id string, state auth.SessionState) error {
	entry := memoryEntry{state: state}
	if m.ttl > 0 {
		entry.expiresAt = m.now().Add(m.ttl)
	}

	m.mu.Lock()
	m.items[id] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.items, id)
	m.mu.Unlock()
	return nil
}

// Sweep drops expired entries and returns how many were removed.
func (m *MemoryBackend) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, entry := range m.items {
		if m.expired(entry) {
			delete(m.items, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryBackend) expired(entry memoryEntry) bool {
	return !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt)
}
