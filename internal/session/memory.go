package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

type Memory struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	entries   map[string]memoryEntry
	lastSweep time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     normalizeTTL(ttl),
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (m *Memory) Get(_ context.Context, sessionID string, key string, dest any) (bool, error) {
	if sessionID == "" {
		return false, ErrInvalidSession
	}
	k := storageKey(sessionID, key)

	m.mu.Lock()
	entry, ok := m.entries[k]
	if ok && !m.now().Before(entry.expiresAt) {
		delete(m.entries, k)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(entry.payload, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Memory) Set(_ context.Context, sessionID string, key string, value any) error {
	if sessionID == "" {
		return ErrInvalidSession
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if now.Sub(m.lastSweep) >= m.ttl {
		m.sweepLocked(now)
	}
	m.entries[storageKey(sessionID, key)] = memoryEntry{payload: payload, expiresAt: now.Add(m.ttl)}
	return nil
}

// sweepLocked drops expired entries of abandoned sessions. Runs at most once
// per ttl, on write.
func (m *Memory) sweepLocked(now time.Time) {
	for k, entry := range m.entries {
		if !now.Before(entry.expiresAt) {
			delete(m.entries, k)
		}
	}
	m.lastSweep = now
}

func (m *Memory) Delete(_ context.Context, sessionID string, key string) error {
	if sessionID == "" {
		return ErrInvalidSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, storageKey(sessionID, key))
	return nil
}

// Clear drops every key of a session.
func (m *Memory) Clear(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range []string{KeyCart, KeyOrder, KeyOrders} {
		delete(m.entries, storageKey(sessionID, key))
	}
}
