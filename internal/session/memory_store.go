package session

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	identity  string
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory; they vanish on restart.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Lookup(_ context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hashID(sessionID)
	entry, ok := s.entries[key]
	if !ok {
		return "", ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return "", ErrNotFound
	}
	return entry.identity, nil
}

// Save stores the session. A non-positive ttl never expires.
func (s *MemoryStore) Save(_ context.Context, sessionID, identity string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{identity: identity}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.entries[hashID(sessionID)] = entry
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]memoryEntry)
	return nil
}
