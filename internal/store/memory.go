package store

import (
	"context"
	"sync"
)

// MemoryStore keeps documents in process memory. Nothing survives a restart;
// it backs tests and throwaway demo instances.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string][]byte
	saves map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string][]byte),
		saves: make(map[string]int),
	}
}

func (s *MemoryStore) Load(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.docs[name]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStore) Save(_ context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[name] = append([]byte(nil), data...)
	s.saves[name]++
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// Saves reports how many times the named document has been written.
func (s *MemoryStore) Saves(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves[name]
}
