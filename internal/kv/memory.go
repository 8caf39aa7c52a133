package kv

import (
	"context"
	"sync"
)

// MemoryStore is a map-backed Store for tests and dependency-free local
// runs. Values are copied in and out.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	in := make([]byte, len(value))
	copy(in, value)
	s.mu.Lock()
	s.data[key] = in
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}
