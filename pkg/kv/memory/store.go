package memory

import (
	"context"
	"sync"
)

// Store is an in-memory implementation of the kv.Store interface. It serves
// single-process deployments and stands in for Redis during an outage.
type Store struct {
	mu     sync.RWMutex
	hashes map[string]map[string][]byte
}

func New() *Store {
	return &Store{hashes: make(map[string]map[string][]byte)}
}

func (s *Store) HSet(ctx context.Context, key string, field string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, ok := s.hashes[key]
	if !ok {
		hash = make(map[string][]byte)
		s.hashes[key] = hash
	}
	hash[field] = append([]byte(nil), value...)
	return nil
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]byte, len(s.hashes[key]))
	for field, value := range s.hashes[key] {
		out[field] = append([]byte(nil), value...)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}
