package kv

import (
	"context"
	"sync"
)

// MemStore is a thread-safe in-memory Store. It backs tests and can be
// forced to fail to exercise the engine's persistence-failure semantics.
type MemStore struct {
	mu    sync.RWMutex
	slots map[string][]byte

	// FailReads / FailWrites make the next operations return FailErr.
	FailReads  bool
	FailWrites bool
	FailErr    error
}

func NewMemStore() *MemStore {
	return &MemStore{slots: make(map[string][]byte)}
}

func (s *MemStore) key(userID, slot string) string {
	return userID + "/" + slot
}

func (s *MemStore) Get(_ context.Context, userID, slot string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailReads {
		return nil, s.failErr()
	}
	v, ok := s.slots[s.key(userID, slot)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemStore) Put(_ context.Context, userID, slot string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return s.failErr()
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.slots[s.key(userID, slot)] = v
	return nil
}

func (s *MemStore) failErr() error {
	if s.FailErr != nil {
		return s.FailErr
	}
	return ErrUnavailable
}
