package ratelimit

import (
	"context"
	"sync"
)

// MemoryStateStore is an in-process StateStore for tests and local
// runs. It honors the same versioned compare-and-set contract as the
// Redis store.
type MemoryStateStore struct {
	mu       sync.Mutex
	states   map[string]State
	versions map[string]int64
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		states:   make(map[string]State),
		versions: make(map[string]int64),
	}
}

func (s *MemoryStateStore) Load(_ context.Context, apiID string) (State, int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	version, found := s.versions[apiID]
	if !found {
		return State{}, 0, false, nil
	}
	return s.states[apiID], version, true, nil
}

func (s *MemoryStateStore) Save(_ context.Context, apiID string, st State, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.versions[apiID] != version {
		return ErrConflict
	}
	s.states[apiID] = st
	s.versions[apiID] = version + 1
	return nil
}
