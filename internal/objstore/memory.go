package objstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/oukeidos/doctrans/internal/apperrors"
)

// MemoryStore is an in-process Store for tests and local dry-runs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
	// GetHook, when set, observes every Get key. Tests use it to assert
	// access patterns such as the worker never reading translated keys.
	GetHook func(key string)
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]Object)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (*Object, error) {
	if s.GetHook != nil {
		s.GetHook(key)
	}
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("object %q not found", key))
	}
	return cloneObject(obj), nil
}

func (s *MemoryStore) Put(_ context.Context, key string, body []byte, metadata map[string]string) error {
	stored := Object{Body: append([]byte(nil), body...)}
	if metadata != nil {
		stored.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			stored.Metadata[strings.ToLower(k)] = v
		}
	}
	s.mu.Lock()
	s.objects[key] = stored
	s.mu.Unlock()
	return nil
}

// Keys returns all stored keys, for test assertions.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}

func cloneObject(obj Object) *Object {
	out := &Object{Body: append([]byte(nil), obj.Body...)}
	if obj.Metadata != nil {
		out.Metadata = make(map[string]string, len(obj.Metadata))
		for k, v := range obj.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
