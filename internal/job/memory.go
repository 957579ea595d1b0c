package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/oukeidos/doctrans/internal/apperrors"
)

// MemoryStore is an in-process Store for tests and local runs. Records
// are kept serialized so reads hand out independent copies, matching
// the remote store's semantics.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func recordKey(jobID, userID string) string {
	return jobID + "/" + userID
}

func (s *MemoryStore) Create(_ context.Context, j *Job) error {
	if err := j.Validate(); err != nil {
		return apperrors.Validation(err)
	}
	raw, err := json.Marshal(j)
	if err != nil {
		return apperrors.Storage(err)
	}
	key := recordKey(j.JobID, j.UserID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[key]; exists {
		return apperrors.Validation(fmt.Errorf("job %s already exists", j.JobID))
	}
	s.records[key] = raw
	return nil
}

func (s *MemoryStore) Get(_ context.Context, jobID, userID string) (*Job, error) {
	s.mu.Lock()
	raw, ok := s.records[recordKey(jobID, userID)]
	s.mu.Unlock()
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("job %s not found", jobID))
	}
	return decode(raw)
}

func (s *MemoryStore) Update(_ context.Context, jobID, userID string, mutate func(*Job) error) (*Job, error) {
	key := recordKey(jobID, userID)
	// A single lock serializes updates, so the read-modify-write is
	// trivially conditional here; the Redis store does the same dance
	// with WATCH.
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.records[key]
	if !ok {
		return nil, apperrors.NotFound(fmt.Sprintf("job %s not found", jobID))
	}
	j, err := decode(raw)
	if err != nil {
		return nil, err
	}
	if err := mutate(j); err != nil {
		return nil, err
	}
	if err := j.Validate(); err != nil {
		return nil, apperrors.Fatal(err)
	}
	updated, err := json.Marshal(j)
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	s.records[key] = updated
	return j, nil
}

func decode(raw []byte) (*Job, error) {
	var j Job
	// Unknown fields are tolerated for forward compatibility; required
	// fields are checked by Validate.
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, apperrors.Storage(fmt.Errorf("corrupt job record: %w", err))
	}
	if err := j.Validate(); err != nil {
		return nil, apperrors.Fatal(fmt.Errorf("invalid job record: %w", err))
	}
	return &j, nil
}
