package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/oukeidos/doctrans/internal/apperrors"
	"github.com/redis/go-redis/v9"
)

const (
	// updateAttempts bounds the optimistic-concurrency retry loop.
	updateAttempts = 16
	// conflictBackoff is the base sleep between conflicting attempts;
	// actual sleeps add jitter so racing workers desynchronize.
	conflictBackoff = 5 * time.Millisecond
)

// RedisStore persists job records as JSON values in Redis. Conditional
// updates use WATCH-based optimistic transactions: the write succeeds
// only if the record was untouched between read and write.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(jobID, userID string) string {
	return fmt.Sprintf("job:%s:%s", jobID, userID)
}

func (s *RedisStore) Create(ctx context.Context, j *Job) error {
	if err := j.Validate(); err != nil {
		return apperrors.Validation(err)
	}
	raw, err := json.Marshal(j)
	if err != nil {
		return apperrors.Storage(err)
	}
	ok, err := s.client.SetNX(ctx, redisKey(j.JobID, j.UserID), raw, 0).Result()
	if err != nil {
		return apperrors.Storage(fmt.Errorf("creating job %s: %w", j.JobID, err))
	}
	if !ok {
		return apperrors.Validation(fmt.Errorf("job %s already exists", j.JobID))
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, jobID, userID string) (*Job, error) {
	raw, err := s.client.Get(ctx, redisKey(jobID, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NotFound(fmt.Sprintf("job %s not found", jobID))
	}
	if err != nil {
		return nil, apperrors.Storage(fmt.Errorf("reading job %s: %w", jobID, err))
	}
	return decode(raw)
}

func (s *RedisStore) Update(ctx context.Context, jobID, userID string, mutate func(*Job) error) (*Job, error) {
	key := redisKey(jobID, userID)
	var result *Job

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return apperrors.NotFound(fmt.Sprintf("job %s not found", jobID))
		}
		if err != nil {
			return apperrors.Storage(fmt.Errorf("reading job %s: %w", jobID, err))
		}
		j, err := decode(raw)
		if err != nil {
			return err
		}
		if err := mutate(j); err != nil {
			return err
		}
		if err := j.Validate(); err != nil {
			return apperrors.Fatal(err)
		}
		updated, err := json.Marshal(j)
		if err != nil {
			return apperrors.Storage(err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		if err != nil {
			return err
		}
		result = j
		return nil
	}

	for attempt := 0; attempt < updateAttempts; attempt++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			// Lost the race; re-read and retry.
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(conflictBackoff + time.Duration(rand.Int63n(int64(conflictBackoff)))):
			}
			continue
		}
		if _, tagged := apperrors.KindOf(err); tagged {
			return nil, err
		}
		return nil, apperrors.Storage(fmt.Errorf("updating job %s: %w", jobID, err))
	}
	return nil, apperrors.Storage(fmt.Errorf("updating job %s: gave up after %d conflicting attempts", jobID, updateAttempts))
}
