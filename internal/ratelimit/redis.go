package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStateStore keeps one versioned JSON record per API identifier.
// Save runs under WATCH so a concurrent writer invalidates the
// transaction and surfaces as ErrConflict.
type RedisStateStore struct {
	client *redis.Client
}

func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client}
}

type redisRecord struct {
	State   State `json:"state"`
	Version int64 `json:"version"`
}

func stateKey(apiID string) string {
	return "ratelimit:" + apiID
}

func (s *RedisStateStore) Load(ctx context.Context, apiID string) (State, int64, bool, error) {
	raw, err := s.client.Get(ctx, stateKey(apiID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, 0, false, nil
	}
	if err != nil {
		return State{}, 0, false, fmt.Errorf("reading rate-limit state: %w", err)
	}
	var rec redisRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return State{}, 0, false, fmt.Errorf("corrupt rate-limit state: %w", err)
	}
	return rec.State, rec.Version, true, nil
}

func (s *RedisStateStore) Save(ctx context.Context, apiID string, st State, version int64) error {
	key := stateKey(apiID)
	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		current := int64(0)
		switch {
		case errors.Is(err, redis.Nil):
			// No record yet; only version 0 may create it.
		case err != nil:
			return fmt.Errorf("reading rate-limit state: %w", err)
		default:
			var rec redisRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("corrupt rate-limit state: %w", err)
			}
			current = rec.Version
		}
		if current != version {
			return ErrConflict
		}
		updated, err := json.Marshal(redisRecord{State: st, Version: version + 1})
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txn, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	return err
}
