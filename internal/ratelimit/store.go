package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/oukeidos/doctrans/internal/apperrors"
)

// ErrConflict is returned by StateStore.Save when the record changed
// between Load and Save. The limiter retries the whole read-modify-write.
var ErrConflict = errors.New("ratelimit: state modified concurrently")

// StateStore persists bucket state per API identifier with optimistic
// concurrency. Load returns the stored state and an opaque version;
// found=false with version 0 means no record exists yet. Save succeeds
// only if the record still carries the version Load returned (version 0
// creates the record).
type StateStore interface {
	Load(ctx context.Context, apiID string) (st State, version int64, found bool, err error)
	Save(ctx context.Context, apiID string, st State, version int64) error
}

const (
	// acquireAttempts bounds the CAS retry loop of one acquire.
	acquireAttempts = 8
	casBackoff      = 5 * time.Millisecond
)

// StoreLimiter enforces the limits across many processes by keeping
// bucket state in a shared StateStore. Every acquire is a conditional
// read-modify-write; conflicting writers retry with jitter.
type StoreLimiter struct {
	store StateStore
	cfg   Config
	apiID string
	loc   *time.Location

	// now is the clock, injectable for tests.
	now func() time.Time
}

func NewStoreLimiter(store StateStore, apiID string, cfg Config) (*StoreLimiter, error) {
	if apiID == "" {
		return nil, fmt.Errorf("api identifier is required")
	}
	cfg = cfg.withDefaults()
	loc, err := loadLocation(cfg)
	if err != nil {
		return nil, err
	}
	return &StoreLimiter{store: store, cfg: cfg, apiID: apiID, loc: loc, now: time.Now}, nil
}

func (l *StoreLimiter) Acquire(ctx context.Context, estimatedTokens int) (Decision, error) {
	if estimatedTokens < 0 {
		return Decision{}, apperrors.Validation(fmt.Errorf("estimated tokens must be non-negative, got %d", estimatedTokens))
	}
	if estimatedTokens > l.cfg.TokensPerMinute {
		return Decision{}, apperrors.Validation(fmt.Errorf("estimated tokens %d exceed the per-minute capacity %d", estimatedTokens, l.cfg.TokensPerMinute))
	}

	for attempt := 0; attempt < acquireAttempts; attempt++ {
		st, version, found, err := l.store.Load(ctx, l.apiID)
		if err != nil {
			return Decision{}, apperrors.Storage(fmt.Errorf("loading rate-limit state: %w", err))
		}
		if !found {
			st = fullState(l.cfg, l.now(), l.loc)
		}

		decision := acquire(&st, l.cfg, l.loc, l.now(), estimatedTokens)
		if !decision.Granted {
			// Denials consume nothing; the refill is recomputed on the
			// next attempt, so there is nothing worth persisting.
			return decision, nil
		}

		err = l.store.Save(ctx, l.apiID, st, version)
		if err == nil {
			return decision, nil
		}
		if !errors.Is(err, ErrConflict) {
			return Decision{}, apperrors.Storage(fmt.Errorf("saving rate-limit state: %w", err))
		}
		select {
		case <-ctx.Done():
			return Decision{}, ctx.Err()
		case <-time.After(casBackoff + time.Duration(rand.Int63n(int64(casBackoff)))):
		}
	}
	return Decision{}, apperrors.Storage(fmt.Errorf("rate-limit acquire gave up after %d conflicting attempts", acquireAttempts))
}

func (l *StoreLimiter) Consume(ctx context.Context, estimatedTokens, actualTokens int) error {
	if estimatedTokens == actualTokens {
		return nil
	}
	for attempt := 0; attempt < acquireAttempts; attempt++ {
		st, version, found, err := l.store.Load(ctx, l.apiID)
		if err != nil {
			return apperrors.Storage(fmt.Errorf("loading rate-limit state: %w", err))
		}
		if !found {
			return nil
		}
		reconcile(&st, l.cfg, estimatedTokens, actualTokens)
		err = l.store.Save(ctx, l.apiID, st, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return apperrors.Storage(fmt.Errorf("saving rate-limit state: %w", err))
		}
	}
	return apperrors.Storage(fmt.Errorf("rate-limit consume gave up after %d conflicting attempts", acquireAttempts))
}

func (l *StoreLimiter) Usage(ctx context.Context) (Usage, error) {
	st, _, found, err := l.store.Load(ctx, l.apiID)
	if err != nil {
		return Usage{}, apperrors.Storage(fmt.Errorf("loading rate-limit state: %w", err))
	}
	if !found {
		st = fullState(l.cfg, l.now(), l.loc)
	}
	refill(&st, l.cfg, l.now(), l.loc)
	return usageOf(&st, l.cfg), nil
}

func (l *StoreLimiter) Reset(ctx context.Context) error {
	for attempt := 0; attempt < acquireAttempts; attempt++ {
		_, version, _, err := l.store.Load(ctx, l.apiID)
		if err != nil {
			return apperrors.Storage(fmt.Errorf("loading rate-limit state: %w", err))
		}
		err = l.store.Save(ctx, l.apiID, fullState(l.cfg, l.now(), l.loc), version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return apperrors.Storage(fmt.Errorf("saving rate-limit state: %w", err))
		}
	}
	return apperrors.Storage(fmt.Errorf("rate-limit reset gave up after %d conflicting attempts", acquireAttempts))
}
