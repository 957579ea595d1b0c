package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oukeidos/doctrans/internal/apperrors"
)

// LocalLimiter enforces the limits within a single process. Same bucket
// math as the distributed limiter, with a mutex in place of
// compare-and-set. Suitable for CLI runs where all workers share one
// process.
type LocalLimiter struct {
	mu  sync.Mutex
	cfg Config
	loc *time.Location
	st  State

	// now is the clock, injectable for tests.
	now func() time.Time
}

func NewLocal(cfg Config) (*LocalLimiter, error) {
	cfg = cfg.withDefaults()
	loc, err := loadLocation(cfg)
	if err != nil {
		return nil, err
	}
	l := &LocalLimiter{cfg: cfg, loc: loc, now: time.Now}
	l.st = fullState(cfg, l.now(), loc)
	return l, nil
}

func (l *LocalLimiter) Acquire(_ context.Context, estimatedTokens int) (Decision, error) {
	if estimatedTokens < 0 {
		return Decision{}, apperrors.Validation(fmt.Errorf("estimated tokens must be non-negative, got %d", estimatedTokens))
	}
	if estimatedTokens > l.cfg.TokensPerMinute {
		return Decision{}, apperrors.Validation(fmt.Errorf("estimated tokens %d exceed the per-minute capacity %d", estimatedTokens, l.cfg.TokensPerMinute))
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return acquire(&l.st, l.cfg, l.loc, l.now(), estimatedTokens), nil
}

func (l *LocalLimiter) Consume(_ context.Context, estimatedTokens, actualTokens int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	reconcile(&l.st, l.cfg, estimatedTokens, actualTokens)
	return nil
}

func (l *LocalLimiter) Usage(_ context.Context) (Usage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := l.st
	refill(&st, l.cfg, l.now(), l.loc)
	return usageOf(&st, l.cfg), nil
}

func (l *LocalLimiter) Reset(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.st = fullState(l.cfg, l.now(), l.loc)
	return nil
}

// reconcile adjusts the TPM bucket by the difference between the
// pre-call estimate and the actual usage reported by the API. An
// overestimate refunds tokens; an underestimate debits the shortfall.
func reconcile(st *State, cfg Config, estimatedTokens, actualTokens int) {
	delta := float64(estimatedTokens - actualTokens)
	st.TPMAvailable += delta
	if st.TPMAvailable > float64(cfg.TokensPerMinute) {
		st.TPMAvailable = float64(cfg.TokensPerMinute)
	}
	if st.TPMAvailable < 0 {
		st.TPMAvailable = 0
	}
}
